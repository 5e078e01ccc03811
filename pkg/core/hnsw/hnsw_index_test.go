package hnsw

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sanonone/kektorann/pkg/core/distance"
	"github.com/sanonone/kektorann/pkg/core/types"
	"github.com/sanonone/kektorann/pkg/metrics"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestIndex(t testing.TB, dim int, metric distance.DistanceMetric, m, efc int, opts ...Option) *Index {
	t.Helper()
	opts = append([]Option{WithSeed(42), WithLogger(quietLogger)}, opts...)
	idx, err := New(dim, metric, m, efc, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return idx
}

func randomVectors(rng *rand.Rand, n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for j := range v {
			v[j] = rng.Float32()
		}
		out[i] = v
	}
	return out
}

func TestFourPointScenario(t *testing.T) {
	idx := newTestIndex(t, 2, distance.Euclidean, 2, 10)
	for i, v := range [][]float32{{0, 0}, {1, 0}, {0, 1}, {10, 10}} {
		id, err := idx.Insert(v)
		if err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
		if id != uint32(i) {
			t.Fatalf("Insert %d returned id %d", i, id)
		}
	}

	res, err := idx.Search([]float32{0.1, 0.1}, 1, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 || res[0].ID != 0 {
		t.Fatalf("got %+v, want id 0", res)
	}

	// Asking for more than the index holds returns everything, sorted.
	res, err = idx.Search([]float32{0.1, 0.1}, 10, 10)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint32{0, 1, 2, 3}
	if len(res) != len(want) {
		t.Fatalf("got %d results, want %d", len(res), len(want))
	}
	for i, r := range res {
		if r.ID != want[i] {
			t.Errorf("rank %d: got id %d, want %d", i, r.ID, want[i])
		}
	}
	if err := idx.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestEmptyIndexSearch(t *testing.T) {
	idx := newTestIndex(t, 2, distance.Euclidean, 4, 10)
	_, err := idx.Search([]float32{0, 0}, 1, 10)
	if !errors.Is(err, types.ErrEmptyIndex) {
		t.Fatalf("expected ErrEmptyIndex, got %v", err)
	}
	if idx.TopLevel() != -1 || idx.Len() != 0 {
		t.Errorf("empty index: top=%d len=%d", idx.TopLevel(), idx.Len())
	}
	if err := idx.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestDimensionMismatch(t *testing.T) {
	idx := newTestIndex(t, 2, distance.Euclidean, 4, 10)
	if _, err := idx.Insert([]float32{1, 2}); err != nil {
		t.Fatal(err)
	}

	_, err := idx.Insert([]float32{1, 2, 3})
	if !errors.Is(err, types.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if idx.Len() != 1 || idx.Vectors().Len() != 1 {
		t.Fatalf("size changed after rejected insert: graph=%d store=%d", idx.Len(), idx.Vectors().Len())
	}

	_, err = idx.Search([]float32{1}, 1, 10)
	if !errors.Is(err, types.ErrDimensionMismatch) {
		t.Fatalf("search: expected ErrDimensionMismatch, got %v", err)
	}

	_, err = idx.InsertBatch([][]float32{{1, 1}, {2, 2, 2}})
	if !errors.Is(err, types.ErrDimensionMismatch) {
		t.Fatalf("batch: expected ErrDimensionMismatch, got %v", err)
	}
	if idx.Len() != 1 {
		t.Fatalf("a rejected batch must insert nothing, len = %d", idx.Len())
	}
}

func TestInvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		fn   func() error
	}{
		{"M zero", func() error { _, err := New(2, distance.Euclidean, 0, 10); return err }},
		{"efConstruction zero", func() error { _, err := New(2, distance.Euclidean, 4, 0); return err }},
		{"dimension zero", func() error { _, err := New(0, distance.Euclidean, 4, 10); return err }},
		{"M0 below M", func() error { _, err := New(2, distance.Euclidean, 4, 10, WithM0(2)); return err }},
		{"negative mL", func() error { _, err := New(2, distance.Euclidean, 4, 10, WithML(-1)); return err }},
		{"infinite mL", func() error { _, err := New(2, distance.Euclidean, 4, 10, WithML(math.Inf(1))); return err }},
		{"unknown metric", func() error { _, err := New(2, "manhattan", 4, 10); return err }},
		{"unknown precision", func() error { _, err := New(2, distance.Euclidean, 4, 10, WithPrecision("int8")); return err }},
		{"unknown selection", func() error { _, err := New(2, distance.Euclidean, 4, 10, WithSelection("random")); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, types.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}

	idx := newTestIndex(t, 2, distance.Euclidean, 4, 10)
	idx.Insert([]float32{0, 0})
	for _, k := range []int{0, -3} {
		if _, err := idx.Search([]float32{0, 0}, k, 10); !errors.Is(err, types.ErrInvalidArgument) {
			t.Errorf("k=%d: expected ErrInvalidArgument, got %v", k, err)
		}
	}
}

func TestDefaults(t *testing.T) {
	idx := newTestIndex(t, 8, distance.Cosine, 16, 100)
	cfg := idx.Config()
	if cfg.M0 != 32 {
		t.Errorf("M0 = %d, want 32", cfg.M0)
	}
	if math.Abs(cfg.LevelScale()-1/math.Log(16)) > 1e-12 {
		t.Errorf("ML = %v, want 1/ln(16)", cfg.LevelScale())
	}
	if cfg.EfSearch != DefaultEfSearch || cfg.Selection != SelectSimple {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Name == "" || idx.Name() != cfg.Name {
		t.Error("an unnamed index should get a generated name")
	}

	// M == 1 would give an infinite 1/ln(M).
	one := newTestIndex(t, 2, distance.Euclidean, 1, 10)
	if ml := one.Config().LevelScale(); math.IsInf(ml, 0) || ml <= 0 {
		t.Errorf("M=1 gave ML = %v", ml)
	}
}

func TestZeroMLKeepsSingleLevel(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	idx := newTestIndex(t, 4, distance.Euclidean, 4, 32, WithML(0))
	if got := idx.Config().LevelScale(); got != 0 {
		t.Fatalf("ML = %v, want 0", got)
	}
	if _, err := idx.InsertBatch(randomVectors(rng, 300, 4)); err != nil {
		t.Fatal(err)
	}
	if top := idx.TopLevel(); top != 0 {
		t.Fatalf("TopLevel = %d, want 0 with mL = 0", top)
	}
	checkInvariants(t, idx)
}

func TestNonFiniteVectorsRejected(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(-1))

	idx := newTestIndex(t, 2, distance.Euclidean, 4, 10)
	if _, err := idx.Insert([]float32{0, 0}); err != nil {
		t.Fatal(err)
	}

	if _, err := idx.Insert([]float32{nan, 1}); !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("NaN insert: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := idx.InsertBatch([][]float32{{1, 1}, {inf, 0}}); !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("batch with -Inf: expected ErrInvalidArgument, got %v", err)
	}
	if idx.Len() != 1 || idx.Vectors().Len() != 1 {
		t.Fatalf("rejected vectors changed the index: graph=%d store=%d", idx.Len(), idx.Vectors().Len())
	}
	if _, err := idx.Search([]float32{0, nan}, 1, 10); !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("NaN query: expected ErrInvalidArgument, got %v", err)
	}
	checkInvariants(t, idx)
}

func TestVectorOfReturnsCopy(t *testing.T) {
	idx := newTestIndex(t, 3, distance.Cosine, 4, 10)
	in := []float32{3, 4, 0}
	id, _ := idx.Insert(in)
	in[0] = 99

	got, err := idx.VectorOf(id)
	if err != nil {
		t.Fatal(err)
	}
	// Cosine vectors are stored as given, not normalized.
	if got[0] != 3 || got[1] != 4 || got[2] != 0 {
		t.Errorf("VectorOf = %v, want [3 4 0]", got)
	}
	got[1] = -1
	again, _ := idx.VectorOf(id)
	if again[1] != 4 {
		t.Error("VectorOf must hand out copies")
	}

	if _, err := idx.VectorOf(5); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// checkInvariants verifies nesting, degree bounds and symmetry directly on
// the graph, independently of Validate.
func checkInvariants(t *testing.T, idx *Index) {
	t.Helper()
	g := idx.graph
	for i := 0; i < g.Len(); i++ {
		id := uint32(i)
		top, _ := g.NodeLevel(id)
		for l := 0; l <= top; l++ {
			if !g.Has(l, id) {
				t.Fatalf("nesting: node %d at level %d missing from level %d", id, top, l)
			}
			if d := g.Degree(l, id); d > idx.degreeBound(l) {
				t.Fatalf("degree: node %d has %d neighbors at level %d", id, d, l)
			}
			for _, nb := range g.Neighbors(l, id) {
				found := false
				for _, back := range g.Neighbors(l, nb) {
					if back == id {
						found = true
						break
					}
				}
				if !found {
					t.Fatalf("symmetry: %d lists %d at level %d but not the reverse", id, nb, l)
				}
			}
		}
	}
}

func TestGraphInvariants(t *testing.T) {
	for _, sel := range []SelectionPolicy{SelectSimple, SelectHeuristic} {
		for _, keep := range []bool{true, false} {
			t.Run(fmt.Sprintf("%s/keep=%v", sel, keep), func(t *testing.T) {
				rng := rand.New(rand.NewSource(5))
				idx := newTestIndex(t, 8, distance.Euclidean, 6, 40, WithSelection(sel), WithKeepPruned(keep))
				for i, v := range randomVectors(rng, 600, 8) {
					if _, err := idx.Insert(v); err != nil {
						t.Fatal(err)
					}
					if i%100 == 0 {
						checkInvariants(t, idx)
					}
				}
				checkInvariants(t, idx)
				if err := idx.Validate(); err != nil {
					t.Fatal(err)
				}

				st := idx.Stats()
				if st.Nodes != 600 || st.Levels[0].Nodes != 600 {
					t.Fatalf("stats: %+v", st)
				}
				for l := 1; l < len(st.Levels); l++ {
					if st.Levels[l].Nodes > st.Levels[l-1].Nodes {
						t.Errorf("level %d has more nodes than level %d", l, l-1)
					}
				}
				// Without back-filling the heuristic links sparsely and may
				// split a level, so connectivity is only expected with it.
				if keep && st.Levels[0].Components != 1 {
					t.Errorf("level 0 has %d components", st.Levels[0].Components)
				}
			})
		}
	}
}

func TestSmallMKeepsEveryNodeReachable(t *testing.T) {
	const (
		n   = 2000
		dim = 8
	)
	for _, sel := range []SelectionPolicy{SelectSimple, SelectHeuristic} {
		t.Run(string(sel), func(t *testing.T) {
			rng := rand.New(rand.NewSource(1))
			data := randomVectors(rng, n, dim)
			idx := newTestIndex(t, dim, distance.Euclidean, 4, 40, WithSelection(sel), WithSeed(1))
			if _, err := idx.InsertBatch(data); err != nil {
				t.Fatal(err)
			}
			checkInvariants(t, idx)

			for i := 0; i < n; i++ {
				if d := idx.graph.Degree(0, uint32(i)); d == 0 {
					t.Fatalf("node %d has no level 0 links", i)
				}
			}

			misses := 0
			for i, v := range data {
				res, err := idx.Search(v, 1, n)
				if err != nil {
					t.Fatal(err)
				}
				if len(res) != 1 || res[0].ID != uint32(i) {
					misses++
				}
			}
			if misses > 0 {
				t.Errorf("%d of %d stored vectors not found by exhaustive search", misses, n)
			}
		})
	}
}

func TestPruningNeverIsolatesNeighbor(t *testing.T) {
	// Node 0 sits in the middle with leaves 1..3 hanging off it; 4 is a
	// far node linked to both 0 and 5. With a bound of 3, node 0 has to
	// drop an edge. The farthest neighbor is 3, but 0 is its only link, so
	// the edge to 4 goes instead.
	idx := newTestIndex(t, 1, distance.Euclidean, 3, 10)
	for _, v := range [][]float32{{0}, {1}, {-1}, {-9}, {5}, {6}} {
		id, err := idx.store.Add(v)
		if err != nil {
			t.Fatal(err)
		}
		if err := idx.graph.AddNode(0, id); err != nil {
			t.Fatal(err)
		}
	}
	for _, e := range [][2]uint32{{0, 1}, {0, 2}, {0, 3}, {0, 4}, {4, 5}} {
		if err := idx.graph.Link(0, e[0], e[1]); err != nil {
			t.Fatal(err)
		}
	}

	if err := idx.shrinkNeighbors(0, 0, 3); err != nil {
		t.Fatal(err)
	}
	if d := idx.graph.Degree(0, 0); d != 3 {
		t.Fatalf("degree of 0 = %d, want 3", d)
	}
	if idx.graph.Degree(0, 3) != 1 {
		t.Error("leaf 3 lost its only link")
	}
	if idx.graph.nodes[0].hasNeighbor(0, 4) {
		t.Error("edge 0-4 should have been pruned")
	}
}

func TestPruningReattachesWhenEveryNeighborIsALeaf(t *testing.T) {
	// A star of four leaves around node 0 with a bound of 3: every choice
	// isolates a leaf, so the farthest (4) is dropped and hooked to its
	// closest remaining sibling.
	idx := newTestIndex(t, 1, distance.Euclidean, 3, 10)
	for _, v := range [][]float32{{0}, {1}, {-1}, {2}, {-9}} {
		id, _ := idx.store.Add(v)
		idx.graph.AddNode(0, id)
	}
	for _, leaf := range []uint32{1, 2, 3, 4} {
		idx.graph.Link(0, 0, leaf)
	}

	if err := idx.shrinkNeighbors(0, 0, 3); err != nil {
		t.Fatal(err)
	}
	if idx.graph.nodes[0].hasNeighbor(0, 4) {
		t.Fatal("edge 0-4 should have been pruned")
	}
	if !idx.graph.nodes[4].hasNeighbor(0, 2) {
		t.Errorf("node 4 should be re-attached to 2, has %v", idx.graph.Neighbors(0, 4))
	}
	checkInvariants(t, idx)
}

func TestEntryPointOnTopLevel(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	// A large mL makes promotions frequent.
	idx := newTestIndex(t, 4, distance.Euclidean, 4, 20, WithML(2))
	for _, v := range randomVectors(rng, 200, 4) {
		idx.Insert(v)
		ep, ok := idx.EntryPoint()
		if !ok {
			t.Fatal("no entry point after insert")
		}
		lvl, _ := idx.graph.NodeLevel(ep)
		if lvl != idx.TopLevel() {
			t.Fatalf("entry point level %d, top level %d", lvl, idx.TopLevel())
		}
	}
	if idx.TopLevel() < 1 {
		t.Errorf("expected several levels with mL=2, got top level %d", idx.TopLevel())
	}
}

func TestTiesBreakByID(t *testing.T) {
	idx := newTestIndex(t, 2, distance.Euclidean, 4, 20)
	for _, v := range [][]float32{{5, 5}, {1, 1}, {1, 1}, {9, 9}, {1, 1}} {
		idx.Insert(v)
	}
	res, err := idx.Search([]float32{1, 1}, 3, 10)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint32{1, 2, 4}
	for i, r := range res {
		if r.ID != want[i] || r.Distance != 0 {
			t.Errorf("rank %d: got %+v, want id %d at distance 0", i, r, want[i])
		}
	}
}

func TestEfSearchBelowK(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	idx := newTestIndex(t, 4, distance.Euclidean, 8, 50)
	idx.InsertBatch(randomVectors(rng, 100, 4))

	res, err := idx.Search([]float32{0.5, 0.5, 0.5, 0.5}, 20, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 20 {
		t.Fatalf("efSearch below k should be raised to k, got %d results", len(res))
	}
	for i := 1; i < len(res); i++ {
		if types.Closer(types.Candidate{Id: res[i].ID, Distance: res[i].Distance},
			types.Candidate{Id: res[i-1].ID, Distance: res[i-1].Distance}) {
			t.Fatalf("results not sorted at %d", i)
		}
	}

	// efSearch <= 0 uses the configured default.
	res, err = idx.Search([]float32{0.5, 0.5, 0.5, 0.5}, 5, 0)
	if err != nil || len(res) != 5 {
		t.Fatalf("default efSearch: %d results, err %v", len(res), err)
	}
}

func TestFloat16Index(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	idx := newTestIndex(t, 8, distance.Euclidean, 8, 64, WithPrecision(distance.Float16))
	vectors := randomVectors(rng, 300, 8)
	ids, err := idx.InsertBatch(vectors)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 300 {
		t.Fatalf("inserted %d", len(ids))
	}
	got, _ := idx.VectorOf(ids[7])
	want := distance.RoundFloat16(vectors[7])
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("float16 vector %d differs at %d: %v vs %v", ids[7], i, got[i], want[i])
		}
	}
	// Every stored vector finds itself.
	res, err := idx.Search(want, 1, 300)
	if err != nil {
		t.Fatal(err)
	}
	if res[0].Distance != 0 {
		t.Errorf("nearest to a stored vector should be at distance 0, got %+v", res[0])
	}
	if err := idx.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestMetricsPublished(t *testing.T) {
	idx := newTestIndex(t, 2, distance.Euclidean, 4, 10, WithMetrics(true), WithName("metrics-test"))
	idx.InsertBatch([][]float32{{0, 0}, {1, 1}, {2, 2}})
	idx.Insert([]float32{3, 3})
	idx.Search([]float32{0, 0}, 1, 4)
	idx.Search([]float32{0, 0}, 1, 4)

	if got := testutil.ToFloat64(metrics.InsertsTotal.WithLabelValues("metrics-test")); got != 4 {
		t.Errorf("inserts_total = %v, want 4", got)
	}
	if got := testutil.ToFloat64(metrics.SearchesTotal.WithLabelValues("metrics-test")); got != 2 {
		t.Errorf("searches_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.TotalVectors.WithLabelValues("metrics-test")); got != 4 {
		t.Errorf("vectors_total = %v, want 4", got)
	}
	if got := testutil.ToFloat64(metrics.GraphTopLevel.WithLabelValues("metrics-test")); got != float64(idx.TopLevel()) {
		t.Errorf("graph_top_level = %v, want %d", got, idx.TopLevel())
	}
}

func TestLevelSampler(t *testing.T) {
	s := levelSampler{rng: rand.New(rand.NewSource(1)), ml: 1 / math.Log(16)}
	const n = 100000
	above := 0
	for i := 0; i < n; i++ {
		if s.next() >= 1 {
			above++
		}
	}
	// P(level >= 1) = 1/M.
	frac := float64(above) / n
	if frac < 0.05 || frac > 0.075 {
		t.Errorf("fraction above level 0 = %.4f, want about 0.0625", frac)
	}

	flat := levelSampler{rng: rand.New(rand.NewSource(1)), ml: 0}
	for i := 0; i < 1000; i++ {
		if flat.next() != 0 {
			t.Fatal("mL=0 must keep every node at level 0")
		}
	}
}

func TestSearchTrace(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	// mL = 1 gives a few levels over 500 nodes.
	idx := newTestIndex(t, 4, distance.Euclidean, 4, 30, WithML(1))
	if _, err := idx.InsertBatch(randomVectors(rng, 500, 4)); err != nil {
		t.Fatal(err)
	}
	query := randomVectors(rng, 1, 4)[0]

	res, tr, err := idx.SearchWithTrace(query, 5, 40)
	if err != nil {
		t.Fatal(err)
	}
	plain, st, _ := idx.SearchWithStats(query, 5, 40)
	if fmt.Sprint(res) != fmt.Sprint(plain) {
		t.Fatalf("traced search returned %v, plain search %v", res, plain)
	}
	if tr.Stats != st {
		t.Errorf("trace stats %+v, plain stats %+v", tr.Stats, st)
	}

	top := idx.TopLevel()
	if len(tr.Levels) != top+1 {
		t.Fatalf("trace has %d levels, want %d", len(tr.Levels), top+1)
	}
	ep, _ := idx.EntryPoint()
	if len(tr.Levels[0].Entry) != 1 || tr.Levels[0].Entry[0] != ep {
		t.Errorf("top level entry = %v, want [%d]", tr.Levels[0].Entry, ep)
	}

	contains := func(ids []uint32, id uint32) bool {
		for _, x := range ids {
			if x == id {
				return true
			}
		}
		return false
	}
	visited := 0
	for i, lt := range tr.Levels {
		if lt.Level != top-i {
			t.Fatalf("trace level %d is %d, want %d", i, lt.Level, top-i)
		}
		for _, id := range lt.Visited {
			if !idx.graph.Has(lt.Level, id) {
				t.Errorf("node %d visited at level %d but is not a member", id, lt.Level)
			}
		}
		// Each level starts where the one above ended up.
		if i > 0 {
			for _, id := range lt.Entry {
				if !contains(tr.Levels[i-1].Visited, id) {
					t.Errorf("entry %d at level %d was not visited at level %d", id, lt.Level, lt.Level+1)
				}
			}
		}
		visited += len(lt.Visited)
	}
	if visited != tr.Stats.Visited {
		t.Errorf("trace lists %d visits, stats count %d", visited, tr.Stats.Visited)
	}
	base := tr.Levels[len(tr.Levels)-1].Visited
	for _, r := range res {
		if !contains(base, r.ID) {
			t.Errorf("result %d never visited at level 0", r.ID)
		}
	}

	if _, _, err := idx.SearchWithTrace(query, 0, 40); !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}
