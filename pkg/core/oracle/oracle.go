// Package oracle provides exact k-nearest-neighbor search by linear scan.
//
// It is the ground truth approximate results are measured against: tests
// and the bench tool use it to compute recall. It reads the same vector
// store and metric as the HNSW index but shares no code with it.
package oracle

import (
	"github.com/sanonone/kektorann/pkg/core/distance"
	"github.com/sanonone/kektorann/pkg/core/types"
	"github.com/sanonone/kektorann/pkg/core/vectorstore"
	"github.com/tidwall/btree"
)

// Search compares query with every stored vector and returns the k closest,
// ordered by distance and then by id.
func Search(store vectorstore.Reader, fn distance.DistanceFuncF32, query []float32, k int) ([]types.SearchResult, error) {
	if k <= 0 {
		return nil, types.InvalidArgumentf("k must be positive, got %d", k)
	}
	if len(query) != store.Dimension() {
		return nil, types.NewDimensionMismatch(store.Dimension(), len(query))
	}
	n := store.Len()
	if n == 0 {
		return nil, types.ErrEmptyIndex
	}

	// The tree holds the best k seen so far; its max is the one to evict.
	best := btree.NewBTreeG[types.Candidate](types.Closer)
	for i := 0; i < n; i++ {
		id := uint32(i)
		d, err := store.Distance(fn, query, id)
		if err != nil {
			return nil, err
		}
		c := types.Candidate{Id: id, Distance: d}
		if best.Len() < k {
			best.Set(c)
			continue
		}
		if worst, _ := best.Max(); types.Closer(c, worst) {
			best.Set(c)
			best.PopMax()
		}
	}

	results := make([]types.SearchResult, 0, best.Len())
	best.Scan(func(c types.Candidate) bool {
		results = append(results, types.SearchResult{ID: c.Id, Distance: c.Distance})
		return true
	})
	return results, nil
}

// Recall returns the fraction of exact that also appears in approx. An empty
// exact set has recall 1.
func Recall(approx, exact []types.SearchResult) float64 {
	if len(exact) == 0 {
		return 1
	}
	want := make(map[uint32]struct{}, len(exact))
	for _, r := range exact {
		want[r.ID] = struct{}{}
	}
	hits := 0
	for _, r := range approx {
		if _, ok := want[r.ID]; ok {
			hits++
			delete(want, r.ID)
		}
	}
	return float64(hits) / float64(len(exact))
}
