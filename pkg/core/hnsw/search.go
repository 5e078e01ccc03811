package hnsw

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/sanonone/kektorann/pkg/core/types"
	"github.com/sanonone/kektorann/pkg/core/vectorstore"
	"golang.org/x/sync/errgroup"
)

// SearchStats counts the work done by one search.
type SearchStats struct {
	// DistanceEvaluations is the number of metric calls.
	DistanceEvaluations int
	// Visited is the number of node visits, summed over levels.
	Visited int
}

// LevelTrace is the part of a search spent on one level.
type LevelTrace struct {
	Level int
	// Entry holds the ids the search started from at this level.
	Entry []uint32
	// Visited lists every node evaluated at this level in visit order,
	// entry points included.
	Visited []uint32
}

// SearchTrace records the path of one search, top level first.
type SearchTrace struct {
	Levels []LevelTrace
	Stats  SearchStats
}

// Search returns up to k nearest neighbors of query, closest first, with
// ties broken by ascending id. efSearch is the size of the result pool
// explored at level 0: values below k are raised to k, and values <= 0
// use the configured default.
func (h *Index) Search(query []float32, k int, efSearch int) ([]types.SearchResult, error) {
	res, _, err := h.SearchWithStats(query, k, efSearch)
	return res, err
}

// SearchWithStats is Search plus the amount of work it took.
func (h *Index) SearchWithStats(query []float32, k int, efSearch int) ([]types.SearchResult, SearchStats, error) {
	start := time.Now()
	var st SearchStats

	h.mu.RLock()
	res, err := h.searchUnlocked(query, k, efSearch, &st, nil)
	h.mu.RUnlock()

	if err != nil {
		return nil, st, err
	}
	h.observeSearch(start, st)
	return res, st, nil
}

// SearchWithTrace is Search plus the entry points and visited nodes of
// every level it went through.
func (h *Index) SearchWithTrace(query []float32, k int, efSearch int) ([]types.SearchResult, SearchTrace, error) {
	start := time.Now()
	var tr SearchTrace

	h.mu.RLock()
	res, err := h.searchUnlocked(query, k, efSearch, &tr.Stats, &tr)
	h.mu.RUnlock()

	if err != nil {
		return nil, SearchTrace{}, err
	}
	h.observeSearch(start, tr.Stats)
	return res, tr, nil
}

// SearchBatch runs one search per query on up to workers goroutines and
// returns the results in query order. workers <= 0 uses GOMAXPROCS. The
// context is checked before each query; a running search is not
// interrupted.
func (h *Index) SearchBatch(ctx context.Context, queries [][]float32, k int, efSearch int, workers int) ([][]types.SearchResult, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	out := make([][]types.SearchResult, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, q := range queries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := h.Search(q, k, efSearch)
			if err != nil {
				return fmt.Errorf("query %d: %w", i, err)
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// searchUnlocked must be called under RLock.
// tr may be nil.
func (h *Index) searchUnlocked(query []float32, k int, efSearch int, st *SearchStats, tr *SearchTrace) ([]types.SearchResult, error) {
	if k <= 0 {
		return nil, types.InvalidArgumentf("k must be positive, got %d", k)
	}
	if len(query) != h.cfg.Dimension {
		return nil, types.NewDimensionMismatch(h.cfg.Dimension, len(query))
	}
	if err := vectorstore.CheckFinite(query); err != nil {
		return nil, err
	}
	entry, ok := h.graph.EntryPoint()
	if !ok {
		return nil, types.ErrEmptyIndex
	}

	ef := efSearch
	if ef <= 0 {
		ef = h.cfg.EfSearch
	}
	if ef < k {
		ef = k
	}

	d, err := h.store.Distance(h.distFn, query, entry)
	if err != nil {
		return nil, err
	}
	st.DistanceEvaluations++
	eps := []types.Candidate{{Id: entry, Distance: d}}

	for l := h.graph.TopLevel(); l > 0; l-- {
		eps, err = h.searchLayer(query, eps, 1, l, st, tr)
		if err != nil {
			return nil, err
		}
	}

	found, err := h.searchLayer(query, eps, ef, 0, st, tr)
	if err != nil {
		return nil, err
	}
	if len(found) > k {
		found = found[:k]
	}

	results := make([]types.SearchResult, len(found))
	for i, c := range found {
		results[i] = types.SearchResult{ID: c.Id, Distance: c.Distance}
	}
	return results, nil
}

// searchLayer runs a bounded best-first search at one level, starting from
// the entry candidates (whose distances are already known), and returns up
// to ef candidates sorted closest first.
//
// Every node is evaluated at most once per call, so a call costs at most
// as many distance evaluations as the level has nodes. When tr is not nil
// the level's entry points and visits are appended to it.
func (h *Index) searchLayer(query []float32, entry []types.Candidate, ef int, level int, st *SearchStats, tr *SearchTrace) ([]types.Candidate, error) {
	visited := h.visitedPool.Get().(*BitSet)
	candidates := h.minHeapPool.Get().(*minHeap)
	results := h.maxHeapPool.Get().(*maxHeap)
	candidates.reset()
	results.reset()

	defer func() {
		visited.Clear()
		h.visitedPool.Put(visited)
		h.minHeapPool.Put(candidates)
		h.maxHeapPool.Put(results)
	}()

	visited.EnsureCapacity(uint32(h.graph.Len()))

	var lt *LevelTrace
	if tr != nil {
		tr.Levels = append(tr.Levels, LevelTrace{Level: level})
		lt = &tr.Levels[len(tr.Levels)-1]
	}

	for _, e := range entry {
		if lt != nil {
			lt.Entry = append(lt.Entry, e.Id)
		}
		if visited.TestAndAdd(e.Id) {
			continue
		}
		st.Visited++
		if lt != nil {
			lt.Visited = append(lt.Visited, e.Id)
		}
		candidates.push(e)
		results.push(e)
		if results.Len() > ef {
			results.pop()
		}
	}

	for candidates.Len() > 0 {
		current := candidates.pop()

		// Nothing left on the frontier can improve a full result set.
		if results.Len() >= ef && types.Closer(results.peek(), current) {
			break
		}

		for _, neighborID := range h.graph.Neighbors(level, current.Id) {
			if visited.TestAndAdd(neighborID) {
				continue
			}
			st.Visited++
			if lt != nil {
				lt.Visited = append(lt.Visited, neighborID)
			}

			d, err := h.store.Distance(h.distFn, query, neighborID)
			if err != nil {
				return nil, err
			}
			st.DistanceEvaluations++

			c := types.Candidate{Id: neighborID, Distance: d}
			if results.Len() < ef || types.Closer(c, results.peek()) {
				candidates.push(c)
				results.push(c)
				if results.Len() > ef {
					results.pop()
				}
			}
		}
	}

	return results.drainAscending(), nil
}
