package hnsw

import (
	"fmt"
	"time"

	"github.com/sanonone/kektorann/pkg/core/types"
)

// Insert adds a vector and returns its id. Ids are dense and start at 0.
// A vector of the wrong length fails with types.ErrDimensionMismatch, one
// with NaN or infinite components with types.ErrInvalidArgument, and
// either leaves the index untouched; once validated, insertion always completes.
func (h *Index) Insert(vector []float32) (uint32, error) {
	start := time.Now()

	h.mu.Lock()
	id, err := h.insertUnlocked(vector)
	count, top := h.graph.Len(), h.graph.TopLevel()
	h.mu.Unlock()

	if err != nil {
		return 0, err
	}
	h.observeInsert(start, 1, count, top)
	return id, nil
}

// InsertBatch inserts vectors in order under a single lock. Every vector is
// checked before the first one is inserted, so a bad batch changes nothing.
func (h *Index) InsertBatch(vectors [][]float32) ([]uint32, error) {
	for i, v := range vectors {
		if err := h.store.Check(v); err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
	}
	start := time.Now()

	h.mu.Lock()
	ids := make([]uint32, 0, len(vectors))
	var err error
	for _, v := range vectors {
		var id uint32
		id, err = h.insertUnlocked(v)
		if err != nil {
			break
		}
		ids = append(ids, id)
	}
	count, top := h.graph.Len(), h.graph.TopLevel()
	h.mu.Unlock()

	if err != nil {
		return ids, err
	}
	h.observeInsert(start, len(ids), count, top)
	return ids, nil
}

// insertUnlocked runs the HNSW insertion. Must be called under Lock.
func (h *Index) insertUnlocked(vector []float32) (uint32, error) {
	id, err := h.store.Add(vector)
	if err != nil {
		return 0, err
	}

	level := h.levels.next()
	for l := 0; l <= level; l++ {
		if err := h.graph.AddNode(l, id); err != nil {
			return 0, fmt.Errorf("hnsw: registering node %d: %w", id, err)
		}
	}

	entry, ok := h.graph.EntryPoint()
	if !ok {
		// First node.
		h.logger.Debug("hnsw entry point set", "id", id, "level", level)
		return id, h.graph.SetEntryPoint(id)
	}
	top := h.graph.TopLevel()

	var st SearchStats
	d, err := h.store.Distance(h.distFn, vector, entry)
	if err != nil {
		return 0, err
	}
	st.DistanceEvaluations++
	eps := []types.Candidate{{Id: entry, Distance: d}}

	// Greedy descent through the levels the new node does not reach.
	for l := top; l > level; l-- {
		eps, err = h.searchLayer(vector, eps, 1, l, &st, nil)
		if err != nil {
			return 0, err
		}
	}

	for l := min(level, top); l >= 0; l-- {
		found, err := h.searchLayer(vector, eps, h.cfg.EfConstruction, l, &st, nil)
		if err != nil {
			return 0, err
		}

		bound := h.degreeBound(l)
		selected, err := h.selectNeighbors(found, bound)
		if err != nil {
			return 0, err
		}
		for _, c := range selected {
			if err := h.graph.Link(l, id, c.Id); err != nil {
				return 0, err
			}
		}
		for _, c := range selected {
			if err := h.shrinkNeighbors(l, c.Id, bound); err != nil {
				return 0, err
			}
		}
		eps = found
	}

	if level > top {
		if err := h.graph.SetEntryPoint(id); err != nil {
			return 0, err
		}
		h.logger.Debug("hnsw entry point promoted", "id", id, "level", level, "previous_level", top)
	}
	return id, nil
}
