package hnsw

import (
	"github.com/sanonone/kektorann/pkg/core/types"
)

// selectNeighbors picks up to m neighbors for a new node out of candidates,
// which must be sorted closest first. The result is a new slice.
func (h *Index) selectNeighbors(candidates []types.Candidate, m int) ([]types.Candidate, error) {
	if h.cfg.Selection == SelectHeuristic {
		return h.selectNeighborsHeuristic(candidates, m)
	}
	return selectNeighborsSimple(candidates, m), nil
}

// selectNeighborsSimple keeps the m closest candidates.
func selectNeighborsSimple(candidates []types.Candidate, m int) []types.Candidate {
	n := min(m, len(candidates))
	out := make([]types.Candidate, n)
	copy(out, candidates[:n])
	return out
}

// selectNeighborsHeuristic walks the candidates closest first and keeps one
// only if it is closer to the new node than to every neighbor kept so far.
// With KeepPruned the remaining slots are filled with the closest discarded
// candidates, which keeps sparse regions from ending up with weakly
// connected nodes.
func (h *Index) selectNeighborsHeuristic(candidates []types.Candidate, m int) ([]types.Candidate, error) {
	results := make([]types.Candidate, 0, m)
	if len(candidates) <= m && h.cfg.KeepPruned {
		// Back-filling would restore every candidate anyway.
		return append(results, candidates...), nil
	}

	discarded := make([]types.Candidate, 0, len(candidates))
	for _, e := range candidates {
		if len(results) >= m {
			break
		}
		good := true
		for _, r := range results {
			d, err := h.store.Between(h.distFn, e.Id, r.Id)
			if err != nil {
				return nil, err
			}
			if d < e.Distance {
				good = false
				break
			}
		}
		if good {
			results = append(results, e)
		} else {
			discarded = append(discarded, e)
		}
	}

	if h.cfg.KeepPruned {
		for _, c := range discarded {
			if len(results) >= m {
				break
			}
			results = append(results, c)
		}
	}
	return results, nil
}

// shrinkNeighbors enforces the degree bound on id at level by dropping its
// farthest edges, removed on both sides. Among equally distant neighbors
// the one added earliest goes first. A neighbor for which id is the last
// link at level is passed over, so pruning never isolates a node. If every
// neighbor is in that state the farthest is dropped anyway and re-attached
// to the closest of id's remaining neighbors that has room.
func (h *Index) shrinkNeighbors(level int, id uint32, bound int) error {
	for h.graph.Degree(level, id) > bound {
		neighbors := h.graph.Neighbors(level, id)
		dists := make([]float64, len(neighbors))
		for i, nID := range neighbors {
			d, err := h.store.Between(h.distFn, id, nID)
			if err != nil {
				return err
			}
			dists[i] = d
		}

		worst, fallback := -1, -1
		for i, nID := range neighbors {
			if fallback == -1 || dists[i] > dists[fallback] {
				fallback = i
			}
			if h.graph.Degree(level, nID) < 2 {
				continue
			}
			if worst == -1 || dists[i] > dists[worst] {
				worst = i
			}
		}

		if worst != -1 {
			if err := h.graph.Unlink(level, id, neighbors[worst]); err != nil {
				return err
			}
			continue
		}

		victim := neighbors[fallback]
		if err := h.graph.Unlink(level, id, victim); err != nil {
			return err
		}
		if err := h.reattach(level, victim, id, bound); err != nil {
			return err
		}
	}
	return nil
}

// reattach links an isolated node to the closest neighbor of from whose
// degree is below bound. It does nothing when no such neighbor exists.
func (h *Index) reattach(level int, orphan, from uint32, bound int) error {
	best, bestDist := uint32(0), -1.0
	for _, nID := range h.graph.Neighbors(level, from) {
		if nID == orphan || h.graph.Degree(level, nID) >= bound {
			continue
		}
		d, err := h.store.Between(h.distFn, orphan, nID)
		if err != nil {
			return err
		}
		if bestDist < 0 || d < bestDist || (d == bestDist && nID < best) {
			best, bestDist = nID, d
		}
	}
	if bestDist < 0 {
		h.logger.Debug("hnsw pruning left a node without links", "id", orphan, "level", level)
		return nil
	}
	return h.graph.Link(level, orphan, best)
}
