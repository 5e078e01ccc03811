package hnsw

import (
	"errors"
	"fmt"
)

// ErrInvariantViolation is returned by Validate when the graph is
// structurally broken.
var ErrInvariantViolation = errors.New("hnsw: graph invariant violated")

// LevelStats describes one level of the graph.
type LevelStats struct {
	Level     int     `json:"level"`
	Nodes     int     `json:"nodes"`
	Edges     int     `json:"edges"`
	MaxDegree int     `json:"max_degree"`
	AvgDegree float64 `json:"avg_degree"`
	// Components is the number of connected components at this level.
	// A healthy graph has exactly one.
	Components int `json:"components"`
}

// GraphStats describes the shape of the whole graph.
type GraphStats struct {
	Nodes      int          `json:"nodes"`
	TopLevel   int          `json:"top_level"`
	EntryPoint uint32       `json:"entry_point"`
	Levels     []LevelStats `json:"levels"`
}

// Connected reports whether every level forms a single component.
func (s GraphStats) Connected() bool {
	for _, l := range s.Levels {
		if l.Components > 1 {
			return false
		}
	}
	return true
}

// Stats walks the graph and reports per-level sizes, degrees and
// connectivity.
func (h *Index) Stats() GraphStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	g := h.graph
	st := GraphStats{Nodes: g.Len(), TopLevel: g.TopLevel()}
	st.EntryPoint, _ = g.EntryPoint()

	for l := 0; l <= g.TopLevel(); l++ {
		ls := LevelStats{Level: l}
		for _, n := range g.nodes {
			if n.Level() < l {
				continue
			}
			ls.Nodes++
			deg := len(n.Connections[l])
			ls.Edges += deg
			ls.MaxDegree = max(ls.MaxDegree, deg)
		}
		if ls.Nodes > 0 {
			ls.AvgDegree = float64(ls.Edges) / float64(ls.Nodes)
		}
		ls.Edges /= 2
		ls.Components = h.countComponents(l)
		st.Levels = append(st.Levels, ls)
	}
	return st
}

// countComponents runs a breadth-first walk from every unvisited member of
// level.
func (h *Index) countComponents(level int) int {
	g := h.graph
	seen := NewBitSet(uint32(g.Len()))
	queue := make([]uint32, 0, 64)
	components := 0
	for id := range g.nodes {
		start := uint32(id)
		if !g.Has(level, start) || seen.Has(start) {
			continue
		}
		components++
		seen.Add(start)
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, nb := range g.Neighbors(level, cur) {
				if !seen.TestAndAdd(nb) {
					queue = append(queue, nb)
				}
			}
		}
	}
	return components
}

// Validate checks the structural invariants: every edge points to a node
// present at that level, edges are mutual, lists hold no self loops or
// duplicates, degrees respect their bound, and the entry point sits on
// the top level. Connectivity is reported by Stats instead, since the
// algorithm makes it very likely but does not guarantee it.
func (h *Index) Validate() error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	g := h.graph
	if g.Len() != h.store.Len() {
		return fmt.Errorf("%w: graph has %d nodes, store has %d vectors", ErrInvariantViolation, g.Len(), h.store.Len())
	}
	if g.Len() == 0 {
		if g.TopLevel() != -1 {
			return fmt.Errorf("%w: empty graph with top level %d", ErrInvariantViolation, g.TopLevel())
		}
		return nil
	}

	maxLevel := -1
	for _, n := range g.nodes {
		maxLevel = max(maxLevel, n.Level())
	}
	if maxLevel != g.TopLevel() {
		return fmt.Errorf("%w: top level is %d but highest node level is %d", ErrInvariantViolation, g.TopLevel(), maxLevel)
	}
	ep, _ := g.EntryPoint()
	if lvl, _ := g.NodeLevel(ep); lvl != g.TopLevel() {
		return fmt.Errorf("%w: entry point %d is at level %d, top level is %d", ErrInvariantViolation, ep, lvl, g.TopLevel())
	}

	for i, n := range g.nodes {
		id := uint32(i)
		if n.Level() < 0 {
			return fmt.Errorf("%w: node %d has no level 0 entry", ErrInvariantViolation, id)
		}
		for l, list := range n.Connections {
			if len(list) > h.degreeBound(l) {
				return fmt.Errorf("%w: node %d has degree %d at level %d, bound is %d", ErrInvariantViolation, id, len(list), l, h.degreeBound(l))
			}
			for j, nb := range list {
				if nb == id {
					return fmt.Errorf("%w: node %d links to itself at level %d", ErrInvariantViolation, id, l)
				}
				if !g.Has(l, nb) {
					return fmt.Errorf("%w: node %d links to %d, which is absent from level %d", ErrInvariantViolation, id, nb, l)
				}
				for _, other := range list[:j] {
					if other == nb {
						return fmt.Errorf("%w: node %d lists %d twice at level %d", ErrInvariantViolation, id, nb, l)
					}
				}
				if !g.nodes[nb].hasNeighbor(l, id) {
					return fmt.Errorf("%w: edge %d->%d at level %d has no reverse", ErrInvariantViolation, id, nb, l)
				}
			}
		}
	}
	return nil
}
