// Package hnsw implements the Hierarchical Navigable Small World graph for
// approximate nearest neighbor search.
//
// This file defines Node, the per-vector entry of the graph arena.
package hnsw

// Node holds the adjacency of one vector across the levels it belongs to.
// The vector itself lives in the vector store under the same id.
type Node struct {
	// Connections is indexed by level. Connections[0] holds the neighbors at
	// the base layer. The node is a member of levels 0..len(Connections)-1,
	// so membership nesting holds by construction.
	// Each list keeps insertion order, not distance order.
	Connections [][]uint32
}

// Level returns the highest level the node belongs to.
func (n *Node) Level() int { return len(n.Connections) - 1 }

func (n *Node) hasNeighbor(level int, id uint32) bool {
	for _, c := range n.Connections[level] {
		if c == id {
			return true
		}
	}
	return false
}

// removeNeighbor drops id from the list at level, keeping the order of the
// remaining entries. It reports whether id was present.
func (n *Node) removeNeighbor(level int, id uint32) bool {
	list := n.Connections[level]
	for i, c := range list {
		if c == id {
			copy(list[i:], list[i+1:])
			n.Connections[level] = list[:len(list)-1]
			return true
		}
	}
	return false
}
