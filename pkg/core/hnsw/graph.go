package hnsw

import (
	"github.com/sanonone/kektorann/pkg/core/types"
)

// Graph is the layered adjacency structure: an arena of nodes indexed by
// their dense id, each holding one neighbor list per level it belongs to.
//
// Graph does no locking; Index serializes access to it.
type Graph struct {
	nodes      []*Node
	entryPoint uint32
	// topLevel is -1 while the graph is empty.
	topLevel int
}

// NewGraph creates an empty graph with room for capacity nodes.
func NewGraph(capacity int) *Graph {
	if capacity < 0 {
		capacity = 0
	}
	return &Graph{
		nodes:    make([]*Node, 0, capacity),
		topLevel: -1,
	}
}

// Len returns the number of nodes registered at level 0.
func (g *Graph) Len() int { return len(g.nodes) }

// TopLevel returns the highest populated level, or -1 for an empty graph.
func (g *Graph) TopLevel() int { return g.topLevel }

// EntryPoint returns the node searches start from. ok is false while the
// graph has no entry point.
func (g *Graph) EntryPoint() (id uint32, ok bool) {
	if g.topLevel < 0 {
		return 0, false
	}
	return g.entryPoint, true
}

// SetEntryPoint makes id the global entry point and raises the top level
// to the node's own level.
func (g *Graph) SetEntryPoint(id uint32) error {
	n, err := g.node(id)
	if err != nil {
		return err
	}
	g.entryPoint = id
	g.topLevel = n.Level()
	return nil
}

// Has reports whether id is registered at level.
func (g *Graph) Has(level int, id uint32) bool {
	if level < 0 || id >= uint32(len(g.nodes)) {
		return false
	}
	return level <= g.nodes[id].Level()
}

// NodeLevel returns the top level of id.
func (g *Graph) NodeLevel(id uint32) (int, error) {
	n, err := g.node(id)
	if err != nil {
		return 0, err
	}
	return n.Level(), nil
}

// AddNode registers id at level with an empty neighbor list. A node enters
// level 0 first, with the next dense id, and then climbs one level at a
// time, so a node present at level L is always present below it.
func (g *Graph) AddNode(level int, id uint32) error {
	if level < 0 {
		return types.InvalidArgumentf("negative level %d", level)
	}
	if level == 0 {
		if id != uint32(len(g.nodes)) {
			return types.InvalidArgumentf("node %d registered out of order, next id is %d", id, len(g.nodes))
		}
		g.nodes = append(g.nodes, &Node{Connections: make([][]uint32, 1, 2)})
		return nil
	}
	n, err := g.node(id)
	if err != nil {
		return types.InvalidArgumentf("node %d must be registered at level 0 before level %d", id, level)
	}
	if n.Level() != level-1 {
		return types.InvalidArgumentf("node %d is at level %d, cannot register it at level %d", id, n.Level(), level)
	}
	n.Connections = append(n.Connections, nil)
	return nil
}

// Neighbors returns the neighbor list of id at level, or nil if the node is
// absent there. The slice is owned by the graph and must not be modified.
func (g *Graph) Neighbors(level int, id uint32) []uint32 {
	if !g.Has(level, id) {
		return nil
	}
	return g.nodes[id].Connections[level]
}

// Degree returns the number of neighbors of id at level.
func (g *Graph) Degree(level int, id uint32) int {
	return len(g.Neighbors(level, id))
}

// Link adds the edge a-b at level in both directions. It is a no-op for an
// existing edge.
func (g *Graph) Link(level int, a, b uint32) error {
	na, nb, err := g.pair(level, a, b)
	if err != nil {
		return err
	}
	if !na.hasNeighbor(level, b) {
		na.Connections[level] = append(na.Connections[level], b)
	}
	if !nb.hasNeighbor(level, a) {
		nb.Connections[level] = append(nb.Connections[level], a)
	}
	return nil
}

// Unlink removes the edge a-b at level in both directions. It is a no-op
// when the edge does not exist.
func (g *Graph) Unlink(level int, a, b uint32) error {
	na, nb, err := g.pair(level, a, b)
	if err != nil {
		return err
	}
	na.removeNeighbor(level, b)
	nb.removeNeighbor(level, a)
	return nil
}

// LevelSize returns how many nodes are registered at level.
func (g *Graph) LevelSize(level int) int {
	if level < 0 {
		return 0
	}
	if level == 0 {
		return len(g.nodes)
	}
	count := 0
	for _, n := range g.nodes {
		if n.Level() >= level {
			count++
		}
	}
	return count
}

func (g *Graph) node(id uint32) (*Node, error) {
	if id >= uint32(len(g.nodes)) {
		return nil, types.NewNodeNotFound(id)
	}
	return g.nodes[id], nil
}

func (g *Graph) pair(level int, a, b uint32) (*Node, *Node, error) {
	if a == b {
		return nil, nil, types.InvalidArgumentf("self link on node %d", a)
	}
	na, err := g.node(a)
	if err != nil {
		return nil, nil, err
	}
	nb, err := g.node(b)
	if err != nil {
		return nil, nil, err
	}
	if level < 0 || level > na.Level() || level > nb.Level() {
		return nil, nil, types.InvalidArgumentf("nodes %d and %d are not both present at level %d", a, b, level)
	}
	return na, nb, nil
}
