// Package hnsw provides the implementation of the Hierarchical Navigable Small World
// graph algorithm for efficient approximate nearest neighbor search.
//
// This file defines the min-heap and max-heap used during graph traversal and
// construction. Both are built on container/heap and order candidates with
// types.Closer, so equal distances fall back to the node id.
package hnsw

import (
	"container/heap"

	"github.com/sanonone/kektorann/pkg/core/types"
)

// minHeap keeps the closest candidate on top. It holds the frontier of a
// search, so the most promising node is always expanded next.
type minHeap []types.Candidate

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return types.Closer(h[i], h[j]) }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *minHeap) Push(x any) { *h = append(*h, x.(types.Candidate)) }

func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// push and pop are the typed entry points; they avoid spelling out the
// heap package and the type assertion at every call site.
func (h *minHeap) push(c types.Candidate) { heap.Push(h, c) }
func (h *minHeap) pop() types.Candidate   { return heap.Pop(h).(types.Candidate) }
func (h minHeap) peek() types.Candidate   { return h[0] }
func (h *minHeap) reset()                 { *h = (*h)[:0] }

// maxHeap keeps the farthest candidate on top. It holds the best results
// found so far; the root is the worst of them and is evicted first when a
// closer node shows up.
type maxHeap []types.Candidate

func (h maxHeap) Len() int           { return len(h) }
func (h maxHeap) Less(i, j int) bool { return types.Closer(h[j], h[i]) }
func (h maxHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *maxHeap) Push(x any) { *h = append(*h, x.(types.Candidate)) }

func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func (h *maxHeap) push(c types.Candidate) { heap.Push(h, c) }
func (h *maxHeap) pop() types.Candidate   { return heap.Pop(h).(types.Candidate) }
func (h maxHeap) peek() types.Candidate   { return h[0] }
func (h *maxHeap) reset()                 { *h = (*h)[:0] }

// drainAscending empties the heap into a slice sorted closest first.
func (h *maxHeap) drainAscending() []types.Candidate {
	out := make([]types.Candidate, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = h.pop()
	}
	return out
}

// newMinHeap creates a new min-heap with a specified initial capacity.
func newMinHeap(capacity int) *minHeap {
	h := make(minHeap, 0, capacity)
	return &h
}

// newMaxHeap creates a new max-heap with a specified initial capacity.
func newMaxHeap(capacity int) *maxHeap {
	h := make(maxHeap, 0, capacity)
	return &h
}
