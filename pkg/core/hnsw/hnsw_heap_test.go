package hnsw

import (
	"container/heap"
	"testing"

	"github.com/sanonone/kektorann/pkg/core/types"
)

func TestMinHeapCorrectness(t *testing.T) {
	candidates := []types.Candidate{
		{Id: 1, Distance: 5.0},
		{Id: 4, Distance: 2.0},
		{Id: 3, Distance: 8.0},
		{Id: 2, Distance: 2.0}, // same distance as 4, must come out first
	}

	h := new(minHeap)
	for _, c := range candidates {
		heap.Push(h, c)
	}

	expectedOrder := []uint32{2, 4, 1, 3}
	for i, want := range expectedOrder {
		c := heap.Pop(h).(types.Candidate)
		if c.Id != want {
			t.Errorf("MinHeap Pop %d: got id %d, want %d", i, c.Id, want)
		}
	}
}

func TestMaxHeapCorrectness(t *testing.T) {
	candidates := []types.Candidate{
		{Id: 1, Distance: 5.0},
		{Id: 2, Distance: 8.0},
		{Id: 3, Distance: 2.0},
		{Id: 4, Distance: 8.0},
	}

	h := newMaxHeap(4)
	for _, c := range candidates {
		h.push(c)
	}

	// The worst result sits on top; among equals the higher id is worse.
	if top := h.peek(); top.Id != 4 {
		t.Fatalf("MaxHeap peek: got id %d, want 4", top.Id)
	}

	sorted := h.drainAscending()
	expectedOrder := []uint32{3, 1, 2, 4}
	for i, want := range expectedOrder {
		if sorted[i].Id != want {
			t.Errorf("drainAscending[%d]: got id %d, want %d", i, sorted[i].Id, want)
		}
	}
	if h.Len() != 0 {
		t.Errorf("heap should be empty after drain, has %d", h.Len())
	}
}
