package hnsw

// BitSet is a growable set of node ids, used as the visited set of a
// search. One bit per id keeps it small and cheap to clear.
type BitSet struct {
	buckets []uint64
}

func NewBitSet(initialCapacity uint32) *BitSet {
	numBuckets := (initialCapacity >> 6) + 1 // >> 6 == / 64
	return &BitSet{
		buckets: make([]uint64, numBuckets),
	}
}

func (bs *BitSet) grow(n uint32) {
	neededBuckets := (n >> 6) + 1
	if uint32(len(bs.buckets)) < neededBuckets {
		newBuckets := make([]uint64, neededBuckets)
		copy(newBuckets, bs.buckets)
		bs.buckets = newBuckets
	}
}

// Add marks n, growing the set if needed.
func (bs *BitSet) Add(n uint32) {
	bucketIndex := n >> 6
	if bucketIndex >= uint32(len(bs.buckets)) {
		bs.grow(n)
	}
	// n & 63 == n % 64
	bs.buckets[bucketIndex] |= 1 << (n & 63)
}

// Has reports whether n is marked. Ids beyond the capacity are unmarked.
func (bs *BitSet) Has(n uint32) bool {
	bucketIndex := n >> 6
	if bucketIndex >= uint32(len(bs.buckets)) {
		return false
	}
	return bs.buckets[bucketIndex]&(1<<(n&63)) != 0
}

// TestAndAdd marks n and reports whether it was already marked.
func (bs *BitSet) TestAndAdd(n uint32) bool {
	if bs.Has(n) {
		return true
	}
	bs.Add(n)
	return false
}

// Clear unmarks everything and keeps the allocated buckets.
func (bs *BitSet) Clear() {
	clear(bs.buckets)
}

// EnsureCapacity grows the set so that ids up to maxVal need no further
// allocation.
func (bs *BitSet) EnsureCapacity(maxVal uint32) {
	if uint32(len(bs.buckets)) < (maxVal>>6)+1 {
		bs.grow(maxVal)
	}
}

// Count returns the number of marked ids.
func (bs *BitSet) Count() int {
	n := 0
	for _, b := range bs.buckets {
		for ; b != 0; b &= b - 1 {
			n++
		}
	}
	return n
}
