// Package vectorstore holds the raw vectors of an index in a flat,
// append-only arena and hands out dense uint32 identifiers starting at 0.
//
// Vectors are stored at float32 or float16 precision. A Store is not safe
// for concurrent Add calls; reads may run concurrently with each other as
// long as no Add is in flight. The hnsw index enforces that with its own
// reader-writer lock.
package vectorstore

import (
	"math"
	"sync"

	"github.com/sanonone/kektorann/pkg/core/distance"
	"github.com/sanonone/kektorann/pkg/core/types"
)

// Reader is the read-only view of a Store shared by the index and the
// exact-search oracle.
type Reader interface {
	Len() int
	Dimension() int
	Get(id uint32) ([]float32, error)
	Distance(fn distance.DistanceFuncF32, query []float32, id uint32) (float64, error)
	Between(fn distance.DistanceFuncF32, a, b uint32) (float64, error)
}

// Store is an append-only vector arena with a fixed dimension.
type Store struct {
	dim       int
	precision distance.PrecisionType
	count     uint32

	// Exactly one of the two slabs is used, depending on precision.
	// Vector i lives at [i*dim, (i+1)*dim).
	f32 []float32
	f16 []uint16

	// decodePool lends float32 buffers for reading float16 vectors.
	decodePool sync.Pool
}

// New creates an empty store. capacity is a hint for the number of vectors.
func New(dimension int, precision distance.PrecisionType, capacity int) (*Store, error) {
	if dimension < 1 {
		return nil, types.InvalidArgumentf("dimension must be at least 1, got %d", dimension)
	}
	if precision == "" {
		precision = distance.Float32
	}
	if _, err := distance.ParsePrecision(string(precision)); err != nil {
		return nil, err
	}
	if capacity < 0 {
		capacity = 0
	}

	s := &Store{dim: dimension, precision: precision}
	switch precision {
	case distance.Float32:
		s.f32 = make([]float32, 0, capacity*dimension)
	case distance.Float16:
		s.f16 = make([]uint16, 0, capacity*dimension)
	}
	s.decodePool = sync.Pool{
		New: func() any {
			buf := make([]float32, dimension)
			return &buf
		},
	}
	return s, nil
}

// maxFloat16 is the largest finite half-precision value.
const maxFloat16 = 65504

// CheckFinite rejects vectors with NaN or infinite components. Distances
// to such vectors cannot be ordered.
func CheckFinite(vector []float32) error {
	for i, x := range vector {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return types.InvalidArgumentf("component %d is %v", i, x)
		}
	}
	return nil
}

// Check reports whether Add would accept vector: the length must match,
// every component must be finite, and a Float16 store also needs every
// component within half-precision range.
func (s *Store) Check(vector []float32) error {
	if len(vector) != s.dim {
		return types.NewDimensionMismatch(s.dim, len(vector))
	}
	if err := CheckFinite(vector); err != nil {
		return err
	}
	if s.precision == distance.Float16 {
		for i, x := range vector {
			if math.Abs(float64(x)) > maxFloat16 {
				return types.InvalidArgumentf("component %d (%v) overflows float16", i, x)
			}
		}
	}
	return nil
}

// Add appends a copy of vector and returns its id. A vector rejected by
// Check leaves the store unchanged.
func (s *Store) Add(vector []float32) (uint32, error) {
	if err := s.Check(vector); err != nil {
		return 0, err
	}
	id := s.count
	switch s.precision {
	case distance.Float16:
		s.f16 = distance.ToFloat16(s.f16, vector)
	default:
		s.f32 = append(s.f32, vector...)
	}
	s.count++
	return id, nil
}

// Get returns a copy of the stored vector. For float16 stores this is the
// half-precision value widened back to float32.
func (s *Store) Get(id uint32) ([]float32, error) {
	if id >= s.count {
		return nil, types.NewNodeNotFound(id)
	}
	out := make([]float32, s.dim)
	lo, hi := s.bounds(id)
	switch s.precision {
	case distance.Float16:
		distance.FromFloat16(out, s.f16[lo:hi])
	default:
		copy(out, s.f32[lo:hi])
	}
	return out, nil
}

// Distance compares query against the stored vector id.
func (s *Store) Distance(fn distance.DistanceFuncF32, query []float32, id uint32) (float64, error) {
	if id >= s.count {
		return 0, types.NewNodeNotFound(id)
	}
	if s.precision != distance.Float16 {
		return fn(query, s.view(id))
	}
	buf := s.decodePool.Get().(*[]float32)
	defer s.decodePool.Put(buf)
	return fn(query, s.decode(id, *buf))
}

// Between compares two stored vectors.
func (s *Store) Between(fn distance.DistanceFuncF32, a, b uint32) (float64, error) {
	if a >= s.count {
		return 0, types.NewNodeNotFound(a)
	}
	if b >= s.count {
		return 0, types.NewNodeNotFound(b)
	}
	if s.precision != distance.Float16 {
		return fn(s.view(a), s.view(b))
	}
	bufA := s.decodePool.Get().(*[]float32)
	bufB := s.decodePool.Get().(*[]float32)
	defer s.decodePool.Put(bufA)
	defer s.decodePool.Put(bufB)
	return fn(s.decode(a, *bufA), s.decode(b, *bufB))
}

// Len returns the number of stored vectors.
func (s *Store) Len() int { return int(s.count) }

// Dimension returns the fixed vector length.
func (s *Store) Dimension() int { return s.dim }

// Precision returns the storage precision.
func (s *Store) Precision() distance.PrecisionType { return s.precision }

// Bytes reports the size of the vector slab in bytes.
func (s *Store) Bytes() int {
	if s.precision == distance.Float16 {
		return len(s.f16) * 2
	}
	return len(s.f32) * 4
}

func (s *Store) bounds(id uint32) (int, int) {
	lo := int(id) * s.dim
	return lo, lo + s.dim
}

// view aliases the float32 slab. Callers must not retain or modify it.
func (s *Store) view(id uint32) []float32 {
	lo, hi := s.bounds(id)
	return s.f32[lo:hi:hi]
}

func (s *Store) decode(id uint32, dst []float32) []float32 {
	lo, hi := s.bounds(id)
	return distance.FromFloat16(dst, s.f16[lo:hi])
}
