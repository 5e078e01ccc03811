package hnsw

import (
	"math"
	"math/rand"
)

// levelSampler draws node levels from an exponentially decaying
// distribution: P(level >= l) = exp(-l/mL).
type levelSampler struct {
	rng *rand.Rand
	ml  float64
}

// next returns floor(-ln(U) * mL) with U uniform in (0,1).
func (s *levelSampler) next() int {
	u := s.rng.Float64()
	for u == 0 {
		u = s.rng.Float64()
	}
	return int(math.Floor(-math.Log(u) * s.ml))
}
