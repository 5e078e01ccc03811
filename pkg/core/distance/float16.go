package distance

import "github.com/x448/float16"

// ToFloat16 packs v into half-precision bit patterns, appending to dst.
func ToFloat16(dst []uint16, v []float32) []uint16 {
	for _, x := range v {
		dst = append(dst, float16.Fromfloat32(x).Bits())
	}
	return dst
}

// FromFloat16 unpacks half-precision bit patterns into dst, which must have
// len(src) capacity or more.
func FromFloat16(dst []float32, src []uint16) []float32 {
	dst = dst[:len(src)]
	for i, b := range src {
		dst[i] = float16.Frombits(b).Float32()
	}
	return dst
}

// RoundFloat16 returns v rounded through half precision, which is what a
// Float16 store will hand back for it.
func RoundFloat16(v []float32) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float16.Fromfloat32(x).Float32()
	}
	return out
}
