// Package distance provides functions for calculating vector distances.
// It supports the Euclidean, Cosine and DotProduct metrics over float32
// vectors, plus float16 conversion helpers for half-precision storage.
//
// The package uses runtime CPU detection to pick between pure Go loops and
// the Gonum BLAS kernels, which dispatch to SIMD internally.
package distance

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/klauspost/cpuid/v2"
	"github.com/sanonone/kektorann/pkg/core/types"
	"gonum.org/v1/gonum/blas/gonum"
)

func init() {
	if cpuid.CPU.Has(cpuid.AVX2) || cpuid.CPU.Has(cpuid.ASIMD) {
		float32Funcs[Euclidean] = squaredEuclideanGonum
		float32Funcs[Cosine] = cosineDistanceGonum
		float32Funcs[DotProduct] = dotProductAsDistanceGonum
		engine = "gonum"
	}
	slog.Debug("kektorann compute engine selected",
		"engine", engine,
		"cpu", cpuid.CPU.BrandName,
		"avx2", cpuid.CPU.Has(cpuid.AVX2),
		"asimd", cpuid.CPU.Has(cpuid.ASIMD))
}

// --- Public Types ---

// DistanceMetric defines the type of distance calculation to perform.
type DistanceMetric string

// PrecisionType defines the data type used for vector storage.
type PrecisionType string

const (
	// Euclidean represents the squared Euclidean distance metric.
	Euclidean DistanceMetric = "euclidean"
	// Cosine represents the cosine distance metric (1 - cosine similarity).
	Cosine DistanceMetric = "cosine"
	// DotProduct represents 1 - a·b. It is only a proper distance for
	// unit-length vectors.
	DotProduct DistanceMetric = "dot"

	// Float32 represents single-precision floating-point numbers.
	Float32 PrecisionType = "float32"
	// Float16 represents half-precision floating-point numbers.
	Float16 PrecisionType = "float16"
)

// DistanceFuncF32 compares two float32 vectors of equal length.
type DistanceFuncF32 func(v1, v2 []float32) (float64, error)

// engine names the active float32 implementation.
var engine = "pure-go"

// Engine reports which float32 implementation was selected at startup.
func Engine() string { return engine }

// --- WORKSPACE POOL ---

// diffWorkspace lends scratch slices to squaredEuclideanGonum so the BLAS
// path does not allocate per call.
var diffWorkspace = sync.Pool{
	New: func() interface{} {
		s := make([]float32, 1536)
		return &s
	},
}

// --- REFERENCE IMPLEMENTATIONS (PURE GO) ---

func squaredEuclideanDistanceGo(v1, v2 []float32) (float64, error) {
	if len(v1) != len(v2) {
		return 0, types.NewDimensionMismatch(len(v1), len(v2))
	}
	var sum float32
	for i := range v1 {
		diff := v1[i] - v2[i]
		sum += diff * diff
	}
	return float64(sum), nil
}

func dotProductGo(v1, v2 []float32) (float64, error) {
	if len(v1) != len(v2) {
		return 0, types.NewDimensionMismatch(len(v1), len(v2))
	}
	var sum float32
	for i := range v1 {
		sum += v1[i] * v2[i]
	}
	return float64(sum), nil
}

// dotProductAsDistanceGo is the reference implementation for DotProduct.
func dotProductAsDistanceGo(v1, v2 []float32) (float64, error) {
	dot, err := dotProductGo(v1, v2)
	if err != nil {
		return 0, err
	}
	return 1.0 - dot, nil
}

func cosineDistanceGo(v1, v2 []float32) (float64, error) {
	if len(v1) != len(v2) {
		return 0, types.NewDimensionMismatch(len(v1), len(v2))
	}
	var dot, n1, n2 float64
	for i := range v1 {
		a, b := float64(v1[i]), float64(v2[i])
		dot += a * b
		n1 += a * a
		n2 += b * b
	}
	return cosineFromParts(dot, math.Sqrt(n1), math.Sqrt(n2)), nil
}

// cosineFromParts turns a dot product and two norms into 1 - cos.
// Two zero vectors are identical; a zero and a non-zero vector are
// orthogonal by convention.
func cosineFromParts(dot, norm1, norm2 float64) float64 {
	if norm1 == 0 || norm2 == 0 {
		if norm1 == norm2 {
			return 0
		}
		return 1.0
	}
	similarity := dot / (norm1 * norm2)
	if similarity > 1.0 {
		similarity = 1.0
	}
	if similarity < -1.0 {
		similarity = -1.0
	}
	return 1.0 - similarity
}

// --- Gonum-based Implementations ---
var gonumEngine = gonum.Implementation{}

func squaredEuclideanGonum(v1, v2 []float32) (float64, error) {
	n := len(v1)
	if n != len(v2) {
		return 0, types.NewDimensionMismatch(len(v1), len(v2))
	}
	if n == 0 {
		return 0, nil
	}

	diffPtr := diffWorkspace.Get().(*[]float32)
	defer diffWorkspace.Put(diffPtr)

	if cap(*diffPtr) < n {
		*diffPtr = make([]float32, n)
	}
	diff := (*diffPtr)[:n]

	copy(diff, v1)
	gonumEngine.Saxpy(n, -1, v2, 1, diff, 1)
	dot := gonumEngine.Sdot(n, diff, 1, diff, 1)

	return float64(dot), nil
}

func dotProductAsDistanceGonum(v1, v2 []float32) (float64, error) {
	if len(v1) != len(v2) {
		return 0, types.NewDimensionMismatch(len(v1), len(v2))
	}
	if len(v1) == 0 {
		return 1.0, nil
	}
	dot := gonumEngine.Sdot(len(v1), v1, 1, v2, 1)
	return 1.0 - float64(dot), nil
}

func cosineDistanceGonum(v1, v2 []float32) (float64, error) {
	n := len(v1)
	if n != len(v2) {
		return 0, types.NewDimensionMismatch(len(v1), len(v2))
	}
	if n == 0 {
		return 0, nil
	}
	dot := gonumEngine.Sdot(n, v1, 1, v2, 1)
	norm1 := gonumEngine.Snrm2(n, v1, 1)
	norm2 := gonumEngine.Snrm2(n, v2, 1)
	return cosineFromParts(float64(dot), float64(norm1), float64(norm2)), nil
}

// --- Function Catalog and Dispatcher ---

// float32Funcs maps a distance metric to its float32 implementation.
var float32Funcs = map[DistanceMetric]DistanceFuncF32{
	Euclidean:  squaredEuclideanDistanceGo,
	Cosine:     cosineDistanceGo,
	DotProduct: dotProductAsDistanceGo,
}

// GetFloat32Func returns the distance function for metric. It returns an
// error wrapping types.ErrInvalidArgument if the metric is unknown.
func GetFloat32Func(metric DistanceMetric) (DistanceFuncF32, error) {
	fn, ok := float32Funcs[metric]
	if !ok {
		return nil, fmt.Errorf("%w: metric '%s' not supported", types.ErrInvalidArgument, metric)
	}
	return fn, nil
}

// ParseMetric validates a metric name coming from configuration.
func ParseMetric(name string) (DistanceMetric, error) {
	m := DistanceMetric(name)
	if _, ok := float32Funcs[m]; !ok {
		return "", fmt.Errorf("%w: metric '%s' not supported", types.ErrInvalidArgument, name)
	}
	return m, nil
}

// ParsePrecision validates a precision name coming from configuration.
func ParsePrecision(name string) (PrecisionType, error) {
	switch p := PrecisionType(name); p {
	case Float32, Float16:
		return p, nil
	default:
		return "", fmt.Errorf("%w: precision '%s' not supported", types.ErrInvalidArgument, name)
	}
}
