package hnsw

import (
	"fmt"
	"math"

	"github.com/sanonone/kektorann/pkg/core/distance"
	"github.com/sanonone/kektorann/pkg/core/types"
)

// SelectionPolicy chooses how a new node picks its neighbors from the
// candidates found at each level.
type SelectionPolicy string

const (
	// SelectSimple keeps the M closest candidates.
	SelectSimple SelectionPolicy = "simple"
	// SelectHeuristic keeps a candidate only if it is closer to the new node
	// than to every neighbor already selected, which spreads edges across
	// regions instead of bunching them toward one dense cluster.
	SelectHeuristic SelectionPolicy = "heuristic"
)

const (
	DefaultM              = 16
	DefaultEfConstruction = 200
	DefaultEfSearch       = 50
)

// Config describes an index. Zero values for M0 and EfSearch and a nil ML
// are filled with their conventional defaults by Normalize.
type Config struct {
	Dimension      int                     `json:"dimension" yaml:"dimension"`
	Metric         distance.DistanceMetric `json:"metric" yaml:"metric"`
	Precision      distance.PrecisionType  `json:"precision" yaml:"precision"`
	M              int                     `json:"m" yaml:"m"`
	M0             int                     `json:"m0" yaml:"m0"`
	EfConstruction int                     `json:"ef_construction" yaml:"ef_construction"`
	EfSearch       int                     `json:"ef_search" yaml:"ef_search"`
	// ML scales level sampling. Nil means 1/ln(M); zero keeps every node
	// on level 0.
	ML        *float64        `json:"ml,omitempty" yaml:"ml,omitempty"`
	Selection SelectionPolicy `json:"selection" yaml:"selection"`
	// KeepPruned back-fills the heuristic selection with the closest
	// discarded candidates when it yields fewer than the degree bound.
	KeepPruned bool `json:"keep_pruned" yaml:"keep_pruned"`
	// Seed for level sampling. Zero picks a time-based seed.
	Seed int64  `json:"seed" yaml:"seed"`
	Name string `json:"name" yaml:"name"`
}

// DefaultConfig returns a Config for the given dimension with the usual
// HNSW parameters.
func DefaultConfig(dimension int) Config {
	return Config{
		Dimension:      dimension,
		Metric:         distance.Euclidean,
		Precision:      distance.Float32,
		M:              DefaultM,
		M0:             2 * DefaultM,
		EfConstruction: DefaultEfConstruction,
		EfSearch:       DefaultEfSearch,
		Selection:      SelectSimple,
		KeepPruned:     true,
	}
}

// LevelScale returns the effective mL: ML when set, 1/ln(M) otherwise.
func (c Config) LevelScale() float64 {
	if c.ML != nil {
		return *c.ML
	}
	return defaultML(c.M)
}

// defaultML is 1/ln(M). M == 1 would make it infinite, so it falls back
// to the value for M == 2.
func defaultML(m int) float64 {
	if m < 2 {
		m = 2
	}
	return 1.0 / math.Log(float64(m))
}

// Normalize fills derived fields left at their zero value.
func (c Config) Normalize() Config {
	if c.Metric == "" {
		c.Metric = distance.Euclidean
	}
	if c.Precision == "" {
		c.Precision = distance.Float32
	}
	if c.M0 == 0 {
		c.M0 = 2 * c.M
	}
	if c.ML == nil {
		ml := defaultML(c.M)
		c.ML = &ml
	} else {
		ml := *c.ML
		c.ML = &ml
	}
	if c.EfSearch == 0 {
		c.EfSearch = DefaultEfSearch
	}
	if c.Selection == "" {
		c.Selection = SelectSimple
	}
	return c
}

// Validate rejects malformed configurations. It expects a normalized
// Config.
func (c Config) Validate() error {
	if c.Dimension < 1 {
		return types.InvalidArgumentf("dimension must be at least 1, got %d", c.Dimension)
	}
	if c.M < 1 {
		return types.InvalidArgumentf("M must be at least 1, got %d", c.M)
	}
	if c.M0 < c.M {
		return types.InvalidArgumentf("M0 (%d) must not be smaller than M (%d)", c.M0, c.M)
	}
	if c.EfConstruction < 1 {
		return types.InvalidArgumentf("efConstruction must be at least 1, got %d", c.EfConstruction)
	}
	if c.EfSearch < 1 {
		return types.InvalidArgumentf("efSearch must be at least 1, got %d", c.EfSearch)
	}
	if c.ML == nil {
		return types.InvalidArgumentf("mL is not set")
	}
	if ml := *c.ML; ml < 0 || math.IsNaN(ml) || math.IsInf(ml, 0) {
		return types.InvalidArgumentf("mL must be a finite non-negative number, got %v", ml)
	}
	if _, err := distance.ParseMetric(string(c.Metric)); err != nil {
		return err
	}
	if _, err := distance.ParsePrecision(string(c.Precision)); err != nil {
		return err
	}
	switch c.Selection {
	case SelectSimple, SelectHeuristic:
	default:
		return types.InvalidArgumentf("selection policy '%s' not supported", c.Selection)
	}
	return nil
}

// ParseSelection validates a selection policy name.
func ParseSelection(name string) (SelectionPolicy, error) {
	switch p := SelectionPolicy(name); p {
	case SelectSimple, SelectHeuristic:
		return p, nil
	default:
		return "", fmt.Errorf("%w: selection policy '%s' not supported", types.ErrInvalidArgument, name)
	}
}
