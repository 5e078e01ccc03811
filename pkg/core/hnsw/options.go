package hnsw

import (
	"log/slog"
	"math/rand"

	"github.com/sanonone/kektorann/pkg/core/distance"
)

// Option customizes an Index at construction time.
type Option func(*options)

type options struct {
	cfg     Config
	rng     *rand.Rand
	logger  *slog.Logger
	metrics bool
}

// WithM0 sets the degree bound at level 0. Defaults to 2*M.
func WithM0(m0 int) Option { return func(o *options) { o.cfg.M0 = m0 } }

// WithML sets the level sampling scale. Defaults to 1/ln(M); zero builds a
// single-level graph.
func WithML(ml float64) Option { return func(o *options) { o.cfg.ML = &ml } }

// WithEfSearch sets the exploration breadth used when Search is called
// with efSearch <= 0.
func WithEfSearch(ef int) Option { return func(o *options) { o.cfg.EfSearch = ef } }

// WithSelection picks the neighbor selection policy.
func WithSelection(p SelectionPolicy) Option { return func(o *options) { o.cfg.Selection = p } }

// WithKeepPruned toggles back-filling for the heuristic selection.
func WithKeepPruned(keep bool) Option { return func(o *options) { o.cfg.KeepPruned = keep } }

// WithPrecision sets the storage precision of vectors.
func WithPrecision(p distance.PrecisionType) Option { return func(o *options) { o.cfg.Precision = p } }

// WithSeed makes level sampling reproducible.
func WithSeed(seed int64) Option { return func(o *options) { o.cfg.Seed = seed } }

// WithRand injects the random source used for level sampling. It takes
// precedence over WithSeed. The index owns r afterwards.
func WithRand(r *rand.Rand) Option { return func(o *options) { o.rng = r } }

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithName names the index. The name labels its Prometheus series; a
// random UUID is used when it is empty.
func WithName(name string) Option { return func(o *options) { o.cfg.Name = name } }

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(enabled bool) Option { return func(o *options) { o.metrics = enabled } }
