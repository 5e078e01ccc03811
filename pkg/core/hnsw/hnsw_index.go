// Package hnsw provides the implementation of the Hierarchical Navigable Small World
// (HNSW) graph algorithm for efficient approximate nearest neighbor search.
//
// This package contains the Index type and its methods for building and
// searching the graph. Vectors live in a vectorstore.Store, adjacency in a
// Graph, and both are guarded by one reader-writer lock: inserts are
// exclusive, searches run in parallel.
package hnsw

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sanonone/kektorann/pkg/core/distance"
	"github.com/sanonone/kektorann/pkg/core/types"
	"github.com/sanonone/kektorann/pkg/core/vectorstore"
)

// Index represents the hierarchical graph structure.
type Index struct {
	// mu is held exclusively for a whole insertion and shared by searches.
	mu sync.RWMutex

	cfg Config

	store  *vectorstore.Store
	graph  *Graph
	distFn distance.DistanceFuncF32
	levels levelSampler

	logger  *slog.Logger
	metrics bool

	visitedPool sync.Pool
	minHeapPool sync.Pool
	maxHeapPool sync.Pool
}

// New creates an empty index for vectors of the given dimension.
// M bounds the neighbors per node above level 0 and efConstruction sets
// the search breadth used while inserting. Other parameters take their
// conventional defaults unless overridden by opts.
func New(dimension int, metric distance.DistanceMetric, m int, efConstruction int, opts ...Option) (*Index, error) {
	cfg := DefaultConfig(dimension)
	cfg.Metric = metric
	cfg.M = m
	cfg.M0 = 0
	cfg.ML = nil
	cfg.EfConstruction = efConstruction
	return NewFromConfig(cfg, opts...)
}

// NewFromConfig creates an empty index from cfg. Options are applied on
// top of it.
func NewFromConfig(cfg Config, opts ...Option) (*Index, error) {
	o := options{cfg: cfg}
	for _, opt := range opts {
		opt(&o)
	}
	cfg = o.cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("hnsw: invalid configuration: %w", err)
	}

	distFn, err := distance.GetFloat32Func(cfg.Metric)
	if err != nil {
		return nil, err
	}
	store, err := vectorstore.New(cfg.Dimension, cfg.Precision, 1024)
	if err != nil {
		return nil, err
	}

	rng := o.rng
	if rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng = rand.New(rand.NewSource(seed))
	}
	if cfg.Name == "" {
		cfg.Name = uuid.NewString()
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &Index{
		cfg:     cfg,
		store:   store,
		graph:   NewGraph(1024),
		distFn:  distFn,
		levels:  levelSampler{rng: rng, ml: cfg.LevelScale()},
		logger:  logger.With("index", cfg.Name),
		metrics: o.metrics,
	}

	h.visitedPool = sync.Pool{
		New: func() any {
			return NewBitSet(256)
		},
	}
	h.minHeapPool = sync.Pool{
		New: func() any { return newMinHeap(cfg.EfConstruction) },
	}
	h.maxHeapPool = sync.Pool{
		New: func() any { return newMaxHeap(cfg.EfConstruction + 1) },
	}

	h.logger.Info("hnsw index created",
		"dimension", cfg.Dimension,
		"metric", cfg.Metric,
		"precision", cfg.Precision,
		"m", cfg.M,
		"m0", cfg.M0,
		"ef_construction", cfg.EfConstruction,
		"ml", cfg.LevelScale(),
		"selection", cfg.Selection,
		"engine", distance.Engine())

	if h.metrics {
		h.publishShape(0, -1)
	}
	return h, nil
}

// VectorOf returns a copy of the vector stored under id.
func (h *Index) VectorOf(id uint32) ([]float32, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.store.Get(id)
}

// Len returns the number of inserted vectors.
func (h *Index) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph.Len()
}

// TopLevel returns the highest populated level, or -1 when empty.
func (h *Index) TopLevel() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph.TopLevel()
}

// EntryPoint returns the global entry point. ok is false when empty.
func (h *Index) EntryPoint() (id uint32, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph.EntryPoint()
}

// Config returns the effective configuration, defaults filled in.
func (h *Index) Config() Config {
	cfg := h.cfg
	ml := cfg.LevelScale()
	cfg.ML = &ml
	return cfg
}

// Name returns the index name used in logs and metrics.
func (h *Index) Name() string { return h.cfg.Name }

// DistanceFunc returns the metric function the index compares with.
func (h *Index) DistanceFunc() distance.DistanceFuncF32 { return h.distFn }

// Vectors exposes the vector store read-only, for exact-search baselines.
// It must not be used while an insertion is running.
func (h *Index) Vectors() vectorstore.Reader { return h.store }

// Info summarizes the index.
func (h *Index) Info() types.IndexInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return types.IndexInfo{
		Name:           h.cfg.Name,
		Dimension:      h.cfg.Dimension,
		Metric:         string(h.cfg.Metric),
		Precision:      string(h.cfg.Precision),
		M:              h.cfg.M,
		M0:             h.cfg.M0,
		EfConstruction: h.cfg.EfConstruction,
		VectorCount:    h.graph.Len(),
		TopLevel:       h.graph.TopLevel(),
	}
}

// degreeBound returns the neighbor limit for level.
func (h *Index) degreeBound(level int) int {
	if level == 0 {
		return h.cfg.M0
	}
	return h.cfg.M
}
