// Command kektorann builds an HNSW index over random vectors and reports
// recall against exact search, throughput and search cost for a range of
// efSearch values. With a metrics address it also serves Prometheus
// metrics until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sanonone/kektorann/pkg/config"
	"github.com/sanonone/kektorann/pkg/core/hnsw"
	"github.com/sanonone/kektorann/pkg/core/oracle"
	"github.com/sanonone/kektorann/pkg/core/types"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration file")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (overrides the config)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (overrides the config)")
	vectors := flag.Int("vectors", 0, "Number of vectors to insert (overrides the config)")
	selection := flag.String("selection", "", "Neighbor selection policy: simple or heuristic (overrides the config)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kektorann: %v\n", err)
		os.Exit(1)
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *vectors > 0 {
		cfg.Bench.Vectors = *vectors
	}
	if *selection != "" {
		policy, err := hnsw.ParseSelection(*selection)
		if err != nil {
			fmt.Fprintf(os.Stderr, "kektorann: %v\n", err)
			os.Exit(1)
		}
		cfg.Index.Selection = policy
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "kektorann: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.NewLogger(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kektorann: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *http.Server
	if cfg.MetricsAddr != "" {
		srv = startMetricsServer(cfg.MetricsAddr, logger)
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("benchmark failed", "error", err)
		os.Exit(1)
	}

	if srv != nil {
		logger.Info("benchmark done, serving metrics until interrupted", "addr", cfg.MetricsAddr)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown", "error", err)
		}
	}
}

func startMetricsServer(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()
	logger.Info("metrics server listening", "addr", addr)
	return srv
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	bench := cfg.Bench
	dim := cfg.Index.Dimension
	rng := rand.New(rand.NewSource(bench.Seed))

	data := randomVectors(rng, bench.Vectors, dim)
	queries := randomVectors(rng, bench.Queries, dim)

	idx, err := hnsw.NewFromConfig(cfg.Index, hnsw.WithLogger(logger), hnsw.WithMetrics(true))
	if err != nil {
		return err
	}

	start := time.Now()
	if _, err := idx.InsertBatch(data); err != nil {
		return fmt.Errorf("build: %w", err)
	}
	build := time.Since(start)
	info := idx.Info()
	logger.Info("index built",
		"name", info.Name,
		"vectors", info.VectorCount,
		"top_level", info.TopLevel,
		"metric", info.Metric,
		"precision", info.Precision,
		"m", info.M,
		"m0", info.M0,
		"ef_construction", info.EfConstruction,
		"duration", build,
		"inserts_per_sec", float64(info.VectorCount)/build.Seconds())

	if err := idx.Validate(); err != nil {
		return err
	}

	exact, err := exactResults(ctx, idx, queries, bench.K, bench.Workers)
	if err != nil {
		return fmt.Errorf("exact search: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "ef\trecall\tstddev\tqps\tevals(mean)\tevals(p99)\t")
	for _, ef := range bench.EfSearch {
		row, err := measure(ctx, idx, queries, exact, bench.K, ef, bench.Workers)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\t%.4f\t%.4f\t%.0f\t%.1f\t%.0f\t\n",
			ef, row.recall, row.recallStdDev, row.qps, row.evalsMean, row.evalsP99)
		logger.Debug("ef measured", "ef", ef, "recall", row.recall, "qps", row.qps)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	printShape(idx.Stats())
	return nil
}

type measurement struct {
	recall       float64
	recallStdDev float64
	qps          float64
	evalsMean    float64
	evalsP99     float64
}

func measure(ctx context.Context, idx *hnsw.Index, queries [][]float32, exact [][]types.SearchResult, k, ef, workers int) (measurement, error) {
	var m measurement

	start := time.Now()
	approx, err := idx.SearchBatch(ctx, queries, k, ef, workers)
	if err != nil {
		return m, err
	}
	m.qps = float64(len(queries)) / time.Since(start).Seconds()

	recalls := make([]float64, len(queries))
	for i := range queries {
		recalls[i] = oracle.Recall(approx[i], exact[i])
	}
	m.recall, m.recallStdDev = stat.MeanStdDev(recalls, nil)

	evals := make([]float64, len(queries))
	for i, q := range queries {
		_, st, err := idx.SearchWithStats(q, k, ef)
		if err != nil {
			return m, err
		}
		evals[i] = float64(st.DistanceEvaluations)
	}
	sort.Float64s(evals)
	m.evalsMean = stat.Mean(evals, nil)
	m.evalsP99 = stat.Quantile(0.99, stat.Empirical, evals, nil)
	return m, nil
}

// exactResults computes the ground truth for every query in parallel.
func exactResults(ctx context.Context, idx *hnsw.Index, queries [][]float32, k, workers int) ([][]types.SearchResult, error) {
	out := make([][]types.SearchResult, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	store, fn := idx.Vectors(), idx.DistanceFunc()
	for i, q := range queries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := oracle.Search(store, fn, q, k)
			out[i] = res
			return err
		})
	}
	return out, g.Wait()
}

func printShape(st hnsw.GraphStats) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "level\tnodes\tedges\tavg degree\tmax degree\tcomponents\t")
	for _, l := range st.Levels {
		fmt.Fprintf(w, "%d\t%d\t%d\t%.2f\t%d\t%d\t\n", l.Level, l.Nodes, l.Edges, l.AvgDegree, l.MaxDegree, l.Components)
	}
	w.Flush()
}

func randomVectors(rng *rand.Rand, n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for j := range v {
			v[j] = rng.Float32()*2 - 1
		}
		out[i] = v
	}
	return out
}
