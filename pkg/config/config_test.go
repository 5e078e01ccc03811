package config

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sanonone/kektorann/pkg/core/distance"
	"github.com/sanonone/kektorann/pkg/core/hnsw"
	"github.com/sanonone/kektorann/pkg/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kektorann.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Index.M)
	assert.Equal(t, 32, cfg.Index.M0)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeFile(t, `
index:
  dimension: 16
  metric: cosine
  precision: float16
  m: 8
  ef_construction: 64
  selection: heuristic
bench:
  vectors: 500
  ef_search: [10, 40]
metrics_addr: ":9100"
log_level: debug
log_format: json
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Index.Dimension)
	assert.Equal(t, distance.Cosine, cfg.Index.Metric)
	assert.Equal(t, distance.Float16, cfg.Index.Precision)
	assert.Equal(t, hnsw.SelectHeuristic, cfg.Index.Selection)
	// M0 and mL follow the configured M.
	assert.Equal(t, 16, cfg.Index.M0)
	assert.InDelta(t, 1/math.Log(8), cfg.Index.LevelScale(), 1e-12)
	assert.Equal(t, []int{10, 40}, cfg.Bench.EfSearch)
	assert.Equal(t, 500, cfg.Bench.Vectors)
	// Untouched fields keep their defaults.
	assert.Equal(t, 200, cfg.Bench.Queries)
	assert.True(t, cfg.Index.KeepPruned)
	assert.Equal(t, ":9100", cfg.MetricsAddr)

	var buf bytes.Buffer
	logger, err := cfg.NewLogger(&buf)
	require.NoError(t, err)
	logger.Debug("hello", "k", 1)
	assert.True(t, strings.HasPrefix(buf.String(), "{"), "json handler expected, got %q", buf.String())
}

func TestLoadConfigStrict(t *testing.T) {
	path := writeFile(t, `
index:
  dimension: 16
  efconstruction: 10
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "efconstruction")
}

func TestLoadConfigInvalidValues(t *testing.T) {
	tests := map[string]string{
		"bad m":      "index:\n  m: 0\n",
		"bad metric": "index:\n  metric: hamming\n",
		"bad ef":     "bench:\n  ef_search: [10, 0]\n",
		"no ef":      "bench:\n  ef_search: []\n",
		"bad level":  "log_level: loud\n",
		"bad format": "log_format: xml\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, body))
			assert.ErrorIs(t, err, types.ErrInvalidArgument)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadConfigEmptyFile(t *testing.T) {
	cfg, err := LoadConfig(writeFile(t, ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Bench, cfg.Bench)
}

func TestLoadConfigExplicitZeroML(t *testing.T) {
	cfg, err := LoadConfig(writeFile(t, "index:\n  ml: 0\n"))
	require.NoError(t, err)
	require.NotNil(t, cfg.Index.ML)
	assert.Equal(t, 0.0, cfg.Index.LevelScale())
}
