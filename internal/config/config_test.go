package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrdm/goproblog/pkg/problog"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "enum", cfg.Evaluation.Backend)
	assert.Equal(t, "prob", cfg.Evaluation.Semiring)
	assert.Equal(t, problog.DefaultMaxModels, cfg.Evaluation.MaxModels)
	assert.Equal(t, problog.DefaultEngineConfig().MaxCallDepth, cfg.Engine.MaxCallDepth)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Setenv("PROBLOG_STORE", "")
	path := filepath.Join(t.TempDir(), "problog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine:
  keep_all: true
  labels: [decision]
evaluation:
  backend: direct
  semiring: log
sample:
  trials: 500
  seed: 42
logging:
  level: debug
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Engine.KeepAll)
	assert.Equal(t, []string{"decision"}, cfg.Engine.Labels)
	assert.Equal(t, "direct", cfg.Evaluation.Backend)
	assert.Equal(t, "log", cfg.Evaluation.Semiring)
	assert.Equal(t, 500, cfg.Sample.Trials)
	assert.Equal(t, uint64(42), cfg.Sample.Seed)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// untouched sections keep their defaults
	assert.Equal(t, "hugin", cfg.BayesNet.Format)

	_, ok := cfg.Compiler(nil).(problog.DirectCompiler)
	assert.True(t, ok)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("evaluation:\n  backend: sdd\n"), 0644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "unknown backend")
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PROBLOG_STORE", "/tmp/results.db")
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  path: other.db\n"), 0644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/results.db", cfg.Store.Path)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("PROBLOG_STORE", "")
	path := filepath.Join(t.TempDir(), "nested", "problog.yaml")
	cfg := Default()
	cfg.BayesNet.Strict = true
	cfg.Store.Path = "runs.db"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestEngineOptions(t *testing.T) {
	cfg := Default()
	cfg.Engine.HideBuiltins = true
	e := problog.NewEngine(cfg.EngineOptions()...)
	assert.True(t, e.Config().HideBuiltins)
	assert.Equal(t, cfg.Engine.MaxFixpointIterations, e.Config().MaxFixpointIterations)
}
