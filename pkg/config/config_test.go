package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, "hillclimber", cfg.SolverKind())
	assert.Equal(t, "penman", cfg.InputFormat())
	assert.Equal(t, "main", cfg.ScoreDimension())
	assert.Equal(t, "micro", cfg.ScoreType())
	assert.False(t, cfg.AffixVars())
	assert.Equal(t, 100, cfg.ProgressEvery())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("solver:\n  kind: ilp\nscore:\n  bootstrap: true\n"), 0o644))

	cfg := NewConfig()
	require.NoError(t, cfg.LoadFromFile(path))
	assert.Equal(t, "ilp", cfg.SolverKind())
	assert.True(t, cfg.Bootstrap())
	assert.Equal(t, 1000, cfg.BootstrapSamples())
}

func TestWith(t *testing.T) {
	base := NewConfig()
	base.Set("graph.type", "amr")

	derived, err := base.With(map[string]interface{}{"solver.kind": "dummy"})
	require.NoError(t, err)
	assert.Equal(t, "dummy", derived.SolverKind())
	assert.Equal(t, "amr", derived.GraphType())
	assert.Equal(t, "hillclimber", base.SolverKind())
}
