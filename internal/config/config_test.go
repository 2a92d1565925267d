package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/memctl/internal/config"
)

// TestLoad_DefaultsOnly covers a config.Load with no YAML file and no env
// overrides: every option must fall back to its documented default.
func TestLoad_DefaultsOnly(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Load(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, int64(256*1024*1024), cfg.MMapSize)
	assert.Equal(t, 60, cfg.Rerank.RRFK)
	assert.Equal(t, 0.7, cfg.Rerank.VectorWeight)
	assert.Equal(t, "sentence", cfg.Chunking.Strategy)
	assert.Equal(t, 400, cfg.Chunking.TargetTokens)
	assert.Equal(t, 3, cfg.Expansion.MaxVariants)
	assert.Equal(t, "local", cfg.Embedding.Provider)
	assert.Equal(t, 384, cfg.Embedding.Dimensions)
	assert.Equal(t, int64(30_000), cfg.AutoIndex.CooldownMS)
	assert.False(t, cfg.IncludeThinking)
}

// TestLoad_YAMLOverridesDefaults exercises the YAML layer of spec §6's
// precedence: a value set in the file wins over the built-in default.
func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := "chunking:\n  strategy: paragraph\n  target_tokens: 800\nembedding:\n  provider: remote\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "paragraph", cfg.Chunking.Strategy)
	assert.Equal(t, 800, cfg.Chunking.TargetTokens)
	assert.Equal(t, "remote", cfg.Embedding.Provider)
	// Untouched options keep their defaults.
	assert.Equal(t, 384, cfg.Embedding.Dimensions)
}

// TestLoad_EnvOverridesYAML exercises the top of spec §6's precedence order:
// a MEMCTL_-prefixed environment variable beats both the YAML file and the
// built-in default for the same option.
func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunking:\n  target_tokens: 800\n"), 0o644))

	t.Setenv("MEMCTL_CHUNKING_TARGET_TOKENS", "600")
	t.Setenv("MEMCTL_INCLUDE_THINKING", "true")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 600, cfg.Chunking.TargetTokens)
	assert.True(t, cfg.IncludeThinking)
}

// TestLoad_RejectsInvalidStrategy ensures an unrecognised chunking strategy
// fails loudly at load time rather than surfacing later as a runtime panic.
func TestLoad_RejectsInvalidStrategy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunking:\n  strategy: bogus\n"), 0o644))

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunking.strategy")
}

// TestLoad_RejectsOutOfRangeVectorWeight covers the rerank.vector_weight
// boundary invariant from spec §6 (must stay within [0,1]).
func TestLoad_RejectsOutOfRangeVectorWeight(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rerank:\n  vector_weight: 1.5\n"), 0o644))

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vector_weight")
}
