package embed_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/memctl/internal/embed"
)

// TestInitializeWithFallback_FallsBackOnPreferredFailure covers spec §4.5's
// "selection is via config with fallback on initialisation failure": a
// misconfigured remote provider must not take the process down, the local
// provider must take over.
func TestInitializeWithFallback_FallsBackOnPreferredFailure(t *testing.T) {
	preferred := embed.NewRemoteProvider(embed.Config{Provider: embed.KindRemote}) // no api key/endpoint
	fallback := embed.NewLocalProvider(embed.Config{})

	got, err := embed.InitializeWithFallback(context.Background(), preferred, fallback)
	require.NoError(t, err)
	assert.Equal(t, "local", got.Name())
	assert.True(t, got.Available())
}

// TestInitializeWithFallback_PrefersConfiguredRemote ensures a properly
// configured remote provider is used instead of silently falling back.
func TestInitializeWithFallback_PrefersConfiguredRemote(t *testing.T) {
	preferred := embed.NewRemoteProvider(embed.Config{
		Provider: embed.KindRemote,
		APIKey:   "test-key",
		Endpoint: "https://example.invalid/embeddings",
	})
	fallback := embed.NewLocalProvider(embed.Config{})

	got, err := embed.InitializeWithFallback(context.Background(), preferred, fallback)
	require.NoError(t, err)
	assert.Equal(t, "remote", got.Name())
}

// TestLocalProvider_DeterministicAndNormalized exercises the properties the
// pipeline relies on: identical text embeds identically, and the resulting
// vector is unit-normalized (or all-zero for empty input).
func TestLocalProvider_DeterministicAndNormalized(t *testing.T) {
	p := embed.NewLocalProvider(embed.Config{Dimensions: 64})
	require.NoError(t, p.Initialize(context.Background()))
	assert.Equal(t, 64, p.Dimensions())

	v1, err := p.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	v2, err := p.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)

	var sumSq float64
	for _, f := range v1 {
		sumSq += float64(f) * float64(f)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSq), 1e-6)
}

// TestLocalProvider_EmbedBatchMatchesIndividualEmbed ensures batch and
// single-text embedding agree, since the pipeline uses both paths.
func TestLocalProvider_EmbedBatchMatchesIndividualEmbed(t *testing.T) {
	p := embed.NewLocalProvider(embed.Config{Dimensions: 32})

	texts := []string{"first chunk", "second chunk", "third chunk"}
	batch, err := p.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, batch, len(texts))

	for i, text := range texts {
		single, err := p.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}
}
