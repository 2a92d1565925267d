// Package embed provides a pluggable embedding-provider abstraction and a
// pipeline that turns chunked text into vectors for the storage layer's
// vector index (spec §4.5).
package embed

import (
	"context"

	"github.com/kittclouds/memctl/internal/errs"
)

// Provider turns text into fixed-dimension vectors. Implementations cover a
// local, deterministic, CPU-only model and a remote HTTP-backed one,
// generalizing the teacher's Provider/Config dispatch shape
// (pkg/batch/service.go) from chat completions to embeddings.
type Provider interface {
	Name() string
	Model() string
	Dimensions() int
	Available() bool
	Initialize(ctx context.Context) error
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Kind names a provider implementation for config-driven selection.
type Kind string

const (
	KindLocal  Kind = "local"
	KindRemote Kind = "remote"
)

// Config selects and configures a provider, per spec §6's
// `embedding.provider/model/api_key/dimensions` options.
type Config struct {
	Provider   Kind
	Model      string
	APIKey     string
	Endpoint   string
	Dimensions int
}

// NewProvider constructs the configured provider, per spec §4.5's
// "selection is via config with fallback on initialisation failure".
// Initialize is not called here; InitializeWithFallback calls it and falls
// back to the given fallback provider if the preferred one fails to
// initialize.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case KindRemote:
		return NewRemoteProvider(cfg), nil
	case KindLocal, "":
		return NewLocalProvider(cfg), nil
	default:
		return nil, errs.New(errs.Config, "NewProvider", "unknown embedding provider: "+string(cfg.Provider))
	}
}

// InitializeWithFallback initializes preferred; on failure, it initializes
// and returns the local provider instead, per spec §4.5.
func InitializeWithFallback(ctx context.Context, preferred Provider, fallback Provider) (Provider, error) {
	if err := preferred.Initialize(ctx); err == nil {
		return preferred, nil
	}
	if err := fallback.Initialize(ctx); err != nil {
		return nil, errs.Wrap(errs.Provider, "InitializeWithFallback", "no embedding provider available", err)
	}
	return fallback, nil
}
