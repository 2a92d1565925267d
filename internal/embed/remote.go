package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/kittclouds/memctl/internal/errs"
)

// RemoteProvider calls a third-party embedding HTTP endpoint. It replaces
// the teacher's WASM-only `syscall/js` fetch transport
// (pkg/batch/google.go, openrouter.go) with net/http, since a CLI/server
// process has no browser fetch API to borrow. The Provider/Config
// dispatch shape is otherwise the one pkg/batch/service.go established.
type RemoteProvider struct {
	model      string
	apiKey     string
	endpoint   string
	dimensions int
	available  bool

	client  *http.Client
	limiter *rate.Limiter
}

// NewRemoteProvider builds a RemoteProvider from cfg. A token-bucket
// limiter (5 requests/s, burst 10) bounds the request rate to the remote
// service; the number of requests in flight at once is not capped.
func NewRemoteProvider(cfg Config) *RemoteProvider {
	return &RemoteProvider{
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		endpoint:   cfg.Endpoint,
		dimensions: cfg.Dimensions,
		client:     &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(5), 10),
	}
}

func (p *RemoteProvider) Name() string    { return "remote" }
func (p *RemoteProvider) Model() string   { return p.model }
func (p *RemoteProvider) Dimensions() int { return p.dimensions }
func (p *RemoteProvider) Available() bool { return p.available }

// Initialize validates that the provider is configured; it performs no
// network call (the remote service itself may still be unreachable later,
// surfaced as a per-call ProviderUnavailable error).
func (p *RemoteProvider) Initialize(context.Context) error {
	if p.apiKey == "" || p.endpoint == "" {
		return errs.New(errs.Config, "RemoteProvider.Initialize", "missing api key or endpoint")
	}
	p.available = true
	return nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed embeds a single text; EmbedBatch is preferred for throughput.
func (p *RemoteProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch calls the remote endpoint once per batch, retried with
// exponential backoff up to a bounded number of attempts per spec §4.5.
// A per-call timeout is enforced by p.client; an overall deadline for the
// batch is whatever the caller's ctx carries.
func (p *RemoteProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if !p.available {
		return nil, errs.New(errs.Provider, "EmbedBatch", "remote embedding provider not available")
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, errs.Wrap(errs.Provider, "EmbedBatch", "rate limiter wait failed", err)
	}

	body, err := json.Marshal(embeddingRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, errs.Wrap(errs.Provider, "EmbedBatch", "marshal request", err)
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4)
	bo = backoff.WithContext(bo, ctx)

	var parsed embeddingResponse
	err = backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+p.apiKey)

		resp, err := p.client.Do(req)
		if err != nil {
			return err // network error: retryable
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return errs.New(errs.Provider, "EmbedBatch", "transient remote error: "+resp.Status)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(errs.New(errs.Provider, "EmbedBatch", "remote error: "+resp.Status))
		}
		return json.Unmarshal(data, &parsed)
	}, bo)
	if err != nil {
		return nil, errs.Wrap(errs.Provider, "EmbedBatch", "embedding request failed", err)
	}

	out := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		out[i] = d.Embedding
	}
	return out, nil
}
