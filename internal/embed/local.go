package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// LocalProvider is a CPU-only, deterministic provider: it hashes each token
// into a fixed-dimension bag-of-words vector and L2-normalizes it. It never
// fails to initialize and is always Available, making it the fallback of
// last resort required by spec §4.5.
type LocalProvider struct {
	dimensions int
	model      string
}

// NewLocalProvider builds a LocalProvider using cfg.Dimensions (default 256)
// and cfg.Model as a display name only (hashing ignores it).
func NewLocalProvider(cfg Config) *LocalProvider {
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = 256
	}
	model := cfg.Model
	if model == "" {
		model = "local-hash-v1"
	}
	return &LocalProvider{dimensions: dims, model: model}
}

func (p *LocalProvider) Name() string       { return "local" }
func (p *LocalProvider) Model() string      { return p.model }
func (p *LocalProvider) Dimensions() int    { return p.dimensions }
func (p *LocalProvider) Available() bool    { return true }
func (p *LocalProvider) Initialize(context.Context) error { return nil }

func (p *LocalProvider) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, p.dimensions)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		idx := int(h.Sum32()) % p.dimensions
		if idx < 0 {
			idx += p.dimensions
		}
		vec[idx]++
	}
	normalize(vec)
	return vec, nil
}

func (p *LocalProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func normalize(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range vec {
		vec[i] /= norm
	}
}
