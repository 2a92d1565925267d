package search

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kittclouds/memctl/internal/errs"
	"github.com/kittclouds/memctl/internal/sanitize"
	"github.com/kittclouds/memctl/pkg/pool"
)

// Filters narrows a search per spec §4.6's caller filters: project, time
// range, source type, and sidechain exclusion. Zero values mean "no
// restriction".
type Filters struct {
	ProjectID        int64  // 0 = all projects
	SinceMS          int64  // 0 = no lower bound
	UntilMS          int64  // 0 = no upper bound
	SourceType       string // "" = all sources
	ExcludeSidechain bool
}

// Query is one hybrid search request.
type Query struct {
	Text    string
	Limit   int
	Filters Filters
}

// Result is one ranked, snippeted hit returned to the caller, decorated
// with its per-source ranks and scores for introspection.
type Result struct {
	ID            int64
	Text          string
	Snippet       string
	VectorRank    int
	FTSRank       int
	VectorScore   float64
	FTSScore      float64
	CombinedScore float64
}

// Backend is the storage-side surface the engine needs per target domain
// (messages, decisions, conversations share this shape). It is declared
// here, not imported from internal/store, for the same reason
// embed.VectorIndexWriter is: store will satisfy it structurally without
// either package importing the other.
type Backend interface {
	// VectorSearch returns up to limit nearest-neighbor hits for the given
	// embedding, 1-based ranked, restricted by filters.
	VectorSearch(ctx context.Context, vec []float32, limit int, f Filters) ([]SourceHit, error)
	// FTSSearch returns up to limit lexical hits for the given FTS MATCH
	// query, 1-based ranked, restricted by filters.
	FTSSearch(ctx context.Context, matchQuery string, limit int, f Filters) ([]SourceHit, error)
	// FetchText returns the display text for a row id, used for snippet
	// generation after fusion.
	FetchText(ctx context.Context, id int64) (string, error)
}

// Embedder is the minimal embedding surface the engine needs from
// internal/embed.Provider, to avoid importing the whole provider package's
// lifecycle surface.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options tunes an Engine beyond its defaults, mapping spec §6's rerank.*
// and expansion.* configuration onto the fusion and expander settings.
type Options struct {
	RerankEnabled bool
	Fusion        FusionConfig
	Expander      ExpanderConfig
	Snippet       SnippetConfig
}

// DefaultOptions enables hybrid rerank with the documented fusion defaults.
func DefaultOptions() Options {
	return Options{
		RerankEnabled: true,
		Fusion:        DefaultFusionConfig(),
		Expander:      ExpanderConfig{Enabled: true, MaxVariants: 5},
		Snippet:       DefaultSnippetConfig(),
	}
}

// Engine wires query expansion, per-variant lexical+semantic retrieval, RRF
// fusion, and snippet generation into the public search operations.
type Engine struct {
	backend  Backend
	embedder Embedder
	rerank   bool
	fusion   FusionConfig
	expand   ExpanderConfig
	snippet  SnippetConfig
	logger   *zap.Logger
}

func NewEngine(backend Backend, embedder Embedder, logger *zap.Logger) *Engine {
	return NewEngineWithOptions(backend, embedder, logger, DefaultOptions())
}

func NewEngineWithOptions(backend Backend, embedder Embedder, logger *zap.Logger, opts Options) *Engine {
	return &Engine{
		backend:  backend,
		embedder: embedder,
		rerank:   opts.RerankEnabled,
		fusion:   opts.Fusion,
		expand:   opts.Expander,
		snippet:  opts.Snippet,
		logger:   logger,
	}
}

// SearchMessages implements the search_messages operation: the default
// target, and the general case SearchDecisions reuses against its own
// Backend.
func (e *Engine) SearchMessages(ctx context.Context, q Query) ([]Result, error) {
	return e.search(ctx, q)
}

// SearchDecisions implements search_decisions; callers construct Engine with
// a Backend scoped to the decisions table/index. The third public operation,
// search_conversations, lives in the retrieval package: it rolls message
// hits up to their owning conversations, which needs a store-side resolver
// this package deliberately doesn't know about.
func (e *Engine) SearchDecisions(ctx context.Context, q Query) ([]Result, error) {
	return e.search(ctx, q)
}

// singleSource converts one ranked list into FusedResults without fusion,
// preserving its native ordering.
func singleSource(hits []SourceHit, vector bool) []FusedResult {
	out := make([]FusedResult, 0, len(hits))
	for _, h := range hits {
		r := FusedResult{ID: h.ID, CombinedScore: h.Score}
		if vector {
			r.VectorRank, r.VectorScore = h.Rank, h.Score
		} else {
			r.FTSRank, r.FTSScore = h.Rank, h.Score
		}
		out = append(out, r)
	}
	return out
}

func (e *Engine) search(ctx context.Context, q Query) ([]Result, error) {
	if q.Text == "" {
		return nil, errs.New(errs.Validation, "search", "empty query text")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	variants := Expand(q.Text, e.expand)

	ids := pool.GetInt64Slice()
	defer func() { pool.PutInt64Slice(ids) }()

	var vectorHits, ftsHits []SourceHit
	seenVector := make(map[int64]bool)
	seenFTS := make(map[int64]bool)

	for _, v := range variants {
		vec, err := e.embedder.Embed(ctx, v)
		if err != nil {
			e.logger.Warn("embedding query variant failed, skipping vector search for it",
				zap.String("variant", v), zap.Error(err))
		} else {
			hits, err := e.backend.VectorSearch(ctx, vec, limit, q.Filters)
			if err != nil {
				return nil, errs.Wrap(errs.Storage, "search", "vector search failed", err)
			}
			for _, h := range hits {
				if seenVector[h.ID] {
					continue
				}
				seenVector[h.ID] = true
				vectorHits = append(vectorHits, h)
				ids = append(ids, h.ID)
			}
		}

		ftsMatch := sanitize.ForFTSOrQuery(strings.Fields(v))
		hits, err := e.backend.FTSSearch(ctx, ftsMatch, limit, q.Filters)
		if err != nil {
			return nil, errs.Wrap(errs.Storage, "search", "fts search failed", err)
		}
		for _, h := range hits {
			if seenFTS[h.ID] {
				continue
			}
			seenFTS[h.ID] = true
			ftsHits = append(ftsHits, h)
			ids = append(ids, h.ID)
		}
	}

	e.logger.Debug("collected candidates across variants",
		zap.Int("variants", len(variants)), zap.Int("candidates", len(ids)))

	reRanked := func(hits []SourceHit) []SourceHit {
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
		for i := range hits {
			hits[i].Rank = i + 1
		}
		return hits
	}
	vectorHits = reRanked(vectorHits)
	ftsHits = reRanked(ftsHits)

	var fused []FusedResult
	if e.rerank {
		fused = Fuse(vectorHits, ftsHits, e.fusion)
	} else if len(vectorHits) > 0 {
		// Hybrid rerank disabled: pure vector ordering when available,
		// else pure FTS ordering.
		fused = singleSource(vectorHits, true)
	} else {
		fused = singleSource(ftsHits, false)
	}
	if len(fused) > limit {
		fused = fused[:limit]
	}

	out := make([]Result, 0, len(fused))
	for _, f := range fused {
		text, err := e.backend.FetchText(ctx, f.ID)
		if err != nil {
			e.logger.Warn("fetching text for result failed, omitting snippet",
				zap.Int64("id", f.ID), zap.Error(err))
			text = ""
		}
		out = append(out, Result{
			ID:            f.ID,
			Text:          text,
			Snippet:       Snippet(text, q.Text, e.snippet),
			VectorRank:    f.VectorRank,
			FTSRank:       f.FTSRank,
			VectorScore:   f.VectorScore,
			FTSScore:      f.FTSScore,
			CombinedScore: f.CombinedScore,
		})
	}
	return out, nil
}
