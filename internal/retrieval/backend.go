// Package retrieval adapts the storage layer's RankedHit vocabulary to the
// search package's SourceHit/Backend interfaces, per the split documented
// in internal/store/vectors.go's RankedHit doc comment: store and search
// never import each other, so something above both has to bridge them.
package retrieval

import (
	"context"

	"github.com/kittclouds/memctl/internal/embed"
	"github.com/kittclouds/memctl/internal/search"
	"github.com/kittclouds/memctl/internal/store"
)

// Store is the storage-side surface the adapter needs; *store.SQLiteStore
// satisfies it structurally.
type Store interface {
	VectorSearchIndex(ctx context.Context, indexName string, vec []float32, limit int, f store.SearchFilter) ([]store.RankedHit, error)
	FTSSearchIndex(ctx context.Context, table, matchQuery string, limit int, f store.SearchFilter) ([]store.RankedHit, error)
	FetchText(ctx context.Context, table string, id int64) (string, error)
}

func toStoreFilter(f search.Filters) store.SearchFilter {
	return store.SearchFilter{
		ProjectID:        f.ProjectID,
		SinceMS:          f.SinceMS,
		UntilMS:          f.UntilMS,
		SourceType:       f.SourceType,
		ExcludeSidechain: f.ExcludeSidechain,
	}
}

// Backend binds a Store to one target table/index pair ("messages" or
// "decisions"), implementing search.Backend.
type Backend struct {
	store     Store
	indexName string
}

// NewBackend constructs a Backend scoped to indexName ("messages" or
// "decisions" — both names are shared between the FTS table key and the
// vector index key in the storage layer).
func NewBackend(st Store, indexName string) *Backend {
	return &Backend{store: st, indexName: indexName}
}

func (b *Backend) VectorSearch(ctx context.Context, vec []float32, limit int, f search.Filters) ([]search.SourceHit, error) {
	hits, err := b.store.VectorSearchIndex(ctx, b.indexName, vec, limit, toStoreFilter(f))
	if err != nil {
		return nil, err
	}
	return toSourceHits(hits), nil
}

func (b *Backend) FTSSearch(ctx context.Context, matchQuery string, limit int, f search.Filters) ([]search.SourceHit, error) {
	hits, err := b.store.FTSSearchIndex(ctx, b.indexName, matchQuery, limit, toStoreFilter(f))
	if err != nil {
		return nil, err
	}
	return toSourceHits(hits), nil
}

func (b *Backend) FetchText(ctx context.Context, id int64) (string, error) {
	return b.store.FetchText(ctx, b.indexName, id)
}

func toSourceHits(hits []store.RankedHit) []search.SourceHit {
	out := make([]search.SourceHit, 0, len(hits))
	for _, h := range hits {
		out = append(out, search.SourceHit{ID: h.ID, Score: h.Score})
	}
	return out
}

// ConversationResolver maps a message row id to its owning conversation;
// *store.SQLiteStore satisfies it.
type ConversationResolver interface {
	ConversationIDForMessage(messageID int64) (int64, bool, error)
}

// ConversationHit is one conversation-level search result: the best-scoring
// message hit within the conversation, plus the conversation id it rolls up
// to.
type ConversationHit struct {
	ConversationID int64
	Best           search.Result
}

// SearchConversations implements the search_conversations operation by
// running a message-level hybrid search and rolling hits up to their owning
// conversations, keeping each conversation's best-scoring hit. The message
// engine is over-queried (4x limit) so that grouping still fills the
// requested page when one conversation dominates the message ranking.
func SearchConversations(ctx context.Context, engine *search.Engine, resolver ConversationResolver, q search.Query) ([]ConversationHit, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	wide := q
	wide.Limit = limit * 4

	results, err := engine.SearchMessages(ctx, wide)
	if err != nil {
		return nil, err
	}

	var out []ConversationHit
	seen := make(map[int64]bool)
	for _, r := range results {
		convID, ok, err := resolver.ConversationIDForMessage(r.ID)
		if err != nil || !ok {
			continue
		}
		if seen[convID] {
			continue // results arrive best-first; the first hit per conversation wins
		}
		seen[convID] = true
		out = append(out, ConversationHit{ConversationID: convID, Best: r})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// QueryEmbedder adapts embed.Provider to search.Embedder (search only needs
// the single-text Embed call, not the provider's full lifecycle surface).
type QueryEmbedder struct {
	Provider embed.Provider
}

func (q QueryEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return q.Provider.Embed(ctx, text)
}
