package embed

import (
	"context"

	"go.uber.org/zap"

	"github.com/kittclouds/memctl/internal/chunk"
	"github.com/kittclouds/memctl/internal/errs"
)

// VectorIndexWriter is the storage-side surface the pipeline needs. The
// SQLite store implements this; embed does not import internal/store to
// avoid a cycle (store depends on nothing here, embed depends on this
// narrow interface instead of the concrete store).
type VectorIndexWriter interface {
	IndexStamp(ctx context.Context, indexName string) (modelName string, dimensions int, exists bool, err error)
	RebuildIndex(ctx context.Context, indexName string) error
	WriteVector(ctx context.Context, indexName string, baseRowID int64, chunkIndex int, vec []float32, modelName string, dimensions int) error
	FlagRetry(ctx context.Context, indexName string, baseRowID int64, chunkIndex int) error
}

// Item is one (id, text) pair to embed, per spec §4.5.
type Item struct {
	BaseID int64
	Text   string
}

// Pipeline chunks text, embeds each chunk, and writes vectors to the index,
// enforcing index-dimension discipline (spec §4.5): a mismatch between the
// current provider's (model, dimensions) and the index's stamp triggers a
// full rebuild before any new row is written.
type Pipeline struct {
	provider Provider
	chunkCfg chunk.Config
	store    VectorIndexWriter
	logger   *zap.Logger
}

func NewPipeline(provider Provider, chunkCfg chunk.Config, store VectorIndexWriter, logger *zap.Logger) *Pipeline {
	return &Pipeline{provider: provider, chunkCfg: chunkCfg, store: store, logger: logger}
}

// EmbedAndStore processes items into indexName, rebuilding the index first
// if the provider's stamp no longer matches what's stored.
func (p *Pipeline) EmbedAndStore(ctx context.Context, indexName string, items []Item) error {
	if err := p.ensureStamp(ctx, indexName); err != nil {
		return err
	}

	for _, item := range items {
		chunks := chunk.Chunk(item.Text, p.chunkCfg)
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}

		vectors, err := p.provider.EmbedBatch(ctx, texts)
		if err != nil {
			p.logger.Warn("embedding batch failed, flagging for retry",
				zap.Int64("base_id", item.BaseID), zap.Error(err))
			for i := range chunks {
				_ = p.store.FlagRetry(ctx, indexName, item.BaseID, i)
			}
			continue
		}

		for i, vec := range vectors {
			if len(vec) == 0 {
				_ = p.store.FlagRetry(ctx, indexName, item.BaseID, i)
				continue
			}
			if err := p.store.WriteVector(ctx, indexName, item.BaseID, i, vec, p.provider.Model(), p.provider.Dimensions()); err != nil {
				return errs.Wrap(errs.Storage, "EmbedAndStore", "writing vector", err)
			}
		}
	}
	return nil
}

func (p *Pipeline) ensureStamp(ctx context.Context, indexName string) error {
	model, dims, exists, err := p.store.IndexStamp(ctx, indexName)
	if err != nil {
		return errs.Wrap(errs.Storage, "ensureStamp", "reading index stamp", err)
	}
	if !exists {
		return nil
	}
	if model != p.provider.Model() || dims != p.provider.Dimensions() {
		p.logger.Info("embedding provider changed, rebuilding vector index",
			zap.String("index", indexName),
			zap.String("old_model", model), zap.Int("old_dims", dims),
			zap.String("new_model", p.provider.Model()), zap.Int("new_dims", p.provider.Dimensions()))
		if err := p.store.RebuildIndex(ctx, indexName); err != nil {
			return errs.Wrap(errs.Storage, "ensureStamp", "rebuilding index", err)
		}
	}
	return nil
}
