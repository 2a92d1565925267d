package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kittclouds/memctl/internal/config"
	"github.com/kittclouds/memctl/internal/chunk"
	"github.com/kittclouds/memctl/internal/deletion"
	"github.com/kittclouds/memctl/internal/embed"
	"github.com/kittclouds/memctl/internal/ingest"
	"github.com/kittclouds/memctl/internal/migrate"
	"github.com/kittclouds/memctl/internal/parser"
	"github.com/kittclouds/memctl/internal/reindex"
	"github.com/kittclouds/memctl/internal/retrieval"
	"github.com/kittclouds/memctl/internal/sanitize"
	"github.com/kittclouds/memctl/internal/search"
	"github.com/kittclouds/memctl/internal/store"
)

// app wires every component the CLI subcommands need out of a loaded
// config, mirroring the container-passed-into-constructors composition
// spec §9 asks for ("global singletons become explicit process-scope
// containers") — there is no package-level database handle anywhere here.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *store.SQLiteStore
	provider embed.Provider
	pipeline *embed.Pipeline

	messages   *search.Engine
	decisions  *search.Engine
	deletion   *deletion.Service
	migrate    *migrate.Service
	scheduler  *reindex.Scheduler
	claudeRoot string
	codexRoot  string
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newApp() (*app, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	st, err := store.NewSQLiteStoreWithDSN(cfg.DBPath, cfg.MMapSize)
	if err != nil {
		return nil, err
	}

	embedCfg := embed.Config{
		Provider:   embed.Kind(cfg.Embedding.Provider),
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		Dimensions: cfg.Embedding.Dimensions,
	}
	preferred, err := embed.NewProvider(embedCfg)
	if err != nil {
		return nil, err
	}
	fallback := embed.NewLocalProvider(embedCfg)
	provider, err := embed.InitializeWithFallback(context.Background(), preferred, fallback)
	if err != nil {
		return nil, err
	}

	chunkCfg := chunk.DefaultConfig()
	if cfg.Chunking.TargetTokens > 0 {
		chunkCfg.TargetTokens = cfg.Chunking.TargetTokens
	}
	if !cfg.Chunking.Enabled {
		// Chunking off means every message embeds as one piece; the
		// chunker's single-chunk fast path handles any length once the
		// target is out of reach.
		chunkCfg.TargetTokens = 1 << 30
		chunkCfg.MaxTokens = 1 << 30
	}
	if cfg.Chunking.Overlap > 0 {
		chunkCfg.OverlapFraction = float64(cfg.Chunking.Overlap) / float64(chunkCfg.TargetTokens)
	}
	switch cfg.Chunking.Strategy {
	case "sliding_window":
		chunkCfg.Strategy = chunk.StrategySlidingWindow
	case "paragraph":
		chunkCfg.Strategy = chunk.StrategyParagraph
	default:
		chunkCfg.Strategy = chunk.StrategySentence
	}

	pipeline := embed.NewPipeline(provider, chunkCfg, st, logger)

	searchOpts := search.DefaultOptions()
	searchOpts.RerankEnabled = cfg.Rerank.Enabled
	searchOpts.Fusion.K = cfg.Rerank.RRFK
	searchOpts.Fusion.VectorWeight = cfg.Rerank.VectorWeight
	searchOpts.Fusion.FTSWeight = 1 - cfg.Rerank.VectorWeight
	searchOpts.Expander.Enabled = cfg.Expansion.Enabled
	searchOpts.Expander.MaxVariants = cfg.Expansion.MaxVariants

	messagesBackend := retrieval.NewBackend(st, "messages")
	decisionsBackend := retrieval.NewBackend(st, "decisions")
	messagesEngine := search.NewEngineWithOptions(messagesBackend, provider, logger, searchOpts)
	decisionsEngine := search.NewEngineWithOptions(decisionsBackend, provider, logger, searchOpts)

	delSvc := deletion.NewService(st, messagesEngine, messagesBackend, st, backupDirFor(cfg), logger)

	migSvc := migrate.NewService(st, claudeRootFlag, cfg.DBPath)

	a := &app{
		cfg:        cfg,
		logger:     logger,
		store:      st,
		provider:   provider,
		pipeline:   pipeline,
		messages:   messagesEngine,
		decisions:  decisionsEngine,
		deletion:   delSvc,
		migrate:    migSvc,
		claudeRoot: claudeRootFlag,
		codexRoot:  codexRootFlag,
	}

	a.scheduler = reindex.NewScheduler(time.Duration(cfg.AutoIndex.CooldownMS)*time.Millisecond, a.reindexProject, logger)

	return a, nil
}

func (a *app) Close() {
	_ = a.logger.Sync()
	_ = a.store.Close()
}

// reindexProject satisfies reindex.Reindexer: discover, parse, and ingest
// every session file newer than lastIndexedMS for projectPath, across both
// source formats (spec §4.9).
func (a *app) reindexProject(ctx context.Context, projectPath string, lastIndexedMS int64) error {
	clean, err := sanitize.SanitizeProjectPath(projectPath)
	if err != nil {
		return err
	}

	var pr parser.ParseResult

	if a.claudeRoot != "" {
		folder := sanitize.PathToFolderName(clean)
		files, err := parser.DiscoverClaudeCodeSessions(a.claudeRoot, folder, lastIndexedMS)
		if err == nil {
			for _, f := range files {
				pr.Merge(parser.ParseClaudeCodeFile(f, clean))
			}
		} else {
			a.logger.Warn("claude-code discovery failed", zap.Error(err))
		}
	}

	if a.codexRoot != "" {
		files, err := parser.DiscoverCodexSessions(a.codexRoot, lastIndexedMS)
		if err == nil {
			for _, f := range files {
				matched := parser.ParseCodexFile(f).FilterByProjectPath(clean)
				if len(matched.Conversations) == 0 {
					continue
				}
				pr.Merge(matched)
			}
		} else {
			a.logger.Warn("codex discovery failed", zap.Error(err))
		}
	}

	_, err = ingest.Batch(ctx, a.store, a.pipeline, clean, clean, pr, ingest.Options{IncludeGitLog: true, GitLogLimit: 200}, a.logger)
	return err
}

func nowMS() int64 {
	return time.Now().UnixMilli()
}

func backupDirFor(cfg *config.Config) string {
	return cfg.DBPath + ".backups"
}
