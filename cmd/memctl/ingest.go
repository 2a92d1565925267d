package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kittclouds/memctl/internal/ingest"
	"github.com/kittclouds/memctl/internal/parser"
	"github.com/kittclouds/memctl/internal/sanitize"
)

var (
	ingestProject     string
	ingestSkipEmbed   bool
	ingestIncludeGit  bool
	ingestGitLogLimit int
)

func init() {
	ingestCmd.Flags().StringVar(&ingestProject, "project", "", "project path to ingest transcripts for (required)")
	ingestCmd.Flags().BoolVar(&ingestSkipEmbed, "skip-embedding", false, "store rows without computing embeddings")
	ingestCmd.Flags().BoolVar(&ingestIncludeGit, "git-log", true, "backfill git commits by walking the project's working tree")
	ingestCmd.Flags().IntVar(&ingestGitLogLimit, "git-log-limit", 200, "maximum commits to backfill from git log")
	_ = ingestCmd.MarkFlagRequired("project")
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Parse and store transcripts for one project",
	Long: `Ingest discovers Claude-Code and Codex session files for --project, parses
them into conversations/messages/tool uses/decisions/mistakes/requirements/
methodologies/file edits, stores them, and embeds message and decision text
into the vector index (spec §4.1-§4.5).

Examples:
  memctl ingest --project /home/user/code/myapp
  memctl ingest --project /home/user/code/myapp --skip-embedding
  memctl ingest --project /home/user/code/myapp --claude-root ~/.claude/projects`,
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	clean, err := sanitize.SanitizeProjectPath(ingestProject)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var pr parser.ParseResult

	if a.claudeRoot != "" {
		folder := sanitize.PathToFolderName(clean)
		files, derr := parser.DiscoverClaudeCodeSessions(a.claudeRoot, folder, 0)
		if derr != nil {
			a.logger.Warn("claude-code discovery failed", zap.Error(derr))
		} else {
			for _, f := range files {
				pr.Merge(parser.ParseClaudeCodeFile(f, clean))
			}
		}
	}

	if a.codexRoot != "" {
		files, derr := parser.DiscoverCodexSessions(a.codexRoot, 0)
		if derr != nil {
			a.logger.Warn("codex discovery failed", zap.Error(derr))
		} else {
			for _, f := range files {
				matched := parser.ParseCodexFile(f).FilterByProjectPath(clean)
				if len(matched.Conversations) == 0 {
					continue
				}
				pr.Merge(matched)
			}
		}
	}

	opts := ingest.Options{
		IncludeGitLog: ingestIncludeGit,
		GitLogLimit:   ingestGitLogLimit,
		SkipEmbedding: ingestSkipEmbed,
	}
	res, err := ingest.Batch(context.Background(), a.store, a.pipeline, clean, clean, pr, opts, a.logger)
	if err != nil {
		return err
	}
	a.scheduler.Touch(clean, nowMS())

	fmt.Printf("project:        %s (id=%d)\n", clean, res.ProjectID)
	fmt.Printf("conversations:  %d\n", res.ConversationsIn)
	fmt.Printf("messages:       %d\n", res.MessagesIn)
	fmt.Printf("decisions:      %d\n", res.DecisionsIn)
	fmt.Printf("mistakes:       %d\n", res.MistakesIn)
	fmt.Printf("requirements:   %d\n", res.RequirementsIn)
	fmt.Printf("methodologies:  %d\n", res.MethodologiesIn)
	fmt.Printf("file edits:     %d\n", res.FileEditsIn)
	fmt.Printf("git commits:    %d\n", res.GitCommitsIn)
	fmt.Printf("parse errors:   %d\n", res.ParseErrors)
	if len(res.SkippedFiles) > 0 {
		fmt.Printf("skipped files:  %d\n", len(res.SkippedFiles))
	}
	return nil
}
