package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kittclouds/memctl/internal/retrieval"
	"github.com/kittclouds/memctl/internal/sanitize"
	"github.com/kittclouds/memctl/internal/search"
)

var (
	searchTarget  string
	searchProject string
	searchLimit   int
)

func init() {
	searchCmd.Flags().StringVar(&searchTarget, "target", "messages", "search target: messages | decisions | conversations")
	searchCmd.Flags().StringVar(&searchProject, "project", "", "restrict results to this project path")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "maximum results to return")
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Hybrid lexical+semantic search over stored transcripts",
	Long: `Search fuses FTS and vector rankings via Reciprocal Rank Fusion and prints
query-aware snippets for each hit (spec §4.6).

Examples:
  memctl search "why did we pick postgres"
  memctl search "auth middleware" --target decisions --limit 5
  memctl search "flaky test" --project /home/user/code/myapp`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var filters search.Filters
	if searchProject != "" {
		clean, err := sanitize.SanitizeProjectPath(searchProject)
		if err != nil {
			return err
		}
		projectID, err := a.store.ResolveProjectID(clean, clean)
		if err != nil {
			return err
		}
		filters.ProjectID = projectID
	}

	ctx := context.Background()
	q := search.Query{Text: query, Limit: searchLimit, Filters: filters}

	if searchTarget == "conversations" {
		hits, err := retrieval.SearchConversations(ctx, a.messages, a.store, q)
		if err != nil {
			return err
		}
		if len(hits) == 0 {
			fmt.Println("no results")
			return nil
		}
		for i, h := range hits {
			fmt.Printf("%d. conversation=%d score=%.4f\n", i+1, h.ConversationID, h.Best.CombinedScore)
			fmt.Printf("   %s\n", h.Best.Snippet)
		}
		return nil
	}

	var results []search.Result
	if searchTarget == "decisions" {
		results, err = a.decisions.SearchDecisions(ctx, q)
	} else {
		results, err = a.messages.SearchMessages(ctx, q)
	}
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("no results")
		return nil
	}
	for i, r := range results {
		fmt.Printf("%d. id=%d score=%.4f (vrank=%d, frank=%d)\n", i+1, r.ID, r.CombinedScore, r.VectorRank, r.FTSRank)
		fmt.Printf("   %s\n", r.Snippet)

		// Thinking blocks stay redacted unless include_thinking is
		// explicitly true in the loaded config (spec §6).
		if searchTarget == "messages" && a.cfg.IncludeThinking {
			blocks, terr := a.store.ThinkingBlocksForMessage(r.ID)
			if terr != nil {
				continue
			}
			for _, tb := range blocks {
				fmt.Printf("   [thinking] %s\n", tb.ThinkingContent)
			}
		}
	}
	return nil
}
