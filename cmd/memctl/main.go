// Package main implements memctl, the process entry point for the
// conversation memory and retrieval engine (spec §1): ingest transcripts,
// run hybrid search, forget by topic, and migrate a renamed project folder.
// The line-delimited JSON-RPC surface consumed by an MCP dispatcher is out
// of scope (spec §1) — this CLI is for manual/operator use against the
// same storage and search packages that surface would call.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	cfgFile        string
	verbose        bool
	claudeRootFlag string
	codexRootFlag  string
	version        = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "memctl",
	Short:   "Conversation memory and retrieval engine",
	Long:    "memctl ingests Claude-Code and Codex transcripts into a local store and serves hybrid search, topic-forgetting, and project-folder migration over it.",
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/memctl/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&claudeRootFlag, "claude-root", defaultClaudeRoot(), "Claude-Code transcripts root (<root>/<folder_name>/*.jsonl)")
	rootCmd.PersistentFlags().StringVar(&codexRootFlag, "codex-root", defaultCodexRoot(), "Codex transcripts root (<root>/sessions/YYYY/MM/DD/rollout-*.jsonl)")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(forgetCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statsCmd)
}

// defaultClaudeRoot returns ~/.claude/projects, the conventional
// Claude-Code transcripts root (spec §6).
func defaultClaudeRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".claude", "projects")
}

// defaultCodexRoot returns ~/.codex, the conventional Codex root; session
// files live under <root>/sessions (spec §4.1).
func defaultCodexRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".codex")
}
