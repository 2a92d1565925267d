package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateDryRun bool

func init() {
	migrateCmd.AddCommand(migrateDiscoverCmd)
	migrateCmd.AddCommand(migrateRunCmd)
	migrateCmd.AddCommand(migrateValidateCmd)
	migrateRunCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "report what would change without touching anything")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Move ingested history when a project folder is renamed",
	Long:  "migrate implements the project-folder migration workflow of spec §4.8: discover old transcript folders for a renamed working directory, validate a proposed move, and execute it with an automatic database backup.",
}

var migrateDiscoverCmd = &cobra.Command{
	Use:   "discover <current-path>",
	Short: "Find candidate old folders for a renamed project path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		candidates, err := a.migrate.DiscoverOldFolders(args[0])
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			fmt.Println("no candidate folders found")
			return nil
		}
		for _, c := range candidates {
			fmt.Printf("%-30s score=%.2f  path=%s  conversations=%d messages=%d\n",
				c.FolderName, c.Score, c.StoredProjectPath, c.Stats.Conversations, c.Stats.Messages)
		}
		return nil
	},
}

var migrateValidateCmd = &cobra.Command{
	Use:   "validate <source-folder> <target-folder>",
	Short: "Check whether a migration is safe to execute",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.migrate.ValidateMigration(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("valid=%v reason=%q\n", result.Valid, result.Reason)
		return nil
	},
}

var migrateRunCmd = &cobra.Command{
	Use:   "run <source-folder> <target-folder> <old-path> <new-path>",
	Short: "Execute a project-folder migration",
	Long: `run copies every *.jsonl file from source-folder to target-folder (leaving
the source intact), backs up the database, and repoints projects.canonical_path
and conversations.project_path from old-path to new-path in one transaction
(spec §4.8).

Example:
  memctl migrate run -old-proj -new-proj /old/proj /new/proj
  memctl migrate run -old-proj -new-proj /old/proj /new/proj --dry-run`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.migrate.ExecuteMigration(args[0], args[1], args[2], args[3], migrateDryRun)
		if err != nil {
			return err
		}
		if migrateDryRun {
			fmt.Printf("dry run: would copy %d files from %s to %s\n", result.FilesCopied, result.SourceFolder, result.TargetFolder)
			return nil
		}
		fmt.Printf("copied %d files, backup=%s\n", result.FilesCopied, result.BackupPath)
		return nil
	},
}
