package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kittclouds/memctl/internal/sanitize"
)

var (
	memoryProject string
	memoryTTLMS   int64
)

func init() {
	memoryCmd.PersistentFlags().StringVar(&memoryProject, "project", "", "project path the entries are scoped to (required)")
	memoryCmd.PersistentFlags().Int64Var(&memoryTTLMS, "ttl-ms", 24*60*60*1000, "time to live for written entries, in milliseconds")
	_ = memoryCmd.MarkPersistentFlagRequired("project")

	memoryCmd.AddCommand(memorySetCmd)
	memoryCmd.AddCommand(memoryGetCmd)
	memoryCmd.AddCommand(memoryDelCmd)
	memoryCmd.AddCommand(memoryHandoffCmd)

	rootCmd.AddCommand(memoryCmd)
}

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Read and write TTL-scoped working memory and session handoffs",
}

var memorySetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one working-memory entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, clean, err := memoryApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return a.store.SetWorkingMemory(clean, args[0], args[1], memoryTTLMS)
	},
}

var memoryGetCmd = &cobra.Command{
	Use:   "get",
	Short: "List live working-memory entries for the project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, clean, err := memoryApp()
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.store.GetWorkingMemory(clean)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("no entries")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s = %s\n", e.Key, e.Value)
		}
		return nil
	},
}

var memoryDelCmd = &cobra.Command{
	Use:   "del <key>",
	Short: "Delete one working-memory entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, clean, err := memoryApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return a.store.DeleteWorkingMemory(clean, args[0])
	},
}

var memoryHandoffCmd = &cobra.Command{
	Use:   "handoff [content]",
	Short: "Record a session handoff, or print the latest one when no content is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, clean, err := memoryApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 1 {
			return a.store.SetSessionHandoff(clean, args[0], memoryTTLMS)
		}
		h, ok, err := a.store.GetSessionHandoff(clean)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("no handoff")
			return nil
		}
		fmt.Println(h.Content)
		return nil
	},
}

func memoryApp() (*app, string, error) {
	clean, err := sanitize.SanitizeProjectPath(memoryProject)
	if err != nil {
		return nil, "", err
	}
	a, err := newApp()
	if err != nil {
		return nil, "", err
	}
	return a, clean, nil
}
