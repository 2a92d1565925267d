package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print row counts per table",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.store.GetStats()
		if err != nil {
			return err
		}
		fmt.Printf("projects:      %d\n", st.Projects)
		fmt.Printf("conversations: %d\n", st.Conversations)
		fmt.Printf("messages:      %d\n", st.Messages)
		fmt.Printf("tool_uses:     %d\n", st.ToolUses)
		fmt.Printf("tool_results:  %d\n", st.ToolResults)
		fmt.Printf("decisions:     %d\n", st.Decisions)
		fmt.Printf("mistakes:      %d\n", st.Mistakes)
		fmt.Printf("requirements:  %d\n", st.Requirements)
		fmt.Printf("methodologies: %d\n", st.Methodologies)
		fmt.Printf("file_edits:    %d\n", st.FileEdits)
		fmt.Printf("git_commits:   %d\n", st.GitCommits)
		return nil
	},
}
