package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	forgetProject string
	forgetPreview bool
)

func init() {
	forgetCmd.Flags().StringVar(&forgetProject, "project", "", "project path to restrict forgetting to (required)")
	forgetCmd.Flags().BoolVar(&forgetPreview, "preview", false, "discover matches without deleting or backing up anything")
	_ = forgetCmd.MarkFlagRequired("project")
}

var forgetCmd = &cobra.Command{
	Use:   "forget <keyword> [keyword...]",
	Short: "Forget conversations matching a topic, with an automatic backup",
	Long: `Forget discovers conversations touching the given keywords via both semantic
and lexical search, writes a timestamped backup of everything it is about to
remove, then deletes the matching conversation subtrees in one transaction
(spec §4.7). Rerunning with the same keywords against an already-cleaned
store is a no-op.

Examples:
  memctl forget postgres --project /home/user/code/myapp --preview
  memctl forget postgres redis --project /home/user/code/myapp`,
	Args: cobra.MinimumNArgs(1),
	RunE: runForget,
}

func runForget(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()

	if forgetPreview {
		s, err := a.deletion.Preview(ctx, args, forgetProject)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", s.Explanation)
		fmt.Printf("matching conversations: %v\n", s.ConversationIDs)
		return nil
	}

	s, err := a.deletion.Forget(ctx, args, forgetProject)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", s.Explanation)
	if s.BackupPath != "" {
		fmt.Printf("backup: %s\n", s.BackupPath)
	}
	fmt.Printf("deleted conversations: %v\n", s.ConversationIDs)
	return nil
}
