package store

import "github.com/kittclouds/memctl/internal/errs"

// GetStats returns a row count per major table, for the status surface
// (spec §4.3 get_stats).
func (s *SQLiteStore) GetStats() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st Stats
	counts := []struct {
		table string
		dest  *int
	}{
		{"projects", &st.Projects},
		{"conversations", &st.Conversations},
		{"messages", &st.Messages},
		{"tool_uses", &st.ToolUses},
		{"tool_results", &st.ToolResults},
		{"decisions", &st.Decisions},
		{"mistakes", &st.Mistakes},
		{"requirements", &st.Requirements},
		{"methodologies", &st.Methodologies},
		{"file_edits", &st.FileEdits},
		{"git_commits", &st.GitCommits},
	}
	for _, c := range counts {
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM ` + c.table).Scan(c.dest); err != nil {
			return Stats{}, errs.Wrap(errs.Storage, "GetStats", "counting "+c.table, err)
		}
	}
	return st, nil
}
