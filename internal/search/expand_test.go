package search_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kittclouds/memctl/internal/search"
)

// TestExpand_Disabled returns only the original query when expansion is off.
func TestExpand_Disabled(t *testing.T) {
	got := search.Expand("database error", search.ExpanderConfig{Enabled: false})
	assert.Equal(t, []string{"database error"}, got)
}

// TestExpand_GeneratesSynonymVariants exercises the built-in domain synonym
// overlay spec §4.6 names (error/api/database/function/auth categories).
func TestExpand_GeneratesSynonymVariants(t *testing.T) {
	got := search.Expand("database error", search.ExpanderConfig{Enabled: true, MaxVariants: 10})

	assert.Equal(t, "database error", got[0], "the original query is always first")
	assert.Contains(t, got, "db error")
	assert.Contains(t, got, "database exception")
}

// TestExpand_RespectsMaxVariants caps the number of generated variants even
// when more synonym combinations are available.
func TestExpand_RespectsMaxVariants(t *testing.T) {
	got := search.Expand("database error", search.ExpanderConfig{Enabled: true, MaxVariants: 2})
	assert.Len(t, got, 2)
}

// TestExpand_OverlayTakesPrecedenceOverBuiltins checks that a caller-supplied
// synonym overlay contributes variants and that they come before the
// built-in map's own.
func TestExpand_OverlayTakesPrecedenceOverBuiltins(t *testing.T) {
	got := search.Expand("login failed", search.ExpanderConfig{
		Enabled:     true,
		MaxVariants: 10,
		Overlay:     map[string][]string{"login": {"logon"}},
	})
	assert.Contains(t, got, "logon failed")
	if len(got) > 1 {
		assert.Equal(t, "logon failed", got[1], "overlay variants precede built-in ones")
	}
}

// TestExpand_NoRecognizedTokensReturnsOriginalOnly covers a query made only
// of stop words or unrecognized terms: expansion finds nothing to vary.
func TestExpand_NoRecognizedTokensReturnsOriginalOnly(t *testing.T) {
	got := search.Expand("the a an", search.ExpanderConfig{Enabled: true, MaxVariants: 5})
	assert.Equal(t, []string{"the a an"}, got)
}
