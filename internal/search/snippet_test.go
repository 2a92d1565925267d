package search

import (
	"strings"
	"testing"
)

func TestSnippetHighlightsQueryTerms(t *testing.T) {
	text := "We hit a database connection error while running the migration script last night."
	out := Snippet(text, "database error", DefaultSnippetConfig())
	if out == "" {
		t.Fatal("expected non-empty snippet")
	}
	if !containsAll(out, "**database**", "**error**") {
		t.Fatalf("expected highlighted terms in snippet, got %q", out)
	}
}

func TestSnippetFallsBackWhenNoTermMatches(t *testing.T) {
	text := "Completely unrelated commentary about the weather and lunch plans."
	out := Snippet(text, "database error", DefaultSnippetConfig())
	if out == "" {
		t.Fatal("expected non-empty fallback snippet")
	}
}

func TestSnippetRespectsLengthBudget(t *testing.T) {
	text := ""
	for i := 0; i < 50; i++ {
		text += "word "
	}
	cfg := DefaultSnippetConfig()
	cfg.MaxLength = 40
	out := Snippet(text, "word", cfg)
	// The budget applies to the excerpt itself; highlight markup and the
	// trailing ellipsis sit on top of it.
	stripped := strings.ReplaceAll(out, cfg.HighlightTag[0], "")
	stripped = strings.TrimSuffix(stripped, "…")
	if len(stripped) > cfg.MaxLength+10 {
		t.Fatalf("snippet exceeds expected budget: %d chars: %q", len(stripped), out)
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !contains(s, sub) {
			return false
		}
	}
	return true
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && indexOf(s, sub) >= 0
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
