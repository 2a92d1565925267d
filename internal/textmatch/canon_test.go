package textmatch

import "testing"

func TestCanonicalize(t *testing.T) {
	cases := map[string]string{
		"Hello, World!":    "hello world",
		"don't stop":       "don't stop",
		"multi—word—dash":  "multi-word-dash",
		"  leading spaces":  "leading spaces",
		"":                  "",
	}
	for in, want := range cases {
		if got := Canonicalize(in); got != want {
			t.Errorf("Canonicalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTokenizeWithOffsetsRoundTrip(t *testing.T) {
	text := "I'll use Postgres because it's ACID."
	toks := TokenizeWithOffsets(text)
	if len(toks) == 0 {
		t.Fatal("expected tokens")
	}
	for _, tok := range toks {
		if tok.Start < 0 || tok.End > len(text) || tok.Start >= tok.End {
			t.Errorf("bad offsets for token %+v", tok)
		}
	}
}

func TestIsStopWord(t *testing.T) {
	if !IsStopWord("the") {
		t.Error("expected 'the' to be a stop word")
	}
	if IsStopWord("postgres") {
		t.Error("did not expect 'postgres' to be a stop word")
	}
}

func TestPatternSetScan(t *testing.T) {
	ps, err := CompilePatterns(map[string][]string{
		"decision": {"I'll use", "let's go with"},
	})
	if err != nil {
		t.Fatalf("CompilePatterns: %v", err)
	}

	hits := ps.Scan("I'll use Postgres for storage.")
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].Text != "I'll use" {
		t.Errorf("hit text = %q, want %q", hits[0].Text, "I'll use")
	}
	if hits[0].Labels[0] != "decision" {
		t.Errorf("hit label = %q, want %q", hits[0].Labels[0], "decision")
	}
}
