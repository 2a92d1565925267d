package chunk

import "testing"

func TestChunkShortTextIsSingleChunk(t *testing.T) {
	cfg := DefaultConfig()
	chunks := Chunk("hello world", cfg)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].WasChunked {
		t.Error("expected WasChunked=false for short input")
	}
}

func TestChunkOffsetsMapBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TargetTokens = 5
	cfg.MaxTokens = 10

	text := "This is sentence one. This is sentence two. This is sentence three. This is sentence four."
	chunks := Chunk(text, cfg)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if c.StartOffset < 0 || c.EndOffset > len(text) || c.StartOffset >= c.EndOffset {
			t.Fatalf("bad offsets: %+v", c)
		}
		if text[c.StartOffset:c.EndOffset] != c.Content {
			t.Fatalf("content %q does not match text[%d:%d] = %q", c.Content, c.StartOffset, c.EndOffset, text[c.StartOffset:c.EndOffset])
		}
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has Index=%d", i, c.Index)
		}
		if c.TotalChunks != len(chunks) {
			t.Errorf("chunk %d has TotalChunks=%d, want %d", i, c.TotalChunks, len(chunks))
		}
	}
}

func TestParagraphStrategyPacksByBlankLines(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = StrategyParagraph
	cfg.TargetTokens = 8
	cfg.MaxTokens = 50

	text := "First paragraph with several words in it.\n\n" +
		"Second paragraph also has a handful of words.\n\n" +
		"Third paragraph rounds out the document nicely."
	chunks := Chunk(text, cfg)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if text[c.StartOffset:c.EndOffset] != c.Content {
			t.Fatalf("content %q does not match text[%d:%d]", c.Content, c.StartOffset, c.EndOffset)
		}
		if c.Strategy != StrategyParagraph {
			t.Errorf("chunk strategy = %q, want paragraph", c.Strategy)
		}
	}
}

func TestSlidingWindowAlwaysProgresses(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = StrategySlidingWindow
	cfg.TargetTokens = 3
	cfg.OverlapFraction = 0.99 // pathological overlap must not stall the loop

	text := "a b c d e f g h i j k l m n o p q r s t u v w x y z " +
		"a b c d e f g h i j k l m n o p q r s t u v w x y z"
	chunks := Chunk(text, cfg)
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
}
