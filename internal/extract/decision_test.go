package extract

import (
	"testing"

	"github.com/kittclouds/memctl/internal/parser"
)

func assistantMsg(id, text string) parser.RawMessage {
	return parser.RawMessage{
		ExternalID:  id,
		MessageType: "assistant",
		Content:     []parser.MessageContent{{Kind: parser.ContentText, Text: text}},
	}
}

func userMsg(id, text string) parser.RawMessage {
	return parser.RawMessage{
		ExternalID:  id,
		MessageType: "user",
		Content:     []parser.MessageContent{{Kind: parser.ContentText, Text: text}},
	}
}

func TestDecisionsMatchesTrigger(t *testing.T) {
	msgs := []parser.RawMessage{
		assistantMsg("m1", "I'll use Postgres because it has strong JSON support."),
	}
	decisions := Decisions("c1", msgs)
	if len(decisions) != 1 {
		t.Fatalf("expected 1 decision, got %d", len(decisions))
	}
	if decisions[0].Rationale == "" {
		t.Error("expected a rationale to be extracted")
	}
}

func TestDecisionsNoMatchProducesNoRecord(t *testing.T) {
	msgs := []parser.RawMessage{assistantMsg("m1", "Here is the file you asked for.")}
	if got := Decisions("c1", msgs); len(got) != 0 {
		t.Fatalf("expected no decisions, got %d", len(got))
	}
}

func TestMistakesLinksToPrecedingAssistant(t *testing.T) {
	msgs := []parser.RawMessage{
		assistantMsg("a1", "I updated the config file."),
		userMsg("u1", "That's wrong, the port should be 8080."),
	}
	mistakes := Mistakes("c1", msgs)
	if len(mistakes) != 1 {
		t.Fatalf("expected 1 mistake, got %d", len(mistakes))
	}
	if mistakes[0].PrecedingAssistantMsgID != "a1" {
		t.Errorf("preceding assistant id = %q, want %q", mistakes[0].PrecedingAssistantMsgID, "a1")
	}
}

func TestMethodologiesSegmentsSpan(t *testing.T) {
	msgs := []parser.RawMessage{
		userMsg("u1", "There's a bug in the login flow."),
		assistantMsg("a1", "Let me debug this."),
		userMsg("u2", "That fixed it, thanks."),
	}
	spans := Methodologies("c1", msgs)
	if len(spans) != 1 {
		t.Fatalf("expected 1 methodology span, got %d", len(spans))
	}
	if spans[0].Outcome != "success" {
		t.Errorf("outcome = %q, want success", spans[0].Outcome)
	}
}
