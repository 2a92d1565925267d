package extract

import (
	"strings"

	"github.com/kittclouds/memctl/internal/parser"
)

// alternativeMarkers introduce an enumerated alternative within a decision
// statement ("X vs Y", "X versus Y", "either A or B", "alternatively").
var alternativeMarkers = []string{" vs ", " versus ", " or ", "alternatively"}

// Decisions scans an assistant message's text blocks for decision trigger
// phrases and emits at most one Decision per message, built from its first
// hit. Never errors; unmatched text yields no records.
func Decisions(conversationExternalID string, messages []parser.RawMessage) []Decision {
	var out []Decision

	for _, msg := range messages {
		if msg.MessageType != "assistant" {
			continue
		}
		text := flattenText(msg)
		if text == "" {
			continue
		}

		hits := decisionPatterns.Scan(text)
		if len(hits) == 0 {
			continue
		}

		// Only the first hit per message becomes a record: a message
		// rarely states more than one decision, and deduping here keeps
		// output stable if the trigger phrase repeats.
		hit := hits[0]
		sentence := extractSentence(text, hit.Start)

		d := Decision{
			MessageExternalID:      msg.ExternalID,
			ConversationExternalID: conversationExternalID,
			DecisionText:           sentence,
			Rationale:              rationaleAfter(text, hit.End),
		}
		d.AlternativesConsidered = alternatives(sentence)
		out = append(out, d)
	}
	return out
}

func flattenText(msg parser.RawMessage) string {
	var sb strings.Builder
	for _, c := range msg.Content {
		if c.Kind == parser.ContentText {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(c.Text)
		}
	}
	return sb.String()
}

// extractSentence returns the sentence containing byte offset pos.
func extractSentence(text string, pos int) string {
	start := 0
	for i := pos - 1; i >= 0; i-- {
		if text[i] == '.' || text[i] == '\n' || text[i] == '!' || text[i] == '?' {
			start = i + 1
			break
		}
	}
	end := len(text)
	for i := pos; i < len(text); i++ {
		if text[i] == '.' || text[i] == '\n' || text[i] == '!' || text[i] == '?' {
			end = i + 1
			break
		}
	}
	return strings.TrimSpace(text[start:end])
}

// rationaleAfter pulls a "because ..." clause following a decision trigger,
// if present in the same sentence.
func rationaleAfter(text string, from int) string {
	rest := text[from:]
	if end := strings.IndexAny(rest, ".!?\n"); end >= 0 {
		rest = rest[:end+1]
	}
	lower := strings.ToLower(rest)
	for _, marker := range []string{"because", "since", "as it", "so that"} {
		if idx := strings.Index(lower, marker); idx >= 0 {
			return strings.TrimSpace(rest[idx:])
		}
	}
	return ""
}

func alternatives(sentence string) []string {
	lower := strings.ToLower(sentence)
	for _, marker := range alternativeMarkers {
		if strings.Contains(lower, marker) {
			parts := strings.Split(lower, marker)
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			return trimmed
		}
	}
	return nil
}
