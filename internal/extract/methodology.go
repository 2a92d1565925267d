package extract

import (
	"strings"

	"github.com/kittclouds/memctl/internal/parser"
)

// approachKeywords map a loose vocabulary onto the six Approach values; the
// span's approach is the keyword set with the most hits across its text,
// defaulting to ApproachImplementation if none match (the most common case
// in practice).
var approachKeywords = map[Approach][]string{
	ApproachExploration:    {"explore", "look at", "understand", "figure out how"},
	ApproachResearch:       {"research", "look up", "find documentation", "check the docs"},
	ApproachImplementation: {"implement", "add", "build", "write", "create"},
	ApproachDebugging:      {"debug", "bug", "error", "crash", "fails", "failing", "trace"},
	ApproachRefactoring:    {"refactor", "clean up", "restructure", "simplify"},
	ApproachTesting:        {"test", "write tests", "verify", "check that"},
}

// Methodologies segments a conversation into problem-solving spans
// delimited by a problem-statement trigger and a terminating
// success/failure trigger, classifying the approach and recording ordered
// tool-use steps (spec §4.2).
func Methodologies(conversationExternalID string, messages []parser.RawMessage) []Methodology {
	var out []Methodology
	var current *Methodology
	var spanText strings.Builder

	flush := func(outcome string) {
		if current == nil {
			return
		}
		current.Outcome = outcome
		current.Approach = classifyApproach(spanText.String())
		out = append(out, *current)
		current = nil
		spanText.Reset()
	}

	for _, msg := range messages {
		text := flattenText(msg)

		if msg.MessageType == "user" && text != "" && len(problemPatterns.Scan(text)) > 0 {
			flush("abandoned") // an unterminated prior span is treated as abandoned
			current = &Methodology{
				ConversationExternalID: conversationExternalID,
				StartMessageExternalID: msg.ExternalID,
			}
		}

		if current == nil {
			continue
		}

		current.EndMessageExternalID = msg.ExternalID
		spanText.WriteString(text)
		spanText.WriteByte(' ')

		for _, c := range msg.Content {
			if c.Kind == parser.ContentToolUse {
				current.Steps = append(current.Steps, MethodologyStep{
					ToolName:  c.ToolName,
					Summary:   c.ToolName,
					Timestamp: msg.TimestampMS,
				})
			}
		}

		if msg.MessageType == "user" && text != "" {
			if hits := outcomePatterns.Scan(text); len(hits) > 0 {
				outcome := "success"
				if len(hits[0].Labels) > 0 {
					outcome = hits[0].Labels[0]
				}
				flush(outcome)
			}
		}
	}
	flush("abandoned")
	return out
}

// approachOrder fixes the tie-break sequence: classification must be
// deterministic, and ranging over approachKeywords directly would make ties
// depend on map iteration order.
var approachOrder = []Approach{
	ApproachDebugging, ApproachTesting, ApproachRefactoring,
	ApproachResearch, ApproachExploration, ApproachImplementation,
}

func classifyApproach(text string) Approach {
	lower := strings.ToLower(text)
	best := ApproachImplementation
	bestCount := 0
	for _, approach := range approachOrder {
		count := 0
		for _, kw := range approachKeywords[approach] {
			count += strings.Count(lower, kw)
		}
		if count > bestCount {
			bestCount = count
			best = approach
		}
	}
	return best
}
