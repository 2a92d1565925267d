package extract

import "github.com/kittclouds/memctl/internal/parser"

// Requirements scans every message (either role, unlike Decisions which is
// assistant-only) for stated-constraint trigger phrases and emits one
// Requirement per hit.
func Requirements(conversationExternalID string, messages []parser.RawMessage) []Requirement {
	var out []Requirement

	for _, msg := range messages {
		if msg.MessageType == "system" {
			continue
		}
		text := flattenText(msg)
		if text == "" {
			continue
		}

		hits := requirementPatterns.Scan(text)
		if len(hits) == 0 {
			continue
		}

		hit := hits[0]
		out = append(out, Requirement{
			MessageExternalID:      msg.ExternalID,
			ConversationExternalID: conversationExternalID,
			RequirementText:        extractSentence(text, hit.Start),
		})
	}
	return out
}
