package extract

import "github.com/kittclouds/memctl/internal/parser"

// Mistakes scans user messages for correction trigger phrases and links
// each to the immediately preceding assistant message in parse order.
func Mistakes(conversationExternalID string, messages []parser.RawMessage) []Mistake {
	var out []Mistake
	var lastAssistantID string

	for _, msg := range messages {
		switch msg.MessageType {
		case "assistant":
			lastAssistantID = msg.ExternalID
		case "user":
			text := flattenText(msg)
			if text == "" {
				continue
			}
			hits := mistakePatterns.Scan(text)
			if len(hits) == 0 {
				continue
			}
			hit := hits[0]
			out = append(out, Mistake{
				MessageExternalID:       msg.ExternalID,
				ConversationExternalID:  conversationExternalID,
				PrecedingAssistantMsgID: lastAssistantID,
				MistakeText:             extractSentence(text, hit.Start),
				CorrectionText:          text[hit.End:],
			})
		}
	}
	return out
}
