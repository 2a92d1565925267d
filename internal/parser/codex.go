package parser

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kittclouds/memctl/internal/errs"
)

// codexLine mirrors one JSONL line from a Codex rollout file.
type codexLine struct {
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"` // session_meta | response_item | event_msg | turn_context
	Payload   json.RawMessage `json:"payload"`
}

type codexSessionMeta struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Cwd       string `json:"cwd"`
	GitBranch string `json:"git_branch"`
}

type codexEventMsg struct {
	Type    string `json:"type"` // user_message | agent_message | agent_reasoning
	Message string `json:"message"`
	Text    string `json:"text"`
}

type codexResponseItem struct {
	Type      string          `json:"type"` // function_call | function_call_output | custom_tool_call | custom_tool_call_output
	Name      string          `json:"name"`
	CallID    string          `json:"call_id"`
	Arguments string          `json:"arguments"`
	Input     json.RawMessage `json:"input"`
	Output    json.RawMessage `json:"output"`
}

type codexTurnContext struct {
	Model string `json:"model"`
}

// DiscoverCodexSessions walks <codexRoot>/sessions/YYYY/MM/DD for rollout
// files, returning those newer than lastIndexedMS (0 = no filter).
func DiscoverCodexSessions(codexRoot string, lastIndexedMS int64) ([]string, error) {
	sessionsDir := filepath.Join(codexRoot, "sessions")
	var files []string

	err := filepath.Walk(sessionsDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return nil // tolerate unreadable subdirectories; continue the walk
		}
		if info.IsDir() || !strings.HasPrefix(filepath.Base(path), "rollout-") {
			return nil
		}
		if !strings.HasSuffix(path, ".jsonl") {
			return nil
		}
		if lastIndexedMS > 0 && info.ModTime().UnixMilli() <= lastIndexedMS {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.NotFound, "DiscoverCodexSessions", "codex root not found: "+sessionsDir, err)
		}
		return nil, errs.Wrap(errs.Io, "DiscoverCodexSessions", "walking "+sessionsDir, err)
	}
	return files, nil
}

// pendingToolCall correlates a function_call's call_id to its eventual
// function_call_output, mirroring the specstoryai codexcli reference parser.
type pendingToolCall struct {
	name      string
	arguments string
	timestamp int64
}

// ParseCodexFile reads one rollout file and appends its conversation,
// messages, and file edits onto a ParseResult.
func ParseCodexFile(path string) ParseResult {
	var result ParseResult

	f, err := os.Open(path)
	if err != nil {
		result.SkippedFiles = append(result.SkippedFiles, path)
		return result
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, initialScanBufferBytes), maxScanBufferBytes)

	meta := ConversationMeta{SourceType: SourceCodex}
	var lastValidTS int64
	validLines := 0
	seq := 0
	pending := make(map[string]pendingToolCall)
	var orphanToolResults int

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var raw codexLine
		if err := json.Unmarshal(line, &raw); err != nil {
			result.ParseErrors++
			continue
		}

		ts, ok := parseISO8601(raw.Timestamp)
		if !ok {
			if lastValidTS == 0 {
				result.ParseErrors++
				continue
			}
			ts = lastValidTS
		} else {
			lastValidTS = ts
		}

		switch raw.Type {
		case "session_meta":
			var sm codexSessionMeta
			if json.Unmarshal(raw.Payload, &sm) != nil {
				result.ParseErrors++
				continue
			}
			meta.ExternalID = sm.ID
			meta.ProjectPath = sm.Cwd
			meta.GitBranch = sm.GitBranch
			meta.FirstMessageAt = ts
			meta.LastMessageAt = ts
			validLines++

		case "turn_context":
			var tc codexTurnContext
			if json.Unmarshal(raw.Payload, &tc) == nil {
				meta.ClientVersion = tc.Model
			}
			validLines++

		case "event_msg":
			var em codexEventMsg
			if json.Unmarshal(raw.Payload, &em) != nil {
				result.ParseErrors++
				continue
			}
			text := em.Message
			if text == "" {
				text = em.Text
			}
			msgType := "assistant"
			role := "assistant"
			kind := ContentText
			if em.Type == "user_message" {
				msgType, role = "user", "user"
			}
			if em.Type == "agent_reasoning" {
				kind = ContentThinking
			}

			content := MessageContent{Kind: kind}
			if kind == ContentThinking {
				content.ThinkingText = text
			} else {
				content.Text = text
			}

			result.Messages = append(result.Messages, RawMessage{
				ExternalID:   meta.ExternalID + "-" + strconv.Itoa(seq),
				SessionID:    meta.ExternalID,
				MessageType:  msgType,
				Role:         role,
				Content:      []MessageContent{content},
				TimestampMS:  ts,
				TimestampOK:  true,
				MetadataJSON: "{}",
			})
			meta.LastMessageAt = ts
			meta.MessageCount++
			meta.Ongoing = em.Type == "user_message"
			seq++
			validLines++

		case "response_item":
			var ri codexResponseItem
			if json.Unmarshal(raw.Payload, &ri) != nil {
				result.ParseErrors++
				continue
			}
			switch ri.Type {
			case "function_call", "custom_tool_call":
				pending[ri.CallID] = pendingToolCall{name: ri.Name, arguments: ri.Arguments, timestamp: ts}
				result.Messages = append(result.Messages, RawMessage{
					ExternalID:  meta.ExternalID + "-tool-" + ri.CallID,
					SessionID:   meta.ExternalID,
					MessageType: "assistant",
					Role:        "assistant",
					Content: []MessageContent{{
						Kind:              ContentToolUse,
						ToolUseExternalID: ri.CallID,
						ToolName:          ri.Name,
						ToolInputJSON:     ri.Arguments,
					}},
					TimestampMS:  ts,
					TimestampOK:  true,
					MetadataJSON: "{}",
				})
				meta.MessageCount++
				validLines++

			case "function_call_output", "custom_tool_call_output":
				_, known := pending[ri.CallID]
				if !known {
					orphanToolResults++
				}
				delete(pending, ri.CallID)
				result.Messages = append(result.Messages, RawMessage{
					ExternalID:  meta.ExternalID + "-result-" + ri.CallID,
					SessionID:   meta.ExternalID,
					MessageType: "system", // tool output has no protocol-level type of its own
					Role:        "tool",
					Content: []MessageContent{{
						Kind:            ContentToolResult,
						ToolResultForID: ri.CallID,
						ToolResultText:  string(ri.Output),
					}},
					TimestampMS:  ts,
					TimestampOK:  true,
					MetadataJSON: "{}",
				})
				meta.MessageCount++
				meta.LastMessageAt = ts
				validLines++
			}
		}
	}

	if err := scanner.Err(); err != nil {
		result.ParseErrors++
	}

	if validLines == 0 || meta.ExternalID == "" {
		result.SkippedFiles = append(result.SkippedFiles, path)
		return result
	}

	result.Conversations = append(result.Conversations, meta)
	result.IndexedFolders = append(result.IndexedFolders, path)
	_ = orphanToolResults // orphan tool results are kept, not dropped; surfaced via logging by the caller
	return result
}
