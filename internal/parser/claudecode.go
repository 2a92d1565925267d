package parser

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kittclouds/memctl/internal/errs"
	"github.com/kittclouds/memctl/internal/sanitize"
)

const (
	initialScanBufferBytes = 64 * 1024
	maxScanBufferBytes     = 4 * 1024 * 1024
)

// claudeCodeLine mirrors one JSONL line from a Claude-Code session file.
// Fields not listed here are dropped when a line is decoded; none of them
// are copied into MessageContent.Metadata.
type claudeCodeLine struct {
	UUID          string          `json:"uuid"`
	ParentUUID    string          `json:"parentUuid"`
	SessionID     string          `json:"sessionId"`
	Type          string          `json:"type"`
	Timestamp     string          `json:"timestamp"`
	IsSidechain   bool            `json:"isSidechain"`
	IsMeta        bool            `json:"isMeta"`
	ToolUseResult json.RawMessage `json:"toolUseResult"`
	Message       *struct {
		Role    string          `json:"role"`
		Model   string          `json:"model"`
		Content json.RawMessage `json:"content"`
	} `json:"message"`
}

type claudeContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Thinking  string          `json:"thinking"`
	Signature string          `json:"signature"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
	IsError   bool            `json:"is_error"`
}

// IsSubagentSession reports whether path names a subagent transcript rather
// than a top-level session: either a bare `agent_*.jsonl` file, or one
// nested under a `<session-uuid>/agent_*.jsonl` directory. Subagent files
// are never discovered as independent conversations (SPEC_FULL.md feature
// supplement, grounded in the Claude-Code parser reference).
func IsSubagentSession(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, "agent_")
}

// DiscoverClaudeCodeSessions lists session files under projectsRoot/folderName,
// excluding subagent files, skipping those whose mtime is at or before
// lastIndexedMS when lastIndexedMS > 0 (incremental mode, spec §4.1).
func DiscoverClaudeCodeSessions(projectsRoot, folderName string, lastIndexedMS int64) ([]string, error) {
	dir := filepath.Join(projectsRoot, folderName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.NotFound, "DiscoverClaudeCodeSessions", "projects root not found: "+dir, err)
		}
		return nil, errs.Wrap(errs.Io, "DiscoverClaudeCodeSessions", "reading "+dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		if IsSubagentSession(e.Name()) {
			continue
		}
		full := filepath.Join(dir, e.Name())
		if lastIndexedMS > 0 {
			info, err := e.Info()
			if err == nil && info.ModTime().UnixMilli() <= lastIndexedMS {
				continue
			}
		}
		files = append(files, full)
	}
	return files, nil
}

// ParseClaudeCodeFile reads one session file and appends its conversation,
// messages, and file edits onto a ParseResult. Malformed lines are counted,
// never fatal; a file with zero valid lines is reported via SkippedFiles.
func ParseClaudeCodeFile(path, projectPath string) ParseResult {
	var result ParseResult

	f, err := os.Open(path)
	if err != nil {
		result.SkippedFiles = append(result.SkippedFiles, path)
		return result
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, initialScanBufferBytes), maxScanBufferBytes)

	meta := ConversationMeta{SourceType: SourceClaudeCode, ProjectPath: projectPath}
	var lastValidTS int64
	validLines := 0
	order := 0

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var raw claudeCodeLine
		if err := json.Unmarshal(line, &raw); err != nil {
			result.ParseErrors++
			continue
		}
		if raw.Message == nil || raw.SessionID == "" {
			result.ParseErrors++
			continue
		}

		ts, ok := parseISO8601(raw.Timestamp)
		if !ok {
			if lastValidTS == 0 {
				// No usable timestamp to inherit: drop per spec §9 Open Question (b).
				result.ParseErrors++
				continue
			}
			ts = lastValidTS
		} else {
			lastValidTS = ts
		}

		if meta.ExternalID == "" {
			meta.ExternalID = raw.SessionID
			meta.FirstMessageAt = ts
		}
		meta.LastMessageAt = ts

		blocks, fileEdits := decodeClaudeContent(raw.Message.Content, meta.ExternalID, ts)
		result.FileEdits = append(result.FileEdits, fileEdits...)

		msgType := classifyMessageType(raw.Message.Role)
		msg := RawMessage{
			ExternalID:   raw.UUID,
			ParentID:     raw.ParentUUID,
			SessionID:    raw.SessionID,
			MessageType:  msgType,
			Role:         raw.Message.Role,
			Content:      blocks,
			TimestampMS:  ts,
			TimestampOK:  true,
			IsSidechain:  raw.IsSidechain,
			MetadataJSON: "{}",
		}
		result.Messages = append(result.Messages, msg)
		meta.MessageCount++
		validLines++
		order++

		if isEndingEvent(raw, blocks) {
			meta.Ongoing = false
		} else if msgType == "assistant" {
			meta.Ongoing = true
		}
	}

	if err := scanner.Err(); err != nil {
		result.ParseErrors++
	}

	if validLines == 0 {
		result.SkippedFiles = append(result.SkippedFiles, path)
		return result
	}

	result.Conversations = append(result.Conversations, meta)
	result.IndexedFolders = append(result.IndexedFolders, path)
	return result
}

func classifyMessageType(role string) string {
	switch role {
	case "user":
		return "user"
	case "assistant":
		return "assistant"
	default:
		return "system"
	}
}

func decodeClaudeContent(raw json.RawMessage, sessionExternalID string, ts int64) ([]MessageContent, []FileEditRecord) {
	var blocks []claudeContentBlock

	// content may be a bare string or an array of typed blocks.
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return []MessageContent{{Kind: ContentText, Text: asString}}, nil
	}
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil, nil
	}

	out := make([]MessageContent, 0, len(blocks))
	var edits []FileEditRecord

	for _, b := range blocks {
		switch b.Type {
		case "text":
			out = append(out, MessageContent{Kind: ContentText, Text: b.Text})
		case "thinking":
			out = append(out, MessageContent{Kind: ContentThinking, ThinkingText: b.Thinking, Signature: b.Signature})
		case "tool_use":
			out = append(out, MessageContent{
				Kind:              ContentToolUse,
				ToolUseExternalID: b.ID,
				ToolName:          b.Name,
				ToolInputJSON:     string(b.Input),
			})
			if editType, path, ok := fileEditFromToolUse(b.Name, b.Input); ok {
				edits = append(edits, FileEditRecord{
					ConversationExternalID: sessionExternalID,
					FilePath:               path,
					EditType:               editType,
					TimestampMS:            ts,
				})
			}
		case "tool_result":
			out = append(out, decodeToolResult(b))
		}
	}
	return out, edits
}

func decodeToolResult(b claudeContentBlock) MessageContent {
	text := ""
	if len(b.Content) > 0 {
		var s string
		if err := json.Unmarshal(b.Content, &s); err == nil {
			text = s
		} else {
			text = string(b.Content)
		}
	}
	return MessageContent{
		Kind:            ContentToolResult,
		ToolResultForID: b.ToolUseID,
		ToolResultText:  text,
		IsError:         b.IsError,
	}
}

func fileEditFromToolUse(toolName string, input json.RawMessage) (editType, path string, ok bool) {
	var args struct {
		FilePath string `json:"file_path"`
	}
	if json.Unmarshal(input, &args) != nil || args.FilePath == "" {
		return "", "", false
	}
	switch toolName {
	case "Write":
		return "create", args.FilePath, true
	case "Edit", "MultiEdit", "NotebookEdit":
		return "edit", args.FilePath, true
	default:
		return "", "", false
	}
}

// isEndingEvent reports whether this line marks the end of an assistant
// turn: an ExitPlanMode tool use, a shutdown-approval tool use, or a
// "User rejected tool use" result string (SPEC_FULL.md feature supplement,
// grounded in the Claude-Code parser reference's ongoing-activity state
// machine).
func isEndingEvent(raw claudeCodeLine, blocks []MessageContent) bool {
	for _, b := range blocks {
		if b.Kind == ContentToolUse && (b.ToolName == "ExitPlanMode" || strings.Contains(strings.ToLower(b.ToolName), "approv")) {
			return true
		}
		if b.Kind == ContentToolResult && strings.Contains(b.ToolResultText, "User rejected tool use") {
			return true
		}
	}
	if len(raw.ToolUseResult) > 0 && strings.Contains(string(raw.ToolUseResult), "User rejected tool use") {
		return true
	}
	return false
}

func parseISO8601(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return 0, false
		}
	}
	return t.UnixMilli(), true
}

// ClaudeCodeFolderName derives the on-disk folder name for a project path.
// Exposed here (rather than only in sanitize) because the parser is the
// component that actually needs it to locate session files.
func ClaudeCodeFolderName(projectPath string) (string, error) {
	clean, err := sanitize.SanitizeProjectPath(projectPath)
	if err != nil {
		return "", err
	}
	return sanitize.PathToFolderName(clean), nil
}
