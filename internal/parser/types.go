// Package parser turns Claude-Code and Codex JSONL transcript files into a
// uniform event stream (spec §4.1).
package parser

// SourceType identifies which external client produced a transcript.
type SourceType string

const (
	SourceClaudeCode SourceType = "claude-code"
	SourceCodex      SourceType = "codex"
)

// ContentKind tags a MessageContent variant (spec §9's tagged-variant
// representation for dynamic transcript payloads).
type ContentKind string

const (
	ContentText       ContentKind = "text"
	ContentThinking   ContentKind = "thinking"
	ContentToolUse    ContentKind = "tool_use"
	ContentToolResult ContentKind = "tool_result"
)

// MessageContent is one typed block of a message's content array. Exactly
// the fields relevant to Kind are populated; neither parser in this package
// sets Metadata.
type MessageContent struct {
	Kind ContentKind

	Text string // ContentText

	ThinkingText string // ContentThinking
	Signature    string // ContentThinking, optional

	ToolUseExternalID string // ContentToolUse
	ToolName          string // ContentToolUse
	ToolInputJSON     string // ContentToolUse, raw JSON

	ToolResultForID string // ContentToolResult: ToolUse external id it answers
	ToolResultText  string // ContentToolResult
	IsError         bool   // ContentToolResult
	Stdout          string // ContentToolResult, optional
	Stderr          string // ContentToolResult, optional
	IsImage         bool   // ContentToolResult

	Metadata map[string]any
}

// RawMessage is one parsed transcript line, prior to id resolution. External
// ids (session id, parent id, tool_use id) are plain strings; the storage
// layer resolves them to integer foreign keys (spec §9's cyclic-reference
// resolution — no in-memory cycles are kept here).
type RawMessage struct {
	ExternalID    string
	ParentID      string // external id of the parent message, if any
	SessionID     string // external conversation id
	MessageType   string // user | assistant | system
	Role          string
	Content       []MessageContent
	TimestampMS   int64
	TimestampOK   bool // false if the timestamp failed to parse
	IsSidechain   bool
	MetadataJSON  string
}

// ConversationMeta accumulates conversation-level fields discovered while
// scanning a session file.
type ConversationMeta struct {
	ExternalID     string
	ProjectPath    string
	SourceType     SourceType
	FirstMessageAt int64
	LastMessageAt  int64
	MessageCount   int
	GitBranch      string
	ClientVersion  string
	MetadataJSON   string

	// Ongoing is a derived, non-spec-mandated flag (SPEC_FULL.md feature
	// supplement): true if the conversation's tail looks like an
	// in-progress turn rather than one that ended on ExitPlanMode, a
	// rejected tool use, or a shutdown approval.
	Ongoing bool
}

// FileEditRecord is emitted whenever a parsed tool use edits a file on disk,
// letting the storage layer populate the FileEdit table without a second
// pass over tool_uses.
type FileEditRecord struct {
	ConversationExternalID string
	FilePath               string
	EditType               string // create | edit
	TimestampMS            int64
}

// ParseResult is the uniform output of parsing one or more session files,
// per spec §4.1.
type ParseResult struct {
	Conversations   []ConversationMeta
	Messages        []RawMessage
	FileEdits       []FileEditRecord
	IndexedFolders  []string // folder/session-file paths successfully read
	ParseErrors     int      // malformed lines skipped
	SkippedFiles    []string // files with no recognisable session header
}

// FilterByProjectPath returns a copy of r keeping only conversations whose
// ProjectPath equals path, plus the messages and file edits belonging to
// them. Counters and skip lists carry over unchanged: a parse error is a
// property of the file, not of any one conversation in it. Used when a
// multi-project source tree (Codex's date-sharded rollouts) is parsed on
// behalf of a single project.
func (r ParseResult) FilterByProjectPath(path string) ParseResult {
	keep := make(map[string]bool, len(r.Conversations))
	out := ParseResult{
		IndexedFolders: r.IndexedFolders,
		ParseErrors:    r.ParseErrors,
		SkippedFiles:   r.SkippedFiles,
	}
	for _, c := range r.Conversations {
		if c.ProjectPath == path {
			keep[c.ExternalID] = true
			out.Conversations = append(out.Conversations, c)
		}
	}
	for _, m := range r.Messages {
		if keep[m.SessionID] {
			out.Messages = append(out.Messages, m)
		}
	}
	for _, fe := range r.FileEdits {
		if keep[fe.ConversationExternalID] {
			out.FileEdits = append(out.FileEdits, fe)
		}
	}
	return out
}

// Merge appends other's records onto r in place, summing counters.
func (r *ParseResult) Merge(other ParseResult) {
	r.Conversations = append(r.Conversations, other.Conversations...)
	r.Messages = append(r.Messages, other.Messages...)
	r.FileEdits = append(r.FileEdits, other.FileEdits...)
	r.IndexedFolders = append(r.IndexedFolders, other.IndexedFolders...)
	r.ParseErrors += other.ParseErrors
	r.SkippedFiles = append(r.SkippedFiles, other.SkippedFiles...)
}
