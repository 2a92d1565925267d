// Package store owns the embedded SQLite connection: schema migrations,
// transactional upserts for every entity in the conversation-memory model,
// FTS5/vector shadow-index maintenance, and project-path resolution.
package store

// Project is a root conversation-memory scope keyed by a canonical
// filesystem path (spec §3).
type Project struct {
	ID            int64  `json:"id"`
	CanonicalPath string `json:"canonicalPath"`
	DisplayPath   string `json:"displayPath"`
	CreatedAt     int64  `json:"createdAt"`
	UpdatedAt     int64  `json:"updatedAt"`
}

// ProjectAlias redirects a renamed/alternate path to an existing project
// without creating a duplicate Project row.
type ProjectAlias struct {
	AliasPath string `json:"aliasPath"`
	ProjectID int64  `json:"projectId"`
}

// SourceType is the transcript format a Conversation was ingested from.
type SourceType string

const (
	SourceClaudeCode SourceType = "claude-code"
	SourceCodex      SourceType = "codex"
)

// Conversation is one ingested session.
type Conversation struct {
	ID              int64      `json:"id"`
	ProjectID       int64      `json:"projectId"`
	ProjectPath     string     `json:"projectPath"`
	SourceType      SourceType `json:"sourceType"`
	ExternalID      string     `json:"externalId"`
	FirstMessageAt  int64      `json:"firstMessageAt"`
	LastMessageAt   int64      `json:"lastMessageAt"`
	MessageCount    int        `json:"messageCount"`
	GitBranch       string     `json:"gitBranch,omitempty"`
	ClientVersion   string     `json:"clientVersion,omitempty"`
	MetadataJSON    string     `json:"metadataJson,omitempty"`
}

// MessageType classifies a Message's originating role at the protocol
// level (distinct from the conversational Role, e.g. tool vs system).
type MessageType string

const (
	MessageUser      MessageType = "user"
	MessageAssistant MessageType = "assistant"
	MessageSystem    MessageType = "system"
)

// Message is one conversational turn, exclusively owned by its Conversation.
// ConversationExternalID is resolved to ConversationID by StoreMessages via
// the caller-supplied id map; ConversationID itself is set on return and
// need not be populated by the caller.
type Message struct {
	ID                      int64       `json:"id"`
	ConversationID          int64       `json:"conversationId"`
	ConversationExternalID  string      `json:"-"`
	ExternalID              string      `json:"externalId"`
	ParentID                int64       `json:"parentId,omitempty"`
	MessageType             MessageType `json:"messageType"`
	Role                    string      `json:"role"`
	Content                 string      `json:"content"`
	Timestamp               int64       `json:"timestamp"`
	IsSidechain             bool        `json:"isSidechain"`
	MetadataJSON            string      `json:"metadataJson,omitempty"`
}

// ToolUse is a tool invocation embedded in an assistant Message. ExternalID
// is the transcript's own id for the call (Claude-Code's tool_use id,
// Codex's call_id), used to correlate a later ToolResult without keeping an
// in-memory cycle (spec §9).
type ToolUse struct {
	ID            int64  `json:"id"`
	MessageID     int64  `json:"messageId"`
	ExternalID    string `json:"externalId"`
	ToolName      string `json:"toolName"`
	ToolInputJSON string `json:"toolInputJson"`
	Timestamp     int64  `json:"timestamp"`
}

// ToolResult is the outcome of a ToolUse. ToolUseID is 0 when the result is
// orphaned (no matching ToolUse was found); orphans are logged and kept,
// never dropped, per spec §3.
type ToolResult struct {
	ID        int64  `json:"id"`
	ToolUseID int64  `json:"toolUseId,omitempty"`
	MessageID int64  `json:"messageId"`
	Content   string `json:"content"`
	IsError   bool   `json:"isError"`
	Stdout    string `json:"stdout,omitempty"`
	Stderr    string `json:"stderr,omitempty"`
	IsImage   bool   `json:"isImage"`
	Timestamp int64  `json:"timestamp"`
}

// ThinkingBlock holds an assistant's internal reasoning for a Message.
// Redacted by default at retrieval time unless the caller opts in.
type ThinkingBlock struct {
	ID              int64  `json:"id"`
	MessageID       int64  `json:"messageId"`
	ThinkingContent string `json:"thinkingContent"`
	Signature       string `json:"signature,omitempty"`
	Timestamp       int64  `json:"timestamp"`
}

// Decision is a derived record emitted by the decision extractor.
type Decision struct {
	ID                  int64  `json:"id"`
	ConversationID      int64  `json:"conversationId"`
	MessageID           int64  `json:"messageId"`
	DecisionText        string `json:"decisionText"`
	Rationale           string `json:"rationale,omitempty"`
	AlternativesJSON    string `json:"alternativesJson,omitempty"`
	RejectedReasonsJSON string `json:"rejectedReasonsJson,omitempty"`
	RelatedFilesJSON    string `json:"relatedFilesJson,omitempty"`
	RelatedCommitsJSON  string `json:"relatedCommitsJson,omitempty"`
	CreatedAt           int64  `json:"createdAt"`
}

// Mistake is a derived record emitted by the mistake extractor, linked to
// the assistant Message it corrects.
type Mistake struct {
	ID                 int64  `json:"id"`
	ConversationID      int64  `json:"conversationId"`
	MessageID           int64  `json:"messageId"`
	CorrectionText      string `json:"correctionText"`
	PrecedingActionText string `json:"precedingActionText,omitempty"`
	RelatedFilesJSON    string `json:"relatedFilesJson,omitempty"`
	RelatedCommitsJSON  string `json:"relatedCommitsJson,omitempty"`
	CreatedAt           int64  `json:"createdAt"`
}

// Requirement is a derived record capturing a stated constraint or
// acceptance criterion.
type Requirement struct {
	ID               int64  `json:"id"`
	ConversationID   int64  `json:"conversationId"`
	MessageID        int64  `json:"messageId"`
	RequirementText  string `json:"requirementText"`
	RelatedFilesJSON string `json:"relatedFilesJson,omitempty"`
	CreatedAt        int64  `json:"createdAt"`
}

// Approach classifies a Methodology span, per spec §4.2.
type Approach string

const (
	ApproachExploration    Approach = "exploration"
	ApproachResearch       Approach = "research"
	ApproachImplementation Approach = "implementation"
	ApproachDebugging      Approach = "debugging"
	ApproachRefactoring    Approach = "refactoring"
	ApproachTesting        Approach = "testing"
)

// Methodology is a derived record spanning a problem-solving segment of a
// conversation.
type Methodology struct {
	ID              int64    `json:"id"`
	ConversationID  int64    `json:"conversationId"`
	StartMessageID  int64    `json:"startMessageId"`
	EndMessageID    int64    `json:"endMessageId"`
	Approach        Approach `json:"approach"`
	ProblemText     string   `json:"problemText"`
	StepsJSON       string   `json:"stepsJson,omitempty"`
	Outcome         string   `json:"outcome,omitempty"`
	RelatedFilesJSON string  `json:"relatedFilesJson,omitempty"`
	CreatedAt       int64    `json:"createdAt"`
}

// FileEdit records one file-modifying tool call, used for per-file history
// queries (spec §4.3 get_decisions_for_file and its siblings).
type FileEdit struct {
	ID                int64  `json:"id"`
	ConversationID    int64  `json:"conversationId"`
	FilePath          string `json:"filePath"`
	EditType          string `json:"editType"` // create (Write) | edit (Edit, MultiEdit, NotebookEdit)
	SnapshotTimestamp int64  `json:"snapshotTimestamp"`
}

// GitCommit supplements transcript-mentioned commits with ones discovered
// directly from the project's git history.
type GitCommit struct {
	ProjectID        int64  `json:"projectId"`
	ConversationID   int64  `json:"conversationId,omitempty"`
	Hash             string `json:"hash"`
	Message          string `json:"message"`
	Author           string `json:"author"`
	Timestamp        int64  `json:"timestamp"`
	Branch           string `json:"branch,omitempty"`
	FilesChangedJSON string `json:"filesChangedJson,omitempty"`
	MetadataJSON     string `json:"metadataJson,omitempty"`
}

// SchemaVersion records one applied migration. Applied rows are immutable;
// a checksum mismatch on startup is a loud error, never an auto-repair.
type SchemaVersion struct {
	Version     int    `json:"version"`
	AppliedAt   int64  `json:"appliedAt"`
	Description string `json:"description"`
	Checksum    string `json:"checksum"`
}

// WorkingMemory is a short-lived, TTL-scoped key/value record used by the
// context-injection surface, scoped by project path.
type WorkingMemory struct {
	ProjectPath string `json:"projectPath"`
	Key         string `json:"key"`
	Value       string `json:"value"`
	CreatedAt   int64  `json:"createdAt"`
	ExpiresAt   int64  `json:"expiresAt"`
}

// SessionHandoff is a short-lived record carrying context from one session
// to the next, scoped by project path.
type SessionHandoff struct {
	ProjectPath string `json:"projectPath"`
	Content     string `json:"content"`
	CreatedAt   int64  `json:"createdAt"`
	ExpiresAt   int64  `json:"expiresAt"`
}

// Stats is the result of get_stats(): a row count per table.
type Stats struct {
	Projects      int `json:"projects"`
	Conversations int `json:"conversations"`
	Messages      int `json:"messages"`
	ToolUses      int `json:"toolUses"`
	ToolResults   int `json:"toolResults"`
	Decisions     int `json:"decisions"`
	Mistakes      int `json:"mistakes"`
	Requirements  int `json:"requirements"`
	Methodologies int `json:"methodologies"`
	FileEdits     int `json:"fileEdits"`
	GitCommits    int `json:"gitCommits"`
}

// Storer is the full persistence surface the rest of the module depends
// on. SQLiteStore is the sole implementation.
type Storer interface {
	// Project resolution
	ResolveProjectID(canonicalPath, displayPath string) (int64, error)
	AddProjectAlias(aliasPath string, projectID int64) error

	// Batch upserts (spec §4.3). Each returns a map from external_id to
	// the assigned internal row id, except where noted.
	StoreConversations(batch []*Conversation) (map[string]int64, error)
	StoreMessages(batch []*Message, conversationIDMap map[string]int64, skipFTSRebuild bool) (map[string]int64, error)
	SetMessageParents(links map[int64]int64) error
	ClearDerivedForConversations(ids []int64) error
	StoreToolUses(batch []*ToolUse) (map[string]int64, error)
	StoreToolResults(batch []*ToolResult) error
	StoreThinkingBlocks(batch []*ThinkingBlock) error
	StoreDecisions(batch []*Decision) error
	StoreMistakes(batch []*Mistake) error
	StoreRequirements(batch []*Requirement) error
	StoreMethodologies(batch []*Methodology) error
	StoreFileEdits(batch []*FileEdit) error
	StoreGitCommits(batch []*GitCommit) error

	RebuildFTS(table string) error

	// Queries
	GetDecisionsForFile(path string) ([]*Decision, error)
	GetMistakesForFile(path string) ([]*Mistake, error)
	ThinkingBlocksForMessage(messageID int64) ([]*ThinkingBlock, error)
	GetStats() (Stats, error)
	ClearCache()

	// Working memory / session handoff (spec §3's TTL-scoped records)
	SetWorkingMemory(projectPath, key, value string, ttlMS int64) error
	GetWorkingMemory(projectPath string) ([]*WorkingMemory, error)
	DeleteWorkingMemory(projectPath, key string) error
	SetSessionHandoff(projectPath, content string, ttlMS int64) error
	GetSessionHandoff(projectPath string) (*SessionHandoff, bool, error)

	// Deletion & backup (spec §4.7)
	DeleteConversations(ids []int64) error
	ExportConversations(ids []int64) ([]byte, error)

	// Lifecycle
	Close() error
}
