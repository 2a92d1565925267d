package store

import "strconv"

// baseSchema creates every relational table, its indexes, the FTS5 shadow
// tables, and the vector-index tables (spec §3). It is re-applied
// idempotently (`IF NOT EXISTS`) on every startup before the migration
// runner advances schema_version, mirroring the teacher's "create schema,
// then migrate" split.
const baseSchema = `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at INTEGER NOT NULL,
    description TEXT NOT NULL,
    checksum TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS projects (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    canonical_path TEXT NOT NULL UNIQUE,
    display_path TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS project_aliases (
    alias_path TEXT PRIMARY KEY,
    project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_project_aliases_project ON project_aliases(project_id);

CREATE TABLE IF NOT EXISTS conversations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id INTEGER NOT NULL REFERENCES projects(id),
    project_path TEXT NOT NULL,
    source_type TEXT NOT NULL,
    external_id TEXT NOT NULL,
    first_message_at INTEGER NOT NULL,
    last_message_at INTEGER NOT NULL,
    message_count INTEGER NOT NULL DEFAULT 0,
    git_branch TEXT,
    client_version TEXT,
    metadata_json TEXT,
    UNIQUE(source_type, external_id)
);

CREATE INDEX IF NOT EXISTS idx_conversations_project ON conversations(project_id);
CREATE INDEX IF NOT EXISTS idx_conversations_path ON conversations(project_path);

CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id INTEGER NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    external_id TEXT NOT NULL,
    parent_id INTEGER,
    message_type TEXT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    timestamp INTEGER NOT NULL,
    is_sidechain INTEGER DEFAULT 0,
    metadata_json TEXT,
    UNIQUE(conversation_id, external_id)
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, timestamp, id);

CREATE TABLE IF NOT EXISTS tool_uses (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    message_id INTEGER NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
    external_id TEXT NOT NULL,
    tool_name TEXT NOT NULL,
    tool_input_json TEXT,
    timestamp INTEGER NOT NULL,
    UNIQUE(message_id, external_id)
);

CREATE INDEX IF NOT EXISTS idx_tool_uses_message ON tool_uses(message_id);
CREATE INDEX IF NOT EXISTS idx_tool_uses_external ON tool_uses(external_id);

CREATE TABLE IF NOT EXISTS tool_results (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    tool_use_id INTEGER REFERENCES tool_uses(id) ON DELETE CASCADE,
    message_id INTEGER NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
    content TEXT,
    is_error INTEGER DEFAULT 0,
    stdout TEXT,
    stderr TEXT,
    is_image INTEGER DEFAULT 0,
    timestamp INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tool_results_tool_use ON tool_results(tool_use_id);
CREATE INDEX IF NOT EXISTS idx_tool_results_message ON tool_results(message_id);

CREATE TABLE IF NOT EXISTS thinking_blocks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    message_id INTEGER NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
    thinking_content TEXT NOT NULL,
    signature TEXT,
    timestamp INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_thinking_blocks_message ON thinking_blocks(message_id);

CREATE TABLE IF NOT EXISTS decisions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id INTEGER NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    message_id INTEGER NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
    decision_text TEXT NOT NULL,
    rationale TEXT,
    alternatives_json TEXT,
    rejected_reasons_json TEXT,
    related_files_json TEXT,
    related_commits_json TEXT,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_conversation ON decisions(conversation_id);

CREATE TABLE IF NOT EXISTS mistakes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id INTEGER NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    message_id INTEGER NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
    correction_text TEXT NOT NULL,
    preceding_action_text TEXT,
    related_files_json TEXT,
    related_commits_json TEXT,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_mistakes_conversation ON mistakes(conversation_id);

CREATE TABLE IF NOT EXISTS requirements (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id INTEGER NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    message_id INTEGER NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
    requirement_text TEXT NOT NULL,
    related_files_json TEXT,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_requirements_conversation ON requirements(conversation_id);

CREATE TABLE IF NOT EXISTS methodologies (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id INTEGER NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    start_message_id INTEGER NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
    end_message_id INTEGER NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
    approach TEXT NOT NULL,
    problem_text TEXT NOT NULL,
    steps_json TEXT,
    outcome TEXT,
    related_files_json TEXT,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_methodologies_conversation ON methodologies(conversation_id);

CREATE TABLE IF NOT EXISTS file_edits (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id INTEGER NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    file_path TEXT NOT NULL,
    edit_type TEXT NOT NULL,
    snapshot_timestamp INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_file_edits_conversation ON file_edits(conversation_id);
CREATE INDEX IF NOT EXISTS idx_file_edits_path ON file_edits(file_path);

CREATE TABLE IF NOT EXISTS git_commits (
    project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    conversation_id INTEGER REFERENCES conversations(id) ON DELETE SET NULL,
    hash TEXT NOT NULL,
    message TEXT,
    author TEXT,
    timestamp INTEGER NOT NULL,
    branch TEXT,
    files_changed_json TEXT,
    metadata_json TEXT,
    PRIMARY KEY (project_id, hash)
);

CREATE INDEX IF NOT EXISTS idx_git_commits_conversation ON git_commits(conversation_id);

CREATE TABLE IF NOT EXISTS working_memory (
    project_path TEXT NOT NULL,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    expires_at INTEGER NOT NULL,
    PRIMARY KEY (project_path, key)
);

CREATE TABLE IF NOT EXISTS session_handoffs (
    project_path TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_session_handoffs_path ON session_handoffs(project_path, expires_at);

-- FTS5 shadow tables mirror base-table content and share its rowid (spec §3).
CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
    content, content='messages', content_rowid='id'
);
CREATE VIRTUAL TABLE IF NOT EXISTS decisions_fts USING fts5(
    decision_text, rationale, content='decisions', content_rowid='id'
);
CREATE VIRTUAL TABLE IF NOT EXISTS mistakes_fts USING fts5(
    correction_text, content='mistakes', content_rowid='id'
);
CREATE VIRTUAL TABLE IF NOT EXISTS working_memory_fts USING fts5(
    value, content='working_memory', content_rowid='rowid'
);

-- Vector indexes: one logical table per embeddable target, each stamped
-- with the (model_name, dimensions) of the embeddings it currently holds
-- (spec §3's VectorIndex invariant). Vectors are stored as raw float32
-- blobs, sqlite-vec's virtual table variant is created alongside when the
-- extension is loaded (see EnsureVectorIndex).
CREATE TABLE IF NOT EXISTS vector_index_stamps (
    index_name TEXT PRIMARY KEY,
    model_name TEXT NOT NULL,
    dimensions INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages_vectors (
    base_rowid INTEGER NOT NULL,
    chunk_index INTEGER NOT NULL,
    embedding BLOB,
    model_name TEXT NOT NULL,
    dimensions INTEGER NOT NULL,
    needs_retry INTEGER DEFAULT 0,
    PRIMARY KEY (base_rowid, chunk_index)
);

CREATE TABLE IF NOT EXISTS decisions_vectors (
    base_rowid INTEGER NOT NULL,
    chunk_index INTEGER NOT NULL,
    embedding BLOB,
    model_name TEXT NOT NULL,
    dimensions INTEGER NOT NULL,
    needs_retry INTEGER DEFAULT 0,
    PRIMARY KEY (base_rowid, chunk_index)
);
`

// pragmas applies the connection-level settings spec §4.3 step 1 names.
// mmapSize is in bytes; 0 leaves SQLite's compiled-in default untouched.
func pragmas(mmapSize int64) string {
	stmt := `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA cache_size = -64000;
PRAGMA foreign_keys = ON;
`
	if mmapSize > 0 {
		stmt += "PRAGMA mmap_size = " + strconv.FormatInt(mmapSize, 10) + ";\n"
	}
	return stmt
}
