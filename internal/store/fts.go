package store

import (
	"database/sql"

	"github.com/kittclouds/memctl/internal/errs"
)

// ftsUpsertMessage maintains one messages_fts shadow row incrementally:
// delete the stale row by rowid (a no-op if absent), then insert the fresh
// content. FTS5 virtual tables do not support an ON CONFLICT clause, so
// this delete-then-insert pair is the documented way to keep an
// external-content FTS5 table in step with its base table row by row.
func ftsUpsertMessage(tx *sql.Tx, rowid int64, content string) error {
	if _, err := tx.Exec(`DELETE FROM messages_fts WHERE rowid = ?`, rowid); err != nil {
		return err
	}
	_, err := tx.Exec(`INSERT INTO messages_fts (rowid, content) VALUES (?, ?)`, rowid, content)
	return err
}

func ftsUpsertDecision(tx *sql.Tx, rowid int64, decisionText, rationale string) error {
	if _, err := tx.Exec(`DELETE FROM decisions_fts WHERE rowid = ?`, rowid); err != nil {
		return err
	}
	_, err := tx.Exec(`INSERT INTO decisions_fts (rowid, decision_text, rationale) VALUES (?, ?, ?)`, rowid, decisionText, rationale)
	return err
}

func ftsUpsertMistake(tx *sql.Tx, rowid int64, correctionText string) error {
	if _, err := tx.Exec(`DELETE FROM mistakes_fts WHERE rowid = ?`, rowid); err != nil {
		return err
	}
	_, err := tx.Exec(`INSERT INTO mistakes_fts (rowid, correction_text) VALUES (?, ?)`, rowid, correctionText)
	return err
}

// ftsRebuild describes how to fully repopulate one FTS5 external-content
// shadow table: the special 'delete-all' command clears every shadow row
// (the documented way to reset an FTS5 table backed by content='...'),
// then the select statement reinserts current base-row content.
type ftsRebuild struct {
	fts      string
	populate string
}

var ftsRebuildSpecs = map[string]ftsRebuild{
	"messages": {
		fts:      "messages_fts",
		populate: `INSERT INTO messages_fts (rowid, content) SELECT id, content FROM messages`,
	},
	"decisions": {
		fts:      "decisions_fts",
		populate: `INSERT INTO decisions_fts (rowid, decision_text, rationale) SELECT id, decision_text, rationale FROM decisions`,
	},
	"mistakes": {
		fts:      "mistakes_fts",
		populate: `INSERT INTO mistakes_fts (rowid, correction_text) SELECT id, correction_text FROM mistakes`,
	},
	"working_memory": {
		fts:      "working_memory_fts",
		populate: `INSERT INTO working_memory_fts (rowid, value) SELECT rowid, value FROM working_memory`,
	},
}

// RebuildFTS fully repopulates table's FTS5 shadow rows from its current
// base rows, for callers that passed skipFTSRebuild=true to a batch store
// operation, or after a migration changes an FTS5 table's shape and it had
// to be dropped and recreated (spec §4.3).
func (s *SQLiteStore) RebuildFTS(table string) error {
	spec, ok := ftsRebuildSpecs[table]
	if !ok {
		return errs.New(errs.Validation, "RebuildFTS", "unknown FTS table: "+table)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return errs.Wrap(errs.Storage, "RebuildFTS", "begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO ` + spec.fts + `(` + spec.fts + `) VALUES('delete-all')`); err != nil {
		return errs.Wrap(errs.Storage, "RebuildFTS", "clearing "+table+"_fts", err)
	}
	if _, err := tx.Exec(spec.populate); err != nil {
		return errs.Wrap(errs.Storage, "RebuildFTS", "repopulating "+table+"_fts", err)
	}

	return tx.Commit()
}

