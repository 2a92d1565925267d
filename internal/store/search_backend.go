package store

import (
	"context"
	"database/sql"

	"github.com/kittclouds/memctl/internal/errs"
)

var ftsSearchIndexes = map[string]struct {
	fts       string
	base      string
	joinSQL   string
	timeCol   string
	textQuery string
}{
	"messages": {
		fts:       "messages_fts",
		base:      "messages",
		joinSQL:   `JOIN conversations c ON c.id = b.conversation_id`,
		timeCol:   "b.timestamp",
		textQuery: `SELECT content FROM messages WHERE id = ?`,
	},
	"decisions": {
		fts:       "decisions_fts",
		base:      "decisions",
		joinSQL:   `JOIN conversations c ON c.id = b.conversation_id`,
		timeCol:   "b.created_at",
		textQuery: `SELECT decision_text FROM decisions WHERE id = ?`,
	},
}

// FTSSearchIndex runs matchQuery (an already-quoted FTS5 MATCH expression)
// against table's shadow index, scoped by f, and returns hits ordered
// best-first (lowest bm25, i.e. best match, first).
func (s *SQLiteStore) FTSSearchIndex(_ context.Context, table, matchQuery string, limit int, f SearchFilter) ([]RankedHit, error) {
	cfg, ok := ftsSearchIndexes[table]
	if !ok {
		return nil, errs.New(errs.Validation, "FTSSearchIndex", "unknown fts index: "+table)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sidechainCol := ""
	if table == "messages" {
		sidechainCol = "b.is_sidechain"
	}

	query := `SELECT b.id, bm25(` + cfg.fts + `) AS rank
	          FROM ` + cfg.fts + ` f
	          JOIN ` + cfg.base + ` b ON b.id = f.rowid
	          ` + cfg.joinSQL + `
	          WHERE ` + cfg.fts + ` MATCH ?`
	args := []interface{}{matchQuery}
	query, args = f.filterSQL(query, args, cfg.timeCol, sidechainCol)
	query += ` ORDER BY rank LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.Storage, "FTSSearchIndex", "querying "+table+"_fts", err)
	}
	defer rows.Close()

	var out []RankedHit
	for rows.Next() {
		var id int64
		var rank float64
		if err := rows.Scan(&id, &rank); err != nil {
			return nil, errs.Wrap(errs.Storage, "FTSSearchIndex", "scanning fts hit", err)
		}
		out = append(out, RankedHit{ID: id, Score: -rank}) // bm25: lower is better; negate for "higher is better"
	}
	return out, rows.Err()
}

// FetchText returns table's display text for a base row id, used for
// snippet generation after RRF fusion.
func (s *SQLiteStore) FetchText(_ context.Context, table string, id int64) (string, error) {
	cfg, ok := ftsSearchIndexes[table]
	if !ok {
		return "", errs.New(errs.Validation, "FetchText", "unknown index: "+table)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var text string
	err := s.db.QueryRow(cfg.textQuery, id).Scan(&text)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errs.Wrap(errs.Storage, "FetchText", "fetching text", err)
	}
	return text, nil
}
