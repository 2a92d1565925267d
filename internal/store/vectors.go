package store

import (
	"context"
	"encoding/binary"
	"math"
	"sort"

	"github.com/kittclouds/memctl/internal/errs"
)

// maxVectorCandidates bounds the exhaustive cosine scan spec §4.6 allows
// when no native ANN extension is doing the nearest-neighbor search; the
// plain-BLOB vector tables this store uses (messages_vectors,
// decisions_vectors) are always scanned this way.
const maxVectorCandidates = 5000

// vectorIndexConfig describes how to join a logical vector index's base
// rows back to a project and a timestamp for filtering.
type vectorIndexConfig struct {
	vectorTable string
	baseTable   string
	textColumn  string
	// joinSQL scopes the base table to a conversation's project and
	// timestamp; {base} is replaced with baseTable.
	joinSQL string
}

var vectorIndexes = map[string]vectorIndexConfig{
	"messages": {
		vectorTable: "messages_vectors",
		baseTable:   "messages",
		textColumn:  "content",
		joinSQL:     `JOIN conversations c ON c.id = b.conversation_id`,
	},
	"decisions": {
		vectorTable: "decisions_vectors",
		baseTable:   "decisions",
		textColumn:  "decision_text",
		joinSQL:     `JOIN conversations c ON c.id = b.conversation_id`,
	},
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// IndexStamp returns indexName's current (model_name, dimensions) stamp, or
// exists=false if the index has never been stamped (e.g. brand new store),
// per embed.VectorIndexWriter.
func (s *SQLiteStore) IndexStamp(_ context.Context, indexName string) (string, int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var model string
	var dims int
	err := s.db.QueryRow(`SELECT model_name, dimensions FROM vector_index_stamps WHERE index_name = ?`, indexName).Scan(&model, &dims)
	if err != nil {
		return "", 0, false, nil
	}
	return model, dims, true, nil
}

// RebuildIndex drops every vector row for indexName, per spec §4.5's
// "partial mixing is forbidden" — a subsequent ingestion pass must
// re-embed every source row with the new provider before search can use it
// again.
func (s *SQLiteStore) RebuildIndex(_ context.Context, indexName string) error {
	cfg, ok := vectorIndexes[indexName]
	if !ok {
		return errs.New(errs.Validation, "RebuildIndex", "unknown vector index: "+indexName)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`DELETE FROM ` + cfg.vectorTable); err != nil {
		return errs.Wrap(errs.Storage, "RebuildIndex", "clearing "+cfg.vectorTable, err)
	}
	if _, err := s.db.Exec(`DELETE FROM vector_index_stamps WHERE index_name = ?`, indexName); err != nil {
		return errs.Wrap(errs.Storage, "RebuildIndex", "clearing stamp", err)
	}
	return nil
}

// WriteVector writes one (base_rowid, chunk_index) vector into indexName,
// stamping the index with (modelName, dimensions) if unstamped.
func (s *SQLiteStore) WriteVector(_ context.Context, indexName string, baseRowID int64, chunkIndex int, vec []float32, modelName string, dimensions int) error {
	cfg, ok := vectorIndexes[indexName]
	if !ok {
		return errs.New(errs.Validation, "WriteVector", "unknown vector index: "+indexName)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return errs.Wrap(errs.Storage, "WriteVector", "begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO vector_index_stamps (index_name, model_name, dimensions) VALUES (?, ?, ?)
		 ON CONFLICT(index_name) DO UPDATE SET model_name = excluded.model_name, dimensions = excluded.dimensions`,
		indexName, modelName, dimensions,
	); err != nil {
		return errs.Wrap(errs.Storage, "WriteVector", "stamping index", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO `+cfg.vectorTable+` (base_rowid, chunk_index, embedding, model_name, dimensions, needs_retry)
		 VALUES (?, ?, ?, ?, ?, 0)
		 ON CONFLICT(base_rowid, chunk_index) DO UPDATE SET
		   embedding = excluded.embedding, model_name = excluded.model_name,
		   dimensions = excluded.dimensions, needs_retry = 0`,
		baseRowID, chunkIndex, encodeVector(vec), modelName, dimensions,
	); err != nil {
		return errs.Wrap(errs.Storage, "WriteVector", "writing vector row", err)
	}

	return tx.Commit()
}

// FlagRetry marks one (base_rowid, chunk_index) row for retry after a
// failed embedding call, storing an empty vector placeholder that search
// skips (spec §4.5).
func (s *SQLiteStore) FlagRetry(_ context.Context, indexName string, baseRowID int64, chunkIndex int) error {
	cfg, ok := vectorIndexes[indexName]
	if !ok {
		return errs.New(errs.Validation, "FlagRetry", "unknown vector index: "+indexName)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO `+cfg.vectorTable+` (base_rowid, chunk_index, embedding, model_name, dimensions, needs_retry)
		 VALUES (?, ?, NULL, '', 0, 1)
		 ON CONFLICT(base_rowid, chunk_index) DO UPDATE SET needs_retry = 1`,
		baseRowID, chunkIndex,
	)
	if err != nil {
		return errs.Wrap(errs.Storage, "FlagRetry", "flagging row for retry", err)
	}
	return nil
}

// RankedHit is one candidate returned by a vector or lexical sub-search,
// prior to RRF fusion, in the storage layer's own vocabulary (the search
// package's SourceHit carries the same ID and Score plus a Rank; a
// retrieval adapter converts between the two so store and search never
// import each other).
type RankedHit struct {
	ID    int64
	Score float64
}

// SearchFilter scopes a vector or FTS sub-search, per spec §4.6's caller
// filters. Zero values mean "no restriction". ExcludeSidechain only has an
// effect on the messages index; decisions carry no sidechain flag.
type SearchFilter struct {
	ProjectID        int64
	SinceMS          int64
	UntilMS          int64
	SourceType       string
	ExcludeSidechain bool
}

// filterSQL appends f's predicates onto query. timeCol is the base table's
// timestamp column; sidechainCol is empty for indexes without one.
func (f SearchFilter) filterSQL(query string, args []interface{}, timeCol, sidechainCol string) (string, []interface{}) {
	if f.ProjectID != 0 {
		query += ` AND c.project_id = ?`
		args = append(args, f.ProjectID)
	}
	if f.SinceMS != 0 {
		query += ` AND ` + timeCol + ` >= ?`
		args = append(args, f.SinceMS)
	}
	if f.UntilMS != 0 {
		query += ` AND ` + timeCol + ` < ?`
		args = append(args, f.UntilMS)
	}
	if f.SourceType != "" {
		query += ` AND c.source_type = ?`
		args = append(args, f.SourceType)
	}
	if f.ExcludeSidechain && sidechainCol != "" {
		query += ` AND ` + sidechainCol + ` = 0`
	}
	return query, args
}

// VectorSearchIndex performs the exhaustive cosine scan spec §4.6 falls
// back to when no native ANN extension is in play: every non-retry-flagged
// row in indexName matching f is scored against vec and the top limit ids
// are returned.
func (s *SQLiteStore) VectorSearchIndex(_ context.Context, indexName string, vec []float32, limit int, f SearchFilter) ([]RankedHit, error) {
	cfg, ok := vectorIndexes[indexName]
	if !ok {
		return nil, errs.New(errs.Validation, "VectorSearchIndex", "unknown vector index: "+indexName)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	timeCol := "b.timestamp"
	sidechainCol := "b.is_sidechain"
	if indexName == "decisions" {
		timeCol = "b.created_at"
		sidechainCol = ""
	}

	query := `SELECT v.base_rowid, v.embedding FROM ` + cfg.vectorTable + ` v
	          JOIN ` + cfg.baseTable + ` b ON b.id = v.base_rowid
	          ` + cfg.joinSQL + `
	          WHERE v.needs_retry = 0 AND v.embedding IS NOT NULL`
	args := []interface{}{}
	query, args = f.filterSQL(query, args, timeCol, sidechainCol)
	query += ` LIMIT ?`
	args = append(args, maxVectorCandidates)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.Storage, "VectorSearchIndex", "scanning candidates", err)
	}
	defer rows.Close()

	best := make(map[int64]float64)
	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, errs.Wrap(errs.Storage, "VectorSearchIndex", "reading candidate row", err)
		}
		sim := cosineSimilarity(vec, decodeVector(blob))
		if prev, ok := best[id]; !ok || sim > prev {
			best[id] = sim
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.Storage, "VectorSearchIndex", "iterating candidates", err)
	}

	out := make([]RankedHit, 0, len(best))
	for id, score := range best {
		out = append(out, RankedHit{ID: id, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
