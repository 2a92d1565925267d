// Package deletion implements the topic-targeted forgetting workflow of
// spec §4.7: discover affected conversations via both search paths, back
// them up, then delete the whole subtree inside one transaction.
package deletion

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kittclouds/memctl/internal/errs"
	"github.com/kittclouds/memctl/internal/sanitize"
	"github.com/kittclouds/memctl/internal/search"
)

// Store is the storage surface the deletion service needs beyond hybrid
// search.
type Store interface {
	ResolveProjectID(canonicalPath, displayPath string) (int64, error)
	ExportConversations(ids []int64) ([]byte, error)
	DeleteConversations(ids []int64) error
	ClearCache()
}

// MessageEngine is the narrow search surface used for semantic discovery;
// *search.Engine satisfies it.
type MessageEngine interface {
	SearchMessages(ctx context.Context, q search.Query) ([]search.Result, error)
}

// LexicalBackend runs the raw FTS OR-query discovery pass independent of
// RRF fusion, scoped to messages.
type LexicalBackend interface {
	FTSSearch(ctx context.Context, matchQuery string, limit int, f search.Filters) ([]search.SourceHit, error)
}

// ConversationResolver maps a base row id (a message id, in this service's
// usage) back to its owning conversation id, needed because both discovery
// paths return message ids, not conversation ids.
type ConversationResolver interface {
	ConversationIDForMessage(messageID int64) (int64, bool, error)
}

// Service orchestrates preview_deletion_by_topic and forget_by_topic.
type Service struct {
	store         Store
	engine        MessageEngine
	lexical       LexicalBackend
	resolver      ConversationResolver
	backupDir     string
	logger        *zap.Logger
	discoverLimit int
}

func NewService(st Store, engine MessageEngine, lexical LexicalBackend, resolver ConversationResolver, backupDir string, logger *zap.Logger) *Service {
	return &Service{
		store:         st,
		engine:        engine,
		lexical:       lexical,
		resolver:      resolver,
		backupDir:     backupDir,
		logger:        logger,
		discoverLimit: 200,
	}
}

// Summary describes the outcome of a preview or a forget.
type Summary struct {
	ConversationIDs []int64
	BackupPath      string
	Explanation     string
}

// Preview runs discovery only: no backup, no deletion (preview_deletion_by_topic).
func (s *Service) Preview(ctx context.Context, keywords []string, projectPath string) (Summary, error) {
	ids, err := s.discover(ctx, keywords, projectPath)
	if err != nil {
		return Summary{}, err
	}
	if len(ids) == 0 {
		return Summary{Explanation: "no conversations found"}, nil
	}
	return Summary{ConversationIDs: ids, Explanation: describeCount(len(ids), "would be forgotten")}, nil
}

// Forget discovers, backs up, then deletes (forget_by_topic). Rerunning
// with the same keywords against an already-cleaned store is a no-op: zero
// matches produces no backup and no deletion (spec §4.7, §8).
func (s *Service) Forget(ctx context.Context, keywords []string, projectPath string) (Summary, error) {
	ids, err := s.discover(ctx, keywords, projectPath)
	if err != nil {
		return Summary{}, err
	}
	if len(ids) == 0 {
		return Summary{Explanation: "no conversations found"}, nil
	}

	backupPath, err := s.backup(ids, keywords)
	if err != nil {
		return Summary{}, err
	}

	if err := s.store.DeleteConversations(ids); err != nil {
		return Summary{}, err
	}
	s.store.ClearCache()

	return Summary{ConversationIDs: ids, BackupPath: backupPath, Explanation: describeCount(len(ids), "forgotten")}, nil
}

func describeCount(n int, outcome string) string {
	if n == 1 {
		return "1 conversation " + outcome
	}
	return strconv.Itoa(n) + " conversations " + outcome
}

// discover unions semantic and lexical hits, both scoped to projectPath's
// resolved project id, and maps each hit's message id to its owning
// conversation. Either discovery path failing is logged and does not abort
// the other, per spec §4.7.
func (s *Service) discover(ctx context.Context, keywords []string, projectPath string) ([]int64, error) {
	if len(keywords) == 0 {
		return nil, errs.New(errs.Validation, "discover", "no keywords given")
	}
	clean, err := sanitize.SanitizeProjectPath(projectPath)
	if err != nil {
		return nil, err
	}
	projectID, err := s.store.ResolveProjectID(clean, clean)
	if err != nil {
		return nil, err
	}
	filters := search.Filters{ProjectID: projectID}

	seen := make(map[int64]bool)
	var convIDs []int64
	add := func(messageID int64) {
		convID, ok, err := s.resolver.ConversationIDForMessage(messageID)
		if err != nil || !ok {
			return
		}
		if !seen[convID] {
			seen[convID] = true
			convIDs = append(convIDs, convID)
		}
	}

	joined := strings.Join(keywords, " ")
	if results, err := s.engine.SearchMessages(ctx, search.Query{Text: joined, Limit: s.discoverLimit, Filters: filters}); err != nil {
		s.logger.Warn("semantic discovery failed, continuing with lexical only", zap.Error(err))
	} else {
		for _, r := range results {
			add(r.ID)
		}
	}

	matchQuery := sanitize.ForFTSOrQuery(keywords)
	if hits, err := s.lexical.FTSSearch(ctx, matchQuery, s.discoverLimit, filters); err != nil {
		s.logger.Warn("lexical discovery failed, continuing with semantic only", zap.Error(err))
	} else {
		for _, h := range hits {
			add(h.ID)
		}
	}

	return convIDs, nil
}

// backup serializes ids' full subtree to a timestamped, mode-0600 file
// under s.backupDir, per spec §4.7.
func (s *Service) backup(ids []int64, keywords []string) (string, error) {
	data, err := s.store.ExportConversations(ids)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.backupDir, 0o700); err != nil {
		return "", errs.Wrap(errs.Io, "backup", "creating backup directory", err)
	}

	name := "forget-" + time.Now().UTC().Format("20060102T150405Z") + "-" + uuid.NewString() + ".json"
	path := filepath.Join(s.backupDir, name)

	envelope := struct {
		Keywords        []string        `json:"keywords"`
		ConversationIDs []int64         `json:"conversationIds"`
		CreatedAt       string          `json:"createdAt"`
		Dump            json.RawMessage `json:"dump"`
	}{
		Keywords:        keywords,
		ConversationIDs: ids,
		CreatedAt:       time.Now().UTC().Format(time.RFC3339),
		Dump:            data,
	}
	out, err := json.Marshal(envelope)
	if err != nil {
		return "", errs.Wrap(errs.Storage, "backup", "marshaling backup envelope", err)
	}

	if err := os.WriteFile(path, out, 0o600); err != nil {
		return "", errs.Wrap(errs.Io, "backup", "writing backup file", err)
	}
	return path, nil
}
