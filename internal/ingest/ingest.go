// Package ingest orchestrates one ingestion batch end to end: parsed
// transcripts in, durable rows and vectors out, in the side-effect order
// spec §5 mandates (conversations → messages → tools/thinking →
// decisions/mistakes/requirements → file_edits → commits → FTS rebuild →
// vectors). Each stage commits in its own store transaction; there is no
// enclosing batch transaction, so a reader can observe the store between
// stages of a batch.
package ingest

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/kittclouds/memctl/internal/embed"
	"github.com/kittclouds/memctl/internal/errs"
	"github.com/kittclouds/memctl/internal/extract"
	"github.com/kittclouds/memctl/internal/gitlog"
	"github.com/kittclouds/memctl/internal/parser"
	"github.com/kittclouds/memctl/internal/sanitize"
	"github.com/kittclouds/memctl/internal/store"
)

// Embedder is the embedding surface ingest needs to push message and
// decision text into the vector index after storage commits; *embed.Pipeline
// is the sole implementation.
type Embedder interface {
	EmbedAndStore(ctx context.Context, indexName string, items []embed.Item) error
}

// Options tunes one batch run.
type Options struct {
	// IncludeGitLog walks the project's working tree with go-git to
	// backfill commits beyond what the transcript itself mentions.
	IncludeGitLog  bool
	GitLogLimit    int
	SkipEmbedding  bool
}

// Result summarizes what one batch ingested.
type Result struct {
	ProjectID        int64
	ConversationsIn  int
	MessagesIn       int
	ParseErrors      int
	SkippedFiles     []string
	DecisionsIn      int
	MistakesIn       int
	RequirementsIn   int
	MethodologiesIn  int
	FileEditsIn      int
	GitCommitsIn     int
}

// Batch drives one full ingestion of pr against projectPath, committing
// conversations, messages, tool uses/results, thinking blocks, derived
// records, file edits, and (if configured) git commits, then embeds message
// and decision text into their vector indexes.
func Batch(ctx context.Context, st store.Storer, embedder Embedder, projectPath, displayPath string, pr parser.ParseResult, opts Options, logger *zap.Logger) (Result, error) {
	res := Result{ParseErrors: pr.ParseErrors, SkippedFiles: pr.SkippedFiles}

	clean, err := sanitize.SanitizeProjectPath(projectPath)
	if err != nil {
		return res, err
	}
	projectID, err := st.ResolveProjectID(clean, displayPath)
	if err != nil {
		return res, err
	}
	res.ProjectID = projectID

	// 1. Conversations.
	convRows := make([]*store.Conversation, 0, len(pr.Conversations))
	for _, c := range pr.Conversations {
		convRows = append(convRows, &store.Conversation{
			ProjectID:      projectID,
			ProjectPath:    clean,
			SourceType:     store.SourceType(c.SourceType),
			ExternalID:     c.ExternalID,
			FirstMessageAt: c.FirstMessageAt,
			LastMessageAt:  c.LastMessageAt,
			MessageCount:   c.MessageCount,
			GitBranch:      c.GitBranch,
			ClientVersion:  c.ClientVersion,
			MetadataJSON:   c.MetadataJSON,
		})
	}
	convIDMap, err := st.StoreConversations(convRows)
	if err != nil {
		return res, err
	}
	res.ConversationsIn = len(convIDMap)

	// 2. Messages (FTS rebuilt once at the end of the batch, not per row).
	msgRows := make([]*store.Message, 0, len(pr.Messages))
	for _, m := range pr.Messages {
		if !m.TimestampOK {
			continue // dropped per spec §9 Open Question (b)
		}
		msgRows = append(msgRows, &store.Message{
			ConversationExternalID: m.SessionID,
			ExternalID:             m.ExternalID,
			MessageType:            store.MessageType(m.MessageType),
			Role:                   m.Role,
			Content:                flattenContent(m.Content),
			Timestamp:              m.TimestampMS,
			IsSidechain:            m.IsSidechain,
			MetadataJSON:           m.MetadataJSON,
		})
	}
	msgIDMap, err := st.StoreMessages(msgRows, convIDMap, true)
	if err != nil {
		return res, err
	}
	res.MessagesIn = len(msgIDMap)

	// Parent external ids only become resolvable once the whole batch is
	// stored, so linking is a second pass (spec §9's resolve step).
	parentLinks := make(map[int64]int64)
	for _, m := range pr.Messages {
		if m.ParentID == "" {
			continue
		}
		child, okChild := msgIDMap[m.ExternalID]
		parent, okParent := msgIDMap[m.ParentID]
		if okChild && okParent {
			parentLinks[child] = parent
		}
	}
	if err := st.SetMessageParents(parentLinks); err != nil {
		return res, err
	}

	// A re-ingested transcript replaces its derived rows rather than
	// duplicating them: tool results, thinking blocks, and extractor output
	// have no external id to upsert on, so the conversations in this batch
	// are cleared before re-insert.
	convIDs := make([]int64, 0, len(convIDMap))
	for _, id := range convIDMap {
		convIDs = append(convIDs, id)
	}
	if err := st.ClearDerivedForConversations(convIDs); err != nil {
		return res, err
	}

	// 3. Tool uses/results and thinking blocks, keyed by the owning message.
	var toolUseRows []*store.ToolUse
	var thinkingRows []*store.ThinkingBlock
	toolResultByForID := make(map[string]*store.ToolResult)
	var orphanResults []*store.ToolResult

	for _, m := range pr.Messages {
		msgID, ok := msgIDMap[m.ExternalID]
		if !ok {
			continue
		}
		for _, c := range m.Content {
			switch c.Kind {
			case parser.ContentToolUse:
				toolUseRows = append(toolUseRows, &store.ToolUse{
					MessageID:     msgID,
					ExternalID:    c.ToolUseExternalID,
					ToolName:      c.ToolName,
					ToolInputJSON: c.ToolInputJSON,
					Timestamp:     m.TimestampMS,
				})
			case parser.ContentThinking:
				thinkingRows = append(thinkingRows, &store.ThinkingBlock{
					MessageID:       msgID,
					ThinkingContent: c.ThinkingText,
					Signature:       c.Signature,
					Timestamp:       m.TimestampMS,
				})
			case parser.ContentToolResult:
				tr := &store.ToolResult{
					MessageID: msgID,
					Content:   c.ToolResultText,
					IsError:   c.IsError,
					Stdout:    c.Stdout,
					Stderr:    c.Stderr,
					IsImage:   c.IsImage,
					Timestamp: m.TimestampMS,
				}
				if c.ToolResultForID == "" {
					orphanResults = append(orphanResults, tr)
				} else {
					toolResultByForID[c.ToolResultForID] = tr
				}
			}
		}
	}

	toolUseIDMap, err := st.StoreToolUses(toolUseRows)
	if err != nil {
		return res, err
	}
	toolResultRows := make([]*store.ToolResult, 0, len(toolResultByForID)+len(orphanResults))
	for forID, tr := range toolResultByForID {
		if id, ok := toolUseIDMap[forID]; ok {
			tr.ToolUseID = id
		} else {
			logger.Warn("tool result references unknown tool use, keeping as orphan", zap.String("tool_use_external_id", forID))
		}
		toolResultRows = append(toolResultRows, tr)
	}
	toolResultRows = append(toolResultRows, orphanResults...)
	if err := st.StoreToolResults(toolResultRows); err != nil {
		return res, err
	}
	if err := st.StoreThinkingBlocks(thinkingRows); err != nil {
		return res, err
	}

	// 4. Decisions/mistakes/requirements/methodologies, grouped per
	// conversation so the extractors see ordered messages for one session
	// at a time (spec §4.2 operates per conversation).
	byConversation := make(map[string][]parser.RawMessage)
	var convOrder []string
	contentByExternalID := make(map[string]string, len(pr.Messages))
	for _, m := range pr.Messages {
		if _, seen := byConversation[m.SessionID]; !seen {
			convOrder = append(convOrder, m.SessionID)
		}
		byConversation[m.SessionID] = append(byConversation[m.SessionID], m)
		contentByExternalID[m.ExternalID] = flattenContent(m.Content)
	}

	var decisionRows []*store.Decision
	var mistakeRows []*store.Mistake
	var requirementRows []*store.Requirement
	var methodologyRows []*store.Methodology

	for _, sessionID := range convOrder {
		convID, ok := convIDMap[sessionID]
		if !ok {
			continue
		}
		msgs := byConversation[sessionID]

		for _, d := range extract.Decisions(sessionID, msgs) {
			msgID := msgIDMap[d.MessageExternalID]
			if msgID == 0 {
				continue
			}
			alts, _ := json.Marshal(d.AlternativesConsidered)
			rejected, _ := json.Marshal(d.RejectedReasons)
			decisionRows = append(decisionRows, &store.Decision{
				ConversationID:      convID,
				MessageID:           msgID,
				DecisionText:        d.DecisionText,
				Rationale:           d.Rationale,
				AlternativesJSON:    string(alts),
				RejectedReasonsJSON: string(rejected),
			})
		}
		for _, mi := range extract.Mistakes(sessionID, msgs) {
			msgID := msgIDMap[mi.MessageExternalID]
			if msgID == 0 {
				continue
			}
			mistakeRows = append(mistakeRows, &store.Mistake{
				ConversationID:      convID,
				MessageID:           msgID,
				CorrectionText:      mi.MistakeText,
				PrecedingActionText: contentByExternalID[mi.PrecedingAssistantMsgID],
			})
		}
		for _, r := range extract.Requirements(sessionID, msgs) {
			msgID := msgIDMap[r.MessageExternalID]
			if msgID == 0 {
				continue
			}
			requirementRows = append(requirementRows, &store.Requirement{
				ConversationID:  convID,
				MessageID:       msgID,
				RequirementText: r.RequirementText,
			})
		}
		for _, me := range extract.Methodologies(sessionID, msgs) {
			startID := msgIDMap[me.StartMessageExternalID]
			endID := msgIDMap[me.EndMessageExternalID]
			if startID == 0 || endID == 0 {
				continue
			}
			steps, _ := json.Marshal(me.Steps)
			methodologyRows = append(methodologyRows, &store.Methodology{
				ConversationID: convID,
				StartMessageID: startID,
				EndMessageID:   endID,
				Approach:       store.Approach(me.Approach),
				ProblemText:    contentByExternalID[me.StartMessageExternalID],
				StepsJSON:      string(steps),
				Outcome:        me.Outcome,
			})
		}
	}

	res.DecisionsIn, res.MistakesIn, res.RequirementsIn, res.MethodologiesIn =
		len(decisionRows), len(mistakeRows), len(requirementRows), len(methodologyRows)

	if err := st.StoreDecisions(decisionRows); err != nil {
		return res, err
	}
	if err := st.StoreMistakes(mistakeRows); err != nil {
		return res, err
	}
	if err := st.StoreRequirements(requirementRows); err != nil {
		return res, err
	}
	if err := st.StoreMethodologies(methodologyRows); err != nil {
		return res, err
	}

	// 5. File edits.
	fileEditRows := make([]*store.FileEdit, 0, len(pr.FileEdits))
	for _, fe := range pr.FileEdits {
		convID, ok := convIDMap[fe.ConversationExternalID]
		if !ok {
			continue
		}
		fileEditRows = append(fileEditRows, &store.FileEdit{
			ConversationID:    convID,
			FilePath:          fe.FilePath,
			EditType:          fe.EditType,
			SnapshotTimestamp: fe.TimestampMS,
		})
	}
	res.FileEditsIn = len(fileEditRows)
	if err := st.StoreFileEdits(fileEditRows); err != nil {
		return res, err
	}

	// 6. Git commits (optional, feature supplement).
	if opts.IncludeGitLog {
		commits, gerr := gitlog.Walk(clean, opts.GitLogLimit)
		if gerr != nil {
			logger.Warn("git log backfill failed, continuing without it", zap.Error(gerr))
		} else if len(commits) > 0 {
			rows := gitlog.ToStoreRows(projectID, commits)
			if err := st.StoreGitCommits(rows); err != nil {
				return res, err
			}
			res.GitCommitsIn = len(rows)
		}
	}

	// 7. FTS rebuild, once for the whole batch (messages were stored with
	// skipFTSRebuild=true above).
	if err := st.RebuildFTS("messages"); err != nil {
		return res, err
	}

	// 8. Vectors.
	if !opts.SkipEmbedding && embedder != nil {
		if err := embedMessages(ctx, embedder, msgRows); err != nil {
			return res, errs.Wrap(errs.Provider, "Batch", "embedding messages", err)
		}
		if err := embedDecisions(ctx, embedder, decisionRows); err != nil {
			return res, errs.Wrap(errs.Provider, "Batch", "embedding decisions", err)
		}
	}

	return res, nil
}

func embedMessages(ctx context.Context, embedder Embedder, rows []*store.Message) error {
	items := make([]embed.Item, 0, len(rows))
	for _, m := range rows {
		if m.ID == 0 || m.Content == "" {
			continue
		}
		items = append(items, embed.Item{BaseID: m.ID, Text: m.Content})
	}
	if len(items) == 0 {
		return nil
	}
	return embedder.EmbedAndStore(ctx, "messages", items)
}

func embedDecisions(ctx context.Context, embedder Embedder, rows []*store.Decision) error {
	items := make([]embed.Item, 0, len(rows))
	for _, d := range rows {
		if d.ID == 0 || d.DecisionText == "" {
			continue
		}
		items = append(items, embed.Item{BaseID: d.ID, Text: d.DecisionText})
	}
	if len(items) == 0 {
		return nil
	}
	return embedder.EmbedAndStore(ctx, "decisions", items)
}

func flattenContent(blocks []parser.MessageContent) string {
	var sb strings.Builder
	for _, c := range blocks {
		if c.Kind != parser.ContentText {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(c.Text)
	}
	return sb.String()
}
