// Package docbuilder renders normalized rows into search documents.
//
// Documents are a disposable projection: every build pass deletes the
// previous document set and regenerates it inside one transaction, so a
// reader never observes a half-rebuilt index. Chunk boundaries depend on
// the full ordered text of the source entity and are never patched
// incrementally.
package docbuilder

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chatpack/chatpack/internal/config"
	"github.com/chatpack/chatpack/internal/storage"
	"github.com/chatpack/chatpack/pkg/types"
)

// Builder rebuilds the documents projection.
type Builder struct {
	minChars int
	maxChars int
}

// New creates a Builder using the configured chunk budgets.
func New(cfg config.Config) *Builder {
	return &Builder{
		minChars: cfg.ChunkMinChars,
		maxChars: cfg.ChunkMaxChars,
	}
}

// messageMeta is the serialized metadata carried by message documents.
type messageMeta struct {
	ThreadID     string          `json:"threadId"`
	Title        *string         `json:"title,omitempty"`
	Participants json.RawMessage `json:"participants,omitempty"`
	FirstTs      int64           `json:"firstTs"`
	LastTs       int64           `json:"lastTs"`
}

// postMeta is the serialized metadata carried by post documents.
type postMeta struct {
	Title       *string         `json:"title,omitempty"`
	Attachments json.RawMessage `json:"attachments,omitempty"`
	Place       json.RawMessage `json:"place,omitempty"`
}

// commentMeta is the serialized metadata carried by comment documents.
type commentMeta struct {
	Author *string `json:"author,omitempty"`
	Parent *string `json:"parent,omitempty"`
}

// Rebuild discards all existing documents and regenerates them from the
// current entity rows. Returns the number of documents created.
func (b *Builder) Rebuild(ctx context.Context, store storage.Storage) (int, error) {
	tx, err := store.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.DeleteAllDocuments(ctx); err != nil {
		return 0, fmt.Errorf("failed to clear documents: %w", err)
	}

	total := 0

	n, err := b.buildThreadDocuments(ctx, tx)
	if err != nil {
		return 0, err
	}
	total += n

	n, err = b.buildPostDocuments(ctx, tx)
	if err != nil {
		return 0, err
	}
	total += n

	n, err = b.buildCommentDocuments(ctx, tx)
	if err != nil {
		return 0, err
	}
	total += n

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit document rebuild: %w", err)
	}
	return total, nil
}

func (b *Builder) buildThreadDocuments(ctx context.Context, tx storage.Tx) (int, error) {
	threads, err := tx.ListThreads(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list threads: %w", err)
	}

	count := 0
	for _, thread := range threads {
		msgs, err := tx.ListMessagesByThread(ctx, thread.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to list messages for thread %s: %w", thread.ID, err)
		}

		lines := make([]line, 0, len(msgs))
		for _, msg := range msgs {
			text := renderMessage(msg)
			if text == "" {
				continue
			}
			lines = append(lines, line{text: text, ts: msg.TimestampMs})
		}

		chunks := packLines(lines, b.minChars, b.maxChars)
		for i, c := range chunks {
			meta := messageMeta{
				ThreadID: thread.ID,
				Title:    thread.Title,
				FirstTs:  c.firstTs,
				LastTs:   c.lastTs,
			}
			if thread.ParticipantsJSON != nil {
				meta.Participants = json.RawMessage(*thread.ParticipantsJSON)
			}
			ts := c.firstTs
			if err := b.insert(ctx, tx, types.CategoryMessages, thread.ID, i, c.text, &ts, meta); err != nil {
				return 0, err
			}
			count++
		}
	}
	return count, nil
}

func (b *Builder) buildPostDocuments(ctx context.Context, tx storage.Tx) (int, error) {
	posts, err := tx.ListPosts(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list posts: %w", err)
	}

	count := 0
	for _, post := range posts {
		text := post.Text
		if text == nil {
			text = post.Title
		}
		if text == nil {
			continue
		}

		meta := postMeta{Title: post.Title}
		if post.AttachmentsJSON != nil {
			meta.Attachments = json.RawMessage(*post.AttachmentsJSON)
		}
		if post.PlaceJSON != nil {
			meta.Place = json.RawMessage(*post.PlaceJSON)
		}

		// Generic text takes any closeable boundary: zero minimum
		for i, c := range packLines(splitText(*text), 0, b.maxChars) {
			if err := b.insert(ctx, tx, types.CategoryPosts, post.ID, i, c.text, post.TimestampMs, meta); err != nil {
				return 0, err
			}
			count++
		}
	}
	return count, nil
}

func (b *Builder) buildCommentDocuments(ctx context.Context, tx storage.Tx) (int, error) {
	comments, err := tx.ListComments(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list comments: %w", err)
	}

	count := 0
	for _, comment := range comments {
		if comment.Text == nil {
			continue
		}

		meta := commentMeta{Author: comment.Author, Parent: comment.Parent}
		for i, c := range packLines(splitText(*comment.Text), 0, b.maxChars) {
			if err := b.insert(ctx, tx, types.CategoryComments, comment.ID, i, c.text, comment.TimestampMs, meta); err != nil {
				return 0, err
			}
			count++
		}
	}
	return count, nil
}

func (b *Builder) insert(ctx context.Context, tx storage.Tx, category types.Category, ownerID string, chunkIndex int, text string, ts *int64, meta any) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal document meta: %w", err)
	}
	doc := &types.Document{
		ID:          types.DocumentID(category, ownerID, chunkIndex),
		Category:    category,
		OwnerID:     ownerID,
		TimestampMs: ts,
		Text:        text,
		MetaJSON:    string(metaJSON),
	}
	if err := tx.InsertDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert document %s: %w", doc.ID, err)
	}
	return nil
}

// renderMessage formats one message as a searchable line. Messages with
// neither text nor media render to the empty string and are skipped.
func renderMessage(msg *types.Message) string {
	sender := "Unknown"
	if msg.SenderName != nil {
		sender = *msg.SenderName
	}
	switch {
	case msg.Text != nil:
		return sender + ": " + *msg.Text
	case msg.MediaURI != nil:
		return sender + ": [media] " + *msg.MediaURI
	}
	return ""
}

// splitText turns a free-form text into lines for the chunker.
func splitText(text string) []line {
	lines := make([]line, 0)
	start := 0
	for i := 0; i <= len(text); i++ {
		if i == len(text) || text[i] == '\n' {
			if i > start {
				lines = append(lines, line{text: text[start:i]})
			}
			start = i + 1
		}
	}
	return lines
}
