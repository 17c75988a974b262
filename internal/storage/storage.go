package storage

import (
	"context"
	"time"

	"github.com/chatpack/chatpack/pkg/types"
)

// SearchHit is one full-text match over the documents projection.
type SearchHit struct {
	DocID       string
	Category    types.Category
	OwnerID     string
	TimestampMs *int64
	Text        string
	Meta        string
	Rank        float64 // FTS5 bm25 rank, lower is better
}

// Storage defines the interface for persisting and querying pack data
type Storage interface {
	// Thread operations
	UpsertThread(ctx context.Context, thread *types.Thread) error
	GetThread(ctx context.Context, id string) (*types.Thread, error)
	ListThreads(ctx context.Context) ([]*types.Thread, error)

	// Message operations
	InsertMessage(ctx context.Context, msg *types.Message) error
	ListMessagesByThread(ctx context.Context, threadID string) ([]*types.Message, error)

	// Generic item operations
	InsertPost(ctx context.Context, post *types.Post) error
	ListPosts(ctx context.Context) ([]*types.Post, error)
	InsertComment(ctx context.Context, comment *types.Comment) error
	ListComments(ctx context.Context) ([]*types.Comment, error)
	InsertReaction(ctx context.Context, reaction *types.Reaction) error

	// Document operations
	InsertDocument(ctx context.Context, doc *types.Document) error
	DeleteAllDocuments(ctx context.Context) error
	SearchDocuments(ctx context.Context, query string, category types.Category, limit int) ([]SearchHit, error)

	// Ingestion tracker operations
	WasIngested(ctx context.Context, relPath string, sizeBytes, mtimeMs int64) (bool, error)
	RecordIngested(ctx context.Context, relPath string, sizeBytes, mtimeMs int64, when time.Time) error

	// Count operations
	Counts(ctx context.Context) (types.Counts, error)
	CountTable(ctx context.Context, table string) (int64, error)

	// Database operations
	TableExists(ctx context.Context, name string) (bool, error)
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx is a Storage scoped to one transaction.
type Tx interface {
	Storage
	Commit() error
	Rollback() error
}

// RequiredTables lists every table and projection a finished pack must contain.
var RequiredTables = []string{
	"threads",
	"messages",
	"posts",
	"comments",
	"reactions",
	"documents",
	"documents_fts",
	"ingested_files",
}

// CountedTables lists the tables whose row counts appear in the manifest.
var CountedTables = []string{
	"threads",
	"messages",
	"posts",
	"comments",
	"reactions",
	"documents",
}
