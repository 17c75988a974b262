package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Category identifies the kind of source file a record came from and the
// namespace of the derived documents.
type Category string

const (
	CategoryMessages  Category = "messages"
	CategoryPosts     Category = "posts"
	CategoryComments  Category = "comments"
	CategoryReactions Category = "reactions"
)

// Thread represents one conversation. Its ID is derived from the
// source-relative folder path of the thread, not from a platform ID.
// Re-ingesting a thread file replaces the whole row.
type Thread struct {
	ID               string
	Title            *string
	ParticipantsJSON *string // opaque participant descriptors, retained as-is
	SourcePath       string  // export-relative path of the message file
}

// Message represents one utterance within a thread. Messages are inserted
// in source file order, which is assumed chronological.
type Message struct {
	ID            string
	ThreadID      string
	TimestampMs   int64
	SenderName    *string
	Text          *string
	MessageType   string
	IsUnsent      bool
	MediaURI      *string // first attachment of the first present media array
	ReactionsJSON *string // serialized reaction list, only if array-shaped
}

// Post is a generic wall/feed item extracted best-effort from a posts file.
type Post struct {
	ID              string
	TimestampMs     *int64
	Title           *string
	Text            *string
	AttachmentsJSON *string
	PlaceJSON       *string
}

// Comment is a comment left on some target item.
type Comment struct {
	ID          string
	TimestampMs *int64
	Author      *string
	Text        *string
	Parent      *string // best-effort description of what was commented on
}

// Reaction records an actor reacting to some target item.
type Reaction struct {
	ID          string
	TimestampMs *int64
	Actor       *string
	Reaction    *string
	Target      *string
}

// Document is the unit indexed for full-text search. Documents are fully
// rebuilt on every document-build pass and are never patched in place.
type Document struct {
	ID          string
	Category    Category
	OwnerID     string
	TimestampMs *int64
	Text        string
	MetaJSON    string
}

// Counts snapshots per-entity row counts for the manifest and verifier.
type Counts struct {
	Threads   int64 `json:"threads"`
	Messages  int64 `json:"messages"`
	Posts     int64 `json:"posts"`
	Comments  int64 `json:"comments"`
	Reactions int64 `json:"reactions"`
	Documents int64 `json:"documents"`
}

// Manifest describes one finished pack. It is overwritten on each
// successful ingestion run.
type Manifest struct {
	PackID           string        `json:"packId"`
	CreatedAt        string        `json:"createdAt"`
	Source           string        `json:"source"`
	InputFingerprint string        `json:"inputFingerprint"`
	Counts           Counts        `json:"counts"`
	Files            ManifestFiles `json:"files"`
}

// ManifestFiles names the files that make up the pack alongside the manifest.
type ManifestFiles struct {
	Store string `json:"store"`
}

// DocumentID composes the stable document identifier.
func DocumentID(category Category, ownerID string, chunkIndex int) string {
	return fmt.Sprintf("%s:%s:%d", category, ownerID, chunkIndex)
}

// ParseDocumentID splits a document ID into its parts.
func ParseDocumentID(id string) (Category, string, int, error) {
	parts := strings.Split(id, ":")
	if len(parts) != 3 {
		return "", "", 0, fmt.Errorf("%w: %q", ErrInvalidDocumentID, id)
	}
	idx, err := strconv.Atoi(parts[2])
	if err != nil {
		return "", "", 0, fmt.Errorf("%w: %q", ErrInvalidDocumentID, id)
	}
	cat := Category(parts[0])
	switch cat {
	case CategoryMessages, CategoryPosts, CategoryComments:
	default:
		return "", "", 0, fmt.Errorf("%w: %q", ErrUnknownCategory, parts[0])
	}
	return cat, parts[1], idx, nil
}
