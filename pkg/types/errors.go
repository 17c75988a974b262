package types

import "errors"

// Domain errors shared across components
var (
	// ErrInvalidDocumentID is returned when a document ID does not match
	// the {category}:{ownerId}:{chunkIndex} format.
	ErrInvalidDocumentID = errors.New("invalid document ID")
	// ErrUnknownCategory is returned for a category outside messages/posts/comments.
	ErrUnknownCategory = errors.New("unknown document category")
	// ErrIngestInProgress is returned when an ingestion run is already active.
	ErrIngestInProgress = errors.New("ingestion already in progress")
)
