// Package types provides shared type definitions for chatpack.
//
// It defines the normalized entities produced by ingestion (threads,
// messages, posts, comments, reactions), the derived search documents,
// the pack manifest, and the domain errors shared across components.
//
// # Entities
//
// Every entity carries a content-addressable ID: a deterministic digest
// of the record's own content rather than a database sequence or a
// platform-assigned key. Re-ingesting an unchanged export therefore
// produces byte-identical IDs, and a changed record at the same position
// produces a new ID instead of silently overwriting history.
//
// # Documents
//
// Document is a disposable projection built from entities for full-text
// search. Document IDs follow the stable on-disk format
//
//	{category}:{ownerId}:{chunkIndex}
//
// where category is one of "messages", "posts" or "comments".
package types
