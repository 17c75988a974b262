// Package storage provides SQLite-based persistence for pack data.
//
// The storage layer manages:
//   - Normalized entity rows (threads, messages, posts, comments, reactions)
//   - The derived documents projection and its FTS5 index
//   - The ingested-files tracker that gates re-processing
//
// # Database Schema
//
// Tables:
//   - threads: conversation metadata, replaced wholesale on re-ingest
//   - messages: utterances, content-addressable TEXT primary keys
//   - posts / comments / reactions: generic items extracted best-effort
//   - documents: chunked text units for search, rebuilt on every pass
//   - documents_fts: FTS5 index kept in sync by triggers
//   - ingested_files: (path, size, mtime) freshness records
//
// # Transactions
//
// Every write method has an internal form that runs against a querier,
// so the same code path serves both *sql.DB and *sql.Tx. A file's rows
// and its tracker entry commit together:
//
//	tx, err := store.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	tx.UpsertThread(ctx, thread)
//	tx.InsertMessage(ctx, msg)
//	tx.RecordIngested(ctx, relPath, size, mtime, time.Now())
//
//	return tx.Commit()
//
// # Build Tags
//
// Two driver configurations are supported:
//
// CGO build (cgo_sqlite tag, requires fts5):
//
//	CGO_ENABLED=1 go build -tags "cgo_sqlite,fts5" ./...
//
// Pure Go build (default):
//
//	CGO_ENABLED=0 go build ./...
package storage
