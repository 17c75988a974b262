package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chatpack/chatpack/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrUnknownTable is returned when a count is requested for a table
	// outside the pack schema.
	ErrUnknownTable = errors.New("unknown table")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Single writer; the pipeline is strictly sequential anyway
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens (or creates) a pack store and applies migrations
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// OpenSQLiteStorage opens an existing pack store without applying
// migrations. Used by the verifier, which must observe the store as-is.
func OpenSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) querier() querier {
	return t.tx
}

func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Thread operations

func (s *SQLiteStorage) upsertThreadWithQuerier(ctx context.Context, q querier, thread *types.Thread) error {
	// A re-ingested thread replaces title/participants/source path wholesale
	query := `
		INSERT INTO threads (id, title, participants, source_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			participants = excluded.participants,
			source_path = excluded.source_path,
			updated_at = excluded.updated_at
	`
	now := time.Now()
	_, err := q.ExecContext(ctx, query,
		thread.ID, thread.Title, thread.ParticipantsJSON, thread.SourcePath, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert thread: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) UpsertThread(ctx context.Context, thread *types.Thread) error {
	return s.upsertThreadWithQuerier(ctx, s.querier(), thread)
}

func (s *SQLiteStorage) getThreadWithQuerier(ctx context.Context, q querier, id string) (*types.Thread, error) {
	query := `SELECT id, title, participants, source_path FROM threads WHERE id = ?`
	var thread types.Thread
	var title, participants sql.NullString
	err := q.QueryRowContext(ctx, query, id).Scan(&thread.ID, &title, &participants, &thread.SourcePath)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if title.Valid {
		thread.Title = &title.String
	}
	if participants.Valid {
		thread.ParticipantsJSON = &participants.String
	}
	return &thread, nil
}

func (s *SQLiteStorage) GetThread(ctx context.Context, id string) (*types.Thread, error) {
	return s.getThreadWithQuerier(ctx, s.querier(), id)
}

func (s *SQLiteStorage) listThreadsWithQuerier(ctx context.Context, q querier) ([]*types.Thread, error) {
	query := `SELECT id, title, participants, source_path FROM threads ORDER BY source_path`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	threads := make([]*types.Thread, 0)
	for rows.Next() {
		var thread types.Thread
		var title, participants sql.NullString
		if err := rows.Scan(&thread.ID, &title, &participants, &thread.SourcePath); err != nil {
			return nil, err
		}
		if title.Valid {
			thread.Title = &title.String
		}
		if participants.Valid {
			thread.ParticipantsJSON = &participants.String
		}
		threads = append(threads, &thread)
	}
	return threads, rows.Err()
}

func (s *SQLiteStorage) ListThreads(ctx context.Context) ([]*types.Thread, error) {
	return s.listThreadsWithQuerier(ctx, s.querier())
}

// Message operations

func (s *SQLiteStorage) insertMessageWithQuerier(ctx context.Context, q querier, msg *types.Message) error {
	// Content-addressable IDs make re-insertion of an unchanged row a no-op
	query := `
		INSERT INTO messages (id, thread_id, timestamp_ms, sender_name, text,
			message_type, is_unsent, media_uri, reactions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			thread_id = excluded.thread_id,
			timestamp_ms = excluded.timestamp_ms,
			sender_name = excluded.sender_name,
			text = excluded.text,
			message_type = excluded.message_type,
			is_unsent = excluded.is_unsent,
			media_uri = excluded.media_uri,
			reactions = excluded.reactions
	`
	_, err := q.ExecContext(ctx, query,
		msg.ID, msg.ThreadID, msg.TimestampMs, msg.SenderName, msg.Text,
		msg.MessageType, msg.IsUnsent, msg.MediaURI, msg.ReactionsJSON, time.Now())
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) InsertMessage(ctx context.Context, msg *types.Message) error {
	return s.insertMessageWithQuerier(ctx, s.querier(), msg)
}

func (s *SQLiteStorage) listMessagesByThreadWithQuerier(ctx context.Context, q querier, threadID string) ([]*types.Message, error) {
	query := `
		SELECT id, thread_id, timestamp_ms, sender_name, text, message_type,
		       is_unsent, media_uri, reactions
		FROM messages
		WHERE thread_id = ?
		ORDER BY timestamp_ms
	`
	rows, err := q.QueryContext(ctx, query, threadID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	msgs := make([]*types.Message, 0)
	for rows.Next() {
		var msg types.Message
		var sender, text, media, reactions sql.NullString
		err := rows.Scan(&msg.ID, &msg.ThreadID, &msg.TimestampMs, &sender, &text,
			&msg.MessageType, &msg.IsUnsent, &media, &reactions)
		if err != nil {
			return nil, err
		}
		if sender.Valid {
			msg.SenderName = &sender.String
		}
		if text.Valid {
			msg.Text = &text.String
		}
		if media.Valid {
			msg.MediaURI = &media.String
		}
		if reactions.Valid {
			msg.ReactionsJSON = &reactions.String
		}
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

func (s *SQLiteStorage) ListMessagesByThread(ctx context.Context, threadID string) ([]*types.Message, error) {
	return s.listMessagesByThreadWithQuerier(ctx, s.querier(), threadID)
}

// Generic item operations

func (s *SQLiteStorage) insertPostWithQuerier(ctx context.Context, q querier, post *types.Post) error {
	query := `
		INSERT INTO posts (id, timestamp_ms, title, text, attachments, place, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			timestamp_ms = excluded.timestamp_ms,
			title = excluded.title,
			text = excluded.text,
			attachments = excluded.attachments,
			place = excluded.place
	`
	_, err := q.ExecContext(ctx, query,
		post.ID, post.TimestampMs, post.Title, post.Text,
		post.AttachmentsJSON, post.PlaceJSON, time.Now())
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) InsertPost(ctx context.Context, post *types.Post) error {
	return s.insertPostWithQuerier(ctx, s.querier(), post)
}

func (s *SQLiteStorage) listPostsWithQuerier(ctx context.Context, q querier) ([]*types.Post, error) {
	query := `SELECT id, timestamp_ms, title, text, attachments, place FROM posts ORDER BY timestamp_ms`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	posts := make([]*types.Post, 0)
	for rows.Next() {
		var post types.Post
		var ts sql.NullInt64
		var title, text, attachments, place sql.NullString
		if err := rows.Scan(&post.ID, &ts, &title, &text, &attachments, &place); err != nil {
			return nil, err
		}
		if ts.Valid {
			post.TimestampMs = &ts.Int64
		}
		if title.Valid {
			post.Title = &title.String
		}
		if text.Valid {
			post.Text = &text.String
		}
		if attachments.Valid {
			post.AttachmentsJSON = &attachments.String
		}
		if place.Valid {
			post.PlaceJSON = &place.String
		}
		posts = append(posts, &post)
	}
	return posts, rows.Err()
}

func (s *SQLiteStorage) ListPosts(ctx context.Context) ([]*types.Post, error) {
	return s.listPostsWithQuerier(ctx, s.querier())
}

func (s *SQLiteStorage) insertCommentWithQuerier(ctx context.Context, q querier, comment *types.Comment) error {
	query := `
		INSERT INTO comments (id, timestamp_ms, author, text, parent, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			timestamp_ms = excluded.timestamp_ms,
			author = excluded.author,
			text = excluded.text,
			parent = excluded.parent
	`
	_, err := q.ExecContext(ctx, query,
		comment.ID, comment.TimestampMs, comment.Author, comment.Text,
		comment.Parent, time.Now())
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) InsertComment(ctx context.Context, comment *types.Comment) error {
	return s.insertCommentWithQuerier(ctx, s.querier(), comment)
}

func (s *SQLiteStorage) listCommentsWithQuerier(ctx context.Context, q querier) ([]*types.Comment, error) {
	query := `SELECT id, timestamp_ms, author, text, parent FROM comments ORDER BY timestamp_ms`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	comments := make([]*types.Comment, 0)
	for rows.Next() {
		var comment types.Comment
		var ts sql.NullInt64
		var author, text, parent sql.NullString
		if err := rows.Scan(&comment.ID, &ts, &author, &text, &parent); err != nil {
			return nil, err
		}
		if ts.Valid {
			comment.TimestampMs = &ts.Int64
		}
		if author.Valid {
			comment.Author = &author.String
		}
		if text.Valid {
			comment.Text = &text.String
		}
		if parent.Valid {
			comment.Parent = &parent.String
		}
		comments = append(comments, &comment)
	}
	return comments, rows.Err()
}

func (s *SQLiteStorage) ListComments(ctx context.Context) ([]*types.Comment, error) {
	return s.listCommentsWithQuerier(ctx, s.querier())
}

func (s *SQLiteStorage) insertReactionWithQuerier(ctx context.Context, q querier, reaction *types.Reaction) error {
	query := `
		INSERT INTO reactions (id, timestamp_ms, actor, reaction, target, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			timestamp_ms = excluded.timestamp_ms,
			actor = excluded.actor,
			reaction = excluded.reaction,
			target = excluded.target
	`
	_, err := q.ExecContext(ctx, query,
		reaction.ID, reaction.TimestampMs, reaction.Actor, reaction.Reaction,
		reaction.Target, time.Now())
	if err != nil {
		return fmt.Errorf("failed to insert reaction: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) InsertReaction(ctx context.Context, reaction *types.Reaction) error {
	return s.insertReactionWithQuerier(ctx, s.querier(), reaction)
}

// Document operations

func (s *SQLiteStorage) insertDocumentWithQuerier(ctx context.Context, q querier, doc *types.Document) error {
	query := `
		INSERT INTO documents (id, category, owner_id, timestamp_ms, text, meta)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		doc.ID, string(doc.Category), doc.OwnerID, doc.TimestampMs, doc.Text, doc.MetaJSON)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) InsertDocument(ctx context.Context, doc *types.Document) error {
	return s.insertDocumentWithQuerier(ctx, s.querier(), doc)
}

func (s *SQLiteStorage) deleteAllDocumentsWithQuerier(ctx context.Context, q querier) error {
	_, err := q.ExecContext(ctx, `DELETE FROM documents`)
	return err
}

func (s *SQLiteStorage) DeleteAllDocuments(ctx context.Context) error {
	return s.deleteAllDocumentsWithQuerier(ctx, s.querier())
}

func (s *SQLiteStorage) searchDocumentsWithQuerier(ctx context.Context, q querier, query string, category types.Category, limit int) ([]SearchHit, error) {
	// In FTS5, 'rank' is the bm25 relevance score; lower values are
	// better matches and it must be unqualified in ORDER BY.
	sqlQuery := `
		SELECT d.id, d.category, d.owner_id, d.timestamp_ms, d.text, d.meta, rank
		FROM documents d
		JOIN documents_fts fts ON d.rowid = fts.rowid
		WHERE documents_fts MATCH ?
	`
	args := []interface{}{query}
	if category != "" {
		sqlQuery += ` AND d.category = ?`
		args = append(args, string(category))
	}
	sqlQuery += ` ORDER BY rank LIMIT ?`
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	hits := make([]SearchHit, 0)
	for rows.Next() {
		var hit SearchHit
		var cat string
		var ts sql.NullInt64
		if err := rows.Scan(&hit.DocID, &cat, &hit.OwnerID, &ts, &hit.Text, &hit.Meta, &hit.Rank); err != nil {
			return nil, err
		}
		hit.Category = types.Category(cat)
		if ts.Valid {
			hit.TimestampMs = &ts.Int64
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func (s *SQLiteStorage) SearchDocuments(ctx context.Context, query string, category types.Category, limit int) ([]SearchHit, error) {
	return s.searchDocumentsWithQuerier(ctx, s.querier(), query, category, limit)
}

// Ingestion tracker operations

func (s *SQLiteStorage) wasIngestedWithQuerier(ctx context.Context, q querier, relPath string, sizeBytes, mtimeMs int64) (bool, error) {
	// A file is skippable only if path, size and mtime all match exactly
	query := `SELECT 1 FROM ingested_files WHERE rel_path = ? AND size_bytes = ? AND mtime_ms = ?`
	var one int
	err := q.QueryRowContext(ctx, query, relPath, sizeBytes, mtimeMs).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStorage) WasIngested(ctx context.Context, relPath string, sizeBytes, mtimeMs int64) (bool, error) {
	return s.wasIngestedWithQuerier(ctx, s.querier(), relPath, sizeBytes, mtimeMs)
}

func (s *SQLiteStorage) recordIngestedWithQuerier(ctx context.Context, q querier, relPath string, sizeBytes, mtimeMs int64, when time.Time) error {
	query := `
		INSERT INTO ingested_files (rel_path, size_bytes, mtime_ms, ingested_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(rel_path) DO UPDATE SET
			size_bytes = excluded.size_bytes,
			mtime_ms = excluded.mtime_ms,
			ingested_at = excluded.ingested_at
	`
	_, err := q.ExecContext(ctx, query, relPath, sizeBytes, mtimeMs, when.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record ingested file: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) RecordIngested(ctx context.Context, relPath string, sizeBytes, mtimeMs int64, when time.Time) error {
	return s.recordIngestedWithQuerier(ctx, s.querier(), relPath, sizeBytes, mtimeMs, when)
}

// Count operations

var countedTableSet = func() map[string]bool {
	m := make(map[string]bool, len(CountedTables)+1)
	for _, t := range CountedTables {
		m[t] = true
	}
	// Countable for diagnostics, never part of the manifested counts
	m["ingested_files"] = true
	return m
}()

func (s *SQLiteStorage) countTableWithQuerier(ctx context.Context, q querier, table string) (int64, error) {
	if !countedTableSet[table] {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	var n int64
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

func (s *SQLiteStorage) CountTable(ctx context.Context, table string) (int64, error) {
	return s.countTableWithQuerier(ctx, s.querier(), table)
}

func (s *SQLiteStorage) countsWithQuerier(ctx context.Context, q querier) (types.Counts, error) {
	var counts types.Counts
	targets := []struct {
		table string
		dst   *int64
	}{
		{"threads", &counts.Threads},
		{"messages", &counts.Messages},
		{"posts", &counts.Posts},
		{"comments", &counts.Comments},
		{"reactions", &counts.Reactions},
		{"documents", &counts.Documents},
	}
	for _, t := range targets {
		n, err := s.countTableWithQuerier(ctx, q, t.table)
		if err != nil {
			return types.Counts{}, err
		}
		*t.dst = n
	}
	return counts, nil
}

func (s *SQLiteStorage) Counts(ctx context.Context) (types.Counts, error) {
	return s.countsWithQuerier(ctx, s.querier())
}

// TableExists reports whether a table or virtual table is present.
func (s *SQLiteStorage) TableExists(ctx context.Context, name string) (bool, error) {
	var found string
	err := s.db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name = ?", name).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Transaction implementations - delegate to main storage via the tx querier

func (t *sqliteTx) UpsertThread(ctx context.Context, thread *types.Thread) error {
	return t.storage.upsertThreadWithQuerier(ctx, t.querier(), thread)
}

func (t *sqliteTx) GetThread(ctx context.Context, id string) (*types.Thread, error) {
	return t.storage.getThreadWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) ListThreads(ctx context.Context) ([]*types.Thread, error) {
	return t.storage.listThreadsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) InsertMessage(ctx context.Context, msg *types.Message) error {
	return t.storage.insertMessageWithQuerier(ctx, t.querier(), msg)
}

func (t *sqliteTx) ListMessagesByThread(ctx context.Context, threadID string) ([]*types.Message, error) {
	return t.storage.listMessagesByThreadWithQuerier(ctx, t.querier(), threadID)
}

func (t *sqliteTx) InsertPost(ctx context.Context, post *types.Post) error {
	return t.storage.insertPostWithQuerier(ctx, t.querier(), post)
}

func (t *sqliteTx) ListPosts(ctx context.Context) ([]*types.Post, error) {
	return t.storage.listPostsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) InsertComment(ctx context.Context, comment *types.Comment) error {
	return t.storage.insertCommentWithQuerier(ctx, t.querier(), comment)
}

func (t *sqliteTx) ListComments(ctx context.Context) ([]*types.Comment, error) {
	return t.storage.listCommentsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) InsertReaction(ctx context.Context, reaction *types.Reaction) error {
	return t.storage.insertReactionWithQuerier(ctx, t.querier(), reaction)
}

func (t *sqliteTx) InsertDocument(ctx context.Context, doc *types.Document) error {
	return t.storage.insertDocumentWithQuerier(ctx, t.querier(), doc)
}

func (t *sqliteTx) DeleteAllDocuments(ctx context.Context) error {
	return t.storage.deleteAllDocumentsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) SearchDocuments(ctx context.Context, query string, category types.Category, limit int) ([]SearchHit, error) {
	return t.storage.searchDocumentsWithQuerier(ctx, t.querier(), query, category, limit)
}

func (t *sqliteTx) WasIngested(ctx context.Context, relPath string, sizeBytes, mtimeMs int64) (bool, error) {
	return t.storage.wasIngestedWithQuerier(ctx, t.querier(), relPath, sizeBytes, mtimeMs)
}

func (t *sqliteTx) RecordIngested(ctx context.Context, relPath string, sizeBytes, mtimeMs int64, when time.Time) error {
	return t.storage.recordIngestedWithQuerier(ctx, t.querier(), relPath, sizeBytes, mtimeMs, when)
}

func (t *sqliteTx) Counts(ctx context.Context) (types.Counts, error) {
	return t.storage.countsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) CountTable(ctx context.Context, table string) (int64, error) {
	return t.storage.countTableWithQuerier(ctx, t.querier(), table)
}

func (t *sqliteTx) TableExists(ctx context.Context, name string) (bool, error) {
	return t.storage.TableExists(ctx, name)
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, errors.New("nested transactions not supported")
}
