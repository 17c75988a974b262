package ingester

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/chatpack/chatpack/internal/config"
	"github.com/chatpack/chatpack/internal/docbuilder"
	"github.com/chatpack/chatpack/internal/pack"
	"github.com/chatpack/chatpack/internal/scanner"
	"github.com/chatpack/chatpack/internal/storage"
	"github.com/chatpack/chatpack/pkg/types"
)

// LogFunc is the caller-supplied line logger. A nil logger is silent.
type LogFunc func(format string, args ...any)

// Options controls one ingestion run.
type Options struct {
	// Force bypasses the ingestion tracker and re-processes every file.
	Force bool
	// Log receives one line per processed or skipped file plus summaries.
	Log LogFunc
}

// RunResult reports the outcome of a completed ingestion run.
type RunResult struct {
	PackID string
	OutDir string
	Counts types.Counts

	FilesIngested int
	FilesSkipped  int
	FilesFailed   int
}

// Ingester builds a pack from an export directory.
//
// Files are processed strictly one at a time, category by category, each
// inside its own transaction. Concurrent runs against the same pack
// directory are unsupported.
type Ingester struct {
	cfg  config.Config
	lock runLock
}

// New creates an Ingester with the given configuration.
func New(cfg config.Config) *Ingester {
	return &Ingester{cfg: cfg}
}

// Run ingests the export rooted at inputDir into outDir and returns the
// pack identity. Re-running over an unchanged export is cheap: unchanged
// files are skipped via the tracker unless opts.Force is set.
func (ing *Ingester) Run(ctx context.Context, inputDir, outDir string, opts Options) (*RunResult, error) {
	logf := opts.Log
	if logf == nil {
		logf = func(string, ...any) {}
	}

	if !ing.lock.TryAcquire() {
		return nil, types.ErrIngestInProgress
	}
	defer ing.lock.Release()

	inputAbs, err := filepath.Abs(inputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve input dir: %w", err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	store, err := storage.NewSQLiteStorage(filepath.Join(outDir, ing.cfg.StoreFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer func() { _ = store.Close() }()

	scan, err := scanner.Scan(inputAbs)
	if err != nil {
		return nil, fmt.Errorf("failed to scan export: %w", err)
	}
	logf("scanned %d files (%s): %d message, %d post, %d comment, %d reaction",
		scan.TotalFiles, humanize.Bytes(uint64(scan.TotalBytes)),
		len(scan.Messages), len(scan.Posts), len(scan.Comments), len(scan.Reactions))
	if len(scan.HTML) > 0 {
		logf("warning: %d HTML export files detected; HTML exports are not ingested", len(scan.HTML))
	}

	result := &RunResult{OutDir: outDir}

	groups := []struct {
		category types.Category
		files    []string
	}{
		{types.CategoryMessages, scan.Messages},
		{types.CategoryPosts, scan.Posts},
		{types.CategoryComments, scan.Comments},
		{types.CategoryReactions, scan.Reactions},
	}

	for _, group := range groups {
		for _, file := range group.files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			skipped, err := ing.ingestFile(ctx, store, inputAbs, file, group.category, opts.Force, logf)
			if err != nil {
				// Per-file fatal: this file rolled back, the run continues
				result.FilesFailed++
				logf("error: failed to ingest %s: %v", file, err)
				continue
			}
			if skipped {
				result.FilesSkipped++
			} else {
				result.FilesIngested++
			}
		}
	}

	builder := docbuilder.New(ing.cfg)
	docs, err := builder.Rebuild(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild documents: %w", err)
	}
	logf("rebuilt %d search documents", docs)

	counts, err := store.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot counts: %w", err)
	}
	result.Counts = counts

	manifest := &types.Manifest{
		PackID:           pack.NewPackID(inputAbs, time.Now().UTC()),
		CreatedAt:        time.Now().UTC().Format(time.RFC3339),
		Source:           inputAbs,
		InputFingerprint: pack.InputFingerprint(inputAbs, scan.TotalFiles, scan.TotalBytes),
		Counts:           counts,
		Files:            types.ManifestFiles{Store: ing.cfg.StoreFileName},
	}
	if err := pack.WriteManifest(outDir, manifest); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}
	result.PackID = manifest.PackID

	logf("pack %s complete: %d threads, %d messages, %d posts, %d comments, %d reactions, %d documents (%d files ingested, %d skipped, %d failed)",
		manifest.PackID, counts.Threads, counts.Messages, counts.Posts,
		counts.Comments, counts.Reactions, counts.Documents,
		result.FilesIngested, result.FilesSkipped, result.FilesFailed)

	return result, nil
}

// ingestFile processes one classified file as a single atomic unit: all
// of its rows plus its tracker entry commit together, or none do.
func (ing *Ingester) ingestFile(ctx context.Context, store storage.Storage, inputAbs, file string, category types.Category, force bool, logf LogFunc) (skipped bool, err error) {
	info, err := os.Stat(file)
	if err != nil {
		return false, fmt.Errorf("failed to stat: %w", err)
	}
	sizeBytes := info.Size()
	mtimeMs := info.ModTime().UnixMilli()

	rel, err := filepath.Rel(inputAbs, file)
	if err != nil {
		return false, fmt.Errorf("failed to relativize path: %w", err)
	}
	relPath := filepath.ToSlash(rel)

	if !force {
		was, err := store.WasIngested(ctx, relPath, sizeBytes, mtimeMs)
		if err != nil {
			return false, err
		}
		if was {
			logf("skipping %s (unchanged)", relPath)
			return true, nil
		}
	}

	tx, err := store.BeginTx(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	streaming := sizeBytes > ing.cfg.BulkThresholdBytes
	rows := 0
	found := false

	switch category {
	case types.CategoryMessages:
		found, rows, err = ing.ingestThreadFile(ctx, tx, relPath, file, streaming)
	default:
		found, rows, err = ing.ingestGenericFile(ctx, tx, relPath, file, category, streaming)
	}
	if err != nil {
		return false, err
	}

	if !found {
		// Best-effort: no detectable record array is a warning, not an
		// error; the file still counts as ingested
		logf("warning: no record array found in %s", relPath)
	}

	if err := tx.RecordIngested(ctx, relPath, sizeBytes, mtimeMs, time.Now()); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}

	mode := "bulk"
	if streaming {
		mode = "stream"
	}
	logf("ingested %s: %d %s rows (%s, %s)", relPath, rows, category, mode, humanize.Bytes(uint64(sizeBytes)))
	return false, nil
}

// ingestThreadFile handles one message-thread file: thread upsert first
// (messages reference it), then messages in file order.
func (ing *Ingester) ingestThreadFile(ctx context.Context, tx storage.Tx, relPath, file string, streaming bool) (bool, int, error) {
	threadID := threadIDFor(path.Dir(relPath))

	headerFn := func(header *threadHeader) error {
		return tx.UpsertThread(ctx, &types.Thread{
			ID:               threadID,
			Title:            header.Title,
			ParticipantsJSON: header.ParticipantsJSON,
			SourcePath:       relPath,
		})
	}

	rows := 0
	sink := func(index int, raw []byte) error {
		rows++
		return tx.InsertMessage(ctx, normalizeMessage(threadID, relPath, index, raw))
	}

	var found bool
	var err error
	if streaming {
		found, err = streamThreadFile(file, headerFn, sink)
	} else {
		found, err = bulkThreadFile(file, headerFn, sink)
	}
	return found, rows, err
}

// ingestGenericFile handles one posts/comments/reactions file.
func (ing *Ingester) ingestGenericFile(ctx context.Context, tx storage.Tx, relPath, file string, category types.Category, streaming bool) (bool, int, error) {
	var candidates []string
	rows := 0
	var sink recordSink

	switch category {
	case types.CategoryPosts:
		candidates = postsArrayCandidates
		sink = func(index int, raw []byte) error {
			rows++
			return tx.InsertPost(ctx, normalizePost(relPath, index, raw))
		}
	case types.CategoryComments:
		candidates = commentsArrayCandidates
		sink = func(index int, raw []byte) error {
			rows++
			return tx.InsertComment(ctx, normalizeComment(relPath, index, raw))
		}
	case types.CategoryReactions:
		candidates = reactionsArrayCandidates
		sink = func(index int, raw []byte) error {
			rows++
			return tx.InsertReaction(ctx, normalizeReaction(relPath, index, raw))
		}
	default:
		return false, 0, fmt.Errorf("%w: %s", types.ErrUnknownCategory, category)
	}

	var found bool
	var err error
	if streaming {
		found, err = streamGenericRecords(file, candidates, ing.cfg.StreamProbeLimit, sink)
	} else {
		found, err = bulkGenericRecords(file, candidates, sink)
	}
	return found, rows, err
}
