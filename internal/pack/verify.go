package pack

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/chatpack/chatpack/internal/storage"
	"github.com/chatpack/chatpack/pkg/types"
)

// ErrVerifyFailed wraps all structural problems found in a pack.
var ErrVerifyFailed = errors.New("pack verification failed")

// Report is the result of a successful verification pass.
type Report struct {
	OK             bool
	PackID         string
	Counts         types.Counts
	FTSSampleDocID string // first hit of the smoke query, empty for zero hits
}

// Verify performs a read-only structural check of a finished pack: the
// manifest and store files exist, every required table is present, and a
// fresh recount of every entity matches the manifested counts. All
// mismatches are collected and reported together, not just the first.
// The full-text smoke query must execute, but zero hits is not a failure.
func Verify(ctx context.Context, packDir string) (*Report, error) {
	manifest, err := ReadManifest(packDir)
	if err != nil {
		return nil, err
	}

	storePath := filepath.Join(packDir, manifest.Files.Store)
	if _, err := os.Stat(storePath); err != nil {
		return nil, fmt.Errorf("%w: store file missing: %v", ErrVerifyFailed, err)
	}

	store, err := storage.OpenSQLiteStorage(storePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer func() { _ = store.Close() }()

	var problems []string

	for _, table := range storage.RequiredTables {
		exists, err := store.TableExists(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("failed to check table %s: %w", table, err)
		}
		if !exists {
			problems = append(problems, fmt.Sprintf("missing table %s", table))
		}
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrVerifyFailed, strings.Join(problems, "; "))
	}

	counts, err := recount(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("failed to recount: %w", err)
	}

	expected := map[string][2]int64{
		"threads":   {manifest.Counts.Threads, counts.Threads},
		"messages":  {manifest.Counts.Messages, counts.Messages},
		"posts":     {manifest.Counts.Posts, counts.Posts},
		"comments":  {manifest.Counts.Comments, counts.Comments},
		"reactions": {manifest.Counts.Reactions, counts.Reactions},
		"documents": {manifest.Counts.Documents, counts.Documents},
	}
	for _, table := range storage.CountedTables {
		pair := expected[table]
		if pair[0] != pair[1] {
			problems = append(problems,
				fmt.Sprintf("%s count mismatch: manifest has %d, store has %d", table, pair[0], pair[1]))
		}
	}
	sort.Strings(problems)
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrVerifyFailed, strings.Join(problems, "; "))
	}

	// Smoke-test the search index; the result set itself is not asserted
	sampleDocID := ""
	hits, err := store.SearchDocuments(ctx, "a OR the", "", 1)
	if err != nil {
		return nil, fmt.Errorf("%w: full-text smoke query failed: %v", ErrVerifyFailed, err)
	}
	if len(hits) > 0 {
		sampleDocID = hits[0].DocID
	}

	return &Report{
		OK:             true,
		PackID:         manifest.PackID,
		Counts:         counts,
		FTSSampleDocID: sampleDocID,
	}, nil
}

// recount re-derives every manifested count from the store. Counts run
// concurrently; the single-connection store serializes them underneath.
func recount(ctx context.Context, store storage.Storage) (types.Counts, error) {
	var counts types.Counts
	var mu sync.Mutex

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

	g, gctx := errgroup.WithContext(ctx)
	for _, target := range targets {
		target := target
		g.Go(func() error {
			n, err := store.CountTable(gctx, target.table)
			if err != nil {
				return err
			}
			mu.Lock()
			*target.dst = n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return types.Counts{}, err
	}
	return counts, nil
}
