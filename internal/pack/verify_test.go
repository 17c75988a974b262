package pack

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatpack/chatpack/internal/storage"
	"github.com/chatpack/chatpack/pkg/types"
)

func strptr(s string) *string { return &s }

// buildPack assembles a minimal but complete pack directory: a migrated
// store with a few rows and a manifest whose counts match.
func buildPack(t *testing.T) string {
	t.Helper()
	packDir := t.TempDir()

	store, err := storage.NewSQLiteStorage(filepath.Join(packDir, "pack.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	require.NoError(t, store.UpsertThread(ctx, &types.Thread{
		ID: "tid-1", Title: strptr("Alice and Bob"), SourcePath: "inbox/a/message_1.json",
	}))
	require.NoError(t, store.InsertMessage(ctx, &types.Message{
		ID: "m1", ThreadID: "tid-1", TimestampMs: 1,
		SenderName: strptr("Alice"), Text: strptr("hello"), MessageType: "generic",
	}))
	require.NoError(t, store.InsertPost(ctx, &types.Post{ID: "p1", Text: strptr("a post")}))
	require.NoError(t, store.InsertDocument(ctx, &types.Document{
		ID: "messages:tid-1:0", Category: types.CategoryMessages, OwnerID: "tid-1",
		Text: "Alice: hello, see you at the park", MetaJSON: "{}",
	}))

	counts, err := store.Counts(ctx)
	require.NoError(t, err)

	require.NoError(t, WriteManifest(packDir, &types.Manifest{
		PackID:           NewPackID("/exports/fb", time.Now()),
		CreatedAt:        time.Now().UTC().Format(time.RFC3339),
		Source:           "/exports/fb",
		InputFingerprint: InputFingerprint("/exports/fb", 2, 100),
		Counts:           counts,
		Files:            types.ManifestFiles{Store: "pack.db"},
	}))

	return packDir
}

func TestVerify_OK(t *testing.T) {
	packDir := buildPack(t)

	report, err := Verify(context.Background(), packDir)
	require.NoError(t, err)

	assert.True(t, report.OK)
	assert.NotEmpty(t, report.PackID)
	assert.Equal(t, int64(1), report.Counts.Threads)
	assert.Equal(t, int64(1), report.Counts.Messages)
	assert.Equal(t, "messages:tid-1:0", report.FTSSampleDocID)
}

func TestVerify_MissingManifest(t *testing.T) {
	_, err := Verify(context.Background(), t.TempDir())
	assert.Error(t, err)
}

func TestVerify_MissingStore(t *testing.T) {
	packDir := buildPack(t)
	require.NoError(t, os.Remove(filepath.Join(packDir, "pack.db")))

	_, err := Verify(context.Background(), packDir)
	assert.ErrorIs(t, err, ErrVerifyFailed)
}

func TestVerify_CountMismatchNamesEntity(t *testing.T) {
	packDir := buildPack(t)

	// Drop one message behind the manifest's back.
	db, err := sql.Open(storage.DriverName, filepath.Join(packDir, "pack.db"))
	require.NoError(t, err)
	_, err = db.Exec("DELETE FROM messages WHERE id = 'm1'")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Verify(context.Background(), packDir)
	require.ErrorIs(t, err, ErrVerifyFailed)
	assert.Contains(t, err.Error(), "messages count mismatch: manifest has 1, store has 0")
}

func TestVerify_CollectsAllMismatches(t *testing.T) {
	packDir := buildPack(t)

	manifest, err := ReadManifest(packDir)
	require.NoError(t, err)
	manifest.Counts.Posts += 5
	manifest.Counts.Documents += 2
	require.NoError(t, WriteManifest(packDir, manifest))

	_, err = Verify(context.Background(), packDir)
	require.ErrorIs(t, err, ErrVerifyFailed)
	assert.Contains(t, err.Error(), "posts count mismatch")
	assert.Contains(t, err.Error(), "documents count mismatch")
}
