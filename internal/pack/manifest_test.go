package pack

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatpack/chatpack/pkg/types"
)

func TestNewPackID(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	id := NewPackID("/exports/fb-2026", now)
	assert.True(t, strings.HasPrefix(id, "pack-20260314T150926Z-"), id)

	// Same second, same input: the random suffix still differentiates.
	other := NewPackID("/exports/fb-2026", now)
	assert.NotEqual(t, id, other)
}

func TestInputFingerprint(t *testing.T) {
	a := InputFingerprint("/exports/fb", 10, 1000)
	assert.Equal(t, a, InputFingerprint("/exports/fb", 10, 1000))
	assert.NotEqual(t, a, InputFingerprint("/exports/fb", 11, 1000))
	assert.NotEqual(t, a, InputFingerprint("/exports/fb", 10, 1001))
	assert.Len(t, a, 8)
}

func TestManifest_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := &types.Manifest{
		PackID:           "pack-x",
		CreatedAt:        "2026-03-14T15:09:26Z",
		Source:           "/exports/fb",
		InputFingerprint: "abcd1234",
		Counts:           types.Counts{Threads: 1, Messages: 3, Documents: 2},
		Files:            types.ManifestFiles{Store: "pack.db"},
	}

	require.NoError(t, WriteManifest(dir, m))

	got, err := ReadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestWriteManifest_Overwrites(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, WriteManifest(dir, &types.Manifest{PackID: "first"}))
	require.NoError(t, WriteManifest(dir, &types.Manifest{PackID: "second"}))

	got, err := ReadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, "second", got.PackID)
}

func TestReadManifest_Missing(t *testing.T) {
	_, err := ReadManifest(t.TempDir())
	assert.Error(t, err)
}
