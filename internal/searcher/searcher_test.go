package searcher

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatpack/chatpack/internal/storage"
	"github.com/chatpack/chatpack/pkg/types"
)

func i64ptr(v int64) *int64 { return &v }

func newSearcher(t *testing.T) (*Searcher, *storage.SQLiteStorage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "pack.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	docs := []*types.Document{
		{ID: "messages:t1:0", Category: types.CategoryMessages, OwnerID: "t1",
			TimestampMs: i64ptr(1), Text: "Alice: let's go hiking this weekend", MetaJSON: "{}"},
		{ID: "posts:p1:0", Category: types.CategoryPosts, OwnerID: "p1",
			TimestampMs: i64ptr(2), Text: "hiking photos from the trip", MetaJSON: "{}"},
		{ID: "comments:c1:0", Category: types.CategoryComments, OwnerID: "c1",
			Text: "congratulations on the new job", MetaJSON: "{}"},
	}
	for _, d := range docs {
		require.NoError(t, store.InsertDocument(ctx, d))
	}

	return New(store), store
}

func TestSearch_Basic(t *testing.T) {
	s, _ := newSearcher(t)

	resp, err := s.Search(context.Background(), Request{Query: "hiking"})
	require.NoError(t, err)

	assert.Len(t, resp.Hits, 2)
	assert.False(t, resp.CacheHit)
	assert.Greater(t, resp.Duration, time.Duration(0))
}

func TestSearch_CategoryFilter(t *testing.T) {
	s, _ := newSearcher(t)

	resp, err := s.Search(context.Background(), Request{
		Query:    "hiking",
		Category: types.CategoryPosts,
	})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "posts:p1:0", resp.Hits[0].DocID)
}

func TestSearch_EmptyQuery(t *testing.T) {
	s, _ := newSearcher(t)

	_, err := s.Search(context.Background(), Request{Query: "   "})
	assert.Error(t, err)
}

func TestSearch_LimitDefaults(t *testing.T) {
	s, _ := newSearcher(t)

	resp, err := s.Search(context.Background(), Request{Query: "hiking", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, resp.Hits, 1)
}

func TestSearch_CacheHit(t *testing.T) {
	s, store := newSearcher(t)
	ctx := context.Background()

	first, err := s.Search(ctx, Request{Query: "hiking", UseCache: true})
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	// Mutate the store: a cached query must not observe the change.
	require.NoError(t, store.DeleteAllDocuments(ctx))

	second, err := s.Search(ctx, Request{Query: "hiking", UseCache: true})
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Len(t, second.Hits, len(first.Hits))

	// An uncached request sees the truth.
	fresh, err := s.Search(ctx, Request{Query: "hiking"})
	require.NoError(t, err)
	assert.Empty(t, fresh.Hits)
}

func TestSearch_CacheTTLExpiry(t *testing.T) {
	s, store := newSearcher(t)
	ctx := context.Background()

	_, err := s.Search(ctx, Request{Query: "hiking", UseCache: true, CacheTTL: time.Nanosecond})
	require.NoError(t, err)

	require.NoError(t, store.DeleteAllDocuments(ctx))
	time.Sleep(time.Millisecond)

	resp, err := s.Search(ctx, Request{Query: "hiking", UseCache: true, CacheTTL: time.Nanosecond})
	require.NoError(t, err)
	assert.False(t, resp.CacheHit)
	assert.Empty(t, resp.Hits)
}

func TestSearch_CacheKeyIncludesCategoryAndLimit(t *testing.T) {
	s, _ := newSearcher(t)
	ctx := context.Background()

	all, err := s.Search(ctx, Request{Query: "hiking", UseCache: true})
	require.NoError(t, err)
	assert.Len(t, all.Hits, 2)

	// Different category must not reuse the all-categories entry.
	posts, err := s.Search(ctx, Request{Query: "hiking", Category: types.CategoryPosts, UseCache: true})
	require.NoError(t, err)
	assert.False(t, posts.CacheHit)
	assert.Len(t, posts.Hits, 1)
}
