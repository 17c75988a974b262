// Package searcher runs full-text queries over a pack's documents.
package searcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/chatpack/chatpack/internal/storage"
	"github.com/chatpack/chatpack/pkg/types"
)

// DefaultLimit is used when a request does not specify a result limit.
const DefaultLimit = 20

// Request contains parameters for a search operation.
type Request struct {
	Query    string
	Category types.Category // empty searches all categories
	Limit    int
	UseCache bool
	CacheTTL time.Duration
}

// Response contains search results and metadata.
type Response struct {
	Hits     []storage.SearchHit
	Duration time.Duration
	CacheHit bool
}

// cacheEntry represents a cached response with expiration time.
type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

// Searcher coordinates full-text search over the documents projection.
type Searcher struct {
	storage storage.Storage
	cache   *lru.Cache[[32]byte, *cacheEntry]
}

// New creates a Searcher instance backed by the given store.
func New(store storage.Storage) *Searcher {
	// LRU evicts least recently used queries automatically
	cache, err := lru.New[[32]byte, *cacheEntry](1024)
	if err != nil {
		// Only possible with an invalid size parameter
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}
	return &Searcher{storage: store, cache: cache}
}

// Search runs one full-text query, ordered by bm25 relevance.
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}

	key := cacheKey(req)
	if req.UseCache {
		if entry, ok := s.cache.Get(key); ok {
			if entry.expiresAt.IsZero() || time.Now().Before(entry.expiresAt) {
				cached := *entry.response
				cached.CacheHit = true
				cached.Duration = time.Since(start)
				return &cached, nil
			}
			s.cache.Remove(key)
		}
	}

	hits, err := s.storage.SearchDocuments(ctx, req.Query, req.Category, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	resp := &Response{Hits: hits, Duration: time.Since(start)}

	if req.UseCache {
		entry := &cacheEntry{response: resp}
		if req.CacheTTL > 0 {
			entry.expiresAt = time.Now().Add(req.CacheTTL)
		}
		s.cache.Add(key, entry)
	}

	return resp, nil
}

// cacheKey hashes the request fields that affect the result set.
func cacheKey(req Request) [32]byte {
	return sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", req.Query, req.Category, req.Limit)))
}
