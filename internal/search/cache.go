package search

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/crypto/blake2b"

	"github.com/p-n-ai/reviserx/internal/catalog"
	"github.com/p-n-ai/reviserx/internal/platform/cache"
)

// Cache memoizes search results by key. Implementations fail soft: a broken
// backend behaves like a miss.
type Cache interface {
	Get(ctx context.Context, key string) (Results, bool)
	Set(ctx context.Context, key string, res Results)
}

// CacheKey derives a cache key for query against a catalog version. Queries that
// differ only in case or surrounding whitespace share a key.
func CacheKey(version, query string) string {
	sum := blake2b.Sum256([]byte(version + "\x00" + Fold(strings.TrimSpace(query))))
	return "search:" + hex.EncodeToString(sum[:16])
}

// CatalogVersion fingerprints the searchable content so cached results from another
// catalog are never served.
func CatalogVersion(topics []catalog.Topic, questions []catalog.Question, glossary []catalog.GlossaryTerm) string {
	h, _ := blake2b.New256(nil)
	for _, t := range topics {
		fmt.Fprintf(h, "t\x00%s\x00%s\x00%s\n", t.ID, t.Name, t.Description)
	}
	for _, q := range questions {
		fmt.Fprintf(h, "q\x00%s\x00%s\x00%s\x00%s\n", q.ID, q.Question, q.Answer, strings.Join(q.Tags, "\x00"))
	}
	for _, g := range glossary {
		fmt.Fprintf(h, "g\x00%s\x00%s\n", g.Term, g.Definition)
	}
	return hex.EncodeToString(h.Sum(nil)[:8])
}

// NopCache never stores anything.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (Results, bool) { return Results{}, false }
func (NopCache) Set(context.Context, string, Results)        {}

// MemoryCache keeps results in process with a TTL.
type MemoryCache struct {
	c *gocache.Cache
}

// NewMemoryCache creates an in-process cache whose entries expire after ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{c: gocache.New(ttl, 2*ttl)}
}

func (m *MemoryCache) Get(_ context.Context, key string) (Results, bool) {
	v, ok := m.c.Get(key)
	if !ok {
		return Results{}, false
	}
	res, ok := v.(Results)
	if !ok {
		return Results{}, false
	}
	return res.Clone(), true
}

func (m *MemoryCache) Set(_ context.Context, key string, res Results) {
	m.c.Set(key, res.Clone(), gocache.DefaultExpiration)
}

// RedisCache stores results as JSON in Redis.
type RedisCache struct {
	c   *cache.Cache
	ttl time.Duration
}

// NewRedisCache wraps a connected cache client.
func NewRedisCache(c *cache.Cache, ttl time.Duration) *RedisCache {
	return &RedisCache{c: c, ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, key string) (Results, bool) {
	var res Results
	found, err := r.c.GetJSON(ctx, key, &res)
	if err != nil {
		slog.Warn("search cache read failed", "key", key, "error", err)
		return Results{}, false
	}
	return res, found
}

func (r *RedisCache) Set(ctx context.Context, key string, res Results) {
	if err := r.c.SetJSON(ctx, key, res, r.ttl); err != nil {
		slog.Warn("search cache write failed", "key", key, "error", err)
	}
}
