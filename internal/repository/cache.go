package repository

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/telehealth-admin/internal/model"
	"github.com/jwalitptl/telehealth-admin/pkg/metrics"
	"github.com/jwalitptl/telehealth-admin/pkg/values"
)

// DefaultCacheTTL is how long a read result is served from memory.
const DefaultCacheTTL = 5 * time.Minute

// CachedStore serves repeated reads from an in-process TTL cache. Any write
// to a collection evicts every cached read of that collection.
//
// Each collection has a generation that Invalidate bumps. A read only fills
// the cache when the generation is unchanged since the read started, so a
// result fetched before a write is never cached after it.
type CachedStore struct {
	next    DocumentStore
	cache   *cache.Cache
	metrics *metrics.Metrics

	mu   sync.Mutex
	gens map[string]uint64
}

func NewCachedStore(next DocumentStore, ttl time.Duration, m *metrics.Metrics) *CachedStore {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedStore{
		next:    next,
		cache:   cache.New(ttl, 2*ttl),
		metrics: m,
		gens:    make(map[string]uint64),
	}
}

func (s *CachedStore) Find(ctx context.Context, collection string, opts FindOptions) ([]model.Document, error) {
	key, err := findKey(collection, opts)
	if err != nil {
		return s.next.Find(ctx, collection, opts)
	}
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.CacheResult(true)
		return cloneDocs(cached.([]model.Document)), nil
	}
	s.metrics.CacheResult(false)

	gen := s.generation(collection)
	docs, err := s.next.Find(ctx, collection, opts)
	if err != nil {
		return nil, err
	}
	s.fill(collection, gen, key, cloneDocs(docs))
	return docs, nil
}

func (s *CachedStore) Get(ctx context.Context, collection, id string) (model.Document, error) {
	key := getKey(collection, id)
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.CacheResult(true)
		return values.CloneMap(cached.(model.Document)), nil
	}
	s.metrics.CacheResult(false)

	gen := s.generation(collection)
	doc, err := s.next.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	s.fill(collection, gen, key, values.CloneMap(doc))
	return doc, nil
}

func (s *CachedStore) Insert(ctx context.Context, collection string, doc model.Document) error {
	defer s.Invalidate(collection)
	return s.next.Insert(ctx, collection, doc)
}

func (s *CachedStore) Merge(ctx context.Context, collection, id string, fields model.Document) (model.Document, error) {
	defer s.Invalidate(collection)
	return s.next.Merge(ctx, collection, id, fields)
}

func (s *CachedStore) Replace(ctx context.Context, collection, id string, doc model.Document) (model.Document, error) {
	defer s.Invalidate(collection)
	return s.next.Replace(ctx, collection, id, doc)
}

func (s *CachedStore) Delete(ctx context.Context, collection, id string) error {
	defer s.Invalidate(collection)
	return s.next.Delete(ctx, collection, id)
}

func (s *CachedStore) DeleteWhere(ctx context.Context, collection string, filters []Filter) (int64, error) {
	defer s.Invalidate(collection)
	return s.next.DeleteWhere(ctx, collection, filters)
}

func (s *CachedStore) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

func (s *CachedStore) Close() error {
	s.cache.Flush()
	return s.next.Close()
}

// Invalidate drops every cached read of collection.
func (s *CachedStore) Invalidate(collection string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[collection]++

	prefix := collection + "\x00"
	for key := range s.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			s.cache.Delete(key)
		}
	}
}

func (s *CachedStore) generation(collection string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[collection]
}

// fill caches v under key unless collection was written since gen.
func (s *CachedStore) fill(collection string, gen uint64, key string, v interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[collection] != gen {
		return
	}
	s.cache.Set(key, v, cache.DefaultExpiration)
}

// Len reports the number of live cache entries.
func (s *CachedStore) Len() int {
	return s.cache.ItemCount()
}

func findKey(collection string, opts FindOptions) (string, error) {
	data, err := json.Marshal(opts)
	if err != nil {
		return "", err
	}
	return collection + "\x00find\x00" + string(data), nil
}

func getKey(collection, id string) string {
	return collection + "\x00get\x00" + id
}

func cloneDocs(docs []model.Document) []model.Document {
	out := make([]model.Document, len(docs))
	for i, d := range docs {
		out[i] = values.CloneMap(d)
	}
	return out
}
