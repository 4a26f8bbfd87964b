package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/telehealth-admin/internal/model"
	"github.com/jwalitptl/telehealth-admin/internal/repository"
	"github.com/jwalitptl/telehealth-admin/internal/repository/memory"
)

// countingStore counts reads reaching the backend.
type countingStore struct {
	repository.DocumentStore
	finds int
	gets  int
}

func (s *countingStore) Find(ctx context.Context, collection string, opts repository.FindOptions) ([]model.Document, error) {
	s.finds++
	return s.DocumentStore.Find(ctx, collection, opts)
}

func (s *countingStore) Get(ctx context.Context, collection, id string) (model.Document, error) {
	s.gets++
	return s.DocumentStore.Get(ctx, collection, id)
}

func TestCachedStoreServesRepeatedReads(t *testing.T) {
	ctx := context.Background()
	backend := &countingStore{DocumentStore: memory.NewStore()}
	cached := repository.NewCachedStore(backend, time.Minute, nil)

	require.NoError(t, cached.Insert(ctx, "patients", model.Document{"id": "p1", "first_name": "Ada"}))

	for i := 0; i < 3; i++ {
		doc, err := cached.Get(ctx, "patients", "p1")
		require.NoError(t, err)
		assert.Equal(t, "Ada", doc["first_name"])

		docs, err := cached.Find(ctx, "patients", repository.FindOptions{Limit: 10})
		require.NoError(t, err)
		assert.Len(t, docs, 1)
	}
	assert.Equal(t, 1, backend.gets)
	assert.Equal(t, 1, backend.finds)
}

func TestCachedStoreInvalidatesCollectionOnWrite(t *testing.T) {
	ctx := context.Background()
	backend := &countingStore{DocumentStore: memory.NewStore()}
	cached := repository.NewCachedStore(backend, time.Minute, nil)

	require.NoError(t, cached.Insert(ctx, "patients", model.Document{"id": "p1", "first_name": "Ada"}))
	require.NoError(t, cached.Insert(ctx, "orders", model.Document{"id": "o1"}))

	_, err := cached.Get(ctx, "patients", "p1")
	require.NoError(t, err)
	_, err = cached.Get(ctx, "orders", "o1")
	require.NoError(t, err)
	assert.Equal(t, 2, cached.Len())

	_, err = cached.Merge(ctx, "patients", "p1", model.Document{"first_name": "Grace"})
	require.NoError(t, err)
	// orders stay cached
	assert.Equal(t, 1, cached.Len())

	doc, err := cached.Get(ctx, "patients", "p1")
	require.NoError(t, err)
	assert.Equal(t, "Grace", doc["first_name"])
	assert.Equal(t, 3, backend.gets)

	require.NoError(t, cached.Delete(ctx, "patients", "p1"))
	_, err = cached.Get(ctx, "patients", "p1")
	assert.True(t, repository.IsNotFound(err))
}

func TestCachedStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	cached := repository.NewCachedStore(memory.NewStore(), time.Minute, nil)
	require.NoError(t, cached.Insert(ctx, "patients", model.Document{
		"id":   "p1",
		"tags": []interface{}{"vip"},
	}))

	doc, err := cached.Get(ctx, "patients", "p1")
	require.NoError(t, err)
	doc["tags"].([]interface{})[0] = "changed"
	doc["first_name"] = "mutated"

	again, err := cached.Get(ctx, "patients", "p1")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"vip"}, again["tags"])
	assert.NotContains(t, again, "first_name")
}

func TestCachedStoreDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	backend := &countingStore{DocumentStore: memory.NewStore()}
	cached := repository.NewCachedStore(backend, time.Minute, nil)

	_, err := cached.Get(ctx, "patients", "nope")
	require.Error(t, err)
	_, err = cached.Get(ctx, "patients", "nope")
	require.Error(t, err)
	assert.Equal(t, 2, backend.gets)
	assert.Equal(t, 0, cached.Len())
}

// interleavingStore runs during once, after fetching a read result and before
// returning it, as if a write landed while the read was in flight.
type interleavingStore struct {
	repository.DocumentStore
	during func()
}

func (s *interleavingStore) Get(ctx context.Context, collection, id string) (model.Document, error) {
	doc, err := s.DocumentStore.Get(ctx, collection, id)
	if s.during != nil {
		fn := s.during
		s.during = nil
		fn()
	}
	return doc, err
}

func (s *interleavingStore) Find(ctx context.Context, collection string, opts repository.FindOptions) ([]model.Document, error) {
	docs, err := s.DocumentStore.Find(ctx, collection, opts)
	if s.during != nil {
		fn := s.during
		s.during = nil
		fn()
	}
	return docs, err
}

func TestCachedStoreSkipsResultsReadBeforeAWrite(t *testing.T) {
	ctx := context.Background()
	backend := &interleavingStore{DocumentStore: memory.NewStore()}
	cached := repository.NewCachedStore(backend, time.Minute, nil)
	require.NoError(t, cached.Insert(ctx, "patients", model.Document{"id": "p1", "first_name": "Ada"}))

	backend.during = func() {
		_, err := cached.Merge(ctx, "patients", "p1", model.Document{"first_name": "Grace"})
		require.NoError(t, err)
	}
	stale, err := cached.Get(ctx, "patients", "p1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", stale["first_name"])
	assert.Equal(t, 0, cached.Len())

	doc, err := cached.Get(ctx, "patients", "p1")
	require.NoError(t, err)
	assert.Equal(t, "Grace", doc["first_name"])

	backend.during = func() {
		_, err := cached.Replace(ctx, "patients", "p1", model.Document{"first_name": "Joan"})
		require.NoError(t, err)
	}
	docs, err := cached.Find(ctx, "patients", repository.FindOptions{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, "Grace", docs[0]["first_name"])

	docs, err = cached.Find(ctx, "patients", repository.FindOptions{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, "Joan", docs[0]["first_name"])
}

func TestCachedStoreDefaultTTL(t *testing.T) {
	assert.Equal(t, 5*time.Minute, repository.DefaultCacheTTL)
}
