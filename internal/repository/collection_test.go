package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/telehealth-admin/internal/model"
	"github.com/jwalitptl/telehealth-admin/internal/repository"
	"github.com/jwalitptl/telehealth-admin/internal/repository/memory"
	"github.com/jwalitptl/telehealth-admin/pkg/metrics"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newPatients(t *testing.T, store repository.DocumentStore, clock *fixedClock) *repository.Collection[model.Patient] {
	t.Helper()
	n := 0
	return repository.NewCollection[model.Patient](store, model.CollectionPatients,
		repository.WithClock(clock.Now),
		repository.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("p%03d", n)
		}),
	)
}

func TestCollectionCreateStampsFields(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	patients := newPatients(t, memory.NewStore(), clock)

	created, err := patients.Create(ctx, &model.Patient{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "p001", created.ID)
	assert.True(t, created.CreatedAt.Equal(clock.now))
	assert.True(t, created.UpdatedAt.Equal(clock.now))

	got, err := patients.GetByID(ctx, "p001")
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.FirstName)
	assert.True(t, got.CreatedAt.Equal(clock.now))
}

func TestCollectionCreateKeepsExplicitID(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Now()}
	patients := newPatients(t, memory.NewStore(), clock)

	in := &model.Patient{Base: model.Base{ID: "custom"}, FirstName: "A"}
	created, err := patients.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "custom", created.ID)

	_, err = patients.Create(ctx, in)
	require.Error(t, err)
	assert.Equal(t, repository.CodeAlreadyExists, repository.CodeOf(err))
}

func TestCollectionUpdateMergesAndProtectsImmutableFields(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	patients := newPatients(t, memory.NewStore(), clock)

	created, err := patients.Create(ctx, &model.Patient{FirstName: "Ada", LastName: "Lovelace", Status: model.PatientStatusPending})
	require.NoError(t, err)

	clock.Advance(time.Hour)
	updated, err := patients.Update(ctx, created.ID, model.Document{
		"status":     "active",
		"id":         "hijack",
		"created_at": "1999-01-01T00:00:00Z",
	})
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Ada", updated.FirstName)
	assert.Equal(t, model.PatientStatusActive, updated.Status)
	assert.True(t, updated.CreatedAt.Equal(created.CreatedAt))
	assert.True(t, updated.UpdatedAt.Equal(clock.now))
}

func TestCollectionReplaceClearsMissingFields(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	store := memory.NewStore()
	patients := newPatients(t, store, clock)

	created, err := patients.Create(ctx, &model.Patient{FirstName: "Ada", LastName: "Lovelace", Tags: []string{"vip"}, Phone: "+14155550100"})
	require.NoError(t, err)

	clock.Advance(time.Hour)
	next := *created
	next.Tags = nil
	next.Phone = ""
	replaced, err := patients.Replace(ctx, created.ID, &next)
	require.NoError(t, err)
	assert.Empty(t, replaced.Tags)
	assert.Empty(t, replaced.Phone)
	assert.True(t, replaced.CreatedAt.Equal(created.CreatedAt))
	assert.True(t, replaced.UpdatedAt.Equal(clock.now))

	doc, err := store.Get(ctx, model.CollectionPatients, created.ID)
	require.NoError(t, err)
	assert.NotContains(t, doc, "tags")
	assert.NotContains(t, doc, "phone")
	assert.Equal(t, "2024-03-01T09:00:00.000000000Z", doc["created_at"])

	// an item without timestamps keeps the stored created_at
	replaced, err = patients.Replace(ctx, created.ID, &model.Patient{FirstName: "Grace"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, replaced.ID)
	assert.Equal(t, "Grace", replaced.FirstName)
	assert.Empty(t, replaced.LastName)
	assert.True(t, replaced.CreatedAt.Equal(created.CreatedAt))

	_, err = patients.Replace(ctx, "missing", &model.Patient{FirstName: "X"})
	assert.True(t, repository.IsNotFound(err))
}

func TestCollectionNotFound(t *testing.T) {
	ctx := context.Background()
	patients := newPatients(t, memory.NewStore(), &fixedClock{now: time.Now()})

	_, err := patients.GetByID(ctx, "missing")
	assert.True(t, repository.IsNotFound(err))

	_, err = patients.Update(ctx, "missing", model.Document{"status": "active"})
	assert.True(t, repository.IsNotFound(err))

	err = patients.Delete(ctx, "missing")
	assert.True(t, repository.IsNotFound(err))
	assert.Equal(t, "The requested record was not found.", repository.UserMessage(err))
}

func TestCollectionGetAllPaginates(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	patients := newPatients(t, memory.NewStore(), clock)

	for i := 0; i < 5; i++ {
		_, err := patients.Create(ctx, &model.Patient{FirstName: fmt.Sprintf("n%d", i)})
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}

	page, err := patients.GetAll(ctx, repository.Query{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.True(t, page.HasMore)
	assert.NotEmpty(t, page.NextCursor)
	// newest first by default
	assert.Equal(t, "n4", page.Items[0].FirstName)
	assert.Equal(t, "n3", page.Items[1].FirstName)

	page, err = patients.GetAll(ctx, repository.Query{PageSize: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	assert.Equal(t, "n2", page.Items[0].FirstName)
	assert.True(t, page.HasMore)

	page, err = patients.GetAll(ctx, repository.Query{PageSize: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "n0", page.Items[0].FirstName)
	assert.False(t, page.HasMore)
	assert.Empty(t, page.NextCursor)
}

func TestCollectionGetAllFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Now()}
	patients := newPatients(t, memory.NewStore(), clock)

	seed := []model.Patient{
		{FirstName: "Cy", Status: model.PatientStatusActive, Tags: []string{"vip"}},
		{FirstName: "Al", Status: model.PatientStatusActive},
		{FirstName: "Bo", Status: model.PatientStatusInactive, Tags: []string{"vip"}},
	}
	for i := range seed {
		_, err := patients.Create(ctx, &seed[i])
		require.NoError(t, err)
	}

	page, err := patients.GetAll(ctx, repository.Query{
		Filters:   []repository.Filter{{Field: "status", Op: repository.OpEq, Value: "active"}},
		OrderBy:   "first_name",
		Direction: repository.Asc,
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Al", page.Items[0].FirstName)
	assert.Equal(t, "Cy", page.Items[1].FirstName)

	page, err = patients.GetAll(ctx, repository.Query{
		Filters: []repository.Filter{{Field: "tags", Op: repository.OpArrayContains, Value: "vip"}},
		OrderBy: "first_name",
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Cy", page.Items[0].FirstName)
	assert.Equal(t, "Bo", page.Items[1].FirstName)
}

func TestCollectionGetAllRejectsBadQueries(t *testing.T) {
	ctx := context.Background()
	patients := newPatients(t, memory.NewStore(), &fixedClock{now: time.Now()})

	tests := []repository.Query{
		{Cursor: "%%%"},
		{OrderBy: "name; drop"},
		{Direction: "sideways"},
		{Filters: []repository.Filter{{Field: "status", Op: "~", Value: "x"}}},
		{Filters: []repository.Filter{{Field: "status", Op: repository.OpIn, Value: "x"}}},
	}
	for _, q := range tests {
		_, err := patients.GetAll(ctx, q)
		require.Error(t, err)
		assert.Equal(t, repository.CodeInvalidArgument, repository.CodeOf(err))
	}
}

func TestCollectionDeleteWhere(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	events := repository.NewCollection[model.MonitoringEvent](memory.NewStore(), model.CollectionMonitoringEvents,
		repository.WithClock(clock.Now))

	for i := 0; i < 3; i++ {
		_, err := events.Create(ctx, &model.MonitoringEvent{Name: "E", Message: "m"})
		require.NoError(t, err)
		clock.Advance(24 * time.Hour)
	}

	cutoff := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC).Format(repository.TimestampLayout)
	n, err := events.DeleteWhere(ctx, []repository.Filter{{Field: "created_at", Op: repository.OpLt, Value: cutoff}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	page, err := events.GetAll(ctx, repository.Query{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}

func TestCollectionStoreErrorsTranslate(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	patients := newPatients(t, store, &fixedClock{now: time.Now()})

	store.FailWith(repository.NewError(repository.CodeUnavailable, "find", model.CollectionPatients, "", fmt.Errorf("down")))
	_, err := patients.GetAll(ctx, repository.Query{})
	require.Error(t, err)
	assert.Equal(t, "The service is temporarily unavailable. Please try again later.", repository.UserMessage(err))
}

func TestCollectionRecordsMetrics(t *testing.T) {
	ctx := context.Background()
	m := metrics.NewMetrics(prometheus.NewRegistry(), "test")
	patients := repository.NewCollection[model.Patient](memory.NewStore(), model.CollectionPatients, repository.WithMetrics(m))

	_, err := patients.Create(ctx, &model.Patient{FirstName: "A"})
	require.NoError(t, err)
	_, err = patients.GetByID(ctx, "missing")
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreOperations.WithLabelValues(model.CollectionPatients, "create", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreOperations.WithLabelValues(model.CollectionPatients, "get", "error")))
}
