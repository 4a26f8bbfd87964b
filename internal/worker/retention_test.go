package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/telehealth-admin/internal/model"
	"github.com/jwalitptl/telehealth-admin/internal/repository"
	"github.com/jwalitptl/telehealth-admin/internal/repository/memory"
	"github.com/jwalitptl/telehealth-admin/pkg/logger"
)

type failingPurger struct{}

func (failingPurger) Name() string { return "broken" }

func (failingPurger) DeleteWhere(context.Context, []repository.Filter) (int64, error) {
	return 0, errors.New("store offline")
}

func TestRetentionSweep(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

	var clock time.Time
	events := repository.NewCollection[model.MonitoringEvent](store, model.CollectionMonitoringEvents,
		repository.WithClock(func() time.Time { return clock }))
	perf := repository.NewCollection[model.PerformanceMetric](store, model.CollectionPerformanceMetrics,
		repository.WithClock(func() time.Time { return clock }))

	clock = now.AddDate(0, 0, -45)
	_, err := events.Create(ctx, &model.MonitoringEvent{Name: "old"})
	require.NoError(t, err)
	_, err = perf.Create(ctx, &model.PerformanceMetric{Name: "old"})
	require.NoError(t, err)

	clock = now.AddDate(0, 0, -2)
	_, err = events.Create(ctx, &model.MonitoringEvent{Name: "recent"})
	require.NoError(t, err)

	w, err := NewRetentionWorker([]Purger{events, perf}, 30, time.Hour, logger.Nop())
	require.NoError(t, err)
	w.now = func() time.Time { return now }

	removed, err := w.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{
		model.CollectionMonitoringEvents:   1,
		model.CollectionPerformanceMetrics: 1,
	}, removed)

	page, err := events.GetAll(ctx, repository.Query{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "recent", page.Items[0].Name)
}

func TestRetentionSweepContinuesAfterFailure(t *testing.T) {
	store := memory.NewStore()
	events := repository.NewCollection[model.MonitoringEvent](store, model.CollectionMonitoringEvents)

	w, err := NewRetentionWorker([]Purger{failingPurger{}, events}, 7, time.Hour, nil)
	require.NoError(t, err)

	removed, err := w.Sweep(context.Background())
	assert.ErrorContains(t, err, "failed to clean up broken")
	assert.Contains(t, removed, model.CollectionMonitoringEvents)
}

func TestNewRetentionWorkerValidates(t *testing.T) {
	_, err := NewRetentionWorker(nil, 0, time.Hour, nil)
	assert.Error(t, err)
	_, err = NewRetentionWorker(nil, 30, 0, nil)
	assert.Error(t, err)
}

func TestRetentionStartStopsOnCancel(t *testing.T) {
	w, err := NewRetentionWorker(nil, 30, 10*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
