package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jwalitptl/telehealth-admin/internal/repository"
	"github.com/jwalitptl/telehealth-admin/pkg/logger"
)

// Purger deletes the documents of one collection that match filters.
type Purger interface {
	Name() string
	DeleteWhere(ctx context.Context, filters []repository.Filter) (int64, error)
}

// RetentionWorker periodically removes monitoring data older than the
// retention period.
type RetentionWorker struct {
	targets         []Purger
	retentionDays   int
	cleanupInterval time.Duration
	logger          *logger.Logger
	now             func() time.Time
}

func NewRetentionWorker(targets []Purger, retentionDays int, cleanupInterval time.Duration, l *logger.Logger) (*RetentionWorker, error) {
	if retentionDays <= 0 {
		return nil, fmt.Errorf("retention days must be positive, got %d", retentionDays)
	}
	if cleanupInterval <= 0 {
		return nil, fmt.Errorf("cleanup interval must be positive, got %s", cleanupInterval)
	}
	if l == nil {
		l = logger.Nop()
	}
	return &RetentionWorker{
		targets:         targets,
		retentionDays:   retentionDays,
		cleanupInterval: cleanupInterval,
		logger:          l.With("retention"),
		now:             time.Now,
	}, nil
}

// Start sweeps once immediately and then on every interval until ctx is
// cancelled.
func (w *RetentionWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		if _, err := w.Sweep(ctx); err != nil {
			w.logger.Error(err, "retention sweep failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep deletes expired documents from every target and returns the number
// removed per collection. A failing collection does not stop the others.
func (w *RetentionWorker) Sweep(ctx context.Context) (map[string]int64, error) {
	cutoff := w.now().UTC().AddDate(0, 0, -w.retentionDays)
	filters := []repository.Filter{{
		Field: "created_at",
		Op:    repository.OpLt,
		Value: cutoff.Format(repository.TimestampLayout),
	}}

	removed := make(map[string]int64, len(w.targets))
	var errs []error
	for _, t := range w.targets {
		n, err := t.DeleteWhere(ctx, filters)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to clean up %s: %w", t.Name(), err))
			continue
		}
		removed[t.Name()] = n
		w.logger.Info("cleaned up expired documents", "collection", t.Name(), "count", n, "cutoff", cutoff)
	}
	return removed, errors.Join(errs...)
}
