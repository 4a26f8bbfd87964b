package session

import (
	"context"
	"fmt"

	"github.com/jwalitptl/telehealth-admin/internal/model"
	"github.com/jwalitptl/telehealth-admin/internal/repository"
	"github.com/jwalitptl/telehealth-admin/internal/service/records"
	apperrors "github.com/jwalitptl/telehealth-admin/pkg/errors"
)

const DefaultDurationMinutes = 30

// transitions lists the statuses reachable from each non-terminal status.
var transitions = map[model.SessionStatus][]model.SessionStatus{
	model.SessionStatusScheduled: {
		model.SessionStatusInProgress,
		model.SessionStatusCancelled,
		model.SessionStatusNoShow,
	},
	model.SessionStatusInProgress: {
		model.SessionStatusCompleted,
		model.SessionStatusCancelled,
	},
}

// CanTransition reports whether a session may move from one status to
// another. Keeping the current status is always allowed, so notes can still
// be edited after a session ends.
func CanTransition(from, to model.SessionStatus) bool {
	if from == to {
		return true
	}
	if from.Terminal() {
		return false
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Service struct {
	*records.Service[model.Session]
}

func NewService(repo repository.Repository[model.Session], deps records.Dependencies) *Service {
	return &Service{
		Service: records.New(repo, "session", model.CollectionSessions, deps, records.Hooks[model.Session]{
			PrepareCreate: prepareCreate,
			PrepareUpdate: prepareUpdate,
			Validate:      validateSession,
		}),
	}
}

func prepareCreate(_ context.Context, s *model.Session) error {
	if s.Status == "" {
		s.Status = model.SessionStatusScheduled
	}
	if s.Status != model.SessionStatusScheduled {
		return apperrors.NewBadRequest("new sessions must be scheduled", nil)
	}
	if s.DurationMinutes == 0 {
		s.DurationMinutes = DefaultDurationMinutes
	}
	return nil
}

func prepareUpdate(_ context.Context, current, next *model.Session) error {
	if !next.Status.Valid() {
		return apperrors.NewBadRequest(fmt.Sprintf("invalid session status %q", next.Status), nil)
	}
	if !CanTransition(current.Status, next.Status) {
		return apperrors.NewConflict(fmt.Sprintf("session can't move from %s to %s", current.Status, next.Status))
	}
	return nil
}

func validateSession(_ context.Context, s *model.Session) error {
	if !s.Status.Valid() {
		return apperrors.NewBadRequest(fmt.Sprintf("invalid session status %q", s.Status), nil)
	}
	return nil
}
