package audit

import (
	"context"
	"fmt"

	"github.com/jwalitptl/telehealth-admin/internal/auth"
	"github.com/jwalitptl/telehealth-admin/internal/model"
	"github.com/jwalitptl/telehealth-admin/internal/repository"
	"github.com/jwalitptl/telehealth-admin/pkg/logger"
)

// RequestInfo describes the HTTP request behind a mutation.
type RequestInfo struct {
	IPAddress string
	UserAgent string
	RequestID string
}

type requestInfoKey struct{}

func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

func RequestInfoFrom(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}

// Entry is what a caller knows about a change.
type Entry struct {
	Action     string
	EntityType string
	EntityID   string
	Before     model.Document
	After      model.Document
}

// Service writes and reads the audit trail. It only has append and read
// access to the collection, so entries can't be changed once written.
type Service struct {
	repo   repository.AppendOnly[model.AuditLog]
	logger *logger.Logger
}

func NewService(repo repository.AppendOnly[model.AuditLog], l *logger.Logger) *Service {
	if l == nil {
		l = logger.Nop()
	}
	return &Service{repo: repo, logger: l.With("audit")}
}

// Log appends an entry attributed to the session and request in ctx.
func (s *Service) Log(ctx context.Context, e Entry) error {
	sess := auth.FromContext(ctx)
	info := RequestInfoFrom(ctx)

	_, err := s.repo.Create(ctx, &model.AuditLog{
		Action:     e.Action,
		ActorID:    sess.ActorID(),
		ActorRole:  string(sess.Role()),
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Before:     e.Before,
		After:      e.After,
		IPAddress:  info.IPAddress,
		UserAgent:  info.UserAgent,
		RequestID:  info.RequestID,
	})
	if err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// LogQuietly logs instead of returning a failed write. The mutation it
// describes has already happened by then.
func (s *Service) LogQuietly(ctx context.Context, e Entry) {
	if s == nil {
		return
	}
	if err := s.Log(ctx, e); err != nil {
		s.logger.Error(err, "audit entry lost",
			"action", e.Action,
			"entity_type", e.EntityType,
			"entity_id", e.EntityID)
	}
}

func (s *Service) List(ctx context.Context, q repository.Query) (*repository.Page[model.AuditLog], error) {
	return s.repo.GetAll(ctx, q)
}

func (s *Service) Get(ctx context.Context, id string) (*model.AuditLog, error) {
	return s.repo.GetByID(ctx, id)
}
