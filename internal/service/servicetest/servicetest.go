// Package servicetest builds in-memory dependencies for service tests.
package servicetest

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/telehealth-admin/internal/auth"
	"github.com/jwalitptl/telehealth-admin/internal/model"
	"github.com/jwalitptl/telehealth-admin/internal/repository"
	"github.com/jwalitptl/telehealth-admin/internal/repository/memory"
	"github.com/jwalitptl/telehealth-admin/internal/service/audit"
	"github.com/jwalitptl/telehealth-admin/internal/service/records"
	"github.com/jwalitptl/telehealth-admin/pkg/messaging"
	memorybroker "github.com/jwalitptl/telehealth-admin/pkg/messaging/memory"
)

type Env struct {
	Store  *memory.Store
	Broker *memorybroker.Broker
	Audit  *audit.Service
	Deps   records.Dependencies
}

func NewEnv() *Env {
	store := memory.NewStore()
	broker := memorybroker.NewBroker(50)
	auditSvc := audit.NewService(repository.NewCollection[model.AuditLog](store, model.CollectionAuditLogs), nil)
	return &Env{
		Store:  store,
		Broker: broker,
		Audit:  auditSvc,
		Deps: records.Dependencies{
			Audit:  auditSvc,
			Events: messaging.NewEventPublisher(broker, zerolog.Nop()),
		},
	}
}

// Collection returns a typed collection over the shared store.
func Collection[T any](e *Env, name string) *repository.Collection[T] {
	return repository.NewCollection[T](e.Store, name)
}

// As returns a context carrying an authenticated session.
func As(userID string, role auth.Role) context.Context {
	return auth.WithSession(context.Background(), auth.Authenticated(userID, role))
}
