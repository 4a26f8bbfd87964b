package records_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/telehealth-admin/internal/auth"
	"github.com/jwalitptl/telehealth-admin/internal/model"
	"github.com/jwalitptl/telehealth-admin/internal/repository"
	"github.com/jwalitptl/telehealth-admin/internal/repository/memory"
	"github.com/jwalitptl/telehealth-admin/internal/service/audit"
	"github.com/jwalitptl/telehealth-admin/internal/service/records"
	apperrors "github.com/jwalitptl/telehealth-admin/pkg/errors"
	"github.com/jwalitptl/telehealth-admin/pkg/messaging"
	memorybroker "github.com/jwalitptl/telehealth-admin/pkg/messaging/memory"
	"github.com/jwalitptl/telehealth-admin/pkg/validator"
)

type fixture struct {
	svc    *records.Service[model.Provider]
	audit  *audit.Service
	broker *memorybroker.Broker
}

func newFixture(t *testing.T, hooks records.Hooks[model.Provider]) *fixture {
	t.Helper()
	store := memory.NewStore()
	broker := memorybroker.NewBroker(10)
	auditSvc := audit.NewService(repository.NewCollection[model.AuditLog](store, model.CollectionAuditLogs), nil)
	deps := records.Dependencies{
		Audit:  auditSvc,
		Events: messaging.NewEventPublisher(broker, zerolog.Nop()),
	}
	repo := repository.NewCollection[model.Provider](store, model.CollectionProviders)
	return &fixture{
		svc:    records.New(repo, "provider", model.CollectionProviders, deps, hooks),
		audit:  auditSvc,
		broker: broker,
	}
}

func adminCtx() context.Context {
	ctx := auth.WithSession(context.Background(), auth.Authenticated("u-admin", auth.RoleAdmin))
	return audit.WithRequestInfo(ctx, audit.RequestInfo{IPAddress: "10.0.0.1", RequestID: "req-1"})
}

func validProvider() *model.Provider {
	return &model.Provider{FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com"}
}

func TestCreateAuditsAndPublishes(t *testing.T) {
	f := newFixture(t, records.Hooks[model.Provider]{})
	ctx := adminCtx()

	created, err := f.svc.Create(ctx, validProvider())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	logs, err := f.audit.List(ctx, repository.Query{})
	require.NoError(t, err)
	require.Len(t, logs.Items, 1)
	entry := logs.Items[0]
	assert.Equal(t, model.AuditActionCreate, entry.Action)
	assert.Equal(t, "provider", entry.EntityType)
	assert.Equal(t, created.ID, entry.EntityID)
	assert.Equal(t, "u-admin", entry.ActorID)
	assert.Equal(t, "admin", entry.ActorRole)
	assert.Equal(t, "10.0.0.1", entry.IPAddress)
	assert.Equal(t, "req-1", entry.RequestID)
	assert.Equal(t, "Grace", entry.After["first_name"])

	msgs, err := f.broker.Poll(ctx, f.svc.Channel(), 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "records.providers", msgs[0].Channel)
	assert.Equal(t, model.AuditActionCreate, msgs[0].Type)
}

func TestCreateValidatesStructTags(t *testing.T) {
	f := newFixture(t, records.Hooks[model.Provider]{})

	_, err := f.svc.Create(adminCtx(), &model.Provider{FirstName: "NoEmail", LastName: "X"})
	var verr *validator.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "email", verr.Fields[0].Field)
}

func TestHooksRunInOrder(t *testing.T) {
	var calls []string
	f := newFixture(t, records.Hooks[model.Provider]{
		PrepareCreate: func(_ context.Context, p *model.Provider) error {
			calls = append(calls, "prepare")
			p.Specialty = "dermatology"
			return nil
		},
		Validate: func(_ context.Context, p *model.Provider) error {
			calls = append(calls, "validate")
			assert.Equal(t, "dermatology", p.Specialty)
			return nil
		},
	})

	created, err := f.svc.Create(adminCtx(), validProvider())
	require.NoError(t, err)
	assert.Equal(t, "dermatology", created.Specialty)
	assert.Equal(t, []string{"prepare", "validate"}, calls)
}

func TestUpdateAppliesPatch(t *testing.T) {
	var seen struct{ current, next string }
	f := newFixture(t, records.Hooks[model.Provider]{
		PrepareUpdate: func(_ context.Context, current, next *model.Provider) error {
			seen.current, seen.next = current.Specialty, next.Specialty
			return nil
		},
	})
	ctx := adminCtx()
	created, err := f.svc.Create(ctx, validProvider())
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, created.ID, model.Document{
		"specialty":  "cardiology",
		"id":         "hijack",
		"created_at": "1999-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "cardiology", updated.Specialty)
	assert.Equal(t, "Grace", updated.FirstName)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))
	assert.Equal(t, "", seen.current)
	assert.Equal(t, "cardiology", seen.next)

	logs, err := f.audit.List(ctx, repository.Query{Filters: []repository.Filter{{Field: "action", Op: repository.OpEq, Value: "update"}}})
	require.NoError(t, err)
	require.Len(t, logs.Items, 1)
	assert.Nil(t, logs.Items[0].Before["specialty"])
	assert.Equal(t, "cardiology", logs.Items[0].After["specialty"])
}

func TestUpdateRejectedByHook(t *testing.T) {
	f := newFixture(t, records.Hooks[model.Provider]{
		PrepareUpdate: func(context.Context, *model.Provider, *model.Provider) error {
			return apperrors.NewConflict("frozen")
		},
	})
	ctx := adminCtx()
	created, err := f.svc.Create(ctx, validProvider())
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, created.ID, model.Document{"specialty": "x"})
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	got, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Specialty)
}

func TestUpdateBadPatchType(t *testing.T) {
	f := newFixture(t, records.Hooks[model.Provider]{})
	ctx := adminCtx()
	created, err := f.svc.Create(ctx, validProvider())
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, created.ID, model.Document{"accepting_patients": "maybe"})
	assert.Equal(t, repository.CodeInvalidArgument, repository.CodeOf(err))
}

func TestUpdateAndDeleteMissing(t *testing.T) {
	f := newFixture(t, records.Hooks[model.Provider]{})
	ctx := adminCtx()

	_, err := f.svc.Update(ctx, "missing", model.Document{"specialty": "x"})
	assert.True(t, repository.IsNotFound(err))
	assert.True(t, repository.IsNotFound(f.svc.Delete(ctx, "missing")))
}

func TestDelete(t *testing.T) {
	blocked := errors.New("blocked")
	block := false
	f := newFixture(t, records.Hooks[model.Provider]{
		BeforeDelete: func(context.Context, *model.Provider) error {
			if block {
				return blocked
			}
			return nil
		},
	})
	ctx := adminCtx()
	created, err := f.svc.Create(ctx, validProvider())
	require.NoError(t, err)

	block = true
	assert.ErrorIs(t, f.svc.Delete(ctx, created.ID), blocked)

	block = false
	require.NoError(t, f.svc.Delete(ctx, created.ID))
	_, err = f.svc.Get(ctx, created.ID)
	assert.True(t, repository.IsNotFound(err))

	logs, err := f.audit.List(ctx, repository.Query{Filters: []repository.Filter{{Field: "action", Op: repository.OpEq, Value: "delete"}}})
	require.NoError(t, err)
	require.Len(t, logs.Items, 1)
	assert.Equal(t, "Grace", logs.Items[0].Before["first_name"])
}

func TestAnonymousActor(t *testing.T) {
	f := newFixture(t, records.Hooks[model.Provider]{})
	ctx := context.Background()

	_, err := f.svc.Create(ctx, validProvider())
	require.NoError(t, err)

	logs, err := f.audit.List(ctx, repository.Query{})
	require.NoError(t, err)
	assert.Equal(t, "anonymous", logs.Items[0].ActorID)
}

func TestListPaginates(t *testing.T) {
	f := newFixture(t, records.Hooks[model.Provider]{})
	ctx := adminCtx()
	for i := 0; i < 3; i++ {
		_, err := f.svc.Create(ctx, validProvider())
		require.NoError(t, err)
	}

	page, err := f.svc.List(ctx, repository.Query{PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.True(t, page.HasMore)

	page, err = f.svc.List(ctx, repository.Query{PageSize: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.False(t, page.HasMore)
}
