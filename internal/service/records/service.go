// Package records is the CRUD service shared by every entity collection.
// Entity specific rules plug in through Hooks.
package records

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwalitptl/telehealth-admin/internal/model"
	"github.com/jwalitptl/telehealth-admin/internal/repository"
	"github.com/jwalitptl/telehealth-admin/internal/service/audit"
	"github.com/jwalitptl/telehealth-admin/pkg/logger"
	"github.com/jwalitptl/telehealth-admin/pkg/messaging"
	"github.com/jwalitptl/telehealth-admin/pkg/validator"
)

// Hooks customise a Service. Every hook is optional.
type Hooks[T any] struct {
	// PrepareCreate fills defaults and derived fields of a new item.
	PrepareCreate func(ctx context.Context, item *T) error
	// PrepareUpdate sees the stored item and the item with the patch
	// applied, and may reject the change or adjust next.
	PrepareUpdate func(ctx context.Context, current, next *T) error
	// Validate runs after the prepare hooks and after struct tag validation.
	Validate func(ctx context.Context, item *T) error
	// BeforeDelete may refuse to delete current.
	BeforeDelete func(ctx context.Context, current *T) error
}

// Dependencies shared by all record services.
type Dependencies struct {
	Audit     *audit.Service
	Events    *messaging.EventPublisher
	Validator *validator.Validator
	Logger    *logger.Logger
}

type Service[T any] struct {
	repo       repository.Repository[T]
	entity     string
	collection string
	hooks      Hooks[T]
	deps       Dependencies
}

// New builds a service for entity (e.g. "patient") stored in collection.
func New[T any](repo repository.Repository[T], entity, collection string, deps Dependencies, hooks Hooks[T]) *Service[T] {
	if deps.Validator == nil {
		deps.Validator = validator.Default()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &Service[T]{repo: repo, entity: entity, collection: collection, hooks: hooks, deps: deps}
}

func (s *Service[T]) Entity() string {
	return s.entity
}

// Channel is where change events for this collection are published.
func (s *Service[T]) Channel() string {
	return "records." + s.collection
}

func (s *Service[T]) List(ctx context.Context, q repository.Query) (*repository.Page[T], error) {
	page, err := s.repo.GetAll(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.collection, err)
	}
	return page, nil
}

func (s *Service[T]) Get(ctx context.Context, id string) (*T, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", s.entity, err)
	}
	return item, nil
}

func (s *Service[T]) Create(ctx context.Context, item *T) (*T, error) {
	if s.hooks.PrepareCreate != nil {
		if err := s.hooks.PrepareCreate(ctx, item); err != nil {
			return nil, err
		}
	}
	if err := s.validate(ctx, item); err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", s.entity, err)
	}

	after, _ := repository.Encode(created)
	id := idOf(after)
	s.deps.Audit.LogQuietly(ctx, audit.Entry{
		Action:     model.AuditActionCreate,
		EntityType: s.entity,
		EntityID:   id,
		After:      after,
	})
	s.emit(ctx, model.AuditActionCreate, id, after)
	return created, nil
}

// Update applies a shallow patch. The stored document is replaced by the
// patched, prepared and validated item, so fields the item leaves empty are
// cleared; id and created_at never change.
func (s *Service[T]) Update(ctx context.Context, id string, patch model.Document) (*T, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", s.entity, err)
	}
	before, err := repository.Encode(current)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", s.entity, err)
	}

	next, err := applyPatch(current, patch)
	if err != nil {
		return nil, repository.InvalidArgument("update", s.collection, "%v", err)
	}
	if s.hooks.PrepareUpdate != nil {
		if err := s.hooks.PrepareUpdate(ctx, current, next); err != nil {
			return nil, err
		}
	}
	if err := s.validate(ctx, next); err != nil {
		return nil, err
	}

	updated, err := s.repo.Replace(ctx, id, next)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s: %w", s.entity, err)
	}

	after, _ := repository.Encode(updated)
	s.deps.Audit.LogQuietly(ctx, audit.Entry{
		Action:     model.AuditActionUpdate,
		EntityType: s.entity,
		EntityID:   id,
		Before:     before,
		After:      after,
	})
	s.emit(ctx, model.AuditActionUpdate, id, after)
	return updated, nil
}

func (s *Service[T]) Delete(ctx context.Context, id string) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", s.entity, err)
	}
	if s.hooks.BeforeDelete != nil {
		if err := s.hooks.BeforeDelete(ctx, current); err != nil {
			return err
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete %s: %w", s.entity, err)
	}

	before, _ := repository.Encode(current)
	s.deps.Audit.LogQuietly(ctx, audit.Entry{
		Action:     model.AuditActionDelete,
		EntityType: s.entity,
		EntityID:   id,
		Before:     before,
	})
	s.emit(ctx, model.AuditActionDelete, id, nil)
	return nil
}

func (s *Service[T]) validate(ctx context.Context, item *T) error {
	if err := s.deps.Validator.Struct(item); err != nil {
		return err
	}
	if s.hooks.Validate != nil {
		return s.hooks.Validate(ctx, item)
	}
	return nil
}

// ChangeEvent is the payload published on the collection channel.
type ChangeEvent struct {
	Entity string         `json:"entity"`
	ID     string         `json:"id"`
	Data   model.Document `json:"data,omitempty"`
}

func (s *Service[T]) emit(ctx context.Context, action, id string, data model.Document) {
	s.deps.Events.Emit(ctx, s.Channel(), action, ChangeEvent{Entity: s.entity, ID: id, Data: data})
}

func applyPatch[T any](current *T, patch model.Document) (*T, error) {
	doc, err := repository.Encode(current)
	if err != nil {
		return nil, err
	}
	for k, v := range patch {
		switch k {
		case "id", "created_at", "updated_at":
			continue
		}
		doc[k] = v
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var next T
	if err := json.Unmarshal(data, &next); err != nil {
		return nil, fmt.Errorf("invalid patch: %w", err)
	}
	return &next, nil
}

func idOf(doc model.Document) string {
	id, _ := doc["id"].(string)
	return id
}
