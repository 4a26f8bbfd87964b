package form

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwalitptl/telehealth-admin/internal/forms"
	"github.com/jwalitptl/telehealth-admin/internal/model"
	"github.com/jwalitptl/telehealth-admin/internal/repository"
	"github.com/jwalitptl/telehealth-admin/internal/service/records"
	apperrors "github.com/jwalitptl/telehealth-admin/pkg/errors"
	"github.com/jwalitptl/telehealth-admin/pkg/metrics"
)

// Service manages form schemas. A published form is frozen: the only change
// it accepts is being archived. Archived forms accept none.
type Service struct {
	*records.Service[model.Form]
	engine  *forms.Engine
	metrics *metrics.Metrics
}

func NewService(repo repository.Repository[model.Form], deps records.Dependencies, m *metrics.Metrics) *Service {
	s := &Service{engine: forms.NewEngine(), metrics: m}
	s.Service = records.New(repo, "form", model.CollectionForms, deps, records.Hooks[model.Form]{
		PrepareCreate: prepareCreate,
		PrepareUpdate: prepareUpdate,
		Validate:      s.validateForm,
	})
	return s
}

// ValidateSchema checks an untyped schema without storing it.
func (s *Service) ValidateSchema(raw interface{}) forms.SchemaResult {
	res := forms.ValidateSchema(raw)
	s.metrics.FormValidation("schema", res.Valid)
	return res
}

// CreateFromRaw validates raw and stores it as a new draft.
func (s *Service) CreateFromRaw(ctx context.Context, raw interface{}) (*model.Form, error) {
	res := s.ValidateSchema(raw)
	if !res.Valid {
		return nil, apperrors.NewUnprocessable("invalid form schema", res.Errors)
	}
	return s.Create(ctx, &model.Form{Schema: *res.Schema})
}

func (s *Service) Publish(ctx context.Context, id string) (*model.Form, error) {
	return s.Update(ctx, id, model.Document{"status": string(model.FormStatusPublished)})
}

func (s *Service) Archive(ctx context.Context, id string) (*model.Form, error) {
	return s.Update(ctx, id, model.Document{"status": string(model.FormStatusArchived)})
}

// Evaluate runs the validation engine over data without storing anything.
func (s *Service) Evaluate(ctx context.Context, id string, data map[string]interface{}) (*forms.Result, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	res := s.engine.ValidateSchema(&f.Schema, data)
	s.metrics.FormValidation("evaluate", res.Valid)
	return &res, nil
}

func prepareCreate(_ context.Context, f *model.Form) error {
	f.Status = model.FormStatusDraft
	f.Version = 1
	return nil
}

func prepareUpdate(_ context.Context, current, next *model.Form) error {
	if current.Status == model.FormStatusArchived {
		return apperrors.NewConflict("archived forms can't be changed")
	}
	next.Version = current.Version

	changed, err := schemaChanged(&current.Schema, &next.Schema)
	if err != nil {
		return err
	}
	switch current.Status {
	case model.FormStatusPublished:
		if changed {
			return apperrors.NewConflict("published forms can't be edited; archive it and create a new form")
		}
		if next.Status != model.FormStatusPublished && next.Status != model.FormStatusArchived {
			return apperrors.NewConflict(fmt.Sprintf("a published form can't become %s", next.Status))
		}
	case model.FormStatusDraft:
		if changed {
			next.Version++
		}
	}
	return nil
}

func (s *Service) validateForm(_ context.Context, f *model.Form) error {
	if !f.Status.Valid() {
		return apperrors.NewBadRequest(fmt.Sprintf("invalid form status %q", f.Status), nil)
	}
	raw, err := toRaw(f.Schema)
	if err != nil {
		return err
	}
	if res := s.ValidateSchema(raw); !res.Valid {
		return apperrors.NewUnprocessable("invalid form schema", res.Errors)
	}
	return nil
}

func schemaChanged(a, b *forms.Schema) (bool, error) {
	ab, err := json.Marshal(a)
	if err != nil {
		return false, err
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false, err
	}
	return !bytes.Equal(ab, bb), nil
}

func toRaw(s forms.Schema) (interface{}, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	return raw, nil
}
