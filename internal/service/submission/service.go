package submission

import (
	"context"
	"fmt"

	"github.com/jwalitptl/telehealth-admin/internal/auth"
	"github.com/jwalitptl/telehealth-admin/internal/forms"
	"github.com/jwalitptl/telehealth-admin/internal/model"
	"github.com/jwalitptl/telehealth-admin/internal/repository"
	"github.com/jwalitptl/telehealth-admin/internal/service/audit"
	"github.com/jwalitptl/telehealth-admin/internal/service/records"
	apperrors "github.com/jwalitptl/telehealth-admin/pkg/errors"
	"github.com/jwalitptl/telehealth-admin/pkg/metrics"
)

// FormReader loads the form a submission answers.
type FormReader interface {
	Get(ctx context.Context, id string) (*model.Form, error)
}

// Request is a new or revised set of answers.
type Request struct {
	Data   map[string]interface{} `json:"data"`
	Status model.SubmissionStatus `json:"status"`
}

// Service stores answers to published forms. Every save runs the validation
// engine: drafts keep its findings as advisory errors, while a submitted
// answer set must be free of errors. Submitted answers are final.
type Service struct {
	*records.Service[model.FormSubmission]
	forms   FormReader
	engine  *forms.Engine
	metrics *metrics.Metrics
}

func NewService(repo repository.Repository[model.FormSubmission], formReader FormReader, deps records.Dependencies, m *metrics.Metrics) *Service {
	s := &Service{forms: formReader, engine: forms.NewEngine(), metrics: m}
	s.Service = records.New(repo, "form_submission", model.CollectionSubmissions, deps, records.Hooks[model.FormSubmission]{
		PrepareCreate: s.prepareCreate,
		PrepareUpdate: s.prepareUpdate,
		BeforeDelete:  beforeDelete,
	})
	return s
}

// Submit stores a new answer set for formID.
func (s *Service) Submit(ctx context.Context, formID string, req Request) (*model.FormSubmission, error) {
	info := audit.RequestInfoFrom(ctx)
	return s.Create(ctx, &model.FormSubmission{
		FormID:      formID,
		Data:        req.Data,
		Status:      req.Status,
		SubmittedBy: auth.FromContext(ctx).ActorID(),
		Metadata: model.SubmissionMetadata{
			UserAgent: info.UserAgent,
			IPAddress: info.IPAddress,
		},
	})
}

// Revise replaces the answers of a draft and optionally submits it.
func (s *Service) Revise(ctx context.Context, id string, req Request) (*model.FormSubmission, error) {
	patch := model.Document{"data": req.Data}
	if req.Status != "" {
		patch["status"] = string(req.Status)
	}
	return s.Update(ctx, id, patch)
}

// ListForForm pages through the submissions of one form.
func (s *Service) ListForForm(ctx context.Context, formID string, q repository.Query) (*repository.Page[model.FormSubmission], error) {
	q.Filters = append([]repository.Filter{{Field: "form_id", Op: repository.OpEq, Value: formID}}, q.Filters...)
	return s.List(ctx, q)
}

func (s *Service) prepareCreate(ctx context.Context, sub *model.FormSubmission) error {
	f, err := s.forms.Get(ctx, sub.FormID)
	if err != nil {
		return err
	}
	if f.Status != model.FormStatusPublished {
		return apperrors.NewConflict(fmt.Sprintf("form is %s and does not accept submissions", f.Status))
	}
	sub.FormVersion = f.Version
	return s.evaluate(f, sub)
}

func (s *Service) prepareUpdate(ctx context.Context, current, next *model.FormSubmission) error {
	if current.Status == model.SubmissionStatusSubmitted {
		return apperrors.NewConflict("submitted answers can't be changed")
	}
	if next.FormID != current.FormID {
		return apperrors.NewBadRequest("form_id can't be changed", nil)
	}
	f, err := s.forms.Get(ctx, current.FormID)
	if err != nil {
		return err
	}
	if f.Status == model.FormStatusArchived {
		return apperrors.NewConflict("form is archived and does not accept submissions")
	}
	next.FormVersion = f.Version
	return s.evaluate(f, next)
}

// evaluate records the engine's findings on sub, and refuses a submitted
// answer set that has errors.
func (s *Service) evaluate(f *model.Form, sub *model.FormSubmission) error {
	if sub.Status == "" {
		sub.Status = model.SubmissionStatusDraft
	}
	if sub.Status != model.SubmissionStatusDraft && sub.Status != model.SubmissionStatusSubmitted {
		return apperrors.NewBadRequest(fmt.Sprintf("invalid submission status %q", sub.Status), nil)
	}
	if sub.Data == nil {
		sub.Data = map[string]interface{}{}
	}

	res := s.engine.ValidateSchema(&f.Schema, sub.Data)
	s.metrics.FormValidation("submission", res.Valid)

	if sub.Status == model.SubmissionStatusSubmitted && !res.Valid {
		return apperrors.NewUnprocessable("submission has validation errors", res.Errors)
	}
	sub.Errors = res.Errors
	sub.Warnings = res.Warnings
	sub.Completion = res.Completion
	return nil
}

func beforeDelete(_ context.Context, sub *model.FormSubmission) error {
	if sub.Status == model.SubmissionStatusSubmitted {
		return apperrors.NewConflict("submitted answers can't be deleted")
	}
	return nil
}
