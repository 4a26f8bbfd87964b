package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/jwalitptl/telehealth-admin/internal/model"
	"github.com/jwalitptl/telehealth-admin/internal/repository"
	"github.com/jwalitptl/telehealth-admin/internal/service/records"
	apperrors "github.com/jwalitptl/telehealth-admin/pkg/errors"
)

type Service struct {
	*records.Service[model.Patient]
}

func NewService(repo repository.Repository[model.Patient], deps records.Dependencies) *Service {
	return &Service{
		Service: records.New(repo, "patient", model.CollectionPatients, deps, records.Hooks[model.Patient]{
			PrepareCreate: prepareCreate,
			PrepareUpdate: prepareUpdate,
			Validate:      validatePatient,
		}),
	}
}

func prepareCreate(_ context.Context, p *model.Patient) error {
	normalize(p)
	if p.Status == "" {
		p.Status = model.PatientStatusPending
	}
	return nil
}

func prepareUpdate(_ context.Context, _, next *model.Patient) error {
	normalize(next)
	return nil
}

func normalize(p *model.Patient) {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
}

func validatePatient(_ context.Context, p *model.Patient) error {
	if !p.Status.Valid() {
		return apperrors.NewBadRequest(fmt.Sprintf("invalid patient status %q", p.Status), nil)
	}
	return nil
}
