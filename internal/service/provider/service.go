package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jwalitptl/telehealth-admin/internal/model"
	"github.com/jwalitptl/telehealth-admin/internal/repository"
	"github.com/jwalitptl/telehealth-admin/internal/service/records"
	apperrors "github.com/jwalitptl/telehealth-admin/pkg/errors"
)

type Service struct {
	*records.Service[model.Provider]
}

func NewService(repo repository.Repository[model.Provider], deps records.Dependencies) *Service {
	return &Service{
		Service: records.New(repo, "provider", model.CollectionProviders, deps, records.Hooks[model.Provider]{
			PrepareCreate: func(_ context.Context, p *model.Provider) error {
				normalize(p)
				return nil
			},
			PrepareUpdate: func(_ context.Context, _, next *model.Provider) error {
				normalize(next)
				return nil
			},
			Validate: validateProvider,
		}),
	}
}

func normalize(p *model.Provider) {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.LicenseState = strings.ToUpper(strings.TrimSpace(p.LicenseState))
}

// validateProvider checks that every availability window ends after it
// starts.
func validateProvider(_ context.Context, p *model.Provider) error {
	for i, w := range p.Availability {
		start, err1 := time.Parse("15:04", w.Start)
		end, err2 := time.Parse("15:04", w.End)
		if err1 != nil || err2 != nil {
			return apperrors.NewBadRequest(fmt.Sprintf("availability[%d]: times must be HH:MM", i), nil)
		}
		if !end.After(start) {
			return apperrors.NewBadRequest(
				fmt.Sprintf("availability[%d]: end %s must be after start %s", i, w.End, w.Start), nil)
		}
	}
	return nil
}
