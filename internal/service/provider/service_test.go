package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/telehealth-admin/internal/auth"
	"github.com/jwalitptl/telehealth-admin/internal/model"
	"github.com/jwalitptl/telehealth-admin/internal/service/servicetest"
	apperrors "github.com/jwalitptl/telehealth-admin/pkg/errors"
)

func TestProviderAvailability(t *testing.T) {
	env := servicetest.NewEnv()
	svc := NewService(servicetest.Collection[model.Provider](env, model.CollectionProviders), env.Deps)
	ctx := servicetest.As("u1", auth.RoleAdmin)

	p, err := svc.Create(ctx, &model.Provider{
		FirstName:    "Grace",
		LastName:     "Hopper",
		Email:        "grace@example.com",
		LicenseState: " ca ",
		Availability: []model.AvailabilityWindow{{Weekday: 1, Start: "09:00", End: "17:00"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "CA", p.LicenseState)

	_, err = svc.Create(ctx, &model.Provider{
		FirstName:    "Grace",
		LastName:     "Hopper",
		Email:        "grace@example.com",
		Availability: []model.AvailabilityWindow{{Weekday: 1, Start: "17:00", End: "09:00"}},
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	_, err = svc.Create(ctx, &model.Provider{
		FirstName:    "Grace",
		LastName:     "Hopper",
		Email:        "grace@example.com",
		Availability: []model.AvailabilityWindow{{Weekday: 9, Start: "09:00", End: "10:00"}},
	})
	assert.Error(t, err)
}
