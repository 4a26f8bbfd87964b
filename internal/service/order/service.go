package order

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/jwalitptl/telehealth-admin/internal/model"
	"github.com/jwalitptl/telehealth-admin/internal/repository"
	"github.com/jwalitptl/telehealth-admin/internal/service/records"
	apperrors "github.com/jwalitptl/telehealth-admin/pkg/errors"
)

const DefaultCurrency = "USD"

type Service struct {
	*records.Service[model.Order]
}

func NewService(repo repository.Repository[model.Order], deps records.Dependencies) *Service {
	return &Service{
		Service: records.New(repo, "order", model.CollectionOrders, deps, records.Hooks[model.Order]{
			PrepareCreate: prepareCreate,
			PrepareUpdate: prepareUpdate,
			Validate:      validateOrder,
			BeforeDelete:  beforeDelete,
		}),
	}
}

// Total is the sum of quantity times unit price, rounded to cents.
func Total(items []model.OrderItem) float64 {
	var sum float64
	for _, it := range items {
		sum += float64(it.Quantity) * it.UnitPrice
	}
	return math.Round(sum*100) / 100
}

func prepareCreate(_ context.Context, o *model.Order) error {
	if o.Status == "" {
		o.Status = model.OrderStatusPending
	}
	if o.PaymentStatus == "" {
		o.PaymentStatus = model.PaymentStatusUnpaid
	}
	if o.Status.Terminal() {
		return apperrors.NewBadRequest(fmt.Sprintf("an order can't be created as %s", o.Status), nil)
	}
	normalize(o)
	return nil
}

// prepareUpdate rejects any change to a cancelled or refunded order.
func prepareUpdate(_ context.Context, current, next *model.Order) error {
	if current.Status.Terminal() {
		return apperrors.NewConflict(fmt.Sprintf("order is %s and can no longer be changed", current.Status))
	}
	if next.PatientID != current.PatientID {
		return apperrors.NewBadRequest("patient_id can't be changed", nil)
	}
	normalize(next)
	return nil
}

func normalize(o *model.Order) {
	o.Currency = strings.ToUpper(strings.TrimSpace(o.Currency))
	if o.Currency == "" {
		o.Currency = DefaultCurrency
	}
	o.Total = Total(o.Items)
}

func validateOrder(_ context.Context, o *model.Order) error {
	if !o.Status.Valid() {
		return apperrors.NewBadRequest(fmt.Sprintf("invalid order status %q", o.Status), nil)
	}
	if !o.PaymentStatus.Valid() {
		return apperrors.NewBadRequest(fmt.Sprintf("invalid payment status %q", o.PaymentStatus), nil)
	}
	if len(o.Currency) != 3 {
		return apperrors.NewBadRequest("currency must be a 3 letter code", nil)
	}
	return nil
}

// beforeDelete only allows removing orders that never left pending.
func beforeDelete(_ context.Context, o *model.Order) error {
	if o.Status != model.OrderStatusPending && !o.Status.Terminal() {
		return apperrors.NewConflict(fmt.Sprintf("order is %s; cancel it instead of deleting", o.Status))
	}
	return nil
}
