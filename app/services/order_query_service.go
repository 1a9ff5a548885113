package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shashiranjanraj/orderly/app/models"
	"github.com/shashiranjanraj/orderly/app/repositories"
)

// DateRange bounds a listing by the UTC calendar date of created_at. Both
// ends are inclusive and either may be nil.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// Open reports whether neither bound is set.
func (r DateRange) Open() bool { return r.Start == nil && r.End == nil }

func (r DateRange) validate() error {
	if r.Start != nil && r.End != nil && utcDate(*r.End).Before(utcDate(*r.Start)) {
		return fmt.Errorf("%w: end date %s is before start date %s",
			ErrBadRequest, r.End.Format(time.DateOnly), r.Start.Format(time.DateOnly))
	}
	return nil
}

// filter turns whole days into a half-open instant range.
func (r DateRange) filter() repositories.Filter {
	var f repositories.Filter
	if r.Start != nil {
		from := utcDate(*r.Start)
		f.From = &from
	}
	if r.End != nil {
		until := utcDate(*r.End).AddDate(0, 0, 1)
		f.Until = &until
	}
	return f
}

func utcDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// OrderQueryService answers read-only order listings.
type OrderQueryService struct {
	store *repositories.Store
}

func NewOrderQueryService(store *repositories.Store) *OrderQueryService {
	return &OrderQueryService{store: store}
}

// ListOrders is the administrator's view over every user's orders. With no
// bounds at all it returns an empty list rather than the whole table.
func (s *OrderQueryService) ListOrders(ctx context.Context, callerID uint, r DateRange) ([]models.Order, error) {
	var orders []models.Order
	err := s.store.RunInTx(ctx, func(tx *repositories.Store) error {
		caller, err := loadCaller(ctx, tx, callerID)
		if err != nil {
			return err
		}
		if !caller.Admin {
			return fmt.Errorf("%w: listing all orders requires an administrator", ErrUnauthorized)
		}
		if err := r.validate(); err != nil {
			return err
		}
		if r.Open() {
			orders = []models.Order{}
			return nil
		}

		orders, err = tx.Orders().List(ctx, r.filter())
		return err
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// ListMyOrders returns the caller's own orders. With no bounds it returns
// all of them.
func (s *OrderQueryService) ListMyOrders(ctx context.Context, callerID uint, r DateRange) ([]models.Order, error) {
	var orders []models.Order
	err := s.store.RunInTx(ctx, func(tx *repositories.Store) error {
		caller, err := loadCaller(ctx, tx, callerID)
		if err != nil {
			return err
		}
		if err := r.validate(); err != nil {
			return err
		}

		f := r.filter()
		f.UserID = &caller.ID
		orders, err = tx.Orders().List(ctx, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}
