package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shashiranjanraj/orderly/app/models"
	"github.com/shashiranjanraj/orderly/app/policies"
	"github.com/shashiranjanraj/orderly/app/repositories"
	"github.com/shashiranjanraj/orderly/pkg/logger"
	"github.com/shashiranjanraj/orderly/pkg/metrics"
)

// ConfirmationSubject is the subject of the email sent on confirm.
const ConfirmationSubject = "Seu pedido foi confirmado"

// Notifier delivers a message to a user out of band. Implementations must
// not block the caller and must swallow their own failures.
type Notifier interface {
	Notify(ctx context.Context, to, subject, body string)
}

// ItemSpec is the caller-supplied part of a new order item.
type ItemSpec struct {
	Quantity  int
	Flavor    string
	Size      models.ItemSize
	UnitPrice decimal.Decimal
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Store    *repositories.Store
	Pricing  *PricingService
	Notifier Notifier
	Clock    func() time.Time
}

// OrderService runs the order lifecycle. It keeps no state between calls;
// every operation is one transaction with the order row locked.
type OrderService struct {
	store    *repositories.Store
	pricing  *PricingService
	notifier Notifier
	now      func() time.Time
}

func NewOrderService(deps OrderServiceDeps) (*OrderService, error) {
	if deps.Store == nil {
		return nil, errors.New("order service: store is required")
	}
	if deps.Pricing == nil {
		deps.Pricing = NewPricingService()
	}
	if deps.Notifier == nil {
		deps.Notifier = noopNotifier{}
	}
	if deps.Clock == nil {
		deps.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &OrderService{
		store:    deps.Store,
		pricing:  deps.Pricing,
		notifier: deps.Notifier,
		now:      deps.Clock,
	}, nil
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, string, string, string) {}

// CreateOrder opens a pending, empty order for the caller.
func (s *OrderService) CreateOrder(ctx context.Context, callerID uint) (*models.Order, error) {
	var order *models.Order
	err := s.store.RunInTx(ctx, func(tx *repositories.Store) error {
		caller, err := loadCaller(ctx, tx, callerID)
		if err != nil {
			return err
		}

		order = models.NewOrder(caller.ID, s.now())
		if err := tx.Orders().Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	transitioned(ctx, order.ID, order.Status)
	return order, nil
}

// GetOrder returns the order with its items to its owner or an admin.
func (s *OrderService) GetOrder(ctx context.Context, orderID, callerID uint) (*models.Order, error) {
	var order *models.Order
	err := s.store.RunInTx(ctx, func(tx *repositories.Store) error {
		var err error
		if order, err = loadOrder(ctx, tx, orderID, false); err != nil {
			return err
		}
		caller, err := loadCaller(ctx, tx, callerID)
		if err != nil {
			return err
		}
		if err := policies.Manage(order, caller); err != nil {
			return fmt.Errorf("%w: order %d belongs to another user", err, orderID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// CancelOrder cancels any non-terminal order. A caller who is neither owner
// nor admin gets ErrConflict, not ErrForbidden.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, callerID uint) (*models.Order, error) {
	var order *models.Order
	err := s.store.RunInTx(ctx, func(tx *repositories.Store) error {
		var err error
		if order, err = loadOrder(ctx, tx, orderID, true); err != nil {
			return err
		}
		caller, err := loadCaller(ctx, tx, callerID)
		if err != nil {
			return err
		}
		if !policies.IsOwnerOrAdmin(order, caller) {
			return fmt.Errorf("%w: user %d cannot cancel order %d", ErrConflict, callerID, orderID)
		}
		if order.IsTerminal() {
			return fmt.Errorf("%w: order %d is already %s", ErrConflict, orderID, order.Status)
		}
		return transition(ctx, tx, order, models.StatusCanceled)
	})
	if err != nil {
		return nil, err
	}

	transitioned(ctx, order.ID, order.Status)
	return order, nil
}

// AddItem appends an item to a pending order owned by the caller and
// refreshes the order price in the same transaction.
func (s *OrderService) AddItem(ctx context.Context, orderID, callerID uint, spec ItemSpec) (uint, error) {
	item := &models.OrderItem{
		Quantity:  spec.Quantity,
		Flavor:    spec.Flavor,
		Size:      spec.Size,
		UnitPrice: spec.UnitPrice,
	}
	if err := item.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	err := s.store.RunInTx(ctx, func(tx *repositories.Store) error {
		order, err := loadOrder(ctx, tx, orderID, true)
		if err != nil {
			return err
		}
		caller, err := loadCaller(ctx, tx, callerID)
		if err != nil {
			return err
		}
		if err := policies.Modify(order, caller); err != nil {
			return fmt.Errorf("%w: only the owner may add items to order %d", err, orderID)
		}
		if !order.ItemsMutable() {
			return fmt.Errorf("%w: order %d is %s, items can only change while pending", ErrConflict, orderID, order.Status)
		}

		item.OrderID = order.ID
		if err := tx.Items().Create(ctx, item); err != nil {
			return fmt.Errorf("add item: %w", err)
		}
		_, err = s.pricing.Recompute(ctx, tx, order.ID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return item.ID, nil
}

// DeleteItem removes an item from a pending order and refreshes the price.
func (s *OrderService) DeleteItem(ctx context.Context, orderID, itemID, callerID uint) error {
	return s.store.RunInTx(ctx, func(tx *repositories.Store) error {
		order, err := loadOrder(ctx, tx, orderID, true)
		if err != nil {
			return err
		}
		caller, err := loadCaller(ctx, tx, callerID)
		if err != nil {
			return err
		}
		item, err := tx.Items().Find(ctx, itemID)
		if err != nil {
			return notFound(err, "item %d", itemID)
		}
		if err := policies.Manage(order, caller); err != nil {
			return fmt.Errorf("%w: order %d belongs to another user", err, orderID)
		}
		if item.OrderID != order.ID {
			return fmt.Errorf("%w: item %d does not belong to order %d", ErrBadRequest, itemID, orderID)
		}
		if !order.ItemsMutable() {
			return fmt.Errorf("%w: order %d is %s, items can only change while pending", ErrConflict, orderID, order.Status)
		}

		if err := tx.Items().Delete(ctx, item.ID); err != nil {
			return notFound(err, "item %d", itemID)
		}
		_, err = s.pricing.Recompute(ctx, tx, order.ID)
		return err
	})
}

// ConfirmOrder moves a pending or preparing order to awaiting_confirmation
// once, then emails the caller. Notification failures never surface.
func (s *OrderService) ConfirmOrder(ctx context.Context, orderID, callerID uint) (*models.Order, error) {
	var (
		order  *models.Order
		caller *models.User
	)
	err := s.store.RunInTx(ctx, func(tx *repositories.Store) error {
		var err error
		if order, err = loadOrder(ctx, tx, orderID, true); err != nil {
			return err
		}
		if caller, err = loadCaller(ctx, tx, callerID); err != nil {
			return err
		}
		if err := policies.Manage(order, caller); err != nil {
			return fmt.Errorf("%w: order %d belongs to another user", err, orderID)
		}

		if err := order.Confirm(s.now()); err != nil {
			return fmt.Errorf("%w: order %d: %v", ErrConflict, orderID, err)
		}
		if err := tx.Orders().Save(ctx, order); err != nil {
			return fmt.Errorf("confirm order: %w", err)
		}
		return withItems(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	transitioned(ctx, order.ID, order.Status)
	s.notifier.Notify(ctx, caller.Email, ConfirmationSubject, confirmationBody(order))
	return order, nil
}

// SendOrder hands a pending order to the kitchen (pending -> preparing).
func (s *OrderService) SendOrder(ctx context.Context, orderID, callerID uint) (*models.Order, error) {
	return s.move(ctx, orderID, callerID, models.StatusPreparing, func(o *models.Order, u *models.User) error {
		return policies.Manage(o, u)
	})
}

// ConfirmOrderReadiness is the store acknowledging a confirmed order
// (awaiting_confirmation -> completed). Admins only.
func (s *OrderService) ConfirmOrderReadiness(ctx context.Context, orderID, callerID uint) (*models.Order, error) {
	return s.move(ctx, orderID, callerID, models.StatusCompleted, func(_ *models.Order, u *models.User) error {
		return policies.Admin(u)
	})
}

func (s *OrderService) move(ctx context.Context, orderID, callerID uint, to models.OrderStatus, allow func(*models.Order, *models.User) error) (*models.Order, error) {
	var order *models.Order
	err := s.store.RunInTx(ctx, func(tx *repositories.Store) error {
		var err error
		if order, err = loadOrder(ctx, tx, orderID, true); err != nil {
			return err
		}
		caller, err := loadCaller(ctx, tx, callerID)
		if err != nil {
			return err
		}
		if err := allow(order, caller); err != nil {
			return fmt.Errorf("%w: user %d cannot move order %d to %s", err, callerID, orderID, to)
		}
		return transition(ctx, tx, order, to)
	})
	if err != nil {
		return nil, err
	}

	transitioned(ctx, order.ID, order.Status)
	return order, nil
}

func transition(ctx context.Context, tx *repositories.Store, order *models.Order, to models.OrderStatus) error {
	if err := order.Transition(to); err != nil {
		return fmt.Errorf("%w: order %d: %v", ErrConflict, order.ID, err)
	}
	if err := tx.Orders().Save(ctx, order); err != nil {
		return fmt.Errorf("save order %d: %w", order.ID, err)
	}
	return withItems(ctx, tx, order)
}

// withItems fills order.Items for orders loaded under lock.
func withItems(ctx context.Context, tx *repositories.Store, order *models.Order) error {
	items, err := tx.Items().ListByOrder(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("load items of order %d: %w", order.ID, err)
	}
	order.Items = items
	return nil
}

// transitioned runs after commit.
func transitioned(ctx context.Context, orderID uint, status models.OrderStatus) {
	metrics.OrderTransitions.WithLabelValues(string(status)).Inc()
	logger.WithCtx(ctx).Info("order: status changed", "order_id", orderID, "status", status)
}

func confirmationBody(order *models.Order) string {
	return fmt.Sprintf("Pedido #%d confirmado. Total: R$ %s", order.ID, order.Price.StringFixed(2))
}

// loadOrder fetches the order, locking its row when lock is set.
func loadOrder(ctx context.Context, tx *repositories.Store, orderID uint, lock bool) (*models.Order, error) {
	var (
		order *models.Order
		err   error
	)
	if lock {
		order, err = tx.Orders().FindForUpdate(ctx, orderID)
	} else {
		order, err = tx.Orders().Find(ctx, orderID)
	}
	if err != nil {
		return nil, notFound(err, "order %d", orderID)
	}
	return order, nil
}

// loadCaller resolves the authenticated user. Deactivated accounts are
// treated as missing.
func loadCaller(ctx context.Context, tx *repositories.Store, callerID uint) (*models.User, error) {
	user, err := tx.Users().Find(ctx, callerID)
	if err != nil {
		return nil, notFound(err, "user %d", callerID)
	}
	if !user.Active {
		return nil, fmt.Errorf("%w: user %d is inactive", ErrNotFound, callerID)
	}
	return user, nil
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
	}
	return err
}
