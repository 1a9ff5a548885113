package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending              OrderStatus = "pending"
	StatusPreparing            OrderStatus = "preparing"
	StatusAwaitingConfirmation OrderStatus = "awaiting_confirmation"
	StatusCompleted            OrderStatus = "completed"
	StatusCanceled             OrderStatus = "canceled"
)

// transitions is the full lifecycle graph. Terminal states have no entry.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:              {StatusPreparing, StatusAwaitingConfirmation, StatusCanceled},
	StatusPreparing:            {StatusAwaitingConfirmation, StatusCanceled},
	StatusAwaitingConfirmation: {StatusCompleted, StatusCanceled},
}

var (
	ErrInvalidStatus     = errors.New("models: invalid order status")
	ErrInvalidSize       = errors.New("models: invalid item size")
	ErrInvalidTransition = errors.New("models: invalid status transition")
	ErrAlreadyConfirmed  = errors.New("models: order already confirmed")
	ErrInvalidItem       = errors.New("models: invalid item")
)

// ParseOrderStatus accepts only the five known tokens.
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusAwaitingConfirmation, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// CanTransitionTo reports whether to is reachable from s in one step.
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s *OrderStatus) Scan(src any) error {
	raw, err := scanToken(src)
	if err != nil {
		return err
	}
	st, err := ParseOrderStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

func (s OrderStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, string(s))
	}
	return string(s), nil
}

// ItemSize is the portion size of an order item.
type ItemSize string

const (
	SizeSmall   ItemSize = "small"
	SizeAverage ItemSize = "average"
	SizeBig     ItemSize = "big"
)

func ParseItemSize(s string) (ItemSize, error) {
	sz := ItemSize(s)
	if !sz.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}
	return sz, nil
}

func (s ItemSize) Valid() bool {
	return s == SizeSmall || s == SizeAverage || s == SizeBig
}

func (s *ItemSize) Scan(src any) error {
	raw, err := scanToken(src)
	if err != nil {
		return err
	}
	sz, err := ParseItemSize(raw)
	if err != nil {
		return err
	}
	*s = sz
	return nil
}

func (s ItemSize) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSize, string(s))
	}
	return string(s), nil
}

func scanToken(src any) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("models: cannot scan %T into an enum", src)
	}
}

// Order is the order aggregate. Price always equals the rounded sum of
// its items' unit_price*quantity after a committed item change.
type Order struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Status      OrderStatus     `gorm:"size:32;not null;index" json:"status"`
	UserID      uint            `gorm:"not null;index" json:"user_id"`
	User        *User           `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	CreatedAt   time.Time       `gorm:"not null;index" json:"created_at"`
	ConfirmedOn *time.Time      `json:"confirmed_on,omitempty"`
	Items       []OrderItem     `json:"items,omitempty"`
}

// NewOrder returns a pending, empty order for userID.
func NewOrder(userID uint, now time.Time) *Order {
	return &Order{
		Status:    StatusPending,
		UserID:    userID,
		Price:     decimal.Zero,
		CreatedAt: now.UTC(),
	}
}

func (o *Order) IsTerminal() bool { return o.Status.IsTerminal() }

// ItemsMutable reports whether items may be added or removed.
func (o *Order) ItemsMutable() bool { return o.Status == StatusPending }

// Transition moves the order to to, or fails with ErrInvalidTransition.
func (o *Order) Transition(to OrderStatus) error {
	if !o.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	o.Status = to
	return nil
}

// Confirm marks the order awaiting the store's confirmation. It succeeds at
// most once per order.
func (o *Order) Confirm(now time.Time) error {
	if o.ConfirmedOn != nil {
		return ErrAlreadyConfirmed
	}
	if o.Status != StatusPending && o.Status != StatusPreparing {
		return fmt.Errorf("%w: cannot confirm from %s", ErrInvalidTransition, o.Status)
	}
	if err := o.Transition(StatusAwaitingConfirmation); err != nil {
		return err
	}
	at := now.UTC()
	o.ConfirmedOn = &at
	return nil
}

// MaxPrice is the exclusive upper bound of a decimal(10,2) column. Item
// unit prices and order totals stay below it.
var MaxPrice = decimal.New(1, 8)

// OrderItem is one line of an order.
type OrderItem struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   uint            `gorm:"not null;index" json:"order_id"`
	Order     *Order          `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	Flavor    string          `gorm:"size:200;not null" json:"flavor"`
	Size      ItemSize        `gorm:"size:16;not null" json:"size"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
}

// Subtotal is unit_price*quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Validate checks the caller-supplied fields of an item.
func (i OrderItem) Validate() error {
	switch {
	case i.Quantity <= 0:
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidItem)
	case strings.TrimSpace(i.Flavor) == "":
		return fmt.Errorf("%w: flavor is required", ErrInvalidItem)
	case utf8.RuneCountInString(i.Flavor) > 200:
		return fmt.Errorf("%w: flavor is longer than 200 characters", ErrInvalidItem)
	case !i.Size.Valid():
		return fmt.Errorf("%w: size %q", ErrInvalidItem, string(i.Size))
	case i.UnitPrice.IsNegative():
		return fmt.Errorf("%w: unit_price must not be negative", ErrInvalidItem)
	case !i.UnitPrice.Equal(i.UnitPrice.Round(2)):
		return fmt.Errorf("%w: unit_price has more than 2 decimal places", ErrInvalidItem)
	case i.UnitPrice.GreaterThanOrEqual(MaxPrice):
		return fmt.Errorf("%w: unit_price is too large", ErrInvalidItem)
	}
	return nil
}
