package repositories

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shashiranjanraj/orderly/app/models"
)

// OrderRepository handles database operations for Order.
type OrderRepository struct {
	db *gorm.DB
}

// Find loads an order with its items.
func (r *OrderRepository) Find(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&order, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

// FindForUpdate loads an order without items and locks its row for the
// rest of the transaction.
func (r *OrderRepository) FindForUpdate(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := forUpdate(r.db.WithContext(ctx)).First(&order, id).Error; err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(order).Error)
}

// Save writes the order's own columns; items are left untouched.
func (r *OrderRepository) Save(ctx context.Context, order *models.Order) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(order).Error)
}

// UpdatePrice sets only the price column.
func (r *OrderRepository) UpdatePrice(ctx context.Context, id uint, price decimal.Decimal) error {
	err := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Update("price", price).Error
	return translate(err)
}

// Filter narrows List. Nil fields are unbounded. From is inclusive and
// Until is exclusive.
type Filter struct {
	UserID *uint
	From   *time.Time
	Until  *time.Time
}

// List returns matching orders with items, oldest first.
func (r *OrderRepository) List(ctx context.Context, f Filter) ([]models.Order, error) {
	q := r.db.WithContext(ctx).Model(&models.Order{})
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", f.From.UTC())
	}
	if f.Until != nil {
		q = q.Where("created_at < ?", f.Until.UTC())
	}

	orders := []models.Order{}
	err := q.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Order("created_at").Order("id").
		Find(&orders).Error
	return orders, translate(err)
}
