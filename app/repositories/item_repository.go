package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/orderly/app/models"
)

// ItemRepository handles database operations for OrderItem.
type ItemRepository struct {
	db *gorm.DB
}

func (r *ItemRepository) Find(ctx context.Context, id uint) (*models.OrderItem, error) {
	var item models.OrderItem
	if err := r.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

func (r *ItemRepository) Create(ctx context.Context, item *models.OrderItem) error {
	return translate(r.db.WithContext(ctx).Create(item).Error)
}

func (r *ItemRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.OrderItem{}, id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByOrder returns an order's items in insertion order.
func (r *ItemRepository) ListByOrder(ctx context.Context, orderID uint) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id").Find(&items).Error
	return items, translate(err)
}
