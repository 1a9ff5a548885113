package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/shashiranjanraj/orderly/app/models"
	"github.com/shashiranjanraj/orderly/app/repositories"
)

// PricingService derives an order's price from its items.
type PricingService struct{}

func NewPricingService() *PricingService {
	return &PricingService{}
}

// Total is the exact sum of unit_price*quantity rounded to cents.
func (p *PricingService) Total(items []models.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total.Round(2)
}

// Recompute reloads the order's items through tx and stores the new price.
// It must run in the same transaction as the item change. A total that does
// not fit the price column fails with ErrBadRequest and rolls the change back.
func (p *PricingService) Recompute(ctx context.Context, tx *repositories.Store, orderID uint) (decimal.Decimal, error) {
	items, err := tx.Items().ListByOrder(ctx, orderID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("pricing: load items of order %d: %w", orderID, err)
	}

	total := p.Total(items)
	if total.GreaterThanOrEqual(models.MaxPrice) {
		return decimal.Zero, fmt.Errorf("%w: order %d total %s exceeds the largest storable price", ErrBadRequest, orderID, total.StringFixed(2))
	}
	if err := tx.Orders().UpdatePrice(ctx, orderID, total); err != nil {
		return decimal.Zero, fmt.Errorf("pricing: store price of order %d: %w", orderID, err)
	}
	return total, nil
}
