package controllers

import (
	"time"

	"github.com/shashiranjanraj/orderly/app/models"
)

// OrderResource is the public shape of an order. Money is rendered as a
// fixed two-decimal string.
type OrderResource struct {
	ID          uint           `json:"id"`
	Status      string         `json:"status"`
	UserID      uint           `json:"user_id"`
	Price       string         `json:"price"`
	CreatedAt   time.Time      `json:"created_at"`
	ConfirmedOn *time.Time     `json:"confirmed_on"`
	Items       []ItemResource `json:"items"`
}

type ItemResource struct {
	ID        uint   `json:"id"`
	Quantity  int    `json:"quantity"`
	Flavor    string `json:"flavor"`
	Size      string `json:"size"`
	UnitPrice string `json:"unit_price"`
}

func newOrderResource(o *models.Order) OrderResource {
	items := make([]ItemResource, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemResource{
			ID:        it.ID,
			Quantity:  it.Quantity,
			Flavor:    it.Flavor,
			Size:      string(it.Size),
			UnitPrice: it.UnitPrice.StringFixed(2),
		})
	}
	return OrderResource{
		ID:          o.ID,
		Status:      string(o.Status),
		UserID:      o.UserID,
		Price:       o.Price.StringFixed(2),
		CreatedAt:   o.CreatedAt.UTC(),
		ConfirmedOn: o.ConfirmedOn,
		Items:       items,
	}
}

func newOrderCollection(orders []models.Order) []OrderResource {
	out := make([]OrderResource, 0, len(orders))
	for i := range orders {
		out = append(out, newOrderResource(&orders[i]))
	}
	return out
}
