package controllers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shashiranjanraj/orderly/app/models"
	"github.com/shashiranjanraj/orderly/app/services"
	"github.com/shashiranjanraj/orderly/pkg/bind"
	"github.com/shashiranjanraj/orderly/pkg/response"
)

type OrderController struct {
	orders  *services.OrderService
	queries *services.OrderQueryService
	binder  *bind.Binder
}

func NewOrderController(orders *services.OrderService, queries *services.OrderQueryService, binder *bind.Binder) *OrderController {
	return &OrderController{orders: orders, queries: queries, binder: binder}
}

type addItemRequest struct {
	Quantity  int              `json:"quantity" validate:"gt=0"`
	Flavor    string           `json:"flavor" validate:"required,max=200"`
	Size      string           `json:"size" validate:"required,oneof=small average big"`
	UnitPrice *decimal.Decimal `json:"unit_price" validate:"required"`
}

// Create handles POST /orders.
func (c *OrderController) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}

	order, err := c.orders.CreateOrder(r.Context(), userID)
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Created(w, newOrderResource(order))
}

// Index handles GET /orders, the administrator listing.
func (c *OrderController) Index(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	dates, ok := dateRange(w, r)
	if !ok {
		return
	}

	orders, err := c.queries.ListOrders(r.Context(), userID, dates)
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Success(w, newOrderCollection(orders))
}

// Mine handles GET /orders/mine.
func (c *OrderController) Mine(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	dates, ok := dateRange(w, r)
	if !ok {
		return
	}

	orders, err := c.queries.ListMyOrders(r.Context(), userID, dates)
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Success(w, newOrderCollection(orders))
}

// Show handles GET /orders/{order_id}.
func (c *OrderController) Show(w http.ResponseWriter, r *http.Request) {
	c.respond(w, r, c.orders.GetOrder)
}

func (c *OrderController) Cancel(w http.ResponseWriter, r *http.Request) {
	c.respond(w, r, c.orders.CancelOrder)
}

func (c *OrderController) Confirm(w http.ResponseWriter, r *http.Request) {
	c.respond(w, r, c.orders.ConfirmOrder)
}

func (c *OrderController) Send(w http.ResponseWriter, r *http.Request) {
	c.respond(w, r, c.orders.SendOrder)
}

func (c *OrderController) Ready(w http.ResponseWriter, r *http.Request) {
	c.respond(w, r, c.orders.ConfirmOrderReadiness)
}

// AddItem handles POST /orders/{order_id}/items.
func (c *OrderController) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "order_id")
	if !ok {
		return
	}
	var req addItemRequest
	if !decode(c.binder, w, r, &req) {
		return
	}

	itemID, err := c.orders.AddItem(r.Context(), orderID, userID, services.ItemSpec{
		Quantity:  req.Quantity,
		Flavor:    req.Flavor,
		Size:      models.ItemSize(req.Size),
		UnitPrice: *req.UnitPrice,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Created(w, map[string]uint{"order_item": itemID})
}

// DeleteItem handles DELETE /orders/{order_id}/items/{item_id}.
func (c *OrderController) DeleteItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "order_id")
	if !ok {
		return
	}
	itemID, ok := pathID(w, r, "item_id")
	if !ok {
		return
	}

	if err := c.orders.DeleteItem(r.Context(), orderID, itemID, userID); err != nil {
		fail(w, r, err)
		return
	}
	response.Message(w, fmt.Sprintf("Order item %d deleted", itemID))
}

// orderAction is the shape shared by the single-order service operations.
type orderAction func(ctx context.Context, orderID, callerID uint) (*models.Order, error)

func (c *OrderController) respond(w http.ResponseWriter, r *http.Request, action orderAction) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "order_id")
	if !ok {
		return
	}

	order, err := action(r.Context(), orderID, userID)
	if err != nil {
		fail(w, r, err)
		return
	}
	response.Success(w, newOrderResource(order))
}

// dateRange parses the optional start_date and end_date query parameters.
func dateRange(w http.ResponseWriter, r *http.Request) (services.DateRange, bool) {
	var out services.DateRange
	for _, p := range []struct {
		name string
		dest **time.Time
	}{
		{"start_date", &out.Start},
		{"end_date", &out.End},
	} {
		raw := r.URL.Query().Get(p.name)
		if raw == "" {
			continue
		}
		d, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			response.BadRequest(w, p.name+" must be a date in YYYY-MM-DD format")
			return services.DateRange{}, false
		}
		*p.dest = &d
	}
	return out, true
}
