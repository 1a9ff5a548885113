package routes

import (
	"github.com/shashiranjanraj/orderly/app/controllers"
	"github.com/shashiranjanraj/orderly/pkg/router"
)

// Controllers are the handlers mounted by RegisterAPI.
type Controllers struct {
	Auth   *controllers.AuthController
	Orders *controllers.OrderController
}

// RegisterAPI mounts the account and order endpoints. authn guards every
// route except signup and signin.
func RegisterAPI(r *router.Router, c Controllers, authn router.Middleware) {
	auth := r.Group("/auth")
	auth.Post("/signup", "auth.signup", c.Auth.Signup)
	auth.Post("/signin", "auth.signin", c.Auth.Signin)
	auth.Post("/refresh", "auth.refresh", c.Auth.Refresh, authn)

	orders := r.Group("/orders", authn)
	orders.Post("/", "orders.create", c.Orders.Create)
	orders.Get("/", "orders.index", c.Orders.Index)
	orders.Get("/mine", "orders.mine", c.Orders.Mine)
	orders.Get("/{order_id}", "orders.show", c.Orders.Show)
	orders.Post("/{order_id}/cancel", "orders.cancel", c.Orders.Cancel)
	orders.Post("/{order_id}/confirm", "orders.confirm", c.Orders.Confirm)
	orders.Post("/{order_id}/send", "orders.send", c.Orders.Send)
	orders.Post("/{order_id}/ready", "orders.ready", c.Orders.Ready)
	orders.Post("/{order_id}/items", "orders.items.add", c.Orders.AddItem)
	orders.Delete("/{order_id}/items/{item_id}", "orders.items.delete", c.Orders.DeleteItem)
}
