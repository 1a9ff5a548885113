// Package policies holds the authorization rules for orders. Every check is
// a pure function of the order and the caller.
package policies

import (
	"errors"

	"github.com/shashiranjanraj/orderly/app/models"
)

// ErrForbidden is returned when the caller may not act on the order.
var ErrForbidden = errors.New("forbidden")

// IsOwnerOrAdmin reports whether user owns order or is an administrator.
func IsOwnerOrAdmin(order *models.Order, user *models.User) bool {
	return order.UserID == user.ID || user.Admin
}

// IsOwner is the strict ownership check; admins do not pass it.
func IsOwner(order *models.Order, user *models.User) bool {
	return order.UserID == user.ID
}

// Manage guards operations open to the owner and to administrators.
func Manage(order *models.Order, user *models.User) error {
	if !IsOwnerOrAdmin(order, user) {
		return ErrForbidden
	}
	return nil
}

// Modify guards operations reserved to the owner.
func Modify(order *models.Order, user *models.User) error {
	if !IsOwner(order, user) {
		return ErrForbidden
	}
	return nil
}

// Admin guards store-side operations.
func Admin(user *models.User) error {
	if !user.Admin {
		return ErrForbidden
	}
	return nil
}
