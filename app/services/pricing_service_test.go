package services_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/shashiranjanraj/orderly/app/models"
	"github.com/shashiranjanraj/orderly/app/services"
)

func TestPricingTotal(t *testing.T) {
	p := services.NewPricingService()

	assert.True(t, p.Total(nil).IsZero())

	items := []models.OrderItem{
		{Quantity: 3, UnitPrice: decimal.RequireFromString("0.10")},
		{Quantity: 1, UnitPrice: decimal.RequireFromString("0.20")},
		{Quantity: 7, UnitPrice: decimal.RequireFromString("19.99")},
	}
	// 0.30 + 0.20 + 139.93, exact; a float64 sum drifts here.
	assert.Equal(t, "140.43", p.Total(items).StringFixed(2))
}
