package services_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/orderly/app/models"
	"github.com/shashiranjanraj/orderly/app/repositories"
	"github.com/shashiranjanraj/orderly/app/services"
	"github.com/shashiranjanraj/orderly/pkg/testkit"
)

type fixture struct {
	store    *repositories.Store
	orders   *services.OrderService
	queries  *services.OrderQueryService
	notifier *testkit.Notifier
	clock    *testkit.Clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := repositories.NewStore(testkit.NewDB(t))
	notifier := &testkit.Notifier{}
	clock := testkit.NewClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))

	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Store:    store,
		Pricing:  services.NewPricingService(),
		Notifier: notifier,
		Clock:    clock.Now,
	})
	require.NoError(t, err)

	return &fixture{
		store:    store,
		orders:   orders,
		queries:  services.NewOrderQueryService(store),
		notifier: notifier,
		clock:    clock,
	}
}

var userSeq int

func (f *fixture) user(t *testing.T, admin bool) *models.User {
	t.Helper()
	userSeq++
	u := &models.User{
		Name:      fmt.Sprintf("user %d", userSeq),
		Email:     fmt.Sprintf("user%d@example.com", userSeq),
		Password:  []byte("x"),
		Active:    true,
		Admin:     admin,
		CreatedAt: f.clock.Now(),
	}
	require.NoError(t, f.store.Users().Create(context.Background(), u))
	return u
}

func (f *fixture) order(t *testing.T, owner *models.User) *models.Order {
	t.Helper()
	o, err := f.orders.CreateOrder(context.Background(), owner.ID)
	require.NoError(t, err)
	return o
}

// reload reads the committed order with items.
func (f *fixture) reload(t *testing.T, id uint) *models.Order {
	t.Helper()
	o, err := f.store.Orders().Find(context.Background(), id)
	require.NoError(t, err)
	return o
}

// force writes status directly, bypassing the lifecycle.
func (f *fixture) force(t *testing.T, id uint, status models.OrderStatus) {
	t.Helper()
	require.NoError(t, f.store.DB().Model(&models.Order{}).Where("id = ?", id).Update("status", status).Error)
}
