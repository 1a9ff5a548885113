package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/orderly/app/models"
	"github.com/shashiranjanraj/orderly/app/services"
)

func spec(qty int, price string) services.ItemSpec {
	return services.ItemSpec{
		Quantity:  qty,
		Flavor:    "margherita",
		Size:      models.SizeAverage,
		UnitPrice: decimal.RequireFromString(price),
	}
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, false)

	o, err := f.orders.CreateOrder(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, o.Status)
	assert.Equal(t, owner.ID, o.UserID)
	assert.Equal(t, f.clock.Now(), o.CreatedAt)

	stored := f.reload(t, o.ID)
	assert.Equal(t, "0.00", stored.Price.StringFixed(2))
	assert.Empty(t, stored.Items)
	assert.Nil(t, stored.ConfirmedOn)

	_, err = f.orders.CreateOrder(ctx, 9999)
	assert.ErrorIs(t, err, services.ErrNotFound)

	inactive := f.user(t, false)
	inactive.Active = false
	require.NoError(t, f.store.Users().Update(ctx, inactive))
	_, err = f.orders.CreateOrder(ctx, inactive.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestAddAndDeleteItemsKeepPriceInSync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, false)
	o := f.order(t, owner)

	first, err := f.orders.AddItem(ctx, o.ID, owner.ID, spec(2, "10.50"))
	require.NoError(t, err)
	assert.NotZero(t, first)
	assert.Equal(t, "21.00", f.reload(t, o.ID).Price.StringFixed(2))

	second, err := f.orders.AddItem(ctx, o.ID, owner.ID, spec(3, "0.10"))
	require.NoError(t, err)
	assert.Equal(t, "21.30", f.reload(t, o.ID).Price.StringFixed(2))

	require.NoError(t, f.orders.DeleteItem(ctx, o.ID, first, owner.ID))
	stored := f.reload(t, o.ID)
	assert.Equal(t, "0.30", stored.Price.StringFixed(2))
	require.Len(t, stored.Items, 1)
	assert.Equal(t, second, stored.Items[0].ID)

	require.NoError(t, f.orders.DeleteItem(ctx, o.ID, second, owner.ID))
	assert.Equal(t, "0.00", f.reload(t, o.ID).Price.StringFixed(2))
}

func TestAddItemChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, false)
	admin := f.user(t, true)
	stranger := f.user(t, false)
	o := f.order(t, owner)

	t.Run("malformed spec wins over everything", func(t *testing.T) {
		_, err := f.orders.AddItem(ctx, 9999, 9999, spec(0, "1.00"))
		assert.ErrorIs(t, err, services.ErrBadRequest)

		bad := spec(1, "1.00")
		bad.Size = "family"
		_, err = f.orders.AddItem(ctx, o.ID, owner.ID, bad)
		assert.ErrorIs(t, err, services.ErrBadRequest)
	})

	t.Run("missing order or caller", func(t *testing.T) {
		_, err := f.orders.AddItem(ctx, 9999, owner.ID, spec(1, "1.00"))
		assert.ErrorIs(t, err, services.ErrNotFound)
		_, err = f.orders.AddItem(ctx, o.ID, 9999, spec(1, "1.00"))
		assert.ErrorIs(t, err, services.ErrNotFound)
	})

	t.Run("only the strict owner", func(t *testing.T) {
		_, err := f.orders.AddItem(ctx, o.ID, admin.ID, spec(1, "1.00"))
		assert.ErrorIs(t, err, services.ErrForbidden)
		_, err = f.orders.AddItem(ctx, o.ID, stranger.ID, spec(1, "1.00"))
		assert.ErrorIs(t, err, services.ErrForbidden)
	})

	t.Run("only while pending", func(t *testing.T) {
		_, err := f.orders.SendOrder(ctx, o.ID, owner.ID)
		require.NoError(t, err)

		_, err = f.orders.AddItem(ctx, o.ID, owner.ID, spec(1, "1.00"))
		assert.ErrorIs(t, err, services.ErrConflict)
		assert.Equal(t, "0.00", f.reload(t, o.ID).Price.StringFixed(2))
	})
}

func TestDeleteItemChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, false)
	admin := f.user(t, true)
	stranger := f.user(t, false)

	o := f.order(t, owner)
	other := f.order(t, owner)
	item, err := f.orders.AddItem(ctx, o.ID, owner.ID, spec(1, "5.00"))
	require.NoError(t, err)

	assert.ErrorIs(t, f.orders.DeleteItem(ctx, 9999, item, owner.ID), services.ErrNotFound)
	assert.ErrorIs(t, f.orders.DeleteItem(ctx, o.ID, item, 9999), services.ErrNotFound)
	assert.ErrorIs(t, f.orders.DeleteItem(ctx, o.ID, 9999, owner.ID), services.ErrNotFound)
	assert.ErrorIs(t, f.orders.DeleteItem(ctx, o.ID, item, stranger.ID), services.ErrForbidden)
	assert.ErrorIs(t, f.orders.DeleteItem(ctx, other.ID, item, owner.ID), services.ErrBadRequest)

	f.force(t, o.ID, models.StatusPreparing)
	assert.ErrorIs(t, f.orders.DeleteItem(ctx, o.ID, item, owner.ID), services.ErrConflict)
	f.force(t, o.ID, models.StatusPending)

	// Admins may remove items even though they cannot add them.
	require.NoError(t, f.orders.DeleteItem(ctx, o.ID, item, admin.ID))
	assert.Equal(t, "0.00", f.reload(t, o.ID).Price.StringFixed(2))
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, false)
	admin := f.user(t, true)
	stranger := f.user(t, false)

	o := f.order(t, owner)

	_, err := f.orders.CancelOrder(ctx, 9999, owner.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)

	_, err = f.orders.CancelOrder(ctx, o.ID, stranger.ID)
	assert.ErrorIs(t, err, services.ErrConflict)
	assert.NotErrorIs(t, err, services.ErrForbidden)

	canceled, err := f.orders.CancelOrder(ctx, o.ID, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, canceled.Status)

	_, err = f.orders.CancelOrder(ctx, o.ID, owner.ID)
	assert.ErrorIs(t, err, services.ErrConflict)
}

func TestConfirmOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, false)
	stranger := f.user(t, false)

	o := f.order(t, owner)
	_, err := f.orders.AddItem(ctx, o.ID, owner.ID, spec(2, "12.25"))
	require.NoError(t, err)

	_, err = f.orders.ConfirmOrder(ctx, o.ID, stranger.ID)
	assert.ErrorIs(t, err, services.ErrForbidden)
	assert.Empty(t, f.notifier.Sent())

	confirmed, err := f.orders.ConfirmOrder(ctx, o.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingConfirmation, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedOn)
	assert.Equal(t, f.clock.Now(), *confirmed.ConfirmedOn)

	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, owner.Email, sent[0].To)
	assert.Equal(t, services.ConfirmationSubject, sent[0].Subject)
	assert.Contains(t, sent[0].Body, "24.50")

	_, err = f.orders.ConfirmOrder(ctx, o.ID, owner.ID)
	assert.ErrorIs(t, err, services.ErrConflict)
	assert.Len(t, f.notifier.Sent(), 1, "a second confirm must not notify")
}

func TestConfirmFromPreparingAndEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, false)

	o := f.order(t, owner)
	_, err := f.orders.SendOrder(ctx, o.ID, owner.ID)
	require.NoError(t, err)

	confirmed, err := f.orders.ConfirmOrder(ctx, o.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingConfirmation, confirmed.Status)
	assert.Equal(t, "0.00", confirmed.Price.StringFixed(2))
}

func TestSendAndReadiness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, false)
	admin := f.user(t, true)

	o := f.order(t, owner)

	_, err := f.orders.ConfirmOrderReadiness(ctx, o.ID, admin.ID)
	assert.ErrorIs(t, err, services.ErrConflict, "pending cannot complete")

	sent, err := f.orders.SendOrder(ctx, o.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPreparing, sent.Status)

	_, err = f.orders.SendOrder(ctx, o.ID, owner.ID)
	assert.ErrorIs(t, err, services.ErrConflict)

	_, err = f.orders.ConfirmOrder(ctx, o.ID, owner.ID)
	require.NoError(t, err)

	_, err = f.orders.ConfirmOrderReadiness(ctx, o.ID, owner.ID)
	assert.ErrorIs(t, err, services.ErrForbidden)

	done, err := f.orders.ConfirmOrderReadiness(ctx, o.ID, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)
}

func TestTerminalOrdersRejectEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, false)
	admin := f.user(t, true)

	for _, terminal := range []models.OrderStatus{models.StatusCompleted, models.StatusCanceled} {
		t.Run(string(terminal), func(t *testing.T) {
			o := f.order(t, owner)
			item, err := f.orders.AddItem(ctx, o.ID, owner.ID, spec(1, "3.00"))
			require.NoError(t, err)
			f.force(t, o.ID, terminal)

			_, err = f.orders.AddItem(ctx, o.ID, owner.ID, spec(1, "1.00"))
			assert.ErrorIs(t, err, services.ErrConflict)
			assert.ErrorIs(t, f.orders.DeleteItem(ctx, o.ID, item, owner.ID), services.ErrConflict)
			_, err = f.orders.CancelOrder(ctx, o.ID, owner.ID)
			assert.ErrorIs(t, err, services.ErrConflict)
			_, err = f.orders.ConfirmOrder(ctx, o.ID, owner.ID)
			assert.ErrorIs(t, err, services.ErrConflict)
			_, err = f.orders.SendOrder(ctx, o.ID, owner.ID)
			assert.ErrorIs(t, err, services.ErrConflict)
			_, err = f.orders.ConfirmOrderReadiness(ctx, o.ID, admin.ID)
			assert.ErrorIs(t, err, services.ErrConflict)

			stored := f.reload(t, o.ID)
			assert.Equal(t, terminal, stored.Status)
			assert.Equal(t, "3.00", stored.Price.StringFixed(2))
		})
	}
}

func TestGetOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, false)
	admin := f.user(t, true)
	stranger := f.user(t, false)

	o := f.order(t, owner)
	_, err := f.orders.AddItem(ctx, o.ID, owner.ID, spec(1, "2.00"))
	require.NoError(t, err)

	got, err := f.orders.GetOrder(ctx, o.ID, admin.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 1)

	_, err = f.orders.GetOrder(ctx, o.ID, stranger.ID)
	assert.ErrorIs(t, err, services.ErrForbidden)
	_, err = f.orders.GetOrder(ctx, 9999, owner.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestConcurrentAddsKeepPriceConsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, false)
	o := f.order(t, owner)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orders.AddItem(ctx, o.ID, owner.ID, spec(1, "1.10"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored := f.reload(t, o.ID)
	assert.Len(t, stored.Items, 10)
	assert.Equal(t, "11.00", stored.Price.StringFixed(2))
}

func TestAddItemRejectsUnstorableTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, false)
	o := f.order(t, owner)

	_, err := f.orders.AddItem(ctx, o.ID, owner.ID, spec(1, "10.00"))
	require.NoError(t, err)

	// 2,000,000 x 99.99 is far above what decimal(10,2) holds.
	_, err = f.orders.AddItem(ctx, o.ID, owner.ID, spec(2_000_000, "99.99"))
	assert.ErrorIs(t, err, services.ErrBadRequest)

	stored := f.reload(t, o.ID)
	assert.Equal(t, "10.00", stored.Price.StringFixed(2))
	assert.Len(t, stored.Items, 1, "the oversized item is rolled back")

	_, err = f.orders.AddItem(ctx, o.ID, owner.ID, spec(1, "99999989.99"))
	require.NoError(t, err)
	assert.Equal(t, "99999999.99", f.reload(t, o.ID).Price.StringFixed(2))

	_, err = f.orders.AddItem(ctx, o.ID, owner.ID, spec(1, "0.01"))
	assert.ErrorIs(t, err, services.ErrBadRequest)
}
