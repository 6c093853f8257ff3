package service

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frozen-pos/internal/model"
	"frozen-pos/pkg/apperror"
)

func (f *fixture) pendingOrder(t *testing.T, items ...OrderItemInput) *model.Order {
	t.Helper()
	o, err := f.orders.CreateOrder(f.ctx, f.actor, CreateOrderRequest{PaymentMethod: "cash", Items: items})
	require.NoError(t, err)
	return o
}

func (f *fixture) complete(t *testing.T, id uint, paid string) (*model.Order, error) {
	t.Helper()
	status := model.OrderCompleted
	return f.orders.UpdateOrder(f.ctx, f.actor, id, UpdateOrderRequest{Status: &status, AmountPaid: ptr(money(paid))})
}

func TestCompleteOrderSellsStock(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Nugget Ayam 500g", 10, "25000")

	o := f.pendingOrder(t, OrderItemInput{ProductID: p.ID, Quantity: 3})
	assert.Equal(t, "ORD-001", o.Number())
	assert.True(t, o.TotalAmount.Equal(money("75000")))
	assert.Equal(t, PaymentCash, o.PaymentMethod)

	done, err := f.complete(t, o.ID, "75000")
	require.NoError(t, err)
	assert.Equal(t, model.OrderCompleted, done.Status)
	assert.True(t, done.ChangeAmount.IsZero())

	assert.Equal(t, 7, f.stockOf(t, p.ID))
	sales, err := f.stock.ListLogs(f.ctx, StockLogFilter{ProductID: &p.ID, Type: model.StockSale})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, -3, sales[0].Quantity)
	assert.Equal(t, o.ID, *sales[0].OrderID)
	assert.Equal(t, 10, sales[0].StockBefore)
	assert.Equal(t, 7, sales[0].StockAfter)

	assert.Equal(t, model.OrderCompleted, f.order(t, o.ID).Status)
	assert.Contains(t, f.rec.Actions(), "order_completed")
	f.assertConsistent(t)
}

func TestDeleteCompletedOrderRestocks(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Nugget Ayam 500g", 10, "25000")
	o := f.pendingOrder(t, OrderItemInput{ProductID: p.ID, Quantity: 3})
	_, err := f.complete(t, o.ID, "75000")
	require.NoError(t, err)

	require.NoError(t, f.orders.DeleteOrder(f.ctx, f.actor, o.ID))

	assert.Equal(t, 10, f.stockOf(t, p.ID))
	adjustments, err := f.stock.ListLogs(f.ctx, StockLogFilter{ProductID: &p.ID, Type: model.StockAdjustment})
	require.NoError(t, err)
	require.Len(t, adjustments, 1)
	assert.Equal(t, 3, adjustments[0].Quantity)
	assert.Contains(t, adjustments[0].Notes, "ORD-001")

	_, err = f.orders.GetOrder(f.ctx, o.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	f.assertConsistent(t)
}

func TestCompleteWithInsufficientStockRollsBack(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Es Krim Cokelat", 5, "12000")
	other := f.product(t, "Dimsum Udang", 20, "30000")

	// The first line is fine; the second fails and must undo the first.
	o := f.pendingOrder(t,
		OrderItemInput{ProductID: other.ID, Quantity: 2},
		OrderItemInput{ProductID: p.ID, Quantity: 6},
	)

	_, err := f.complete(t, o.ID, "1000000")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrInsufficientStock))

	assert.Equal(t, 5, f.stockOf(t, p.ID))
	assert.Equal(t, 20, f.stockOf(t, other.ID))
	assert.Len(t, f.logs(t, other.ID), 1, "only the opening purchase")
	assert.Equal(t, model.OrderPending, f.order(t, o.ID).Status)
	assert.NotContains(t, f.rec.Actions(), "order_completed")
	f.assertConsistent(t)
}

func TestEditItemQuantityAdjustsTotal(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "Sosis Sapi", 50, "15500.50")
	b := f.product(t, "Bakso Ikan", 50, "22000")

	o := f.pendingOrder(t,
		OrderItemInput{ProductID: a.ID, Quantity: 2},
		OrderItemInput{ProductID: b.ID, Quantity: 1},
	)
	before := o.TotalAmount
	first := o.Items[0]

	item, err := f.orders.UpdateOrderItem(f.ctx, f.actor, first.ID, UpdateOrderItemRequest{Quantity: ptr(5)})
	require.NoError(t, err)
	assert.Equal(t, 5, item.Quantity)
	assert.True(t, item.Subtotal.Equal(money("77502.50")))

	after := f.order(t, o.ID).TotalAmount
	assert.True(t, after.Sub(before).Equal(money("15500.50").Mul(money("3"))), "delta %s", after.Sub(before))
	assert.Equal(t, 50, f.stockOf(t, a.ID), "pending edits never touch stock")
	f.assertConsistent(t)
}

func TestDeleteItemFromCompletedOrderConflicts(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Kentang Goreng", 10, "18000")
	o := f.pendingOrder(t, OrderItemInput{ProductID: p.ID, Quantity: 2})
	_, err := f.complete(t, o.ID, "36000")
	require.NoError(t, err)

	err = f.orders.DeleteOrderItem(f.ctx, f.actor, o.Items[0].ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrConflict))

	_, err = f.orders.UpdateOrderItem(f.ctx, f.actor, o.Items[0].ID, UpdateOrderItemRequest{Quantity: ptr(1)})
	assert.True(t, errors.Is(err, apperror.ErrConflict))

	got := f.order(t, o.ID)
	assert.Len(t, got.Items, 1)
	assert.True(t, got.TotalAmount.Equal(money("36000")))
	assert.Equal(t, 8, f.stockOf(t, p.ID))
	f.assertConsistent(t)
}

func TestCompleteTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Nugget", 10, "10000")
	o := f.pendingOrder(t, OrderItemInput{ProductID: p.ID, Quantity: 4})
	_, err := f.complete(t, o.ID, "40000")
	require.NoError(t, err)

	_, err = f.complete(t, o.ID, "40000")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrConflict))
	assert.Equal(t, 6, f.stockOf(t, p.ID), "no second decrement")
	f.assertConsistent(t)
}

func TestPaymentBoundary(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Siomay", 10, "12500.25")
	o := f.pendingOrder(t, OrderItemInput{ProductID: p.ID, Quantity: 2})

	_, err := f.complete(t, o.ID, "25000.49")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrValidation))
	assert.Contains(t, err.Error(), "insufficient payment")
	assert.Equal(t, 10, f.stockOf(t, p.ID))

	done, err := f.complete(t, o.ID, "25000.50")
	require.NoError(t, err)
	assert.True(t, done.ChangeAmount.IsZero())

	o2 := f.pendingOrder(t, OrderItemInput{ProductID: p.ID, Quantity: 1})
	done, err = f.complete(t, o2.ID, "20000")
	require.NoError(t, err)
	assert.True(t, done.ChangeAmount.Equal(money("7499.75")))
}

func TestExactDepletionIsAllowed(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Es Krim Vanila", 4, "9000")
	o := f.pendingOrder(t, OrderItemInput{ProductID: p.ID, Quantity: 4})

	_, err := f.complete(t, o.ID, "36000")
	require.NoError(t, err)
	assert.Equal(t, 0, f.stockOf(t, p.ID))

	o2 := f.pendingOrder(t, OrderItemInput{ProductID: p.ID, Quantity: 1})
	_, err = f.complete(t, o2.ID, "9000")
	assert.True(t, errors.Is(err, apperror.ErrInsufficientStock))
	f.assertConsistent(t)
}

func TestCancelOrder(t *testing.T) {
	cancelled := model.OrderCancelled

	t.Run("completed order restocks", func(t *testing.T) {
		f := newFixture(t)
		p := f.product(t, "Nugget", 10, "10000")
		o := f.pendingOrder(t, OrderItemInput{ProductID: p.ID, Quantity: 3})
		_, err := f.complete(t, o.ID, "30000")
		require.NoError(t, err)

		got, err := f.orders.UpdateOrder(f.ctx, f.actor, o.ID, UpdateOrderRequest{Status: &cancelled})
		require.NoError(t, err)
		assert.Equal(t, model.OrderCancelled, got.Status)
		assert.Equal(t, 10, f.stockOf(t, p.ID))

		adjustments, err := f.stock.ListLogs(f.ctx, StockLogFilter{OrderID: &o.ID, Type: model.StockAdjustment})
		require.NoError(t, err)
		require.Len(t, adjustments, 1)
		assert.Equal(t, "order ORD-001 cancelled", adjustments[0].Notes)
		assert.Contains(t, f.rec.Actions(), "order_cancelled")
		f.assertConsistent(t)
	})

	t.Run("pending order has no stock effect", func(t *testing.T) {
		f := newFixture(t)
		p := f.product(t, "Nugget", 10, "10000")
		o := f.pendingOrder(t, OrderItemInput{ProductID: p.ID, Quantity: 3})

		_, err := f.orders.UpdateOrder(f.ctx, f.actor, o.ID, UpdateOrderRequest{Status: &cancelled})
		require.NoError(t, err)
		assert.Equal(t, 10, f.stockOf(t, p.ID))
		assert.Len(t, f.logs(t, p.ID), 1)
	})

	t.Run("cancelled order is read only", func(t *testing.T) {
		f := newFixture(t)
		p := f.product(t, "Nugget", 10, "10000")
		o := f.pendingOrder(t, OrderItemInput{ProductID: p.ID, Quantity: 3})
		_, err := f.orders.UpdateOrder(f.ctx, f.actor, o.ID, UpdateOrderRequest{Status: &cancelled})
		require.NoError(t, err)

		_, err = f.orders.UpdateOrder(f.ctx, f.actor, o.ID, UpdateOrderRequest{CustomerName: ptr("Budi")})
		assert.True(t, errors.Is(err, apperror.ErrConflict))
		_, err = f.complete(t, o.ID, "30000")
		assert.True(t, errors.Is(err, apperror.ErrConflict))
		_, err = f.orders.AddOrderItem(f.ctx, f.actor, o.ID, AddOrderItemRequest{ProductID: p.ID, Quantity: 1})
		assert.True(t, errors.Is(err, apperror.ErrConflict))
	})
}

func TestAddItemToCompletedOrderSellsImmediately(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Nugget", 10, "10000")
	o := f.pendingOrder(t, OrderItemInput{ProductID: p.ID, Quantity: 2})
	done, err := f.complete(t, o.ID, "25000")
	require.NoError(t, err)
	assert.True(t, done.ChangeAmount.Equal(money("5000")))

	item, err := f.orders.AddOrderItem(f.ctx, f.actor, o.ID, AddOrderItemRequest{ProductID: p.ID, Quantity: 3})
	require.NoError(t, err)
	assert.True(t, item.Subtotal.Equal(money("30000")))

	assert.Equal(t, 5, f.stockOf(t, p.ID))
	got := f.order(t, o.ID)
	assert.True(t, got.TotalAmount.Equal(money("50000")))
	assert.True(t, got.AmountPaid.Equal(money("25000")), "payment is not touched")
	assert.True(t, got.ChangeAmount.IsZero(), "no change while the ticket is short")
	assert.True(t, got.BalanceDue().Equal(money("25000")))

	evs := f.rec.Events()
	last := evs[len(evs)-1]
	assert.Equal(t, "order_item_added", last.Action)
	assert.True(t, last.Data["balance_due"].(decimal.Decimal).Equal(money("25000")))

	// Settling the ticket: a short top-up is refused, a full one gives change.
	_, err = f.orders.UpdateOrder(f.ctx, f.actor, o.ID, UpdateOrderRequest{AmountPaid: ptr(money("40000"))})
	assert.True(t, errors.Is(err, apperror.ErrValidation), "got %v", err)
	settled, err := f.orders.UpdateOrder(f.ctx, f.actor, o.ID, UpdateOrderRequest{AmountPaid: ptr(money("60000"))})
	require.NoError(t, err)
	assert.True(t, settled.ChangeAmount.Equal(money("10000")))
	assert.True(t, settled.BalanceDue().IsZero())

	_, err = f.orders.AddOrderItem(f.ctx, f.actor, o.ID, AddOrderItemRequest{ProductID: p.ID, Quantity: 6})
	assert.True(t, errors.Is(err, apperror.ErrInsufficientStock))
	assert.Len(t, f.order(t, o.ID).Items, 2)
	f.assertConsistent(t)
}

func TestSnapshotPricing(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Nugget", 10, "10000")
	o := f.pendingOrder(t, OrderItemInput{ProductID: p.ID, Quantity: 2})

	_, err := f.products.UpdateProduct(f.ctx, f.actor, p.ID, UpdateProductRequest{SellPrice: ptr(money("99999"))})
	require.NoError(t, err)

	got := f.order(t, o.ID)
	assert.True(t, got.Items[0].SellPrice.Equal(money("10000")))
	assert.True(t, got.TotalAmount.Equal(money("20000")))

	item, err := f.orders.AddOrderItem(f.ctx, f.actor, o.ID, AddOrderItemRequest{ProductID: p.ID, Quantity: 1, SellPrice: ptr(money("5000"))})
	require.NoError(t, err)
	assert.True(t, item.SellPrice.Equal(money("5000")))
	assert.True(t, item.BuyPrice.Equal(money("8000")))
	f.assertConsistent(t)
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Nugget", 10, "10000")
	inactive := f.product(t, "Discontinued", 10, "10000")
	_, err := f.products.UpdateProduct(f.ctx, f.actor, inactive.ID, UpdateProductRequest{IsActive: ptr(false)})
	require.NoError(t, err)

	tests := []struct {
		name  string
		items []OrderItemInput
		want  error
	}{
		{"no items", nil, apperror.ErrValidation},
		{"zero quantity", []OrderItemInput{{ProductID: p.ID, Quantity: 0}}, apperror.ErrValidation},
		{"inactive product", []OrderItemInput{{ProductID: inactive.ID, Quantity: 1}}, apperror.ErrValidation},
		{"missing product", []OrderItemInput{{ProductID: 9999, Quantity: 1}}, apperror.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orders.CreateOrder(f.ctx, f.actor, CreateOrderRequest{Items: tt.items})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	orders, err := f.orders.ListOrders(f.ctx, OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCompleteEmptyOrderFails(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Nugget", 10, "10000")
	o := f.pendingOrder(t, OrderItemInput{ProductID: p.ID, Quantity: 1})
	require.NoError(t, f.orders.DeleteOrderItem(f.ctx, f.actor, o.Items[0].ID))

	got := f.order(t, o.ID)
	assert.Empty(t, got.Items)
	assert.True(t, got.TotalAmount.IsZero())

	_, err := f.complete(t, o.ID, "0")
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}

func TestListOrdersFiltersByStatus(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Nugget", 10, "10000")
	o1 := f.pendingOrder(t, OrderItemInput{ProductID: p.ID, Quantity: 1})
	f.pendingOrder(t, OrderItemInput{ProductID: p.ID, Quantity: 1})
	_, err := f.complete(t, o1.ID, "10000")
	require.NoError(t, err)

	done, err := f.orders.ListOrders(f.ctx, OrderFilter{Status: model.OrderCompleted})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, o1.ID, done[0].ID)

	_, err = f.orders.ListOrders(f.ctx, OrderFilter{Status: "SHIPPED"})
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}
