package service

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frozen-pos/internal/model"
	"frozen-pos/pkg/apperror"
)

func TestCreateProductWritesOpeningStock(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Nugget Ayam 1kg", 12, "45000")

	require.NotNil(t, p.SKU)
	assert.Equal(t, model.GeneratedSKU(p.ID), *p.SKU)
	assert.True(t, p.IsActive)
	assert.Equal(t, 12, p.Stock)

	logs := f.logs(t, p.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, model.StockPurchase, logs[0].Type)
	assert.Equal(t, 12, logs[0].Quantity)
	assert.True(t, logs[0].BuyPrice.Equal(money("8000")))
	assert.Equal(t, []string{"product_created"}, f.rec.Actions())

	empty := f.product(t, "Nugget Ikan", 0, "40000")
	assert.Empty(t, f.logs(t, empty.ID))
	f.assertConsistent(t)
}

func TestCreateProductValidation(t *testing.T) {
	f := newFixture(t)
	expiry := time.Now().AddDate(0, 1, 0)
	price := ptr(money("1000"))

	tests := []struct {
		name string
		req  CreateProductRequest
	}{
		{"missing name", CreateProductRequest{BuyPrice: price, SellPrice: price, ExpiryDate: &expiry}},
		{"missing buy price", CreateProductRequest{Name: "x", SellPrice: price, ExpiryDate: &expiry}},
		{"missing sell price", CreateProductRequest{Name: "x", BuyPrice: price, ExpiryDate: &expiry}},
		{"negative sell price", CreateProductRequest{Name: "x", BuyPrice: price, SellPrice: ptr(money("-1")), ExpiryDate: &expiry}},
		{"negative buy price", CreateProductRequest{Name: "x", BuyPrice: ptr(money("-0.01")), SellPrice: price, ExpiryDate: &expiry}},
		{"negative stock", CreateProductRequest{Name: "x", BuyPrice: price, SellPrice: price, Stock: -1, ExpiryDate: &expiry}},
		{"missing expiry", CreateProductRequest{Name: "x", BuyPrice: price, SellPrice: price}},
		{"reserved sku", CreateProductRequest{Name: "x", SKU: ptr("SKU-000002"), BuyPrice: price, SellPrice: price, ExpiryDate: &expiry}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.products.CreateProduct(f.ctx, f.actor, tt.req)
			assert.True(t, errors.Is(err, apperror.ErrValidation), "got %v", err)
		})
	}

	// Free prices are allowed, only absent ones are rejected.
	p, err := f.products.CreateProduct(f.ctx, f.actor, CreateProductRequest{
		Name: "Sampel", BuyPrice: ptr(money("0")), SellPrice: ptr(money("0")), ExpiryDate: &expiry,
	})
	require.NoError(t, err)
	assert.True(t, p.SellPrice.IsZero())
}

func TestProductSKUConflict(t *testing.T) {
	f := newFixture(t)
	expiry := time.Now().AddDate(0, 1, 0)
	req := CreateProductRequest{Name: "Sosis", SKU: ptr("SOS-01"), BuyPrice: ptr(money("7000")), SellPrice: ptr(money("10000")), ExpiryDate: &expiry}

	first, err := f.products.CreateProduct(f.ctx, f.actor, req)
	require.NoError(t, err)

	_, err = f.products.CreateProduct(f.ctx, f.actor, req)
	assert.True(t, errors.Is(err, apperror.ErrConflict))

	req.SKU = ptr("SOS-02")
	second, err := f.products.CreateProduct(f.ctx, f.actor, req)
	require.NoError(t, err)

	_, err = f.products.UpdateProduct(f.ctx, f.actor, second.ID, UpdateProductRequest{SKU: first.SKU})
	assert.True(t, errors.Is(err, apperror.ErrConflict))

	// Re-sending its own SKU is not a collision.
	_, err = f.products.UpdateProduct(f.ctx, f.actor, second.ID, UpdateProductRequest{SKU: ptr("SOS-02")})
	assert.NoError(t, err)
}

func TestGeneratedSKUStaysFree(t *testing.T) {
	f := newFixture(t)
	first := f.product(t, "Bakso Sapi", 0, "30000")
	next := model.GeneratedSKU(first.ID + 1)

	_, err := f.products.UpdateProduct(f.ctx, f.actor, first.ID, UpdateProductRequest{SKU: ptr(next)})
	assert.True(t, errors.Is(err, apperror.ErrValidation), "got %v", err)

	// The next product without a SKU still gets its generated one.
	second := f.product(t, "Bakso Ikan", 0, "28000")
	require.NotNil(t, second.SKU)
	assert.Equal(t, next, *second.SKU)

	// Re-sending its own generated SKU is accepted.
	_, err = f.products.UpdateProduct(f.ctx, f.actor, second.ID, UpdateProductRequest{SKU: ptr(next)})
	assert.NoError(t, err)
}

func TestUpdateProductStockGoesThroughLog(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Kentang", 10, "18000")

	got, err := f.products.UpdateProduct(f.ctx, f.actor, p.ID, UpdateProductRequest{
		Name:  ptr("Kentang Shoestring"),
		Stock: ptr(6),
	})
	require.NoError(t, err)
	assert.Equal(t, "Kentang Shoestring", got.Name)
	assert.Equal(t, 6, got.Stock)

	adjustments, err := f.stock.ListLogs(f.ctx, StockLogFilter{ProductID: &p.ID, Type: model.StockAdjustment})
	require.NoError(t, err)
	require.Len(t, adjustments, 1)
	assert.Equal(t, -4, adjustments[0].Quantity)
	assert.Equal(t, "manual correction 10 -> 6", adjustments[0].Notes)

	// Same stock is not a movement.
	_, err = f.products.UpdateProduct(f.ctx, f.actor, p.ID, UpdateProductRequest{Stock: ptr(6)})
	require.NoError(t, err)
	assert.Len(t, f.logs(t, p.ID), 2)

	_, err = f.products.UpdateProduct(f.ctx, f.actor, 777, UpdateProductRequest{Name: ptr("ghost")})
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	f.assertConsistent(t)
}

func TestDeleteProduct(t *testing.T) {
	f := newFixture(t)
	sold := f.product(t, "Nugget", 10, "10000")
	unsold := f.product(t, "Sosis", 10, "10000")
	f.pendingOrder(t, OrderItemInput{ProductID: sold.ID, Quantity: 1})

	err := f.products.DeleteProduct(f.ctx, f.actor, sold.ID)
	assert.True(t, errors.Is(err, apperror.ErrConflict))
	assert.Equal(t, 10, f.stockOf(t, sold.ID))

	require.NoError(t, f.products.DeleteProduct(f.ctx, f.actor, unsold.ID))
	_, err = f.products.GetProduct(f.ctx, unsold.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	assert.Empty(t, f.logs(t, unsold.ID))

	err = f.products.DeleteProduct(f.ctx, f.actor, unsold.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	f.assertConsistent(t)
}

func TestProductCategory(t *testing.T) {
	f := newFixture(t)
	cat, err := f.categories.CreateCategory(f.ctx, f.actor, CreateCategoryRequest{Name: "Es Krim"})
	require.NoError(t, err)

	expiry := time.Now().AddDate(0, 1, 0)
	p, err := f.products.CreateProduct(f.ctx, f.actor, CreateProductRequest{
		Name: "Cone Cokelat", BuyPrice: ptr(money("5000")), SellPrice: ptr(money("8000")), ExpiryDate: &expiry, CategoryID: &cat.ID,
	})
	require.NoError(t, err)

	listed, err := f.products.ListProducts(f.ctx, ProductFilter{CategoryID: &cat.ID})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, p.ID, listed[0].ID)

	_, err = f.products.CreateProduct(f.ctx, f.actor, CreateProductRequest{
		Name: "x", BuyPrice: ptr(money("1")), SellPrice: ptr(money("1")), ExpiryDate: &expiry, CategoryID: ptr(uint(99)),
	})
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	got, err := f.products.UpdateProduct(f.ctx, f.actor, p.ID, UpdateProductRequest{CategoryID: ptr(uint(0))})
	require.NoError(t, err)
	assert.Nil(t, got.CategoryID)
}
