package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"frozen-pos/internal/model"
	"frozen-pos/internal/testutil"
	"frozen-pos/pkg/apperror"
)

func seedProduct(t *testing.T, db *gorm.DB, name string, stock int) *model.Product {
	t.Helper()
	p := &model.Product{
		Name:       name,
		BuyPrice:   decimal.NewFromInt(10000),
		SellPrice:  decimal.NewFromInt(15000),
		Stock:      stock,
		ExpiryDate: time.Now().AddDate(0, 6, 0),
		IsActive:   true,
	}
	require.NoError(t, NewProductRepo(db).Create(db, p))
	return p
}

func TestProductRepoNotFound(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewProductRepo(db)

	_, err := repo.FindByID(context.Background(), 42)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = repo.FindByIDForUpdate(db, 42)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestProductRepoSKUTaken(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewProductRepo(db)
	p := seedProduct(t, db, "Nugget Ayam", 0)
	require.NoError(t, repo.AssignSKU(db, p.ID, "NUG-01"))

	taken, err := repo.SKUTaken(db, "NUG-01", 0)
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = repo.SKUTaken(db, "NUG-01", p.ID)
	require.NoError(t, err)
	assert.False(t, taken, "a product does not collide with itself")
}

func TestProductRepoSaveKeepsStock(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewProductRepo(db)
	p := seedProduct(t, db, "Sosis Sapi", 8)

	p.Name = "Sosis Sapi Jumbo"
	p.Stock = 999
	require.NoError(t, repo.Save(db, p))

	got, err := repo.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sosis Sapi Jumbo", got.Name)
	assert.Equal(t, 8, got.Stock)
}

func TestProductRepoFilter(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewProductRepo(db)
	seedProduct(t, db, "Es Krim Coklat", 3)
	seedProduct(t, db, "Dimsum Udang", 30)

	below := 10
	products, err := repo.FindAll(context.Background(), ProductFilter{LowStockBelow: &below})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Es Krim Coklat", products[0].Name)

	products, err = repo.FindAll(context.Background(), ProductFilter{Search: "Dimsum"})
	require.NoError(t, err)
	require.Len(t, products, 1)
}

func TestStockLogRepoReversalMarks(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewStockLogRepo(db)
	p := seedProduct(t, db, "Bakso", 5)

	entry := &model.StockLog{ProductID: p.ID, Quantity: 5, Type: model.StockAdjustment, UserID: uuid.New(), StockAfter: 5}
	require.NoError(t, repo.Create(db, entry))

	now := time.Now().UTC()
	require.NoError(t, repo.MarkReversed(db, entry.ID, 99, now))
	got, err := repo.FindByID(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.True(t, got.IsReversed())
	require.NotNil(t, got.ReversedByID)
	assert.Equal(t, uint(99), *got.ReversedByID)

	assert.ErrorIs(t, repo.UpdateNotes(db, 1234, "x"), apperror.ErrNotFound)
}

func TestReportRepoLedger(t *testing.T) {
	db := testutil.NewDB(t)
	logs := NewStockLogRepo(db)
	good := seedProduct(t, db, "Kentang", 7)
	drifted := seedProduct(t, db, "Otak-otak", 4)

	require.NoError(t, logs.Create(db, &model.StockLog{ProductID: good.ID, Quantity: 10, Type: model.StockPurchase, UserID: uuid.New()}))
	require.NoError(t, logs.Create(db, &model.StockLog{ProductID: good.ID, Quantity: -3, Type: model.StockSale, UserID: uuid.New()}))

	rows, err := NewReportRepo(db).Ledger(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, LedgerRow{ProductID: good.ID, Name: "Kentang", Stock: 7, LogSum: 7}, rows[0])
	assert.Equal(t, LedgerRow{ProductID: drifted.ID, Name: "Otak-otak", Stock: 4, LogSum: 0}, rows[1])
}

func TestOrderRepoDeleteRemovesItems(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewOrderRepo(db)
	p := seedProduct(t, db, "Siomay", 10)

	order := &model.Order{CashierID: uuid.New(), OrderDate: time.Now(), Status: model.OrderPending}
	require.NoError(t, repo.Create(db, order))
	require.NoError(t, repo.CreateItem(db, &model.OrderItem{OrderID: order.ID, ProductID: p.ID, Quantity: 1,
		BuyPrice: p.BuyPrice, SellPrice: p.SellPrice, Subtotal: p.SellPrice}))

	locked, err := repo.FindByIDForUpdate(db, order.ID)
	require.NoError(t, err)
	assert.Len(t, locked.Items, 1)

	require.NoError(t, repo.Delete(db, order.ID))

	var count int64
	require.NoError(t, db.Model(&model.OrderItem{}).Count(&count).Error)
	assert.Zero(t, count)
	_, err = repo.FindByID(context.Background(), order.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
