package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"frozen-pos/internal/events"
	"frozen-pos/internal/model"
	"frozen-pos/internal/repository"
	"frozen-pos/internal/testutil"
)

type fixture struct {
	ctx        context.Context
	db         *gorm.DB
	rec        *events.Recorder
	actor      Actor
	products   ProductService
	stock      StockService
	orders     OrderService
	categories CategoryService
	reports    ReportService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	tx := testutil.NewTxRunner(db)
	rec := &events.Recorder{}
	log := zap.NewNop()

	productRepo := repository.NewProductRepo(db)
	logRepo := repository.NewStockLogRepo(db)
	orderRepo := repository.NewOrderRepo(db)
	categoryRepo := repository.NewCategoryRepo(db)

	return &fixture{
		ctx:        context.Background(),
		db:         db,
		rec:        rec,
		actor:      Actor{ID: uuid.New(), Name: "Sari", Email: "sari@shop.test"},
		products:   NewProductService(tx, productRepo, logRepo, categoryRepo, rec, log),
		stock:      NewStockService(tx, productRepo, logRepo, rec, log),
		orders:     NewOrderService(tx, orderRepo, productRepo, logRepo, rec, log),
		categories: NewCategoryService(tx, categoryRepo, rec, log),
		reports:    NewReportService(repository.NewReportRepo(db), ReportOptions{Location: time.UTC, LowStockThreshold: 5, ExpiryWarningDays: 7}),
	}
}

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (f *fixture) product(t *testing.T, name string, stock int, sellPrice string) *model.Product {
	t.Helper()
	expiry := time.Now().UTC().AddDate(0, 6, 0)
	p, err := f.products.CreateProduct(f.ctx, f.actor, CreateProductRequest{
		Name:       name,
		BuyPrice:   ptr(money("8000")),
		SellPrice:  ptr(money(sellPrice)),
		Stock:      stock,
		ExpiryDate: &expiry,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) stockOf(t *testing.T, id uint) int {
	t.Helper()
	p, err := f.products.GetProduct(f.ctx, id)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) logs(t *testing.T, productID uint) []model.StockLog {
	t.Helper()
	logs, err := f.stock.ListLogs(f.ctx, StockLogFilter{ProductID: &productID})
	require.NoError(t, err)
	return logs
}

func (f *fixture) order(t *testing.T, id uint) *model.Order {
	t.Helper()
	o, err := f.orders.GetOrder(f.ctx, id)
	require.NoError(t, err)
	return o
}

// assertConsistent checks stock against the log and order totals against their items.
func (f *fixture) assertConsistent(t *testing.T) {
	t.Helper()

	mismatches, err := f.reports.Reconcile(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, mismatches, "stock must equal the sum of its log")

	orders, err := f.orders.ListOrders(f.ctx, OrderFilter{})
	require.NoError(t, err)
	for _, o := range orders {
		assert.True(t, o.TotalAmount.Equal(o.ItemsTotal()),
			"order %s total %s != items %s", o.Number(), o.TotalAmount, o.ItemsTotal())
	}
}

func ptr[T any](v T) *T { return &v }
