package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"frozen-pos/internal/model"
)

// LedgerRow pairs a product's materialised stock with the sum of its log.
type LedgerRow struct {
	ProductID uint   `json:"product_id"`
	Name      string `json:"name"`
	Stock     int    `json:"stock"`
	LogSum    int    `json:"log_sum"`
}

// SoldLine is one order item of a completed order, flattened for reports.
type SoldLine struct {
	OrderID     uint            `json:"order_id"`
	OrderDate   time.Time       `json:"order_date"`
	ProductID   uint            `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	BuyPrice    decimal.Decimal `json:"buy_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// ReportRepository reads raw rows; aggregation happens in the service so the
// arithmetic stays in decimal and day buckets follow the shop timezone.
type ReportRepository interface {
	CompletedOrders(ctx context.Context, from, to time.Time) ([]model.Order, error)
	SoldLines(ctx context.Context, from, to time.Time) ([]SoldLine, error)
	StockLogs(ctx context.Context, from, to time.Time) ([]model.StockLog, error)
	CountProducts(ctx context.Context) (int64, error)
	CountLowStock(ctx context.Context, threshold int) (int64, error)
	ActiveProducts(ctx context.Context) ([]model.Product, error)
	ExpiringProducts(ctx context.Context, before time.Time) ([]model.Product, error)
	Ledger(ctx context.Context) ([]LedgerRow, error)
}

type reportRepo struct {
	db *gorm.DB
}

func NewReportRepo(db *gorm.DB) ReportRepository {
	return &reportRepo{db}
}

func (r *reportRepo) CompletedOrders(ctx context.Context, from, to time.Time) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND order_date >= ? AND order_date < ?", model.OrderCompleted, from, to).
		Order("order_date ASC").
		Find(&orders).Error
	return orders, dbErr(err, "completed orders")
}

func (r *reportRepo) SoldLines(ctx context.Context, from, to time.Time) ([]SoldLine, error) {
	var lines []SoldLine
	err := r.db.WithContext(ctx).
		Table("order_items AS oi").
		Select(`oi.order_id, o.order_date, oi.product_id, p.name AS product_name,
			oi.quantity, oi.buy_price, oi.subtotal`).
		Joins("JOIN orders o ON o.id = oi.order_id").
		Joins("LEFT JOIN products p ON p.id = oi.product_id").
		Where("o.status = ? AND o.order_date >= ? AND o.order_date < ?", model.OrderCompleted, from, to).
		Order("oi.id ASC").
		Scan(&lines).Error
	return lines, dbErr(err, "sold lines")
}

func (r *reportRepo) StockLogs(ctx context.Context, from, to time.Time) ([]model.StockLog, error) {
	var logs []model.StockLog
	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at ASC").
		Find(&logs).Error
	return logs, dbErr(err, "stock logs")
}

func (r *reportRepo) CountProducts(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Product{}).Count(&count).Error
	return count, dbErr(err, "product count")
}

func (r *reportRepo) CountLowStock(ctx context.Context, threshold int) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("is_active = ? AND stock < ?", true, threshold).
		Count(&count).Error
	return count, dbErr(err, "low stock count")
}

func (r *reportRepo) ActiveProducts(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Find(&products).Error
	return products, dbErr(err, "active products")
}

func (r *reportRepo) ExpiringProducts(ctx context.Context, before time.Time) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND stock > 0 AND expiry_date < ?", true, before).
		Order("expiry_date ASC").
		Find(&products).Error
	return products, dbErr(err, "expiring products")
}

func (r *reportRepo) Ledger(ctx context.Context) ([]LedgerRow, error) {
	var rows []LedgerRow
	err := r.db.WithContext(ctx).
		Table("products AS p").
		Select("p.id AS product_id, p.name, p.stock, COALESCE(SUM(l.quantity), 0) AS log_sum").
		Joins("LEFT JOIN stock_logs l ON l.product_id = p.id").
		Group("p.id, p.name, p.stock").
		Order("p.id ASC").
		Scan(&rows).Error
	return rows, dbErr(err, "stock ledger")
}
