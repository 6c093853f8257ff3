package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"frozen-pos/internal/model"
	"frozen-pos/pkg/database"
)

type StockLogFilter struct {
	ProductID *uint
	OrderID   *uint
	Type      model.StockLogType
	From      *time.Time
	To        *time.Time
	Limit     int
}

type StockLogRepository interface {
	Create(tx *gorm.DB, log *model.StockLog) error
	FindAll(ctx context.Context, filter StockLogFilter) ([]model.StockLog, error)
	FindByID(ctx context.Context, id uint) (*model.StockLog, error)
	FindByIDForUpdate(tx *gorm.DB, id uint) (*model.StockLog, error)
	MarkReversed(tx *gorm.DB, id, reversalID uint, at time.Time) error
	UpdateNotes(tx *gorm.DB, id uint, notes string) error
	DeleteByProduct(tx *gorm.DB, productID uint) error
}

type stockLogRepo struct {
	db *gorm.DB
}

func NewStockLogRepo(db *gorm.DB) StockLogRepository {
	return &stockLogRepo{db}
}

func (r *stockLogRepo) Create(tx *gorm.DB, log *model.StockLog) error {
	return dbErr(tx.Omit("Product").Create(log).Error, "stock log for product %d", log.ProductID)
}

func (r *stockLogRepo) FindAll(ctx context.Context, filter StockLogFilter) ([]model.StockLog, error) {
	var logs []model.StockLog
	q := r.db.WithContext(ctx).Preload("Product").Order("created_at DESC, id DESC")
	if filter.ProductID != nil {
		q = q.Where("product_id = ?", *filter.ProductID)
	}
	if filter.OrderID != nil {
		q = q.Where("order_id = ?", *filter.OrderID)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at < ?", *filter.To)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	err := q.Find(&logs).Error
	return logs, dbErr(err, "stock logs")
}

func (r *stockLogRepo) FindByID(ctx context.Context, id uint) (*model.StockLog, error) {
	var log model.StockLog
	if err := r.db.WithContext(ctx).Preload("Product").First(&log, id).Error; err != nil {
		return nil, dbErr(err, "stock log %d", id)
	}
	return &log, nil
}

func (r *stockLogRepo) FindByIDForUpdate(tx *gorm.DB, id uint) (*model.StockLog, error) {
	var log model.StockLog
	if err := database.ForUpdate(tx).First(&log, id).Error; err != nil {
		return nil, dbErr(err, "stock log %d", id)
	}
	return &log, nil
}

func (r *stockLogRepo) MarkReversed(tx *gorm.DB, id, reversalID uint, at time.Time) error {
	return dbErr(tx.Model(&model.StockLog{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"reversed_at":    at,
			"reversed_by_id": reversalID,
		}).Error, "stock log %d", id)
}

func (r *stockLogRepo) UpdateNotes(tx *gorm.DB, id uint, notes string) error {
	res := tx.Model(&model.StockLog{}).Where("id = ?", id).Update("notes", notes)
	if res.Error != nil {
		return dbErr(res.Error, "stock log %d", id)
	}
	if res.RowsAffected == 0 {
		return dbErr(gorm.ErrRecordNotFound, "stock log %d", id)
	}
	return nil
}

func (r *stockLogRepo) DeleteByProduct(tx *gorm.DB, productID uint) error {
	return dbErr(tx.Where("product_id = ?", productID).Delete(&model.StockLog{}).Error,
		"stock logs of product %d", productID)
}
