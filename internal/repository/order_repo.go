package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"frozen-pos/internal/model"
	"frozen-pos/pkg/database"
)

type OrderFilter struct {
	Status    model.OrderStatus
	CashierID *uuid.UUID
	From      *time.Time
	To        *time.Time
}

type OrderRepository interface {
	Create(tx *gorm.DB, order *model.Order) error
	AssignNumber(tx *gorm.DB, id uint, number string) error
	Save(tx *gorm.DB, order *model.Order) error
	FindAll(ctx context.Context, filter OrderFilter) ([]model.Order, error)
	FindByID(ctx context.Context, id uint) (*model.Order, error)
	FindByIDForUpdate(tx *gorm.DB, id uint) (*model.Order, error)
	Delete(tx *gorm.DB, id uint) error

	CreateItem(tx *gorm.DB, item *model.OrderItem) error
	FindItemByID(tx *gorm.DB, id uint) (*model.OrderItem, error)
	SaveItem(tx *gorm.DB, item *model.OrderItem) error
	DeleteItem(tx *gorm.DB, id uint) error
}

type orderRepo struct {
	db *gorm.DB
}

func NewOrderRepo(db *gorm.DB) OrderRepository {
	return &orderRepo{db}
}

// Create inserts the order header; items are written by the caller.
func (r *orderRepo) Create(tx *gorm.DB, order *model.Order) error {
	return dbErr(tx.Omit("Items").Create(order).Error, "order")
}

func (r *orderRepo) AssignNumber(tx *gorm.DB, id uint, number string) error {
	return dbErr(tx.Model(&model.Order{}).Where("id = ?", id).Update("order_number", number).Error,
		"order number %q", number)
}

// Save writes the order header only.
func (r *orderRepo) Save(tx *gorm.DB, order *model.Order) error {
	return dbErr(tx.Omit("Items").Save(order).Error, "order %d", order.ID)
}

func (r *orderRepo) FindAll(ctx context.Context, filter OrderFilter) ([]model.Order, error) {
	var orders []model.Order
	q := r.db.WithContext(ctx).Preload("Items").Preload("Items.Product").Order("order_date DESC, id DESC")
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.CashierID != nil {
		q = q.Where("cashier_id = ?", *filter.CashierID)
	}
	if filter.From != nil {
		q = q.Where("order_date >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("order_date < ?", *filter.To)
	}
	err := q.Find(&orders).Error
	return orders, dbErr(err, "orders")
}

func (r *orderRepo) FindByID(ctx context.Context, id uint) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Items.Product").
		First(&order, id).Error
	if err != nil {
		return nil, dbErr(err, "order %d", id)
	}
	return &order, nil
}

// FindByIDForUpdate locks the order row and loads its items in tx, so the
// status read here is the one the transition acts on.
func (r *orderRepo) FindByIDForUpdate(tx *gorm.DB, id uint) (*model.Order, error) {
	var order model.Order
	if err := database.ForUpdate(tx).First(&order, id).Error; err != nil {
		return nil, dbErr(err, "order %d", id)
	}
	if err := tx.Where("order_id = ?", id).Order("id ASC").Find(&order.Items).Error; err != nil {
		return nil, dbErr(err, "items of order %d", id)
	}
	return &order, nil
}

func (r *orderRepo) Delete(tx *gorm.DB, id uint) error {
	if err := tx.Where("order_id = ?", id).Delete(&model.OrderItem{}).Error; err != nil {
		return dbErr(err, "items of order %d", id)
	}
	return dbErr(tx.Delete(&model.Order{}, id).Error, "order %d", id)
}

func (r *orderRepo) CreateItem(tx *gorm.DB, item *model.OrderItem) error {
	return dbErr(tx.Omit("Product").Create(item).Error, "item of order %d", item.OrderID)
}

func (r *orderRepo) FindItemByID(tx *gorm.DB, id uint) (*model.OrderItem, error) {
	var item model.OrderItem
	if err := tx.First(&item, id).Error; err != nil {
		return nil, dbErr(err, "order item %d", id)
	}
	return &item, nil
}

func (r *orderRepo) SaveItem(tx *gorm.DB, item *model.OrderItem) error {
	return dbErr(tx.Omit("Product").Save(item).Error, "order item %d", item.ID)
}

func (r *orderRepo) DeleteItem(tx *gorm.DB, id uint) error {
	return dbErr(tx.Delete(&model.OrderItem{}, id).Error, "order item %d", id)
}
