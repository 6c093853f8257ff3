package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"frozen-pos/internal/model"
	"frozen-pos/pkg/database"
)

type ProductFilter struct {
	CategoryID    *uint
	ActiveOnly    bool
	LowStockBelow *int
	Search        string
}

type ProductRepository interface {
	Create(tx *gorm.DB, product *model.Product) error
	Save(tx *gorm.DB, product *model.Product) error
	FindAll(ctx context.Context, filter ProductFilter) ([]model.Product, error)
	FindByID(ctx context.Context, id uint) (*model.Product, error)
	FindByIDForUpdate(tx *gorm.DB, id uint) (*model.Product, error)
	Get(tx *gorm.DB, id uint) (*model.Product, error)
	SKUTaken(tx *gorm.DB, sku string, exceptID uint) (bool, error)
	AssignSKU(tx *gorm.DB, id uint, sku string) error
	UpdateStock(tx *gorm.DB, id uint, newStock int, updatedBy string) error
	UpdateBuyPrice(tx *gorm.DB, id uint, price decimal.Decimal, updatedBy string) error
	HasOrderItems(tx *gorm.DB, id uint) (bool, error)
	Delete(tx *gorm.DB, id uint) error
}

type productRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) ProductRepository {
	return &productRepo{db}
}

func (r *productRepo) Create(tx *gorm.DB, product *model.Product) error {
	return dbErr(tx.Create(product).Error, "product %q", product.Name)
}

// Save writes catalogue fields. Stock is owned by the stock log and skipped.
func (r *productRepo) Save(tx *gorm.DB, product *model.Product) error {
	return dbErr(tx.Omit("stock", "Category").Save(product).Error, "product %d", product.ID)
}

func (r *productRepo) FindAll(ctx context.Context, filter ProductFilter) ([]model.Product, error) {
	var products []model.Product
	q := r.db.WithContext(ctx).Preload("Category").Order("id ASC")
	if filter.CategoryID != nil {
		q = q.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	if filter.LowStockBelow != nil {
		q = q.Where("stock < ?", *filter.LowStockBelow)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where("name LIKE ? OR sku LIKE ?", like, like)
	}
	err := q.Find(&products).Error
	return products, dbErr(err, "products")
}

func (r *productRepo) FindByID(ctx context.Context, id uint) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).Preload("Category").First(&product, id).Error; err != nil {
		return nil, dbErr(err, "product %d", id)
	}
	return &product, nil
}

// FindByIDForUpdate reads the product row locked for the rest of tx.
func (r *productRepo) FindByIDForUpdate(tx *gorm.DB, id uint) (*model.Product, error) {
	var product model.Product
	if err := database.ForUpdate(tx).First(&product, id).Error; err != nil {
		return nil, dbErr(err, "product %d", id)
	}
	return &product, nil
}

// Get reads the product inside tx without locking it.
func (r *productRepo) Get(tx *gorm.DB, id uint) (*model.Product, error) {
	var product model.Product
	if err := tx.First(&product, id).Error; err != nil {
		return nil, dbErr(err, "product %d", id)
	}
	return &product, nil
}

func (r *productRepo) SKUTaken(tx *gorm.DB, sku string, exceptID uint) (bool, error) {
	var count int64
	err := tx.Model(&model.Product{}).Where("sku = ? AND id <> ?", sku, exceptID).Count(&count).Error
	return count > 0, dbErr(err, "sku %q", sku)
}

func (r *productRepo) AssignSKU(tx *gorm.DB, id uint, sku string) error {
	return dbErr(tx.Model(&model.Product{}).Where("id = ?", id).Update("sku", sku).Error, "sku %q", sku)
}

// UpdateStock menerima *gorm.DB (tx) agar bisa berjalan dalam transaksi
func (r *productRepo) UpdateStock(tx *gorm.DB, id uint, newStock int, updatedBy string) error {
	return dbErr(tx.Model(&model.Product{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"stock":      newStock,
			"updated_by": updatedBy,
		}).Error, "product %d", id)
}

func (r *productRepo) UpdateBuyPrice(tx *gorm.DB, id uint, price decimal.Decimal, updatedBy string) error {
	return dbErr(tx.Model(&model.Product{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"buy_price":  price,
			"updated_by": updatedBy,
		}).Error, "product %d", id)
}

func (r *productRepo) HasOrderItems(tx *gorm.DB, id uint) (bool, error) {
	var count int64
	err := tx.Model(&model.OrderItem{}).Where("product_id = ?", id).Count(&count).Error
	return count > 0, dbErr(err, "order items of product %d", id)
}

func (r *productRepo) Delete(tx *gorm.DB, id uint) error {
	return dbErr(tx.Delete(&model.Product{}, id).Error, "product %d", id)
}
