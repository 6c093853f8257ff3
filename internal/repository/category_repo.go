package repository

import (
	"context"

	"gorm.io/gorm"

	"frozen-pos/internal/model"
)

type CategoryRepository interface {
	Create(ctx context.Context, category *model.Category) error
	FindAll(ctx context.Context) ([]model.Category, error)
	FindByID(ctx context.Context, id uint) (*model.Category, error)
	FindByName(ctx context.Context, name string) (*model.Category, error)
	CountProducts(tx *gorm.DB, id uint) (int64, error)
	Delete(tx *gorm.DB, id uint) error
}

type categoryRepo struct {
	db *gorm.DB
}

func NewCategoryRepo(db *gorm.DB) CategoryRepository {
	return &categoryRepo{db}
}

func (r *categoryRepo) Create(ctx context.Context, category *model.Category) error {
	return dbErr(r.db.WithContext(ctx).Create(category).Error, "category %q", category.Name)
}

func (r *categoryRepo) FindAll(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	err := r.db.WithContext(ctx).Order("name ASC").Find(&categories).Error
	return categories, dbErr(err, "categories")
}

func (r *categoryRepo) FindByID(ctx context.Context, id uint) (*model.Category, error) {
	var category model.Category
	if err := r.db.WithContext(ctx).First(&category, id).Error; err != nil {
		return nil, dbErr(err, "category %d", id)
	}
	return &category, nil
}

func (r *categoryRepo) FindByName(ctx context.Context, name string) (*model.Category, error) {
	var category model.Category
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&category).Error; err != nil {
		return nil, dbErr(err, "category %q", name)
	}
	return &category, nil
}

func (r *categoryRepo) CountProducts(tx *gorm.DB, id uint) (int64, error) {
	var count int64
	err := tx.Model(&model.Product{}).Where("category_id = ?", id).Count(&count).Error
	return count, dbErr(err, "products of category %d", id)
}

func (r *categoryRepo) Delete(tx *gorm.DB, id uint) error {
	res := tx.Delete(&model.Category{}, id)
	if res.Error != nil {
		return dbErr(res.Error, "category %d", id)
	}
	if res.RowsAffected == 0 {
		return dbErr(gorm.ErrRecordNotFound, "category %d", id)
	}
	return nil
}
