package service

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"frozen-pos/internal/events"
	"frozen-pos/internal/model"
	"frozen-pos/internal/repository"
	"frozen-pos/pkg/apperror"
	"frozen-pos/pkg/database"
	"frozen-pos/pkg/validator"
)

type CreateCategoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
}

type CategoryService interface {
	CreateCategory(ctx context.Context, actor Actor, req CreateCategoryRequest) (*model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	DeleteCategory(ctx context.Context, actor Actor, id uint) error
}

type categoryService struct {
	tx         *database.TxRunner
	categories repository.CategoryRepository
	events     events.Publisher
	log        *zap.Logger
}

func NewCategoryService(tx *database.TxRunner, categories repository.CategoryRepository, pub events.Publisher, log *zap.Logger) CategoryService {
	return &categoryService{tx: tx, categories: categories, events: pub, log: log}
}

func (s *categoryService) CreateCategory(ctx context.Context, actor Actor, req CreateCategoryRequest) (*model.Category, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validator.Validate(req); err != nil {
		return nil, err
	}

	if _, err := s.categories.FindByName(ctx, req.Name); err == nil {
		return nil, apperror.Conflict("category %q already exists", req.Name)
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	category := &model.Category{Name: req.Name, Description: req.Description}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, err
	}

	events.Notify(ctx, s.events, s.log, events.Event{
		Type:    events.TypeCatalog,
		Action:  "category_created",
		Data:    map[string]interface{}{"id": category.ID, "name": category.Name},
		User:    actor.event(),
		Message: actor.display() + " created category '" + category.Name + "'",
	})
	return category, nil
}

func (s *categoryService) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.categories.FindAll(ctx)
}

func (s *categoryService) DeleteCategory(ctx context.Context, actor Actor, id uint) error {
	err := s.tx.Run(ctx, "category.delete", func(tx *gorm.DB) error {
		count, err := s.categories.CountProducts(tx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return apperror.Conflict("category %d still has %d product(s)", id, count)
		}
		return s.categories.Delete(tx, id)
	})
	if err != nil {
		return err
	}

	events.Notify(ctx, s.events, s.log, events.Event{
		Type:   events.TypeCatalog,
		Action: "category_deleted",
		Data:   map[string]interface{}{"id": id},
		User:   actor.event(),
	})
	return nil
}
