package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"frozen-pos/internal/events"
	"frozen-pos/internal/model"
	"frozen-pos/internal/repository"
	"frozen-pos/pkg/apperror"
	"frozen-pos/pkg/database"
	"frozen-pos/pkg/observability"
	"frozen-pos/pkg/validator"
)

type CreateProductRequest struct {
	Name        string           `json:"name" validate:"required,max=255"`
	SKU         *string          `json:"sku" validate:"omitempty,max=50"`
	BuyPrice    *decimal.Decimal `json:"buy_price" validate:"required,decimal_gte0"`
	SellPrice   *decimal.Decimal `json:"sell_price" validate:"required,decimal_gte0"`
	Stock       int              `json:"stock" validate:"gte=0"`
	Description string           `json:"description"`
	ExpiryDate  *time.Time       `json:"expiry_date" validate:"required"`
	CategoryID  *uint            `json:"category_id"`
	ImageURL    string           `json:"image_url" validate:"omitempty,max=512"`
	IsActive    *bool            `json:"is_active"`
}

// UpdateProductRequest is a partial update; nil fields are left alone.
// CategoryID 0 clears the category.
type UpdateProductRequest struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=255"`
	SKU         *string          `json:"sku" validate:"omitempty,max=50"`
	BuyPrice    *decimal.Decimal `json:"buy_price" validate:"omitempty,decimal_gte0"`
	SellPrice   *decimal.Decimal `json:"sell_price" validate:"omitempty,decimal_gte0"`
	Stock       *int             `json:"stock" validate:"omitempty,gte=0"`
	Description *string          `json:"description"`
	ExpiryDate  *time.Time       `json:"expiry_date"`
	CategoryID  *uint            `json:"category_id"`
	ImageURL    *string          `json:"image_url" validate:"omitempty,max=512"`
	IsActive    *bool            `json:"is_active"`
}

type ProductFilter = repository.ProductFilter

type ProductService interface {
	CreateProduct(ctx context.Context, actor Actor, req CreateProductRequest) (*model.Product, error)
	UpdateProduct(ctx context.Context, actor Actor, id uint, req UpdateProductRequest) (*model.Product, error)
	DeleteProduct(ctx context.Context, actor Actor, id uint) error
	GetProduct(ctx context.Context, id uint) (*model.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]model.Product, error)
}

type productService struct {
	tx         *database.TxRunner
	ledger     *ledger
	products   repository.ProductRepository
	logs       repository.StockLogRepository
	categories repository.CategoryRepository
	events     events.Publisher
	log        *zap.Logger
}

func NewProductService(tx *database.TxRunner, products repository.ProductRepository, logs repository.StockLogRepository, categories repository.CategoryRepository, pub events.Publisher, log *zap.Logger) ProductService {
	return &productService{
		tx:         tx,
		ledger:     &ledger{products: products, logs: logs},
		products:   products,
		logs:       logs,
		categories: categories,
		events:     pub,
		log:        log,
	}
}

func (s *productService) CreateProduct(ctx context.Context, actor Actor, req CreateProductRequest) (product *model.Product, err error) {
	ctx, span := tracer.Start(ctx, "product.create", trace.WithAttributes(attribute.String("product.name", req.Name)))
	defer func() { observability.EndSpan(span, err) }()

	// 1. Validasi Struct Dasar
	if err := validator.Validate(req); err != nil {
		return nil, err
	}
	sku := cleanSKU(req.SKU)
	if sku != nil && model.IsGeneratedSKU(*sku) {
		return nil, apperror.Validation("sku %q uses the reserved SKU-nnnnnn format", *sku)
	}
	if req.CategoryID != nil {
		if _, err := s.categories.FindByID(ctx, *req.CategoryID); err != nil {
			return nil, err
		}
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	var created *model.Product
	err = s.tx.Run(ctx, "product.create", func(tx *gorm.DB) error {
		// 2. Cek Duplikasi SKU
		if sku != nil {
			taken, err := s.products.SKUTaken(tx, *sku, 0)
			if err != nil {
				return err
			}
			if taken {
				return apperror.Conflict("sku %q already exists", *sku)
			}
		}

		// 3. Insert with zero stock; opening stock goes through the log
		p := &model.Product{
			Name:        strings.TrimSpace(req.Name),
			SKU:         sku,
			BuyPrice:    req.BuyPrice.Round(2),
			SellPrice:   req.SellPrice.Round(2),
			Description: req.Description,
			ExpiryDate:  req.ExpiryDate.UTC(),
			CategoryID:  req.CategoryID,
			ImageURL:    req.ImageURL,
			IsActive:    isActive,
		}
		p.CreatedBy = actor.audit()
		p.UpdatedBy = actor.audit()
		if err := s.products.Create(tx, p); err != nil {
			return err
		}

		// 4. Generated SKU once the id is known
		if p.SKU == nil {
			generated := model.GeneratedSKU(p.ID)
			if err := s.products.AssignSKU(tx, p.ID, generated); err != nil {
				return err
			}
			p.SKU = &generated
		}

		// 5. Opening stock as a purchase
		if req.Stock > 0 {
			buyPrice := p.BuyPrice
			if _, _, err := s.ledger.apply(tx, actor, movement{
				ProductID: p.ID,
				Quantity:  req.Stock,
				Type:      model.StockPurchase,
				BuyPrice:  &buyPrice,
				Notes:     "opening stock",
			}); err != nil {
				return err
			}
			p.Stock = req.Stock
		}

		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	events.Notify(ctx, s.events, s.log, productEvent("product_created", actor, created,
		fmt.Sprintf("%s created product '%s'", actor.display(), created.Name), nil))

	return created, nil
}

func (s *productService) UpdateProduct(ctx context.Context, actor Actor, id uint, req UpdateProductRequest) (product *model.Product, err error) {
	ctx, span := tracer.Start(ctx, "product.update", trace.WithAttributes(attribute.Int("product.id", int(id))))
	defer func() { observability.EndSpan(span, err) }()

	if err := validator.Validate(req); err != nil {
		return nil, err
	}
	if req.CategoryID != nil && *req.CategoryID != 0 {
		if _, err := s.categories.FindByID(ctx, *req.CategoryID); err != nil {
			return nil, err
		}
	}

	var (
		updated  *model.Product
		oldStock int
	)
	err = s.tx.Run(ctx, "product.update", func(tx *gorm.DB) error {
		// 1. Cari & Lock Product
		existing, err := s.products.FindByIDForUpdate(tx, id)
		if err != nil {
			return err
		}
		before := existing.Stock

		// 2. Catalogue fields
		if req.Name != nil {
			existing.Name = strings.TrimSpace(*req.Name)
		}
		if sku := cleanSKU(req.SKU); sku != nil && (existing.SKU == nil || *sku != *existing.SKU) {
			if model.IsGeneratedSKU(*sku) {
				return apperror.Validation("sku %q uses the reserved SKU-nnnnnn format", *sku)
			}
			taken, err := s.products.SKUTaken(tx, *sku, existing.ID)
			if err != nil {
				return err
			}
			if taken {
				return apperror.Conflict("sku %q already exists", *sku)
			}
			existing.SKU = sku
		}
		if req.BuyPrice != nil {
			existing.BuyPrice = req.BuyPrice.Round(2)
		}
		if req.SellPrice != nil {
			existing.SellPrice = req.SellPrice.Round(2)
		}
		if req.Description != nil {
			existing.Description = *req.Description
		}
		if req.ExpiryDate != nil {
			existing.ExpiryDate = req.ExpiryDate.UTC()
		}
		if req.CategoryID != nil {
			if *req.CategoryID == 0 {
				existing.CategoryID = nil
			} else {
				existing.CategoryID = req.CategoryID
			}
		}
		if req.ImageURL != nil {
			existing.ImageURL = *req.ImageURL
		}
		if req.IsActive != nil {
			existing.IsActive = *req.IsActive
		}
		existing.UpdatedBy = actor.audit()
		existing.Category = nil
		if err := s.products.Save(tx, existing); err != nil {
			return err
		}

		// 3. A stock edit is a manual correction through the log
		if req.Stock != nil && *req.Stock != before {
			if _, _, err := s.ledger.apply(tx, actor, movement{
				ProductID: existing.ID,
				Quantity:  *req.Stock - before,
				Type:      model.StockAdjustment,
				Notes:     fmt.Sprintf("manual correction %d -> %d", before, *req.Stock),
			}); err != nil {
				return err
			}
			existing.Stock = *req.Stock
		}

		updated, oldStock = existing, before
		return nil
	})
	if err != nil {
		return nil, err
	}

	events.Notify(ctx, s.events, s.log, productEvent("product_updated", actor, updated,
		fmt.Sprintf("%s updated product '%s'", actor.display(), updated.Name),
		map[string]interface{}{"old_stock": oldStock, "new_stock": updated.Stock}))

	return updated, nil
}

func (s *productService) DeleteProduct(ctx context.Context, actor Actor, id uint) (err error) {
	ctx, span := tracer.Start(ctx, "product.delete", trace.WithAttributes(attribute.Int("product.id", int(id))))
	defer func() { observability.EndSpan(span, err) }()

	var deleted *model.Product
	err = s.tx.Run(ctx, "product.delete", func(tx *gorm.DB) error {
		product, err := s.products.FindByIDForUpdate(tx, id)
		if err != nil {
			return err
		}

		// Orders keep their history; a sold product stays in the catalogue.
		referenced, err := s.products.HasOrderItems(tx, id)
		if err != nil {
			return err
		}
		if referenced {
			return apperror.Conflict("product '%s' is referenced by orders; deactivate it instead", product.Name)
		}

		if err := s.logs.DeleteByProduct(tx, id); err != nil {
			return err
		}
		if err := s.products.Delete(tx, id); err != nil {
			return err
		}
		deleted = product
		return nil
	})
	if err != nil {
		return err
	}

	events.Notify(ctx, s.events, s.log, productEvent("product_deleted", actor, deleted,
		fmt.Sprintf("%s deleted product '%s'", actor.display(), deleted.Name), nil))
	return nil
}

func (s *productService) GetProduct(ctx context.Context, id uint) (*model.Product, error) {
	return s.products.FindByID(ctx, id)
}

func (s *productService) ListProducts(ctx context.Context, filter ProductFilter) ([]model.Product, error) {
	return s.products.FindAll(ctx, filter)
}

func cleanSKU(sku *string) *string {
	if sku == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*sku)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func productEvent(action string, actor Actor, p *model.Product, message string, extra map[string]interface{}) events.Event {
	data := map[string]interface{}{
		"id":         p.ID,
		"sku":        p.SKU,
		"name":       p.Name,
		"stock":      p.Stock,
		"sell_price": p.SellPrice,
		"is_active":  p.IsActive,
	}
	for k, v := range extra {
		data[k] = v
	}
	return events.Event{
		Type:    events.TypeStockUpdate,
		Action:  action,
		Key:     productKey(p.ID),
		Data:    data,
		User:    actor.event(),
		Message: message,
	}
}
