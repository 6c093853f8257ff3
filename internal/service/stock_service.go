package service

import (
	"context"
	"fmt"
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

// movement is one signed stock change applied inside an open transaction.
type movement struct {
	ProductID  uint
	Quantity   int
	Type       model.StockLogType
	BuyPrice   *decimal.Decimal
	OrderID    *uint
	Notes      string
	ReversalOf *uint
}

// ledger is the only writer of Product.Stock: every change inserts the log
// row and moves the materialised stock in the same transaction.
type ledger struct {
	products repository.ProductRepository
	logs     repository.StockLogRepository
}

// apply locks the product, checks the floor, writes the log and the new stock.
func (l *ledger) apply(tx *gorm.DB, actor Actor, m movement) (*model.StockLog, *model.Product, error) {
	// 1. Lock the product row
	product, err := l.products.FindByIDForUpdate(tx, m.ProductID)
	if err != nil {
		return nil, nil, err
	}

	// 2. Floor check
	newStock := product.Stock + m.Quantity
	if newStock < 0 {
		if m.ReversalOf != nil {
			return nil, nil, apperror.InconsistentState(
				"reversing stock log %d would take %s below zero (stock %d, change %d)",
				*m.ReversalOf, product.Name, product.Stock, m.Quantity)
		}
		return nil, nil, apperror.InsufficientStock(
			"insufficient stock for %s: have %d, need %d", product.Name, product.Stock, -m.Quantity)
	}

	// 3. Log row
	var buyPrice *decimal.Decimal
	if m.BuyPrice != nil {
		p := m.BuyPrice.Round(2)
		buyPrice = &p
	}
	entry := &model.StockLog{
		ProductID:    product.ID,
		Quantity:     m.Quantity,
		Type:         m.Type,
		BuyPrice:     buyPrice,
		UserID:       actor.ID,
		OrderID:      m.OrderID,
		Notes:        m.Notes,
		StockBefore:  product.Stock,
		StockAfter:   newStock,
		ReversalOfID: m.ReversalOf,
	}
	if err := l.logs.Create(tx, entry); err != nil {
		return nil, nil, err
	}

	// 4. Materialised stock, and cost basis for purchases
	if err := l.products.UpdateStock(tx, product.ID, newStock, actor.audit()); err != nil {
		return nil, nil, err
	}
	product.Stock = newStock
	if m.Type == model.StockPurchase && buyPrice != nil {
		if err := l.products.UpdateBuyPrice(tx, product.ID, *buyPrice, actor.audit()); err != nil {
			return nil, nil, err
		}
		product.BuyPrice = *buyPrice
	}

	return entry, product, nil
}

type RecordMovementRequest struct {
	ProductID uint               `json:"product_id" validate:"required"`
	Quantity  int                `json:"quantity" validate:"required"`
	Type      model.StockLogType `json:"type" validate:"required"`
	BuyPrice  *decimal.Decimal   `json:"buy_price" validate:"omitempty,decimal_gte0"`
	Notes     string             `json:"notes"`
}

type StockLogFilter = repository.StockLogFilter

type StockService interface {
	RecordMovement(ctx context.Context, actor Actor, req RecordMovementRequest) (*model.StockLog, error)
	ReverseMovement(ctx context.Context, actor Actor, logID uint) (*model.StockLog, error)
	UpdateNotes(ctx context.Context, actor Actor, logID uint, notes string) (*model.StockLog, error)
	GetLog(ctx context.Context, logID uint) (*model.StockLog, error)
	ListLogs(ctx context.Context, filter StockLogFilter) ([]model.StockLog, error)
}

type stockService struct {
	tx     *database.TxRunner
	ledger *ledger
	logs   repository.StockLogRepository
	events events.Publisher
	log    *zap.Logger
}

func NewStockService(tx *database.TxRunner, products repository.ProductRepository, logs repository.StockLogRepository, pub events.Publisher, log *zap.Logger) StockService {
	return &stockService{
		tx:     tx,
		ledger: &ledger{products: products, logs: logs},
		logs:   logs,
		events: pub,
		log:    log,
	}
}

func (s *stockService) RecordMovement(ctx context.Context, actor Actor, req RecordMovementRequest) (entry *model.StockLog, err error) {
	ctx, span := tracer.Start(ctx, "stock.record", trace.WithAttributes(
		attribute.Int("product.id", int(req.ProductID)),
		attribute.Int("stock.quantity", req.Quantity),
		attribute.String("stock.type", string(req.Type)),
	))
	defer func() { observability.EndSpan(span, err) }()

	// 1. Validasi Input
	if err := validator.Validate(req); err != nil {
		return nil, err
	}
	if !req.Type.Valid() {
		return nil, apperror.Validation("unknown movement type %q", req.Type)
	}
	if !req.Type.AcceptsQuantity(req.Quantity) {
		return nil, apperror.Validation("quantity %d has the wrong sign for %s", req.Quantity, req.Type)
	}
	if req.Type == model.StockPurchase && req.BuyPrice == nil {
		return nil, apperror.Validation("buy_price is required for %s", model.StockPurchase)
	}

	// 2. Apply atomically
	var product *model.Product
	err = s.tx.Run(ctx, "stock.record", func(tx *gorm.DB) error {
		e, p, err := s.ledger.apply(tx, actor, movement{
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
			Type:      req.Type,
			BuyPrice:  req.BuyPrice,
			Notes:     req.Notes,
		})
		if err != nil {
			return err
		}
		entry, product = e, p
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 3. Broadcast after commit
	events.Notify(ctx, s.events, s.log, stockEvent("movement_recorded", actor, entry, product,
		fmt.Sprintf("%s recorded %s %+d for '%s'", actor.display(), entry.Type, entry.Quantity, product.Name)))

	return entry, nil
}

func (s *stockService) ReverseMovement(ctx context.Context, actor Actor, logID uint) (reversal *model.StockLog, err error) {
	ctx, span := tracer.Start(ctx, "stock.reverse", trace.WithAttributes(attribute.Int("stock_log.id", int(logID))))
	defer func() { observability.EndSpan(span, err) }()

	var product *model.Product
	err = s.tx.Run(ctx, "stock.reverse", func(tx *gorm.DB) error {
		// 1. Lock the original entry
		original, err := s.logs.FindByIDForUpdate(tx, logID)
		if err != nil {
			return err
		}
		if original.IsReversed() {
			return apperror.Conflict("stock log %d is already reversed", logID)
		}
		if original.ReversalOfID != nil {
			return apperror.Conflict("stock log %d is itself a reversal of %d", logID, *original.ReversalOfID)
		}
		// order movements are undone by cancelling or deleting the order
		if original.OrderID != nil {
			return apperror.Conflict("stock log %d belongs to order %d", logID, *original.OrderID)
		}

		// 2. Compensating entry under the same floor check
		e, p, err := s.ledger.apply(tx, actor, movement{
			ProductID:  original.ProductID,
			Quantity:   -original.Quantity,
			Type:       model.StockAdjustment,
			Notes:      fmt.Sprintf("reversal of stock log #%d", original.ID),
			ReversalOf: &original.ID,
		})
		if err != nil {
			return err
		}

		// 3. Mark the original
		if err := s.logs.MarkReversed(tx, original.ID, e.ID, e.CreatedAt); err != nil {
			return err
		}

		reversal, product = e, p
		return nil
	})
	if err != nil {
		return nil, err
	}

	events.Notify(ctx, s.events, s.log, stockEvent("movement_reversed", actor, reversal, product,
		fmt.Sprintf("%s reversed stock log #%d for '%s'", actor.display(), logID, product.Name)))

	return reversal, nil
}

func (s *stockService) UpdateNotes(ctx context.Context, actor Actor, logID uint, notes string) (*model.StockLog, error) {
	err := s.tx.Run(ctx, "stock.notes", func(tx *gorm.DB) error {
		return s.logs.UpdateNotes(tx, logID, notes)
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("stock log notes updated", zap.Uint("stock_log_id", logID), zap.String("by", actor.audit()))
	return s.logs.FindByID(ctx, logID)
}

func (s *stockService) GetLog(ctx context.Context, logID uint) (*model.StockLog, error) {
	return s.logs.FindByID(ctx, logID)
}

func (s *stockService) ListLogs(ctx context.Context, filter StockLogFilter) ([]model.StockLog, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, apperror.Validation("unknown movement type %q", filter.Type)
	}
	return s.logs.FindAll(ctx, filter)
}

func stockEvent(action string, actor Actor, entry *model.StockLog, product *model.Product, message string) events.Event {
	return events.Event{
		Type:   events.TypeStockUpdate,
		Action: action,
		Key:    productKey(product.ID),
		Data: map[string]interface{}{
			"stock_log_id": entry.ID,
			"product_id":   product.ID,
			"sku":          product.SKU,
			"name":         product.Name,
			"type":         entry.Type,
			"quantity":     entry.Quantity,
			"old_stock":    entry.StockBefore,
			"new_stock":    entry.StockAfter,
		},
		User:       actor.event(),
		Message:    message,
		OccurredAt: time.Now().UTC(),
	}
}
