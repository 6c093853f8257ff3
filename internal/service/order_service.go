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

type OrderItemInput struct {
	ProductID uint `json:"product_id" validate:"required"`
	Quantity  int  `json:"quantity" validate:"gt=0"`
}

type CreateOrderRequest struct {
	CustomerName  *string          `json:"customer_name" validate:"omitempty,max=255"`
	PaymentMethod string           `json:"payment_method" validate:"omitempty,max=20"`
	Items         []OrderItemInput `json:"items" validate:"dive"`
}

type UpdateOrderRequest struct {
	Status        *model.OrderStatus `json:"status"`
	AmountPaid    *decimal.Decimal   `json:"amount_paid" validate:"omitempty,decimal_gte0"`
	PaymentMethod *string            `json:"payment_method" validate:"omitempty,max=20"`
	CustomerName  *string            `json:"customer_name" validate:"omitempty,max=255"`
}

type AddOrderItemRequest struct {
	ProductID uint             `json:"product_id" validate:"required"`
	Quantity  int              `json:"quantity" validate:"gt=0"`
	SellPrice *decimal.Decimal `json:"sell_price" validate:"omitempty,decimal_gte0"`
}

type UpdateOrderItemRequest struct {
	Quantity  *int             `json:"quantity" validate:"omitempty,gt=0"`
	SellPrice *decimal.Decimal `json:"sell_price" validate:"omitempty,decimal_gte0"`
}

type OrderFilter = repository.OrderFilter

type OrderService interface {
	CreateOrder(ctx context.Context, actor Actor, req CreateOrderRequest) (*model.Order, error)
	UpdateOrder(ctx context.Context, actor Actor, id uint, req UpdateOrderRequest) (*model.Order, error)
	DeleteOrder(ctx context.Context, actor Actor, id uint) error
	AddOrderItem(ctx context.Context, actor Actor, orderID uint, req AddOrderItemRequest) (*model.OrderItem, error)
	UpdateOrderItem(ctx context.Context, actor Actor, itemID uint, req UpdateOrderItemRequest) (*model.OrderItem, error)
	DeleteOrderItem(ctx context.Context, actor Actor, itemID uint) error
	GetOrder(ctx context.Context, id uint) (*model.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]model.Order, error)
}

type orderService struct {
	tx       *database.TxRunner
	ledger   *ledger
	orders   repository.OrderRepository
	products repository.ProductRepository
	events   events.Publisher
	log      *zap.Logger
	now      func() time.Time
}

func NewOrderService(tx *database.TxRunner, orders repository.OrderRepository, products repository.ProductRepository, logs repository.StockLogRepository, pub events.Publisher, log *zap.Logger) OrderService {
	return &orderService{
		tx:       tx,
		ledger:   &ledger{products: products, logs: logs},
		orders:   orders,
		products: products,
		events:   pub,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *orderService) CreateOrder(ctx context.Context, actor Actor, req CreateOrderRequest) (order *model.Order, err error) {
	ctx, span := tracer.Start(ctx, "order.create", trace.WithAttributes(attribute.Int("order.items", len(req.Items))))
	defer func() { observability.EndSpan(span, err) }()

	// 1. Validasi
	if len(req.Items) == 0 {
		return nil, apperror.Validation("order must have at least one item")
	}
	if err := validator.Validate(req); err != nil {
		return nil, err
	}

	var created *model.Order
	err = s.tx.Run(ctx, "order.create", func(tx *gorm.DB) error {
		// 2. Snapshot prices
		items := make([]model.OrderItem, 0, len(req.Items))
		total := decimal.Zero
		for _, in := range req.Items {
			product, err := s.products.Get(tx, in.ProductID)
			if err != nil {
				return err
			}
			if !product.IsActive {
				return apperror.Validation("product '%s' is not for sale", product.Name)
			}
			item := snapshotItem(product, in.Quantity, nil)
			total = total.Add(item.Subtotal)
			items = append(items, item)
		}

		// 3. Header, then items, then the number
		o := &model.Order{
			CustomerName:  cleanName(req.CustomerName),
			CashierID:     actor.ID,
			OrderDate:     s.now(),
			Status:        model.OrderPending,
			TotalAmount:   total,
			AmountPaid:    decimal.Zero,
			ChangeAmount:  decimal.Zero,
			PaymentMethod: normalizePaymentMethod(req.PaymentMethod),
		}
		o.CreatedBy = actor.audit()
		o.UpdatedBy = actor.audit()
		if err := s.orders.Create(tx, o); err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = o.ID
			if err := s.orders.CreateItem(tx, &items[i]); err != nil {
				return err
			}
		}
		number := model.FormatOrderNumber(o.ID)
		if err := s.orders.AssignNumber(tx, o.ID, number); err != nil {
			return err
		}
		o.OrderNumber = &number
		o.Items = items

		created = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	events.Notify(ctx, s.events, s.log, orderEvent("order_created", actor, created,
		fmt.Sprintf("%s opened order %s", actor.display(), created.Number())))
	return created, nil
}

func (s *orderService) UpdateOrder(ctx context.Context, actor Actor, id uint, req UpdateOrderRequest) (order *model.Order, err error) {
	ctx, span := tracer.Start(ctx, "order.update", trace.WithAttributes(attribute.Int("order.id", int(id))))
	defer func() { observability.EndSpan(span, err) }()

	if err := validator.Validate(req); err != nil {
		return nil, err
	}

	var (
		updated *model.Order
		action  string
	)
	err = s.tx.Run(ctx, "order.update", func(tx *gorm.DB) error {
		// 1. Re-read under lock; the stored status is the one we transition from
		o, err := s.orders.FindByIDForUpdate(tx, id)
		if err != nil {
			return err
		}
		if o.Status == model.OrderCancelled {
			return apperror.Conflict("order %s is cancelled", o.Number())
		}

		// 2. Transition table
		from := o.Status
		effect := model.EffectNone
		if req.Status != nil {
			if effect, err = from.Transition(*req.Status); err != nil {
				return err
			}
			o.Status = *req.Status
		}

		// 3. Plain field edits
		if req.CustomerName != nil {
			o.CustomerName = cleanName(req.CustomerName)
		}
		if req.PaymentMethod != nil {
			o.PaymentMethod = normalizePaymentMethod(*req.PaymentMethod)
		}
		if req.AmountPaid != nil {
			o.AmountPaid = req.AmountPaid.Round(2)
		}

		// 4. Stock side effects
		act := "order_updated"
		switch effect {
		case model.EffectSale:
			if len(o.Items) == 0 {
				return apperror.Validation("cannot complete order %s without items", o.Number())
			}
			if o.AmountPaid.LessThan(o.TotalAmount) {
				return apperror.Validation("insufficient payment: paid %s, total %s",
					o.AmountPaid.StringFixed(2), o.TotalAmount.StringFixed(2))
			}
			if err := s.sell(tx, actor, o, o.Items); err != nil {
				return err
			}
			o.ChangeAmount = o.AmountPaid.Sub(o.TotalAmount)
			act = "order_completed"
		case model.EffectRestock:
			if err := s.restock(tx, actor, o, "cancelled"); err != nil {
				return err
			}
			act = "order_cancelled"
		default:
			if from == model.OrderPending && o.Status == model.OrderCancelled {
				act = "order_cancelled"
			}
			if o.Status == model.OrderCompleted && req.AmountPaid != nil {
				if o.AmountPaid.LessThan(o.TotalAmount) {
					return apperror.Validation("insufficient payment: paid %s, total %s",
						o.AmountPaid.StringFixed(2), o.TotalAmount.StringFixed(2))
				}
				o.ChangeAmount = o.AmountPaid.Sub(o.TotalAmount)
			}
		}

		o.UpdatedBy = actor.audit()
		if err := s.orders.Save(tx, o); err != nil {
			return err
		}

		updated, action = o, act
		return nil
	})
	if err != nil {
		return nil, err
	}

	events.Notify(ctx, s.events, s.log, orderEvent(action, actor, updated,
		fmt.Sprintf("%s updated order %s to %s", actor.display(), updated.Number(), updated.Status)))
	return updated, nil
}

func (s *orderService) DeleteOrder(ctx context.Context, actor Actor, id uint) (err error) {
	ctx, span := tracer.Start(ctx, "order.delete", trace.WithAttributes(attribute.Int("order.id", int(id))))
	defer func() { observability.EndSpan(span, err) }()

	var deleted *model.Order
	err = s.tx.Run(ctx, "order.delete", func(tx *gorm.DB) error {
		o, err := s.orders.FindByIDForUpdate(tx, id)
		if err != nil {
			return err
		}

		// Sold goods come back before the record disappears.
		if o.Status == model.OrderCompleted {
			if err := s.restock(tx, actor, o, "deleted"); err != nil {
				return err
			}
		}

		if err := s.orders.Delete(tx, o.ID); err != nil {
			return err
		}
		deleted = o
		return nil
	})
	if err != nil {
		return err
	}

	events.Notify(ctx, s.events, s.log, orderEvent("order_deleted", actor, deleted,
		fmt.Sprintf("%s deleted order %s", actor.display(), deleted.Number())))
	return nil
}

func (s *orderService) AddOrderItem(ctx context.Context, actor Actor, orderID uint, req AddOrderItemRequest) (item *model.OrderItem, err error) {
	ctx, span := tracer.Start(ctx, "order.item.add", trace.WithAttributes(
		attribute.Int("order.id", int(orderID)),
		attribute.Int("product.id", int(req.ProductID)),
	))
	defer func() { observability.EndSpan(span, err) }()

	if err := validator.Validate(req); err != nil {
		return nil, err
	}

	var (
		added *model.OrderItem
		order *model.Order
	)
	err = s.tx.Run(ctx, "order.item.add", func(tx *gorm.DB) error {
		o, err := s.orders.FindByIDForUpdate(tx, orderID)
		if err != nil {
			return err
		}
		if o.Status == model.OrderCancelled {
			return apperror.Conflict("cannot modify non-PENDING order %s", o.Number())
		}

		product, err := s.products.Get(tx, req.ProductID)
		if err != nil {
			return err
		}
		if !product.IsActive {
			return apperror.Validation("product '%s' is not for sale", product.Name)
		}

		it := snapshotItem(product, req.Quantity, req.SellPrice)
		it.OrderID = o.ID
		if err := s.orders.CreateItem(tx, &it); err != nil {
			return err
		}

		// A walk-up item on a paid ticket is sold on the spot.
		if o.Status == model.OrderCompleted {
			if err := s.sell(tx, actor, o, []model.OrderItem{it}); err != nil {
				return err
			}
		}

		o.TotalAmount = o.TotalAmount.Add(it.Subtotal)
		if o.Status == model.OrderCompleted {
			// payment stays as recorded; shortfall shows up as balance_due
			o.ChangeAmount = decimal.Max(o.AmountPaid.Sub(o.TotalAmount), decimal.Zero)
		}
		o.UpdatedBy = actor.audit()
		if err := s.orders.Save(tx, o); err != nil {
			return err
		}

		o.Items = append(o.Items, it)
		added, order = &it, o
		return nil
	})
	if err != nil {
		return nil, err
	}

	events.Notify(ctx, s.events, s.log, orderEvent("order_item_added", actor, order,
		fmt.Sprintf("%s added %d item(s) to order %s", actor.display(), added.Quantity, order.Number())))
	return added, nil
}

func (s *orderService) UpdateOrderItem(ctx context.Context, actor Actor, itemID uint, req UpdateOrderItemRequest) (item *model.OrderItem, err error) {
	ctx, span := tracer.Start(ctx, "order.item.update", trace.WithAttributes(attribute.Int("order_item.id", int(itemID))))
	defer func() { observability.EndSpan(span, err) }()

	if err := validator.Validate(req); err != nil {
		return nil, err
	}

	var (
		changed *model.OrderItem
		order   *model.Order
	)
	err = s.tx.Run(ctx, "order.item.update", func(tx *gorm.DB) error {
		o, it, err := s.lockItem(tx, itemID)
		if err != nil {
			return err
		}

		old := it.Subtotal
		if req.Quantity != nil {
			it.Quantity = *req.Quantity
		}
		if req.SellPrice != nil {
			it.SellPrice = req.SellPrice.Round(2)
		}
		it.Subtotal = model.LineSubtotal(it.Quantity, it.SellPrice)
		if err := s.orders.SaveItem(tx, it); err != nil {
			return err
		}

		o.TotalAmount = o.TotalAmount.Add(it.Subtotal.Sub(old))
		o.UpdatedBy = actor.audit()
		if err := s.orders.Save(tx, o); err != nil {
			return err
		}

		changed, order = it, o
		return nil
	})
	if err != nil {
		return nil, err
	}

	events.Notify(ctx, s.events, s.log, orderEvent("order_item_updated", actor, order,
		fmt.Sprintf("%s changed an item on order %s", actor.display(), order.Number())))
	return changed, nil
}

func (s *orderService) DeleteOrderItem(ctx context.Context, actor Actor, itemID uint) (err error) {
	ctx, span := tracer.Start(ctx, "order.item.delete", trace.WithAttributes(attribute.Int("order_item.id", int(itemID))))
	defer func() { observability.EndSpan(span, err) }()

	var order *model.Order
	err = s.tx.Run(ctx, "order.item.delete", func(tx *gorm.DB) error {
		o, it, err := s.lockItem(tx, itemID)
		if err != nil {
			return err
		}
		if err := s.orders.DeleteItem(tx, it.ID); err != nil {
			return err
		}

		o.TotalAmount = o.TotalAmount.Sub(it.Subtotal)
		o.UpdatedBy = actor.audit()
		if err := s.orders.Save(tx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return err
	}

	events.Notify(ctx, s.events, s.log, orderEvent("order_item_deleted", actor, order,
		fmt.Sprintf("%s removed an item from order %s", actor.display(), order.Number())))
	return nil
}

func (s *orderService) GetOrder(ctx context.Context, id uint) (*model.Order, error) {
	return s.orders.FindByID(ctx, id)
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderFilter) ([]model.Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperror.Validation("unknown order status %q", filter.Status)
	}
	return s.orders.FindAll(ctx, filter)
}

// lockItem locks the parent order first, then finds the item among the
// order's own rows so the edit sees the committed state.
func (s *orderService) lockItem(tx *gorm.DB, itemID uint) (*model.Order, *model.OrderItem, error) {
	ref, err := s.orders.FindItemByID(tx, itemID)
	if err != nil {
		return nil, nil, err
	}
	o, err := s.orders.FindByIDForUpdate(tx, ref.OrderID)
	if err != nil {
		return nil, nil, err
	}
	if !o.Status.ItemsEditable() {
		return nil, nil, apperror.Conflict("cannot modify non-PENDING order %s", o.Number())
	}
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return o, &o.Items[i], nil
		}
	}
	return nil, nil, apperror.NotFound("order item %d not found", itemID)
}

// sell writes one SALE per item. Any shortfall aborts the whole transaction.
func (s *orderService) sell(tx *gorm.DB, actor Actor, o *model.Order, items []model.OrderItem) error {
	for _, it := range items {
		if _, _, err := s.ledger.apply(tx, actor, movement{
			ProductID: it.ProductID,
			Quantity:  -it.Quantity,
			Type:      model.StockSale,
			OrderID:   &o.ID,
			Notes:     fmt.Sprintf("order %s", o.Number()),
		}); err != nil {
			return err
		}
	}
	return nil
}

// restock returns every item of a completed order with an ADJUSTMENT each.
func (s *orderService) restock(tx *gorm.DB, actor Actor, o *model.Order, reason string) error {
	for _, it := range o.Items {
		if _, _, err := s.ledger.apply(tx, actor, movement{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Type:      model.StockAdjustment,
			OrderID:   &o.ID,
			Notes:     fmt.Sprintf("order %s %s", o.Number(), reason),
		}); err != nil {
			return err
		}
	}
	return nil
}

func snapshotItem(p *model.Product, qty int, sellPrice *decimal.Decimal) model.OrderItem {
	price := p.SellPrice
	if sellPrice != nil {
		price = sellPrice.Round(2)
	}
	return model.OrderItem{
		ProductID: p.ID,
		Quantity:  qty,
		BuyPrice:  p.BuyPrice,
		SellPrice: price,
		Subtotal:  model.LineSubtotal(qty, price),
	}
}

func cleanName(name *string) *string {
	if name == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*name)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func orderEvent(action string, actor Actor, o *model.Order, message string) events.Event {
	return events.Event{
		Type:   events.TypeOrderUpdate,
		Action: action,
		Key:    orderKey(o.ID),
		Data: map[string]interface{}{
			"id":            o.ID,
			"order_number":  o.Number(),
			"status":        o.Status,
			"total_amount":  o.TotalAmount,
			"amount_paid":   o.AmountPaid,
			"change_amount": o.ChangeAmount,
			"balance_due":   o.BalanceDue(),
			"items":         len(o.Items),
			"cashier_id":    o.CashierID,
		},
		User:    actor.event(),
		Message: message,
	}
}
