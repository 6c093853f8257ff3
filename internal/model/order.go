package model

import (
	"fmt"
	"time"

	"frozen-pos/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderCancelled OrderStatus = "CANCELLED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// StockEffect is what a status transition does to inventory.
type StockEffect int

const (
	EffectNone    StockEffect = iota
	EffectSale                // decrement stock, one SALE log per item
	EffectRestock             // increment stock, one ADJUSTMENT log per item
)

// Transition validates moving an order from s to next and returns the stock
// side effect the move requires.
//
//	PENDING   -> PENDING    none (field edits only)
//	PENDING   -> COMPLETED  sale
//	PENDING   -> CANCELLED  none, nothing was sold
//	COMPLETED -> CANCELLED  restock
//
// Everything else is a conflict, including completing twice.
func (s OrderStatus) Transition(next OrderStatus) (StockEffect, error) {
	if !next.Valid() {
		return EffectNone, apperror.Validation("unknown order status %q", next)
	}

	switch s {
	case OrderPending:
		switch next {
		case OrderPending:
			return EffectNone, nil
		case OrderCompleted:
			return EffectSale, nil
		case OrderCancelled:
			return EffectNone, nil
		}
	case OrderCompleted:
		switch next {
		case OrderCancelled:
			return EffectRestock, nil
		case OrderCompleted:
			return EffectNone, apperror.Conflict("order is already completed")
		}
	case OrderCancelled:
		return EffectNone, apperror.Conflict("order is cancelled")
	}

	return EffectNone, apperror.Conflict("cannot move order from %s to %s", s, next)
}

// ItemsEditable reports whether line items may be changed or removed.
func (s OrderStatus) ItemsEditable() bool {
	return s == OrderPending
}

type Order struct {
	Record
	OrderNumber   *string         `gorm:"type:varchar(32);uniqueIndex" json:"order_number"`
	CustomerName  *string         `gorm:"type:varchar(255)" json:"customer_name"`
	CashierID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"cashier_id"`
	OrderDate     time.Time       `gorm:"not null;index" json:"order_date"`
	Status        OrderStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	AmountPaid    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount_paid"`
	ChangeAmount  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"change_amount"`
	PaymentMethod string          `gorm:"type:varchar(20)" json:"payment_method"`
	Items         []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// FormatOrderNumber pads to three digits; larger ids simply grow longer.
func FormatOrderNumber(id uint) string {
	return fmt.Sprintf("ORD-%03d", id)
}

// Number returns the order number, falling back to the id-derived form.
func (o *Order) Number() string {
	if o.OrderNumber != nil {
		return *o.OrderNumber
	}
	return FormatOrderNumber(o.ID)
}

// ItemsTotal sums the snapshotted subtotals of the loaded items.
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Subtotal)
	}
	return total
}

// BalanceDue is what a completed ticket still owes after items were added
// past the payment. Zero for pending and cancelled orders.
func (o *Order) BalanceDue() decimal.Decimal {
	if o.Status != OrderCompleted || !o.AmountPaid.LessThan(o.TotalAmount) {
		return decimal.Zero
	}
	return o.TotalAmount.Sub(o.AmountPaid)
}

// OrderItem snapshots price at time of sale; later catalogue price changes
// never touch it.
type OrderItem struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   uint            `gorm:"not null;index" json:"order_id"`
	ProductID uint            `gorm:"not null;index" json:"product_id"`
	Product   *Product        `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	BuyPrice  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"buy_price"`
	SellPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"sell_price"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// LineSubtotal is quantity × unit price, rounded to cents.
func LineSubtotal(qty int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(qty))).Round(2)
}
