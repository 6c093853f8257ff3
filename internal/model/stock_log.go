package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type StockLogType string

const (
	StockPurchase       StockLogType = "PURCHASE"
	StockSale           StockLogType = "SALE"
	StockAdjustment     StockLogType = "ADJUSTMENT"
	StockSpoilage       StockLogType = "SPOILAGE"
	StockReturnCustomer StockLogType = "RETURN_CUSTOMER"
	StockReturnSupplier StockLogType = "RETURN_SUPPLIER"
)

// Valid reports whether t is a known movement type.
func (t StockLogType) Valid() bool {
	switch t {
	case StockPurchase, StockSale, StockAdjustment, StockSpoilage, StockReturnCustomer, StockReturnSupplier:
		return true
	}
	return false
}

// AcceptsQuantity checks the sign of a delta against the movement type.
// Adjustments go either way; everything else has a fixed direction.
func (t StockLogType) AcceptsQuantity(qty int) bool {
	switch t {
	case StockPurchase, StockReturnCustomer:
		return qty > 0
	case StockSale, StockSpoilage, StockReturnSupplier:
		return qty < 0
	default:
		return qty != 0
	}
}

// StockLog is one signed change to a product's stock. Product.Stock is the
// running total of these rows; entries are immutable apart from Notes.
type StockLog struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	ProductID uint             `gorm:"not null;index" json:"product_id"`
	Product   *Product         `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Quantity  int              `gorm:"not null" json:"quantity"`
	Type      StockLogType     `gorm:"type:varchar(20);not null;index" json:"type"`
	BuyPrice  *decimal.Decimal `gorm:"type:decimal(12,2)" json:"buy_price,omitempty"`
	UserID    uuid.UUID        `gorm:"type:uuid;not null" json:"user_id"`
	OrderID   *uint            `gorm:"index" json:"order_id,omitempty"`
	Notes     string           `gorm:"type:text" json:"notes"`

	StockBefore int `gorm:"not null" json:"stock_before"`
	StockAfter  int `gorm:"not null" json:"stock_after"`

	// Reversal bookkeeping: the original entry records who reversed it,
	// the compensating entry points back at the original.
	ReversedAt   *time.Time `json:"reversed_at,omitempty"`
	ReversedByID *uint      `json:"reversed_by_id,omitempty"`
	ReversalOfID *uint      `gorm:"index" json:"reversal_of_id,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (l *StockLog) IsReversed() bool { return l.ReversedAt != nil }
