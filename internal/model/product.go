package model

import (
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	Record
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	SKU         *string         `gorm:"type:varchar(50);uniqueIndex" json:"sku"`
	BuyPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"buy_price"`
	SellPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"sell_price"`
	Stock       int             `gorm:"not null;default:0" json:"stock"`
	Description string          `gorm:"type:text" json:"description"`
	ExpiryDate  time.Time       `gorm:"not null;index" json:"expiry_date"`
	CategoryID  *uint           `gorm:"index" json:"category_id"`
	Category    *Category       `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	ImageURL    string          `gorm:"type:varchar(512)" json:"image_url"`
	IsActive    bool            `gorm:"not null" json:"is_active"`
}

// GeneratedSKU is the catalogue code assigned when none was supplied.
func GeneratedSKU(id uint) string {
	return fmt.Sprintf("SKU-%06d", id)
}

var generatedSKUPattern = regexp.MustCompile(`^SKU-\d{6,}$`)

// IsGeneratedSKU reports whether sku has the shape GeneratedSKU produces.
// Those values are reserved for products created without a SKU.
func IsGeneratedSKU(sku string) bool {
	return generatedSKUPattern.MatchString(sku)
}
