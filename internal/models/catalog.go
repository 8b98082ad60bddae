package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Category struct {
	BaseModel
	Name        string `gorm:"uniqueIndex" json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type Product struct {
	BaseModel
	Name             string          `json:"name"`
	SKU              string          `gorm:"uniqueIndex" json:"sku"`
	ShortDescription string          `json:"short_description"`
	Price            decimal.Decimal `gorm:"type:numeric" json:"price"`
	SalePrice        decimal.NullDecimal `gorm:"type:numeric" json:"sale_price"`
	StockQuantity    int             `json:"stock_quantity"`
	CategoryID       *uuid.UUID      `gorm:"type:uuid;index" json:"category_id"`
	Category         *Category       `json:"category,omitempty"`
	IsActive         bool            `gorm:"default:true" json:"is_active"`
	IsFeatured       bool            `json:"is_featured"`
	IsDigital        bool            `json:"is_digital"`
}

// CurrentPrice returns the sale price when one is set.
func (p *Product) CurrentPrice() decimal.Decimal {
	if p.SalePrice.Valid {
		return p.SalePrice.Decimal
	}
	return p.Price
}

// InStock reports whether the product can be added to a cart.
func (p *Product) InStock() bool {
	return p.StockQuantity > 0
}
