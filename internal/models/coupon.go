package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Coupon discount types.
const (
	CouponFixed      = "fixed"
	CouponPercentage = "percentage"
)

// Coupon is a rule-bound discount code applied at checkout.
type Coupon struct {
	BaseModel
	Code        string `gorm:"uniqueIndex" json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`

	DiscountType  string              `json:"discount_type"`
	DiscountValue decimal.Decimal     `gorm:"type:numeric" json:"discount_value"`
	MinimumAmount decimal.Decimal     `gorm:"type:numeric" json:"minimum_amount"`
	MaxDiscount   decimal.NullDecimal `gorm:"type:numeric" json:"max_discount"`

	UsageLimit        *int `json:"usage_limit"`
	UsageLimitPerUser *int `json:"usage_limit_per_user"`
	UsedCount         int  `json:"used_count"`

	ValidFrom  time.Time `json:"valid_from"`
	ValidUntil time.Time `json:"valid_until"`

	FirstOrderOnly bool `json:"first_order_only"`
	IsActive       bool `gorm:"default:true" json:"is_active"`

	// Optional eligibility restrictions; empty means the coupon applies
	// storewide. Carried on the model, not enforced by Validate.
	Categories []Category `gorm:"many2many:coupon_categories" json:"categories,omitempty"`
	Products   []Product  `gorm:"many2many:coupon_products" json:"products,omitempty"`
}

// Validate checks whether the coupon applies to the given cart. It reads
// state only; incrementing used_count after a successful order is the
// caller's job. Failure reasons are checked in a fixed order and the first
// applicable one wins.
func (c *Coupon) Validate(db *gorm.DB, userID uuid.UUID, cartTotal decimal.Decimal, now time.Time) (bool, string) {
	if !c.IsActive {
		return false, "Coupon is not active"
	}

	if now.Before(c.ValidFrom) || now.After(c.ValidUntil) {
		return false, "Coupon has expired"
	}

	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return false, "Coupon usage limit reached"
	}

	if cartTotal.LessThan(c.MinimumAmount) {
		return false, fmt.Sprintf("Minimum order amount is $%s", c.MinimumAmount.StringFixed(2))
	}

	if c.FirstOrderOnly && userID != uuid.Nil {
		var count int64
		db.Model(&Order{}).Where("user_id = ?", userID).Count(&count)
		if count > 0 {
			return false, "Coupon is for first orders only"
		}
	}

	return true, "Valid"
}

// DiscountFor computes the discount amount against a subtotal: fixed value
// or percentage clamped by MaxDiscount, never more than the subtotal.
func (c *Coupon) DiscountFor(subtotal decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch c.DiscountType {
	case CouponPercentage:
		discount = subtotal.Mul(c.DiscountValue).Div(decimal.NewFromInt(100))
		if c.MaxDiscount.Valid && discount.GreaterThan(c.MaxDiscount.Decimal) {
			discount = c.MaxDiscount.Decimal
		}
	default:
		discount = c.DiscountValue
	}

	if discount.GreaterThan(subtotal) {
		return subtotal
	}
	return discount
}
