package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order statuses.
const (
	OrderPending    = "pending"
	OrderPaid       = "paid"
	OrderProcessing = "processing"
	OrderShipped    = "shipped"
	OrderDelivered  = "delivered"
	OrderCancelled  = "cancelled"
	OrderRefunded   = "refunded"
	OrderFailed     = "failed"
)

// AddressSnapshot is the immutable copy of an address-book entry taken at
// order-creation time. Stored as a JSON column; later edits to the user's
// addresses never touch it.
type AddressSnapshot struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Company      string `json:"company,omitempty"`
	AddressLine1 string `json:"address_line_1"`
	AddressLine2 string `json:"address_line_2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
	Phone        string `json:"phone,omitempty"`
}

type Order struct {
	BaseModel
	OrderNumber string    `gorm:"uniqueIndex;size:20" json:"order_number"`
	UserID      uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	User        *User     `json:"user,omitempty"`

	Subtotal       decimal.Decimal `gorm:"type:numeric" json:"subtotal"`
	TaxAmount      decimal.Decimal `gorm:"type:numeric" json:"tax_amount"`
	ShippingCost   decimal.Decimal `gorm:"type:numeric" json:"shipping_cost"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric" json:"discount_amount"`
	TotalAmount    decimal.Decimal `gorm:"type:numeric" json:"total_amount"`

	Status string `gorm:"default:pending;index" json:"status"`

	BillingAddress  AddressSnapshot `gorm:"serializer:json" json:"billing_address"`
	ShippingAddress AddressSnapshot `gorm:"serializer:json" json:"shipping_address"`

	CouponID *uuid.UUID `gorm:"type:uuid" json:"coupon_id"`
	Coupon   *Coupon    `json:"coupon,omitempty"`

	ShippedAt   *time.Time `json:"shipped_at"`
	DeliveredAt *time.Time `json:"delivered_at"`

	Notes string `json:"notes"`

	Items    []OrderItem `json:"items,omitempty"`
	Payments []Payment   `json:"payments,omitempty"`
}

type OrderItem struct {
	BaseModel
	OrderID   uuid.UUID  `gorm:"type:uuid;index" json:"order_id"`
	ProductID *uuid.UUID `gorm:"type:uuid" json:"product_id"`

	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"type:numeric" json:"unit_price"`
	TotalPrice decimal.Decimal `gorm:"type:numeric" json:"total_price"`

	// Snapshot of product data at time of order.
	ProductName string `json:"product_name"`
	ProductSKU  string `json:"product_sku"`
}

// Payment statuses.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
	PaymentCancelled = "cancelled"
	PaymentRefunded  = "refunded"
)

// Payment is a settlement attempt against an order.
type Payment struct {
	BaseModel
	OrderID   uuid.UUID `gorm:"type:uuid;index" json:"order_id"`
	Order     *Order    `json:"order,omitempty"`
	PaymentID string    `gorm:"uniqueIndex;size:100" json:"payment_id"`

	Method string `json:"method"`
	Status string `gorm:"default:pending" json:"status"`

	Amount   decimal.Decimal `gorm:"type:numeric" json:"amount"`
	Currency string          `gorm:"default:USD" json:"currency"`

	Gateway              string                 `json:"gateway"`
	GatewayTransactionID string                 `json:"gateway_transaction_id"`
	GatewayResponse      map[string]interface{} `gorm:"serializer:json" json:"gateway_response"`

	ProcessedAt *time.Time `json:"processed_at"`
}
