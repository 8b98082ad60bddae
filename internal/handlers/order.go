package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/brickaria/internal/config"
	"github.com/example/brickaria/internal/middleware"
	"github.com/example/brickaria/internal/models"
	"github.com/example/brickaria/internal/utils"
	"github.com/example/brickaria/internal/validation"
)

// orderNumberAttempts bounds the retry loop on an order-number collision.
const orderNumberAttempts = 3

// OrderHandler manages checkout and order endpoints.
type OrderHandler struct {
	db       *gorm.DB
	cfg      *config.Config
	sessions *session.Store
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(db *gorm.DB, cfg *config.Config, sessions *session.Store) *OrderHandler {
	return &OrderHandler{db: db, cfg: cfg, sessions: sessions}
}

type createOrderRequest struct {
	ShippingAddressID string `json:"shipping_address_id" validate:"required,uuid4"`
	BillingAddressID  string `json:"billing_address_id" validate:"omitempty,uuid4"`
	CouponCode        string `json:"coupon_code"`
	Notes             string `json:"notes"`
}

// CreateOrder places an order from the user's cart: prices items from the
// catalog, applies the coupon (request body first, then the one stashed in
// the session), snapshots the addresses, and clears the cart. The coupon's
// used_count is incremented only after the order persists.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req createOrderRequest
	if err := validation.BindAndValidate(c, &req); err != nil {
		return err
	}

	var cart models.Cart
	if err := h.db.Where("user_id = ?", userID).Preload("Items.Product").First(&cart).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusBadRequest, "cart is empty")
		}
		return err
	}
	if len(cart.Items) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "cart is empty")
	}

	shippingAddr, err := h.loadAddress(userID, req.ShippingAddressID)
	if err != nil {
		return err
	}
	billingAddr := shippingAddr
	if req.BillingAddressID != "" {
		if billingAddr, err = h.loadAddress(userID, req.BillingAddressID); err != nil {
			return err
		}
	}

	sess, err := h.sessions.Get(c)
	if err != nil {
		return err
	}

	couponCode := req.CouponCode
	if couponCode == "" {
		couponCode, _ = sess.Get(SessionAppliedCoupon).(string)
	}

	subtotal := decimal.Zero
	items := make([]models.OrderItem, 0, len(cart.Items))
	for _, ci := range cart.Items {
		if ci.Product == nil {
			continue
		}
		unit := ci.Product.CurrentPrice()
		line := unit.Mul(decimal.NewFromInt(int64(ci.Quantity)))
		subtotal = subtotal.Add(line)
		items = append(items, models.OrderItem{
			ProductID:   &ci.ProductID,
			Quantity:    ci.Quantity,
			UnitPrice:   unit,
			TotalPrice:  line,
			ProductName: ci.Product.Name,
			ProductSKU:  ci.Product.SKU,
		})
	}

	discount := decimal.Zero
	var coupon *models.Coupon
	if couponCode != "" {
		var found models.Coupon
		if err := h.db.Where("code = ?", couponCode).First(&found).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusBadRequest, "coupon not found")
			}
			return err
		}
		valid, reason := found.Validate(h.db, userID, subtotal, time.Now())
		if !valid {
			return fiber.NewError(fiber.StatusBadRequest, reason)
		}
		discount = found.DiscountFor(subtotal)
		coupon = &found
	}

	tax := subtotal.Mul(h.cfg.TaxRate)
	shipping := h.cfg.ShippingFlatRate
	if subtotal.GreaterThanOrEqual(h.cfg.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	total := subtotal.Add(tax).Add(shipping).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	order := models.Order{
		UserID:          userID,
		Subtotal:        subtotal,
		TaxAmount:       tax,
		ShippingCost:    shipping,
		DiscountAmount:  discount,
		TotalAmount:     total,
		Status:          models.OrderPending,
		BillingAddress:  billingAddr.Snapshot(),
		ShippingAddress: shippingAddr.Snapshot(),
		Notes:           req.Notes,
		Items:           items,
	}
	if coupon != nil {
		order.CouponID = &coupon.ID
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := createOrderWithNumber(tx, &order); err != nil {
			return err
		}
		if coupon != nil {
			if err := tx.Model(coupon).
				UpdateColumn("used_count", gorm.Expr("used_count + 1")).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.CartItem{}, "cart_id = ?", cart.ID).Error
	})
	if err != nil {
		return err
	}

	sess.Delete(SessionAppliedCoupon)
	if err := sess.Save(); err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"id":           order.ID,
			"order_number": order.OrderNumber,
			"status":       order.Status,
			"subtotal":     order.Subtotal,
			"tax_amount":   order.TaxAmount,
			"shipping":     order.ShippingCost,
			"discount":     order.DiscountAmount,
			"total":        order.TotalAmount,
		},
	})
}

func (h *OrderHandler) loadAddress(userID uuid.UUID, raw string) (*models.Address, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid address id")
	}

	var addr models.Address
	if err := h.db.First(&addr, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "address not found")
		}
		return nil, err
	}
	return &addr, nil
}

// newOrderNumber is swapped out in tests to force collisions.
var newOrderNumber = utils.GenerateOrderNumber

// createOrderWithNumber assigns a random order number and retries on the
// unlikely unique-constraint collision. Each attempt runs in its own
// savepoint: on Postgres a unique-violation INSERT aborts the enclosing
// transaction, which would turn every retry into a 25P02 error.
func createOrderWithNumber(tx *gorm.DB, order *models.Order) error {
	var err error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		order.OrderNumber, err = newOrderNumber()
		if err != nil {
			return err
		}

		err = tx.Transaction(func(tx *gorm.DB) error {
			return tx.Create(order).Error
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
	}
	return err
}

// ListOrders returns orders for the authenticated user.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	query := h.db.Where("user_id = ?", userID).Model(&models.Order{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	if err := query.Preload("Items").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetOrder returns a single order for the authenticated user.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var order models.Order
	if err := h.db.Preload("Items").Preload("Payments").
		First(&order, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}
