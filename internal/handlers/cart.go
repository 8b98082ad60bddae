package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/brickaria/internal/middleware"
	"github.com/example/brickaria/internal/models"
	"github.com/example/brickaria/internal/validation"
)

// SessionAppliedCoupon is the session key holding the coupon code applied
// to the cart, consumed at checkout.
const SessionAppliedCoupon = "applied_coupon"

// CartHandler manages the user's cart and the coupon applied to it.
type CartHandler struct {
	db       *gorm.DB
	sessions *session.Store
}

// NewCartHandler constructs CartHandler.
func NewCartHandler(db *gorm.DB, sessions *session.Store) *CartHandler {
	return &CartHandler{db: db, sessions: sessions}
}

func (h *CartHandler) userCart(userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := h.db.Where(models.Cart{UserID: userID}).
		Preload("Items.Product").
		FirstOrCreate(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// GetCart returns the cart with items and subtotal.
func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	cart, err := h.userCart(userID)
	if err != nil {
		return err
	}

	sess, err := h.sessions.Get(c)
	if err != nil {
		return err
	}
	coupon, _ := sess.Get(SessionAppliedCoupon).(string)

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"cart":           cart,
			"subtotal":       cart.Subtotal(),
			"applied_coupon": coupon,
		},
	})
}

type addCartItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

// AddItem adds a product to the cart, merging quantities for duplicates.
func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req addCartItemRequest
	if err := validation.BindAndValidate(c, &req); err != nil {
		return err
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product_id")
	}

	var product models.Product
	if err := h.db.First(&product, "id = ? AND is_active = ?", productID, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return err
	}
	if !product.InStock() {
		return fiber.NewError(fiber.StatusBadRequest, "product is out of stock")
	}

	cart, err := h.userCart(userID)
	if err != nil {
		return err
	}

	var item models.CartItem
	err = h.db.Where(models.CartItem{CartID: cart.ID, ProductID: product.ID}).
		FirstOrCreate(&item).Error
	if err != nil {
		return err
	}

	item.Quantity += req.Quantity
	if err := h.db.Model(&item).Update("quantity", item.Quantity).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": item})
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

// UpdateItem sets the quantity on a cart item.
func (h *CartHandler) UpdateItem(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	itemID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req updateCartItemRequest
	if err := validation.BindAndValidate(c, &req); err != nil {
		return err
	}

	cart, err := h.userCart(userID)
	if err != nil {
		return err
	}

	res := h.db.Model(&models.CartItem{}).
		Where("id = ? AND cart_id = ?", itemID, cart.ID).
		Update("quantity", req.Quantity)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "cart item not found")
	}

	return c.JSON(fiber.Map{"success": true})
}

// RemoveItem deletes a cart item.
func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	itemID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	cart, err := h.userCart(userID)
	if err != nil {
		return err
	}

	if err := h.db.Delete(&models.CartItem{}, "id = ? AND cart_id = ?", itemID, cart.ID).Error; err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

type applyCouponRequest struct {
	Code string `json:"code" validate:"required"`
}

// ApplyCoupon validates a coupon against the current cart total and, when
// valid, stashes the code in the session for checkout. Validation never
// touches usage counters.
func (h *CartHandler) ApplyCoupon(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req applyCouponRequest
	if err := validation.BindAndValidate(c, &req); err != nil {
		return err
	}

	var coupon models.Coupon
	if err := h.db.Where("code = ?", req.Code).First(&coupon).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "coupon not found")
		}
		return err
	}

	cart, err := h.userCart(userID)
	if err != nil {
		return err
	}

	subtotal := cart.Subtotal()
	valid, reason := coupon.Validate(h.db, userID, subtotal, time.Now())
	if !valid {
		return fiber.NewError(fiber.StatusBadRequest, reason)
	}

	sess, err := h.sessions.Get(c)
	if err != nil {
		return err
	}
	sess.Set(SessionAppliedCoupon, coupon.Code)
	if err := sess.Save(); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"code":     coupon.Code,
			"discount": coupon.DiscountFor(subtotal),
		},
	})
}

// RemoveCoupon clears the applied coupon from the session.
func (h *CartHandler) RemoveCoupon(c *fiber.Ctx) error {
	if _, ok := middleware.GetCurrentUserID(c); !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	sess, err := h.sessions.Get(c)
	if err != nil {
		return err
	}
	sess.Delete(SessionAppliedCoupon)
	if err := sess.Save(); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true})
}
