package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/brickaria/internal/models"
	"github.com/example/brickaria/internal/services"
	"github.com/example/brickaria/internal/utils"
	"github.com/example/brickaria/internal/validation"
)

// AdminHandler exposes staff-only order and coupon management.
type AdminHandler struct {
	db         *gorm.DB
	settlement *services.SettlementService
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(db *gorm.DB, settlement *services.SettlementService) *AdminHandler {
	return &AdminHandler{db: db, settlement: settlement}
}

// ListOrders returns all orders with optional status filter.
func (h *AdminHandler) ListOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)

	query := h.db.Model(&models.Order{})
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

type updateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=paid processing shipped delivered cancelled refunded failed"`
}

// UpdateOrderStatus moves an order through the fulfillment pipeline.
// Side effects (timestamps, loyalty points, notification emails) fire
// inside the settlement service.
func (h *AdminHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req updateOrderStatusRequest
	if err := validation.BindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.settlement.Transition(orderID, req.Status); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		case errors.Is(err, services.ErrInvalidTransition):
			return fiber.NewError(fiber.StatusConflict, err.Error())
		case errors.Is(err, services.ErrOrderConflict):
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		return err
	}

	var order models.Order
	if err := h.db.First(&order, "id = ?", orderID).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// ListCoupons returns all coupons.
func (h *AdminHandler) ListCoupons(c *fiber.Ctx) error {
	var coupons []models.Coupon
	if err := h.db.Order("created_at desc").Find(&coupons).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": coupons})
}

type createCouponRequest struct {
	Code        string `json:"code" validate:"required,uppercase,alphanum"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`

	DiscountType  string          `json:"discount_type" validate:"required,oneof=fixed percentage"`
	DiscountValue decimal.Decimal `json:"discount_value" validate:"required"`
	MinimumAmount decimal.Decimal `json:"minimum_amount"`
	MaxDiscount   *decimal.Decimal `json:"max_discount"`

	UsageLimit        *int `json:"usage_limit"`
	UsageLimitPerUser *int `json:"usage_limit_per_user"`

	ValidFrom  time.Time `json:"valid_from" validate:"required"`
	ValidUntil time.Time `json:"valid_until" validate:"required,gtfield=ValidFrom"`

	FirstOrderOnly bool `json:"first_order_only"`
	IsActive       *bool `json:"is_active"`
}

// CreateCoupon creates a coupon.
func (h *AdminHandler) CreateCoupon(c *fiber.Ctx) error {
	var req createCouponRequest
	if err := validation.BindAndValidate(c, &req); err != nil {
		return err
	}

	coupon := models.Coupon{
		Code:              req.Code,
		Name:              req.Name,
		Description:       req.Description,
		DiscountType:      req.DiscountType,
		DiscountValue:     req.DiscountValue,
		MinimumAmount:     req.MinimumAmount,
		UsageLimit:        req.UsageLimit,
		UsageLimitPerUser: req.UsageLimitPerUser,
		ValidFrom:         req.ValidFrom,
		ValidUntil:        req.ValidUntil,
		FirstOrderOnly:    req.FirstOrderOnly,
		IsActive:          true,
	}
	if req.MaxDiscount != nil {
		coupon.MaxDiscount = decimal.NewNullDecimal(*req.MaxDiscount)
	}
	if req.IsActive != nil {
		coupon.IsActive = *req.IsActive
	}

	if err := h.db.Create(&coupon).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fiber.NewError(fiber.StatusConflict, "coupon code already exists")
		}
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": coupon})
}

type updateCouponRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`

	DiscountValue *decimal.Decimal `json:"discount_value"`
	MinimumAmount *decimal.Decimal `json:"minimum_amount"`
	MaxDiscount   *decimal.Decimal `json:"max_discount"`

	UsageLimit        *int `json:"usage_limit"`
	UsageLimitPerUser *int `json:"usage_limit_per_user"`

	ValidFrom  *time.Time `json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until"`

	FirstOrderOnly *bool `json:"first_order_only"`
	IsActive       *bool `json:"is_active"`
}

// UpdateCoupon updates coupon fields. The code itself is immutable.
func (h *AdminHandler) UpdateCoupon(c *fiber.Ctx) error {
	couponID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req updateCouponRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.DiscountValue != nil {
		updates["discount_value"] = *req.DiscountValue
	}
	if req.MinimumAmount != nil {
		updates["minimum_amount"] = *req.MinimumAmount
	}
	if req.MaxDiscount != nil {
		updates["max_discount"] = *req.MaxDiscount
	}
	if req.UsageLimit != nil {
		updates["usage_limit"] = *req.UsageLimit
	}
	if req.UsageLimitPerUser != nil {
		updates["usage_limit_per_user"] = *req.UsageLimitPerUser
	}
	if req.ValidFrom != nil {
		updates["valid_from"] = *req.ValidFrom
	}
	if req.ValidUntil != nil {
		updates["valid_until"] = *req.ValidUntil
	}
	if req.FirstOrderOnly != nil {
		updates["first_order_only"] = *req.FirstOrderOnly
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no fields to update")
	}

	res := h.db.Model(&models.Coupon{}).Where("id = ?", couponID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "coupon not found")
	}

	return c.JSON(fiber.Map{"success": true, "message": "coupon updated"})
}

// DeleteCoupon deactivates a coupon. Rows are kept so that past orders
// still resolve their coupon reference.
func (h *AdminHandler) DeleteCoupon(c *fiber.Ctx) error {
	couponID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	res := h.db.Model(&models.Coupon{}).Where("id = ?", couponID).Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "coupon not found")
	}

	return c.JSON(fiber.Map{"success": true, "message": "coupon deactivated"})
}
