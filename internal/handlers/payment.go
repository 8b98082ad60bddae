package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/brickaria/internal/models"
	"github.com/example/brickaria/internal/services"
	"github.com/example/brickaria/internal/validation"
)

// PaymentHandler receives gateway callbacks and feeds them into the
// settlement pipeline.
type PaymentHandler struct {
	db         *gorm.DB
	settlement *services.SettlementService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(db *gorm.DB, settlement *services.SettlementService) *PaymentHandler {
	return &PaymentHandler{db: db, settlement: settlement}
}

type paymentWebhookRequest struct {
	PaymentID     string                 `json:"payment_id" validate:"required"`
	OrderNumber   string                 `json:"order_number" validate:"required"`
	Status        string                 `json:"status" validate:"required,oneof=completed failed"`
	Method        string                 `json:"method"`
	Gateway       string                 `json:"gateway"`
	TransactionID string                 `json:"transaction_id"`
	Raw           map[string]interface{} `json:"raw"`
}

// Webhook upserts the payment record for the referenced order and applies
// the reported outcome. Gateways retry deliveries, so replays of an
// already-settled payment succeed without re-running side effects.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	var req paymentWebhookRequest
	if err := validation.BindAndValidate(c, &req); err != nil {
		return err
	}

	var order models.Order
	if err := h.db.First(&order, "order_number = ?", req.OrderNumber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	var payment models.Payment
	err := h.db.Where(models.Payment{PaymentID: req.PaymentID}).
		Attrs(models.Payment{
			OrderID:  order.ID,
			Method:   req.Method,
			Amount:   order.TotalAmount,
			Gateway:  req.Gateway,
			Currency: "USD",
		}).
		FirstOrCreate(&payment).Error
	if err != nil {
		return err
	}

	if payment.OrderID != order.ID {
		return fiber.NewError(fiber.StatusConflict, "payment belongs to another order")
	}

	switch req.Status {
	case models.PaymentCompleted:
		err = h.settlement.CompletePayment(req.PaymentID, req.TransactionID, req.Raw)
	case models.PaymentFailed:
		err = h.settlement.FailPayment(req.PaymentID, req.Raw)
	}
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true})
}
