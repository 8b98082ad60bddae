package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/brickaria/internal/models"
)

// ErrInvalidTransition is returned when an order status write is not
// permitted by the state machine.
var ErrInvalidTransition = errors.New("invalid order status transition")

// ErrOrderConflict is returned when a concurrent writer moved the order
// out from under a transition.
var ErrOrderConflict = errors.New("order was modified concurrently")

// allowedTransitions is the order state machine. delivered, cancelled,
// refunded and failed are terminal.
var allowedTransitions = map[string][]string{
	models.OrderPending:    {models.OrderPaid, models.OrderCancelled, models.OrderFailed},
	models.OrderPaid:       {models.OrderProcessing, models.OrderCancelled, models.OrderRefunded},
	models.OrderProcessing: {models.OrderShipped, models.OrderCancelled, models.OrderRefunded},
	models.OrderShipped:    {models.OrderDelivered, models.OrderRefunded},
}

func transitionAllowed(from, to string) bool {
	for _, t := range allowedTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// SettlementService drives orders from placement to delivery, awarding
// loyalty points at delivery and emitting customer notifications.
type SettlementService struct {
	db      *gorm.DB
	mailer  Mailer
	loyalty *LoyaltyService
}

// NewSettlementService constructs a SettlementService.
func NewSettlementService(db *gorm.DB, mailer Mailer, loyalty *LoyaltyService) *SettlementService {
	return &SettlementService{db: db, mailer: mailer, loyalty: loyalty}
}

// Transition moves the order to target, applying the side effects keyed on
// the status entered. Writing the status the order already has is a no-op.
// Illegal transitions fail with ErrInvalidTransition.
func (s *SettlementService) Transition(orderID uuid.UUID, target string) error {
	var order models.Order
	if err := s.db.Preload("User").First(&order, "id = ?", orderID).Error; err != nil {
		return err
	}

	if order.Status == target {
		return nil
	}

	if !transitionAllowed(order.Status, target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, target)
	}

	updates := map[string]interface{}{"status": target}
	now := time.Now()
	switch target {
	case models.OrderShipped:
		updates["shipped_at"] = &now
	case models.OrderDelivered:
		updates["delivered_at"] = &now
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// Guard against a concurrent writer: the status column must still
		// hold the value the transition was validated against.
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, order.Status).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrOrderConflict
		}

		if target == models.OrderDelivered {
			if _, err := s.loyalty.AwardForOrder(tx, &order); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	order.Status = target
	s.notify(&order, target)
	return nil
}

// CompletePayment settles a payment that the gateway reported successful.
// The order moves pending -> paid exactly when this payment is the first
// completed one while the order is still pending; a replayed webhook for
// an already-completed payment is a no-op.
func (s *SettlementService) CompletePayment(paymentID, gatewayTxID string, gatewayResponse map[string]interface{}) error {
	var payment models.Payment
	if err := s.db.First(&payment, "payment_id = ?", paymentID).Error; err != nil {
		return err
	}

	if payment.Status == models.PaymentCompleted {
		return nil
	}

	now := time.Now()
	orderPaid := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&payment).Updates(map[string]interface{}{
			"status":                 models.PaymentCompleted,
			"gateway_transaction_id": gatewayTxID,
			"gateway_response":       gatewayResponse,
			"processed_at":           &now,
		}).Error; err != nil {
			return err
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", payment.OrderID, models.OrderPending).
			Update("status", models.OrderPaid)
		if res.Error != nil {
			return res.Error
		}
		orderPaid = res.RowsAffected == 1
		return nil
	})
	if err != nil {
		return err
	}

	if orderPaid {
		var order models.Order
		if err := s.db.Preload("User").First(&order, "id = ?", payment.OrderID).Error; err != nil {
			return err
		}
		s.notify(&order, models.OrderPaid)
	}
	return nil
}

// FailPayment records a failed settlement attempt and fails the order if
// it was still pending.
func (s *SettlementService) FailPayment(paymentID string, gatewayResponse map[string]interface{}) error {
	var payment models.Payment
	if err := s.db.First(&payment, "payment_id = ?", paymentID).Error; err != nil {
		return err
	}

	now := time.Now()
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&payment).Updates(map[string]interface{}{
			"status":           models.PaymentFailed,
			"gateway_response": gatewayResponse,
			"processed_at":     &now,
		}).Error; err != nil {
			return err
		}

		return tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", payment.OrderID, models.OrderPending).
			Update("status", models.OrderFailed).Error
	})
}

// notify sends the status-keyed customer email. Notification failures are
// logged, never fatal to the transition.
func (s *SettlementService) notify(order *models.Order, status string) {
	if order.User == nil {
		var user models.User
		if err := s.db.First(&user, "id = ?", order.UserID).Error; err != nil {
			log.Printf("settlement: load user for order %s: %v", order.OrderNumber, err)
			return
		}
		order.User = &user
	}

	var subject, body string
	switch status {
	case models.OrderPaid:
		subject = fmt.Sprintf("Order Confirmation - #%s", order.OrderNumber)
		body = fmt.Sprintf("Dear %s,\n\nThank you for your order! Your order #%s has been confirmed.\n\nOrder Total: $%s\n\nWe'll send you another email when your order ships.\n\nBest regards,\nThe Brickaria Team",
			order.User.FullName(), order.OrderNumber, order.TotalAmount.StringFixed(2))
	case models.OrderShipped:
		subject = fmt.Sprintf("Your Order Has Shipped - #%s", order.OrderNumber)
		body = fmt.Sprintf("Dear %s,\n\nGreat news! Your order #%s has been shipped.\n\nYou can track your order using the tracking information provided.\n\nBest regards,\nThe Brickaria Team",
			order.User.FullName(), order.OrderNumber)
	case models.OrderDelivered:
		subject = fmt.Sprintf("Order Delivered - #%s", order.OrderNumber)
		body = fmt.Sprintf("Dear %s,\n\nYour order #%s has been delivered!\n\nWe hope you love your purchase. Don't forget to leave a review!\n\nYou've earned %d loyalty points for this order.\n\nBest regards,\nThe Brickaria Team",
			order.User.FullName(), order.OrderNumber, order.TotalAmount.Mul(s.loyalty.rate).IntPart())
	default:
		return
	}

	if err := s.mailer.Send(order.User.Email, subject, body); err != nil {
		log.Printf("settlement: notify %s for order %s: %v", status, order.OrderNumber, err)
	}
}
