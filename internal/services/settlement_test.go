package services

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/brickaria/internal/models"
)

func newTestSettlement(db *gorm.DB, mailer Mailer) *SettlementService {
	loyalty := NewLoyaltyService(db, decimal.NewFromInt(1))
	return NewSettlementService(db, mailer, loyalty)
}

func TestCompletePaymentMarksOrderPaid(t *testing.T) {
	db := openTestDB(t)
	mailer := &recordingMailer{}
	svc := newTestSettlement(db, mailer)
	user := createTestUser(t, db, "pay@example.com")
	order := createTestOrder(t, db, user, models.OrderPending, "149.97")

	payment := models.Payment{
		OrderID:   order.ID,
		PaymentID: "pay_abc123",
		Method:    "card",
		Status:    models.PaymentPending,
		Amount:    order.TotalAmount,
	}
	if err := db.Create(&payment).Error; err != nil {
		t.Fatalf("create payment: %v", err)
	}

	raw := map[string]interface{}{"result": "approved"}
	if err := svc.CompletePayment("pay_abc123", "txn_1", raw); err != nil {
		t.Fatalf("complete payment: %v", err)
	}

	var gotPayment models.Payment
	db.First(&gotPayment, "payment_id = ?", "pay_abc123")
	if gotPayment.Status != models.PaymentCompleted {
		t.Errorf("payment status = %q, want completed", gotPayment.Status)
	}
	if gotPayment.GatewayTransactionID != "txn_1" {
		t.Errorf("gateway txn = %q, want txn_1", gotPayment.GatewayTransactionID)
	}
	if gotPayment.ProcessedAt == nil {
		t.Error("processed_at not set")
	}

	var gotOrder models.Order
	db.First(&gotOrder, "id = ?", order.ID)
	if gotOrder.Status != models.OrderPaid {
		t.Errorf("order status = %q, want paid", gotOrder.Status)
	}

	if len(mailer.sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(mailer.sent))
	}
	if !strings.Contains(mailer.sent[0].Subject, "Order Confirmation") {
		t.Errorf("unexpected subject %q", mailer.sent[0].Subject)
	}
	if mailer.sent[0].To != user.Email {
		t.Errorf("mail sent to %q, want %q", mailer.sent[0].To, user.Email)
	}
}

func TestCompletePaymentReplayIsNoop(t *testing.T) {
	db := openTestDB(t)
	mailer := &recordingMailer{}
	svc := newTestSettlement(db, mailer)
	user := createTestUser(t, db, "replay@example.com")
	order := createTestOrder(t, db, user, models.OrderPending, "20.00")

	payment := models.Payment{OrderID: order.ID, PaymentID: "pay_replay", Status: models.PaymentPending, Amount: order.TotalAmount}
	if err := db.Create(&payment).Error; err != nil {
		t.Fatalf("create payment: %v", err)
	}

	if err := svc.CompletePayment("pay_replay", "txn_1", nil); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	if err := svc.CompletePayment("pay_replay", "txn_1", nil); err != nil {
		t.Fatalf("replay: %v", err)
	}

	if len(mailer.sent) != 1 {
		t.Errorf("sent %d mails, want 1", len(mailer.sent))
	}
}

func TestFailPaymentFailsPendingOrder(t *testing.T) {
	db := openTestDB(t)
	svc := newTestSettlement(db, &recordingMailer{})
	user := createTestUser(t, db, "failed@example.com")
	order := createTestOrder(t, db, user, models.OrderPending, "10.00")

	payment := models.Payment{OrderID: order.ID, PaymentID: "pay_fail", Status: models.PaymentPending, Amount: order.TotalAmount}
	if err := db.Create(&payment).Error; err != nil {
		t.Fatalf("create payment: %v", err)
	}

	if err := svc.FailPayment("pay_fail", map[string]interface{}{"result": "declined"}); err != nil {
		t.Fatalf("fail payment: %v", err)
	}

	var gotOrder models.Order
	db.First(&gotOrder, "id = ?", order.ID)
	if gotOrder.Status != models.OrderFailed {
		t.Errorf("order status = %q, want failed", gotOrder.Status)
	}
}

func TestTransitionShippedSetsTimestamp(t *testing.T) {
	db := openTestDB(t)
	mailer := &recordingMailer{}
	svc := newTestSettlement(db, mailer)
	user := createTestUser(t, db, "ship@example.com")
	order := createTestOrder(t, db, user, models.OrderProcessing, "75.00")

	if err := svc.Transition(order.ID, models.OrderShipped); err != nil {
		t.Fatalf("transition: %v", err)
	}

	var got models.Order
	db.First(&got, "id = ?", order.ID)
	if got.Status != models.OrderShipped {
		t.Errorf("status = %q, want shipped", got.Status)
	}
	if got.ShippedAt == nil {
		t.Error("shipped_at not set")
	}
	if len(mailer.sent) != 1 || !strings.Contains(mailer.sent[0].Subject, "Shipped") {
		t.Errorf("expected one shipped mail, got %v", mailer.sent)
	}
}

func TestTransitionDeliveredAwardsPointsOnce(t *testing.T) {
	db := openTestDB(t)
	mailer := &recordingMailer{}
	svc := newTestSettlement(db, mailer)
	user := createTestUser(t, db, "deliver@example.com")
	order := createTestOrder(t, db, user, models.OrderShipped, "149.97")

	if err := svc.Transition(order.ID, models.OrderDelivered); err != nil {
		t.Fatalf("transition: %v", err)
	}

	var profile models.UserProfile
	db.First(&profile, "user_id = ?", user.ID)
	if profile.LoyaltyPoints != 149 {
		t.Errorf("points = %d, want 149", profile.LoyaltyPoints)
	}
	if profile.LoyaltyTier != models.TierBronze {
		t.Errorf("tier = %q, want bronze", profile.LoyaltyTier)
	}

	var got models.Order
	db.First(&got, "id = ?", order.ID)
	if got.DeliveredAt == nil {
		t.Error("delivered_at not set")
	}

	// Writing the current status again is a no-op and must not award twice.
	if err := svc.Transition(order.ID, models.OrderDelivered); err != nil {
		t.Fatalf("repeat transition: %v", err)
	}

	db.First(&profile, "user_id = ?", user.ID)
	if profile.LoyaltyPoints != 149 {
		t.Errorf("points after repeat = %d, want 149", profile.LoyaltyPoints)
	}

	var ledger int64
	db.Model(&models.LoyaltyTransaction{}).
		Where("order_id = ? AND type = ?", order.ID, models.LoyaltyEarned).
		Count(&ledger)
	if ledger != 1 {
		t.Errorf("ledger entries = %d, want 1", ledger)
	}

	if !strings.Contains(mailer.sent[0].Body, "149 loyalty points") {
		t.Errorf("delivered mail should mention awarded points, got %q", mailer.sent[0].Body)
	}
}

func TestTransitionTierPromotion(t *testing.T) {
	db := openTestDB(t)
	svc := newTestSettlement(db, &recordingMailer{})
	user := createTestUser(t, db, "tier@example.com")
	order := createTestOrder(t, db, user, models.OrderShipped, "1200.00")

	if err := svc.Transition(order.ID, models.OrderDelivered); err != nil {
		t.Fatalf("transition: %v", err)
	}

	var profile models.UserProfile
	db.First(&profile, "user_id = ?", user.ID)
	if profile.LoyaltyPoints != 1200 {
		t.Errorf("points = %d, want 1200", profile.LoyaltyPoints)
	}
	if profile.LoyaltyTier != models.TierSilver {
		t.Errorf("tier = %q, want silver", profile.LoyaltyTier)
	}
}

func TestTransitionRejectsIllegalMove(t *testing.T) {
	db := openTestDB(t)
	svc := newTestSettlement(db, &recordingMailer{})
	user := createTestUser(t, db, "illegal@example.com")

	cases := []struct {
		name   string
		from   string
		target string
	}{
		{"delivered is terminal", models.OrderDelivered, models.OrderPending},
		{"pending cannot ship", models.OrderPending, models.OrderShipped},
		{"cancelled is terminal", models.OrderCancelled, models.OrderPaid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := createTestOrder(t, db, user, tc.from, "10.00")
			err := svc.Transition(order.ID, tc.target)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("Transition(%s -> %s) = %v, want ErrInvalidTransition", tc.from, tc.target, err)
			}
		})
	}
}
