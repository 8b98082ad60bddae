package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/brickaria/internal/database"
	"github.com/example/brickaria/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

// recordingMailer captures outgoing mail and optionally fails delivery.
type recordingMailer struct {
	sent []sentMail
	fail bool
}

func (m *recordingMailer) Send(to, subject, body string) error {
	if m.fail {
		return errors.New("smtp unreachable")
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func createTestUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	user := models.User{
		Email:        email,
		PasswordHash: "x",
		FirstName:    "Test",
		LastName:     "User",
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	profile := models.UserProfile{UserID: user.ID, LoyaltyTier: models.TierBronze}
	if err := db.Create(&profile).Error; err != nil {
		t.Fatalf("create profile: %v", err)
	}
	return &user
}

func createTestOrder(t *testing.T, db *gorm.DB, user *models.User, status, total string) *models.Order {
	t.Helper()

	testOrderSeq++
	number := fmt.Sprintf("TESTORD%03d", testOrderSeq)
	amount, err := decimal.NewFromString(total)
	if err != nil {
		t.Fatalf("parse total: %v", err)
	}

	order := models.Order{
		OrderNumber: number,
		UserID:      user.ID,
		Subtotal:    amount,
		TotalAmount: amount,
		Status:      status,
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("create order: %v", err)
	}
	return &order
}

var testOrderSeq int
