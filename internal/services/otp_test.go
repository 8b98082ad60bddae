package services

import (
	"strings"
	"testing"
	"time"

	"github.com/example/brickaria/internal/models"
)

func TestEnrollDeviceIdempotent(t *testing.T) {
	db := openTestDB(t)
	svc := NewOTPService(db, &recordingMailer{}, 0)
	user := createTestUser(t, db, "alice@example.com")

	first, err := svc.EnrollDevice(user, "")
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if first.Email != user.Email {
		t.Errorf("device email = %q, want account email %q", first.Email, user.Email)
	}
	if !first.IsActive {
		t.Error("new device should be active")
	}

	second, err := svc.EnrollDevice(user, user.Email)
	if err != nil {
		t.Fatalf("re-enroll: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("re-enroll created a new device: %s vs %s", second.ID, first.ID)
	}

	var count int64
	db.Model(&models.OTPDevice{}).Where("user_id = ?", user.ID).Count(&count)
	if count != 1 {
		t.Errorf("device count = %d, want 1", count)
	}
}

func TestEnrollReactivatesDisabledDevice(t *testing.T) {
	db := openTestDB(t)
	svc := NewOTPService(db, &recordingMailer{}, 0)
	user := createTestUser(t, db, "bob@example.com")

	device, err := svc.EnrollDevice(user, "")
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if err := svc.DisableDevice(user.ID); err != nil {
		t.Fatalf("disable: %v", err)
	}

	enrolled, err := svc.HasActiveDevice(user.ID)
	if err != nil {
		t.Fatalf("has active: %v", err)
	}
	if enrolled {
		t.Error("device should be inactive after disable")
	}

	again, err := svc.EnrollDevice(user, "")
	if err != nil {
		t.Fatalf("re-enroll: %v", err)
	}
	if again.ID != device.ID {
		t.Errorf("re-enroll created a new device: %s vs %s", again.ID, device.ID)
	}
	if !again.IsActive {
		t.Error("re-enrolled device should be active")
	}
}

func TestIssueTokenInvalidatesPrevious(t *testing.T) {
	db := openTestDB(t)
	mailer := &recordingMailer{}
	svc := NewOTPService(db, mailer, 0)
	user := createTestUser(t, db, "carol@example.com")

	device, err := svc.EnrollDevice(user, "")
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}

	first, err := svc.IssueToken(device)
	if err != nil {
		t.Fatalf("first issue: %v", err)
	}
	second, err := svc.IssueToken(device)
	if err != nil {
		t.Fatalf("second issue: %v", err)
	}

	var unused int64
	db.Model(&models.OTPToken{}).
		Where("device_id = ? AND is_used = ?", device.ID, false).
		Count(&unused)
	if unused != 1 {
		t.Errorf("unused token count = %d, want 1", unused)
	}

	ok, err := svc.VerifyToken(device, first.Code)
	if err != nil {
		t.Fatalf("verify superseded: %v", err)
	}
	if ok && first.Code != second.Code {
		t.Error("superseded code should not verify")
	}

	if len(mailer.sent) != 2 {
		t.Fatalf("sent %d mails, want 2", len(mailer.sent))
	}
	if !strings.Contains(mailer.sent[1].Body, second.Code) {
		t.Error("mail body should carry the issued code")
	}
}

func TestVerifyTokenSingleUse(t *testing.T) {
	db := openTestDB(t)
	svc := NewOTPService(db, &recordingMailer{}, 0)
	user := createTestUser(t, db, "dave@example.com")

	device, err := svc.EnrollDevice(user, "")
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	token, err := svc.IssueToken(device)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	wrong := "000000"
	if token.Code == wrong {
		wrong = "000001"
	}
	if ok, _ := svc.VerifyToken(device, wrong); ok {
		t.Error("wrong code should not verify")
	}

	ok, err := svc.VerifyToken(device, token.Code)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("fresh code should verify")
	}

	ok, err = svc.VerifyToken(device, token.Code)
	if err != nil {
		t.Fatalf("second verify: %v", err)
	}
	if ok {
		t.Error("code verified twice")
	}
}

func TestVerifyTokenExpired(t *testing.T) {
	db := openTestDB(t)
	svc := NewOTPService(db, &recordingMailer{}, 5*time.Minute)
	user := createTestUser(t, db, "erin@example.com")

	device, err := svc.EnrollDevice(user, "")
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	token, err := svc.IssueToken(device)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	stale := time.Now().Add(-10 * time.Minute)
	if err := db.Model(&models.OTPToken{}).
		Where("id = ?", token.ID).
		UpdateColumn("created_at", stale).Error; err != nil {
		t.Fatalf("backdate token: %v", err)
	}

	ok, err := svc.VerifyToken(device, token.Code)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Error("expired code should not verify")
	}
}

func TestIssueTokenMailFailure(t *testing.T) {
	db := openTestDB(t)
	mailer := &recordingMailer{}
	svc := NewOTPService(db, mailer, 0)
	user := createTestUser(t, db, "frank@example.com")

	device, err := svc.EnrollDevice(user, "")
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	prior, err := svc.IssueToken(device)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	mailer.fail = true
	if _, err := svc.IssueToken(device); err == nil {
		t.Fatal("issue should fail when delivery fails")
	}

	// Delivery failed after the invalidation committed: the prior code
	// is gone and the user must request a fresh one.
	if ok, _ := svc.VerifyToken(device, prior.Code); ok {
		t.Error("prior code should be invalidated even when delivery fails")
	}
}

func TestCleanupTokens(t *testing.T) {
	db := openTestDB(t)
	svc := NewOTPService(db, &recordingMailer{}, 0)
	user := createTestUser(t, db, "grace@example.com")

	device, err := svc.EnrollDevice(user, "")
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	old, err := svc.IssueToken(device)
	if err != nil {
		t.Fatalf("issue old: %v", err)
	}
	if err := db.Model(&models.OTPToken{}).
		Where("id = ?", old.ID).
		UpdateColumn("created_at", time.Now().Add(-8*24*time.Hour)).Error; err != nil {
		t.Fatalf("backdate token: %v", err)
	}
	if _, err := svc.IssueToken(device); err != nil {
		t.Fatalf("issue fresh: %v", err)
	}

	deleted, err := svc.CleanupTokens(7 * 24 * time.Hour)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	var remaining int64
	db.Model(&models.OTPToken{}).Where("device_id = ?", device.ID).Count(&remaining)
	if remaining != 1 {
		t.Errorf("remaining tokens = %d, want 1", remaining)
	}
}
