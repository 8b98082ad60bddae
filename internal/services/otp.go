package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/brickaria/internal/models"
)

// DefaultOTPTokenTTL is the validity window of an issued code.
const DefaultOTPTokenTTL = 5 * time.Minute

// OTPService issues, delivers and verifies short-lived numeric codes bound
// to a user's email device.
type OTPService struct {
	db     *gorm.DB
	mailer Mailer
	ttl    time.Duration
}

// NewOTPService constructs an OTPService. A zero ttl falls back to the
// 5-minute default.
func NewOTPService(db *gorm.DB, mailer Mailer, ttl time.Duration) *OTPService {
	if ttl <= 0 {
		ttl = DefaultOTPTokenTTL
	}
	return &OTPService{db: db, mailer: mailer, ttl: ttl}
}

// EnrollDevice obtains or creates the device for (user, email). An empty
// email falls back to the user's account email. Re-enrolling a deactivated
// device reactivates it.
func (s *OTPService) EnrollDevice(user *models.User, email string) (*models.OTPDevice, error) {
	if email == "" {
		email = user.Email
	}

	var device models.OTPDevice
	err := s.db.Where(models.OTPDevice{UserID: user.ID, Email: email}).
		Attrs(models.OTPDevice{Name: "Email OTP", IsActive: true}).
		FirstOrCreate(&device).Error
	if err != nil {
		return nil, err
	}

	if !device.IsActive {
		if err := s.db.Model(&device).Update("is_active", true).Error; err != nil {
			return nil, err
		}
		device.IsActive = true
	}

	return &device, nil
}

// HasActiveDevice reports whether the user owns at least one active device.
func (s *OTPService) HasActiveDevice(userID uuid.UUID) (bool, error) {
	var count int64
	err := s.db.Model(&models.OTPDevice{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&count).Error
	return count > 0, err
}

// ActiveDevice returns the user's most recently enrolled active device.
func (s *OTPService) ActiveDevice(userID uuid.UUID) (*models.OTPDevice, error) {
	var device models.OTPDevice
	err := s.db.Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at desc").
		First(&device).Error
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// IssueToken invalidates every unused token for the device, persists a
// fresh 6-digit code and emails it. At most one valid token exists per
// device afterwards. A mail failure propagates without rolling back the
// invalidation: the previous code is gone even if the new one never
// arrives, and the caller retries by issuing again.
func (s *OTPService) IssueToken(device *models.OTPDevice) (*models.OTPToken, error) {
	code, err := generateOTPCode()
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}

	token := models.OTPToken{DeviceID: device.ID, Code: code}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		if err := tx.Model(&models.OTPToken{}).
			Where("device_id = ? AND is_used = ?", device.ID, false).
			Updates(map[string]interface{}{"is_used": true, "used_at": &now}).Error; err != nil {
			return err
		}
		return tx.Create(&token).Error
	})
	if err != nil {
		return nil, err
	}

	subject := "Brickaria - Your verification code"
	body := fmt.Sprintf("Your Brickaria verification code is: %s\n\nThis code will expire in %d minutes.",
		code, int(s.ttl.Minutes()))
	if err := s.mailer.Send(device.Email, subject, body); err != nil {
		return nil, fmt.Errorf("send verification code: %w", err)
	}

	return &token, nil
}

// VerifyToken marks the matching token used and reports success. The
// mark-used write is a single conditional update, so two concurrent
// submits of the same code can succeed at most once. Wrong, already-used
// and expired codes all come back as the same plain false.
func (s *OTPService) VerifyToken(device *models.OTPDevice, code string) (bool, error) {
	now := time.Now()
	cutoff := now.Add(-s.ttl)

	res := s.db.Model(&models.OTPToken{}).
		Where("device_id = ? AND code = ? AND is_used = ? AND created_at > ?",
			device.ID, code, false, cutoff).
		Updates(map[string]interface{}{"is_used": true, "used_at": &now})
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected == 1, nil
}

// DisableDevice deactivates all of the user's devices. Rows are kept for
// the audit trail; re-enrollment reactivates them.
func (s *OTPService) DisableDevice(userID uuid.UUID) error {
	return s.db.Model(&models.OTPDevice{}).
		Where("user_id = ?", userID).
		Update("is_active", false).Error
}

// CleanupTokens deletes tokens older than the retention window. Returns
// the number of rows removed.
func (s *OTPService) CleanupTokens(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res := s.db.Where("created_at < ?", cutoff).Delete(&models.OTPToken{})
	return res.RowsAffected, res.Error
}

func generateOTPCode() (string, error) {
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
