package models

import (
	"time"

	"github.com/google/uuid"
)

// OTPDevice is a user's enrolled second-factor channel: an email address
// that verification codes are delivered to. Disabling 2FA deactivates the
// row instead of deleting it.
type OTPDevice struct {
	BaseModel
	UserID   uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_otp_devices_user_email" json:"user_id"`
	Email    string    `gorm:"uniqueIndex:idx_otp_devices_user_email" json:"email"`
	Name     string    `gorm:"default:Email OTP" json:"name"`
	IsActive bool      `json:"is_active"`
}

// OTPToken is a single issued 6-digit code tied to a device.
type OTPToken struct {
	BaseModel
	DeviceID uuid.UUID  `gorm:"type:uuid;index" json:"device_id"`
	Code     string     `gorm:"size:6" json:"-"`
	IsUsed   bool       `json:"is_used"`
	UsedAt   *time.Time `json:"used_at"`
}

// Valid reports whether the token is still usable: never used and issued
// less than ttl ago.
func (t *OTPToken) Valid(now time.Time, ttl time.Duration) bool {
	if t.IsUsed {
		return false
	}
	return now.Before(t.CreatedAt.Add(ttl))
}
