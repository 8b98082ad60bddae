package models

import (
	"time"

	"github.com/google/uuid"
)

// Loyalty transaction types.
const (
	LoyaltyEarned   = "earned"
	LoyaltyRedeemed = "redeemed"
	LoyaltyExpired  = "expired"
	LoyaltyBonus    = "bonus"
)

// Loyalty tiers.
const (
	TierBronze   = "bronze"
	TierSilver   = "silver"
	TierGold     = "gold"
	TierPlatinum = "platinum"
)

// TierForPoints maps a cumulative point balance to its tier.
func TierForPoints(points int64) string {
	switch {
	case points >= 10000:
		return TierPlatinum
	case points >= 5000:
		return TierGold
	case points >= 1000:
		return TierSilver
	default:
		return TierBronze
	}
}

// LoyaltyTransaction is an append-only ledger entry of points earned,
// spent or expired. Rows are never updated after creation; the profile
// balance is the denormalized running sum.
type LoyaltyTransaction struct {
	BaseModel
	UserID      uuid.UUID  `gorm:"type:uuid;index" json:"user_id"`
	Type        string     `json:"type"`
	Points      int64      `json:"points"`
	Description string     `json:"description"`
	OrderID     *uuid.UUID `gorm:"type:uuid;index" json:"order_id"`
	ExpiresAt   *time.Time `json:"expires_at"`
}
