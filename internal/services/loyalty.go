package services

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/brickaria/internal/models"
)

// LoyaltyService maintains the points ledger and the denormalized balance
// on user profiles.
type LoyaltyService struct {
	db   *gorm.DB
	rate decimal.Decimal
}

// NewLoyaltyService constructs a LoyaltyService. rate is points awarded
// per dollar of order total.
func NewLoyaltyService(db *gorm.DB, rate decimal.Decimal) *LoyaltyService {
	return &LoyaltyService{db: db, rate: rate}
}

// AwardForOrder grants floor(total × rate) points for a delivered order
// inside the supplied transaction. A second call for the same order is a
// no-op: the ledger is checked first and a partial unique index on
// (order_id, type='earned') backs the check under races. Returns the
// points awarded (0 when already awarded).
func (l *LoyaltyService) AwardForOrder(tx *gorm.DB, order *models.Order) (int64, error) {
	var existing int64
	if err := tx.Model(&models.LoyaltyTransaction{}).
		Where("order_id = ? AND type = ?", order.ID, models.LoyaltyEarned).
		Count(&existing).Error; err != nil {
		return 0, err
	}
	if existing > 0 {
		return 0, nil
	}

	points := order.TotalAmount.Mul(l.rate).IntPart()
	if points < 0 {
		points = 0
	}

	var profile models.UserProfile
	if err := tx.Where("user_id = ?", order.UserID).First(&profile).Error; err != nil {
		return 0, fmt.Errorf("load profile: %w", err)
	}

	profile.LoyaltyPoints += points
	profile.LoyaltyTier = models.TierForPoints(profile.LoyaltyPoints)
	if err := tx.Save(&profile).Error; err != nil {
		return 0, err
	}

	entry := models.LoyaltyTransaction{
		UserID:      order.UserID,
		Type:        models.LoyaltyEarned,
		Points:      points,
		Description: fmt.Sprintf("Order #%s", order.OrderNumber),
		OrderID:     &order.ID,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return 0, err
	}

	return points, nil
}

// Balance returns the profile's current points and tier.
func (l *LoyaltyService) Balance(userID uuid.UUID) (int64, string, error) {
	var profile models.UserProfile
	if err := l.db.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return 0, "", err
	}
	return profile.LoyaltyPoints, profile.LoyaltyTier, nil
}
