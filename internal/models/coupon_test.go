package models

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&Coupon{}, &Order{}, &User{}, &Category{}, &Product{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func baseCoupon() Coupon {
	limit := 100
	return Coupon{
		Code:          "SAVE20",
		Name:          "$20 off",
		DiscountType:  CouponFixed,
		DiscountValue: decimal.NewFromInt(20),
		MinimumAmount: decimal.NewFromInt(100),
		UsageLimit:    &limit,
		ValidFrom:     time.Now().Add(-24 * time.Hour),
		ValidUntil:    time.Now().Add(24 * time.Hour),
		IsActive:      true,
	}
}

func percentCoupon() Coupon {
	c := baseCoupon()
	c.Code = "PCT20"
	c.Name = "20% off"
	c.DiscountType = CouponPercentage
	c.MaxDiscount = decimal.NewNullDecimal(decimal.NewFromInt(50))
	return c
}

func TestCouponValidate(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()
	userID := uuid.New()

	tests := []struct {
		name       string
		mutate     func(*Coupon)
		cartTotal  string
		wantOK     bool
		wantReason string
	}{
		{
			name:       "valid above minimum",
			mutate:     func(c *Coupon) {},
			cartTotal:  "150.00",
			wantOK:     true,
			wantReason: "Valid",
		},
		{
			name:       "below minimum",
			mutate:     func(c *Coupon) {},
			cartTotal:  "50.00",
			wantOK:     false,
			wantReason: "Minimum order amount is $100.00",
		},
		{
			name:       "inactive",
			mutate:     func(c *Coupon) { c.IsActive = false },
			cartTotal:  "150.00",
			wantOK:     false,
			wantReason: "Coupon is not active",
		},
		{
			name: "inactive wins over expired",
			mutate: func(c *Coupon) {
				c.IsActive = false
				c.ValidUntil = now.Add(-time.Hour)
			},
			cartTotal:  "150.00",
			wantOK:     false,
			wantReason: "Coupon is not active",
		},
		{
			name:       "expired",
			mutate:     func(c *Coupon) { c.ValidUntil = now.Add(-time.Hour) },
			cartTotal:  "150.00",
			wantOK:     false,
			wantReason: "Coupon has expired",
		},
		{
			name:       "not yet valid",
			mutate:     func(c *Coupon) { c.ValidFrom = now.Add(time.Hour) },
			cartTotal:  "150.00",
			wantOK:     false,
			wantReason: "Coupon has expired",
		},
		{
			name: "usage limit reached",
			mutate: func(c *Coupon) {
				limit := 5
				c.UsageLimit = &limit
				c.UsedCount = 5
			},
			cartTotal:  "150.00",
			wantOK:     false,
			wantReason: "Coupon usage limit reached",
		},
		{
			name: "expired wins over usage limit",
			mutate: func(c *Coupon) {
				c.ValidUntil = now.Add(-time.Hour)
				limit := 1
				c.UsageLimit = &limit
				c.UsedCount = 1
			},
			cartTotal:  "150.00",
			wantOK:     false,
			wantReason: "Coupon has expired",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coupon := baseCoupon()
			tt.mutate(&coupon)
			total, err := decimal.NewFromString(tt.cartTotal)
			if err != nil {
				t.Fatalf("parse total: %v", err)
			}

			ok, reason := coupon.Validate(db, userID, total, now)
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", reason, tt.wantReason)
			}
		})
	}
}

func TestCouponValidateFirstOrderOnly(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	coupon := baseCoupon()
	coupon.FirstOrderOnly = true
	total := decimal.NewFromInt(150)

	newUser := uuid.New()
	if ok, reason := coupon.Validate(db, newUser, total, now); !ok {
		t.Errorf("first order should validate, got %q", reason)
	}

	returning := uuid.New()
	order := Order{OrderNumber: "RETURN0001", UserID: returning, Status: OrderDelivered}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("create order: %v", err)
	}

	ok, reason := coupon.Validate(db, returning, total, now)
	if ok {
		t.Error("returning customer should be rejected")
	}
	if reason != "Coupon is for first orders only" {
		t.Errorf("reason = %q", reason)
	}
}

func TestCouponDiscountFor(t *testing.T) {
	tests := []struct {
		name     string
		coupon   Coupon
		subtotal string
		want     string
	}{
		{
			name:     "fixed",
			coupon:   baseCoupon(),
			subtotal: "150.00",
			want:     "20",
		},
		{
			name:     "fixed capped at subtotal",
			coupon:   baseCoupon(),
			subtotal: "4.50",
			want:     "4.5",
		},
		{
			name:     "percentage",
			coupon:   percentCoupon(),
			subtotal: "150.00",
			want:     "30",
		},
		{
			name:     "percentage clamped by max",
			coupon:   percentCoupon(),
			subtotal: "500.00",
			want:     "50",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subtotal, err := decimal.NewFromString(tt.subtotal)
			if err != nil {
				t.Fatalf("parse subtotal: %v", err)
			}
			want, err := decimal.NewFromString(tt.want)
			if err != nil {
				t.Fatalf("parse want: %v", err)
			}

			got := tt.coupon.DiscountFor(subtotal)
			if !got.Equal(want) {
				t.Errorf("DiscountFor(%s) = %s, want %s", tt.subtotal, got, want)
			}
		})
	}
}

func TestCouponCategoryProductRestrictions(t *testing.T) {
	db := openTestDB(t)

	category := Category{Name: "Castle"}
	if err := db.Create(&category).Error; err != nil {
		t.Fatalf("create category: %v", err)
	}
	product := Product{Name: "Castle Gate", SKU: "GATE-01", Price: decimal.NewFromInt(30)}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}

	coupon := baseCoupon()
	coupon.Code = "CASTLE20"
	coupon.Categories = []Category{category}
	coupon.Products = []Product{product}
	if err := db.Create(&coupon).Error; err != nil {
		t.Fatalf("create coupon: %v", err)
	}

	var got Coupon
	if err := db.Preload("Categories").Preload("Products").
		First(&got, "code = ?", "CASTLE20").Error; err != nil {
		t.Fatalf("load coupon: %v", err)
	}
	if len(got.Categories) != 1 || got.Categories[0].ID != category.ID {
		t.Errorf("categories = %v, want the one restriction", got.Categories)
	}
	if len(got.Products) != 1 || got.Products[0].ID != product.ID {
		t.Errorf("products = %v, want the one restriction", got.Products)
	}

	// Restrictions ride along on the coupon; Validate does not consult them.
	ok, reason := got.Validate(db, uuid.New(), decimal.NewFromInt(150), time.Now())
	if !ok {
		t.Errorf("restricted coupon should still validate, got %q", reason)
	}
}

func TestTierForPoints(t *testing.T) {
	tests := []struct {
		points int64
		want   string
	}{
		{0, TierBronze},
		{999, TierBronze},
		{1000, TierSilver},
		{4999, TierSilver},
		{5000, TierGold},
		{10000, TierPlatinum},
	}

	for _, tt := range tests {
		if got := TierForPoints(tt.points); got != tt.want {
			t.Errorf("TierForPoints(%d) = %q, want %q", tt.points, got, tt.want)
		}
	}
}
