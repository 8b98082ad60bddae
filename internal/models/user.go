package models

import (
	"github.com/google/uuid"
)

// User represents an authenticated customer.
type User struct {
	BaseModel
	Email        string `gorm:"uniqueIndex" json:"email"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	PasswordHash string `json:"-"`
	IsStaff      bool   `json:"is_staff"`

	Profile   *UserProfile `json:"profile,omitempty"`
	Addresses []Address    `json:"addresses,omitempty"`
	Orders    []Order      `json:"orders,omitempty"`
}

// FullName returns the display name used in outgoing mail.
func (u *User) FullName() string {
	if u.FirstName == "" && u.LastName == "" {
		return u.Email
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// UserProfile carries shop preferences and the denormalized loyalty balance.
type UserProfile struct {
	BaseModel
	UserID uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"user_id"`

	Currency             string `gorm:"default:USD" json:"currency"`
	Language             string `gorm:"default:en" json:"language"`
	NewsletterSubscribed bool   `gorm:"default:true" json:"newsletter_subscribed"`

	LoyaltyPoints int64  `json:"loyalty_points"`
	LoyaltyTier   string `gorm:"default:bronze" json:"loyalty_tier"`
}

// Address types.
const (
	AddressShipping = "shipping"
	AddressBilling  = "billing"
)

// Address is an address-book entry. Orders never reference these rows
// directly; checkout copies them into immutable snapshots.
type Address struct {
	BaseModel
	UserID       uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	Type         string    `json:"type"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Company      string    `json:"company"`
	AddressLine1 string    `json:"address_line_1"`
	AddressLine2 string    `json:"address_line_2"`
	City         string    `json:"city"`
	State        string    `json:"state"`
	PostalCode   string    `json:"postal_code"`
	Country      string    `json:"country"`
	Phone        string    `json:"phone"`
	IsDefault    bool      `json:"is_default"`
}

// Snapshot copies the row into the value embedded in orders.
func (a *Address) Snapshot() AddressSnapshot {
	return AddressSnapshot{
		FirstName:    a.FirstName,
		LastName:     a.LastName,
		Company:      a.Company,
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		State:        a.State,
		PostalCode:   a.PostalCode,
		Country:      a.Country,
		Phone:        a.Phone,
	}
}
