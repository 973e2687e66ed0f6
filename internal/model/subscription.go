package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"listings_backend/pkg/subscription"
)

type SubscriptionStatus string

const (
	SubscriptionPending SubscriptionStatus = "pending"
	SubscriptionActive  SubscriptionStatus = "active"
	SubscriptionExpired SubscriptionStatus = "expired"
)

// Invoice is the receipt snapshot captured when a subscription is activated.
type Invoice struct {
	CustomerName    string    `json:"customer_name"`
	CustomerPhone   string    `json:"customer_phone"`
	ListingTitle    string    `json:"listing_title"`
	ListingLocation string    `json:"listing_location"`
	Amount          int64     `json:"amount"`
	Currency        string    `json:"currency"`
	Method          string    `json:"method"`
	TransactionID   string    `json:"transaction_id"`
	PaidAt          time.Time `json:"paid_at"`
}

// Subscription is keyed by the merchant reference used at checkout.
type Subscription struct {
	gorm.Model
	Reference     string                      `json:"reference" gorm:"uniqueIndex;not null"`
	ListingID     uint                        `json:"listing_id" gorm:"index;not null"`
	UserID        uint                        `json:"user_id" gorm:"index;not null"`
	Product       subscription.Product        `json:"product" gorm:"not null"`
	Plan          subscription.Plan           `json:"plan" gorm:"not null"`
	Status        SubscriptionStatus          `json:"status" gorm:"not null;default:'pending';index"`
	StartsAt      *time.Time                  `json:"starts_at"`
	ExpiresAt     *time.Time                  `json:"expires_at" gorm:"index"`
	TransactionID string                      `json:"transaction_id"`
	Invoice       datatypes.JSONType[Invoice] `json:"invoice"`

	Listing Listing `json:"-" gorm:"foreignKey:ListingID"`
	User    User    `json:"-" gorm:"foreignKey:UserID"`
}
