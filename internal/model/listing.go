package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type Currency string

const (
	CurrencyXOF Currency = "XOF"
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
)

type ListingStatus string

const (
	ListingStatusForSale ListingStatus = "For Sale"
	ListingStatusForRent ListingStatus = "For Rent"
	ListingStatusSold    ListingStatus = "Sold"
	ListingStatusRented  ListingStatus = "Rented"
)

type Listing struct {
	gorm.Model
	Title    string        `json:"title" gorm:"not null"`
	Slug     string        `json:"slug" gorm:"uniqueIndex:idx_user_listing_slug;not null"`
	Status   ListingStatus `json:"status" gorm:"not null"`
	Price    float64       `json:"price" gorm:"not null"`
	Currency Currency      `json:"currency" gorm:"not null"`

	UserID uint `json:"user_id" gorm:"uniqueIndex:idx_user_listing_slug;not null"`

	City        string `json:"city"`
	StateName   string `json:"state_name"`
	CountryName string `json:"country_name"`

	IsPremium        bool       `json:"is_premium" gorm:"not null;default:false;index"`
	PremiumExpiresAt *time.Time `json:"premium_expires_at" gorm:"index"`

	User User `json:"-" gorm:"foreignKey:UserID"`
}

// Location joins the non-empty location parts, most specific first.
func (l *Listing) Location() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{l.City, l.StateName, l.CountryName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// PremiumActive is the read-time entitlement check: the flag alone is not
// enough once the window has passed.
func (l *Listing) PremiumActive(now time.Time) bool {
	return l.IsPremium && l.PremiumExpiresAt != nil && l.PremiumExpiresAt.After(now)
}

func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.Slug != "" {
		return nil
	}

	s := slug.Make(l.Title)
	if s == "" {
		s = "listing"
	}

	var count int64
	if err := tx.Model(&Listing{}).Where("user_id = ? AND slug = ?", l.UserID, s).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		s = fmt.Sprintf("%s-%d", s, time.Now().UnixNano())
	}

	l.Slug = s
	return nil
}
