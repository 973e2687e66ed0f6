package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"listings_backend/internal/model"
	"listings_backend/pkg/subscription"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrReferenceConflict means the reference is already bound to another listing or user.
	ErrReferenceConflict = errors.New("reference belongs to another listing")
)

// Store is the GORM-backed persistence for listings and premium subscriptions.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Activation describes one verified payment to turn into an entitlement.
type Activation struct {
	Reference     string
	ListingID     uint
	UserID        uint
	Product       subscription.Product
	Plan          subscription.Plan
	Duration      time.Duration
	TransactionID string
	Invoice       model.Invoice
	// CreateIfMissing inserts the pending row first. The token flow has no
	// checkout row of its own.
	CreateIfMissing bool
	Now             time.Time
}

type ActivationResult struct {
	StartsAt  time.Time
	ExpiresAt time.Time
	// Replayed is true when the reference had already been activated.
	Replayed bool
	Status   model.SubscriptionStatus
}

func (s *Store) FindListing(ctx context.Context, id uint) (model.Listing, error) {
	var listing model.Listing
	err := s.db.WithContext(ctx).Preload("User").First(&listing, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Listing{}, ErrNotFound
	}
	if err != nil {
		return model.Listing{}, fmt.Errorf("find listing %d: %w", id, err)
	}
	return listing, nil
}

func (s *Store) FindSubscription(ctx context.Context, reference string) (model.Subscription, error) {
	var sub model.Subscription
	err := s.db.WithContext(ctx).Where("reference = ?", reference).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Subscription{}, ErrNotFound
	}
	if err != nil {
		return model.Subscription{}, fmt.Errorf("find subscription %q: %w", reference, err)
	}
	return sub, nil
}

// Activate moves the subscription from pending to active and marks the
// listing premium in one transaction. The subscription update only matches
// pending rows, so concurrent or repeated deliveries for one reference
// converge on the window written by the first one.
func (s *Store) Activate(ctx context.Context, in Activation) (ActivationResult, error) {
	if in.Reference == "" || in.ListingID == 0 || in.Duration <= 0 {
		return ActivationResult{}, fmt.Errorf("invalid activation for reference %q", in.Reference)
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	var result ActivationResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.CreateIfMissing {
			pending := model.Subscription{
				Reference: in.Reference,
				ListingID: in.ListingID,
				UserID:    in.UserID,
				Product:   in.Product,
				Plan:      in.Plan,
				Status:    model.SubscriptionPending,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "reference"}},
				DoNothing: true,
			}).Create(&pending).Error; err != nil {
				return fmt.Errorf("create pending subscription: %w", err)
			}
		}

		var sub model.Subscription
		if err := tx.Where("reference = ?", in.Reference).First(&sub).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("load subscription: %w", err)
		}
		if sub.ListingID != in.ListingID || (in.UserID != 0 && sub.UserID != in.UserID) {
			return ErrReferenceConflict
		}

		if sub.Status == model.SubscriptionPending {
			startsAt := now
			expiresAt := now.Add(in.Duration)
			res := tx.Model(&model.Subscription{}).
				Where("reference = ? AND status = ?", in.Reference, model.SubscriptionPending).
				Updates(map[string]interface{}{
					"status":         model.SubscriptionActive,
					"starts_at":      startsAt,
					"expires_at":     expiresAt,
					"transaction_id": in.TransactionID,
					"invoice":        datatypes.NewJSONType(in.Invoice),
				})
			if res.Error != nil {
				return fmt.Errorf("activate subscription: %w", res.Error)
			}
			if res.RowsAffected == 1 {
				result = ActivationResult{StartsAt: startsAt, ExpiresAt: expiresAt, Status: model.SubscriptionActive}
				return s.grantListing(tx, in.ListingID, expiresAt)
			}
			// Lost the race to a concurrent activation; fall through to its result.
			if err := tx.Where("reference = ?", in.Reference).First(&sub).Error; err != nil {
				return fmt.Errorf("reload subscription: %w", err)
			}
		}

		result = ActivationResult{Replayed: true, Status: sub.Status}
		if sub.StartsAt != nil {
			result.StartsAt = sub.StartsAt.UTC()
		}
		if sub.ExpiresAt != nil {
			result.ExpiresAt = sub.ExpiresAt.UTC()
		}
		if sub.Status != model.SubscriptionActive || sub.ExpiresAt == nil {
			return nil
		}
		// Repairs a listing left behind by an earlier partial write.
		return s.grantListing(tx, in.ListingID, sub.ExpiresAt.UTC())
	})
	if err != nil {
		return ActivationResult{}, err
	}
	return result, nil
}

// grantListing sets the premium flag and never moves an existing expiry backwards.
func (s *Store) grantListing(tx *gorm.DB, listingID uint, expiresAt time.Time) error {
	var listing model.Listing
	if err := tx.Select("id", "is_premium", "premium_expires_at").First(&listing, listingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("load listing %d: %w", listingID, err)
	}

	if listing.IsPremium && listing.PremiumExpiresAt != nil && !listing.PremiumExpiresAt.Before(expiresAt) {
		return nil
	}

	if err := tx.Model(&model.Listing{}).Where("id = ?", listingID).Updates(map[string]interface{}{
		"is_premium":         true,
		"premium_expires_at": expiresAt,
	}).Error; err != nil {
		return fmt.Errorf("grant premium on listing %d: %w", listingID, err)
	}
	return nil
}

type SweepResult struct {
	ExpiredSubscriptions int64
	DemotedListings      int64
}

// ExpireLapsed closes active subscriptions whose window has passed and clears
// the premium flag on listings without a remaining window.
func (s *Store) ExpireLapsed(ctx context.Context, now time.Time) (SweepResult, error) {
	now = now.UTC()
	var result SweepResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Subscription{}).
			Where("status = ? AND expires_at <= ?", model.SubscriptionActive, now).
			Update("status", model.SubscriptionExpired)
		if res.Error != nil {
			return fmt.Errorf("expire subscriptions: %w", res.Error)
		}
		result.ExpiredSubscriptions = res.RowsAffected

		res = tx.Model(&model.Listing{}).
			Where("is_premium = ? AND (premium_expires_at IS NULL OR premium_expires_at <= ?)", true, now).
			Update("is_premium", false)
		if res.Error != nil {
			return fmt.Errorf("demote listings: %w", res.Error)
		}
		result.DemotedListings = res.RowsAffected
		return nil
	})
	if err != nil {
		return SweepResult{}, err
	}
	return result, nil
}
