package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"listings_backend/internal/model"
	"listings_backend/pkg/subscription"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "store.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// SQLite allows one writer; serialize transactions on a single connection.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Listing{}, &model.Subscription{}))
	return db
}

func seedListing(t *testing.T, db *gorm.DB) (model.User, model.Listing) {
	t.Helper()
	owner := model.User{Email: "owner@example.com", Username: "owner", FirstName: "Awa", LastName: "Diop", PhoneNumber: "+221770000000"}
	require.NoError(t, db.Create(&owner).Error)
	listing := model.Listing{Title: "Villa Almadies", Status: model.ListingStatusForSale, Price: 1, Currency: model.CurrencyXOF, UserID: owner.ID, City: "Dakar"}
	require.NoError(t, db.Create(&listing).Error)
	return owner, listing
}

func seedPending(t *testing.T, db *gorm.DB, ref string, listing model.Listing, plan subscription.Plan) {
	t.Helper()
	require.NoError(t, db.Create(&model.Subscription{
		Reference: ref,
		ListingID: listing.ID,
		UserID:    listing.UserID,
		Product:   subscription.SubscriptionProduct,
		Plan:      plan,
		Status:    model.SubscriptionPending,
	}).Error)
}

func TestListingSlugGenerated(t *testing.T) {
	db := newTestDB(t)
	_, listing := seedListing(t, db)
	assert.Equal(t, "villa-almadies", listing.Slug)
}

func TestFindListingNotFound(t *testing.T) {
	s := New(newTestDB(t))
	_, err := s.FindListing(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.FindSubscription(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActivatePendingSubscription(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	owner, listing := seedListing(t, db)
	seedPending(t, db, "REF-1", listing, subscription.YearlyPlan)

	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	res, err := s.Activate(context.Background(), Activation{
		Reference:     "REF-1",
		ListingID:     listing.ID,
		UserID:        owner.ID,
		Plan:          subscription.YearlyPlan,
		Duration:      365 * subscription.Day,
		TransactionID: "T-1",
		Invoice:       model.Invoice{Amount: 50000, Currency: "XOF", Method: "Wave"},
		Now:           now,
	})
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Equal(t, now.Add(365*subscription.Day), res.ExpiresAt)

	sub, err := s.FindSubscription(context.Background(), "REF-1")
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionActive, sub.Status)
	assert.Equal(t, "T-1", sub.TransactionID)
	assert.Equal(t, int64(50000), sub.Invoice.Data().Amount)
	require.NotNil(t, sub.ExpiresAt)
	assert.True(t, sub.ExpiresAt.Equal(res.ExpiresAt))

	got, err := s.FindListing(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPremium)
	require.NotNil(t, got.PremiumExpiresAt)
	assert.True(t, got.PremiumExpiresAt.Equal(res.ExpiresAt))
	assert.Equal(t, "owner", got.User.Username)
}

func TestActivateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	owner, listing := seedListing(t, db)
	seedPending(t, db, "REF-2", listing, subscription.MonthlyPlan)

	first := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	in := Activation{Reference: "REF-2", ListingID: listing.ID, UserID: owner.ID, Duration: 30 * subscription.Day, Now: first}

	r1, err := s.Activate(context.Background(), in)
	require.NoError(t, err)

	in.Now = first.Add(48 * time.Hour)
	r2, err := s.Activate(context.Background(), in)
	require.NoError(t, err)

	assert.True(t, r2.Replayed)
	assert.True(t, r1.ExpiresAt.Equal(r2.ExpiresAt), "replay must not extend the window")

	got, err := s.FindListing(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.True(t, got.PremiumExpiresAt.Equal(r1.ExpiresAt))
}

func TestActivateRepairsListingAfterPartialWrite(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	owner, listing := seedListing(t, db)
	seedPending(t, db, "REF-3", listing, subscription.MonthlyPlan)

	in := Activation{Reference: "REF-3", ListingID: listing.ID, UserID: owner.ID, Duration: 30 * subscription.Day, Now: time.Now()}
	r1, err := s.Activate(context.Background(), in)
	require.NoError(t, err)

	require.NoError(t, db.Model(&model.Listing{}).Where("id = ?", listing.ID).
		Updates(map[string]interface{}{"is_premium": false, "premium_expires_at": nil}).Error)

	_, err = s.Activate(context.Background(), in)
	require.NoError(t, err)

	got, err := s.FindListing(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPremium)
	assert.True(t, got.PremiumExpiresAt.Equal(r1.ExpiresAt))
}

func TestActivateConcurrentDeliveries(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	owner, listing := seedListing(t, db)
	seedPending(t, db, "REF-C", listing, subscription.MonthlyPlan)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	results := make([]ActivationResult, 4)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.Activate(context.Background(), Activation{
				Reference: "REF-C",
				ListingID: listing.ID,
				UserID:    owner.ID,
				Duration:  30 * subscription.Day,
				Now:       base.Add(time.Duration(i) * time.Minute),
			})
			if assert.NoError(t, err) {
				results[i] = res
			}
		}(i)
	}
	wg.Wait()

	fresh := 0
	for _, r := range results {
		if !r.Replayed {
			fresh++
		}
		assert.True(t, r.ExpiresAt.Equal(results[0].ExpiresAt))
	}
	assert.Equal(t, 1, fresh)
}

func TestActivateCreatesMissingRow(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	owner, listing := seedListing(t, db)

	res, err := s.Activate(context.Background(), Activation{
		Reference:       "tok-1",
		ListingID:       listing.ID,
		UserID:          owner.ID,
		Product:         subscription.ReportProduct,
		Plan:            subscription.MonthlyPlan,
		Duration:        30 * subscription.Day,
		CreateIfMissing: true,
	})
	require.NoError(t, err)
	assert.False(t, res.Replayed)

	sub, err := s.FindSubscription(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, subscription.ReportProduct, sub.Product)
	assert.Equal(t, model.SubscriptionActive, sub.Status)
}

func TestActivateRejectsReferenceForOtherListing(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	owner, listing := seedListing(t, db)
	other := model.Listing{Title: "Appartement Plateau", Status: model.ListingStatusForRent, Price: 1, Currency: model.CurrencyXOF, UserID: owner.ID}
	require.NoError(t, db.Create(&other).Error)

	in := Activation{Reference: "tok-2", ListingID: listing.ID, UserID: owner.ID, Duration: 30 * subscription.Day, CreateIfMissing: true}
	_, err := s.Activate(context.Background(), in)
	require.NoError(t, err)

	in.ListingID = other.ID
	_, err = s.Activate(context.Background(), in)
	assert.ErrorIs(t, err, ErrReferenceConflict)

	got, err := s.FindListing(context.Background(), other.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPremium)
}

func TestActivateKeepsLongerExistingWindow(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	owner, listing := seedListing(t, db)
	seedPending(t, db, "YEAR", listing, subscription.YearlyPlan)
	seedPending(t, db, "MONTH", listing, subscription.MonthlyPlan)

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	yearly, err := s.Activate(context.Background(), Activation{Reference: "YEAR", ListingID: listing.ID, UserID: owner.ID, Duration: 365 * subscription.Day, Now: now})
	require.NoError(t, err)
	_, err = s.Activate(context.Background(), Activation{Reference: "MONTH", ListingID: listing.ID, UserID: owner.ID, Duration: 30 * subscription.Day, Now: now})
	require.NoError(t, err)

	got, err := s.FindListing(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.True(t, got.PremiumExpiresAt.Equal(yearly.ExpiresAt))
}

func TestActivateUnknownReference(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	owner, listing := seedListing(t, db)

	_, err := s.Activate(context.Background(), Activation{Reference: "nope", ListingID: listing.ID, UserID: owner.ID, Duration: subscription.Day})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpireLapsed(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	owner, listing := seedListing(t, db)
	seedPending(t, db, "OLD", listing, subscription.MonthlyPlan)

	activatedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := s.Activate(context.Background(), Activation{Reference: "OLD", ListingID: listing.ID, UserID: owner.ID, Duration: 30 * subscription.Day, Now: activatedAt})
	require.NoError(t, err)

	res, err := s.ExpireLapsed(context.Background(), activatedAt.Add(10*subscription.Day))
	require.NoError(t, err)
	assert.Zero(t, res.ExpiredSubscriptions)
	assert.Zero(t, res.DemotedListings)

	res, err = s.ExpireLapsed(context.Background(), activatedAt.Add(31*subscription.Day))
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.ExpiredSubscriptions)
	assert.Equal(t, int64(1), res.DemotedListings)

	sub, err := s.FindSubscription(context.Background(), "OLD")
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionExpired, sub.Status)

	// A late replay of the expired payment does not re-grant premium.
	replay, err := s.Activate(context.Background(), Activation{Reference: "OLD", ListingID: listing.ID, UserID: owner.ID, Duration: 30 * subscription.Day})
	require.NoError(t, err)
	assert.True(t, replay.Replayed)
	assert.Equal(t, model.SubscriptionExpired, replay.Status)

	got, err := s.FindListing(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPremium)
}
