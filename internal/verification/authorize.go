package verification

import (
	"context"
	"errors"
	"fmt"

	"listings_backend/internal/model"
	"listings_backend/pkg/store"
)

// AuthorizeListing loads the listing and checks the caller owns it. A missing
// listing and a foreign one produce the same error.
func AuthorizeListing(ctx context.Context, listings ListingStore, userID, listingID uint) (model.Listing, error) {
	if userID == 0 {
		return model.Listing{}, ErrUnauthenticated
	}
	listing, err := listings.FindListing(ctx, listingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Listing{}, ErrNotFoundOrUnauthorized
		}
		return model.Listing{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if listing.UserID != userID {
		return model.Listing{}, ErrNotFoundOrUnauthorized
	}
	return listing, nil
}
