package verification

import (
	"context"

	"listings_backend/internal/model"
	"listings_backend/pkg/store"
)

// IdentityResolver turns a bearer credential into a user id, or fails.
type IdentityResolver interface {
	Resolve(ctx context.Context, credential string) (uint, error)
}

type ListingStore interface {
	FindListing(ctx context.Context, id uint) (model.Listing, error)
}

// EntitlementStore persists activations. Activate must be idempotent per reference.
type EntitlementStore interface {
	FindSubscription(ctx context.Context, reference string) (model.Subscription, error)
	Activate(ctx context.Context, in store.Activation) (store.ActivationResult, error)
}

// Observer receives one outcome per verification attempt.
type Observer interface {
	ObserveVerification(flow, result string)
}
