package verification

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"listings_backend/internal/model"
	"listings_backend/pkg/gateway"
	"listings_backend/pkg/store"
	"listings_backend/pkg/subscription"
)

const (
	FlowPull = "pull"
	FlowPush = "push"
)

// IPNKeys are the merchant credentials whose SHA-256 digests the push
// gateway echoes in every notification.
type IPNKeys struct {
	APIKey    string
	APISecret string
}

type Dependencies struct {
	TokenGateway   gateway.Client
	PayTechGateway gateway.Client
	Identity       IdentityResolver
	Listings       ListingStore
	Entitlements   EntitlementStore
	Catalog        subscription.Catalog
	Logger         *zap.Logger
	Observer       Observer
	// IPNKeys enables the digest check on notifications when set.
	IPNKeys *IPNKeys
}

// Service verifies premium payments with the gateways and activates the
// entitlement. It holds no per-request state.
type Service struct {
	tokens       gateway.Client
	paytech      gateway.Client
	identity     IdentityResolver
	listings     ListingStore
	entitlements EntitlementStore
	catalog      subscription.Catalog
	log          *zap.Logger
	observer     Observer
	ipnKeys      *IPNKeys
	now          func() time.Time
}

func NewService(deps Dependencies) *Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		tokens:       deps.TokenGateway,
		paytech:      deps.PayTechGateway,
		identity:     deps.Identity,
		listings:     deps.Listings,
		entitlements: deps.Entitlements,
		catalog:      deps.Catalog,
		log:          log,
		observer:     deps.Observer,
		ipnKeys:      deps.IPNKeys,
		now:          time.Now,
	}
}

type PullInput struct {
	Credential string
	Token      string
	ListingID  uint
}

type PullResult struct {
	ExpiresAt     time.Time
	TransactionID string
	Amount        int64
	Method        string
	Replayed      bool
	Status        model.SubscriptionStatus
}

// VerifyPull checks a buyer-supplied payment token for the report upgrade of
// one of the caller's listings.
func (s *Service) VerifyPull(ctx context.Context, in PullInput) (res PullResult, err error) {
	defer func() { s.observe(FlowPull, err) }()

	token := strings.TrimSpace(in.Token)
	if token == "" || in.ListingID == 0 {
		return PullResult{}, validationError("token and propertyId are required")
	}

	userID, err := s.identity.Resolve(ctx, in.Credential)
	if err != nil {
		s.log.Debug("credential rejected", zap.String("flow", FlowPull), zap.Error(err))
		return PullResult{}, ErrUnauthenticated
	}

	listing, err := AuthorizeListing(ctx, s.listings, userID, in.ListingID)
	if err != nil {
		s.log.Warn("listing authorization failed",
			zap.String("flow", FlowPull),
			zap.Uint("user_id", userID),
			zap.Uint("listing_id", in.ListingID),
			zap.Error(err))
		return PullResult{}, err
	}

	st, err := s.tokens.Status(ctx, token)
	if err != nil {
		return PullResult{}, s.gatewayFailure(FlowPull, token, err)
	}

	expected := s.catalog.ReportPrice
	if err := Verify(st, expected); err != nil {
		s.logRejection(FlowPull, token, st, expected, err)
		return PullResult{}, err
	}

	act, err := s.entitlements.Activate(ctx, store.Activation{
		Reference:       token,
		ListingID:       listing.ID,
		UserID:          userID,
		Product:         subscription.ReportProduct,
		Plan:            subscription.MonthlyPlan,
		Duration:        s.catalog.ReportDuration,
		TransactionID:   st.TransactionID,
		Invoice:         s.invoice(listing, st),
		CreateIfMissing: true,
		Now:             s.now(),
	})
	if err != nil {
		return PullResult{}, s.activationFailure(FlowPull, token, err)
	}

	s.log.Info("premium activated",
		zap.String("flow", FlowPull),
		zap.String("reference", token),
		zap.Uint("listing_id", listing.ID),
		zap.Time("expires_at", act.ExpiresAt),
		zap.Bool("replayed", act.Replayed))

	return PullResult{
		ExpiresAt:     act.ExpiresAt,
		TransactionID: st.TransactionID,
		Amount:        st.Amount,
		Method:        st.Method,
		Replayed:      act.Replayed,
		Status:        act.Status,
	}, nil
}

type IPNInput struct {
	RefCommand    string
	TransactionID string
	PaymentMethod string
	CustomField   string
	APIKeyHash    string
	APISecretHash string
}

type IPNResult struct {
	Reference string
	ExpiresAt time.Time
	Replayed  bool
	Status    model.SubscriptionStatus
}

// checkoutMetadata is the custom_field blob embedded at checkout and echoed
// back by the gateway.
type checkoutMetadata struct {
	ListingID      uint
	UserID         uint
	Plan           subscription.Plan
	ExpectedAmount int64
}

// VerifyIPN handles a gateway notification. The notification body is only a
// hint: the payment is re-queried from the gateway before anything changes.
func (s *Service) VerifyIPN(ctx context.Context, in IPNInput) (res IPNResult, err error) {
	defer func() { s.observe(FlowPush, err) }()

	ref := strings.TrimSpace(in.RefCommand)
	if ref == "" || strings.TrimSpace(in.TransactionID) == "" ||
		strings.TrimSpace(in.PaymentMethod) == "" || strings.TrimSpace(in.CustomField) == "" {
		return IPNResult{}, validationError("ref_command, transaction_id, payment_method and custom_field are required")
	}

	if !s.ipnKeysMatch(in.APIKeyHash, in.APISecretHash) {
		s.log.Warn("ipn key digests rejected", zap.String("flow", FlowPush), zap.String("reference", ref))
		return IPNResult{}, ErrUnauthenticated
	}

	meta, err := parseCheckoutMetadata(in.CustomField)
	if err != nil {
		return IPNResult{}, err
	}

	sub, err := s.entitlements.FindSubscription(ctx, ref)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.log.Warn("ipn for unknown reference", zap.String("flow", FlowPush), zap.String("reference", ref))
			return IPNResult{}, ErrNotFoundOrUnauthorized
		}
		return IPNResult{}, s.activationFailure(FlowPush, ref, err)
	}
	if sub.ListingID != meta.ListingID || sub.UserID != meta.UserID {
		s.log.Warn("ipn metadata does not match checkout",
			zap.String("flow", FlowPush),
			zap.String("reference", ref),
			zap.Uint("listing_id", sub.ListingID),
			zap.Uint("metadata_listing_id", meta.ListingID),
			zap.Uint("user_id", sub.UserID),
			zap.Uint("metadata_user_id", meta.UserID))
		return IPNResult{}, ErrNotFoundOrUnauthorized
	}

	plan := sub.Plan
	if plan == "" {
		plan = meta.Plan
	} else if plan != meta.Plan {
		s.log.Warn("ipn plan does not match checkout",
			zap.String("flow", FlowPush),
			zap.String("reference", ref),
			zap.String("plan", string(plan)),
			zap.String("metadata_plan", string(meta.Plan)))
		return IPNResult{}, validationError("plan does not match checkout")
	}
	terms, ok := s.catalog.Terms(plan)
	if !ok {
		return IPNResult{}, validationError("unknown plan")
	}

	st, err := s.paytech.Status(ctx, ref)
	if err != nil {
		return IPNResult{}, s.gatewayFailure(FlowPush, ref, err)
	}

	expected := meta.ExpectedAmount
	if expected < terms.Price {
		s.log.Warn("echoed expected amount below plan price",
			zap.String("flow", FlowPush),
			zap.String("reference", ref),
			zap.Int64("echoed", meta.ExpectedAmount),
			zap.Int64("plan_price", terms.Price))
		expected = terms.Price
	}
	if err := Verify(st, expected); err != nil {
		s.logRejection(FlowPush, ref, st, expected, err)
		return IPNResult{}, err
	}
	if st.TransactionID != "" && st.TransactionID != strings.TrimSpace(in.TransactionID) {
		s.log.Warn("ipn transaction id differs from gateway",
			zap.String("flow", FlowPush),
			zap.String("reference", ref),
			zap.String("ipn_transaction_id", in.TransactionID),
			zap.String("gateway_transaction_id", st.TransactionID))
	}

	listing, err := s.listings.FindListing(ctx, sub.ListingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return IPNResult{}, ErrNotFoundOrUnauthorized
		}
		return IPNResult{}, s.activationFailure(FlowPush, ref, err)
	}

	if st.TransactionID == "" {
		st.TransactionID = strings.TrimSpace(in.TransactionID)
	}
	if st.Method == "" {
		st.Method = strings.TrimSpace(in.PaymentMethod)
	}

	act, err := s.entitlements.Activate(ctx, store.Activation{
		Reference:     ref,
		ListingID:     sub.ListingID,
		UserID:        sub.UserID,
		Product:       subscription.SubscriptionProduct,
		Plan:          plan,
		Duration:      terms.Duration,
		TransactionID: st.TransactionID,
		Invoice:       s.invoice(listing, st),
		Now:           s.now(),
	})
	if err != nil {
		return IPNResult{}, s.activationFailure(FlowPush, ref, err)
	}

	s.log.Info("premium activated",
		zap.String("flow", FlowPush),
		zap.String("reference", ref),
		zap.Uint("listing_id", sub.ListingID),
		zap.String("plan", string(plan)),
		zap.Time("expires_at", act.ExpiresAt),
		zap.Bool("replayed", act.Replayed))

	return IPNResult{Reference: ref, ExpiresAt: act.ExpiresAt, Replayed: act.Replayed, Status: act.Status}, nil
}

func parseCheckoutMetadata(raw string) (checkoutMetadata, error) {
	data := []byte(strings.TrimSpace(raw))

	// Some integrations encode the blob twice.
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return checkoutMetadata{}, validationError("custom_field is not valid JSON")
		}
		data = []byte(inner)
	}

	var blob struct {
		PropertyID     gateway.FlexString `json:"propertyId"`
		UserID         gateway.FlexString `json:"userId"`
		Plan           string             `json:"plan"`
		ExpectedAmount gateway.FlexString `json:"expectedAmount"`
	}
	if err := json.Unmarshal(data, &blob); err != nil {
		return checkoutMetadata{}, validationError("custom_field is not valid JSON")
	}

	listingID, err := strconv.ParseUint(strings.TrimSpace(blob.PropertyID.String()), 10, 64)
	if err != nil || listingID == 0 {
		return checkoutMetadata{}, validationError("custom_field.propertyId is invalid")
	}
	userID, err := strconv.ParseUint(strings.TrimSpace(blob.UserID.String()), 10, 64)
	if err != nil || userID == 0 {
		return checkoutMetadata{}, validationError("custom_field.userId is invalid")
	}
	plan, ok := subscription.ParsePlan(blob.Plan)
	if !ok {
		return checkoutMetadata{}, validationError("custom_field.plan is invalid")
	}

	return checkoutMetadata{
		ListingID:      uint(listingID),
		UserID:         uint(userID),
		Plan:           plan,
		ExpectedAmount: gateway.ParseAmount(blob.ExpectedAmount.String()),
	}, nil
}

func (s *Service) ipnKeysMatch(keyHash, secretHash string) bool {
	if s.ipnKeys == nil {
		return true
	}
	return digestMatches(s.ipnKeys.APIKey, keyHash) && digestMatches(s.ipnKeys.APISecret, secretHash)
}

func digestMatches(secret, digest string) bool {
	sum := sha256.Sum256([]byte(secret))
	want := hex.EncodeToString(sum[:])
	got := strings.ToLower(strings.TrimSpace(digest))
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

func (s *Service) invoice(listing model.Listing, st gateway.Status) model.Invoice {
	currency := st.Currency
	if currency == "" {
		currency = s.catalog.Currency
	}
	return model.Invoice{
		CustomerName:    listing.User.DisplayName(),
		CustomerPhone:   listing.User.PhoneNumber,
		ListingTitle:    listing.Title,
		ListingLocation: listing.Location(),
		Amount:          st.Amount,
		Currency:        currency,
		Method:          st.Method,
		TransactionID:   st.TransactionID,
		PaidAt:          s.now().UTC(),
	}
}

func (s *Service) gatewayFailure(flow, ref string, err error) error {
	if errors.Is(err, gateway.ErrInvalidReference) {
		return validationError(err.Error())
	}
	s.log.Error("gateway query failed",
		zap.String("flow", flow),
		zap.String("reference", ref),
		zap.String("kind", Kind(err)),
		zap.Error(err))
	return err
}

func (s *Service) logRejection(flow, ref string, st gateway.Status, expected int64, err error) {
	s.log.Warn("payment rejected",
		zap.String("flow", flow),
		zap.String("reference", ref),
		zap.String("kind", Kind(err)),
		zap.Bool("gateway_confirmed", st.Confirmed),
		zap.String("raw_status", st.RawStatus),
		zap.Int64("expected", expected),
		zap.Int64("received", st.Amount))
}

func (s *Service) activationFailure(flow, ref string, err error) error {
	switch {
	case errors.Is(err, store.ErrReferenceConflict):
		s.log.Warn("payment reference already bound elsewhere", zap.String("flow", flow), zap.String("reference", ref))
		return validationError("payment already applied to another listing")
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFoundOrUnauthorized
	}
	s.log.Error("entitlement activation failed",
		zap.String("flow", flow),
		zap.String("reference", ref),
		zap.Error(err))
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}

func (s *Service) observe(flow string, err error) {
	if s.observer != nil {
		s.observer.ObserveVerification(flow, Kind(err))
	}
}
