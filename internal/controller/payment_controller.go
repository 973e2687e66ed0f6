package controller

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"listings_backend/internal/middleware"
	"listings_backend/internal/model"
	"listings_backend/internal/verification"
	"listings_backend/pkg/gateway"
)

type PaymentVerifier interface {
	VerifyPull(ctx context.Context, in verification.PullInput) (verification.PullResult, error)
	VerifyIPN(ctx context.Context, in verification.IPNInput) (verification.IPNResult, error)
}

type VerifyPaymentInput struct {
	Token      string             `json:"token" validate:"required"`
	PropertyID gateway.FlexString `json:"propertyId" validate:"required"`
}

// customField accepts the metadata either as the encoded string the gateway
// normally sends or as an inline JSON object.
type customField string

func (f *customField) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s gateway.FlexString
		if err := s.UnmarshalJSON(data); err != nil {
			return err
		}
		*f = customField(s)
		return nil
	}
	if string(data) == "null" {
		*f = ""
		return nil
	}
	*f = customField(data)
	return nil
}

type IPNInput struct {
	RefCommand      string      `json:"ref_command" form:"ref_command" validate:"required"`
	TransactionID   string      `json:"transaction_id" form:"transaction_id" validate:"required"`
	PaymentMethod   string      `json:"payment_method" form:"payment_method" validate:"required"`
	CustomField     customField `json:"custom_field" form:"custom_field" validate:"required"`
	Type            string      `json:"type_event" form:"type_event"`
	APIKeySHA256    string      `json:"api_key_sha256" form:"api_key_sha256"`
	APISecretSHA256 string      `json:"api_secret_sha256" form:"api_secret_sha256"`
}

type PaymentController struct {
	verifier PaymentVerifier
	validate *validator.Validate
	log      *zap.Logger
}

func NewPaymentController(verifier PaymentVerifier, log *zap.Logger) *PaymentController {
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentController{
		verifier: verifier,
		validate: validator.New(),
		log:      log,
	}
}

// VerifyPayment confirms a buyer-supplied payment token and upgrades the listing.
func (pc *PaymentController) VerifyPayment(c *fiber.Ctx) error {
	credential := middleware.BearerToken(c)
	if credential == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	input := new(VerifyPaymentInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}
	input.Token = strings.TrimSpace(input.Token)
	if err := pc.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "token and propertyId are required",
		})
	}

	listingID, err := strconv.ParseUint(strings.TrimSpace(input.PropertyID.String()), 10, 64)
	if err != nil || listingID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid propertyId",
		})
	}

	res, err := pc.verifier.VerifyPull(c.UserContext(), verification.PullInput{
		Credential: credential,
		Token:      input.Token,
		ListingID:  uint(listingID),
	})
	if err != nil {
		return pc.writeError(c, verification.FlowPull, err)
	}

	message := "Payment verified, premium activated"
	switch {
	case res.Status == model.SubscriptionExpired:
		message = "Payment already verified, premium period has ended"
	case res.Replayed:
		message = "Payment already verified"
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"message":   message,
		"expiresAt": res.ExpiresAt,
		"paymentInfo": fiber.Map{
			"transaction": res.TransactionID,
			"amount":      res.Amount,
			"method":      res.Method,
		},
	})
}

// HandleIPN processes a push notification. The gateway posts either JSON or
// a urlencoded form.
func (pc *PaymentController) HandleIPN(c *fiber.Ctx) error {
	input := new(IPNInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}
	if err := pc.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "ref_command, transaction_id, payment_method and custom_field are required",
		})
	}

	res, err := pc.verifier.VerifyIPN(c.UserContext(), verification.IPNInput{
		RefCommand:    input.RefCommand,
		TransactionID: input.TransactionID,
		PaymentMethod: input.PaymentMethod,
		CustomField:   string(input.CustomField),
		APIKeyHash:    input.APIKeySHA256,
		APISecretHash: input.APISecretSHA256,
	})
	if err != nil {
		return pc.writeError(c, verification.FlowPush, err)
	}

	message := "Subscription activated"
	switch {
	case res.Status == model.SubscriptionExpired:
		message = "Subscription period has ended"
	case res.Replayed:
		message = "Subscription already active"
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": message,
	})
}

// Options answers preflight requests that reach the router.
func (pc *PaymentController) Options(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	c.Status(fiber.StatusOK)
	return nil
}

func (pc *PaymentController) writeError(c *fiber.Ctx, flow string, err error) error {
	pc.log.Info("payment verification rejected",
		zap.String("flow", flow),
		zap.String("kind", verification.Kind(err)),
		zap.Any("request_id", c.Locals("requestid")),
		zap.Error(err))

	var notConfirmed *verification.PaymentNotConfirmedError
	var insufficient *verification.InsufficientAmountError

	switch {
	case errors.Is(err, verification.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid payment request",
		})
	case errors.Is(err, verification.ErrUnauthenticated):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	case errors.Is(err, verification.ErrNotFoundOrUnauthorized):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Listing not found",
		})
	case errors.As(err, &notConfirmed):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "Payment not confirmed",
			"status": notConfirmed.RawStatus,
		})
	case errors.As(err, &insufficient):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":    "Insufficient payment amount",
			"expected": insufficient.Expected,
			"received": insufficient.Received,
		})
	case errors.Is(err, verification.ErrGatewayUnavailable):
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Payment gateway unavailable",
		})
	case errors.Is(err, verification.ErrGatewayResponseInvalid):
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Invalid payment gateway response",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not activate premium",
		})
	}
}
