package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidReference       = errors.New("payment reference is required")
	ErrGatewayUnavailable     = errors.New("payment gateway unavailable")
	ErrGatewayResponseInvalid = errors.New("payment gateway response invalid")
)

// Outcome is the gateway's nested payment status, normalized.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomePaid
	OutcomePending
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomePaid:
		return "paid"
	case OutcomePending:
		return "pending"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is the normalized answer of a gateway status query.
type Status struct {
	Reference string
	// Confirmed is the gateway's top-level success flag.
	Confirmed bool
	Outcome   Outcome
	// RawStatus is the nested status string exactly as the gateway sent it.
	RawStatus     string
	Amount        int64
	Currency      string
	Method        string
	TransactionID string
}

// Settled reports whether both the top-level flag and the nested status say paid.
func (s Status) Settled() bool {
	return s.Confirmed && s.Outcome == OutcomePaid
}

// Client queries one gateway for the current status of a payment.
type Client interface {
	Status(ctx context.Context, reference string) (Status, error)
}

// parseOutcome matches gateway statuses exactly; case or whitespace variants
// are unknown and never settle a payment.
func parseOutcome(raw string) Outcome {
	switch raw {
	case "paid":
		return OutcomePaid
	case "pending", "processing":
		return OutcomePending
	case "failed", "cancelled", "canceled", "refused", "expired":
		return OutcomeFailed
	default:
		return OutcomeUnknown
	}
}

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// ParseAmount reads an amount in integer currency units. Fractions are
// truncated; anything unparseable yields 0 so it can never pass a minimum.
func ParseAmount(raw string) int64 {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || d.IsNegative() || d.GreaterThan(maxAmount) {
		return 0
	}
	return d.IntPart()
}

// FlexString accepts a JSON string or number. Other JSON kinds decode to "".
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*f = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		*f = FlexString(data)
	default:
		*f = ""
	}
	return nil
}

func (f FlexString) String() string {
	return string(f)
}
