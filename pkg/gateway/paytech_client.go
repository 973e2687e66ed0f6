package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// PayTechClient re-queries the IPN-pushing gateway by merchant reference.
type PayTechClient struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	HTTPClient *http.Client
}

func NewPayTechClient(baseURL, apiKey, apiSecret string, timeout time.Duration) *PayTechClient {
	return &PayTechClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		APISecret:  apiSecret,
		HTTPClient: newHTTPClient(timeout),
	}
}

type paytechStatusResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Payment *paytechPayment `json:"payment"`
}

type paytechPayment struct {
	Status        string     `json:"status"`
	Amount        FlexString `json:"amount"`
	Currency      string     `json:"currency"`
	PaymentMethod string     `json:"payment_method"`
	RefCommand    string     `json:"ref_command"`
	TransactionID string     `json:"transaction_id"`
}

func (c *PayTechClient) Status(ctx context.Context, refCommand string) (Status, error) {
	refCommand = strings.TrimSpace(refCommand)
	if refCommand == "" {
		return Status{}, ErrInvalidReference
	}

	header := http.Header{}
	header.Set("API_KEY", c.APIKey)
	header.Set("API_SECRET", c.APISecret)

	endpoint := fmt.Sprintf("%s/payment/get-status?ref_command=%s", c.BaseURL, url.QueryEscape(refCommand))
	body, err := fetch(ctx, c.HTTPClient, endpoint, header)
	if err != nil {
		return Status{}, err
	}

	return parsePayTechStatus(refCommand, body)
}

func parsePayTechStatus(refCommand string, body []byte) (Status, error) {
	var resp paytechStatusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Status{}, fmt.Errorf("%w: %v", ErrGatewayResponseInvalid, err)
	}

	st := Status{
		Reference: refCommand,
		Confirmed: resp.Status == "success",
	}
	if resp.Payment == nil {
		st.RawStatus = resp.Status
		return st, nil
	}

	// A status answer for another command is not an answer for this one.
	if ref := strings.TrimSpace(resp.Payment.RefCommand); ref != "" && ref != refCommand {
		return Status{}, fmt.Errorf("%w: ref_command %q does not match %q", ErrGatewayResponseInvalid, ref, refCommand)
	}

	st.RawStatus = resp.Payment.Status
	st.Outcome = parseOutcome(resp.Payment.Status)
	st.Amount = ParseAmount(resp.Payment.Amount.String())
	st.Currency = resp.Payment.Currency
	st.Method = resp.Payment.PaymentMethod
	st.TransactionID = resp.Payment.TransactionID
	return st, nil
}
