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

// TokenClient queries the gateway that issues opaque payment tokens to the
// buyer's client. Its status payload uses French field names.
type TokenClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewTokenClient(baseURL, apiKey string, timeout time.Duration) *TokenClient {
	return &TokenClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: newHTTPClient(timeout),
	}
}

type tokenStatusResponse struct {
	Statut  *bool             `json:"statut"`
	Message string            `json:"message"`
	Data    *tokenPaymentData `json:"data"`
}

type tokenPaymentData struct {
	Statut      string     `json:"statut"`
	Montant     FlexString `json:"Montant"`
	Devise      string     `json:"Devise"`
	Moyen       string     `json:"Moyen"`
	Transaction string     `json:"transaction"`
}

func (c *TokenClient) Status(ctx context.Context, token string) (Status, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Status{}, ErrInvalidReference
	}

	header := http.Header{}
	if c.APIKey != "" {
		header.Set("Authorization", "Bearer "+c.APIKey)
	}

	body, err := fetch(ctx, c.HTTPClient, fmt.Sprintf("%s/status/%s", c.BaseURL, url.PathEscape(token)), header)
	if err != nil {
		return Status{}, err
	}

	return parseTokenStatus(token, body)
}

// parseTokenStatus is the single place where a token gateway reply becomes a
// Status. Missing fields stay at their rejecting zero values.
func parseTokenStatus(token string, body []byte) (Status, error) {
	var resp tokenStatusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Status{}, fmt.Errorf("%w: %v", ErrGatewayResponseInvalid, err)
	}

	st := Status{
		Reference: token,
		Confirmed: resp.Statut != nil && *resp.Statut,
	}
	if resp.Data == nil {
		return st, nil
	}

	st.RawStatus = resp.Data.Statut
	st.Outcome = parseOutcome(resp.Data.Statut)
	st.Amount = ParseAmount(resp.Data.Montant.String())
	st.Currency = resp.Data.Devise
	st.Method = resp.Data.Moyen
	st.TransactionID = resp.Data.Transaction
	if st.TransactionID == "" {
		st.TransactionID = token
	}
	return st, nil
}
