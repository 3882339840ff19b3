// Package paystack talks to the Paystack transaction verification API.
package paystack

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/benedict-erwin/geo-gateway/pkg/fetch"
)

// DefaultBaseURL is the Paystack production API
const DefaultBaseURL = "https://api.paystack.co"

// TransactionSuccess is data.status for a completed charge
const TransactionSuccess = "success"

// ErrMissingSecret is returned before any network call when no secret key is configured
var ErrMissingSecret = errors.New("paystack secret key is not configured")

// Customer is the subset of the customer object we use
type Customer struct {
	Email string `json:"email"`
}

// Transaction is the subset of the verified transaction we use
type Transaction struct {
	Status    string   `json:"status"`
	Reference string   `json:"reference"`
	Amount    int64    `json:"amount"`
	Currency  string   `json:"currency"`
	Customer  Customer `json:"customer"`
}

// VerifyResponse is the envelope of GET /transaction/verify/:reference
type VerifyResponse struct {
	Status  bool         `json:"status"`
	Message string       `json:"message"`
	Data    *Transaction `json:"data"`

	// Raw is the untouched provider document, echoed to clients for diagnostics
	Raw json.RawMessage `json:"-"`
}

// Successful reports a top-level success flag AND a successful transaction
func (r *VerifyResponse) Successful() bool {
	return r != nil && r.Status && r.Data != nil && r.Data.Status == TransactionSuccess
}

// Client verifies transactions with a secret key
type Client struct {
	fetch     *fetch.Client
	baseURL   string
	secretKey string
}

// NewClient creates a Client; an empty baseURL uses DefaultBaseURL
func NewClient(f *fetch.Client, baseURL, secretKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		fetch:     f,
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
	}
}

// Configured reports whether a secret key is set
func (c *Client) Configured() bool {
	return c.secretKey != ""
}

// VerifyTransaction fetches the gateway's view of reference. Any HTTP status
// with a JSON body is returned as a VerifyResponse (Paystack answers unknown
// references with 4xx + {"status":false}); transport failures and non-JSON
// bodies are errors.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*VerifyResponse, error) {
	if !c.Configured() {
		return nil, ErrMissingSecret
	}

	resp, err := c.fetch.Do(ctx, fetch.Request{
		Method: http.MethodGet,
		URL:    c.baseURL + "/transaction/verify/" + url.PathEscape(reference),
		Header: http.Header{"Authorization": []string{"Bearer " + c.secretKey}},
	})
	if err != nil {
		return nil, err
	}

	out := &VerifyResponse{}
	if err := resp.Decode(out); err != nil {
		return nil, err
	}
	out.Raw = json.RawMessage(resp.Body)
	return out, nil
}
