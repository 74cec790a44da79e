package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/obedyakpa0-dev/VitalAndGreen/pkg/errors"
)

const (
	DefaultBaseURL              = "https://api.paystack.co"
	initializePath              = "transaction/initialize"
	verifyPath                  = "transaction/verify"
	responseBodyReadLimit int64 = 1024
	maxResponseBytes      int64 = 1 << 20
)

var (
	errSecretKeyRequired = errors.New("paystack secret key is required")

	// ErrRejected marks responses where the provider answered but declined the
	// request or returned a payload that could not be understood.
	ErrRejected = errors.New("paystack rejected the request")
)

// Client calls the Paystack transaction API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// NewClient builds a client authenticated with the secret key.
func NewClient(secretKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(secretKey)
	if trimmedKey == "" {
		return nil, errSecretKeyRequired
	}

	client := &Client{
		secretKey:  trimmedKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if client.baseURL == "" {
		client.baseURL = DefaultBaseURL
	}

	return client, nil
}

// SecretKey exposes the key used to sign webhooks.
func (c *Client) SecretKey() string {
	return c.secretKey
}

// InitializeRequest describes a hosted checkout to open.
type InitializeRequest struct {
	Email       string
	Amount      decimal.Decimal
	Currency    string
	Reference   string
	CallbackURL string
	Metadata    map[string]any
}

// InitializeResult is the hosted checkout returned by the provider.
type InitializeResult struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
	Raw              json.RawMessage
}

// ChargeResult is the provider's view of a transaction.
type ChargeResult struct {
	Reference string
	Status    ProviderStatus
	Raw       json.RawMessage
}

// ToMinorUnits converts a major-unit amount (cedis) to the integer minor units
// (pesewas) the API expects.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// Initialize opens a transaction and returns the hosted checkout URL.
// Transport failures and provider 5xx responses are returned as gateway
// errors; declines and malformed payloads additionally wrap ErrRejected.
func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "paystack client not configured")
	}
	if strings.TrimSpace(req.Reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}

	body := map[string]any{
		"email":     req.Email,
		"amount":    ToMinorUnits(req.Amount),
		"currency":  req.Currency,
		"reference": req.Reference,
	}
	if req.CallbackURL != "" {
		body["callback_url"] = req.CallbackURL
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal initialize request")
	}

	raw, err := c.do(ctx, http.MethodPost, c.buildURL(initializePath), payload, "initialize")
	if err != nil {
		return nil, err
	}

	var apiResp struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			AuthorizationURL string `json:"authorization_url"`
			AccessCode       string `json:"access_code"`
			Reference        string `json:"reference"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, fmt.Errorf("%w: %v", ErrRejected, err), "decode initialize response")
	}
	if !apiResp.Status {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, fmt.Errorf("%w: %s", ErrRejected, apiResp.Message), "initialize declined")
	}
	if strings.TrimSpace(apiResp.Data.AuthorizationURL) == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, fmt.Errorf("%w: missing authorization_url", ErrRejected), "initialize response incomplete")
	}

	return &InitializeResult{
		AuthorizationURL: apiResp.Data.AuthorizationURL,
		AccessCode:       apiResp.Data.AccessCode,
		Reference:        apiResp.Data.Reference,
		Raw:              raw,
	}, nil
}

// Verify queries the transaction status for a reference.
func (c *Client) Verify(ctx context.Context, reference string) (*ChargeResult, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "paystack client not configured")
	}
	trimmed := strings.TrimSpace(reference)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}

	endpoint := fmt.Sprintf("%s/%s", c.buildURL(verifyPath), url.PathEscape(trimmed))
	raw, err := c.do(ctx, http.MethodGet, endpoint, nil, "verify")
	if err != nil {
		return nil, err
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, fmt.Errorf("%w: %v", ErrRejected, err), "decode verify response")
	}

	return &ChargeResult{
		Reference: trimmed,
		Status:    MapStatus(decoded),
		Raw:       raw,
	}, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte, op string) (json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build "+op+" request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "execute "+op+" request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), op+" request failed")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(msg))), op+" request rejected")
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "read "+op+" response")
	}
	return raw, nil
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
