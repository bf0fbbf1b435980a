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

	"github.com/campuspay/campuspay-api/internal/pkg/gateway"
	"github.com/campuspay/campuspay-api/internal/pkg/metrics"
)

const provider = "paystack"

// Config holds Paystack API configuration
type Config struct {
	BaseURL     string
	SecretKey   string
	CallbackURL string
	Timeout     time.Duration
}

// Client talks to the Paystack REST API.
type Client struct {
	httpClient *http.Client
	config     Config
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
	}
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type ChargeRequest struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	Reference   string            `json:"reference"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Currency    string            `json:"currency,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type ChargeInit struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Charge is the verify-transaction view of a card charge.
type Charge struct {
	ID              int64           `json:"id"`
	Status          string          `json:"status"`
	Reference       string          `json:"reference"`
	Amount          int64           `json:"amount"`
	Currency        string          `json:"currency"`
	GatewayResponse string          `json:"gateway_response"`
	PaidAt          time.Time       `json:"paid_at"`
	Raw             json.RawMessage `json:"-"`
}

type Account struct {
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

type RecipientRequest struct {
	Type          string `json:"type"`
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	Currency      string `json:"currency"`
}

type TransferRequest struct {
	Source    string `json:"source"`
	Amount    int64  `json:"amount"`
	Recipient string `json:"recipient"`
	Reference string `json:"reference"`
	Reason    string `json:"reason,omitempty"`
}

type Transfer struct {
	TransferCode string          `json:"transfer_code"`
	Status       string          `json:"status"`
	Reference    string          `json:"reference"`
	Amount       int64           `json:"amount"`
	Reason       string          `json:"reason"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	Raw          json.RawMessage `json:"-"`
}

// InitializeCharge starts a hosted card checkout.
func (c *Client) InitializeCharge(ctx context.Context, req ChargeRequest) (*ChargeInit, error) {
	if req.CallbackURL == "" {
		req.CallbackURL = c.config.CallbackURL
	}
	if req.Currency == "" {
		req.Currency = "NGN"
	}
	var out ChargeInit
	if _, err := c.do(ctx, "initialize_charge", http.MethodPost, "/transaction/initialize", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) VerifyCharge(ctx context.Context, reference string) (*Charge, error) {
	var out Charge
	raw, err := c.do(ctx, "verify_charge", http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &out)
	if err != nil {
		return nil, err
	}
	out.Raw = raw
	return &out, nil
}

// ResolveAccountName returns the registered name for a NUBAN account.
func (c *Client) ResolveAccountName(ctx context.Context, accountNumber, bankCode string) (*Account, error) {
	q := url.Values{}
	q.Set("account_number", accountNumber)
	q.Set("bank_code", bankCode)
	var out Account
	if _, err := c.do(ctx, "resolve_account", http.MethodGet, "/bank/resolve?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePayoutRecipient registers a bank account and returns its recipient code.
func (c *Client) CreatePayoutRecipient(ctx context.Context, name, accountNumber, bankCode string) (string, error) {
	req := RecipientRequest{
		Type:          "nuban",
		Name:          name,
		AccountNumber: accountNumber,
		BankCode:      bankCode,
		Currency:      "NGN",
	}
	var out struct {
		RecipientCode string `json:"recipient_code"`
	}
	if _, err := c.do(ctx, "create_recipient", http.MethodPost, "/transferrecipient", req, &out); err != nil {
		return "", err
	}
	if out.RecipientCode == "" {
		return "", gateway.Rejected(provider, "create_recipient", http.StatusOK, errors.New("empty recipient code"))
	}
	return out.RecipientCode, nil
}

func (c *Client) InitiatePayout(ctx context.Context, amountKobo int64, recipientCode, reference, reason string) (*Transfer, error) {
	req := TransferRequest{
		Source:    "balance",
		Amount:    amountKobo,
		Recipient: recipientCode,
		Reference: reference,
		Reason:    reason,
	}
	var out Transfer
	raw, err := c.do(ctx, "initiate_payout", http.MethodPost, "/transfer", req, &out)
	if err != nil {
		return nil, err
	}
	out.Raw = raw
	return &out, nil
}

func (c *Client) VerifyTransfer(ctx context.Context, reference string) (*Transfer, error) {
	var out Transfer
	raw, err := c.do(ctx, "verify_transfer", http.MethodGet, "/transfer/verify/"+url.PathEscape(reference), nil, &out)
	if err != nil {
		return nil, err
	}
	out.Raw = raw
	return &out, nil
}

// do performs one API call and decodes envelope.data into out. It returns the raw data.
func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}) (json.RawMessage, error) {
	if c == nil || c.httpClient == nil {
		return nil, gateway.Rejected(provider, op, 0, errors.New("client is not initialized"))
	}
	if strings.TrimSpace(c.config.SecretKey) == "" {
		return nil, gateway.Rejected(provider, op, 0, errors.New("secret key is empty"))
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, gateway.Rejected(provider, op, 0, fmt.Errorf("encode request: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return nil, gateway.Rejected(provider, op, 0, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.config.SecretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		observe(op, "transport_error", start)
		return nil, gateway.ClassifyTransport(ctx, provider, op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		observe(op, "transport_error", start)
		return nil, gateway.ClassifyTransport(ctx, provider, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observe(op, fmt.Sprintf("http_%d", resp.StatusCode), start)
		return nil, gateway.ClassifyStatus(provider, op, resp.StatusCode, string(respBody))
	}
	observe(op, "ok", start)

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, &gateway.Error{Provider: provider, Op: op, StatusCode: resp.StatusCode, Ambiguous: true, Err: fmt.Errorf("decode response: %w", err)}
	}
	if !env.Status {
		return nil, gateway.Rejected(provider, op, resp.StatusCode, errors.New(env.Message))
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, &gateway.Error{Provider: provider, Op: op, StatusCode: resp.StatusCode, Ambiguous: true, Err: fmt.Errorf("decode data: %w", err)}
		}
	}
	return env.Data, nil
}

func observe(op, result string, start time.Time) {
	metrics.GatewayRequests.WithLabelValues(provider, op, result).Observe(time.Since(start).Seconds())
}
