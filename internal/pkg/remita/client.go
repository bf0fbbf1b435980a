package remita

import (
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/pkg/gateway"
	"github.com/campuspay/campuspay-api/internal/pkg/metrics"
)

const provider = "remita"

// Config holds Remita merchant configuration
type Config struct {
	BaseURL       string
	MerchantID    string
	APIKey        string
	ServiceTypeID string
	Timeout       time.Duration
}

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

type InvoiceRequest struct {
	ServiceTypeID string          `json:"serviceTypeId"`
	Amount        decimal.Decimal `json:"amount"`
	OrderID       string          `json:"orderId"`
	PayerName     string          `json:"payerName"`
	PayerEmail    string          `json:"payerEmail"`
	PayerPhone    string          `json:"payerPhone,omitempty"`
	Description   string          `json:"description"`
}

type Invoice struct {
	StatusCode string `json:"statuscode"`
	RRR        string `json:"RRR"`
	Status     string `json:"status"`
}

type Status struct {
	Amount          decimal.Decimal `json:"amount"`
	RRR             string          `json:"RRR"`
	OrderID         string          `json:"orderId"`
	Message         string          `json:"message"`
	Status          string          `json:"status"`
	TransactionTime string          `json:"transactiontime"`
	Raw             json.RawMessage `json:"-"`
}

// GenerateRRR registers an invoice and returns its Remita Retrieval Reference.
func (c *Client) GenerateRRR(ctx context.Context, req InvoiceRequest) (*Invoice, error) {
	if req.ServiceTypeID == "" {
		req.ServiceTypeID = c.config.ServiceTypeID
	}
	hash := sha512Hex(c.config.MerchantID + req.ServiceTypeID + req.OrderID + req.Amount.StringFixed(2) + c.config.APIKey)

	var out Invoice
	if _, err := c.do(ctx, "generate_rrr", http.MethodPost, "/merchant/api/paymentinit", hash, req, &out); err != nil {
		return nil, err
	}
	// 025 is "payment reference generated"
	if out.RRR == "" || out.StatusCode != "025" {
		return nil, gateway.Rejected(provider, "generate_rrr", http.StatusOK, fmt.Errorf("rrr not issued: %s %s", out.StatusCode, out.Status))
	}
	return &out, nil
}

func (c *Client) StatusByRRR(ctx context.Context, rrr string) (*Status, error) {
	hash := sha512Hex(rrr + c.config.APIKey + c.config.MerchantID)
	path := fmt.Sprintf("/%s/%s/%s/status.reg", c.config.MerchantID, rrr, hash)
	return c.status(ctx, path, hash)
}

func (c *Client) StatusByOrderID(ctx context.Context, orderID string) (*Status, error) {
	hash := sha512Hex(orderID + c.config.APIKey + c.config.MerchantID)
	path := fmt.Sprintf("/%s/%s/%s/orderstatus.reg", c.config.MerchantID, orderID, hash)
	return c.status(ctx, path, hash)
}

func (c *Client) status(ctx context.Context, path, hash string) (*Status, error) {
	var out Status
	raw, err := c.do(ctx, "check_status", http.MethodGet, path, hash, nil, &out)
	if err != nil {
		return nil, err
	}
	out.Raw = raw
	return &out, nil
}

func (c *Client) do(ctx context.Context, op, method, path, hash string, body, out interface{}) ([]byte, error) {
	if c.config.MerchantID == "" || c.config.APIKey == "" {
		return nil, gateway.Rejected(provider, op, 0, errors.New("merchant credentials are not configured"))
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
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("remitaConsumerKey=%s,remitaConsumerToken=%s", c.config.MerchantID, hash))

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

	respBody = stripJSONP(respBody)
	if err := json.Unmarshal(respBody, out); err != nil {
		return nil, &gateway.Error{Provider: provider, Op: op, StatusCode: resp.StatusCode, Ambiguous: true, Err: fmt.Errorf("decode response: %w", err)}
	}
	return respBody, nil
}

// stripJSONP unwraps the `jsonp ({...})` envelope some Remita endpoints return.
func stripJSONP(b []byte) []byte {
	trimmed := bytes.TrimSpace(b)
	start := bytes.IndexByte(trimmed, '(')
	end := bytes.LastIndexByte(trimmed, ')')
	if len(trimmed) > 0 && trimmed[0] != '{' && start >= 0 && end > start {
		return bytes.TrimSpace(trimmed[start+1 : end])
	}
	return trimmed
}

func sha512Hex(s string) string {
	sum := sha512.Sum512([]byte(s))
	return hex.EncodeToString(sum[:])
}

func observe(op, result string, start time.Time) {
	metrics.GatewayRequests.WithLabelValues(provider, op, result).Observe(time.Since(start).Seconds())
}
