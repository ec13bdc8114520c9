package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrBadSignature rejects a callback or webhook whose signature does not
// match.
var ErrBadSignature = errors.New("payment: signature mismatch")

// Razorpay implements Provider against the Razorpay Orders API.
type Razorpay struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	BaseURL       string
	Client        *http.Client
}

// Name implements Provider.
func (rz Razorpay) Name() string { return "razorpay" }

// HTTPClient builds the outbound client with tracing on the transport.
func HTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

func (rz Razorpay) baseURL() string {
	host := strings.TrimRight(strings.TrimSpace(rz.BaseURL), "/")
	if host == "" {
		return "https://api.razorpay.com"
	}
	return host
}

func (rz Razorpay) client() *http.Client {
	if rz.Client != nil {
		return rz.Client
	}
	return http.DefaultClient
}

// CreateOrder opens a gateway order for the given amount in minor units.
func (rz Razorpay) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (GatewayOrder, error) {
	if amount <= 0 {
		return GatewayOrder{}, errors.New("payment: amount must be positive")
	}
	if currency == "" {
		currency = "INR"
	}
	body, err := json.Marshal(map[string]any{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	})
	if err != nil {
		return GatewayOrder{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rz.baseURL()+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return GatewayOrder{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(rz.KeyID, rz.KeySecret)

	resp, err := rz.client().Do(req)
	if err != nil {
		return GatewayOrder{}, fmt.Errorf("payment: create order: %w", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return GatewayOrder{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return GatewayOrder{}, fmt.Errorf("payment: gateway returned %d: %s", resp.StatusCode, string(payload))
	}
	var out struct {
		ID       string `json:"id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Status   string `json:"status"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return GatewayOrder{}, err
	}
	if out.ID == "" {
		return GatewayOrder{}, errors.New("payment: gateway order id missing in response")
	}
	return GatewayOrder{ID: out.ID, Amount: out.Amount, Currency: out.Currency, Status: out.Status}, nil
}

// VerifyCallback checks the signature the browser hands back after a
// successful payment: HMAC-SHA256 of "<orderID>|<paymentID>" under the key
// secret.
func (rz Razorpay) VerifyCallback(gatewayOrderID, gatewayPaymentID, signature string) error {
	if gatewayOrderID == "" || gatewayPaymentID == "" || signature == "" {
		return ErrBadSignature
	}
	expected := hmacHex(rz.KeySecret, []byte(gatewayOrderID+"|"+gatewayPaymentID))
	if !hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature))) {
		return ErrBadSignature
	}
	return nil
}

// VerifyWebhook checks the X-Razorpay-Signature header over the raw body
// under the webhook secret.
func (rz Razorpay) VerifyWebhook(body []byte, signature string) error {
	if len(body) == 0 || signature == "" {
		return ErrBadSignature
	}
	expected := hmacHex(rz.WebhookSecret, body)
	if !hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature))) {
		return ErrBadSignature
	}
	return nil
}

func hmacHex(secret string, data []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}
