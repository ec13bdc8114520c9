package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func sign(secret string, data []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestCreateOrderCallsGateway(t *testing.T) {
	var gotAuthUser, gotAuthPass string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuthUser, gotAuthPass, _ = r.BasicAuth()
		if r.Method != http.MethodPost || r.URL.Path != "/v1/orders" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       "order_abc123",
			"amount":   gotBody["amount"],
			"currency": gotBody["currency"],
			"status":   "created",
		})
	}))
	defer srv.Close()

	rz := Razorpay{KeyID: "rzp_test_key", KeySecret: "secret", BaseURL: srv.URL}
	gw, err := rz.CreateOrder(context.Background(), 189000, "INR", "receipt-1")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if gotAuthUser != "rzp_test_key" || gotAuthPass != "secret" {
		t.Fatalf("basic auth not sent: %s/%s", gotAuthUser, gotAuthPass)
	}
	if gotBody["receipt"] != "receipt-1" {
		t.Fatalf("receipt not forwarded: %v", gotBody)
	}
	if gw.ID != "order_abc123" || gw.Amount != 189000 || gw.Status != "created" {
		t.Fatalf("unexpected gateway order: %+v", gw)
	}
}

func TestCreateOrderRejectsGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"description":"bad key"}}`))
	}))
	defer srv.Close()

	rz := Razorpay{KeyID: "bad", KeySecret: "bad", BaseURL: srv.URL}
	if _, err := rz.CreateOrder(context.Background(), 100, "INR", "r"); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestVerifyCallback(t *testing.T) {
	rz := Razorpay{KeySecret: "secret"}
	good := sign("secret", []byte("order_1|pay_1"))

	if err := rz.VerifyCallback("order_1", "pay_1", good); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
	if err := rz.VerifyCallback("order_1", "pay_2", good); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("tampered payment id accepted: %v", err)
	}
	if err := rz.VerifyCallback("order_1", "pay_1", ""); !errors.Is(err, ErrBadSignature) {
		t.Fatal("empty signature accepted")
	}
}

func TestVerifyWebhook(t *testing.T) {
	rz := Razorpay{WebhookSecret: "whsec"}
	body := []byte(`{"event":"payment.captured"}`)

	if err := rz.VerifyWebhook(body, sign("whsec", body)); err != nil {
		t.Fatalf("valid webhook rejected: %v", err)
	}
	if err := rz.VerifyWebhook(body, sign("other", body)); !errors.Is(err, ErrBadSignature) {
		t.Fatal("wrong secret accepted")
	}
	if err := rz.VerifyWebhook([]byte("{}"), sign("whsec", body)); !errors.Is(err, ErrBadSignature) {
		t.Fatal("body swap accepted")
	}
}
