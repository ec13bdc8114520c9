package payment

import "context"

// Payment methods accepted at checkout.
const (
	MethodCOD      = "COD"
	MethodRazorpay = "RAZORPAY"
)

// KnownMethod reports whether m is an accepted payment method.
func KnownMethod(m string) bool {
	return m == MethodCOD || m == MethodRazorpay
}

// GatewayOrder is the provider-side order backing a payment intent.
type GatewayOrder struct {
	ID       string
	Amount   int64
	Currency string
	Status   string
}

// Provider creates gateway orders for online payments. Amounts are minor
// units.
type Provider interface {
	Name() string
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (GatewayOrder, error)
	VerifyCallback(gatewayOrderID, gatewayPaymentID, signature string) error
	VerifyWebhook(body []byte, signature string) error
}
