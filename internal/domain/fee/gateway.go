package fee

import (
	"context"
	"errors"
)

// Gateway errors
var (
	ErrGatewayNotConfigured   = errors.New("payment: gateway not configured")
	ErrGatewayUnavailable     = errors.New("payment: gateway temporarily unavailable")
	ErrGatewayRequestFailed   = errors.New("payment: gateway request failed")
	ErrGatewayInvalidResponse = errors.New("payment: invalid gateway response")
)

// OrderRequest asks the gateway for a payment order
type OrderRequest struct {
	AmountMinor int64  // amount in minor units (paise)
	Currency    string // ISO 4217, e.g. INR
	Receipt     string // merchant receipt reference
}

// GatewayOrder is the order created by the gateway
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// PaymentGateway creates orders and verifies signatures from the payment processor
type PaymentGateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*GatewayOrder, error)
	// VerifyPaymentSignature checks hex(HMAC-SHA256(orderID + "|" + paymentID, keySecret))
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	// VerifyWebhookSignature checks hex(HMAC-SHA256(payload, webhookSecret))
	VerifyWebhookSignature(payload []byte, signature string) bool
}
