package payment

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/erp/schoolfees/internal/domain/fee"
	"github.com/erp/schoolfees/internal/infrastructure/config"
)

const sandboxSecret = "sandbox_secret"

// SandboxGateway is an in-process gateway for local development. Orders are
// created without network calls; signatures use the configured secrets, or a
// fixed sandbox secret, so the checkout flow can be exercised end to end.
type SandboxGateway struct {
	keySecret     string
	webhookSecret string
	seq           atomic.Int64
	now           func() time.Time
}

// NewSandboxGateway creates a sandbox gateway
func NewSandboxGateway(keySecret, webhookSecret string) *SandboxGateway {
	if keySecret == "" {
		keySecret = sandboxSecret
	}
	if webhookSecret == "" {
		webhookSecret = keySecret
	}
	return &SandboxGateway{keySecret: keySecret, webhookSecret: webhookSecret, now: time.Now}
}

// CreateOrder returns a synthetic order
func (g *SandboxGateway) CreateOrder(_ context.Context, req fee.OrderRequest) (*fee.GatewayOrder, error) {
	if req.AmountMinor <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", fee.ErrGatewayRequestFailed)
	}
	currency := req.Currency
	if currency == "" {
		currency = "INR"
	}
	n := g.seq.Add(1)
	return &fee.GatewayOrder{
		ID:       fmt.Sprintf("order_sbx%d%04d", g.now().Unix(), n),
		Amount:   req.AmountMinor,
		Currency: currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}, nil
}

// VerifyPaymentSignature checks the signature with the sandbox key secret
func (g *SandboxGateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	return verifyHMAC([]byte(orderID+"|"+paymentID), g.keySecret, signature)
}

// VerifyWebhookSignature checks the signature with the sandbox webhook secret
func (g *SandboxGateway) VerifyWebhookSignature(payload []byte, signature string) bool {
	if len(payload) == 0 || signature == "" {
		return false
	}
	return verifyHMAC(payload, g.webhookSecret, signature)
}

// SignPayment returns the checkout signature a client would receive
func (g *SandboxGateway) SignPayment(orderID, paymentID string) string {
	return Sign([]byte(orderID+"|"+paymentID), g.keySecret)
}

var _ fee.PaymentGateway = (*SandboxGateway)(nil)

// NewGateway builds the gateway selected by gateway.mode
func NewGateway(cfg config.GatewayConfig, logger *zap.Logger) (fee.PaymentGateway, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Mode {
	case "sandbox":
		logger.Warn("Using sandbox payment gateway; no real orders are created")
		return NewSandboxGateway(cfg.KeySecret, cfg.WebhookSecret), nil
	case "", "live":
		adapter, err := NewRazorpayAdapter(RazorpayConfigFrom(cfg), logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", fee.ErrGatewayNotConfigured, err)
		}
		return adapter, nil
	default:
		return nil, fmt.Errorf("%w: unknown gateway mode %q", fee.ErrGatewayNotConfigured, cfg.Mode)
	}
}
