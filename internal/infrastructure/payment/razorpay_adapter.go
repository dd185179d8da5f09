package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/erp/schoolfees/internal/domain/fee"
)

const razorpayOrdersPath = "/v1/orders"

// RazorpayAdapter implements fee.PaymentGateway against the Razorpay orders API
type RazorpayAdapter struct {
	config     *RazorpayConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewRazorpayAdapter creates a new Razorpay adapter
func NewRazorpayAdapter(config *RazorpayConfig, logger *zap.Logger) (*RazorpayAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RazorpayAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}, nil
}

// CreateOrder creates a captured-on-payment order for the given amount
func (a *RazorpayAdapter) CreateOrder(ctx context.Context, req fee.OrderRequest) (*fee.GatewayOrder, error) {
	if req.AmountMinor <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", fee.ErrGatewayRequestFailed)
	}
	currency := req.Currency
	if currency == "" {
		currency = "INR"
	}

	body, err := json.Marshal(razorpayOrderRequest{
		Amount:         req.AmountMinor,
		Currency:       currency,
		Receipt:        req.Receipt,
		PaymentCapture: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("razorpay: failed to marshal request: %w", err)
	}

	respBody, err := a.doRequest(ctx, http.MethodPost, razorpayOrdersPath, body)
	if err != nil {
		return nil, err
	}

	var order razorpayOrder
	if err := json.Unmarshal(respBody, &order); err != nil {
		return nil, fmt.Errorf("%w: %v", fee.ErrGatewayInvalidResponse, err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("%w: order id missing", fee.ErrGatewayInvalidResponse)
	}

	a.logger.Info("Gateway order created",
		zap.String("order_id", order.ID),
		zap.Int64("amount_minor", order.Amount),
		zap.String("receipt", order.Receipt),
	)

	return &fee.GatewayOrder{
		ID:       order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		Receipt:  order.Receipt,
		Status:   order.Status,
	}, nil
}

// VerifyPaymentSignature checks the checkout signature for an order/payment pair
func (a *RazorpayAdapter) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	return verifyHMAC([]byte(orderID+"|"+paymentID), a.config.KeySecret, signature)
}

// VerifyWebhookSignature checks the X-Razorpay-Signature header over the raw body
func (a *RazorpayAdapter) VerifyWebhookSignature(payload []byte, signature string) bool {
	if len(payload) == 0 || signature == "" {
		return false
	}
	return verifyHMAC(payload, a.config.webhookSecret(), signature)
}

// doRequest performs an authenticated call and returns the 2xx body
func (a *RazorpayAdapter) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	url := strings.TrimRight(a.config.BaseURL, "/") + path

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("razorpay: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(a.config.KeyID, a.config.KeySecret)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.logger.Warn("Gateway unreachable", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", fee.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fee.ErrGatewayUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp razorpayErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Code != "" {
			return nil, fmt.Errorf("%w: %s - %s", fee.ErrGatewayRequestFailed, errResp.Error.Code, errResp.Error.Description)
		}
		return nil, fmt.Errorf("%w: HTTP %d", fee.ErrGatewayRequestFailed, resp.StatusCode)
	}

	return respBody, nil
}

// Sign returns hex(HMAC-SHA256(message, secret))
func Sign(message []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

func verifyHMAC(message []byte, secret, signature string) bool {
	expected := Sign(message, secret)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

// ParseWebhookEvent decodes a verified webhook payload
func ParseWebhookEvent(payload []byte) (*WebhookEvent, error) {
	var evt WebhookEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("razorpay: invalid webhook payload: %w", err)
	}
	if evt.Event == "" {
		return nil, fmt.Errorf("razorpay: webhook payload has no event")
	}
	return &evt, nil
}

var _ fee.PaymentGateway = (*RazorpayAdapter)(nil)
