package payment

import (
	"errors"
	"net/url"
	"time"

	"github.com/erp/schoolfees/internal/infrastructure/config"
)

const (
	defaultRazorpayBaseURL = "https://api.razorpay.com"
	defaultRequestTimeout  = 30 * time.Second
)

// RazorpayConfig contains the credentials and endpoint of the gateway
type RazorpayConfig struct {
	// BaseURL is the API root, without the /v1 suffix
	BaseURL string
	// KeyID is the public key id used as the basic-auth user
	KeyID string
	// KeySecret signs payment confirmations and authenticates API calls
	KeySecret string
	// WebhookSecret signs webhook payloads. Empty means KeySecret is used.
	WebhookSecret string
	// Timeout bounds each API call
	Timeout time.Duration
}

// Errors for configuration validation
var (
	ErrRazorpayMissingKeyID     = errors.New("razorpay: missing key id")
	ErrRazorpayMissingKeySecret = errors.New("razorpay: missing key secret")
	ErrRazorpayInvalidBaseURL   = errors.New("razorpay: invalid base URL")
)

// RazorpayConfigFrom maps the gateway config section
func RazorpayConfigFrom(cfg config.GatewayConfig) *RazorpayConfig {
	return &RazorpayConfig{
		BaseURL:       cfg.BaseURL,
		KeyID:         cfg.KeyID,
		KeySecret:     cfg.KeySecret,
		WebhookSecret: cfg.WebhookSecret,
		Timeout:       cfg.Timeout,
	}
}

// Validate validates the configuration and fills defaults
func (c *RazorpayConfig) Validate() error {
	if c.KeyID == "" {
		return ErrRazorpayMissingKeyID
	}
	if c.KeySecret == "" {
		return ErrRazorpayMissingKeySecret
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultRazorpayBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrRazorpayInvalidBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultRequestTimeout
	}
	return nil
}

// webhookSecret returns the secret used to verify webhook payloads
func (c *RazorpayConfig) webhookSecret() string {
	if c.WebhookSecret != "" {
		return c.WebhookSecret
	}
	return c.KeySecret
}
