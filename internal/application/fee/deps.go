package fee

import (
	"errors"
	"time"

	"github.com/erp/schoolfees/internal/domain/fee"
	"github.com/erp/schoolfees/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Metrics receives payment-flow counters. telemetry.FeeMetrics implements it.
type Metrics interface {
	PaymentRecorded(method, status string)
	PaymentConfirmed(outcome string)
	SignatureRejected(kind string)
	WebhookEvent(event, outcome string)
	ReceiptCollision()
}

type nopMetrics struct{}

func (nopMetrics) PaymentRecorded(string, string) {}
func (nopMetrics) PaymentConfirmed(string)        {}
func (nopMetrics) SignatureRejected(string)       {}
func (nopMetrics) WebhookEvent(string, string)    {}
func (nopMetrics) ReceiptCollision()              {}

// Confirmation outcomes
const (
	OutcomeCredited = "credited"
	OutcomeReplayed = "replayed"
	OutcomeRejected = "rejected"
)

// Settings holds the billing rules shared by the fee services.
// A nil TuitionPenalty or Policy takes the default; a zero penalty disables it.
type Settings struct {
	TuitionPenalty    *decimal.Decimal
	Policy            *fee.DiscountPolicy
	Currency          string
	ReceiptMaxRetries int
	YearLevelTTL      time.Duration
}

// DefaultSettings returns the standard billing rules
func DefaultSettings() Settings {
	penalty := fee.DefaultTuitionPenalty
	policy := fee.DefaultDiscountPolicy()
	return Settings{
		TuitionPenalty:    &penalty,
		Policy:            &policy,
		Currency:          "INR",
		ReceiptMaxRetries: 5,
		YearLevelTTL:      10 * time.Minute,
	}
}

func (s Settings) withDefaults() Settings {
	def := DefaultSettings()
	if s.TuitionPenalty == nil {
		s.TuitionPenalty = def.TuitionPenalty
	}
	if s.Policy == nil {
		s.Policy = def.Policy
	}
	if s.Currency == "" {
		s.Currency = def.Currency
	}
	if s.ReceiptMaxRetries <= 0 {
		s.ReceiptMaxRetries = def.ReceiptMaxRetries
	}
	if s.YearLevelTTL <= 0 {
		s.YearLevelTTL = def.YearLevelTTL
	}
	return s
}

// Clock returns the current time; tests replace it
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// rosterAbort converts a roster failure into the error returned to the caller
// when the operation cannot proceed without the record.
func rosterAbort(err error, what string, id int64) error {
	if fee.IsRosterNotFound(err) {
		return shared.NewNotFoundError("%s not found: %d", what, id)
	}
	return shared.NewBadGatewayError(err, "Roster service failed while loading %s %d", what, id)
}

// gatewayError converts a gateway failure into a BadGateway domain error
func gatewayError(err error) error {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	return shared.NewBadGatewayError(err, "Payment gateway error: %v", err)
}

// isNotFound reports whether a repository error is a missing row
func isNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}

func findOptional[T any](v *T, err error) (*T, error) {
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

// todayFrom truncates t to midnight in its own location
func todayFrom(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
