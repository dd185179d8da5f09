package fee

import (
	"context"

	"github.com/erp/schoolfees/internal/domain/fee"
	"github.com/erp/schoolfees/internal/domain/shared"
	"go.uber.org/zap"
)

// ReceiptGenerator issues REC-yyyyMMdd-nnnnn-XXXX receipt numbers.
// The sequence continues from the highest receipt issued today; a number
// that already exists is regenerated with the next sequence and a new suffix.
type ReceiptGenerator struct {
	maxRetries int
	clock      Clock
	metrics    Metrics
	logger     *zap.Logger
	suffix     func() (string, error)
}

// NewReceiptGenerator creates a receipt generator
func NewReceiptGenerator(maxRetries int, clock Clock, metrics Metrics, logger *zap.Logger) *ReceiptGenerator {
	if maxRetries <= 0 {
		maxRetries = DefaultSettings().ReceiptMaxRetries
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReceiptGenerator{
		maxRetries: maxRetries,
		clock:      clock,
		metrics:    metrics,
		logger:     logger,
		suffix:     fee.RandomReceiptSuffix,
	}
}

// Next returns an unused receipt number, checked against repo
func (g *ReceiptGenerator) Next(ctx context.Context, repo fee.StudentFeeRepository) (string, error) {
	day := g.clock.now()
	latest, err := repo.FindLatestReceipt(ctx, fee.ReceiptDayPrefix(day))
	if err != nil {
		return "", err
	}
	seq := fee.NextReceiptSequence(latest)

	for attempt := 0; attempt < g.maxRetries; attempt++ {
		suffix, err := g.suffix()
		if err != nil {
			return "", err
		}
		candidate := fee.FormatReceipt(day, seq+attempt, suffix)
		exists, err := repo.ExistsByReceiptNumber(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		g.metrics.ReceiptCollision()
		g.logger.Warn("Receipt number collision, regenerating",
			zap.String("receipt_number", candidate),
			zap.Int("attempt", attempt+1))
	}
	return "", shared.NewDomainError(shared.CodeInternal, "Could not allocate a unique receipt number")
}
