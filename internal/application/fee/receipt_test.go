package fee_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appfee "github.com/erp/schoolfees/internal/application/fee"
	"github.com/erp/schoolfees/internal/domain/fee"
	"github.com/erp/schoolfees/internal/domain/shared"
)

// receiptRepo answers only the receipt queries
type receiptRepo struct {
	fee.StudentFeeRepository
	latest     string
	collisions int
	checked    []string
}

func (r *receiptRepo) FindLatestReceipt(context.Context, string) (string, error) {
	return r.latest, nil
}

func (r *receiptRepo) ExistsByReceiptNumber(_ context.Context, receipt string) (bool, error) {
	r.checked = append(r.checked, receipt)
	return len(r.checked) <= r.collisions, nil
}

type countingMetrics struct {
	collisions int
}

func (m *countingMetrics) PaymentRecorded(string, string) {}
func (m *countingMetrics) PaymentConfirmed(string)        {}
func (m *countingMetrics) SignatureRejected(string)       {}
func (m *countingMetrics) WebhookEvent(string, string)    {}
func (m *countingMetrics) ReceiptCollision()              { m.collisions++ }

func fixedClock() appfee.Clock {
	return func() time.Time { return fixedNow }
}

func TestReceiptGenerator_ContinuesDaySequence(t *testing.T) {
	repo := &receiptRepo{latest: "REC-20260520-00041-ZZ9Q"}
	gen := appfee.NewReceiptGenerator(3, fixedClock(), nil, zap.NewNop())

	receipt, err := gen.Next(context.Background(), repo)
	require.NoError(t, err)
	assert.Regexp(t, fee.ReceiptPattern, receipt)
	assert.Contains(t, receipt, "REC-20260520-00042-")
}

func TestReceiptGenerator_RegeneratesOnCollision(t *testing.T) {
	repo := &receiptRepo{collisions: 2}
	metrics := &countingMetrics{}
	gen := appfee.NewReceiptGenerator(5, fixedClock(), metrics, zap.NewNop())

	receipt, err := gen.Next(context.Background(), repo)
	require.NoError(t, err)
	assert.Contains(t, receipt, "REC-20260520-00003-")
	assert.Len(t, repo.checked, 3)
	assert.Equal(t, 2, metrics.collisions)
}

func TestReceiptGenerator_GivesUpAfterRetries(t *testing.T) {
	repo := &receiptRepo{collisions: 100}
	gen := appfee.NewReceiptGenerator(3, fixedClock(), nil, nil)

	_, err := gen.Next(context.Background(), repo)
	requireCode(t, err, shared.CodeInternal)
	assert.Len(t, repo.checked, 3)
}
