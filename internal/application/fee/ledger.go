package fee

import (
	"context"

	"github.com/erp/schoolfees/internal/domain/fee"
	"github.com/erp/schoolfees/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ledger holds the installment and journal steps shared by the student fee
// and payment services. Every method runs against transaction-bound repositories.
type ledger struct {
	receipts *ReceiptGenerator
	settings Settings
	clock    Clock
	metrics  Metrics
}

// prepare finds the installment for key or creates it, then folds any approved discount once
func (l *ledger) prepare(
	ctx context.Context,
	repos TransactionalRepositories,
	key fee.StudentFeeKey,
	structure *fee.FeeStructure,
	dueDate *Date,
) (*fee.StudentFee, error) {
	fees := repos.StudentFeeRepo()
	sf, err := findOptional(fees.FindByKey(ctx, key))
	if err != nil {
		return nil, err
	}
	if sf == nil {
		receipt, err := l.receipts.Next(ctx, fees)
		if err != nil {
			return nil, err
		}
		due := fee.DefaultDueDate(key.Month, l.clock.now())
		if dueDate != nil && !dueDate.IsZero() {
			due = dueDate.Time
		}
		sf, err = fee.NewStudentFee(key, structure, due, receipt)
		if err != nil {
			return nil, err
		}
		if err := fees.Create(ctx, sf); err != nil {
			return nil, err
		}
	} else if dueDate != nil && !dueDate.IsZero() {
		sf.DueDate = dueDate.Time
	}

	if err := l.foldDiscount(ctx, repos, sf); err != nil {
		return nil, err
	}
	return sf, nil
}

// foldDiscount applies the student's approved discount for the structure, at most once
func (l *ledger) foldDiscount(ctx context.Context, repos TransactionalRepositories, sf *fee.StudentFee) error {
	if sf.AppliedDiscount {
		return nil
	}
	discount, err := findOptional(repos.DiscountRepo().FindByStudentYearAndStructure(ctx, sf.StudentYearID, sf.FeeStructureID))
	if err != nil {
		return err
	}
	if discount != nil {
		sf.ApplyDiscountOnce(discount.DiscountAmount)
	}
	return nil
}

// applyPenalty adds the overdue tuition penalty once
func (l *ledger) applyPenalty(sf *fee.StudentFee) bool {
	return sf.ApplyOverduePenalty(l.clock.now(), *l.settings.TuitionPenalty)
}

// journalEntry describes a payment row to write
type journalEntry struct {
	amount     decimal.Decimal
	method     fee.PaymentMethod
	status     fee.PaymentStatus
	cheque     string
	notes      string
	receivedBy *int64
	gateway    fee.GatewayRef
}

// record writes one journal row for sf
func (l *ledger) record(ctx context.Context, repos TransactionalRepositories, sf *fee.StudentFee, e journalEntry) (*fee.FeePayment, error) {
	p, err := fee.NewFeePayment(sf.ID, e.amount, e.method, e.status)
	if err != nil {
		return nil, err
	}
	if e.cheque != "" {
		exists, err := repos.PaymentRepo().ExistsChequeNumber(ctx, e.cheque)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, shared.NewConflictError("Cheque number %s has already been used", e.cheque)
		}
		p.WithCheque(e.cheque)
	}
	p.Notes = e.notes
	p.ReceivedBy = e.receivedBy
	p.Gateway = e.gateway
	p.PaymentDate = l.clock.now()
	if err := repos.PaymentRepo().Create(ctx, p); err != nil {
		return nil, err
	}
	l.metrics.PaymentRecorded(p.PaymentMethod.String(), p.Status.String())
	return p, nil
}

// rederive replaces the paid amount with the journal's SUCCESS total
func (l *ledger) rederive(ctx context.Context, repos TransactionalRepositories, sf *fee.StudentFee) error {
	total, err := repos.PaymentRepo().SumSuccessful(ctx, sf.ID)
	if err != nil {
		return err
	}
	sf.SetPaidFromJournal(total)
	return nil
}

// settle re-derives the paid amount and saves the installment with a version check
func (l *ledger) settle(ctx context.Context, repos TransactionalRepositories, sf *fee.StudentFee) error {
	if err := l.rederive(ctx, repos, sf); err != nil {
		return err
	}
	return repos.StudentFeeRepo().SaveWithLock(ctx, sf)
}

// loadStructure resolves a fee structure inside the transaction
func loadStructure(ctx context.Context, repos TransactionalRepositories, id uuid.UUID) (*fee.FeeStructure, error) {
	fs, err := repos.FeeStructureRepo().FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, shared.NewNotFoundError("FeeStructure not found: %s", id)
		}
		return nil, err
	}
	return fs, nil
}
