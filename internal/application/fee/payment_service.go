package fee

import (
	"context"
	"strings"

	"github.com/erp/schoolfees/internal/domain/fee"
	"github.com/erp/schoolfees/internal/domain/shared"
	"github.com/erp/schoolfees/internal/domain/shared/valueobject"
	"github.com/erp/schoolfees/internal/infrastructure/auth"
	"github.com/erp/schoolfees/internal/infrastructure/payment"
	"github.com/erp/schoolfees/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentService opens gateway orders, confirms verified gateway payments,
// applies gateway webhooks and maintains the payment journal.
type PaymentService struct {
	txScope     TransactionScope
	payments    fee.FeePaymentRepository
	roster      fee.RosterLookup
	gateway     fee.PaymentGateway
	idempotency shared.IdempotencyStore
	ledger      *ledger
	metrics     Metrics
	logger      *zap.Logger
}

// PaymentServiceConfig holds the dependencies of the payment service
type PaymentServiceConfig struct {
	TxScope     TransactionScope
	Payments    fee.FeePaymentRepository
	Roster      fee.RosterLookup
	Gateway     fee.PaymentGateway
	Idempotency shared.IdempotencyStore
	Settings    Settings
	Metrics     Metrics
	Clock       Clock
	Logger      *zap.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(cfg PaymentServiceConfig) *PaymentService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	settings := cfg.Settings.withDefaults()
	return &PaymentService{
		txScope:     cfg.TxScope,
		payments:    cfg.Payments,
		roster:      cfg.Roster,
		gateway:     cfg.Gateway,
		idempotency: cfg.Idempotency,
		ledger: &ledger{
			receipts: NewReceiptGenerator(settings.ReceiptMaxRetries, cfg.Clock, metrics, logger),
			settings: settings,
			clock:    cfg.Clock,
			metrics:  metrics,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// InitiatePayment finds or creates the selected installments and opens one
// gateway order for their total. Nothing is credited.
func (s *PaymentService) InitiatePayment(ctx context.Context, req InitiatePaymentRequest) (resp *InitiatePaymentResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "PaymentService", "InitiatePayment",
		telemetry.SpanAttrStudentYearID, req.StudentYearID,
		telemetry.SpanAttrLineItems, len(req.Fees))
	defer func() { telemetry.EndSpan(span, err) }()

	if len(req.Fees) == 0 {
		return nil, shared.NewBadRequestError("No fees selected")
	}
	if _, err := s.roster.GetStudentYearLevel(ctx, req.StudentYearID); err != nil {
		return nil, rosterAbort(err, "StudentYearLevel", req.StudentYearID)
	}
	schoolYearID := req.SchoolYearID
	if schoolYearID == 0 {
		schoolYearID = req.StudentYearID
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		summaries := make([]FeeSummary, 0, len(req.Fees))
		total := decimal.Zero
		for i, item := range req.Fees {
			amount := valueobject.Round(item.Amount)
			if amount.IsNegative() {
				return shared.NewBadRequestError("fees[%d]: amount must be zero or greater", i)
			}
			structure, err := loadStructure(ctx, repos, item.FeeID)
			if err != nil {
				return err
			}
			key := fee.StudentFeeKey{
				StudentYearID:  req.StudentYearID,
				FeeStructureID: structure.ID,
				Month:          item.Month,
				SchoolYearID:   schoolYearID,
			}
			sf, err := s.ledger.prepare(ctx, repos, key, structure, item.DueDate)
			if err != nil {
				return err
			}
			if err := repos.StudentFeeRepo().SaveWithLock(ctx, sf); err != nil {
				return err
			}
			summaries = append(summaries, toFeeSummary(sf))
			total = total.Add(amount)
		}

		if total.LessThan(minOnlineTotal) {
			return shared.NewBadRequestError("Paid amount must be at least 1 %s to create a gateway order", s.ledger.settings.Currency)
		}
		receipt, err := s.ledger.receipts.Next(ctx, repos.StudentFeeRepo())
		if err != nil {
			return err
		}
		order, err := s.gateway.CreateOrder(ctx, fee.OrderRequest{
			AmountMinor: valueobject.MinorUnits(total),
			Currency:    s.ledger.settings.Currency,
			Receipt:     receipt,
		})
		if err != nil {
			s.logger.Error("Gateway order creation failed",
				zap.Int64("student_year_id", req.StudentYearID),
				zap.String("amount", money(total)),
				zap.Error(err))
			return gatewayError(err)
		}
		telemetry.SetAttributes(span, telemetry.SpanAttrOrderID, order.ID, telemetry.SpanAttrAmount, money(total))

		resp = &InitiatePaymentResponse{
			Message:         "Payment initiated successfully - status pending.",
			RazorpayOrderID: order.ID,
			Amount:          money(total),
			Currency:        s.ledger.settings.Currency,
			ReceiptNumber:   receipt,
			Fees:            summaries,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Payment initiated",
		zap.Int64("student_year_id", req.StudentYearID),
		zap.String("order_id", resp.RazorpayOrderID),
		zap.String("amount", resp.Amount))
	return resp, nil
}

// ConfirmPayment credits a gateway payment to the selected installments.
// The signature is verified before anything is read or written. A gateway
// payment id already journaled for an installment is a replay and credits nothing.
func (s *PaymentService) ConfirmPayment(ctx context.Context, principal *auth.Principal, req ConfirmPaymentRequest) (resp *ConfirmPaymentResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "PaymentService", "ConfirmPayment",
		telemetry.SpanAttrStudentYearID, req.StudentYearID,
		telemetry.SpanAttrOrderID, req.RazorpayOrderID,
		telemetry.SpanAttrPaymentID, req.RazorpayPaymentID)
	defer func() { telemetry.EndSpan(span, err) }()

	if len(req.SelectedFees) == 0 {
		return nil, shared.NewBadRequestError("selected_fees is required")
	}
	method, err := fee.ParsePaymentMethod(req.PaymentMode)
	if err != nil {
		return nil, err
	}
	receivedBy := req.ReceivedBy
	if receivedBy == nil {
		receivedBy = principal.UserIDPtr()
	}
	if receivedBy == nil {
		return nil, shared.NewBadRequestError("received_by is required")
	}
	if req.RazorpayOrderID == "" || req.RazorpayPaymentID == "" || req.RazorpaySignature == "" {
		return nil, shared.NewBadRequestError("razorpay_order_id, razorpay_payment_id and razorpay_signature are required")
	}

	if !s.gateway.VerifyPaymentSignature(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature) {
		s.metrics.SignatureRejected("payment")
		s.metrics.PaymentConfirmed(OutcomeRejected)
		s.logger.Warn("Payment signature rejected",
			zap.Int64("student_year_id", req.StudentYearID),
			zap.String("order_id", req.RazorpayOrderID),
			zap.String("payment_id", req.RazorpayPaymentID))
		return nil, shared.NewBadRequestError("Invalid razorpay signature")
	}

	if _, err := s.roster.GetStudentYearLevel(ctx, req.StudentYearID); err != nil {
		return nil, rosterAbort(err, "StudentYearLevel", req.StudentYearID)
	}

	ref := fee.GatewayRef{
		OrderID:   req.RazorpayOrderID,
		PaymentID: req.RazorpayPaymentID,
		Signature: req.RazorpaySignature,
	}
	outcomes := make([]string, 0, len(req.SelectedFees))
	resp = &ConfirmPaymentResponse{Message: "Payment confirmed successfully."}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		pending, err := repos.PaymentRepo().FindByGatewayOrderID(ctx, ref.OrderID)
		if err != nil {
			return err
		}
		resp.Payments = make([]ConfirmedPayment, 0, len(req.SelectedFees))
		outcomes = outcomes[:0]

		for _, item := range req.SelectedFees {
			amount := valueobject.Round(item.Amount)
			if !amount.IsPositive() {
				return shared.NewBadRequestError("Paid amount missing or zero for fee_id %s", item.FeeID)
			}
			structure, err := loadStructure(ctx, repos, item.FeeID)
			if err != nil {
				return err
			}
			sf, err := repos.StudentFeeRepo().FindForConfirmation(ctx, req.StudentYearID, structure.ID, item.Month)
			if err != nil {
				if isNotFound(err) {
					return shared.NewNotFoundError("StudentFee record not found for fee_id %s and month %s. Please initiate payment first.",
						item.FeeID, monthName(item.Month, "none"))
				}
				return err
			}
			if payable := sf.PayableAmount(); amount.GreaterThan(payable) {
				return shared.NewBadRequestError("Paid amount cannot exceed payable amount (%s) for fee_id %s",
					money(payable), item.FeeID)
			}

			replay, err := repos.PaymentRepo().ExistsGatewayPayment(ctx, sf.ID, ref.PaymentID)
			if err != nil {
				return err
			}
			if replay {
				resp.Payments = append(resp.Payments, ConfirmedPayment{
					FeeType:       structure.FeeType.String(),
					Amount:        money(decimal.Zero),
					Status:        fee.PaymentStatusSuccess.String(),
					Month:         sf.Month,
					ReceiptNumber: sf.ReceiptNumber,
					Replayed:      true,
				})
				outcomes = append(outcomes, OutcomeReplayed)
				continue
			}

			p, err := s.creditGatewayPayment(ctx, repos, sf, pendingFor(pending, sf.ID), journalEntry{
				amount:     amount,
				method:     method,
				status:     fee.PaymentStatusSuccess,
				receivedBy: receivedBy,
				gateway:    ref,
			})
			if err != nil {
				return err
			}
			if err := s.ledger.settle(ctx, repos, sf); err != nil {
				return err
			}
			resp.Payments = append(resp.Payments, ConfirmedPayment{
				ID:            p.ID,
				FeeType:       structure.FeeType.String(),
				Amount:        money(p.Amount),
				Status:        p.Status.String(),
				Month:         sf.Month,
				ReceiptNumber: sf.ReceiptNumber,
			})
			outcomes = append(outcomes, OutcomeCredited)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, o := range outcomes {
		s.metrics.PaymentConfirmed(o)
	}
	s.logger.Info("Payment confirmed",
		zap.Int64("student_year_id", req.StudentYearID),
		zap.String("order_id", ref.OrderID),
		zap.String("payment_id", ref.PaymentID),
		zap.Int("line_items", len(resp.Payments)))
	return resp, nil
}

// creditGatewayPayment settles the PENDING row opened for the order when one
// exists, otherwise appends a SUCCESS row.
func (s *PaymentService) creditGatewayPayment(
	ctx context.Context,
	repos TransactionalRepositories,
	sf *fee.StudentFee,
	pending *fee.FeePayment,
	entry journalEntry,
) (*fee.FeePayment, error) {
	if pending == nil {
		return s.ledger.record(ctx, repos, sf, entry)
	}
	if !pending.Amount.Equal(entry.amount) {
		s.logger.Warn("Confirmed amount differs from initiated amount",
			zap.String("student_fee_id", sf.ID.String()),
			zap.String("order_id", entry.gateway.OrderID),
			zap.String("initiated", money(pending.Amount)),
			zap.String("confirmed", money(entry.amount)))
		return nil, shared.NewBadRequestError("Paid amount %s does not match initiated amount %s for %s",
			money(entry.amount), money(pending.Amount), sf.FeeType)
	}
	if err := pending.TransitionTo(fee.PaymentStatusSuccess); err != nil {
		return nil, err
	}
	pending.Gateway.PaymentID = entry.gateway.PaymentID
	pending.Gateway.Signature = entry.gateway.Signature
	if err := repos.PaymentRepo().UpdateStatus(ctx, pending); err != nil {
		return nil, err
	}
	s.metrics.PaymentRecorded(pending.PaymentMethod.String(), pending.Status.String())
	return pending, nil
}

func pendingFor(rows []fee.FeePayment, studentFeeID uuid.UUID) *fee.FeePayment {
	for i := range rows {
		if rows[i].StudentFeeID == studentFeeID && rows[i].Status == fee.PaymentStatusPending {
			return &rows[i]
		}
	}
	return nil
}

// HandleWebhook applies a signed gateway notification. payment.captured settles
// the order's PENDING journal rows, payment.failed fails them. Each event is
// applied once; eventID falls back to the id carried in the payload.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature, eventID string) (result *WebhookResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "PaymentService", "HandleWebhook")
	defer func() { telemetry.EndSpan(span, err) }()

	if !s.gateway.VerifyWebhookSignature(payload, signature) {
		s.metrics.SignatureRejected("webhook")
		s.logger.Warn("Webhook signature rejected", zap.Int("payload_bytes", len(payload)))
		return nil, shared.NewBadRequestError("Invalid webhook signature")
	}
	evt, err := payment.ParseWebhookEvent(payload)
	if err != nil {
		return nil, shared.NewBadRequestError("Invalid webhook payload: %v", err)
	}
	entity := evt.Payload.Payment.Entity
	telemetry.SetAttributes(span, telemetry.SpanAttrOrderID, entity.OrderID, telemetry.SpanAttrPaymentID, entity.ID)

	key := webhookKey(eventID, evt)
	result = &WebhookResult{Event: evt.Event}
	if s.idempotency != nil {
		done, err := s.idempotency.IsProcessed(ctx, key)
		if err != nil {
			s.logger.Warn("Idempotency store lookup failed", zap.String("event_key", key), zap.Error(err))
		} else if done {
			s.metrics.WebhookEvent(evt.Event, "duplicate")
			result.AlreadyProcessed = true
			return result, nil
		}
	}

	var target fee.PaymentStatus
	switch evt.Event {
	case payment.EventPaymentCaptured:
		target = fee.PaymentStatusSuccess
	case payment.EventPaymentFailed:
		target = fee.PaymentStatusFailed
	default:
		s.metrics.WebhookEvent(evt.Event, "ignored")
		s.markProcessed(ctx, key)
		return result, nil
	}
	if entity.OrderID == "" {
		return nil, shared.NewBadRequestError("Webhook payment has no order_id")
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		rows, err := repos.PaymentRepo().FindByGatewayOrderID(ctx, entity.OrderID)
		if err != nil {
			return err
		}
		touched := make(map[uuid.UUID]struct{})
		result.UpdatedPayments = 0
		for i := range rows {
			p := &rows[i]
			if p.Status != fee.PaymentStatusPending {
				continue
			}
			if err := p.TransitionTo(target); err != nil {
				return err
			}
			if target == fee.PaymentStatusSuccess {
				p.Gateway.PaymentID = entity.ID
			}
			p.Notes = strings.TrimSpace(p.Notes + " " + evt.Event)
			if err := repos.PaymentRepo().UpdateStatus(ctx, p); err != nil {
				return err
			}
			touched[p.StudentFeeID] = struct{}{}
			result.UpdatedPayments++
		}
		for id := range touched {
			sf, err := repos.StudentFeeRepo().FindByID(ctx, id)
			if err != nil {
				return err
			}
			if err := s.ledger.settle(ctx, repos, sf); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.metrics.WebhookEvent(evt.Event, "error")
		return nil, err
	}

	s.markProcessed(ctx, key)
	s.metrics.WebhookEvent(evt.Event, "applied")
	s.logger.Info("Webhook applied",
		zap.String("event", evt.Event),
		zap.String("order_id", entity.OrderID),
		zap.String("payment_id", entity.ID),
		zap.Int("updated_payments", result.UpdatedPayments))
	return result, nil
}

func (s *PaymentService) markProcessed(ctx context.Context, key string) {
	if s.idempotency == nil {
		return
	}
	if _, err := s.idempotency.MarkProcessed(ctx, key, shared.DefaultIdempotencyTTL); err != nil {
		s.logger.Warn("Failed to record processed webhook", zap.String("event_key", key), zap.Error(err))
	}
}

func webhookKey(eventID string, evt *payment.WebhookEvent) string {
	switch {
	case eventID != "":
		return "webhook:" + eventID
	case evt.ID != "":
		return "webhook:" + evt.ID
	}
	return "webhook:" + evt.Event + ":" + evt.Payload.Payment.Entity.ID
}

// CreateFeePayment writes a journal row directly and re-derives its installment
func (s *PaymentService) CreateFeePayment(ctx context.Context, principal *auth.Principal, req FeePaymentRequest) (*FeePaymentResponse, error) {
	method, err := fee.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}
	status := fee.PaymentStatusSuccess
	if method.IsOnline() {
		status = fee.PaymentStatusPending
	}
	if req.Status != "" {
		if status, err = fee.ParsePaymentStatus(req.Status); err != nil {
			return nil, err
		}
	}
	if status == fee.PaymentStatusRefunded {
		return nil, shared.NewBadRequestError("A payment cannot be recorded as REFUNDED")
	}

	var p *fee.FeePayment
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		sf, err := repos.StudentFeeRepo().FindByID(ctx, req.StudentFeeID)
		if err != nil {
			if isNotFound(err) {
				return shared.NewNotFoundError("StudentFee not found: %s", req.StudentFeeID)
			}
			return err
		}
		if status == fee.PaymentStatusSuccess {
			if err := sf.EnsureCanPay(req.Amount); err != nil {
				return err
			}
		}
		p, err = s.ledger.record(ctx, repos, sf, journalEntry{
			amount:     req.Amount,
			method:     method,
			status:     status,
			cheque:     req.ChequeNumber,
			notes:      req.Notes,
			receivedBy: principal.UserIDPtr(),
			gateway: fee.GatewayRef{
				OrderID:   req.RazorpayOrderID,
				PaymentID: req.RazorpayPaymentID,
				Signature: req.RazorpaySignature,
			},
		})
		if err != nil {
			return err
		}
		return s.ledger.settle(ctx, repos, sf)
	})
	if err != nil {
		return nil, err
	}
	out := ToFeePaymentResponse(p)
	return &out, nil
}

// GetFeePayment returns one journal row
func (s *PaymentService) GetFeePayment(ctx context.Context, id uuid.UUID) (*FeePaymentResponse, error) {
	p, err := s.payments.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, shared.NewNotFoundError("FeePayment not found: %s", id)
		}
		return nil, err
	}
	out := ToFeePaymentResponse(p)
	return &out, nil
}

// ListFeePayments lists journal rows, optionally for one installment
func (s *PaymentService) ListFeePayments(ctx context.Context, studentFeeID *uuid.UUID) ([]FeePaymentResponse, error) {
	list, err := s.payments.FindAll(ctx, fee.PaymentFilter{StudentFeeID: studentFeeID})
	if err != nil {
		return nil, err
	}
	out := make([]FeePaymentResponse, 0, len(list))
	for i := range list {
		out = append(out, ToFeePaymentResponse(&list[i]))
	}
	return out, nil
}

// UpdateFeePaymentStatus moves a journal row along PENDING->SUCCESS|FAILED or
// SUCCESS->REFUNDED and re-derives its installment.
func (s *PaymentService) UpdateFeePaymentStatus(ctx context.Context, id uuid.UUID, req UpdatePaymentStatusRequest) (*FeePaymentResponse, error) {
	next, err := fee.ParsePaymentStatus(req.Status)
	if err != nil {
		return nil, err
	}
	var p *fee.FeePayment
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		p, err = repos.PaymentRepo().FindByID(ctx, id)
		if err != nil {
			if isNotFound(err) {
				return shared.NewNotFoundError("FeePayment not found: %s", id)
			}
			return err
		}
		if err := p.TransitionTo(next); err != nil {
			return err
		}
		if req.Notes != "" {
			p.Notes = req.Notes
		}
		if err := repos.PaymentRepo().UpdateStatus(ctx, p); err != nil {
			return err
		}
		sf, err := repos.StudentFeeRepo().FindByID(ctx, p.StudentFeeID)
		if err != nil {
			return err
		}
		return s.ledger.settle(ctx, repos, sf)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Payment status updated",
		zap.String("payment_id", id.String()),
		zap.String("status", next.String()))
	out := ToFeePaymentResponse(p)
	return &out, nil
}
