package fee_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appfee "github.com/erp/schoolfees/internal/application/fee"
	"github.com/erp/schoolfees/internal/domain/fee"
	"github.com/erp/schoolfees/internal/domain/shared"
	"github.com/erp/schoolfees/internal/infrastructure/payment"
	"github.com/erp/schoolfees/internal/infrastructure/persistence/models"
)

func initiate(t *testing.T, f *fixture, structure uuid.UUID, amount string) *appfee.InitiatePaymentResponse {
	t.Helper()
	resp, err := f.payments.InitiatePayment(context.Background(), appfee.InitiatePaymentRequest{
		StudentYearID: studentYearID,
		SchoolYearID:  schoolYearID,
		Fees:          []appfee.FeeLineItem{{FeeID: structure, Amount: dec(amount)}},
	})
	require.NoError(t, err)
	return resp
}

func confirmRequest(f *fixture, orderID, paymentID string, structure uuid.UUID, amount string) appfee.ConfirmPaymentRequest {
	return appfee.ConfirmPaymentRequest{
		StudentYearID:     studentYearID,
		SelectedFees:      []appfee.FeeLineItem{{FeeID: structure, Amount: dec(amount)}},
		PaymentMode:       "online",
		RazorpayOrderID:   orderID,
		RazorpayPaymentID: paymentID,
		RazorpaySignature: f.gateway.SignPayment(orderID, paymentID),
	}
}

func TestPaymentService_InitiatePayment(t *testing.T) {
	f := newFixture(t)
	exam := f.seedStructure(t, fee.FeeTypeExam, "500", levelGrade5)

	resp := initiate(t, f, exam, "500")
	assert.NotEmpty(t, resp.RazorpayOrderID)
	assert.Equal(t, "500.00", resp.Amount)
	assert.Equal(t, "INR", resp.Currency)
	assert.Regexp(t, fee.ReceiptPattern, resp.ReceiptNumber)
	require.Len(t, resp.Fees, 1)
	assert.Equal(t, "PENDING", resp.Fees[0].Status)

	assert.EqualValues(t, 1, f.count(t, &models.StudentFeeModel{}))
	assert.Zero(t, f.count(t, &models.FeePaymentModel{}))
}

func TestPaymentService_InitiatePaymentRejectsZeroTotal(t *testing.T) {
	f := newFixture(t)
	exam := f.seedStructure(t, fee.FeeTypeExam, "500", levelGrade5)

	_, err := f.payments.InitiatePayment(context.Background(), appfee.InitiatePaymentRequest{
		StudentYearID: studentYearID,
		Fees:          []appfee.FeeLineItem{{FeeID: exam, Amount: dec("0.50")}},
	})
	requireCode(t, err, shared.CodeBadRequest)
	assert.Zero(t, f.count(t, &models.StudentFeeModel{}))
}

func TestPaymentService_ConfirmPaymentCreditsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exam := f.seedStructure(t, fee.FeeTypeExam, "500", levelGrade5)
	order := initiate(t, f, exam, "500")

	req := confirmRequest(f, order.RazorpayOrderID, "pay_001", exam, "500")
	resp, err := f.payments.ConfirmPayment(ctx, f.principal, req)
	require.NoError(t, err)
	assert.Equal(t, "Payment confirmed successfully.", resp.Message)
	require.Len(t, resp.Payments, 1)
	assert.False(t, resp.Payments[0].Replayed)
	assert.Equal(t, "SUCCESS", resp.Payments[0].Status)

	sf := f.studentFee(t, order.Fees[0].ID)
	assert.Equal(t, fee.FeeStatusPaid, sf.Status)
	assert.Equal(t, "500.00", sf.PaidAmount.StringFixed(2))

	replay, err := f.payments.ConfirmPayment(ctx, f.principal, req)
	require.NoError(t, err)
	require.Len(t, replay.Payments, 1)
	assert.True(t, replay.Payments[0].Replayed)

	sf = f.studentFee(t, order.Fees[0].ID)
	assert.Equal(t, "500.00", sf.PaidAmount.StringFixed(2))
	assert.EqualValues(t, 1, f.count(t, &models.FeePaymentModel{}))
}

func TestPaymentService_ConfirmPaymentRejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	exam := f.seedStructure(t, fee.FeeTypeExam, "500", levelGrade5)
	order := initiate(t, f, exam, "500")

	req := confirmRequest(f, order.RazorpayOrderID, "pay_001", exam, "500")
	req.RazorpaySignature = "deadbeef"
	_, err := f.payments.ConfirmPayment(context.Background(), f.principal, req)
	requireCode(t, err, shared.CodeBadRequest)

	assert.Zero(t, f.count(t, &models.FeePaymentModel{}))
	sf := f.studentFee(t, order.Fees[0].ID)
	assert.True(t, sf.PaidAmount.IsZero())
	assert.Equal(t, fee.FeeStatusPending, sf.Status)
}

func TestPaymentService_ConfirmPaymentRequiresInitiation(t *testing.T) {
	f := newFixture(t)
	exam := f.seedStructure(t, fee.FeeTypeExam, "500", levelGrade5)

	req := confirmRequest(f, "order_x", "pay_x", exam, "500")
	_, err := f.payments.ConfirmPayment(context.Background(), f.principal, req)
	requireCode(t, err, shared.CodeNotFound)
}

func TestPaymentService_ConfirmPaymentRejectsAmountAboveOriginal(t *testing.T) {
	f := newFixture(t)
	exam := f.seedStructure(t, fee.FeeTypeExam, "500", levelGrade5)
	order := initiate(t, f, exam, "500")

	req := confirmRequest(f, order.RazorpayOrderID, "pay_001", exam, "600")
	_, err := f.payments.ConfirmPayment(context.Background(), f.principal, req)
	requireCode(t, err, shared.CodeBadRequest)
	assert.Zero(t, f.count(t, &models.FeePaymentModel{}))
}

func TestPaymentService_ConfirmPaymentCapsAtDiscountedAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exam := f.seedStructure(t, fee.FeeTypeExam, "500", levelGrade5)
	_, err := f.discounts.ApplyDiscount(ctx, f.principal, appfee.ApplyDiscountRequest{
		StudentYearID:   studentYearID,
		FeeStructureID:  exam,
		DiscountName:    "Merit",
		DiscountPercent: dec("20"),
	})
	require.NoError(t, err)
	order := initiate(t, f, exam, "400")

	over := confirmRequest(f, order.RazorpayOrderID, "pay_001", exam, "450")
	_, err = f.payments.ConfirmPayment(ctx, f.principal, over)
	requireCode(t, err, shared.CodeBadRequest)
	assert.Zero(t, f.count(t, &models.FeePaymentModel{}))

	sf := f.studentFee(t, order.Fees[0].ID)
	assert.True(t, sf.PaidAmount.IsZero())
	assert.Equal(t, "100.00", sf.DiscountAmount.StringFixed(2))

	exact := confirmRequest(f, order.RazorpayOrderID, "pay_002", exam, "400")
	_, err = f.payments.ConfirmPayment(ctx, f.principal, exact)
	require.NoError(t, err)

	sf = f.studentFee(t, order.Fees[0].ID)
	assert.Equal(t, fee.FeeStatusPaid, sf.Status)
	assert.Equal(t, "400.00", sf.PaidAmount.StringFixed(2))
	assert.True(t, sf.DueAmount.IsZero())
}

func TestPaymentService_ConfirmPaymentRejectsAmountOtherThanPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exam := f.seedStructure(t, fee.FeeTypeExam, "500", levelGrade5)

	submitted, err := f.fees.SubmitFee(ctx, f.principal, appfee.SubmitFeeRequest{
		StudentYearID: studentYearID,
		SchoolYearID:  schoolYearID,
		PaymentMethod: "online",
		Fees:          []appfee.FeeLineItem{{FeeID: exam, Amount: dec("200")}},
	})
	require.NoError(t, err)

	req := confirmRequest(f, submitted.RazorpayOrderID, "pay_300", exam, "300")
	_, err = f.payments.ConfirmPayment(ctx, f.principal, req)
	requireCode(t, err, shared.CodeBadRequest)

	var row models.FeePaymentModel
	require.NoError(t, f.db.First(&row).Error)
	assert.Equal(t, fee.PaymentStatusPending, row.Status)
	assert.True(t, f.studentFee(t, submitted.Fees[0].ID).PaidAmount.IsZero())
}

func TestPaymentService_ConfirmPaymentSettlesPendingRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exam := f.seedStructure(t, fee.FeeTypeExam, "500", levelGrade5)

	submitted, err := f.fees.SubmitFee(ctx, f.principal, appfee.SubmitFeeRequest{
		StudentYearID: studentYearID,
		SchoolYearID:  schoolYearID,
		PaymentMethod: "online",
		Fees:          []appfee.FeeLineItem{{FeeID: exam, Amount: dec("500")}},
	})
	require.NoError(t, err)

	req := confirmRequest(f, submitted.RazorpayOrderID, "pay_777", exam, "500")
	_, err = f.payments.ConfirmPayment(ctx, f.principal, req)
	require.NoError(t, err)

	assert.EqualValues(t, 1, f.count(t, &models.FeePaymentModel{}))
	var row models.FeePaymentModel
	require.NoError(t, f.db.First(&row).Error)
	assert.Equal(t, fee.PaymentStatusSuccess, row.Status)
	assert.Equal(t, "pay_777", row.GatewayPaymentID)
	assert.Equal(t, fee.FeeStatusPaid, f.studentFee(t, submitted.Fees[0].ID).Status)
}

func webhookPayload(t *testing.T, eventID, event, orderID, paymentID string) []byte {
	t.Helper()
	body := map[string]any{
		"id":    eventID,
		"event": event,
		"payload": map[string]any{
			"payment": map[string]any{
				"entity": map[string]any{
					"id":       paymentID,
					"order_id": orderID,
					"amount":   50000,
					"currency": "INR",
					"status":   "captured",
				},
			},
		},
		"created_at": 1779271200,
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return raw
}

func TestPaymentService_HandleWebhookCapturedIsApplied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exam := f.seedStructure(t, fee.FeeTypeExam, "500", levelGrade5)

	submitted, err := f.fees.SubmitFee(ctx, f.principal, appfee.SubmitFeeRequest{
		StudentYearID: studentYearID,
		SchoolYearID:  schoolYearID,
		PaymentMethod: "online",
		Fees:          []appfee.FeeLineItem{{FeeID: exam, Amount: dec("500")}},
	})
	require.NoError(t, err)

	payload := webhookPayload(t, "evt_1", payment.EventPaymentCaptured, submitted.RazorpayOrderID, "pay_9")
	signature := payment.Sign(payload, testWebhookSecret)

	result, err := f.payments.HandleWebhook(ctx, payload, signature, "")
	require.NoError(t, err)
	assert.False(t, result.AlreadyProcessed)
	assert.Equal(t, 1, result.UpdatedPayments)
	assert.Equal(t, fee.FeeStatusPaid, f.studentFee(t, submitted.Fees[0].ID).Status)

	again, err := f.payments.HandleWebhook(ctx, payload, signature, "")
	require.NoError(t, err)
	assert.True(t, again.AlreadyProcessed)
	assert.Zero(t, again.UpdatedPayments)
}

func TestPaymentService_HandleWebhookFailedLeavesFeeUnpaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exam := f.seedStructure(t, fee.FeeTypeExam, "500", levelGrade5)

	submitted, err := f.fees.SubmitFee(ctx, f.principal, appfee.SubmitFeeRequest{
		StudentYearID: studentYearID,
		SchoolYearID:  schoolYearID,
		PaymentMethod: "online",
		Fees:          []appfee.FeeLineItem{{FeeID: exam, Amount: dec("500")}},
	})
	require.NoError(t, err)

	payload := webhookPayload(t, "evt_2", payment.EventPaymentFailed, submitted.RazorpayOrderID, "pay_10")
	result, err := f.payments.HandleWebhook(ctx, payload, payment.Sign(payload, testWebhookSecret), "hdr-2")
	require.NoError(t, err)
	assert.Equal(t, 1, result.UpdatedPayments)

	var row models.FeePaymentModel
	require.NoError(t, f.db.First(&row).Error)
	assert.Equal(t, fee.PaymentStatusFailed, row.Status)
	assert.Equal(t, fee.FeeStatusPending, f.studentFee(t, submitted.Fees[0].ID).Status)
}

func TestPaymentService_HandleWebhookRejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	payload := webhookPayload(t, "evt_3", payment.EventPaymentCaptured, "order_1", "pay_1")

	_, err := f.payments.HandleWebhook(context.Background(), payload, "bogus", "")
	requireCode(t, err, shared.CodeBadRequest)
}

func TestPaymentService_HandleWebhookIgnoresOtherEvents(t *testing.T) {
	f := newFixture(t)
	payload := webhookPayload(t, "evt_4", "order.paid", "order_1", "pay_1")

	result, err := f.payments.HandleWebhook(context.Background(), payload, payment.Sign(payload, testWebhookSecret), "")
	require.NoError(t, err)
	assert.Equal(t, "order.paid", result.Event)
	assert.Zero(t, result.UpdatedPayments)
}

func TestPaymentService_JournalLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exam := f.seedStructure(t, fee.FeeTypeExam, "500", levelGrade5)
	order := initiate(t, f, exam, "500")
	sfID := order.Fees[0].ID

	created, err := f.payments.CreateFeePayment(ctx, f.principal, appfee.FeePaymentRequest{
		StudentFeeID:  sfID,
		Amount:        dec("300"),
		PaymentMethod: "cash",
	})
	require.NoError(t, err)
	assert.Equal(t, "SUCCESS", created.Status)
	assert.Equal(t, int64(42), *created.ReceivedBy)
	assert.Equal(t, fee.FeeStatusPartial, f.studentFee(t, sfID).Status)

	_, err = f.payments.CreateFeePayment(ctx, f.principal, appfee.FeePaymentRequest{
		StudentFeeID:  sfID,
		Amount:        dec("300"),
		PaymentMethod: "cash",
	})
	requireCode(t, err, shared.CodeBadRequest)

	refunded, err := f.payments.UpdateFeePaymentStatus(ctx, created.ID, appfee.UpdatePaymentStatusRequest{
		Status: "refunded",
		Notes:  "returned at the counter",
	})
	require.NoError(t, err)
	assert.Equal(t, "REFUNDED", refunded.Status)

	sf := f.studentFee(t, sfID)
	assert.True(t, sf.PaidAmount.IsZero())
	assert.Equal(t, fee.FeeStatusPending, sf.Status)

	_, err = f.payments.UpdateFeePaymentStatus(ctx, created.ID, appfee.UpdatePaymentStatusRequest{Status: "SUCCESS"})
	requireCode(t, err, shared.CodeBadRequest)

	list, err := f.payments.ListFeePayments(ctx, &sfID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	got, err := f.payments.GetFeePayment(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "returned at the counter", got.Notes)

	_, err = f.payments.GetFeePayment(ctx, uuid.New())
	requireCode(t, err, shared.CodeNotFound)
}
