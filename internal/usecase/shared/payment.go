package shared

import (
	"context"
	"net/http"

	"pixelgrid/internal/pkg/errs"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrPaymentNotFound         = errs.New("payment not found at provider")
	ErrPaymentNotApproved      = errs.New("payment not approved by payer")
	ErrPaymentDeclined         = errs.New("payment declined by provider")
	ErrPaymentOutcomeUnknown   = errs.New("payment provider outcome unknown")
	ErrProviderUnavailable     = errs.New("payment provider unavailable")
	ErrRefundFailed            = errs.New("refund rejected by provider")
	ErrInvalidWebhookSignature = errs.New("webhook signature verification failed")
)

type PaymentState string

const (
	PaymentCreated   PaymentState = "CREATED"
	PaymentApproved  PaymentState = "APPROVED"
	PaymentCompleted PaymentState = "COMPLETED"
	// PaymentPending is a capture the provider accepted but has not settled yet.
	PaymentPending  PaymentState = "PENDING"
	PaymentVoided   PaymentState = "VOIDED"
	PaymentDeclined PaymentState = "DECLINED"
)

type PaymentRequest struct {
	OrderID     uuid.UUID
	Amount      decimal.Decimal
	Currency    string
	Description string
}

type PaymentDetails struct {
	Ref        string
	State      PaymentState
	Amount     decimal.Decimal
	Currency   string
	OrderID    string
	CaptureRef string
}

type CaptureResult struct {
	CaptureRef string
	State      PaymentState
	Amount     decimal.Decimal
	Currency   string
}

type RefundResult struct {
	RefundRef string
	State     string
}

type WebhookEventType string

const (
	WebhookOrderApproved   WebhookEventType = "CHECKOUT.ORDER.APPROVED"
	WebhookCaptureComplete WebhookEventType = "PAYMENT.CAPTURE.COMPLETED"
	WebhookCaptureDenied   WebhookEventType = "PAYMENT.CAPTURE.DENIED"
	WebhookCaptureRefunded WebhookEventType = "PAYMENT.CAPTURE.REFUNDED"
)

type WebhookEvent struct {
	ID         string
	Type       WebhookEventType
	OrderID    string
	PaymentRef string
	CaptureRef string
}

// PaymentGateway is the external payment provider. Capture and Refund must be idempotent
// for a repeated idempotencyKey.
type PaymentGateway interface {
	CreatePayment(ctx context.Context, req PaymentRequest) (string, error)
	LookupPayment(ctx context.Context, ref string) (*PaymentDetails, error)
	Capture(ctx context.Context, ref, idempotencyKey string) (*CaptureResult, error)
	Refund(ctx context.Context, captureRef string, amount decimal.Decimal, currency, idempotencyKey string) (*RefundResult, error)
	VerifyWebhook(ctx context.Context, header http.Header, body []byte) (*WebhookEvent, error)
}
