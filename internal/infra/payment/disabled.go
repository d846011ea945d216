package payment

import (
	"context"
	"net/http"

	"pixelgrid/internal/pkg/errs"
	"pixelgrid/internal/usecase/shared"

	"github.com/shopspring/decimal"
)

var errNotConfigured = errs.Mark(errs.New("payment provider credentials not configured"), shared.ErrProviderUnavailable)

// Disabled stands in when no provider credentials are configured. Locking and direct
// finalization keep working; checkout fails as provider unavailable.
type Disabled struct{}

func (Disabled) CreatePayment(context.Context, shared.PaymentRequest) (string, error) {
	return "", errNotConfigured
}

func (Disabled) LookupPayment(context.Context, string) (*shared.PaymentDetails, error) {
	return nil, errNotConfigured
}

func (Disabled) Capture(context.Context, string, string) (*shared.CaptureResult, error) {
	return nil, errNotConfigured
}

func (Disabled) Refund(context.Context, string, decimal.Decimal, string, string) (*shared.RefundResult, error) {
	return nil, errs.Mark(errNotConfigured, shared.ErrRefundFailed)
}

func (Disabled) VerifyWebhook(context.Context, http.Header, []byte) (*shared.WebhookEvent, error) {
	return nil, errs.Wrap(shared.ErrInvalidWebhookSignature, "payment provider not configured")
}
