package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"pixelgrid/internal/pkg/config"
	"pixelgrid/internal/pkg/errs"
	"pixelgrid/internal/usecase/shared"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const maxResponseBytes = 1 << 20

// PayPalGateway talks to a PayPal-compatible Orders v2 API. The provider order id is the
// payment reference, and the local order id travels as custom_id.
type PayPalGateway struct {
	baseURL   string
	webhookID string
	brandName string
	client    *http.Client
}

func NewPayPalGateway(cfg config.PaymentConfig) *PayPalGateway {
	base := strings.TrimRight(cfg.BaseURL, "/")
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     base + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	transport := &http.Client{Timeout: cfg.Timeout}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, transport)
	client := cc.Client(ctx)
	client.Timeout = cfg.Timeout

	return &PayPalGateway{
		baseURL:   base,
		webhookID: cfg.WebhookID,
		brandName: cfg.BrandName,
		client:    client,
	}
}

type money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type purchaseUnit struct {
	CustomID    string `json:"custom_id,omitempty"`
	Description string `json:"description,omitempty"`
	Amount      money  `json:"amount"`
	Payments    *struct {
		Captures []captureResource `json:"captures"`
	} `json:"payments,omitempty"`
}

type captureResource struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   money  `json:"amount"`
	CustomID string `json:"custom_id"`
}

type orderResource struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	PurchaseUnits []purchaseUnit `json:"purchase_units"`
}

type apiError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Details []struct {
		Issue string `json:"issue"`
	} `json:"details"`
}

func (e apiError) hasIssue(issue string) bool {
	for _, d := range e.Details {
		if d.Issue == issue {
			return true
		}
	}
	return false
}

func (g *PayPalGateway) CreatePayment(ctx context.Context, req shared.PaymentRequest) (string, error) {
	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []purchaseUnit{{
			CustomID:    req.OrderID.String(),
			Description: req.Description,
			Amount:      money{CurrencyCode: req.Currency, Value: req.Amount.StringFixed(2)},
		}},
		"application_context": map[string]string{
			"brand_name":          g.brandName,
			"shipping_preference": "NO_SHIPPING",
			"user_action":         "PAY_NOW",
		},
	}
	var out orderResource
	status, apiErr, err := g.do(ctx, http.MethodPost, "/v2/checkout/orders", "create-"+req.OrderID.String(), body, &out)
	if err != nil {
		return "", errs.Mark(err, shared.ErrProviderUnavailable)
	}
	if status >= 300 {
		return "", providerError("create order", status, apiErr)
	}
	return out.ID, nil
}

func (g *PayPalGateway) LookupPayment(ctx context.Context, ref string) (*shared.PaymentDetails, error) {
	var out orderResource
	status, apiErr, err := g.do(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(ref), "", nil, &out)
	if err != nil {
		return nil, errs.Mark(err, shared.ErrProviderUnavailable)
	}
	if status == http.StatusNotFound {
		return nil, errs.Wrapf(shared.ErrPaymentNotFound, "payment %s", ref)
	}
	if status >= 300 {
		return nil, providerError("lookup order", status, apiErr)
	}
	return orderDetails(out)
}

// Capture maps timeouts and 5xx answers to ErrPaymentOutcomeUnknown: the provider may
// have captured, and only a later lookup can tell.
func (g *PayPalGateway) Capture(ctx context.Context, ref, idempotencyKey string) (*shared.CaptureResult, error) {
	var out orderResource
	status, apiErr, err := g.do(ctx, http.MethodPost, "/v2/checkout/orders/"+url.PathEscape(ref)+"/capture", idempotencyKey, map[string]any{}, &out)
	if err != nil {
		return nil, errs.Mark(errs.Wrap(err, "capture"), shared.ErrPaymentOutcomeUnknown)
	}

	switch {
	case status == http.StatusUnprocessableEntity && apiErr.hasIssue("ORDER_ALREADY_CAPTURED"):
		details, err := g.LookupPayment(ctx, ref)
		if err != nil {
			return nil, errs.Mark(err, shared.ErrPaymentOutcomeUnknown)
		}
		return &shared.CaptureResult{CaptureRef: details.CaptureRef, State: details.State, Amount: details.Amount, Currency: details.Currency}, nil
	case status == http.StatusUnprocessableEntity && (apiErr.hasIssue("INSTRUMENT_DECLINED") || apiErr.hasIssue("ORDER_NOT_APPROVED")):
		return nil, errs.Wrapf(shared.ErrPaymentDeclined, "capture %s: %s", ref, apiErr.issues())
	case status == http.StatusNotFound:
		return nil, errs.Wrapf(shared.ErrPaymentNotFound, "payment %s", ref)
	case status >= 500:
		return nil, errs.Wrapf(shared.ErrPaymentOutcomeUnknown, "capture %s: status %d", ref, status)
	case status >= 300:
		return nil, providerError("capture", status, apiErr)
	}

	capture, ok := firstCapture(out)
	if !ok {
		return nil, errs.Wrapf(shared.ErrPaymentOutcomeUnknown, "capture %s: no capture in response", ref)
	}
	amount, err := decimal.NewFromString(capture.Amount.Value)
	if err != nil {
		return nil, errs.Mark(errs.Wrap(err, "parse captured amount"), shared.ErrPaymentOutcomeUnknown)
	}
	state := captureState(capture.Status)
	switch state {
	case shared.PaymentDeclined:
		return nil, errs.Wrapf(shared.ErrPaymentDeclined, "capture %s declined", ref)
	case shared.PaymentPending:
		return nil, errs.Wrapf(shared.ErrPaymentOutcomeUnknown, "capture %s pending", ref)
	}
	return &shared.CaptureResult{
		CaptureRef: capture.ID,
		State:      state,
		Amount:     amount,
		Currency:   capture.Amount.CurrencyCode,
	}, nil
}

func (g *PayPalGateway) Refund(ctx context.Context, captureRef string, amount decimal.Decimal, currency, idempotencyKey string) (*shared.RefundResult, error) {
	body := map[string]any{
		"amount": money{CurrencyCode: currency, Value: amount.StringFixed(2)},
	}
	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	status, apiErr, err := g.do(ctx, http.MethodPost, "/v2/payments/captures/"+url.PathEscape(captureRef)+"/refund", idempotencyKey, body, &out)
	if err != nil {
		return nil, errs.Mark(errs.Mark(err, shared.ErrProviderUnavailable), shared.ErrRefundFailed)
	}
	if status >= 300 {
		return nil, errs.Mark(providerError("refund", status, apiErr), shared.ErrRefundFailed)
	}
	if out.Status == "FAILED" || out.Status == "CANCELLED" {
		return nil, errs.Wrapf(shared.ErrRefundFailed, "refund %s: %s", out.ID, out.Status)
	}
	return &shared.RefundResult{RefundRef: out.ID, State: out.Status}, nil
}

type webhookEnvelope struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Resource  json.RawMessage `json:"resource"`
}

// VerifyWebhook asks the provider to verify the transmission signature, then extracts the
// order reference from the event resource.
func (g *PayPalGateway) VerifyWebhook(ctx context.Context, header http.Header, body []byte) (*shared.WebhookEvent, error) {
	if g.webhookID == "" {
		return nil, errs.Wrap(shared.ErrInvalidWebhookSignature, "webhook id not configured")
	}
	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errs.Mark(errs.Wrap(err, "parse webhook"), shared.ErrInvalidWebhookSignature)
	}

	verify := map[string]any{
		"auth_algo":         header.Get("Paypal-Auth-Algo"),
		"cert_url":          header.Get("Paypal-Cert-Url"),
		"transmission_id":   header.Get("Paypal-Transmission-Id"),
		"transmission_sig":  header.Get("Paypal-Transmission-Sig"),
		"transmission_time": header.Get("Paypal-Transmission-Time"),
		"webhook_id":        g.webhookID,
		"webhook_event":     json.RawMessage(body),
	}
	var out struct {
		VerificationStatus string `json:"verification_status"`
	}
	status, apiErr, err := g.do(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", "", verify, &out)
	if err != nil {
		return nil, errs.Mark(err, shared.ErrProviderUnavailable)
	}
	if status >= 300 {
		return nil, providerError("verify webhook", status, apiErr)
	}
	if out.VerificationStatus != "SUCCESS" {
		return nil, errs.Wrapf(shared.ErrInvalidWebhookSignature, "event %s: %s", envelope.ID, out.VerificationStatus)
	}

	event := &shared.WebhookEvent{ID: envelope.ID, Type: shared.WebhookEventType(envelope.EventType)}
	switch event.Type {
	case shared.WebhookOrderApproved:
		var order orderResource
		if err := json.Unmarshal(envelope.Resource, &order); err != nil {
			return nil, errs.Wrap(err, "parse order resource")
		}
		event.PaymentRef = order.ID
		if len(order.PurchaseUnits) > 0 {
			event.OrderID = order.PurchaseUnits[0].CustomID
		}
	case shared.WebhookCaptureComplete, shared.WebhookCaptureDenied, shared.WebhookCaptureRefunded:
		var capture struct {
			captureResource
			SupplementaryData struct {
				RelatedIDs struct {
					OrderID string `json:"order_id"`
				} `json:"related_ids"`
			} `json:"supplementary_data"`
		}
		if err := json.Unmarshal(envelope.Resource, &capture); err != nil {
			return nil, errs.Wrap(err, "parse capture resource")
		}
		event.CaptureRef = capture.ID
		event.OrderID = capture.CustomID
		event.PaymentRef = capture.SupplementaryData.RelatedIDs.OrderID
	}
	return event, nil
}

// do returns the HTTP status and, for non-2xx answers, the decoded error body. err is
// set only when no HTTP answer was received.
func (g *PayPalGateway) do(ctx context.Context, method, path, requestID string, in, out any) (int, apiError, error) {
	var apiErr apiError
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, apiErr, errs.Wrap(err, "marshal provider request")
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return 0, apiErr, errs.Wrap(err, "build provider request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requestID != "" {
		req.Header.Set("PayPal-Request-Id", requestID)
	}
	req.Header.Set("Prefer", "return=representation")

	resp, err := g.client.Do(req)
	if err != nil {
		slog.Warn("payment provider request failed", "method", method, "path", path, "error", err.Error())
		return 0, apiErr, errs.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, apiErr, errs.Wrap(err, "read provider response")
	}
	if resp.StatusCode >= 300 {
		_ = json.Unmarshal(raw, &apiErr)
		slog.Warn("payment provider rejected request",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"name", apiErr.Name,
			"issues", apiErr.issues())
		return resp.StatusCode, apiErr, nil
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, apiErr, errs.Wrap(err, "decode provider response")
		}
	}
	return resp.StatusCode, apiErr, nil
}

func (e apiError) issues() string {
	issues := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		issues = append(issues, d.Issue)
	}
	return strings.Join(issues, ",")
}

func providerError(op string, status int, apiErr apiError) error {
	err := errs.Newf("%s: provider status %d %s %s", op, status, apiErr.Name, apiErr.issues())
	if status >= 500 || status == http.StatusTooManyRequests || status == http.StatusUnauthorized {
		return errs.Mark(err, shared.ErrProviderUnavailable)
	}
	return err
}

func orderDetails(o orderResource) (*shared.PaymentDetails, error) {
	d := &shared.PaymentDetails{Ref: o.ID, State: orderState(o.Status)}
	if len(o.PurchaseUnits) > 0 {
		pu := o.PurchaseUnits[0]
		d.OrderID = pu.CustomID
		d.Currency = pu.Amount.CurrencyCode
		if pu.Amount.Value != "" {
			amount, err := decimal.NewFromString(pu.Amount.Value)
			if err != nil {
				return nil, errs.Wrap(err, "parse order amount")
			}
			d.Amount = amount
		}
	}
	if capture, ok := firstCapture(o); ok {
		d.CaptureRef = capture.ID
		if state := captureState(capture.Status); state != shared.PaymentCompleted {
			d.State = state
		}
	}
	return d, nil
}

func firstCapture(o orderResource) (captureResource, bool) {
	for _, pu := range o.PurchaseUnits {
		if pu.Payments != nil && len(pu.Payments.Captures) > 0 {
			return pu.Payments.Captures[0], true
		}
	}
	return captureResource{}, false
}

func orderState(s string) shared.PaymentState {
	switch s {
	case "APPROVED":
		return shared.PaymentApproved
	case "COMPLETED":
		return shared.PaymentCompleted
	case "VOIDED":
		return shared.PaymentVoided
	default:
		return shared.PaymentCreated
	}
}

func captureState(s string) shared.PaymentState {
	switch s {
	case "COMPLETED":
		return shared.PaymentCompleted
	case "DECLINED", "FAILED":
		return shared.PaymentDeclined
	default:
		return shared.PaymentPending
	}
}
