//go:build unit

package payment_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pixelgrid/internal/infra/payment"
	"pixelgrid/internal/pkg/config"
	"pixelgrid/internal/pkg/errs"
	"pixelgrid/internal/usecase/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type recordedRequest struct {
	Method    string
	Path      string
	Auth      string
	RequestID string
	Body      map[string]any
}

type PayPalGatewayTestSuite struct {
	suite.Suite
	server   *httptest.Server
	mux      *http.ServeMux
	mu       sync.Mutex
	requests []recordedRequest
	gateway  *payment.PayPalGateway
}

func TestPayPalGatewayTestSuite(t *testing.T) {
	suite.Run(t, new(PayPalGatewayTestSuite))
}

func (s *PayPalGatewayTestSuite) SetupTest() {
	s.requests = nil
	s.mux = http.NewServeMux()
	s.mux.HandleFunc("POST /v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "tok", "token_type": "Bearer", "expires_in": 3600})
	})
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/oauth2/token" {
			rec := recordedRequest{
				Method:    r.Method,
				Path:      r.URL.Path,
				Auth:      r.Header.Get("Authorization"),
				RequestID: r.Header.Get("PayPal-Request-Id"),
			}
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &rec.Body)
			s.mu.Lock()
			s.requests = append(s.requests, rec)
			s.mu.Unlock()
		}
		s.mux.ServeHTTP(w, r)
	}))
	s.gateway = payment.NewPayPalGateway(config.PaymentConfig{
		BaseURL:      s.server.URL,
		ClientID:     "client",
		ClientSecret: "secret",
		WebhookID:    "WH-1",
		Timeout:      5 * time.Second,
		BrandName:    "Pixel Grid",
	})
}

func (s *PayPalGatewayTestSuite) TearDownTest() {
	s.server.Close()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func completedOrder(id, captureID, captureStatus string) map[string]any {
	return map[string]any{
		"id":     id,
		"status": "COMPLETED",
		"purchase_units": []any{map[string]any{
			"custom_id": "local-order",
			"amount":    map[string]any{"currency_code": "USD", "value": "200.00"},
			"payments": map[string]any{"captures": []any{map[string]any{
				"id":     captureID,
				"status": captureStatus,
				"amount": map[string]any{"currency_code": "USD", "value": "200.00"},
			}}},
		}},
	}
}

func (s *PayPalGatewayTestSuite) lastRequest() recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Require().NotEmpty(s.requests)
	return s.requests[len(s.requests)-1]
}

func (s *PayPalGatewayTestSuite) TestCreatePayment() {
	s.mux.HandleFunc("POST /v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{"id": "PAY-1", "status": "CREATED"})
	})
	orderID := uuid.New()

	ref, err := s.gateway.CreatePayment(context.Background(), shared.PaymentRequest{
		OrderID:  orderID,
		Amount:   decimal.RequireFromString("200"),
		Currency: "USD",
	})

	s.Require().NoError(err)
	s.Equal("PAY-1", ref)
	req := s.lastRequest()
	s.Equal("Bearer tok", req.Auth)
	s.Equal("create-"+orderID.String(), req.RequestID)
	unit := req.Body["purchase_units"].([]any)[0].(map[string]any)
	s.Equal(orderID.String(), unit["custom_id"])
	s.Equal("200.00", unit["amount"].(map[string]any)["value"])
}

func (s *PayPalGatewayTestSuite) TestCreatePaymentProviderDown() {
	s.mux.HandleFunc("POST /v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"name": "SERVICE_UNAVAILABLE"})
	})

	_, err := s.gateway.CreatePayment(context.Background(), shared.PaymentRequest{OrderID: uuid.New(), Amount: decimal.NewFromInt(1), Currency: "USD"})
	s.True(errs.Is(err, shared.ErrProviderUnavailable))
}

func (s *PayPalGatewayTestSuite) TestCaptureCompleted() {
	s.mux.HandleFunc("POST /v2/checkout/orders/PAY-1/capture", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, completedOrder("PAY-1", "CAP-1", "COMPLETED"))
	})

	res, err := s.gateway.Capture(context.Background(), "PAY-1", "order-key")

	s.Require().NoError(err)
	s.Equal("CAP-1", res.CaptureRef)
	s.Equal(shared.PaymentCompleted, res.State)
	s.True(res.Amount.Equal(decimal.RequireFromString("200")))
	s.Equal("order-key", s.lastRequest().RequestID)
}

func (s *PayPalGatewayTestSuite) TestCaptureOutcomes() {
	tests := []struct {
		name    string
		status  int
		body    any
		wantErr error
	}{
		{name: "server error is unknown", status: http.StatusBadGateway, body: map[string]any{}, wantErr: shared.ErrPaymentOutcomeUnknown},
		{name: "pending capture is unknown", status: http.StatusCreated, body: completedOrder("PAY-1", "CAP-1", "PENDING"), wantErr: shared.ErrPaymentOutcomeUnknown},
		{name: "declined capture", status: http.StatusCreated, body: completedOrder("PAY-1", "CAP-1", "DECLINED"), wantErr: shared.ErrPaymentDeclined},
		{name: "instrument declined", status: http.StatusUnprocessableEntity,
			body: map[string]any{"name": "UNPROCESSABLE_ENTITY", "details": []any{map[string]any{"issue": "INSTRUMENT_DECLINED"}}}, wantErr: shared.ErrPaymentDeclined},
		{name: "unknown payment", status: http.StatusNotFound, body: map[string]any{"name": "RESOURCE_NOT_FOUND"}, wantErr: shared.ErrPaymentNotFound},
	}
	var (
		mu     sync.Mutex
		status int
		body   any
	)
	s.mux.HandleFunc("POST /v2/checkout/orders/PAY-1/capture", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		writeJSON(w, status, body)
	})
	for _, tt := range tests {
		s.Run(tt.name, func() {
			mu.Lock()
			status, body = tt.status, tt.body
			mu.Unlock()

			_, err := s.gateway.Capture(context.Background(), "PAY-1", "k")
			s.True(errs.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func (s *PayPalGatewayTestSuite) TestCaptureAlreadyCapturedLooksUpTheOrder() {
	s.mux.HandleFunc("POST /v2/checkout/orders/PAY-1/capture", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"name":    "UNPROCESSABLE_ENTITY",
			"details": []any{map[string]any{"issue": "ORDER_ALREADY_CAPTURED"}},
		})
	})
	s.mux.HandleFunc("GET /v2/checkout/orders/PAY-1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, completedOrder("PAY-1", "CAP-9", "COMPLETED"))
	})

	res, err := s.gateway.Capture(context.Background(), "PAY-1", "k")

	s.Require().NoError(err)
	s.Equal("CAP-9", res.CaptureRef)
	s.Equal(shared.PaymentCompleted, res.State)
}

func (s *PayPalGatewayTestSuite) TestLookupPayment() {
	s.mux.HandleFunc("GET /v2/checkout/orders/PAY-1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id":     "PAY-1",
			"status": "APPROVED",
			"purchase_units": []any{map[string]any{
				"custom_id": "local-order",
				"amount":    map[string]any{"currency_code": "USD", "value": "12.50"},
			}},
		})
	})

	details, err := s.gateway.LookupPayment(context.Background(), "PAY-1")

	s.Require().NoError(err)
	s.Equal(shared.PaymentApproved, details.State)
	s.Equal("local-order", details.OrderID)
	s.Equal("12.50", details.Amount.StringFixed(2))
	s.Empty(details.CaptureRef)

	_, err = s.gateway.LookupPayment(context.Background(), "missing")
	s.True(errs.Is(err, shared.ErrPaymentNotFound))
}

func (s *PayPalGatewayTestSuite) TestRefund() {
	s.mux.HandleFunc("POST /v2/payments/captures/CAP-1/refund", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{"id": "REF-1", "status": "COMPLETED"})
	})
	s.mux.HandleFunc("POST /v2/payments/captures/CAP-2/refund", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"name": "UNPROCESSABLE_ENTITY"})
	})

	res, err := s.gateway.Refund(context.Background(), "CAP-1", decimal.RequireFromString("200"), "USD", "refund-x")
	s.Require().NoError(err)
	s.Equal("REF-1", res.RefundRef)
	s.Equal("refund-x", s.lastRequest().RequestID)

	_, err = s.gateway.Refund(context.Background(), "CAP-2", decimal.RequireFromString("200"), "USD", "refund-y")
	s.True(errs.Is(err, shared.ErrRefundFailed))
}

func (s *PayPalGatewayTestSuite) TestVerifyWebhook() {
	var verified atomic.Bool
	verified.Store(true)
	s.mux.HandleFunc("POST /v1/notifications/verify-webhook-signature", func(w http.ResponseWriter, r *http.Request) {
		status := "FAILURE"
		if verified.Load() {
			status = "SUCCESS"
		}
		writeJSON(w, http.StatusOK, map[string]any{"verification_status": status})
	})
	body := []byte(`{"id":"WH-EVT-1","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{
		"id":"CAP-1","status":"COMPLETED","custom_id":"local-order",
		"supplementary_data":{"related_ids":{"order_id":"PAY-1"}}}}`)
	header := http.Header{}
	header.Set("Paypal-Transmission-Id", "tx-1")

	event, err := s.gateway.VerifyWebhook(context.Background(), header, body)
	s.Require().NoError(err)
	s.Equal(shared.WebhookCaptureComplete, event.Type)
	s.Equal("CAP-1", event.CaptureRef)
	s.Equal("PAY-1", event.PaymentRef)
	s.Equal("local-order", event.OrderID)
	s.Equal("WH-1", s.lastRequest().Body["webhook_id"])
	s.Equal("tx-1", s.lastRequest().Body["transmission_id"])

	verified.Store(false)
	_, err = s.gateway.VerifyWebhook(context.Background(), header, body)
	s.True(errs.Is(err, shared.ErrInvalidWebhookSignature))
}

func (s *PayPalGatewayTestSuite) TestDisabled() {
	var gw shared.PaymentGateway = payment.Disabled{}

	_, err := gw.CreatePayment(context.Background(), shared.PaymentRequest{})
	s.True(errs.Is(err, shared.ErrProviderUnavailable))
	_, err = gw.Refund(context.Background(), "CAP", decimal.Zero, "USD", "k")
	s.True(errs.Is(err, shared.ErrRefundFailed))
	_, err = gw.VerifyWebhook(context.Background(), http.Header{}, nil)
	s.True(errs.Is(err, shared.ErrInvalidWebhookSignature))
}
