//go:build e2e

package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// fakeProvider is an in-process PayPal-compatible Orders v2 API. Orders are created
// CREATED and must be approved by the test, standing in for the buyer.
type fakeProvider struct {
	srv *httptest.Server

	mu      sync.Mutex
	seq     int
	orders  map[string]*providerOrder
	refunds []string
	// captureStatus overrides the capture answer, e.g. 502 for an unknown outcome.
	captureStatus int
}

type providerOrder struct {
	ID        string
	Status    string
	CustomID  string
	Amount    string
	Currency  string
	CaptureID string
}

func newFakeProvider(t *testing.T) *fakeProvider {
	p := &fakeProvider{orders: map[string]*providerOrder{}}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/oauth2/token", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "tok", "token_type": "Bearer", "expires_in": 3600})
	})
	mux.HandleFunc("POST /v2/checkout/orders", p.create)
	mux.HandleFunc("GET /v2/checkout/orders/{id}", p.lookup)
	mux.HandleFunc("POST /v2/checkout/orders/{id}/capture", p.capture)
	mux.HandleFunc("POST /v2/payments/captures/{id}/refund", p.refund)
	mux.HandleFunc("POST /v1/notifications/verify-webhook-signature", p.verify)
	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakeProvider) URL() string { return p.srv.URL }

func (p *fakeProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders = map[string]*providerOrder{}
	p.refunds = nil
	p.captureStatus = 0
}

func (p *fakeProvider) Approve(ref string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if o, ok := p.orders[ref]; ok {
		o.Status = "APPROVED"
	}
}

func (p *fakeProvider) FailCaptures(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.captureStatus = status
}

// SettleBehindOurBack marks the order captured as if the capture answer had been lost.
func (p *fakeProvider) SettleBehindOurBack(ref string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if o, ok := p.orders[ref]; ok {
		o.Status, o.CaptureID = "COMPLETED", "CAP-"+ref
	}
}

func (p *fakeProvider) Refunds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.refunds...)
}

func (p *fakeProvider) create(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PurchaseUnits []struct {
			CustomID string `json:"custom_id"`
			Amount   struct {
				CurrencyCode string `json:"currency_code"`
				Value        string `json:"value"`
			} `json:"amount"`
		} `json:"purchase_units"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || len(in.PurchaseUnits) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"name": "INVALID_REQUEST"})
		return
	}
	p.mu.Lock()
	p.seq++
	o := &providerOrder{
		ID:       fmt.Sprintf("PP-%d", p.seq),
		Status:   "CREATED",
		CustomID: in.PurchaseUnits[0].CustomID,
		Amount:   in.PurchaseUnits[0].Amount.Value,
		Currency: in.PurchaseUnits[0].Amount.CurrencyCode,
	}
	p.orders[o.ID] = o
	p.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{"id": o.ID, "status": o.Status})
}

func (p *fakeProvider) lookup(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"name": "RESOURCE_NOT_FOUND"})
		return
	}
	writeJSON(w, http.StatusOK, o.resource())
}

func (p *fakeProvider) capture(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.captureStatus != 0 {
		writeJSON(w, p.captureStatus, map[string]any{"name": "INTERNAL_SERVER_ERROR"})
		return
	}
	o, ok := p.orders[r.PathValue("id")]
	switch {
	case !ok:
		writeJSON(w, http.StatusNotFound, map[string]any{"name": "RESOURCE_NOT_FOUND"})
	case o.Status == "COMPLETED":
		writeJSON(w, http.StatusUnprocessableEntity, unprocessable("ORDER_ALREADY_CAPTURED"))
	case o.Status != "APPROVED":
		writeJSON(w, http.StatusUnprocessableEntity, unprocessable("ORDER_NOT_APPROVED"))
	default:
		o.Status, o.CaptureID = "COMPLETED", "CAP-"+o.ID
		writeJSON(w, http.StatusCreated, o.resource())
	}
}

func (p *fakeProvider) refund(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refunds = append(p.refunds, r.PathValue("id"))
	writeJSON(w, http.StatusCreated, map[string]any{"id": "REF-" + r.PathValue("id"), "status": "COMPLETED"})
}

// verify accepts transmissions signed "valid".
func (p *fakeProvider) verify(w http.ResponseWriter, r *http.Request) {
	var in struct {
		TransmissionSig string `json:"transmission_sig"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	status := "FAILURE"
	if in.TransmissionSig == "valid" {
		status = "SUCCESS"
	}
	writeJSON(w, http.StatusOK, map[string]any{"verification_status": status})
}

func (o *providerOrder) resource() map[string]any {
	unit := map[string]any{
		"custom_id": o.CustomID,
		"amount":    map[string]string{"currency_code": o.Currency, "value": o.Amount},
	}
	if o.CaptureID != "" {
		unit["payments"] = map[string]any{"captures": []map[string]any{{
			"id":        o.CaptureID,
			"status":    "COMPLETED",
			"custom_id": o.CustomID,
			"amount":    map[string]string{"currency_code": o.Currency, "value": o.Amount},
		}}}
	}
	return map[string]any{"id": o.ID, "status": o.Status, "purchase_units": []map[string]any{unit}}
}

func unprocessable(issue string) map[string]any {
	return map[string]any{"name": "UNPROCESSABLE_ENTITY", "details": []map[string]string{{"issue": issue}}}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
