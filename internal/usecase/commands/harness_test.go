//go:build unit

package commands_test

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"pixelgrid/internal/domain/grid"
	"pixelgrid/internal/domain/pricing"
	"pixelgrid/internal/infra/docstore"
	"pixelgrid/internal/infra/uow"
	"pixelgrid/internal/pkg/clock"
	"pixelgrid/internal/pkg/errs"
	"pixelgrid/internal/usecase/commands"
	"pixelgrid/internal/usecase/shared"

	"github.com/shopspring/decimal"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// env wires the command layer over in-memory infrastructure.
type env struct {
	clock     *clock.MockClock
	store     *docstore.MemoryStore
	faults    *faultyStore
	cas       *shared.CAS
	uow       *uow.MemoryUoW
	gateway   *fakeGateway
	publisher *recordingPublisher
	lease     commands.LeaseSettings
	locks     commands.LockCommands
	finalizer commands.FinalizeCommands
	checkout  commands.CheckoutCommands
}

func newEnv() *env {
	e := &env{
		clock:     clock.NewMockClock(t0),
		store:     docstore.NewMemoryStore(docstore.MustCodec()),
		uow:       uow.NewMemoryUoW(),
		gateway:   newFakeGateway(),
		publisher: &recordingPublisher{},
		lease:     commands.DefaultLeaseSettings(),
	}
	e.faults = &faultyStore{DocumentStore: e.store}
	e.cas = shared.NewCAS(e.faults, shared.RetryPolicy{MaxAttempts: 5, BaseBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}, nil)
	calc := pricing.NewDefaultCalculator()
	e.locks = commands.NewLockCommands(e.cas, e.clock, e.lease, shared.NopRecorder{})
	e.finalizer = commands.NewFinalizeCommands(e.cas, e.uow, calc, e.clock, e.lease, e.publisher, shared.NopRecorder{})
	e.checkout = commands.NewCheckoutCommands(e.cas, e.uow, e.gateway, e.locks, e.finalizer, calc, e.clock, e.lease, e.publisher, shared.NopRecorder{})
	return e
}

func (e *env) document() *grid.Document {
	doc, _, err := e.store.Read(context.Background())
	if err != nil {
		panic(err)
	}
	return doc
}

// faultyStore passes through to the memory store and injects store failures on demand.
type faultyStore struct {
	shared.DocumentStore

	mu sync.Mutex
	// lostReplies commits the next writes and then reports a transport error for them.
	lostReplies int
	down        bool
}

func (f *faultyStore) loseReplies(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lostReplies = n
}

func (f *faultyStore) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *faultyStore) Read(ctx context.Context) (*grid.Document, shared.Version, error) {
	f.mu.Lock()
	down := f.down
	f.mu.Unlock()
	if down {
		return nil, shared.NoVersion, errs.Mark(errs.New("connection refused"), errs.ErrStoreUnavailable)
	}
	return f.DocumentStore.Read(ctx)
}

func (f *faultyStore) Write(ctx context.Context, doc *grid.Document, expected shared.Version) (shared.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return shared.NoVersion, errs.Mark(errs.New("connection refused"), errs.ErrStoreUnavailable)
	}
	v, err := f.DocumentStore.Write(ctx, doc, expected)
	if err == nil && f.lostReplies > 0 {
		f.lostReplies--
		return shared.NoVersion, errs.Mark(errs.New("connection reset after commit"), errs.ErrStoreUnavailable)
	}
	return v, err
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// fakeGateway is a scripted payment provider. Payments start CREATED; approve moves them
// to APPROVED the way a payer would.
type fakeGateway struct {
	mu       sync.Mutex
	seq      int
	payments map[string]*shared.PaymentDetails

	captureErr error
	// captureLands makes a failing capture still move the money, as a provider timeout can.
	captureLands bool
	onCapture    func()
	refundErr    error
	webhook      *shared.WebhookEvent

	captureKeys []string
	refundKeys  []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{payments: map[string]*shared.PaymentDetails{}}
}

func (g *fakeGateway) approve(ref string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[ref].State = shared.PaymentApproved
}

func (g *fakeGateway) setState(ref string, state shared.PaymentState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[ref].State = state
}

func (g *fakeGateway) CreatePayment(_ context.Context, req shared.PaymentRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	ref := "PAY-" + strconv.Itoa(g.seq)
	g.payments[ref] = &shared.PaymentDetails{
		Ref:      ref,
		State:    shared.PaymentCreated,
		Amount:   req.Amount,
		Currency: req.Currency,
		OrderID:  req.OrderID.String(),
	}
	return ref, nil
}

func (g *fakeGateway) LookupPayment(_ context.Context, ref string) (*shared.PaymentDetails, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[ref]
	if !ok {
		return nil, shared.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (g *fakeGateway) Capture(_ context.Context, ref, idempotencyKey string) (*shared.CaptureResult, error) {
	g.mu.Lock()
	g.captureKeys = append(g.captureKeys, idempotencyKey)
	p, ok := g.payments[ref]
	hook := g.onCapture
	g.mu.Unlock()
	if !ok {
		return nil, shared.ErrPaymentNotFound
	}
	if hook != nil {
		hook()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.captureErr != nil && !g.captureLands {
		return nil, g.captureErr
	}
	p.State = shared.PaymentCompleted
	p.CaptureRef = "CAP-" + ref
	if g.captureErr != nil {
		return nil, g.captureErr
	}
	return &shared.CaptureResult{CaptureRef: p.CaptureRef, State: p.State, Amount: p.Amount, Currency: p.Currency}, nil
}

func (g *fakeGateway) Refund(_ context.Context, _ string, _ decimal.Decimal, _, idempotencyKey string) (*shared.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refundKeys = append(g.refundKeys, idempotencyKey)
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	return &shared.RefundResult{RefundRef: "REF-1", State: "COMPLETED"}, nil
}

func (g *fakeGateway) VerifyWebhook(context.Context, http.Header, []byte) (*shared.WebhookEvent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.webhook == nil {
		return nil, errs.Wrap(shared.ErrInvalidWebhookSignature, "no event scripted")
	}
	return g.webhook, nil
}

func pricingCalc() pricing.Calculator {
	return pricing.NewDefaultCalculator()
}

// settleAtProvider marks a payment captured without going through Capture.
func (g *fakeGateway) settleAtProvider(ref string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[ref].State = shared.PaymentCompleted
	g.payments[ref].CaptureRef = "CAP-" + ref
}
