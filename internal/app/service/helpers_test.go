package service

import (
	"context"
	"sync"
	"testing"

	"github.com/ikkim/storefront/internal/app/model"
	"github.com/ikkim/storefront/internal/db"
	apperrors "github.com/ikkim/storefront/internal/errors"
	"github.com/ikkim/storefront/internal/gateway"
	"github.com/ikkim/storefront/internal/gateway/local"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testPassword = "secret123"

type testEnv struct {
	db        *gorm.DB
	gw        *gateway.Gateway
	store     *MemoryStore
	publisher *recordingPublisher
	session   SessionService
	cart      CartService
}

// setupServices wires the session and cart holders to an embedded backend
// on in-memory SQLite, the way the server does.
func setupServices(t *testing.T) *testEnv {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	env := &testEnv{
		db:        testDB,
		store:     &MemoryStore{},
		publisher: &recordingPublisher{},
	}
	backend := local.New(testDB, gateway.CredentialFunc(func() string {
		return env.session.BearerToken()
	}), local.Options{JWTSecret: "test-secret"})
	env.gw = backend.Gateway()
	env.session = NewSessionService(env.gw.Auth, env.store, env.publisher)
	env.cart = NewCartService(env.gw.Cart, env.session, env.publisher)
	return env
}

func (e *testEnv) signUp(t *testing.T, email string) *model.Session {
	session, err := e.session.Register(context.Background(), gateway.RegisterRequest{
		Email:       email,
		Password:    testPassword,
		DisplayName: "Test Shopper",
	})
	require.NoError(t, err)
	require.NotNil(t, session)
	return session
}

func (e *testEnv) seedProduct(t *testing.T, slug, price string, skus ...string) *model.Product {
	product := &model.Product{
		Title:       "Product " + slug,
		Slug:        slug,
		BasePrice:   decimal.RequireFromString(price),
		IsPublished: true,
		Images:      []string{"https://cdn.example.com/" + slug + ".jpg"},
	}
	for _, sku := range skus {
		product.Variants = append(product.Variants, model.ProductVariant{SKU: sku, Size: "M", Color: "Black", StockQuantity: 50})
	}
	require.NoError(t, e.db.Create(product).Error)
	return product
}

func testShippingAddress() model.ShippingAddress {
	return model.ShippingAddress{
		FullName:     "Test Shopper",
		AddressLine1: "221B Baker Street",
		City:         "London",
		ZipCode:      "NW1 6XE",
		Country:      "UK",
	}
}

// ==================== fakes ====================

type publishedEvent struct {
	userID    string
	eventType string
	payload   interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(userID, eventType string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{userID: userID, eventType: eventType, payload: payload})
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.eventType == eventType {
			n++
		}
	}
	return n
}

type fakeWidget struct {
	mu        sync.Mutex
	opened    []PaymentRequest
	openErr   error
	verifyErr error

	// when hold is set Open signals entered and waits for hold to close
	hold    chan struct{}
	entered chan struct{}
}

func (w *fakeWidget) Open(_ context.Context, req PaymentRequest) (*PaymentSession, error) {
	if w.hold != nil {
		w.entered <- struct{}{}
		<-w.hold
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.opened = append(w.opened, req)
	if w.openErr != nil {
		return nil, w.openErr
	}
	return &PaymentSession{
		AttemptID:       req.AttemptID,
		ProviderOrderID: "order_" + req.AttemptID[:8],
		Amount:          req.Amount,
		Currency:        req.Currency,
	}, nil
}

func (w *fakeWidget) Verify(_ context.Context, _ PaymentSession, cb PaymentCallback) (string, error) {
	if w.verifyErr != nil {
		return "", w.verifyErr
	}
	return cb.PaymentID, nil
}

func (w *fakeWidget) openCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.opened)
}

func (w *fakeWidget) lastRequest() PaymentRequest {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.opened[len(w.opened)-1]
}

// flakyOrders fails order creation while failing is set.
type flakyOrders struct {
	gateway.OrderAPI

	mu      sync.Mutex
	failing bool
	calls   int
}

func (o *flakyOrders) Create(ctx context.Context, draft model.OrderDraft) (*model.Order, error) {
	o.mu.Lock()
	o.calls++
	failing := o.failing
	o.mu.Unlock()
	if failing {
		return nil, apperrors.NewTransientError("", context.DeadlineExceeded)
	}
	return o.OrderAPI.Create(ctx, draft)
}

func (o *flakyOrders) setFailing(v bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failing = v
}

type memoryLedger struct {
	mu        sync.Mutex
	entries   map[string]*model.ReconciliationFailure
	resolved  map[string]string
	recordErr error
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{
		entries:  make(map[string]*model.ReconciliationFailure),
		resolved: make(map[string]string),
	}
}

func (l *memoryLedger) Record(_ context.Context, f *model.ReconciliationFailure) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.recordErr != nil {
		return l.recordErr
	}
	if existing, ok := l.entries[f.PaymentReference]; ok {
		existing.Attempts++
		existing.LastError = f.LastError
		return nil
	}
	c := *f
	c.Attempts = 1
	l.entries[f.PaymentReference] = &c
	return nil
}

func (l *memoryLedger) entry(paymentRef string) *model.ReconciliationFailure {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries[paymentRef]
}

func (l *memoryLedger) Resolve(_ context.Context, paymentRef, orderID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[paymentRef]; !ok {
		return apperrors.NewNotFoundError(apperrors.ResourceNotFound, "not found")
	}
	l.resolved[paymentRef] = orderID
	return nil
}

// blockingGeocoder answers once release is closed, or fails when ctx ends.
type blockingGeocoder struct {
	release chan struct{}
	started chan struct{}
	address model.ShippingAddress
}

func newBlockingGeocoder(address model.ShippingAddress) *blockingGeocoder {
	return &blockingGeocoder{
		release: make(chan struct{}),
		started: make(chan struct{}, 1),
		address: address,
	}
}

func (g *blockingGeocoder) ReverseGeocode(ctx context.Context, _, _ float64) (*model.ShippingAddress, error) {
	g.started <- struct{}{}
	select {
	case <-g.release:
		a := g.address
		return &a, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
