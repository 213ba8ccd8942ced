package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ikkim/storefront/internal/app/model"
	apperrors "github.com/ikkim/storefront/internal/errors"
	"github.com/ikkim/storefront/internal/gateway"
	"github.com/ikkim/storefront/pkg/logger"
)

// CheckoutService drives one checkout flow through address, review, payment
// and order creation. Only one action may be outstanding at a time; results
// that arrive after the flow was reset or moved on are discarded.
type CheckoutService interface {
	Snapshot() CheckoutSnapshot
	Start(ctx context.Context) (CheckoutSnapshot, error)

	SubmitAddress(ctx context.Context, address model.ShippingAddress) (CheckoutSnapshot, error)
	EditAddress(ctx context.Context) (CheckoutSnapshot, error)

	OpenMapPicker(ctx context.Context) (CheckoutSnapshot, error)
	// LocateAddress pre-fills the address from a map position.
	LocateAddress(ctx context.Context, lat, lng float64) (CheckoutSnapshot, error)
	CloseMapPicker(ctx context.Context) CheckoutSnapshot

	BeginPayment(ctx context.Context) (CheckoutSnapshot, error)
	CompletePayment(ctx context.Context, cb PaymentCallback) (CheckoutSnapshot, error)
	DismissPayment(ctx context.Context, attemptID string) (CheckoutSnapshot, error)
	FailPayment(ctx context.Context, attemptID, reason string) (CheckoutSnapshot, error)

	// RetryOrder re-attempts order creation for a captured payment. It never
	// charges again.
	RetryOrder(ctx context.Context) (CheckoutSnapshot, error)

	Reset()
}

type checkoutFlow struct {
	id      uint64
	userID  string
	email   string
	state   CheckoutState
	address model.ShippingAddress

	quote      *Quote
	payment    *PaymentSession
	draft      *model.OrderDraft
	paymentRef string
	order      *model.Order
	err        *CheckoutError
	warning    string

	busy string

	mapOpen   bool
	mapGen    uint64
	mapCancel context.CancelFunc
	lookingUp bool
}

// orderJob is everything needed to record the order for one payment attempt.
type orderJob struct {
	flowID  uint64
	userID  string
	email   string
	payment PaymentSession
	draft   model.OrderDraft
	quote   Quote
}

// parkedAttempt is an open payment whose flow was reset. A success callback
// that arrives later still ends in an order or a ledger entry.
type parkedAttempt struct {
	job      orderJob
	parkedAt time.Time
}

const parkedAttemptTTL = 24 * time.Hour

type transition struct {
	userID string
	from   CheckoutState
	to     CheckoutState
}

type checkoutService struct {
	cfg       CheckoutConfig
	session   SessionService
	cart      CartService
	orders    gateway.OrderAPI
	widget    PaymentWidget
	geocoder  Geocoder
	ledger    ReconciliationLedger
	publisher EventPublisher
	observers []CheckoutObserver

	mu      sync.Mutex
	flow    *checkoutFlow
	flowSeq uint64
	parked  map[string]*parkedAttempt
}

func NewCheckoutService(
	cfg CheckoutConfig,
	session SessionService,
	cart CartService,
	orders gateway.OrderAPI,
	widget PaymentWidget,
	geocoder Geocoder,
	ledger ReconciliationLedger,
	publisher EventPublisher,
	observers ...CheckoutObserver,
) CheckoutService {
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	cfg.Currency = strings.ToUpper(cfg.Currency)

	s := &checkoutService{
		cfg:       cfg,
		session:   session,
		cart:      cart,
		orders:    orders,
		widget:    widget,
		geocoder:  geocoder,
		ledger:    ledger,
		publisher: publisher,
		observers: observers,
		parked:    make(map[string]*parkedAttempt),
	}
	session.OnLogout(func(context.Context) { s.Reset() })
	return s
}

// ==================== flow bookkeeping ====================

func (s *checkoutService) newFlowLocked(session *model.Session) *checkoutFlow {
	s.flowSeq++
	f := &checkoutFlow{
		id:     s.flowSeq,
		userID: session.UserID,
		email:  session.Email,
		state:  StateCollectingAddress,
		address: model.ShippingAddress{
			FullName: session.DisplayName,
			Country:  s.cfg.DefaultCountry,
		},
	}
	s.flow = f
	return f
}

// flowLocked returns the flow of the signed-in user, starting one if needed.
func (s *checkoutService) flowLocked(session *model.Session) *checkoutFlow {
	if s.flow == nil || s.flow.userID != session.UserID {
		if s.flow != nil {
			s.dropLocked()
		}
		return s.newFlowLocked(session)
	}
	return s.flow
}

// current returns the flow with the given id, nil when it was replaced.
func (s *checkoutService) currentLocked(id uint64) *checkoutFlow {
	if s.flow == nil || s.flow.id != id {
		return nil
	}
	return s.flow
}

func (s *checkoutService) dropLocked() {
	if s.flow == nil {
		return
	}
	s.cancelLookupLocked(s.flow)
	s.flow = nil
}

func (s *checkoutService) cancelLookupLocked(f *checkoutFlow) {
	if f.mapCancel != nil {
		f.mapCancel()
		f.mapCancel = nil
	}
	f.lookingUp = false
	f.mapGen++
}

func (s *checkoutService) jobLocked(f *checkoutFlow) orderJob {
	return orderJob{
		flowID:  f.id,
		userID:  f.userID,
		email:   f.email,
		payment: *f.payment,
		draft:   *f.draft,
		quote:   *f.quote,
	}
}

func (s *checkoutService) parkLocked(f *checkoutFlow) {
	now := time.Now()
	for id, p := range s.parked {
		if now.Sub(p.parkedAt) > parkedAttemptTTL {
			delete(s.parked, id)
		}
	}
	s.parked[f.payment.AttemptID] = &parkedAttempt{job: s.jobLocked(f), parkedAt: now}
}

// unparkLocked removes and returns the parked attempt the callback belongs to.
func (s *checkoutService) unparkLocked(cb PaymentCallback) *parkedAttempt {
	if p, ok := s.parked[cb.AttemptID]; ok && cb.AttemptID != "" {
		delete(s.parked, cb.AttemptID)
		return p
	}
	if cb.ProviderOrderID == "" {
		return nil
	}
	for id, p := range s.parked {
		if p.job.payment.ProviderOrderID == cb.ProviderOrderID {
			delete(s.parked, id)
			return p
		}
	}
	return nil
}

// adoptLocked starts a flow for a detached payment so its order can be
// placed. Flows with their own open or captured payment are never replaced.
func (s *checkoutService) adoptLocked(session *model.Session, job orderJob) *checkoutFlow {
	if f := s.flow; f != nil {
		if f.busy != "" || f.state == StatePaymentInProgress || f.state == StateReconciliationFailed {
			return nil
		}
		s.dropLocked()
	}
	f := s.newFlowLocked(session)
	draft, quote, payment := job.draft, job.quote, job.payment
	f.state = StatePaymentInProgress
	f.address = draft.ShippingAddress
	f.draft = &draft
	f.quote = &quote
	f.payment = &payment
	f.paymentRef = draft.PaymentReference
	f.busy = "order"
	return f
}

func (s *checkoutService) moveLocked(f *checkoutFlow, to CheckoutState) (*transition, error) {
	if f.state == to {
		return nil, nil
	}
	if !canTransition(f.state, to) {
		return nil, invalidTransition(f.state, to)
	}
	t := &transition{userID: f.userID, from: f.state, to: to}
	f.state = to
	return t, nil
}

func (s *checkoutService) snapshotLocked() CheckoutSnapshot {
	f := s.flow
	if f == nil {
		return CheckoutSnapshot{State: StateCollectingAddress}
	}

	snap := CheckoutSnapshot{
		State:   f.state,
		Address: f.address,
		Order:   f.order,
		Error:   f.err,
		Warning: f.warning,
		MapLookup: MapLookupState{
			Open:       f.mapOpen,
			Generation: f.mapGen,
			Pending:    f.lookingUp,
		},
		InFlight: f.busy,
	}
	if f.quote != nil {
		q := *f.quote
		snap.Quote = &q
	} else if f.state == StateReview || f.state == StatePaymentFailed {
		if cart := s.cart.Current(); cart != nil {
			q := NewQuote(cart.TotalPrice, s.cfg.TaxRate, s.cfg.Currency)
			snap.Quote = &q
		}
	}
	if f.payment != nil {
		p := *f.payment
		snap.Payment = &p
	}
	snap.CanPlaceOrder = f.busy == "" &&
		(f.state == StateReview || f.state == StatePaymentFailed) &&
		!s.cart.Current().IsEmpty()
	return snap
}

// finish takes the snapshot, releases the lock and tells observers.
func (s *checkoutService) finish(ts ...*transition) CheckoutSnapshot {
	snap := s.snapshotLocked()
	s.mu.Unlock()

	for _, t := range ts {
		if t == nil {
			continue
		}
		logger.Info("Checkout state changed", map[string]interface{}{
			"user_id": t.userID,
			"from":    t.from,
			"to":      t.to,
		})
		for _, o := range s.observers {
			o.CheckoutTransition(t.userID, t.from, t.to, snap)
		}
		publish(s.publisher, t.userID, EventCheckoutState, snap)
	}
	return snap
}

// fail releases the lock and returns err with the current snapshot.
func (s *checkoutService) fail(err error) (CheckoutSnapshot, error) {
	snap := s.snapshotLocked()
	s.mu.Unlock()
	return snap, err
}

func (s *checkoutService) requireSession() (*model.Session, error) {
	session := s.session.Current()
	if session == nil {
		return nil, apperrors.NewNotAuthenticatedError("sign in to check out")
	}
	return session, nil
}

func invalidTransition(from, to CheckoutState) *apperrors.Error {
	return apperrors.NewConflictError(apperrors.CheckoutInvalidTransition,
		"this step is not available right now ("+string(from)+" to "+string(to)+")")
}

func actionInProgress(action string) *apperrors.Error {
	return apperrors.NewConflictError(apperrors.CheckoutActionInProgress,
		"please wait, "+action+" is still in progress")
}

func alreadyPlaced() *apperrors.Error {
	return apperrors.NewConflictError(apperrors.CheckoutAlreadyPlaced, "this order has already been placed")
}

func sessionEnded() *apperrors.Error {
	return apperrors.NewNotAuthenticatedError("your session ended before checkout finished")
}

// ==================== operations ====================

func (s *checkoutService) Snapshot() CheckoutSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Start opens a checkout. A finished flow is replaced; a flow holding a
// captured payment is kept so the payment is never lost.
func (s *checkoutService) Start(ctx context.Context) (CheckoutSnapshot, error) {
	session, err := s.requireSession()
	if err != nil {
		return CheckoutSnapshot{State: StateCollectingAddress}, err
	}
	if _, err := s.cart.Fetch(ctx); err != nil {
		return s.Snapshot(), err
	}

	s.mu.Lock()
	f := s.flowLocked(session)
	switch f.state {
	case StatePaymentInProgress, StateReconciliationFailed:
		logger.Info("Resuming checkout", map[string]interface{}{
			"user_id": f.userID,
			"state":   f.state,
		})
		return s.finish(), nil
	case StateOrderConfirmed:
		s.dropLocked()
		f = s.newFlowLocked(session)
	}

	var t *transition
	if f.state == StateReview || f.state == StatePaymentFailed {
		t, _ = s.moveLocked(f, StateCollectingAddress)
		f.err = nil
		f.quote = nil
	}
	logger.Info("Checkout started", map[string]interface{}{
		"user_id": f.userID,
		"flow_id": f.id,
	})
	return s.finish(t), nil
}

func (s *checkoutService) SubmitAddress(ctx context.Context, address model.ShippingAddress) (CheckoutSnapshot, error) {
	session, err := s.requireSession()
	if err != nil {
		return CheckoutSnapshot{State: StateCollectingAddress}, err
	}

	s.mu.Lock()
	f := s.flowLocked(session)
	if f.busy != "" {
		return s.fail(actionInProgress(f.busy))
	}
	switch f.state {
	case StateCollectingAddress, StateReview, StatePaymentFailed:
	case StateOrderConfirmed:
		return s.fail(alreadyPlaced())
	default:
		return s.fail(invalidTransition(f.state, StateReview))
	}

	address = address.Normalize()
	if address.Country == "" {
		address.Country = s.cfg.DefaultCountry
	}
	if err := address.Validate(); err != nil {
		logger.Warn("Shipping address rejected", map[string]interface{}{
			"user_id": f.userID,
			"error":   err.Error(),
		})
		return s.fail(apperrors.FromValidation(err, apperrors.CheckoutAddressIncomplete))
	}

	f.address = address
	f.err = nil
	f.mapOpen = false
	s.cancelLookupLocked(f)

	var t *transition
	if f.state == StateCollectingAddress {
		t, _ = s.moveLocked(f, StateReview)
	}
	return s.finish(t), nil
}

func (s *checkoutService) EditAddress(ctx context.Context) (CheckoutSnapshot, error) {
	session, err := s.requireSession()
	if err != nil {
		return CheckoutSnapshot{State: StateCollectingAddress}, err
	}

	s.mu.Lock()
	f := s.flowLocked(session)
	if f.busy != "" {
		return s.fail(actionInProgress(f.busy))
	}
	if f.state == StateOrderConfirmed {
		return s.fail(alreadyPlaced())
	}
	t, err := s.moveLocked(f, StateCollectingAddress)
	if err != nil {
		return s.fail(err)
	}
	f.err = nil
	return s.finish(t), nil
}

func (s *checkoutService) OpenMapPicker(ctx context.Context) (CheckoutSnapshot, error) {
	session, err := s.requireSession()
	if err != nil {
		return CheckoutSnapshot{State: StateCollectingAddress}, err
	}

	s.mu.Lock()
	f := s.flowLocked(session)
	if f.state != StateCollectingAddress {
		return s.fail(apperrors.NewConflictError(apperrors.CheckoutInvalidTransition,
			"the map is only available while entering the address"))
	}
	s.cancelLookupLocked(f)
	f.mapOpen = true
	return s.finish(), nil
}

func (s *checkoutService) CloseMapPicker(ctx context.Context) CheckoutSnapshot {
	s.mu.Lock()
	if f := s.flow; f != nil && f.mapOpen {
		s.cancelLookupLocked(f)
		f.mapOpen = false
	}
	return s.finish()
}

func (s *checkoutService) LocateAddress(ctx context.Context, lat, lng float64) (CheckoutSnapshot, error) {
	session, err := s.requireSession()
	if err != nil {
		return CheckoutSnapshot{State: StateCollectingAddress}, err
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return s.Snapshot(), apperrors.NewValidationError(apperrors.ValidationInvalidRange,
			"the selected position is out of range", map[string]string{"latitude": "is invalid", "longitude": "is invalid"})
	}
	if s.geocoder == nil {
		return s.Snapshot(), apperrors.NewInternalError("address lookup is not available", nil)
	}

	s.mu.Lock()
	f := s.flowLocked(session)
	if f.state != StateCollectingAddress || !f.mapOpen {
		return s.fail(apperrors.NewConflictError(apperrors.CheckoutInvalidTransition, "open the map to pick a location"))
	}
	s.cancelLookupLocked(f)
	lookupCtx, cancel := context.WithCancel(ctx)
	f.mapCancel = cancel
	f.lookingUp = true
	flowID, gen := f.id, f.mapGen
	s.mu.Unlock()

	logger.Debug("Looking up address for map position", map[string]interface{}{
		"user_id":    session.UserID,
		"generation": gen,
	})
	found, lookupErr := s.geocoder.ReverseGeocode(lookupCtx, lat, lng)
	cancel()

	s.mu.Lock()
	f = s.currentLocked(flowID)
	if f == nil || f.mapGen != gen || f.state != StateCollectingAddress || !f.mapOpen {
		logger.Debug("Discarding stale address lookup", map[string]interface{}{
			"user_id":    session.UserID,
			"generation": gen,
		})
		return s.fail(apperrors.NewConflictError(apperrors.CheckoutStaleLookup, "the map was closed before the address was found"))
	}
	f.lookingUp = false
	f.mapCancel = nil
	if lookupErr != nil {
		logger.Warn("Address lookup failed", map[string]interface{}{
			"user_id": session.UserID,
			"error":   lookupErr.Error(),
		})
		if _, ok := apperrors.As(lookupErr); !ok {
			lookupErr = apperrors.NewTransientError("could not look up this location, enter the address manually", lookupErr)
		}
		return s.fail(lookupErr)
	}

	merged := f.address.MergeLookup(*found)
	if merged.Latitude == nil {
		merged.Latitude = &lat
	}
	if merged.Longitude == nil {
		merged.Longitude = &lng
	}
	f.address = merged
	f.mapOpen = false
	f.mapGen++
	return s.finish(), nil
}

func (s *checkoutService) BeginPayment(ctx context.Context) (CheckoutSnapshot, error) {
	session, err := s.requireSession()
	if err != nil {
		return CheckoutSnapshot{State: StateCollectingAddress}, err
	}

	s.mu.Lock()
	f := s.flowLocked(session)
	if f.busy != "" {
		return s.fail(actionInProgress(f.busy))
	}
	switch f.state {
	case StateReview, StatePaymentFailed:
	case StateOrderConfirmed:
		logger.Warn("Rejected second order placement", map[string]interface{}{
			"user_id":  f.userID,
			"order_id": f.order.ID,
		})
		return s.fail(alreadyPlaced())
	case StatePaymentInProgress:
		return s.fail(actionInProgress("payment"))
	default:
		return s.fail(invalidTransition(f.state, StatePaymentInProgress))
	}
	f.busy = "payment"
	flowID, address := f.id, f.address
	s.mu.Unlock()

	ps, draft, quote, err := s.openPayment(ctx, session, address)

	s.mu.Lock()
	f = s.currentLocked(flowID)
	if f == nil {
		s.mu.Unlock()
		return s.Snapshot(), sessionEnded()
	}
	f.busy = ""
	if err != nil {
		if e, ok := apperrors.As(err); ok && e.Kind == apperrors.KindPayment {
			f.err = newCheckoutError(e)
		}
		t, _ := s.moveLocked(f, StateReview)
		snap := s.finish(t)
		return snap, err
	}

	f.quote = quote
	f.payment = ps
	f.draft = draft
	f.paymentRef = ""
	f.err = nil
	t, err := s.moveLocked(f, StatePaymentInProgress)
	if err != nil {
		return s.fail(err)
	}
	logger.Info("Payment opened", map[string]interface{}{
		"user_id":           f.userID,
		"attempt_id":        ps.AttemptID,
		"provider_order_id": ps.ProviderOrderID,
		"amount":            ps.Amount,
		"currency":          ps.Currency,
	})
	return s.finish(t), nil
}

// openPayment prices the authoritative cart and opens the widget.
func (s *checkoutService) openPayment(ctx context.Context, session *model.Session, address model.ShippingAddress) (*PaymentSession, *model.OrderDraft, *Quote, error) {
	cart, err := s.cart.Fetch(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	if cart == nil {
		return nil, nil, nil, sessionEnded()
	}
	if cart.IsEmpty() {
		logger.Warn("Checkout attempted with an empty cart", map[string]interface{}{
			"user_id": session.UserID,
		})
		return nil, nil, nil, apperrors.NewValidationError(apperrors.CheckoutEmptyCart, "your cart is empty", nil)
	}

	quote := NewQuote(cart.TotalPrice, s.cfg.TaxRate, s.cfg.Currency)
	if quote.AmountMinor <= 0 {
		return nil, nil, nil, apperrors.NewValidationError(apperrors.ValidationInvalidRange,
			"the order total must be greater than zero", nil)
	}

	attemptID := uuid.NewString()
	draft := &model.OrderDraft{
		ShippingAddress: address,
		Items:           model.SnapshotLines(cart.Items),
		TotalAmount:     quote.Total,
		Currency:        quote.Currency,
		Status:          model.OrderStatusPaid,
	}

	name := address.FullName
	if name == "" {
		name = session.DisplayName
	}
	ps, err := s.widget.Open(ctx, PaymentRequest{
		AttemptID:   attemptID,
		Amount:      quote.AmountMinor,
		Currency:    quote.Currency,
		Description: s.cfg.Description,
		Receipt:     attemptID,
		Prefill: PaymentPrefill{
			Name:  name,
			Email: session.Email,
		},
	})
	if err != nil {
		logger.Error("Failed to open payment", err, map[string]interface{}{
			"user_id":    session.UserID,
			"attempt_id": attemptID,
			"amount":     quote.AmountMinor,
		})
		if _, ok := apperrors.As(err); !ok {
			err = apperrors.NewPaymentError(apperrors.PaymentUnavailable, "payment is unavailable right now, please try again", "", err)
		}
		return nil, nil, nil, err
	}
	if ps.AttemptID == "" {
		ps.AttemptID = attemptID
	}
	return ps, draft, &quote, nil
}

func (s *checkoutService) CompletePayment(ctx context.Context, cb PaymentCallback) (CheckoutSnapshot, error) {
	s.mu.Lock()
	if p := s.unparkLocked(cb); p != nil {
		s.mu.Unlock()
		return s.completeParked(ctx, p, cb)
	}
	f := s.flow
	if f == nil {
		return s.fail(apperrors.NewConflictError(apperrors.CheckoutInvalidTransition, "there is no payment to complete"))
	}

	switch f.state {
	case StateOrderConfirmed, StateReconciliationFailed:
		if f.paymentRef != "" && f.paymentRef == cb.PaymentID {
			logger.Info("Ignoring duplicate payment callback", map[string]interface{}{
				"user_id":     f.userID,
				"payment_ref": cb.PaymentID,
			})
			return s.finish(), nil
		}
		if f.state == StateOrderConfirmed {
			return s.fail(alreadyPlaced())
		}
		return s.fail(invalidTransition(f.state, StateOrderConfirmed))
	case StatePaymentInProgress:
	default:
		return s.fail(invalidTransition(f.state, StateOrderConfirmed))
	}
	if f.busy != "" {
		return s.fail(actionInProgress(f.busy))
	}
	if cb.AttemptID != "" && cb.AttemptID != f.payment.AttemptID {
		return s.fail(apperrors.NewConflictError(apperrors.CheckoutInvalidTransition,
			"this payment belongs to an earlier attempt"))
	}
	f.busy = "order"
	job := s.jobLocked(f)
	payment := job.payment
	s.mu.Unlock()

	ref, err := s.widget.Verify(ctx, payment, cb)
	if err != nil {
		logger.Warn("Payment callback failed verification", map[string]interface{}{
			"attempt_id":  payment.AttemptID,
			"payment_ref": cb.PaymentID,
			"error":       err.Error(),
		})
		e, ok := apperrors.As(err)
		if !ok || e.Kind != apperrors.KindPayment {
			e = apperrors.NewPaymentError(apperrors.PaymentSignatureInvalid,
				"we could not confirm this payment", cb.PaymentID, err)
		}

		s.mu.Lock()
		f = s.currentLocked(job.flowID)
		if f == nil {
			s.mu.Unlock()
			return s.Snapshot(), e
		}
		f.busy = ""
		f.err = newCheckoutError(e)
		f.payment = nil
		t, _ := s.moveLocked(f, StatePaymentFailed)
		return s.finish(t), e
	}

	job.draft.PaymentReference = ref
	s.mu.Lock()
	f = s.currentLocked(job.flowID)
	if f == nil {
		s.mu.Unlock()
		logger.Warn("Payment captured after checkout was reset", map[string]interface{}{
			"user_id":     job.userID,
			"payment_ref": ref,
			"attempt_id":  payment.AttemptID,
		})
		return s.settleDetached(ctx, job)
	}
	f.paymentRef = ref
	f.draft.PaymentReference = ref
	s.mu.Unlock()

	return s.placeOrder(ctx, job, false)
}

// completeParked verifies a callback for an attempt whose flow was reset.
func (s *checkoutService) completeParked(ctx context.Context, p *parkedAttempt, cb PaymentCallback) (CheckoutSnapshot, error) {
	job := p.job
	ref, err := s.widget.Verify(ctx, job.payment, cb)
	if err != nil {
		logger.Warn("Late payment callback failed verification", map[string]interface{}{
			"user_id":     job.userID,
			"attempt_id":  job.payment.AttemptID,
			"payment_ref": cb.PaymentID,
			"error":       err.Error(),
		})
		// a bad callback must not evict the attempt
		s.mu.Lock()
		s.parked[job.payment.AttemptID] = p
		s.mu.Unlock()

		e, ok := apperrors.As(err)
		if !ok || e.Kind != apperrors.KindPayment {
			e = apperrors.NewPaymentError(apperrors.PaymentSignatureInvalid,
				"we could not confirm this payment", cb.PaymentID, err)
		}
		return s.Snapshot(), e
	}

	job.draft.PaymentReference = ref
	logger.Warn("Payment completed after its checkout was reset", map[string]interface{}{
		"user_id":     job.userID,
		"attempt_id":  job.payment.AttemptID,
		"payment_ref": ref,
	})
	return s.settleDetached(ctx, job)
}

// settleDetached handles a verified payment whose flow is gone. The order is
// placed when its owner is signed in; otherwise the payment goes to the
// ledger and the caller gets a reconciliation error.
func (s *checkoutService) settleDetached(ctx context.Context, job orderJob) (CheckoutSnapshot, error) {
	if session := s.session.Current(); session != nil && session.UserID == job.userID {
		s.mu.Lock()
		f := s.adoptLocked(session, job)
		if f != nil {
			job.flowID = f.id
			s.mu.Unlock()
			return s.placeOrder(ctx, job, false)
		}
		s.mu.Unlock()
	}
	return s.reconciliationFailed(ctx, job, sessionEnded())
}

func (s *checkoutService) RetryOrder(ctx context.Context) (CheckoutSnapshot, error) {
	if _, err := s.requireSession(); err != nil {
		return s.Snapshot(), err
	}

	s.mu.Lock()
	f := s.flow
	if f == nil || f.state != StateReconciliationFailed {
		if f != nil && f.state == StateOrderConfirmed {
			return s.fail(alreadyPlaced())
		}
		return s.fail(apperrors.NewConflictError(apperrors.CheckoutInvalidTransition, "there is no order to retry"))
	}
	if f.busy != "" {
		return s.fail(actionInProgress(f.busy))
	}
	f.busy = "order"
	job := s.jobLocked(f)
	s.mu.Unlock()

	logger.Info("Retrying order creation for captured payment", map[string]interface{}{
		"user_id":     job.userID,
		"payment_ref": job.draft.PaymentReference,
	})
	return s.placeOrder(ctx, job, true)
}

// placeOrder records the order for a verified payment. The caller has set
// busy on the flow.
func (s *checkoutService) placeOrder(ctx context.Context, job orderJob, retry bool) (CheckoutSnapshot, error) {
	draft, userID := job.draft, job.userID

	order, err := s.orders.Create(ctx, draft)
	if err != nil {
		return s.reconciliationFailed(ctx, job, err)
	}

	if retry && s.ledger != nil {
		if rerr := s.ledger.Resolve(ctx, draft.PaymentReference, order.ID); rerr != nil && !apperrors.Is(rerr, apperrors.KindNotFound) {
			logger.Error("Failed to resolve reconciliation entry", rerr, map[string]interface{}{
				"payment_ref": draft.PaymentReference,
				"order_id":    order.ID,
			})
		}
	}

	var warning string
	if _, cerr := s.cart.ClearAfterOrder(ctx); cerr != nil {
		logger.Warn("Order placed but the cart was not cleared", map[string]interface{}{
			"user_id":  userID,
			"order_id": order.ID,
			"error":    cerr.Error(),
		})
		warning = "your order is placed, but your cart could not be emptied; refresh to see it"
	}

	s.mu.Lock()
	f := s.currentLocked(job.flowID)
	if f == nil {
		s.mu.Unlock()
		logger.Warn("Order confirmed after checkout was reset", map[string]interface{}{
			"user_id":  userID,
			"order_id": order.ID,
		})
		return s.Snapshot(), sessionEnded()
	}
	f.busy = ""
	f.order = order
	f.err = nil
	f.warning = warning
	f.payment = nil
	t, err := s.moveLocked(f, StateOrderConfirmed)
	if err != nil {
		return s.fail(err)
	}
	logger.Info("Order confirmed", map[string]interface{}{
		"user_id":     userID,
		"order_id":    order.ID,
		"payment_ref": draft.PaymentReference,
		"total":       draft.TotalAmount.String(),
		"currency":    draft.Currency,
	})
	return s.finish(t), nil
}

// reconciliationFailed parks a captured payment whose order could not be
// recorded. The cart is left untouched.
func (s *checkoutService) reconciliationFailed(ctx context.Context, job orderJob, cause error) (CheckoutSnapshot, error) {
	draft, quote := job.draft, job.quote
	attemptID, userID := job.payment.AttemptID, job.userID

	logger.Error("Payment captured but order was not recorded", cause, map[string]interface{}{
		"user_id":       userID,
		"payment_ref":   draft.PaymentReference,
		"attempt_id":    attemptID,
		"amount_minor":  quote.AmountMinor,
		"currency":      quote.Currency,
		"cart_snapshot": draft.Items,
	})

	var ledgerErr error
	if s.ledger != nil {
		entry := &model.ReconciliationFailure{
			PaymentReference: draft.PaymentReference,
			AttemptID:        attemptID,
			UserID:           userID,
			Email:            job.email,
			Currency:         quote.Currency,
			Total:            quote.Total,
			AmountMinor:      quote.AmountMinor,
			CartSnapshot:     draft.Items,
			ShippingAddress:  draft.ShippingAddress,
			LastError:        cause.Error(),
		}
		// the ledger must survive a cancelled request
		ledgerErr = s.ledger.Record(context.WithoutCancel(ctx), entry)
		if ledgerErr != nil {
			logger.Error("Failed to record reconciliation entry", ledgerErr, map[string]interface{}{
				"payment_ref": draft.PaymentReference,
			})
		}
	}

	recErr := apperrors.NewReconciliationError(draft.PaymentReference, cause)
	if ledgerErr != nil {
		recErr.Err = errors.Join(cause, ledgerErr)
		recErr.Fields = map[string]string{
			"ledger": "the payment could not be saved for follow-up, contact support with this payment reference",
		}
	}

	s.mu.Lock()
	f := s.currentLocked(job.flowID)
	if f == nil {
		s.mu.Unlock()
		return s.Snapshot(), recErr
	}
	f.busy = ""
	f.err = newCheckoutError(recErr)
	// a failed retry stays in the same state
	t, _ := s.moveLocked(f, StateReconciliationFailed)
	return s.finish(t), recErr
}

func (s *checkoutService) DismissPayment(ctx context.Context, attemptID string) (CheckoutSnapshot, error) {
	s.mu.Lock()
	f := s.flow
	if f == nil || f.state != StatePaymentInProgress {
		if f != nil && f.state == StateReview {
			return s.finish(), nil
		}
		return s.fail(apperrors.NewConflictError(apperrors.CheckoutInvalidTransition, "there is no payment to dismiss"))
	}
	if f.busy != "" {
		return s.fail(actionInProgress(f.busy))
	}
	if attemptID != "" && attemptID != f.payment.AttemptID {
		return s.fail(apperrors.NewConflictError(apperrors.CheckoutInvalidTransition,
			"this payment belongs to an earlier attempt"))
	}

	logger.Info("Payment dismissed", map[string]interface{}{
		"user_id":    f.userID,
		"attempt_id": f.payment.AttemptID,
	})
	f.payment = nil
	f.quote = nil
	f.draft = nil
	f.err = nil
	t, err := s.moveLocked(f, StateReview)
	if err != nil {
		return s.fail(err)
	}
	return s.finish(t), nil
}

func (s *checkoutService) FailPayment(ctx context.Context, attemptID, reason string) (CheckoutSnapshot, error) {
	s.mu.Lock()
	f := s.flow
	if f == nil || f.state != StatePaymentInProgress {
		return s.fail(apperrors.NewConflictError(apperrors.CheckoutInvalidTransition, "there is no payment in progress"))
	}
	if f.busy != "" {
		return s.fail(actionInProgress(f.busy))
	}
	if attemptID != "" && attemptID != f.payment.AttemptID {
		return s.fail(apperrors.NewConflictError(apperrors.CheckoutInvalidTransition,
			"this payment belongs to an earlier attempt"))
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "the payment did not go through, you have not been charged"
	}
	logger.Warn("Payment failed", map[string]interface{}{
		"user_id":    f.userID,
		"attempt_id": f.payment.AttemptID,
		"reason":     reason,
	})
	f.err = newCheckoutError(apperrors.NewPaymentError(apperrors.PaymentFailed, reason, "", nil))
	f.payment = nil
	f.quote = nil
	f.draft = nil
	t, err := s.moveLocked(f, StatePaymentFailed)
	if err != nil {
		return s.fail(err)
	}
	return s.finish(t), nil
}

// Reset abandons the flow. It runs on logout. An open payment is parked so a
// late success callback can still be settled.
func (s *checkoutService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.flow
	if f == nil {
		return
	}
	switch f.state {
	case StatePaymentInProgress:
		logger.Warn("Checkout reset while a payment was open", map[string]interface{}{
			"user_id":    f.userID,
			"attempt_id": f.payment.AttemptID,
		})
		// an order callback already in flight settles the payment itself
		if f.busy == "" && f.draft != nil && f.quote != nil {
			s.parkLocked(f)
		}
	case StateReconciliationFailed:
		logger.Warn("Checkout reset with an unrecorded order", map[string]interface{}{
			"user_id":     f.userID,
			"payment_ref": f.paymentRef,
		})
	}
	s.dropLocked()
}
