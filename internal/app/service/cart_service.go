package service

import (
	"context"
	"sync"

	"github.com/ikkim/storefront/internal/app/model"
	apperrors "github.com/ikkim/storefront/internal/errors"
	"github.com/ikkim/storefront/internal/gateway"
	"github.com/ikkim/storefront/pkg/logger"
)

// CartService mirrors the signed-in user's cart. The backend is the source
// of truth: every mutation is followed by a read, and the cached copy is
// only ever replaced by what that read returned.
type CartService interface {
	// Fetch returns nil without error when nobody is signed in.
	Fetch(ctx context.Context) (*model.Cart, error)
	// Current is the last confirmed cart, nil when unknown.
	Current() *model.Cart
	AddItem(ctx context.Context, productID, variantSKU string, quantity int) (*model.Cart, error)
	RemoveItem(ctx context.Context, productID, variantSKU string) (*model.Cart, error)
	// ClearAfterOrder empties the cart once an order has been recorded.
	ClearAfterOrder(ctx context.Context) (*model.Cart, error)
	// Reset drops the cached cart; results of calls still in flight are discarded.
	Reset()
}

type cartService struct {
	carts     gateway.CartAPI
	session   SessionService
	publisher EventPublisher

	mu    sync.Mutex
	cart  *model.Cart
	epoch uint64
}

func NewCartService(carts gateway.CartAPI, session SessionService, publisher EventPublisher) CartService {
	s := &cartService{
		carts:     carts,
		session:   session,
		publisher: publisher,
	}
	session.OnLogout(func(context.Context) { s.Reset() })
	return s
}

func (s *cartService) Current() *model.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

func (s *cartService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = nil
	s.epoch++
}

func (s *cartService) currentEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

func (s *cartService) Fetch(ctx context.Context) (*model.Cart, error) {
	session := s.session.Current()
	if session == nil {
		s.Reset()
		return nil, nil
	}
	epoch := s.currentEpoch()

	cart, err := s.carts.Get(ctx)
	if err != nil {
		logger.Error("Failed to fetch cart", err, map[string]interface{}{
			"user_id": session.UserID,
		})
		return nil, s.session.HandleAuthFailure(ctx, err)
	}
	return s.apply(epoch, session.UserID, cart)
}

func (s *cartService) AddItem(ctx context.Context, productID, variantSKU string, quantity int) (*model.Cart, error) {
	if quantity < 1 {
		return nil, apperrors.NewValidationError(apperrors.CartInvalidQuantity, "quantity must be at least 1",
			map[string]string{"quantity": "is too small"})
	}
	session := s.session.Current()
	if session == nil {
		return nil, apperrors.NewNotAuthenticatedError("sign in to add items to your cart")
	}
	logger.Info("Adding item to cart", map[string]interface{}{
		"user_id":     session.UserID,
		"product_id":  productID,
		"variant_sku": variantSKU,
		"quantity":    quantity,
	})
	epoch := s.currentEpoch()

	if _, err := s.carts.AddItem(ctx, productID, variantSKU, quantity); err != nil {
		logger.Warn("Add to cart failed", map[string]interface{}{
			"user_id":    session.UserID,
			"product_id": productID,
			"error":      err.Error(),
		})
		return nil, s.session.HandleAuthFailure(ctx, err)
	}
	return s.reread(ctx, epoch, session.UserID)
}

func (s *cartService) RemoveItem(ctx context.Context, productID, variantSKU string) (*model.Cart, error) {
	session := s.session.Current()
	if session == nil {
		return nil, apperrors.NewNotAuthenticatedError("")
	}
	logger.Info("Removing item from cart", map[string]interface{}{
		"user_id":     session.UserID,
		"product_id":  productID,
		"variant_sku": variantSKU,
	})
	epoch := s.currentEpoch()

	if _, err := s.carts.RemoveItem(ctx, productID, variantSKU); err != nil && !apperrors.Is(err, apperrors.KindNotFound) {
		logger.Warn("Remove from cart failed", map[string]interface{}{
			"user_id":    session.UserID,
			"product_id": productID,
			"error":      err.Error(),
		})
		return nil, s.session.HandleAuthFailure(ctx, err)
	}
	return s.reread(ctx, epoch, session.UserID)
}

func (s *cartService) ClearAfterOrder(ctx context.Context) (*model.Cart, error) {
	session := s.session.Current()
	if session == nil {
		return nil, apperrors.NewNotAuthenticatedError("")
	}
	epoch := s.currentEpoch()

	if _, err := s.carts.Clear(ctx); err != nil {
		logger.Error("Failed to clear cart after order", err, map[string]interface{}{
			"user_id": session.UserID,
		})
		return nil, s.session.HandleAuthFailure(ctx, err)
	}
	logger.Info("Cart cleared after order", map[string]interface{}{
		"user_id": session.UserID,
	})
	return s.reread(ctx, epoch, session.UserID)
}

// reread loads the authoritative cart after a mutation.
func (s *cartService) reread(ctx context.Context, epoch uint64, userID string) (*model.Cart, error) {
	cart, err := s.carts.Get(ctx)
	if err != nil {
		logger.Error("Failed to re-read cart after mutation", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, s.session.HandleAuthFailure(ctx, err)
	}
	return s.apply(epoch, userID, cart)
}

// apply installs a cart read unless the state was reset while it was in flight.
func (s *cartService) apply(epoch uint64, userID string, cart *model.Cart) (*model.Cart, error) {
	if cart == nil {
		cart = &model.Cart{UserID: userID}
	}
	cart.Recalculate()

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		logger.Warn("Discarding cart result that arrived after sign-out", map[string]interface{}{
			"user_id": userID,
		})
		return nil, apperrors.NewNotAuthenticatedError("your session ended")
	}
	s.cart = cart.Clone()
	s.mu.Unlock()

	publish(s.publisher, userID, EventCartUpdated, cart.Clone())
	return cart, nil
}
