// Package local is the embedded backend: the gateway operations served
// straight from gorm, for development, single-file deployments and tests.
package local

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ikkim/storefront/internal/app/repository"
	apperrors "github.com/ikkim/storefront/internal/errors"
	"github.com/ikkim/storefront/internal/gateway"
	"github.com/ikkim/storefront/pkg/logger"
	"github.com/ikkim/storefront/pkg/util"
	"gorm.io/gorm"
)

// TokenRevoker remembers logged-out tokens until they expire.
type TokenRevoker interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

type Options struct {
	JWTSecret   string
	TokenExpiry time.Duration
	// RequireEmailConfirmation makes register return no token and
	// login refuse the account until it is confirmed.
	RequireEmailConfirmation bool
	// Revoker defaults to an in-process list.
	Revoker TokenRevoker
}

// Backend holds the repositories shared by the gateway surfaces.
type Backend struct {
	users    repository.UserRepository
	products repository.ProductRepository
	carts    repository.CartRepository
	orders   repository.OrderRepository

	creds   gateway.CredentialSource
	opts    Options
	revoker TokenRevoker
}

func New(db *gorm.DB, creds gateway.CredentialSource, opts Options) *Backend {
	if opts.TokenExpiry <= 0 {
		opts.TokenExpiry = 24 * time.Hour
	}
	revoker := opts.Revoker
	if revoker == nil {
		revoker = NewMemoryRevoker()
	}
	return &Backend{
		users:    repository.NewUserRepository(db),
		products: repository.NewProductRepository(db),
		carts:    repository.NewCartRepository(db),
		orders:   repository.NewOrderRepository(db),
		creds:    creds,
		opts:     opts,
		revoker:  revoker,
	}
}

// Gateway exposes the backend through the gateway interfaces.
func (b *Backend) Gateway() *gateway.Gateway {
	return &gateway.Gateway{
		Auth:    &authAPI{b: b},
		Catalog: &catalogAPI{b: b},
		Cart:    &cartAPI{b: b},
		Orders:  &orderAPI{b: b},
	}
}

// authenticate resolves the caller from the bearer token of ctx.
func (b *Backend) authenticate(ctx context.Context) (*util.Claims, error) {
	token := gateway.TokenFor(ctx, b.creds)
	if token == "" {
		return nil, apperrors.NewNotAuthenticatedError("")
	}

	claims, err := util.ValidateToken(token, b.opts.JWTSecret)
	if err != nil {
		e := apperrors.NewExpiredSessionError(err)
		if !errors.Is(err, util.ErrExpiredToken) {
			e.Code = apperrors.AuthTokenInvalid
		}
		logger.Warn("Rejected bearer token", map[string]interface{}{
			"code": e.Code,
		})
		return nil, e
	}

	revoked, err := b.revoker.IsRevoked(ctx, token)
	if err != nil {
		return nil, apperrors.NewTransientError("", err)
	}
	if revoked {
		e := apperrors.NewExpiredSessionError(nil)
		e.Code = apperrors.AuthTokenRevoked
		return nil, e
	}
	return claims, nil
}

func (b *Backend) requireAdmin(ctx context.Context) (*util.Claims, error) {
	claims, err := b.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	if claims.Role != "ADMIN" {
		logger.Warn("Non-admin attempted catalog write", map[string]interface{}{
			"user_id": claims.UserID,
		})
		return nil, apperrors.NewForbiddenError(apperrors.AuthzAdminOnly, "only administrators can change the catalog")
	}
	return claims, nil
}

// MemoryRevoker is a process-local TokenRevoker.
type MemoryRevoker struct {
	mu     sync.Mutex
	tokens map[string]time.Time
}

func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{tokens: make(map[string]time.Time)}
}

func (m *MemoryRevoker) Revoke(_ context.Context, token string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for t, until := range m.tokens {
		if now.After(until) {
			delete(m.tokens, t)
		}
	}
	if ttl > 0 {
		m.tokens[token] = now.Add(ttl)
	}
	return nil
}

func (m *MemoryRevoker) IsRevoked(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	until, ok := m.tokens[token]
	return ok && time.Now().Before(until), nil
}
