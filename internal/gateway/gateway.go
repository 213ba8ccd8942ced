// Package gateway defines the typed operations the storefront consumes from
// its data/auth backend. Implementations: rest (hosted backend over HTTP)
// and local (embedded gorm backend for development and tests).
package gateway

import (
	"context"

	"github.com/ikkim/storefront/internal/app/model"
)

// RegisterRequest is the input of auth.register.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"full_name"`
}

// RegisterResult carries the new identity. Token is empty when the backend
// requires email confirmation before the first login.
type RegisterResult struct {
	Profile model.Profile
	Token   string
}

type AuthAPI interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error)
	// Login exchanges credentials for a bearer token.
	Login(ctx context.Context, email, password string) (string, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (*model.Profile, error)
}

type CatalogAPI interface {
	List(ctx context.Context, offset, limit int) (*model.ProductPage, error)
	GetBySlug(ctx context.Context, slug string) (*model.Product, error)
	Create(ctx context.Context, product *model.Product) (*model.Product, error)
	Update(ctx context.Context, id string, product *model.Product) (*model.Product, error)
	Delete(ctx context.Context, id string) error
}

// CartAPI operates on the caller's cart. Get creates an empty cart when the
// user has none. Mutations resolve read-modify-write on the backend so a
// (product, variant) pair never ends up on two lines.
type CartAPI interface {
	Get(ctx context.Context) (*model.Cart, error)
	AddItem(ctx context.Context, productID, variantSKU string, quantity int) (*model.Cart, error)
	RemoveItem(ctx context.Context, productID, variantSKU string) (*model.Cart, error)
	Clear(ctx context.Context) (*model.Cart, error)
}

type OrderAPI interface {
	// Create records an order. With a payment reference the call is
	// idempotent: a second create for the same reference returns the
	// existing order.
	Create(ctx context.Context, draft model.OrderDraft) (*model.Order, error)
	// ListMine returns the caller's orders, newest first.
	ListMine(ctx context.Context) ([]model.Order, error)
}

// Gateway bundles the backend surfaces.
type Gateway struct {
	Auth    AuthAPI
	Catalog CatalogAPI
	Cart    CartAPI
	Orders  OrderAPI
}
