package gateway

import (
	"context"
	"time"

	"github.com/ikkim/storefront/internal/app/model"
	apperrors "github.com/ikkim/storefront/internal/errors"
)

// CallObserver receives one record per backend call. outcome is "ok" or
// the error kind.
type CallObserver func(operation, outcome string, elapsed time.Duration)

// Instrument wraps every surface of g so each call is reported to observe.
func Instrument(g *Gateway, observe CallObserver) *Gateway {
	if observe == nil {
		return g
	}
	return &Gateway{
		Auth:    &instrumentedAuth{next: g.Auth, observe: observe},
		Catalog: &instrumentedCatalog{next: g.Catalog, observe: observe},
		Cart:    &instrumentedCart{next: g.Cart, observe: observe},
		Orders:  &instrumentedOrders{next: g.Orders, observe: observe},
	}
}

func record(observe CallObserver, operation string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = apperrors.KindOf(err).String()
	}
	observe(operation, outcome, time.Since(started))
}

type instrumentedAuth struct {
	next    AuthAPI
	observe CallObserver
}

func (a *instrumentedAuth) Register(ctx context.Context, req RegisterRequest) (res *RegisterResult, err error) {
	defer func(start time.Time) { record(a.observe, "auth.register", start, err) }(time.Now())
	return a.next.Register(ctx, req)
}

func (a *instrumentedAuth) Login(ctx context.Context, email, password string) (token string, err error) {
	defer func(start time.Time) { record(a.observe, "auth.login", start, err) }(time.Now())
	return a.next.Login(ctx, email, password)
}

func (a *instrumentedAuth) Logout(ctx context.Context) (err error) {
	defer func(start time.Time) { record(a.observe, "auth.logout", start, err) }(time.Now())
	return a.next.Logout(ctx)
}

func (a *instrumentedAuth) CurrentUser(ctx context.Context) (p *model.Profile, err error) {
	defer func(start time.Time) { record(a.observe, "auth.currentUser", start, err) }(time.Now())
	return a.next.CurrentUser(ctx)
}

type instrumentedCatalog struct {
	next    CatalogAPI
	observe CallObserver
}

func (c *instrumentedCatalog) List(ctx context.Context, offset, limit int) (page *model.ProductPage, err error) {
	defer func(start time.Time) { record(c.observe, "catalog.list", start, err) }(time.Now())
	return c.next.List(ctx, offset, limit)
}

func (c *instrumentedCatalog) GetBySlug(ctx context.Context, slug string) (p *model.Product, err error) {
	defer func(start time.Time) { record(c.observe, "catalog.getBySlug", start, err) }(time.Now())
	return c.next.GetBySlug(ctx, slug)
}

func (c *instrumentedCatalog) Create(ctx context.Context, product *model.Product) (p *model.Product, err error) {
	defer func(start time.Time) { record(c.observe, "catalog.create", start, err) }(time.Now())
	return c.next.Create(ctx, product)
}

func (c *instrumentedCatalog) Update(ctx context.Context, id string, product *model.Product) (p *model.Product, err error) {
	defer func(start time.Time) { record(c.observe, "catalog.update", start, err) }(time.Now())
	return c.next.Update(ctx, id, product)
}

func (c *instrumentedCatalog) Delete(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { record(c.observe, "catalog.delete", start, err) }(time.Now())
	return c.next.Delete(ctx, id)
}

type instrumentedCart struct {
	next    CartAPI
	observe CallObserver
}

func (c *instrumentedCart) Get(ctx context.Context) (cart *model.Cart, err error) {
	defer func(start time.Time) { record(c.observe, "cart.get", start, err) }(time.Now())
	return c.next.Get(ctx)
}

func (c *instrumentedCart) AddItem(ctx context.Context, productID, variantSKU string, quantity int) (cart *model.Cart, err error) {
	defer func(start time.Time) { record(c.observe, "cart.addItem", start, err) }(time.Now())
	return c.next.AddItem(ctx, productID, variantSKU, quantity)
}

func (c *instrumentedCart) RemoveItem(ctx context.Context, productID, variantSKU string) (cart *model.Cart, err error) {
	defer func(start time.Time) { record(c.observe, "cart.removeItem", start, err) }(time.Now())
	return c.next.RemoveItem(ctx, productID, variantSKU)
}

func (c *instrumentedCart) Clear(ctx context.Context) (cart *model.Cart, err error) {
	defer func(start time.Time) { record(c.observe, "cart.clear", start, err) }(time.Now())
	return c.next.Clear(ctx)
}

type instrumentedOrders struct {
	next    OrderAPI
	observe CallObserver
}

func (o *instrumentedOrders) Create(ctx context.Context, draft model.OrderDraft) (order *model.Order, err error) {
	defer func(start time.Time) { record(o.observe, "orders.create", start, err) }(time.Now())
	return o.next.Create(ctx, draft)
}

func (o *instrumentedOrders) ListMine(ctx context.Context) (orders []model.Order, err error) {
	defer func(start time.Time) { record(o.observe, "orders.listMine", start, err) }(time.Now())
	return o.next.ListMine(ctx)
}
