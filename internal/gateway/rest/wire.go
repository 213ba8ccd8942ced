package rest

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/ikkim/storefront/internal/app/model"
	"github.com/shopspring/decimal"
)

// The hosted backend keys documents by _id; id is accepted as a fallback.

type wireUser struct {
	ID       string `json:"id"`
	AltID    string `json:"_id,omitempty"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	// register may hand back a session right away
	AccessToken string `json:"access_token,omitempty"`
}

func (u wireUser) profile() model.Profile {
	id := u.ID
	if id == "" {
		id = u.AltID
	}
	return model.Profile{
		ID:          id,
		Email:       u.Email,
		DisplayName: u.FullName,
		Role:        model.ParseRole(u.Role),
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type wireVariant struct {
	SKU           string `json:"sku"`
	Color         string `json:"color"`
	Size          string `json:"size"`
	StockQuantity int    `json:"stock_quantity"`
}

type wireProduct struct {
	ID              string          `json:"_id,omitempty"`
	AltID           string          `json:"id,omitempty"`
	Title           string          `json:"title"`
	Slug            string          `json:"slug"`
	Description     string          `json:"description"`
	BasePrice       decimal.Decimal `json:"base_price"`
	IsPublished     bool            `json:"is_published"`
	Images          []string        `json:"images"`
	Variants        []wireVariant   `json:"variants"`
	ProductVariants []wireVariant   `json:"product_variants,omitempty"`
	CreatedAt       *time.Time      `json:"created_at,omitempty"`
}

func toWireProduct(p *model.Product) wireProduct {
	w := wireProduct{
		Title:       p.Title,
		Slug:        p.Slug,
		Description: p.Description,
		BasePrice:   p.BasePrice,
		IsPublished: p.IsPublished,
		Images:      p.Images,
		Variants:    make([]wireVariant, 0, len(p.Variants)),
	}
	if w.Images == nil {
		w.Images = []string{}
	}
	for _, v := range p.Variants {
		w.Variants = append(w.Variants, wireVariant{SKU: v.SKU, Color: v.Color, Size: v.Size, StockQuantity: v.StockQuantity})
	}
	return w
}

func (w wireProduct) model() model.Product {
	p := model.Product{
		ID:          w.ID,
		Title:       w.Title,
		Slug:        w.Slug,
		Description: w.Description,
		BasePrice:   w.BasePrice,
		IsPublished: w.IsPublished,
		Images:      w.Images,
	}
	if p.ID == "" {
		p.ID = w.AltID
	}
	if w.CreatedAt != nil {
		p.CreatedAt = *w.CreatedAt
	}
	variants := w.Variants
	if len(variants) == 0 {
		variants = w.ProductVariants
	}
	for _, v := range variants {
		p.Variants = append(p.Variants, model.ProductVariant{
			ProductID:     p.ID,
			SKU:           v.SKU,
			Color:         v.Color,
			Size:          v.Size,
			StockQuantity: v.StockQuantity,
		})
	}
	return p
}

type productPage struct {
	Items []wireProduct `json:"items"`
	Total int64         `json:"total"`
}

type addItemRequest struct {
	ProductID  string `json:"product_id"`
	VariantSKU string `json:"variant_sku"`
	Quantity   int    `json:"quantity"`
}

type wireOrder struct {
	ID               string                `json:"_id"`
	AltID            string                `json:"id"`
	UserID           string                `json:"user_id"`
	Status           model.OrderStatus     `json:"status"`
	Items            []model.OrderLineItem `json:"items"`
	TotalAmount      decimal.Decimal       `json:"total_amount"`
	Currency         string                `json:"currency"`
	ShippingAddress  model.ShippingAddress `json:"shipping_address"`
	PaymentReference string                `json:"payment_reference"`
	CreatedAt        time.Time             `json:"created_at"`
}

func (w wireOrder) model() model.Order {
	o := model.Order{
		ID:              w.ID,
		UserID:          w.UserID,
		Items:           w.Items,
		TotalAmount:     w.TotalAmount,
		Currency:        w.Currency,
		Status:          w.Status,
		ShippingAddress: w.ShippingAddress,
		CreatedAt:       w.CreatedAt,
	}
	if o.ID == "" {
		o.ID = w.AltID
	}
	if o.Items == nil {
		o.Items = []model.OrderLineItem{}
	}
	if w.PaymentReference != "" {
		ref := w.PaymentReference
		o.PaymentReference = &ref
	}
	return o
}

// createOrderResponse is either {"order": {...}, "client_secret": "..."} or the bare order.
type createOrderResponse struct {
	Order *wireOrder `json:"order"`
}

func decodeCreatedOrder(body []byte) (*wireOrder, error) {
	var envelope createOrderResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Order != nil {
		return envelope.Order, nil
	}
	var bare wireOrder
	if err := json.Unmarshal(body, &bare); err != nil {
		return nil, err
	}
	return &bare, nil
}

// sortNewestFirst orders by creation time, newest first; the backend's
// own order is kept for equal timestamps.
func sortNewestFirst(orders []model.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
