package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string // owned by the backend after creation

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusPaid       OrderStatus = "PAID"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

type Order struct {
	ID               string          `gorm:"primaryKey;size:36" json:"id"`
	UserID           string          `gorm:"size:36;not null;index" json:"user_id"`
	Items            []OrderLineItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	TotalAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	Currency         string          `gorm:"type:varchar(3);not null" json:"currency"`
	Status           OrderStatus     `gorm:"type:varchar(20);default:'PENDING'" json:"status"`
	ShippingAddress  ShippingAddress `gorm:"serializer:json;type:text" json:"shipping_address"`
	PaymentReference *string         `gorm:"uniqueIndex" json:"payment_reference,omitempty"`
	CreatedAt        time.Time       `gorm:"index" json:"created_at"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderLineItem is a snapshot of a cart line taken when the order is created.
// It never references live catalog data.
type OrderLineItem struct {
	ID         uint            `gorm:"primarykey" json:"-"`
	OrderID    string          `gorm:"size:36;not null;index" json:"-"`
	ProductID  string          `gorm:"size:36;not null" json:"product_id"`
	VariantSKU string          `gorm:"not null" json:"variant_sku"`
	Title      string          `json:"title"`
	Size       string          `json:"size"`
	Color      string          `json:"color"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Quantity   int             `gorm:"not null" json:"quantity"`
	ImageRef   string          `json:"image"`
}

func (OrderLineItem) TableName() string {
	return "order_items"
}

// OrderDraft is the input to orders.create.
type OrderDraft struct {
	ShippingAddress  ShippingAddress `json:"shipping_address"`
	Items            []OrderLineItem `json:"items"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	Currency         string          `json:"currency"`
	Status           OrderStatus     `json:"status"`
	PaymentReference string          `json:"payment_reference,omitempty"`
}

// SnapshotLines copies cart lines into order line items.
func SnapshotLines(items []CartItem) []OrderLineItem {
	lines := make([]OrderLineItem, 0, len(items))
	for _, item := range items {
		lines = append(lines, OrderLineItem{
			ProductID:  item.ProductID,
			VariantSKU: item.VariantSKU,
			Title:      item.Title,
			Size:       item.Size,
			Color:      item.Color,
			UnitPrice:  item.UnitPrice,
			Quantity:   item.Quantity,
			ImageRef:   item.ImageRef,
		})
	}
	return lines
}
