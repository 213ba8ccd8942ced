package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID          string           `gorm:"primaryKey;size:36" json:"id"`
	Title       string           `gorm:"not null" json:"title"`
	Slug        string           `gorm:"uniqueIndex;not null" json:"slug"`
	Description string           `gorm:"type:text" json:"description"`
	BasePrice   decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"base_price"`
	IsPublished bool             `gorm:"not null;default:false" json:"is_published"`
	Images      []string         `gorm:"serializer:json" json:"images"`
	Variants    []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"product_variants"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	DeletedAt   gorm.DeletedAt   `gorm:"index" json:"-"`
}

func (Product) TableName() string {
	return "products"
}

// Variant returns the purchasable SKU with the given code.
func (p *Product) Variant(sku string) (*ProductVariant, bool) {
	for i := range p.Variants {
		if p.Variants[i].SKU == sku {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

// PrimaryImage is the first image, used as the cart/order thumbnail.
func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// ProductVariant is a size/color combination with its own stock.
type ProductVariant struct {
	ID            uint   `gorm:"primarykey" json:"-"`
	ProductID     string `gorm:"size:36;index;not null" json:"-"`
	SKU           string `gorm:"uniqueIndex;not null" json:"sku"`
	Color         string `json:"color"`
	Size          string `json:"size"`
	StockQuantity int    `gorm:"default:0" json:"stock_quantity"`
}

func (ProductVariant) TableName() string {
	return "product_variants"
}

// ProductPage is one page of catalog.list.
type ProductPage struct {
	Items []Product `json:"items"`
	Total int64     `json:"total"`
}
