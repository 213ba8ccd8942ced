package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart is a user's pending selection. TotalPrice is derived from Items and
// never persisted; call Recalculate after every read or mutation.
type Cart struct {
	ID         string          `gorm:"primaryKey;size:36" json:"id"`
	UserID     string          `gorm:"size:36;uniqueIndex;not null" json:"user_id"`
	Items      []CartItem      `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items"`
	TotalPrice decimal.Decimal `gorm:"-" json:"total_price"`
	CreatedAt  time.Time       `json:"-"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (Cart) TableName() string {
	return "carts"
}

// CartItem is one line of a cart, unique per (cart, product, variant).
// Display fields are hydrated from the catalog on read.
type CartItem struct {
	ID         uint      `gorm:"primarykey" json:"-"`
	CartID     string    `gorm:"size:36;not null;uniqueIndex:idx_cart_line" json:"-"`
	ProductID  string    `gorm:"size:36;not null;uniqueIndex:idx_cart_line" json:"product_id"`
	VariantSKU string    `gorm:"not null;uniqueIndex:idx_cart_line" json:"variant_sku"`
	Quantity   int       `gorm:"not null;default:1" json:"quantity"`
	AddedAt    time.Time `gorm:"autoCreateTime" json:"added_at"`

	UnitPrice decimal.Decimal `gorm:"-" json:"price"`
	Title     string          `gorm:"-" json:"title"`
	ImageRef  string          `gorm:"-" json:"image"`
	Size      string          `gorm:"-" json:"size,omitempty"`
	Color     string          `gorm:"-" json:"color,omitempty"`

	Product *Product `gorm:"foreignKey:ProductID" json:"-"`
}

func (CartItem) TableName() string {
	return "cart_items"
}

// LineKey identifies a cart line.
type LineKey struct {
	ProductID  string
	VariantSKU string
}

func (i CartItem) Key() LineKey {
	return LineKey{ProductID: i.ProductID, VariantSKU: i.VariantSKU}
}

// LineTotal is unitPrice × quantity.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Hydrate copies display data from the preloaded product.
func (i *CartItem) Hydrate() {
	if i.Product == nil {
		return
	}
	i.Title = i.Product.Title
	i.UnitPrice = i.Product.BasePrice
	i.ImageRef = i.Product.PrimaryImage()
	if v, ok := i.Product.Variant(i.VariantSKU); ok {
		i.Size = v.Size
		i.Color = v.Color
	}
}

// Recalculate enforces the line invariants and recomputes TotalPrice:
// lines with quantity < 1 are dropped and duplicate (product, variant)
// lines are merged by summing quantities, keeping the first line's data.
func (c *Cart) Recalculate() {
	if c == nil {
		return
	}

	index := make(map[LineKey]int, len(c.Items))
	items := make([]CartItem, 0, len(c.Items))
	for _, item := range c.Items {
		if item.Quantity < 1 {
			continue
		}
		if at, ok := index[item.Key()]; ok {
			items[at].Quantity += item.Quantity
			continue
		}
		index[item.Key()] = len(items)
		items = append(items, item)
	}
	c.Items = items

	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.LineTotal())
	}
	c.TotalPrice = total
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// ItemCount is the total number of units across lines.
func (c *Cart) ItemCount() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// Find returns the line for a product variant.
func (c *Cart) Find(productID, sku string) (*CartItem, bool) {
	if c == nil {
		return nil, false
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID && c.Items[i].VariantSKU == sku {
			return &c.Items[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy safe to hand out of a state holder.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Items = make([]CartItem, len(c.Items))
	copy(cp.Items, c.Items)
	for i := range cp.Items {
		cp.Items[i].Product = nil
	}
	return &cp
}
