package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReconciliationStatus string

const (
	ReconciliationOpen     ReconciliationStatus = "OPEN"
	ReconciliationResolved ReconciliationStatus = "RESOLVED"
)

// ReconciliationFailure records a captured payment whose order was not
// recorded, with enough context for manual recovery.
type ReconciliationFailure struct {
	ID               uint                 `gorm:"primarykey" json:"id"`
	PaymentReference string               `gorm:"uniqueIndex;not null" json:"payment_reference"`
	AttemptID        string               `gorm:"size:36;index" json:"attempt_id"`
	UserID           string               `gorm:"size:36;index" json:"user_id"`
	Email            string               `json:"email"`
	Currency         string               `gorm:"type:varchar(3)" json:"currency"`
	Total            decimal.Decimal      `gorm:"type:decimal(12,2)" json:"total"`
	AmountMinor      int64                `json:"amount_minor"`
	CartSnapshot     []OrderLineItem      `gorm:"serializer:json;type:text" json:"cart_snapshot"`
	ShippingAddress  ShippingAddress      `gorm:"serializer:json;type:text" json:"shipping_address"`
	LastError        string               `gorm:"type:text" json:"last_error"`
	Attempts         int                  `gorm:"default:1" json:"attempts"`
	Status           ReconciliationStatus `gorm:"type:varchar(20);default:'OPEN';index" json:"status"`
	OrderID          string               `gorm:"size:36" json:"order_id,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
	ResolvedAt       *time.Time           `json:"resolved_at,omitempty"`
}

func (ReconciliationFailure) TableName() string {
	return "reconciliation_failures"
}
