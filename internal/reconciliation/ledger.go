// Package reconciliation keeps captured payments whose order could not be
// recorded until someone recovers them, and exports them for follow-up.
package reconciliation

import (
	"context"
	"strings"

	"github.com/ikkim/storefront/internal/app/model"
	"github.com/ikkim/storefront/internal/app/repository"
	apperrors "github.com/ikkim/storefront/internal/errors"
	"github.com/ikkim/storefront/pkg/logger"
	"gorm.io/gorm"
)

type Ledger struct {
	repo repository.ReconciliationRepository
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{repo: repository.NewReconciliationRepository(db)}
}

// Record stores a failure. A repeat for the same payment counts another attempt.
func (l *Ledger) Record(ctx context.Context, failure *model.ReconciliationFailure) error {
	if strings.TrimSpace(failure.PaymentReference) == "" {
		return apperrors.NewValidationError(apperrors.ValidationRequired, "payment reference is required",
			map[string]string{"payment_reference": "is required"})
	}

	if err := l.repo.Upsert(ctx, failure); err != nil {
		return apperrors.ParseError(err, "record reconciliation")
	}
	logger.Warn("Reconciliation entry recorded", map[string]interface{}{
		"payment_reference": failure.PaymentReference,
		"user_id":           failure.UserID,
		"amount_minor":      failure.AmountMinor,
		"currency":          failure.Currency,
	})
	return nil
}

// Resolve links the entry to the order that was finally recorded.
func (l *Ledger) Resolve(ctx context.Context, paymentRef, orderID string) error {
	if err := l.repo.MarkResolved(ctx, paymentRef, orderID); err != nil {
		return apperrors.ParseError(err, "resolve reconciliation")
	}
	logger.Info("Reconciliation entry resolved", map[string]interface{}{
		"payment_reference": paymentRef,
		"order_id":          orderID,
	})
	return nil
}

func (l *Ledger) Get(ctx context.Context, paymentRef string) (*model.ReconciliationFailure, error) {
	failure, err := l.repo.FindByPaymentReference(ctx, paymentRef)
	if err != nil {
		return nil, apperrors.ParseError(err, "find reconciliation")
	}
	return failure, nil
}

// ListOpen returns unresolved entries, oldest first.
func (l *Ledger) ListOpen(ctx context.Context) ([]model.ReconciliationFailure, error) {
	failures, err := l.repo.ListByStatus(ctx, model.ReconciliationOpen)
	if err != nil {
		return nil, apperrors.ParseError(err, "list reconciliation")
	}
	if failures == nil {
		failures = []model.ReconciliationFailure{}
	}
	return failures, nil
}
