package repository

import (
	"context"
	"time"

	"github.com/ikkim/storefront/internal/app/model"
	"github.com/ikkim/storefront/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReconciliationRepository interface {
	// Upsert records a failure; a repeat for the same payment reference
	// bumps the attempt count and keeps the latest error.
	Upsert(ctx context.Context, failure *model.ReconciliationFailure) error
	FindByPaymentReference(ctx context.Context, ref string) (*model.ReconciliationFailure, error)
	MarkResolved(ctx context.Context, ref, orderID string) error
	ListByStatus(ctx context.Context, status model.ReconciliationStatus) ([]model.ReconciliationFailure, error)
}

type reconciliationRepository struct {
	db *gorm.DB
}

func NewReconciliationRepository(db *gorm.DB) ReconciliationRepository {
	return &reconciliationRepository{db: db}
}

func (r *reconciliationRepository) Upsert(ctx context.Context, failure *model.ReconciliationFailure) error {
	if failure.Status == "" {
		failure.Status = model.ReconciliationOpen
	}
	if failure.Attempts == 0 {
		failure.Attempts = 1
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "payment_reference"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_error": failure.LastError,
			"attempts":   gorm.Expr("reconciliation_failures.attempts + 1"),
			"status":     model.ReconciliationOpen,
			"updated_at": time.Now(),
		}),
	}).Create(failure).Error
	if err != nil {
		logger.Error("Failed to record reconciliation failure", err, map[string]interface{}{
			"payment_reference": failure.PaymentReference,
		})
		return err
	}
	return nil
}

func (r *reconciliationRepository) FindByPaymentReference(ctx context.Context, ref string) (*model.ReconciliationFailure, error) {
	var failure model.ReconciliationFailure
	if err := r.db.WithContext(ctx).Where("payment_reference = ?", ref).First(&failure).Error; err != nil {
		return nil, err
	}
	return &failure, nil
}

func (r *reconciliationRepository) MarkResolved(ctx context.Context, ref, orderID string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&model.ReconciliationFailure{}).
		Where("payment_reference = ?", ref).
		Updates(map[string]interface{}{
			"status":      model.ReconciliationResolved,
			"order_id":    orderID,
			"resolved_at": now,
		})
	if result.Error != nil {
		logger.Error("Failed to resolve reconciliation failure", result.Error, map[string]interface{}{
			"payment_reference": ref,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *reconciliationRepository) ListByStatus(ctx context.Context, status model.ReconciliationStatus) ([]model.ReconciliationFailure, error) {
	var failures []model.ReconciliationFailure
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&failures).Error
	if err != nil {
		logger.Error("Failed to list reconciliation failures", err, map[string]interface{}{
			"status": status,
		})
		return nil, err
	}
	return failures, nil
}
