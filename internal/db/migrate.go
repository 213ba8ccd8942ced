package db

import (
	"github.com/ikkim/storefront/internal/app/model"
	"github.com/ikkim/storefront/pkg/logger"
	"gorm.io/gorm"
)

// LedgerModels are always migrated: the shell keeps its reconciliation
// ledger locally even when the data backend is remote.
func LedgerModels() []interface{} {
	return []interface{}{
		&model.ReconciliationFailure{},
	}
}

// BackendModels are the tables of the embedded backend.
func BackendModels() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Product{},
		&model.ProductVariant{},
		&model.Cart{},
		&model.CartItem{},
		&model.Order{},
		&model.OrderLineItem{},
	}
}

// Migrate runs database migrations. Backend tables are only created when
// the embedded backend is in use.
func Migrate(withBackend bool) error {
	return MigrateDB(DB, withBackend)
}

// MigrateDB migrates the given handle.
func MigrateDB(conn *gorm.DB, withBackend bool) error {
	logger.Info("Running database migrations...", map[string]interface{}{
		"embedded_backend": withBackend,
	})

	models := LedgerModels()
	if withBackend {
		models = append(models, BackendModels()...)
	}

	if err := conn.AutoMigrate(models...); err != nil {
		logger.Error("Failed to run migrations", err)
		return err
	}

	logger.Info("Database migrations completed successfully", map[string]interface{}{
		"models_count": len(models),
	})
	return nil
}
