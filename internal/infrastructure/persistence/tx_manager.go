package persistence

import (
	"context"

	"github.com/pymeadmin/backend/internal/domain/treasury"
	"gorm.io/gorm"
)

// GormTxManager implements treasury.TxManager on a GORM transaction.
// Both repositories handed to the callback share the same *gorm.DB
// transaction handle, so everything written inside the callback
// commits or rolls back together.
type GormTxManager struct {
	db *gorm.DB
}

// NewGormTxManager creates a new GormTxManager
func NewGormTxManager(db *gorm.DB) *GormTxManager {
	return &GormTxManager{db: db}
}

// InTransaction runs fn inside a database transaction with
// transaction-bound repository instances.
func (m *GormTxManager) InTransaction(ctx context.Context, fn func(tx treasury.Tx) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(treasury.Tx{
			Payments:     NewGormPaymentRepository(tx),
			Certificates: NewGormCertificateRepository(tx),
		})
	})
}

var _ treasury.TxManager = (*GormTxManager)(nil)
