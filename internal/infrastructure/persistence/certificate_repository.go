package persistence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pymeadmin/backend/internal/domain/shared"
	"github.com/pymeadmin/backend/internal/domain/treasury"
	"github.com/pymeadmin/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormCertificateRepository implements CertificateRepository using GORM
type GormCertificateRepository struct {
	db *gorm.DB
}

// NewGormCertificateRepository creates a new GormCertificateRepository
func NewGormCertificateRepository(db *gorm.DB) *GormCertificateRepository {
	return &GormCertificateRepository{db: db}
}

// Save persists a new certificate
func (r *GormCertificateRepository) Save(ctx context.Context, certificate *treasury.Certificate) error {
	model := models.CertificateModelFromDomain(certificate)
	return r.db.WithContext(ctx).Create(model).Error
}

// Update persists refreshed certificate figures
func (r *GormCertificateRepository) Update(ctx context.Context, certificate *treasury.Certificate) error {
	model := models.CertificateModelFromDomain(certificate)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ?", certificate.ID).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByPaymentID finds the live certificate of a payment
func (r *GormCertificateRepository) FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*treasury.Certificate, error) {
	var model models.CertificateModel
	if err := r.db.WithContext(ctx).
		Where("payment_id = ? AND deleted_at IS NULL", paymentID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// NextSequence returns the next free daily sequence number for the
// given issue date. Retired certificates keep their number, so the
// scan includes soft-deleted rows and numbers are never reused. The
// suffix is compared numerically; string ordering would go wrong once
// a day passes 9999 certificates.
func (r *GormCertificateRepository) NextSequence(ctx context.Context, issueDate time.Time) (int, error) {
	prefix := treasury.CertificateNumberPrefix(issueDate)

	var numbers []string
	if err := r.db.WithContext(ctx).
		Model(&models.CertificateModel{}).
		Where("number LIKE ?", prefix+"%").
		Pluck("number", &numbers).Error; err != nil {
		return 0, err
	}

	lastSeq := 0
	for _, number := range numbers {
		parts := strings.Split(number, "-")
		if len(parts) != 3 {
			return 0, fmt.Errorf("malformed certificate number %q", number)
		}
		seq, err := strconv.Atoi(parts[2])
		if err != nil {
			return 0, fmt.Errorf("malformed certificate number %q: %w", number, err)
		}
		if seq > lastSeq {
			lastSeq = seq
		}
	}
	return lastSeq + 1, nil
}

// SoftDeleteByPaymentID cascades a payment reversal to its
// certificate. A payment without a certificate is not an error.
func (r *GormCertificateRepository) SoftDeleteByPaymentID(ctx context.Context, paymentID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.CertificateModel{}).
		Where("payment_id = ? AND deleted_at IS NULL", paymentID).
		Updates(map[string]interface{}{
			"deleted_at": time.Now(),
			"updated_at": time.Now(),
		}).Error
}

var _ treasury.CertificateRepository = (*GormCertificateRepository)(nil)
