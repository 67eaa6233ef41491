package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pymeadmin/backend/internal/domain/retention"
	"github.com/pymeadmin/backend/internal/domain/shared"
	"github.com/pymeadmin/backend/internal/domain/treasury"
	"github.com/pymeadmin/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPaymentRepository implements PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// Save persists a new payment
func (r *GormPaymentRepository) Save(ctx context.Context, payment *treasury.Payment) error {
	model := models.PaymentModelFromDomain(payment)
	return r.db.WithContext(ctx).Create(model).Error
}

// Update persists an amended payment with optimistic locking.
// Returns a conflict error if the version has changed underneath.
// The amendable columns go through an explicit map so that a cleared
// due date (nil) is written as NULL; a struct update would skip it as
// a zero value and leave the old date behind.
func (r *GormPaymentRepository) Update(ctx context.Context, payment *treasury.Payment) error {
	model := models.PaymentModelFromDomain(payment)
	result := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("id = ? AND version = ?", payment.ID, payment.Version-1).
		Updates(map[string]interface{}{
			"total_amount":     model.TotalAmount,
			"due_date":         model.DueDate,
			"net_amount":       model.NetAmount,
			"vat_amount":       model.VATAmount,
			"retention_amount": model.RetentionAmount,
			"retention_method": model.RetentionMethod,
			"amount_payable":   model.AmountPayable,
			"updated_at":       model.UpdatedAt,
			"version":          model.Version,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// FindByID finds a payment by its ID, reversed ones included
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*treasury.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds payments matching the filter and returns the total count
func (r *GormPaymentRepository) FindAll(ctx context.Context, filter treasury.PaymentFilter) ([]treasury.Payment, int64, error) {
	var total int64
	countQuery := r.applyFilter(r.db.WithContext(ctx).Model(&models.PaymentModel{}), filter)
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.PaymentModel{}), filter).
		Order("issue_date DESC, created_at DESC")
	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset((filter.Page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var paymentModels []models.PaymentModel
	if err := query.Find(&paymentModels).Error; err != nil {
		return nil, 0, err
	}

	payments := make([]treasury.Payment, len(paymentModels))
	for i, model := range paymentModels {
		payments[i] = *model.ToDomain()
	}
	return payments, total, nil
}

// SoftDelete marks a payment reversed without destroying the row
func (r *GormPaymentRepository) SoftDelete(ctx context.Context, id uuid.UUID, reason string) error {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("id = ? AND reversed_at IS NULL", id).
		Updates(map[string]interface{}{
			"reversed_at":     time.Now(),
			"reversal_reason": reason,
			"updated_at":      time.Now(),
			"version":         gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// EntriesForMonth returns the live payments of a supplier/category
// tuple inside the calendar month of `month`, as aggregation ledger
// entries. excludeID skips one payment, used when amending.
func (r *GormPaymentRepository) EntriesForMonth(ctx context.Context, supplierTaxID, categoryCode string, registered bool, month time.Time, excludeID *uuid.UUID) ([]retention.LedgerEntry, error) {
	from := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, month.Location())
	to := from.AddDate(0, 1, 0)

	query := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Select("id, net_amount, retention_amount").
		Where("supplier_tax_id = ? AND category_code = ? AND registered = ?", supplierTaxID, categoryCode, registered).
		Where("issue_date >= ? AND issue_date < ?", from, to).
		Where("reversed_at IS NULL")
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}

	var rows []models.PaymentModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]retention.LedgerEntry, len(rows))
	for i, row := range rows {
		entries[i] = retention.LedgerEntry{
			PaymentID:       row.ID,
			NetAmount:       row.NetAmount,
			RetentionAmount: row.RetentionAmount,
		}
	}
	return entries, nil
}

// applyFilter applies filter options to the query, without pagination
func (r *GormPaymentRepository) applyFilter(query *gorm.DB, filter treasury.PaymentFilter) *gorm.DB {
	if !filter.IncludeReversed {
		query = query.Where("reversed_at IS NULL")
	}
	if filter.SupplierTaxID != "" {
		query = query.Where("supplier_tax_id = ?", filter.SupplierTaxID)
	}
	if filter.CategoryCode != "" {
		query = query.Where("category_code = ?", filter.CategoryCode)
	}
	if filter.FromDate != nil {
		query = query.Where("issue_date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("issue_date <= ?", *filter.ToDate)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("supplier_name ILIKE ? OR invoice_number ILIKE ?", pattern, pattern)
	}
	return query
}

var _ treasury.PaymentRepository = (*GormPaymentRepository)(nil)
