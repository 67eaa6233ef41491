package treasury

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pymeadmin/backend/internal/domain/retention"
)

// PaymentFilter holds list-query options for payments
type PaymentFilter struct {
	SupplierTaxID   string
	CategoryCode    string
	FromDate        *time.Time
	ToDate          *time.Time
	IncludeReversed bool
	Search          string
	Page            int
	PageSize        int
}

// PaymentRepository is the persistence port for payments. Soft-deleted
// payments are excluded from every query unless a filter explicitly
// asks for them.
type PaymentRepository interface {
	// EntriesForMonth makes the repository usable as the engine's
	// monthly aggregation ledger.
	retention.MonthlyLedger

	Save(ctx context.Context, payment *Payment) error
	// Update persists an amended payment with optimistic locking
	Update(ctx context.Context, payment *Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	FindAll(ctx context.Context, filter PaymentFilter) ([]Payment, int64, error)
	// SoftDelete marks the payment reversed without destroying the row
	SoftDelete(ctx context.Context, id uuid.UUID, reason string) error
}

// Tx bundles both repositories bound to a single database
// transaction.
type Tx struct {
	Payments     PaymentRepository
	Certificates CertificateRepository
}

// TxManager runs a function with both repositories bound to one
// transaction. The transaction commits when fn returns nil and rolls
// back otherwise, so a payment and its certificate are written
// atomically or not at all.
type TxManager interface {
	InTransaction(ctx context.Context, fn func(tx Tx) error) error
}

// CertificateRepository is the persistence port for retention
// certificates
type CertificateRepository interface {
	Save(ctx context.Context, certificate *Certificate) error
	Update(ctx context.Context, certificate *Certificate) error
	FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*Certificate, error)
	// NextSequence returns the next free daily sequence number for
	// the given issue date, starting at 1.
	NextSequence(ctx context.Context, issueDate time.Time) (int, error)
	// SoftDeleteByPaymentID cascades a payment reversal to its
	// certificate. Missing certificates are not an error.
	SoftDeleteByPaymentID(ctx context.Context, paymentID uuid.UUID) error
}
