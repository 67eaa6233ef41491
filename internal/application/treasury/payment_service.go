package treasury

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pymeadmin/backend/internal/domain/retention"
	"github.com/pymeadmin/backend/internal/domain/shared"
	"github.com/pymeadmin/backend/internal/domain/shared/valueobject"
	"github.com/pymeadmin/backend/internal/domain/treasury"
	"github.com/pymeadmin/backend/internal/infrastructure/lock"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentService orchestrates the invoice-entry flow: net/VAT split,
// month-cumulative withholding, payment persistence and certificate
// issuance. The read-aggregate-write sequence runs under a per
// (supplier, category, registration, month) advisory lock so that
// concurrent submissions cannot under-withhold.
type PaymentService struct {
	payments    treasury.PaymentRepository
	tx          treasury.TxManager
	engine      *retention.Engine
	monthlyLock lock.MonthlyLock
	logger      *zap.Logger
}

// NewPaymentService creates a new PaymentService. Certificate writes
// always happen alongside their payment, so the service reaches the
// certificate repository only through the transaction manager.
func NewPaymentService(
	payments treasury.PaymentRepository,
	tx treasury.TxManager,
	engine *retention.Engine,
	monthlyLock lock.MonthlyLock,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		payments:    payments,
		tx:          tx,
		engine:      engine,
		monthlyLock: monthlyLock,
		logger:      logger,
	}
}

// CreatePaymentRequest carries a new invoice to process
type CreatePaymentRequest struct {
	InvoiceNumber string
	CategoryCode  string
	SupplierName  string
	SupplierTaxID string
	Registered    bool
	IssueDate     time.Time
	DueDate       *time.Time
	TotalAmount   decimal.Decimal
}

// AmendPaymentRequest carries a correction to an existing payment
type AmendPaymentRequest struct {
	PaymentID   uuid.UUID
	TotalAmount decimal.Decimal
	DueDate     *time.Time
}

// PaymentResult bundles a processed payment with its aggregation
// context for audit display
type PaymentResult struct {
	Payment         *treasury.Payment
	Certificate     *treasury.Certificate
	TotalNet        decimal.Decimal
	AlreadyRetained decimal.Decimal
}

// CreatePayment processes a new invoice: splits net/VAT, computes the
// incremental monthly withholding, persists the payment and issues a
// certificate when the withholding is positive.
func (s *PaymentService) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*PaymentResult, error) {
	release, err := s.monthlyLock.Acquire(ctx, lock.Key(req.SupplierTaxID, req.CategoryCode, req.Registered, req.IssueDate))
	if err != nil {
		return nil, fmt.Errorf("acquiring monthly aggregation lock: %w", err)
	}
	defer release()

	split, err := s.engine.SplitNetAndVAT(req.TotalAmount)
	if err != nil {
		return nil, err
	}

	monthly, err := s.engine.MonthlyRetention(ctx, s.payments, req.CategoryCode, split.Net, req.Registered, req.SupplierTaxID, req.IssueDate, nil)
	if err != nil {
		return nil, err
	}

	payment, err := treasury.NewPayment(
		req.InvoiceNumber,
		req.CategoryCode,
		req.SupplierName,
		req.SupplierTaxID,
		req.Registered,
		req.IssueDate,
		req.DueDate,
		req.TotalAmount,
		treasury.RetentionFigures{
			NetAmount:       split.Net,
			VATAmount:       split.VAT,
			RetentionAmount: monthly.Retention,
			Method:          monthly.Method,
		},
	)
	if err != nil {
		return nil, err
	}

	// The payment and its certificate land in one transaction, so a
	// failed issuance never leaves a committed payment feeding the
	// monthly aggregation without its certificate.
	var certificate *treasury.Certificate
	err = s.tx.InTransaction(ctx, func(tx treasury.Tx) error {
		if err := tx.Payments.Save(ctx, payment); err != nil {
			return fmt.Errorf("saving payment: %w", err)
		}
		certificate, err = s.issueCertificate(ctx, tx.Certificates, payment)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment created",
		zap.String("payment_id", payment.ID.String()),
		zap.String("invoice", payment.InvoiceNumber),
		zap.String("category", payment.CategoryCode),
		zap.String("retention", payment.GetRetentionAmountMoney().String()),
	)

	return &PaymentResult{
		Payment:         payment,
		Certificate:     certificate,
		TotalNet:        monthly.TotalNet,
		AlreadyRetained: monthly.AlreadyRetained,
	}, nil
}

// AmendPayment recomputes an existing payment from a corrected total.
// The payment's own prior figures are excluded from the monthly
// aggregation, so the result is what the payment would have carried
// had it been entered with the corrected amount in the first place.
func (s *PaymentService) AmendPayment(ctx context.Context, req AmendPaymentRequest) (*PaymentResult, error) {
	payment, err := s.payments.FindByID(ctx, req.PaymentID)
	if err != nil {
		return nil, err
	}

	release, err := s.monthlyLock.Acquire(ctx, lock.Key(payment.SupplierTaxID, payment.CategoryCode, payment.Registered, payment.IssueDate))
	if err != nil {
		return nil, fmt.Errorf("acquiring monthly aggregation lock: %w", err)
	}
	defer release()

	split, err := s.engine.SplitNetAndVAT(req.TotalAmount)
	if err != nil {
		return nil, err
	}

	excludeID := payment.ID
	monthly, err := s.engine.MonthlyRetention(ctx, s.payments, payment.CategoryCode, split.Net, payment.Registered, payment.SupplierTaxID, payment.IssueDate, &excludeID)
	if err != nil {
		return nil, err
	}

	if err := payment.Amend(req.TotalAmount, req.DueDate, treasury.RetentionFigures{
		NetAmount:       split.Net,
		VATAmount:       split.VAT,
		RetentionAmount: monthly.Retention,
		Method:          monthly.Method,
	}); err != nil {
		return nil, err
	}

	var certificate *treasury.Certificate
	err = s.tx.InTransaction(ctx, func(tx treasury.Tx) error {
		if err := tx.Payments.Update(ctx, payment); err != nil {
			return fmt.Errorf("updating payment: %w", err)
		}
		certificate, err = s.refreshCertificate(ctx, tx.Certificates, payment)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment amended",
		zap.String("payment_id", payment.ID.String()),
		zap.String("retention", payment.GetRetentionAmountMoney().String()),
	)

	return &PaymentResult{
		Payment:         payment,
		Certificate:     certificate,
		TotalNet:        monthly.TotalNet,
		AlreadyRetained: monthly.AlreadyRetained,
	}, nil
}

// ReversePayment soft-deletes a payment and cascades to its
// certificate. Reversed payments drop out of all future monthly
// aggregations but stay on record.
func (s *PaymentService) ReversePayment(ctx context.Context, paymentID uuid.UUID, reason string) error {
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return err
	}

	if err := payment.Reverse(reason); err != nil {
		return err
	}

	err = s.tx.InTransaction(ctx, func(tx treasury.Tx) error {
		if err := tx.Payments.SoftDelete(ctx, paymentID, reason); err != nil {
			return fmt.Errorf("reversing payment: %w", err)
		}
		if err := tx.Certificates.SoftDeleteByPaymentID(ctx, paymentID); err != nil {
			return fmt.Errorf("cascading reversal to certificate: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("payment reversed",
		zap.String("payment_id", paymentID.String()),
		zap.String("reason", reason),
	)

	return nil
}

// GetPayment returns a payment by id
func (s *PaymentService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*treasury.Payment, error) {
	return s.payments.FindByID(ctx, paymentID)
}

// ListPayments returns payments matching the filter plus the total count
func (s *PaymentService) ListPayments(ctx context.Context, filter treasury.PaymentFilter) ([]treasury.Payment, int64, error) {
	return s.payments.FindAll(ctx, filter)
}

// MonthlySummary is the cumulative view of one supplier/category tuple
// for a calendar month
type MonthlySummary struct {
	SupplierTaxID string
	CategoryCode  string
	Registered    bool
	Month         time.Time
	Payments      []treasury.Payment
	TotalNet      valueobject.Money
	TotalRetained valueobject.Money
	TotalPayable  valueobject.Money
}

// GetMonthlySummary lists the live payments of a supplier/category
// tuple within the calendar month of `month` and totals them.
func (s *PaymentService) GetMonthlySummary(ctx context.Context, supplierTaxID, categoryCode string, registered bool, month time.Time) (*MonthlySummary, error) {
	from := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, month.Location())
	to := from.AddDate(0, 1, 0).Add(-time.Nanosecond)

	payments, _, err := s.payments.FindAll(ctx, treasury.PaymentFilter{
		SupplierTaxID: supplierTaxID,
		CategoryCode:  categoryCode,
		FromDate:      &from,
		ToDate:        &to,
	})
	if err != nil {
		return nil, err
	}

	summary := &MonthlySummary{
		SupplierTaxID: supplierTaxID,
		CategoryCode:  categoryCode,
		Registered:    registered,
		Month:         from,
		TotalNet:      valueobject.ZeroARS(),
		TotalRetained: valueobject.ZeroARS(),
		TotalPayable:  valueobject.ZeroARS(),
	}
	for i := range payments {
		p := &payments[i]
		if p.Registered != registered {
			continue
		}
		summary.Payments = append(summary.Payments, *p)
		if summary.TotalNet, err = summary.TotalNet.Add(p.GetNetAmountMoney()); err != nil {
			return nil, err
		}
		if summary.TotalRetained, err = summary.TotalRetained.Add(p.GetRetentionAmountMoney()); err != nil {
			return nil, err
		}
		if summary.TotalPayable, err = summary.TotalPayable.Add(p.GetAmountPayableMoney()); err != nil {
			return nil, err
		}
	}

	return summary, nil
}

// PreviewResult is a persistence-free calculation for the invoice form
type PreviewResult struct {
	Net             decimal.Decimal
	VAT             decimal.Decimal
	Retention       decimal.Decimal
	AmountPayable   decimal.Decimal
	TotalNet        decimal.Decimal
	AlreadyRetained decimal.Decimal
	Method          string
}

// PreviewRetention runs the full calculation without persisting
// anything, for display before the invoice is confirmed.
func (s *PaymentService) PreviewRetention(ctx context.Context, req CreatePaymentRequest) (*PreviewResult, error) {
	split, err := s.engine.SplitNetAndVAT(req.TotalAmount)
	if err != nil {
		return nil, err
	}

	monthly, err := s.engine.MonthlyRetention(ctx, s.payments, req.CategoryCode, split.Net, req.Registered, req.SupplierTaxID, req.IssueDate, nil)
	if err != nil {
		return nil, err
	}

	return &PreviewResult{
		Net:             split.Net,
		VAT:             split.VAT,
		Retention:       monthly.Retention,
		AmountPayable:   req.TotalAmount.Sub(monthly.Retention),
		TotalNet:        monthly.TotalNet,
		AlreadyRetained: monthly.AlreadyRetained,
		Method:          monthly.Method,
	}, nil
}

// issueCertificate creates a certificate for a payment carrying
// retention; payments without retention get none. The repository is
// passed in so the caller can hand over a transaction-bound one.
func (s *PaymentService) issueCertificate(ctx context.Context, certificates treasury.CertificateRepository, payment *treasury.Payment) (*treasury.Certificate, error) {
	if !payment.HasRetention() {
		return nil, nil
	}

	sequence, err := certificates.NextSequence(ctx, payment.IssueDate)
	if err != nil {
		return nil, fmt.Errorf("allocating certificate number: %w", err)
	}

	certificate, err := treasury.NewCertificate(treasury.CertificateNumber(payment.IssueDate, sequence), payment)
	if err != nil {
		return nil, err
	}

	if err := certificates.Save(ctx, certificate); err != nil {
		return nil, fmt.Errorf("saving certificate: %w", err)
	}

	return certificate, nil
}

// refreshCertificate reconciles a payment's certificate after an
// amendment: refresh the figures when one exists, issue one when the
// retention became positive, and retire it when the retention dropped
// to zero. An existing number is never regenerated.
func (s *PaymentService) refreshCertificate(ctx context.Context, certificates treasury.CertificateRepository, payment *treasury.Payment) (*treasury.Certificate, error) {
	certificate, err := certificates.FindByPaymentID(ctx, payment.ID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("loading certificate: %w", err)
	}

	switch {
	case certificate == nil && payment.HasRetention():
		return s.issueCertificate(ctx, certificates, payment)
	case certificate == nil:
		return nil, nil
	case !payment.HasRetention():
		if err := certificates.SoftDeleteByPaymentID(ctx, payment.ID); err != nil {
			return nil, fmt.Errorf("retiring certificate: %w", err)
		}
		return nil, nil
	default:
		if err := certificate.RefreshFromPayment(payment); err != nil {
			return nil, err
		}
		if err := certificates.Update(ctx, certificate); err != nil {
			return nil, fmt.Errorf("updating certificate: %w", err)
		}
		return certificate, nil
	}
}
