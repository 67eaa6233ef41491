package treasury

import (
	"regexp"
	"time"

	"github.com/pymeadmin/backend/internal/domain/shared"
	"github.com/pymeadmin/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// cuitPattern matches an AFIP tax id, with or without hyphens
var cuitPattern = regexp.MustCompile(`^\d{2}-?\d{8}-?\d$`)

// RetentionFigures are the engine outputs a payment is created from
type RetentionFigures struct {
	NetAmount       decimal.Decimal
	VATAmount       decimal.Decimal
	RetentionAmount decimal.Decimal
	// Method is the audit label of the rule branch that produced the
	// retention amount
	Method string
}

// Payment is the root record for one supplier invoice processed
// through the withholding engine. It is soft-deleted on reversal and
// never physically destroyed while a certificate references it.
type Payment struct {
	shared.BaseAggregateRoot
	InvoiceNumber   string
	CategoryCode    string
	SupplierName    string
	SupplierTaxID   string
	Registered      bool
	IssueDate       time.Time
	DueDate         *time.Time
	TotalAmount     decimal.Decimal
	NetAmount       decimal.Decimal
	VATAmount       decimal.Decimal
	RetentionAmount decimal.Decimal
	RetentionMethod string
	AmountPayable   decimal.Decimal
	ReversedAt      *time.Time
	ReversalReason  string
}

// NewPayment creates a payment from an invoice and the engine's
// computed figures. AmountPayable is derived, never supplied.
func NewPayment(
	invoiceNumber string,
	categoryCode string,
	supplierName string,
	supplierTaxID string,
	registered bool,
	issueDate time.Time,
	dueDate *time.Time,
	totalAmount decimal.Decimal,
	figures RetentionFigures,
) (*Payment, error) {
	if invoiceNumber == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if len(invoiceNumber) > 50 {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot exceed 50 characters")
	}
	if categoryCode == "" {
		return nil, shared.NewDomainError("INVALID_CATEGORY", "Category code cannot be empty")
	}
	if supplierName == "" {
		return nil, shared.NewDomainError("INVALID_SUPPLIER", "Supplier name cannot be empty")
	}
	if !cuitPattern.MatchString(supplierTaxID) {
		return nil, shared.NewDomainError("INVALID_TAX_ID", "Supplier tax id is not a valid CUIT")
	}
	if issueDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_DATE", "Issue date is required")
	}
	if dueDate != nil && dueDate.Before(issueDate) {
		return nil, shared.NewDomainError("INVALID_DATE", "Due date cannot precede the issue date")
	}
	if totalAmount.IsNegative() {
		return nil, shared.ErrInvalidAmount
	}
	if figures.RetentionAmount.IsNegative() {
		return nil, shared.ErrInvalidAmount
	}
	if figures.RetentionAmount.GreaterThan(totalAmount) {
		return nil, shared.NewDomainError("INVALID_RETENTION", "Retention cannot exceed the invoice total")
	}

	payable, err := valueobject.NewMoneyARS(totalAmount).Subtract(valueobject.NewMoneyARS(figures.RetentionAmount))
	if err != nil {
		return nil, err
	}

	return &Payment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		InvoiceNumber:     invoiceNumber,
		CategoryCode:      categoryCode,
		SupplierName:      supplierName,
		SupplierTaxID:     supplierTaxID,
		Registered:        registered,
		IssueDate:         issueDate,
		DueDate:           dueDate,
		TotalAmount:       totalAmount,
		NetAmount:         figures.NetAmount,
		VATAmount:         figures.VATAmount,
		RetentionAmount:   figures.RetentionAmount,
		RetentionMethod:   figures.Method,
		AmountPayable:     payable.Amount(),
	}, nil
}

// Amend replaces the invoice figures of a live payment with freshly
// recomputed ones. The caller must have recomputed the monthly
// retention excluding this payment's own prior contribution.
func (p *Payment) Amend(totalAmount decimal.Decimal, dueDate *time.Time, figures RetentionFigures) error {
	if p.IsReversed() {
		return shared.NewDomainError("INVALID_STATE", "Cannot amend a reversed payment")
	}
	if totalAmount.IsNegative() || figures.RetentionAmount.IsNegative() {
		return shared.ErrInvalidAmount
	}
	if figures.RetentionAmount.GreaterThan(totalAmount) {
		return shared.NewDomainError("INVALID_RETENTION", "Retention cannot exceed the invoice total")
	}
	if dueDate != nil && dueDate.Before(p.IssueDate) {
		return shared.NewDomainError("INVALID_DATE", "Due date cannot precede the issue date")
	}

	payable, err := valueobject.NewMoneyARS(totalAmount).Subtract(valueobject.NewMoneyARS(figures.RetentionAmount))
	if err != nil {
		return err
	}

	p.TotalAmount = totalAmount
	p.DueDate = dueDate
	p.NetAmount = figures.NetAmount
	p.VATAmount = figures.VATAmount
	p.RetentionAmount = figures.RetentionAmount
	p.RetentionMethod = figures.Method
	p.AmountPayable = payable.Amount()
	p.UpdatedAt = time.Now()
	p.IncrementVersion()

	return nil
}

// Reverse soft-deletes the payment. A reversed payment drops out of
// every monthly aggregation but stays on record for its certificate.
func (p *Payment) Reverse(reason string) error {
	if p.IsReversed() {
		return shared.NewDomainError("INVALID_STATE", "Payment is already reversed")
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Reversal reason is required")
	}

	now := time.Now()
	p.ReversedAt = &now
	p.ReversalReason = reason
	p.UpdatedAt = now
	p.IncrementVersion()

	return nil
}

// IsReversed returns true if the payment has been soft-deleted
func (p *Payment) IsReversed() bool {
	return p.ReversedAt != nil
}

// HasRetention returns true if a withholding was applied, which is
// what entitles the supplier to a certificate
func (p *Payment) HasRetention() bool {
	return p.RetentionAmount.IsPositive()
}

// GetTotalAmountMoney returns the invoice total as Money
func (p *Payment) GetTotalAmountMoney() valueobject.Money {
	return valueobject.NewMoneyARS(p.TotalAmount)
}

// GetNetAmountMoney returns the net taxable base as Money
func (p *Payment) GetNetAmountMoney() valueobject.Money {
	return valueobject.NewMoneyARS(p.NetAmount)
}

// GetRetentionAmountMoney returns the withholding as Money
func (p *Payment) GetRetentionAmountMoney() valueobject.Money {
	return valueobject.NewMoneyARS(p.RetentionAmount)
}

// GetAmountPayableMoney returns the amount payable as Money
func (p *Payment) GetAmountPayableMoney() valueobject.Money {
	return valueobject.NewMoneyARS(p.AmountPayable)
}
