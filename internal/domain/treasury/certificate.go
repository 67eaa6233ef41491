package treasury

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pymeadmin/backend/internal/domain/shared"
	"github.com/pymeadmin/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// CertificateNumberFormat is the daily sequence format: CR-YYYYMMDD-NNNN
const certificateNumberPrefix = "CR"

// Certificate is the proof-of-withholding document issued for each
// payment that carries a positive retention. Its number is assigned
// exactly once at creation; amendments update the figures but keep
// the number. The certificate follows its payment through soft
// deletion.
type Certificate struct {
	shared.BaseEntity
	Number          string
	PaymentID       uuid.UUID
	IssueDate       time.Time
	RetentionAmount decimal.Decimal
	CategoryCode    string
	SupplierTaxID   string
	InvoiceNumber   string
	NetAmount       decimal.Decimal
	DeletedAt       *time.Time
}

// NewCertificate creates a certificate for a payment with retention
func NewCertificate(number string, payment *Payment) (*Certificate, error) {
	if number == "" {
		return nil, shared.NewDomainError("INVALID_CERTIFICATE_NUMBER", "Certificate number cannot be empty")
	}
	if payment == nil {
		return nil, shared.NewDomainError("INVALID_PAYMENT", "Certificate requires a payment")
	}
	if !payment.HasRetention() {
		return nil, shared.NewDomainError("NO_RETENTION", "Certificates are only issued for payments with retention")
	}

	return &Certificate{
		BaseEntity:      shared.NewBaseEntity(),
		Number:          number,
		PaymentID:       payment.ID,
		IssueDate:       payment.IssueDate,
		RetentionAmount: payment.RetentionAmount,
		CategoryCode:    payment.CategoryCode,
		SupplierTaxID:   payment.SupplierTaxID,
		InvoiceNumber:   payment.InvoiceNumber,
		NetAmount:       payment.NetAmount,
	}, nil
}

// RefreshFromPayment syncs the certificate figures after a payment
// amendment. The number is never regenerated here.
func (c *Certificate) RefreshFromPayment(payment *Payment) error {
	if c.DeletedAt != nil {
		return shared.NewDomainError("INVALID_STATE", "Cannot refresh a deleted certificate")
	}
	if payment.ID != c.PaymentID {
		return shared.NewDomainError("INVALID_PAYMENT", "Certificate belongs to a different payment")
	}

	c.RetentionAmount = payment.RetentionAmount
	c.NetAmount = payment.NetAmount
	c.InvoiceNumber = payment.InvoiceNumber
	c.IssueDate = payment.IssueDate
	c.UpdatedAt = time.Now()

	return nil
}

// GetRetentionAmountMoney returns the withheld amount as Money
func (c *Certificate) GetRetentionAmountMoney() valueobject.Money {
	return valueobject.NewMoneyARS(c.RetentionAmount)
}

// GetNetAmountMoney returns the net taxable base as Money
func (c *Certificate) GetNetAmountMoney() valueobject.Money {
	return valueobject.NewMoneyARS(c.NetAmount)
}

// CertificateNumber formats a daily-sequence certificate number.
// Sequence numbers restart at 1 each day and are zero-padded to four
// digits.
func CertificateNumber(issueDate time.Time, sequence int) string {
	return fmt.Sprintf("%s-%s-%04d", certificateNumberPrefix, issueDate.Format("20060102"), sequence)
}

// CertificateNumberPrefix returns the shared prefix of all numbers
// issued on a given day, used to find the latest sequence.
func CertificateNumberPrefix(issueDate time.Time) string {
	return fmt.Sprintf("%s-%s-", certificateNumberPrefix, issueDate.Format("20060102"))
}
