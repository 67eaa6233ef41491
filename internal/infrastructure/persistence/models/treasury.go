package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pymeadmin/backend/internal/domain/shared"
	"github.com/pymeadmin/backend/internal/domain/treasury"
	"github.com/shopspring/decimal"
)

// PaymentModel is the persistence model for the Payment aggregate root.
type PaymentModel struct {
	AggregateModel
	InvoiceNumber   string          `gorm:"type:varchar(50);not null;index"`
	CategoryCode    string          `gorm:"type:varchar(10);not null;index"`
	SupplierName    string          `gorm:"type:varchar(200);not null"`
	SupplierTaxID   string          `gorm:"type:varchar(13);not null;index"`
	Registered      bool            `gorm:"not null"`
	IssueDate       time.Time       `gorm:"not null;index"`
	DueDate         *time.Time      `gorm:"index"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	NetAmount       decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	VATAmount       decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	RetentionAmount decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	RetentionMethod string          `gorm:"type:varchar(200)"`
	AmountPayable   decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	ReversedAt      *time.Time      `gorm:"index"`
	ReversalReason  string          `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment entity.
func (m *PaymentModel) ToDomain() *treasury.Payment {
	return &treasury.Payment{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		InvoiceNumber:   m.InvoiceNumber,
		CategoryCode:    m.CategoryCode,
		SupplierName:    m.SupplierName,
		SupplierTaxID:   m.SupplierTaxID,
		Registered:      m.Registered,
		IssueDate:       m.IssueDate,
		DueDate:         m.DueDate,
		TotalAmount:     m.TotalAmount,
		NetAmount:       m.NetAmount,
		VATAmount:       m.VATAmount,
		RetentionAmount: m.RetentionAmount,
		RetentionMethod: m.RetentionMethod,
		AmountPayable:   m.AmountPayable,
		ReversedAt:      m.ReversedAt,
		ReversalReason:  m.ReversalReason,
	}
}

// FromDomain populates the persistence model from a domain Payment entity.
func (m *PaymentModel) FromDomain(p *treasury.Payment) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.InvoiceNumber = p.InvoiceNumber
	m.CategoryCode = p.CategoryCode
	m.SupplierName = p.SupplierName
	m.SupplierTaxID = p.SupplierTaxID
	m.Registered = p.Registered
	m.IssueDate = p.IssueDate
	m.DueDate = p.DueDate
	m.TotalAmount = p.TotalAmount
	m.NetAmount = p.NetAmount
	m.VATAmount = p.VATAmount
	m.RetentionAmount = p.RetentionAmount
	m.RetentionMethod = p.RetentionMethod
	m.AmountPayable = p.AmountPayable
	m.ReversedAt = p.ReversedAt
	m.ReversalReason = p.ReversalReason
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment.
func PaymentModelFromDomain(p *treasury.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}

// CertificateModel is the persistence model for the Certificate entity.
type CertificateModel struct {
	BaseModel
	Number          string          `gorm:"type:varchar(20);not null;uniqueIndex"`
	PaymentID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	IssueDate       time.Time       `gorm:"not null;index"`
	RetentionAmount decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	CategoryCode    string          `gorm:"type:varchar(10);not null"`
	SupplierTaxID   string          `gorm:"type:varchar(13);not null;index"`
	InvoiceNumber   string          `gorm:"type:varchar(50);not null"`
	NetAmount       decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	DeletedAt       *time.Time      `gorm:"index"`
}

// TableName returns the table name for GORM
func (CertificateModel) TableName() string {
	return "retention_certificates"
}

// ToDomain converts the persistence model to a domain Certificate entity.
func (m *CertificateModel) ToDomain() *treasury.Certificate {
	return &treasury.Certificate{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Number:          m.Number,
		PaymentID:       m.PaymentID,
		IssueDate:       m.IssueDate,
		RetentionAmount: m.RetentionAmount,
		CategoryCode:    m.CategoryCode,
		SupplierTaxID:   m.SupplierTaxID,
		InvoiceNumber:   m.InvoiceNumber,
		NetAmount:       m.NetAmount,
		DeletedAt:       m.DeletedAt,
	}
}

// FromDomain populates the persistence model from a domain Certificate entity.
func (m *CertificateModel) FromDomain(c *treasury.Certificate) {
	m.FromDomainBaseEntity(c.BaseEntity)
	m.Number = c.Number
	m.PaymentID = c.PaymentID
	m.IssueDate = c.IssueDate
	m.RetentionAmount = c.RetentionAmount
	m.CategoryCode = c.CategoryCode
	m.SupplierTaxID = c.SupplierTaxID
	m.InvoiceNumber = c.InvoiceNumber
	m.NetAmount = c.NetAmount
	m.DeletedAt = c.DeletedAt
}

// CertificateModelFromDomain creates a new persistence model from a domain Certificate.
func CertificateModelFromDomain(c *treasury.Certificate) *CertificateModel {
	m := &CertificateModel{}
	m.FromDomain(c)
	return m
}
