package handler

import (
	"time"

	app "github.com/pymeadmin/backend/internal/application/treasury"
	"github.com/pymeadmin/backend/internal/domain/treasury"
	"github.com/shopspring/decimal"
)

// CreatePaymentRequest is the payload for registering an invoice
type CreatePaymentRequest struct {
	InvoiceNumber string          `json:"invoice_number" binding:"required,max=50"`
	CategoryCode  string          `json:"category_code" binding:"required"`
	SupplierName  string          `json:"supplier_name" binding:"required,max=200"`
	SupplierTaxID string          `json:"supplier_tax_id" binding:"required,cuit"`
	Registered    bool            `json:"registered"`
	IssueDate     time.Time       `json:"issue_date" binding:"required"`
	DueDate       *time.Time      `json:"due_date"`
	TotalAmount   decimal.Decimal `json:"total_amount" binding:"required"`
}

// AmendPaymentRequest is the payload for correcting an invoice total
type AmendPaymentRequest struct {
	TotalAmount decimal.Decimal `json:"total_amount" binding:"required"`
	DueDate     *time.Time      `json:"due_date"`
}

// ReversePaymentRequest is the payload for reversing a payment
type ReversePaymentRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// PreviewRetentionRequest is the payload for a persistence-free calculation
type PreviewRetentionRequest struct {
	CategoryCode  string          `json:"category_code" binding:"required"`
	SupplierTaxID string          `json:"supplier_tax_id" binding:"required,cuit"`
	Registered    bool            `json:"registered"`
	IssueDate     time.Time       `json:"issue_date" binding:"required"`
	TotalAmount   decimal.Decimal `json:"total_amount" binding:"required"`
}

// PaymentResponse is the API shape of a payment
type PaymentResponse struct {
	ID              string     `json:"id"`
	InvoiceNumber   string     `json:"invoice_number"`
	CategoryCode    string     `json:"category_code"`
	SupplierName    string     `json:"supplier_name"`
	SupplierTaxID   string     `json:"supplier_tax_id"`
	Registered      bool       `json:"registered"`
	IssueDate       time.Time  `json:"issue_date"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	TotalAmount     string     `json:"total_amount"`
	NetAmount       string     `json:"net_amount"`
	VATAmount       string     `json:"vat_amount"`
	RetentionAmount string     `json:"retention_amount"`
	RetentionMethod string     `json:"retention_method"`
	AmountPayable   string     `json:"amount_payable"`
	Reversed        bool       `json:"reversed"`
	ReversalReason  string     `json:"reversal_reason,omitempty"`
	Version         int        `json:"version"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CertificateResponse is the API shape of a retention certificate
type CertificateResponse struct {
	ID              string    `json:"id"`
	Number          string    `json:"number"`
	PaymentID       string    `json:"payment_id"`
	IssueDate       time.Time `json:"issue_date"`
	RetentionAmount string    `json:"retention_amount"`
	CategoryCode    string    `json:"category_code"`
	SupplierTaxID   string    `json:"supplier_tax_id"`
	InvoiceNumber   string    `json:"invoice_number"`
	NetAmount       string    `json:"net_amount"`
}

// PaymentResultResponse bundles a payment with its certificate and
// the monthly aggregation context
type PaymentResultResponse struct {
	Payment         PaymentResponse      `json:"payment"`
	Certificate     *CertificateResponse `json:"certificate,omitempty"`
	TotalNet        string               `json:"month_total_net"`
	AlreadyRetained string               `json:"month_already_retained"`
}

// PreviewResponse is the API shape of a retention preview
type PreviewResponse struct {
	NetAmount       string `json:"net_amount"`
	VATAmount       string `json:"vat_amount"`
	RetentionAmount string `json:"retention_amount"`
	AmountPayable   string `json:"amount_payable"`
	TotalNet        string `json:"month_total_net"`
	AlreadyRetained string `json:"month_already_retained"`
	Method          string `json:"method"`
}

// MonthlySummaryResponse is the API shape of a monthly aggregation view
type MonthlySummaryResponse struct {
	SupplierTaxID string            `json:"supplier_tax_id"`
	CategoryCode  string            `json:"category_code"`
	Registered    bool              `json:"registered"`
	Month         string            `json:"month"`
	Payments      []PaymentResponse `json:"payments"`
	TotalNet      string            `json:"total_net"`
	TotalRetained string            `json:"total_retained"`
	TotalPayable  string            `json:"total_payable"`
}

// CategoryResponse is the API shape of a withholding category rule
type CategoryResponse struct {
	Code             string `json:"code"`
	Description      string `json:"description"`
	RegisteredRate   string `json:"registered_rate,omitempty"`
	UnregisteredRate string `json:"unregistered_rate"`
	ExemptThreshold  string `json:"exempt_threshold"`
	UsesScale        bool   `json:"uses_scale"`
}

func toPaymentResponse(p *treasury.Payment) PaymentResponse {
	return PaymentResponse{
		ID:              p.ID.String(),
		InvoiceNumber:   p.InvoiceNumber,
		CategoryCode:    p.CategoryCode,
		SupplierName:    p.SupplierName,
		SupplierTaxID:   p.SupplierTaxID,
		Registered:      p.Registered,
		IssueDate:       p.IssueDate,
		DueDate:         p.DueDate,
		TotalAmount:     p.GetTotalAmountMoney().StringFixed(2),
		NetAmount:       p.GetNetAmountMoney().StringFixed(2),
		VATAmount:       p.VATAmount.StringFixed(2),
		RetentionAmount: p.GetRetentionAmountMoney().StringFixed(2),
		RetentionMethod: p.RetentionMethod,
		AmountPayable:   p.GetAmountPayableMoney().StringFixed(2),
		Reversed:        p.IsReversed(),
		ReversalReason:  p.ReversalReason,
		Version:         p.Version,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func toCertificateResponse(c *treasury.Certificate) *CertificateResponse {
	if c == nil {
		return nil
	}
	return &CertificateResponse{
		ID:              c.ID.String(),
		Number:          c.Number,
		PaymentID:       c.PaymentID.String(),
		IssueDate:       c.IssueDate,
		RetentionAmount: c.GetRetentionAmountMoney().StringFixed(2),
		CategoryCode:    c.CategoryCode,
		SupplierTaxID:   c.SupplierTaxID,
		InvoiceNumber:   c.InvoiceNumber,
		NetAmount:       c.GetNetAmountMoney().StringFixed(2),
	}
}

func toPaymentResultResponse(result *app.PaymentResult) PaymentResultResponse {
	return PaymentResultResponse{
		Payment:         toPaymentResponse(result.Payment),
		Certificate:     toCertificateResponse(result.Certificate),
		TotalNet:        result.TotalNet.StringFixed(2),
		AlreadyRetained: result.AlreadyRetained.StringFixed(2),
	}
}
