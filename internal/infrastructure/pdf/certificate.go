package pdf

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/pymeadmin/backend/internal/domain/treasury"
)

// CertificateRenderer renders retention certificates as PDF documents
// for handing to the supplier.
type CertificateRenderer struct {
	companyName  string
	companyTaxID string
}

// NewCertificateRenderer creates a renderer stamped with the issuing
// company's identity.
func NewCertificateRenderer(companyName, companyTaxID string) *CertificateRenderer {
	return &CertificateRenderer{
		companyName:  companyName,
		companyTaxID: companyTaxID,
	}
}

// Render produces the PDF bytes for a certificate
func (r *CertificateRenderer) Render(certificate *treasury.Certificate) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Certificado de Retención - Impuesto a las Ganancias")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Certificado N°: %s", certificate.Number))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Fecha de emisión: %s", certificate.IssueDate.Format("02/01/2006")))
	pdf.Ln(10)

	if r.companyName != "" {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 8, "Agente de retención")
		pdf.Ln(7)
		pdf.SetFont("Helvetica", "", 12)
		pdf.Cell(0, 8, r.companyName)
		pdf.Ln(7)
		if r.companyTaxID != "" {
			pdf.Cell(0, 8, fmt.Sprintf("CUIT: %s", r.companyTaxID))
			pdf.Ln(7)
		}
		pdf.Ln(3)
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Sujeto retenido")
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("CUIT: %s", certificate.SupplierTaxID))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Comprobante: %s", certificate.InvoiceNumber))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Régimen: %s", certificate.CategoryCode))
	pdf.Ln(10)

	pdf.Cell(0, 8, fmt.Sprintf("Monto neto sujeto a retención: $ %s", certificate.GetNetAmountMoney().StringFixed(2)))
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Importe retenido: $ %s", certificate.GetRetentionAmountMoney().StringFixed(2)))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering certificate %s: %w", certificate.Number, err)
	}
	return buf.Bytes(), nil
}
