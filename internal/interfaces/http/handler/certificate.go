package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pymeadmin/backend/internal/domain/treasury"
	"github.com/pymeadmin/backend/internal/infrastructure/pdf"
)

// CertificateHandler exposes retention certificates, as JSON and as
// the printable PDF handed to the supplier.
type CertificateHandler struct {
	BaseHandler
	certificates treasury.CertificateRepository
	renderer     *pdf.CertificateRenderer
}

// NewCertificateHandler creates a new CertificateHandler
func NewCertificateHandler(certificates treasury.CertificateRepository, renderer *pdf.CertificateRenderer) *CertificateHandler {
	return &CertificateHandler{certificates: certificates, renderer: renderer}
}

// RegisterRoutes registers certificate routes
func (h *CertificateHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/treasury/certificates")
	{
		group.GET("/:paymentID", h.Get)
		group.GET("/:paymentID/pdf", h.GetPDF)
	}
}

// Get returns the certificate of a payment
func (h *CertificateHandler) Get(c *gin.Context) {
	paymentID, ok := h.parsePaymentID(c)
	if !ok {
		return
	}

	certificate, err := h.certificates.FindByPaymentID(c.Request.Context(), paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toCertificateResponse(certificate))
}

// GetPDF returns the certificate rendered as a PDF document
func (h *CertificateHandler) GetPDF(c *gin.Context) {
	paymentID, ok := h.parsePaymentID(c)
	if !ok {
		return
	}

	certificate, err := h.certificates.FindByPaymentID(c.Request.Context(), paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	data, err := h.renderer.Render(certificate)
	if err != nil {
		h.InternalError(c, "Failed to render certificate")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.pdf", certificate.Number))
	c.Data(http.StatusOK, "application/pdf", data)
}

func (h *CertificateHandler) parsePaymentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("paymentID"))
	if err != nil {
		h.BadRequest(c, "paymentID must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}
