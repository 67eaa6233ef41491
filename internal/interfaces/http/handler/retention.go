package handler

import (
	"github.com/gin-gonic/gin"
	app "github.com/pymeadmin/backend/internal/application/treasury"
	"github.com/pymeadmin/backend/internal/domain/retention"
)

// RetentionHandler exposes the withholding calculator and the rate
// table for the invoice-entry form.
type RetentionHandler struct {
	BaseHandler
	service *app.PaymentService
	table   retention.Table
}

// NewRetentionHandler creates a new RetentionHandler
func NewRetentionHandler(service *app.PaymentService, table retention.Table) *RetentionHandler {
	return &RetentionHandler{service: service, table: table}
}

// RegisterRoutes registers retention routes
func (h *RetentionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/retention")
	{
		group.POST("/preview", h.Preview)
		group.GET("/categories", h.Categories)
	}
}

// Preview runs the full withholding calculation without persisting
func (h *RetentionHandler) Preview(c *gin.Context) {
	var req PreviewRetentionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	preview, err := h.service.PreviewRetention(c.Request.Context(), app.CreatePaymentRequest{
		CategoryCode:  req.CategoryCode,
		SupplierTaxID: req.SupplierTaxID,
		Registered:    req.Registered,
		IssueDate:     req.IssueDate,
		TotalAmount:   req.TotalAmount,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, PreviewResponse{
		NetAmount:       preview.Net.StringFixed(2),
		VATAmount:       preview.VAT.StringFixed(2),
		RetentionAmount: preview.Retention.StringFixed(2),
		AmountPayable:   preview.AmountPayable.StringFixed(2),
		TotalNet:        preview.TotalNet.StringFixed(2),
		AlreadyRetained: preview.AlreadyRetained.StringFixed(2),
		Method:          preview.Method,
	})
}

// Categories lists the configured withholding categories
func (h *RetentionHandler) Categories(c *gin.Context) {
	rules := h.table.Rules()
	responses := make([]CategoryResponse, len(rules))
	for i, rule := range rules {
		responses[i] = CategoryResponse{
			Code:             rule.Code,
			Description:      rule.Description,
			UnregisteredRate: rule.UnregisteredRate.String(),
			ExemptThreshold:  rule.ExemptThreshold.StringFixed(2),
			UsesScale:        rule.UsesScale,
		}
		if rule.RegisteredRate != nil {
			responses[i].RegisteredRate = rule.RegisteredRate.String()
		}
	}
	h.Success(c, responses)
}
