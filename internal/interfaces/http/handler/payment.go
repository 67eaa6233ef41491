package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	app "github.com/pymeadmin/backend/internal/application/treasury"
	"github.com/pymeadmin/backend/internal/domain/treasury"
	"github.com/pymeadmin/backend/internal/interfaces/http/dto"
)

// PaymentHandler exposes the supplier payment lifecycle over HTTP
type PaymentHandler struct {
	BaseHandler
	service *app.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(service *app.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// RegisterRoutes registers payment routes
func (h *PaymentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	payments := rg.Group("/treasury/payments")
	{
		payments.POST("", h.Create)
		payments.GET("", h.List)
		payments.GET("/monthly-summary", h.MonthlySummary)
		payments.GET("/:id", h.Get)
		payments.PUT("/:id", h.Amend)
		payments.DELETE("/:id", h.Reverse)
	}
}

// Create registers a new supplier invoice and computes its withholding
func (h *PaymentHandler) Create(c *gin.Context) {
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreatePayment(c.Request.Context(), app.CreatePaymentRequest{
		InvoiceNumber: req.InvoiceNumber,
		CategoryCode:  req.CategoryCode,
		SupplierName:  req.SupplierName,
		SupplierTaxID: req.SupplierTaxID,
		Registered:    req.Registered,
		IssueDate:     req.IssueDate,
		DueDate:       req.DueDate,
		TotalAmount:   req.TotalAmount,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toPaymentResultResponse(result))
}

// Get returns one payment, reversed ones included
func (h *PaymentHandler) Get(c *gin.Context) {
	id, ok := h.paymentID(c)
	if !ok {
		return
	}

	payment, err := h.service.GetPayment(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toPaymentResponse(payment))
}

// List returns payments matching the query filters
func (h *PaymentHandler) List(c *gin.Context) {
	list := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&list); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if list.Page == 0 {
		list.Page = 1
	}
	if list.PageSize == 0 {
		list.PageSize = 20
	}

	filter := treasury.PaymentFilter{
		SupplierTaxID:   c.Query("supplier_tax_id"),
		CategoryCode:    c.Query("category_code"),
		IncludeReversed: c.Query("include_reversed") == "true",
		Search:          list.Search,
		Page:            list.Page,
		PageSize:        list.PageSize,
	}
	if from, ok := h.dateQuery(c, "from_date"); ok {
		filter.FromDate = from
	} else {
		return
	}
	if to, ok := h.dateQuery(c, "to_date"); ok {
		filter.ToDate = to
	} else {
		return
	}

	payments, total, err := h.service.ListPayments(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]PaymentResponse, len(payments))
	for i := range payments {
		responses[i] = toPaymentResponse(&payments[i])
	}
	h.SuccessWithMeta(c, responses, total, list.Page, list.PageSize)
}

// Amend recomputes a payment from a corrected total
func (h *PaymentHandler) Amend(c *gin.Context) {
	id, ok := h.paymentID(c)
	if !ok {
		return
	}

	var req AmendPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.AmendPayment(c.Request.Context(), app.AmendPaymentRequest{
		PaymentID:   id,
		TotalAmount: req.TotalAmount,
		DueDate:     req.DueDate,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toPaymentResultResponse(result))
}

// Reverse soft-deletes a payment and its certificate
func (h *PaymentHandler) Reverse(c *gin.Context) {
	id, ok := h.paymentID(c)
	if !ok {
		return
	}

	var req ReversePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if err := h.service.ReversePayment(c.Request.Context(), id, req.Reason); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// MonthlySummary returns the cumulative month view for one
// supplier/category tuple
func (h *PaymentHandler) MonthlySummary(c *gin.Context) {
	supplierTaxID := c.Query("supplier_tax_id")
	categoryCode := c.Query("category_code")
	if supplierTaxID == "" || categoryCode == "" {
		h.BadRequest(c, "supplier_tax_id and category_code are required")
		return
	}
	registered := c.DefaultQuery("registered", "true") == "true"

	month := time.Now()
	if raw := c.Query("month"); raw != "" {
		parsed, err := time.Parse("2006-01", raw)
		if err != nil {
			h.BadRequest(c, "month must have format YYYY-MM")
			return
		}
		month = parsed
	}

	summary, err := h.service.GetMonthlySummary(c.Request.Context(), supplierTaxID, categoryCode, registered, month)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]PaymentResponse, len(summary.Payments))
	for i := range summary.Payments {
		responses[i] = toPaymentResponse(&summary.Payments[i])
	}
	h.Success(c, MonthlySummaryResponse{
		SupplierTaxID: summary.SupplierTaxID,
		CategoryCode:  summary.CategoryCode,
		Registered:    summary.Registered,
		Month:         summary.Month.Format("2006-01"),
		Payments:      responses,
		TotalNet:      summary.TotalNet.StringFixed(2),
		TotalRetained: summary.TotalRetained.StringFixed(2),
		TotalPayable:  summary.TotalPayable.StringFixed(2),
	})
}

func (h *PaymentHandler) paymentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *PaymentHandler) dateQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		h.BadRequest(c, name+" must have format YYYY-MM-DD")
		return nil, false
	}
	return &parsed, true
}
