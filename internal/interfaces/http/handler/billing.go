package handler

import (
	"fmt"
	"time"

	billingapp "github.com/clubledger/backend/internal/application/billing"
	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BillingHandler handles the billing API: closings, listings, status
// transitions, and export artifacts.
type BillingHandler struct {
	BaseHandler
	closing   *billingapp.ClosingService
	status    *billingapp.StatusService
	artifacts *billingapp.ArtifactService
	queries   *billingapp.QueryService
}

// NewBillingHandler creates a new BillingHandler
func NewBillingHandler(
	closing *billingapp.ClosingService,
	status *billingapp.StatusService,
	artifacts *billingapp.ArtifactService,
	queries *billingapp.QueryService,
) *BillingHandler {
	return &BillingHandler{
		closing:   closing,
		status:    status,
		artifacts: artifacts,
		queries:   queries,
	}
}

// RegisterRoutes registers the billing routes on the API group.
func (h *BillingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/billing/close", h.CloseAndBill)

	rg.GET("/periods", h.ListPeriods)
	rg.GET("/periods/:id", h.GetPeriod)
	rg.GET("/periods/:id/invoices", h.ListPeriodInvoices)
	rg.GET("/periods/:id/export", h.GetPeriodExport)

	rg.GET("/invoices/:id", h.GetInvoice)
	rg.PUT("/invoices/:id/status", h.SetInvoiceStatus)
	rg.GET("/invoices/:id/document", h.GetInvoiceDocument)
}

// PeriodResponse represents a ledger period in API responses
type PeriodResponse struct {
	ID             uuid.UUID  `json:"id"`
	SequenceNumber int64      `json:"sequence_number"`
	AggregateTotal string     `json:"aggregate_total"`
	CreatedBy      uuid.UUID  `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
}

// InvoiceLineResponse represents an invoice line in API responses
type InvoiceLineResponse struct {
	ItemName  string `json:"item_name"`
	Quantity  int64  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID             uuid.UUID             `json:"id"`
	PeriodID       uuid.UUID             `json:"period_id"`
	PayerID        uuid.UUID             `json:"payer_id"`
	PayerName      string                `json:"payer_name"`
	PayerKind      string                `json:"payer_kind"`
	Status         string                `json:"status"`
	ItemsTotal     string                `json:"items_total"`
	CarriedBalance string                `json:"carried_balance"`
	Surcharges     string                `json:"surcharges"`
	GrandTotal     string                `json:"grand_total"`
	PaidAt         *time.Time            `json:"paid_at,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	Lines          []InvoiceLineResponse `json:"lines"`
}

// ClosingResponse wraps a closing run with a human readable summary
type ClosingResponse struct {
	*billingapp.ClosingResult
	Summary string `json:"summary"`
}

// SetStatusRequest represents a request to transition an invoice status
type SetStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func toPeriodResponse(p *billing.LedgerPeriod) PeriodResponse {
	return PeriodResponse{
		ID:             p.ID,
		SequenceNumber: p.SequenceNumber,
		AggregateTotal: p.AggregateTotal.StringFixed(2),
		CreatedBy:      p.CreatedBy,
		CreatedAt:      p.CreatedAt,
		ClosedAt:       p.ClosedAt,
	}
}

func toInvoiceResponse(inv *billing.Invoice) InvoiceResponse {
	lines := make([]InvoiceLineResponse, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		lines = append(lines, InvoiceLineResponse{
			ItemName:  l.ItemName,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(2),
			LineTotal: l.LineTotal.StringFixed(2),
		})
	}
	return InvoiceResponse{
		ID:             inv.ID,
		PeriodID:       inv.PeriodID,
		PayerID:        inv.PayerID,
		PayerName:      inv.PayerName,
		PayerKind:      string(inv.PayerKind),
		Status:         inv.Status.String(),
		ItemsTotal:     inv.ItemsTotal.StringFixed(2),
		CarriedBalance: inv.CarriedBalance.StringFixed(2),
		Surcharges:     inv.Surcharges.StringFixed(2),
		GrandTotal:     inv.GrandTotal.StringFixed(2),
		PaidAt:         inv.PaidAt,
		CreatedAt:      inv.CreatedAt,
		Lines:          lines,
	}
}

// CloseAndBill handles POST /billing/close
func (h *BillingHandler) CloseAndBill(c *gin.Context) {
	initiator, err := getUserID(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.closing.CloseAndBill(c.Request.Context(), initiator)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	summary := "No unbilled purchases, nothing to close"
	if result.PeriodCreated {
		summary = fmt.Sprintf("Closed period #%d: %d invoices over %d purchases, %s total",
			result.SequenceNumber, result.InvoiceCount, result.EventCount,
			result.AggregateTotal.StringFixed(2))
	}

	h.Created(c, ClosingResponse{ClosingResult: result, Summary: summary})
}

// ListPeriods handles GET /periods
func (h *BillingHandler) ListPeriods(c *gin.Context) {
	periods, err := h.queries.ListPeriods(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]PeriodResponse, 0, len(periods))
	for i := range periods {
		responses = append(responses, toPeriodResponse(&periods[i]))
	}
	h.Success(c, responses)
}

// GetPeriod handles GET /periods/:id
func (h *BillingHandler) GetPeriod(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	period, err := h.queries.GetPeriod(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toPeriodResponse(period))
}

// ListPeriodInvoices handles GET /periods/:id/invoices
func (h *BillingHandler) ListPeriodInvoices(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	invoices, err := h.queries.ListPeriodInvoices(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]InvoiceResponse, 0, len(invoices))
	for i := range invoices {
		responses = append(responses, toInvoiceResponse(&invoices[i]))
	}
	h.Success(c, responses)
}

// GetPeriodExport handles GET /periods/:id/export
func (h *BillingHandler) GetPeriodExport(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.artifacts.GetOrCreatePeriodExport(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// GetInvoice handles GET /invoices/:id
func (h *BillingHandler) GetInvoice(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	invoice, err := h.queries.GetInvoice(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toInvoiceResponse(invoice))
}

// SetInvoiceStatus handles PUT /invoices/:id/status
func (h *BillingHandler) SetInvoiceStatus(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "status is required")
		return
	}

	invoice, err := h.status.SetStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toInvoiceResponse(invoice))
}

// GetInvoiceDocument handles GET /invoices/:id/document
func (h *BillingHandler) GetInvoiceDocument(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.artifacts.GetOrCreateInvoiceDocument(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
