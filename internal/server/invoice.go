package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	invoicedomain "github.com/invoro/invoro/internal/invoice/domain"
	"github.com/invoro/invoro/pkg/db/pagination"
	"github.com/shopspring/decimal"
)

type invoiceItemRequest struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type createInvoiceRequest struct {
	ClientID     string               `json:"client_id"`
	IssueDate    string               `json:"issue_date"`
	DueDate      string               `json:"due_date"`
	TaxRate      decimal.Decimal      `json:"tax_rate"`
	Notes        string               `json:"notes"`
	Currency     string               `json:"currency"`
	ExchangeRate *decimal.Decimal     `json:"exchange_rate"`
	Draft        bool                 `json:"draft"`
	Items        []invoiceItemRequest `json:"items"`
}

// @Summary      Create Invoice
// @Description  Create a new invoice or draft
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        request body createInvoiceRequest true "Create Invoice Request"
// @Success      200  {object}  invoicedomain.Invoice
// @Router       /invoices [post]
func (s *Server) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	clientID, err := snowflake.ParseString(strings.TrimSpace(req.ClientID))
	if err != nil {
		AbortWithError(c, newValidationError("client_id", "invalid_client_id", "invalid client_id"))
		return
	}
	issueDate, err := parseOptionalDate(req.IssueDate)
	if err != nil {
		AbortWithError(c, newValidationError("issue_date", "invalid_issue_date", "invalid issue_date"))
		return
	}
	dueDate, err := parseOptionalDate(req.DueDate)
	if err != nil {
		AbortWithError(c, newValidationError("due_date", "invalid_due_date", "invalid due_date"))
		return
	}

	create := invoicedomain.CreateInvoiceRequest{
		ClientID:     clientID,
		TaxRate:      req.TaxRate,
		Notes:        req.Notes,
		Currency:     strings.TrimSpace(req.Currency),
		ExchangeRate: req.ExchangeRate,
		Draft:        req.Draft,
		Items:        make([]invoicedomain.ItemInput, 0, len(req.Items)),
	}
	if issueDate != nil {
		create.IssueDate = *issueDate
	}
	if dueDate != nil {
		create.DueDate = *dueDate
	}
	for _, item := range req.Items {
		create.Items = append(create.Items, invoicedomain.ItemInput{
			Description: strings.TrimSpace(item.Description),
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	resp, err := s.invoiceSvc.Create(c.Request.Context(), create)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      List Invoices
// @Description  List invoices with filters and pagination
// @Tags         invoices
// @Produce      json
// @Param        page            query  int     false  "Page"
// @Param        limit           query  int     false  "Limit"
// @Param        status          query  string  false  "Status"
// @Param        start_date      query  string  false  "Issue date from (yyyy-MM-dd)"
// @Param        end_date        query  string  false  "Issue date to (yyyy-MM-dd)"
// @Param        search          query  string  false  "Search on number or client name"
// @Param        include_drafts  query  bool    false  "Include drafts"
// @Param        sort_field      query  string  false  "Sort field"
// @Param        sort_order      query  string  false  "Sort order"
// @Success      200  {object}  invoicedomain.ListInvoiceResponse
// @Router       /invoices [get]
func (s *Server) ListInvoices(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status        string `form:"status"`
		StartDate     string `form:"start_date"`
		EndDate       string `form:"end_date"`
		Search        string `form:"search"`
		IncludeDrafts bool   `form:"include_drafts"`
		SortField     string `form:"sort_field"`
		SortOrder     string `form:"sort_order"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req := invoicedomain.ListInvoiceRequest{
		Pagination:    query.Pagination,
		Search:        strings.TrimSpace(query.Search),
		IncludeDrafts: query.IncludeDrafts,
		SortField:     query.SortField,
		SortOrder:     query.SortOrder,
	}
	if raw := strings.TrimSpace(query.Status); raw != "" {
		status, ok := invoicedomain.ParseStatus(raw)
		if !ok {
			AbortWithError(c, newValidationError("status", "invalid_status", "invalid status"))
			return
		}
		req.Status = &status
	}
	startDate, err := parseOptionalDate(query.StartDate)
	if err != nil {
		AbortWithError(c, newValidationError("start_date", "invalid_start_date", "invalid start_date"))
		return
	}
	endDate, err := parseOptionalDate(query.EndDate)
	if err != nil {
		AbortWithError(c, newValidationError("end_date", "invalid_end_date", "invalid end_date"))
		return
	}
	req.StartDate = startDate
	req.EndDate = endDate

	resp, err := s.invoiceSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Get Invoice
// @Tags         invoices
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  invoicedomain.Invoice
// @Router       /invoices/{id} [get]
func (s *Server) GetInvoice(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	resp, err := s.invoiceSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Get Draft Invoice
// @Description  Resolve an invoice only while it is still a draft
// @Tags         invoices
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  invoicedomain.Invoice
// @Router       /invoices/{id}/draft [get]
func (s *Server) GetDraftInvoice(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	resp, err := s.invoiceSvc.GetDraftByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateInvoiceRequest struct {
	ClientID     *string              `json:"client_id"`
	IssueDate    *string              `json:"issue_date"`
	DueDate      *string              `json:"due_date"`
	TaxRate      *decimal.Decimal     `json:"tax_rate"`
	Notes        *string              `json:"notes"`
	Currency     *string              `json:"currency"`
	ExchangeRate *decimal.Decimal     `json:"exchange_rate"`
	Items        []invoiceItemRequest `json:"items"`
}

// @Summary      Update Invoice
// @Description  Full edit of a non-finalized invoice
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id       path  string                true  "Invoice ID"
// @Param        request  body  updateInvoiceRequest  true  "Update Invoice Request"
// @Success      200  {object}  invoicedomain.Invoice
// @Router       /invoices/{id} [put]
func (s *Server) UpdateInvoice(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req updateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	update := invoicedomain.UpdateInvoiceRequest{
		TaxRate:      req.TaxRate,
		Notes:        req.Notes,
		Currency:     req.Currency,
		ExchangeRate: req.ExchangeRate,
	}
	if req.ClientID != nil {
		clientID, err := snowflake.ParseString(strings.TrimSpace(*req.ClientID))
		if err != nil {
			AbortWithError(c, newValidationError("client_id", "invalid_client_id", "invalid client_id"))
			return
		}
		update.ClientID = &clientID
	}
	if req.IssueDate != nil {
		when, err := parseOptionalDate(*req.IssueDate)
		if err != nil || when == nil {
			AbortWithError(c, newValidationError("issue_date", "invalid_issue_date", "invalid issue_date"))
			return
		}
		update.IssueDate = when
	}
	if req.DueDate != nil {
		when, err := parseOptionalDate(*req.DueDate)
		if err != nil || when == nil {
			AbortWithError(c, newValidationError("due_date", "invalid_due_date", "invalid due_date"))
			return
		}
		update.DueDate = when
	}
	if req.Items != nil {
		update.Items = make([]invoicedomain.ItemInput, 0, len(req.Items))
		for _, item := range req.Items {
			update.Items = append(update.Items, invoicedomain.ItemInput{
				Description: strings.TrimSpace(item.Description),
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
			})
		}
	}

	resp, err := s.invoiceSvc.Update(c.Request.Context(), id, update)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateInvoiceStatusRequest struct {
	Status string  `json:"status"`
	PaidAt *string `json:"paid_at"`
}

// @Summary      Update Invoice Status
// @Description  Apply a state-machine transition
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id       path  string                      true  "Invoice ID"
// @Param        request  body  updateInvoiceStatusRequest  true  "Update Status Request"
// @Success      200  {object}  invoicedomain.Invoice
// @Router       /invoices/{id}/status [patch]
func (s *Server) UpdateInvoiceStatus(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req updateInvoiceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	status, ok := invoicedomain.ParseStatus(req.Status)
	if !ok {
		AbortWithError(c, newValidationError("status", "invalid_status", "invalid status"))
		return
	}

	var paidAt *time.Time
	if req.PaidAt != nil {
		when, err := parseOptionalDate(*req.PaidAt)
		if err != nil {
			AbortWithError(c, newValidationError("paid_at", "invalid_paid_at", "invalid paid_at"))
			return
		}
		paidAt = when
	}

	resp, err := s.invoiceSvc.UpdateStatus(c.Request.Context(), id, status, paidAt)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Delete Invoice
// @Description  Delete a draft invoice
// @Tags         invoices
// @Param        id   path  string  true  "Invoice ID"
// @Success      200
// @Router       /invoices/{id} [delete]
func (s *Server) DeleteInvoice(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if err := s.invoiceSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary      Preview Invoice Number
// @Description  Preview the next finalized number without reserving it
// @Tags         invoices
// @Produce      json
// @Success      200
// @Router       /invoices/number/preview [get]
func (s *Server) PreviewInvoiceNumber(c *gin.Context) {
	number, err := s.invoiceSvc.PreviewNumber(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"number": number}})
}

// @Summary      List Overdue Invoices
// @Tags         invoices
// @Produce      json
// @Success      200  {object}  []invoicedomain.Invoice
// @Router       /invoices/overdue [get]
func (s *Server) ListOverdueInvoices(c *gin.Context) {
	resp, err := s.invoiceSvc.ListOverdue(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Reconcile Overdue Statuses
// @Description  Flip past-due invoices to Overdue
// @Tags         invoices
// @Produce      json
// @Success      200
// @Router       /invoices/overdue/reconcile [post]
func (s *Server) ReconcileOverdueInvoices(c *gin.Context) {
	updated, err := s.invoiceSvc.ReconcileOverdueStatuses(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"updated": updated}})
}

// @Summary      Invoice Summary
// @Description  Aggregate dashboard metrics
// @Tags         invoices
// @Produce      json
// @Success      200  {object}  invoicedomain.Summary
// @Router       /invoices/summary [get]
func (s *Server) GetInvoiceSummary(c *gin.Context) {
	resp, err := s.invoiceSvc.GetSummary(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type exportInvoicesRequest struct {
	IDs []string `json:"ids"`
}

// @Summary      Export Invoices CSV
// @Description  Download invoices as a two-section CSV flat file
// @Tags         invoices
// @Accept       json
// @Produce      text/csv
// @Param        request  body  exportInvoicesRequest  true  "Export Request"
// @Success      200
// @Router       /invoices/export [post]
func (s *Server) ExportInvoicesCSV(c *gin.Context) {
	var req exportInvoicesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ids := make([]snowflake.ID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := snowflake.ParseString(strings.TrimSpace(raw))
		if err != nil {
			AbortWithError(c, newValidationError("ids", "invalid_id", "invalid id"))
			return
		}
		ids = append(ids, id)
	}

	data, err := s.transcoder.Export(c.Request.Context(), ids)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	filename := fmt.Sprintf("invoices-%s.csv", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

// @Summary      Import Invoices CSV
// @Description  Upload a two-section CSV flat file
// @Tags         invoices
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  true  "CSV file"
// @Success      200
// @Router       /invoices/import [post]
func (s *Server) ImportInvoicesCSV(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		AbortWithError(c, newValidationError("file", "missing_file", "file is required"))
		return
	}
	reader, err := file.Open()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	imported, err := s.transcoder.Import(c.Request.Context(), data)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"imported": imported}})
}
