package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/invoro/invoro/pkg/db/pagination"
	"github.com/shopspring/decimal"
)

// ItemInput is one requested invoice line.
type ItemInput struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type CreateInvoiceRequest struct {
	ClientID     snowflake.ID     `json:"client_id"`
	IssueDate    time.Time        `json:"issue_date"`
	DueDate      time.Time        `json:"due_date"`
	TaxRate      decimal.Decimal  `json:"tax_rate"`
	Notes        string           `json:"notes"`
	Currency     string           `json:"currency"`
	ExchangeRate *decimal.Decimal `json:"exchange_rate"`
	Draft        bool             `json:"draft"`
	Items        []ItemInput      `json:"items"`
}

// UpdateInvoiceRequest edits a non-finalized invoice. Nil fields are left
// untouched; a non-nil Items slice replaces the item set wholesale.
type UpdateInvoiceRequest struct {
	ClientID     *snowflake.ID    `json:"client_id"`
	IssueDate    *time.Time       `json:"issue_date"`
	DueDate      *time.Time       `json:"due_date"`
	TaxRate      *decimal.Decimal `json:"tax_rate"`
	Notes        *string          `json:"notes"`
	Currency     *string          `json:"currency"`
	ExchangeRate *decimal.Decimal `json:"exchange_rate"`
	Items        []ItemInput      `json:"items"`
}

type ListInvoiceRequest struct {
	pagination.Pagination
	Status        *InvoiceStatus
	StartDate     *time.Time
	EndDate       *time.Time
	Search        string
	IncludeDrafts bool
	SortField     string
	SortOrder     string
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

// StatusBreakdown is one dashboard aggregate bucket.
type StatusBreakdown struct {
	Status InvoiceStatus   `json:"status"`
	Count  int64           `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

type Summary struct {
	TotalInvoices int64             `json:"total_invoices"`
	Outstanding   decimal.Decimal   `json:"outstanding"`
	PaidAmount    decimal.Decimal   `json:"paid_amount"`
	ByStatus      []StatusBreakdown `json:"by_status"`
}

// Service owns the invoice lifecycle: numbering, state machine, filtered
// listing and overdue reconciliation.
type Service interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Invoice, error)
	GetDraftByID(ctx context.Context, id snowflake.ID) (*Invoice, error)
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateInvoiceRequest) (*Invoice, error)
	UpdateStatus(ctx context.Context, id snowflake.ID, status InvoiceStatus, paidAt *time.Time) (*Invoice, error)
	Delete(ctx context.Context, id snowflake.ID) error
	PreviewNumber(ctx context.Context) (string, error)
	ListOverdue(ctx context.Context) ([]Invoice, error)
	ReconcileOverdueStatuses(ctx context.Context) (int64, error)
	GetSummary(ctx context.Context) (Summary, error)
}

var (
	ErrInvoiceNotFound   = errors.New("invoice_not_found")
	ErrClientNotFound    = errors.New("client_not_found")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrInvalidTransition = errors.New("invalid_status_transition")
	ErrInvoiceNotDraft   = errors.New("invoice_not_draft")
	ErrInvoiceFinalized  = errors.New("invoice_finalized")
	ErrInvalidItem       = errors.New("invalid_invoice_item")
	ErrInvalidDates      = errors.New("invalid_invoice_dates")
)
