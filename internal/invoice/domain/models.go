// Package domain contains persistence models and the service contract for
// the invoice lifecycle.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	clientdomain "github.com/invoro/invoro/internal/client/domain"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents invoice lifecycle states. The string values are
// part of the CSV wire contract and must not change.
type InvoiceStatus string

const (
	StatusDraft         InvoiceStatus = "Draft"
	StatusPending       InvoiceStatus = "Pending"
	StatusPaid          InvoiceStatus = "Paid"
	StatusOverdue       InvoiceStatus = "Overdue"
	StatusCancelled     InvoiceStatus = "Cancelled"
	StatusPartiallyPaid InvoiceStatus = "PartiallyPaid"
)

var allStatuses = []InvoiceStatus{
	StatusDraft,
	StatusPending,
	StatusPaid,
	StatusOverdue,
	StatusCancelled,
	StatusPartiallyPaid,
}

// ParseStatus resolves a status name case-insensitively. The bool reports
// whether the name was recognized.
func ParseStatus(name string) (InvoiceStatus, bool) {
	name = strings.TrimSpace(name)
	for _, status := range allStatuses {
		if strings.EqualFold(name, string(status)) {
			return status, true
		}
	}
	return "", false
}

func (s InvoiceStatus) Valid() bool {
	for _, status := range allStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is permitted.
func (s InvoiceStatus) Terminal() bool { return s == StatusCancelled }

// Invoice represents a billable document issued to a client.
//
// Subtotal, TaxAmount and Total are derived from the item set and tax rate;
// they are recomputed on create and update and never mutated independently.
type Invoice struct {
	ID           snowflake.ID         `gorm:"primaryKey" json:"id"`
	Number       string               `gorm:"column:number;type:text;not null;uniqueIndex:ux_invoices_number" json:"invoice_number"`
	ClientID     snowflake.ID         `gorm:"not null;index" json:"client_id"`
	Client       *clientdomain.Client `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	IssueDate    time.Time            `gorm:"not null;index" json:"issue_date"`
	DueDate      time.Time            `gorm:"not null;index" json:"due_date"`
	Subtotal     decimal.Decimal      `gorm:"type:numeric(18,2);not null" json:"subtotal"`
	TaxRate      decimal.Decimal      `gorm:"type:numeric(7,4);not null" json:"tax_rate"`
	TaxAmount    decimal.Decimal      `gorm:"type:numeric(18,2);not null" json:"tax_amount"`
	Total        decimal.Decimal      `gorm:"type:numeric(18,2);not null" json:"total_amount"`
	Notes        string               `gorm:"type:text" json:"notes,omitempty"`
	Status       InvoiceStatus        `gorm:"type:text;not null;default:'Draft';index" json:"status"`
	PaidAt       *time.Time           `json:"paid_at,omitempty"`
	Currency     string               `gorm:"type:text;not null;default:'USD'" json:"currency"`
	ExchangeRate decimal.Decimal      `gorm:"type:numeric(18,8);not null;default:1" json:"exchange_rate"`
	CreatedAt    time.Time            `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time            `gorm:"not null" json:"updated_at"`
	Items        []InvoiceItem        `gorm:"foreignKey:InvoiceID" json:"items"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// RecalculateTotals derives line totals, subtotal, tax amount and total from
// the current item set. Monetary values round to 2 decimal places.
func (i *Invoice) RecalculateTotals() {
	subtotal := decimal.Zero
	for idx := range i.Items {
		item := &i.Items[idx]
		item.TotalPrice = item.Quantity.Mul(item.UnitPrice).Round(2)
		subtotal = subtotal.Add(item.TotalPrice)
	}
	i.Subtotal = subtotal.Round(2)
	i.TaxAmount = i.Subtotal.Mul(i.TaxRate).Div(decimal.NewFromInt(100)).Round(2)
	i.Total = i.Subtotal.Add(i.TaxAmount)
}

// CanTransitionTo reports whether the state machine permits moving to next.
// Cancelled is terminal; every other current state accepts any valid target.
func (i *Invoice) CanTransitionTo(next InvoiceStatus) bool {
	if !next.Valid() {
		return false
	}
	return !i.Status.Terminal()
}

// OverdueAsOf reports whether the invoice should be considered overdue at
// the given instant.
func (i *Invoice) OverdueAsOf(now time.Time) bool {
	if i.Status == StatusPaid || i.Status == StatusCancelled {
		return false
	}
	return i.DueDate.Before(now)
}

// InvoiceItem is one billable line owned by exactly one invoice.
type InvoiceItem struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceID   snowflake.ID    `gorm:"not null;index" json:"invoice_id"`
	Description string          `gorm:"type:text;not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"unit_price"`
	TotalPrice  decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"total_price"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }
