// Package repository implements invoice persistence over GORM.
package repository

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/invoro/invoro/internal/invoice/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct{}

func New() invoicedomain.Repository {
	return &Repository{}
}

func (r *Repository) Insert(ctx context.Context, db *gorm.DB, inv *invoicedomain.Invoice) error {
	return db.WithContext(ctx).Omit(clause.Associations).Create(inv).Error
}

func (r *Repository) Update(ctx context.Context, db *gorm.DB, inv *invoicedomain.Invoice) error {
	return db.WithContext(ctx).Omit(clause.Associations).Save(inv).Error
}

func (r *Repository) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Delete(&invoicedomain.Invoice{}, "id = ?", id).Error
}

func (r *Repository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, withAssociations bool) (*invoicedomain.Invoice, error) {
	query := db.WithContext(ctx)
	if withAssociations {
		query = query.Preload("Client").Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("invoice_items.id ASC")
		})
	}

	var inv invoicedomain.Invoice
	err := query.First(&inv, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *Repository) MaxNumberWithPrefix(ctx context.Context, db *gorm.DB, prefix string) (string, error) {
	var number string
	err := db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Select("number").
		Where("number LIKE ?", prefix+"%").
		Order("number DESC").
		Limit(1).
		Scan(&number).Error
	if err != nil {
		return "", err
	}
	return number, nil
}

func (r *Repository) InsertItems(ctx context.Context, db *gorm.DB, items []invoicedomain.InvoiceItem) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *Repository) DeleteItemsByInvoiceID(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) error {
	return db.WithContext(ctx).Delete(&invoicedomain.InvoiceItem{}, "invoice_id = ?", invoiceID).Error
}

var sortColumns = map[string]string{
	"issue_date": "invoices.issue_date",
	"due_date":   "invoices.due_date",
	"number":     "invoices.number",
	"total":      "invoices.total",
	"status":     "invoices.status",
	"created_at": "invoices.created_at",
}

func (r *Repository) List(ctx context.Context, db *gorm.DB, req invoicedomain.ListInvoiceRequest) ([]invoicedomain.Invoice, int64, error) {
	page := req.Pagination.Normalize()

	query := db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Joins("LEFT JOIN clients ON clients.id = invoices.client_id")

	switch {
	case req.Status != nil:
		query = query.Where("invoices.status = ?", *req.Status)
	case !req.IncludeDrafts:
		query = query.Where("invoices.status <> ?", invoicedomain.StatusDraft)
	}

	if req.StartDate != nil {
		query = query.Where("invoices.issue_date >= ?", startOfDay(*req.StartDate))
	}
	if req.EndDate != nil {
		query = query.Where("invoices.issue_date <= ?", endOfDay(*req.EndDate))
	}
	if search := strings.TrimSpace(req.Search); search != "" {
		needle := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(invoices.number) LIKE ? OR LOWER(clients.name) LIKE ?", needle, needle)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var invoices []invoicedomain.Invoice
	err := query.
		Order(orderClause(req.SortField, req.SortOrder)).
		Offset(page.Offset()).
		Limit(page.Limit).
		Preload("Client").
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("invoice_items.id ASC")
		}).
		Find(&invoices).Error
	if err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

func (r *Repository) ListOverdue(ctx context.Context, db *gorm.DB, now time.Time) ([]invoicedomain.Invoice, error) {
	var invoices []invoicedomain.Invoice
	err := db.WithContext(ctx).
		Preload("Client").
		Preload("Items").
		Where("due_date < ? AND status NOT IN ?", now, []invoicedomain.InvoiceStatus{
			invoicedomain.StatusPaid,
			invoicedomain.StatusCancelled,
		}).
		Order("due_date ASC, id ASC").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *Repository) MarkOverdue(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	result := db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("due_date < ? AND status NOT IN ?", now, []invoicedomain.InvoiceStatus{
			invoicedomain.StatusPaid,
			invoicedomain.StatusCancelled,
			invoicedomain.StatusOverdue,
		}).
		Updates(map[string]any{
			"status":     invoicedomain.StatusOverdue,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

func (r *Repository) Summarize(ctx context.Context, db *gorm.DB) (invoicedomain.Summary, error) {
	var buckets []invoicedomain.StatusBreakdown
	err := db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Select("status, COUNT(1) AS count, COALESCE(SUM(total), 0) AS amount").
		Group("status").
		Scan(&buckets).Error
	if err != nil {
		return invoicedomain.Summary{}, err
	}

	sort.Slice(buckets, func(a, b int) bool {
		return buckets[a].Status < buckets[b].Status
	})

	summary := invoicedomain.Summary{
		Outstanding: decimal.Zero,
		PaidAmount:  decimal.Zero,
		ByStatus:    buckets,
	}
	for _, bucket := range buckets {
		summary.TotalInvoices += bucket.Count
		switch bucket.Status {
		case invoicedomain.StatusPending, invoicedomain.StatusOverdue, invoicedomain.StatusPartiallyPaid:
			summary.Outstanding = summary.Outstanding.Add(bucket.Amount)
		case invoicedomain.StatusPaid:
			summary.PaidAmount = summary.PaidAmount.Add(bucket.Amount)
		}
	}
	return summary, nil
}

func orderClause(field, order string) string {
	column, ok := sortColumns[strings.ToLower(strings.TrimSpace(field))]
	if !ok {
		// Deterministic default: newest issue date first, ties broken by id.
		return "invoices.issue_date DESC, invoices.id DESC"
	}
	direction := "ASC"
	if strings.EqualFold(strings.TrimSpace(order), "desc") {
		direction = "DESC"
	}
	return column + " " + direction + ", invoices.id DESC"
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).Add(24*time.Hour - time.Nanosecond)
}
