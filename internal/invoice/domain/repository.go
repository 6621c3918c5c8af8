package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository isolates invoice persistence. Methods take the handle they
// should run on so callers can pass an open transaction.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, inv *Invoice) error
	Update(ctx context.Context, db *gorm.DB, inv *Invoice) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	// FindByID loads one invoice; withAssociations preloads client and items.
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, withAssociations bool) (*Invoice, error)
	// MaxNumberWithPrefix returns the lexicographically greatest invoice
	// number sharing the prefix, or "" when none exists.
	MaxNumberWithPrefix(ctx context.Context, db *gorm.DB, prefix string) (string, error)

	InsertItems(ctx context.Context, db *gorm.DB, items []InvoiceItem) error
	DeleteItemsByInvoiceID(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) error

	List(ctx context.Context, db *gorm.DB, req ListInvoiceRequest) ([]Invoice, int64, error)
	ListOverdue(ctx context.Context, db *gorm.DB, now time.Time) ([]Invoice, error)
	MarkOverdue(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)
	Summarize(ctx context.Context, db *gorm.DB) (Summary, error)
}
