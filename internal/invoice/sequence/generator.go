// Package sequence issues invoice numbers.
//
// Finalized numbers follow INV-{yyyyMMdd}-{seq} with a zero-padded,
// per-day sequence. Allocation goes through a per-day counter row updated
// inside the caller's transaction, so the row lock held by the UPDATE
// serializes concurrent writers until commit. Draft numbers come from a
// random namespace that can never collide with the dated format.
package sequence

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/invoro/invoro/internal/clock"
	invoicedomain "github.com/invoro/invoro/internal/invoice/domain"
	"gorm.io/gorm"
)

const (
	finalizedPrefix = "INV"
	draftPrefix     = "DRAFT"
)

// Counter is the per-day allocation row. NextSeq holds the last sequence
// handed out for the day.
type Counter struct {
	Day       string    `gorm:"primaryKey;type:text"`
	NextSeq   int64     `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName sets the database table name.
func (Counter) TableName() string { return "invoice_sequences" }

type Generator struct {
	db    *gorm.DB
	clock clock.Clock
	repo  invoicedomain.Repository
}

func New(db *gorm.DB, clk clock.Clock, repo invoicedomain.Repository) *Generator {
	return &Generator{db: db, clock: clk, repo: repo}
}

// Peek previews the next finalized number without reserving it. Two
// concurrent callers may see the same preview; only Next allocates.
func (g *Generator) Peek(ctx context.Context) (string, error) {
	day := g.day()
	last, err := g.lastIssued(ctx, g.db, day)
	if err != nil {
		return "", err
	}
	return format(day, last+1), nil
}

// Next allocates the next finalized number inside tx. The allocation
// becomes visible to other writers only when tx commits; on rollback the
// counter increment rolls back with it, so aborted creates leave no gap.
func (g *Generator) Next(ctx context.Context, tx *gorm.DB) (string, error) {
	day := g.day()
	now := g.clock.Now()

	result := tx.WithContext(ctx).Exec(
		`UPDATE invoice_sequences SET next_seq = next_seq + 1, updated_at = ? WHERE day = ?`,
		now, day,
	)
	if result.Error != nil {
		return "", result.Error
	}

	if result.RowsAffected == 0 {
		// First allocation of the day: seed from the greatest number already
		// stored for this prefix so imports and historical rows are honored.
		last, err := g.lastIssued(ctx, tx, day)
		if err != nil {
			return "", err
		}
		seed := last + 1

		inserted := tx.WithContext(ctx).Exec(
			`INSERT INTO invoice_sequences (day, next_seq, updated_at) VALUES (?, ?, ?) ON CONFLICT (day) DO NOTHING`,
			day, seed, now,
		)
		if inserted.Error != nil {
			return "", inserted.Error
		}
		if inserted.RowsAffected > 0 {
			return format(day, seed), nil
		}
		// Lost the seeding race; fall through to the counter row.
		if err := tx.WithContext(ctx).Exec(
			`UPDATE invoice_sequences SET next_seq = next_seq + 1, updated_at = ? WHERE day = ?`,
			now, day,
		).Error; err != nil {
			return "", err
		}
	}

	var seq int64
	if err := tx.WithContext(ctx).Raw(
		`SELECT next_seq FROM invoice_sequences WHERE day = ?`, day,
	).Scan(&seq).Error; err != nil {
		return "", err
	}
	return format(day, seq), nil
}

// Draft produces a placeholder number for unfinalized invoices. The result
// never matches INV-\d{8}-\d{4}.
func (g *Generator) Draft() string {
	entropy := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("%s-%s", draftPrefix, entropy[:8])
}

func (g *Generator) day() string {
	return g.clock.Now().UTC().Format("20060102")
}

func (g *Generator) lastIssued(ctx context.Context, db *gorm.DB, day string) (int64, error) {
	prefix := fmt.Sprintf("%s-%s-", finalizedPrefix, day)
	max, err := g.repo.MaxNumberWithPrefix(ctx, db, prefix)
	if err != nil {
		return 0, err
	}
	if max == "" {
		return 0, nil
	}
	return parseSeq(max, prefix), nil
}

// format zero-pads to four digits; past 9999 the number simply widens, which
// keeps uniqueness at the cost of fixed width.
func format(day string, seq int64) string {
	return fmt.Sprintf("%s-%s-%04d", finalizedPrefix, day, seq)
}

// parseSeq extracts the trailing sequence, returning 0 when the tail is not
// a plain number.
func parseSeq(number, prefix string) int64 {
	tail := strings.TrimPrefix(number, prefix)
	if tail == number || tail == "" {
		return 0
	}
	seq, err := strconv.ParseInt(tail, 10, 64)
	if err != nil || seq < 0 {
		return 0
	}
	return seq
}
