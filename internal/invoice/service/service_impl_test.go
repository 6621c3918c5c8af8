package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	clientdomain "github.com/invoro/invoro/internal/client/domain"
	"github.com/invoro/invoro/internal/clock"
	"github.com/invoro/invoro/internal/events"
	invoicedomain "github.com/invoro/invoro/internal/invoice/domain"
	"github.com/invoro/invoro/internal/invoice/sequence"
	"github.com/invoro/invoro/pkg/db/pagination"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testInstant = time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

func setupInvoiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&clientdomain.Client{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
		&sequence.Counter{},
		&events.Record{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) invoicedomain.Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.Fixed{T: testInstant},
	})
}

func insertClient(t *testing.T, db *gorm.DB, id snowflake.ID, name string) {
	t.Helper()
	err := db.Create(&clientdomain.Client{
		ID:        id,
		Name:      name,
		Email:     strings.ToLower(name) + "@example.com",
		CreatedAt: testInstant,
		UpdatedAt: testInstant,
	}).Error
	if err != nil {
		t.Fatalf("insert client: %v", err)
	}
}

func standardItems() []invoicedomain.ItemInput {
	return []invoicedomain.ItemInput{
		{Description: "Consulting", Quantity: decimal.NewFromInt(3), UnitPrice: decimal.NewFromInt(10)},
		{Description: "Setup fee", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(50)},
	}
}

func TestCreateAssignsSequentialNumbers(t *testing.T) {
	db := setupInvoiceTestDB(t)
	svc := newTestService(t, db)
	insertClient(t, db, 1, "Acme")

	first, err := svc.Create(context.Background(), invoicedomain.CreateInvoiceRequest{
		ClientID: 1,
		TaxRate:  decimal.NewFromInt(10),
		Items:    standardItems(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.Number != "INV-20260210-0001" {
		t.Fatalf("expected INV-20260210-0001, got %s", first.Number)
	}
	if first.Status != invoicedomain.StatusPending {
		t.Fatalf("expected Pending, got %s", first.Status)
	}
	if got := first.Subtotal.String(); got != "80" {
		t.Fatalf("expected subtotal 80, got %s", got)
	}
	if got := first.TaxAmount.String(); got != "8" {
		t.Fatalf("expected tax 8, got %s", got)
	}
	if got := first.Total.String(); got != "88" {
		t.Fatalf("expected total 88, got %s", got)
	}
	if len(first.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(first.Items))
	}

	second, err := svc.Create(context.Background(), invoicedomain.CreateInvoiceRequest{
		ClientID: 1,
		Items:    standardItems(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if second.Number != "INV-20260210-0002" {
		t.Fatalf("expected INV-20260210-0002, got %s", second.Number)
	}
}

func TestCreateDefaultsDates(t *testing.T) {
	db := setupInvoiceTestDB(t)
	svc := newTestService(t, db)
	insertClient(t, db, 1, "Acme")

	inv, err := svc.Create(context.Background(), invoicedomain.CreateInvoiceRequest{
		ClientID: 1,
		Items:    standardItems(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !inv.IssueDate.Equal(testInstant) {
		t.Fatalf("expected issue date %s, got %s", testInstant, inv.IssueDate)
	}
	if want := testInstant.AddDate(0, 0, 30); !inv.DueDate.Equal(want) {
		t.Fatalf("expected due date %s, got %s", want, inv.DueDate)
	}
	if inv.Currency != "USD" {
		t.Fatalf("expected currency USD, got %s", inv.Currency)
	}
	if got := inv.ExchangeRate.String(); got != "1" {
		t.Fatalf("expected exchange rate 1, got %s", got)
	}
}

func TestCreateDraft(t *testing.T) {
	db := setupInvoiceTestDB(t)
	svc := newTestService(t, db)
	insertClient(t, db, 1, "Acme")

	inv, err := svc.Create(context.Background(), invoicedomain.CreateInvoiceRequest{
		ClientID: 1,
		Draft:    true,
		Items:    standardItems(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if inv.Status != invoicedomain.StatusDraft {
		t.Fatalf("expected Draft, got %s", inv.Status)
	}
	if !strings.HasPrefix(inv.Number, "DRAFT-") {
		t.Fatalf("expected DRAFT- number, got %s", inv.Number)
	}

	// Drafts never consume a finalized sequence slot.
	number, err := svc.PreviewNumber(context.Background())
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if number != "INV-20260210-0001" {
		t.Fatalf("expected preview INV-20260210-0001, got %s", number)
	}
}

func TestCreateUnknownClient(t *testing.T) {
	svc := newTestService(t, setupInvoiceTestDB(t))

	_, err := svc.Create(context.Background(), invoicedomain.CreateInvoiceRequest{
		ClientID: 999,
		Items:    standardItems(),
	})
	if !errors.Is(err, invoicedomain.ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound, got %v", err)
	}
}

func TestCreateRejectsInvalidItems(t *testing.T) {
	db := setupInvoiceTestDB(t)
	svc := newTestService(t, db)
	insertClient(t, db, 1, "Acme")

	_, err := svc.Create(context.Background(), invoicedomain.CreateInvoiceRequest{
		ClientID: 1,
		Items: []invoicedomain.ItemInput{
			{Description: "", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(5)},
		},
	})
	if !errors.Is(err, invoicedomain.ErrInvalidItem) {
		t.Fatalf("expected ErrInvalidItem for empty description, got %v", err)
	}

	_, err = svc.Create(context.Background(), invoicedomain.CreateInvoiceRequest{
		ClientID: 1,
		Items: []invoicedomain.ItemInput{
			{Description: "Refund", Quantity: decimal.NewFromInt(-1), UnitPrice: decimal.NewFromInt(5)},
		},
	})
	if !errors.Is(err, invoicedomain.ErrInvalidItem) {
		t.Fatalf("expected ErrInvalidItem for negative quantity, got %v", err)
	}
}

func TestUpdateReplacesItemsWholesale(t *testing.T) {
	db := setupInvoiceTestDB(t)
	svc := newTestService(t, db)
	insertClient(t, db, 1, "Acme")

	inv, err := svc.Create(context.Background(), invoicedomain.CreateInvoiceRequest{
		ClientID: 1,
		TaxRate:  decimal.NewFromInt(10),
		Items:    standardItems(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.Update(context.Background(), inv.ID, invoicedomain.UpdateInvoiceRequest{
		Items: []invoicedomain.ItemInput{
			{Description: "Retainer", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(100)},
		},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(updated.Items) != 1 {
		t.Fatalf("expected 1 item after replacement, got %d", len(updated.Items))
	}
	if got := updated.Subtotal.String(); got != "200" {
		t.Fatalf("expected subtotal 200, got %s", got)
	}
	if got := updated.Total.String(); got != "220" {
		t.Fatalf("expected total 220, got %s", got)
	}

	var orphans int64
	if err := db.Model(&invoicedomain.InvoiceItem{}).Where("invoice_id = ?", inv.ID).Count(&orphans).Error; err != nil {
		t.Fatalf("count items: %v", err)
	}
	if orphans != 1 {
		t.Fatalf("expected old items to be discarded, found %d rows", orphans)
	}
}

func TestUpdateFinalizedRejected(t *testing.T) {
	db := setupInvoiceTestDB(t)
	svc := newTestService(t, db)
	insertClient(t, db, 1, "Acme")

	inv, err := svc.Create(context.Background(), invoicedomain.CreateInvoiceRequest{
		ClientID: 1,
		Items:    standardItems(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), inv.ID, invoicedomain.StatusPaid, nil); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	notes := "late edit"
	_, err = svc.Update(context.Background(), inv.ID, invoicedomain.UpdateInvoiceRequest{Notes: &notes})
	if !errors.Is(err, invoicedomain.ErrInvoiceFinalized) {
		t.Fatalf("expected ErrInvoiceFinalized, got %v", err)
	}
}

func TestUpdateStatusPaidManagesPaidAt(t *testing.T) {
	db := setupInvoiceTestDB(t)
	svc := newTestService(t, db)
	insertClient(t, db, 1, "Acme")

	inv, err := svc.Create(context.Background(), invoicedomain.CreateInvoiceRequest{
		ClientID: 1,
		Items:    standardItems(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	paid, err := svc.UpdateStatus(context.Background(), inv.ID, invoicedomain.StatusPaid, nil)
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if paid.PaidAt == nil || !paid.PaidAt.Equal(testInstant) {
		t.Fatalf("expected paid_at %s, got %v", testInstant, paid.PaidAt)
	}

	reopened, err := svc.UpdateStatus(context.Background(), inv.ID, invoicedomain.StatusPending, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.PaidAt != nil {
		t.Fatalf("expected paid_at to clear on leaving Paid, got %v", reopened.PaidAt)
	}

	when := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	explicit, err := svc.UpdateStatus(context.Background(), inv.ID, invoicedomain.StatusPaid, &when)
	if err != nil {
		t.Fatalf("mark paid with explicit time: %v", err)
	}
	if explicit.PaidAt == nil || !explicit.PaidAt.Equal(when) {
		t.Fatalf("expected explicit paid_at %s, got %v", when, explicit.PaidAt)
	}
}

func TestUpdateStatusCancelledIsTerminal(t *testing.T) {
	db := setupInvoiceTestDB(t)
	svc := newTestService(t, db)
	insertClient(t, db, 1, "Acme")

	inv, err := svc.Create(context.Background(), invoicedomain.CreateInvoiceRequest{
		ClientID: 1,
		Items:    standardItems(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), inv.ID, invoicedomain.StatusCancelled, nil); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err = svc.UpdateStatus(context.Background(), inv.ID, invoicedomain.StatusPending, nil)
	if !errors.Is(err, invoicedomain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	// A rejected transition leaves the row untouched.
	current, err := svc.GetByID(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if current.Status != invoicedomain.StatusCancelled {
		t.Fatalf("expected status to remain Cancelled, got %s", current.Status)
	}
}

func TestUpdateStatusUnknownStatus(t *testing.T) {
	svc := newTestService(t, setupInvoiceTestDB(t))

	_, err := svc.UpdateStatus(context.Background(), 1, "Bogus", nil)
	if !errors.Is(err, invoicedomain.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestDeleteDraftOnly(t *testing.T) {
	db := setupInvoiceTestDB(t)
	svc := newTestService(t, db)
	insertClient(t, db, 1, "Acme")

	pending, err := svc.Create(context.Background(), invoicedomain.CreateInvoiceRequest{
		ClientID: 1,
		Items:    standardItems(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(context.Background(), pending.ID); !errors.Is(err, invoicedomain.ErrInvoiceNotDraft) {
		t.Fatalf("expected ErrInvoiceNotDraft, got %v", err)
	}

	draft, err := svc.Create(context.Background(), invoicedomain.CreateInvoiceRequest{
		ClientID: 1,
		Draft:    true,
		Items:    standardItems(),
	})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	if err := svc.Delete(context.Background(), draft.ID); err != nil {
		t.Fatalf("delete draft: %v", err)
	}

	if _, err := svc.GetByID(context.Background(), draft.ID); !errors.Is(err, invoicedomain.ErrInvoiceNotFound) {
		t.Fatalf("expected ErrInvoiceNotFound after delete, got %v", err)
	}
	var items int64
	if err := db.Model(&invoicedomain.InvoiceItem{}).Where("invoice_id = ?", draft.ID).Count(&items).Error; err != nil {
		t.Fatalf("count items: %v", err)
	}
	if items != 0 {
		t.Fatalf("expected items to be removed with the draft, found %d", items)
	}
}

func TestGetDraftByID(t *testing.T) {
	db := setupInvoiceTestDB(t)
	svc := newTestService(t, db)
	insertClient(t, db, 1, "Acme")

	draft, err := svc.Create(context.Background(), invoicedomain.CreateInvoiceRequest{
		ClientID: 1,
		Draft:    true,
		Items:    standardItems(),
	})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	if _, err := svc.GetDraftByID(context.Background(), draft.ID); err != nil {
		t.Fatalf("get draft: %v", err)
	}

	pending, err := svc.Create(context.Background(), invoicedomain.CreateInvoiceRequest{
		ClientID: 1,
		Items:    standardItems(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.GetDraftByID(context.Background(), pending.ID); !errors.Is(err, invoicedomain.ErrInvoiceNotFound) {
		t.Fatalf("expected ErrInvoiceNotFound for non-draft, got %v", err)
	}
}

func TestListFilters(t *testing.T) {
	db := setupInvoiceTestDB(t)
	svc := newTestService(t, db)
	insertClient(t, db, 1, "Acme")
	insertClient(t, db, 2, "Globex")

	mustCreate := func(clientID snowflake.ID, issue time.Time, draft bool) *invoicedomain.Invoice {
		inv, err := svc.Create(context.Background(), invoicedomain.CreateInvoiceRequest{
			ClientID:  clientID,
			IssueDate: issue,
			DueDate:   issue.AddDate(0, 0, 30),
			Draft:     draft,
			Items:     standardItems(),
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		return inv
	}

	jan := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 5, 12, 0, 0, 0, time.UTC)
	mustCreate(1, jan, false)
	mustCreate(2, feb, false)
	mustCreate(1, feb, true)

	// Drafts are hidden unless asked for.
	resp, err := svc.List(context.Background(), invoicedomain.ListInvoiceRequest{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if resp.TotalCount != 2 {
		t.Fatalf("expected 2 non-draft invoices, got %d", resp.TotalCount)
	}

	resp, err = svc.List(context.Background(), invoicedomain.ListInvoiceRequest{IncludeDrafts: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if resp.TotalCount != 3 {
		t.Fatalf("expected 3 invoices with drafts, got %d", resp.TotalCount)
	}

	// An explicit status filter overrides the draft toggle.
	draftStatus := invoicedomain.StatusDraft
	resp, err = svc.List(context.Background(), invoicedomain.ListInvoiceRequest{Status: &draftStatus})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if resp.TotalCount != 1 {
		t.Fatalf("expected 1 draft, got %d", resp.TotalCount)
	}

	// Date range bounds are inclusive on whole days.
	start := time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)
	resp, err = svc.List(context.Background(), invoicedomain.ListInvoiceRequest{
		StartDate: &start,
		EndDate:   &start,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if resp.TotalCount != 1 {
		t.Fatalf("expected 1 invoice issued on Feb 5, got %d", resp.TotalCount)
	}

	// Search matches the client name case-insensitively.
	resp, err = svc.List(context.Background(), invoicedomain.ListInvoiceRequest{Search: "globex"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if resp.TotalCount != 1 {
		t.Fatalf("expected 1 match for globex, got %d", resp.TotalCount)
	}
	if resp.Invoices[0].ClientID != 2 {
		t.Fatalf("expected Globex invoice, got client %d", resp.Invoices[0].ClientID)
	}
}

func TestListOrderingAndPagination(t *testing.T) {
	db := setupInvoiceTestDB(t)
	svc := newTestService(t, db)
	insertClient(t, db, 1, "Acme")

	for day := 1; day <= 5; day++ {
		issue := time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC)
		_, err := svc.Create(context.Background(), invoicedomain.CreateInvoiceRequest{
			ClientID:  1,
			IssueDate: issue,
			DueDate:   issue.AddDate(0, 0, 30),
			Items:     standardItems(),
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	resp, err := svc.List(context.Background(), invoicedomain.ListInvoiceRequest{
		Pagination: pagination.Pagination{Page: 1, Limit: 2},
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if resp.TotalCount != 5 {
		t.Fatalf("expected total 5, got %d", resp.TotalCount)
	}
	if len(resp.Invoices) != 2 {
		t.Fatalf("expected page of 2, got %d", len(resp.Invoices))
	}
	// Default ordering is newest issue date first.
	if day := resp.Invoices[0].IssueDate.UTC().Day(); day != 5 {
		t.Fatalf("expected newest invoice first, got day %d", day)
	}

	second, err := svc.List(context.Background(), invoicedomain.ListInvoiceRequest{
		Pagination: pagination.Pagination{Page: 2, Limit: 2},
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(second.Invoices) != 2 {
		t.Fatalf("expected page of 2, got %d", len(second.Invoices))
	}
	if second.Invoices[0].ID == resp.Invoices[0].ID || second.Invoices[0].ID == resp.Invoices[1].ID {
		t.Fatal("expected second page to contain different invoices")
	}

	// Out-of-range page inputs fall back to defaults.
	coerced, err := svc.List(context.Background(), invoicedomain.ListInvoiceRequest{
		Pagination: pagination.Pagination{Page: -3, Limit: 0},
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if coerced.Page != 1 || coerced.Limit != 20 {
		t.Fatalf("expected page 1 limit 20, got page %d limit %d", coerced.Page, coerced.Limit)
	}
}

func TestReconcileOverdueStatuses(t *testing.T) {
	db := setupInvoiceTestDB(t)
	svc := newTestService(t, db)
	insertClient(t, db, 1, "Acme")

	pastIssue := testInstant.AddDate(0, -2, 0)
	pastDue := testInstant.AddDate(0, -1, 0)

	mustCreate := func() *invoicedomain.Invoice {
		inv, err := svc.Create(context.Background(), invoicedomain.CreateInvoiceRequest{
			ClientID:  1,
			IssueDate: pastIssue,
			DueDate:   pastDue,
			Items:     standardItems(),
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		return inv
	}

	stale := mustCreate()
	paid := mustCreate()
	cancelled := mustCreate()
	if _, err := svc.UpdateStatus(context.Background(), paid.ID, invoicedomain.StatusPaid, nil); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), cancelled.ID, invoicedomain.StatusCancelled, nil); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// The read side reports without mutating.
	overdue, err := svc.ListOverdue(context.Background())
	if err != nil {
		t.Fatalf("list overdue: %v", err)
	}
	if len(overdue) != 1 || overdue[0].ID != stale.ID {
		t.Fatalf("expected only the stale pending invoice, got %d rows", len(overdue))
	}
	current, err := svc.GetByID(context.Background(), stale.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if current.Status != invoicedomain.StatusPending {
		t.Fatalf("expected ListOverdue to leave status Pending, got %s", current.Status)
	}

	updated, err := svc.ReconcileOverdueStatuses(context.Background())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected 1 reconciled invoice, got %d", updated)
	}
	current, err = svc.GetByID(context.Background(), stale.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if current.Status != invoicedomain.StatusOverdue {
		t.Fatalf("expected Overdue after reconcile, got %s", current.Status)
	}

	// Idempotent: a second sweep finds nothing.
	updated, err = svc.ReconcileOverdueStatuses(context.Background())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if updated != 0 {
		t.Fatalf("expected idempotent sweep, got %d updates", updated)
	}

	for _, id := range []snowflake.ID{paid.ID, cancelled.ID} {
		inv, err := svc.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if inv.Status == invoicedomain.StatusOverdue {
			t.Fatalf("expected invoice %d to be untouched by reconcile", id)
		}
	}
}

func TestGetSummary(t *testing.T) {
	db := setupInvoiceTestDB(t)
	svc := newTestService(t, db)
	insertClient(t, db, 1, "Acme")

	mustCreate := func() *invoicedomain.Invoice {
		inv, err := svc.Create(context.Background(), invoicedomain.CreateInvoiceRequest{
			ClientID: 1,
			TaxRate:  decimal.NewFromInt(10),
			Items:    standardItems(),
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		return inv
	}

	mustCreate()
	paid := mustCreate()
	if _, err := svc.UpdateStatus(context.Background(), paid.ID, invoicedomain.StatusPaid, nil); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	summary, err := svc.GetSummary(context.Background())
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.TotalInvoices != 2 {
		t.Fatalf("expected 2 invoices, got %d", summary.TotalInvoices)
	}
	if got := summary.Outstanding.String(); got != "88" {
		t.Fatalf("expected outstanding 88, got %s", got)
	}
	if got := summary.PaidAmount.String(); got != "88" {
		t.Fatalf("expected paid amount 88, got %s", got)
	}
}

func TestLifecycleScenario(t *testing.T) {
	db := setupInvoiceTestDB(t)
	svc := newTestService(t, db)
	insertClient(t, db, 1, "Acme")

	inv, err := svc.Create(context.Background(), invoicedomain.CreateInvoiceRequest{
		ClientID: 1,
		TaxRate:  decimal.NewFromInt(10),
		Items:    standardItems(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if inv.Status != invoicedomain.StatusPending || inv.Number != "INV-20260210-0001" {
		t.Fatalf("unexpected initial state %s %s", inv.Status, inv.Number)
	}
	if inv.Subtotal.String() != "80" || inv.TaxAmount.String() != "8" || inv.Total.String() != "88" {
		t.Fatalf("unexpected totals %s/%s/%s", inv.Subtotal, inv.TaxAmount, inv.Total)
	}

	paid, err := svc.UpdateStatus(context.Background(), inv.ID, invoicedomain.StatusPaid, nil)
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if paid.PaidAt == nil {
		t.Fatal("expected paid_at to be set")
	}

	if err := svc.Delete(context.Background(), inv.ID); !errors.Is(err, invoicedomain.ErrInvoiceNotDraft) {
		t.Fatalf("expected delete of paid invoice to fail, got %v", err)
	}

	// Paid is not terminal: cancelling still works.
	if _, err := svc.UpdateStatus(context.Background(), inv.ID, invoicedomain.StatusCancelled, nil); err != nil {
		t.Fatalf("cancel paid invoice: %v", err)
	}

	_, err = svc.UpdateStatus(context.Background(), inv.ID, invoicedomain.StatusPending, nil)
	if !errors.Is(err, invoicedomain.ErrInvalidTransition) {
		t.Fatalf("expected Cancelled to be terminal, got %v", err)
	}
}

func TestCreateWritesOutboxEvent(t *testing.T) {
	db := setupInvoiceTestDB(t)
	svc := newTestService(t, db)
	insertClient(t, db, 1, "Acme")

	inv, err := svc.Create(context.Background(), invoicedomain.CreateInvoiceRequest{
		ClientID: 1,
		Items:    standardItems(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var count int64
	err = db.Model(&events.Record{}).
		Where("invoice_id = ? AND event_type = ?", inv.ID, events.EventInvoiceCreated).
		Count(&count).Error
	if err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 created event, got %d", count)
	}
}
