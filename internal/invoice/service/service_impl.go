// Package service implements the invoice lifecycle service.
package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	clientdomain "github.com/invoro/invoro/internal/client/domain"
	"github.com/invoro/invoro/internal/clock"
	"github.com/invoro/invoro/internal/events"
	invoicedomain "github.com/invoro/invoro/internal/invoice/domain"
	"github.com/invoro/invoro/internal/invoice/repository"
	"github.com/invoro/invoro/internal/invoice/sequence"
	"github.com/invoro/invoro/internal/observability/metrics"
	"github.com/invoro/invoro/pkg/db/pagination"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    invoicedomain.Repository
	numbers *sequence.Generator
	outbox  *events.Outbox
	metrics *metrics.LifecycleMetrics
}

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Metrics *metrics.LifecycleMetrics `optional:"true"`
}

func NewService(p ServiceParam) invoicedomain.Service {
	repo := repository.New()
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("invoice.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    repo,
		numbers: sequence.New(p.DB, p.Clock, repo),
		outbox:  events.NewOutbox(p.DB, p.GenID),
		metrics: p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (*invoicedomain.Invoice, error) {
	if err := validateItems(req.Items); err != nil {
		return nil, err
	}

	ok, err := s.clientExists(ctx, s.db, req.ClientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, invoicedomain.ErrClientNotFound
	}

	now := s.clock.Now()
	issueDate := req.IssueDate
	if issueDate.IsZero() {
		issueDate = now
	}
	dueDate := req.DueDate
	if dueDate.IsZero() {
		dueDate = issueDate.AddDate(0, 0, 30)
	}
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	exchangeRate := decimal.NewFromInt(1)
	if req.ExchangeRate != nil {
		exchangeRate = *req.ExchangeRate
	}

	inv := &invoicedomain.Invoice{
		ID:           s.genID.Generate(),
		ClientID:     req.ClientID,
		IssueDate:    issueDate,
		DueDate:      dueDate,
		TaxRate:      req.TaxRate,
		Notes:        req.Notes,
		Currency:     currency,
		ExchangeRate: exchangeRate,
		Status:       invoicedomain.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.Draft {
		inv.Status = invoicedomain.StatusDraft
	}
	inv.Items = s.buildItems(inv.ID, req.Items)
	inv.RecalculateTotals()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.Draft {
			inv.Number = s.numbers.Draft()
		} else {
			number, err := s.numbers.Next(ctx, tx)
			if err != nil {
				return err
			}
			inv.Number = number
		}

		if err := s.repo.Insert(ctx, tx, inv); err != nil {
			return err
		}
		if err := s.repo.InsertItems(ctx, tx, inv.Items); err != nil {
			return err
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			InvoiceID: inv.ID,
			Type:      events.EventInvoiceCreated,
			Payload: map[string]any{
				"number": inv.Number,
				"status": string(inv.Status),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.InvoiceCreated(string(inv.Status))
	s.log.Info("invoice created",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("number", inv.Number),
		zap.String("status", string(inv.Status)),
	)
	return s.reload(ctx, inv.ID)
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*invoicedomain.Invoice, error) {
	inv, err := s.repo.FindByID(ctx, s.db, id, true)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	return inv, nil
}

// GetDraftByID resolves an invoice only while it is still a draft.
func (s *Service) GetDraftByID(ctx context.Context, id snowflake.ID) (*invoicedomain.Invoice, error) {
	inv, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != invoicedomain.StatusDraft {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	return inv, nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	invoices, total, err := s.repo.List(ctx, s.db, req)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}
	page := req.Pagination.Normalize()
	return invoicedomain.ListInvoiceResponse{
		PageInfo: pagination.PageInfo{
			Page:       page.Page,
			Limit:      page.Limit,
			TotalCount: total,
		},
		Invoices: invoices,
	}, nil
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req invoicedomain.UpdateInvoiceRequest) (*invoicedomain.Invoice, error) {
	if req.Items != nil {
		if err := validateItems(req.Items); err != nil {
			return nil, err
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := s.repo.FindByID(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if inv == nil {
			return invoicedomain.ErrInvoiceNotFound
		}
		if inv.Status == invoicedomain.StatusPaid || inv.Status == invoicedomain.StatusCancelled {
			return invoicedomain.ErrInvoiceFinalized
		}

		if req.ClientID != nil && *req.ClientID != inv.ClientID {
			ok, err := s.clientExists(ctx, tx, *req.ClientID)
			if err != nil {
				return err
			}
			if !ok {
				return invoicedomain.ErrClientNotFound
			}
			inv.ClientID = *req.ClientID
		}
		if req.IssueDate != nil {
			inv.IssueDate = *req.IssueDate
		}
		if req.DueDate != nil {
			inv.DueDate = *req.DueDate
		}
		if req.TaxRate != nil {
			inv.TaxRate = *req.TaxRate
		}
		if req.Notes != nil {
			inv.Notes = *req.Notes
		}
		if req.Currency != nil {
			inv.Currency = *req.Currency
		}
		if req.ExchangeRate != nil {
			inv.ExchangeRate = *req.ExchangeRate
		}

		if req.Items != nil {
			// Wholesale replacement: the old item set is discarded before the
			// new one is written, all within this transaction.
			if err := s.repo.DeleteItemsByInvoiceID(ctx, tx, inv.ID); err != nil {
				return err
			}
			inv.Items = s.buildItems(inv.ID, req.Items)
			if err := s.repo.InsertItems(ctx, tx, inv.Items); err != nil {
				return err
			}
		}

		inv.RecalculateTotals()
		inv.UpdatedAt = s.clock.Now()
		return s.repo.Update(ctx, tx, inv)
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, id)
}

func (s *Service) UpdateStatus(ctx context.Context, id snowflake.ID, status invoicedomain.InvoiceStatus, paidAt *time.Time) (*invoicedomain.Invoice, error) {
	if !status.Valid() {
		return nil, invoicedomain.ErrInvalidStatus
	}

	var from invoicedomain.InvoiceStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := s.repo.FindByID(ctx, tx, id, false)
		if err != nil {
			return err
		}
		if inv == nil {
			return invoicedomain.ErrInvoiceNotFound
		}
		if !inv.CanTransitionTo(status) {
			return invoicedomain.ErrInvalidTransition
		}

		from = inv.Status
		switch {
		case status == invoicedomain.StatusPaid:
			when := s.clock.Now()
			if paidAt != nil {
				when = *paidAt
			}
			inv.PaidAt = &when
		case from == invoicedomain.StatusPaid:
			// Re-opening a paid invoice clears the settlement timestamp.
			inv.PaidAt = nil
		}

		inv.Status = status
		inv.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, inv); err != nil {
			return err
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			InvoiceID: inv.ID,
			Type:      events.EventInvoiceStatusChanged,
			Payload: map[string]any{
				"from": string(from),
				"to":   string(status),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.StatusTransition(string(status))
	s.log.Info("invoice status changed",
		zap.String("invoice_id", id.String()),
		zap.String("from", string(from)),
		zap.String("to", string(status)),
	)
	return s.reload(ctx, id)
}

// Delete removes a draft and its items. Finalized invoices are never
// hard-deleted.
func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := s.repo.FindByID(ctx, tx, id, false)
		if err != nil {
			return err
		}
		if inv == nil {
			return invoicedomain.ErrInvoiceNotFound
		}
		if inv.Status != invoicedomain.StatusDraft {
			return invoicedomain.ErrInvoiceNotDraft
		}

		// Items first to satisfy the referential constraint.
		if err := s.repo.DeleteItemsByInvoiceID(ctx, tx, inv.ID); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, tx, inv.ID); err != nil {
			return err
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			InvoiceID: inv.ID,
			Type:      events.EventInvoiceDeleted,
			Payload:   map[string]any{"number": inv.Number},
		})
	})
	if err != nil {
		return err
	}
	s.log.Info("draft invoice deleted", zap.String("invoice_id", id.String()))
	return nil
}

func (s *Service) PreviewNumber(ctx context.Context) (string, error) {
	return s.numbers.Peek(ctx)
}

// ListOverdue is a pure read; it never corrects stale statuses. Use
// ReconcileOverdueStatuses for the write half.
func (s *Service) ListOverdue(ctx context.Context) ([]invoicedomain.Invoice, error) {
	return s.repo.ListOverdue(ctx, s.db, s.clock.Now())
}

// ReconcileOverdueStatuses flips past-due invoices that are neither Paid nor
// Cancelled to Overdue. The sweep is idempotent.
func (s *Service) ReconcileOverdueStatuses(ctx context.Context) (int64, error) {
	var updated int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		updated, err = s.repo.MarkOverdue(ctx, tx, s.clock.Now())
		return err
	})
	if err != nil {
		return 0, err
	}
	if updated > 0 {
		s.metrics.OverdueReconciled(updated)
		s.log.Info("overdue statuses reconciled", zap.Int64("updated", updated))
	}
	return updated, nil
}

func (s *Service) GetSummary(ctx context.Context) (invoicedomain.Summary, error) {
	return s.repo.Summarize(ctx, s.db)
}

func (s *Service) reload(ctx context.Context, id snowflake.ID) (*invoicedomain.Invoice, error) {
	inv, err := s.repo.FindByID(ctx, s.db, id, true)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	return inv, nil
}

func (s *Service) buildItems(invoiceID snowflake.ID, inputs []invoicedomain.ItemInput) []invoicedomain.InvoiceItem {
	items := make([]invoicedomain.InvoiceItem, 0, len(inputs))
	for _, input := range inputs {
		items = append(items, invoicedomain.InvoiceItem{
			ID:          s.genID.Generate(),
			InvoiceID:   invoiceID,
			Description: input.Description,
			Quantity:    input.Quantity,
			UnitPrice:   input.UnitPrice,
		})
	}
	return items
}

func (s *Service) clientExists(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	if id == 0 {
		return false, nil
	}
	var count int64
	err := db.WithContext(ctx).
		Model(&clientdomain.Client{}).
		Where("id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func validateItems(inputs []invoicedomain.ItemInput) error {
	for _, input := range inputs {
		if input.Description == "" {
			return invoicedomain.ErrInvalidItem
		}
		if input.Quantity.IsNegative() || input.UnitPrice.IsNegative() {
			return invoicedomain.ErrInvalidItem
		}
	}
	return nil
}
