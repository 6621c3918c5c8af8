// Package scheduler runs the periodic overdue-status reconciliation sweep.
package scheduler

import (
	"context"
	"time"

	"github.com/invoro/invoro/internal/config"
	invoicedomain "github.com/invoro/invoro/internal/invoice/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Scheduler struct {
	log      *zap.Logger
	invoices invoicedomain.Service
	interval time.Duration
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Invoices invoicedomain.Service
	Config   config.Config
}

func New(p Params) *Scheduler {
	interval := p.Config.ReconcileInterval
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		log:      p.Log.Named("scheduler"),
		invoices: p.Invoices,
		interval: interval,
	}
}

// RunForever sweeps on a fixed interval until the context is cancelled. A
// failed sweep is logged and retried on the next tick.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("overdue reconciliation failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single reconciliation sweep.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	updated, err := s.invoices.ReconcileOverdueStatuses(ctx)
	if err != nil {
		return err
	}
	if updated > 0 {
		s.log.Info("reconciliation sweep finished", zap.Int64("updated", updated))
	}
	return nil
}
