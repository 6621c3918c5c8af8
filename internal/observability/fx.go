// Package observability aggregates logging and metrics wiring.
package observability

import (
	"github.com/invoro/invoro/internal/config"
	"github.com/invoro/invoro/internal/observability/logger"
	"github.com/invoro/invoro/internal/observability/metrics"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(func(cfg config.Config) logger.Config {
		return logger.Config{
			Environment: cfg.Environment,
			ServiceName: "invoro",
		}
	}),
	logger.Module,
	fx.Provide(func(cfg config.Config) *metrics.LifecycleMetrics {
		return metrics.LifecycleWithConfig(metrics.Config{
			ServiceName: "invoro",
			Environment: cfg.Environment,
		})
	}),
)
