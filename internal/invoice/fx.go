package invoice

import (
	"github.com/invoro/invoro/internal/invoice/service"
	"github.com/invoro/invoro/internal/invoice/transcode"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(service.NewService),
	fx.Provide(transcode.New),
)
