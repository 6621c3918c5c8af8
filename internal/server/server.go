// Package server exposes the invoice lifecycle over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	clientdomain "github.com/invoro/invoro/internal/client/domain"
	"github.com/invoro/invoro/internal/config"
	invoicedomain "github.com/invoro/invoro/internal/invoice/domain"
	"github.com/invoro/invoro/internal/invoice/transcode"
	obsctx "github.com/invoro/invoro/internal/observability/context"
	"github.com/invoro/invoro/internal/observability/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/bwmarrin/snowflake"
)

type Server struct {
	cfg        config.Config
	log        *zap.Logger
	engine     *gin.Engine
	invoiceSvc invoicedomain.Service
	clientSvc  clientdomain.Service
	transcoder *transcode.Transcoder
}

type Param struct {
	fx.In

	Config     config.Config
	Log        *zap.Logger
	Engine     *gin.Engine
	InvoiceSvc invoicedomain.Service
	ClientSvc  clientdomain.Service
	Transcoder *transcode.Transcoder
}

var Module = fx.Module("server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterAPIRoutes() }),
	fx.Invoke(RunHTTP),
)

// NewEngine builds the gin engine with recovery, request-id and request
// logging middleware, plus health and metrics endpoints.
func NewEngine(cfg config.Config, log *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestIDMiddleware())
	engine.Use(requestLogMiddleware())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return engine
}

func NewServer(p Param) *Server {
	return &Server{
		cfg:        p.Config,
		log:        p.Log.Named("server"),
		engine:     p.Engine,
		invoiceSvc: p.InvoiceSvc,
		clientSvc:  p.ClientSvc,
		transcoder: p.Transcoder,
	}
}

func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api")

	clients := api.Group("/clients")
	clients.POST("", s.CreateClient)
	clients.GET("", s.ListClients)
	clients.GET("/:id", s.GetClient)
	clients.PUT("/:id", s.UpdateClient)
	clients.DELETE("/:id", s.DeleteClient)

	invoices := api.Group("/invoices")
	invoices.POST("", s.CreateInvoice)
	invoices.GET("", s.ListInvoices)
	invoices.GET("/summary", s.GetInvoiceSummary)
	invoices.GET("/overdue", s.ListOverdueInvoices)
	invoices.POST("/overdue/reconcile", s.ReconcileOverdueInvoices)
	invoices.GET("/number/preview", s.PreviewInvoiceNumber)
	invoices.POST("/export", s.ExportInvoicesCSV)
	invoices.POST("/import", s.ImportInvoicesCSV)
	invoices.GET("/:id", s.GetInvoice)
	invoices.GET("/:id/draft", s.GetDraftInvoice)
	invoices.PUT("/:id", s.UpdateInvoice)
	invoices.PATCH("/:id/status", s.UpdateInvoiceStatus)
	invoices.DELETE("/:id", s.DeleteInvoice)
}

// RunHTTP starts the listener under the fx lifecycle.
func RunHTTP(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, engine *gin.Engine) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader("X-Request-Id"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := obsctx.WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-Id", requestID)
		c.Next()
	}
}

func requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.FromContext(c.Request.Context()).Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

// parseIDParam resolves the :id path segment.
func parseIDParam(c *gin.Context) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return 0, false
	}
	return id, true
}

// parseOptionalDate parses yyyy-MM-dd query values; empty means unset.
func parseOptionalDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	when, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	when = when.UTC()
	return &when, nil
}
