package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/invoro/invoro/internal/client"
	"github.com/invoro/invoro/internal/clock"
	"github.com/invoro/invoro/internal/config"
	"github.com/invoro/invoro/internal/invoice"
	"github.com/invoro/invoro/internal/migration"
	"github.com/invoro/invoro/internal/observability"
	"github.com/invoro/invoro/internal/scheduler"
	"github.com/invoro/invoro/internal/seed"
	"github.com/invoro/invoro/internal/server"
	"github.com/invoro/invoro/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var version = "dev"

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		clock.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := migration.RunMigrations(sqlDB); err != nil {
				return err
			}
			if cfg.SeedDemoData && !cfg.IsProduction() {
				return seed.EnsureDemoClient(conn)
			}
			return nil
		}),
		client.Module,
		invoice.Module,
		scheduler.Module,
		server.Module,
	)
	app.Run()
}
