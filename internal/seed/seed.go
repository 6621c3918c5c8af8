// Package seed bootstraps demo data for non-production environments.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	clientdomain "github.com/invoro/invoro/internal/client/domain"
	"gorm.io/gorm"
)

const (
	demoClientName  = "Demo Client"
	demoClientEmail = "billing@demo.invoro.dev"
)

// EnsureDemoClient inserts a demo client when the clients table is empty, so
// a fresh environment has something to invoice against.
func EnsureDemoClient(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&clientdomain.Client{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()
		return tx.Create(&clientdomain.Client{
			ID:        node.Generate(),
			Name:      demoClientName,
			Email:     demoClientEmail,
			CreatedAt: now,
			UpdatedAt: now,
		}).Error
	})
}
