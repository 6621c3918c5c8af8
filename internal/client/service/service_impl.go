// Package service implements the client service.
package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	clientdomain "github.com/invoro/invoro/internal/client/domain"
	"github.com/invoro/invoro/internal/clock"
	invoicedomain "github.com/invoro/invoro/internal/invoice/domain"
	"github.com/invoro/invoro/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

func NewService(p ServiceParam) clientdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("client.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, req clientdomain.CreateClientRequest) (*clientdomain.Client, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, clientdomain.ErrClientInvalidName
	}

	now := s.clock.Now()
	client := &clientdomain.Client{
		ID:          s.genID.Generate(),
		Name:        name,
		Email:       strings.TrimSpace(req.Email),
		Phone:       strings.TrimSpace(req.Phone),
		Address:     strings.TrimSpace(req.Address),
		City:        strings.TrimSpace(req.City),
		Country:     strings.TrimSpace(req.Country),
		CompanyName: strings.TrimSpace(req.CompanyName),
		TaxNumber:   strings.TrimSpace(req.TaxNumber),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(client).Error; err != nil {
		return nil, err
	}
	return client, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*clientdomain.Client, error) {
	var client clientdomain.Client
	err := s.db.WithContext(ctx).First(&client, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, clientdomain.ErrClientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (s *Service) List(ctx context.Context, req clientdomain.ListClientRequest) (clientdomain.ListClientResponse, error) {
	page := req.Pagination.Normalize()

	query := s.db.WithContext(ctx).Model(&clientdomain.Client{})
	if search := strings.TrimSpace(req.Search); search != "" {
		needle := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", needle, needle)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return clientdomain.ListClientResponse{}, err
	}

	var clients []clientdomain.Client
	err := query.
		Order("name ASC, id ASC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&clients).Error
	if err != nil {
		return clientdomain.ListClientResponse{}, err
	}

	return clientdomain.ListClientResponse{
		PageInfo: pagination.PageInfo{
			Page:       page.Page,
			Limit:      page.Limit,
			TotalCount: total,
		},
		Clients: clients,
	}, nil
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req clientdomain.UpdateClientRequest) (*clientdomain.Client, error) {
	var updated *clientdomain.Client
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var client clientdomain.Client
		err := tx.First(&client, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return clientdomain.ErrClientNotFound
		}
		if err != nil {
			return err
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return clientdomain.ErrClientInvalidName
			}
			client.Name = name
		}
		if req.Email != nil {
			client.Email = strings.TrimSpace(*req.Email)
		}
		if req.Phone != nil {
			client.Phone = strings.TrimSpace(*req.Phone)
		}
		if req.Address != nil {
			client.Address = strings.TrimSpace(*req.Address)
		}
		if req.City != nil {
			client.City = strings.TrimSpace(*req.City)
		}
		if req.Country != nil {
			client.Country = strings.TrimSpace(*req.Country)
		}
		if req.CompanyName != nil {
			client.CompanyName = strings.TrimSpace(*req.CompanyName)
		}
		if req.TaxNumber != nil {
			client.TaxNumber = strings.TrimSpace(*req.TaxNumber)
		}

		client.UpdatedAt = s.clock.Now()
		if err := tx.Save(&client).Error; err != nil {
			return err
		}
		updated = &client
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a client without invoices. Restrict-delete: clients that
// own invoices are kept.
func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var client clientdomain.Client
		err := tx.First(&client, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return clientdomain.ErrClientNotFound
		}
		if err != nil {
			return err
		}

		var invoiceCount int64
		if err := tx.Model(&invoicedomain.Invoice{}).
			Where("client_id = ?", id).
			Count(&invoiceCount).Error; err != nil {
			return err
		}
		if invoiceCount > 0 {
			return clientdomain.ErrClientHasInvoices
		}

		return tx.Delete(&clientdomain.Client{}, "id = ?", id).Error
	})
}
