package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/invoro/invoro/pkg/db/pagination"
)

type CreateClientRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	City        string `json:"city"`
	Country     string `json:"country"`
	CompanyName string `json:"company_name"`
	TaxNumber   string `json:"tax_number"`
}

type UpdateClientRequest struct {
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	Address     *string `json:"address"`
	City        *string `json:"city"`
	Country     *string `json:"country"`
	CompanyName *string `json:"company_name"`
	TaxNumber   *string `json:"tax_number"`
}

type ListClientRequest struct {
	pagination.Pagination
	Search string
}

type ListClientResponse struct {
	pagination.PageInfo
	Clients []Client `json:"clients"`
}

type Service interface {
	Create(ctx context.Context, req CreateClientRequest) (*Client, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Client, error)
	List(ctx context.Context, req ListClientRequest) (ListClientResponse, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateClientRequest) (*Client, error)
	Delete(ctx context.Context, id snowflake.ID) error
}

var (
	ErrClientNotFound    = errors.New("client_not_found")
	ErrClientInvalidName = errors.New("client_name_required")
	ErrClientHasInvoices = errors.New("client_has_invoices")
)
