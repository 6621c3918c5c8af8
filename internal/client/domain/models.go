// Package domain contains the billing counterparty model and service
// contract.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Client is a billing counterparty. A client owning invoices cannot be
// removed.
type Client struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"type:text;not null;index" json:"name"`
	Email       string       `gorm:"type:text;not null" json:"email"`
	Phone       string       `gorm:"type:text" json:"phone,omitempty"`
	Address     string       `gorm:"type:text" json:"address,omitempty"`
	City        string       `gorm:"type:text" json:"city,omitempty"`
	Country     string       `gorm:"type:text" json:"country,omitempty"`
	CompanyName string       `gorm:"type:text" json:"company_name,omitempty"`
	TaxNumber   string       `gorm:"type:text" json:"tax_number,omitempty"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Client) TableName() string { return "clients" }
