package models

import (
	"time"

	"github.com/google/uuid"
)

// Rider is a delivery rider. CurrentOrderID enforces the one active
// order rule: assignment is a conditional update from NULL.
type Rider struct {
	ID                uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name              string     `gorm:"column:name;not null"`
	Phone             *string    `gorm:"column:phone"`
	DocumentsVerified bool       `gorm:"column:documents_verified;not null;default:false"`
	IsActive          bool       `gorm:"column:is_active;not null;default:false"`
	OrdersPaused      bool       `gorm:"column:orders_paused;not null;default:false"`
	CurrentOrderID    *uuid.UUID `gorm:"column:current_order_id;type:uuid"`
	AvailableSince    *time.Time `gorm:"column:available_since"`

	// UK bank details for weekly payouts.
	BankHolderName    *string `gorm:"column:bank_holder_name"`
	BankAccountNumber *string `gorm:"column:bank_account_number"`
	BankSortCode      *string `gorm:"column:bank_sort_code"`
	BankName          *string `gorm:"column:bank_name"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
