package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/piersideeats/dispatch-backend/pkg/db/models"
)

// riderView is the rider as returned by the API. The bank account
// number is masked down to its last two digits.
type riderView struct {
	ID                uuid.UUID  `json:"id"`
	Name              string     `json:"name"`
	Phone             *string    `json:"phone,omitempty"`
	DocumentsVerified bool       `json:"documents_verified"`
	IsActive          bool       `json:"is_active"`
	OrdersPaused      bool       `json:"orders_paused"`
	CurrentOrderID    *uuid.UUID `json:"current_order_id,omitempty"`
	AvailableSince    *time.Time `json:"available_since,omitempty"`
	BankHolderName    *string    `json:"bank_holder_name,omitempty"`
	BankAccountHint   string     `json:"bank_account_hint,omitempty"`
	BankName          *string    `json:"bank_name,omitempty"`
	HasBankDetails    bool       `json:"has_bank_details"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func riderProfileView(rider *models.Rider) riderView {
	view := riderView{
		ID:                rider.ID,
		Name:              rider.Name,
		Phone:             rider.Phone,
		DocumentsVerified: rider.DocumentsVerified,
		IsActive:          rider.IsActive,
		OrdersPaused:      rider.OrdersPaused,
		CurrentOrderID:    rider.CurrentOrderID,
		AvailableSince:    rider.AvailableSince,
		BankHolderName:    rider.BankHolderName,
		BankName:          rider.BankName,
		CreatedAt:         rider.CreatedAt,
		UpdatedAt:         rider.UpdatedAt,
	}
	if rider.BankAccountNumber != nil && rider.BankSortCode != nil {
		view.HasBankDetails = true
		view.BankAccountHint = maskAccountNumber(*rider.BankAccountNumber)
	}
	return view
}

func riderViews(riders []models.Rider) []riderView {
	views := make([]riderView, 0, len(riders))
	for i := range riders {
		views = append(views, riderProfileView(&riders[i]))
	}
	return views
}

func maskAccountNumber(account string) string {
	if len(account) < 2 {
		return "******"
	}
	return "******" + account[len(account)-2:]
}
