package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы контракта.
const (
	ContractStatusDraft             = "draft"
	ContractStatusPendingAcceptance = "pending_acceptance"
	ContractStatusActive            = "active"
	ContractStatusCompleted         = "completed"
	ContractStatusDisputed          = "disputed"
	ContractStatusCancelled         = "cancelled"
	ContractStatusPendingDeletion   = "pending_deletion"
)

// Статусы финансирования. Вычисляются из currentAmount/totalAmount,
// отдельно не выставляются.
const (
	FundingStatusUnfunded        = "unfunded"
	FundingStatusPartiallyFunded = "partially_funded"
	FundingStatusFullyFunded     = "fully_funded"
)

// Способы оплаты.
const (
	PaymentMethodFiat   = "fiat"
	PaymentMethodCrypto = "crypto"
)

// ValidContractStatuses список валидных статусов контракта.
var ValidContractStatuses = map[string]struct{}{
	ContractStatusDraft:             {},
	ContractStatusPendingAcceptance: {},
	ContractStatusActive:            {},
	ContractStatusCompleted:         {},
	ContractStatusDisputed:          {},
	ContractStatusCancelled:         {},
	ContractStatusPendingDeletion:   {},
}

// Contract описывает соглашение клиента и фрилансера с бюджетом в escrow.
type Contract struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Title         string    `db:"title" json:"title"`
	Description   string    `db:"description" json:"description"`
	ClientID      uuid.UUID `db:"client_id" json:"client_id"`
	FreelancerID  uuid.UUID `db:"freelancer_id" json:"freelancer_id"`
	TotalAmount   float64   `db:"total_amount" json:"total_amount"`
	CurrentAmount float64   `db:"current_amount" json:"current_amount"`
	Currency      string    `db:"currency" json:"currency"`
	Status        string    `db:"status" json:"status"`
	FundingStatus string    `db:"funding_status" json:"funding_status"`
	CreatedBy     uuid.UUID `db:"created_by" json:"created_by"`
	PaymentMethod *string   `db:"payment_method" json:"payment_method,omitempty"`
	SettlementRef *string   `db:"settlement_ref" json:"settlement_ref,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// ComputeFundingStatus возвращает статус финансирования по текущим суммам.
func ComputeFundingStatus(currentAmount, totalAmount float64) string {
	switch {
	case currentAmount <= 0:
		return FundingStatusUnfunded
	case currentAmount >= totalAmount:
		return FundingStatusFullyFunded
	default:
		return FundingStatusPartiallyFunded
	}
}
