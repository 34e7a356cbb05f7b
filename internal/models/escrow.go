package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы escrow.
const (
	EscrowStatusPending  = "pending"
	EscrowStatusFunded   = "funded"
	EscrowStatusReleased = "released"
	EscrowStatusRefunded = "refunded"
	EscrowStatusDisputed = "disputed"
)

// Типы транзакций.
const (
	TransactionTypeFunding = "funding"
	TransactionTypeRelease = "release"
	TransactionTypeRefund  = "refund"
	TransactionTypeFee     = "fee"
	TransactionTypePayout  = "payout"
)

// Статусы транзакций.
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// Escrow представляет реестр средств контракта: сколько внесено и
// сколько выплачено. Инвариант: released_amount <= funded_amount.
type Escrow struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	ContractID     uuid.UUID  `db:"contract_id" json:"contract_id"`
	EscrowRef      string     `db:"escrow_ref" json:"escrow_ref"`
	FundedAmount   float64    `db:"funded_amount" json:"funded_amount"`
	ReleasedAmount float64    `db:"released_amount" json:"released_amount"`
	Currency       string     `db:"currency" json:"currency"`
	Status         string     `db:"status" json:"status"`
	FundedAt       *time.Time `db:"funded_at" json:"funded_at,omitempty"`
	ReleasedAt     *time.Time `db:"released_at" json:"released_at,omitempty"`
	SettlementRef  *string    `db:"settlement_ref" json:"settlement_ref,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Transaction представляет неизменяемую запись о движении средств.
// Записи только добавляются, никогда не изменяются и не удаляются.
type Transaction struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	ContractID    uuid.UUID  `db:"contract_id" json:"contract_id"`
	MilestoneID   *uuid.UUID `db:"milestone_id" json:"milestone_id,omitempty"`
	FromUserID    uuid.UUID  `db:"from_user_id" json:"from_user_id"`
	ToUserID      uuid.UUID  `db:"to_user_id" json:"to_user_id"`
	Amount        float64    `db:"amount" json:"amount"`
	Currency      string     `db:"currency" json:"currency"`
	Type          string     `db:"type" json:"type"`
	Status        string     `db:"status" json:"status"`
	Description   string     `db:"description" json:"description"`
	SettlementRef *string    `db:"settlement_ref" json:"settlement_ref,omitempty"`
	PaymentMethod *string    `db:"payment_method" json:"payment_method,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}
