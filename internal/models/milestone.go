package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы вехи.
const (
	MilestoneStatusPending           = "pending"
	MilestoneStatusSubmitted         = "submitted"
	MilestoneStatusRevisionRequested = "revision_requested"
	MilestoneStatusApproved          = "approved"
	MilestoneStatusPaid              = "paid"
)

// Статусы AI-проверки результата. Поле консультативное: решение
// принять/отклонить остаётся за клиентом.
const (
	VerificationPending = "pending"
	VerificationPassed  = "passed"
	VerificationFailed  = "failed"
)

// Milestone описывает отдельный оплачиваемый этап контракта.
type Milestone struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	ContractID         uuid.UUID  `db:"contract_id" json:"contract_id"`
	Title              string     `db:"title" json:"title"`
	Description        string     `db:"description" json:"description"`
	Amount             float64    `db:"amount" json:"amount"`
	DueDate            *time.Time `db:"due_date" json:"due_date,omitempty"`
	Status             string     `db:"status" json:"status"`
	DeliverableURL     *string    `db:"deliverable_url" json:"deliverable_url,omitempty"`
	SubmittedAt        *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	ApprovedAt         *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	RevisionNotes      *string    `db:"revision_notes" json:"revision_notes,omitempty"`
	VerificationStatus *string    `db:"verification_status" json:"verification_status,omitempty"`
	VerificationResult *string    `db:"verification_result" json:"verification_result,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}
