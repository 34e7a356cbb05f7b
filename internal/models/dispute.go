package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы спора.
const (
	DisputeStatusOpen        = "open"
	DisputeStatusUnderReview = "under_review"
	DisputeStatusResolved    = "resolved"
	DisputeStatusClosed      = "closed"
)

// Исходы спора.
const (
	DisputeOutcomeClient     = "client"
	DisputeOutcomeFreelancer = "freelancer"
	DisputeOutcomeSplit      = "split"
)

// ValidDisputeOutcomes список допустимых исходов.
var ValidDisputeOutcomes = map[string]struct{}{
	DisputeOutcomeClient:     {},
	DisputeOutcomeFreelancer: {},
	DisputeOutcomeSplit:      {},
}

// Dispute описывает спор по контракту или его вехе.
type Dispute struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	ContractID         uuid.UUID  `db:"contract_id" json:"contract_id"`
	MilestoneID        *uuid.UUID `db:"milestone_id" json:"milestone_id,omitempty"`
	RaisedBy           uuid.UUID  `db:"raised_by" json:"raised_by"`
	AssignedTo         *uuid.UUID `db:"assigned_to" json:"assigned_to,omitempty"`
	Reason             string     `db:"reason" json:"reason"`
	ClientEvidence     *string    `db:"client_evidence" json:"client_evidence,omitempty"`
	FreelancerEvidence *string    `db:"freelancer_evidence" json:"freelancer_evidence,omitempty"`
	Status             string     `db:"status" json:"status"`
	Outcome            *string    `db:"outcome" json:"outcome,omitempty"`
	Resolution         *string    `db:"resolution" json:"resolution,omitempty"`
	ResolvedBy         *uuid.UUID `db:"resolved_by" json:"resolved_by,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	ResolvedAt         *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}
