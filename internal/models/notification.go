package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// События уведомлений.
const (
	EventContractInvitation = "contract.invitation"
	EventContractAccepted   = "contract.accepted"
	EventContractRejected   = "contract.rejected"
	EventContractFunded     = "contract.funded"
	EventMilestoneSubmitted = "milestone.submitted"
	EventMilestoneApproved  = "milestone.approved"
	EventMilestoneRevision  = "milestone.revision_requested"
	EventMilestonePaid      = "milestone.paid"
	EventDisputeOpened      = "dispute.opened"
	EventDisputeResolved    = "dispute.resolved"
)

// Notification описывает уведомление пользователя.
type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Event     string          `db:"event" json:"event"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	IsRead    bool            `db:"is_read" json:"is_read"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
