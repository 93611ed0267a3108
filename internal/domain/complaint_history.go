package domain

import "time"

// ComplaintChangeType captures what changed in a history entry.
type ComplaintChangeType string

const (
	ChangeTypeStatus     ComplaintChangeType = "STATUS_CHANGE"
	ChangeTypeAssignment ComplaintChangeType = "ASSIGNMENT"
	ChangeTypeSLABreach  ComplaintChangeType = "SLA_BREACH"
)

// ComplaintHistory is an immutable audit trail entry.
type ComplaintHistory struct {
	ID          string
	ComplaintID string
	ActorRef    *string
	ChangeType  ComplaintChangeType
	OldValue    map[string]any
	NewValue    map[string]any
	Reason      string
	CreatedAt   time.Time
}
