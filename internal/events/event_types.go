package events

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/complaint-engine/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventComplaintCreated       EventType = "complaint_created"
	EventComplaintAssigned      EventType = "complaint_assigned"
	EventComplaintReassigned    EventType = "complaint_reassigned"
	EventComplaintStatusChanged EventType = "complaint_status_changed"
	EventComplaintClosed        EventType = "complaint_closed"
	EventSLABreached            EventType = "sla_breached"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID          string      `json:"id"`
	Type        EventType   `json:"type"`
	ComplaintID string      `json:"complaint_id"`
	ActorRef    *string     `json:"actor_ref,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
	Payload     interface{} `json:"payload"`
}

// ComplaintCreatedPayload payload.
type ComplaintCreatedPayload struct {
	CustomerRef string                   `json:"customer_ref"`
	AreaRef     string                   `json:"area_ref,omitempty"`
	Priority    domain.ComplaintPriority `json:"priority"`
	Title       string                   `json:"title"`
}

// ComplaintAssignedPayload payload for both first assignment and reassignment.
type ComplaintAssignedPayload struct {
	StaffRef    string    `json:"staff_ref"`
	OfficeRef   *string   `json:"office_ref,omitempty"`
	SLADeadline time.Time `json:"sla_deadline"`
	Reason      string    `json:"reason,omitempty"`
}

// ComplaintStatusChangedPayload payload.
type ComplaintStatusChangedPayload struct {
	OldStatus domain.ComplaintStatus `json:"old_status"`
	NewStatus domain.ComplaintStatus `json:"new_status"`
}

// ComplaintClosedPayload payload.
type ComplaintClosedPayload struct {
	SLAStatus     domain.SLAStatus `json:"sla_status"`
	PenaltyAmount decimal.Decimal  `json:"penalty_amount"`
}

// SLABreachedPayload payload.
type SLABreachedPayload struct {
	StaffRef      *string         `json:"staff_ref,omitempty"`
	Deadline      time.Time       `json:"deadline"`
	PenaltyAmount decimal.Decimal `json:"penalty_amount"`
}
