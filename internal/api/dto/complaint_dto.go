package dto

import (
	"time"

	"github.com/spec-kit/complaint-engine/internal/domain"
)

// CreateComplaintRequest payload.
type CreateComplaintRequest struct {
	CustomerRef string                   `json:"customer_ref"`
	CompanyRef  string                   `json:"company_ref"`
	AreaRef     string                   `json:"area_ref"`
	Title       string                   `json:"title"`
	Description string                   `json:"description"`
	Priority    domain.ComplaintPriority `json:"priority"`
}

// AssignRequest payload for manual assignment and reassignment.
type AssignRequest struct {
	StaffID  string  `json:"staff_id"`
	OfficeID *string `json:"office_id"`
	Reason   string  `json:"reason"`
}

// TransitionRequest payload.
type TransitionRequest struct {
	Status domain.ComplaintStatus `json:"status"`
}

// AutoAssignBatchRequest payload.
type AutoAssignBatchRequest struct {
	ComplaintIDs []string `json:"complaint_ids"`
}

// ComplaintResponse mirrors the complaint aggregate on the wire.
type ComplaintResponse struct {
	ID             string                   `json:"id"`
	CustomerRef    string                   `json:"customer_ref"`
	CompanyRef     string                   `json:"company_ref,omitempty"`
	AreaRef        string                   `json:"area_ref,omitempty"`
	Title          string                   `json:"title"`
	Description    string                   `json:"description"`
	Priority       domain.ComplaintPriority `json:"priority"`
	Status         domain.ComplaintStatus   `json:"status"`
	AssignedTo     *string                  `json:"assigned_to"`
	OfficeRef      *string                  `json:"office_ref"`
	AssignedAt     *time.Time               `json:"assigned_at"`
	SLADeadline    *time.Time               `json:"sla_deadline"`
	SLAStatus      domain.SLAStatus         `json:"sla_status"`
	PenaltyApplied bool                     `json:"penalty_applied"`
	PenaltyAmount  string                   `json:"penalty_amount"`
	CreatedAt      time.Time                `json:"created_at"`
	ClosedAt       *time.Time               `json:"closed_at"`
}

// BatchItemResponse per-complaint batch outcome.
type BatchItemResponse struct {
	ComplaintID string `json:"complaint_id"`
	Success     bool   `json:"success"`
	StaffID     string `json:"staff_id,omitempty"`
	ErrorCode   string `json:"error_code,omitempty"`
	ErrorDetail string `json:"error_detail,omitempty"`
}

// BatchResponse summarizes an auto-assign batch.
type BatchResponse struct {
	Successful int                 `json:"successful"`
	Failed     int                 `json:"failed"`
	Results    []BatchItemResponse `json:"results"`
}

// SLAStatsResponse aggregates SLA outcomes for a scope.
type SLAStatsResponse struct {
	TotalAssigned  int64   `json:"total_assigned"`
	SLAMet         int64   `json:"sla_met"`
	SLABreached    int64   `json:"sla_breached"`
	ComplianceRate float64 `json:"compliance_rate"`
	TotalPenalties string  `json:"total_penalties"`
}

// HistoryEntryResponse is one audit trail entry.
type HistoryEntryResponse struct {
	ID         string                     `json:"id"`
	ActorRef   *string                    `json:"actor_ref"`
	ChangeType domain.ComplaintChangeType `json:"change_type"`
	OldValue   map[string]any             `json:"old_value"`
	NewValue   map[string]any             `json:"new_value"`
	Reason     string                     `json:"reason,omitempty"`
	CreatedAt  time.Time                  `json:"created_at"`
}
