package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ComplaintStatus enumerates lifecycle states for complaints.
type ComplaintStatus string

const (
	ComplaintStatusOpen       ComplaintStatus = "OPEN"
	ComplaintStatusAssigned   ComplaintStatus = "ASSIGNED"
	ComplaintStatusInProgress ComplaintStatus = "IN_PROGRESS"
	ComplaintStatusOnHold     ComplaintStatus = "ON_HOLD"
	ComplaintStatusClosed     ComplaintStatus = "CLOSED"
)

// ComplaintPriority enumerates SLA urgency.
type ComplaintPriority string

const (
	ComplaintPriorityLow    ComplaintPriority = "LOW"
	ComplaintPriorityMedium ComplaintPriority = "MEDIUM"
	ComplaintPriorityHigh   ComplaintPriority = "HIGH"
	ComplaintPriorityUrgent ComplaintPriority = "URGENT"
)

// SLAStatus tracks the SLA outcome separately from the lifecycle status.
type SLAStatus string

const (
	SLANotApplicable  SLAStatus = "NOT_APPLICABLE"
	SLAPending        SLAStatus = "PENDING"
	SLAMet            SLAStatus = "MET"
	SLABreached       SLAStatus = "BREACHED"
	SLAPendingPenalty SLAStatus = "PENDING_PENALTY"
)

// Complaint is the aggregate for customer complaints.
//
// AssignedTo, AssignedAt and SLADeadline are all nil or all set together;
// writes violating that are rejected before commit. Version backs optimistic
// concurrency: every persisted update must match the loaded version.
type Complaint struct {
	ID             string
	CustomerRef    string
	CompanyRef     string
	AreaRef        string
	Title          string
	Description    string
	Priority       ComplaintPriority
	Status         ComplaintStatus
	AssignedTo     *string
	OfficeRef      *string
	AssignedAt     *time.Time
	SLADeadline    *time.Time
	SLAStatus      SLAStatus
	PenaltyApplied bool
	PenaltyAmount  decimal.Decimal
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ClosedAt       *time.Time
}

// Assigned reports whether the complaint currently carries an assignment.
func (c *Complaint) Assigned() bool {
	return c.AssignedTo != nil
}

// AssignmentConsistent verifies the assignment-field trio is nil or set together.
func (c *Complaint) AssignmentConsistent() bool {
	set := 0
	if c.AssignedTo != nil {
		set++
	}
	if c.AssignedAt != nil {
		set++
	}
	if c.SLADeadline != nil {
		set++
	}
	return set == 0 || set == 3
}

// ValidPriority reports whether p is a known priority value.
func ValidPriority(p ComplaintPriority) bool {
	switch p {
	case ComplaintPriorityLow, ComplaintPriorityMedium, ComplaintPriorityHigh, ComplaintPriorityUrgent:
		return true
	}
	return false
}

// ValidStatus reports whether s is a known lifecycle status.
func ValidStatus(s ComplaintStatus) bool {
	switch s {
	case ComplaintStatusOpen, ComplaintStatusAssigned, ComplaintStatusInProgress, ComplaintStatusOnHold, ComplaintStatusClosed:
		return true
	}
	return false
}

// SLAStats aggregates SLA outcomes for a scope (office or whole deployment).
type SLAStats struct {
	TotalAssigned  int64
	SLAMet         int64
	SLABreached    int64
	ComplianceRate float64
	TotalPenalties decimal.Decimal
}
