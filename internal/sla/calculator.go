// Package sla computes deadlines and breach penalties. The calculator is
// pure: it never reads the wall clock or mutates complaints, so callers own
// all time injection and persistence.
package sla

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/complaint-engine/internal/domain"
)

// Default response windows per priority.
const (
	DefaultUrgentWindow = 4 * time.Hour
	DefaultHighWindow   = 12 * time.Hour
	DefaultMediumWindow = 24 * time.Hour
	DefaultLowWindow    = 24 * time.Hour
)

// DefaultFlatPenalty is charged on breach when no per-priority penalty table
// is configured.
var DefaultFlatPenalty = decimal.NewFromInt(500)

// Policy is the configurable SLA table. Zero values fall back to defaults,
// so an empty Policy reproduces the stock behavior.
type Policy struct {
	Deadlines   map[domain.ComplaintPriority]time.Duration
	FlatPenalty decimal.Decimal
	// Penalties overrides FlatPenalty per priority when non-empty.
	Penalties map[domain.ComplaintPriority]decimal.Decimal
}

// Calculator applies a Policy to complaints.
type Calculator struct {
	policy Policy
}

// NewCalculator builds a calculator, filling unset policy entries with the
// stated defaults.
func NewCalculator(policy Policy) *Calculator {
	if policy.Deadlines == nil {
		policy.Deadlines = map[domain.ComplaintPriority]time.Duration{}
	}
	defaults := map[domain.ComplaintPriority]time.Duration{
		domain.ComplaintPriorityUrgent: DefaultUrgentWindow,
		domain.ComplaintPriorityHigh:   DefaultHighWindow,
		domain.ComplaintPriorityMedium: DefaultMediumWindow,
		domain.ComplaintPriorityLow:    DefaultLowWindow,
	}
	for priority, window := range defaults {
		if policy.Deadlines[priority] <= 0 {
			policy.Deadlines[priority] = window
		}
	}
	if policy.FlatPenalty.IsZero() {
		policy.FlatPenalty = DefaultFlatPenalty
	}
	return &Calculator{policy: policy}
}

// DeadlineFor returns the SLA deadline for a complaint of the given priority
// assigned at assignedAt.
func (c *Calculator) DeadlineFor(priority domain.ComplaintPriority, assignedAt time.Time) time.Time {
	window, ok := c.policy.Deadlines[priority]
	if !ok {
		window = c.policy.Deadlines[domain.ComplaintPriorityMedium]
	}
	return assignedAt.Add(window)
}

// Evaluation is the outcome of checking a complaint against its deadline.
type Evaluation struct {
	Status  domain.SLAStatus
	Penalty decimal.Decimal
}

// Evaluate checks the complaint's deadline against now. Complaints without a
// deadline are not subject to an SLA. Evaluate is idempotent; the caller is
// responsible for checking PenaltyApplied before charging the penalty.
func (c *Calculator) Evaluate(complaint *domain.Complaint, now time.Time) Evaluation {
	if complaint.SLADeadline == nil {
		return Evaluation{Status: domain.SLANotApplicable, Penalty: decimal.Zero}
	}
	if !now.After(*complaint.SLADeadline) {
		return Evaluation{Status: domain.SLAMet, Penalty: decimal.Zero}
	}
	return Evaluation{Status: domain.SLABreached, Penalty: c.penaltyFor(complaint.Priority)}
}

func (c *Calculator) penaltyFor(priority domain.ComplaintPriority) decimal.Decimal {
	if amount, ok := c.policy.Penalties[priority]; ok && amount.IsPositive() {
		return amount
	}
	return c.policy.FlatPenalty
}
