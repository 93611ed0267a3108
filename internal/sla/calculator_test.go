package sla_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/complaint-engine/internal/domain"
	"github.com/spec-kit/complaint-engine/internal/sla"
)

var baseTime = time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)

func TestDeadlineFor_Defaults(t *testing.T) {
	calc := sla.NewCalculator(sla.Policy{})

	tests := []struct {
		priority domain.ComplaintPriority
		want     time.Duration
	}{
		{domain.ComplaintPriorityUrgent, 4 * time.Hour},
		{domain.ComplaintPriorityHigh, 12 * time.Hour},
		{domain.ComplaintPriorityMedium, 24 * time.Hour},
		{domain.ComplaintPriorityLow, 24 * time.Hour},
	}
	for _, tc := range tests {
		t.Run(string(tc.priority), func(t *testing.T) {
			got := calc.DeadlineFor(tc.priority, baseTime)
			assert.Equal(t, baseTime.Add(tc.want), got)
		})
	}
}

func TestDeadlineFor_ConfiguredTableOverridesDefaults(t *testing.T) {
	calc := sla.NewCalculator(sla.Policy{
		Deadlines: map[domain.ComplaintPriority]time.Duration{
			domain.ComplaintPriorityUrgent: 30 * time.Minute,
		},
	})

	assert.Equal(t, baseTime.Add(30*time.Minute), calc.DeadlineFor(domain.ComplaintPriorityUrgent, baseTime))
	// Unconfigured priorities keep their defaults.
	assert.Equal(t, baseTime.Add(12*time.Hour), calc.DeadlineFor(domain.ComplaintPriorityHigh, baseTime))
}

func TestDeadlineFor_UnknownPriorityFallsBackToMedium(t *testing.T) {
	calc := sla.NewCalculator(sla.Policy{})
	got := calc.DeadlineFor(domain.ComplaintPriority("BOGUS"), baseTime)
	assert.Equal(t, baseTime.Add(24*time.Hour), got)
}

func TestEvaluate_BeforeDeadlineIsMet(t *testing.T) {
	calc := sla.NewCalculator(sla.Policy{})
	deadline := baseTime.Add(4 * time.Hour)
	complaint := &domain.Complaint{
		Priority:    domain.ComplaintPriorityUrgent,
		SLADeadline: &deadline,
	}

	result := calc.Evaluate(complaint, baseTime.Add(3*time.Hour))
	assert.Equal(t, domain.SLAMet, result.Status)
	assert.True(t, result.Penalty.IsZero())

	// Exactly at the deadline still counts as met.
	result = calc.Evaluate(complaint, deadline)
	assert.Equal(t, domain.SLAMet, result.Status)
}

func TestEvaluate_AfterDeadlineChargesFlatPenalty(t *testing.T) {
	calc := sla.NewCalculator(sla.Policy{})
	deadline := baseTime.Add(4 * time.Hour)
	complaint := &domain.Complaint{
		Priority:    domain.ComplaintPriorityUrgent,
		SLADeadline: &deadline,
	}

	result := calc.Evaluate(complaint, baseTime.Add(5*time.Hour))
	assert.Equal(t, domain.SLABreached, result.Status)
	assert.True(t, result.Penalty.Equal(decimal.NewFromInt(500)))
}

func TestEvaluate_PerPriorityPenaltyTable(t *testing.T) {
	calc := sla.NewCalculator(sla.Policy{
		Penalties: map[domain.ComplaintPriority]decimal.Decimal{
			domain.ComplaintPriorityUrgent: decimal.NewFromInt(1000),
		},
	})
	deadline := baseTime.Add(4 * time.Hour)

	urgent := &domain.Complaint{Priority: domain.ComplaintPriorityUrgent, SLADeadline: &deadline}
	result := calc.Evaluate(urgent, deadline.Add(time.Minute))
	assert.True(t, result.Penalty.Equal(decimal.NewFromInt(1000)))

	// Priorities without an override fall back to the flat amount.
	low := &domain.Complaint{Priority: domain.ComplaintPriorityLow, SLADeadline: &deadline}
	result = calc.Evaluate(low, deadline.Add(time.Minute))
	assert.True(t, result.Penalty.Equal(decimal.NewFromInt(500)))
}

func TestEvaluate_NoDeadlineIsNotApplicable(t *testing.T) {
	calc := sla.NewCalculator(sla.Policy{})
	result := calc.Evaluate(&domain.Complaint{}, baseTime)
	assert.Equal(t, domain.SLANotApplicable, result.Status)
}

func TestEvaluate_Idempotent(t *testing.T) {
	calc := sla.NewCalculator(sla.Policy{})
	deadline := baseTime
	complaint := &domain.Complaint{
		Priority:    domain.ComplaintPriorityHigh,
		SLADeadline: &deadline,
	}
	now := baseTime.Add(time.Hour)

	first := calc.Evaluate(complaint, now)
	second := calc.Evaluate(complaint, now)
	require.Equal(t, first.Status, second.Status)
	assert.True(t, first.Penalty.Equal(second.Penalty))
}
