package sla

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/complaint-engine/internal/config"
	"github.com/spec-kit/complaint-engine/internal/domain"
)

// PolicyFromConfig translates env configuration into a Policy. Unparseable
// or unset values fall back to defaults, so a blank environment yields the
// stock per-priority table with a flat 500 penalty.
func PolicyFromConfig(cfg config.SLAConfig) Policy {
	policy := Policy{
		Deadlines: map[domain.ComplaintPriority]time.Duration{},
		Penalties: map[domain.ComplaintPriority]decimal.Decimal{},
	}

	minutes := map[domain.ComplaintPriority]int{
		domain.ComplaintPriorityUrgent: cfg.UrgentMinutes,
		domain.ComplaintPriorityHigh:   cfg.HighMinutes,
		domain.ComplaintPriorityMedium: cfg.MediumMinutes,
		domain.ComplaintPriorityLow:    cfg.LowMinutes,
	}
	for priority, m := range minutes {
		if m > 0 {
			policy.Deadlines[priority] = time.Duration(m) * time.Minute
		}
	}

	if amount, ok := parseAmount(cfg.FlatPenalty); ok {
		policy.FlatPenalty = amount
	}
	overrides := map[domain.ComplaintPriority]string{
		domain.ComplaintPriorityUrgent: cfg.UrgentPenalty,
		domain.ComplaintPriorityHigh:   cfg.HighPenalty,
		domain.ComplaintPriorityMedium: cfg.MediumPenalty,
		domain.ComplaintPriorityLow:    cfg.LowPenalty,
	}
	for priority, raw := range overrides {
		if amount, ok := parseAmount(raw); ok {
			policy.Penalties[priority] = amount
		}
	}

	return policy
}

func parseAmount(raw string) (decimal.Decimal, bool) {
	if raw == "" {
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, false
	}
	return amount, true
}
