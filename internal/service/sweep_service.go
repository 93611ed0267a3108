package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-engine/internal/clock"
	"github.com/spec-kit/complaint-engine/internal/domain"
	"github.com/spec-kit/complaint-engine/internal/events"
	"github.com/spec-kit/complaint-engine/internal/observability"
	"github.com/spec-kit/complaint-engine/internal/repository"
	"github.com/spec-kit/complaint-engine/internal/sla"
)

// SweepService detects complaints whose SLA deadline elapsed without closure
// and marks them breached, charging the penalty at most once. Safe to run
// concurrently with itself and with Close: the per-complaint versioned
// check-and-set serializes penalty application.
type SweepService struct {
	complaints repository.ComplaintRepository
	history    repository.ComplaintHistoryRepository
	calculator *sla.Calculator
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	clk        clock.Clock
	logger     *zap.Logger
}

// SweepDependencies bundles collaborators.
type SweepDependencies struct {
	ComplaintRepo repository.ComplaintRepository
	HistoryRepo   repository.ComplaintHistoryRepository
	Calculator    *sla.Calculator
	Dispatcher    events.Dispatcher
	Metrics       *observability.Metrics
	Clock         clock.Clock
	Logger        *zap.Logger
}

// NewSweepService creates the service.
func NewSweepService(deps SweepDependencies) *SweepService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.System()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SweepService{
		complaints: deps.ComplaintRepo,
		history:    deps.HistoryRepo,
		calculator: deps.Calculator,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		clk:        clk,
		logger:     logger,
	}
}

// Sweep scans pending-SLA complaints past their deadline and breaches them.
// Individual failures are logged and skipped; the failing complaint stays
// PENDING and is retried on the next pass. Returns the complaints breached
// in this pass.
func (s *SweepService) Sweep(ctx context.Context) ([]domain.Complaint, error) {
	now := s.clk.Now()
	pending, err := s.complaints.ListPendingSLA(ctx, now)
	if err != nil {
		return nil, err
	}

	var breached []domain.Complaint
	for i := range pending {
		complaint, ok := s.breachOne(ctx, pending[i].ID)
		if ok {
			breached = append(breached, *complaint)
		}
	}
	s.metrics.RecordSweep(len(breached))
	return breached, nil
}

// breachOne reloads the complaint and applies the breach with a versioned
// check-and-set. Any interleaved close or concurrent sweep makes the version
// check fail and the complaint is simply skipped.
func (s *SweepService) breachOne(ctx context.Context, complaintID string) (*domain.Complaint, bool) {
	complaint, err := s.complaints.GetByID(ctx, complaintID)
	if err != nil {
		s.logger.Warn("sweep: load failed", zap.String("complaint_id", complaintID), zap.Error(err))
		return nil, false
	}
	// Closed complaints keep their frozen slaStatus.
	if complaint.Status == domain.ComplaintStatusClosed || complaint.SLAStatus != domain.SLAPending {
		return nil, false
	}

	now := s.clk.Now()
	evaluation := s.calculator.Evaluate(complaint, now)
	if evaluation.Status != domain.SLABreached {
		return nil, false
	}

	complaint.SLAStatus = domain.SLABreached
	penaltyCharged := false
	if !complaint.PenaltyApplied {
		complaint.PenaltyApplied = true
		complaint.PenaltyAmount = evaluation.Penalty
		penaltyCharged = true
	}

	if err := s.complaints.UpdateVersioned(ctx, complaint); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			s.logger.Debug("sweep: lost race, retrying next cycle", zap.String("complaint_id", complaintID))
		} else {
			s.logger.Warn("sweep: update failed", zap.String("complaint_id", complaintID), zap.Error(err))
		}
		return nil, false
	}

	if s.history != nil && penaltyCharged {
		_ = s.history.Create(ctx, &domain.ComplaintHistory{
			ComplaintID: complaint.ID,
			ChangeType:  domain.ChangeTypeSLABreach,
			OldValue:    map[string]any{"sla_status": domain.SLAPending},
			NewValue:    map[string]any{"sla_status": domain.SLABreached, "penalty_amount": complaint.PenaltyAmount.String()},
		})
	}
	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:          uuid.NewString(),
			Type:        events.EventSLABreached,
			ComplaintID: complaint.ID,
			Timestamp:   now,
			Payload: events.SLABreachedPayload{
				StaffRef:      complaint.AssignedTo,
				Deadline:      *complaint.SLADeadline,
				PenaltyAmount: complaint.PenaltyAmount,
			},
		})
	}
	return complaint, true
}

// Stats performs a lazy sweep and then aggregates SLA outcomes, so a stale
// PENDING status is never surfaced past its deadline.
func (s *SweepService) Stats(ctx context.Context, officeRef *string) (domain.SLAStats, error) {
	if _, err := s.Sweep(ctx); err != nil {
		return domain.SLAStats{}, err
	}
	return s.complaints.SLAStats(ctx, officeRef)
}
