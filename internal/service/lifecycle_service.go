package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/complaint-engine/internal/clock"
	"github.com/spec-kit/complaint-engine/internal/domain"
	"github.com/spec-kit/complaint-engine/internal/events"
	"github.com/spec-kit/complaint-engine/internal/observability"
	"github.com/spec-kit/complaint-engine/internal/repository"
	"github.com/spec-kit/complaint-engine/internal/sla"
	apperrors "github.com/spec-kit/complaint-engine/pkg/util"
)

// maxUpdateRetries bounds the optimistic-lock retry loop before surfacing
// CONCURRENT_MODIFICATION to the caller.
const maxUpdateRetries = 3

// LifecycleService owns complaint status transitions and assignment writes.
// Every mutation runs load-validate-mutate-commit against a versioned update,
// so two concurrent writers on the same complaint cannot both succeed on the
// same version.
type LifecycleService struct {
	complaints repository.ComplaintRepository
	staff      repository.StaffRepository
	offices    repository.OfficeRepository
	history    repository.ComplaintHistoryRepository
	workload   *WorkloadTracker
	calculator *sla.Calculator
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	clk        clock.Clock
}

// LifecycleDependencies bundles collaborators.
type LifecycleDependencies struct {
	ComplaintRepo repository.ComplaintRepository
	StaffRepo     repository.StaffRepository
	OfficeRepo    repository.OfficeRepository
	HistoryRepo   repository.ComplaintHistoryRepository
	Workload      *WorkloadTracker
	Calculator    *sla.Calculator
	Dispatcher    events.Dispatcher
	Metrics       *observability.Metrics
	Clock         clock.Clock
}

// NewLifecycleService creates the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.System()
	}
	return &LifecycleService{
		complaints: deps.ComplaintRepo,
		staff:      deps.StaffRepo,
		offices:    deps.OfficeRepo,
		history:    deps.HistoryRepo,
		workload:   deps.Workload,
		calculator: deps.Calculator,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		clk:        clk,
	}
}

// ComplaintDraft describes intake payload.
type ComplaintDraft struct {
	CustomerRef string
	CompanyRef  string
	AreaRef     string
	Title       string
	Description string
	Priority    domain.ComplaintPriority
}

// Create registers a new complaint in OPEN state with no assignment fields.
func (s *LifecycleService) Create(ctx context.Context, draft ComplaintDraft) (*domain.Complaint, error) {
	if strings.TrimSpace(draft.Title) == "" {
		return nil, apperrors.NewValidationError("title required", nil)
	}
	if strings.TrimSpace(draft.CustomerRef) == "" {
		return nil, apperrors.NewValidationError("customer_ref required", nil)
	}
	priority := draft.Priority
	if priority == "" {
		priority = domain.ComplaintPriorityMedium
	}
	if !domain.ValidPriority(priority) {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}

	complaint := &domain.Complaint{
		CustomerRef:   draft.CustomerRef,
		CompanyRef:    draft.CompanyRef,
		AreaRef:       draft.AreaRef,
		Title:         strings.TrimSpace(draft.Title),
		Description:   strings.TrimSpace(draft.Description),
		Priority:      priority,
		Status:        domain.ComplaintStatusOpen,
		SLAStatus:     domain.SLANotApplicable,
		PenaltyAmount: decimal.Zero,
	}
	if err := s.complaints.Create(ctx, complaint); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publish(ctx, events.Event{
		Type:        events.EventComplaintCreated,
		ComplaintID: complaint.ID,
		Payload: events.ComplaintCreatedPayload{
			CustomerRef: complaint.CustomerRef,
			AreaRef:     complaint.AreaRef,
			Priority:    complaint.Priority,
			Title:       complaint.Title,
		},
	})
	return complaint, nil
}

// Get fetches a complaint by id.
func (s *LifecycleService) Get(ctx context.Context, complaintID string) (*domain.Complaint, error) {
	complaint, err := s.complaints.GetByID(ctx, complaintID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("complaint", map[string]any{"complaint_id": complaintID})
		}
		return nil, apperrors.MapError(err)
	}
	return complaint, nil
}

// List returns complaints matching the filter, newest first.
func (s *LifecycleService) List(ctx context.Context, filter repository.ComplaintFilter) ([]domain.Complaint, error) {
	complaints, err := s.complaints.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return complaints, nil
}

// Assign routes a complaint to a staff member, stamping the assignment trio
// (assignee, assignedAt, slaDeadline) together and starting the SLA clock.
// Reassignment of an already-assigned complaint resets the SLA fields.
func (s *LifecycleService) Assign(ctx context.Context, complaintID, staffRef string, officeRef *string, reason string, actorRef *string) (*domain.Complaint, error) {
	staff, err := s.staff.GetByID(ctx, staffRef)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("staff", map[string]any{"staff_id": staffRef})
		}
		return nil, apperrors.MapError(err)
	}
	if !staff.Active {
		return nil, apperrors.NewIneligibleStaff("staff inactive", map[string]any{"staff_id": staffRef})
	}

	var office *domain.Office
	if officeRef != nil {
		office, err = s.offices.GetByID(ctx, *officeRef)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("office", map[string]any{"office_id": *officeRef})
			}
			return nil, apperrors.MapError(err)
		}
		if staff.OfficeRef == nil || *staff.OfficeRef != office.ID {
			return nil, apperrors.NewIneligibleStaff("staff does not belong to office", map[string]any{
				"staff_id":  staffRef,
				"office_id": office.ID,
			})
		}
	}

	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		complaint, err := s.Get(ctx, complaintID)
		if err != nil {
			return nil, err
		}
		if complaint.Status == domain.ComplaintStatusClosed {
			return nil, apperrors.NewInvalidTransition("cannot assign a closed complaint", map[string]any{
				"complaint_id": complaintID,
			})
		}
		if office != nil && !office.ServicesArea(complaint.AreaRef) {
			return nil, apperrors.NewIneligibleStaff("office does not service complaint area", map[string]any{
				"office_id": office.ID,
				"area_ref":  complaint.AreaRef,
			})
		}

		oldAssignee := complaint.AssignedTo
		now := s.clk.Now()
		deadline := s.calculator.DeadlineFor(complaint.Priority, now)

		complaint.AssignedTo = &staff.ID
		complaint.AssignedAt = &now
		complaint.SLADeadline = &deadline
		complaint.SLAStatus = domain.SLAPending
		if officeRef != nil {
			complaint.OfficeRef = officeRef
		} else {
			complaint.OfficeRef = staff.OfficeRef
		}
		if complaint.Status == domain.ComplaintStatusOpen {
			complaint.Status = domain.ComplaintStatusAssigned
		}

		// Guard against partial assignment writes reaching the store.
		if !complaint.AssignmentConsistent() {
			return nil, apperrors.NewInternalError(errors.New("inconsistent assignment fields"))
		}

		if err := s.complaints.UpdateVersioned(ctx, complaint); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				continue
			}
			return nil, apperrors.MapError(err)
		}

		s.afterAssignment(ctx, complaint, oldAssignee, reason, actorRef)
		return complaint, nil
	}
	return nil, apperrors.NewConcurrentModification("complaint")
}

// Reassign moves a complaint to a new assignee, resetting the SLA clock.
// The free-text reason is recorded in the audit trail.
func (s *LifecycleService) Reassign(ctx context.Context, complaintID, newStaffRef string, newOfficeRef *string, reason string, actorRef *string) (*domain.Complaint, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, apperrors.NewValidationError("reason required for reassignment", nil)
	}
	return s.Assign(ctx, complaintID, newStaffRef, newOfficeRef, reason, actorRef)
}

var allowedTransitions = map[domain.ComplaintStatus][]domain.ComplaintStatus{
	domain.ComplaintStatusOpen:       {domain.ComplaintStatusAssigned},
	domain.ComplaintStatusAssigned:   {domain.ComplaintStatusInProgress, domain.ComplaintStatusOnHold, domain.ComplaintStatusClosed},
	domain.ComplaintStatusInProgress: {domain.ComplaintStatusOnHold, domain.ComplaintStatusClosed},
	domain.ComplaintStatusOnHold:     {domain.ComplaintStatusInProgress},
	domain.ComplaintStatusClosed:     {},
}

func isValidTransition(current, next domain.ComplaintStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// TransitionStatus moves the complaint along the state machine. Closing via
// this path freezes slaStatus at its current value; use Close for the final
// deadline evaluation.
func (s *LifecycleService) TransitionStatus(ctx context.Context, complaintID string, newStatus domain.ComplaintStatus, actorRef *string) (*domain.Complaint, error) {
	if !domain.ValidStatus(newStatus) {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": newStatus})
	}
	return s.transition(ctx, complaintID, newStatus, actorRef, false)
}

// Close transitions to CLOSED and performs the final SLA evaluation: met if
// the deadline has not elapsed, breached (with at most one penalty charge)
// otherwise.
func (s *LifecycleService) Close(ctx context.Context, complaintID string, actorRef *string) (*domain.Complaint, error) {
	return s.transition(ctx, complaintID, domain.ComplaintStatusClosed, actorRef, true)
}

func (s *LifecycleService) transition(ctx context.Context, complaintID string, newStatus domain.ComplaintStatus, actorRef *string, evaluateSLA bool) (*domain.Complaint, error) {
	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		complaint, err := s.Get(ctx, complaintID)
		if err != nil {
			return nil, err
		}
		if !isValidTransition(complaint.Status, newStatus) {
			return nil, apperrors.NewInvalidTransition("status transition not permitted", map[string]any{
				"complaint_id": complaintID,
				"from":         complaint.Status,
				"to":           newStatus,
			})
		}

		oldStatus := complaint.Status
		now := s.clk.Now()
		complaint.Status = newStatus

		var breachPenalty *decimal.Decimal
		if newStatus == domain.ComplaintStatusClosed {
			complaint.ClosedAt = &now
			if evaluateSLA && complaint.SLAStatus == domain.SLAPending {
				evaluation := s.calculator.Evaluate(complaint, now)
				complaint.SLAStatus = evaluation.Status
				if evaluation.Status == domain.SLABreached && !complaint.PenaltyApplied {
					complaint.PenaltyApplied = true
					complaint.PenaltyAmount = evaluation.Penalty
					breachPenalty = &evaluation.Penalty
				}
			}
		}

		if err := s.complaints.UpdateVersioned(ctx, complaint); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				continue
			}
			return nil, apperrors.MapError(err)
		}

		s.afterTransition(ctx, complaint, oldStatus, breachPenalty, actorRef)
		return complaint, nil
	}
	return nil, apperrors.NewConcurrentModification("complaint")
}

// ListHistory returns the audit trail for a complaint.
func (s *LifecycleService) ListHistory(ctx context.Context, complaintID string, limit, offset int) ([]domain.ComplaintHistory, error) {
	if _, err := s.Get(ctx, complaintID); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByComplaint(ctx, complaintID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func (s *LifecycleService) afterAssignment(ctx context.Context, complaint *domain.Complaint, oldAssignee *string, reason string, actorRef *string) {
	if s.workload != nil {
		if oldAssignee != nil {
			s.workload.Invalidate(ctx, *oldAssignee)
		}
		if complaint.AssignedTo != nil {
			s.workload.Invalidate(ctx, *complaint.AssignedTo)
		}
	}
	s.metrics.RecordAssignment()
	s.recordHistory(ctx, complaint.ID, actorRef, domain.ChangeTypeAssignment,
		map[string]any{"assigned_to": oldAssignee},
		map[string]any{"assigned_to": complaint.AssignedTo, "sla_deadline": complaint.SLADeadline},
		reason,
	)

	eventType := events.EventComplaintAssigned
	if oldAssignee != nil {
		eventType = events.EventComplaintReassigned
	}
	s.publish(ctx, events.Event{
		Type:        eventType,
		ComplaintID: complaint.ID,
		ActorRef:    actorRef,
		Payload: events.ComplaintAssignedPayload{
			StaffRef:    *complaint.AssignedTo,
			OfficeRef:   complaint.OfficeRef,
			SLADeadline: *complaint.SLADeadline,
			Reason:      reason,
		},
	})
}

func (s *LifecycleService) afterTransition(ctx context.Context, complaint *domain.Complaint, oldStatus domain.ComplaintStatus, breachPenalty *decimal.Decimal, actorRef *string) {
	if complaint.Status == domain.ComplaintStatusClosed && s.workload != nil && complaint.AssignedTo != nil {
		s.workload.Invalidate(ctx, *complaint.AssignedTo)
	}
	s.recordHistory(ctx, complaint.ID, actorRef, domain.ChangeTypeStatus,
		map[string]any{"status": oldStatus},
		map[string]any{"status": complaint.Status},
		"",
	)

	s.publish(ctx, events.Event{
		Type:        events.EventComplaintStatusChanged,
		ComplaintID: complaint.ID,
		ActorRef:    actorRef,
		Payload: events.ComplaintStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: complaint.Status,
		},
	})
	if complaint.Status == domain.ComplaintStatusClosed {
		s.publish(ctx, events.Event{
			Type:        events.EventComplaintClosed,
			ComplaintID: complaint.ID,
			ActorRef:    actorRef,
			Payload: events.ComplaintClosedPayload{
				SLAStatus:     complaint.SLAStatus,
				PenaltyAmount: complaint.PenaltyAmount,
			},
		})
	}
	if breachPenalty != nil {
		s.recordHistory(ctx, complaint.ID, actorRef, domain.ChangeTypeSLABreach,
			map[string]any{"sla_status": domain.SLAPending},
			map[string]any{"sla_status": domain.SLABreached, "penalty_amount": breachPenalty.String()},
			"",
		)
		s.publish(ctx, events.Event{
			Type:        events.EventSLABreached,
			ComplaintID: complaint.ID,
			Payload: events.SLABreachedPayload{
				StaffRef:      complaint.AssignedTo,
				Deadline:      *complaint.SLADeadline,
				PenaltyAmount: *breachPenalty,
			},
		})
	}
}

func (s *LifecycleService) recordHistory(ctx context.Context, complaintID string, actorRef *string, changeType domain.ComplaintChangeType, oldValue, newValue map[string]any, reason string) {
	if s.history == nil {
		return
	}
	_ = s.history.Create(ctx, &domain.ComplaintHistory{
		ComplaintID: complaintID,
		ActorRef:    actorRef,
		ChangeType:  changeType,
		OldValue:    oldValue,
		NewValue:    newValue,
		Reason:      reason,
	})
}

func (s *LifecycleService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clk.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

// Clock exposes the service clock to sibling services that must agree on
// "now" (sweep, assignment snapshots).
func (s *LifecycleService) Clock() clock.Clock {
	return s.clk
}
