package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/complaint-engine/internal/clock"
	"github.com/spec-kit/complaint-engine/internal/domain"
	"github.com/spec-kit/complaint-engine/internal/events"
	"github.com/spec-kit/complaint-engine/internal/repository"
	"github.com/spec-kit/complaint-engine/internal/service"
	"github.com/spec-kit/complaint-engine/internal/sla"
	apperrors "github.com/spec-kit/complaint-engine/pkg/util"
)

var baseTime = time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	complaints *repository.MemoryComplaintRepository
	staff      *repository.MemoryStaffRepository
	offices    *repository.MemoryOfficeRepository
	history    *repository.MemoryHistoryRepository
	clk        *clock.Fake
	dispatcher events.Dispatcher
	lifecycle  *service.LifecycleService
	assignment *service.AssignmentService
	sweeper    *service.SweepService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		complaints: repository.NewMemoryComplaintRepository(),
		staff:      repository.NewMemoryStaffRepository(),
		offices:    repository.NewMemoryOfficeRepository(),
		history:    repository.NewMemoryHistoryRepository(),
		clk:        clock.NewFake(baseTime),
		dispatcher: events.NewInMemoryDispatcher(),
	}
	calculator := sla.NewCalculator(sla.Policy{})
	workload := service.NewWorkloadTracker(f.complaints, nil, 0, f.clk, nil)

	f.lifecycle = service.NewLifecycleService(service.LifecycleDependencies{
		ComplaintRepo: f.complaints,
		StaffRepo:     f.staff,
		OfficeRepo:    f.offices,
		HistoryRepo:   f.history,
		Workload:      workload,
		Calculator:    calculator,
		Dispatcher:    f.dispatcher,
		Clock:         f.clk,
	})
	f.assignment = service.NewAssignmentService(service.AssignmentDependencies{
		Lifecycle:     f.lifecycle,
		ComplaintRepo: f.complaints,
		StaffRepo:     f.staff,
		OfficeRepo:    f.offices,
		Workload:      workload,
	})
	f.sweeper = service.NewSweepService(service.SweepDependencies{
		ComplaintRepo: f.complaints,
		HistoryRepo:   f.history,
		Calculator:    calculator,
		Dispatcher:    f.dispatcher,
		Clock:         f.clk,
	})
	return f
}

func (f *fixture) addOffice(id string, areas ...string) {
	f.offices.Put(domain.Office{ID: id, Name: "office " + id, AreaRefs: areas})
}

func (f *fixture) addStaff(id, officeID string, capacity int) {
	var officeRef *string
	if officeID != "" {
		officeRef = &officeID
	}
	f.staff.Put(domain.StaffMember{
		ID:        id,
		Name:      "staff " + id,
		Role:      domain.StaffRoleTechnician,
		OfficeRef: officeRef,
		Capacity:  capacity,
		Active:    true,
	})
}

func (f *fixture) createComplaint(t *testing.T, priority domain.ComplaintPriority, areaRef string) *domain.Complaint {
	t.Helper()
	complaint, err := f.lifecycle.Create(context.Background(), service.ComplaintDraft{
		CustomerRef: "cust-1",
		AreaRef:     areaRef,
		Title:       "no internet",
		Description: "link down since morning",
		Priority:    priority,
	})
	require.NoError(t, err)
	return complaint
}

func TestCreate_DefaultsAndInitialState(t *testing.T) {
	f := newFixture(t)

	complaint, err := f.lifecycle.Create(context.Background(), service.ComplaintDraft{
		CustomerRef: "cust-1",
		Title:       "slow speeds",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ComplaintStatusOpen, complaint.Status)
	assert.Equal(t, domain.ComplaintPriorityMedium, complaint.Priority)
	assert.Equal(t, domain.SLANotApplicable, complaint.SLAStatus)
	assert.Nil(t, complaint.AssignedTo)
	assert.Nil(t, complaint.AssignedAt)
	assert.Nil(t, complaint.SLADeadline)
	assert.False(t, complaint.PenaltyApplied)
	assert.True(t, complaint.PenaltyAmount.IsZero())
}

func TestCreate_RequiresTitleAndCustomer(t *testing.T) {
	f := newFixture(t)

	_, err := f.lifecycle.Create(context.Background(), service.ComplaintDraft{CustomerRef: "cust-1"})
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	_, err = f.lifecycle.Create(context.Background(), service.ComplaintDraft{Title: "x"})
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestAssign_SetsAssignmentTrioTogether(t *testing.T) {
	f := newFixture(t)
	f.addOffice("office-1", "area-1")
	f.addStaff("tech-1", "office-1", 5)
	complaint := f.createComplaint(t, domain.ComplaintPriorityUrgent, "area-1")

	assigned, err := f.lifecycle.Assign(context.Background(), complaint.ID, "tech-1", nil, "", nil)
	require.NoError(t, err)

	assert.Equal(t, domain.ComplaintStatusAssigned, assigned.Status)
	require.NotNil(t, assigned.AssignedTo)
	assert.Equal(t, "tech-1", *assigned.AssignedTo)
	require.NotNil(t, assigned.AssignedAt)
	assert.Equal(t, baseTime, *assigned.AssignedAt)
	require.NotNil(t, assigned.SLADeadline)
	assert.Equal(t, baseTime.Add(4*time.Hour), *assigned.SLADeadline)
	assert.Equal(t, domain.SLAPending, assigned.SLAStatus)
	assert.True(t, assigned.AssignmentConsistent())
}

func TestAssign_FailsForUnknownComplaint(t *testing.T) {
	f := newFixture(t)
	f.addStaff("tech-1", "", 5)

	_, err := f.lifecycle.Assign(context.Background(), "missing", "tech-1", nil, "", nil)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestAssign_FailsForClosedComplaint(t *testing.T) {
	f := newFixture(t)
	f.addStaff("tech-1", "", 5)
	complaint := f.createComplaint(t, domain.ComplaintPriorityMedium, "")

	_, err := f.lifecycle.Assign(context.Background(), complaint.ID, "tech-1", nil, "", nil)
	require.NoError(t, err)
	_, err = f.lifecycle.Close(context.Background(), complaint.ID, nil)
	require.NoError(t, err)

	_, err = f.lifecycle.Assign(context.Background(), complaint.ID, "tech-1", nil, "", nil)
	assert.True(t, apperrors.IsCode(err, "INVALID_TRANSITION"))
}

func TestAssign_RejectsInactiveStaff(t *testing.T) {
	f := newFixture(t)
	f.staff.Put(domain.StaffMember{ID: "tech-1", Role: domain.StaffRoleTechnician, Capacity: 5, Active: false})
	complaint := f.createComplaint(t, domain.ComplaintPriorityMedium, "")

	_, err := f.lifecycle.Assign(context.Background(), complaint.ID, "tech-1", nil, "", nil)
	assert.True(t, apperrors.IsCode(err, "INELIGIBLE_STAFF"))
}

func TestAssign_RejectsOfficeMismatch(t *testing.T) {
	f := newFixture(t)
	f.addOffice("office-1", "area-1")
	f.addOffice("office-2", "area-2")
	f.addStaff("tech-1", "office-1", 5)
	complaint := f.createComplaint(t, domain.ComplaintPriorityMedium, "area-2")

	officeTwo := "office-2"
	_, err := f.lifecycle.Assign(context.Background(), complaint.ID, "tech-1", &officeTwo, "", nil)
	assert.True(t, apperrors.IsCode(err, "INELIGIBLE_STAFF"))
}

func TestAssign_RejectsOfficeNotServicingArea(t *testing.T) {
	f := newFixture(t)
	f.addOffice("office-1", "area-1")
	f.addStaff("tech-1", "office-1", 5)
	complaint := f.createComplaint(t, domain.ComplaintPriorityMedium, "area-other")

	officeOne := "office-1"
	_, err := f.lifecycle.Assign(context.Background(), complaint.ID, "tech-1", &officeOne, "", nil)
	assert.True(t, apperrors.IsCode(err, "INELIGIBLE_STAFF"))
}

func TestReassign_ResetsSLAClock(t *testing.T) {
	f := newFixture(t)
	f.addStaff("tech-1", "", 5)
	f.addStaff("tech-2", "", 5)
	complaint := f.createComplaint(t, domain.ComplaintPriorityUrgent, "")

	_, err := f.lifecycle.Assign(context.Background(), complaint.ID, "tech-1", nil, "", nil)
	require.NoError(t, err)

	f.clk.Advance(2 * time.Hour)
	reassigned, err := f.lifecycle.Reassign(context.Background(), complaint.ID, "tech-2", nil, "tech-1 unavailable", nil)
	require.NoError(t, err)

	assert.Equal(t, "tech-2", *reassigned.AssignedTo)
	assert.Equal(t, baseTime.Add(2*time.Hour), *reassigned.AssignedAt)
	assert.Equal(t, baseTime.Add(6*time.Hour), *reassigned.SLADeadline)
	assert.Equal(t, domain.SLAPending, reassigned.SLAStatus)
}

func TestReassign_RequiresReason(t *testing.T) {
	f := newFixture(t)
	f.addStaff("tech-1", "", 5)
	complaint := f.createComplaint(t, domain.ComplaintPriorityMedium, "")

	_, err := f.lifecycle.Reassign(context.Background(), complaint.ID, "tech-1", nil, "  ", nil)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestTransitionStatus_AllowedEdges(t *testing.T) {
	f := newFixture(t)
	f.addStaff("tech-1", "", 5)
	complaint := f.createComplaint(t, domain.ComplaintPriorityMedium, "")
	ctx := context.Background()

	_, err := f.lifecycle.Assign(ctx, complaint.ID, "tech-1", nil, "", nil)
	require.NoError(t, err)

	updated, err := f.lifecycle.TransitionStatus(ctx, complaint.ID, domain.ComplaintStatusInProgress, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ComplaintStatusInProgress, updated.Status)

	updated, err = f.lifecycle.TransitionStatus(ctx, complaint.ID, domain.ComplaintStatusOnHold, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ComplaintStatusOnHold, updated.Status)

	updated, err = f.lifecycle.TransitionStatus(ctx, complaint.ID, domain.ComplaintStatusInProgress, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ComplaintStatusInProgress, updated.Status)
}

func TestTransitionStatus_RejectsDisallowedEdges(t *testing.T) {
	f := newFixture(t)
	complaint := f.createComplaint(t, domain.ComplaintPriorityMedium, "")
	ctx := context.Background()

	// open -> closed directly is forbidden.
	_, err := f.lifecycle.TransitionStatus(ctx, complaint.ID, domain.ComplaintStatusClosed, nil)
	assert.True(t, apperrors.IsCode(err, "INVALID_TRANSITION"))

	// open -> in_progress skips assignment.
	_, err = f.lifecycle.TransitionStatus(ctx, complaint.ID, domain.ComplaintStatusInProgress, nil)
	assert.True(t, apperrors.IsCode(err, "INVALID_TRANSITION"))

	unchanged, err := f.lifecycle.Get(ctx, complaint.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ComplaintStatusOpen, unchanged.Status)
}

func TestTransitionStatus_ClosedIsTerminal(t *testing.T) {
	f := newFixture(t)
	f.addStaff("tech-1", "", 5)
	complaint := f.createComplaint(t, domain.ComplaintPriorityMedium, "")
	ctx := context.Background()

	_, err := f.lifecycle.Assign(ctx, complaint.ID, "tech-1", nil, "", nil)
	require.NoError(t, err)
	closed, err := f.lifecycle.Close(ctx, complaint.ID, nil)
	require.NoError(t, err)
	frozenStatus := closed.SLAStatus

	_, err = f.lifecycle.TransitionStatus(ctx, complaint.ID, domain.ComplaintStatusInProgress, nil)
	assert.True(t, apperrors.IsCode(err, "INVALID_TRANSITION"))

	unchanged, err := f.lifecycle.Get(ctx, complaint.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ComplaintStatusClosed, unchanged.Status)
	assert.Equal(t, frozenStatus, unchanged.SLAStatus)
}

func TestClose_BeforeDeadlineMarksMet(t *testing.T) {
	f := newFixture(t)
	f.addStaff("tech-1", "", 5)
	complaint := f.createComplaint(t, domain.ComplaintPriorityUrgent, "")
	ctx := context.Background()

	_, err := f.lifecycle.Assign(ctx, complaint.ID, "tech-1", nil, "", nil)
	require.NoError(t, err)

	f.clk.Advance(time.Hour)
	closed, err := f.lifecycle.Close(ctx, complaint.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.ComplaintStatusClosed, closed.Status)
	assert.Equal(t, domain.SLAMet, closed.SLAStatus)
	assert.False(t, closed.PenaltyApplied)
	assert.True(t, closed.PenaltyAmount.IsZero())
	require.NotNil(t, closed.ClosedAt)
	assert.Equal(t, baseTime.Add(time.Hour), *closed.ClosedAt)
}

func TestClose_AfterDeadlineBreachesWithPenalty(t *testing.T) {
	f := newFixture(t)
	f.addStaff("tech-1", "", 5)
	complaint := f.createComplaint(t, domain.ComplaintPriorityUrgent, "")
	ctx := context.Background()

	_, err := f.lifecycle.Assign(ctx, complaint.ID, "tech-1", nil, "", nil)
	require.NoError(t, err)

	f.clk.Advance(5 * time.Hour)
	closed, err := f.lifecycle.Close(ctx, complaint.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.SLABreached, closed.SLAStatus)
	assert.True(t, closed.PenaltyApplied)
	assert.Equal(t, "500", closed.PenaltyAmount.String())
}

// contendedComplaintRepo simulates a complaint under continuous concurrent
// mutation: every versioned update loses the race.
type contendedComplaintRepo struct {
	*repository.MemoryComplaintRepository
	attempts int
}

func (r *contendedComplaintRepo) UpdateVersioned(_ context.Context, _ *domain.Complaint) error {
	r.attempts++
	return repository.ErrVersionConflict
}

func TestAssign_ExhaustedRetriesSurfaceConcurrentModification(t *testing.T) {
	f := newFixture(t)
	f.addStaff("tech-1", "", 5)
	complaint := f.createComplaint(t, domain.ComplaintPriorityMedium, "")
	ctx := context.Background()

	contended := &contendedComplaintRepo{MemoryComplaintRepository: f.complaints}
	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		ComplaintRepo: contended,
		StaffRepo:     f.staff,
		OfficeRepo:    f.offices,
		HistoryRepo:   f.history,
		Calculator:    sla.NewCalculator(sla.Policy{}),
		Clock:         f.clk,
	})

	_, err := lifecycle.Assign(ctx, complaint.ID, "tech-1", nil, "", nil)
	assert.True(t, apperrors.IsCode(err, "CONCURRENT_MODIFICATION"))
	assert.Equal(t, 3, contended.attempts)

	unchanged, err := f.lifecycle.Get(ctx, complaint.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ComplaintStatusOpen, unchanged.Status)
	assert.Nil(t, unchanged.AssignedTo)
}

func TestTransitionStatus_ExhaustedRetriesSurfaceConcurrentModification(t *testing.T) {
	f := newFixture(t)
	f.addStaff("tech-1", "", 5)
	complaint := f.createComplaint(t, domain.ComplaintPriorityMedium, "")
	ctx := context.Background()

	_, err := f.lifecycle.Assign(ctx, complaint.ID, "tech-1", nil, "", nil)
	require.NoError(t, err)

	contended := &contendedComplaintRepo{MemoryComplaintRepository: f.complaints}
	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		ComplaintRepo: contended,
		StaffRepo:     f.staff,
		OfficeRepo:    f.offices,
		HistoryRepo:   f.history,
		Calculator:    sla.NewCalculator(sla.Policy{}),
		Clock:         f.clk,
	})

	_, err = lifecycle.TransitionStatus(ctx, complaint.ID, domain.ComplaintStatusInProgress, nil)
	assert.True(t, apperrors.IsCode(err, "CONCURRENT_MODIFICATION"))
	assert.Equal(t, 3, contended.attempts)
}

func TestConcurrentReassign_ExactlyOneConsistentOutcome(t *testing.T) {
	f := newFixture(t)
	f.addStaff("tech-1", "", 10)
	f.addStaff("tech-2", "", 10)
	f.addStaff("tech-3", "", 10)
	complaint := f.createComplaint(t, domain.ComplaintPriorityHigh, "")
	ctx := context.Background()

	_, err := f.lifecycle.Assign(ctx, complaint.ID, "tech-1", nil, "", nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	targets := []string{"tech-2", "tech-3"}
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target string) {
			defer wg.Done()
			_, errs[i] = f.lifecycle.Reassign(ctx, complaint.ID, target, nil, "handover", nil)
		}(i, target)
	}
	wg.Wait()

	// Both may serialize cleanly; at most one may fail, and only with
	// CONCURRENT_MODIFICATION.
	for _, err := range errs {
		if err != nil {
			assert.True(t, apperrors.IsCode(err, "CONCURRENT_MODIFICATION"))
		}
	}

	final, err := f.lifecycle.Get(ctx, complaint.ID)
	require.NoError(t, err)
	require.NotNil(t, final.AssignedTo)
	assert.Contains(t, targets, *final.AssignedTo)
	assert.True(t, final.AssignmentConsistent())
	assert.Equal(t, domain.SLAPending, final.SLAStatus)
}

func TestList_FiltersByStatusAndAssignee(t *testing.T) {
	f := newFixture(t)
	f.addStaff("tech-1", "", 10)
	ctx := context.Background()

	assigned := f.createComplaint(t, domain.ComplaintPriorityMedium, "")
	_, err := f.lifecycle.Assign(ctx, assigned.ID, "tech-1", nil, "", nil)
	require.NoError(t, err)
	f.createComplaint(t, domain.ComplaintPriorityMedium, "")

	staffRef := "tech-1"
	result, err := f.lifecycle.List(ctx, repository.ComplaintFilter{
		AssignedTo: &staffRef,
		Statuses:   []domain.ComplaintStatus{domain.ComplaintStatusAssigned},
	})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, assigned.ID, result[0].ID)

	open, err := f.lifecycle.List(ctx, repository.ComplaintFilter{
		Statuses: []domain.ComplaintStatus{domain.ComplaintStatusOpen},
	})
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestHistory_RecordsAssignmentsAndTransitions(t *testing.T) {
	f := newFixture(t)
	f.addStaff("tech-1", "", 5)
	complaint := f.createComplaint(t, domain.ComplaintPriorityMedium, "")
	ctx := context.Background()

	_, err := f.lifecycle.Assign(ctx, complaint.ID, "tech-1", nil, "first shift", nil)
	require.NoError(t, err)
	_, err = f.lifecycle.TransitionStatus(ctx, complaint.ID, domain.ComplaintStatusInProgress, nil)
	require.NoError(t, err)

	entries, err := f.lifecycle.ListHistory(ctx, complaint.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.ChangeTypeAssignment, entries[0].ChangeType)
	assert.Equal(t, "first shift", entries[0].Reason)
	assert.Equal(t, domain.ChangeTypeStatus, entries[1].ChangeType)
}
