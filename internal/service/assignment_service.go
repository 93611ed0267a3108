package service

import (
	"context"
	"errors"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/complaint-engine/internal/domain"
	"github.com/spec-kit/complaint-engine/internal/repository"
	apperrors "github.com/spec-kit/complaint-engine/pkg/util"
)

// AssignmentService selects assignees for complaints. Candidate ranking is
// best-effort under concurrency: snapshots may go stale between selection and
// commit, but the final write is still serialized per complaint by the
// lifecycle's versioned update.
type AssignmentService struct {
	lifecycle  *LifecycleService
	complaints repository.ComplaintRepository
	staff      repository.StaffRepository
	offices    repository.OfficeRepository
	workload   *WorkloadTracker
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	Lifecycle     *LifecycleService
	ComplaintRepo repository.ComplaintRepository
	StaffRepo     repository.StaffRepository
	OfficeRepo    repository.OfficeRepository
	Workload      *WorkloadTracker
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		lifecycle:  deps.Lifecycle,
		complaints: deps.ComplaintRepo,
		staff:      deps.StaffRepo,
		offices:    deps.OfficeRepo,
		workload:   deps.Workload,
	}
}

// AssignmentResult reports the outcome of an assignment operation.
type AssignmentResult struct {
	Complaint *domain.Complaint
	StaffRef  string
}

// BatchItemResult records the per-complaint outcome within a batch.
type BatchItemResult struct {
	ComplaintID string
	Success     bool
	StaffRef    string
	ErrorCode   string
	ErrorDetail string
}

// BatchResult summarizes an auto-assign batch.
type BatchResult struct {
	Successful int
	Failed     int
	Results    []BatchItemResult
}

// AutoAssign picks the least-loaded eligible staff member for the complaint
// and delegates to the lifecycle's assign. Selection is deterministic for a
// fixed workload: lowest active/capacity ratio, then lowest absolute active
// count, then staff id ascending.
func (s *AssignmentService) AutoAssign(ctx context.Context, complaintID string, actorRef *string) (*AssignmentResult, error) {
	complaint, err := s.lifecycle.Get(ctx, complaintID)
	if err != nil {
		return nil, err
	}
	if complaint.Status == domain.ComplaintStatusClosed {
		return nil, apperrors.NewInvalidTransition("cannot assign a closed complaint", map[string]any{
			"complaint_id": complaintID,
		})
	}

	candidate, err := s.selectCandidate(ctx, complaint)
	if err != nil {
		return nil, err
	}

	assigned, err := s.lifecycle.Assign(ctx, complaintID, candidate.Staff.ID, candidate.Staff.OfficeRef, "auto-assigned", actorRef)
	if err != nil {
		return nil, err
	}
	return &AssignmentResult{Complaint: assigned, StaffRef: candidate.Staff.ID}, nil
}

// AutoAssignBatch applies AutoAssign to each complaint independently.
// Failures do not abort the batch; workload is recomputed between items, so
// a batch load-balances within itself.
func (s *AssignmentService) AutoAssignBatch(ctx context.Context, complaintIDs []string, actorRef *string) BatchResult {
	result := BatchResult{Results: make([]BatchItemResult, 0, len(complaintIDs))}
	for _, complaintID := range complaintIDs {
		item := BatchItemResult{ComplaintID: complaintID}
		assignment, err := s.AutoAssign(ctx, complaintID, actorRef)
		if err != nil {
			item.Success = false
			domainErr := apperrors.ToDomainError(err)
			item.ErrorCode = domainErr.Code
			item.ErrorDetail = domainErr.Message
			result.Failed++
		} else {
			item.Success = true
			item.StaffRef = assignment.StaffRef
			result.Successful++
		}
		result.Results = append(result.Results, item)
	}
	return result
}

// ManualAssign validates the supplied staff/office pair and delegates to the
// lifecycle's assign, recording reason as an audit note.
func (s *AssignmentService) ManualAssign(ctx context.Context, complaintID, staffRef string, officeRef *string, reason string, actorRef *string) (*AssignmentResult, error) {
	assigned, err := s.lifecycle.Assign(ctx, complaintID, staffRef, officeRef, reason, actorRef)
	if err != nil {
		return nil, err
	}
	return &AssignmentResult{Complaint: assigned, StaffRef: staffRef}, nil
}

// AvailableStaff lists active staff for an office with their workload,
// sorted ascending by load ratio.
func (s *AssignmentService) AvailableStaff(ctx context.Context, officeRef string) ([]domain.StaffWithWorkload, error) {
	if _, err := s.offices.GetByID(ctx, officeRef); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("office", map[string]any{"office_id": officeRef})
		}
		return nil, apperrors.MapError(err)
	}

	active := true
	staffList, err := s.staff.List(ctx, repository.StaffFilter{OfficeRef: &officeRef, Active: &active})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	result := make([]domain.StaffWithWorkload, 0, len(staffList))
	for _, staff := range staffList {
		snapshot, err := s.workload.Snapshot(ctx, staff.ID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		result = append(result, domain.StaffWithWorkload{Staff: staff, Workload: snapshot})
	}
	sort.Slice(result, func(i, j int) bool {
		return lessLoaded(result[i], result[j])
	})
	return result, nil
}

// StaffWorkload returns the workload snapshot for one staff member.
func (s *AssignmentService) StaffWorkload(ctx context.Context, staffRef string) (*domain.StaffWithWorkload, error) {
	staff, err := s.staff.GetByID(ctx, staffRef)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("staff", map[string]any{"staff_id": staffRef})
		}
		return nil, apperrors.MapError(err)
	}
	snapshot, err := s.workload.Snapshot(ctx, staff.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &domain.StaffWithWorkload{Staff: *staff, Workload: snapshot}, nil
}

func (s *AssignmentService) selectCandidate(ctx context.Context, complaint *domain.Complaint) (*domain.StaffWithWorkload, error) {
	active := true
	staffList, err := s.staff.List(ctx, repository.StaffFilter{
		Active: &active,
		Roles:  domain.AssignableRoles(),
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	offices, err := s.officesByID(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []domain.StaffWithWorkload
	for _, staff := range staffList {
		if !s.eligibleForArea(staff, complaint.AreaRef, offices) {
			continue
		}
		snapshot, err := s.workload.Snapshot(ctx, staff.ID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if staff.Capacity > 0 && snapshot.ActiveCount >= staff.Capacity {
			continue
		}
		candidates = append(candidates, domain.StaffWithWorkload{Staff: staff, Workload: snapshot})
	}
	if len(candidates) == 0 {
		return nil, apperrors.NewNoEligibleStaff(map[string]any{
			"complaint_id": complaint.ID,
			"area_ref":     complaint.AreaRef,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return lessLoaded(candidates[i], candidates[j])
	})
	return &candidates[0], nil
}

func (s *AssignmentService) eligibleForArea(staff domain.StaffMember, areaRef string, offices map[string]domain.Office) bool {
	if areaRef == "" {
		return true
	}
	if staff.OfficeRef == nil {
		return false
	}
	office, ok := offices[*staff.OfficeRef]
	if !ok {
		return false
	}
	return office.ServicesArea(areaRef)
}

func (s *AssignmentService) officesByID(ctx context.Context) (map[string]domain.Office, error) {
	offices, err := s.offices.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	byID := make(map[string]domain.Office, len(offices))
	for _, office := range offices {
		byID[office.ID] = office
	}
	return byID, nil
}

// lessLoaded orders candidates by load ratio, then absolute active count,
// then staff id for determinism.
func lessLoaded(a, b domain.StaffWithWorkload) bool {
	ratioA := a.Workload.LoadRatio(a.Staff.Capacity)
	ratioB := b.Workload.LoadRatio(b.Staff.Capacity)
	if ratioA != ratioB {
		return ratioA < ratioB
	}
	if a.Workload.ActiveCount != b.Workload.ActiveCount {
		return a.Workload.ActiveCount < b.Workload.ActiveCount
	}
	return a.Staff.ID < b.Staff.ID
}
