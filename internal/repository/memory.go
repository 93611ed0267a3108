package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/complaint-engine/internal/domain"
)

// In-memory repositories back tests and local development without postgres.
// They honor the same contracts as the pgx implementations, including
// ErrVersionConflict on stale versioned updates, so concurrency behavior is
// identical to production.

// MemoryComplaintRepository is a mutex-guarded ComplaintRepository.
type MemoryComplaintRepository struct {
	mu         sync.Mutex
	complaints map[string]domain.Complaint
}

// NewMemoryComplaintRepository builds an empty in-memory store.
func NewMemoryComplaintRepository() *MemoryComplaintRepository {
	return &MemoryComplaintRepository{complaints: make(map[string]domain.Complaint)}
}

func (r *MemoryComplaintRepository) Create(_ context.Context, complaint *domain.Complaint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if complaint.ID == "" {
		complaint.ID = uuid.NewString()
	}
	now := time.Now()
	if complaint.CreatedAt.IsZero() {
		complaint.CreatedAt = now
	}
	complaint.UpdatedAt = now
	complaint.Version = 1
	r.complaints[complaint.ID] = cloneComplaint(*complaint)
	return nil
}

func (r *MemoryComplaintRepository) GetByID(_ context.Context, id string) (*domain.Complaint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.complaints[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := cloneComplaint(stored)
	return &copied, nil
}

func (r *MemoryComplaintRepository) UpdateVersioned(_ context.Context, complaint *domain.Complaint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.complaints[complaint.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.Version != complaint.Version {
		return ErrVersionConflict
	}
	complaint.Version++
	complaint.UpdatedAt = time.Now()
	r.complaints[complaint.ID] = cloneComplaint(*complaint)
	return nil
}

func (r *MemoryComplaintRepository) ListWithFilter(_ context.Context, filter ComplaintFilter) ([]domain.Complaint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []domain.Complaint
	for _, complaint := range r.complaints {
		if !matchesFilter(complaint, filter) {
			continue
		}
		result = append(result, cloneComplaint(complaint))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	limit := filter.Limit
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func (r *MemoryComplaintRepository) ListPendingSLA(_ context.Context, before time.Time) ([]domain.Complaint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []domain.Complaint
	for _, complaint := range r.complaints {
		if complaint.SLAStatus != domain.SLAPending || complaint.SLADeadline == nil {
			continue
		}
		if !complaint.SLADeadline.Before(before) {
			continue
		}
		result = append(result, cloneComplaint(complaint))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SLADeadline.Before(*result[j].SLADeadline)
	})
	return result, nil
}

func (r *MemoryComplaintRepository) WorkloadCounts(_ context.Context, staffRef string, dayStart time.Time) (domain.WorkloadSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := domain.WorkloadSnapshot{StaffRef: staffRef}
	for _, complaint := range r.complaints {
		if complaint.AssignedTo == nil || *complaint.AssignedTo != staffRef {
			continue
		}
		switch complaint.Status {
		case domain.ComplaintStatusAssigned, domain.ComplaintStatusInProgress, domain.ComplaintStatusOnHold:
			snapshot.ActiveCount++
		case domain.ComplaintStatusClosed:
			snapshot.CompletedCount++
		}
		if !complaint.CreatedAt.Before(dayStart) {
			snapshot.TodayCount++
		}
	}
	return snapshot, nil
}

func (r *MemoryComplaintRepository) SLAStats(_ context.Context, officeRef *string) (domain.SLAStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stats domain.SLAStats
	for _, complaint := range r.complaints {
		if officeRef != nil && (complaint.OfficeRef == nil || *complaint.OfficeRef != *officeRef) {
			continue
		}
		if complaint.AssignedAt != nil {
			stats.TotalAssigned++
		}
		switch complaint.SLAStatus {
		case domain.SLAMet:
			stats.SLAMet++
		case domain.SLABreached:
			stats.SLABreached++
		}
		if complaint.PenaltyApplied {
			stats.TotalPenalties = stats.TotalPenalties.Add(complaint.PenaltyAmount)
		}
	}
	if decided := stats.SLAMet + stats.SLABreached; decided > 0 {
		stats.ComplianceRate = float64(stats.SLAMet) / float64(decided)
	}
	return stats, nil
}

func matchesFilter(complaint domain.Complaint, filter ComplaintFilter) bool {
	if filter.CustomerRef != nil && complaint.CustomerRef != *filter.CustomerRef {
		return false
	}
	if filter.OfficeRef != nil && (complaint.OfficeRef == nil || *complaint.OfficeRef != *filter.OfficeRef) {
		return false
	}
	if filter.AssignedTo != nil && (complaint.AssignedTo == nil || *complaint.AssignedTo != *filter.AssignedTo) {
		return false
	}
	if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, complaint.Status) {
		return false
	}
	if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, complaint.Priority) {
		return false
	}
	if len(filter.SLAStatuses) > 0 && !containsSLAStatus(filter.SLAStatuses, complaint.SLAStatus) {
		return false
	}
	if filter.CreatedFrom != nil && complaint.CreatedAt.Before(*filter.CreatedFrom) {
		return false
	}
	if filter.CreatedTo != nil && complaint.CreatedAt.After(*filter.CreatedTo) {
		return false
	}
	return true
}

func containsStatus(list []domain.ComplaintStatus, v domain.ComplaintStatus) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.ComplaintPriority, v domain.ComplaintPriority) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func containsSLAStatus(list []domain.SLAStatus, v domain.SLAStatus) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func cloneComplaint(c domain.Complaint) domain.Complaint {
	c.AssignedTo = clonePtr(c.AssignedTo)
	c.OfficeRef = clonePtr(c.OfficeRef)
	c.AssignedAt = clonePtr(c.AssignedAt)
	c.SLADeadline = clonePtr(c.SLADeadline)
	c.ClosedAt = clonePtr(c.ClosedAt)
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// MemoryStaffRepository is a mutex-guarded StaffRepository.
type MemoryStaffRepository struct {
	mu    sync.Mutex
	staff map[string]domain.StaffMember
}

// NewMemoryStaffRepository builds an empty in-memory store.
func NewMemoryStaffRepository() *MemoryStaffRepository {
	return &MemoryStaffRepository{staff: make(map[string]domain.StaffMember)}
}

// Put inserts or replaces a staff member.
func (r *MemoryStaffRepository) Put(staff domain.StaffMember) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staff[staff.ID] = staff
}

func (r *MemoryStaffRepository) GetByID(_ context.Context, id string) (*domain.StaffMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.staff[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := stored
	return &copied, nil
}

func (r *MemoryStaffRepository) List(_ context.Context, filter StaffFilter) ([]domain.StaffMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []domain.StaffMember
	for _, staff := range r.staff {
		if filter.OfficeRef != nil && (staff.OfficeRef == nil || *staff.OfficeRef != *filter.OfficeRef) {
			continue
		}
		if filter.Active != nil && staff.Active != *filter.Active {
			continue
		}
		if len(filter.Roles) > 0 && !containsRole(filter.Roles, staff.Role) {
			continue
		}
		result = append(result, staff)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func containsRole(list []domain.StaffRole, v domain.StaffRole) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// MemoryOfficeRepository is a mutex-guarded OfficeRepository.
type MemoryOfficeRepository struct {
	mu      sync.Mutex
	offices map[string]domain.Office
}

// NewMemoryOfficeRepository builds an empty in-memory store.
func NewMemoryOfficeRepository() *MemoryOfficeRepository {
	return &MemoryOfficeRepository{offices: make(map[string]domain.Office)}
}

// Put inserts or replaces an office.
func (r *MemoryOfficeRepository) Put(office domain.Office) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offices[office.ID] = office
}

func (r *MemoryOfficeRepository) GetByID(_ context.Context, id string) (*domain.Office, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.offices[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := stored
	copied.AreaRefs = append([]string(nil), stored.AreaRefs...)
	return &copied, nil
}

func (r *MemoryOfficeRepository) List(_ context.Context) ([]domain.Office, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []domain.Office
	for _, office := range r.offices {
		copied := office
		copied.AreaRefs = append([]string(nil), office.AreaRefs...)
		result = append(result, copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// MemoryHistoryRepository is a mutex-guarded ComplaintHistoryRepository.
type MemoryHistoryRepository struct {
	mu      sync.Mutex
	entries []domain.ComplaintHistory
}

// NewMemoryHistoryRepository builds an empty in-memory store.
func NewMemoryHistoryRepository() *MemoryHistoryRepository {
	return &MemoryHistoryRepository{}
}

func (r *MemoryHistoryRepository) Create(_ context.Context, history *domain.ComplaintHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if history.ID == "" {
		history.ID = uuid.NewString()
	}
	if history.CreatedAt.IsZero() {
		history.CreatedAt = time.Now()
	}
	r.entries = append(r.entries, *history)
	return nil
}

func (r *MemoryHistoryRepository) ListByComplaint(_ context.Context, complaintID string, limit, offset int) ([]domain.ComplaintHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []domain.ComplaintHistory
	for _, entry := range r.entries {
		if entry.ComplaintID == complaintID {
			result = append(result, entry)
		}
	}
	if offset > 0 {
		if offset >= len(result) {
			return nil, nil
		}
		result = result[offset:]
	}
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}
