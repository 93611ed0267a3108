package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/complaint-engine/internal/domain"
	"github.com/spec-kit/complaint-engine/internal/repository"
)

func TestUpdateVersioned_RejectsStaleVersion(t *testing.T) {
	repo := repository.NewMemoryComplaintRepository()
	ctx := context.Background()

	complaint := &domain.Complaint{CustomerRef: "cust-1", Title: "line down", Status: domain.ComplaintStatusOpen, Priority: domain.ComplaintPriorityMedium, SLAStatus: domain.SLANotApplicable}
	require.NoError(t, repo.Create(ctx, complaint))
	require.Equal(t, int64(1), complaint.Version)

	first, err := repo.GetByID(ctx, complaint.ID)
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, complaint.ID)
	require.NoError(t, err)

	first.Status = domain.ComplaintStatusAssigned
	require.NoError(t, repo.UpdateVersioned(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.Status = domain.ComplaintStatusAssigned
	err = repo.UpdateVersioned(ctx, second)
	assert.ErrorIs(t, err, repository.ErrVersionConflict)

	stored, err := repo.GetByID(ctx, complaint.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
}

func TestGetByID_MissingRowMatchesPgxSentinel(t *testing.T) {
	repo := repository.NewMemoryComplaintRepository()

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestGetByID_ReturnsIsolatedCopy(t *testing.T) {
	repo := repository.NewMemoryComplaintRepository()
	ctx := context.Background()

	staffRef := "tech-1"
	complaint := &domain.Complaint{CustomerRef: "cust-1", Title: "x", Status: domain.ComplaintStatusAssigned, Priority: domain.ComplaintPriorityLow, SLAStatus: domain.SLAPending, AssignedTo: &staffRef}
	require.NoError(t, repo.Create(ctx, complaint))

	loaded, err := repo.GetByID(ctx, complaint.ID)
	require.NoError(t, err)
	*loaded.AssignedTo = "tampered"
	loaded.Status = domain.ComplaintStatusClosed

	fresh, err := repo.GetByID(ctx, complaint.ID)
	require.NoError(t, err)
	assert.Equal(t, "tech-1", *fresh.AssignedTo)
	assert.Equal(t, domain.ComplaintStatusAssigned, fresh.Status)
}

func TestListPendingSLA_StrictlyBeforeCutoff(t *testing.T) {
	repo := repository.NewMemoryComplaintRepository()
	ctx := context.Background()
	cutoff := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	mk := func(deadline time.Time, slaStatus domain.SLAStatus) *domain.Complaint {
		c := &domain.Complaint{CustomerRef: "cust", Title: "x", Status: domain.ComplaintStatusAssigned, Priority: domain.ComplaintPriorityMedium, SLAStatus: slaStatus, SLADeadline: &deadline}
		require.NoError(t, repo.Create(ctx, c))
		return c
	}

	overdue := mk(cutoff.Add(-time.Hour), domain.SLAPending)
	mk(cutoff, domain.SLAPending)               // exactly at cutoff stays out
	mk(cutoff.Add(time.Hour), domain.SLAPending)
	mk(cutoff.Add(-time.Hour), domain.SLABreached) // already decided

	pending, err := repo.ListPendingSLA(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, overdue.ID, pending[0].ID)
}

func TestStaffList_FiltersAndOrders(t *testing.T) {
	repo := repository.NewMemoryStaffRepository()
	office := "office-1"
	repo.Put(domain.StaffMember{ID: "tech-b", Role: domain.StaffRoleTechnician, OfficeRef: &office, Capacity: 5, Active: true})
	repo.Put(domain.StaffMember{ID: "tech-a", Role: domain.StaffRoleTechnician, OfficeRef: &office, Capacity: 5, Active: true})
	repo.Put(domain.StaffMember{ID: "tech-c", Role: domain.StaffRoleTechnician, OfficeRef: &office, Capacity: 5, Active: false})
	repo.Put(domain.StaffMember{ID: "mgr-1", Role: domain.StaffRoleManager, OfficeRef: &office, Capacity: 5, Active: true})

	active := true
	list, err := repo.List(context.Background(), repository.StaffFilter{
		OfficeRef: &office,
		Active:    &active,
		Roles:     []domain.StaffRole{domain.StaffRoleTechnician},
	})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "tech-a", list[0].ID)
	assert.Equal(t, "tech-b", list[1].ID)
}
