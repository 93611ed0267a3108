package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/complaint-engine/internal/domain"
)

// ErrVersionConflict signals that a versioned update lost an optimistic race.
// Callers reload and retry or surface CONCURRENT_MODIFICATION.
var ErrVersionConflict = errors.New("complaint version conflict")

// ComplaintFilter captures listing parameters.
type ComplaintFilter struct {
	CustomerRef *string
	OfficeRef   *string
	AssignedTo  *string
	Statuses    []domain.ComplaintStatus
	Priorities  []domain.ComplaintPriority
	SLAStatuses []domain.SLAStatus
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// ComplaintRepository encapsulates complaint persistence.
type ComplaintRepository interface {
	Create(ctx context.Context, complaint *domain.Complaint) error
	GetByID(ctx context.Context, id string) (*domain.Complaint, error)
	// UpdateVersioned persists the complaint only if the stored version
	// matches complaint.Version, then increments it. Returns
	// ErrVersionConflict otherwise.
	UpdateVersioned(ctx context.Context, complaint *domain.Complaint) error
	ListWithFilter(ctx context.Context, filter ComplaintFilter) ([]domain.Complaint, error)
	// ListPendingSLA returns complaints with a pending SLA whose deadline
	// elapsed before the given instant.
	ListPendingSLA(ctx context.Context, before time.Time) ([]domain.Complaint, error)
	// WorkloadCounts derives the workload snapshot for a staff member.
	// dayStart bounds the today-count window.
	WorkloadCounts(ctx context.Context, staffRef string, dayStart time.Time) (domain.WorkloadSnapshot, error)
	// SLAStats aggregates SLA outcomes, optionally scoped to an office.
	SLAStats(ctx context.Context, officeRef *string) (domain.SLAStats, error)
}

type complaintRepository struct {
	pool *pgxpool.Pool
}

// NewComplaintRepository instantiates repository.
func NewComplaintRepository(pool *pgxpool.Pool) ComplaintRepository {
	return &complaintRepository{pool: pool}
}

const complaintColumns = `id, customer_ref, company_ref, area_ref, title, description, priority, status,
               assigned_to, office_ref, assigned_at, sla_deadline, sla_status,
               penalty_applied, penalty_amount, version, created_at, updated_at, closed_at`

func (r *complaintRepository) Create(ctx context.Context, complaint *domain.Complaint) error {
	const query = `
        INSERT INTO complaints (customer_ref, company_ref, area_ref, title, description, priority, status,
            assigned_to, office_ref, assigned_at, sla_deadline, sla_status, penalty_applied, penalty_amount)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
        RETURNING id, version, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		complaint.CustomerRef,
		complaint.CompanyRef,
		complaint.AreaRef,
		complaint.Title,
		complaint.Description,
		complaint.Priority,
		complaint.Status,
		complaint.AssignedTo,
		complaint.OfficeRef,
		complaint.AssignedAt,
		complaint.SLADeadline,
		complaint.SLAStatus,
		complaint.PenaltyApplied,
		complaint.PenaltyAmount,
	).Scan(&complaint.ID, &complaint.Version, &complaint.CreatedAt, &complaint.UpdatedAt)
}

func (r *complaintRepository) GetByID(ctx context.Context, id string) (*domain.Complaint, error) {
	query := fmt.Sprintf(`SELECT %s FROM complaints WHERE id=$1`, complaintColumns)
	row := r.pool.QueryRow(ctx, query, id)
	return scanComplaint(row)
}

func (r *complaintRepository) UpdateVersioned(ctx context.Context, complaint *domain.Complaint) error {
	const query = `
        UPDATE complaints SET status=$1, assigned_to=$2, office_ref=$3, assigned_at=$4,
            sla_deadline=$5, sla_status=$6, penalty_applied=$7, penalty_amount=$8,
            closed_at=$9, version=version+1, updated_at=NOW()
        WHERE id=$10 AND version=$11`
	cmd, err := r.pool.Exec(ctx, query,
		complaint.Status,
		complaint.AssignedTo,
		complaint.OfficeRef,
		complaint.AssignedAt,
		complaint.SLADeadline,
		complaint.SLAStatus,
		complaint.PenaltyApplied,
		complaint.PenaltyAmount,
		complaint.ClosedAt,
		complaint.ID,
		complaint.Version,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	complaint.Version++
	return nil
}

func (r *complaintRepository) ListWithFilter(ctx context.Context, filter ComplaintFilter) ([]domain.Complaint, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CustomerRef != nil {
		args = append(args, *filter.CustomerRef)
		clauses = append(clauses, fmt.Sprintf("customer_ref=$%d", len(args)))
	}
	if filter.OfficeRef != nil {
		args = append(args, *filter.OfficeRef)
		clauses = append(clauses, fmt.Sprintf("office_ref=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.SLAStatuses) > 0 {
		placeholders := make([]string, len(filter.SLAStatuses))
		for i, st := range filter.SLAStatuses {
			args = append(args, st)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("sla_status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM complaints WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		complaintColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanComplaints(rows)
}

func (r *complaintRepository) ListPendingSLA(ctx context.Context, before time.Time) ([]domain.Complaint, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM complaints
        WHERE sla_status=$1 AND sla_deadline IS NOT NULL AND sla_deadline < $2
        ORDER BY sla_deadline ASC`, complaintColumns)
	rows, err := r.pool.Query(ctx, query, domain.SLAPending, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanComplaints(rows)
}

func (r *complaintRepository) WorkloadCounts(ctx context.Context, staffRef string, dayStart time.Time) (domain.WorkloadSnapshot, error) {
	const query = `
        SELECT
            COUNT(*) FILTER (WHERE assigned_to=$1 AND status IN ('ASSIGNED','IN_PROGRESS','ON_HOLD')),
            COUNT(*) FILTER (WHERE assigned_to=$1 AND created_at >= $2),
            COUNT(*) FILTER (WHERE assigned_to=$1 AND status='CLOSED')
        FROM complaints`
	snapshot := domain.WorkloadSnapshot{StaffRef: staffRef}
	if err := r.pool.QueryRow(ctx, query, staffRef, dayStart).Scan(
		&snapshot.ActiveCount,
		&snapshot.TodayCount,
		&snapshot.CompletedCount,
	); err != nil {
		return domain.WorkloadSnapshot{}, err
	}
	return snapshot, nil
}

func (r *complaintRepository) SLAStats(ctx context.Context, officeRef *string) (domain.SLAStats, error) {
	query := `
        SELECT
            COUNT(*) FILTER (WHERE assigned_at IS NOT NULL),
            COUNT(*) FILTER (WHERE sla_status='MET'),
            COUNT(*) FILTER (WHERE sla_status='BREACHED'),
            COALESCE(SUM(penalty_amount) FILTER (WHERE penalty_applied), 0)
        FROM complaints`
	args := []any{}
	if officeRef != nil {
		query += ` WHERE office_ref=$1`
		args = append(args, *officeRef)
	}

	var stats domain.SLAStats
	var totalPenalties decimal.Decimal
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&stats.TotalAssigned,
		&stats.SLAMet,
		&stats.SLABreached,
		&totalPenalties,
	); err != nil {
		return domain.SLAStats{}, err
	}
	stats.TotalPenalties = totalPenalties
	if decided := stats.SLAMet + stats.SLABreached; decided > 0 {
		stats.ComplianceRate = float64(stats.SLAMet) / float64(decided)
	}
	return stats, nil
}

func scanComplaint(row pgx.Row) (*domain.Complaint, error) {
	var complaint domain.Complaint
	if err := row.Scan(
		&complaint.ID,
		&complaint.CustomerRef,
		&complaint.CompanyRef,
		&complaint.AreaRef,
		&complaint.Title,
		&complaint.Description,
		&complaint.Priority,
		&complaint.Status,
		&complaint.AssignedTo,
		&complaint.OfficeRef,
		&complaint.AssignedAt,
		&complaint.SLADeadline,
		&complaint.SLAStatus,
		&complaint.PenaltyApplied,
		&complaint.PenaltyAmount,
		&complaint.Version,
		&complaint.CreatedAt,
		&complaint.UpdatedAt,
		&complaint.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &complaint, nil
}

func scanComplaints(rows pgx.Rows) ([]domain.Complaint, error) {
	var result []domain.Complaint
	for rows.Next() {
		complaint, err := scanComplaint(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *complaint)
	}
	return result, rows.Err()
}
