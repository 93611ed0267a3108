package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/complaint-engine/internal/domain"
)

// ComplaintHistoryRepository stores audit entries.
type ComplaintHistoryRepository interface {
	Create(ctx context.Context, history *domain.ComplaintHistory) error
	ListByComplaint(ctx context.Context, complaintID string, limit, offset int) ([]domain.ComplaintHistory, error)
}

type complaintHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewComplaintHistoryRepository builds repository.
func NewComplaintHistoryRepository(pool *pgxpool.Pool) ComplaintHistoryRepository {
	return &complaintHistoryRepository{pool: pool}
}

func (r *complaintHistoryRepository) Create(ctx context.Context, history *domain.ComplaintHistory) error {
	const query = `
        INSERT INTO complaint_history (complaint_id, actor_ref, change_type, old_value, new_value, reason)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		history.ComplaintID,
		history.ActorRef,
		history.ChangeType,
		history.OldValue,
		history.NewValue,
		history.Reason,
	).Scan(&history.ID, &history.CreatedAt)
}

func (r *complaintHistoryRepository) ListByComplaint(ctx context.Context, complaintID string, limit, offset int) ([]domain.ComplaintHistory, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, complaint_id, actor_ref, change_type, old_value, new_value, reason, created_at
        FROM complaint_history WHERE complaint_id=$1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, complaintID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ComplaintHistory
	for rows.Next() {
		var history domain.ComplaintHistory
		if err := rows.Scan(
			&history.ID,
			&history.ComplaintID,
			&history.ActorRef,
			&history.ChangeType,
			&history.OldValue,
			&history.NewValue,
			&history.Reason,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}
