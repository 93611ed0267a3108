package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/complaint-engine/internal/domain"
)

// OfficeRepository encapsulates office persistence.
type OfficeRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Office, error)
	List(ctx context.Context) ([]domain.Office, error)
}

type officeRepository struct {
	pool *pgxpool.Pool
}

// NewOfficeRepository instantiates repository.
func NewOfficeRepository(pool *pgxpool.Pool) OfficeRepository {
	return &officeRepository{pool: pool}
}

func (r *officeRepository) GetByID(ctx context.Context, id string) (*domain.Office, error) {
	const query = `SELECT id, name, area_refs, created_at, updated_at FROM offices WHERE id=$1`
	var office domain.Office
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&office.ID,
		&office.Name,
		&office.AreaRefs,
		&office.CreatedAt,
		&office.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &office, nil
}

func (r *officeRepository) List(ctx context.Context) ([]domain.Office, error) {
	const query = `SELECT id, name, area_refs, created_at, updated_at FROM offices ORDER BY id ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Office
	for rows.Next() {
		var office domain.Office
		if err := rows.Scan(
			&office.ID,
			&office.Name,
			&office.AreaRefs,
			&office.CreatedAt,
			&office.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, office)
	}
	return result, rows.Err()
}
