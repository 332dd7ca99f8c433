package stats

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/goa-gov/sewa-connect/internal/shared/errors"
)

// Repository computes the dashboard aggregates.
type Repository interface {
	Overview(ctx context.Context) (*Overview, error)
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Overview(ctx context.Context) (*Overview, error) {
	overview := &Overview{ByStatus: make(map[string]int64)}

	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM applications GROUP BY status`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count applications by status")
	}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "failed to scan status count")
		}
		overview.ByStatus[status] = count
		overview.TotalApplications += count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read status counts")
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(p.amount_paise), 0)
		 FROM payments p
		 JOIN applications a ON a.id = p.application_id
		 WHERE a.status = 'approved' AND p.status = 'completed'`,
	).Scan(&overview.Revenue)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sum revenue")
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM role_assignments WHERE role = 'citizen'`,
	).Scan(&overview.TotalCitizens)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count citizens")
	}

	rows, err = r.pool.Query(ctx,
		`SELECT s.id, s.name, COUNT(a.id)
		 FROM services s
		 LEFT JOIN applications a ON a.service_id = s.id
		 GROUP BY s.id, s.name
		 ORDER BY s.name`,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count applications per service")
	}
	defer rows.Close()
	for rows.Next() {
		var sc ServiceCount
		if err := rows.Scan(&sc.ServiceID, &sc.ServiceName, &sc.Count); err != nil {
			return nil, errors.Wrap(err, "failed to scan service count")
		}
		overview.PerService = append(overview.PerService, sc)
	}
	return overview, rows.Err()
}
