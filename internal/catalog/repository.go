package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/goa-gov/sewa-connect/internal/shared/errors"
	"github.com/goa-gov/sewa-connect/internal/shared/types"
)

// Repository defines persistence for the service catalog.
type Repository interface {
	CreateDepartment(ctx context.Context, d *Department) error
	UpdateDepartment(ctx context.Context, d *Department) error
	FindDepartment(ctx context.Context, id types.ID) (*Department, error)
	ListDepartments(ctx context.Context) ([]Department, error)

	CreateService(ctx context.Context, s *Service) error
	UpdateService(ctx context.Context, s *Service) error
	FindService(ctx context.Context, id types.ID) (*Service, error)
	ListServices(ctx context.Context, filter ListServicesFilter) ([]Service, error)
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

func (r *PostgresRepository) CreateDepartment(ctx context.Context, d *Department) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO departments (id, name, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		d.ID, d.Name, d.Description, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("a department with this name already exists")
		}
		return errors.Wrap(err, "failed to create department")
	}
	return nil
}

func (r *PostgresRepository) UpdateDepartment(ctx context.Context, d *Department) error {
	d.UpdatedAt = time.Now()
	tag, err := r.pool.Exec(ctx,
		`UPDATE departments SET name = $2, description = $3, updated_at = $4 WHERE id = $1`,
		d.ID, d.Name, d.Description, d.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update department")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("department", d.ID.String())
	}
	return nil
}

func (r *PostgresRepository) FindDepartment(ctx context.Context, id types.ID) (*Department, error) {
	var d Department
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, description, created_at, updated_at FROM departments WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.Name, &d.Description, &d.CreatedAt, &d.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("department", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find department")
	}
	return &d, nil
}

func (r *PostgresRepository) ListDepartments(ctx context.Context) ([]Department, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, description, created_at, updated_at FROM departments ORDER BY name`,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list departments")
	}
	defer rows.Close()

	var out []Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan department")
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) CreateService(ctx context.Context, s *Service) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO services (id, department_id, name, description, fee_paise,
		                       required_documents, processing_time_days, is_active,
		                       created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.DepartmentID, s.Name, s.Description, s.Fee,
		s.RequiredDocuments, s.ProcessingTimeDays, s.IsActive,
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "violates foreign key") {
			return errors.BadRequest("department does not exist")
		}
		return errors.Wrap(err, "failed to create service")
	}
	return nil
}

func (r *PostgresRepository) UpdateService(ctx context.Context, s *Service) error {
	s.UpdatedAt = time.Now()
	tag, err := r.pool.Exec(ctx,
		`UPDATE services
		 SET name = $2, description = $3, fee_paise = $4, required_documents = $5,
		     processing_time_days = $6, is_active = $7, updated_at = $8
		 WHERE id = $1`,
		s.ID, s.Name, s.Description, s.Fee, s.RequiredDocuments,
		s.ProcessingTimeDays, s.IsActive, s.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update service")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("service", s.ID.String())
	}
	return nil
}

func (r *PostgresRepository) FindService(ctx context.Context, id types.ID) (*Service, error) {
	var s Service
	err := r.pool.QueryRow(ctx,
		`SELECT id, department_id, name, description, fee_paise, required_documents,
		        processing_time_days, is_active, created_at, updated_at
		 FROM services WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.DepartmentID, &s.Name, &s.Description, &s.Fee,
		&s.RequiredDocuments, &s.ProcessingTimeDays, &s.IsActive,
		&s.CreatedAt, &s.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("service", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find service")
	}
	return &s, nil
}

func (r *PostgresRepository) ListServices(ctx context.Context, filter ListServicesFilter) ([]Service, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if filter.ActiveOnly {
		conditions = append(conditions, "is_active = TRUE")
	}
	if filter.DepartmentID != nil {
		conditions = append(conditions, fmt.Sprintf("department_id = $%d", argNum))
		args = append(args, *filter.DepartmentID)
		argNum++
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", argNum))
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`SELECT id, department_id, name, description, fee_paise, required_documents,
	                 processing_time_days, is_active, created_at, updated_at
	          FROM services %s ORDER BY name`, whereClause)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list services")
	}
	defer rows.Close()

	var out []Service
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.DepartmentID, &s.Name, &s.Description, &s.Fee,
			&s.RequiredDocuments, &s.ProcessingTimeDays, &s.IsActive,
			&s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan service")
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
