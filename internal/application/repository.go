package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/goa-gov/sewa-connect/internal/document"
	"github.com/goa-gov/sewa-connect/internal/payment"
	"github.com/goa-gov/sewa-connect/internal/shared/errors"
	"github.com/goa-gov/sewa-connect/internal/shared/types"
)

// Repository defines persistence for applications.
type Repository interface {
	// Submit inserts the application, its document rows and the payment in
	// one transaction. Either all rows land or none do.
	Submit(ctx context.Context, app *Application, docs []document.Document, pay *payment.Payment) error
	FindByID(ctx context.Context, id types.ID) (*Application, error)
	// FindByIdempotencyKey returns the application a citizen previously
	// submitted under the given Idempotency-Key header value.
	FindByIdempotencyKey(ctx context.Context, citizenID types.ID, key string) (*Application, error)
	List(ctx context.Context, filter ListFilter) ([]Application, int, error)
	Update(ctx context.Context, app *Application) error
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

func (r *PostgresRepository) Submit(ctx context.Context, app *Application, docs []document.Document, pay *payment.Payment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO applications (id, citizen_id, service_id, officer_id, status, remarks,
		                           idempotency_key, applied_on, completed_on, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10)`,
		app.ID, app.CitizenID, app.ServiceID, app.OfficerID, app.Status, app.Remarks,
		app.IdempotencyKey, app.AppliedOn, app.CompletedOn, app.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("an application with this idempotency key already exists")
		}
		return errors.Wrap(err, "failed to insert application")
	}

	for i := range docs {
		d := &docs[i]
		_, err = tx.Exec(ctx,
			`INSERT INTO documents (id, application_id, file_name, file_url, storage_key,
			                        doc_type, sha256, size_bytes, uploaded_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			d.ID, d.ApplicationID, d.FileName, d.FileURL, d.StorageKey,
			d.DocType, d.SHA256, d.SizeBytes, d.UploadedAt,
		)
		if err != nil {
			return errors.Wrap(err, "failed to insert document")
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO payments (id, application_id, transaction_id, amount_paise, status, payment_method, paid_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		pay.ID, pay.ApplicationID, pay.TransactionID, pay.Amount, pay.Status, pay.PaymentMethod, pay.PaidAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert payment")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit submission")
	}
	return nil
}

const applicationColumns = `id, citizen_id, service_id, officer_id, status, remarks,
       COALESCE(idempotency_key, ''), applied_on, completed_on, updated_at`

func (r *PostgresRepository) FindByID(ctx context.Context, id types.ID) (*Application, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id)
	app, err := scanApplication(row)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("application", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find application")
	}
	return app, nil
}

func (r *PostgresRepository) FindByIdempotencyKey(ctx context.Context, citizenID types.ID, key string) (*Application, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE citizen_id = $1 AND idempotency_key = $2`,
		citizenID, key)
	app, err := scanApplication(row)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("application", "idempotency key "+key)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find application")
	}
	return app, nil
}

func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]Application, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if filter.CitizenID != nil {
		conditions = append(conditions, fmt.Sprintf("citizen_id = $%d", argNum))
		args = append(args, *filter.CitizenID)
		argNum++
	}
	if filter.OfficerID != nil {
		conditions = append(conditions, fmt.Sprintf("officer_id = $%d", argNum))
		args = append(args, *filter.OfficerID)
		argNum++
	}
	if filter.ServiceID != nil {
		conditions = append(conditions, fmt.Sprintf("service_id = $%d", argNum))
		args = append(args, *filter.ServiceID)
		argNum++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *filter.Status)
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM applications %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count applications")
	}

	query := fmt.Sprintf("SELECT %s FROM applications %s ORDER BY applied_on DESC", applicationColumns, whereClause)
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list applications")
	}
	defer rows.Close()

	var out []Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan application")
		}
		out = append(out, *app)
	}
	return out, total, rows.Err()
}

func (r *PostgresRepository) Update(ctx context.Context, app *Application) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE applications
		 SET officer_id = $2, status = $3, remarks = $4, completed_on = $5, updated_at = $6
		 WHERE id = $1`,
		app.ID, app.OfficerID, app.Status, app.Remarks, app.CompletedOn, app.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update application")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("application", app.ID.String())
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*Application, error) {
	var app Application
	err := row.Scan(&app.ID, &app.CitizenID, &app.ServiceID, &app.OfficerID, &app.Status,
		&app.Remarks, &app.IdempotencyKey, &app.AppliedOn, &app.CompletedOn, &app.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &app, nil
}
