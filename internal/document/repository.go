package document

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/goa-gov/sewa-connect/internal/shared/errors"
	"github.com/goa-gov/sewa-connect/internal/shared/types"
)

// Repository defines persistence for document rows.
type Repository interface {
	Insert(ctx context.Context, d *Document) error
	FindByID(ctx context.Context, id types.ID) (*Document, error)
	ListByApplication(ctx context.Context, applicationID types.ID) ([]Document, error)
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

func (r *PostgresRepository) Insert(ctx context.Context, d *Document) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO documents (id, application_id, file_name, file_url, storage_key,
		                        doc_type, sha256, size_bytes, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.ApplicationID, d.FileName, d.FileURL, d.StorageKey,
		d.DocType, d.SHA256, d.SizeBytes, d.UploadedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert document")
	}
	return nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id types.ID) (*Document, error) {
	var d Document
	err := r.pool.QueryRow(ctx,
		`SELECT id, application_id, file_name, file_url, storage_key, doc_type,
		        sha256, size_bytes, uploaded_at
		 FROM documents WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.ApplicationID, &d.FileName, &d.FileURL, &d.StorageKey,
		&d.DocType, &d.SHA256, &d.SizeBytes, &d.UploadedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("document", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find document")
	}
	return &d, nil
}

func (r *PostgresRepository) ListByApplication(ctx context.Context, applicationID types.ID) ([]Document, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, application_id, file_name, file_url, storage_key, doc_type,
		        sha256, size_bytes, uploaded_at
		 FROM documents WHERE application_id = $1 ORDER BY uploaded_at`,
		applicationID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list documents")
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.ApplicationID, &d.FileName, &d.FileURL, &d.StorageKey,
			&d.DocType, &d.SHA256, &d.SizeBytes, &d.UploadedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan document")
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
