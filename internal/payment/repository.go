package payment

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/goa-gov/sewa-connect/internal/shared/errors"
	"github.com/goa-gov/sewa-connect/internal/shared/types"
)

// Repository reads payment rows. Writes happen inside the application
// submission transaction.
type Repository interface {
	FindByApplication(ctx context.Context, applicationID types.ID) (*Payment, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*Payment, error)
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

func (r *PostgresRepository) FindByApplication(ctx context.Context, applicationID types.ID) (*Payment, error) {
	return r.findWhere(ctx, "application_id = $1", applicationID)
}

func (r *PostgresRepository) FindByTransactionID(ctx context.Context, transactionID string) (*Payment, error) {
	return r.findWhere(ctx, "transaction_id = $1", transactionID)
}

func (r *PostgresRepository) findWhere(ctx context.Context, where string, arg any) (*Payment, error) {
	var p Payment
	err := r.pool.QueryRow(ctx,
		`SELECT id, application_id, transaction_id, amount_paise, status, payment_method, paid_at
		 FROM payments WHERE `+where,
		arg,
	).Scan(&p.ID, &p.ApplicationID, &p.TransactionID, &p.Amount, &p.Status, &p.PaymentMethod, &p.PaidAt)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("payment", "for requested key")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find payment")
	}
	return &p, nil
}
