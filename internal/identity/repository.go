package identity

import (
	"context"
	"strings"
	"time"

	"github.com/goa-gov/sewa-connect/internal/shared/auth"
	"github.com/goa-gov/sewa-connect/internal/shared/errors"
	"github.com/goa-gov/sewa-connect/internal/shared/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence for the identity store.
type Repository interface {
	// CreateAccount inserts the credential row, the profile and the default
	// citizen role assignment in one transaction.
	CreateAccount(ctx context.Context, u *User, p *Profile) error
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindProfile(ctx context.Context, id types.ID) (*Profile, error)
	UpdateProfile(ctx context.Context, p *Profile) error

	ListRoles(ctx context.Context, userID types.ID) ([]auth.Role, error)
	GrantRole(ctx context.Context, userID types.ID, role auth.Role) error
	RevokeRole(ctx context.Context, userID types.ID, role auth.Role) error
	CountCitizens(ctx context.Context) (int64, error)

	UpsertAddress(ctx context.Context, a *Address) error
	ListAddresses(ctx context.Context, userID types.ID) ([]Address, error)

	UpsertAadhaar(ctx context.Context, d *AadhaarDetails) error
	FindAadhaar(ctx context.Context, userID types.ID) (*AadhaarDetails, error)

	StoreRefreshToken(ctx context.Context, t *RefreshToken) error
	FindRefreshToken(ctx context.Context, tokenHash string) (*RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
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

// CreateAccount creates the user, profile and default citizen role in one
// transaction so a profile can never exist without a role assignment.
func (r *PostgresRepository) CreateAccount(ctx context.Context, u *User, p *Profile) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Email, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("an account with this email already exists")
		}
		return errors.Wrap(err, "failed to create user")
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO profiles (id, email, full_name, phone, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Email, p.FullName, p.Phone, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create profile")
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO role_assignments (user_id, role) VALUES ($1, $2)`,
		u.ID, string(auth.RoleCitizen),
	)
	if err != nil {
		return errors.Wrap(err, "failed to assign default role")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit signup transaction")
	}
	return nil
}

// FindUserByEmail finds a credential row by email
func (r *PostgresRepository) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	u := &User{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = $1`,
		email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("user", email)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find user")
	}
	return u, nil
}

// FindProfile finds a profile by user ID
func (r *PostgresRepository) FindProfile(ctx context.Context, id types.ID) (*Profile, error) {
	p := &Profile{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, full_name, COALESCE(phone, ''), created_at, updated_at
		 FROM profiles WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Email, &p.FullName, &p.Phone, &p.CreatedAt, &p.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("profile", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find profile")
	}
	return p, nil
}

// UpdateProfile updates the mutable profile fields
func (r *PostgresRepository) UpdateProfile(ctx context.Context, p *Profile) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE profiles SET full_name = $2, phone = $3, updated_at = $4 WHERE id = $1`,
		p.ID, p.FullName, p.Phone, time.Now(),
	)
	if err != nil {
		return errors.Wrap(err, "failed to update profile")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("profile", p.ID.String())
	}
	return nil
}

// ListRoles returns the user's role set
func (r *PostgresRepository) ListRoles(ctx context.Context, userID types.ID) ([]auth.Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT role FROM role_assignments WHERE user_id = $1 ORDER BY role`,
		userID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list roles")
	}
	defer rows.Close()

	var roles []auth.Role
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, errors.Wrap(err, "failed to scan role")
		}
		roles = append(roles, auth.Role(role))
	}
	return roles, rows.Err()
}

// GrantRole adds a role assignment; granting an already-held role is a no-op.
func (r *PostgresRepository) GrantRole(ctx context.Context, userID types.ID, role auth.Role) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO role_assignments (user_id, role) VALUES ($1, $2)
		 ON CONFLICT (user_id, role) DO NOTHING`,
		userID, string(role),
	)
	if err != nil {
		return errors.Wrap(err, "failed to grant role")
	}
	return nil
}

// RevokeRole removes a role assignment
func (r *PostgresRepository) RevokeRole(ctx context.Context, userID types.ID, role auth.Role) error {
	result, err := r.pool.Exec(ctx,
		`DELETE FROM role_assignments WHERE user_id = $1 AND role = $2`,
		userID, string(role),
	)
	if err != nil {
		return errors.Wrap(err, "failed to revoke role")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("role assignment", string(role))
	}
	return nil
}

// CountCitizens counts role assignments with role=citizen
func (r *PostgresRepository) CountCitizens(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM role_assignments WHERE role = 'citizen'`,
	).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count citizens")
	}
	return count, nil
}

// UpsertAddress inserts or updates an address row
func (r *PostgresRepository) UpsertAddress(ctx context.Context, a *Address) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO addresses (id, user_id, line1, line2, city, district, state, pincode, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
			line1 = EXCLUDED.line1, line2 = EXCLUDED.line2, city = EXCLUDED.city,
			district = EXCLUDED.district, state = EXCLUDED.state, pincode = EXCLUDED.pincode,
			updated_at = NOW()`,
		a.ID, a.UserID, a.Line1, a.Line2, a.City, a.District, a.State, a.Pincode, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to upsert address")
	}
	return nil
}

// ListAddresses returns the user's addresses
func (r *PostgresRepository) ListAddresses(ctx context.Context, userID types.ID) ([]Address, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, line1, COALESCE(line2, ''), city, COALESCE(district, ''), state, pincode, created_at, updated_at
		 FROM addresses WHERE user_id = $1 ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list addresses")
	}
	defer rows.Close()

	var addresses []Address
	for rows.Next() {
		var a Address
		if err := rows.Scan(&a.ID, &a.UserID, &a.Line1, &a.Line2, &a.City, &a.District, &a.State, &a.Pincode, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan address")
		}
		addresses = append(addresses, a)
	}
	return addresses, rows.Err()
}

// UpsertAadhaar inserts or replaces the user's aadhaar record
func (r *PostgresRepository) UpsertAadhaar(ctx context.Context, d *AadhaarDetails) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO aadhaar_details (user_id, aadhaar_number, verified, verified_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id) DO UPDATE SET
			aadhaar_number = EXCLUDED.aadhaar_number,
			verified = EXCLUDED.verified,
			verified_at = EXCLUDED.verified_at`,
		d.UserID, d.AadhaarNumber, d.Verified, d.VerifiedAt, d.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("aadhaar number is already registered")
		}
		return errors.Wrap(err, "failed to upsert aadhaar details")
	}
	return nil
}

// FindAadhaar returns the user's aadhaar record
func (r *PostgresRepository) FindAadhaar(ctx context.Context, userID types.ID) (*AadhaarDetails, error) {
	d := &AadhaarDetails{}
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, aadhaar_number, verified, verified_at, created_at
		 FROM aadhaar_details WHERE user_id = $1`,
		userID,
	).Scan(&d.UserID, &d.AadhaarNumber, &d.Verified, &d.VerifiedAt, &d.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("aadhaar details", userID.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find aadhaar details")
	}
	return d, nil
}

// StoreRefreshToken persists a hashed refresh token
func (r *PostgresRepository) StoreRefreshToken(ctx context.Context, t *RefreshToken) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.Revoked, t.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to store refresh token")
	}
	return nil
}

// FindRefreshToken looks up a refresh token by its hash
func (r *PostgresRepository) FindRefreshToken(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	t := &RefreshToken{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, token_hash, expires_at, revoked, created_at
		 FROM refresh_tokens WHERE token_hash = $1`,
		tokenHash,
	).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.Revoked, &t.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.Unauthorized("invalid refresh token")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find refresh token")
	}
	return t, nil
}

// RevokeRefreshToken marks a refresh token revoked
func (r *PostgresRepository) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE token_hash = $1`,
		tokenHash,
	)
	if err != nil {
		return errors.Wrap(err, "failed to revoke refresh token")
	}
	return nil
}
