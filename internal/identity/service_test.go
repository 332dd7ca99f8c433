package identity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goa-gov/sewa-connect/internal/shared/auth"
	"github.com/goa-gov/sewa-connect/internal/shared/config"
	"github.com/goa-gov/sewa-connect/internal/shared/errors"
	"github.com/goa-gov/sewa-connect/internal/shared/types"
)

// memoryRepo is an in-memory Repository for service tests.
type memoryRepo struct {
	mu       sync.Mutex
	users    map[string]*User // by email
	profiles map[types.ID]*Profile
	roles    map[types.ID][]auth.Role
	aadhaar  map[types.ID]*AadhaarDetails
	tokens   map[string]*RefreshToken // by hash
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		users:    make(map[string]*User),
		profiles: make(map[types.ID]*Profile),
		roles:    make(map[types.ID][]auth.Role),
		aadhaar:  make(map[types.ID]*AadhaarDetails),
		tokens:   make(map[string]*RefreshToken),
	}
}

func (m *memoryRepo) CreateAccount(_ context.Context, u *User, p *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Email]; ok {
		return errors.Conflict("an account with this email already exists")
	}
	m.users[u.Email] = u
	m.profiles[p.ID] = p
	m.roles[u.ID] = []auth.Role{auth.RoleCitizen}
	return nil
}

func (m *memoryRepo) FindUserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return nil, errors.NotFound("user", email)
	}
	return u, nil
}

func (m *memoryRepo) FindProfile(_ context.Context, id types.ID) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, errors.NotFound("profile", id.String())
	}
	return p, nil
}

func (m *memoryRepo) UpdateProfile(_ context.Context, p *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
	return nil
}

func (m *memoryRepo) ListRoles(_ context.Context, userID types.ID) ([]auth.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]auth.Role(nil), m.roles[userID]...), nil
}

func (m *memoryRepo) GrantRole(_ context.Context, userID types.ID, role auth.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.roles[userID] {
		if r == role {
			return nil
		}
	}
	m.roles[userID] = append(m.roles[userID], role)
	return nil
}

func (m *memoryRepo) RevokeRole(_ context.Context, userID types.ID, role auth.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.roles[userID][:0]
	for _, r := range m.roles[userID] {
		if r != role {
			kept = append(kept, r)
		}
	}
	m.roles[userID] = kept
	return nil
}

func (m *memoryRepo) CountCitizens(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, roles := range m.roles {
		for _, r := range roles {
			if r == auth.RoleCitizen {
				n++
			}
		}
	}
	return n, nil
}

func (m *memoryRepo) UpsertAddress(_ context.Context, _ *Address) error { return nil }

func (m *memoryRepo) ListAddresses(_ context.Context, _ types.ID) ([]Address, error) {
	return nil, nil
}

func (m *memoryRepo) UpsertAadhaar(_ context.Context, d *AadhaarDetails) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aadhaar[d.UserID] = d
	return nil
}

func (m *memoryRepo) FindAadhaar(_ context.Context, userID types.ID) (*AadhaarDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.aadhaar[userID]
	if !ok {
		return nil, errors.NotFound("aadhaar details", userID.String())
	}
	return d, nil
}

func (m *memoryRepo) StoreRefreshToken(_ context.Context, t *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[t.TokenHash] = t
	return nil
}

func (m *memoryRepo) FindRefreshToken(_ context.Context, hash string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[hash]
	if !ok {
		return nil, errors.Unauthorized("invalid refresh token")
	}
	return t, nil
}

func (m *memoryRepo) RevokeRefreshToken(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[hash]; ok {
		t.Revoked = true
	}
	return nil
}

var _ Repository = (*memoryRepo)(nil)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       "test-secret",
		Issuer:          "sewa-connect-test",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 8 * time.Hour,
	}
}

func TestSignUpGrantsCitizenRole(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testAuthConfig(), nil, nil)

	profile, err := svc.SignUp(context.Background(), SignUpRequest{
		Email:    "Asha@Example.com",
		Password: "sufficiently-long",
		FullName: "Asha Naik",
	})
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", profile.Email)

	roles, err := repo.ListRoles(context.Background(), profile.ID)
	require.NoError(t, err)
	assert.Equal(t, []auth.Role{auth.RoleCitizen}, roles)

	// Stored hash must not be the plaintext.
	user, err := repo.FindUserByEmail(context.Background(), "asha@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "sufficiently-long", user.PasswordHash)
	assert.NoError(t, VerifyPassword(user.PasswordHash, "sufficiently-long"))
}

func TestSignUpValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), testAuthConfig(), nil, nil)

	_, err := svc.SignUp(context.Background(), SignUpRequest{Email: "not-an-email", Password: "longenough", FullName: "X"})
	assert.Error(t, err)

	_, err = svc.SignUp(context.Background(), SignUpRequest{Email: "a@b.co", Password: "short", FullName: "X"})
	assert.Error(t, err)

	_, err = svc.SignUp(context.Background(), SignUpRequest{Email: "a@b.co", Password: "longenough", FullName: "  "})
	assert.Error(t, err)
}

func TestSignUpDuplicateEmail(t *testing.T) {
	svc := NewService(newMemoryRepo(), testAuthConfig(), nil, nil)
	req := SignUpRequest{Email: "dup@example.com", Password: "longenough", FullName: "Dup"}

	_, err := svc.SignUp(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.SignUp(context.Background(), req)
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, 409, appErr.HTTPStatus)
}

func TestSignInAndRefresh(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testAuthConfig(), nil, nil)

	_, err := svc.SignUp(context.Background(), SignUpRequest{
		Email: "raj@example.com", Password: "longenough", FullName: "Raj",
	})
	require.NoError(t, err)

	pair, roles, err := svc.SignIn(context.Background(), SignInRequest{Email: "raj@example.com", Password: "longenough"})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, []auth.Role{auth.RoleCitizen}, roles)

	// Token parses back with the same role set.
	user, err := auth.ParseToken(testAuthConfig(), pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "raj@example.com", user.Email)
	assert.True(t, user.HasRole(auth.RoleCitizen))

	// Refresh is single use.
	next, err := svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	_, err = svc.Refresh(context.Background(), pair.RefreshToken)
	assert.Error(t, err)
}

func TestSignInWrongPassword(t *testing.T) {
	svc := NewService(newMemoryRepo(), testAuthConfig(), nil, nil)

	_, err := svc.SignUp(context.Background(), SignUpRequest{
		Email: "mira@example.com", Password: "longenough", FullName: "Mira",
	})
	require.NoError(t, err)

	_, _, err = svc.SignIn(context.Background(), SignInRequest{Email: "mira@example.com", Password: "wrong-password"})
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, 401, appErr.HTTPStatus)

	// Unknown email produces the same status.
	_, _, err = svc.SignIn(context.Background(), SignInRequest{Email: "nobody@example.com", Password: "whatever"})
	appErr, ok = err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, 401, appErr.HTTPStatus)
}

func TestSignOutRevokesRefreshToken(t *testing.T) {
	svc := NewService(newMemoryRepo(), testAuthConfig(), nil, nil)

	_, err := svc.SignUp(context.Background(), SignUpRequest{
		Email: "leo@example.com", Password: "longenough", FullName: "Leo",
	})
	require.NoError(t, err)

	pair, _, err := svc.SignIn(context.Background(), SignInRequest{Email: "leo@example.com", Password: "longenough"})
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(context.Background(), pair.RefreshToken))

	_, err = svc.Refresh(context.Background(), pair.RefreshToken)
	assert.Error(t, err)
}

func TestRevokeLastRole(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testAuthConfig(), nil, nil)

	profile, err := svc.SignUp(context.Background(), SignUpRequest{
		Email: "solo@example.com", Password: "longenough", FullName: "Solo",
	})
	require.NoError(t, err)

	err = svc.RevokeRole(context.Background(), profile.ID, auth.RoleCitizen)
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, 409, appErr.HTTPStatus)

	// With a second role the revocation goes through.
	require.NoError(t, svc.GrantRole(context.Background(), profile.ID, auth.RoleOfficer))
	require.NoError(t, svc.RevokeRole(context.Background(), profile.ID, auth.RoleCitizen))

	roles, err := repo.ListRoles(context.Background(), profile.ID)
	require.NoError(t, err)
	assert.Equal(t, []auth.Role{auth.RoleOfficer}, roles)
}

func TestGrantUnknownRole(t *testing.T) {
	svc := NewService(newMemoryRepo(), testAuthConfig(), nil, nil)
	err := svc.GrantRole(context.Background(), types.NewID(), auth.Role("superuser"))
	assert.Error(t, err)
}

type fakeRegistry struct {
	known map[string]string
	err   error
}

func (f *fakeRegistry) VerifyAadhaar(_ context.Context, number string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	name, ok := f.known[number]
	return name, ok, nil
}

func TestSubmitAadhaar(t *testing.T) {
	repo := newMemoryRepo()
	registry := &fakeRegistry{known: map[string]string{"123456789012": "Asha Naik"}}
	svc := NewService(repo, testAuthConfig(), nil, registry)
	userID := types.NewID()

	t.Run("verified when registry knows the number", func(t *testing.T) {
		details, err := svc.SubmitAadhaar(context.Background(), userID, "123456789012")
		require.NoError(t, err)
		assert.True(t, details.Verified)
		require.NotNil(t, details.VerifiedAt)
	})

	t.Run("unverified when registry misses", func(t *testing.T) {
		details, err := svc.SubmitAadhaar(context.Background(), userID, "999999999999")
		require.NoError(t, err)
		assert.False(t, details.Verified)
	})

	t.Run("registry outage degrades to unverified", func(t *testing.T) {
		down := NewService(repo, testAuthConfig(), nil, &fakeRegistry{err: context.DeadlineExceeded})
		details, err := down.SubmitAadhaar(context.Background(), userID, "123456789012")
		require.NoError(t, err)
		assert.False(t, details.Verified)
	})

	t.Run("rejects malformed numbers", func(t *testing.T) {
		_, err := svc.SubmitAadhaar(context.Background(), userID, "12345")
		assert.Error(t, err)
		_, err = svc.SubmitAadhaar(context.Background(), userID, "12345678901a")
		assert.Error(t, err)
	})
}
