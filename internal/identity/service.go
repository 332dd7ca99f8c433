package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/goa-gov/sewa-connect/internal/shared/auth"
	"github.com/goa-gov/sewa-connect/internal/shared/config"
	"github.com/goa-gov/sewa-connect/internal/shared/errors"
	"github.com/goa-gov/sewa-connect/internal/shared/events"
	"github.com/goa-gov/sewa-connect/internal/shared/metrics"
	"github.com/goa-gov/sewa-connect/internal/shared/types"
)

var (
	emailPattern   = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	aadhaarPattern = regexp.MustCompile(`^[0-9]{12}$`)
)

// RegistryVerifier checks an Aadhaar number against the legacy civil
// registry. A nil verifier means the registry integration is disabled and
// submitted numbers stay unverified.
type RegistryVerifier interface {
	VerifyAadhaar(ctx context.Context, aadhaarNumber string) (fullName string, found bool, err error)
}

// Service implements account and session operations.
type Service struct {
	repo     Repository
	cfg      config.AuthConfig
	bus      events.EventBus
	registry RegistryVerifier
	now      func() time.Time
}

// NewService creates an identity service. bus and registry may be nil.
func NewService(repo Repository, cfg config.AuthConfig, bus events.EventBus, registry RegistryVerifier) *Service {
	return &Service{
		repo:     repo,
		cfg:      cfg,
		bus:      bus,
		registry: registry,
		now:      time.Now,
	}
}

// SignUp creates the credential row, profile and default citizen role in one
// transaction.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (*Profile, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !emailPattern.MatchString(email) {
		return nil, errors.BadRequest("a valid email is required")
	}
	if strings.TrimSpace(req.FullName) == "" {
		return nil, errors.BadRequest("full name is required")
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, errors.BadRequest(err.Error())
	}

	now := s.now()
	user := &User{
		ID:           types.NewID(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
	}
	profile := &Profile{
		ID:        user.ID,
		Email:     email,
		FullName:  strings.TrimSpace(req.FullName),
		Phone:     strings.TrimSpace(req.Phone),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.CreateAccount(ctx, user, profile); err != nil {
		return nil, err
	}

	metrics.RecordSignup()
	s.publish(ctx, "identity.signup", user.ID, "citizen", map[string]any{
		"user_id": user.ID.String(),
		"email":   email,
	})

	return profile, nil
}

// SignIn verifies credentials and issues a token pair plus the caller's
// role set for the client role router.
func (s *Service) SignIn(ctx context.Context, req SignInRequest) (*TokenPair, []auth.Role, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.repo.FindUserByEmail(ctx, email)
	if err != nil {
		// Same response for unknown email and bad password.
		return nil, nil, errors.Unauthorized("invalid email or password")
	}

	if err := VerifyPassword(user.PasswordHash, req.Password); err != nil {
		return nil, nil, errors.Unauthorized("invalid email or password")
	}

	roles, err := s.repo.ListRoles(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.issueTokens(ctx, user.ID, user.Email, roles)
	if err != nil {
		return nil, nil, err
	}

	s.publish(ctx, "identity.signin", user.ID, "citizen", map[string]any{
		"user_id": user.ID.String(),
	})

	return pair, roles, nil
}

// Refresh redeems a refresh token for a new token pair. The old token is
// revoked (single use).
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	stored, err := s.repo.FindRefreshToken(ctx, hashToken(refreshToken))
	if err != nil {
		return nil, err
	}
	if !stored.IsUsable(s.now()) {
		return nil, errors.Unauthorized("refresh token expired or revoked")
	}

	profile, err := s.repo.FindProfile(ctx, stored.UserID)
	if err != nil {
		return nil, err
	}
	roles, err := s.repo.ListRoles(ctx, stored.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.RevokeRefreshToken(ctx, stored.TokenHash); err != nil {
		return nil, err
	}

	return s.issueTokens(ctx, stored.UserID, profile.Email, roles)
}

// SignOut revokes the presented refresh token.
func (s *Service) SignOut(ctx context.Context, refreshToken string) error {
	return s.repo.RevokeRefreshToken(ctx, hashToken(refreshToken))
}

// Roles returns the caller's role set.
func (s *Service) Roles(ctx context.Context, userID types.ID) ([]auth.Role, error) {
	return s.repo.ListRoles(ctx, userID)
}

// GrantRole assigns a role to a user (admin operation; authorization is
// checked at the handler against the policy engine).
func (s *Service) GrantRole(ctx context.Context, userID types.ID, role auth.Role) error {
	if !auth.ValidRole(role) {
		return errors.BadRequest("unknown role")
	}
	return s.repo.GrantRole(ctx, userID, role)
}

// RevokeRole removes a role. The user's last role cannot be revoked: a user
// with zero roles has no valid dashboard destination.
func (s *Service) RevokeRole(ctx context.Context, userID types.ID, role auth.Role) error {
	if !auth.ValidRole(role) {
		return errors.BadRequest("unknown role")
	}
	roles, err := s.repo.ListRoles(ctx, userID)
	if err != nil {
		return err
	}
	if len(roles) <= 1 {
		return errors.Conflict("cannot revoke a user's last role")
	}
	return s.repo.RevokeRole(ctx, userID, role)
}

// SubmitAadhaar records the user's Aadhaar number, verifying it against the
// legacy civil registry when the integration is enabled. Registry downtime
// degrades to an unverified record rather than blocking the submission.
func (s *Service) SubmitAadhaar(ctx context.Context, userID types.ID, number string) (*AadhaarDetails, error) {
	number = strings.TrimSpace(number)
	if !aadhaarPattern.MatchString(number) {
		return nil, errors.BadRequest("aadhaar number must be 12 digits")
	}

	details := &AadhaarDetails{
		UserID:        userID,
		AadhaarNumber: number,
		CreatedAt:     s.now(),
	}

	if s.registry != nil {
		if _, found, err := s.registry.VerifyAadhaar(ctx, number); err == nil && found {
			now := s.now()
			details.Verified = true
			details.VerifiedAt = &now
		}
	}

	if err := s.repo.UpsertAadhaar(ctx, details); err != nil {
		return nil, err
	}
	return details, nil
}

func (s *Service) issueTokens(ctx context.Context, userID types.ID, email string, roles []auth.Role) (*TokenPair, error) {
	access, expiresAt, err := auth.IssueAccessToken(s.cfg, userID, email, roles)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign access token")
	}

	refresh, err := newOpaqueToken()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate refresh token")
	}

	stored := &RefreshToken{
		ID:        types.NewID(),
		UserID:    userID,
		TokenHash: hashToken(refresh),
		ExpiresAt: s.now().Add(s.cfg.RefreshTokenTTL),
		CreatedAt: s.now(),
	}
	if err := s.repo.StoreRefreshToken(ctx, stored); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		ExpiresAt:    expiresAt,
		RefreshToken: refresh,
	}, nil
}

func (s *Service) publish(ctx context.Context, eventType string, actorID types.ID, actorType string, data map[string]any) {
	if s.bus == nil {
		return
	}
	event := events.NewEvent(eventType, "identity", data).WithActor(actorID, actorType)
	// Event publication is best-effort; the write has already committed.
	_ = s.bus.Publish(ctx, event)
}

func newOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
