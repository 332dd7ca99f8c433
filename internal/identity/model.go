package identity

import (
	"time"

	"github.com/goa-gov/sewa-connect/internal/shared/auth"
	"github.com/goa-gov/sewa-connect/internal/shared/types"
)

// User is the credential row in the identity store.
type User struct {
	ID           types.ID  `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile is 1:1 with a user and created transactionally at signup.
type Profile struct {
	ID        types.ID  `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Address is a postal address owned by a user.
type Address struct {
	ID        types.ID  `json:"id"`
	UserID    types.ID  `json:"user_id"`
	Line1     string    `json:"line1"`
	Line2     string    `json:"line2,omitempty"`
	City      string    `json:"city"`
	District  string    `json:"district,omitempty"`
	State     string    `json:"state"`
	Pincode   string    `json:"pincode"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AadhaarDetails is the KYC record for a user. Officers and admins get
// read-all; writes stay owner-only.
type AadhaarDetails struct {
	UserID        types.ID   `json:"user_id"`
	AadhaarNumber string     `json:"aadhaar_number"`
	Verified      bool       `json:"verified"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// RoleAssignment maps a user to one role tag; (user_id, role) is unique.
type RoleAssignment struct {
	UserID    types.ID  `json:"user_id"`
	Role      auth.Role `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// RefreshToken is a persisted, sha256-hashed refresh token.
type RefreshToken struct {
	ID        types.ID  `json:"id"`
	UserID    types.ID  `json:"user_id"`
	TokenHash string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
}

// IsUsable reports whether the refresh token may still be redeemed.
func (t *RefreshToken) IsUsable(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// TokenPair is returned by sign-in and refresh.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	RefreshToken string    `json:"refresh_token"`
}

// --- Request types ---

// SignUpRequest creates an account, a profile and the default citizen role.
type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone,omitempty"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type UpsertAddressRequest struct {
	Line1    string `json:"line1"`
	Line2    string `json:"line2,omitempty"`
	City     string `json:"city"`
	District string `json:"district,omitempty"`
	State    string `json:"state,omitempty"`
	Pincode  string `json:"pincode"`
}

type SubmitAadhaarRequest struct {
	AadhaarNumber string `json:"aadhaar_number"`
}

type GrantRoleRequest struct {
	Role auth.Role `json:"role"`
}
