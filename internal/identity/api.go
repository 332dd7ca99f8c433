package identity

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/goa-gov/sewa-connect/internal/policy"
	"github.com/goa-gov/sewa-connect/internal/shared/auth"
	"github.com/goa-gov/sewa-connect/internal/shared/errors"
	"github.com/goa-gov/sewa-connect/internal/shared/types"
)

// Handler provides HTTP handlers for the identity module
type Handler struct {
	svc    *Service
	repo   Repository
	policy *policy.Engine
}

// NewHandler creates a new identity handler
func NewHandler(svc *Service, repo Repository, engine *policy.Engine) *Handler {
	return &Handler{svc: svc, repo: repo, policy: engine}
}

// AuthRoutes registers the unauthenticated session endpoints. The caller
// mounts these behind the auth rate limiter.
func (h *Handler) AuthRoutes() chi.Router {
	r := chi.NewRouter()

	r.Post("/signup", h.SignUp)
	r.Post("/signin", h.SignIn)
	r.Post("/refresh", h.Refresh)
	r.Post("/signout", h.SignOut)

	return r
}

// Routes registers the authenticated identity routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/me", func(r chi.Router) {
		r.Get("/", h.GetProfile)
		r.Put("/", h.UpdateProfile)
		r.Get("/roles", h.ListMyRoles)

		r.Get("/addresses", h.ListAddresses)
		r.Put("/addresses", h.UpsertAddress)

		r.Get("/aadhaar", h.GetMyAadhaar)
		r.Post("/aadhaar", h.SubmitAadhaar)
	})

	r.Route("/users/{userID}", func(r chi.Router) {
		r.Get("/aadhaar", h.GetUserAadhaar)
		r.Get("/roles", h.ListUserRoles)
		r.Post("/roles", h.GrantRole)
		r.Delete("/roles/{role}", h.RevokeRole)
	})

	return r
}

// SignUp creates an account with the default citizen role
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	profile, err := h.svc.SignUp(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, profile)
}

// SignIn exchanges credentials for a token pair
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	pair, roles, err := h.svc.SignIn(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  pair.AccessToken,
		"expires_at":    pair.ExpiresAt,
		"refresh_token": pair.RefreshToken,
		"roles":         roles,
	})
}

// Refresh redeems a refresh token for a new token pair
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, errors.BadRequest("refresh_token is required"))
		return
	}

	pair, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// SignOut revokes the presented refresh token
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, errors.BadRequest("refresh_token is required"))
		return
	}

	if err := h.svc.SignOut(r.Context(), req.RefreshToken); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetProfile returns the caller's profile
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	profile, err := h.repo.FindProfile(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// UpdateProfile updates the caller's own profile
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	var req struct {
		FullName string `json:"full_name"`
		Phone    string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if req.FullName == "" {
		writeError(w, errors.BadRequest("full name is required"))
		return
	}

	profile, err := h.repo.FindProfile(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	if d := h.policy.Authorize(user, policy.ActionUpdate, policy.Resource{Type: policy.ResourceProfile, OwnerID: profile.ID}); !d.Allow {
		writeError(w, errors.Forbidden(d.Reason))
		return
	}

	profile.FullName = req.FullName
	profile.Phone = req.Phone
	if err := h.repo.UpdateProfile(r.Context(), profile); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// ListMyRoles returns the caller's role set
func (h *Handler) ListMyRoles(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	roles, err := h.svc.Roles(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

// ListAddresses returns the caller's addresses
func (h *Handler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	addresses, err := h.repo.ListAddresses(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": addresses})
}

// UpsertAddress creates or replaces the caller's address
func (h *Handler) UpsertAddress(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	var req UpsertAddressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if req.Line1 == "" || req.City == "" || req.Pincode == "" {
		writeError(w, errors.Validation("line1, city and pincode are required", nil))
		return
	}

	if d := h.policy.Authorize(user, policy.ActionUpdate, policy.Resource{Type: policy.ResourceAddress, OwnerID: user.ID}); !d.Allow {
		writeError(w, errors.Forbidden(d.Reason))
		return
	}

	state := req.State
	if state == "" {
		state = "Goa"
	}

	addr := &Address{
		ID:       types.NewID(),
		UserID:   user.ID,
		Line1:    req.Line1,
		Line2:    req.Line2,
		City:     req.City,
		District: req.District,
		State:    state,
		Pincode:  req.Pincode,
	}
	if err := h.repo.UpsertAddress(r.Context(), addr); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, addr)
}

// GetMyAadhaar returns the caller's Aadhaar record
func (h *Handler) GetMyAadhaar(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	details, err := h.repo.FindAadhaar(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, details)
}

// SubmitAadhaar records the caller's Aadhaar number
func (h *Handler) SubmitAadhaar(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	var req SubmitAadhaarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	details, err := h.svc.SubmitAadhaar(r.Context(), user.ID, req.AadhaarNumber)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, details)
}

// GetUserAadhaar lets reviewers read another user's Aadhaar record
func (h *Handler) GetUserAadhaar(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	userID, err := types.ParseID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid user ID"))
		return
	}

	if d := h.policy.Authorize(user, policy.ActionRead, policy.Resource{Type: policy.ResourceAadhaar, OwnerID: userID}); !d.Allow {
		writeError(w, errors.Forbidden(d.Reason))
		return
	}

	details, err := h.repo.FindAadhaar(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, details)
}

// ListUserRoles returns another user's role set (owner or admin)
func (h *Handler) ListUserRoles(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	userID, err := types.ParseID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid user ID"))
		return
	}

	if d := h.policy.Authorize(user, policy.ActionRead, policy.Resource{Type: policy.ResourceRole, OwnerID: userID}); !d.Allow {
		writeError(w, errors.Forbidden(d.Reason))
		return
	}

	roles, err := h.svc.Roles(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

// GrantRole assigns a role to a user (admin only)
func (h *Handler) GrantRole(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	userID, err := types.ParseID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid user ID"))
		return
	}

	if d := h.policy.Authorize(user, policy.ActionInsert, policy.Resource{Type: policy.ResourceRole, OwnerID: userID}); !d.Allow {
		writeError(w, errors.Forbidden(d.Reason))
		return
	}

	var req GrantRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if err := h.svc.GrantRole(r.Context(), userID, req.Role); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"user_id": userID,
		"role":    req.Role,
	})
}

// RevokeRole removes a role from a user (admin only)
func (h *Handler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	userID, err := types.ParseID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid user ID"))
		return
	}

	if d := h.policy.Authorize(user, policy.ActionDelete, policy.Resource{Type: policy.ResourceRole, OwnerID: userID}); !d.Allow {
		writeError(w, errors.Forbidden(d.Reason))
		return
	}

	if err := h.svc.RevokeRole(r.Context(), userID, auth.Role(chi.URLParam(r, "role"))); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
