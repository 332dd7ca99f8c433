package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/goa-gov/sewa-connect/internal/shared/auth"
)

// Dashboard destinations per role.
const (
	PathAuth       = "/auth"
	PathSelectRole = "/select-role"
	PathCitizen    = "/citizen"
	PathOfficer    = "/officer"
	PathAdmin      = "/admin"
)

var dashboards = map[auth.Role]string{
	auth.RoleCitizen: PathCitizen,
	auth.RoleOfficer: PathOfficer,
	auth.RoleAdmin:   PathAdmin,
}

// Destination computes where a caller with the given roles lands:
// no roles (or no session) goes to sign-in, one role goes straight to its
// dashboard, several roles go to the picker.
func Destination(roles []auth.Role) string {
	switch len(roles) {
	case 0:
		return PathAuth
	case 1:
		if path, ok := dashboards[roles[0]]; ok {
			return path
		}
		return PathAuth
	default:
		return PathSelectRole
	}
}

// Handler provides the role-based entry routing.
type Handler struct{}

// NewHandler creates a new router handler
func NewHandler() *Handler {
	return &Handler{}
}

// Routes registers the entry and dashboard routes. Mounted at the server
// root behind the optional-auth middleware.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.Entry)
	r.Get(PathAuth, h.AuthPage)
	r.Get(PathSelectRole, h.SelectRole)

	// Route guards are convenience only; the policy engine stays the
	// enforcement boundary for every data access.
	r.Get(PathCitizen, h.dashboard(auth.RoleCitizen))
	r.Get(PathOfficer, h.dashboard(auth.RoleOfficer))
	r.Get(PathAdmin, h.dashboard(auth.RoleAdmin))
	r.Get("/apply/{serviceID}", h.ApplyPage)

	r.NotFound(NotFound)

	return r
}

// SessionRoute returns the destination as JSON for SPA clients.
func (h *Handler) SessionRoute(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	roles := []auth.Role{}
	if user != nil {
		roles = user.Roles
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"destination": Destination(roles),
		"roles":       roles,
	})
}

// Entry redirects the caller to their destination
func (h *Handler) Entry(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	var roles []auth.Role
	if user != nil {
		roles = user.Roles
	}
	http.Redirect(w, r, Destination(roles), http.StatusFound)
}

// AuthPage is the unauthenticated landing point
func (h *Handler) AuthPage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"page": "auth"})
}

// SelectRole is the multi-role picker landing point
func (h *Handler) SelectRole(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		http.Redirect(w, r, PathAuth, http.StatusFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"page":  "select-role",
		"roles": user.Roles,
	})
}

// dashboard guards a role's landing page: 403 with an empty body on a
// role mismatch, redirect to sign-in when anonymous.
func (h *Handler) dashboard(role auth.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := auth.GetUser(r.Context())
		if user == nil {
			http.Redirect(w, r, PathAuth, http.StatusFound)
			return
		}
		if !user.HasRole(role) {
			w.WriteHeader(http.StatusForbidden)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"page":  string(role),
			"roles": user.Roles,
		})
	}
}

// ApplyPage guards the application form entry (citizens only)
func (h *Handler) ApplyPage(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		http.Redirect(w, r, PathAuth, http.StatusFound)
		return
	}
	if !user.HasRole(auth.RoleCitizen) {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"page":       "apply",
		"service_id": chi.URLParam(r, "serviceID"),
	})
}

// NotFound is the catch-all JSON 404.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
