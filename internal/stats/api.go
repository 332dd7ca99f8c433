package stats

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/goa-gov/sewa-connect/internal/policy"
	"github.com/goa-gov/sewa-connect/internal/shared/auth"
	"github.com/goa-gov/sewa-connect/internal/shared/errors"
)

// Handler provides HTTP handlers for the stats module
type Handler struct {
	repo   Repository
	policy *policy.Engine
}

// NewHandler creates a new stats handler
func NewHandler(repo Repository, engine *policy.Engine) *Handler {
	return &Handler{repo: repo, policy: engine}
}

// Routes registers the stats routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetOverview)
	return r
}

// GetOverview returns the admin dashboard aggregates
func (h *Handler) GetOverview(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if d := h.policy.Authorize(user, policy.ActionRead, policy.Resource{Type: policy.ResourceStats}); !d.Allow {
		writeError(w, errors.Forbidden(d.Reason))
		return
	}

	overview, err := h.repo.Overview(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, overview)
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
