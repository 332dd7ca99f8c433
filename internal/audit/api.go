package audit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/goa-gov/sewa-connect/internal/policy"
	"github.com/goa-gov/sewa-connect/internal/shared/auth"
	"github.com/goa-gov/sewa-connect/internal/shared/errors"
	"github.com/goa-gov/sewa-connect/internal/shared/types"
)

// Handler provides HTTP handlers for the audit module
type Handler struct {
	repo   Repository
	policy *policy.Engine
}

// NewHandler creates a new audit handler
func NewHandler(repo Repository, engine *policy.Engine) *Handler {
	return &Handler{repo: repo, policy: engine}
}

// Routes registers the audit routes (admin only)
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListEntries)
	r.Get("/verify", h.VerifyChain)
	r.Get("/{entryID}", h.GetEntry)

	return r
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) bool {
	user := auth.GetUser(r.Context())
	if d := h.policy.Authorize(user, policy.ActionRead, policy.Resource{Type: policy.ResourceAudit}); !d.Allow {
		writeError(w, errors.Forbidden(d.Reason))
		return false
	}
	return true
}

// ListEntries lists audit entries newest first
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	filter := ListEntriesFilter{
		Action:       r.URL.Query().Get("action"),
		ResourceType: r.URL.Query().Get("resource_type"),
		Limit:        100,
	}
	if s := r.URL.Query().Get("actor_id"); s != "" {
		actorID, err := types.ParseID(s)
		if err != nil {
			writeError(w, errors.BadRequest("invalid actor_id"))
			return
		}
		filter.ActorID = &actorID
	}
	if s := r.URL.Query().Get("resource_id"); s != "" {
		resourceID, err := types.ParseID(s)
		if err != nil {
			writeError(w, errors.BadRequest("invalid resource_id"))
			return
		}
		filter.ResourceID = &resourceID
	}
	if s := r.URL.Query().Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, errors.BadRequest("start must be RFC3339"))
			return
		}
		filter.StartTime = &t
	}
	if s := r.URL.Query().Get("end"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, errors.BadRequest("end must be RFC3339"))
			return
		}
		filter.EndTime = &t
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 1000 {
			filter.Limit = n
		}
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			filter.Offset = n
		}
	}

	entries, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  entries,
		"total": total,
	})
}

// GetEntry returns one audit entry
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "entryID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid entry ID"))
		return
	}

	entry, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// VerifyChain re-hashes the newest entries and reports tampering
func (h *Handler) VerifyChain(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	limit := 1000
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 10000 {
			limit = n
		}
	}

	result, err := h.repo.VerifyChain(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
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
