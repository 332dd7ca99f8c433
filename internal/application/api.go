package application

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/goa-gov/sewa-connect/internal/document"
	"github.com/goa-gov/sewa-connect/internal/payment"
	"github.com/goa-gov/sewa-connect/internal/policy"
	"github.com/goa-gov/sewa-connect/internal/shared/auth"
	"github.com/goa-gov/sewa-connect/internal/shared/errors"
	"github.com/goa-gov/sewa-connect/internal/shared/types"
)

const maxSubmissionBytes = 32 << 20 // 32 MiB across all uploaded files

// Handler provides HTTP handlers for the application module
type Handler struct {
	svc      *Service
	repo     Repository
	docs     document.Repository
	payments payment.Repository
	policy   *policy.Engine
}

// NewHandler creates a new application handler
func NewHandler(svc *Service, repo Repository, docs document.Repository, payments payment.Repository, engine *policy.Engine) *Handler {
	return &Handler{svc: svc, repo: repo, docs: docs, payments: payments, policy: engine}
}

// Routes registers the application routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListApplications)
	r.Post("/", h.SubmitApplication)

	r.Route("/{applicationID}", func(r chi.Router) {
		r.Get("/", h.GetApplication)
		r.Post("/transition", h.TransitionApplication)
		r.Post("/assign", h.AssignOfficer)
	})

	return r
}

// SubmitApplication files a new application. The body is multipart form
// data: a service_id field, an optional remarks field, and one file part
// per required document label (part name = label). Retries carry the same
// Idempotency-Key header and replay the original submission.
func (h *Handler) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	if d := h.policy.Authorize(user, policy.ActionInsert, policy.Resource{Type: policy.ResourceApplication, OwnerID: user.ID}); !d.Allow {
		writeError(w, errors.Forbidden(d.Reason))
		return
	}

	if err := r.ParseMultipartForm(maxSubmissionBytes); err != nil {
		writeError(w, errors.BadRequest("expected multipart form data"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	serviceID, err := types.ParseID(r.FormValue("service_id"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid service_id"))
		return
	}

	in := SubmitInput{
		CitizenID:      user.ID,
		ServiceID:      serviceID,
		Remarks:        r.FormValue("remarks"),
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	}

	for label, headers := range r.MultipartForm.File {
		if len(headers) == 0 {
			continue
		}
		f, err := headers[0].Open()
		if err != nil {
			writeError(w, errors.BadRequest("unreadable file for "+label))
			return
		}
		defer f.Close()
		in.Files = append(in.Files, FileUpload{
			DocType:  label,
			FileName: headers[0].Filename,
			Content:  f,
		})
	}

	result, err := h.svc.Submit(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

// ListApplications lists applications within the caller's read scope
func (h *Handler) ListApplications(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	scope := h.policy.ReadScope(user, policy.ResourceApplication)

	filter := ListFilter{}
	if !scope.All {
		ownerID := scope.OwnerID
		filter.CitizenID = &ownerID
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status := Status(s)
		if !ValidStatus(status) {
			writeError(w, errors.BadRequest("unknown status filter"))
			return
		}
		filter.Status = &status
	}
	if s := r.URL.Query().Get("service_id"); s != "" {
		serviceID, err := types.ParseID(s)
		if err != nil {
			writeError(w, errors.BadRequest("invalid service_id filter"))
			return
		}
		filter.ServiceID = &serviceID
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			filter.Offset = n
		}
	}

	apps, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  apps,
		"total": total,
	})
}

// GetApplication returns one application with its documents and payment
func (h *Handler) GetApplication(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	id, err := types.ParseID(chi.URLParam(r, "applicationID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid application ID"))
		return
	}

	app, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if d := h.policy.Authorize(user, policy.ActionRead, policy.Resource{Type: policy.ResourceApplication, OwnerID: app.CitizenID}); !d.Allow {
		writeError(w, errors.Forbidden(d.Reason))
		return
	}

	docs, err := h.docs.ListByApplication(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	response := map[string]any{
		"application": app,
		"documents":   docs,
	}
	if pay, err := h.payments.FindByApplication(r.Context(), id); err == nil {
		response["payment"] = pay
	}

	writeJSON(w, http.StatusOK, response)
}

// TransitionApplication moves an application through the lifecycle
// (officer/admin only)
func (h *Handler) TransitionApplication(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	id, err := types.ParseID(chi.URLParam(r, "applicationID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid application ID"))
		return
	}

	if d := h.policy.Authorize(user, policy.ActionUpdate, policy.Resource{Type: policy.ResourceApplication}); !d.Allow {
		writeError(w, errors.Forbidden(d.Reason))
		return
	}

	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	app, err := h.svc.Transition(r.Context(), user, id, req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, app)
}

// AssignOfficer sets the reviewing officer (officer/admin only)
func (h *Handler) AssignOfficer(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	id, err := types.ParseID(chi.URLParam(r, "applicationID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid application ID"))
		return
	}

	if d := h.policy.Authorize(user, policy.ActionUpdate, policy.Resource{Type: policy.ResourceApplication}); !d.Allow {
		writeError(w, errors.Forbidden(d.Reason))
		return
	}

	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OfficerID.IsZero() {
		writeError(w, errors.BadRequest("officer_id is required"))
		return
	}

	app, err := h.svc.AssignOfficer(r.Context(), user, id, req.OfficerID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, app)
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
