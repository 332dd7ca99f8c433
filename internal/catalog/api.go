package catalog

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/goa-gov/sewa-connect/internal/policy"
	"github.com/goa-gov/sewa-connect/internal/shared/auth"
	"github.com/goa-gov/sewa-connect/internal/shared/errors"
	"github.com/goa-gov/sewa-connect/internal/shared/types"
)

// Handler provides HTTP handlers for the catalog module
type Handler struct {
	repo   Repository
	policy *policy.Engine
}

// NewHandler creates a new catalog handler
func NewHandler(repo Repository, engine *policy.Engine) *Handler {
	return &Handler{repo: repo, policy: engine}
}

// Routes registers the catalog routes. Reads are public; the policy engine
// hides inactive rows from everyone but admins.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/departments", func(r chi.Router) {
		r.Get("/", h.ListDepartments)
		r.Post("/", h.CreateDepartment)
		r.Get("/{departmentID}", h.GetDepartment)
		r.Put("/{departmentID}", h.UpdateDepartment)
	})

	r.Route("/services", func(r chi.Router) {
		r.Get("/", h.ListServices)
		r.Post("/", h.CreateService)
		r.Get("/{serviceID}", h.GetService)
		r.Put("/{serviceID}", h.UpdateService)
	})

	return r
}

// ListDepartments lists all departments
func (h *Handler) ListDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := h.repo.ListDepartments(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": departments})
}

// GetDepartment gets a department by ID
func (h *Handler) GetDepartment(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "departmentID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid department ID"))
		return
	}

	department, err := h.repo.FindDepartment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, department)
}

// CreateDepartment creates a department (admin only)
func (h *Handler) CreateDepartment(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if d := h.policy.Authorize(user, policy.ActionInsert, policy.Resource{Type: policy.ResourceDepartment}); !d.Allow {
		writeError(w, errors.Forbidden(d.Reason))
		return
	}

	var req CreateDepartmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if req.Name == "" {
		writeError(w, errors.BadRequest("name is required"))
		return
	}

	now := time.Now()
	department := &Department{
		ID:          types.NewID(),
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.repo.CreateDepartment(r.Context(), department); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, department)
}

// UpdateDepartment updates a department (admin only)
func (h *Handler) UpdateDepartment(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if d := h.policy.Authorize(user, policy.ActionUpdate, policy.Resource{Type: policy.ResourceDepartment}); !d.Allow {
		writeError(w, errors.Forbidden(d.Reason))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "departmentID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid department ID"))
		return
	}

	department, err := h.repo.FindDepartment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	var req CreateDepartmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if req.Name != "" {
		department.Name = req.Name
	}
	department.Description = req.Description

	if err := h.repo.UpdateDepartment(r.Context(), department); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, department)
}

// ListServices lists services; non-admins only see active rows
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	scope := h.policy.ReadScope(user, policy.ResourceService)

	filter := ListServicesFilter{
		ActiveOnly: scope.ActiveOnly,
		Search:     r.URL.Query().Get("search"),
	}
	if d := r.URL.Query().Get("department_id"); d != "" {
		departmentID, err := types.ParseID(d)
		if err == nil {
			filter.DepartmentID = &departmentID
		}
	}

	services, err := h.repo.ListServices(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": services})
}

// GetService gets a service by ID; inactive rows are hidden from non-admins
func (h *Handler) GetService(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "serviceID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid service ID"))
		return
	}

	service, err := h.repo.FindService(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	user := auth.GetUser(r.Context())
	if d := h.policy.Authorize(user, policy.ActionRead, policy.Resource{Type: policy.ResourceService, Active: service.IsActive}); !d.Allow {
		// Hidden rows read as absent.
		writeError(w, errors.NotFound("service", id.String()))
		return
	}

	writeJSON(w, http.StatusOK, service)
}

// CreateService creates a service (admin only)
func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if d := h.policy.Authorize(user, policy.ActionInsert, policy.Resource{Type: policy.ResourceService}); !d.Allow {
		writeError(w, errors.Forbidden(d.Reason))
		return
	}

	var req CreateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if req.Name == "" || req.DepartmentID.IsZero() {
		writeError(w, errors.Validation("name and department_id are required", nil))
		return
	}

	fee, err := types.ParseMoney(req.Fee)
	if err != nil {
		writeError(w, errors.BadRequest("invalid fee: "+err.Error()))
		return
	}
	if fee < 0 {
		writeError(w, errors.BadRequest("fee must not be negative"))
		return
	}
	if req.ProcessingTimeDays < 0 {
		writeError(w, errors.BadRequest("processing_time_days must not be negative"))
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	docs := req.RequiredDocuments
	if docs == nil {
		docs = []string{}
	}

	now := time.Now()
	service := &Service{
		ID:                 types.NewID(),
		DepartmentID:       req.DepartmentID,
		Name:               req.Name,
		Description:        req.Description,
		Fee:                fee,
		RequiredDocuments:  docs,
		ProcessingTimeDays: req.ProcessingTimeDays,
		IsActive:           active,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := h.repo.CreateService(r.Context(), service); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, service)
}

// UpdateService updates a service (admin only)
func (h *Handler) UpdateService(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if d := h.policy.Authorize(user, policy.ActionUpdate, policy.Resource{Type: policy.ResourceService}); !d.Allow {
		writeError(w, errors.Forbidden(d.Reason))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "serviceID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid service ID"))
		return
	}

	service, err := h.repo.FindService(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	var req UpdateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.Name != nil {
		service.Name = *req.Name
	}
	if req.Description != nil {
		service.Description = *req.Description
	}
	if req.Fee != nil {
		fee, err := types.ParseMoney(*req.Fee)
		if err != nil {
			writeError(w, errors.BadRequest("invalid fee: "+err.Error()))
			return
		}
		if fee < 0 {
			writeError(w, errors.BadRequest("fee must not be negative"))
			return
		}
		service.Fee = fee
	}
	if req.RequiredDocuments != nil {
		service.RequiredDocuments = req.RequiredDocuments
	}
	if req.ProcessingTimeDays != nil {
		if *req.ProcessingTimeDays < 0 {
			writeError(w, errors.BadRequest("processing_time_days must not be negative"))
			return
		}
		service.ProcessingTimeDays = *req.ProcessingTimeDays
	}
	if req.IsActive != nil {
		service.IsActive = *req.IsActive
	}

	if err := h.repo.UpdateService(r.Context(), service); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, service)
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
