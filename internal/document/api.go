package document

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/goa-gov/sewa-connect/internal/catalog"
	"github.com/goa-gov/sewa-connect/internal/policy"
	"github.com/goa-gov/sewa-connect/internal/shared/auth"
	"github.com/goa-gov/sewa-connect/internal/shared/errors"
	"github.com/goa-gov/sewa-connect/internal/shared/metrics"
	"github.com/goa-gov/sewa-connect/internal/shared/types"
	"github.com/goa-gov/sewa-connect/internal/storage"
)

const maxUploadBytes = 16 << 20 // 16 MiB per file

// ApplicationSource resolves the owning citizen and service of an
// application. It decouples this module from the application package.
type ApplicationSource interface {
	ApplicationOwner(ctx context.Context, id types.ID) (citizenID, serviceID types.ID, completed bool, err error)
}

// Handler provides HTTP handlers for the document module
type Handler struct {
	repo    Repository
	apps    ApplicationSource
	catalog catalog.Repository
	store   storage.Store
	policy  *policy.Engine
}

// NewHandler creates a new document handler
func NewHandler(repo Repository, apps ApplicationSource, cat catalog.Repository, store storage.Store, engine *policy.Engine) *Handler {
	return &Handler{repo: repo, apps: apps, catalog: cat, store: store, policy: engine}
}

// Routes registers the document routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/{documentID}", h.GetDocument)
	r.Get("/{documentID}/download", h.DownloadDocument)
	r.Get("/files/*", h.ServeFile)

	return r
}

// ApplicationRoutes registers the per-application document routes,
// mounted under /applications/{applicationID}/documents.
func (h *Handler) ApplicationRoutes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListByApplication)
	r.Post("/", h.UploadDocument)

	return r
}

// ListByApplication lists an application's documents
func (h *Handler) ListByApplication(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	appID, err := types.ParseID(chi.URLParam(r, "applicationID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid application ID"))
		return
	}

	citizenID, _, _, err := h.apps.ApplicationOwner(r.Context(), appID)
	if err != nil {
		writeError(w, err)
		return
	}

	if d := h.policy.Authorize(user, policy.ActionRead, policy.Resource{Type: policy.ResourceDocument, OwnerID: citizenID}); !d.Allow {
		writeError(w, errors.Forbidden(d.Reason))
		return
	}

	docs, err := h.repo.ListByApplication(r.Context(), appID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": docs})
}

// UploadDocument attaches one more file to an open application, for
// example after an additional-info request. The body is multipart form
// data with a doc_type field and a file part named "file".
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	appID, err := types.ParseID(chi.URLParam(r, "applicationID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid application ID"))
		return
	}

	citizenID, serviceID, completed, err := h.apps.ApplicationOwner(r.Context(), appID)
	if err != nil {
		writeError(w, err)
		return
	}
	if completed {
		writeError(w, errors.Conflict("application is already completed"))
		return
	}

	if d := h.policy.Authorize(user, policy.ActionInsert, policy.Resource{Type: policy.ResourceDocument, OwnerID: citizenID}); !d.Allow {
		writeError(w, errors.Forbidden(d.Reason))
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, errors.BadRequest("expected multipart form data"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	docType := r.FormValue("doc_type")
	if docType == "" {
		writeError(w, errors.BadRequest("doc_type is required"))
		return
	}

	svc, err := h.catalog.FindService(r.Context(), serviceID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !labelAllowed(svc.RequiredDocuments, docType) {
		writeError(w, errors.Validation("doc_type is not accepted for this service", map[string]string{"doc_type": docType}))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, errors.BadRequest("a file part named \"file\" is required"))
		return
	}
	defer file.Close()

	key := ObjectKey(citizenID, appID, docType, header.Filename)
	info, err := h.store.Put(r.Context(), key, file)
	if err != nil {
		writeError(w, err)
		return
	}

	doc := &Document{
		ID:            types.NewID(),
		ApplicationID: appID,
		FileName:      header.Filename,
		FileURL:       h.store.URL(key),
		StorageKey:    key,
		DocType:       docType,
		SHA256:        info.SHA256,
		SizeBytes:     info.Size,
		UploadedAt:    time.Now(),
	}
	if err := h.repo.Insert(r.Context(), doc); err != nil {
		// Keep the store consistent with the table.
		_ = h.store.Delete(r.Context(), key)
		writeError(w, err)
		return
	}

	metrics.RecordDocumentUploaded(docType)
	writeJSON(w, http.StatusCreated, doc)
}

// GetDocument returns document metadata
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.authorizeDocument(w, r, policy.ActionRead)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// DownloadDocument streams the file bytes
func (h *Handler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.authorizeDocument(w, r, policy.ActionRead)
	if !ok {
		return
	}

	rc, info, err := h.store.Get(r.Context(), doc.StorageKey)
	if err != nil {
		writeError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.FileName+`"`)
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	io.Copy(w, rc)
}

// ServeFile serves an object by storage key. The policy engine gates the
// read on the key's first path segment, so citizens only reach their own
// prefix while reviewers read everything.
func (h *Handler) ServeFile(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	key := chi.URLParam(r, "*")
	if key == "" {
		writeError(w, errors.BadRequest("object key is required"))
		return
	}

	if d := h.policy.Authorize(user, policy.ActionRead, policy.Resource{Type: policy.ResourceStorage, StorageKey: key}); !d.Allow {
		writeError(w, errors.Forbidden(d.Reason))
		return
	}

	rc, _, err := h.store.Get(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	io.Copy(w, rc)
}

func (h *Handler) authorizeDocument(w http.ResponseWriter, r *http.Request, action policy.Action) (*Document, bool) {
	user := auth.GetUser(r.Context())
	id, err := types.ParseID(chi.URLParam(r, "documentID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid document ID"))
		return nil, false
	}

	doc, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return nil, false
	}

	citizenID, _, _, err := h.apps.ApplicationOwner(r.Context(), doc.ApplicationID)
	if err != nil {
		writeError(w, err)
		return nil, false
	}

	if d := h.policy.Authorize(user, action, policy.Resource{Type: policy.ResourceDocument, OwnerID: citizenID}); !d.Allow {
		writeError(w, errors.Forbidden(d.Reason))
		return nil, false
	}
	return doc, true
}

func labelAllowed(required []string, label string) bool {
	for _, l := range required {
		if l == label {
			return true
		}
	}
	return false
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
