package application

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/goa-gov/sewa-connect/internal/catalog"
	"github.com/goa-gov/sewa-connect/internal/document"
	"github.com/goa-gov/sewa-connect/internal/payment"
	"github.com/goa-gov/sewa-connect/internal/shared/auth"
	"github.com/goa-gov/sewa-connect/internal/shared/errors"
	"github.com/goa-gov/sewa-connect/internal/shared/events"
	"github.com/goa-gov/sewa-connect/internal/shared/metrics"
	"github.com/goa-gov/sewa-connect/internal/shared/types"
	"github.com/goa-gov/sewa-connect/internal/storage"
)

// FileUpload is one document file in a submission.
type FileUpload struct {
	DocType  string
	FileName string
	Content  io.Reader
}

// SubmitInput carries everything needed to file an application.
type SubmitInput struct {
	CitizenID      types.ID
	ServiceID      types.ID
	Remarks        string
	IdempotencyKey string
	Files          []FileUpload
}

// SubmitResult is the outcome of a submission. Replayed is true when the
// idempotency key matched a previous submission and no new rows were
// written.
type SubmitResult struct {
	Application *Application        `json:"application"`
	Payment     *payment.Payment    `json:"payment,omitempty"`
	Documents   []document.Document `json:"documents,omitempty"`
	Replayed    bool                `json:"-"`
}

// Service orchestrates submissions and lifecycle transitions.
type Service struct {
	repo    Repository
	catalog catalog.Repository
	store   storage.Store
	gateway payment.Gateway
	bus     events.EventBus
	now     func() time.Time
}

// NewService creates the application service. bus may be nil.
func NewService(repo Repository, cat catalog.Repository, store storage.Store, gateway payment.Gateway, bus events.EventBus) *Service {
	return &Service{
		repo:    repo,
		catalog: cat,
		store:   store,
		gateway: gateway,
		bus:     bus,
		now:     time.Now,
	}
}

// Submit files a new application: validates the uploaded files against the
// service's required document labels, writes the files to the object store,
// charges the fee, then inserts the application, document and payment rows
// in one transaction. Storage writes are compensated if the transaction
// fails, so an induced failure leaves neither rows nor orphaned files.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	if in.IdempotencyKey != "" {
		if existing, err := s.repo.FindByIdempotencyKey(ctx, in.CitizenID, in.IdempotencyKey); err == nil {
			return &SubmitResult{Application: existing, Replayed: true}, nil
		}
	}

	svc, err := s.catalog.FindService(ctx, in.ServiceID)
	if err != nil {
		return nil, err
	}
	if !svc.IsActive {
		return nil, errors.BadRequest("service is not accepting applications")
	}

	if err := validateRequiredDocuments(svc.RequiredDocuments, in.Files); err != nil {
		return nil, err
	}

	now := s.now()
	app := &Application{
		ID:             types.NewID(),
		CitizenID:      in.CitizenID,
		ServiceID:      in.ServiceID,
		Status:         StatusPending,
		Remarks:        in.Remarks,
		IdempotencyKey: in.IdempotencyKey,
		AppliedOn:      now,
		UpdatedAt:      now,
	}

	// Object store first; the keys are compensated on any later failure.
	var writtenKeys []string
	compensate := func() {
		for _, key := range writtenKeys {
			_ = s.store.Delete(ctx, key)
		}
	}

	docs := make([]document.Document, 0, len(in.Files))
	for _, f := range in.Files {
		key := document.ObjectKey(in.CitizenID, app.ID, f.DocType, f.FileName)
		info, err := s.store.Put(ctx, key, f.Content)
		if err != nil {
			compensate()
			return nil, errors.Wrap(err, "failed to store document "+f.DocType)
		}
		writtenKeys = append(writtenKeys, key)

		docs = append(docs, document.Document{
			ID:            types.NewID(),
			ApplicationID: app.ID,
			FileName:      f.FileName,
			FileURL:       s.store.URL(key),
			StorageKey:    key,
			DocType:       f.DocType,
			SHA256:        info.SHA256,
			SizeBytes:     info.Size,
			UploadedAt:    now,
		})
	}

	receipt, err := s.gateway.Charge(ctx, svc.Fee)
	if err != nil {
		compensate()
		return nil, errors.Wrap(err, "payment failed")
	}

	pay := &payment.Payment{
		ID:            types.NewID(),
		ApplicationID: app.ID,
		TransactionID: receipt.TransactionID,
		Amount:        receipt.Amount,
		Status:        receipt.Status,
		PaymentMethod: receipt.Method,
		PaidAt:        receipt.PaidAt,
	}

	if err := s.repo.Submit(ctx, app, docs, pay); err != nil {
		compensate()
		// A concurrent retry with the same idempotency key may have won the
		// race; surface that submission instead of the conflict.
		if in.IdempotencyKey != "" {
			if existing, lookupErr := s.repo.FindByIdempotencyKey(ctx, in.CitizenID, in.IdempotencyKey); lookupErr == nil {
				return &SubmitResult{Application: existing, Replayed: true}, nil
			}
		}
		return nil, err
	}

	metrics.RecordApplicationSubmitted(svc.Name)
	for _, d := range docs {
		metrics.RecordDocumentUploaded(d.DocType)
	}
	metrics.RecordPayment(string(pay.Status))

	s.publish(ctx, "application.submitted", in.CitizenID, map[string]any{
		"application_id": app.ID.String(),
		"service_id":     svc.ID.String(),
		"service_name":   svc.Name,
		"fee":            svc.Fee.String(),
		"payment_status": string(pay.Status),
	})

	return &SubmitResult{Application: app, Payment: pay, Documents: docs}, nil
}

// Transition moves an application through the lifecycle. The acting
// reviewer is auto-assigned when the application has no officer yet.
func (s *Service) Transition(ctx context.Context, actor *auth.User, id types.ID, req TransitionRequest) (*Application, error) {
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := app.Status
	if err := app.Transition(req.Status, req.Remarks, s.now()); err != nil {
		return nil, err
	}

	if app.OfficerID == nil && actor != nil && actor.HasRole(auth.RoleOfficer) {
		officerID := actor.ID
		app.OfficerID = &officerID
	}

	if err := s.repo.Update(ctx, app); err != nil {
		return nil, err
	}

	metrics.RecordStatusChange(string(from), string(app.Status))

	var actorID types.ID
	if actor != nil {
		actorID = actor.ID
	}
	s.publish(ctx, "application.status_changed", actorID, map[string]any{
		"application_id": app.ID.String(),
		"from":           string(from),
		"to":             string(app.Status),
		"remarks":        app.Remarks,
	})

	return app, nil
}

// AssignOfficer sets the reviewing officer on a non-terminal application.
func (s *Service) AssignOfficer(ctx context.Context, actor *auth.User, id, officerID types.ID) (*Application, error) {
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.Status.IsTerminal() {
		return nil, errors.Conflict("application is already completed")
	}

	app.OfficerID = &officerID
	app.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, app); err != nil {
		return nil, err
	}

	var actorID types.ID
	if actor != nil {
		actorID = actor.ID
	}
	s.publish(ctx, "application.officer_assigned", actorID, map[string]any{
		"application_id": app.ID.String(),
		"officer_id":     officerID.String(),
	})

	return app, nil
}

func (s *Service) publish(ctx context.Context, eventType string, actorID types.ID, data map[string]any) {
	if s.bus == nil {
		return
	}
	event := events.NewEvent(eventType, "application", data)
	if !actorID.IsZero() {
		event = event.WithActor(actorID, "user")
	}
	_ = s.bus.Publish(ctx, event)
}

// validateRequiredDocuments checks the uploaded labels against the
// service's required list. Missing labels are named in the error details;
// labels outside the list are rejected.
func validateRequiredDocuments(required []string, files []FileUpload) error {
	uploaded := make(map[string]bool, len(files))
	for _, f := range files {
		if uploaded[f.DocType] {
			return errors.Validation("duplicate document label", map[string]string{"doc_type": f.DocType})
		}
		uploaded[f.DocType] = true
	}

	allowed := make(map[string]bool, len(required))
	var missing []string
	for _, label := range required {
		allowed[label] = true
		if !uploaded[label] {
			missing = append(missing, label)
		}
	}

	for label := range uploaded {
		if !allowed[label] {
			return errors.Validation("unexpected document label", map[string]string{"doc_type": label})
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		details := make(map[string]string, len(missing))
		for _, label := range missing {
			details[label] = "required document missing"
		}
		return errors.Validation("missing required documents", details)
	}
	return nil
}
