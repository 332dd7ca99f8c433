package application

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goa-gov/sewa-connect/internal/catalog"
	"github.com/goa-gov/sewa-connect/internal/document"
	"github.com/goa-gov/sewa-connect/internal/payment"
	"github.com/goa-gov/sewa-connect/internal/shared/auth"
	"github.com/goa-gov/sewa-connect/internal/shared/errors"
	"github.com/goa-gov/sewa-connect/internal/shared/types"
	"github.com/goa-gov/sewa-connect/internal/storage"
)

// memoryAppRepo is an in-memory Repository; failSubmit induces a
// transaction failure.
type memoryAppRepo struct {
	apps       map[types.ID]*Application
	docs       map[types.ID][]document.Document
	payments   map[types.ID]*payment.Payment
	failSubmit bool
}

func newMemoryAppRepo() *memoryAppRepo {
	return &memoryAppRepo{
		apps:     make(map[types.ID]*Application),
		docs:     make(map[types.ID][]document.Document),
		payments: make(map[types.ID]*payment.Payment),
	}
}

func (m *memoryAppRepo) Submit(_ context.Context, app *Application, docs []document.Document, pay *payment.Payment) error {
	if m.failSubmit {
		return errors.Internal(io.ErrUnexpectedEOF)
	}
	for _, existing := range m.apps {
		if app.IdempotencyKey != "" && existing.CitizenID == app.CitizenID && existing.IdempotencyKey == app.IdempotencyKey {
			return errors.Conflict("an application with this idempotency key already exists")
		}
	}
	m.apps[app.ID] = app
	m.docs[app.ID] = docs
	m.payments[app.ID] = pay
	return nil
}

func (m *memoryAppRepo) FindByID(_ context.Context, id types.ID) (*Application, error) {
	app, ok := m.apps[id]
	if !ok {
		return nil, errors.NotFound("application", id.String())
	}
	copied := *app
	return &copied, nil
}

func (m *memoryAppRepo) FindByIdempotencyKey(_ context.Context, citizenID types.ID, key string) (*Application, error) {
	for _, app := range m.apps {
		if app.CitizenID == citizenID && app.IdempotencyKey == key {
			copied := *app
			return &copied, nil
		}
	}
	return nil, errors.NotFound("application", "idempotency key "+key)
}

func (m *memoryAppRepo) List(_ context.Context, filter ListFilter) ([]Application, int, error) {
	var out []Application
	for _, app := range m.apps {
		if filter.CitizenID != nil && app.CitizenID != *filter.CitizenID {
			continue
		}
		if filter.Status != nil && app.Status != *filter.Status {
			continue
		}
		out = append(out, *app)
	}
	return out, len(out), nil
}

func (m *memoryAppRepo) Update(_ context.Context, app *Application) error {
	if _, ok := m.apps[app.ID]; !ok {
		return errors.NotFound("application", app.ID.String())
	}
	copied := *app
	m.apps[app.ID] = &copied
	return nil
}

var _ Repository = (*memoryAppRepo)(nil)

// stubCatalog serves a single service.
type stubCatalog struct {
	svc *catalog.Service
}

func (s *stubCatalog) CreateDepartment(context.Context, *catalog.Department) error { return nil }
func (s *stubCatalog) UpdateDepartment(context.Context, *catalog.Department) error { return nil }
func (s *stubCatalog) FindDepartment(context.Context, types.ID) (*catalog.Department, error) {
	return nil, errors.NotFound("department", "stub")
}
func (s *stubCatalog) ListDepartments(context.Context) ([]catalog.Department, error) {
	return nil, nil
}
func (s *stubCatalog) CreateService(context.Context, *catalog.Service) error { return nil }
func (s *stubCatalog) UpdateService(context.Context, *catalog.Service) error { return nil }
func (s *stubCatalog) FindService(_ context.Context, id types.ID) (*catalog.Service, error) {
	if s.svc != nil && s.svc.ID == id {
		return s.svc, nil
	}
	return nil, errors.NotFound("service", id.String())
}
func (s *stubCatalog) ListServices(context.Context, catalog.ListServicesFilter) ([]catalog.Service, error) {
	if s.svc == nil {
		return nil, nil
	}
	return []catalog.Service{*s.svc}, nil
}

var _ catalog.Repository = (*stubCatalog)(nil)

// memoryStore records Put/Delete calls for compensation assertions.
type memoryStore struct {
	objects map[string][]byte
	deleted []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (m *memoryStore) Put(_ context.Context, key string, r io.Reader) (*storage.ObjectInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.objects[key] = data
	return &storage.ObjectInfo{Key: key, Size: int64(len(data)), SHA256: "stubhash"}, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, *storage.ObjectInfo, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, nil, errors.NotFound("object", key)
	}
	return io.NopCloser(strings.NewReader(string(data))), &storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *memoryStore) URL(key string) string { return "/files/" + key }

var _ storage.Store = (*memoryStore)(nil)

func birthCertificateService() *catalog.Service {
	return &catalog.Service{
		ID:                types.NewID(),
		DepartmentID:      types.NewID(),
		Name:              "Birth Certificate",
		Fee:               types.NewMoney(50, 0), // 50.00
		RequiredDocuments: []string{"Aadhaar Card", "Hospital Record"},
		IsActive:          true,
	}
}

func fullUpload() []FileUpload {
	return []FileUpload{
		{DocType: "Aadhaar Card", FileName: "aadhaar.pdf", Content: strings.NewReader("aadhaar bytes")},
		{DocType: "Hospital Record", FileName: "record.pdf", Content: strings.NewReader("record bytes")},
	}
}

func TestSubmitHappyPath(t *testing.T) {
	repo := newMemoryAppRepo()
	store := newMemoryStore()
	svc := birthCertificateService()
	s := NewService(repo, &stubCatalog{svc: svc}, store, payment.NewMockGateway(), nil)

	citizenID := types.NewID()
	result, err := s.Submit(context.Background(), SubmitInput{
		CitizenID: citizenID,
		ServiceID: svc.ID,
		Files:     fullUpload(),
	})
	require.NoError(t, err)
	require.False(t, result.Replayed)

	app := result.Application
	assert.Equal(t, StatusPending, app.Status)
	assert.Equal(t, citizenID, app.CitizenID)
	assert.Nil(t, app.CompletedOn)

	require.Len(t, result.Documents, 2)
	for _, d := range result.Documents {
		assert.True(t, strings.HasPrefix(d.StorageKey, citizenID.String()+"/"+app.ID.String()+"/"),
			"storage key %q must carry the owner prefix", d.StorageKey)
		_, ok := store.objects[d.StorageKey]
		assert.True(t, ok, "object %q must exist", d.StorageKey)
	}

	require.NotNil(t, result.Payment)
	assert.Equal(t, svc.Fee, result.Payment.Amount)
	assert.Equal(t, payment.StatusCompleted, result.Payment.Status)
	assert.True(t, strings.HasPrefix(result.Payment.TransactionID, "TXN-"))
}

func TestSubmitMissingDocumentsNamesLabels(t *testing.T) {
	svc := birthCertificateService()
	s := NewService(newMemoryAppRepo(), &stubCatalog{svc: svc}, newMemoryStore(), payment.NewMockGateway(), nil)

	_, err := s.Submit(context.Background(), SubmitInput{
		CitizenID: types.NewID(),
		ServiceID: svc.ID,
		Files: []FileUpload{
			{DocType: "Aadhaar Card", FileName: "aadhaar.pdf", Content: strings.NewReader("x")},
		},
	})
	require.Error(t, err)

	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, 400, appErr.HTTPStatus)
	assert.Contains(t, appErr.Details, "Hospital Record")
}

func TestSubmitRejectsUnknownLabel(t *testing.T) {
	svc := birthCertificateService()
	s := NewService(newMemoryAppRepo(), &stubCatalog{svc: svc}, newMemoryStore(), payment.NewMockGateway(), nil)

	files := append(fullUpload(), FileUpload{DocType: "Passport", FileName: "p.pdf", Content: strings.NewReader("x")})
	_, err := s.Submit(context.Background(), SubmitInput{
		CitizenID: types.NewID(),
		ServiceID: svc.ID,
		Files:     files,
	})
	assert.Error(t, err)
}

func TestSubmitCompensatesStorageOnTxFailure(t *testing.T) {
	repo := newMemoryAppRepo()
	repo.failSubmit = true
	store := newMemoryStore()
	svc := birthCertificateService()
	s := NewService(repo, &stubCatalog{svc: svc}, store, payment.NewMockGateway(), nil)

	_, err := s.Submit(context.Background(), SubmitInput{
		CitizenID: types.NewID(),
		ServiceID: svc.ID,
		Files:     fullUpload(),
	})
	require.Error(t, err)

	assert.Empty(t, repo.apps, "no application row may survive a failed transaction")
	assert.Empty(t, store.objects, "orphaned objects must be deleted")
	assert.Len(t, store.deleted, 2)
}

func TestSubmitIdempotencyReplay(t *testing.T) {
	repo := newMemoryAppRepo()
	svc := birthCertificateService()
	s := NewService(repo, &stubCatalog{svc: svc}, newMemoryStore(), payment.NewMockGateway(), nil)
	citizenID := types.NewID()

	first, err := s.Submit(context.Background(), SubmitInput{
		CitizenID:      citizenID,
		ServiceID:      svc.ID,
		IdempotencyKey: "retry-abc",
		Files:          fullUpload(),
	})
	require.NoError(t, err)

	second, err := s.Submit(context.Background(), SubmitInput{
		CitizenID:      citizenID,
		ServiceID:      svc.ID,
		IdempotencyKey: "retry-abc",
		Files:          fullUpload(),
	})
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Application.ID, second.Application.ID)
	assert.Len(t, repo.apps, 1)

	// A different citizen may reuse the same key.
	other, err := s.Submit(context.Background(), SubmitInput{
		CitizenID:      types.NewID(),
		ServiceID:      svc.ID,
		IdempotencyKey: "retry-abc",
		Files:          fullUpload(),
	})
	require.NoError(t, err)
	assert.False(t, other.Replayed)
}

func TestSubmitInactiveService(t *testing.T) {
	svc := birthCertificateService()
	svc.IsActive = false
	s := NewService(newMemoryAppRepo(), &stubCatalog{svc: svc}, newMemoryStore(), payment.NewMockGateway(), nil)

	_, err := s.Submit(context.Background(), SubmitInput{
		CitizenID: types.NewID(),
		ServiceID: svc.ID,
		Files:     fullUpload(),
	})
	assert.Error(t, err)
}

func TestSubmitRecordsFailedPayment(t *testing.T) {
	repo := newMemoryAppRepo()
	gateway := payment.NewMockGateway()
	gateway.FailNext = true
	svc := birthCertificateService()
	s := NewService(repo, &stubCatalog{svc: svc}, newMemoryStore(), gateway, nil)

	result, err := s.Submit(context.Background(), SubmitInput{
		CitizenID: types.NewID(),
		ServiceID: svc.ID,
		Files:     fullUpload(),
	})
	require.NoError(t, err)
	assert.Equal(t, payment.StatusFailed, result.Payment.Status)
}

func TestTransitionAutoAssignsOfficer(t *testing.T) {
	repo := newMemoryAppRepo()
	svc := birthCertificateService()
	s := NewService(repo, &stubCatalog{svc: svc}, newMemoryStore(), payment.NewMockGateway(), nil)

	result, err := s.Submit(context.Background(), SubmitInput{
		CitizenID: types.NewID(),
		ServiceID: svc.ID,
		Files:     fullUpload(),
	})
	require.NoError(t, err)
	appID := result.Application.ID

	officer := &auth.User{ID: types.NewID(), Roles: []auth.Role{auth.RoleOfficer}}
	app, err := s.Transition(context.Background(), officer, appID, TransitionRequest{Status: StatusUnderReview, Remarks: "picked up"})
	require.NoError(t, err)

	require.NotNil(t, app.OfficerID)
	assert.Equal(t, officer.ID, *app.OfficerID)
	assert.Equal(t, StatusUnderReview, app.Status)
	assert.Equal(t, "picked up", app.Remarks)

	// A second officer does not steal the assignment.
	other := &auth.User{ID: types.NewID(), Roles: []auth.Role{auth.RoleOfficer}}
	app, err = s.Transition(context.Background(), other, appID, TransitionRequest{Status: StatusApproved})
	require.NoError(t, err)
	assert.Equal(t, officer.ID, *app.OfficerID)
	require.NotNil(t, app.CompletedOn)
}

func TestTransitionRejectsTerminalMoves(t *testing.T) {
	repo := newMemoryAppRepo()
	svc := birthCertificateService()
	s := NewService(repo, &stubCatalog{svc: svc}, newMemoryStore(), payment.NewMockGateway(), nil)

	result, err := s.Submit(context.Background(), SubmitInput{
		CitizenID: types.NewID(),
		ServiceID: svc.ID,
		Files:     fullUpload(),
	})
	require.NoError(t, err)

	officer := &auth.User{ID: types.NewID(), Roles: []auth.Role{auth.RoleOfficer}}
	_, err = s.Transition(context.Background(), officer, result.Application.ID, TransitionRequest{Status: StatusRejected, Remarks: "incomplete"})
	require.NoError(t, err)

	_, err = s.Transition(context.Background(), officer, result.Application.ID, TransitionRequest{Status: StatusApproved})
	require.Error(t, err)
}

func TestAssignOfficer(t *testing.T) {
	repo := newMemoryAppRepo()
	svc := birthCertificateService()
	s := NewService(repo, &stubCatalog{svc: svc}, newMemoryStore(), payment.NewMockGateway(), nil)

	result, err := s.Submit(context.Background(), SubmitInput{
		CitizenID: types.NewID(),
		ServiceID: svc.ID,
		Files:     fullUpload(),
	})
	require.NoError(t, err)

	admin := &auth.User{ID: types.NewID(), Roles: []auth.Role{auth.RoleAdmin}}
	officerID := types.NewID()
	app, err := s.AssignOfficer(context.Background(), admin, result.Application.ID, officerID)
	require.NoError(t, err)
	require.NotNil(t, app.OfficerID)
	assert.Equal(t, officerID, *app.OfficerID)

	// Terminal applications reject reassignment.
	officer := &auth.User{ID: officerID, Roles: []auth.Role{auth.RoleOfficer}}
	_, err = s.Transition(context.Background(), officer, app.ID, TransitionRequest{Status: StatusApproved})
	require.NoError(t, err)
	_, err = s.AssignOfficer(context.Background(), admin, app.ID, types.NewID())
	assert.Error(t, err)
}
