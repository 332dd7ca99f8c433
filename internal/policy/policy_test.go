package policy

import (
	"testing"

	"github.com/goa-gov/sewa-connect/internal/shared/auth"
	"github.com/goa-gov/sewa-connect/internal/shared/types"
)

func citizen(id types.ID) *auth.User {
	return &auth.User{ID: id, Roles: []auth.Role{auth.RoleCitizen}}
}

func officer(id types.ID) *auth.User {
	return &auth.User{ID: id, Roles: []auth.Role{auth.RoleOfficer}}
}

func admin(id types.ID) *auth.User {
	return &auth.User{ID: id, Roles: []auth.Role{auth.RoleAdmin}}
}

// TestApplicationPredicates covers the application table rules: citizens
// insert and read their own rows, officers and admins read and update all
// rows but never insert, and nobody deletes.
func TestApplicationPredicates(t *testing.T) {
	e := NewEngine()
	owner := types.NewID()
	other := types.NewID()

	tests := []struct {
		name   string
		actor  *auth.User
		action Action
		res    Resource
		allow  bool
	}{
		{"citizen inserts own", citizen(owner), ActionInsert, Resource{Type: ResourceApplication, OwnerID: owner}, true},
		{"citizen inserts for other", citizen(other), ActionInsert, Resource{Type: ResourceApplication, OwnerID: owner}, false},
		{"officer cannot insert", officer(other), ActionInsert, Resource{Type: ResourceApplication, OwnerID: other}, false},
		{"citizen reads own", citizen(owner), ActionRead, Resource{Type: ResourceApplication, OwnerID: owner}, true},
		{"citizen reads foreign", citizen(other), ActionRead, Resource{Type: ResourceApplication, OwnerID: owner}, false},
		{"officer reads all", officer(other), ActionRead, Resource{Type: ResourceApplication, OwnerID: owner}, true},
		{"admin reads all", admin(other), ActionRead, Resource{Type: ResourceApplication, OwnerID: owner}, true},
		{"citizen cannot update", citizen(owner), ActionUpdate, Resource{Type: ResourceApplication, OwnerID: owner}, false},
		{"officer updates", officer(other), ActionUpdate, Resource{Type: ResourceApplication, OwnerID: owner}, true},
		{"nobody deletes", admin(other), ActionDelete, Resource{Type: ResourceApplication, OwnerID: owner}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := e.Authorize(tt.actor, tt.action, tt.res)
			if d.Allow != tt.allow {
				t.Errorf("expected allow=%v, got %v (%s)", tt.allow, d.Allow, d.Reason)
			}
		})
	}
}

// TestDocumentJoinExists covers the join-exists predicate: document and
// payment rows follow the parent application's owner.
func TestDocumentJoinExists(t *testing.T) {
	e := NewEngine()
	owner := types.NewID()
	other := types.NewID()

	for _, resType := range []ResourceType{ResourceDocument, ResourcePayment} {
		if d := e.Authorize(citizen(owner), ActionInsert, Resource{Type: resType, OwnerID: owner}); !d.Allow {
			t.Errorf("%s: owner insert denied: %s", resType, d.Reason)
		}
		if d := e.Authorize(citizen(other), ActionInsert, Resource{Type: resType, OwnerID: owner}); d.Allow {
			t.Errorf("%s: foreign insert allowed", resType)
		}
		if d := e.Authorize(officer(other), ActionRead, Resource{Type: resType, OwnerID: owner}); !d.Allow {
			t.Errorf("%s: officer read denied: %s", resType, d.Reason)
		}
		if d := e.Authorize(citizen(owner), ActionUpdate, Resource{Type: resType, OwnerID: owner}); d.Allow {
			t.Errorf("%s: rows must be immutable", resType)
		}
	}
}

// TestCatalogVisibility tests public read of active rows and admin-only
// access to inactive rows and writes.
func TestCatalogVisibility(t *testing.T) {
	e := NewEngine()
	someone := types.NewID()

	// Unauthenticated read of active service
	if d := e.Authorize(nil, ActionRead, Resource{Type: ResourceService, Active: true}); !d.Allow {
		t.Errorf("public read of active service denied: %s", d.Reason)
	}

	// Unauthenticated read of inactive service
	if d := e.Authorize(nil, ActionRead, Resource{Type: ResourceService, Active: false}); d.Allow {
		t.Error("public read of inactive service allowed")
	}

	// Citizen cannot see inactive rows
	if d := e.Authorize(citizen(someone), ActionRead, Resource{Type: ResourceService, Active: false}); d.Allow {
		t.Error("citizen read of inactive service allowed")
	}

	// Admin full control
	if d := e.Authorize(admin(someone), ActionUpdate, Resource{Type: ResourceService, Active: false}); !d.Allow {
		t.Errorf("admin update denied: %s", d.Reason)
	}

	// Officer is not a catalog admin
	if d := e.Authorize(officer(someone), ActionInsert, Resource{Type: ResourceService, Active: true}); d.Allow {
		t.Error("officer catalog insert allowed")
	}
}

// TestAadhaarReadAll tests that officers and admins get read-all on aadhaar
// rows while writes stay owner-only.
func TestAadhaarReadAll(t *testing.T) {
	e := NewEngine()
	owner := types.NewID()
	other := types.NewID()

	if d := e.Authorize(officer(other), ActionRead, Resource{Type: ResourceAadhaar, OwnerID: owner}); !d.Allow {
		t.Errorf("officer aadhaar read denied: %s", d.Reason)
	}
	if d := e.Authorize(officer(other), ActionUpdate, Resource{Type: ResourceAadhaar, OwnerID: owner}); d.Allow {
		t.Error("officer aadhaar write allowed")
	}
	if d := e.Authorize(citizen(other), ActionRead, Resource{Type: ResourceAadhaar, OwnerID: owner}); d.Allow {
		t.Error("foreign citizen aadhaar read allowed")
	}

	// Profiles stay owner-only even for admins.
	if d := e.Authorize(admin(other), ActionRead, Resource{Type: ResourceProfile, OwnerID: owner}); d.Allow {
		t.Error("admin profile read allowed; profiles are owner-only")
	}
}

// TestStorageFirstSegment tests the {user_id}/... path convention.
func TestStorageFirstSegment(t *testing.T) {
	e := NewEngine()
	owner := types.NewID()
	other := types.NewID()
	appID := types.NewID()

	key := owner.String() + "/" + appID.String() + "/aadhaar_card.pdf"

	if d := e.Authorize(citizen(owner), ActionInsert, Resource{Type: ResourceStorage, StorageKey: key}); !d.Allow {
		t.Errorf("owner storage write denied: %s", d.Reason)
	}
	if d := e.Authorize(citizen(other), ActionRead, Resource{Type: ResourceStorage, StorageKey: key}); d.Allow {
		t.Error("foreign citizen storage read allowed")
	}
	if d := e.Authorize(officer(other), ActionRead, Resource{Type: ResourceStorage, StorageKey: key}); !d.Allow {
		t.Errorf("officer storage read denied: %s", d.Reason)
	}
	if d := e.Authorize(officer(other), ActionInsert, Resource{Type: ResourceStorage, StorageKey: key}); d.Allow {
		t.Error("officer storage write into citizen prefix allowed")
	}
}

// TestReadScope tests list scoping.
func TestReadScope(t *testing.T) {
	e := NewEngine()
	cit := citizen(types.NewID())

	s := e.ReadScope(cit, ResourceApplication)
	if s.All || s.OwnerID != cit.ID {
		t.Errorf("citizen scope should be owner-only, got %+v", s)
	}

	s = e.ReadScope(officer(types.NewID()), ResourceApplication)
	if !s.All {
		t.Errorf("officer scope should be all rows, got %+v", s)
	}

	s = e.ReadScope(cit, ResourceService)
	if !s.All || !s.ActiveOnly {
		t.Errorf("citizen catalog scope should be all active rows, got %+v", s)
	}

	s = e.ReadScope(admin(types.NewID()), ResourceService)
	if !s.All || s.ActiveOnly {
		t.Errorf("admin catalog scope should include inactive rows, got %+v", s)
	}
}
