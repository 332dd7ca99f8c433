// Package policy implements the row-level authorization rules evaluated on
// every read and write. These predicates are the enforcement boundary;
// route-level role guards are routing convenience only.
package policy

import (
	"strings"

	"github.com/goa-gov/sewa-connect/internal/shared/auth"
	"github.com/goa-gov/sewa-connect/internal/shared/metrics"
	"github.com/goa-gov/sewa-connect/internal/shared/types"
)

// Action is the operation being authorized
type Action string

const (
	ActionRead   Action = "read"
	ActionList   Action = "list"
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ResourceType names a protected table or the storage bucket
type ResourceType string

const (
	ResourceProfile     ResourceType = "profile"
	ResourceAddress     ResourceType = "address"
	ResourceAadhaar     ResourceType = "aadhaar"
	ResourceDepartment  ResourceType = "department"
	ResourceService     ResourceType = "service"
	ResourceApplication ResourceType = "application"
	ResourceDocument    ResourceType = "document"
	ResourcePayment     ResourceType = "payment"
	ResourceStorage     ResourceType = "storage_object"
	ResourceRole        ResourceType = "role_assignment"
	ResourceStats       ResourceType = "statistics"
	ResourceAudit       ResourceType = "audit"
)

// Resource carries the row attributes the predicates key off.
type Resource struct {
	Type ResourceType

	// OwnerID is the owning citizen: the row's user_id or citizen_id, or
	// the parent application's citizen_id for documents and payments
	// (the join-exists predicate is resolved by the caller).
	OwnerID types.ID

	// Active applies to catalog rows; inactive rows are admin-only reads.
	Active bool

	// StorageKey applies to storage objects; the first path segment must
	// equal the caller's identifier for citizen access.
	StorageKey string
}

// Decision is the result of a policy evaluation
type Decision struct {
	Allow  bool
	Reason string
}

func allow() Decision {
	return Decision{Allow: true}
}

func deny(reason string) Decision {
	return Decision{Allow: false, Reason: reason}
}

// Scope restricts a list query to the rows the caller may see.
type Scope struct {
	// All grants unrestricted listing (officer/admin, or public catalog).
	All bool
	// OwnerID restricts rows to this owner when All is false.
	OwnerID types.ID
	// ActiveOnly hides inactive catalog rows.
	ActiveOnly bool
}

// Engine evaluates the per-table predicates.
type Engine struct{}

// NewEngine creates a policy engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Authorize evaluates the predicate for one actor/action/resource triple.
// A nil actor is an unauthenticated caller.
func (e *Engine) Authorize(actor *auth.User, action Action, res Resource) Decision {
	d := e.evaluate(actor, action, res)
	metrics.RecordAuthorizationDecision(string(res.Type), string(action), d.Allow)
	return d
}

func (e *Engine) evaluate(actor *auth.User, action Action, res Resource) Decision {
	// Public read of active catalog rows is the only unauthenticated path.
	if actor == nil {
		if (res.Type == ResourceDepartment || res.Type == ResourceService) &&
			(action == ActionRead || action == ActionList) && res.Active {
			return allow()
		}
		return deny("authentication required")
	}

	isOwner := !res.OwnerID.IsZero() && res.OwnerID == actor.ID
	reviewer := actor.IsReviewer()
	admin := actor.IsAdmin()

	switch res.Type {
	case ResourceProfile, ResourceAddress:
		// Owner-only read/write.
		if isOwner {
			return allow()
		}
		return deny("profile rows are owner-only")

	case ResourceAadhaar:
		if isOwner {
			return allow()
		}
		if reviewer && (action == ActionRead || action == ActionList) {
			return allow()
		}
		return deny("aadhaar rows are owner-only; officers read-only")

	case ResourceDepartment, ResourceService:
		if admin {
			return allow()
		}
		if (action == ActionRead || action == ActionList) && res.Active {
			return allow()
		}
		return deny("catalog writes and inactive rows are admin-only")

	case ResourceApplication:
		switch action {
		case ActionInsert:
			// Citizens insert rows where citizen_id = self. Officers and
			// admins may not insert at all.
			if actor.HasRole(auth.RoleCitizen) && isOwner {
				return allow()
			}
			return deny("applications are inserted by the owning citizen only")
		case ActionRead, ActionList:
			if isOwner || reviewer {
				return allow()
			}
			return deny("citizens read only their own applications")
		case ActionUpdate:
			if reviewer {
				return allow()
			}
			return deny("status transitions require officer or admin role")
		default:
			return deny("applications are never deleted")
		}

	case ResourceDocument, ResourcePayment:
		switch action {
		case ActionInsert:
			// Parent application must belong to the caller.
			if isOwner {
				return allow()
			}
			return deny("rows must reference the caller's own application")
		case ActionRead, ActionList:
			if isOwner || reviewer {
				return allow()
			}
			return deny("citizens read only rows on their own applications")
		default:
			return deny("document and payment rows are immutable")
		}

	case ResourceStorage:
		first := firstPathSegment(res.StorageKey)
		if first == actor.ID.String() {
			return allow()
		}
		if reviewer && (action == ActionRead || action == ActionList) {
			return allow()
		}
		return deny("storage objects are scoped by the first path segment")

	case ResourceRole:
		if action == ActionRead || action == ActionList {
			if isOwner || admin {
				return allow()
			}
			return deny("role assignments are visible to the owner and admins")
		}
		if admin {
			return allow()
		}
		return deny("role grants are admin-only")

	case ResourceStats, ResourceAudit:
		if admin {
			return allow()
		}
		return deny("admin-only view")
	}

	return deny("unknown resource type")
}

// ReadScope returns the list scope for a resource type: officers and admins
// see all rows, citizens see their own, and the catalog hides inactive rows
// from non-admins.
func (e *Engine) ReadScope(actor *auth.User, resType ResourceType) Scope {
	switch resType {
	case ResourceDepartment, ResourceService:
		if actor != nil && actor.IsAdmin() {
			return Scope{All: true}
		}
		return Scope{All: true, ActiveOnly: true}

	case ResourceApplication, ResourceDocument, ResourcePayment:
		if actor != nil && actor.IsReviewer() {
			return Scope{All: true}
		}
		if actor != nil {
			return Scope{OwnerID: actor.ID}
		}
		return Scope{}

	default:
		if actor != nil {
			return Scope{OwnerID: actor.ID}
		}
		return Scope{}
	}
}

func firstPathSegment(key string) string {
	key = strings.TrimPrefix(key, "/")
	if i := strings.IndexByte(key, '/'); i >= 0 {
		return key[:i]
	}
	return key
}
