package application

import (
	"time"

	"github.com/goa-gov/sewa-connect/internal/shared/errors"
	"github.com/goa-gov/sewa-connect/internal/shared/types"
)

// Status is the lifecycle state of an application.
type Status string

const (
	StatusPending        Status = "pending"
	StatusUnderReview    Status = "under_review"
	StatusApproved       Status = "approved"
	StatusRejected       Status = "rejected"
	StatusAdditionalInfo Status = "additional_info_required"
)

// ValidStatus reports whether s is a known lifecycle state.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusUnderReview, StatusApproved, StatusRejected, StatusAdditionalInfo:
		return true
	}
	return false
}

// transitions is the lifecycle graph. Approved and rejected are terminal.
var transitions = map[Status][]Status{
	StatusPending:        {StatusUnderReview, StatusApproved, StatusRejected, StatusAdditionalInfo},
	StatusUnderReview:    {StatusApproved, StatusRejected, StatusAdditionalInfo},
	StatusAdditionalInfo: {StatusUnderReview, StatusApproved, StatusRejected},
	StatusApproved:       {},
	StatusRejected:       {},
}

// CanTransition reports whether from → to is a legal lifecycle move.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s admits no further transitions.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Application is one citizen's request for a service.
type Application struct {
	ID             types.ID   `json:"id"`
	CitizenID      types.ID   `json:"citizen_id"`
	ServiceID      types.ID   `json:"service_id"`
	OfficerID      *types.ID  `json:"officer_id,omitempty"`
	Status         Status     `json:"status"`
	Remarks        string     `json:"remarks"`
	IdempotencyKey string     `json:"-"`
	AppliedOn      time.Time  `json:"applied_on"`
	CompletedOn    *time.Time `json:"completed_on,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Transition moves the application to a new status, enforcing the lifecycle
// graph and the completed_on rule: set exactly when entering a terminal
// state.
func (a *Application) Transition(to Status, remarks string, now time.Time) error {
	if !ValidStatus(to) {
		return errors.BadRequest("unknown status: " + string(to))
	}
	if !CanTransition(a.Status, to) {
		return errors.Conflict("cannot transition from " + string(a.Status) + " to " + string(to))
	}

	a.Status = to
	if remarks != "" {
		a.Remarks = remarks
	}
	if to.IsTerminal() {
		a.CompletedOn = &now
	} else {
		a.CompletedOn = nil
	}
	a.UpdatedAt = now
	return nil
}

// ListFilter narrows application listings.
type ListFilter struct {
	CitizenID *types.ID
	OfficerID *types.ID
	ServiceID *types.ID
	Status    *Status
	Limit     int
	Offset    int
}

// TransitionRequest is the officer/admin status-change payload.
type TransitionRequest struct {
	Status  Status `json:"status"`
	Remarks string `json:"remarks,omitempty"`
}

// AssignRequest sets the reviewing officer.
type AssignRequest struct {
	OfficerID types.ID `json:"officer_id"`
}
