package application

import (
	"testing"
	"time"

	"github.com/goa-gov/sewa-connect/internal/shared/types"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusUnderReview, true},
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusAdditionalInfo, true},
		{StatusPending, StatusPending, false},

		{StatusUnderReview, StatusApproved, true},
		{StatusUnderReview, StatusRejected, true},
		{StatusUnderReview, StatusAdditionalInfo, true},
		{StatusUnderReview, StatusPending, false},

		{StatusAdditionalInfo, StatusUnderReview, true},
		{StatusAdditionalInfo, StatusApproved, true},
		{StatusAdditionalInfo, StatusRejected, true},
		{StatusAdditionalInfo, StatusPending, false},

		{StatusApproved, StatusUnderReview, false},
		{StatusApproved, StatusRejected, false},
		{StatusRejected, StatusApproved, false},
		{StatusRejected, StatusUnderReview, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if !StatusApproved.IsTerminal() || !StatusRejected.IsTerminal() {
		t.Error("approved and rejected must be terminal")
	}
	for _, s := range []Status{StatusPending, StatusUnderReview, StatusAdditionalInfo} {
		if s.IsTerminal() {
			t.Errorf("%s must not be terminal", s)
		}
	}
}

func TestTransitionSetsCompletedOn(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	app := &Application{ID: types.NewID(), Status: StatusPending}

	if err := app.Transition(StatusUnderReview, "looking into it", now); err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if app.CompletedOn != nil {
		t.Error("completed_on must stay unset for non-terminal states")
	}
	if app.Remarks != "looking into it" {
		t.Errorf("remarks not recorded: %q", app.Remarks)
	}
	if !app.UpdatedAt.Equal(now) {
		t.Error("updated_at watermark not advanced")
	}

	later := now.Add(time.Hour)
	if err := app.Transition(StatusApproved, "", later); err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if app.CompletedOn == nil || !app.CompletedOn.Equal(later) {
		t.Error("completed_on must be set when entering a terminal state")
	}
	// Empty remarks leave the previous value in place.
	if app.Remarks != "looking into it" {
		t.Errorf("empty remarks must not clear existing remarks, got %q", app.Remarks)
	}
}

func TestTransitionRejectsIllegalMoves(t *testing.T) {
	now := time.Now()

	app := &Application{Status: StatusApproved}
	if err := app.Transition(StatusUnderReview, "", now); err == nil {
		t.Error("terminal state must reject further transitions")
	}

	app = &Application{Status: StatusPending}
	if err := app.Transition(Status("archived"), "", now); err == nil {
		t.Error("unknown status must be rejected")
	}
	if app.Status != StatusPending {
		t.Error("failed transition must not mutate the application")
	}
}
