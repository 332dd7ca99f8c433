package audit

import (
	"testing"
	"time"

	"github.com/goa-gov/sewa-connect/internal/shared/events"
	"github.com/goa-gov/sewa-connect/internal/shared/types"
)

func TestHashIsDeterministic(t *testing.T) {
	entry := NewAuditEntry(ActorTypeCitizen, types.NewID(), "application.submitted", "application", nil,
		map[string]any{"service_name": "Birth Certificate", "fee": "50.00"})

	first := entry.ComputeHash()
	for i := 0; i < 5; i++ {
		if got := entry.ComputeHash(); got != first {
			t.Fatalf("hash not deterministic: %s vs %s", first, got)
		}
	}
	if !entry.VerifyHash() {
		t.Error("fresh entry must verify")
	}
}

func TestHashDetectsTampering(t *testing.T) {
	resourceID := types.NewID()
	entry := NewAuditEntry(ActorTypeOfficer, types.NewID(), "application.status_changed", "application", &resourceID,
		map[string]any{"from": "pending", "to": "approved"})

	entry.Changes["to"] = "rejected"
	if entry.VerifyHash() {
		t.Error("modified changes must break verification")
	}
}

func chainOf(n int) []*AuditEntry {
	entries := make([]*AuditEntry, 0, n)
	prevHash := ""
	for i := 0; i < n; i++ {
		e := NewAuditEntry(ActorTypeSystem, types.NewID(), "identity.signup", "identity", nil, nil)
		e.Sequence = int64(i + 1)
		e.PrevHash = prevHash
		e.Hash = e.ComputeHash()
		prevHash = e.Hash
		entries = append(entries, e)
	}
	// Newest first, matching the repository's read order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries
}

func TestVerifyEntriesValidChain(t *testing.T) {
	result := VerifyEntries(chainOf(5))
	if !result.Valid {
		t.Fatalf("expected valid chain, got violations: %v", result.Violations)
	}
	if result.Checked != 5 || result.ContentValid != 5 || result.LinkageValid != 5 {
		t.Errorf("unexpected counts: %+v", result)
	}
}

func TestVerifyEntriesDetectsContentTampering(t *testing.T) {
	entries := chainOf(4)
	entries[1].Action = "something.else"

	result := VerifyEntries(entries)
	if result.Valid {
		t.Fatal("tampered chain must not verify")
	}
	if result.ContentInvalid != 1 {
		t.Errorf("expected 1 content violation, got %d", result.ContentInvalid)
	}
}

func TestVerifyEntriesDetectsBrokenLinkage(t *testing.T) {
	entries := chainOf(4)
	entries[2].PrevHash = "0000"
	entries[2].Hash = entries[2].ComputeHash() // content consistent, linkage broken

	result := VerifyEntries(entries)
	if result.Valid {
		t.Fatal("broken linkage must not verify")
	}
	if result.LinkageInvalid == 0 {
		t.Error("expected a linkage violation")
	}
}

func TestVerifyEmptyChain(t *testing.T) {
	result := VerifyEntries(nil)
	if !result.Valid || result.Checked != 0 {
		t.Errorf("empty chain must be trivially valid, got %+v", result)
	}
}

func TestEventToAuditEntry(t *testing.T) {
	s := NewSubscriber(nil, nil)
	actorID := types.NewID()
	appID := types.NewID()

	event := events.Event{
		ID:        "evt-1",
		Type:      "application.status_changed",
		Source:    "application",
		Timestamp: time.Now(),
		ActorID:   actorID,
		ActorType: "officer",
		Data: map[string]any{
			"application_id": appID.String(),
			"from":           "pending",
			"to":             "under_review",
		},
	}

	entry := s.eventToAuditEntry(event)
	if entry == nil {
		t.Fatal("expected an entry")
	}
	if entry.Action != "application.status_changed" {
		t.Errorf("unexpected action %q", entry.Action)
	}
	if entry.ResourceType != "application" {
		t.Errorf("unexpected resource type %q", entry.ResourceType)
	}
	if entry.ActorType != ActorTypeOfficer {
		t.Errorf("unexpected actor type %q", entry.ActorType)
	}
	if entry.ResourceID == nil || entry.ResourceID.String() != appID.String() {
		t.Error("resource id not extracted from event data")
	}

	// Events without a category prefix are skipped.
	if got := s.eventToAuditEntry(events.Event{Type: "ping"}); got != nil {
		t.Error("expected nil for uncategorized event")
	}
}
