package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goa-gov/sewa-connect/internal/shared/events"
	"github.com/goa-gov/sewa-connect/internal/shared/types"
)

// Subscriber mirrors domain events into the audit chain.
type Subscriber struct {
	repo Repository
	bus  events.EventBus
}

// NewSubscriber creates a new audit subscriber
func NewSubscriber(repo Repository, bus events.EventBus) *Subscriber {
	return &Subscriber{repo: repo, bus: bus}
}

// Start subscribes to all audited event categories
func (s *Subscriber) Start(ctx context.Context) error {
	patterns := []struct {
		pattern      string
		consumerName string
	}{
		{"identity.*", "audit-identity-subscriber"},
		{"application.*", "audit-application-subscriber"},
	}

	for _, p := range patterns {
		if err := s.bus.Subscribe(ctx, p.pattern, p.consumerName, s.handleEvent); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", p.pattern, err)
		}
	}

	return nil
}

func (s *Subscriber) handleEvent(ctx context.Context, event events.Event) error {
	entry := s.eventToAuditEntry(event)
	if entry == nil {
		return nil
	}

	if err := s.repo.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// eventToAuditEntry converts a domain event to an audit entry. The event
// type doubles as the action; the prefix names the resource.
func (s *Subscriber) eventToAuditEntry(event events.Event) *AuditEntry {
	parts := strings.SplitN(event.Type, ".", 2)
	if len(parts) < 2 {
		return nil
	}
	resourceType := parts[0]

	var resourceID *types.ID
	for _, field := range []string{resourceType + "_id", "application_id", "user_id", "id"} {
		if raw, ok := event.Data[field]; ok {
			if str, ok := raw.(string); ok {
				id := types.ID(str)
				resourceID = &id
				break
			}
		}
	}

	actorType := ActorTypeSystem
	switch event.ActorType {
	case "citizen":
		actorType = ActorTypeCitizen
	case "officer":
		actorType = ActorTypeOfficer
	case "admin":
		actorType = ActorTypeAdmin
	}

	entry := NewAuditEntry(actorType, event.ActorID, event.Type, resourceType, resourceID, event.Data)
	// Carry the event's own timestamp; Append re-seals the hash after
	// linking, so the adjustment stays consistent.
	entry.Timestamp = event.Timestamp.UTC().Truncate(time.Microsecond)
	return entry
}
