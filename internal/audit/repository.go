package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/EventStore/EventStore-Client-Go/v4/esdb"
	"github.com/google/uuid"

	"github.com/goa-gov/sewa-connect/internal/shared/errors"
	"github.com/goa-gov/sewa-connect/internal/shared/metrics"
	"github.com/goa-gov/sewa-connect/internal/shared/types"
)

const (
	// AuditStreamName is the stream where all audit entries are stored
	AuditStreamName = "$audit"
	// AuditEventType is the event type for audit entries
	AuditEventType = "AuditEntry"
)

// Repository is the append-only audit log.
type Repository interface {
	Append(ctx context.Context, entry *AuditEntry) error
	FindByID(ctx context.Context, id types.ID) (*AuditEntry, error)
	List(ctx context.Context, filter ListEntriesFilter) ([]*AuditEntry, int, error)
	VerifyChain(ctx context.Context, limit int) (*VerifyResult, error)
}

// EventStoreRepository keeps the audit log in an EventStoreDB stream, which
// is append-only by construction: entries cannot be modified or deleted.
type EventStoreRepository struct {
	client   *esdb.Client
	mu       sync.Mutex
	lastHash string
	sequence int64
}

var _ Repository = (*EventStoreRepository)(nil)

// NewEventStoreRepository creates the audit repository.
func NewEventStoreRepository(client *esdb.Client) *EventStoreRepository {
	return &EventStoreRepository{client: client}
}

// Initialize loads the tail of the chain (last hash and sequence) so new
// entries link onto it.
func (r *EventStoreRepository) Initialize(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	opts := esdb.ReadStreamOptions{
		Direction: esdb.Backwards,
		From:      esdb.End{},
	}

	stream, err := r.client.ReadStream(ctx, AuditStreamName, opts, 1)
	if err != nil {
		// Stream doesn't exist yet - that's OK
		if esdbErr, ok := esdb.FromError(err); ok {
			if esdbErr.Code() == esdb.ErrorCodeResourceNotFound {
				r.lastHash = ""
				r.sequence = 0
				return nil
			}
		}
		return errors.Wrap(err, "failed to read audit stream")
	}
	defer stream.Close()

	event, err := stream.Recv()
	if err != nil {
		r.lastHash = ""
		r.sequence = 0
		return nil
	}

	if event.Event != nil && event.Event.EventType == AuditEventType {
		var entry AuditEntry
		if err := json.Unmarshal(event.Event.Data, &entry); err == nil {
			r.lastHash = entry.Hash
			r.sequence = entry.Sequence
		}
	}

	return nil
}

// Append links the entry onto the chain and writes it (thread-safe).
func (r *EventStoreRepository) Append(ctx context.Context, entry *AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sequence++
	entry.Sequence = r.sequence
	entry.PrevHash = r.lastHash
	entry.Hash = entry.ComputeHash()

	data, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "failed to marshal audit entry")
	}

	eventData := esdb.EventData{
		EventID:     uuid.New(),
		EventType:   AuditEventType,
		ContentType: esdb.ContentTypeJson,
		Data:        data,
		Metadata:    []byte(fmt.Sprintf(`{"sequence":%d,"hash":"%s"}`, entry.Sequence, entry.Hash)),
	}

	_, err = r.client.AppendToStream(ctx, AuditStreamName, esdb.AppendToStreamOptions{}, eventData)
	if err != nil {
		return errors.Wrap(err, "failed to append audit entry")
	}

	r.lastHash = entry.Hash
	metrics.RecordAuditEntry()
	return nil
}

// FindByID finds an audit entry by ID. Linear scan; acceptable for the
// audit volumes this portal sees.
func (r *EventStoreRepository) FindByID(ctx context.Context, id types.ID) (*AuditEntry, error) {
	opts := esdb.ReadStreamOptions{
		Direction: esdb.Forwards,
		From:      esdb.Start{},
	}

	stream, err := r.client.ReadStream(ctx, AuditStreamName, opts, 10000)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read audit stream")
	}
	defer stream.Close()

	for {
		event, err := stream.Recv()
		if err != nil {
			break
		}
		if event.Event == nil || event.Event.EventType != AuditEventType {
			continue
		}
		var entry AuditEntry
		if err := json.Unmarshal(event.Event.Data, &entry); err == nil && entry.ID == id {
			return &entry, nil
		}
	}

	return nil, errors.NotFound("audit entry", id.String())
}

// List lists audit entries newest first, applying the filter in memory.
func (r *EventStoreRepository) List(ctx context.Context, filter ListEntriesFilter) ([]*AuditEntry, int, error) {
	opts := esdb.ReadStreamOptions{
		Direction: esdb.Backwards,
		From:      esdb.End{},
	}

	maxEvents := uint64(1000)
	if filter.Limit > 0 {
		maxEvents = uint64(filter.Limit + filter.Offset + 100)
	}

	stream, err := r.client.ReadStream(ctx, AuditStreamName, opts, maxEvents)
	if err != nil {
		if esdbErr, ok := esdb.FromError(err); ok {
			if esdbErr.Code() == esdb.ErrorCodeResourceNotFound {
				return []*AuditEntry{}, 0, nil
			}
		}
		return nil, 0, errors.Wrap(err, "failed to read audit stream")
	}
	defer stream.Close()

	var entries []*AuditEntry
	total := 0

	for {
		event, err := stream.Recv()
		if err != nil {
			break
		}
		if event.Event == nil || event.Event.EventType != AuditEventType {
			continue
		}

		var entry AuditEntry
		if err := json.Unmarshal(event.Event.Data, &entry); err != nil {
			continue
		}
		if !matchesFilter(&entry, filter) {
			continue
		}

		total++
		if filter.Offset > 0 && total <= filter.Offset {
			continue
		}
		if filter.Limit > 0 && len(entries) >= filter.Limit {
			continue
		}
		entries = append(entries, &entry)
	}

	return entries, total, nil
}

// VerifyChain re-hashes the newest entries and checks their linkage.
func (r *EventStoreRepository) VerifyChain(ctx context.Context, limit int) (*VerifyResult, error) {
	opts := esdb.ReadStreamOptions{
		Direction: esdb.Backwards,
		From:      esdb.End{},
	}

	stream, err := r.client.ReadStream(ctx, AuditStreamName, opts, uint64(limit))
	if err != nil {
		if esdbErr, ok := esdb.FromError(err); ok {
			if esdbErr.Code() == esdb.ErrorCodeResourceNotFound {
				return &VerifyResult{Valid: true}, nil
			}
		}
		return nil, errors.Wrap(err, "failed to read audit stream")
	}
	defer stream.Close()

	var entries []*AuditEntry
	for {
		event, err := stream.Recv()
		if err != nil {
			break
		}
		if event.Event == nil || event.Event.EventType != AuditEventType {
			continue
		}
		var entry AuditEntry
		if err := json.Unmarshal(event.Event.Data, &entry); err == nil {
			entries = append(entries, &entry)
		}
	}

	return VerifyEntries(entries), nil
}

// VerifyEntries checks content hashes and chain linkage over entries
// ordered newest first.
func VerifyEntries(entries []*AuditEntry) *VerifyResult {
	result := &VerifyResult{Valid: true, Checked: len(entries)}

	for i, entry := range entries {
		if entry.VerifyHash() {
			result.ContentValid++
		} else {
			result.Valid = false
			result.ContentInvalid++
			result.Violations = append(result.Violations,
				fmt.Sprintf("content tampered: entry %d hash mismatch", entry.Sequence))
		}

		if i < len(entries)-1 {
			prev := entries[i+1]
			if entry.PrevHash != prev.Hash {
				result.Valid = false
				result.LinkageInvalid++
				result.Violations = append(result.Violations,
					fmt.Sprintf("chain broken: entry %d prev_hash does not match entry %d", entry.Sequence, prev.Sequence))
				continue
			}
		}
		result.LinkageValid++
	}

	return result
}

func matchesFilter(entry *AuditEntry, filter ListEntriesFilter) bool {
	if filter.ActorID != nil && entry.ActorID != *filter.ActorID {
		return false
	}
	if filter.ActorType != nil && entry.ActorType != *filter.ActorType {
		return false
	}
	if filter.Action != "" && entry.Action != filter.Action {
		return false
	}
	if filter.ResourceType != "" && entry.ResourceType != filter.ResourceType {
		return false
	}
	if filter.ResourceID != nil && (entry.ResourceID == nil || *entry.ResourceID != *filter.ResourceID) {
		return false
	}
	if filter.StartTime != nil && entry.Timestamp.Before(*filter.StartTime) {
		return false
	}
	if filter.EndTime != nil && entry.Timestamp.After(*filter.EndTime) {
		return false
	}
	return true
}
