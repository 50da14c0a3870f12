package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType names a grading event published to downstream consumers.
type EventType string

const (
	// EventClassRecalculated follows a committed bulk recompute of a class.
	EventClassRecalculated EventType = "grades.class_recalculated"
	// EventSubjectRecalculated follows a committed incremental recompute of one subject grade.
	EventSubjectRecalculated EventType = "grades.subject_recalculated"
)

const (
	eventSource  = "grading-engine"
	eventVersion = "1.0"
)

// Event is the envelope published for each grading change.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Source    string          `json:"source"`
	Version   string          `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEvent wraps payload in an envelope with a fresh ID.
func NewEvent(eventType EventType, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    eventSource,
		Version:   eventVersion,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	}, nil
}

// Publisher publishes grading events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher drops every event. It is used when events are disabled.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }
