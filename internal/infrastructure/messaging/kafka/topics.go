// Package kafka provides the event transport between the API server and the
// library worker: a producer for completed-diagnosis and library events, and
// a consumer loop for profile-build requests.
package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/diagnovera/diagnovera/pkg/errors"
)

// Topic constants.
const (
	// TopicDiagnosisCompleted carries one event per finished scoring run.
	TopicDiagnosisCompleted = "diagnosis.completed"

	// TopicLibraryBuildRequested carries profile-build requests from the
	// literature pipeline to the library worker.
	TopicLibraryBuildRequested = "library.build.requested"

	// TopicLibraryProfileUpdated announces library mutations so caches and
	// downstream consumers can refresh.
	TopicLibraryProfileUpdated = "library.profile.updated"
)

// EventEnvelope standardizes event messages across topics.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion string          `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEventEnvelope wraps payload into a versioned envelope.
func NewEventEnvelope(eventType, source string, payload interface{}) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSerialization, "failed to marshal event payload")
	}
	return &EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: "v1",
		Payload:       data,
	}, nil
}

// DecodePayload unmarshals the envelope payload into target.
func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return errors.New(errors.CodeSerialization, "event payload is empty")
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.CodeSerialization, "failed to unmarshal event payload")
	}
	return nil
}

// BuildRequestPayload is the TopicLibraryBuildRequested payload: raw
// extracted observations for one disease, to be mapped and persisted by the
// library worker.
type BuildRequestPayload struct {
	DiseaseID    string                         `json:"disease_id"`
	Description  string                         `json:"description"`
	Category     string                         `json:"category"`
	Sources      []string                       `json:"sources,omitempty"`
	Confidence   float64                        `json:"confidence"`
	Observations map[string][]ObservationRecord `json:"observations"`
	RequestedAt  time.Time                      `json:"requested_at"`
}

// ObservationRecord is the wire form of one extracted observation.
type ObservationRecord struct {
	Name       string   `json:"name"`
	Subdomain  string   `json:"subdomain,omitempty"`
	Present    *bool    `json:"present,omitempty"`
	Value      *float64 `json:"value,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Weight     *float64 `json:"weight,omitempty"`
}
