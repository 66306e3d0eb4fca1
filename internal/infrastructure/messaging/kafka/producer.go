package kafka

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	appdiag "github.com/diagnovera/diagnovera/internal/application/diagnosis"
	applib "github.com/diagnovera/diagnovera/internal/application/library"
	"github.com/diagnovera/diagnovera/internal/infrastructure/monitoring/logging"
	"github.com/diagnovera/diagnovera/pkg/errors"
)

// sourceName identifies this service in event envelopes.
const sourceName = "diagnovera"

// ProducerConfig holds the producer tunables.
type ProducerConfig struct {
	Brokers      []string
	MaxRetries   int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
}

// WriterInterface abstracts kafka.Writer for testing.
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Producer publishes domain events.  It implements both application-layer
// publisher ports.
type Producer struct {
	writer WriterInterface
	logger logging.Logger
	closed atomic.Bool
	sent   atomic.Int64
	failed atomic.Int64
}

var (
	_ appdiag.EventPublisher = (*Producer)(nil)
	_ applib.EventPublisher  = (*Producer)(nil)
)

// NewProducer creates a Producer writing to the configured brokers.
func NewProducer(cfg ProducerConfig, log logging.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.InvalidParam("kafka brokers are required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if log == nil {
		log = logging.NewNopLogger()
	}

	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Balancer:     &kafkago.Hash{},
		MaxAttempts:  cfg.MaxRetries + 1,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafkago.RequireOne,
	}
	return &Producer{writer: writer, logger: log.Named("producer")}, nil
}

// NewProducerWithWriter creates a Producer with an existing writer (for
// testing).
func NewProducerWithWriter(w WriterInterface, log logging.Logger) *Producer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Producer{writer: w, logger: log.Named("producer")}
}

// PublishDiagnosisCompleted emits the completed-diagnosis event, keyed by
// encounter id so one encounter's results stay ordered per partition.
func (p *Producer) PublishDiagnosisCompleted(ctx context.Context, event *appdiag.DiagnosisCompletedEvent) error {
	return p.publish(ctx, TopicDiagnosisCompleted, event.EncounterID, "diagnosis.completed", event)
}

// PublishProfileUpdated emits a library-mutation event keyed by disease id.
func (p *Producer) PublishProfileUpdated(ctx context.Context, event *applib.ProfileUpdatedEvent) error {
	return p.publish(ctx, TopicLibraryProfileUpdated, event.DiseaseID, "library.profile."+event.Action, event)
}

// PublishBuildRequest enqueues a profile-build request for the worker.
func (p *Producer) PublishBuildRequest(ctx context.Context, payload *BuildRequestPayload) error {
	return p.publish(ctx, TopicLibraryBuildRequested, payload.DiseaseID, "library.build.requested", payload)
}

func (p *Producer) publish(ctx context.Context, topic, key, eventType string, payload interface{}) error {
	if p.closed.Load() {
		return errors.New(errors.CodeMessagingError, "producer is closed")
	}

	env, err := NewEventEnvelope(eventType, sourceName, payload)
	if err != nil {
		return err
	}
	value, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, errors.CodeSerialization, "failed to marshal event envelope")
	}

	msg := kafkago.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  env.Timestamp,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(env.EventType)},
			{Key: "schema_version", Value: []byte(env.SchemaVersion)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.failed.Add(1)
		return errors.Wrap(err, errors.CodeMessagingError, "failed to publish event")
	}
	p.sent.Add(1)

	p.logger.Debug("event published",
		logging.String("topic", topic),
		logging.String("event_type", eventType),
		logging.String("key", key),
	)
	return nil
}

// Sent returns the number of successfully published events.
func (p *Producer) Sent() int64 {
	return p.sent.Load()
}

// Close shuts the producer down.  Safe to call more than once.
func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.writer.Close()
	p.logger.Info("kafka producer closed", logging.Int64("sent", p.sent.Load()))
	return err
}
