package kafka

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	applib "github.com/diagnovera/diagnovera/internal/application/library"
	"github.com/diagnovera/diagnovera/internal/infrastructure/monitoring/logging"
	"github.com/diagnovera/diagnovera/pkg/errors"
	"github.com/diagnovera/diagnovera/pkg/types/clinical"
)

// ConsumerConfig holds the consumer tunables.
type ConsumerConfig struct {
	Brokers        []string
	Topic          string
	GroupID        string
	MinBytes       int
	MaxBytes       int
	MaxRetries     int
	RetryBackoff   time.Duration
	CommitInterval time.Duration
}

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Handler processes one decoded event.  A non-nil return triggers the retry
// policy; after the retry budget the message is committed anyway, since the
// build pipeline re-emits requests and an unprocessable message must not
// wedge the partition.
type Handler func(ctx context.Context, env *EventEnvelope) error

// Consumer runs the fetch → handle → commit loop for one topic.
type Consumer struct {
	reader       ReaderInterface
	handler      Handler
	maxRetries   int
	retryBackoff time.Duration
	logger       logging.Logger
}

// NewConsumer creates a Consumer in the given consumer group.
func NewConsumer(cfg ConsumerConfig, handler Handler, log logging.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" || cfg.GroupID == "" {
		return nil, errors.InvalidParam("kafka consumer requires brokers, topic, and group id")
	}
	if handler == nil {
		return nil, errors.InvalidParam("kafka consumer requires a handler")
	}
	if cfg.MinBytes <= 0 {
		cfg.MinBytes = 1
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 * 1024 * 1024
	}
	if cfg.CommitInterval <= 0 {
		cfg.CommitInterval = time.Second
	}

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       cfg.MinBytes,
		MaxBytes:       cfg.MaxBytes,
		CommitInterval: cfg.CommitInterval,
	})
	return newConsumer(reader, cfg, handler, log), nil
}

// NewConsumerWithReader creates a Consumer with an existing reader (for
// testing).
func NewConsumerWithReader(r ReaderInterface, cfg ConsumerConfig, handler Handler, log logging.Logger) *Consumer {
	return newConsumer(r, cfg, handler, log)
}

func newConsumer(r ReaderInterface, cfg ConsumerConfig, handler Handler, log logging.Logger) *Consumer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &Consumer{
		reader:       r,
		handler:      handler,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: backoff,
		logger:       log.Named("consumer"),
	}
}

// Run consumes until ctx is cancelled or the reader is closed.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if stderrors.Is(err, context.Canceled) || stderrors.Is(err, io.EOF) {
				return nil
			}
			return errors.Wrap(err, errors.CodeMessagingError, "failed to fetch message")
		}

		c.process(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if stderrors.Is(err, context.Canceled) {
				return nil
			}
			c.logger.Error("failed to commit message",
				logging.String("topic", msg.Topic),
				logging.Int64("offset", msg.Offset),
				logging.Err(err),
			)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafkago.Message) {
	var env EventEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		c.logger.Error("discarding undecodable message",
			logging.String("topic", msg.Topic),
			logging.Int64("offset", msg.Offset),
			logging.Err(err),
		)
		return
	}

	for attempt := 0; ; attempt++ {
		err := c.handler(ctx, &env)
		if err == nil {
			return
		}
		if attempt >= c.maxRetries {
			c.logger.Error("giving up on message after retries",
				logging.String("event_id", env.EventID),
				logging.String("event_type", env.EventType),
				logging.Int("attempts", attempt+1),
				logging.Err(err),
			)
			return
		}
		c.logger.Warn("handler failed, retrying",
			logging.String("event_id", env.EventID),
			logging.Int("attempt", attempt+1),
			logging.Err(err),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.retryBackoff):
		}
	}
}

// Close shuts the reader down.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// BuildRequestHandler adapts the library service into a Handler for
// TopicLibraryBuildRequested.
func BuildRequestHandler(svc applib.Service, log logging.Logger) Handler {
	if log == nil {
		log = logging.NewNopLogger()
	}
	log = log.Named("build_handler")
	return func(ctx context.Context, env *EventEnvelope) error {
		var payload BuildRequestPayload
		if err := env.DecodePayload(&payload); err != nil {
			// Undecodable payloads are not retryable.
			log.Error("dropping malformed build request",
				logging.String("event_id", env.EventID),
				logging.Err(err),
			)
			return nil
		}

		input := &applib.BuildInput{
			DiseaseID:    payload.DiseaseID,
			Description:  payload.Description,
			Category:     payload.Category,
			Sources:      payload.Sources,
			Confidence:   payload.Confidence,
			Observations: payload.ToObservationSet(),
		}
		if _, err := svc.BuildProfile(ctx, input); err != nil {
			if errors.IsValidation(err) || errors.GetCode(err) == errors.CodeProfileInvalid {
				log.Error("dropping invalid build request",
					logging.String("disease_id", payload.DiseaseID),
					logging.Err(err),
				)
				return nil
			}
			return err
		}

		log.Info("reference profile built from event",
			logging.String("disease_id", payload.DiseaseID),
			logging.String("event_id", env.EventID),
		)
		return nil
	}
}

// ToObservationSet converts the wire observations into the typed set,
// dropping entries for unknown domains.
func (p *BuildRequestPayload) ToObservationSet() clinical.ObservationSet {
	set := make(clinical.ObservationSet, len(p.Observations))
	for rawDomain, recs := range p.Observations {
		domain, err := clinical.ParseDomain(rawDomain)
		if err != nil {
			continue
		}
		obs := make([]clinical.Observation, 0, len(recs))
		for _, rec := range recs {
			obs = append(obs, clinical.Observation{
				Name:       rec.Name,
				Subdomain:  rec.Subdomain,
				Present:    rec.Present,
				Value:      rec.Value,
				Confidence: rec.Confidence,
				Weight:     rec.Weight,
			})
		}
		set[domain] = obs
	}
	return set
}
