package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Config holds Kafka configuration
type Config struct {
	Brokers []string
	Topic   string
}

// ParseConfig parses a comma-separated broker string
func ParseConfig(brokers string, topic string) Config {
	var brokerList []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokerList = append(brokerList, b)
		}
	}

	return Config{
		Brokers: brokerList,
		Topic:   topic,
	}
}

// Enabled reports whether any broker is configured.
func (c Config) Enabled() bool {
	return len(c.Brokers) > 0 && c.Topic != ""
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes directory events
type Producer struct {
	writer messageWriter
	logger ectologger.Logger
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg Config, logger ectologger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		// Dev brokers may not have the topic yet.
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

func (p *Producer) GetName() string {
	return "kafka"
}

func (p *Producer) DependsOn() []string {
	return nil
}

// Start is a no-op; the writer connects on first publish.
func (p *Producer) Start(ctx context.Context) error {
	return nil
}

func (p *Producer) Stop(ctx context.Context) error {
	return p.Close()
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

const (
	EventEntityImported  = "directory.entity.imported"
	EventEntityRecovered = "directory.entity.recovered"
	EventBatchCompleted  = "directory.batch.completed"
)

// DirectoryEvent is published after each persisted entity and at the end of a batch.
type DirectoryEvent struct {
	Type       string         `json:"type"`
	EntityID   string         `json:"entity_id,omitempty"`
	ExternalID string         `json:"external_id,omitempty"`
	Slug       string         `json:"slug,omitempty"`
	LocalityID string         `json:"locality_id,omitempty"`
	BatchID    string         `json:"batch_id,omitempty"`
	ActorID    string         `json:"actor_id,omitempty"`
	Counts     map[string]int `json:"counts,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`

	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

func (e *DirectoryEvent) key() string {
	if e.ExternalID != "" {
		return e.ExternalID
	}
	return e.BatchID
}

// Publish writes one event to the directory topic.
func (p *Producer) Publish(ctx context.Context, evt *DirectoryEvent) error {
	if evt == nil {
		return fmt.Errorf("directory event is nil")
	}

	ctx, span := tracing.StartSpan(ctx, "Kafka.Publish")
	defer span.End()

	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", p.topic),
		attribute.String("messaging.operation", "publish"),
		attribute.String("event_type", evt.Type),
		attribute.String("external_id", evt.ExternalID),
	)

	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	evt.TraceID = tracing.GetTraceID(ctx)
	evt.SpanID = tracing.GetSpanID(ctx)

	data, err := json.Marshal(evt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal event")
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	headers := []kafka.Header{
		{Key: "type", Value: []byte(evt.Type)},
	}
	for k, v := range tracing.Headers(ctx) {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(evt.key()),
		Value:   data,
		Headers: headers,
	})
	if err != nil {
		metrics.RecordEvent(evt.Type, "failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to publish event")
		p.logger.WithContext(ctx).WithError(err).Errorf("Failed to publish to Kafka topic %s", p.topic)
		return err
	}

	metrics.RecordEvent(evt.Type, "published")
	span.SetStatus(codes.Ok, "event published")
	p.logger.WithContext(ctx).Debugf("Published %s to Kafka: external_id=%s trace=%s", evt.Type, evt.ExternalID, evt.TraceID)
	return nil
}
