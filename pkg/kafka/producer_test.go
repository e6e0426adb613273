package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func newTestProducer(w messageWriter) *Producer {
	return &Producer{
		writer: w,
		logger: ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}),
		topic:  "directory-events",
	}
}

func TestParseConfig(t *testing.T) {
	cfg := ParseConfig(" broker-1:9092, ,broker-2:9092", "directory-events")
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Brokers)
	assert.True(t, cfg.Enabled())

	assert.False(t, ParseConfig("", "directory-events").Enabled())
}

func TestPublish(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(w)

	err := p.Publish(context.Background(), &DirectoryEvent{
		Type:       EventEntityImported,
		ExternalID: "abc123",
		Slug:       "bright-smile",
	})
	require.NoError(t, err)
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "abc123", string(msg.Key))
	assert.Equal(t, "type", msg.Headers[0].Key)
	assert.Equal(t, EventEntityImported, string(msg.Headers[0].Value))

	var decoded DirectoryEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "bright-smile", decoded.Slug)
	assert.False(t, decoded.Timestamp.IsZero())
}

func TestPublishBatchEventKeyedByBatch(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(w)

	require.NoError(t, p.Publish(context.Background(), &DirectoryEvent{Type: EventBatchCompleted, BatchID: "b-1"}))
	assert.Equal(t, "b-1", string(w.messages[0].Key))
}

func TestPublishError(t *testing.T) {
	p := newTestProducer(&fakeWriter{err: errors.New("broker down")})

	assert.Error(t, p.Publish(context.Background(), &DirectoryEvent{Type: EventEntityImported}))
	assert.Error(t, p.Publish(context.Background(), nil))
}

func TestStopClosesWriter(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, newTestProducer(w).Stop(context.Background()))
	assert.True(t, w.closed)
}
