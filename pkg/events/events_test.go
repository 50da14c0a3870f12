package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestKafkaPublisherPublishesEnvelope(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	messages, err := pubSub.Subscribe(ctx, "grading.recalculated")
	require.NoError(t, err)

	publisher := newKafkaPublisher(pubSub, "grading.recalculated", zap.NewNop())
	event, err := NewEvent(EventClassRecalculated, map[string]string{"class_id": "class-1"})
	require.NoError(t, err)
	event.RequestID = "req-1"
	require.NoError(t, publisher.Publish(ctx, event))

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, event.ID, msg.UUID)
		assert.Equal(t, string(EventClassRecalculated), msg.Metadata.Get("event_type"))
		assert.Equal(t, "req-1", msg.Metadata.Get("request_id"))

		var decoded Event
		require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
		assert.Equal(t, eventSource, decoded.Source)
		assert.JSONEq(t, `{"class_id":"class-1"}`, string(decoded.Payload))
	case <-ctx.Done():
		t.Fatal("event not delivered")
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(string, ...*message.Message) error { return errors.New("broker down") }
func (failingPublisher) Close() error                             { return nil }

func TestKafkaPublisherLogsFailures(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	publisher := newKafkaPublisher(failingPublisher{}, "topic", zap.New(core))

	event, err := NewEvent(EventSubjectRecalculated, map[string]string{"subject_id": "math"})
	require.NoError(t, err)
	err = publisher.Publish(context.Background(), event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Equal(t, 1, logs.FilterMessage("publish grading event failed").Len())
}

func TestZapAdapterFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	adapter := NewZapAdapter(zap.New(core)).With(watermill.LogFields{"topic": "grades"})

	adapter.Info("published", watermill.LogFields{"count": 2})
	adapter.Trace("trace line", nil)
	adapter.Error("failed", errors.New("boom"), nil)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "grades", entries[0].ContextMap()["topic"])
	assert.EqualValues(t, 2, entries[0].ContextMap()["count"])
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[2].ContextMap()["error"])
}

func TestNopPublisher(t *testing.T) {
	var publisher Publisher = NopPublisher{}
	assert.NoError(t, publisher.Publish(context.Background(), Event{}))
	assert.NoError(t, publisher.Close())
}
