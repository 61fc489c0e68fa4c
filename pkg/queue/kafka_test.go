package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}

	err := p.Publish(context.Background(), Event{
		Type:    EventLikeCreated,
		ActorID: 42,
		Data:    LikeEventData{UserID: 42, MessageID: 7},
	})
	require.NoError(t, err)
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "42", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "like_created", string(msg.Headers[0].Value))

	var decoded struct {
		Type    string        `json:"type"`
		ActorID uint          `json:"actor_id"`
		Data    LikeEventData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "like_created", decoded.Type)
	assert.Equal(t, uint(7), decoded.Data.MessageID)
	assert.False(t, msg.Time.IsZero())

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := &KafkaPublisher{writer: w}

	err := p.Publish(context.Background(), Event{Type: EventUserCreated, ActorID: 1})
	assert.ErrorContains(t, err, "failed to publish user_created event")
	assert.ErrorContains(t, err, "broker down")
}

func TestMemoryPublisher(t *testing.T) {
	p := NewMemoryPublisher()
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, Event{Type: EventFollowCreated}))
	require.NoError(t, p.Publish(ctx, Event{Type: EventFollowDeleted}))

	assert.Equal(t, []EventType{EventFollowCreated, EventFollowDeleted}, p.Types())
	assert.Len(t, p.Events(), 2)
}
