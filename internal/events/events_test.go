package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessage(_ context.Context, msg kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msg)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type failing struct{}

func (failing) Publish(context.Context, ...Event) error { return errors.New("down") }

func TestKafkaPublisherWritesOneMessagePerEvent(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w)

	err := p.Publish(context.Background(),
		Event{Type: TypeStockUpdate, Action: "movement_recorded", Key: "product-1", Data: map[string]interface{}{"stock": 7}},
		Event{Type: TypeOrderUpdate, Action: "order_completed", Key: "order-3"},
	)
	require.NoError(t, err)
	require.Len(t, w.msgs, 2)

	assert.Equal(t, "product-1", string(w.msgs[0].Key))
	var decoded Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, "movement_recorded", decoded.Action)
	assert.Equal(t, float64(7), decoded.Data["stock"])
	assert.Equal(t, "order_completed", string(w.msgs[1].Headers[1].Value))
}

func TestKafkaPublisherPropagatesWriteError(t *testing.T) {
	p := NewKafkaPublisher(&fakeWriter{err: errors.New("broker gone")})
	err := p.Publish(context.Background(), Event{Action: "x"})
	assert.ErrorContains(t, err, "broker gone")
}

func TestMultiJoinsErrors(t *testing.T) {
	rec := &Recorder{}
	err := Multi{rec, failing{}}.Publish(context.Background(), Event{Action: "a"})
	assert.ErrorContains(t, err, "down")
	assert.Equal(t, []string{"a"}, rec.Actions())
}

func TestNotifyStampsAndSwallows(t *testing.T) {
	rec := &Recorder{}
	Notify(context.Background(), Multi{rec, failing{}}, zap.NewNop(), Event{Action: "b"})

	got := rec.Events()
	require.Len(t, got, 1)
	assert.False(t, got[0].OccurredAt.IsZero())
}
