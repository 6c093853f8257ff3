package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"frozen-pos/internal/events"
)

type fakeClient struct {
	mu     sync.Mutex
	msgs   [][]byte
	fail   bool
	closed bool
}

func (c *fakeClient) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.msgs = append(c.msgs, data)
	return nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeClient) received() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func TestHubBroadcastsAndDropsBrokenClients(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	good := &fakeClient{}
	bad := &fakeClient{fail: true}
	hub.register <- good
	hub.register <- bad

	require.NoError(t, hub.Publish(ctx, events.Event{Type: events.TypeStockUpdate, Action: "movement_recorded"}))

	require.Eventually(t, func() bool { return good.received() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	var ev events.Event
	good.mu.Lock()
	require.NoError(t, json.Unmarshal(good.msgs[0], &ev))
	good.mu.Unlock()
	assert.Equal(t, "movement_recorded", ev.Action)
}

func TestHubPublishNeverBlocks(t *testing.T) {
	hub := NewHub(zap.NewNop())

	for i := 0; i < broadcastBuffer+10; i++ {
		require.NoError(t, hub.Publish(context.Background(), events.Event{Action: "flood"}))
	}
	assert.Len(t, hub.broadcast, broadcastBuffer)
}

func TestHubClosesClientsOnShutdown(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	c := &fakeClient{}
	hub.register <- c
	cancel()
	<-done

	assert.True(t, c.closed)
	assert.Zero(t, hub.ClientCount())
}

func TestHubStoppedDoesNotBlockClients(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	c := &fakeClient{}
	require.True(t, hub.join(c))
	cancel()
	<-done

	left := make(chan struct{})
	go func() {
		hub.leave(c)
		close(left)
	}()
	select {
	case <-left:
	case <-time.After(time.Second):
		t.Fatal("leave blocked after the hub stopped")
	}

	assert.False(t, hub.join(&fakeClient{}))
}
