package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event types, kept compatible with the dashboard's websocket listeners.
const (
	TypeStockUpdate = "stock_update"
	TypeOrderUpdate = "order_update"
	TypeCatalog     = "catalog_update"
	TypeUserStatus  = "user_status_update"
)

// Actor is who caused the change.
type Actor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Event is one committed change, serialised as JSON for every sink.
type Event struct {
	Type       string                 `json:"type"`
	Action     string                 `json:"action"`
	Key        string                 `json:"key,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	User       *Actor                 `json:"user,omitempty"`
	Message    string                 `json:"message,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// Publisher delivers events after the transaction that produced them commits.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// Nop drops everything.
type Nop struct{}

func (Nop) Publish(context.Context, ...Event) error { return nil }

// Multi fans out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, evs ...Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, evs...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, evs ...Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evs...)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Actions returns the recorded actions in publish order.
func (r *Recorder) Actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Action
	}
	return out
}

// Notify publishes and logs failures; the change is already committed, so a
// lost notification must never fail the caller.
func Notify(ctx context.Context, p Publisher, log *zap.Logger, evs ...Event) {
	if p == nil || len(evs) == 0 {
		return
	}
	now := time.Now().UTC()
	for i := range evs {
		if evs[i].OccurredAt.IsZero() {
			evs[i].OccurredAt = now
		}
	}
	if err := p.Publish(ctx, evs...); err != nil {
		log.Warn("event publish failed", zap.Int("count", len(evs)), zap.Error(err))
	}
}
