package activity

import (
	"context"
	"time"

	"accountservice/internal/events"
)

// Recorder stores that an account was seen at a given time.
type Recorder interface {
	RecordActivity(ctx context.Context, accountID string, at time.Time) error
}

type LastActiveStore interface {
	TouchLastActive(ctx context.Context, id string, at time.Time) error
}

// StoreRecorder writes last-active straight to the account store.
type StoreRecorder struct {
	Store LastActiveStore
}

func (r StoreRecorder) RecordActivity(ctx context.Context, accountID string, at time.Time) error {
	return r.Store.TouchLastActive(ctx, accountID, at)
}

// EventRecorder publishes a last-active-changed event; the write happens
// when the event comes back through the subscriber.
type EventRecorder struct {
	Publisher events.Publisher
}

func (r EventRecorder) RecordActivity(ctx context.Context, accountID string, at time.Time) error {
	return r.Publisher.Publish(ctx, events.NewLastActiveChanged(accountID, at))
}
