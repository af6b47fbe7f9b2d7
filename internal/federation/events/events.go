// Package events publishes share lifecycle events to whatever the host
// application wires in. The engine only emits; consumers subscribe by
// providing a Publisher.
package events

import (
	"context"
	"log/slog"
)

// Event kinds.
const (
	ShareAdded    = "federated_share_added"
	ShareAccepted = "federated_share_accepted"
	ShareDeclined = "federated_share_declined"
	ShareRemoved  = "federated_share_removed"
)

// Event describes one share lifecycle transition.
type Event struct {
	Kind    string
	ShareID string
	Owner   string
	With    string
}

// Publisher receives share lifecycle events. Implementations must not
// block; the provider calls them inline.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// NoopPublisher discards all events.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, ev Event) {}

// LogPublisher writes events to a structured logger.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(ctx context.Context, ev Event) {
	p.Logger.InfoContext(ctx, "share event",
		"kind", ev.Kind,
		"share_id", ev.ShareID,
		"owner", ev.Owner,
		"with", ev.With)
}
