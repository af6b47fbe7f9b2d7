// Package store provides persistence primitives and driver abstractions.
package store

import (
	"context"
	"errors"
)

// Common errors for store operations.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrClosed        = errors.New("store closed")
)

// Driver defines the interface for a persistence backend.
// Implementations must be safe for concurrent use.
type Driver interface {
	// Init initializes the driver (create tables, load data, etc).
	Init(ctx context.Context) error

	// Close releases resources held by the driver.
	Close() error

	// Name returns the driver name (sqlite, memory).
	Name() string
}

// ShareFilter narrows ListShares. Zero fields are ignored. Results are
// ordered by creation time, then id, so paging is stable.
type ShareFilter struct {
	ResourceID int64
	Name       string
	Owner      string
	Initiator  string
	Recipient  string
	State      string

	// AuthoredBy matches rows the principal created: initiator rows
	// always, owner rows too when IncludeReshares is set. Rows with an
	// empty initiator predate the initiator column and count as authored
	// by their owner either way.
	AuthoredBy      string
	IncludeReshares bool

	// Limit and Offset page the result; Limit <= 0 returns everything.
	Limit  int
	Offset int
}

// ShareStore defines operations for sender-side share persistence.
type ShareStore interface {
	// CreateShare persists a new share. Returns ErrAlreadyExists when a
	// share row for the same (resource, recipient) pair is present.
	CreateShare(ctx context.Context, share *Share) error
	GetShare(ctx context.Context, id string) (*Share, error)
	GetShareByToken(ctx context.Context, token string) (*Share, error)

	// FindShare looks up a live share by resource and recipient, the pair
	// the duplicate check runs on.
	FindShare(ctx context.Context, resourceID int64, recipient string) (*Share, error)

	ListShares(ctx context.Context, filter ShareFilter) ([]*Share, error)
	UpdateShare(ctx context.Context, share *Share) error
	DeleteShare(ctx context.Context, id string) error

	// DeleteSharesByOwner removes every share owned by the given principal,
	// used when a federated server is untrusted wholesale.
	DeleteSharesByOwner(ctx context.Context, owner string) (int64, error)
}

// ReshareStore tracks the remote id the origin server assigned to a
// re-share negotiated on our behalf.
type ReshareStore interface {
	SetRemoteID(ctx context.Context, shareID, remoteID string) error
	GetRemoteID(ctx context.Context, shareID string) (string, error)
	DeleteRemoteID(ctx context.Context, shareID string) error
}

// RetryStore queues failed update notifications for redelivery.
type RetryStore interface {
	EnqueueRetry(ctx context.Context, task *RetryTask) error

	// DueRetries returns tasks whose next attempt time is at or before now.
	DueRetries(ctx context.Context, now int64) ([]*RetryTask, error)

	RescheduleRetry(ctx context.Context, task *RetryTask) error
	DeleteRetry(ctx context.Context, id string) error
}

// MountStore defines operations for receiver-side external mounts, the
// local record of a share accepted from a remote server.
type MountStore interface {
	CreateMount(ctx context.Context, mount *ExternalMount) error
	GetMountByResource(ctx context.Context, resourceID int64) (*ExternalMount, error)

	// FindMount matches inbound notifications by the sender-scoped id and
	// the share token.
	FindMount(ctx context.Context, remoteID, token string) (*ExternalMount, error)

	ListMounts(ctx context.Context, shareWith string) ([]*ExternalMount, error)
	UpdateMount(ctx context.Context, mount *ExternalMount) error
	DeleteMount(ctx context.Context, id string) error
}
