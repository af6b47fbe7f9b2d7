// Package provider implements the federated share state machine on the
// sharing server: creation with re-share negotiation, permission updates,
// deletion and the accept/decline transitions driven by remote servers.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fedshare/fedshare-go/internal/federation/address"
	"github.com/fedshare/fedshare-go/internal/federation/events"
	"github.com/fedshare/fedshare-go/internal/federation/notify"
	"github.com/fedshare/fedshare-go/internal/federation/token"
	"github.com/fedshare/fedshare-go/internal/platform/logutil"
	"github.com/fedshare/fedshare-go/internal/store"
)

// Permission bits.
const (
	PermissionRead   = 1
	PermissionUpdate = 2
	PermissionCreate = 4
	PermissionDelete = 8
	PermissionShare  = 16
)

var (
	ErrSelfShare        = errors.New("not allowed to share with the resource owner")
	ErrAlreadyShared    = errors.New("resource is already shared with this recipient")
	ErrShareNotFound    = errors.New("share not found")
	ErrOutgoingDisabled = errors.New("outgoing federated sharing is disabled")
	ErrInvalidRecipient = errors.New("invalid recipient id")
)

// RemoteUnreachableError reports that the recipient's server could not be
// reached to announce a share, so the share was rolled back.
type RemoteUnreachableError struct {
	Remote string
}

func (e *RemoteUnreachableError) Error() string {
	return fmt.Sprintf("sharing failed, server %s is currently unreachable", e.Remote)
}

// Notifier is the outbound messaging surface the provider drives.
type Notifier interface {
	SendShare(ctx context.Context, info notify.ShareInfo) error
	RequestReshare(ctx context.Context, remote, remoteShareID, token, shareWith string, permissions int) (string, string, error)
	SendAccept(ctx context.Context, remote, remoteShareID, token string)
	SendDecline(ctx context.Context, remote, remoteShareID, token string)
	SendUnshare(ctx context.Context, remote, remoteShareID, token string)
	SendRevoke(ctx context.Context, remote, remoteShareID, token string)
	SendPermissionChange(ctx context.Context, remote, remoteShareID, token string, permissions int)
}

// Options collects the provider's dependencies.
type Options struct {
	Shares   store.ShareStore
	Reshares store.ReshareStore
	Mounts   store.MountStore
	Notifier Notifier
	Resolver *address.Resolver
	Tokens   *token.Generator
	Events   events.Publisher
	Logger   *slog.Logger

	OutgoingEnabled bool
	IncomingEnabled bool
}

// Provider is the federated share engine.
type Provider struct {
	shares   store.ShareStore
	reshares store.ReshareStore
	mounts   store.MountStore
	notifier Notifier
	resolver *address.Resolver
	tokens   *token.Generator
	events   events.Publisher
	logger   *slog.Logger

	outgoingEnabled bool
	incomingEnabled bool
}

// New creates a provider.
func New(opts Options) *Provider {
	ev := opts.Events
	if ev == nil {
		ev = events.NoopPublisher{}
	}
	return &Provider{
		shares:          opts.Shares,
		reshares:        opts.Reshares,
		mounts:          opts.Mounts,
		notifier:        opts.Notifier,
		resolver:        opts.Resolver,
		tokens:          opts.Tokens,
		events:          ev,
		logger:          logutil.OrNoop(opts.Logger),
		outgoingEnabled: opts.OutgoingEnabled,
		incomingEnabled: opts.IncomingEnabled,
	}
}

// IsOutgoingEnabled reports whether this server sends federated shares.
func (p *Provider) IsOutgoingEnabled() bool { return p.outgoingEnabled }

// IsIncomingEnabled reports whether this server accepts federated shares.
func (p *Provider) IsIncomingEnabled() bool { return p.incomingEnabled }

// CreateRequest describes a share to create.
type CreateRequest struct {
	ResourceID   int64
	ResourceType string // "file" or "folder"; empty means file
	Name         string
	Owner        string
	Initiator    string
	Recipient    string
	Permissions  int
}

// Create establishes a federated share. For resources mounted from
// another server it first asks that server to register the re-share; when
// the origin cannot negotiate, the share is rooted locally instead. The
// recipient's server is notified before the call returns; if it cannot be
// reached the share is rolled back and a RemoteUnreachableError returned.
func (p *Provider) Create(ctx context.Context, req CreateRequest) (*store.Share, error) {
	if !p.outgoingEnabled {
		return nil, ErrOutgoingDisabled
	}

	recipient, err := address.ParseID(req.Recipient)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
	}
	canonical := recipient.String()

	if p.resolver.SamePrincipal(canonical, req.Owner) || p.resolver.SamePrincipal(canonical, req.Initiator) {
		return nil, ErrSelfShare
	}

	if _, err := p.shares.FindShare(ctx, req.ResourceID, canonical); err == nil {
		return nil, ErrAlreadyShared
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	// A resource mounted from another server is re-shared through its
	// origin, so the recipient talks to the owner directly.
	if mount, err := p.mounts.GetMountByResource(ctx, req.ResourceID); err == nil {
		share, err := p.createReshare(ctx, req, canonical, mount)
		if err == nil {
			return share, nil
		}
		if !errors.Is(err, notify.ErrProtocolIncompatible) {
			return nil, err
		}
		p.logger.Info("origin cannot negotiate re-share, rooting share locally",
			"remote", mount.Remote, "resource_id", req.ResourceID)
	}

	return p.createLocal(ctx, req, recipient)
}

// createReshare registers the share at the resource's origin server. The
// origin announces the share to the recipient itself; we only keep the
// row and the id mapping.
func (p *Provider) createReshare(ctx context.Context, req CreateRequest, canonical string, mount *store.ExternalMount) (*store.Share, error) {
	now := time.Now().Unix()
	share := &store.Share{
		ID:           uuid.NewString(),
		ResourceID:   req.ResourceID,
		ResourceType: resourceType(req),
		Name:         req.Name,
		Owner:        mount.Owner,
		Initiator:    req.Initiator,
		Recipient:    canonical,
		// Provisional value, replaced by the origin's token. The row is
		// created first so the origin's id has somewhere to land.
		Token:        "tmp-" + uuid.NewString(),
		Permissions:  req.Permissions,
		State:        store.StatePending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.shares.CreateShare(ctx, share); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, ErrAlreadyShared
		}
		return nil, err
	}

	newToken, remoteID, err := p.notifier.RequestReshare(ctx, mount.Remote, mount.RemoteID, mount.Token, canonical, req.Permissions)
	if err != nil {
		if delErr := p.shares.DeleteShare(ctx, share.ID); delErr != nil {
			p.logger.Error("cannot roll back provisional re-share", "share_id", share.ID, "error", delErr)
		}
		return nil, err
	}

	share.Token = newToken
	share.UpdatedAt = time.Now().Unix()
	if err := p.shares.UpdateShare(ctx, share); err != nil {
		return nil, err
	}
	if err := p.reshares.SetRemoteID(ctx, share.ID, remoteID); err != nil {
		return nil, err
	}

	p.events.Publish(ctx, events.Event{Kind: events.ShareAdded, ShareID: share.ID, Owner: share.Owner, With: canonical})
	return share, nil
}

// createLocal roots the share at this server and announces it to the
// recipient. An unreachable recipient rolls the share back.
func (p *Provider) createLocal(ctx context.Context, req CreateRequest, recipient address.FederatedID) (*store.Share, error) {
	now := time.Now().Unix()
	share := &store.Share{
		ID:           uuid.NewString(),
		ResourceID:   req.ResourceID,
		ResourceType: resourceType(req),
		Name:         req.Name,
		Owner:        req.Owner,
		Initiator:    req.Initiator,
		Recipient:    recipient.String(),
		Token:        p.tokens.Generate(),
		Permissions:  req.Permissions,
		State:        store.StatePending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.shares.CreateShare(ctx, share); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, ErrAlreadyShared
		}
		return nil, err
	}

	ownerUser, _ := address.SplitAny(share.Owner)
	initiatorUser, _ := address.SplitAny(share.Initiator)
	info := notify.ShareInfo{
		Remote:              recipient.Host,
		Token:               share.Token,
		Name:                share.Name,
		ResourceType:        share.ResourceType,
		RemoteID:            share.ID,
		Owner:               ownerUser,
		OwnerFederatedID:    p.federatedID(share.Owner),
		SharedBy:            initiatorUser,
		SharedByFederatedID: p.federatedID(share.Initiator),
		ShareWith:           recipient.User,
	}
	if err := p.notifier.SendShare(ctx, info); err != nil {
		if delErr := p.shares.DeleteShare(ctx, share.ID); delErr != nil {
			p.logger.Error("cannot roll back unannounced share", "share_id", share.ID, "error", delErr)
		}
		return nil, &RemoteUnreachableError{Remote: recipient.Host}
	}

	p.events.Publish(ctx, events.Event{Kind: events.ShareAdded, ShareID: share.ID, Owner: share.Owner, With: share.Recipient})
	return share, nil
}

func resourceType(req CreateRequest) string {
	if req.ResourceType == "" {
		return "file"
	}
	return req.ResourceType
}

// federatedID qualifies a bare local user name with this server's host.
func (p *Provider) federatedID(principal string) string {
	if _, host := address.SplitAny(principal); host != "" {
		return principal
	}
	return principal + "@" + p.resolver.LocalHost()
}
