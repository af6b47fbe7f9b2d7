package provider

import (
	"context"
	"errors"
	"time"

	"github.com/fedshare/fedshare-go/internal/federation/address"
	"github.com/fedshare/fedshare-go/internal/federation/events"
	"github.com/fedshare/fedshare-go/internal/store"
)

// remoteParty identifies the non-local server along the share chain and
// the share id that server knows this share by. Re-share rows point at a
// remote owner and carry the origin's id in the mapping; locally rooted
// rows only ever have a remote initiator.
func (p *Provider) remoteParty(ctx context.Context, share *store.Share) (host, remoteID string, ok bool) {
	if _, ownerHost := address.SplitAny(share.Owner); ownerHost != "" && !p.resolver.IsLocal(ownerHost) {
		id, err := p.reshares.GetRemoteID(ctx, share.ID)
		if err != nil {
			id = share.ID
		}
		return ownerHost, id, true
	}
	if _, initiatorHost := address.SplitAny(share.Initiator); initiatorHost != "" && !p.resolver.IsLocal(initiatorHost) {
		return initiatorHost, share.ID, true
	}
	return "", "", false
}

// Update stores new permissions and pushes them to the other server in
// the chain when the share is a re-share. Permissions are the only
// mutable attribute of an established share besides its state; owner,
// initiator and recipient are fixed at creation.
func (p *Provider) Update(ctx context.Context, shareID string, permissions int) (*store.Share, error) {
	share, err := p.shares.GetShare(ctx, shareID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrShareNotFound
		}
		return nil, err
	}

	share.Permissions = permissions
	share.UpdatedAt = time.Now().Unix()
	if err := p.shares.UpdateShare(ctx, share); err != nil {
		return nil, err
	}

	if !p.resolver.SamePrincipal(share.Owner, share.Initiator) {
		if host, remoteID, ok := p.remoteParty(ctx, share); ok {
			p.notifier.SendPermissionChange(ctx, host, remoteID, share.Token, permissions)
		}
	}
	return share, nil
}

// Delete removes the share locally first, then tells the recipient's
// server and, for re-shares, the other server in the chain. Outward
// notifications ride the retry queue; local removal never waits on them.
func (p *Provider) Delete(ctx context.Context, shareID string) error {
	share, err := p.shares.GetShare(ctx, shareID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrShareNotFound
		}
		return err
	}

	host, chainRemoteID, hasRemoteParty := p.remoteParty(ctx, share)

	if err := p.shares.DeleteShare(ctx, share.ID); err != nil {
		return err
	}
	_ = p.reshares.DeleteRemoteID(ctx, share.ID)

	// The recipient knows the share by the id its announcing server used:
	// ours for locally rooted shares, the origin's for re-shares.
	recipientID := share.ID
	if _, ownerHost := address.SplitAny(share.Owner); ownerHost != "" && !p.resolver.IsLocal(ownerHost) {
		recipientID = chainRemoteID
	}
	if _, recipientHost := address.SplitAny(share.Recipient); recipientHost != "" {
		p.notifier.SendUnshare(ctx, recipientHost, recipientID, share.Token)
	}

	if hasRemoteParty && !p.resolver.SamePrincipal(share.Owner, share.Initiator) {
		p.notifier.SendRevoke(ctx, host, chainRemoteID, share.Token)
	}

	p.events.Publish(ctx, events.Event{Kind: events.ShareRemoved, ShareID: share.ID, Owner: share.Owner, With: share.Recipient})
	return nil
}

// Accept marks the share accepted. Accepting twice is a no-op. When the
// share chain continues past this server, the acceptance is forwarded.
func (p *Provider) Accept(ctx context.Context, shareID string) error {
	share, err := p.shares.GetShare(ctx, shareID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrShareNotFound
		}
		return err
	}

	if share.State != store.StateAccepted {
		share.State = store.StateAccepted
		share.UpdatedAt = time.Now().Unix()
		if err := p.shares.UpdateShare(ctx, share); err != nil {
			return err
		}
	}

	if !p.resolver.SamePrincipal(share.Owner, share.Initiator) {
		if host, remoteID, ok := p.remoteParty(ctx, share); ok {
			p.notifier.SendAccept(ctx, host, remoteID, share.Token)
		}
	}

	p.events.Publish(ctx, events.Event{Kind: events.ShareAccepted, ShareID: share.ID, Owner: share.Owner, With: share.Recipient})
	return nil
}

// Decline removes the share; a declined share has no further life on the
// sharing server. The decline is forwarded like an acceptance.
func (p *Provider) Decline(ctx context.Context, shareID string) error {
	share, err := p.shares.GetShare(ctx, shareID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrShareNotFound
		}
		return err
	}

	host, remoteID, hasRemoteParty := p.remoteParty(ctx, share)

	if err := p.shares.DeleteShare(ctx, share.ID); err != nil {
		return err
	}
	_ = p.reshares.DeleteRemoteID(ctx, share.ID)

	if hasRemoteParty && !p.resolver.SamePrincipal(share.Owner, share.Initiator) {
		p.notifier.SendDecline(ctx, host, remoteID, share.Token)
	}

	p.events.Publish(ctx, events.Event{Kind: events.ShareDeclined, ShareID: share.ID, Owner: share.Owner, With: share.Recipient})
	return nil
}

// GetShareByID returns a share by its id.
func (p *Provider) GetShareByID(ctx context.Context, shareID string) (*store.Share, error) {
	share, err := p.shares.GetShare(ctx, shareID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrShareNotFound
	}
	return share, err
}

// GetShareByToken returns a share by its token.
func (p *Provider) GetShareByToken(ctx context.Context, tok string) (*store.Share, error) {
	share, err := p.shares.GetShareByToken(ctx, tok)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrShareNotFound
	}
	return share, err
}

// GetSharesBy lists the shares a local user created, ordered by creation
// time. resourceID narrows to one resource when non-zero. With
// includeReshares the list also covers edges the user owns but did not
// initiate; without it, only initiator-authored rows (initiator-less
// legacy rows count as authored by their owner). limit <= 0 returns
// everything.
func (p *Provider) GetSharesBy(ctx context.Context, user string, resourceID int64, includeReshares bool, limit, offset int) ([]*store.Share, error) {
	return p.shares.ListShares(ctx, store.ShareFilter{
		ResourceID:      resourceID,
		AuthoredBy:      user,
		IncludeReshares: includeReshares,
		Limit:           limit,
		Offset:          offset,
	})
}

// GetSharesByPath lists every share edge on the resource at the given
// path, regardless of who created it.
func (p *Provider) GetSharesByPath(ctx context.Context, path string) ([]*store.Share, error) {
	return p.shares.ListShares(ctx, store.ShareFilter{Name: path})
}

// GetSharedWith lists the shares addressed to a federated recipient.
func (p *Provider) GetSharedWith(ctx context.Context, recipient string) ([]*store.Share, error) {
	return p.shares.ListShares(ctx, store.ShareFilter{Recipient: recipient})
}

// UserDeleted cleans up after a local account is removed: every share
// the user owns or created is deleted and the recipients' servers
// notified.
func (p *Provider) UserDeleted(ctx context.Context, user string) error {
	shares, err := p.shares.ListShares(ctx, store.ShareFilter{AuthoredBy: user, IncludeReshares: true})
	if err != nil {
		return err
	}
	for _, share := range shares {
		if err := p.Delete(ctx, share.ID); err != nil && !errors.Is(err, ErrShareNotFound) {
			p.logger.Error("cannot delete share of removed user",
				"share_id", share.ID, "user", user, "error", err)
		}
	}
	return nil
}
