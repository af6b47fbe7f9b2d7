// Package inbound handles federation requests arriving from other
// servers, on both the legacy OCS endpoints and the modern push
// endpoints. Both wires converge on the same core operations.
package inbound

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/fedshare/fedshare-go/internal/federation/address"
	"github.com/fedshare/fedshare-go/internal/federation/provider"
	"github.com/fedshare/fedshare-go/internal/platform/logutil"
	"github.com/fedshare/fedshare-go/internal/store"
)

// Errors the transport layers translate to status codes. errNotFound on
// accept/decline/unshare is answered success-shaped so probes cannot map
// which share ids exist.
var (
	errNotFound    = errors.New("share not found")
	errForbidden   = errors.New("token mismatch")
	errBadRequest  = errors.New("bad request")
	errUnavailable = errors.New("incoming federated sharing is disabled")
)

// UserDirectory answers whether a local account exists.
type UserDirectory interface {
	UserExists(ctx context.Context, user string) bool
}

// AllUsers accepts any non-empty user id. Used when no user list is
// configured and account validation happens upstream.
type AllUsers struct{}

func (AllUsers) UserExists(ctx context.Context, user string) bool { return user != "" }

// StaticUsers is a UserDirectory backed by a fixed list, fed from
// configuration.
type StaticUsers []string

func (s StaticUsers) UserExists(ctx context.Context, user string) bool {
	for _, u := range s {
		if u == user {
			return true
		}
	}
	return false
}

// Handler processes inbound federation requests.
type Handler struct {
	provider *provider.Provider
	shares   store.ShareStore
	reshares store.ReshareStore
	mounts   store.MountStore
	users    UserDirectory
	resolver *address.Resolver
	logger   *slog.Logger
}

// NewHandler creates an inbound handler.
func NewHandler(p *provider.Provider, shares store.ShareStore, reshares store.ReshareStore, mounts store.MountStore, users UserDirectory, resolver *address.Resolver, logger *slog.Logger) *Handler {
	return &Handler{
		provider: p,
		shares:   shares,
		reshares: reshares,
		mounts:   mounts,
		users:    users,
		resolver: resolver,
		logger:   logutil.OrNoop(logger),
	}
}

// inboundShare is a transport-independent inbound share creation notice.
type inboundShare struct {
	Remote    string
	Token     string
	Name      string
	Owner     string
	SharedBy  string
	ShareWith string
	RemoteID  string
}

// validName rejects names an inbound share must never carry. Names are
// paths relative to the recipient's mount root.
func validName(name string) bool {
	if name == "" || name == "/" {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}

// newResourceID draws an opaque local resource id for a fresh mount.
func newResourceID() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic("inbound: entropy source failed: " + err.Error())
	}
	n := int64(binary.BigEndian.Uint64(buf[:]) >> 1)
	if n == 0 {
		n = 1
	}
	return n
}

// createShare records an inbound share as an external mount for the
// local recipient.
func (h *Handler) createShare(ctx context.Context, in inboundShare) (*store.ExternalMount, error) {
	if !h.provider.IsIncomingEnabled() {
		return nil, errUnavailable
	}

	if in.Remote == "" || in.Token == "" || in.Name == "" || in.Owner == "" || in.RemoteID == "" || in.ShareWith == "" {
		return nil, errBadRequest
	}
	if !validName(in.Name) {
		return nil, errBadRequest
	}

	// shareWith may arrive fully qualified; only the local part names the
	// account.
	localUser, host := address.SplitAny(in.ShareWith)
	if host != "" && !h.resolver.IsLocal(host) {
		return nil, errBadRequest
	}
	if !h.users.UserExists(ctx, localUser) {
		return nil, errBadRequest
	}

	owner := in.Owner
	if _, ownerHost := address.SplitAny(owner); ownerHost == "" {
		owner = owner + "@" + address.CleanHost(in.Remote)
	}

	// An absent sharedBy means the owner shared directly; a bare one is
	// qualified like the owner so the re-share chain stays traceable.
	sharedBy := in.SharedBy
	if sharedBy == "" {
		sharedBy = owner
	} else if _, host := address.SplitAny(sharedBy); host == "" {
		sharedBy = sharedBy + "@" + address.CleanHost(in.Remote)
	}

	mount := &store.ExternalMount{
		ID:         uuid.NewString(),
		RemoteID:   in.RemoteID,
		Remote:     address.CleanHost(in.Remote),
		Token:      in.Token,
		Name:       in.Name,
		Owner:      owner,
		SharedBy:   sharedBy,
		ShareWith:  localUser,
		ResourceID: newResourceID(),
		State:      store.StatePending,
	}
	if err := h.mounts.CreateMount(ctx, mount); err != nil {
		return nil, err
	}

	h.logger.Info("inbound share recorded",
		"remote", mount.Remote, "remote_id", mount.RemoteID, "share_with", localUser)
	return mount, nil
}

// verifyShare loads the share a remote server is talking about and checks
// its token. The two failure modes stay distinct: unknown ids look
// success-shaped to the caller, wrong tokens are refused.
func (h *Handler) verifyShare(ctx context.Context, shareID, token string) (*store.Share, error) {
	if token == "" {
		return nil, errForbidden
	}
	share, err := h.shares.GetShare(ctx, shareID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errNotFound
		}
		return nil, err
	}
	if share.Token != token {
		return nil, errForbidden
	}
	return share, nil
}

// acceptShare handles the recipient's acceptance of a share we announced.
func (h *Handler) acceptShare(ctx context.Context, shareID, token string) error {
	share, err := h.verifyShare(ctx, shareID, token)
	if err != nil {
		return err
	}
	return h.provider.Accept(ctx, share.ID)
}

// declineShare handles the recipient's decline.
func (h *Handler) declineShare(ctx context.Context, shareID, token string) error {
	share, err := h.verifyShare(ctx, shareID, token)
	if err != nil {
		return err
	}
	return h.provider.Decline(ctx, share.ID)
}

// unshare handles the sender withdrawing a share we received. The mount
// is matched by the sender's id and token together.
func (h *Handler) unshare(ctx context.Context, remoteShareID, token string) error {
	mount, err := h.mounts.FindMount(ctx, remoteShareID, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errNotFound
		}
		return err
	}

	if err := h.mounts.DeleteMount(ctx, mount.ID); err != nil {
		return err
	}
	h.logger.Info("inbound unshare removed mount",
		"remote", mount.Remote, "remote_id", mount.RemoteID, "share_with", mount.ShareWith)
	return nil
}

// revoke undoes a re-share we registered on behalf of another server.
// Only the local row goes away; no notification is sent back.
func (h *Handler) revoke(ctx context.Context, shareID, token string) error {
	share, err := h.verifyShare(ctx, shareID, token)
	if err != nil {
		return err
	}

	if err := h.shares.DeleteShare(ctx, share.ID); err != nil {
		return err
	}
	_ = h.reshares.DeleteRemoteID(ctx, share.ID)
	return nil
}

// updatePermissions stores new permissions pushed from the other end of
// the chain. No outward propagation; the change already travelled.
func (h *Handler) updatePermissions(ctx context.Context, shareID, token string, permissions int) error {
	if permissions < 0 {
		return errBadRequest
	}
	share, err := h.verifyShare(ctx, shareID, token)
	if err != nil {
		return err
	}

	share.Permissions = permissions
	return h.shares.UpdateShare(ctx, share)
}

// reshare registers a re-share on behalf of the share's recipient. The
// derived share is announced to the new recipient from here, since this
// server owns the resource.
func (h *Handler) reshare(ctx context.Context, shareID, token, shareWith string, permissions int) (*store.Share, error) {
	share, err := h.verifyShare(ctx, shareID, token)
	if err != nil {
		return nil, err
	}

	// The original grant must carry the share right, and the derived
	// share can never widen the granted permissions. A recipient asking
	// only for bits it already holds is still refused without the share
	// right.
	if share.Permissions&provider.PermissionShare == 0 {
		return nil, errBadRequest
	}
	if permissions < 0 || permissions&^share.Permissions != 0 {
		return nil, errBadRequest
	}

	derived, err := h.provider.Create(ctx, provider.CreateRequest{
		ResourceID:   share.ResourceID,
		ResourceType: share.ResourceType,
		Name:         share.Name,
		Owner:        share.Owner,
		Initiator:    share.Recipient,
		Recipient:    shareWith,
		Permissions:  permissions,
	})
	if err != nil {
		switch {
		case errors.Is(err, provider.ErrSelfShare),
			errors.Is(err, provider.ErrAlreadyShared),
			errors.Is(err, provider.ErrInvalidRecipient):
			return nil, errBadRequest
		}
		return nil, err
	}
	return derived, nil
}
