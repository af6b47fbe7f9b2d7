// Package memory implements an in-memory persistence driver. It backs unit
// tests and throwaway single-process deployments; nothing survives restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/fedshare/fedshare-go/internal/store"
)

func init() {
	store.Register("memory", NewDriver)
}

// Driver implements the store interfaces with in-process maps.
type Driver struct {
	mu       sync.RWMutex
	closed   bool
	shares   map[string]*store.Share
	reshares map[string]string
	retries  map[string]*store.RetryTask
	mounts   map[string]*store.ExternalMount
}

// NewDriver creates a new memory driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	return New(), nil
}

// New creates an initialized memory driver for direct use in tests.
func New() *Driver {
	return &Driver{
		shares:   make(map[string]*store.Share),
		reshares: make(map[string]string),
		retries:  make(map[string]*store.RetryTask),
		mounts:   make(map[string]*store.ExternalMount),
	}
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "memory"
}

// Init is a no-op; the maps are ready at construction.
func (d *Driver) Init(ctx context.Context) error {
	return nil
}

// Close marks the driver closed.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *Driver) checkOpen() error {
	if d.closed {
		return store.ErrClosed
	}
	return nil
}

// ShareStore implementation

func (d *Driver) CreateShare(ctx context.Context, share *store.Share) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	if _, ok := d.shares[share.ID]; ok {
		return store.ErrAlreadyExists
	}
	for _, s := range d.shares {
		if s.ResourceID == share.ResourceID && s.Recipient == share.Recipient {
			return store.ErrAlreadyExists
		}
	}
	cp := *share
	d.shares[share.ID] = &cp
	return nil
}

func (d *Driver) GetShare(ctx context.Context, id string) (*store.Share, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	share, ok := d.shares[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *share
	return &cp, nil
}

func (d *Driver) GetShareByToken(ctx context.Context, token string) (*store.Share, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	for _, share := range d.shares {
		if share.Token == token {
			cp := *share
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (d *Driver) FindShare(ctx context.Context, resourceID int64, recipient string) (*store.Share, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	for _, share := range d.shares {
		if share.ResourceID == resourceID && share.Recipient == recipient {
			cp := *share
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (d *Driver) ListShares(ctx context.Context, filter store.ShareFilter) ([]*store.Share, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	var out []*store.Share
	for _, share := range d.shares {
		if filter.ResourceID != 0 && share.ResourceID != filter.ResourceID {
			continue
		}
		if filter.Name != "" && share.Name != filter.Name {
			continue
		}
		if filter.Owner != "" && share.Owner != filter.Owner {
			continue
		}
		if filter.Initiator != "" && share.Initiator != filter.Initiator {
			continue
		}
		if filter.Recipient != "" && share.Recipient != filter.Recipient {
			continue
		}
		if filter.State != "" && share.State != filter.State {
			continue
		}
		if filter.AuthoredBy != "" && !authoredBy(share, filter.AuthoredBy, filter.IncludeReshares) {
			continue
		}
		cp := *share
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func authoredBy(share *store.Share, principal string, includeReshares bool) bool {
	if share.Initiator == principal {
		return true
	}
	if share.Owner != principal {
		return false
	}
	return includeReshares || share.Initiator == ""
}

func (d *Driver) UpdateShare(ctx context.Context, share *store.Share) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	cp := *share
	d.shares[share.ID] = &cp
	return nil
}

func (d *Driver) DeleteShare(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	if _, ok := d.shares[id]; !ok {
		return store.ErrNotFound
	}
	delete(d.shares, id)
	return nil
}

func (d *Driver) DeleteSharesByOwner(ctx context.Context, owner string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return 0, err
	}
	var n int64
	for id, share := range d.shares {
		if share.Owner == owner {
			delete(d.shares, id)
			n++
		}
	}
	return n, nil
}

// ReshareStore implementation

func (d *Driver) SetRemoteID(ctx context.Context, shareID, remoteID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	d.reshares[shareID] = remoteID
	return nil
}

func (d *Driver) GetRemoteID(ctx context.Context, shareID string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkOpen(); err != nil {
		return "", err
	}
	remoteID, ok := d.reshares[shareID]
	if !ok {
		return "", store.ErrNotFound
	}
	return remoteID, nil
}

func (d *Driver) DeleteRemoteID(ctx context.Context, shareID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	delete(d.reshares, shareID)
	return nil
}

// RetryStore implementation

func (d *Driver) EnqueueRetry(ctx context.Context, task *store.RetryTask) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	cp := *task
	d.retries[task.ID] = &cp
	return nil
}

func (d *Driver) DueRetries(ctx context.Context, now int64) ([]*store.RetryTask, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	var out []*store.RetryTask
	for _, task := range d.retries {
		if task.NextAttemptAt <= now {
			cp := *task
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (d *Driver) RescheduleRetry(ctx context.Context, task *store.RetryTask) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	cp := *task
	d.retries[task.ID] = &cp
	return nil
}

func (d *Driver) DeleteRetry(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	delete(d.retries, id)
	return nil
}

// MountStore implementation

func (d *Driver) CreateMount(ctx context.Context, mount *store.ExternalMount) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	if _, ok := d.mounts[mount.ID]; ok {
		return store.ErrAlreadyExists
	}
	cp := *mount
	d.mounts[mount.ID] = &cp
	return nil
}

func (d *Driver) GetMountByResource(ctx context.Context, resourceID int64) (*store.ExternalMount, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	for _, mount := range d.mounts {
		if mount.ResourceID == resourceID {
			cp := *mount
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (d *Driver) FindMount(ctx context.Context, remoteID, token string) (*store.ExternalMount, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	for _, mount := range d.mounts {
		if mount.RemoteID == remoteID && mount.Token == token {
			cp := *mount
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (d *Driver) ListMounts(ctx context.Context, shareWith string) ([]*store.ExternalMount, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	var out []*store.ExternalMount
	for _, mount := range d.mounts {
		if shareWith != "" && mount.ShareWith != shareWith {
			continue
		}
		cp := *mount
		out = append(out, &cp)
	}
	return out, nil
}

func (d *Driver) UpdateMount(ctx context.Context, mount *store.ExternalMount) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	cp := *mount
	d.mounts[mount.ID] = &cp
	return nil
}

func (d *Driver) DeleteMount(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	if _, ok := d.mounts[id]; !ok {
		return store.ErrNotFound
	}
	delete(d.mounts, id)
	return nil
}

// Interface checks
var (
	_ store.Driver       = (*Driver)(nil)
	_ store.ShareStore   = (*Driver)(nil)
	_ store.ReshareStore = (*Driver)(nil)
	_ store.RetryStore   = (*Driver)(nil)
	_ store.MountStore   = (*Driver)(nil)
)
