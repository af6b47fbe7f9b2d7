// Package sqlite implements a SQLite-based persistence driver using GORM.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fedshare/fedshare-go/internal/store"
)

func init() {
	store.Register("sqlite", NewDriver)
}

// Driver implements the store.Driver interface using SQLite via GORM.
type Driver struct {
	dataDir string
	db      *gorm.DB
}

// NewDriver creates a new SQLite driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for sqlite driver")
	}

	return &Driver{
		dataDir: cfg.DataDir,
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "sqlite"
}

// Init initializes the SQLite database and runs AutoMigrate.
func (d *Driver) Init(ctx context.Context) error {
	if err := os.MkdirAll(d.dataDir, 0o750); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	dbPath := filepath.Join(d.dataDir, "fedshare.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	d.db = db

	// AutoMigrate creates/updates tables based on model structs
	if err := db.AutoMigrate(
		&store.Share{},
		&store.ReshareMapping{},
		&store.RetryTask{},
		&store.ExternalMount{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (d *Driver) Close() error {
	if d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ShareStore implementation

// CreateShare persists a new share. The unique index on (resource,
// recipient) backstops the caller's duplicate check under concurrency.
func (d *Driver) CreateShare(ctx context.Context, share *store.Share) error {
	result := d.db.WithContext(ctx).Create(share)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return store.ErrAlreadyExists
		}
		return result.Error
	}
	return nil
}

// GetShare retrieves a share by id.
func (d *Driver) GetShare(ctx context.Context, id string) (*store.Share, error) {
	var share store.Share
	result := d.db.WithContext(ctx).First(&share, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, result.Error
	}
	return &share, nil
}

// GetShareByToken retrieves a share by its token.
func (d *Driver) GetShareByToken(ctx context.Context, token string) (*store.Share, error) {
	var share store.Share
	result := d.db.WithContext(ctx).First(&share, "token = ?", token)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, result.Error
	}
	return &share, nil
}

// FindShare retrieves a share by resource and recipient.
func (d *Driver) FindShare(ctx context.Context, resourceID int64, recipient string) (*store.Share, error) {
	var share store.Share
	result := d.db.WithContext(ctx).First(&share, "resource_id = ? AND recipient = ?", resourceID, recipient)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, result.Error
	}
	return &share, nil
}

// ListShares returns shares matching the filter.
func (d *Driver) ListShares(ctx context.Context, filter store.ShareFilter) ([]*store.Share, error) {
	query := d.db.WithContext(ctx)
	if filter.ResourceID != 0 {
		query = query.Where("resource_id = ?", filter.ResourceID)
	}
	if filter.Name != "" {
		query = query.Where("name = ?", filter.Name)
	}
	if filter.Owner != "" {
		query = query.Where("owner = ?", filter.Owner)
	}
	if filter.Initiator != "" {
		query = query.Where("initiator = ?", filter.Initiator)
	}
	if filter.Recipient != "" {
		query = query.Where("recipient = ?", filter.Recipient)
	}
	if filter.State != "" {
		query = query.Where("state = ?", filter.State)
	}
	if filter.AuthoredBy != "" {
		if filter.IncludeReshares {
			query = query.Where("initiator = ? OR owner = ?", filter.AuthoredBy, filter.AuthoredBy)
		} else {
			query = query.Where("initiator = ? OR (initiator = '' AND owner = ?)", filter.AuthoredBy, filter.AuthoredBy)
		}
	}

	query = query.Order("created_at, id")
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var shares []*store.Share
	result := query.Find(&shares)
	if result.Error != nil {
		return nil, result.Error
	}
	return shares, nil
}

// UpdateShare updates an existing share.
func (d *Driver) UpdateShare(ctx context.Context, share *store.Share) error {
	result := d.db.WithContext(ctx).Save(share)
	return result.Error
}

// DeleteShare deletes a share.
func (d *Driver) DeleteShare(ctx context.Context, id string) error {
	result := d.db.WithContext(ctx).Delete(&store.Share{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteSharesByOwner deletes all shares owned by the given principal.
func (d *Driver) DeleteSharesByOwner(ctx context.Context, owner string) (int64, error) {
	result := d.db.WithContext(ctx).Delete(&store.Share{}, "owner = ?", owner)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ReshareStore implementation

// SetRemoteID records the origin server's id for a re-share.
func (d *Driver) SetRemoteID(ctx context.Context, shareID, remoteID string) error {
	mapping := store.ReshareMapping{ShareID: shareID, RemoteID: remoteID}
	result := d.db.WithContext(ctx).Save(&mapping)
	return result.Error
}

// GetRemoteID returns the origin server's id for a re-share.
func (d *Driver) GetRemoteID(ctx context.Context, shareID string) (string, error) {
	var mapping store.ReshareMapping
	result := d.db.WithContext(ctx).First(&mapping, "share_id = ?", shareID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", store.ErrNotFound
		}
		return "", result.Error
	}
	return mapping.RemoteID, nil
}

// DeleteRemoteID removes the mapping for a share.
func (d *Driver) DeleteRemoteID(ctx context.Context, shareID string) error {
	result := d.db.WithContext(ctx).Delete(&store.ReshareMapping{}, "share_id = ?", shareID)
	return result.Error
}

// RetryStore implementation

// EnqueueRetry queues a failed notification for redelivery.
func (d *Driver) EnqueueRetry(ctx context.Context, task *store.RetryTask) error {
	result := d.db.WithContext(ctx).Create(task)
	return result.Error
}

// DueRetries returns tasks whose next attempt time has passed.
func (d *Driver) DueRetries(ctx context.Context, now int64) ([]*store.RetryTask, error) {
	var tasks []*store.RetryTask
	result := d.db.WithContext(ctx).Where("next_attempt_at <= ?", now).Find(&tasks)
	if result.Error != nil {
		return nil, result.Error
	}
	return tasks, nil
}

// RescheduleRetry updates a task's attempt count and next attempt time.
func (d *Driver) RescheduleRetry(ctx context.Context, task *store.RetryTask) error {
	result := d.db.WithContext(ctx).Save(task)
	return result.Error
}

// DeleteRetry removes a task from the queue.
func (d *Driver) DeleteRetry(ctx context.Context, id string) error {
	result := d.db.WithContext(ctx).Delete(&store.RetryTask{}, "id = ?", id)
	return result.Error
}

// MountStore implementation

// CreateMount records a share received from a remote server.
func (d *Driver) CreateMount(ctx context.Context, mount *store.ExternalMount) error {
	result := d.db.WithContext(ctx).Create(mount)
	return result.Error
}

// GetMountByResource retrieves the mount backing a local resource id.
func (d *Driver) GetMountByResource(ctx context.Context, resourceID int64) (*store.ExternalMount, error) {
	var mount store.ExternalMount
	result := d.db.WithContext(ctx).First(&mount, "resource_id = ?", resourceID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, result.Error
	}
	return &mount, nil
}

// FindMount matches a mount by the sender-scoped id and token.
func (d *Driver) FindMount(ctx context.Context, remoteID, token string) (*store.ExternalMount, error) {
	var mount store.ExternalMount
	result := d.db.WithContext(ctx).First(&mount, "remote_id = ? AND token = ?", remoteID, token)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, result.Error
	}
	return &mount, nil
}

// ListMounts returns mounts for a local user.
func (d *Driver) ListMounts(ctx context.Context, shareWith string) ([]*store.ExternalMount, error) {
	query := d.db.WithContext(ctx)
	if shareWith != "" {
		query = query.Where("share_with = ?", shareWith)
	}

	var mounts []*store.ExternalMount
	result := query.Find(&mounts)
	if result.Error != nil {
		return nil, result.Error
	}
	return mounts, nil
}

// UpdateMount updates an existing mount.
func (d *Driver) UpdateMount(ctx context.Context, mount *store.ExternalMount) error {
	result := d.db.WithContext(ctx).Save(mount)
	return result.Error
}

// DeleteMount removes a mount.
func (d *Driver) DeleteMount(ctx context.Context, id string) error {
	result := d.db.WithContext(ctx).Delete(&store.ExternalMount{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
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
