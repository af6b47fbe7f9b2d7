// Package testutil provides shared test helpers for store driver tests.
package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fedshare/fedshare-go/internal/store"
)

// TestShare creates a test sender-side share.
func TestShare() *store.Share {
	return &store.Share{
		ID:          "test-share-id",
		ResourceID:  42,
		Name:        "/documents/report.odt",
		Owner:       "alice",
		Initiator:   "alice",
		Recipient:   "bob@remote.example",
		Token:       "Abc123Def456Ghi",
		Permissions: 19,
		State:       store.StatePending,
		CreatedAt:   time.Now().Unix(),
		UpdatedAt:   time.Now().Unix(),
	}
}

// TestMount creates a test receiver-side external mount.
func TestMount() *store.ExternalMount {
	return &store.ExternalMount{
		ID:         "test-mount-id",
		RemoteID:   "77",
		Remote:     "https://origin.example",
		Token:      "Zx9Yw8Vu7Ts6Rq5",
		Name:       "/photos",
		Owner:      "carol@origin.example",
		SharedBy:   "dan@origin.example",
		ShareWith:  "alice",
		ResourceID: 7001,
		State:      store.StateAccepted,
		CreatedAt:  time.Now().Unix(),
		UpdatedAt:  time.Now().Unix(),
	}
}

// TestRetryTask creates a test queued notification.
func TestRetryTask() *store.RetryTask {
	task := &store.RetryTask{
		ID:            "test-retry-id",
		Remote:        "https://remote.example",
		RemoteShareID: "55",
		Token:         "Abc123Def456Ghi",
		Action:        "unshare",
		Attempt:       1,
		NextAttemptAt: time.Now().Unix(),
		CreatedAt:     time.Now().Unix(),
	}
	_ = task.SetData(map[string]string{"permissions": "3"})
	return task
}

// RunDriverTests runs the standard test suite against a driver.
func RunDriverTests(t *testing.T, driverName string, cfg *store.DriverConfig) {
	ctx := context.Background()

	driver, err := store.New(cfg)
	if err != nil {
		t.Fatalf("failed to create %s driver: %v", driverName, err)
	}
	defer driver.Close()

	if err := driver.Init(ctx); err != nil {
		t.Fatalf("failed to init %s driver: %v", driverName, err)
	}

	if driver.Name() != driverName {
		t.Errorf("expected driver name %q, got %q", driverName, driver.Name())
	}

	shares, ok := driver.(store.ShareStore)
	if !ok {
		t.Fatalf("%s driver does not implement ShareStore", driverName)
	}
	reshares, ok := driver.(store.ReshareStore)
	if !ok {
		t.Fatalf("%s driver does not implement ReshareStore", driverName)
	}
	retries, ok := driver.(store.RetryStore)
	if !ok {
		t.Fatalf("%s driver does not implement RetryStore", driverName)
	}
	mounts, ok := driver.(store.MountStore)
	if !ok {
		t.Fatalf("%s driver does not implement MountStore", driverName)
	}

	t.Run("ShareCRUD", func(t *testing.T) {
		testShareCRUD(t, ctx, shares)
	})
	t.Run("ShareDuplicate", func(t *testing.T) {
		testShareDuplicate(t, ctx, shares)
	})
	t.Run("ShareListFilter", func(t *testing.T) {
		testShareListFilter(t, ctx, shares)
	})
	t.Run("ReshareMapping", func(t *testing.T) {
		testReshareMapping(t, ctx, reshares)
	})
	t.Run("RetryQueue", func(t *testing.T) {
		testRetryQueue(t, ctx, retries)
	})
	t.Run("MountCRUD", func(t *testing.T) {
		testMountCRUD(t, ctx, mounts)
	})
}

func testShareCRUD(t *testing.T, ctx context.Context, s store.ShareStore) {
	share := TestShare()

	if err := s.CreateShare(ctx, share); err != nil {
		t.Fatalf("CreateShare: %v", err)
	}

	got, err := s.GetShare(ctx, share.ID)
	if err != nil {
		t.Fatalf("GetShare: %v", err)
	}
	if got.Recipient != share.Recipient || got.Permissions != share.Permissions {
		t.Errorf("GetShare = %+v, want %+v", got, share)
	}

	byToken, err := s.GetShareByToken(ctx, share.Token)
	if err != nil {
		t.Fatalf("GetShareByToken: %v", err)
	}
	if byToken.ID != share.ID {
		t.Errorf("GetShareByToken id = %q, want %q", byToken.ID, share.ID)
	}

	found, err := s.FindShare(ctx, share.ResourceID, share.Recipient)
	if err != nil {
		t.Fatalf("FindShare: %v", err)
	}
	if found.ID != share.ID {
		t.Errorf("FindShare id = %q, want %q", found.ID, share.ID)
	}

	share.State = store.StateAccepted
	share.Permissions = 31
	if err := s.UpdateShare(ctx, share); err != nil {
		t.Fatalf("UpdateShare: %v", err)
	}
	got, err = s.GetShare(ctx, share.ID)
	if err != nil {
		t.Fatalf("GetShare after update: %v", err)
	}
	if got.State != store.StateAccepted || got.Permissions != 31 {
		t.Errorf("updated share = state %q perms %d", got.State, got.Permissions)
	}

	list, err := s.ListShares(ctx, store.ShareFilter{Recipient: share.Recipient})
	if err != nil {
		t.Fatalf("ListShares: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("ListShares returned %d shares, want 1", len(list))
	}

	if err := s.DeleteShare(ctx, share.ID); err != nil {
		t.Fatalf("DeleteShare: %v", err)
	}
	if _, err := s.GetShare(ctx, share.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetShare after delete = %v, want ErrNotFound", err)
	}
	if err := s.DeleteShare(ctx, share.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second DeleteShare = %v, want ErrNotFound", err)
	}
}

func testShareDuplicate(t *testing.T, ctx context.Context, s store.ShareStore) {
	first := TestShare()
	first.ID = "dup-a"
	first.ResourceID = 99
	first.Token = "TokenAAAAAAAAAA"
	if err := s.CreateShare(ctx, first); err != nil {
		t.Fatalf("CreateShare first: %v", err)
	}
	defer s.DeleteShare(ctx, first.ID)

	second := TestShare()
	second.ID = "dup-b"
	second.ResourceID = 99
	second.Token = "TokenBBBBBBBBBB"
	err := s.CreateShare(ctx, second)
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("CreateShare duplicate = %v, want ErrAlreadyExists", err)
	}

	// A different recipient on the same resource is allowed.
	third := TestShare()
	third.ID = "dup-c"
	third.ResourceID = 99
	third.Recipient = "dave@other.example"
	third.Token = "TokenCCCCCCCCCC"
	if err := s.CreateShare(ctx, third); err != nil {
		t.Errorf("CreateShare other recipient: %v", err)
	}
	defer s.DeleteShare(ctx, third.ID)
}

func testShareListFilter(t *testing.T, ctx context.Context, s store.ShareStore) {
	base := time.Now().Unix()
	seed := []*store.Share{
		{ID: "f-1", ResourceID: 201, Name: "/plans", Owner: "erin", Initiator: "erin",
			Recipient: "bob@remote.example", Token: "TokenF1AAAAAAAA", State: store.StateAccepted, CreatedAt: base},
		{ID: "f-2", ResourceID: 202, Name: "/handover", Owner: "erin", Initiator: "frank",
			Recipient: "carol@remote.example", Token: "TokenF2BBBBBBBB", State: store.StateAccepted, CreatedAt: base + 1},
		{ID: "f-3", ResourceID: 203, Name: "/archive", Owner: "erin", Initiator: "",
			Recipient: "dave@remote.example", Token: "TokenF3CCCCCCCC", State: store.StateAccepted, CreatedAt: base + 2},
		{ID: "f-4", ResourceID: 204, Name: "/notes", Owner: "gina", Initiator: "frank",
			Recipient: "bob@remote.example", Token: "TokenF4DDDDDDDD", State: store.StateAccepted, CreatedAt: base + 3},
	}
	for _, share := range seed {
		if err := s.CreateShare(ctx, share); err != nil {
			t.Fatalf("CreateShare %s: %v", share.ID, err)
		}
		defer s.DeleteShare(ctx, share.ID)
	}

	ids := func(shares []*store.Share) []string {
		out := make([]string, 0, len(shares))
		for _, share := range shares {
			out = append(out, share.ID)
		}
		return out
	}
	expect := func(name string, filter store.ShareFilter, want ...string) {
		t.Helper()
		got, err := s.ListShares(ctx, filter)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		gotIDs := ids(got)
		if len(gotIDs) != len(want) {
			t.Errorf("%s = %v, want %v", name, gotIDs, want)
			return
		}
		for i := range want {
			if gotIDs[i] != want[i] {
				t.Errorf("%s = %v, want %v", name, gotIDs, want)
				return
			}
		}
	}

	// Without re-shares the initiator-less row still counts as erin's;
	// the row frank initiated on her resource does not.
	expect("authored", store.ShareFilter{AuthoredBy: "erin"}, "f-1", "f-3")
	expect("authored with reshares",
		store.ShareFilter{AuthoredBy: "erin", IncludeReshares: true}, "f-1", "f-2", "f-3")
	expect("authored by initiator", store.ShareFilter{AuthoredBy: "frank"}, "f-2", "f-4")
	expect("paged",
		store.ShareFilter{AuthoredBy: "erin", IncludeReshares: true, Limit: 1, Offset: 1}, "f-2")
	expect("by name", store.ShareFilter{Name: "/plans"}, "f-1")
	expect("offset past end", store.ShareFilter{AuthoredBy: "erin", Offset: 10})
}

func testReshareMapping(t *testing.T, ctx context.Context, s store.ReshareStore) {
	if err := s.SetRemoteID(ctx, "share-1", "remote-9"); err != nil {
		t.Fatalf("SetRemoteID: %v", err)
	}

	got, err := s.GetRemoteID(ctx, "share-1")
	if err != nil {
		t.Fatalf("GetRemoteID: %v", err)
	}
	if got != "remote-9" {
		t.Errorf("GetRemoteID = %q, want %q", got, "remote-9")
	}

	if _, err := s.GetRemoteID(ctx, "share-2"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetRemoteID missing = %v, want ErrNotFound", err)
	}

	if err := s.DeleteRemoteID(ctx, "share-1"); err != nil {
		t.Fatalf("DeleteRemoteID: %v", err)
	}
	if _, err := s.GetRemoteID(ctx, "share-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetRemoteID after delete = %v, want ErrNotFound", err)
	}
}

func testRetryQueue(t *testing.T, ctx context.Context, s store.RetryStore) {
	task := TestRetryTask()
	task.NextAttemptAt = time.Now().Unix() - 10

	if err := s.EnqueueRetry(ctx, task); err != nil {
		t.Fatalf("EnqueueRetry: %v", err)
	}

	due, err := s.DueRetries(ctx, time.Now().Unix())
	if err != nil {
		t.Fatalf("DueRetries: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("DueRetries returned %d tasks, want 1", len(due))
	}
	data, err := due[0].GetData()
	if err != nil {
		t.Fatalf("GetData: %v", err)
	}
	if data["permissions"] != "3" {
		t.Errorf("task data = %v", data)
	}

	task.Attempt = 2
	task.NextAttemptAt = time.Now().Unix() + 3600
	if err := s.RescheduleRetry(ctx, task); err != nil {
		t.Fatalf("RescheduleRetry: %v", err)
	}
	due, err = s.DueRetries(ctx, time.Now().Unix())
	if err != nil {
		t.Fatalf("DueRetries after reschedule: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("DueRetries after reschedule returned %d tasks, want 0", len(due))
	}

	if err := s.DeleteRetry(ctx, task.ID); err != nil {
		t.Fatalf("DeleteRetry: %v", err)
	}
	due, err = s.DueRetries(ctx, time.Now().Unix()+7200)
	if err != nil {
		t.Fatalf("DueRetries after delete: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("DueRetries after delete returned %d tasks, want 0", len(due))
	}
}

func testMountCRUD(t *testing.T, ctx context.Context, s store.MountStore) {
	mount := TestMount()

	if err := s.CreateMount(ctx, mount); err != nil {
		t.Fatalf("CreateMount: %v", err)
	}

	byResource, err := s.GetMountByResource(ctx, mount.ResourceID)
	if err != nil {
		t.Fatalf("GetMountByResource: %v", err)
	}
	if byResource.ID != mount.ID {
		t.Errorf("GetMountByResource id = %q, want %q", byResource.ID, mount.ID)
	}
	if byResource.SharedBy != mount.SharedBy {
		t.Errorf("SharedBy = %q, want %q", byResource.SharedBy, mount.SharedBy)
	}

	found, err := s.FindMount(ctx, mount.RemoteID, mount.Token)
	if err != nil {
		t.Fatalf("FindMount: %v", err)
	}
	if found.ID != mount.ID {
		t.Errorf("FindMount id = %q, want %q", found.ID, mount.ID)
	}

	if _, err := s.FindMount(ctx, mount.RemoteID, "wrong-token"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("FindMount wrong token = %v, want ErrNotFound", err)
	}

	mount.State = store.StateDeclined
	if err := s.UpdateMount(ctx, mount); err != nil {
		t.Fatalf("UpdateMount: %v", err)
	}

	list, err := s.ListMounts(ctx, mount.ShareWith)
	if err != nil {
		t.Fatalf("ListMounts: %v", err)
	}
	if len(list) != 1 || list[0].State != store.StateDeclined {
		t.Errorf("ListMounts = %+v", list)
	}

	if err := s.DeleteMount(ctx, mount.ID); err != nil {
		t.Fatalf("DeleteMount: %v", err)
	}
	if _, err := s.GetMountByResource(ctx, mount.ResourceID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetMountByResource after delete = %v, want ErrNotFound", err)
	}
}
