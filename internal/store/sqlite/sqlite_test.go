package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fedshare/fedshare-go/internal/store"
	_ "github.com/fedshare/fedshare-go/internal/store/sqlite"
	"github.com/fedshare/fedshare-go/internal/store/testutil"
)

func TestSQLiteDriver(t *testing.T) {
	tempDir := t.TempDir()

	cfg := &store.DriverConfig{
		Driver:  "sqlite",
		DataDir: tempDir,
	}

	testutil.RunDriverTests(t, "sqlite", cfg)

	// Verify database file was created
	if _, err := os.Stat(filepath.Join(tempDir, "fedshare.db")); os.IsNotExist(err) {
		t.Error("fedshare.db not created")
	}
}

func TestSQLiteDriverSurvivesRestart(t *testing.T) {
	tempDir := t.TempDir()

	ctx := context.Background()
	cfg := &store.DriverConfig{
		Driver:  "sqlite",
		DataDir: tempDir,
	}

	driver, err := store.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := driver.Init(ctx); err != nil {
		t.Fatal(err)
	}

	shareStore := driver.(store.ShareStore)

	share := testutil.TestShare()
	if err := shareStore.CreateShare(ctx, share); err != nil {
		t.Fatal(err)
	}
	driver.Close()

	// Reload driver - data should survive
	driver2, err := store.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := driver2.Init(ctx); err != nil {
		t.Fatal(err)
	}
	defer driver2.Close()

	shareStore2 := driver2.(store.ShareStore)
	got, err := shareStore2.GetShare(ctx, share.ID)
	if err != nil {
		t.Fatalf("share not found after restart: %v", err)
	}
	if got.Token != share.Token {
		t.Errorf("data corruption: expected token %q, got %q", share.Token, got.Token)
	}
}
