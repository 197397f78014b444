package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"flat_bot/internal/model"
	"flat_bot/internal/storage"
)

func TestImportJSON(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, storage.SeenFile), []byte(`["6751","6752"]`), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, storage.SubscribersFile), []byte(`[100,200]`), 0o600); err != nil {
		t.Fatal(err)
	}

	dbPath := filepath.Join(t.TempDir(), "flatbot.db")
	pre, err := storage.NewSQLite(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := pre.SaveSeen(ctx, model.NewIDSet("11001")); err != nil {
		t.Fatal(err)
	}
	if _, err := pre.AddSubscriber(ctx, 100); err != nil {
		t.Fatal(err)
	}
	_ = pre.Close()

	seen, subs, err := importJSON(ctx, dir, dbPath)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if seen != 2 || subs != 1 {
		t.Errorf("imported seen=%d subs=%d, want 2 and 1", seen, subs)
	}

	db, err := storage.NewSQLite(dbPath)
	if err != nil {
		t.Fatalf("reopen db: %v", err)
	}
	defer func() { _ = db.Close() }()

	gotSeen, err := db.LoadSeen(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"11001", "6751", "6752"}, gotSeen.Sorted()); diff != "" {
		t.Errorf("seen mismatch (-want +got):\n%s", diff)
	}
	gotSubs, err := db.ListSubscribers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(gotSubs) != 2 {
		t.Errorf("subscribers = %v, want 100 and 200", gotSubs)
	}
}
