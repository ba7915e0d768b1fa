package credentials

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/orbvoice/orb/domain/repositories"
)

func TestSeedsFromEnvironmentOnFirstRun(t *testing.T) {
	t.Setenv(seedEnv, "key-aaa, key-bbb,")
	path := filepath.Join(t.TempDir(), "credentials.json")

	store, err := NewFileStore(path, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}

	creds, err := store.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(creds) != 2 {
		t.Fatalf("Expected 2 seeded credentials, got %d", len(creds))
	}
	if creds[0].Key != "key-aaa" || creds[1].Key != "key-bbb" {
		t.Errorf("Unexpected pool: %v", creds)
	}
	if creds[0].Label == "" {
		t.Error("Expected generated labels")
	}

	// the seed persisted, so a reload sees the same pool without the env
	t.Setenv(seedEnv, "")
	reloaded, err := NewFileStore(path, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	creds, _ = reloaded.List(context.Background())
	if len(creds) != 2 {
		t.Errorf("Expected persisted pool of 2, got %d", len(creds))
	}
}

func TestAppendPersistsAcrossReload(t *testing.T) {
	t.Setenv(seedEnv, "")
	path := filepath.Join(t.TempDir(), "credentials.json")

	store, err := NewFileStore(path, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Append(context.Background(), repositories.Credential{Key: "key-ccc"}); err != nil {
		t.Fatal(err)
	}

	reloaded, err := NewFileStore(path, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	creds, _ := reloaded.List(context.Background())
	if len(creds) != 1 || creds[0].Key != "key-ccc" {
		t.Errorf("Expected appended credential persisted, got %v", creds)
	}
}

func TestAppendRejectsDuplicatesAndEmptyKeys(t *testing.T) {
	t.Setenv(seedEnv, "")
	path := filepath.Join(t.TempDir(), "credentials.json")

	store, err := NewFileStore(path, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Append(context.Background(), repositories.Credential{}); err == nil {
		t.Error("Expected empty key rejected")
	}

	if err := store.Append(context.Background(), repositories.Credential{Key: "key-ddd"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Append(context.Background(), repositories.Credential{Key: "key-ddd"}); err == nil {
		t.Error("Expected duplicate key rejected")
	}
}
