package history_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/contessasoft/nyati/internal/bot/history"
)

func newStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.New(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAppendAndRecent(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	if err := store.Append(ctx, "263772123456", history.RoleUser, "hi"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Append(ctx, "263772123456", history.RoleBot, "welcome"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Append(ctx, "999", history.RoleUser, "other user"); err != nil {
		t.Fatalf("append: %v", err)
	}

	msgs, err := store.Recent(ctx, "263772123456", 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Body != "hi" || msgs[0].Role != history.RoleUser {
		t.Fatalf("oldest first expected, got %+v", msgs[0])
	}
	if msgs[1].Body != "welcome" || msgs[1].Role != history.RoleBot {
		t.Fatalf("unexpected second message %+v", msgs[1])
	}
}

func TestHistoryWindowTrimmed(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	for i := 0; i < history.KeepPerUser+5; i++ {
		if err := store.Append(ctx, "1", history.RoleUser, fmt.Sprintf("msg %d", i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	msgs, err := store.Recent(ctx, "1", 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(msgs) != history.KeepPerUser {
		t.Fatalf("expected window of %d, got %d", history.KeepPerUser, len(msgs))
	}
	if msgs[0].Body != "msg 5" {
		t.Fatalf("oldest retained should be msg 5, got %q", msgs[0].Body)
	}
	if msgs[len(msgs)-1].Body != fmt.Sprintf("msg %d", history.KeepPerUser+4) {
		t.Fatalf("newest should be the last appended, got %q", msgs[len(msgs)-1].Body)
	}
}

func TestSaveAndListForms(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	ref, err := store.SaveForm(ctx, "quote", "263772123456", map[string]string{
		"name":        "Tendai",
		"contact":     "tendai@example.com",
		"service":     "Mobile App Development",
		"description": "fleet tracking app",
	})
	if err != nil {
		t.Fatalf("save form: %v", err)
	}
	if len(ref) != 6 {
		t.Fatalf("reference should be 6 characters, got %q", ref)
	}

	forms, err := store.FormsFor(ctx, "263772123456")
	if err != nil {
		t.Fatalf("list forms: %v", err)
	}
	if len(forms) != 1 {
		t.Fatalf("expected 1 form, got %d", len(forms))
	}
	got := forms[0]
	if got.Reference != ref || got.Kind != "quote" {
		t.Fatalf("unexpected form %+v", got)
	}
	if got.Fields["name"] != "Tendai" || got.Fields["description"] != "fleet tracking app" {
		t.Fatalf("form fields lost: %+v", got.Fields)
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")
	store, err := history.New(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	store.Close()

	// Reopening must not re-apply migrations.
	store, err = history.New(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	store.Close()
}
