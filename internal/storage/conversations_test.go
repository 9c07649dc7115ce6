// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jeranaias/parley/internal/model"
)

func newTestStore(t *testing.T) *ConversationStore {
	t.Helper()
	return NewConversationStore(NewDirDriver(t.TempDir()))
}

func TestConversationStore_SaveAndLoad(t *testing.T) {
	store := newTestStore(t)

	conv := store.Create()
	msg := model.CreateMessage(conv, model.RoleUser, "gpt-x", "p1", "Provider1", nil, model.StatusFinished)
	model.CreateMessageFragment(msg, model.FragmentRequest, "hello", 0)
	msg.ThinkingEnabled = true
	msg.Files = append(msg.Files, model.FileAttachment{ID: "f1", Name: "notes.txt"})

	if err := store.Save(conv); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(conv.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.ID != conv.ID {
		t.Errorf("ID = %q, want %q", loaded.ID, conv.ID)
	}
	if loaded.SchemaVersion != model.SchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", loaded.SchemaVersion, model.SchemaVersion)
	}
	if loaded.Session.Title != model.DefaultTitle {
		t.Errorf("Title = %q, want %q", loaded.Session.Title, model.DefaultTitle)
	}
	if len(loaded.Messages) != 1 {
		t.Fatalf("Messages count = %d, want 1", len(loaded.Messages))
	}

	got := loaded.Messages[0]
	if got.ID != 1 || got.Role != model.RoleUser || !got.ThinkingEnabled {
		t.Errorf("message round-trip mismatch: %+v", got)
	}
	if len(got.Fragments) != 1 || got.Fragments[0].Content != "hello" {
		t.Errorf("fragment round-trip mismatch: %+v", got.Fragments)
	}
	if len(got.Files) != 1 || got.Files[0].Name != "notes.txt" {
		t.Errorf("file round-trip mismatch: %+v", got.Files)
	}

	// UpdatedAt reflects the most recent Save, not the caller's value.
	if loaded.Session.UpdatedAt < loaded.Session.CreatedAt {
		t.Error("UpdatedAt must not precede CreatedAt")
	}
}

func TestConversationStore_SaveStampsUpdatedAt(t *testing.T) {
	store := newTestStore(t)
	conv := store.Create()

	// A caller-set UpdatedAt is overridden unconditionally.
	conv.Session.UpdatedAt = 42
	if err := store.Save(conv); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if conv.Session.UpdatedAt == 42 {
		t.Error("Save must override the caller-set UpdatedAt")
	}

	first := conv.Session.UpdatedAt
	time.Sleep(2 * time.Millisecond)
	if err := store.Save(conv); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}
	if conv.Session.UpdatedAt <= first {
		t.Errorf("UpdatedAt did not advance: %d -> %d", first, conv.Session.UpdatedAt)
	}
}

func TestConversationStore_LoadNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load("nonexistent-id")
	if !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestConversationStore_LoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	store := NewConversationStore(NewDirDriver(dir))

	path := filepath.Join(dir, "data", "conversations", "bad.json")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := store.Load("bad")
	if !errors.Is(err, ErrCorruptDocument) {
		t.Errorf("expected ErrCorruptDocument, got %v", err)
	}
}

func TestConversationStore_ListSortedByUpdatedAt(t *testing.T) {
	store := newTestStore(t)

	older := store.Create()
	if err := store.Save(older); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	newer := store.Create()
	if err := store.Save(newer); err != nil {
		t.Fatal(err)
	}

	list := store.List()
	if len(list) != 2 {
		t.Fatalf("List count = %d, want 2", len(list))
	}
	if list[0].ID != newer.ID || list[1].ID != older.ID {
		t.Errorf("List order = [%s %s], want most recent first", list[0].ID, list[1].ID)
	}
}

func TestConversationStore_ListEmptyOnMissingDir(t *testing.T) {
	// No document was ever saved, so the conversations directory does not
	// exist; the directory failure degrades to an empty list.
	store := newTestStore(t)

	list := store.List()
	if list == nil {
		t.Fatal("List returned nil, want empty slice")
	}
	if len(list) != 0 {
		t.Errorf("List count = %d, want 0", len(list))
	}
}

func TestConversationStore_ListSkipsCorrupt(t *testing.T) {
	dir := t.TempDir()
	store := NewConversationStore(NewDirDriver(dir))

	good := store.Create()
	if err := store.Save(good); err != nil {
		t.Fatal(err)
	}

	bad := filepath.Join(dir, "data", "conversations", "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	list := store.List()
	if len(list) != 1 || list[0].ID != good.ID {
		t.Errorf("List = %v, want only the readable document", list)
	}
}

func TestConversationStore_Delete(t *testing.T) {
	store := newTestStore(t)

	conv := store.Create()
	if err := store.Save(conv); err != nil {
		t.Fatal(err)
	}

	if err := store.Delete(conv.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Load(conv.ID); !errors.Is(err, ErrConversationNotFound) {
		t.Error("conversation should not exist after delete")
	}

	if err := store.Delete(conv.ID); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("second Delete = %v, want ErrConversationNotFound", err)
	}
}

func TestConversationStore_UpdateTitle(t *testing.T) {
	store := newTestStore(t)

	conv := store.Create()
	if err := store.Save(conv); err != nil {
		t.Fatal(err)
	}

	if err := store.UpdateTitle(conv.ID, "Budget planning", model.TitleUser); err != nil {
		t.Fatalf("UpdateTitle failed: %v", err)
	}

	loaded, err := store.Load(conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Session.Title != "Budget planning" {
		t.Errorf("Title = %q, want %q", loaded.Session.Title, "Budget planning")
	}
	if loaded.Session.TitleType != model.TitleUser {
		t.Errorf("TitleType = %q, want %q", loaded.Session.TitleType, model.TitleUser)
	}

	if err := store.UpdateTitle("missing", "x", model.TitleUser); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("UpdateTitle on missing id = %v, want ErrConversationNotFound", err)
	}
}
