// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package usage

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	log, err := Open(filepath.Join(t.TempDir(), "usage", "log.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { log.Close() })
	return log
}

func TestLog_InsertAndRecent(t *testing.T) {
	log := openTestLog(t)

	first := Record{
		ConversationID: "conv-1",
		MessageID:      2,
		Provider:       "p1",
		Model:          "gpt-x",
		Chars:          6,
		ElapsedSeconds: 1,
		CreatedAt:      time.UnixMilli(1700000000000),
	}
	if err := log.Insert(first); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := log.Insert(Record{ConversationID: "conv-2", MessageID: 4, Provider: "p1", Model: "gpt-x", Chars: 10, ElapsedSeconds: 2}); err != nil {
		t.Fatalf("second Insert failed: %v", err)
	}

	records, err := log.Recent(10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Recent count = %d, want 2", len(records))
	}

	// Newest first.
	if records[0].ConversationID != "conv-2" || records[1].ConversationID != "conv-1" {
		t.Errorf("order = [%s %s], want newest first", records[0].ConversationID, records[1].ConversationID)
	}

	got := records[1]
	if got.MessageID != 2 || got.Chars != 6 || got.ElapsedSeconds != 1 {
		t.Errorf("record = %+v, want %+v", got, first)
	}
	if !got.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, first.CreatedAt)
	}

	// Zero CreatedAt is stamped on insert.
	if records[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not stamped for zero-value insert")
	}
}

func TestLog_RecentLimit(t *testing.T) {
	log := openTestLog(t)

	for i := 0; i < 5; i++ {
		if err := log.Insert(Record{ConversationID: "conv", MessageID: i, Provider: "p", Model: "m"}); err != nil {
			t.Fatal(err)
		}
	}

	records, err := log.Recent(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Errorf("Recent count = %d, want 3", len(records))
	}
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.db")

	log, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := log.Insert(Record{ConversationID: "conv", Provider: "p", Model: "m"}); err != nil {
		t.Fatal(err)
	}
	log.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	records, err := reopened.Recent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Errorf("records after reopen = %d, want 1", len(records))
	}
}
