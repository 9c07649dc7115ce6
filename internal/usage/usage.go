// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package usage keeps a local SQLite log of finished generations. The log is
// purely additive bookkeeping: conversation documents remain the source of
// truth, and nothing in the chat core reads this data back.
package usage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Record is one finished generation.
type Record struct {
	ID             int64
	ConversationID string
	MessageID      int
	Provider       string
	Model          string
	Chars          int
	ElapsedSeconds int
	CreatedAt      time.Time
}

// Log is an append-mostly usage log backed by SQLite.
type Log struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS generations (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id TEXT NOT NULL,
	message_id      INTEGER NOT NULL,
	provider        TEXT NOT NULL,
	model           TEXT NOT NULL,
	chars           INTEGER NOT NULL,
	elapsed_seconds INTEGER NOT NULL,
	created_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_generations_conversation
	ON generations(conversation_id);
`

// Open opens (creating if needed) the usage log at the given path.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create usage log directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open usage log: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize usage log schema: %w", err)
	}

	return &Log{db: db}, nil
}

// Close releases the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}

// Insert appends one generation record. CreatedAt defaults to now when zero.
func (l *Log) Insert(rec Record) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := l.db.Exec(
		`INSERT INTO generations
			(conversation_id, message_id, provider, model, chars, elapsed_seconds, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ConversationID, rec.MessageID, rec.Provider, rec.Model,
		rec.Chars, rec.ElapsedSeconds, createdAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}
	return nil
}

// Recent returns the most recent records, newest first.
func (l *Log) Recent(limit int) ([]Record, error) {
	rows, err := l.db.Query(
		`SELECT id, conversation_id, message_id, provider, model, chars, elapsed_seconds, created_at
		 FROM generations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.ConversationID, &rec.MessageID,
			&rec.Provider, &rec.Model, &rec.Chars, &rec.ElapsedSeconds, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		rec.CreatedAt = time.UnixMilli(createdAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}
