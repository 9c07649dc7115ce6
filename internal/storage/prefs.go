// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"fmt"
	"log"
	"path"

	"github.com/jeranaias/parley/internal/model"
)

// =============================================================================
// PREFERENCE TYPES
// =============================================================================

// UserPref is per-conversation user state with a lifecycle independent from
// the conversation document itself.
type UserPref struct {
	SchemaVersion int    `json:"schemaVersion"`
	ID            string `json:"id"` // == conversation id
	// CurrentMessageID is the last message the user viewed.
	CurrentMessageID int   `json:"current_message_id"`
	Pinned           bool  `json:"pinned"`
	LastAccessAt     int64 `json:"last_access_at"`
}

// =============================================================================
// PREFERENCE STORE
// =============================================================================

// PrefStore persists one UserPref record per conversation id, each in its own
// file. Like the index store it is read-whole/write-whole with no locking.
type PrefStore struct {
	driver Driver
}

// NewPrefStore creates a preference store on the given driver.
func NewPrefStore(driver Driver) *PrefStore {
	return &PrefStore{driver: driver}
}

func prefPath(id string) string {
	return path.Join(prefsDir, id+".json")
}

// Load returns the record for the conversation id. A missing record is not
// an error: ok is false and the pref is nil.
func (s *PrefStore) Load(id string) (*UserPref, bool, error) {
	data, ok, err := s.driver.Read(prefPath(id))
	if err != nil {
		log.Printf("failed to load user pref %s: %v", id, err)
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	var pref UserPref
	if err := json.Unmarshal(data, &pref); err != nil {
		return nil, false, fmt.Errorf("%w: user pref %s: %v", ErrCorruptDocument, id, err)
	}
	return &pref, true, nil
}

// Save overwrites the whole record.
func (s *PrefStore) Save(pref *UserPref) error {
	data, err := json.Marshal(pref)
	if err != nil {
		return fmt.Errorf("failed to marshal user pref %s: %w", pref.ID, err)
	}
	if err := s.driver.Write(prefPath(pref.ID), data); err != nil {
		log.Printf("failed to save user pref %s: %v", pref.ID, err)
		return err
	}
	return nil
}

// Update loads the record (or default-constructs one), sets the current
// message id and pinned flag, stamps LastAccessAt = now, and saves.
func (s *PrefStore) Update(id string, currentMessageID int, pinned bool) error {
	pref, ok, err := s.Load(id)
	if err != nil {
		return err
	}
	if !ok {
		pref = &UserPref{
			SchemaVersion: model.SchemaVersion,
			ID:            id,
		}
	}

	pref.CurrentMessageID = currentMessageID
	pref.Pinned = pinned
	pref.LastAccessAt = model.NowMillis()

	return s.Save(pref)
}
