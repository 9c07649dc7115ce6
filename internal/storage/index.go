// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/jeranaias/parley/internal/model"
)

// =============================================================================
// INDEX TYPES
// =============================================================================

// IndexItem is a denormalized projection of a conversation's session
// metadata plus preference state, used for listing without loading full
// documents.
type IndexItem struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
	Title     string `json:"title"`
	Pinned    bool   `json:"pinned"`
}

// Index is the single derived summary of all conversations. The conversation
// documents are the source of truth; the index is a cache kept eventually
// consistent by explicit calls from higher layers, and can diverge from the
// documents if an index-mutating call is skipped or fails after a document
// write succeeds.
type Index struct {
	SchemaVersion int         `json:"schemaVersion"`
	Conversations []IndexItem `json:"conversations"`

	// HasMore is reserved for pagination; no operation sets it true.
	HasMore bool `json:"has_more"`
}

func emptyIndex() *Index {
	return &Index{
		SchemaVersion: model.SchemaVersion,
		Conversations: []IndexItem{},
		HasMore:       false,
	}
}

// =============================================================================
// INDEX STORE
// =============================================================================

// IndexStore manages the single-shard conversation index. Every mutating
// operation is read-entire-index, mutate, write-entire-index with no lock:
// two concurrent mutations race and the second write silently clobbers the
// first (last-writer-wins, no merge).
type IndexStore struct {
	driver Driver
}

// NewIndexStore creates an index store on the given driver.
func NewIndexStore(driver Driver) *IndexStore {
	return &IndexStore{driver: driver}
}

func (s *IndexStore) load() (*Index, error) {
	data, ok, err := s.driver.Read(indexFile)
	if err != nil {
		log.Printf("failed to load index: %v", err)
		return nil, err
	}
	if !ok {
		// Absence is not an error: first-ever use starts from an empty
		// index.
		return emptyIndex(), nil
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("%w: index: %v", ErrCorruptDocument, err)
	}
	return &idx, nil
}

func (s *IndexStore) save(idx *Index) error {
	data, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}
	if err := s.driver.Write(indexFile, data); err != nil {
		log.Printf("failed to save index: %v", err)
		return err
	}
	return nil
}

// Get returns the current index, defaulting to an empty one when no index
// file exists yet.
func (s *IndexStore) Get() (*Index, error) {
	return s.load()
}

// Upsert inserts or replaces the item keyed by the conversation's id.
func (s *IndexStore) Upsert(conv *model.Conversation, pinned bool) error {
	idx, err := s.load()
	if err != nil {
		return err
	}

	item := IndexItem{
		ID:        conv.ID,
		CreatedAt: conv.Session.CreatedAt,
		UpdatedAt: conv.Session.UpdatedAt,
		Title:     conv.Session.Title,
		Pinned:    pinned,
	}

	replaced := false
	for i := range idx.Conversations {
		if idx.Conversations[i].ID == conv.ID {
			idx.Conversations[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		idx.Conversations = append(idx.Conversations, item)
	}

	return s.save(idx)
}

// Update refreshes UpdatedAt and Title (and, when pinned is non-nil, the
// pinned flag) of an existing entry. It is a no-op when the conversation has
// no index entry.
func (s *IndexStore) Update(conv *model.Conversation, pinned *bool) error {
	idx, err := s.load()
	if err != nil {
		return err
	}

	for i := range idx.Conversations {
		if idx.Conversations[i].ID == conv.ID {
			idx.Conversations[i].UpdatedAt = conv.Session.UpdatedAt
			idx.Conversations[i].Title = conv.Session.Title
			if pinned != nil {
				idx.Conversations[i].Pinned = *pinned
			}
			return s.save(idx)
		}
	}
	return nil
}

// Remove filters the entry with the given id out of the index.
func (s *IndexStore) Remove(id string) error {
	idx, err := s.load()
	if err != nil {
		return err
	}

	filtered := idx.Conversations[:0]
	for _, item := range idx.Conversations {
		if item.ID != id {
			filtered = append(filtered, item)
		}
	}
	idx.Conversations = filtered

	return s.save(idx)
}

// SetPinned updates the pinned flag of an existing entry. It is a no-op when
// the id has no index entry.
func (s *IndexStore) SetPinned(id string, pinned bool) error {
	idx, err := s.load()
	if err != nil {
		return err
	}

	for i := range idx.Conversations {
		if idx.Conversations[i].ID == id {
			idx.Conversations[i].Pinned = pinned
			return s.save(idx)
		}
	}
	return nil
}
