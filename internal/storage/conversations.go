// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path"
	"sort"
	"strings"

	"github.com/jeranaias/parley/internal/model"
)

// Storage layout, relative to the driver's root.
const (
	conversationsDir = "data/conversations"
	indexFile        = "data/index/0.json"
	prefsDir         = "data/conv_pref"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrConversationNotFound is returned when the requested conversation
	// has no stored document.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrCorruptDocument wraps a JSON decode failure of a stored document.
	ErrCorruptDocument = errors.New("corrupt document")
)

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// ConversationStore is the document repository: durable CRUD for individual
// conversation documents. Every write is a full-document serialize and
// overwrite; there is no partial patch at the storage layer.
type ConversationStore struct {
	driver Driver
}

// NewConversationStore creates a repository on the given driver.
func NewConversationStore(driver Driver) *ConversationStore {
	return &ConversationStore{driver: driver}
}

func conversationPath(id string) string {
	return path.Join(conversationsDir, id+".json")
}

// Create returns a new empty conversation with a fresh id and current
// timestamps. The document is not persisted until the first Save.
func (s *ConversationStore) Create() *model.Conversation {
	return model.NewConversation()
}

// Save overwrites the whole document for the conversation's id, stamping
// Session.UpdatedAt = now. The stamp is unconditional and overrides any
// value the caller set.
func (s *ConversationStore) Save(conv *model.Conversation) error {
	conv.Session.UpdatedAt = model.NowMillis()

	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation %s: %w", conv.ID, err)
	}

	if err := s.driver.Write(conversationPath(conv.ID), data); err != nil {
		log.Printf("failed to save conversation %s: %v", conv.ID, err)
		return err
	}
	return nil
}

// Load retrieves a conversation by id. A missing document is a hard error
// (ErrConversationNotFound), unlike the index and preference stores where
// absence is a default value.
func (s *ConversationStore) Load(id string) (*model.Conversation, error) {
	data, ok, err := s.driver.Read(conversationPath(id))
	if err != nil {
		log.Printf("failed to load conversation %s: %v", id, err)
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}

	var conv model.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("%w: conversation %s: %v", ErrCorruptDocument, id, err)
	}
	return &conv, nil
}

// List enumerates all stored conversations, parses each fully, and returns
// them sorted descending by Session.UpdatedAt.
//
// A directory-level read failure degrades to an empty list rather than
// propagating; the asymmetry with Load's hard failure is deliberate. A
// single unreadable document is skipped and logged rather than discarding
// the whole listing.
func (s *ConversationStore) List() []*model.Conversation {
	names, err := s.driver.List(conversationsDir)
	if err != nil {
		log.Printf("failed to list conversations: %v", err)
		return []*model.Conversation{}
	}

	conversations := make([]*model.Conversation, 0, len(names))
	for _, name := range names {
		if !jsonName(name) {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		conv, err := s.Load(id)
		if err != nil {
			log.Printf("skipping conversation %s: %v", id, err)
			continue
		}
		conversations = append(conversations, conv)
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].Session.UpdatedAt > conversations[j].Session.UpdatedAt
	})

	return conversations
}

// Delete removes the document. It fails with ErrConversationNotFound when
// the id has no stored document. Deletion does not touch the index or
// preference entries; callers must do so separately.
func (s *ConversationStore) Delete(id string) error {
	ok, err := s.driver.Remove(conversationPath(id))
	if err != nil {
		log.Printf("failed to delete conversation %s: %v", id, err)
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	return nil
}

// UpdateTitle loads the conversation, sets the title and title type, and
// saves it back.
func (s *ConversationStore) UpdateTitle(id, title string, titleType model.TitleType) error {
	conv, err := s.Load(id)
	if err != nil {
		return err
	}
	conv.Session.Title = title
	conv.Session.TitleType = titleType
	return s.Save(conv)
}
