// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the current on-disk schema version. Every persisted
// document carries it to allow future migration; no migration logic exists
// yet.
const SchemaVersion = 1

// DefaultTitle is the title given to a freshly created conversation.
const DefaultTitle = "New Conversation"

// TitleType records whether a conversation title was user-edited or
// auto-derived.
type TitleType string

const (
	TitleUser   TitleType = "USER"
	TitleSystem TitleType = "SYSTEM"
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Session holds a conversation's display metadata. Timestamps are Unix
// milliseconds.
type Session struct {
	CreatedAt int64     `json:"created_at"`
	UpdatedAt int64     `json:"updated_at"`
	Title     string    `json:"title"`
	TitleType TitleType `json:"title_type"`
}

// Conversation is a single durable chat document. The document is the source
// of truth; the listing index is a cache derived from it.
//
// Messages are ordered by append; logical ordering for display is by
// ascending id, which can differ from array order after deletions.
type Conversation struct {
	SchemaVersion int        `json:"schemaVersion"`
	ID            string     `json:"id"`
	Session       Session    `json:"session"`
	Messages      []*Message `json:"messages"`
}

// NewConversation creates an empty conversation with a generated id and
// current timestamps. It is not persisted until the caller saves it.
func NewConversation() *Conversation {
	now := NowMillis()
	return &Conversation{
		SchemaVersion: SchemaVersion,
		ID:            uuid.NewString(),
		Session: Session{
			CreatedAt: now,
			UpdatedAt: now,
			Title:     DefaultTitle,
			TitleType: TitleSystem,
		},
		Messages: []*Message{},
	}
}

// NowMillis returns the current time as Unix milliseconds, the unit every
// persisted timestamp uses.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// =============================================================================
// READ HELPERS
// =============================================================================

// FindMessage returns the message with the given id, or nil.
func (c *Conversation) FindMessage(id int) *Message {
	for _, msg := range c.Messages {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}

// LatestMessage returns the message with the highest id, not the last array
// element, or nil when the conversation is empty.
func (c *Conversation) LatestMessage() *Message {
	var latest *Message
	for _, msg := range c.Messages {
		if latest == nil || msg.ID > latest.ID {
			latest = msg
		}
	}
	return latest
}

// MessagesByRole returns all messages with the given role, in stored order.
func (c *Conversation) MessagesByRole(role Role) []*Message {
	var out []*Message
	for _, msg := range c.Messages {
		if msg.Role == role {
			out = append(out, msg)
		}
	}
	return out
}

// RemoveMessage removes the message with the given id and reports whether it
// was present. ParentID references in surviving messages are left untouched.
func (c *Conversation) RemoveMessage(id int) bool {
	for i, msg := range c.Messages {
		if msg.ID == id {
			c.Messages = append(c.Messages[:i], c.Messages[i+1:]...)
			return true
		}
	}
	return false
}
