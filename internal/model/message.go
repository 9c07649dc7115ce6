// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations, messages and
// message fragments, together with the pure mutation helpers that operate on
// an in-memory conversation. Persistence lives in internal/storage; helpers
// here never touch the disk.
package model

// =============================================================================
// ENUMS
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "USER"
	RoleAssistant Role = "ASSISTANT"
	RoleSystem    Role = "SYSTEM"
)

// Status represents the completion state of a message.
type Status string

const (
	// StatusWIP marks a message whose content is still streaming in.
	StatusWIP Status = "WIP"
	// StatusFinished marks a message whose content is complete.
	StatusFinished Status = "FINISHED"
)

// Feedback represents user feedback recorded against a message.
type Feedback string

const (
	FeedbackNotProvided Feedback = "NOT_PROVIDED"
	FeedbackPositive    Feedback = "POSITIVE"
	FeedbackNegative    Feedback = "NEGATIVE"
)

// FragmentType classifies the content of a message fragment.
type FragmentType string

const (
	// FragmentRequest is user-entered request text.
	FragmentRequest FragmentType = "REQUEST"
	// FragmentThink is internal reasoning; never sent back to a provider.
	FragmentThink FragmentType = "THINK"
	// FragmentResponse is provider-generated response text.
	FragmentResponse FragmentType = "RESPONSE"
)

// =============================================================================
// MESSAGE TYPES
// =============================================================================

// FileAttachment describes a file attached to a message.
type FileAttachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MessageFragment is one atomic unit of message content. Fragments are never
// edited in place once finalized; ids are unique within the owning message.
type MessageFragment struct {
	ID      int          `json:"id"`
	Type    FragmentType `json:"type"`
	Elapsed int          `json:"elapsed"` // seconds spent producing it, 0 for requests
	Content string       `json:"content"`
}

// Message represents a single message in a conversation.
//
// IDs start at 1 and are unique within the conversation; they are never
// reused or renumbered. ParentID is nil for root messages. Deleting a message
// does not repair ParentID references in surviving messages, so readers must
// tolerate dangling references.
type Message struct {
	ID       int  `json:"id"`
	ParentID *int `json:"parent_id"`

	// AccumulatedTokenUsage is a character-count proxy, not a true token
	// count.
	AccumulatedTokenUsage int `json:"accumulated_token_usage"`

	Model           string   `json:"model"`
	Provider        string   `json:"provider"`
	ProviderName    string   `json:"providerName"`
	ThinkingEnabled bool     `json:"thinking_enabled"`
	Role            Role     `json:"role"`
	Feedback        Feedback `json:"feedback"`
	Status          Status   `json:"status"`

	Files     []FileAttachment  `json:"files"`
	Fragments []MessageFragment `json:"fragments"`

	// HasPendingFragment is reserved; no operation sets it true.
	HasPendingFragment bool `json:"has_pending_fragment"`
}

// =============================================================================
// ID ASSIGNMENT
// =============================================================================

// NextMessageID returns the id for the next message appended to the
// conversation: max(existing ids, 0) + 1.
//
// The scan is O(n) per insertion, which is acceptable at expected document
// sizes. Ids stay strictly increasing across deletions because deleted ids
// still bound the maximum of the survivors that came after them.
func NextMessageID(c *Conversation) int {
	maxID := 0
	for _, msg := range c.Messages {
		if msg.ID > maxID {
			maxID = msg.ID
		}
	}
	return maxID + 1
}

// NextFragmentID returns the id for the next fragment appended to the
// message, using the same max+1 rule scoped to the message's fragments.
func NextFragmentID(m *Message) int {
	maxID := 0
	for _, frag := range m.Fragments {
		if frag.ID > maxID {
			maxID = frag.ID
		}
	}
	return maxID + 1
}

// =============================================================================
// MUTATION HELPERS (no persistence)
// =============================================================================

// CreateMessage appends a new message to the conversation and returns it.
// The caller is responsible for persisting the conversation.
func CreateMessage(c *Conversation, role Role, modelID, providerID, providerName string, parentID *int, status Status) *Message {
	msg := &Message{
		ID:           NextMessageID(c),
		ParentID:     parentID,
		Model:        modelID,
		Provider:     providerID,
		ProviderName: providerName,
		Role:         role,
		Feedback:     FeedbackNotProvided,
		Status:       status,
		Files:        []FileAttachment{},
		Fragments:    []MessageFragment{},
	}
	c.Messages = append(c.Messages, msg)
	return msg
}

// CreateMessageFragment appends a new fragment to the message and returns it.
// The caller is responsible for persisting the conversation.
func CreateMessageFragment(m *Message, typ FragmentType, content string, elapsed int) *MessageFragment {
	m.Fragments = append(m.Fragments, MessageFragment{
		ID:      NextFragmentID(m),
		Type:    typ,
		Elapsed: elapsed,
		Content: content,
	})
	return &m.Fragments[len(m.Fragments)-1]
}
