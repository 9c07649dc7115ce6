// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the persisting mutation API over stored conversations.
// Every operation follows the same shape: load the whole document, locate
// the target message, apply one mutation, save the whole document back.
// Message-level operations silently no-op when the message id is absent;
// only a missing conversation is an error.
package chat

import (
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/storage"
)

// Editor applies message-level mutations to stored conversations.
type Editor struct {
	repo *storage.ConversationStore
}

// NewEditor creates an editor over the given repository.
func NewEditor(repo *storage.ConversationStore) *Editor {
	return &Editor{repo: repo}
}

// mutate loads the conversation, runs fn against the target message, and
// saves. When the message id has no match the whole operation is a no-op:
// nothing is written, so the document's updated_at is not disturbed by a
// mutation that changed nothing.
func (e *Editor) mutate(conversationID string, messageID int, fn func(*model.Message)) error {
	conv, err := e.repo.Load(conversationID)
	if err != nil {
		return err
	}
	msg := conv.FindMessage(messageID)
	if msg == nil {
		return nil
	}
	fn(msg)
	return e.repo.Save(conv)
}

// UpdateStatus sets the completion status of a message.
func (e *Editor) UpdateStatus(conversationID string, messageID int, status model.Status) error {
	return e.mutate(conversationID, messageID, func(msg *model.Message) {
		msg.Status = status
	})
}

// UpdateFeedback records user feedback against a message.
func (e *Editor) UpdateFeedback(conversationID string, messageID int, feedback model.Feedback) error {
	return e.mutate(conversationID, messageID, func(msg *model.Message) {
		msg.Feedback = feedback
	})
}

// UpdateTokenUsage sets the accumulated usage counter of a message.
func (e *Editor) UpdateTokenUsage(conversationID string, messageID int, usage int) error {
	return e.mutate(conversationID, messageID, func(msg *model.Message) {
		msg.AccumulatedTokenUsage = usage
	})
}

// SetThinkingEnabled toggles the thinking flag of a message.
func (e *Editor) SetThinkingEnabled(conversationID string, messageID int, enabled bool) error {
	return e.mutate(conversationID, messageID, func(msg *model.Message) {
		msg.ThinkingEnabled = enabled
	})
}

// AddFileAttachment appends a file attachment to a message.
func (e *Editor) AddFileAttachment(conversationID string, messageID int, file model.FileAttachment) error {
	return e.mutate(conversationID, messageID, func(msg *model.Message) {
		msg.Files = append(msg.Files, file)
	})
}

// DeleteMessage removes a message from the conversation. Ids of surviving
// messages are untouched, and parent references pointing at the removed
// message are deliberately left dangling. Deleting an absent id is a
// complete no-op: the document is not rewritten.
func (e *Editor) DeleteMessage(conversationID string, messageID int) error {
	conv, err := e.repo.Load(conversationID)
	if err != nil {
		return err
	}
	if !conv.RemoveMessage(messageID) {
		return nil
	}
	return e.repo.Save(conv)
}

// SendUserMessage appends a USER message carrying one REQUEST fragment with
// the given content and persists the conversation once. It returns the new
// message.
func (e *Editor) SendUserMessage(conv *model.Conversation, content, modelID, providerID, providerName string, parentID *int) (*model.Message, error) {
	msg := model.CreateMessage(conv, model.RoleUser, modelID, providerID, providerName, parentID, model.StatusFinished)
	model.CreateMessageFragment(msg, model.FragmentRequest, content, 0)
	if err := e.repo.Save(conv); err != nil {
		return nil, err
	}
	return msg, nil
}
