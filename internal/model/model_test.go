// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"testing"
)

func TestNewConversation(t *testing.T) {
	conv := NewConversation()

	if conv.ID == "" {
		t.Error("expected non-empty ID")
	}
	if conv.SchemaVersion != SchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", conv.SchemaVersion, SchemaVersion)
	}
	if conv.Session.Title != DefaultTitle {
		t.Errorf("Title = %q, want %q", conv.Session.Title, DefaultTitle)
	}
	if conv.Session.TitleType != TitleSystem {
		t.Errorf("TitleType = %q, want %q", conv.Session.TitleType, TitleSystem)
	}
	if conv.Session.CreatedAt != conv.Session.UpdatedAt {
		t.Error("CreatedAt and UpdatedAt should match on creation")
	}
	if len(conv.Messages) != 0 {
		t.Errorf("Messages count = %d, want 0", len(conv.Messages))
	}
}

func TestNewConversation_UniqueIDs(t *testing.T) {
	a := NewConversation()
	b := NewConversation()
	if a.ID == b.ID {
		t.Errorf("two conversations share id %q", a.ID)
	}
}

func TestNextMessageID_StrictlyIncreasing(t *testing.T) {
	conv := NewConversation()

	for i := 1; i <= 5; i++ {
		msg := CreateMessage(conv, RoleUser, "m", "p", "P", nil, StatusFinished)
		if msg.ID != i {
			t.Errorf("message %d got id %d", i, msg.ID)
		}
	}

	// Deleting a middle message must not cause id reuse.
	if !conv.RemoveMessage(3) {
		t.Fatal("RemoveMessage(3) returned false")
	}
	msg := CreateMessage(conv, RoleUser, "m", "p", "P", nil, StatusFinished)
	if msg.ID != 6 {
		t.Errorf("id after delete = %d, want 6", msg.ID)
	}

	// Deleting the highest id lets the max fall back, but ids assigned while
	// it existed were never duplicated.
	conv.RemoveMessage(6)
	msg = CreateMessage(conv, RoleUser, "m", "p", "P", nil, StatusFinished)
	if msg.ID != 6 {
		t.Errorf("id after deleting max = %d, want 6", msg.ID)
	}
}

func TestNextFragmentID_PerMessageScope(t *testing.T) {
	conv := NewConversation()
	first := CreateMessage(conv, RoleUser, "m", "p", "P", nil, StatusFinished)
	second := CreateMessage(conv, RoleAssistant, "m", "p", "P", nil, StatusFinished)

	for i := 1; i <= 3; i++ {
		frag := CreateMessageFragment(first, FragmentRequest, "a", 0)
		if frag.ID != i {
			t.Errorf("first message fragment %d got id %d", i, frag.ID)
		}
	}

	// Second message's fragment ids are independent of the first's.
	frag := CreateMessageFragment(second, FragmentResponse, "b", 2)
	if frag.ID != 1 {
		t.Errorf("second message fragment id = %d, want 1", frag.ID)
	}
}

func TestCreateMessage_Defaults(t *testing.T) {
	conv := NewConversation()
	parent := 7
	msg := CreateMessage(conv, RoleAssistant, "gpt-x", "p1", "Provider1", &parent, StatusWIP)

	if msg.ParentID == nil || *msg.ParentID != 7 {
		t.Errorf("ParentID = %v, want 7", msg.ParentID)
	}
	if msg.Feedback != FeedbackNotProvided {
		t.Errorf("Feedback = %q, want %q", msg.Feedback, FeedbackNotProvided)
	}
	if msg.Status != StatusWIP {
		t.Errorf("Status = %q, want %q", msg.Status, StatusWIP)
	}
	if msg.Files == nil || msg.Fragments == nil {
		t.Error("Files and Fragments must be non-nil so they serialize as []")
	}
	if msg.HasPendingFragment {
		t.Error("HasPendingFragment is reserved and must default to false")
	}
}

func TestLatestMessage_ByIDNotPosition(t *testing.T) {
	conv := NewConversation()
	CreateMessage(conv, RoleUser, "m", "p", "P", nil, StatusFinished)      // id 1
	CreateMessage(conv, RoleAssistant, "m", "p", "P", nil, StatusFinished) // id 2
	CreateMessage(conv, RoleUser, "m", "p", "P", nil, StatusFinished)      // id 3

	// Remove id 3; latest must fall back to id 2 regardless of array order.
	conv.RemoveMessage(3)
	latest := conv.LatestMessage()
	if latest == nil || latest.ID != 2 {
		t.Fatalf("LatestMessage = %v, want id 2", latest)
	}
}

func TestMessagesByRole(t *testing.T) {
	conv := NewConversation()
	CreateMessage(conv, RoleUser, "m", "p", "P", nil, StatusFinished)
	CreateMessage(conv, RoleAssistant, "m", "p", "P", nil, StatusFinished)
	CreateMessage(conv, RoleUser, "m", "p", "P", nil, StatusFinished)
	CreateMessage(conv, RoleSystem, "m", "p", "P", nil, StatusFinished)

	users := conv.MessagesByRole(RoleUser)
	if len(users) != 2 {
		t.Errorf("user messages = %d, want 2", len(users))
	}
	if conv.MessagesByRole(RoleSystem)[0].ID != 4 {
		t.Error("system message lookup failed")
	}
}

func TestRemoveMessage_DanglingParentTolerated(t *testing.T) {
	conv := NewConversation()
	CreateMessage(conv, RoleUser, "m", "p", "P", nil, StatusFinished) // id 1
	parent := 1
	child := CreateMessage(conv, RoleAssistant, "m", "p", "P", &parent, StatusWIP) // id 2

	if !conv.RemoveMessage(1) {
		t.Fatal("RemoveMessage(1) returned false")
	}

	// The child keeps its parent_id even though the target is gone.
	if child.ParentID == nil || *child.ParentID != 1 {
		t.Errorf("ParentID = %v, want dangling 1", child.ParentID)
	}
	if conv.FindMessage(1) != nil {
		t.Error("deleted message still present")
	}
}

func TestMessageJSON_FieldNames(t *testing.T) {
	conv := NewConversation()
	msg := CreateMessage(conv, RoleUser, "gpt-x", "p1", "Provider1", nil, StatusFinished)
	CreateMessageFragment(msg, FragmentRequest, "hi", 0)

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	// The wire names are a compatibility contract with existing documents.
	for _, key := range []string{
		"id", "parent_id", "accumulated_token_usage", "model", "provider",
		"providerName", "thinking_enabled", "role", "feedback", "status",
		"files", "fragments", "has_pending_fragment",
	} {
		if _, ok := raw[key]; !ok {
			t.Errorf("marshaled message missing field %q", key)
		}
	}
	if raw["parent_id"] != nil {
		t.Errorf("parent_id = %v, want null for a root message", raw["parent_id"])
	}
}
