// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"github.com/jeranaias/parley/internal/model"
)

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Turn is one provider-visible exchange unit.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildTranscript projects a conversation into the turns sent to a provider.
//
// Messages are walked in stored order. Only USER and ASSISTANT messages
// contribute, and each REQUEST or RESPONSE fragment becomes its own turn:
// granularity is per fragment, not per message. THINK fragments and
// SYSTEM-role messages never reach the provider.
func BuildTranscript(conv *model.Conversation) []Turn {
	var turns []Turn

	for _, msg := range conv.Messages {
		var role string
		switch msg.Role {
		case model.RoleUser:
			role = "user"
		case model.RoleAssistant:
			role = "assistant"
		default:
			continue
		}

		for _, frag := range msg.Fragments {
			if frag.Type != model.FragmentRequest && frag.Type != model.FragmentResponse {
				continue
			}
			turns = append(turns, Turn{Role: role, Content: frag.Content})
		}
	}

	return turns
}
