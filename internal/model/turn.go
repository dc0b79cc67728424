// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role identifies who produced a transcript turn.
type Role string

const (
	RoleUser Role = "user"
	RoleMuse Role = "muse"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleMuse:
		return "Muse"
	default:
		return string(r)
	}
}

// =============================================================================
// TURN TYPE
// =============================================================================

// Turn is a single transcript entry.
type Turn struct {
	ID        string    `json:"id" yaml:"id"`
	Role      Role      `json:"role" yaml:"role"`
	Content   string    `json:"content" yaml:"content"`
	Narration string    `json:"narration,omitempty" yaml:"narration,omitempty"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`

	// Pending is set on the muse placeholder until its turn settles.
	Pending bool `json:"-" yaml:"-"`
	// Failed marks a turn whose content was replaced by the error reply.
	Failed bool `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// NewUserTurn creates a user turn stamped with now.
func NewUserTurn(content string, now time.Time) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: now,
	}
}

// NewMuseTurn creates a settled muse turn.
func NewMuseTurn(content, narration string, now time.Time) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      RoleMuse,
		Content:   content,
		Narration: narration,
		Timestamp: now,
	}
}

// NewPlaceholder creates the empty muse turn shown while a reply is generated.
func NewPlaceholder(now time.Time) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      RoleMuse,
		Timestamp: now,
		Pending:   true,
	}
}

// IsMuse reports whether the turn was produced by the persona.
func (t Turn) IsMuse() bool {
	return t.Role == RoleMuse
}

// IsLoading reports whether the view should show a loading indicator.
func (t Turn) IsLoading() bool {
	return t.Pending && t.Content == ""
}
