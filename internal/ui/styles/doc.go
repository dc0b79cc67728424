// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the muse TUI.
//
// All colors use lipgloss.AdaptiveColor so a single palette serves light and
// dark terminals. NewTheme either trusts termenv's background detection or
// forces one side when the user configured ui.theme.
package styles
