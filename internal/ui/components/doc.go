// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the reusable pieces of the muse TUI.
//
// # Components
//
//   - Header: avatar initial, persona name and title badge, model, audio state
//   - StatusBar: key hints with a transient toast on the left
//   - PersonaPicker: filterable persona list (activate, edit, delete, new)
//   - PersonaEditor: the persona form
//
// Components are plain structs driven by the chat model. They take the theme
// at construction and never talk to the network or the store themselves;
// editors and pickers report what the user chose through an action value.
package components
