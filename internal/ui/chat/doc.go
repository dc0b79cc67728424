// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the Bubble Tea program for talking to a persona.
//
// The model owns a conversation.Orchestrator. Each turn runs in a tea.Cmd;
// orchestrator events are bridged into the program through a channel and
// every event re-renders the transcript from a snapshot, so a dropped
// fragment notification never loses text.
//
// Overlays (persona picker, persona editor, help) replace the transcript
// area while open. Slash commands typed into the input line are handled
// locally and never sent to the model.
package chat
