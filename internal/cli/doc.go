// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the muse command line.
//
// Running muse with no subcommand starts the full-screen chat when stdin is
// a terminal and the line-mode chat otherwise. Subcommands manage personas,
// voices and configuration without starting a conversation.
//
// Every command builds its services through openApp: config, then logging,
// then the persona store, then the provider clients.
package cli
