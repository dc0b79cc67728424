// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package muse implements the two-phase reply protocol used for every user
// turn.
//
// Phase one asks the model, without streaming, for a short first-person
// narration tagged as [NARRATION: ...]. Phase two streams the main reply,
// with the narration fed back as an assistant turn so the model continues
// from it. The narration is therefore available (and can be voiced) before
// the first fragment of the reply arrives.
package muse
