// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/muse-tui/internal/conversation"
	"github.com/jeranaias/muse-tui/internal/speech"
)

// eventMsg carries an orchestrator notification into the program.
type eventMsg struct {
	Event conversation.Event
}

// turnDoneMsg is returned by the command running a turn.
type turnDoneMsg struct {
	Result conversation.TurnResult
	Err    error
}

// voicesLoadedMsg delivers the voice list for the editor.
type voicesLoadedMsg struct {
	List speech.VoiceList
}

// playbackDoneMsg reports that a clip stopped playing.
type playbackDoneMsg struct {
	Err error
}

// storeChangedMsg reports persona changes made by another process.
type storeChangedMsg struct{}

// watchFailedMsg reports that the store watcher could not start.
type watchFailedMsg struct {
	Err error
}
