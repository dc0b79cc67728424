// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export_test

import (
	"fmt"
	"time"

	"github.com/jeranaias/muse-tui/internal/export"
	"github.com/jeranaias/muse-tui/internal/model"
	"github.com/jeranaias/muse-tui/internal/persona"
)

func ExampleMarkdownExporter() {
	now := time.Date(2025, 3, 1, 14, 30, 0, 0, time.UTC)
	turns := []model.Turn{
		model.NewMuseTurn("Hello.", "*settles in*", now),
		model.NewUserTurn("Hi", now),
	}
	t := export.NewTranscript(persona.Default(now), turns, now)

	out, err := export.NewMarkdownExporter(&export.Options{IncludeNarration: true}).Export(t)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Print(string(out))
	// Output:
	// # Conversation with Aria
	//
	// ## Conversation
	//
	// ### Aria
	//
	// *settles in*
	//
	// Hello.
	//
	// ---
	//
	// ### You
	//
	// Hi
	//
	//
	// ---
	//
	// *Exported from muse on March 1, 2025 at 2:30 PM*
}
