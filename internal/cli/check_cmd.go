// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// errCheckFailed is returned when a required service is unreachable.
var errCheckFailed = errors.New("one or more checks failed")

func newCheckCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "check",
		Aliases: []string{"doctor"},
		Short:   "Check configuration and provider connectivity",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(g, func(a *app) error {
				return runChecks(cmd.Context(), g, a)
			})
		},
	}
}

func runChecks(ctx context.Context, g *globalOptions, a *app) error {
	failed := false
	report := func(status, label, detail string) {
		fmt.Fprintf(g.out, "%s %s %s\n", RenderStatus(status), RenderLabel(label), detail)
	}

	fmt.Fprintln(g.out, TitleStyle.Render("muse check"))

	if a.llm.IsConfigured() {
		cctx, cancel := context.WithTimeout(ctx, requestTimeout)
		err := a.llm.TestConnection(cctx)
		cancel()
		if err != nil {
			failed = true
			report("fail", "OpenRouter", err.Error())
		} else {
			report("ok", "OpenRouter", "key "+a.llm.KeyFingerprint())
		}
	} else {
		failed = true
		report("fail", "OpenRouter", "no API key (set openrouter.api_key or OPENROUTER_API_KEY)")
	}

	if a.speech.IsConfigured() {
		cctx, cancel := context.WithTimeout(ctx, requestTimeout)
		err := a.speech.TestConnection(cctx)
		cancel()
		if err != nil {
			report("warn", "ElevenLabs", err.Error())
		} else {
			report("ok", "ElevenLabs", "voices reachable")
			checkPersonaVoice(ctx, a, report)
		}
	} else {
		report("warn", "ElevenLabs", "no API key, narration will not be spoken")
	}

	if name := a.playback.Player().Name(); name != "none" {
		report("ok", "Audio player", name)
	} else {
		report("warn", "Audio player", "none found (set audio.player)")
	}

	report("ok", "Personas", fmt.Sprintf("%d stored, active %s", len(a.store.List()), a.store.Active().Name))

	if failed {
		return errCheckFailed
	}
	return nil
}

// checkPersonaVoice reports whether the active persona's voice exists on the
// account.
func checkPersonaVoice(ctx context.Context, a *app, report func(status, label, detail string)) {
	p := a.store.Active()
	if !p.HasVoice() {
		report("warn", "Persona voice", p.Name+" has no voice, narration will not be spoken")
		return
	}
	cctx, cancel := context.WithTimeout(ctx, requestTimeout)
	list := a.speech.ListVoices(cctx)
	cancel()
	if list.Fallback {
		report("warn", "Persona voice", fmt.Sprintf("could not list voices: %v", list.Err))
		return
	}
	if v, ok := list.Find(p.VoiceID); ok {
		report("ok", "Persona voice", fmt.Sprintf("%s speaks as %s", p.Name, v.Name))
		return
	}
	report("warn", "Persona voice", fmt.Sprintf("%s not available to this account (see muse voices)", p.VoiceID))
}
