// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/muse-tui/internal/speech"
	"github.com/jeranaias/muse-tui/internal/util"
)

// requestTimeout bounds one-shot provider calls made by subcommands.
const requestTimeout = 30 * time.Second

func newVoicesCommand(g *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "voices",
		Short: "List speech voices",
		Long: `List the ElevenLabs voices available to your account. When the list
cannot be fetched a small set of stock voices is shown instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(g, func(a *app) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
				defer cancel()

				list := a.speech.ListVoices(ctx)
				if asJSON {
					return printJSON(g.out, list.Voices)
				}
				if list.Fallback {
					fmt.Fprintf(g.err, "%s voice list unavailable (%v), showing defaults\n", RenderStatus("warn"), list.Err)
				}
				active := a.store.Active().VoiceID
				for _, v := range list.Voices {
					mark := "  "
					if v.ID == active {
						mark = SuccessStyle.Render("● ")
					}
					fmt.Fprintf(g.out, "%s%s %s %s\n", mark, util.PadWidth(v.Name, 20), v.ID, DimStyle.Render(v.Category))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newSayCommand(g *globalOptions) *cobra.Command {
	var voice, out string
	cmd := &cobra.Command{
		Use:   "say <text...>",
		Short: "Speak text with a persona voice",
		Long: `Synthesize text with ElevenLabs and play it. The voice defaults to the
active persona's. With --out the audio is written to a file instead.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return errors.New("nothing to say")
			}
			return withApp(g, func(a *app) error {
				voiceID := voice
				if voiceID == "" {
					voiceID = a.store.Active().VoiceID
				}
				if voiceID == "" {
					return errors.New("no voice: pass --voice or give the active persona one")
				}

				ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
				defer cancel()
				audio, err := a.speech.Synthesize(ctx, text, voiceID)
				if err != nil {
					return err
				}

				if out != "" {
					if err := os.WriteFile(out, audio, 0600); err != nil {
						return fmt.Errorf("write %s: %w", out, err)
					}
					fmt.Fprintf(g.out, "%s Wrote %d bytes to %s\n", RenderStatus("ok"), len(audio), out)
					return nil
				}

				player := a.playback.Player()
				if _, ok := player.(speech.NopPlayer); ok {
					return errors.New("no audio player found: set audio.player or use --out")
				}
				clip, err := speech.NewClip(audio)
				if err != nil {
					return err
				}
				defer clip.Release()
				return player.Play(cmd.Context(), clip)
			})
		},
	}
	cmd.Flags().StringVar(&voice, "voice", "", "voice id (default: active persona's)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write audio to this file instead of playing it")
	return cmd
}
