// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// persona_cmd.go - Persona management commands.
//
// Command: persona
// Short:   Manage personas
//
// Subcommands:
//   list                 List personas (the active one is marked)
//   show <ref>           Show one persona
//   create               Create a persona from flags
//   edit <ref>           Change the fields given as flags
//   delete <ref>         Delete a persona
//   use <ref>            Make a persona active
//   export [ref...]      Write personas as YAML or JSON
//   import <file>        Read personas from a YAML or JSON bundle
//
// <ref> is a persona id or a case-insensitive name.

package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/jeranaias/muse-tui/internal/persona"
)

func newPersonaCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "persona",
		Aliases: []string{"personas"},
		Short:   "Manage personas",
	}
	cmd.AddCommand(
		newPersonaListCommand(g),
		newPersonaShowCommand(g),
		newPersonaCreateCommand(g),
		newPersonaEditCommand(g),
		newPersonaDeleteCommand(g),
		newPersonaUseCommand(g),
		newPersonaExportCommand(g),
		newPersonaImportCommand(g),
	)
	return cmd
}

// withApp opens the app for the duration of fn.
func withApp(g *globalOptions, fn func(a *app) error) error {
	a, err := openApp(g)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printJSON(w io.Writer, v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// =============================================================================
// LIST / SHOW
// =============================================================================

func newPersonaListCommand(g *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List personas",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(g, func(a *app) error {
				list := a.store.List()
				if asJSON {
					return printJSON(g.out, list)
				}
				active := a.store.ActiveID()
				for _, p := range list {
					printPersonaLine(g.out, p, p.ID == active)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newPersonaShowCommand(g *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <name|id>",
		Short: "Show one persona",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(g, func(a *app) error {
				p, err := a.store.Resolve(args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(g.out, p)
				}
				printPersona(g.out, p, p.ID == a.store.ActiveID())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func printPersona(w io.Writer, p persona.Persona, active bool) {
	title := p.Name
	if active {
		title += " (active)"
	}
	fmt.Fprintln(w, TitleStyle.Render(title))
	row := func(label, value string) {
		if value == "" {
			value = DimStyle.Render("-")
		}
		fmt.Fprintf(w, "  %s %s\n", RenderLabel(label), ValueStyle.Render(value))
	}
	model := p.Model
	if opt, ok := persona.LookupModel(p.Model); ok {
		model = fmt.Sprintf("%s (%s)", opt.Name, p.Model)
	}
	row("ID", p.ID)
	row("Title", p.Title)
	row("Description", p.Description)
	row("Model", model)
	row("Temperature", strconv.FormatFloat(p.Temperature, 'f', 2, 64))
	row("Max tokens", strconv.Itoa(p.MaxTokens))
	row("Narration", p.NarrationLength.Label())
	row("Voice", p.VoiceID)
	row("Avatar", p.AvatarURL)
	row("Updated", p.UpdatedAt.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "  %s\n", RenderLabel("System prompt"))
	fmt.Fprintf(w, "    %s\n", DimStyle.Render(p.SystemPrompt))
}

// =============================================================================
// CREATE / EDIT
// =============================================================================

// personaFlags are the editable persona fields.
type personaFlags struct {
	name        string
	title       string
	description string
	prompt      string
	model       string
	temperature float64
	maxTokens   int
	narration   string
	voice       string
	avatar      string
}

func (f *personaFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.name, "name", "", "display name")
	fs.StringVar(&f.title, "title", "", "short role shown next to the name")
	fs.StringVar(&f.description, "description", "", "one-line description")
	fs.StringVar(&f.prompt, "prompt", "", "system prompt")
	fs.StringVar(&f.model, "model", "", "model id, e.g. openai/gpt-4o-mini")
	fs.Float64Var(&f.temperature, "temperature", 0, "sampling temperature (0-1)")
	fs.IntVar(&f.maxTokens, "max-tokens", 0, "reply token limit")
	fs.StringVar(&f.narration, "narration", "", "narration length: short, medium or long")
	fs.StringVar(&f.voice, "voice", "", "speech voice id (empty disables speech)")
	fs.StringVar(&f.avatar, "avatar", "", "avatar image URL")
}

var personaFlagNames = []string{
	"name", "title", "description", "prompt", "model",
	"temperature", "max-tokens", "narration", "voice", "avatar",
}

func (f *personaFlags) anyChanged(cmd *cobra.Command) bool {
	for _, name := range personaFlagNames {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

// apply copies the flags the user set onto p.
func (f *personaFlags) apply(cmd *cobra.Command, p *persona.Persona) {
	changed := cmd.Flags().Changed
	if changed("name") {
		p.Name = strings.TrimSpace(f.name)
	}
	if changed("title") {
		p.Title = f.title
	}
	if changed("description") {
		p.Description = f.description
	}
	if changed("prompt") {
		p.SystemPrompt = f.prompt
	}
	if changed("model") {
		p.Model = strings.TrimSpace(f.model)
	}
	if changed("temperature") {
		p.Temperature = f.temperature
	}
	if changed("max-tokens") {
		p.MaxTokens = f.maxTokens
	}
	if changed("narration") {
		p.NarrationLength = persona.NarrationLength(strings.ToLower(strings.TrimSpace(f.narration)))
	}
	if changed("voice") {
		p.VoiceID = strings.TrimSpace(f.voice)
	}
	if changed("avatar") {
		p.AvatarURL = f.avatar
	}
}

func newPersonaCreateCommand(g *globalOptions) *cobra.Command {
	var (
		flags personaFlags
		use   bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a persona",
		Long: `Create a persona. Fields not given take the default persona's values.

Example:
  muse persona create --name Nova --title "Star Guide" --voice EXAVITQu4vr4xnSDxMaL --use`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(g, func(a *app) error {
				now := timeNow()
				p := persona.Template(now)
				flags.apply(cmd, &p)
				p.CreatedAt, p.UpdatedAt = now, now
				if err := a.store.Save(p); err != nil {
					return err
				}
				if use {
					if err := a.store.SetActiveID(p.ID); err != nil {
						return err
					}
				}
				fmt.Fprintf(g.out, "%s Created %s (%s)\n", RenderStatus("ok"), p.Name, p.ID)
				return nil
			})
		},
	}
	flags.register(cmd)
	cmd.MarkFlagRequired("name")
	cmd.Flags().BoolVar(&use, "use", false, "make the new persona active")
	return cmd
}

func newPersonaEditCommand(g *globalOptions) *cobra.Command {
	var flags personaFlags
	cmd := &cobra.Command{
		Use:   "edit <name|id>",
		Short: "Change persona fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !flags.anyChanged(cmd) {
				return fmt.Errorf("nothing to change: pass at least one field flag")
			}
			return withApp(g, func(a *app) error {
				p, err := a.store.Resolve(args[0])
				if err != nil {
					return err
				}
				flags.apply(cmd, &p)
				p.UpdatedAt = timeNow()
				if err := a.store.Save(p); err != nil {
					return err
				}
				fmt.Fprintf(g.out, "%s Saved %s\n", RenderStatus("ok"), p.Name)
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// =============================================================================
// DELETE / USE
// =============================================================================

func newPersonaDeleteCommand(g *globalOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete <name|id>",
		Aliases: []string{"rm"},
		Short:   "Delete a persona",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(g, func(a *app) error {
				p, err := a.store.Resolve(args[0])
				if err != nil {
					return err
				}
				if !yes && !confirm(g, fmt.Sprintf("Delete %s? [y/N] ", p.Name)) {
					fmt.Fprintln(g.out, DimStyle.Render("Cancelled"))
					return nil
				}
				wasActive := a.store.ActiveID() == p.ID
				if err := a.store.Delete(p.ID); err != nil {
					return err
				}
				fmt.Fprintf(g.out, "%s Deleted %s\n", RenderStatus("ok"), p.Name)
				if wasActive {
					next, err := a.store.InitializeDefault()
					if err != nil {
						return err
					}
					fmt.Fprintf(g.out, "Now talking with %s\n", next.Name)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

// confirm asks a yes/no question on the command streams.
func confirm(g *globalOptions, question string) bool {
	fmt.Fprint(g.out, question)
	line, err := bufio.NewReader(g.in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func newPersonaUseCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "use <name|id>",
		Short: "Make a persona active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(g, func(a *app) error {
				p, err := a.store.Resolve(args[0])
				if err != nil {
					return err
				}
				if err := a.store.SetActiveID(p.ID); err != nil {
					return err
				}
				fmt.Fprintf(g.out, "Now talking with %s\n", p.Name)
				return nil
			})
		},
	}
}

// =============================================================================
// EXPORT / IMPORT
// =============================================================================

func newPersonaExportCommand(g *globalOptions) *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "export [name|id...]",
		Short: "Write personas as YAML or JSON",
		Long: `Write personas (all when none are named) as a YAML or JSON bundle.
The format defaults to the --out extension, then YAML.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "" {
				format = string(persona.FormatYAML)
				if out != "" {
					if f, err := persona.ParseFormat(out); err == nil {
						format = string(f)
					}
				}
			}
			f, err := persona.ParseFormat(format)
			if err != nil {
				return err
			}
			return withApp(g, func(a *app) error {
				w := g.out
				if out != "" {
					file, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
					if err != nil {
						return fmt.Errorf("create %s: %w", out, err)
					}
					defer file.Close()
					w = file
				}
				n, err := a.store.Export(w, f, args...)
				if err != nil {
					return err
				}
				if out != "" {
					fmt.Fprintf(g.out, "%s Exported %d persona(s) to %s\n", RenderStatus("ok"), n, out)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "yaml or json")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func newPersonaImportCommand(g *globalOptions) *cobra.Command {
	var (
		format string
		fresh  bool
	)
	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Read personas from a YAML or JSON bundle",
		Long: `Read personas from a bundle written by "persona export". Personas with
an existing id replace the stored one unless --fresh gives them new ids.
Use - to read standard input (the format then defaults to YAML).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := args[0]
			if format == "" {
				format = string(persona.FormatYAML)
				if src != "-" {
					format = src
				}
			}
			f, err := persona.ParseFormat(format)
			if err != nil {
				return err
			}

			r := g.in
			if src != "-" {
				file, err := os.Open(src)
				if err != nil {
					return err
				}
				defer file.Close()
				r = file
			}

			return withApp(g, func(a *app) error {
				imported, err := a.store.Import(r, f, fresh)
				if err != nil {
					return err
				}
				for _, p := range imported {
					fmt.Fprintf(g.out, "%s Imported %s (%s)\n", RenderStatus("ok"), p.Name, p.ID)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "yaml or json (default from the file extension)")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "assign new ids instead of replacing")
	return cmd
}
