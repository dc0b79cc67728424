// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-mode chat for pipes and plain terminals.
//
// Command: chat
// Short:   Chat line by line instead of full screen
//
// Examples:
//   muse chat                       Chat with the active persona
//   muse chat --persona Nova        Chat with Nova for this session
//   echo "hello" | muse             Non-interactive stdin selects line mode
//
// Interactive Commands (during chat):
//   /help                Show available commands
//   /personas            List personas
//   /use <name|id>       Switch persona
//   /mute                Toggle narration voice
//   /export [format]     Save the transcript (md, json, yaml)
//   /clear               Start the conversation over
//   /quit                Exit chat
//   Ctrl+C               Cancel the current reply
//   Ctrl+D               Exit chat

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/muse-tui/internal/config"
	"github.com/jeranaias/muse-tui/internal/conversation"
	"github.com/jeranaias/muse-tui/internal/export"
	"github.com/jeranaias/muse-tui/internal/persona"
	"github.com/jeranaias/muse-tui/internal/util"
)

func newChatCommand(g *globalOptions) *cobra.Command {
	var ref string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat line by line instead of full screen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLineChat(cmd.Context(), g, &lineChatOptions{persona: ref})
		},
	}
	cmd.Flags().StringVarP(&ref, "persona", "p", "", "persona name or id for this session")
	return cmd
}

// =============================================================================
// INPUT
// =============================================================================

// lineReader reads one line of user input per call. io.EOF ends the chat.
type lineReader interface {
	ReadInput(prompt string) (string, error)
	Close()
}

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI and loads the saved history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	historyFile, err := config.HistoryPath()
	if err != nil {
		historyFile = ""
	}
	c := &ChatCLI{line: line, historyFile: historyFile}
	c.LoadHistory()
	return c
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if c.historyFile == "" {
		return
	}
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line with history navigation. Ctrl+C at the prompt
// is reported as io.EOF.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists command history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	if c.historyFile == "" {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// scannerInput reads lines from a pipe. No prompt is written.
type scannerInput struct {
	sc *bufio.Scanner
}

func newScannerInput(r io.Reader) *scannerInput {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &scannerInput{sc: sc}
}

func (s *scannerInput) ReadInput(string) (string, error) {
	if s.sc.Scan() {
		return s.sc.Text(), nil
	}
	if err := s.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *scannerInput) Close() {}

// =============================================================================
// SESSION
// =============================================================================

type lineChatOptions struct {
	persona string
	input   lineReader
}

// lineChat prints orchestrator events as plain text.
type lineChat struct {
	a    *app
	orch *conversation.Orchestrator
	out  io.Writer
	errw io.Writer

	mu      sync.Mutex
	printed int
}

func runLineChat(ctx context.Context, g *globalOptions, opts *lineChatOptions) error {
	if opts == nil {
		opts = &lineChatOptions{}
	}
	a, err := openApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	p := a.store.Active()
	if opts.persona != "" {
		if p, err = a.store.Resolve(opts.persona); err != nil {
			return err
		}
	}

	in := opts.input
	if in == nil {
		if g.interactive() {
			in = NewChatCLI()
		} else {
			in = newScannerInput(g.in)
		}
	}
	defer in.Close()

	lc := &lineChat{a: a, out: g.out, errw: g.err}
	orchOpts := []conversation.Option{
		conversation.WithLogger(a.log.Logger),
		conversation.WithMuted(a.cfg.Audio.Muted),
		conversation.WithObserver(lc.observe),
	}
	if s := a.synthesizer(); s != nil {
		orchOpts = append(orchOpts, conversation.WithSynthesizer(s))
	}
	lc.orch = conversation.New(a.muse, p, orchOpts...)
	defer lc.orch.Close()
	lc.orch.Start()

	for {
		input, err := in.ReadInput(PromptStyle.Render("you› "))
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(lc.out)
			return nil
		}
		if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "/") {
			if !lc.command(input) {
				return nil
			}
			continue
		}
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			return nil
		}
		lc.send(ctx, input)
	}
}

// send runs one turn. Ctrl+C cancels the reply but not the chat.
func (lc *lineChat) send(ctx context.Context, text string) {
	turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	res, err := lc.orch.Send(turnCtx, text)
	if err != nil {
		lc.printErr(err)
		return
	}
	if res.Err != nil && !errors.Is(res.Err, context.Canceled) {
		lc.printErr(res.Err)
	}
}

func (lc *lineChat) printErr(err error) {
	fmt.Fprintf(lc.errw, "%s %v\n", ErrorStyle.Render("[Error]"), err)
}

func (lc *lineChat) observe(ev conversation.Event) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	name := lc.orch.Persona().Name
	switch ev.Kind {
	case conversation.EventReset:
		fmt.Fprintf(lc.out, "%s %s\n\n", SpeakerStyle.Render(name+":"), ev.Turn.Content)
	case conversation.EventNarration:
		fmt.Fprintf(lc.out, "%s %s\n", SpeakerStyle.Render(name+":"), NarrationStyle.Render("*"+ev.Turn.Narration+"*"))
		lc.printed = 0
	case conversation.EventFragment:
		if len(ev.Turn.Content) > lc.printed {
			fmt.Fprint(lc.out, ev.Turn.Content[lc.printed:])
			lc.printed = len(ev.Turn.Content)
		}
	case conversation.EventSettled:
		if ev.Turn.Failed {
			if lc.printed > 0 {
				fmt.Fprintln(lc.out)
			}
			fmt.Fprintln(lc.out, WarningStyle.Render(ev.Turn.Content))
		} else {
			fmt.Fprintln(lc.out)
		}
		fmt.Fprintln(lc.out)
		lc.printed = 0
	case conversation.EventSpeechReady:
		if lc.a.cfg.Audio.Autoplay && !lc.orch.Muted() {
			lc.a.playback.Start(ev.Clip, nil)
		}
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

var lineCommands = []struct{ name, usage string }{
	{"/help", "show this help"},
	{"/personas", "list personas"},
	{"/use <name|id>", "switch persona"},
	{"/mute", "toggle narration voice"},
	{"/export [md|json|yaml]", "save the transcript"},
	{"/clear", "start the conversation over"},
	{"/quit", "exit"},
}

// command runs a slash command and reports whether the chat continues.
func (lc *lineChat) command(line string) bool {
	fields := strings.Fields(line)
	name, args := strings.ToLower(fields[0]), strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

	switch name {
	case "/help", "/?":
		for _, c := range lineCommands {
			fmt.Fprintf(lc.out, "  %s %s\n", util.PadWidth(c.name, 24), DimStyle.Render(c.usage))
		}
	case "/personas", "/persona":
		active := lc.orch.Persona().ID
		for _, p := range lc.a.store.List() {
			printPersonaLine(lc.out, p, p.ID == active)
		}
	case "/use":
		if args == "" {
			lc.printErr(errors.New("usage: /use <name|id>"))
			break
		}
		p, err := lc.a.store.Resolve(args)
		if err != nil {
			lc.printErr(err)
			break
		}
		if err := lc.a.store.SetActiveID(p.ID); err != nil {
			lc.printErr(err)
			break
		}
		lc.a.playback.Stop()
		lc.orch.SwitchPersona(p)
	case "/mute":
		muted := !lc.orch.Muted()
		lc.orch.SetMuted(muted)
		if muted {
			lc.a.playback.Stop()
			fmt.Fprintln(lc.out, DimStyle.Render("Voice muted"))
		} else {
			fmt.Fprintln(lc.out, DimStyle.Render("Voice on"))
		}
	case "/export":
		path, err := exportSession(lc.orch, args, "")
		if err != nil {
			lc.printErr(err)
			break
		}
		fmt.Fprintln(lc.out, SuccessStyle.Render("Exported to "+path))
	case "/clear":
		lc.a.playback.Stop()
		lc.orch.Start()
	case "/quit", "/exit", "/q":
		return false
	default:
		lc.printErr(fmt.Errorf("unknown command %s (try /help)", name))
	}
	return true
}

// exportSession writes the orchestrator's transcript in format to dir.
func exportSession(orch *conversation.Orchestrator, format, dir string) (string, error) {
	opts := export.DefaultOptions()
	if dir != "" {
		opts.OutputDir = dir
	}
	exporter, err := export.ForFormat(format, opts)
	if err != nil {
		return "", err
	}
	t := export.NewTranscript(orch.Persona(), orch.Transcript(), timeNow())
	return export.ToFile(t, exporter, opts)
}

// printPersonaLine writes one persona summary, marking the active one.
func printPersonaLine(w io.Writer, p persona.Persona, active bool) {
	mark := "  "
	if active {
		mark = SuccessStyle.Render("● ")
	}
	voice := ""
	if p.HasVoice() {
		voice = DimStyle.Render(" ♪")
	}
	fmt.Fprintf(w, "%s%s, %s%s %s\n", mark, p.Name, p.Title, voice, DimStyle.Render("("+p.ID+")"))
}
