// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var timeNow = time.Now

// globalOptions holds the persistent flags and the process streams.
type globalOptions struct {
	configPath string
	storage    string
	verbose    bool

	in  io.Reader
	out io.Writer
	err io.Writer
	// interactive reports whether stdin is a terminal.
	interactive func() bool
}

// NewRootCommand builds the muse command tree on the process streams.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&globalOptions{
		in:          os.Stdin,
		out:         os.Stdout,
		err:         os.Stderr,
		interactive: IsTTY,
	})
}

func newRootCommand(g *globalOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "muse",
		Short: "Chat with AI personas that narrate, reply and speak",
		Long: `muse is a terminal chat client for AI personas.

Each reply comes in two parts: a short first-person narration of the
persona's reaction, then the streamed response. Personas with a voice have
their narration spoken aloud.

Quick Start:
  muse config init          # write ~/.muse/config.toml, then add API keys
  muse                      # start chatting
  muse persona create --name Nova --title "Star Guide"
  muse persona use Nova`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if g.interactive() {
				return runTUI(cmd.Context(), g)
			}
			return runLineChat(cmd.Context(), g, nil)
		},
	}
	root.SetIn(g.in)
	root.SetOut(g.out)
	root.SetErr(g.err)
	root.SetVersionTemplate(`{{printf "muse %s\n" .Version}}`)

	root.PersistentFlags().StringVar(&g.configPath, "config", "", "config file (default ~/.muse/config.toml)")
	root.PersistentFlags().StringVar(&g.storage, "storage", "", "persona storage backend: file, sqlite or memory")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log to stderr at debug level")

	root.AddCommand(
		newChatCommand(g),
		newPersonaCommand(g),
		newVoicesCommand(g),
		newSayCommand(g),
		newCheckCommand(g),
		newConfigCommand(g),
		newVersionCommand(g),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	if err := NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error:")+" "+err.Error())
		return 1
	}
	return 0
}

func newVersionCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(g.out, "muse %s\n", Version)
			fmt.Fprintf(g.out, "  commit: %s\n", GitCommit)
			fmt.Fprintf(g.out, "  built:  %s\n", BuildDate)
			fmt.Fprintf(g.out, "  go:     %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
