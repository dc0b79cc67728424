// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Configuration commands.
//
// Command: config
// Short:   Show or change configuration
//
// Subcommands:
//   init [--force]       Write a default config file
//   show                 Print the effective configuration (keys redacted)
//   path                 Print the config file location
//   get <key>            Print one value, e.g. audio.muted
//   set <key> <value>    Change one value in the config file
//   keys                 List every key

package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/muse-tui/internal/config"
)

func newConfigCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change configuration",
	}
	cmd.AddCommand(
		newConfigInitCommand(g),
		newConfigShowCommand(g),
		newConfigPathCommand(g),
		newConfigGetCommand(g),
		newConfigSetCommand(g),
		newConfigKeysCommand(g),
	)
	return cmd
}

// resolveConfigPath returns the --config path or the default location.
func (g *globalOptions) resolveConfigPath() (string, error) {
	if g.configPath != "" {
		return g.configPath, nil
	}
	return config.DefaultPath()
}

// loadFileConfig reads only the config file, without environment
// overrides, so that saving it does not persist them.
func loadFileConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		if err := config.LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return cfg, nil
}

func isSecretKey(key string) bool {
	return strings.HasSuffix(strings.ToLower(key), "api_key")
}

func newConfigInitCommand(g *globalOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := g.resolveConfigPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(config.Default(), path); err != nil {
				return err
			}
			fmt.Fprintf(g.out, "%s Wrote %s\n", RenderStatus("ok"), path)
			fmt.Fprintln(g.out, DimStyle.Render("Add your keys with: muse config set openrouter.api_key <key>"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newConfigShowCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(g.configPath)
			if err != nil {
				return err
			}
			fmt.Fprint(g.out, cfg.String())
			return nil
		},
	}
}

func newConfigPathCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := g.resolveConfigPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(g.out, path)
			return nil
		},
	}
}

func newConfigGetCommand(g *globalOptions) *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print one configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(g.configPath)
			if err != nil {
				return err
			}
			v, err := cfg.Get(args[0])
			if err != nil {
				return err
			}
			if s, ok := v.(string); ok && s != "" && isSecretKey(args[0]) && !reveal {
				v = "[REDACTED]"
			}
			fmt.Fprintln(g.out, v)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "print API keys in full")
	return cmd
}

func newConfigSetCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one value in the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := g.resolveConfigPath()
			if err != nil {
				return err
			}
			cfg, err := loadFileConfig(path)
			if err != nil {
				return err
			}
			key, value := args[0], args[1]
			if err := cfg.Set(key, value); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(cfg, path); err != nil {
				return err
			}
			if isSecretKey(key) {
				value = "[REDACTED]"
			}
			fmt.Fprintf(g.out, "%s %s = %s\n", RenderStatus("ok"), key, value)
			return nil
		},
	}
}

func newConfigKeysCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List every configuration key",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, k := range config.AllKeys() {
				fmt.Fprintln(g.out, k)
			}
		},
	}
}
