// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for muse.
//
// Configuration lives in a single TOML file with sensible defaults,
// environment variable overrides, and validation. There is no global
// instance: the CLI loads a *Config once and passes the pieces each
// component needs to its constructor.
//
// # Configuration Precedence
//
// Values are taken from (highest first):
//   - Environment variables (MUSE_*, OPENROUTER_API_KEY, ELEVENLABS_API_KEY)
//   - ~/.muse/config.toml (or the --config path)
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	client := cloud.NewOpenRouterClient(cfg.OpenRouter.APIKey)
package config
