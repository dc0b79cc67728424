// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/jeranaias/muse-tui/internal/cloud"
	"github.com/jeranaias/muse-tui/internal/config"
	"github.com/jeranaias/muse-tui/internal/conversation"
	"github.com/jeranaias/muse-tui/internal/logging"
	"github.com/jeranaias/muse-tui/internal/muse"
	"github.com/jeranaias/muse-tui/internal/persona"
	"github.com/jeranaias/muse-tui/internal/speech"
	"github.com/jeranaias/muse-tui/internal/storage"
)

// app bundles the services a command needs.
type app struct {
	cfg      *config.Config
	log      *logging.Logger
	backend  storage.Backend
	store    *persona.Store
	llm      *cloud.OpenRouterClient
	muse     *muse.Client
	speech   *speech.Client
	playback *speech.Playback
}

// openApp loads configuration and wires every service. The --storage flag
// overrides the configured backend.
func openApp(g *globalOptions) (*app, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.storage != "" {
		cfg.Storage.Backend = g.storage
	}

	logPath, err := cfg.LogPath()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log, logging.Options{Path: logPath, Verbose: g.verbose, Console: g.err})
	if err != nil {
		return nil, err
	}
	log := logger.Logger

	dir, err := config.ConfigDir()
	if err != nil {
		logger.Close()
		return nil, err
	}
	backend, err := storage.Open(cfg.Storage.Backend, dir, cfg.Storage.Path,
		storage.WithQuota(cfg.Storage.QuotaBytes),
		storage.WithLogger(log),
	)
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("open persona storage: %w", err)
	}

	store := persona.NewStore(backend, persona.WithLogger(log))
	if _, err := store.InitializeDefault(); err != nil {
		log.Warn().Err(err).Msg("could not persist the default persona")
	}

	llm := cloud.NewOpenRouterClient(cfg.OpenRouter.APIKey).
		WithBaseURL(cfg.OpenRouter.BaseURL).
		WithTimeout(time.Duration(cfg.OpenRouter.TimeoutSecs) * time.Second).
		WithSiteURL(cfg.OpenRouter.SiteURL).
		WithSiteName(cfg.OpenRouter.SiteName).
		WithLogger(log)

	el := cfg.ElevenLabs
	sp := speech.NewClient(el.APIKey,
		speech.WithBaseURL(el.BaseURL),
		speech.WithModelID(el.ModelID),
		speech.WithVoiceSettings(speech.VoiceSettings{
			Stability:       el.Stability,
			SimilarityBoost: el.SimilarityBoost,
			Style:           el.Style,
			UseSpeakerBoost: el.SpeakerBoost,
		}),
		speech.WithLogger(log),
	)

	log.Debug().
		Str("storage", cfg.Storage.Backend).
		Bool("openrouter", llm.IsConfigured()).
		Bool("elevenlabs", sp.IsConfigured()).
		Msg("muse started")

	return &app{
		cfg:      cfg,
		log:      logger,
		backend:  backend,
		store:    store,
		llm:      llm,
		muse:     muse.NewClient(llm, log),
		speech:   sp,
		playback: speech.NewPlayback(speech.DetectPlayer(cfg.Audio.Player)),
	}, nil
}

// synthesizer returns the speech client when it can be used.
func (a *app) synthesizer() conversation.Synthesizer {
	if a.speech.IsConfigured() {
		return a.speech
	}
	return nil
}

// Close stops audio and releases storage and the log file.
func (a *app) Close() error {
	a.playback.Stop()
	return errors.Join(a.backend.Close(), a.log.Close())
}
