// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package persona

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"

	"github.com/jeranaias/muse-tui/internal/storage"
)

// Storage keys.
const (
	KeyPersonas = "muse-chat-config"
	KeyActive   = "muse-chat-active"
)

// ErrPersonaNotFound is returned when no persona has the requested id.
// Use errors.Is(err, ErrPersonaNotFound) to check for this error.
var ErrPersonaNotFound = &PersonaError{Message: "persona not found"}

// PersonaError represents a persona lookup error.
type PersonaError struct {
	Message string
}

// Error implements the error interface.
func (e *PersonaError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing persona errors.
func (e *PersonaError) Is(target error) bool {
	t, ok := target.(*PersonaError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// =============================================================================
// STORE
// =============================================================================

// Store persists personas and the active-persona pointer in a storage.Backend.
//
// Writes are read-modify-write without locking across processes; a single
// running client per backend is assumed.
type Store struct {
	backend storage.Backend
	logger  zerolog.Logger
	now     func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the store logger.
func WithLogger(l zerolog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store over backend.
func NewStore(backend storage.Backend, opts ...StoreOption) *Store {
	s := &Store{
		backend: backend,
		logger:  zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns every stored persona in stored order. Missing or undecodable
// data yields an empty list; the problem is logged, not returned.
func (s *Store) List() []Persona {
	raw, ok, err := s.backend.Get(KeyPersonas)
	if err != nil {
		s.logger.Warn().Err(err).Msg("reading personas failed, treating as empty")
		return []Persona{}
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return []Persona{}
	}

	var list []Persona
	if err := sonic.UnmarshalString(raw, &list); err != nil {
		s.logger.Warn().Err(err).Msg("stored personas are corrupt, treating as empty")
		return []Persona{}
	}
	if list == nil {
		list = []Persona{}
	}
	return list
}

func (s *Store) write(list []Persona) error {
	raw, err := sonic.MarshalString(list)
	if err != nil {
		return fmt.Errorf("encode personas: %w", err)
	}
	return s.backend.Set(KeyPersonas, raw)
}

// Get returns the persona with the given id.
func (s *Store) Get(id string) (Persona, error) {
	for _, p := range s.List() {
		if p.ID == id {
			return p, nil
		}
	}
	return Persona{}, fmt.Errorf("%w: %s", ErrPersonaNotFound, id)
}

// Resolve finds a persona by id, or by case-insensitive name.
func (s *Store) Resolve(ref string) (Persona, error) {
	ref = strings.TrimSpace(ref)
	list := s.List()
	for _, p := range list {
		if p.ID == ref {
			return p, nil
		}
	}
	for _, p := range list {
		if strings.EqualFold(p.Name, ref) {
			return p, nil
		}
	}
	return Persona{}, fmt.Errorf("%w: %s", ErrPersonaNotFound, ref)
}

// Save upserts p by id. An existing record is replaced in place; a new one is
// appended. Zero timestamps are filled with the current time.
//
// When the backend's quota is exceeded the error wraps
// storage.ErrQuotaExceeded and the stored collection is unchanged.
func (s *Store) Save(p Persona) error {
	if err := p.Validate(); err != nil {
		return err
	}
	now := s.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}

	list := s.List()
	replaced := false
	for i := range list {
		if list[i].ID == p.ID {
			list[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, p)
	}

	if err := s.write(list); err != nil {
		if errors.Is(err, storage.ErrQuotaExceeded) {
			s.logger.Warn().Err(err).Str("persona", p.ID).Msg("persona not saved: storage quota exceeded")
		} else {
			s.logger.Error().Err(err).Str("persona", p.ID).Msg("persona not saved")
		}
		return fmt.Errorf("save persona %s: %w", p.ID, err)
	}
	return nil
}

// Delete removes the persona with the given id. Absent ids are not an error.
func (s *Store) Delete(id string) error {
	list := s.List()
	kept := list[:0]
	for _, p := range list {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(list) {
		return nil
	}
	if err := s.write(kept); err != nil {
		return fmt.Errorf("delete persona %s: %w", id, err)
	}
	return nil
}

// SetActiveID records id as the active persona.
func (s *Store) SetActiveID(id string) error {
	if err := s.backend.Set(KeyActive, id); err != nil {
		return fmt.Errorf("set active persona: %w", err)
	}
	return nil
}

// ActiveID returns the active-persona pointer, or "" when unset or unreadable.
func (s *Store) ActiveID() string {
	id, ok, err := s.backend.Get(KeyActive)
	if err != nil {
		s.logger.Warn().Err(err).Msg("reading active persona failed")
		return ""
	}
	if !ok {
		return ""
	}
	return id
}

// Active resolves the active pointer. A missing or dangling pointer yields
// the built-in default persona.
func (s *Store) Active() Persona {
	if id := s.ActiveID(); id != "" {
		if p, err := s.Get(id); err == nil {
			return p
		}
	}
	return Default(s.now())
}

// InitializeDefault makes sure the store has something to talk to. An empty
// collection gets the built-in default, persisted and marked active. A
// missing or dangling pointer is moved to the first stored persona.
func (s *Store) InitializeDefault() (Persona, error) {
	list := s.List()
	if len(list) == 0 {
		d := Default(s.now())
		if err := s.Save(d); err != nil {
			return d, err
		}
		if err := s.SetActiveID(d.ID); err != nil {
			return d, err
		}
		s.logger.Info().Str("persona", d.ID).Msg("initialized default persona")
		return d, nil
	}

	id := s.ActiveID()
	for _, p := range list {
		if p.ID == id {
			return p, nil
		}
	}
	first := list[0]
	if err := s.SetActiveID(first.ID); err != nil {
		return first, err
	}
	s.logger.Info().Str("persona", first.ID).Str("previous", id).Msg("promoted first persona to active")
	return first, nil
}
