// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package persona

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/muse-tui/internal/storage"
)

var fixedNow = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T, opts ...storage.Option) (*Store, *storage.MemoryBackend) {
	t.Helper()
	b := storage.NewMemoryBackend(opts...)
	return NewStore(b, WithClock(func() time.Time { return fixedNow })), b
}

func samplePersona(id, name string) Persona {
	p := Default(fixedNow.Add(-time.Hour))
	p.ID = id
	p.Name = name
	p.Title = "Poet"
	p.VoiceID = "EXAVITQu4vr4xnSDxMaL"
	p.NarrationLength = NarrationShort
	p.AvatarURL = "https://example.com/" + id + ".png"
	return p
}

// =============================================================================
// ROUND TRIP / UPSERT
// =============================================================================

func TestStore_SaveGetRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	p := samplePersona("p1", "Lyra")

	require.NoError(t, s.Save(p))
	got, err := s.Get("p1")
	require.NoError(t, err)

	assert.True(t, p.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, p.UpdatedAt.Equal(got.UpdatedAt))
	got.CreatedAt, got.UpdatedAt = p.CreatedAt, p.UpdatedAt
	assert.Equal(t, p, got)
}

func TestStore_SaveFillsZeroTimestamps(t *testing.T) {
	s, _ := newTestStore(t)
	p := samplePersona("p1", "Lyra")
	p.CreatedAt, p.UpdatedAt = time.Time{}, time.Time{}

	require.NoError(t, s.Save(p))
	got, err := s.Get("p1")
	require.NoError(t, err)
	assert.True(t, fixedNow.Equal(got.CreatedAt))
	assert.True(t, fixedNow.Equal(got.UpdatedAt))
}

func TestStore_SaveReplacesInPlace(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Save(samplePersona("a", "A")))
	require.NoError(t, s.Save(samplePersona("b", "B")))
	require.NoError(t, s.Save(samplePersona("c", "C")))

	updated := samplePersona("b", "B2")
	require.NoError(t, s.Save(updated))

	list := s.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{list[0].ID, list[1].ID, list[2].ID})
	assert.Equal(t, "B2", list[1].Name)
}

func TestStore_SaveRejectsInvalid(t *testing.T) {
	s, _ := newTestStore(t)
	p := samplePersona("a", "")
	assert.Error(t, s.Save(p))
	assert.Empty(t, s.List())
}

func TestStore_SaveQuotaExceeded(t *testing.T) {
	s, _ := newTestStore(t, storage.WithQuota(1200))
	require.NoError(t, s.Save(samplePersona("a", "A")))

	big := samplePersona("b", "B")
	big.SystemPrompt = strings.Repeat("x", 4096)
	err := s.Save(big)
	require.ErrorIs(t, err, storage.ErrQuotaExceeded)

	list := s.List()
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].ID)
}

// =============================================================================
// LIST / GET / DELETE
// =============================================================================

func TestStore_ListEmptyAndCorrupt(t *testing.T) {
	s, b := newTestStore(t)
	assert.Empty(t, s.List())

	require.NoError(t, b.Set(KeyPersonas, "{definitely not an array"))
	list := s.List()
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestStore_GetNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrPersonaNotFound)
}

func TestStore_Resolve(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Save(samplePersona("id-1", "Lyra")))

	p, err := s.Resolve("lyra")
	require.NoError(t, err)
	assert.Equal(t, "id-1", p.ID)

	p, err = s.Resolve("id-1")
	require.NoError(t, err)
	assert.Equal(t, "Lyra", p.Name)

	_, err = s.Resolve("nobody")
	assert.ErrorIs(t, err, ErrPersonaNotFound)
}

func TestStore_DeleteIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Save(samplePersona("a", "A")))
	require.NoError(t, s.Save(samplePersona("b", "B")))

	require.NoError(t, s.Delete("a"))
	require.NoError(t, s.Delete("a"))
	require.NoError(t, s.Delete("never-existed"))

	list := s.List()
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].ID)
}

// =============================================================================
// ACTIVE POINTER
// =============================================================================

func TestStore_ActiveFallsBackToDefault(t *testing.T) {
	s, _ := newTestStore(t)
	assert.Equal(t, "", s.ActiveID())

	active := s.Active()
	assert.Equal(t, Default(fixedNow), active)

	require.NoError(t, s.SetActiveID("dangling"))
	assert.Equal(t, DefaultID, s.Active().ID)
}

func TestStore_ActiveResolvesPointer(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Save(samplePersona("a", "A")))
	require.NoError(t, s.SetActiveID("a"))

	assert.Equal(t, "a", s.ActiveID())
	assert.Equal(t, "A", s.Active().Name)
}

func TestStore_InitializeDefault_EmptyStore(t *testing.T) {
	s, _ := newTestStore(t)

	p, err := s.InitializeDefault()
	require.NoError(t, err)
	assert.Equal(t, DefaultID, p.ID)

	list := s.List()
	require.Len(t, list, 1)
	assert.Equal(t, DefaultID, list[0].ID)
	assert.Equal(t, DefaultID, s.ActiveID())

	// A second call changes nothing.
	_, err = s.InitializeDefault()
	require.NoError(t, err)
	assert.Len(t, s.List(), 1)
}

func TestStore_InitializeDefault_PromotesFirst(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Save(samplePersona("a", "A")))
	require.NoError(t, s.Save(samplePersona("b", "B")))

	p, err := s.InitializeDefault()
	require.NoError(t, err)
	assert.Equal(t, "a", p.ID)
	assert.Equal(t, "a", s.ActiveID())
	assert.Len(t, s.List(), 2, "no default should be added when personas exist")

	require.NoError(t, s.SetActiveID("b"))
	p, err = s.InitializeDefault()
	require.NoError(t, err)
	assert.Equal(t, "b", p.ID, "a valid pointer is kept")

	require.NoError(t, s.Delete("b"))
	p, err = s.InitializeDefault()
	require.NoError(t, err)
	assert.Equal(t, "a", p.ID, "a dangling pointer is repaired")
}

// =============================================================================
// EXPORT / IMPORT
// =============================================================================

func TestStore_ExportImport(t *testing.T) {
	for _, format := range []Format{FormatYAML, FormatJSON} {
		t.Run(string(format), func(t *testing.T) {
			src, _ := newTestStore(t)
			require.NoError(t, src.Save(samplePersona("a", "Lyra")))
			require.NoError(t, src.Save(samplePersona("b", "Orin")))

			var buf bytes.Buffer
			n, err := src.Export(&buf, format, "Orin")
			require.NoError(t, err)
			assert.Equal(t, 1, n)
			assert.Contains(t, buf.String(), "Orin")
			assert.NotContains(t, buf.String(), "Lyra")

			dst, _ := newTestStore(t)
			got, err := dst.Import(bytes.NewReader(buf.Bytes()), format, false)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "b", got[0].ID)

			stored, err := dst.Get("b")
			require.NoError(t, err)
			assert.Equal(t, "Orin", stored.Name)
			assert.Equal(t, "EXAVITQu4vr4xnSDxMaL", stored.VoiceID)
			assert.Equal(t, NarrationShort, stored.NarrationLength)
		})
	}
}

func TestStore_ImportFreshIDs(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Save(samplePersona("a", "Lyra")))

	var buf bytes.Buffer
	_, err := s.Export(&buf, FormatYAML)
	require.NoError(t, err)

	got, err := s.Import(&buf, FormatYAML, true)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NotEqual(t, "a", got[0].ID)
	assert.Len(t, s.List(), 2)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("team.YML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	f, err = ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("toml")
	assert.Error(t, err)
}
