// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// ToastKind represents the type of toast notification.
type ToastKind int

const (
	ToastInfo ToastKind = iota
	ToastSuccess
	ToastError
)

const (
	// DefaultToastDuration is how long info and success toasts stay up.
	DefaultToastDuration = 4 * time.Second
	// ErrorToastDuration is longer so errors can be read.
	ErrorToastDuration = 8 * time.Second
)

var toastIDs atomic.Int64

// Toast is a transient notification shown in the status bar.
type Toast struct {
	ID        int64
	Message   string
	Kind      ToastKind
	CreatedAt time.Time
	Duration  time.Duration
}

// NewToast creates a toast with the default duration for its kind.
func NewToast(kind ToastKind, message string) Toast {
	d := DefaultToastDuration
	if kind == ToastError {
		d = ErrorToastDuration
	}
	return Toast{
		ID:        toastIDs.Add(1),
		Message:   message,
		Kind:      kind,
		CreatedAt: time.Now(),
		Duration:  d,
	}
}

// IsExpired returns true if the toast should be dismissed.
func (t Toast) IsExpired(now time.Time) bool {
	return now.Sub(t.CreatedAt) >= t.Duration
}

// ToastExpiredMsg is sent when a toast's duration has elapsed.
type ToastExpiredMsg struct {
	ID int64
}

// ExpireCmd dismisses t after its duration.
func (t Toast) ExpireCmd() tea.Cmd {
	id := t.ID
	return tea.Tick(t.Duration, func(time.Time) tea.Msg {
		return ToastExpiredMsg{ID: id}
	})
}
