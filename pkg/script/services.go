// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mudlark Contributors

package script

// Surface is a named UI output target a module may write to, such as a
// secondary output pane or a status bar segment.
type Surface interface {
	// Name returns the surface's registered name.
	Name() string

	// Write appends text to the surface.
	Write(text string) error
}

// HostServices is the callback surface a module receives at init time.
// Implementations are provided by the host; modules never implement it.
//
// Handles to HostServices are revocable: after the owning partition is
// reloaded or deactivated, every call fails. Modules must drop stale
// handles and use the one passed to the new instance's init.
type HostServices interface {
	// Send transmits text to the connected world as if typed by the user.
	Send(text string) error

	// SendSilently transmits text without echoing it to the user's output.
	SendSilently(text string) error

	// Log writes a line to the profile's script log. When colorLog is
	// true the text is rendered with color codes interpreted.
	Log(text string, colorLog bool)

	// ConfigDir returns the per-profile configuration directory path.
	ConfigDir() string

	// Surface returns the named UI surface, or an error if no surface
	// with that name is registered.
	Surface(name string) (Surface, error)
}

// Listener observes events on the host side after they have been
// offered to the profile's module. The session pump notifies listeners
// on every delivery; listener failures are logged, never propagated.
type Listener interface {
	OnEvent(event Event) error
}
