// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mudlark Contributors

// Package script defines the capability surface shared between the host
// and every loaded script module. Types in this package are bound into
// each script partition with their host-side identity; they are never
// jailed.
package script

// EventType identifies the kind of event raised into a module.
type EventType string

// The closed event vocabulary. Extending it is a compile-time change to
// the host; modules cannot define new event types.
const (
	EventConnectionEstablished EventType = "connection_established"
	EventConnectionLost        EventType = "connection_lost"
	EventDataReceived          EventType = "data_received"
	EventDataSent              EventType = "data_sent"
	EventProfileOpened         EventType = "profile_opened"
	EventProfileClosing        EventType = "profile_closing"
)

// Event is an immutable value raised into a module. Payload carries at
// most one string; payload-free events leave it empty.
type Event struct {
	Type    EventType
	Payload string
}

// Name returns the event type as a string.
func (e Event) Name() string {
	return string(e.Type)
}

// String implements fmt.Stringer.
func (e Event) String() string {
	if e.Payload == "" {
		return string(e.Type)
	}
	return string(e.Type) + ": " + e.Payload
}

// Valid reports whether the event type belongs to the vocabulary.
func (t EventType) Valid() bool {
	switch t {
	case EventConnectionEstablished, EventConnectionLost,
		EventDataReceived, EventDataSent,
		EventProfileOpened, EventProfileClosing:
		return true
	default:
		return false
	}
}
