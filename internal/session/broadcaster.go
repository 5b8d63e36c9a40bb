// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mudlark Contributors

// Package session feeds connection events into the script runtime.
package session

import (
	"log/slog"
	"sync"

	"github.com/mudlark-mud/mudlark/pkg/script"
)

// Broadcaster distributes events to per-profile subscribers.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[string][]chan script.Event
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[string][]chan script.Event),
	}
}

// Subscribe creates a channel receiving the profile's events.
func (b *Broadcaster) Subscribe(profile string) chan script.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan script.Event, 100)
	b.subs[profile] = append(b.subs[profile], ch)
	return ch
}

// Unsubscribe removes a channel from a profile and closes it.
func (b *Broadcaster) Unsubscribe(profile string, ch chan script.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[profile]
	for i, sub := range subs {
		if sub == ch {
			b.subs[profile] = append(subs[:i], subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Broadcast sends an event to all of a profile's subscribers. Events
// are dropped, not queued, when a subscriber's buffer is full; script
// modules must tolerate missed events.
func (b *Broadcaster) Broadcast(profile string, event script.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[profile] {
		select {
		case ch <- event:
		default:
			slog.Warn("event dropped: subscriber buffer full",
				"profile", profile,
				"event", event.Name())
		}
	}
}
