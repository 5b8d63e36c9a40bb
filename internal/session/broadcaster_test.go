// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mudlark Contributors

package session

import (
	"testing"
	"time"

	"github.com/mudlark-mud/mudlark/pkg/script"
)

func TestBroadcaster_SubscribeAndBroadcast(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe("mud1")

	b.Broadcast("mud1", script.Event{Type: script.EventDataReceived, Payload: "hi"})

	select {
	case event := <-ch:
		if event.Type != script.EventDataReceived || event.Payload != "hi" {
			t.Errorf("received %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestBroadcaster_ProfileScoping(t *testing.T) {
	b := NewBroadcaster()
	mud1 := b.Subscribe("mud1")
	mud2 := b.Subscribe("mud2")

	b.Broadcast("mud1", script.Event{Type: script.EventProfileOpened})

	select {
	case <-mud1:
	case <-time.After(time.Second):
		t.Fatal("mud1 subscriber did not receive its event")
	}

	select {
	case event := <-mud2:
		t.Errorf("mud2 received another profile's event: %+v", event)
	default:
	}
}

func TestBroadcaster_MultipleSubscribers(t *testing.T) {
	b := NewBroadcaster()
	first := b.Subscribe("mud1")
	second := b.Subscribe("mud1")

	b.Broadcast("mud1", script.Event{Type: script.EventConnectionEstablished})

	for i, ch := range []chan script.Event{first, second} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d did not receive the event", i)
		}
	}
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe("mud1")
	b.Unsubscribe("mud1", ch)

	if _, ok := <-ch; ok {
		t.Error("channel still open after unsubscribe")
	}

	// Broadcasting after unsubscribe must not panic.
	b.Broadcast("mud1", script.Event{Type: script.EventDataReceived})
}

func TestBroadcaster_DropsWhenBufferFull(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe("mud1")

	// Fill the buffer and then some; the overflow is dropped, and the
	// broadcaster must not block.
	for i := 0; i < 150; i++ {
		b.Broadcast("mud1", script.Event{Type: script.EventDataReceived})
	}

	if got := len(ch); got != 100 {
		t.Errorf("buffered events = %d, want 100", got)
	}
}

func TestBroadcaster_UnknownProfile(t *testing.T) {
	b := NewBroadcaster()
	// No subscribers at all: must be a silent no-op.
	b.Broadcast("ghost", script.Event{Type: script.EventDataReceived})
}
