// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mudlark Contributors

package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mudlark-mud/mudlark/pkg/script"
)

// Dispatcher receives events for a profile. Satisfied by the script
// manager.
type Dispatcher interface {
	Dispatch(profile string, event script.Event)
}

// dispatchWarnAfter is how long a module handler may run before the
// pump logs it as slow. The runtime never interrupts module code; the
// warning is the only consequence.
const dispatchWarnAfter = 5 * time.Second

// Pump drains a profile's event channel into a Dispatcher. Listeners
// observe every event the pump delivers, after the dispatch.
type Pump struct {
	profile    string
	dispatcher Dispatcher
	listeners  []script.Listener
	wg         sync.WaitGroup
}

// NewPump creates a pump for the profile.
func NewPump(profile string, d Dispatcher, listeners ...script.Listener) *Pump {
	return &Pump{profile: profile, dispatcher: d, listeners: listeners}
}

// Start begins draining events until ctx is done or the channel closes.
func (p *Pump) Start(ctx context.Context, events <-chan script.Event) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				p.deliver(event)
			}
		}
	}()
}

// Stop waits for the pump to finish.
func (p *Pump) Stop() {
	p.wg.Wait()
}

// deliver dispatches one event, logging when the handler overruns the
// warning deadline. The dispatch itself always runs to completion.
func (p *Pump) deliver(event script.Event) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.dispatcher.Dispatch(p.profile, event)
	}()

	timer := time.NewTimer(dispatchWarnAfter)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		slog.Warn("script dispatch exceeded deadline, not interrupting",
			"profile", p.profile,
			"event", event.Name(),
			"deadline", dispatchWarnAfter.String())
		<-done
	}

	for _, l := range p.listeners {
		if err := l.OnEvent(event); err != nil {
			slog.Warn("event listener failed",
				"profile", p.profile,
				"event", event.Name(),
				"error", err)
		}
	}
}
