package script

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/samber/oops"

	scriptpkg "github.com/mudlark-mud/mudlark/pkg/script"
)

// Manager owns one Host per active profile. Hosts are fully independent;
// the only state shared between profiles is the immutable capability
// surface.
type Manager struct {
	hosts map[string]*Host
	mu    sync.RWMutex
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		hosts: make(map[string]*Host),
	}
}

// Activate builds and activates a module host for the profile named in
// cfg. Activating a profile that already has a host replaces it, exactly
// as a reload would.
func (m *Manager) Activate(ctx context.Context, cfg HostConfig) error {
	host := NewHost(cfg)
	if err := host.Activate(ctx); err != nil {
		return oops.In("script").
			With("profile", cfg.Profile).
			With("entry", cfg.Entry).
			Hint("profile activation failed, scripting disabled for this profile").
			Wrap(err)
	}

	m.mu.Lock()
	prev := m.hosts[cfg.Profile]
	m.hosts[cfg.Profile] = host
	m.mu.Unlock()

	if prev != nil {
		prev.Deactivate()
	}
	return nil
}

// Reload rebuilds the named profile's partition and module instance.
func (m *Manager) Reload(ctx context.Context, profile string) error {
	m.mu.RLock()
	host, ok := m.hosts[profile]
	m.mu.RUnlock()

	if !ok {
		return oops.In("script").
			With("profile", profile).
			New("no active module host for profile")
	}
	return host.Reload(ctx)
}

// Deactivate tears down the named profile's host. Unknown profiles are
// a no-op.
func (m *Manager) Deactivate(profile string) {
	m.mu.Lock()
	host, ok := m.hosts[profile]
	delete(m.hosts, profile)
	m.mu.Unlock()

	if ok {
		host.Deactivate()
	}
}

// Dispatch raises an event into the named profile's module. Events for
// profiles without an active host are dropped.
func (m *Manager) Dispatch(profile string, event scriptpkg.Event) {
	m.mu.RLock()
	host, ok := m.hosts[profile]
	m.mu.RUnlock()

	if !ok {
		slog.Debug("event dropped: no host for profile",
			"profile", profile,
			"event", event.Name())
		return
	}
	host.DispatchEvent(event)
}

// DispatchAll raises an event into every active profile's module.
func (m *Manager) DispatchAll(event scriptpkg.Event) {
	m.mu.RLock()
	hosts := make([]*Host, 0, len(m.hosts))
	for _, h := range m.hosts {
		hosts = append(hosts, h)
	}
	m.mu.RUnlock()

	for _, h := range hosts {
		h.DispatchEvent(event)
	}
}

// HostFor returns the named profile's host, or nil.
func (m *Manager) HostFor(profile string) *Host {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hosts[profile]
}

// Profiles returns the names of profiles with an active host, sorted
// for deterministic output.
func (m *Manager) Profiles() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.hosts))
	for name := range m.hosts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close deactivates every host.
func (m *Manager) Close() {
	m.mu.Lock()
	hosts := m.hosts
	m.hosts = make(map[string]*Host)
	m.mu.Unlock()

	for _, h := range hosts {
		h.Deactivate()
	}
}
