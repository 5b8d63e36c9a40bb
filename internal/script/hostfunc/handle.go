// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mudlark Contributors

// Package hostfunc bridges the host-services capability surface into a
// script partition.
//
// A module never holds the host's service implementation directly; it
// holds a Handle, which the host revokes when the owning partition is
// reloaded or deactivated. Calls through a revoked handle fail instead
// of operating on torn-down state.
package hostfunc

import (
	"sync/atomic"

	"github.com/samber/oops"

	"github.com/mudlark-mud/mudlark/pkg/script"
)

// staleHandleCode matches the script package's stale-handle error code.
const staleHandleCode = "STALE_HANDLE"

// Handle is a revocable view of the host services owned by one
// partition. Safe for concurrent use.
type Handle struct {
	profile  string
	services script.HostServices
	revoked  atomic.Bool
}

// NewHandle wraps services for the given profile. Panics if services is
// nil.
func NewHandle(profile string, services script.HostServices) *Handle {
	if services == nil {
		panic("hostfunc.NewHandle: services cannot be nil")
	}
	return &Handle{profile: profile, services: services}
}

// Revoke makes every subsequent call through the handle fail. Idempotent.
func (h *Handle) Revoke() {
	h.revoked.Store(true)
}

// Revoked reports whether the handle has been revoked.
func (h *Handle) Revoked() bool {
	return h.revoked.Load()
}

func (h *Handle) check(op string) error {
	if h.revoked.Load() {
		return oops.In("hostfunc").
			Code(staleHandleCode).
			With("profile", h.profile).
			With("operation", op).
			New("handle revoked: partition reloaded or deactivated")
	}
	return nil
}

// Send transmits text to the connected world.
func (h *Handle) Send(text string) error {
	if err := h.check("send"); err != nil {
		return err
	}
	return h.services.Send(text)
}

// SendSilently transmits text without echoing it to the user.
func (h *Handle) SendSilently(text string) error {
	if err := h.check("send_silent"); err != nil {
		return err
	}
	return h.services.SendSilently(text)
}

// Log writes to the profile's script log.
func (h *Handle) Log(text string, colorLog bool) error {
	if err := h.check("log"); err != nil {
		return err
	}
	h.services.Log(text, colorLog)
	return nil
}

// ConfigDir returns the per-profile configuration directory.
func (h *Handle) ConfigDir() (string, error) {
	if err := h.check("config_dir"); err != nil {
		return "", err
	}
	return h.services.ConfigDir(), nil
}

// Surface returns the named UI surface.
func (h *Handle) Surface(name string) (script.Surface, error) {
	if err := h.check("surface"); err != nil {
		return nil, err
	}
	return h.services.Surface(name)
}
