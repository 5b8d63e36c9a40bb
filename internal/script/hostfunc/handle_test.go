// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mudlark Contributors

package hostfunc

import (
	"errors"
	"sync"
	"testing"

	"github.com/mudlark-mud/mudlark/pkg/errutil"
	"github.com/mudlark-mud/mudlark/pkg/script"
)

// recordingServices records calls for assertions.
type recordingServices struct {
	mu       sync.Mutex
	sent     []string
	silent   []string
	logs     []string
	cfgDir   string
	surfaces map[string]script.Surface
}

func (r *recordingServices) Send(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, text)
	return nil
}

func (r *recordingServices) SendSilently(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.silent = append(r.silent, text)
	return nil
}

func (r *recordingServices) Log(text string, _ bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, text)
}

func (r *recordingServices) ConfigDir() string { return r.cfgDir }

func (r *recordingServices) Surface(name string) (script.Surface, error) {
	if s, ok := r.surfaces[name]; ok {
		return s, nil
	}
	return nil, errors.New("no such surface")
}

func TestHandle_ForwardsCalls(t *testing.T) {
	services := &recordingServices{cfgDir: "/tmp/mudlark/mud1"}
	h := NewHandle("mud1", services)

	if err := h.Send("north"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if err := h.SendSilently("password"); err != nil {
		t.Fatalf("SendSilently() error = %v", err)
	}
	if err := h.Log("noted", false); err != nil {
		t.Fatalf("Log() error = %v", err)
	}

	dir, err := h.ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error = %v", err)
	}
	if dir != "/tmp/mudlark/mud1" {
		t.Errorf("ConfigDir() = %q, want %q", dir, "/tmp/mudlark/mud1")
	}

	if len(services.sent) != 1 || services.sent[0] != "north" {
		t.Errorf("sent = %v, want [north]", services.sent)
	}
	if len(services.silent) != 1 || services.silent[0] != "password" {
		t.Errorf("silent = %v, want [password]", services.silent)
	}
	if len(services.logs) != 1 || services.logs[0] != "noted" {
		t.Errorf("logs = %v, want [noted]", services.logs)
	}
}

func TestHandle_RevokedFailsEveryCall(t *testing.T) {
	services := &recordingServices{}
	h := NewHandle("mud1", services)

	h.Revoke()
	h.Revoke() // idempotent

	if !h.Revoked() {
		t.Fatal("Revoked() = false after Revoke")
	}

	errutil.AssertErrorCode(t, h.Send("north"), "STALE_HANDLE")
	errutil.AssertErrorCode(t, h.SendSilently("x"), "STALE_HANDLE")
	errutil.AssertErrorCode(t, h.Log("x", false), "STALE_HANDLE")

	_, err := h.ConfigDir()
	errutil.AssertErrorCode(t, err, "STALE_HANDLE")
	errutil.AssertErrorContext(t, err, "profile", "mud1")

	_, err = h.Surface("status")
	errutil.AssertErrorCode(t, err, "STALE_HANDLE")

	if len(services.sent) != 0 {
		t.Errorf("revoked handle reached services: %v", services.sent)
	}
}

func TestNewHandle_NilServicesPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for nil services")
		}
	}()
	NewHandle("mud1", nil)
}
