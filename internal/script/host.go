// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mudlark Contributors

package script

import (
	"context"
	"log/slog"
	"sync"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/mudlark-mud/mudlark/internal/script/hostfunc"
	"github.com/mudlark-mud/mudlark/pkg/errutil"
	scriptpkg "github.com/mudlark-mud/mudlark/pkg/script"
)

// LifecycleState is the module instance lifecycle.
type LifecycleState string

// Lifecycle states. Events are accepted only in StateRunning; in every
// other state they are dropped, never queued. StateInitialized covers
// the window where a fresh instance has finished init but the previous
// partition is still draining; dispatch stays closed until the drain
// completes.
const (
	StateUnloaded    LifecycleState = "unloaded"
	StateInitialized LifecycleState = "initialized"
	StateRunning     LifecycleState = "running"
	StateReloading   LifecycleState = "reloading"
)

// HostConfig describes one profile's module to a Host.
type HostConfig struct {
	// Profile is the owning profile's name.
	Profile string

	// ScriptDir is the profile's module script directory. It is always
	// the first code location searched.
	ScriptDir string

	// Entry is the jailed name of the entry module, e.g. "ext.greeter".
	Entry string

	// JailedPrefixes lists the profile's jailed name prefixes.
	JailedPrefixes []string

	// ExtraLocations are additional code locations searched after
	// ScriptDir, in order.
	ExtraLocations []string

	// Policy is the jailed-miss leak policy. Empty means LeakWarn.
	Policy LeakPolicy

	// Services is the host-services implementation modules call back
	// into. Required.
	Services scriptpkg.HostServices
}

// Host owns one profile's partition and module instance, and mediates
// every host->module call. A misbehaving module surfaces as log entries
// and error returns, never as a crash of the host.
//
// Host is safe for concurrent use. The state mutex guards the
// (state, partition, instance, handle) tuple and is never held across a
// call into module code; calls into the partition's Lua state are
// serialized separately so a reload can drain in-flight dispatches
// before closing the old state.
type Host struct {
	cfg     HostConfig
	factory *StateFactory

	mu        sync.Mutex
	state     LifecycleState
	partition *Partition
	instance  *lua.LTable
	handle    *hostfunc.Handle

	// callMu serializes execution against the current partition state.
	callMu sync.Mutex
}

// NewHost creates an unloaded Host for the given configuration.
// Panics if cfg.Services is nil (consistent with hostfunc.NewHandle).
func NewHost(cfg HostConfig) *Host {
	if cfg.Services == nil {
		panic("script.NewHost: Services cannot be nil")
	}
	return &Host{
		cfg:     cfg,
		factory: NewStateFactory(),
		state:   StateUnloaded,
	}
}

// Profile returns the owning profile's name.
func (h *Host) Profile() string { return h.cfg.Profile }

// State returns the current lifecycle state.
func (h *Host) State() LifecycleState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// PartitionID returns the active partition's identity, or the empty
// string when no module is active.
func (h *Host) PartitionID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.partition == nil {
		return ""
	}
	return h.partition.ID().String()
}

// loaded holds the artifacts of one successful activation.
type loaded struct {
	partition *Partition
	instance  *lua.LTable
	handle    *hostfunc.Handle
}

// Activate builds a fresh partition, loads the entry module inside it,
// instantiates it and runs its init entry point. On failure the profile
// is left with no active module.
func (h *Host) Activate(ctx context.Context) error {
	l, err := h.load(ctx)
	if err != nil {
		activationsTotal.WithLabelValues(h.cfg.Profile, "error").Inc()
		return err
	}

	h.mu.Lock()
	old := h.swapLocked(l)
	h.mu.Unlock()

	h.retire(old)
	h.enterRunning()
	activationsTotal.WithLabelValues(h.cfg.Profile, "ok").Inc()

	slog.Info("script module activated",
		"profile", h.cfg.Profile,
		"entry", h.cfg.Entry,
		"partition", l.partition.ID().String())
	return nil
}

// Reload performs a fresh activation and retires the previous partition.
// Events arriving while the new partition is built are dropped.
func (h *Host) Reload(ctx context.Context) error {
	h.mu.Lock()
	if h.state == StateUnloaded {
		h.mu.Unlock()
		return h.Activate(ctx)
	}
	h.state = StateReloading
	h.mu.Unlock()

	l, err := h.load(ctx)
	if err != nil {
		// The old instance stays torn down: a failed reload must not
		// leave a half-replaced module receiving events.
		h.mu.Lock()
		old := h.swapLocked(nil)
		h.mu.Unlock()
		h.retire(old)
		activationsTotal.WithLabelValues(h.cfg.Profile, "error").Inc()
		return err
	}

	h.mu.Lock()
	old := h.swapLocked(l)
	h.mu.Unlock()

	h.retire(old)
	h.enterRunning()
	reloadsTotal.WithLabelValues(h.cfg.Profile).Inc()
	activationsTotal.WithLabelValues(h.cfg.Profile, "ok").Inc()

	slog.Info("script module reloaded",
		"profile", h.cfg.Profile,
		"entry", h.cfg.Entry,
		"partition", l.partition.ID().String())
	return nil
}

// Deactivate drops the module instance and partition. No further events
// are dispatched. Calling it on an unloaded host is a no-op.
func (h *Host) Deactivate() {
	h.mu.Lock()
	if h.state == StateUnloaded && h.partition == nil {
		h.mu.Unlock()
		return
	}
	old := h.swapLocked(nil)
	h.mu.Unlock()

	h.retire(old)
	slog.Info("script module deactivated", "profile", h.cfg.Profile)
}

// DispatchEvent raises an event into the module. Events are dropped
// unless the host is running. Handler failures are logged and swallowed;
// dispatch never propagates an error to the host's event flow.
func (h *Host) DispatchEvent(event scriptpkg.Event) {
	h.mu.Lock()
	if h.state != StateRunning || h.instance == nil {
		h.mu.Unlock()
		eventsTotal.WithLabelValues(h.cfg.Profile, resultDropped).Inc()
		slog.Debug("event dropped: no running module",
			"profile", h.cfg.Profile,
			"event", event.Name())
		return
	}
	partition := h.partition
	instance := h.instance
	partition.inflight.Add(1)
	h.mu.Unlock()
	defer partition.inflight.Done()

	h.callMu.Lock()
	err := h.callHandler(partition.State(), instance, event)
	h.callMu.Unlock()

	if err != nil {
		eventsTotal.WithLabelValues(h.cfg.Profile, resultFailed).Inc()
		errutil.LogWarn(slog.Default(), "script event dispatch failed", err)
		return
	}
	eventsTotal.WithLabelValues(h.cfg.Profile, resultDelivered).Inc()
}

// load performs the slow part of activation without touching the
// current module.
func (h *Host) load(ctx context.Context) (*loaded, error) {
	fail := oops.In("script").
		Code(CodeModuleLoadFailed).
		With("profile", h.cfg.Profile).
		With("entry", h.cfg.Entry)

	if err := checkManifest(h.cfg.ScriptDir); err != nil {
		return nil, fail.Hint("module manifest rejected").Wrap(err)
	}

	locations := append([]string{h.cfg.ScriptDir}, h.cfg.ExtraLocations...)
	partition, err := NewPartition(ctx, h.factory, PartitionConfig{
		Profile:        h.cfg.Profile,
		Locations:      locations,
		JailedPrefixes: h.cfg.JailedPrefixes,
		Policy:         h.cfg.Policy,
	})
	if err != nil {
		return nil, fail.Wrap(err)
	}

	module, err := partition.Resolve(h.cfg.Entry)
	if err != nil {
		partition.Close()
		return nil, fail.Hint("entry module not resolvable").Wrap(err)
	}

	moduleTable, ok := module.(*lua.LTable)
	if !ok {
		partition.Close()
		return nil, fail.New("entry module is not a table")
	}

	L := partition.State()
	instance, err := construct(L, moduleTable)
	if err != nil {
		partition.Close()
		return nil, fail.Wrap(err)
	}

	handle := hostfunc.NewHandle(h.cfg.Profile, h.cfg.Services)
	hostTable := hostfunc.Register(L, handle)

	initFn := L.GetField(instance, "init")
	if initFn.Type() != lua.LTFunction {
		handle.Revoke()
		partition.Close()
		return nil, fail.New("entry module instance has no init function")
	}

	if err := L.CallByParam(lua.P{
		Fn:      initFn,
		NRet:    0,
		Protect: true,
	}, instance, lua.LString(h.cfg.ScriptDir), lua.LString(h.cfg.Entry), hostTable); err != nil {
		handle.Revoke()
		partition.Close()
		return nil, fail.Hint("init raised").Wrap(err)
	}

	return &loaded{partition: partition, instance: instance, handle: handle}, nil
}

// construct instantiates the entry module with its no-argument new().
func construct(L *lua.LState, module *lua.LTable) (*lua.LTable, error) {
	newFn := L.GetField(module, "new")
	if newFn.Type() != lua.LTFunction {
		return nil, oops.In("script").New("entry module has no new function")
	}

	if err := L.CallByParam(lua.P{
		Fn:      newFn,
		NRet:    1,
		Protect: true,
	}); err != nil {
		return nil, oops.In("script").Hint("constructor raised").Wrap(err)
	}

	ret := L.Get(-1)
	L.Pop(1)

	instance, ok := ret.(*lua.LTable)
	if !ok {
		return nil, oops.In("script").New("constructor did not return a table")
	}
	return instance, nil
}

// swapLocked installs l as the current module (nil unloads) and returns
// the previous artifacts for retirement. The new instance enters
// StateInitialized: its init has returned, but dispatch stays closed
// until enterRunning, after the old partition drains. Caller holds h.mu.
func (h *Host) swapLocked(l *loaded) *loaded {
	old := &loaded{partition: h.partition, instance: h.instance, handle: h.handle}
	if l == nil {
		h.partition = nil
		h.instance = nil
		h.handle = nil
		h.state = StateUnloaded
	} else {
		h.partition = l.partition
		h.instance = l.instance
		h.handle = l.handle
		h.state = StateInitialized
	}
	if old.partition == nil {
		return nil
	}
	// Revoke under the state lock: anything that observes the swap also
	// sees the old handle dead.
	if old.handle != nil {
		old.handle.Revoke()
	}
	return old
}

// enterRunning opens dispatch for the installed instance.
func (h *Host) enterRunning() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateInitialized {
		h.state = StateRunning
	}
}

// retire waits for in-flight dispatches against the old partition to
// finish, then closes it. The handle was revoked at swap time; any
// host-service call a straggler makes through it fails with
// STALE_HANDLE.
func (h *Host) retire(old *loaded) {
	if old == nil {
		return
	}
	old.partition.inflight.Wait()

	h.callMu.Lock()
	old.partition.Close()
	h.callMu.Unlock()
}

// callHandler invokes the module's handler for the event: a per-event
// method such as on_connection_established when defined, otherwise
// on_event(event, payload). The handler is looked up by name on the
// instance at call time; nothing is statically bound across the
// partition boundary.
func (h *Host) callHandler(L *lua.LState, instance *lua.LTable, event scriptpkg.Event) error {
	fail := oops.In("script").
		Code(CodeDispatchFailed).
		With("profile", h.cfg.Profile).
		With("event", event.Name())

	handler := L.GetField(instance, "on_"+string(event.Type))
	if handler.Type() != lua.LTFunction {
		handler = L.GetField(instance, "on_event")
	}
	if handler.Type() != lua.LTFunction {
		return fail.New("no handler matches event")
	}

	eventTable := buildEventTable(L, event)
	if err := L.CallByParam(lua.P{
		Fn:      handler,
		NRet:    0,
		Protect: true,
	}, instance, eventTable, lua.LString(event.Payload)); err != nil {
		return fail.Hint("handler raised").Wrap(err)
	}
	return nil
}

// buildEventTable converts a host event into its per-call Lua value.
func buildEventTable(L *lua.LState, event scriptpkg.Event) *lua.LTable {
	t := L.NewTable()
	L.SetField(t, "type", lua.LString(string(event.Type)))
	L.SetField(t, "name", lua.LString(event.Name()))
	L.SetField(t, "payload", lua.LString(event.Payload))
	return t
}

// checkManifest validates an optional module.yaml in the script
// directory. A missing manifest is fine; a present but invalid one
// rejects activation.
func checkManifest(dir string) error {
	m, err := LoadManifest(dir)
	if err != nil {
		return err
	}
	if m == nil {
		return nil
	}
	if err := m.CheckHostAPI(HostAPIVersion); err != nil {
		return err
	}
	return nil
}
