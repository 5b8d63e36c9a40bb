// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mudlark Contributors

package script

import (
	"sync"

	lua "github.com/yuin/gopher-lua"

	scriptpkg "github.com/mudlark-mud/mudlark/pkg/script"
)

// HostModuleBuilder constructs a host module's value inside a partition
// state. Builders must be pure with respect to profiles: the registry is
// process-wide and must carry no per-profile data.
type HostModuleBuilder func(L *lua.LState) lua.LValue

var (
	registryMu  sync.RWMutex
	hostModules = map[string]HostModuleBuilder{
		"mud.events": eventsModule,
	}

	// capabilityWhitelist names resolve through the host regardless of
	// jail configuration. This is what keeps host and module able to
	// exchange typed values across the partition boundary.
	capabilityWhitelist = map[string]bool{
		"mud.events": true,
	}
)

// RegisterHostModule adds a host module to the process-wide registry.
// Registering a name twice replaces the previous builder. When capability
// is true the name joins the whitelist and can never be jailed.
func RegisterHostModule(name string, builder HostModuleBuilder, capability bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	hostModules[name] = builder
	if capability {
		capabilityWhitelist[name] = true
	}
}

// Whitelisted reports whether name is on the capability whitelist.
func Whitelisted(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return capabilityWhitelist[name]
}

func lookupHostModule(name string) (HostModuleBuilder, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	b, ok := hostModules[name]
	return b, ok
}

// eventsModule exposes the event vocabulary to scripts. Values are the
// host-side event type strings, so a script comparing event names always
// agrees with the host.
func eventsModule(L *lua.LState) lua.LValue {
	t := L.NewTable()
	for name, typ := range map[string]scriptpkg.EventType{
		"CONNECTION_ESTABLISHED": scriptpkg.EventConnectionEstablished,
		"CONNECTION_LOST":        scriptpkg.EventConnectionLost,
		"DATA_RECEIVED":          scriptpkg.EventDataReceived,
		"DATA_SENT":              scriptpkg.EventDataSent,
		"PROFILE_OPENED":         scriptpkg.EventProfileOpened,
		"PROFILE_CLOSING":        scriptpkg.EventProfileClosing,
	} {
		L.SetField(t, name, lua.LString(string(typ)))
	}
	return t
}
