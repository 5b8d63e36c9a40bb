// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mudlark Contributors

package script

import (
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func TestWhitelisted(t *testing.T) {
	if !Whitelisted("mud.events") {
		t.Error("mud.events should be whitelisted")
	}
	if Whitelisted("ext.greeter") {
		t.Error("ext.greeter should not be whitelisted")
	}
}

func TestRegisterHostModule_Capability(t *testing.T) {
	RegisterHostModule("mud.capabilitytest", func(L *lua.LState) lua.LValue {
		return lua.LString("capability")
	}, true)

	if !Whitelisted("mud.capabilitytest") {
		t.Error("capability registration did not whitelist the name")
	}

	// Whitelisted names resolve through the host even when jailed.
	p := newTestPartition(t, PartitionConfig{
		Profile:        "mud1",
		JailedPrefixes: []string{"mud."},
		Policy:         LeakDeny,
	})
	v, err := p.Resolve("mud.capabilitytest")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if v.String() != "capability" {
		t.Errorf("value = %q, want %q", v.String(), "capability")
	}
}

func TestRegisterHostModule_NonCapability(t *testing.T) {
	RegisterHostModule("mud.plaintest", func(L *lua.LState) lua.LValue {
		return lua.LString("plain")
	}, false)

	if Whitelisted("mud.plaintest") {
		t.Error("non-capability registration joined the whitelist")
	}

	p := newTestPartition(t, PartitionConfig{Profile: "mud1"})
	v, err := p.Resolve("mud.plaintest")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if v.String() != "plain" {
		t.Errorf("value = %q, want %q", v.String(), "plain")
	}
}

func TestEventsModule_Vocabulary(t *testing.T) {
	p := newTestPartition(t, PartitionConfig{Profile: "mud1"})

	v, err := p.Resolve("mud.events")
	if err != nil {
		t.Fatalf("Resolve(mud.events) error = %v", err)
	}
	tbl := v.(*lua.LTable)

	want := map[string]string{
		"CONNECTION_ESTABLISHED": "connection_established",
		"CONNECTION_LOST":        "connection_lost",
		"DATA_RECEIVED":          "data_received",
		"DATA_SENT":              "data_sent",
		"PROFILE_OPENED":         "profile_opened",
		"PROFILE_CLOSING":        "profile_closing",
	}
	for constant, value := range want {
		if got := p.State().GetField(tbl, constant).String(); got != value {
			t.Errorf("%s = %q, want %q", constant, got, value)
		}
	}
}
