// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mudlark Contributors

//go:build integration

package scripting_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/mudlark-mud/mudlark/internal/profile"
	"github.com/mudlark-mud/mudlark/internal/script"
	"github.com/mudlark-mud/mudlark/internal/session"
	scriptpkg "github.com/mudlark-mud/mudlark/pkg/script"
)

// writeScript writes a module source under dir at the path its dotted
// name implies.
func writeScript(dir, name, code string) {
	rel := filepath.FromSlash(strings.ReplaceAll(name, ".", "/")) + ".lua"
	path := filepath.Join(dir, rel)
	Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
	Expect(os.WriteFile(path, []byte(code), 0o644)).To(Succeed())
}

const echoModule = `
local Echo = {}
Echo.__index = Echo

function Echo.new()
	return setmetatable({}, Echo)
end

function Echo:init(script_dir, entry_name, host)
	self.host = host
	host.send_silent("ready " .. entry_name)
end

function Echo:on_data_received(event, payload)
	self.host.send("echo " .. payload)
end

function Echo:on_event(event, payload)
end

return Echo
`

var _ = Describe("Script module lifecycle", func() {
	var (
		ctx      context.Context
		dir      string
		conn     *bytes.Buffer
		services *session.Services
		manager  *script.Manager
		hostCfg  script.HostConfig
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		writeScript(dir, "ext.echo", echoModule)

		conn = &bytes.Buffer{}
		services = session.NewServices("mud1", conn, nil, nil)
		manager = script.NewManager()
		DeferCleanup(manager.Close)

		hostCfg = script.HostConfig{
			Profile:        "mud1",
			ScriptDir:      dir,
			Entry:          "ext.echo",
			JailedPrefixes: []string{"ext."},
			Policy:         script.LeakDeny,
			Services:       services,
		}
	})

	It("activates a module and runs its init", func() {
		Expect(manager.Activate(ctx, hostCfg)).To(Succeed())
		Expect(conn.String()).To(ContainSubstring("ready ext.echo"))
		Expect(manager.HostFor("mud1").State()).To(Equal(script.StateRunning))
	})

	It("routes world traffic through the module", func() {
		Expect(manager.Activate(ctx, hostCfg)).To(Succeed())

		manager.Dispatch("mud1", scriptpkg.Event{
			Type:    scriptpkg.EventDataReceived,
			Payload: "You see a mudlark.",
		})

		Expect(conn.String()).To(ContainSubstring("echo You see a mudlark."))
	})

	It("delivers events only to the current instance after reload", func() {
		Expect(manager.Activate(ctx, hostCfg)).To(Succeed())
		first := manager.HostFor("mud1").PartitionID()

		writeScript(dir, "ext.echo", strings.Replace(echoModule, `"echo "`, `"echo2 "`, 1))
		Expect(manager.Reload(ctx, "mud1")).To(Succeed())
		Expect(manager.HostFor("mud1").PartitionID()).NotTo(Equal(first))

		conn.Reset()
		manager.Dispatch("mud1", scriptpkg.Event{
			Type:    scriptpkg.EventDataReceived,
			Payload: "again",
		})

		Expect(conn.String()).To(ContainSubstring("echo2 again"))
		Expect(conn.String()).NotTo(ContainSubstring("echo again"))
	})

	It("drops events after deactivation", func() {
		Expect(manager.Activate(ctx, hostCfg)).To(Succeed())
		manager.Deactivate("mud1")

		conn.Reset()
		manager.Dispatch("mud1", scriptpkg.Event{
			Type:    scriptpkg.EventDataReceived,
			Payload: "late",
		})
		Expect(conn.String()).To(BeEmpty())
	})

	It("keeps a broken reload from leaving a half-replaced module", func() {
		Expect(manager.Activate(ctx, hostCfg)).To(Succeed())

		writeScript(dir, "ext.echo", `return { this is not lua`)
		Expect(manager.Reload(ctx, "mud1")).NotTo(Succeed())

		conn.Reset()
		manager.Dispatch("mud1", scriptpkg.Event{
			Type:    scriptpkg.EventDataReceived,
			Payload: "after failure",
		})
		Expect(conn.String()).To(BeEmpty())
	})
})

var _ = Describe("Profile isolation", func() {
	const counterModule = `
local Counter = {}
Counter.__index = Counter

local shared = { n = 0 }

function Counter.new()
	return setmetatable({}, Counter)
end

function Counter:init(script_dir, entry_name, host)
	self.host = host
end

function Counter:on_data_received(event, payload)
	shared.n = shared.n + 1
	self.host.send("count " .. shared.n)
end

function Counter:on_event(event, payload)
end

return Counter
`

	It("gives each profile its own module universe", func() {
		ctx := context.Background()
		dir := GinkgoT().TempDir()
		writeScript(dir, "ext.counter", counterModule)

		manager := script.NewManager()
		DeferCleanup(manager.Close)

		conn1 := &bytes.Buffer{}
		conn2 := &bytes.Buffer{}

		for _, p := range []struct {
			name string
			conn *bytes.Buffer
		}{{"mud1", conn1}, {"mud2", conn2}} {
			Expect(manager.Activate(ctx, script.HostConfig{
				Profile:        p.name,
				ScriptDir:      dir,
				Entry:          "ext.counter",
				JailedPrefixes: []string{"ext."},
				Policy:         script.LeakDeny,
				Services:       session.NewServices(p.name, p.conn, nil, nil),
			})).To(Succeed())
		}

		// Same source file, but the module-level upvalue is private to
		// each partition: both profiles count from 1.
		manager.Dispatch("mud1", scriptpkg.Event{Type: scriptpkg.EventDataReceived})
		manager.Dispatch("mud1", scriptpkg.Event{Type: scriptpkg.EventDataReceived})
		manager.Dispatch("mud2", scriptpkg.Event{Type: scriptpkg.EventDataReceived})

		Expect(conn1.String()).To(ContainSubstring("count 2"))
		Expect(conn2.String()).To(ContainSubstring("count 1"))
		Expect(conn2.String()).NotTo(ContainSubstring("count 3"))
	})
})

var _ = Describe("Profiles file to running modules", func() {
	It("activates every scripted profile from configuration", func() {
		ctx := context.Background()
		root := GinkgoT().TempDir()
		scriptDir := filepath.Join(root, "scripts")
		writeScript(scriptDir, "ext.echo", echoModule)

		profilesPath := filepath.Join(root, "profiles.yaml")
		content := `
profiles:
  - name: mud1
    script-dir: ` + scriptDir + `
    entry: ext.echo
    jailed-prefixes: "ext."
    leak-policy: deny
  - name: mud2
`
		Expect(os.WriteFile(profilesPath, []byte(content), 0o644)).To(Succeed())

		cfg, err := profile.Load(profilesPath, nil)
		Expect(err).NotTo(HaveOccurred())

		manager := script.NewManager()
		DeferCleanup(manager.Close)

		for i := range cfg.Profiles {
			p := &cfg.Profiles[i]
			if !p.Scripted() {
				continue
			}
			Expect(manager.Activate(ctx, script.HostConfig{
				Profile:        p.Name,
				ScriptDir:      p.ScriptDir,
				Entry:          p.Entry,
				JailedPrefixes: p.JailList(),
				Policy:         script.LeakPolicy(p.LeakPolicy),
				Services:       session.NewServices(p.Name, &bytes.Buffer{}, nil, nil),
			})).To(Succeed())
		}

		Expect(manager.Profiles()).To(Equal([]string{"mud1"}))
	})
})
