// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mudlark Contributors

package script

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
)

// LeakPolicy controls what happens when a jailed name cannot be resolved
// from the partition's code locations.
type LeakPolicy string

// Leak policies for jailed-name resolution misses.
const (
	// LeakWarn falls back to host resolution and logs the leak. This
	// keeps overly broad jail prefixes from breaking access to host
	// builtins, at the cost of silently un-jailing misconfigured names.
	LeakWarn LeakPolicy = "warn"

	// LeakDeny fails resolution instead of falling back.
	LeakDeny LeakPolicy = "deny"
)

// Valid reports whether p is a known policy.
func (p LeakPolicy) Valid() bool {
	return p == LeakWarn || p == LeakDeny
}

// jailRule holds a jail prefix and its compiled glob for matching.
// Matching uses '.' as the segment separator; a plain prefix such as
// "ext." is compiled as "ext.**" so it covers all descendants.
type jailRule struct {
	prefix string
	glob   glob.Glob
}

// compileJailRules compiles jail prefixes into matching rules.
func compileJailRules(prefixes []string) ([]jailRule, error) {
	rules := make([]jailRule, 0, len(prefixes))
	for _, raw := range prefixes {
		p := strings.TrimSpace(raw)
		if p == "" {
			continue
		}
		pattern := p
		if !strings.ContainsAny(pattern, "*?[{") {
			pattern = strings.TrimSuffix(pattern, ".") + ".**"
		}
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return nil, oops.In("script").
				With("prefix", p).
				Hint("invalid jail prefix").
				Wrap(err)
		}
		rules = append(rules, jailRule{prefix: p, glob: g})
	}
	return rules, nil
}

// PartitionConfig describes the partition to build for one activation.
type PartitionConfig struct {
	// Profile is the owning profile's name.
	Profile string

	// Locations is the ordered list of directories searched for jailed
	// modules. The first location that defines a name wins.
	Locations []string

	// JailedPrefixes lists name prefixes resolved inside the partition.
	JailedPrefixes []string

	// Policy controls fallback on jailed resolution misses. Empty means
	// LeakWarn.
	Policy LeakPolicy
}

// Partition is one profile's isolated module universe: a fresh sandboxed
// Lua state plus a cache of resolved module values. A name resolves to
// the same value on every call within one partition; two partitions never
// share resolved values even for byte-identical sources.
//
// Partitions are built by Host.Activate and discarded wholesale on reload
// or deactivation. They are not safe for concurrent use; the owning Host
// serializes access.
type Partition struct {
	id       ulid.ULID
	profile  string
	cfg      PartitionConfig
	rules    []jailRule
	state    *lua.LState
	resolved map[string]lua.LValue
	closed   bool

	// inflight tracks dispatches executing against this partition's
	// state, so retirement can drain them before Close.
	inflight sync.WaitGroup
}

// NewPartition builds a partition with a fresh sandboxed state.
func NewPartition(ctx context.Context, factory *StateFactory, cfg PartitionConfig) (*Partition, error) {
	rules, err := compileJailRules(cfg.JailedPrefixes)
	if err != nil {
		return nil, err
	}
	if cfg.Policy == "" {
		cfg.Policy = LeakWarn
	}
	if !cfg.Policy.Valid() {
		return nil, oops.In("script").
			With("profile", cfg.Profile).
			With("policy", string(cfg.Policy)).
			New("unknown leak policy")
	}

	L, err := factory.NewState(ctx)
	if err != nil {
		return nil, oops.In("script").
			With("profile", cfg.Profile).
			Hint("failed to create partition state").
			Wrap(err)
	}

	p := &Partition{
		id:       ulid.Make(),
		profile:  cfg.Profile,
		cfg:      cfg,
		rules:    rules,
		state:    L,
		resolved: make(map[string]lua.LValue),
	}

	// Scripts resolve further modules through the partition, never
	// through the blocked base-library loaders.
	L.SetGlobal("require", L.NewFunction(p.luaRequire))

	return p, nil
}

// ID returns the partition's unique identity.
func (p *Partition) ID() ulid.ULID { return p.id }

// Profile returns the owning profile's name.
func (p *Partition) Profile() string { return p.profile }

// State returns the partition's Lua state.
func (p *Partition) State() *lua.LState { return p.state }

// Jailed reports whether name matches a configured jail prefix and is
// not on the capability whitelist.
func (p *Partition) Jailed(name string) bool {
	if Whitelisted(name) {
		return false
	}
	for _, r := range p.rules {
		if r.glob.Match(name) {
			return true
		}
	}
	return false
}

// Resolve resolves a module name to its value inside this partition.
//
// Decision order: capability-whitelisted names always resolve through
// the host registry; jailed names resolve against the partition's code
// locations, reusing any cached value; everything else resolves through
// the host registry. A jailed miss follows the configured LeakPolicy.
func (p *Partition) Resolve(name string) (lua.LValue, error) {
	if p.closed {
		return lua.LNil, oops.In("script").
			Code(CodeResolutionFailed).
			With("profile", p.profile).
			With("name", name).
			New("partition is closed")
	}

	if v, ok := p.resolved[name]; ok {
		return v, nil
	}

	if Whitelisted(name) {
		return p.resolveHost(name)
	}

	if p.Jailed(name) {
		v, err := p.resolveIsolated(name)
		if err == nil {
			return v, nil
		}
		if p.cfg.Policy == LeakDeny {
			return lua.LNil, err
		}
		slog.Warn("jailed name not found in code locations, leaking to host namespace",
			"profile", p.profile,
			"partition", p.id.String(),
			"name", name,
			"error", err)
		return p.resolveHost(name)
	}

	return p.resolveHost(name)
}

// resolveIsolated loads a jailed module from the partition's code
// locations, first match wins. The loaded value is cached so repeated
// resolution returns the same identity.
func (p *Partition) resolveIsolated(name string) (lua.LValue, error) {
	rel := filepath.FromSlash(strings.ReplaceAll(name, ".", "/")) + ".lua"
	for _, loc := range p.cfg.Locations {
		path := filepath.Join(loc, rel)
		code, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return lua.LNil, oops.In("script").
				Code(CodeResolutionFailed).
				With("profile", p.profile).
				With("name", name).
				With("path", path).
				Hint("failed to read module source").
				Wrap(err)
		}

		v, err := p.loadChunk(name, string(code))
		if err != nil {
			return lua.LNil, err
		}
		p.resolved[name] = v
		return v, nil
	}

	return lua.LNil, oops.In("script").
		Code(CodeResolutionFailed).
		With("profile", p.profile).
		With("name", name).
		With("locations", strings.Join(p.cfg.Locations, string(os.PathListSeparator))).
		New("no code location defines module")
}

// resolveHost resolves a name through the process-wide host registry.
func (p *Partition) resolveHost(name string) (lua.LValue, error) {
	builder, ok := lookupHostModule(name)
	if !ok {
		return lua.LNil, oops.In("script").
			Code(CodeResolutionFailed).
			With("profile", p.profile).
			With("name", name).
			New("name not satisfiable from host namespace")
	}
	v := builder(p.state)
	p.resolved[name] = v
	return v, nil
}

// loadChunk compiles and executes module source, returning the module
// value. A module file must return its module table.
func (p *Partition) loadChunk(name, code string) (lua.LValue, error) {
	fn, err := p.state.LoadString(code)
	if err != nil {
		return lua.LNil, oops.In("script").
			Code(CodeResolutionFailed).
			With("profile", p.profile).
			With("name", name).
			Hint("syntax error").
			Wrap(err)
	}

	if err := p.state.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}); err != nil {
		return lua.LNil, oops.In("script").
			Code(CodeResolutionFailed).
			With("profile", p.profile).
			With("name", name).
			Hint("module body raised").
			Wrap(err)
	}

	ret := p.state.Get(-1)
	p.state.Pop(1)

	if ret == lua.LNil {
		return lua.LNil, oops.In("script").
			Code(CodeResolutionFailed).
			With("profile", p.profile).
			With("name", name).
			New("module did not return a value")
	}
	return ret, nil
}

// luaRequire exposes Resolve to scripts as require(name).
func (p *Partition) luaRequire(L *lua.LState) int {
	name := L.CheckString(1)
	v, err := p.Resolve(name)
	if err != nil {
		L.RaiseError("require %q: %s", name, err.Error())
		return 0
	}
	L.Push(v)
	return 1
}

// Close tears down the partition and its state. Idempotent.
func (p *Partition) Close() {
	if p.closed {
		return
	}
	p.closed = true
	p.resolved = nil
	p.state.Close()
}
