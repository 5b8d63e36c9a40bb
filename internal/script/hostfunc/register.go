// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mudlark Contributors

package hostfunc

import (
	lua "github.com/yuin/gopher-lua"
)

// Register builds the host-services table for a partition state, bound
// to the given handle. The returned table is what the host passes to the
// module's init as its hostServices argument.
//
// Script surface:
//
//	host.send(text)              -- transmit as if typed
//	host.send_silent(text)       -- transmit without local echo
//	host.log(text, color_log)    -- write to the profile script log
//	host.config_dir()            -- per-profile configuration directory
//	host.surface(name)           -- named UI surface with write(text)
//
// Failures, including calls through a revoked handle, raise Lua errors
// in the calling script.
func Register(L *lua.LState, h *Handle) *lua.LTable {
	mod := L.NewTable()

	L.SetField(mod, "send", L.NewFunction(sendFn(h)))
	L.SetField(mod, "send_silent", L.NewFunction(sendSilentFn(h)))
	L.SetField(mod, "log", L.NewFunction(logFn(h)))
	L.SetField(mod, "config_dir", L.NewFunction(configDirFn(h)))
	L.SetField(mod, "surface", L.NewFunction(surfaceFn(h)))

	return mod
}

func sendFn(h *Handle) lua.LGFunction {
	return func(L *lua.LState) int {
		text := L.CheckString(1)
		if err := h.Send(text); err != nil {
			L.RaiseError("send: %s", err.Error())
			return 0
		}
		return 0
	}
}

func sendSilentFn(h *Handle) lua.LGFunction {
	return func(L *lua.LState) int {
		text := L.CheckString(1)
		if err := h.SendSilently(text); err != nil {
			L.RaiseError("send_silent: %s", err.Error())
			return 0
		}
		return 0
	}
}

func logFn(h *Handle) lua.LGFunction {
	return func(L *lua.LState) int {
		text := L.CheckString(1)
		colorLog := L.OptBool(2, false)
		if err := h.Log(text, colorLog); err != nil {
			L.RaiseError("log: %s", err.Error())
			return 0
		}
		return 0
	}
}

func configDirFn(h *Handle) lua.LGFunction {
	return func(L *lua.LState) int {
		dir, err := h.ConfigDir()
		if err != nil {
			L.RaiseError("config_dir: %s", err.Error())
			return 0
		}
		L.Push(lua.LString(dir))
		return 1
	}
}

func surfaceFn(h *Handle) lua.LGFunction {
	return func(L *lua.LState) int {
		name := L.CheckString(1)
		surface, err := h.Surface(name)
		if err != nil {
			L.RaiseError("surface %q: %s", name, err.Error())
			return 0
		}

		t := L.NewTable()
		L.SetField(t, "name", lua.LString(surface.Name()))
		L.SetField(t, "write", L.NewFunction(func(L *lua.LState) int {
			text := L.CheckString(1)
			if err := surface.Write(text); err != nil {
				L.RaiseError("surface write: %s", err.Error())
				return 0
			}
			return 0
		}))
		L.Push(t)
		return 1
	}
}
