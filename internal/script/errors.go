// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mudlark Contributors

package script

import "github.com/samber/oops"

// Error codes attached to oops errors raised by this package.
const (
	// CodeResolutionFailed marks a name that no code location defines
	// and that host resolution cannot satisfy.
	CodeResolutionFailed = "RESOLUTION_FAILED"

	// CodeModuleLoadFailed marks an entry module missing its required
	// contract, or an init call that raised.
	CodeModuleLoadFailed = "MODULE_LOAD_FAILED"

	// CodeDispatchFailed marks an event dispatch with no matching
	// handler or a handler that raised. Never propagates past the Host.
	CodeDispatchFailed = "DISPATCH_FAILED"

	// CodeStaleHandle marks a host-service call through a handle whose
	// partition has been reloaded or deactivated.
	CodeStaleHandle = "STALE_HANDLE"
)

func hasCode(err error, code string) bool {
	oopsErr, ok := oops.AsOops(err)
	return ok && oopsErr.Code() == code
}

// IsResolutionFailed reports whether err is a resolution failure.
func IsResolutionFailed(err error) bool { return hasCode(err, CodeResolutionFailed) }

// IsModuleLoadFailed reports whether err is a module load failure.
func IsModuleLoadFailed(err error) bool { return hasCode(err, CodeModuleLoadFailed) }

// IsDispatchFailed reports whether err is a dispatch failure.
func IsDispatchFailed(err error) bool { return hasCode(err, CodeDispatchFailed) }

// IsStaleHandle reports whether err is a stale-handle failure.
func IsStaleHandle(err error) bool { return hasCode(err, CodeStaleHandle) }
