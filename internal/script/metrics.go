// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mudlark Contributors

package script

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the script runtime.
var (
	// eventsTotal counts dispatch outcomes by profile and result:
	// delivered, dropped, failed.
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mudlark_script_events_total",
		Help: "Total number of events dispatched to script modules",
	}, []string{"profile", "result"})

	// reloadsTotal counts completed module reloads per profile.
	reloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mudlark_script_reloads_total",
		Help: "Total number of script module reloads",
	}, []string{"profile"})

	// activationsTotal counts activation attempts by profile and result:
	// ok, error.
	activationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mudlark_script_activations_total",
		Help: "Total number of script module activations",
	}, []string{"profile", "result"})
)

// Dispatch result labels.
const (
	resultDelivered = "delivered"
	resultDropped   = "dropped"
	resultFailed    = "failed"
)
