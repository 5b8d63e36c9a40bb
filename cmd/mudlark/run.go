// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mudlark Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mudlark-mud/mudlark/internal/logging"
	"github.com/mudlark-mud/mudlark/internal/observability"
	"github.com/mudlark-mud/mudlark/internal/profile"
	"github.com/mudlark-mud/mudlark/internal/script"
	"github.com/mudlark-mud/mudlark/internal/session"
	"github.com/mudlark-mud/mudlark/internal/xdg"
	"github.com/mudlark-mud/mudlark/pkg/errutil"
	scriptpkg "github.com/mudlark-mud/mudlark/pkg/script"
)

// runConfig holds configuration for the run command.
type runConfig struct {
	metricsAddr string
	logFormat   string
	demo        bool
}

// Default values for run command flags.
const (
	defaultMetricsAddr = "127.0.0.1:9100"
	defaultLogFormat   = "json"
)

// Validate checks that the configuration is valid.
func (cfg *runConfig) Validate() error {
	if cfg.logFormat != "json" && cfg.logFormat != "text" {
		return fmt.Errorf("log-format must be 'json' or 'text', got %q", cfg.logFormat)
	}
	return nil
}

// NewRunCmd creates the run subcommand.
func NewRunCmd() *cobra.Command {
	cfg := &runConfig{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the client with all configured profiles",
		Long: `Start the client, activating the script module of every profile that
has one configured. A profile whose module fails to load runs without
scripting; the rest of the client is unaffected.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runClient(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.metricsAddr, "metrics-addr", defaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().StringVar(&cfg.logFormat, "log-format", defaultLogFormat, "log format (json or text)")
	cmd.Flags().BoolVar(&cfg.demo, "demo", false, "pump a demonstration event sequence through each profile")

	return cmd
}

func runClient(ctx context.Context, cfg *runConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logging.SetDefault("mudlark", version, cfg.logFormat)

	profiles, err := profile.Load(profilesFile, nil)
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	manager := script.NewManager()
	defer manager.Close()

	var obs *observability.Server
	if cfg.metricsAddr != "" {
		obs = observability.NewServer(cfg.metricsAddr, func() bool { return true })
		if _, err := obs.Start(); err != nil {
			return fmt.Errorf("failed to start observability server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := obs.Stop(shutdownCtx); err != nil {
				slog.Error("failed to stop observability server", "error", err)
			}
		}()
	}

	broadcaster := session.NewBroadcaster()
	pumpCtx, cancelPumps := context.WithCancel(ctx)
	defer cancelPumps()

	var pumps []*session.Pump
	for i := range profiles.Profiles {
		p := &profiles.Profiles[i]
		if !p.Scripted() {
			continue
		}

		services := session.NewServices(p.Name, os.Stdout, os.Stdout, slog.Default())
		services.RegisterSurface(session.NewWriterSurface("status", os.Stderr))

		err := manager.Activate(ctx, script.HostConfig{
			Profile:        p.Name,
			ScriptDir:      p.ScriptDir,
			Entry:          p.Entry,
			JailedPrefixes: p.JailList(),
			// Modules shared between profiles live in the data dir and
			// are searched after the profile's own script directory.
			ExtraLocations: []string{filepath.Join(xdg.DataDir(), "scripts")},
			Policy:         script.LeakPolicy(p.LeakPolicy),
			Services:       services,
		})
		if err != nil {
			// Activation failure disables scripting for this profile
			// only; the client keeps running.
			errutil.LogError(slog.Default(), "scripting disabled for profile", err)
			continue
		}

		var listeners []scriptpkg.Listener
		if cfg.demo {
			listeners = append(listeners, &trafficLogger{profile: p.Name})
		}
		pump := session.NewPump(p.Name, manager, listeners...)
		pump.Start(pumpCtx, broadcaster.Subscribe(p.Name))
		pumps = append(pumps, pump)
	}

	if cfg.demo {
		pumpDemoEvents(profiles, broadcaster)
	}

	slog.Info("mudlark running",
		"profiles", len(profiles.Profiles),
		"scripted", len(pumps))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

loop:
	for {
		select {
		case sig := <-sigCh:
			// SIGHUP hot-reloads every active module; anything else
			// shuts down.
			if sig == syscall.SIGHUP {
				reloadAll(ctx, manager)
				continue
			}
			slog.Info("shutting down", "signal", sig.String())
			break loop
		case <-ctx.Done():
			break loop
		}
	}

	for i := range profiles.Profiles {
		broadcaster.Broadcast(profiles.Profiles[i].Name, scriptpkg.Event{
			Type: scriptpkg.EventProfileClosing,
		})
	}

	cancelPumps()
	for _, p := range pumps {
		p.Stop()
	}
	return nil
}

// reloadAll hot-reloads every active profile's module. A profile whose
// reload fails loses scripting until the next successful reload; the
// others are unaffected.
func reloadAll(ctx context.Context, manager *script.Manager) {
	for _, name := range manager.Profiles() {
		if err := manager.Reload(ctx, name); err != nil {
			errutil.LogError(slog.Default(), "module reload failed", err)
			continue
		}
		slog.Info("module reloaded", "profile", name)
	}
}

// trafficLogger is the demo-mode event listener: it mirrors every
// delivered event to the log so script-visible traffic can be watched.
type trafficLogger struct {
	profile string
}

func (t *trafficLogger) OnEvent(event scriptpkg.Event) error {
	slog.Info("event delivered",
		"profile", t.profile,
		"event", event.String())
	return nil
}

// pumpDemoEvents broadcasts a short scripted-traffic sequence so a demo
// module has something to react to.
func pumpDemoEvents(profiles *profile.Config, b *session.Broadcaster) {
	events := []scriptpkg.Event{
		{Type: scriptpkg.EventProfileOpened},
		{Type: scriptpkg.EventConnectionEstablished},
		{Type: scriptpkg.EventDataReceived, Payload: "Welcome, traveler."},
		{Type: scriptpkg.EventDataSent, Payload: "look"},
	}
	for i := range profiles.Profiles {
		p := &profiles.Profiles[i]
		if p.Entry == "" {
			continue
		}
		for _, ev := range events {
			b.Broadcast(p.Name, ev)
		}
	}
}
