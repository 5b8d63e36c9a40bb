// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mudlark Contributors

package session

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/samber/oops"

	"github.com/mudlark-mud/mudlark/internal/xdg"
	"github.com/mudlark-mud/mudlark/pkg/script"
)

// Services implements the host-services capability surface for one
// profile's session. Outbound text goes to the session's transport
// writer; echoed text additionally goes to the user's output writer.
type Services struct {
	profile string
	conn    io.Writer
	echo    io.Writer
	logger  *slog.Logger

	mu       sync.RWMutex
	surfaces map[string]script.Surface

	// The per-profile script log file is opened on first use; a failure
	// to open it degrades to slog-only logging.
	logMu     sync.Mutex
	logOnce   sync.Once
	scriptLog io.WriteCloser
}

// NewServices creates the service surface for a profile. conn receives
// transmitted text; echo receives the local copy of non-silent sends.
func NewServices(profile string, conn, echo io.Writer, logger *slog.Logger) *Services {
	if logger == nil {
		logger = slog.Default()
	}
	return &Services{
		profile:  profile,
		conn:     conn,
		echo:     echo,
		logger:   logger.With("profile", profile),
		surfaces: make(map[string]script.Surface),
	}
}

// Send transmits text and echoes it to the user's output.
func (s *Services) Send(text string) error {
	if err := s.write(s.conn, text); err != nil {
		return err
	}
	return s.write(s.echo, text)
}

// SendSilently transmits text without local echo.
func (s *Services) SendSilently(text string) error {
	return s.write(s.conn, text)
}

// Log writes a line to the profile's script log: the structured logger
// plus an append-only file under the profile's script log directory.
func (s *Services) Log(text string, colorLog bool) {
	s.logger.Info(text, "source", "script", "color_log", colorLog)
	s.appendScriptLog(text)
}

func (s *Services) appendScriptLog(text string) {
	s.logOnce.Do(func() {
		dir := xdg.ScriptLogDir(s.profile)
		if err := xdg.EnsureDir(dir); err != nil {
			s.logger.Warn("script log directory unavailable", "error", err)
			return
		}
		f, err := os.OpenFile(filepath.Join(dir, "module.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			s.logger.Warn("script log file unavailable", "error", err)
			return
		}
		s.scriptLog = f
	})

	s.logMu.Lock()
	defer s.logMu.Unlock()
	if s.scriptLog == nil {
		return
	}
	if _, err := io.WriteString(s.scriptLog, text+"\n"); err != nil {
		s.logger.Warn("script log write failed", "error", err)
	}
}

// Close releases the script log file, if one was opened.
func (s *Services) Close() error {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	if s.scriptLog == nil {
		return nil
	}
	err := s.scriptLog.Close()
	s.scriptLog = nil
	return err
}

// ConfigDir returns the profile's configuration directory.
func (s *Services) ConfigDir() string {
	return xdg.ProfileConfigDir(s.profile)
}

// Surface returns the named UI surface.
func (s *Services) Surface(name string) (script.Surface, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	surface, ok := s.surfaces[name]
	if !ok {
		return nil, oops.In("session").
			With("profile", s.profile).
			With("surface", name).
			New("no surface registered with that name")
	}
	return surface, nil
}

// RegisterSurface makes a named UI surface available to scripts.
func (s *Services) RegisterSurface(surface script.Surface) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surfaces[surface.Name()] = surface
}

func (s *Services) write(w io.Writer, text string) error {
	if w == nil {
		return nil
	}
	if _, err := io.WriteString(w, text+"\n"); err != nil {
		return oops.In("session").
			With("profile", s.profile).
			Hint("transport write failed").
			Wrap(err)
	}
	return nil
}

// WriterSurface is a Surface backed by an io.Writer.
type WriterSurface struct {
	name string
	w    io.Writer
}

// NewWriterSurface creates a surface writing to w.
func NewWriterSurface(name string, w io.Writer) *WriterSurface {
	return &WriterSurface{name: name, w: w}
}

// Name returns the surface's registered name.
func (s *WriterSurface) Name() string { return s.name }

// Write appends text to the surface.
func (s *WriterSurface) Write(text string) error {
	if _, err := io.WriteString(s.w, text+"\n"); err != nil {
		return oops.In("session").With("surface", s.name).Wrap(err)
	}
	return nil
}
