// Package config loads bricklog settings from an HCL file. Settings cover
// everything that is environment rather than program: log output, solver
// limits, the frontend listener, and default build arguments. Command-line
// flags override whatever the file provides.
package config

import (
	"log/slog"

	"github.com/vk/bricklog/internal/solver"
)

// Settings is the decoded settings file.
type Settings struct {
	Log    LogSettings
	Solve  SolveSettings
	Listen ListenSettings
	// Args are default build arguments, applied to a build request wherever
	// the request itself does not set the key.
	Args map[string]string
}

// LogSettings selects log output format and verbosity.
type LogSettings struct {
	// Level is one of debug, info, warn, error.
	Level string
	// Format is "text" or "json".
	Format string
}

// SlogLevel maps the level name onto slog's scale. Unknown names mean the
// value has not been validated yet, as on the bootstrap path, and read as
// info.
func (l LogSettings) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SolveSettings bounds resolution runs.
type SolveSettings struct {
	MaxDepth int
	Workers  int
}

// ListenSettings configures the frontend listener.
type ListenSettings struct {
	// Address is the host:port the frontend binds, e.g. ":7420".
	Address string
	// DigestCacheSize caps the image digest cache. Zero disables caching.
	DigestCacheSize int
}

// Default returns the settings used when no file is present.
func Default() *Settings {
	return &Settings{
		Log:    LogSettings{Level: "info", Format: "text"},
		Solve:  SolveSettings{MaxDepth: solver.DefaultMaxDepth},
		Listen: ListenSettings{Address: ":7420", DigestCacheSize: 256},
		Args:   map[string]string{},
	}
}

// SolverOptions converts the solve block to solver options.
func (s *Settings) SolverOptions() solver.Options {
	return solver.Options{
		MaxDepth: s.Solve.MaxDepth,
		Workers:  s.Solve.Workers,
	}
}
