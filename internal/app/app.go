package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vk/bricklog/internal/config"
	"github.com/vk/bricklog/internal/ctxlog"
	"github.com/vk/bricklog/internal/logic"
	"github.com/vk/bricklog/internal/parser"
	"github.com/vk/bricklog/internal/solver"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle. The plan output stream is separate from the log stream so a
// compiled plan on stdout stays machine-readable.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	settings *config.Settings
	program  *logic.Program
}

// NewApp constructs the application: settings loaded and merged with flag
// overrides, the source file parsed into an immutable program. A failure to
// load settings or parse the source is a fatal startup error.
func NewApp(outW, logW io.Writer, cfg *Config) (*App, error) {
	settings, err := loadSettings(cfg, logW)
	if err != nil {
		return nil, err
	}
	logger := newLogger(settings.Log.SlogLevel(), settings.Log.Format, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)

	src, err := os.ReadFile(cfg.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("reading source file: %w", err)
	}
	program, _, err := parser.Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.SourcePath, err)
	}
	ctxlog.FromContext(ctx).Debug("program parsed",
		"file", cfg.SourcePath, "clauses", program.Len(), "predicates", len(program.Signatures()))

	return &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		settings: settings,
		program:  program,
	}, nil
}

// Program returns the parsed program, primarily for tests.
func (a *App) Program() *logic.Program {
	return a.program
}

// loadSettings reads the settings file and applies flag overrides on top.
func loadSettings(cfg *Config, logW io.Writer) (*config.Settings, error) {
	// Settings loading logs with a bootstrap logger; the real one needs the
	// loaded settings first.
	boot := newLogger(config.LogSettings{Level: cfg.LogLevel}.SlogLevel(), cfg.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), boot)

	settings, err := config.Load(ctx, cfg.SettingsPath)
	if err != nil {
		return nil, err
	}
	if cfg.LogLevel != "" {
		settings.Log.Level = cfg.LogLevel
	}
	if cfg.LogFormat != "" {
		settings.Log.Format = cfg.LogFormat
	}
	if cfg.MaxDepth > 0 {
		settings.Solve.MaxDepth = cfg.MaxDepth
	}
	if cfg.Workers > 0 {
		settings.Solve.Workers = cfg.Workers
	}
	return settings, nil
}

// solverOptions is the solver configuration after all overrides.
func (a *App) solverOptions() solver.Options {
	return a.settings.SolverOptions()
}
