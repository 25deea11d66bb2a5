package app

import "errors"

// Config holds everything an App instance needs to run.
type Config struct {
	// SourcePath is the build source file.
	SourcePath string
	// Query is the target goal in source syntax. Required unless Listen is
	// set; in listen mode targets arrive with each build request.
	Query string
	// Args bind free variables of the query goal.
	Args map[string]string

	AllVariants bool
	PrintProof  bool
	// OutputPath receives the compiled plan; empty means stdout.
	OutputPath string

	// Listen switches to serving the frontend protocol.
	Listen bool

	// SettingsPath locates the HCL settings file.
	SettingsPath string

	// LogFormat, LogLevel, MaxDepth and Workers override the settings file
	// when non-zero.
	LogFormat string
	LogLevel  string
	MaxDepth  int
	Workers   int
}

// NewConfig validates a config.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.SourcePath == "" {
		return nil, errors.New("a source file is required")
	}
	if !cfg.Listen && cfg.Query == "" {
		return nil, errors.New("a -query goal is required unless -listen is set")
	}
	if cfg.Listen && cfg.Query != "" {
		return nil, errors.New("-query and -listen are mutually exclusive")
	}
	if cfg.MaxDepth < 0 {
		return nil, errors.New("max-depth must not be negative")
	}
	return &cfg, nil
}
