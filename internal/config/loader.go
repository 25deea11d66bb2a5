package config

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/bricklog/internal/ctxlog"
)

// fileRoot decodes the top-level blocks of a settings file.
type fileRoot struct {
	Log    *logBlock    `hcl:"log,block"`
	Solve  *solveBlock  `hcl:"solve,block"`
	Listen *listenBlock `hcl:"listen,block"`
	Args   []*argBlock  `hcl:"arg,block"`
	Remain hcl.Body     `hcl:",remain"`
}

type logBlock struct {
	Level  *string `hcl:"level"`
	Format *string `hcl:"format"`
}

type solveBlock struct {
	MaxDepth *int `hcl:"max_depth"`
	Workers  *int `hcl:"workers"`
}

type listenBlock struct {
	Address         *string `hcl:"address"`
	DigestCacheSize *int    `hcl:"digest_cache_size"`
}

// argBlock is one default build argument. The default value accepts any
// primitive HCL expression and is converted to its string form, so
// `default = 3` and `default = "3"` are the same argument.
type argBlock struct {
	Name    string    `hcl:"name,label"`
	Default cty.Value `hcl:"default"`
}

// Load reads and decodes the settings file at path, merged over Default.
// A missing file is not an error; the defaults are returned as-is.
func Load(ctx context.Context, path string) (*Settings, error) {
	logger := ctxlog.FromContext(ctx)
	settings := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Debug("no settings file, using defaults", "path", path)
		return settings, nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing settings file %s: %w", path, diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("decoding settings file %s: %w", path, diags)
	}

	if root.Log != nil {
		applyString(&settings.Log.Level, root.Log.Level)
		applyString(&settings.Log.Format, root.Log.Format)
	}
	if root.Solve != nil {
		applyInt(&settings.Solve.MaxDepth, root.Solve.MaxDepth)
		applyInt(&settings.Solve.Workers, root.Solve.Workers)
	}
	if root.Listen != nil {
		applyString(&settings.Listen.Address, root.Listen.Address)
		applyInt(&settings.Listen.DigestCacheSize, root.Listen.DigestCacheSize)
	}
	for _, arg := range root.Args {
		v, err := convert.Convert(arg.Default, cty.String)
		if err != nil {
			return nil, fmt.Errorf("arg %q in %s: default is not convertible to string: %w",
				arg.Name, path, err)
		}
		settings.Args[arg.Name] = v.AsString()
	}

	if err := settings.validate(); err != nil {
		return nil, fmt.Errorf("settings file %s: %w", path, err)
	}
	logger.Debug("settings loaded", "path", path, "args", len(settings.Args))
	return settings, nil
}

func (s *Settings) validate() error {
	switch s.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", s.Log.Level)
	}
	switch s.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", s.Log.Format)
	}
	if s.Solve.MaxDepth < 0 {
		return fmt.Errorf("solve.max_depth must not be negative")
	}
	if s.Listen.DigestCacheSize < 0 {
		return fmt.Errorf("listen.digest_cache_size must not be negative")
	}
	return nil
}

func applyString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func applyInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}
