package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/vk/bricklog/internal/app"
)

// ExitError is an error carrying a specific process exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	return e.Message
}

// argList collects repeated -arg key=value flags.
type argList map[string]string

func (a argList) String() string {
	var parts []string
	for k, v := range a {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (a argList) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || k == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	a[k] = v
	return nil
}

// Parse processes command-line arguments. It returns a populated app
// config, a boolean indicating the program should exit cleanly (help was
// printed), or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("bricklog", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
bricklog - logic-programming build files compiled to an operation graph.

Usage:
  bricklog [options] SOURCE_FILE

Arguments:
  SOURCE_FILE
    Path to a .blog source file containing build clauses.

Options:
`)
		flagSet.PrintDefaults()
	}

	queryFlag := flagSet.String("query", "", "Target goal to compile, e.g. 'stage(\"final\")'.")
	buildArgs := argList{}
	flagSet.Var(buildArgs, "arg", "Build argument as key=value; repeatable.")
	allVariantsFlag := flagSet.Bool("all-variants", false, "Compile every derivation of the goal, not just the first.")
	printProofFlag := flagSet.Bool("print-proof", false, "Print the proof tree of each compiled derivation to stderr.")
	outputFlag := flagSet.String("o", "", "Write the compiled plan to this file instead of stdout.")
	listenFlag := flagSet.Bool("listen", false, "Serve the frontend protocol instead of compiling a query.")
	settingsFlag := flagSet.String("config", "bricklog.hcl", "Path to the settings file.")
	logFormatFlag := flagSet.String("log-format", "", "Log output format: 'text' or 'json'. Overrides the settings file.")
	logLevelFlag := flagSet.String("log-level", "", "Log level: 'debug', 'info', 'warn', 'error'. Overrides the settings file.")
	maxDepthFlag := flagSet.Int("max-depth", 0, "Maximum proof depth. Overrides the settings file.")
	workersFlag := flagSet.Int("workers", 0, "Worker count for all-variants resolution. Overrides the settings file.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	if flagSet.NArg() == 0 {
		flagSet.Usage()
		return nil, true, nil
	}
	if flagSet.NArg() > 1 {
		return nil, false, &ExitError{Code: 2, Message: "expected exactly one source file"}
	}

	if f := strings.ToLower(*logFormatFlag); f != "" && f != "text" && f != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}
	switch l := strings.ToLower(*logLevelFlag); l {
	case "", "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	cfg, err := app.NewConfig(app.Config{
		SourcePath:   flagSet.Arg(0),
		Query:        *queryFlag,
		Args:         buildArgs,
		AllVariants:  *allVariantsFlag,
		PrintProof:   *printProofFlag,
		OutputPath:   *outputFlag,
		Listen:       *listenFlag,
		SettingsPath: *settingsFlag,
		LogFormat:    strings.ToLower(*logFormatFlag),
		LogLevel:     strings.ToLower(*logLevelFlag),
		MaxDepth:     *maxDepthFlag,
		Workers:      *workersFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	return cfg, false, nil
}
