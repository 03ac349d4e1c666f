package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ormasoftchile/wetest/pkg/logger"
	"github.com/ormasoftchile/wetest/pkg/macros"
	"github.com/ormasoftchile/wetest/pkg/scenario"
)

// Set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Process exit codes.
const (
	exitGeneric        = 1
	exitUsage          = 2
	exitNothingToRun   = 3
	exitFileNotFound   = 4
	exitUnsupported    = 5
	exitInvalidContent = 6
)

var (
	errMandatory    = errors.New("mandatory validation failed")
	errNothingToRun = errors.New("no test to run")
	errTestsFailed  = errors.New("some tests did not succeed")
)

// usageError marks bad command lines.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	var (
		usage       *usageError
		notFound    *scenario.FileNotFoundError
		unsupported *scenario.UnsupportedFileFormatError
		invalid     *scenario.InvalidFileContentError
		macroErr    *macros.MacroError
	)
	switch {
	case err == nil:
		return 0
	case errors.As(err, &usage):
		return exitUsage
	case errors.Is(err, errNothingToRun):
		return exitNothingToRun
	case errors.As(err, &notFound):
		return exitFileNotFound
	case errors.As(err, &unsupported):
		return exitUnsupported
	case errors.As(err, &invalid), errors.As(err, &macroErr):
		return exitInvalidContent
	}
	return exitGeneric
}

// app holds the flags shared by every command.
type app struct {
	macros    []string
	propagate bool
	schema    string
	logLevel  string
	logFormat string

	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}
	root := &cobra.Command{
		Use:           "wetest",
		Short:         "Scenario based testing of EPICS process variables",
		Long:          "wetest loads YAML test scenarios, validates them and compiles them into an ordered suite of tests on process variables.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level, format := logger.Resolve(a.logLevel, a.logFormat)
			a.logger = logger.NewTo(cmd.ErrOrStderr(), level, format)
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	pf := root.PersistentFlags()
	pf.StringArrayVarP(&a.macros, "macro", "m", nil, "Define a macro (NAME=VALUE), repeatable; takes priority over file macros")
	pf.BoolVar(&a.propagate, "propagate", false, "Share the including file's macros with included files")
	pf.StringVar(&a.schema, "schema", "", "Validate against this JSON or YAML schema instead of the built-in one")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level: DEBUG, INFO, WARN or ERROR (default $"+logger.EnvLevel+" or WARN)")
	pf.StringVar(&a.logFormat, "log-format", "", "Log format: CONSOLE or JSON (default $"+logger.EnvFormat+" or CONSOLE)")

	root.AddCommand(
		a.validateCmd(),
		a.listCmd(),
		a.runCmd(),
		a.schemaCmd(),
		a.pvsCmd(),
		a.watchCmd(),
		versionCmd(),
	)
	return root
}

// --- version ---

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "wetest %s (build: %s, scenario format %s)\n", version, commit, scenario.ToolVersion)
		},
	}
}

// requireFiles is the Args check of commands reading scenario files.
func requireFiles(_ *cobra.Command, args []string) error {
	if len(args) == 0 {
		return usagef("at least one scenario file is required")
	}
	return nil
}
