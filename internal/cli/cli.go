// Package cli implements the mediamirror command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mediamirror/internal/config"
	"mediamirror/internal/hashing"
	"mediamirror/internal/hls"
	"mediamirror/internal/platform"
	"mediamirror/internal/retrieval"
	"mediamirror/internal/transport"
)

// Process exit codes
const (
	ExitSuccess       = 0
	ExitAbort         = 1
	ExitAPIError      = 2
	ExitConfigError   = 3
	ExitDownloadError = 4
	ExitUnexpected    = 5
	ExitSomeFailed    = 6
)

var (
	ErrConfig = errors.New("configuration error")
	ErrUsage  = errors.New("usage error")
)

// ExitError carries an explicit exit code
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps an error to the process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	var (
		sourceErr   *retrieval.SourceFetchError
		statusErr   *transport.StatusError
		playlistErr *hls.PlaylistError
		segmentErr  *hls.SegmentFetchError
		muxErr      *hls.MuxError
		hashErr     *hashing.HashError
	)

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, ErrUsage):
		return ExitAbort
	case errors.Is(err, ErrConfig), errors.Is(err, retrieval.ErrNoSources), errors.Is(err, platform.ErrEmptyBaseURL):
		return ExitConfigError
	case errors.As(err, &sourceErr), errors.As(err, &statusErr),
		errors.Is(err, transport.ErrUnauthorized), errors.Is(err, transport.ErrRateLimited),
		errors.Is(err, platform.ErrUnsuccessful):
		return ExitAPIError
	case errors.As(err, &playlistErr), errors.As(err, &segmentErr),
		errors.As(err, &muxErr), errors.As(err, &hashErr):
		return ExitDownloadError
	default:
		return ExitUnexpected
	}
}

// App holds the state shared by every command
type App struct {
	version    string
	stdout     io.Writer
	stderr     io.Writer
	configPath string
	logLevel   string
}

// NewApp creates a new CLI application
func NewApp(version string, stdout, stderr io.Writer) *App {
	return &App{
		version: version,
		stdout:  stdout,
		stderr:  stderr,
	}
}

// Run executes args and returns the exit code
func (a *App) Run(ctx context.Context, args []string) int {
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return ExitCode(err)
	}
	return ExitSuccess
}

// Execute runs the CLI against the process arguments, cancelling on
// SIGINT or SIGTERM
func Execute(version string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return NewApp(version, os.Stdout, os.Stderr).Run(ctx, os.Args[1:])
}

func (a *App) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "mediamirror",
		Short:         "Mirror media from content sources into a local library",
		Version:       a.version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
			}
			return cmd.Help()
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	})

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", config.GetDefaultConfigPath(), "path to the configuration file (.toml or .yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		a.fetchCommand(),
		a.hashCommand(),
		a.indexCommand(),
		a.assembleCommand(),
		a.serveCommand(),
		a.sourcesCommand(),
		a.versionCommand(),
	)
	return root
}

// minArgs is cobra.MinimumNArgs reporting a usage error
func minArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MinimumNArgs(n)(cmd, args); err != nil {
			return fmt.Errorf("%w: %w", ErrUsage, err)
		}
		return nil
	}
}

// exactArgs is cobra.ExactArgs reporting a usage error
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return fmt.Errorf("%w: %w", ErrUsage, err)
		}
		return nil
	}
}
