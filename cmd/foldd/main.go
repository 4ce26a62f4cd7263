// Foldd computes and maintains fold regions for source files.
//
// Usage:
//
//	# Print a file's outline and folds
//	foldd outline main.go
//
//	# Show the batches produced by successive versions of a file
//	foldd replay v1.go v2.go v3.go
//
//	# Follow a file as it is edited
//	foldd watch main.go
//
//	# Serve the documents API
//	foldd serve
//
//	# Browse a file's folds in the terminal
//	foldd view main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/foldd/internal/config"
	"github.com/fyrsmithlabs/foldd/internal/editor"
	"github.com/fyrsmithlabs/foldd/internal/folding"
	"github.com/fyrsmithlabs/foldd/internal/logging"
	"github.com/fyrsmithlabs/foldd/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	configPath string
	logLevel   string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "foldd",
		Short: "Structural fold regions for source files",
		Long: `foldd parses source files, derives fold regions from their structure and
keeps those regions stable while the files change.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/foldd/config.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	root.AddCommand(
		newOutlineCmd(),
		newReplayCmd(),
		newWatchCmd(),
		newServeCmd(),
		newViewCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "foldd by Fyrsmith Labs\n")
			fmt.Fprintf(out, "Version:    %s\n", version)
			fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
		},
	}
}

// runtime holds what every command needs: config, logger, telemetry and a
// workspace wired to them.
type runtime struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	workspace *editor.Workspace
}

type runtimeOptions struct {
	// quiet keeps logs off the terminal, for the viewer.
	quiet bool
}

// newRuntime loads configuration and initializes logging and telemetry.
func newRuntime(ctx context.Context, opts runtimeOptions) (*runtime, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	tel, err := telemetry.New(ctx, telemetry.FromConfig(cfg.Telemetry, version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logger, err := initLogger(cfg, tel, opts.quiet)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if h := tel.Health(); h.State == telemetry.StateDegraded {
		logger.Warn(ctx, "telemetry degraded", zap.Strings("problems", h.Problems))
	}

	foldingCfg, err := foldingConfig(cfg.Folding)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}

	wsOpts := []editor.WorkspaceOption{
		editor.WithLogger(logger),
		editor.WithMetrics(editor.NewMetrics()),
	}
	if fm, err := folding.NewMetrics(tel.Meter(folding.InstrumentationName)); err != nil {
		logger.Warn(ctx, "folding metrics unavailable", zap.Error(err))
	} else {
		wsOpts = append(wsOpts, editor.WithFoldingMetrics(fm))
	}

	return &runtime{
		cfg:       cfg,
		logger:    logger,
		telemetry: tel,
		workspace: editor.NewWorkspace(foldingCfg, wsOpts...),
	}, nil
}

func initLogger(cfg *config.Config, tel *telemetry.Telemetry, quiet bool) (*logging.Logger, error) {
	level, err := logging.LevelFromString(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	lc := logging.NewDefaultConfig()
	lc.Level = level
	lc.Format = cfg.Logging.Format
	lc.Output.OTEL = tel.IsEnabled()
	lc.Output.Console = !quiet
	if !lc.Output.Console && !lc.Output.OTEL {
		return logging.NewNop(), nil
	}
	return logging.NewLogger(lc, tel.LoggerProvider())
}

func foldingConfig(fc config.FoldingConfig) (*folding.Config, error) {
	kinds, err := fc.CollapseKinds()
	if err != nil {
		return nil, fmt.Errorf("folding.collapse_on_init: %w", err)
	}
	return &folding.Config{
		Enabled:           fc.Enabled,
		CollapseOnInit:    kinds,
		CollapseDocOnInit: fc.CollapseDocComments,
	}, nil
}

// Close closes every open document and flushes telemetry.
func (r *runtime) Close() {
	timeout := r.cfg.Server.ShutdownTimeout.Duration()
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := r.workspace.CloseAll(ctx); err != nil {
		r.logger.Warn(ctx, "closing documents", zap.Error(err))
	}
	if err := r.telemetry.Shutdown(ctx); err != nil {
		r.logger.Warn(ctx, "telemetry shutdown", zap.Error(err))
	}
	_ = r.logger.Sync()
}

// openFile reads path into a new document.
func (r *runtime) openFile(ctx context.Context, path, language string) (*editor.Document, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return r.workspace.Open(ctx, path, language, text)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

const defaultShutdownTimeout = 10 * time.Second
