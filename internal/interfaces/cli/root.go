// Package cli is the operator command line of the learning engine.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/ExportReady-Intelligence/internal/bootstrap"
	"github.com/turtacn/ExportReady-Intelligence/internal/config"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

type cliContextKey struct{}

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	Verbose      bool
	Timeout      time.Duration
	MetricsAddr  string
}

// RuntimeFactory builds the wired engine for a command invocation.
type RuntimeFactory func(ctx context.Context, cfg *config.Config, log logging.Logger) (*bootstrap.Runtime, error)

func defaultRuntimeFactory(ctx context.Context, cfg *config.Config, log logging.Logger) (*bootstrap.Runtime, error) {
	return bootstrap.New(ctx, cfg, log, bootstrap.Options{})
}

// CLIContext carries initialized dependencies through the command tree.
type CLIContext struct {
	Config       *config.Config
	Logger       logging.Logger
	OutputFormat string
	Timeout      time.Duration

	factory RuntimeFactory
	runtime *bootstrap.Runtime
}

// Runtime returns the wired engine, building it on first use so commands
// that need no storage never open a connection.
func (c *CLIContext) Runtime(ctx context.Context) (*bootstrap.Runtime, error) {
	if c.runtime != nil {
		return c.runtime, nil
	}
	rt, err := c.factory(ctx, c.Config, c.Logger)
	if err != nil {
		return nil, err
	}
	c.runtime = rt
	return rt, nil
}

func (c *CLIContext) close() {
	if c.runtime == nil {
		return
	}
	if err := c.runtime.Close(context.Background()); err != nil {
		c.Logger.Warn("runtime shutdown incomplete", logging.Err(err))
	}
	c.runtime = nil
}

// NewRootCommand creates the root command with every subcommand registered.
func NewRootCommand() *cobra.Command {
	return newRootCommand(defaultRuntimeFactory, nil)
}

// newRootCommand lets tests substitute the runtime and the configuration.
func newRootCommand(factory RuntimeFactory, cfgOverride *config.Config) *cobra.Command {
	opts := &RootOptions{}
	var cliCtx *CLIContext

	cmd := &cobra.Command{
		Use:   "exportready",
		Short: "ExportReady learning engine: similarity-based export strategy learning",
		Long: "exportready records export outcomes, tracks business profile changes and\n" +
			"blends the experience of similar businesses into market recommendations.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newCLIContext(opts, factory, cfgOverride)
			if err != nil {
				return err
			}
			cliCtx = c
			cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, c))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: ./exportready.yaml)")
	pf.StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", "text", "output format (text, json, table)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable debug logging")
	pf.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "per-command operation timeout")
	pf.StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the command runs (e.g. :9102)")

	cmd.AddCommand(
		newSimilarityCmd(),
		newStrategiesCmd(),
		newPatternsCmd(),
		newOutcomeCmd(),
		newEnhanceCmd(),
		newSelectionCmd(),
		newProfileCmd(),
		newChangesCmd(),
		newMigrateCmd(),
		newHealthCmd(),
	)
	releaseAfterRun(cmd, func() {
		if cliCtx != nil {
			cliCtx.close()
		}
	})
	return cmd
}

// releaseAfterRun makes every runnable command call release when it returns,
// including on error, which PersistentPostRun does not cover.
func releaseAfterRun(cmd *cobra.Command, release func()) {
	if run := cmd.RunE; run != nil {
		cmd.RunE = func(c *cobra.Command, args []string) error {
			defer release()
			return run(c, args)
		}
	}
	for _, sub := range cmd.Commands() {
		releaseAfterRun(sub, release)
	}
}

func newCLIContext(opts *RootOptions, factory RuntimeFactory, cfgOverride *config.Config) (*CLIContext, error) {
	cfg := cfgOverride
	if cfg == nil {
		var err error
		if cfg, err = initConfig(opts); err != nil {
			return nil, fmt.Errorf("config initialization failed: %w", err)
		}
	}
	if opts.MetricsAddr != "" {
		cfg.Metrics.ListenAddr = opts.MetricsAddr
	}
	logger, err := initLogger(opts)
	if err != nil {
		return nil, fmt.Errorf("logger initialization failed: %w", err)
	}
	return &CLIContext{
		Config:       cfg,
		Logger:       logger,
		OutputFormat: opts.OutputFormat,
		Timeout:      opts.Timeout,
		factory:      factory,
	}, nil
}

// initConfig loads configuration with priority: flags > env > file > defaults.
func initConfig(opts *RootOptions) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.Load(opts.ConfigPath)
	}
	searchPaths := []string{"./exportready.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".exportready", "config.yaml"))
	}
	searchPaths = append(searchPaths, "/etc/exportready/config.yaml")

	for _, p := range searchPaths {
		if _, err := os.Stat(p); err == nil {
			return config.Load(p)
		}
	}
	return config.LoadFromEnv()
}

// initLogger creates a console logger on stderr so stdout stays parseable.
func initLogger(opts *RootOptions) (logging.Logger, error) {
	level := strings.ToLower(opts.LogLevel)
	if opts.Verbose {
		level = "debug"
	}
	return logging.NewLogger(logging.LogConfig{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

// GetCLIContext extracts CLIContext from a cobra command's context.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.New(errors.ErrCodeInternal, "command context is nil")
	}
	c, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || c == nil {
		return nil, errors.New(errors.ErrCodeInternal, "CLIContext not found in command context")
	}
	return c, nil
}

// runtimeFor returns the CLI context, the runtime and a context bounded by
// the --timeout flag.
func runtimeFor(cmd *cobra.Command) (*CLIContext, *bootstrap.Runtime, context.Context, context.CancelFunc, error) {
	c, err := GetCLIContext(cmd)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), c.Timeout)
	rt, err := c.Runtime(ctx)
	if err != nil {
		cancel()
		return nil, nil, nil, nil, err
	}
	return c, rt, ctx, cancel, nil
}

// Execute is the main entry point for the CLI application.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		PrintError(rootCmd, err)
		return err
	}
	return nil
}

// readJSON decodes the file at path into dest; "-" reads stdin.
func readJSON(cmd *cobra.Command, path string, dest interface{}) error {
	if path == "" {
		return errors.New(errors.ErrCodeBadRequest, "input file is required")
	}
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeBadRequest, "cannot open input").WithDetail("path=" + path)
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeBadRequest, "invalid JSON input").WithDetail("path=" + path)
	}
	return nil
}

// PrintResult outputs data in the format specified by CLIContext.
func PrintResult(cmd *cobra.Command, data interface{}) error {
	format := "json"
	if c, err := GetCLIContext(cmd); err == nil {
		format = strings.ToLower(c.OutputFormat)
	}
	switch format {
	case "json":
		return printJSON(cmd, data)
	case "table":
		return printTable(cmd, data)
	default:
		return printText(cmd, data)
	}
}

func printJSON(cmd *cobra.Command, data interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func printText(cmd *cobra.Command, data interface{}) error {
	switch v := data.(type) {
	case string:
		fmt.Fprintln(cmd.OutOrStdout(), v)
	case fmt.Stringer:
		fmt.Fprintln(cmd.OutOrStdout(), v.String())
	case tableProvider:
		fmt.Fprint(cmd.OutOrStdout(), FormatTable(v.TableHeaders(), v.TableRows()))
	default:
		return printJSON(cmd, data)
	}
	return nil
}

type tableProvider interface {
	TableHeaders() []string
	TableRows() [][]string
}

func printTable(cmd *cobra.Command, data interface{}) error {
	if tp, ok := data.(tableProvider); ok {
		fmt.Fprint(cmd.OutOrStdout(), FormatTable(tp.TableHeaders(), tp.TableRows()))
		return nil
	}
	return printText(cmd, data)
}

// PrintError writes a formatted error message to stderr.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())
}

// FormatTable renders headers and rows as an aligned ASCII table.
func FormatTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if len(row[i]) > widths[i] {
				widths[i] = len(row[i])
			}
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		for i := range headers {
			if i > 0 {
				sb.WriteString("  ")
			}
			val := ""
			if i < len(cells) {
				val = cells[i]
			}
			sb.WriteString(padRight(val, widths[i]))
		}
		sb.WriteString("\n")
	}

	writeRow(headers)
	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	writeRow(sep)
	for _, row := range rows {
		writeRow(row)
	}
	return sb.String()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func formatFloat(v float64) string { return fmt.Sprintf("%.3f", v) }
