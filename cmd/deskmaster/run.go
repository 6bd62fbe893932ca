package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nao1215/deskmaster/internal/browser/cdp"
	"github.com/nao1215/deskmaster/internal/captcha"
	"github.com/nao1215/deskmaster/internal/config"
	"github.com/nao1215/deskmaster/internal/database"
	dmlog "github.com/nao1215/deskmaster/internal/log"
	"github.com/nao1215/deskmaster/internal/metrics"
	"github.com/nao1215/deskmaster/internal/report"
	"github.com/nao1215/deskmaster/internal/session"
	"github.com/nao1215/deskmaster/internal/tool"
	"github.com/spf13/cobra"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <keyword>...",
		Short: "Run the automation for one or more keywords",
		Long: `Run processes each keyword in order against the search page open in Chrome.

For every result page it scrolls the list, opens listings whose review count
is inside review_range, closes tabs that lead to external malls, keeps the
tab budget, handles CAPTCHA challenges and moves to the next page.

Examples:
  # Start Chrome with remote debugging first
  google-chrome --remote-debugging-port=9222

  # Process two keywords
  deskmaster run "캠핑 텐트" "캠핑 의자"

  # Use a different DevTools endpoint and expose metrics
  deskmaster run --debug-url http://127.0.0.1:9333 --metrics-addr :9090 텐트

  # Do not record the session in the history database
  deskmaster run --no-history 텐트`,
		Args: cobra.ArbitraryArgs,
		RunE: runRunCmd,
	}
	addRunFlags(cmd)
	return cmd
}

// addRunFlags registers the flags shared by the root and run commands.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("debug-url", config.DefaultDebugURL,
		"Chrome DevTools endpoint")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPagesPerKeyword,
		"Maximum result pages per keyword")
	cmd.Flags().Int("max-tabs", config.DefaultMaxTabsTotal,
		"Maximum open tabs including the result list")
	cmd.Flags().String("metrics-addr", "",
		"Serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().Bool("no-history", false,
		"Do not record the session in the history database")
	cmd.Flags().Bool("skip-env-check", false,
		"Skip the display resolution and scale check")
}

// runRunCmd executes a session for the keywords in args.
func runRunCmd(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		_ = cmd.Usage()
		return config.ErrNoKeywords
	}

	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := dmlog.NewSecureLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runSession(ctx, cfg, logger, cmd.OutOrStdout())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// loadConfig reads .env files and the configuration file named by the
// --config flag, or the first one found in the default locations.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := config.LoadDotEnv(config.DefaultEnvFile, filepath.Join(config.XDGConfigDir(), config.DefaultEnvFile)); err != nil {
		return nil, err
	}

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use the defaults.
	found := config.FindConfigFile(configPath)
	switch {
	case found != "":
		cfg, err := config.LoadConfigFile(found)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", found, err)
		}
		return cfg, nil
	case configPath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, configPath)
	default:
		return config.NewConfig(), nil
	}
}

// buildConfig creates a Config from the configuration file and flags.
// Flags override the file only when given explicitly.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("debug-url") {
		if cfg.Chrome.DebugURL, err = flags.GetString("debug-url"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-pages") {
		if cfg.ListScan.MaxPagesPerKeyword, err = flags.GetInt("max-pages"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-tabs") {
		if cfg.Chrome.MaxTabsTotal, err = flags.GetInt("max-tabs"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("metrics-addr") {
		if cfg.Metrics.Addr, err = flags.GetString("metrics-addr"); err != nil {
			return nil, err
		}
	}
	skipEnv, err := flags.GetBool("skip-env-check")
	if err != nil {
		return nil, err
	}
	if skipEnv {
		cfg.Display.SkipCheck = true
	}

	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	if !noHistory {
		cfg.DBDir = config.XDGDataDir()
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.Keywords = args
	return cfg, nil
}

// runSession connects to Chrome and runs every keyword.
// An interrupted session still prints its summary and returns nil.
func runSession(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	var m *metrics.Metrics
	recOpts := []dmlog.RecorderOption{dmlog.WithDiagnostics(logger)}
	if cfg.Metrics.Addr != "" {
		m = metrics.New()
		if err := m.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		recOpts = append(recOpts, dmlog.WithEventHook(m.Observe))
	}

	rec, err := dmlog.NewRecorder(cfg.LogDir(), recOpts...)
	if err != nil {
		return err
	}
	defer rec.Close()

	b, err := cdp.Connect(ctx, cfg.Chrome.DebugURL, cdp.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to connect to chrome at %s: %w", cfg.Chrome.DebugURL, err)
	}

	opts := []session.Option{
		session.WithLogger(logger),
		session.WithGate(captcha.NewTerminalGate(os.Stdin, os.Stderr)),
	}

	if len(cfg.Tools.Servers) > 0 {
		tool.Version = getVersion()
		tools := tool.NewClient(cfg.Tools, tool.WithLogger(logger))
		defer func() {
			if err := tools.Close(); err != nil {
				logger.Error("failed to stop tool servers", "error", err)
			}
		}()
		opts = append(opts, session.WithTools(tools))
	} else {
		logger.Warn("no tool servers configured; OCR fallback and automatic CAPTCHA solving are disabled")
	}

	if cfg.DBDir != "" {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "dir", cfg.DBDir)
		opts = append(opts, session.WithStore(db))
	}

	summary, runErr := session.New(b, cfg, rec, opts...).Run(ctx, cfg.Keywords)
	m.ObserveSession(summary)

	if summary != nil {
		if _, err := report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose)).WriteSummary(summary); err != nil {
			return errors.Join(runErr, err)
		}
	}
	return runErr
}
