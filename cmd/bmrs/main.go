// Command bmrs downloads Balancing Mechanism Reporting Service reports as CSV.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/seenimoa/bmrs/api"
	"github.com/seenimoa/bmrs/internal/bmrs"
	"github.com/seenimoa/bmrs/internal/config"
	"github.com/seenimoa/bmrs/internal/infra"
	"github.com/seenimoa/bmrs/internal/logging"
	"github.com/seenimoa/bmrs/internal/planner"
	"github.com/seenimoa/bmrs/internal/report"
	"github.com/seenimoa/bmrs/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Process exit codes.
const (
	exitOK           = 0
	exitFailure      = 1
	exitInvalidParam = 2
	exitFetch        = 3
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI with args and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err != nil && !a.quiet {
		fmt.Fprintln(stderr, "error:", err)
	}
	return exitCode(err)
}

// exitCode maps an error onto the process exit code.
func exitCode(err error) int {
	var ipe *report.InvalidParameterError
	var fe *report.FetchError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &ipe):
		return exitInvalidParam
	case errors.As(err, &fe):
		return exitFetch
	default:
		return exitFailure
	}
}

// app carries the state shared by all commands of one invocation.
type app struct {
	cfg    *config.Config
	stdout io.Writer
	stderr io.Writer
	quiet  bool
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bmrs",
		Short: "BMRS report downloader",
		Long: `bmrs downloads Elexon BMRS reports over any date range.

The range is split into the windows each report accepts, every window is
fetched and the results are concatenated into one CSV table.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Read before anything can fail so quiet mode covers config errors.
			if q, err := cmd.Flags().GetBool("quiet"); err == nil {
				a.quiet = q
			}

			var err error
			configFile, _ := cmd.Flags().GetString("config")
			if configFile != "" {
				a.cfg, err = config.LoadFromFile(configFile)
			} else {
				a.cfg, err = config.Load()
			}
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if level, _ := cmd.Flags().GetString("log-level"); level != "" {
				a.cfg.Logging.Level = level
			}
			return nil
		},
	}

	root.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	root.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		a.fetchCmd(),
		a.reportsCmd(),
		a.planCmd(),
		a.serveCmd(),
		a.statusCmd(),
		a.versionCmd(),
	)
	return root
}

// logger returns the stderr logger, or a silent one in quiet mode.
func (a *app) logger() zerolog.Logger {
	if a.quiet {
		return logging.Quiet()
	}
	return logging.New(a.cfg.Logging, a.stderr)
}

// newPlanner builds a planner with the configured caps.
func (a *app) newPlanner() (*planner.Planner, error) {
	p, err := planner.New(report.DefaultCatalog(), a.cfg.Planner.Caps())
	if err != nil {
		return nil, fmt.Errorf("planner config: %w", err)
	}
	return p, nil
}

// newDownloader wires the planner, the HTTP client and the rate limiter.
// concurrency overrides the configured value when positive.
func (a *app) newDownloader(apiKey string, concurrency int, log zerolog.Logger) (*bmrs.Downloader, error) {
	p, err := a.newPlanner()
	if err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		concurrency = a.cfg.BMRS.Concurrency
	}

	opts := []bmrs.Option{
		bmrs.WithHTTPClient(infra.NewHTTPClient(a.cfg.BMRS.Timeout())),
		bmrs.WithRateLimiter(infra.NewRateLimiter(a.cfg.BMRS.RateLimit, a.cfg.BMRS.Burst)),
		bmrs.WithConcurrency(concurrency),
		bmrs.WithLogger(log),
	}
	if a.cfg.BMRS.BaseURL != "" {
		opts = append(opts, bmrs.WithBaseURL(a.cfg.BMRS.BaseURL))
	}
	if a.cfg.BMRS.APIVersion != "" {
		opts = append(opts, bmrs.WithAPIVersion(a.cfg.BMRS.APIVersion))
	}
	return bmrs.NewDownloader(p, bmrs.New(apiKey, opts...), log), nil
}

// apiKey returns flagKey if set, otherwise the configured key.
func (a *app) apiKey(flagKey string) (string, error) {
	if flagKey != "" {
		return flagKey, nil
	}
	key, err := a.cfg.ResolveAPIKey()
	if err != nil {
		return "", &report.InvalidParameterError{Param: "api-key", Reason: err.Error()}
	}
	return key, nil
}

// signalContext returns a context cancelled on interrupt.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt)
}

// --- Serve Command (API Server) ---

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := a.logger()
			key, err := a.cfg.ResolveAPIKey()
			if err != nil {
				log.Warn().Err(err).Msg("no API key configured, data endpoints will fail upstream")
			}
			d, err := a.newDownloader(key, 0, log)
			if err != nil {
				return err
			}

			port, _ := cmd.Flags().GetInt("port")
			if port == 0 {
				port = a.cfg.API.Port
			}
			addr := fmt.Sprintf("%s:%d", a.cfg.API.Host, port)
			return api.NewServer(a.cfg, d, log, version).ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().Int("port", 0, "listen port (default from config)")
	return cmd
}

// --- Status Command ---

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show system status and configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := a.stdout
			now := utils.NowUK()
			day, sp := utils.SettlementPeriodAt(now)

			fmt.Fprintln(w, "═══════════════════════════════════════")
			fmt.Fprintln(w, "  BMRS System Status")
			fmt.Fprintln(w, "═══════════════════════════════════════")
			fmt.Fprintf(w, "  Version:           %s (%s)\n", version, commit)
			fmt.Fprintf(w, "  Time (UK):         %s\n", utils.FormatDateTimeUK(now))
			fmt.Fprintf(w, "  Settlement period: %s SP%d of %d\n",
				day.Format(report.DateLayout), sp, utils.SettlementPeriodsInDay(day))
			fmt.Fprintln(w)

			fmt.Fprintln(w, "  Configuration:")
			fmt.Fprintf(w, "    Base URL:      %s (%s)\n", a.cfg.BMRS.BaseURL, a.cfg.BMRS.APIVersion)
			fmt.Fprintf(w, "    Rate limit:    %.2f req/s (burst %d)\n", a.cfg.BMRS.RateLimit, a.cfg.BMRS.Burst)
			fmt.Fprintf(w, "    Concurrency:   %d\n", a.cfg.BMRS.Concurrency)
			fmt.Fprintf(w, "    API Server:    %s:%d\n", a.cfg.API.Host, a.cfg.API.Port)
			fmt.Fprintln(w)

			fmt.Fprintln(w, "  API Keys:")
			for _, k := range config.CheckAPIKeys(a.cfg) {
				status := "not set"
				if k.IsSet {
					status = fmt.Sprintf("set (%s: %s)", k.Source, k.Masked)
				}
				fmt.Fprintf(w, "    %-25s %s\n", k.Name+":", status)
			}
			fmt.Fprintln(w, "═══════════════════════════════════════")
			return nil
		},
	}
}

// --- Version Command ---

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// The version command needs no configuration.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "bmrs %s\n", version)
			fmt.Fprintf(a.stdout, "  commit:  %s\n", commit)
			fmt.Fprintf(a.stdout, "  built:   %s\n", date)
		},
	}
}
