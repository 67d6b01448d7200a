package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/getsentry/callprof/internal/calltimer"
	"github.com/getsentry/callprof/internal/httputil"
	"github.com/getsentry/callprof/internal/logutil"
	"github.com/getsentry/callprof/internal/profiler"
	"github.com/getsentry/callprof/internal/report"
	"github.com/getsentry/callprof/internal/workload"
	"github.com/getsentry/callprof/pkg/hook"
)

var (
	release string

	summaryStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func main() {
	err := newRootCmd().Execute()
	sentry.Flush(5 * time.Second)
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg ServiceConfig

	cmd := &cobra.Command{
		Use:           "callprof",
		Short:         "Time every instrumented call of a Go program",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = loadConfig()
			if err != nil {
				return err
			}
			logutil.ConfigureLogger(cfg.level())

			err = sentry.Init(sentry.ClientOptions{
				Dsn:         cfg.SentryDSN,
				Environment: cfg.Environment,
				Release:     release,
				BeforeSend:  httputil.SetHTTPStatusCodeTag,
			})
			if err != nil {
				log.Err(err).Msg("can't initialize sentry")
				return err
			}
			return nil
		},
	}

	cmd.AddCommand(newRunCmd(&cfg), newInstrumentCmd())

	return cmd
}

func newRunCmd(cfg *ServiceConfig) *cobra.Command {
	var (
		iterations int
		topK       int
		listen     string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Profile the bundled inference workload and print the slowest callables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("iterations") {
				cfg.Iterations = iterations
			}
			if flags.Changed("top-k") {
				cfg.TopK = topK
			}
			if flags.Changed("serve") {
				cfg.Listen = listen
			}
			if err := cfg.validate(); err != nil {
				return err
			}

			table, err := runProfile(cmd.OutOrStdout(), *cfg)
			if err != nil {
				sentry.CaptureException(err)
				log.Err(err).Msg("profiling failed")
				return err
			}
			if cfg.Listen == "" {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serveReport(ctx, *cfg, table)
		},
	}

	cmd.Flags().IntVar(&iterations, "iterations", 10, "Number of passes over the dataset")
	cmd.Flags().IntVar(&topK, "top-k", report.DefaultTopK, "Number of callables reported")
	cmd.Flags().StringVar(&listen, "serve", "", "Serve the report over HTTP on this address once the run is over")

	return cmd
}

// runProfile runs the workload under a profiling session and prints the
// elapsed time followed by the report.
func runProfile(w io.Writer, cfg ServiceConfig) (*calltimer.Table, error) {
	d := workload.NewDataset(cfg.Images, cfg.ImageSize, cfg.ImageSize, cfg.Seed)
	p := workload.NewPredictor(cfg.ImageSize/2, cfg.ImageSize/2)
	m := workload.NewModel(cfg.ModelDepth)

	var detections int
	start := time.Now()
	table, err := profiler.Run(hook.Default, profiler.Config{}, func() error {
		var err error
		detections, err = workload.Run(cfg.Iterations, d, p, m)
		return err
	})
	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(w, summaryStyle.Render(fmt.Sprintf("%s elapsed", elapsed)),
		dimStyle.Render(fmt.Sprintf("%d detections, %d callables", detections, table.Len())))
	if err := report.Write(w, report.Top(table, cfg.TopK)); err != nil {
		return nil, err
	}
	return table, nil
}

func serveReport(ctx context.Context, cfg ServiceConfig, table *calltimer.Table) error {
	s := &server{table: table, topK: cfg.TopK}
	router, err := s.newRouter()
	if err != nil {
		sentry.CaptureException(err)
		return err
	}
	l, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return err
	}
	log.Info().Str("addr", l.Addr().String()).Msg("serving report")
	return serve(ctx, l, router)
}
