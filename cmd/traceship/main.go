package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/traceship/internal/adapters/fs"
	"github.com/bft-labs/traceship/internal/cliconfig"
	"github.com/bft-labs/traceship/internal/ports"
	"github.com/bft-labs/traceship/pkg/log"
	"github.com/bft-labs/traceship/pkg/traceship"
)

// shutdownTimeout bounds the final delivery after input ends.
const shutdownTimeout = time.Minute

const longHelp = `Ship newline-delimited JSON ingestion events to a tracing backend.

Each input line is one event ({"id", "timestamp", "type", "body"}). Events
are batched by count and size, sent on a timer or when a batch fills up,
and retried with backoff on rate limits and server errors. On end of input
(or SIGINT/SIGTERM) everything still queued is flushed before exiting.

Configuration is read from $HOME/.traceship/config.toml, then TRACESHIP_*
environment variables, then flags; later sources win.`

var exampleUsage = strings.TrimSpace(`
  traceship --public-key pk-... --secret-key sk-... < events.ndjson
  traceship --input /var/log/app/events.ndjson --follow --metrics-addr :9464
  TRACESHIP_PUBLIC_KEY=pk-... TRACESHIP_SECRET_KEY=sk-... traceship --input events.ndjson
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return traceship.Version
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:           "traceship",
		Short:         "Ship NDJSON ingestion events in batches",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			return run(cmd.Context(), cfg, cmd.ErrOrStderr())
		},
	}

	f := root.Flags()
	f.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.traceship/config.toml)")
	f.StringVarP(&cfg.Input, "input", "i", cfg.Input, "NDJSON event file, or - for stdin")
	f.BoolVarP(&cfg.Follow, "follow", "f", cfg.Follow, "keep reading the input file as it grows")

	f.StringVar(&cfg.PublicKey, "public-key", cfg.PublicKey, "public API key")
	f.StringVar(&cfg.SecretKey, "secret-key", cfg.SecretKey, "secret API key")
	f.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "ingestion service base URL")
	f.DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP timeout per request")

	f.IntVar(&cfg.MaxEvents, "max-events", cfg.MaxEvents, "maximum events per batch")
	f.IntVar(&cfg.MaxBytes, "max-bytes", cfg.MaxBytes, "maximum bytes per batch")
	f.DurationVar(&cfg.FlushInterval, "flush-interval", cfg.FlushInterval, "time between periodic flushes")

	f.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "retries per batch after the first attempt")
	f.DurationVar(&cfg.InitialRetryDelay, "initial-retry-delay", cfg.InitialRetryDelay, "first retry delay")
	f.DurationVar(&cfg.MaxRetryDelay, "max-retry-delay", cfg.MaxRetryDelay, "retry delay cap")
	f.BoolVar(&cfg.NoJitter, "no-jitter", cfg.NoJitter, "disable random retry jitter")
	f.BoolVar(&cfg.FailFast, "fail-fast", cfg.FailFast, "abort a flush on the first failed batch")

	f.IntVar(&cfg.MaxQueueSize, "max-queue-size", cfg.MaxQueueSize, "maximum queued events")
	f.StringVar(&cfg.Backpressure, "backpressure", cfg.Backpressure, "policy when the queue is full: block, drop-new, drop-oldest")

	f.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address (disabled when empty)")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")

	if err := root.Execute(); err != nil {
		logger := log.NewZerologLogger(log.NewConsoleLogger(os.Stderr, cfg.LogLevel))
		logger.Error("traceship", log.Err(err))
		os.Exit(1)
	}
}

func run(parent context.Context, cfg cliconfig.Config, stderr io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}
	logger := log.NewZerologLogger(log.NewConsoleLogger(stderr, cfg.LogLevel))
	logger.Info("configuration", log.Any("config", cfg.Masked()))

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	client, err := traceship.New(cfg.Library(),
		traceship.WithLogger(logger.WithComponent("batcher")),
		traceship.WithPrometheusRegisterer(reg),
	)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, reg, logger)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	src, err := openSource(cfg, logger)
	if err != nil {
		_, _ = client.Shutdown(context.Background())
		return fmt.Errorf("open input: %w", err)
	}
	defer src.Close()

	readErr := pump(ctx, src, client, logger)

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	res, shutdownErr := client.Shutdown(sctx)

	m := client.Metrics()
	logger.Info("shutdown complete",
		log.Int("succeeded", res.SuccessCount),
		log.Int("failed", res.FailureCount),
		log.Int64("flushed_total", m.Flushed),
		log.Int64("failed_total", m.Failed),
		log.Int64("dropped_total", m.Dropped),
		log.Int64("retries_total", m.Retries),
		log.Int64("still_queued", m.Queued),
	)
	for _, f := range res.Failures {
		if !f.Retryable {
			logger.Warn("event failed", log.String("id", f.EventID), log.String("error", f.Error()))
		}
	}

	return errors.Join(readErr, shutdownErr)
}

// pump moves events from src into client until the input ends or ctx is done.
func pump(ctx context.Context, src ports.EventSource, client *traceship.Client, logger log.Logger) error {
	for {
		ev, err := src.Next(ctx)
		if err != nil {
			var lineErr *fs.LineError
			switch {
			case errors.As(err, &lineErr):
				logger.Warn("skipping malformed line", log.Int("line", lineErr.Line), log.Err(lineErr.Err))
				continue
			case errors.Is(err, io.EOF):
				logger.Info("input finished")
				return nil
			case ctx.Err() != nil:
				logger.Info("received signal, stopping...")
				return nil
			default:
				return fmt.Errorf("read input: %w", err)
			}
		}

		if err := client.Add(ctx, ev); err != nil {
			switch {
			case errors.Is(err, traceship.ErrQueueFull):
				// counted in the dropped metric
			case ctx.Err() != nil:
				logger.Info("received signal, stopping...")
				return nil
			default:
				logger.Warn("event rejected", log.String("id", ev.ID), log.Err(err))
			}
		}
	}
}

func openSource(cfg cliconfig.Config, logger log.Logger) (ports.EventSource, error) {
	if cfg.Input == cliconfig.StdinInput {
		return fs.NewReaderSource(os.Stdin), nil
	}
	return fs.OpenTailer(cfg.Input, cfg.Follow, logger)
}

func serveMetrics(addr string, reg *prometheus.Registry, logger log.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("serving metrics", log.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", log.Err(err))
		}
	}()
	return srv
}
