// Entry point for the simwatch service: scheduler, chi HTTP server,
// webhook notifications, optional MCP stdio transport.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/simwatch/config"
	"github.com/hazyhaar/simwatch/crawler"
	"github.com/hazyhaar/simwatch/detect"
	"github.com/hazyhaar/simwatch/mcptool"
	"github.com/hazyhaar/simwatch/pipeline"
	"github.com/hazyhaar/simwatch/report"
	"github.com/hazyhaar/simwatch/scheduler"
	"github.com/hazyhaar/simwatch/score"
	"github.com/hazyhaar/simwatch/server"
	"github.com/hazyhaar/simwatch/store"
)

func main() {
	configPath := flag.String("config", env("SIMWATCH_CONFIG", "simwatch.yaml"), "path to YAML config")
	flag.Parse()

	logger := newLogger(env("LOG_LEVEL", "info"))
	slog.SetDefault(logger)

	if err := run(*configPath, logger); err != nil {
		logger.Error("simwatch", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	matcher, err := score.NewMatcher(cfg.Indicators)
	if err != nil {
		return fmt.Errorf("build matcher: %w", err)
	}

	fetcher := crawler.NewFetcher(crawler.FetchConfig{
		Timeout:   cfg.Crawler.Timeout,
		MaxBytes:  cfg.Crawler.MaxBytes,
		UserAgent: cfg.Crawler.UserAgent,
	})
	var producers []crawler.Producer
	if len(cfg.Crawler.Engines) > 0 {
		producers = append(producers, crawler.NewSearchProducer(cfg.Crawler, cfg.Entities, fetcher.Client(), logger))
	}
	if len(cfg.Crawler.Pages) > 0 {
		producers = append(producers, crawler.NewPageProducer(cfg.Crawler, fetcher, logger))
	}
	if len(producers) == 0 {
		logger.Warn("no producers configured, cycles will score nothing")
	}

	var opts []pipeline.Option
	notifier, err := buildNotifier(cfg.Webhooks, fetcher.Client(), logger)
	if err != nil {
		return fmt.Errorf("webhooks: %w", err)
	}
	if notifier != nil {
		opts = append(opts, pipeline.WithChangeHook(func(ctx context.Context, ch detect.Change) {
			notifier.Notify(ctx, ch)
		}))
	}

	runner, err := pipeline.NewRunner(st, matcher, producers, pipeline.Config{
		Entities: cfg.Entities,
		Detect:   detect.Config{SignificanceThreshold: cfg.Detect.SignificanceThreshold},
	}, logger, opts...)
	if err != nil {
		return fmt.Errorf("build runner: %w", err)
	}

	sealer, err := buildSealer(cfg.Report.SealKeyEnv)
	if err != nil {
		return fmt.Errorf("seal key: %w", err)
	}
	builder := report.NewBuilder(st, cfg.Report.TopN, sealer)

	var schedOpts []scheduler.Option
	if notifier != nil {
		schedOpts = append(schedOpts, scheduler.WithStaleAlert(notifier.NotifyStale))
	}
	sched := scheduler.New(func(ctx context.Context) error {
		sum, err := runner.RunCycle(ctx)
		if err != nil {
			return err
		}
		logger.Info("cycle done",
			"scored", sum.EntitiesScored,
			"changes", sum.ChangesDetected,
			"duplicates", sum.DuplicatesDiscarded,
			"duration", sum.Duration)
		if path, err := builder.Save(ctx, cfg.Report.OutputDir); err != nil {
			logger.Error("report save", "error", err)
		} else {
			logger.Info("report written", "path", path)
		}
		return nil
	}, st, scheduler.Config{
		Interval:     cfg.Scheduler.Interval,
		Jitter:       cfg.Scheduler.Jitter,
		DeadManAfter: cfg.Scheduler.DeadManAfter,
	}, logger, schedOpts...)
	go sched.Run(ctx)

	// Optional MCP stdio transport for agent access to the database.
	if env("MCP_TRANSPORT", "") == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "simwatch", Version: "1.0.0"}, nil)
		mcptool.New(st).RegisterMCP(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				logger.Error("mcp stdio", "error", err)
			}
		}()
	}

	web := server.New(st, runner, sched.Stale, server.Config{
		AdminUser:     cfg.Server.AdminUser,
		AdminPassHash: cfg.Server.AdminPassHash,
		RateLimit:     cfg.Server.RateLimit,
	}, logger)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           web.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("server stopped")
	return nil
}

// buildNotifier resolves webhook secrets from the environment. A webhook
// whose secret env var is unset is a configuration error, not a silent skip.
func buildNotifier(hooks []config.WebhookConfig, client *http.Client, logger *slog.Logger) (*report.Notifier, error) {
	if len(hooks) == 0 {
		return nil, nil
	}
	targets := make([]report.Webhook, 0, len(hooks))
	for _, h := range hooks {
		secret := ""
		if h.SecretEnv != "" {
			secret = os.Getenv(h.SecretEnv)
			if secret == "" {
				return nil, fmt.Errorf("webhook %q: env %s is empty", h.Name, h.SecretEnv)
			}
		}
		targets = append(targets, report.Webhook{Name: h.Name, URL: h.URL, Secret: secret})
	}
	return report.NewNotifier(targets, client, logger)
}

// buildSealer reads a hex-encoded 32-byte key from the named env var.
// No env var configured means reports are written in the clear.
func buildSealer(keyEnv string) (report.Sealer, error) {
	if keyEnv == "" {
		return nil, nil
	}
	hexKey := os.Getenv(keyEnv)
	if hexKey == "" {
		return nil, fmt.Errorf("env %s is empty", keyEnv)
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("env %s: %w", keyEnv, err)
	}
	return report.NewSealer(key)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
