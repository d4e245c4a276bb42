// One-shot cycle runner: collect evidence, score, detect changes, print
// the summary. Useful for cron setups and for replaying captured fragments.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/simwatch/config"
	"github.com/hazyhaar/simwatch/crawler"
	"github.com/hazyhaar/simwatch/detect"
	"github.com/hazyhaar/simwatch/pipeline"
	"github.com/hazyhaar/simwatch/report"
	"github.com/hazyhaar/simwatch/score"
	"github.com/hazyhaar/simwatch/store"
)

func main() {
	configPath := flag.String("config", env("SIMWATCH_CONFIG", "simwatch.yaml"), "path to YAML config")
	fixturePath := flag.String("fixture", "", "JSON file of fragments to score instead of crawling")
	writeReport := flag.Bool("report", false, "write a report file after the cycle")
	csvOut := flag.Bool("csv", false, "print the leaderboard as CSV on stdout")
	flag.Parse()

	logger := newLogger(env("LOG_LEVEL", "info"))
	slog.SetDefault(logger)

	if err := run(*configPath, *fixturePath, *writeReport, *csvOut, logger); err != nil {
		logger.Error("simwatch-cycle", "error", err)
		os.Exit(1)
	}
}

func run(configPath, fixturePath string, writeReport, csvOut bool, logger *slog.Logger) error {
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

	producers, err := buildProducers(cfg, fixturePath, logger)
	if err != nil {
		return err
	}

	runner, err := pipeline.NewRunner(st, matcher, producers, pipeline.Config{
		Entities: cfg.Entities,
		Detect:   detect.Config{SignificanceThreshold: cfg.Detect.SignificanceThreshold},
	}, logger)
	if err != nil {
		return fmt.Errorf("build runner: %w", err)
	}

	sum, err := runner.RunCycle(ctx)
	if err != nil {
		return fmt.Errorf("cycle: %w", err)
	}

	out, _ := json.MarshalIndent(sum, "", "  ")
	fmt.Println(string(out))

	if writeReport || csvOut {
		builder := report.NewBuilder(st, cfg.Report.TopN, nil)
		if writeReport {
			path, err := builder.Save(ctx, cfg.Report.OutputDir)
			if err != nil {
				return fmt.Errorf("report: %w", err)
			}
			logger.Info("report written", "path", path)
		}
		if csvOut {
			rep, err := builder.Build(ctx)
			if err != nil {
				return fmt.Errorf("report: %w", err)
			}
			if err := rep.WriteCSV(os.Stdout); err != nil {
				return fmt.Errorf("csv: %w", err)
			}
		}
	}
	return nil
}

func buildProducers(cfg *config.Config, fixturePath string, logger *slog.Logger) ([]crawler.Producer, error) {
	if fixturePath != "" {
		data, err := os.ReadFile(fixturePath)
		if err != nil {
			return nil, fmt.Errorf("fixture: %w", err)
		}
		var frags []score.Fragment
		if err := json.Unmarshal(data, &frags); err != nil {
			return nil, fmt.Errorf("fixture: %w", err)
		}
		return []crawler.Producer{&crawler.StaticProducer{
			ProducerName: "fixture",
			Fragments:    frags,
		}}, nil
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
		return nil, fmt.Errorf("no engines, pages, or fixture configured")
	}
	return producers, nil
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
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
