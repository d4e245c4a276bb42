package crawler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hazyhaar/simwatch/config"
	"github.com/hazyhaar/simwatch/score"
)

// SearchProducer queries configured JSON search APIs for every watched
// entity and turns the hits into fragments. A failing engine is logged and
// skipped; one broken API key must not starve the rest of the cycle.
type SearchProducer struct {
	entities []string
	queries  []string
	engines  []config.EngineConfig
	client   *http.Client
	maxBytes int64
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration)
}

// NewSearchProducer creates a SearchProducer. Disabled engines are dropped
// here so Produce only iterates live ones.
func NewSearchProducer(cfg config.CrawlerConfig, entities []string, client *http.Client, logger *slog.Logger) *SearchProducer {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	engines := make([]config.EngineConfig, 0, len(cfg.Engines))
	for _, e := range cfg.Engines {
		if !e.Disabled {
			engines = append(engines, e)
		}
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}
	return &SearchProducer{
		entities: entities,
		queries:  cfg.Queries,
		engines:  engines,
		client:   client,
		maxBytes: maxBytes,
		logger:   logger,
		sleep:    sleepCtx,
	}
}

// Name implements Producer.
func (p *SearchProducer) Name() string { return "search" }

// Produce implements Producer. Results are attributed to the entity whose
// query produced them via the fragment's entity hint.
func (p *SearchProducer) Produce(ctx context.Context) ([]score.Fragment, error) {
	var frags []score.Fragment
	for _, entity := range p.entities {
		for _, tmpl := range p.queries {
			query := strings.ReplaceAll(tmpl, "{entity}", entity)
			for _, engine := range p.engines {
				if err := ctx.Err(); err != nil {
					return frags, err
				}

				reqURL := strings.ReplaceAll(engine.URLTemplate, "{query}", url.QueryEscape(query))
				results, err := callEngine(ctx, p.client, engine, reqURL, p.maxBytes)
				if err != nil {
					p.logger.Warn("search: engine query failed",
						"engine", engine.Name, "entity", entity, "error", err)
					continue
				}
				for _, r := range results {
					frags = append(frags, score.Fragment{
						EntityHint: entity,
						Title:      r.Title,
						Text:       r.Text,
						SourceURL:  r.URL,
					})
				}

				if engine.RateLimitMs > 0 {
					p.sleep(ctx, time.Duration(engine.RateLimitMs)*time.Millisecond)
				}
			}
		}
	}
	return frags, nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
