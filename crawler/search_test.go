package crawler

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/simwatch/config"
)

func TestSearchProducer_Produce(t *testing.T) {
	// WHAT: Query templates expand per entity, hit the engine, and the
	// JSON results come back as fragments hinted at that entity.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"web":{"results":[
			{"title":"` + q + ` review","description":"no id required for top-up","url":"https://example.com/a"},
			{"title":"forum thread","description":"passport needed in store","url":"https://example.com/b"}
		]}}`))
	}))
	defer srv.Close()

	cfg := config.CrawlerConfig{
		Queries: []string{"{entity} sim registration"},
		Engines: []config.EngineConfig{{
			Name:        "test",
			URLTemplate: srv.URL + "/search?q={query}",
			ResultPath:  "web.results",
			Fields:      map[string]string{"title": "title", "text": "description", "url": "url"},
			MaxResults:  10,
		}},
	}
	p := NewSearchProducer(cfg, []string{"Lycamobile", "Lebara"}, srv.Client(), slog.New(slog.DiscardHandler))

	frags, err := p.Produce(context.Background())
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	if len(frags) != 4 {
		t.Fatalf("got %d fragments, want 4 (2 entities x 2 results)", len(frags))
	}
	if frags[0].EntityHint != "Lycamobile" || frags[2].EntityHint != "Lebara" {
		t.Errorf("entity hints = %q, %q", frags[0].EntityHint, frags[2].EntityHint)
	}
	if frags[0].Title != "Lycamobile sim registration review" {
		t.Errorf("query not expanded into request: title = %q", frags[0].Title)
	}
	if frags[0].Text != "no id required for top-up" || frags[0].SourceURL != "https://example.com/a" {
		t.Errorf("fields not mapped: %+v", frags[0])
	}
}

func TestSearchProducer_EngineFailureSkipped(t *testing.T) {
	// WHAT: A failing engine is skipped and the healthy one still yields.
	// WHY: One expired API key must not blank the whole cycle.
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"title":"t","text":"cash only counter sale","url":"https://example.com"}]`))
	}))
	defer good.Close()

	cfg := config.CrawlerConfig{
		Queries: []string{"{entity}"},
		Engines: []config.EngineConfig{
			{Name: "bad", URLTemplate: bad.URL + "?q={query}", MaxResults: 5},
			{Name: "good", URLTemplate: good.URL + "?q={query}", MaxResults: 5},
		},
	}
	p := NewSearchProducer(cfg, []string{"Vectone"}, http.DefaultClient, slog.New(slog.DiscardHandler))

	frags, err := p.Produce(context.Background())
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	if len(frags) != 1 || frags[0].Text != "cash only counter sale" {
		t.Fatalf("fragments = %+v", frags)
	}
}

func TestSearchProducer_OversizeResponseSkipped(t *testing.T) {
	// WHAT: An engine whose body exceeds the configured MaxBytes is treated
	// as a failed engine; the one within the limit still yields.
	// WHY: A truncated JSON document is useless, so the limit is a hard cap.
	huge := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"title":"` + strings.Repeat("x", 2048) + `","text":"t","url":"u"}]`))
	}))
	defer huge.Close()
	small := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"title":"t","text":"cash only counter sale","url":"https://example.com"}]`))
	}))
	defer small.Close()

	cfg := config.CrawlerConfig{
		MaxBytes: 1024,
		Queries:  []string{"{entity}"},
		Engines: []config.EngineConfig{
			{Name: "huge", URLTemplate: huge.URL + "?q={query}", MaxResults: 5},
			{Name: "small", URLTemplate: small.URL + "?q={query}", MaxResults: 5},
		},
	}
	p := NewSearchProducer(cfg, []string{"Vectone"}, http.DefaultClient, slog.New(slog.DiscardHandler))

	frags, err := p.Produce(context.Background())
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	if len(frags) != 1 || frags[0].Text != "cash only counter sale" {
		t.Fatalf("fragments = %+v", frags)
	}
}

func TestSearchProducer_DisabledEngine(t *testing.T) {
	// WHAT: Disabled engines never receive requests.
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	cfg := config.CrawlerConfig{
		Queries: []string{"{entity}"},
		Engines: []config.EngineConfig{{Name: "off", URLTemplate: srv.URL + "?q={query}", Disabled: true}},
	}
	p := NewSearchProducer(cfg, []string{"Lebara"}, http.DefaultClient, slog.New(slog.DiscardHandler))

	frags, err := p.Produce(context.Background())
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	if len(frags) != 0 || hits != 0 {
		t.Fatalf("fragments = %d, hits = %d", len(frags), hits)
	}
}

func TestSearchProducer_ContextCancelled(t *testing.T) {
	// WHAT: Cancellation stops the walk promptly with partial results.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	cfg := config.CrawlerConfig{
		Queries: []string{"{entity}"},
		Engines: []config.EngineConfig{{Name: "e", URLTemplate: srv.URL + "?q={query}"}},
	}
	p := NewSearchProducer(cfg, []string{"A", "B", "C"}, http.DefaultClient, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	_, err := p.Produce(ctx)
	if err == nil {
		t.Fatal("expected context error")
	}
	if time.Since(start) > time.Second {
		t.Error("cancellation was not prompt")
	}
}

func TestWalkResultPath(t *testing.T) {
	// WHAT: Dot-notation walking finds nested arrays and reports misses.
	v := map[string]any{"data": map[string]any{"items": []any{1, 2}}}

	items, err := walkResultPath(v, "data.items")
	if err != nil || len(items) != 2 {
		t.Fatalf("items = %v, err = %v", items, err)
	}
	if _, err := walkResultPath(v, "data.missing"); err == nil {
		t.Error("expected error for missing key")
	}
	if _, err := walkResultPath(v, "data"); err == nil {
		t.Error("expected error for non-array path")
	}
	if _, err := walkResultPath([]any{1}, ""); err != nil {
		t.Errorf("root array: %v", err)
	}
}
