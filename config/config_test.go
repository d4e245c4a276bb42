package config

import (
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
entities:
  - Lycamobile
  - Lebara
indicators:
  - phrase: no id required
    weight: 5
  - phrase: id required
    weight: -5
`

func TestParse_Defaults(t *testing.T) {
	// WHAT: A minimal config gets workable defaults for everything else.
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.DBPath != "simwatch.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.Detect.SignificanceThreshold != 0.3 {
		t.Errorf("threshold = %v", cfg.Detect.SignificanceThreshold)
	}
	if cfg.Crawler.Timeout != 30*time.Second {
		t.Errorf("timeout = %v", cfg.Crawler.Timeout)
	}
	if cfg.Scheduler.Interval != 6*time.Hour {
		t.Errorf("interval = %v", cfg.Scheduler.Interval)
	}
	if cfg.Scheduler.DeadManAfter != 18*time.Hour {
		t.Errorf("dead_man_after = %v", cfg.Scheduler.DeadManAfter)
	}
	if len(cfg.Crawler.Queries) == 0 {
		t.Error("expected a default query template")
	}
}

func TestParse_FullConfig(t *testing.T) {
	// WHAT: All sections round-trip from YAML.
	cfg, err := Parse([]byte(`
db_path: /var/lib/simwatch/simwatch.db
entities: [Lycamobile]
indicators:
  - {phrase: cash only, weight: 3}
detect:
  significance_threshold: 0.5
crawler:
  user_agent: simwatch-test/1.0
  queries:
    - "{entity} sim no registration"
  engines:
    - name: brave
      url_template: "https://api.search.brave.com/res/v1/web/search?q={query}"
      headers:
        X-Subscription-Token: ${BRAVE_API_KEY}
      result_path: web.results
      fields: {title: title, text: description, url: url}
  pages:
    - entity: Lycamobile
      name: lyca-uk-prepaid
      url: https://www.lycamobile.co.uk/en/prepaid
scheduler:
  interval: 2h
  jitter: 0.2
server:
  addr: ":9090"
report:
  top_n: 5
webhooks:
  - name: ops
    url: https://hooks.example.com/simwatch
    secret_env: SIMWATCH_WEBHOOK_SECRET
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Detect.SignificanceThreshold != 0.5 {
		t.Errorf("threshold = %v", cfg.Detect.SignificanceThreshold)
	}
	if len(cfg.Crawler.Engines) != 1 || cfg.Crawler.Engines[0].ResultPath != "web.results" {
		t.Errorf("engines = %+v", cfg.Crawler.Engines)
	}
	if cfg.Crawler.Engines[0].MaxResults != 10 {
		t.Errorf("engine max_results default = %d", cfg.Crawler.Engines[0].MaxResults)
	}
	if cfg.Scheduler.DeadManAfter != 6*time.Hour {
		t.Errorf("dead_man_after = %v, want 3x interval", cfg.Scheduler.DeadManAfter)
	}
	if len(cfg.Webhooks) != 1 || cfg.Webhooks[0].SecretEnv != "SIMWATCH_WEBHOOK_SECRET" {
		t.Errorf("webhooks = %+v", cfg.Webhooks)
	}
}

func TestParse_Invalid(t *testing.T) {
	// WHAT: Configs missing required parts are rejected with a clear error.
	// WHY: Starting a watcher with no entities or indicators would silently
	// do nothing every cycle.
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no entities", `indicators: [{phrase: x, weight: 1}]`, "no entities"},
		{"no indicators", `entities: [Lycamobile]`, "no indicators"},
		{"blank phrase", `
entities: [Lycamobile]
indicators: [{phrase: "  ", weight: 1}]`, "empty phrase"},
		{"bad engine template", `
entities: [Lycamobile]
indicators: [{phrase: x, weight: 1}]
crawler:
  engines: [{name: broken, url_template: "https://example.com/search"}]`, "lacks {query}"},
		{"jitter too large", `
entities: [Lycamobile]
indicators: [{phrase: x, weight: 1}]
scheduler: {jitter: 1.5}`, "jitter"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want substring %q", err, tc.want)
			}
		})
	}
}
