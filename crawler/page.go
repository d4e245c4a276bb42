package crawler

import (
	"context"
	"log/slog"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/simwatch/config"
	"github.com/hazyhaar/simwatch/score"
)

// pageState caches conditional GET validators and the last extraction per
// URL, so unchanged pages keep contributing their text without a re-parse.
type pageState struct {
	etag    string
	lastMod string
	hash    string
	title   string
	text    string
}

// PageProducer fetches directly monitored pages (operator sites, registry
// pages, PDF fact sheets) and extracts their text as fragments.
type PageProducer struct {
	pages    []config.PageConfig
	fetcher  *Fetcher
	logger   *slog.Logger
	md       *converter.Converter
	sanitize *bluemonday.Policy
	state    map[string]*pageState
}

// NewPageProducer creates a PageProducer.
func NewPageProducer(cfg config.CrawlerConfig, fetcher *Fetcher, logger *slog.Logger) *PageProducer {
	if logger == nil {
		logger = slog.Default()
	}
	if fetcher == nil {
		fetcher = NewFetcher(FetchConfig{
			Timeout:   cfg.Timeout,
			MaxBytes:  cfg.MaxBytes,
			UserAgent: cfg.UserAgent,
		})
	}
	return &PageProducer{
		pages:   cfg.Pages,
		fetcher: fetcher,
		logger:  logger,
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		sanitize: bluemonday.UGCPolicy(),
		state:    make(map[string]*pageState),
	}
}

// Name implements Producer.
func (p *PageProducer) Name() string { return "pages" }

// Produce implements Producer. A page that fails to fetch or parse is
// logged and skipped. Unchanged pages replay their cached extraction.
func (p *PageProducer) Produce(ctx context.Context) ([]score.Fragment, error) {
	var frags []score.Fragment
	for _, page := range p.pages {
		if err := ctx.Err(); err != nil {
			return frags, err
		}

		st := p.state[page.URL]
		if st == nil {
			st = &pageState{}
			p.state[page.URL] = st
		}

		res, err := p.fetcher.Fetch(ctx, page.URL, st.etag, st.lastMod, st.hash)
		if err != nil {
			p.logger.Warn("pages: fetch failed", "page", page.Name, "url", page.URL, "error", err)
			continue
		}
		if res.ETag != "" {
			st.etag = res.ETag
		}
		if res.LastMod != "" {
			st.lastMod = res.LastMod
		}

		if len(res.Body) == 0 || !res.Changed {
			if st.text != "" {
				frags = append(frags, p.fragment(page, st))
			}
			continue
		}
		st.hash = res.Hash

		var title, text string
		if isPDF(res.ContentType, page.URL) {
			title, text, err = extractPDFText(res.Body)
		} else {
			title, text, err = p.extractHTML(res.Body, page.URL)
		}
		if err != nil {
			p.logger.Warn("pages: extraction failed", "page", page.Name, "url", page.URL, "error", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			p.logger.Debug("pages: extracted text is empty", "page", page.Name)
			continue
		}

		st.title = title
		st.text = text
		frags = append(frags, p.fragment(page, st))
	}
	return frags, nil
}

func (p *PageProducer) fragment(page config.PageConfig, st *pageState) score.Fragment {
	hint := page.Entity
	if hint == "" {
		hint = page.Name
	}
	return score.Fragment{
		EntityHint: hint,
		Title:      st.title,
		Text:       st.text,
		SourceURL:  page.URL,
	}
}

// extractHTML sanitizes raw HTML and converts it to markdown, keeping the
// document structure the indicator phrases live in (tables especially).
func (p *PageProducer) extractHTML(body []byte, pageURL string) (string, string, error) {
	title := findHTMLTitle(body)

	clean := p.sanitize.Sanitize(string(body))
	md, err := p.md.ConvertString(clean, converter.WithDomain(pageURL))
	if err != nil || strings.TrimSpace(md) == "" {
		// Markdown conversion is best-effort; fall back to plain text.
		return title, collectHTMLText(body), nil
	}
	return title, strings.TrimSpace(md), nil
}

func isPDF(contentType, url string) bool {
	return strings.Contains(contentType, "application/pdf") ||
		strings.HasSuffix(strings.ToLower(url), ".pdf")
}
