package crawler

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hazyhaar/simwatch/websafe"
)

// FetchResult contains the outcome of one page fetch.
type FetchResult struct {
	Body        []byte
	StatusCode  int
	ContentType string
	Hash        string // SHA-256 of body
	ETag        string
	LastMod     string
	Changed     bool // false on 304 or when the hash matches prevHash
}

// FetchConfig configures the page fetcher.
type FetchConfig struct {
	Timeout   time.Duration // default 30s
	MaxBytes  int64         // default 10MB
	UserAgent string
	// URLValidator validates URLs before fetch (SSRF prevention).
	// Default: websafe.ValidateURL.
	URLValidator func(string) error
}

func (c *FetchConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = "simwatch/1.0"
	}
	if c.URLValidator == nil {
		c.URLValidator = websafe.ValidateURL
	}
}

// Fetcher performs HTTP requests with conditional GET and SSRF checks on
// both the initial URL and every redirect hop.
type Fetcher struct {
	client *http.Client
	config FetchConfig
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg FetchConfig) *Fetcher {
	cfg.defaults()
	validate := cfg.URLValidator
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked: %w", err)
				}
				return nil
			},
		},
		config: cfg,
	}
}

// Client returns the underlying HTTP client, for callers that need plain
// requests with the same timeout and redirect policy.
func (f *Fetcher) Client() *http.Client {
	return f.client
}

// Fetch retrieves a URL. Non-empty etag or lastMod are sent as conditional
// headers; a 304 response yields Changed=false with no body. When prevHash
// matches the body hash, Changed is false as well.
func (f *Fetcher) Fetch(ctx context.Context, url, etag, lastMod, prevHash string) (*FetchResult, error) {
	if err := f.config.URLValidator(url); err != nil {
		return nil, fmt.Errorf("url blocked: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastMod != "" {
		req.Header.Set("If-Modified-Since", lastMod)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &FetchResult{
			StatusCode: http.StatusNotModified,
			ETag:       resp.Header.Get("ETag"),
			LastMod:    resp.Header.Get("Last-Modified"),
		}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return &FetchResult{StatusCode: resp.StatusCode}, fmt.Errorf("http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	h := sha256.Sum256(body)
	hash := fmt.Sprintf("%x", h)

	return &FetchResult{
		Body:        body,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Hash:        hash,
		ETag:        resp.Header.Get("ETag"),
		LastMod:     resp.Header.Get("Last-Modified"),
		Changed:     prevHash == "" || hash != prevHash,
	}, nil
}
