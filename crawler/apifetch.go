package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/hazyhaar/simwatch/config"
	"github.com/hazyhaar/simwatch/websafe"
)

// apiResult is one item extracted from a search API response.
type apiResult struct {
	Title string
	Text  string
	URL   string
}

// callEngine issues one JSON API request and extracts results per the
// engine's result_path and field mapping. Header values go through
// ${ENV_VAR} expansion so API keys stay out of config files.
func callEngine(ctx context.Context, client *http.Client, engine config.EngineConfig, reqURL string, maxBytes int64) ([]apiResult, error) {
	method := engine.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("engine %s: new request: %w", engine.Name, err)
	}
	for k, v := range engine.Headers {
		req.Header.Set(k, os.Expand(v, os.Getenv))
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("engine %s: http: %w", engine.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, fmt.Errorf("engine %s: http %d", engine.Name, resp.StatusCode)
	}

	// A truncated JSON document would decode to garbage anyway, so an
	// over-limit response is an error rather than a silent cut.
	body, err := websafe.LimitedReadAll(resp.Body, maxBytes)
	if err != nil {
		return nil, fmt.Errorf("engine %s: read body: %w", engine.Name, err)
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("engine %s: json decode: %w", engine.Name, err)
	}

	items, err := walkResultPath(raw, engine.ResultPath)
	if err != nil {
		return nil, fmt.Errorf("engine %s: walk path %q: %w", engine.Name, engine.ResultPath, err)
	}

	results := make([]apiResult, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		results = append(results, mapFields(obj, engine.Fields))
		if engine.MaxResults > 0 && len(results) >= engine.MaxResults {
			break
		}
	}
	return results, nil
}

// walkResultPath walks a dot-notation path into a decoded JSON value and
// returns the array found there. An empty path expects the root to be an
// array.
func walkResultPath(v any, path string) ([]any, error) {
	if path == "" {
		arr, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("root is not an array")
		}
		return arr, nil
	}

	current := v
	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected object at %q, got %T", part, current)
		}
		current, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("key %q not found", part)
		}
	}

	arr, ok := current.([]any)
	if !ok {
		return nil, fmt.Errorf("path %q is not an array", path)
	}
	return arr, nil
}

// mapFields extracts title/text/url from one item using the engine's field
// mapping, falling back to the literal key names when no mapping is set.
func mapFields(obj map[string]any, fields map[string]string) apiResult {
	key := func(name string) string {
		if fields != nil {
			if f, ok := fields[name]; ok {
				return f
			}
			return ""
		}
		return name
	}

	var r apiResult
	if k := key("title"); k != "" {
		r.Title = asString(obj[k])
	}
	if k := key("text"); k != "" {
		r.Text = asString(obj[k])
	}
	if k := key("url"); k != "" {
		r.URL = asString(obj[k])
	}
	return r
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
