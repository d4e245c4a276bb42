package report

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/simwatch/detect"
	"github.com/hazyhaar/simwatch/score"
	"github.com/hazyhaar/simwatch/websafe"
)

// Webhook is one notification target. The body is signed with
// HMAC-SHA256 in the X-Signature-256 header (sha256=<hex>).
type Webhook struct {
	Name   string
	URL    string
	Secret string
}

// Notifier delivers change notifications to configured webhooks. Delivery
// is best-effort: a failing target is logged, never retried within the
// cycle, and never blocks the others.
type Notifier struct {
	hooks  []Webhook
	client *http.Client
	logger *slog.Logger
}

// NewNotifier creates a Notifier. Targets with unsafe URLs or weak secrets
// are rejected up front rather than discovered on first delivery.
func NewNotifier(hooks []Webhook, client *http.Client, logger *slog.Logger) (*Notifier, error) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	for _, h := range hooks {
		if err := websafe.ValidateURL(h.URL); err != nil {
			return nil, fmt.Errorf("notify: webhook %q: %w", h.Name, err)
		}
		if h.Secret != "" {
			if err := websafe.ValidateSecret([]byte(h.Secret)); err != nil {
				return nil, fmt.Errorf("notify: webhook %q: %w", h.Name, err)
			}
		}
	}
	return &Notifier{hooks: hooks, client: client, logger: logger}, nil
}

// changePayload is the JSON body delivered to webhooks.
type changePayload struct {
	EntityName string            `json:"entity_name"`
	ChangeType detect.ChangeType `json:"change_type"`
	OldScore   *float64          `json:"old_score"`
	NewScore   float64           `json:"new_score"`
	Band       string            `json:"band"`
	DetectedAt time.Time         `json:"detected_at"`
}

// Notify posts the change to every configured webhook.
func (n *Notifier) Notify(ctx context.Context, ch detect.Change) {
	if len(n.hooks) == 0 {
		return
	}
	body, err := json.Marshal(changePayload{
		EntityName: ch.EntityName,
		ChangeType: ch.Type,
		OldScore:   ch.OldScore,
		NewScore:   ch.NewScore,
		Band:       score.Band(ch.NewScore),
		DetectedAt: ch.DetectedAt,
	})
	if err != nil {
		n.logger.Error("notify: marshal payload", "error", err)
		return
	}

	for _, hook := range n.hooks {
		if err := n.deliver(ctx, hook, body); err != nil {
			n.logger.Warn("notify: delivery failed",
				"webhook", hook.Name, "entity", ch.EntityName, "error", err)
		}
	}
}

// NotifyStale posts a scheduler dead-man alert to every configured webhook.
func (n *Notifier) NotifyStale(ctx context.Context, age time.Duration) {
	if len(n.hooks) == 0 {
		return
	}
	body, err := json.Marshal(map[string]any{
		"alert":       "stale",
		"message":     "no completed watch cycle within the dead-man window",
		"age_seconds": int64(age.Seconds()),
		"detected_at": time.Now().UTC(),
	})
	if err != nil {
		n.logger.Error("notify: marshal stale payload", "error", err)
		return
	}
	for _, hook := range n.hooks {
		if err := n.deliver(ctx, hook, body); err != nil {
			n.logger.Warn("notify: stale alert delivery failed",
				"webhook", hook.Name, "error", err)
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, hook Webhook, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if hook.Secret != "" {
		req.Header.Set("X-Signature-256", "sha256="+sign(body, hook.Secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	return nil
}

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
