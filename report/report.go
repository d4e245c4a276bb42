// Package report builds leniency leaderboard reports and delivers change
// notifications.
package report

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hazyhaar/simwatch/score"
	"github.com/hazyhaar/simwatch/store"
)

// Entry is one ranked entity in a report.
type Entry struct {
	Rank             int     `json:"rank"`
	EntityName       string  `json:"entity_name"`
	Score            float64 `json:"score"`
	Band             string  `json:"band"`
	EvidenceCount    int     `json:"evidence_count"`
	PositiveCount    int     `json:"positive_count"`
	NegativeCount    int     `json:"negative_count"`
	PrimarySourceURL string  `json:"primary_source_url,omitempty"`
	// Trend is the score delta against the previous snapshot, nil for
	// entities with a single observation.
	Trend *float64 `json:"trend,omitempty"`
}

// Report is a point-in-time leniency leaderboard with recent movement.
type Report struct {
	GeneratedAt   time.Time             `json:"generated_at"`
	Entries       []Entry               `json:"entries"`
	RecentChanges []*store.StoredChange `json:"recent_changes"`
	Stats         *store.DBStats        `json:"stats"`
}

// Builder assembles reports from the store.
type Builder struct {
	st     *store.Store
	topN   int
	sealer Sealer // optional; nil writes plaintext
	now    func() time.Time
}

// NewBuilder creates a Builder. A nil sealer leaves report files
// unencrypted.
func NewBuilder(st *store.Store, topN int, sealer Sealer) *Builder {
	if topN <= 0 {
		topN = 10
	}
	return &Builder{st: st, topN: topN, sealer: sealer, now: time.Now}
}

// Build assembles a report from the latest snapshots, the last week of
// changes, and the aggregate stats.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	top, err := b.st.TopEntities(ctx, b.topN)
	if err != nil {
		return nil, fmt.Errorf("report: top entities: %w", err)
	}

	now := b.now()
	rep := &Report{GeneratedAt: now}
	for i, snap := range top {
		entry := Entry{
			Rank:             i + 1,
			EntityName:       snap.EntityName,
			Score:            snap.Score,
			Band:             score.Band(snap.Score),
			EvidenceCount:    snap.EvidenceCount,
			PositiveCount:    snap.PositiveCount,
			NegativeCount:    snap.NegativeCount,
			PrimarySourceURL: snap.PrimarySourceURL,
		}
		hist, err := b.st.EntityHistory(ctx, snap.EntityName, time.Time{}, 2)
		if err != nil {
			return nil, fmt.Errorf("report: history for %s: %w", snap.EntityName, err)
		}
		if len(hist) == 2 {
			delta := snap.Score - hist[1].Score
			entry.Trend = &delta
		}
		rep.Entries = append(rep.Entries, entry)
	}

	rep.RecentChanges, err = b.st.RecentChanges(ctx, now.Add(-7*24*time.Hour), 100)
	if err != nil {
		return nil, fmt.Errorf("report: recent changes: %w", err)
	}
	rep.Stats, err = b.st.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("report: stats: %w", err)
	}
	return rep, nil
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteCSV writes the ranked entries as CSV.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"rank", "entity", "score", "band", "trend", "evidence", "positive", "negative", "primary_source"}); err != nil {
		return err
	}
	for _, e := range r.Entries {
		trend := ""
		if e.Trend != nil {
			trend = strconv.FormatFloat(*e.Trend, 'f', 2, 64)
		}
		rec := []string{
			strconv.Itoa(e.Rank),
			e.EntityName,
			strconv.FormatFloat(e.Score, 'f', 2, 64),
			e.Band,
			trend,
			strconv.Itoa(e.EvidenceCount),
			strconv.Itoa(e.PositiveCount),
			strconv.Itoa(e.NegativeCount),
			e.PrimarySourceURL,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Save builds a report and writes it under dir as JSON, sealed when the
// builder has a sealer. Returns the written file path.
func (b *Builder) Save(ctx context.Context, dir string) (string, error) {
	rep, err := b.Build(ctx)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("report: mkdir: %w", err)
	}

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("report: marshal: %w", err)
	}

	name := "leniency-" + rep.GeneratedAt.UTC().Format("20060102-150405") + ".json"
	if b.sealer != nil {
		data, err = b.sealer.Seal(data)
		if err != nil {
			return "", fmt.Errorf("report: seal: %w", err)
		}
		name += ".enc"
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("report: write: %w", err)
	}
	return path, nil
}
