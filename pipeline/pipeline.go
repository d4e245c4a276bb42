// Package pipeline orchestrates one watch cycle: collect fragments, score
// entities, discard duplicates, detect changes, persist everything.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hazyhaar/simwatch/crawler"
	"github.com/hazyhaar/simwatch/detect"
	"github.com/hazyhaar/simwatch/score"
	"github.com/hazyhaar/simwatch/store"
)

// Config configures a Runner.
type Config struct {
	Entities []string
	Detect   detect.Config
	// Resolve attributes a fragment hint to a canonical entity.
	// Default: score.ResolveEntity.
	Resolve score.EntityMatcher
}

// Summary is the accounting for one completed cycle.
type Summary struct {
	EntitiesScored      int           `json:"entities_scored"`
	SkippedNoEvidence   int           `json:"skipped_no_evidence"`
	DuplicatesDiscarded int           `json:"duplicates_discarded"`
	ChangesDetected     int           `json:"changes_detected"`
	StorageFailures     int           `json:"storage_failures"`
	Duration            time.Duration `json:"duration"`
}

// Runner executes watch cycles.
type Runner struct {
	producers []crawler.Producer
	matcher   *score.Matcher
	st        *store.Store
	config    Config
	logger    *slog.Logger
	now       func() time.Time
	onChange  func(context.Context, detect.Change)
}

// Option customizes a Runner.
type Option func(*Runner)

// WithClock injects a clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithChangeHook registers a callback invoked after each stored change.
// Webhook notification hangs off this.
func WithChangeHook(fn func(context.Context, detect.Change)) Option {
	return func(r *Runner) { r.onChange = fn }
}

// NewRunner creates a Runner.
func NewRunner(st *store.Store, matcher *score.Matcher, producers []crawler.Producer, cfg Config, logger *slog.Logger, opts ...Option) (*Runner, error) {
	if len(cfg.Entities) == 0 {
		return nil, score.ErrNoEntities
	}
	if cfg.Resolve == nil {
		cfg.Resolve = score.ResolveEntity
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		producers: producers,
		matcher:   matcher,
		st:        st,
		config:    cfg,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RunCycle executes one full cycle and records it in the cycle log. An
// entity that fails to persist is counted and skipped; the cycle carries
// on. Context cancellation stops between entities and returns the partial
// summary alongside the context error.
func (r *Runner) RunCycle(ctx context.Context) (*Summary, error) {
	started := r.now()
	sum := &Summary{}

	frags, err := r.collect(ctx)
	if err != nil {
		r.finish(ctx, started, sum, err)
		return sum, err
	}

	byEntity := r.group(frags)

	for _, entity := range r.config.Entities {
		if err := ctx.Err(); err != nil {
			r.finish(ctx, started, sum, err)
			return sum, err
		}
		r.scoreEntity(ctx, entity, byEntity[entity], sum)
	}

	r.finish(ctx, started, sum, nil)
	return sum, nil
}

// collect gathers fragments from every producer. A producer error other
// than cancellation is logged and the remaining producers still run.
func (r *Runner) collect(ctx context.Context) ([]score.Fragment, error) {
	var frags []score.Fragment
	for _, p := range r.producers {
		got, err := p.Produce(ctx)
		frags = append(frags, got...)
		if err != nil {
			if ctx.Err() != nil {
				return frags, ctx.Err()
			}
			r.logger.Warn("cycle: producer failed", "producer", p.Name(), "error", err)
		}
	}
	return frags, nil
}

// group matches fragments and buckets them under their canonical entity.
// Fragments no configured entity claims are dropped.
func (r *Runner) group(frags []score.Fragment) map[string][]score.FragmentMatches {
	byEntity := make(map[string][]score.FragmentMatches)
	for _, f := range frags {
		entity, ok := r.config.Resolve(f.EntityHint, r.config.Entities)
		if !ok {
			r.logger.Debug("cycle: fragment matches no entity", "hint", f.EntityHint, "url", f.SourceURL)
			continue
		}
		byEntity[entity] = append(byEntity[entity], r.matcher.MatchFragment(f))
	}
	return byEntity
}

func (r *Runner) scoreEntity(ctx context.Context, entity string, fms []score.FragmentMatches, sum *Summary) {
	log := r.logger.With("entity", entity)

	if len(fms) == 0 {
		sum.SkippedNoEvidence++
		log.Debug("cycle: no evidence, skipping")
		return
	}

	snap := score.Aggregate(entity, fms, r.now())

	dup, err := r.st.FindDuplicate(ctx, entity, snap.Fingerprint)
	if err != nil {
		sum.StorageFailures++
		log.Warn("cycle: duplicate check failed", "error", err)
		return
	}
	if dup {
		sum.DuplicatesDiscarded++
		log.Debug("cycle: duplicate snapshot discarded", "fingerprint", snap.Fingerprint)
		return
	}

	prev, err := r.st.LatestSnapshot(ctx, entity)
	if err != nil {
		sum.StorageFailures++
		log.Warn("cycle: latest snapshot lookup failed", "error", err)
		return
	}

	if _, err := r.st.InsertSnapshot(ctx, &snap); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			sum.DuplicatesDiscarded++
			return
		}
		sum.StorageFailures++
		log.Warn("cycle: snapshot insert failed", "error", err)
		return
	}
	sum.EntitiesScored++
	log.Info("cycle: entity scored",
		"score", snap.Score, "band", score.Band(snap.Score), "evidence", snap.EvidenceCount)

	var prevSnap *score.Snapshot
	if prev != nil {
		prevSnap = &prev.Snapshot
	}
	ch, ok := detect.Classify(r.config.Detect, prevSnap, snap)
	if !ok {
		return
	}
	if _, err := r.st.InsertChange(ctx, &ch); err != nil {
		sum.StorageFailures++
		log.Warn("cycle: change insert failed", "error", err)
		return
	}
	sum.ChangesDetected++
	log.Info("cycle: change detected", "type", ch.Type, "new_score", ch.NewScore)
	if r.onChange != nil {
		r.onChange(ctx, ch)
	}
}

// finish stamps the duration and writes the cycle record. The cycle log is
// observability, so a write failure is logged, never propagated.
func (r *Runner) finish(ctx context.Context, started time.Time, sum *Summary, cycleErr error) {
	finished := r.now()
	sum.Duration = finished.Sub(started)

	rec := &store.CycleRecord{
		StartedAt:           started,
		FinishedAt:          finished,
		EntitiesScored:      sum.EntitiesScored,
		SkippedNoEvidence:   sum.SkippedNoEvidence,
		DuplicatesDiscarded: sum.DuplicatesDiscarded,
		ChangesDetected:     sum.ChangesDetected,
		StorageFailures:     sum.StorageFailures,
	}
	if cycleErr != nil {
		rec.Error = cycleErr.Error()
	}
	// Use a fresh context: the cycle record must land even when the run
	// context was cancelled.
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := r.st.LogCycle(logCtx, rec); err != nil {
		r.logger.Warn("cycle: log write failed", "error", err)
	}

	r.logger.Info("cycle finished",
		"scored", sum.EntitiesScored,
		"skipped", sum.SkippedNoEvidence,
		"duplicates", sum.DuplicatesDiscarded,
		"changes", sum.ChangesDetected,
		"failures", sum.StorageFailures,
		"duration", sum.Duration)
}
