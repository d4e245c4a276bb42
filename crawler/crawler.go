// Package crawler collects text fragments about watched entities from
// search APIs and directly monitored pages.
package crawler

import (
	"context"

	"github.com/hazyhaar/simwatch/score"
)

// Producer yields fragments for one evidence source. Implementations must
// be safe for sequential reuse across cycles.
type Producer interface {
	Name() string
	Produce(ctx context.Context) ([]score.Fragment, error)
}

// StaticProducer serves a fixed fragment set. Used for ingesting
// pre-collected text and in tests.
type StaticProducer struct {
	ProducerName string
	Fragments    []score.Fragment
}

// Name implements Producer.
func (p *StaticProducer) Name() string {
	if p.ProducerName == "" {
		return "static"
	}
	return p.ProducerName
}

// Produce implements Producer.
func (p *StaticProducer) Produce(ctx context.Context) ([]score.Fragment, error) {
	out := make([]score.Fragment, len(p.Fragments))
	copy(out, p.Fragments)
	return out, nil
}
