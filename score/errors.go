package score

import "errors"

// ErrNoIndicators is returned when a matcher is built from an empty
// indicator dictionary. Scoring with no indicators would silently emit
// all-zero scores, so this is fatal at construction.
var ErrNoIndicators = errors.New("score: indicator dictionary is empty")

// ErrNoEntities is returned when a resolver is built with no tracked
// entities.
var ErrNoEntities = errors.New("score: tracked entity list is empty")
