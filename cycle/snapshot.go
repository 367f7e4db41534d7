package cycle

import (
	"time"

	"github.com/pthm-cable/tofu/geom"
)

// Snapshot is one published particle target buffer. It is immutable once
// published; readers may hold it for as long as they like.
type Snapshot struct {
	Seq       int64        // publication number, 0 for the initial scatter
	Shape     string       // "" until the first transition completes
	AttractK  float64      // spring constant forwarded to renderers
	Targets   []geom.Point // exactly N points in [-1,1]²
	Published time.Time
}

// Len returns the number of particle targets.
func (s *Snapshot) Len() int {
	return len(s.Targets)
}

// Flat returns the targets in wire layout: x0, y0, x1, y1, ... as float32.
func (s *Snapshot) Flat() []float32 {
	return geom.Flatten(s.Targets)
}

// Publisher receives every snapshot after it becomes current. Publish is
// called on the orchestrator goroutine and should not block for long.
type Publisher interface {
	Publish(s *Snapshot)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(s *Snapshot)

// Publish calls f(s).
func (f PublisherFunc) Publish(s *Snapshot) { f(s) }
