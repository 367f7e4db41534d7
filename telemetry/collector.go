package telemetry

import "time"

// Collector accumulates transition records within wall-clock windows and
// produces WindowStats.
type Collector struct {
	window      time.Duration
	windowStart time.Time

	lastSeq     int64
	transitions int
	failures    int
	retries     int
	totalMS     float64
	cost        float64
	moveP50     float64
	shapes      map[string]struct{}
}

// NewCollector creates a collector whose windows start at now.
// A non-positive window defaults to one minute.
func NewCollector(window time.Duration, now time.Time) *Collector {
	if window <= 0 {
		window = time.Minute
	}
	return &Collector{
		window:      window,
		windowStart: now,
		shapes:      make(map[string]struct{}),
	}
}

// Record adds one transition to the current window.
func (c *Collector) Record(r TransitionRecord) {
	c.lastSeq = r.Seq
	c.transitions++
	c.totalMS += r.TotalMS
	if !r.OK {
		c.failures++
		return
	}
	c.retries += r.Retries
	c.cost += r.TransportCost
	c.moveP50 += r.MoveP50
	c.shapes[r.Shape] = struct{}{}
}

// ShouldFlush returns true once the current window has elapsed.
func (c *Collector) ShouldFlush(now time.Time) bool {
	return now.Sub(c.windowStart) >= c.window
}

// Flush produces the window's stats and resets counters for the next one.
func (c *Collector) Flush(now time.Time) WindowStats {
	stats := WindowStats{
		WindowEndSeq:  c.lastSeq,
		WindowSec:     now.Sub(c.windowStart).Seconds(),
		Transitions:   c.transitions,
		Failures:      c.failures,
		Retries:       c.retries,
		DistinctShape: len(c.shapes),
	}
	if c.transitions > 0 {
		stats.MeanTotalMS = c.totalMS / float64(c.transitions)
	}
	if ok := c.transitions - c.failures; ok > 0 {
		stats.MeanCost = c.cost / float64(ok)
		stats.MeanMoveP50 = c.moveP50 / float64(ok)
	}

	c.windowStart = now
	c.transitions = 0
	c.failures = 0
	c.retries = 0
	c.totalMS = 0
	c.cost = 0
	c.moveP50 = 0
	c.shapes = make(map[string]struct{})

	return stats
}
