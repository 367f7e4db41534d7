package telemetry

import (
	"fmt"
	"log/slog"
	"math"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkSlowWindow   BookmarkType = "slow_window"
	BookmarkCostSpike    BookmarkType = "cost_spike"
	BookmarkFailureBurst BookmarkType = "failure_burst"
	BookmarkRecovered    BookmarkType = "recovered"
	BookmarkSteady       BookmarkType = "steady"
)

// Bookmark marks a window worth looking at in the logs.
type Bookmark struct {
	Type        BookmarkType
	Seq         int64
	Description string
}

// Log writes the bookmark to l.
func (b Bookmark) Log(l *slog.Logger) {
	l.Info("bookmark",
		"type", string(b.Type),
		"seq", b.Seq,
		"description", b.Description,
	)
}

// steadyWindows is how many consecutive quiet windows make a steady run.
const steadyWindows = 5

// BookmarkDetector compares each window against a rolling history of the
// previous ones.
type BookmarkDetector struct {
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	failing     bool // the previous window had failures
	steadyCount int  // consecutive windows without failures or spikes
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < steadyWindows {
		historySize = steadyWindows
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest window and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	quiet := stats.Failures == 0 && stats.Transitions > 0
	if b := bd.checkFailures(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}
	if b := bd.checkSpike(stats, BookmarkSlowWindow, "mean transition time", "ms",
		func(s WindowStats) float64 { return s.MeanTotalMS }); b != nil {
		bookmarks = append(bookmarks, *b)
		quiet = false
	}
	if b := bd.checkSpike(stats, BookmarkCostSpike, "mean transport cost", "",
		func(s WindowStats) float64 { return s.MeanCost }); b != nil {
		bookmarks = append(bookmarks, *b)
		quiet = false
	}

	if quiet {
		bd.steadyCount++
		if bd.steadyCount == steadyWindows {
			bookmarks = append(bookmarks, Bookmark{
				Type:        BookmarkSteady,
				Seq:         stats.WindowEndSeq,
				Description: fmt.Sprintf("%d windows without failures or spikes", steadyWindows),
			})
		}
	} else {
		bd.steadyCount = 0
	}

	bd.addToHistory(stats)
	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []WindowStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

func (bd *BookmarkDetector) checkFailures(stats WindowStats) *Bookmark {
	was := bd.failing
	bd.failing = stats.Failures > 0
	switch {
	case stats.Failures > 0 && !was:
		return &Bookmark{
			Type:        BookmarkFailureBurst,
			Seq:         stats.WindowEndSeq,
			Description: fmt.Sprintf("%d of %d transitions failed", stats.Failures, stats.Transitions),
		}
	case stats.Failures == 0 && was && stats.Transitions > 0:
		return &Bookmark{
			Type:        BookmarkRecovered,
			Seq:         stats.WindowEndSeq,
			Description: fmt.Sprintf("%d transitions succeeded after failures", stats.Transitions),
		}
	}
	return nil
}

// checkSpike fires when value(stats) exceeds twice its rolling average.
func (bd *BookmarkDetector) checkSpike(stats WindowStats, kind BookmarkType, label, unit string, value func(WindowStats) float64) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var sum float64
	var n int
	for _, h := range history {
		if h.Transitions == 0 {
			continue
		}
		sum += value(h)
		n++
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	v := value(stats)
	if avg <= 0 || math.IsNaN(v) || v <= 2*avg {
		return nil
	}
	return &Bookmark{
		Type:        kind,
		Seq:         stats.WindowEndSeq,
		Description: fmt.Sprintf("%s %.2f%s is %.1fx average (%.2f%s)", label, v, unit, v/avg, avg, unit),
	}
}
