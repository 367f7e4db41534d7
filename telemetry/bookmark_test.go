package telemetry

import "testing"

func hasBookmark(bookmarks []Bookmark, kind BookmarkType) bool {
	for _, bm := range bookmarks {
		if bm.Type == kind {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_SlowWindow(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{WindowEndSeq: int64(i * 10), Transitions: 10, MeanTotalMS: 40, MeanCost: 1})
	}

	bookmarks := bd.Check(WindowStats{WindowEndSeq: 60, Transitions: 10, MeanTotalMS: 120, MeanCost: 1})
	if !hasBookmark(bookmarks, BookmarkSlowWindow) {
		t.Error("expected slow_window bookmark")
	}
	if hasBookmark(bookmarks, BookmarkCostSpike) {
		t.Error("unexpected cost_spike bookmark")
	}
}

func TestBookmarkDetector_CostSpike(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 4; i++ {
		bd.Check(WindowStats{WindowEndSeq: int64(i), Transitions: 4, MeanTotalMS: 40, MeanCost: 0.5})
	}
	// Empty windows do not drag the average down.
	bd.Check(WindowStats{WindowEndSeq: 5})

	bookmarks := bd.Check(WindowStats{WindowEndSeq: 6, Transitions: 4, MeanTotalMS: 40, MeanCost: 0.9})
	if hasBookmark(bookmarks, BookmarkCostSpike) {
		t.Error("1.8x average should not trigger cost_spike")
	}
	bookmarks = bd.Check(WindowStats{WindowEndSeq: 7, Transitions: 4, MeanTotalMS: 40, MeanCost: 2})
	if !hasBookmark(bookmarks, BookmarkCostSpike) {
		t.Error("expected cost_spike bookmark")
	}
}

func TestBookmarkDetector_FailureBurstAndRecovery(t *testing.T) {
	bd := NewBookmarkDetector(10)

	testCases := []struct {
		name  string
		stats WindowStats
		want  BookmarkType
	}{
		{"clean", WindowStats{Transitions: 3}, ""},
		{"first failure", WindowStats{Transitions: 3, Failures: 1}, BookmarkFailureBurst},
		{"still failing", WindowStats{Transitions: 3, Failures: 2}, ""},
		{"recovered", WindowStats{Transitions: 3}, BookmarkRecovered},
		{"clean again", WindowStats{Transitions: 3}, ""},
	}

	for _, tc := range testCases {
		got := bd.Check(tc.stats)
		for _, kind := range []BookmarkType{BookmarkFailureBurst, BookmarkRecovered} {
			if want := kind == tc.want; hasBookmark(got, kind) != want {
				t.Errorf("%s: %s present = %v, want %v", tc.name, kind, !want, want)
			}
		}
	}
}

func TestBookmarkDetector_Steady(t *testing.T) {
	bd := NewBookmarkDetector(10)

	fired := 0
	for i := 0; i < 12; i++ {
		bookmarks := bd.Check(WindowStats{WindowEndSeq: int64(i), Transitions: 5, MeanTotalMS: 30, MeanCost: 1})
		if hasBookmark(bookmarks, BookmarkSteady) {
			fired++
			if i != steadyWindows-1 {
				t.Errorf("steady fired at window %d, want %d", i, steadyWindows-1)
			}
		}
	}
	if fired != 1 {
		t.Errorf("steady fired %d times, want 1", fired)
	}

	// A failure resets the run.
	bd.Check(WindowStats{Transitions: 5, Failures: 1})
	for i := 0; i < steadyWindows; i++ {
		if hasBookmark(bd.Check(WindowStats{Transitions: 5, MeanTotalMS: 30, MeanCost: 1}), BookmarkSteady) {
			fired++
		}
	}
	if fired != 2 {
		t.Errorf("steady fired %d times after reset, want 2", fired)
	}
}
