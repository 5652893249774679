package ramp

import (
	"testing"
	"time"
)

// run drives StartLinear synchronously. cancelAfter 0 never cancels;
// otherwise the walk is cut off after that many ticks.
func run(cur, target, top uint16, durationMs uint32, steps uint16, cancelAfter int) (levels []uint16, ticks int, pause time.Duration) {
	tick := func(d time.Duration) bool {
		ticks++
		pause = d
		return cancelAfter == 0 || ticks <= cancelAfter
	}
	StartLinear(cur, target, top, durationMs, steps, tick, func(l uint16) {
		levels = append(levels, l)
	})
	return levels, ticks, pause
}

func wantLevels(t *testing.T, got, want []uint16) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("levels %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("levels %v, want %v", got, want)
		}
	}
}

func TestSnapWithoutSteps(t *testing.T) {
	levels, ticks, _ := run(0, 80, 100, 500, 0, 0)
	wantLevels(t, levels, []uint16{80})
	if ticks != 0 {
		t.Fatalf("snap ticked %d times", ticks)
	}

	levels, _, _ = run(0, 80, 100, 0, 4, 0)
	wantLevels(t, levels, []uint16{80})

	// Target beyond top clamps even on the snap path.
	levels, _, _ = run(0, 900, 100, 0, 0, 0)
	wantLevels(t, levels, []uint16{100})
}

func TestWalkUp(t *testing.T) {
	levels, ticks, pause := run(0, 100, 100, 100, 4, 0)
	wantLevels(t, levels, []uint16{25, 50, 75, 100})
	if ticks != 4 {
		t.Fatalf("ticks = %d, want 4", ticks)
	}
	if pause != 25*time.Millisecond {
		t.Fatalf("pause = %v, want 25ms", pause)
	}
}

func TestWalkDown(t *testing.T) {
	levels, _, _ := run(80, 20, 100, 60, 3, 0)
	wantLevels(t, levels, []uint16{60, 40, 20})
}

func TestIntermediatePointsTruncate(t *testing.T) {
	levels, _, _ := run(0, 10, 10, 30, 3, 0)
	wantLevels(t, levels, []uint16{3, 6, 10})
}

func TestCancelStopsWithoutSnap(t *testing.T) {
	levels, ticks, _ := run(0, 100, 100, 100, 4, 2)
	wantLevels(t, levels, []uint16{25, 50})
	if ticks != 3 {
		t.Fatalf("ticks = %d, want 3", ticks)
	}
}

func TestFlatRampSetsOnce(t *testing.T) {
	levels, ticks, _ := run(50, 50, 100, 100, 5, 0)
	wantLevels(t, levels, []uint16{50})
	if ticks != 5 {
		t.Fatalf("ticks = %d, want 5", ticks)
	}
}

func TestPauseNeverZero(t *testing.T) {
	_, _, pause := run(0, 10, 10, 2, 8, 0)
	if pause != time.Millisecond {
		t.Fatalf("pause = %v, want 1ms", pause)
	}
}

func TestTargetClampedToTop(t *testing.T) {
	levels, _, _ := run(0, 60000, 1000, 40, 4, 0)
	wantLevels(t, levels, []uint16{250, 500, 750, 1000})
}
