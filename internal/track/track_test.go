package track

import (
	"math"
	"testing"
	"time"

	"github.com/jmfall/sortilege/internal/detector"
)

var t0 = time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

func TestTracker_StartsWithBrightestBlob(t *testing.T) {
	tr := New(DefaultConfig())

	blobs := []detector.Blob{
		{X: 100, Y: 100, Intensity: 255},
		{X: 300, Y: 300, Intensity: 180},
	}

	ev := tr.Update(blobs, at(0))
	if ev.Kind != EventAppended {
		t.Fatalf("Kind = %v, want EventAppended", ev.Kind)
	}
	if ev.Point.X != 100 || ev.Point.Y != 100 {
		t.Errorf("started at (%.0f, %.0f), want brightest blob (100, 100)", ev.Point.X, ev.Point.Y)
	}
	if !tr.Active() {
		t.Error("tracker should be active after first append")
	}
}

func TestTracker_EmptyDetectionsWhileIdle(t *testing.T) {
	tr := New(DefaultConfig())

	for i := 0; i < 20; i++ {
		ev := tr.Update(nil, at(i*66))
		if ev.Kind != EventNone {
			t.Fatalf("frame %d: Kind = %v, want EventNone", i, ev.Kind)
		}
	}
	if tr.Active() {
		t.Error("tracker should stay inactive with no detections")
	}
}

func TestTracker_FollowsNearestPoint(t *testing.T) {
	tr := New(DefaultConfig())

	tr.Update(detector.TipAt(100, 100), at(0))

	// The nearest candidate wins even when a brighter one is far away.
	blobs := []detector.Blob{
		{X: 500, Y: 400, Intensity: 255},
		{X: 110, Y: 105, Intensity: 200},
	}
	ev := tr.Update(blobs, at(66))
	if ev.Kind != EventAppended {
		t.Fatalf("Kind = %v, want EventAppended", ev.Kind)
	}
	if ev.Point.X != 110 || ev.Point.Y != 105 {
		t.Errorf("appended (%.0f, %.0f), want nearest blob (110, 105)", ev.Point.X, ev.Point.Y)
	}
}

func TestTracker_NeverAppendsBeyondMaxJump(t *testing.T) {
	config := DefaultConfig()
	config.MaxJump = 50
	tr := New(config)

	tr.Update(detector.TipAt(100, 100), at(0))

	ev := tr.Update(detector.TipAt(300, 300), at(66))
	if ev.Kind != EventNone {
		t.Fatalf("jump beyond MaxJump: Kind = %v, want EventNone", ev.Kind)
	}

	// Invariant: consecutive trajectory points are within MaxJump.
	pts := tr.Trajectory()
	for i := 1; i < len(pts); i++ {
		d := math.Hypot(pts[i].X-pts[i-1].X, pts[i].Y-pts[i-1].Y)
		if d > config.MaxJump {
			t.Errorf("points %d-%d are %.1f apart, exceeding MaxJump %.1f", i-1, i, d, config.MaxJump)
		}
	}
}

func TestTracker_MissToleranceAbsorbsDropouts(t *testing.T) {
	config := DefaultConfig()
	config.MissTolerance = 3
	tr := New(config)

	tr.Update(detector.TipAt(100, 100), at(0))

	// Dropouts up to the tolerance are absorbed
	for i := 1; i <= 3; i++ {
		ev := tr.Update(nil, at(i*66))
		if ev.Kind != EventNone {
			t.Fatalf("miss %d: Kind = %v, want EventNone", i, ev.Kind)
		}
	}

	// The track survives and a reappearing tip resumes it
	ev := tr.Update(detector.TipAt(105, 102), at(4*66))
	if ev.Kind != EventAppended {
		t.Fatalf("after dropout: Kind = %v, want EventAppended", ev.Kind)
	}
	if tr.Len() != 2 {
		t.Errorf("Len() = %d, want 2", tr.Len())
	}
}

func TestTracker_LostAfterToleranceExceeded(t *testing.T) {
	config := DefaultConfig()
	config.MissTolerance = 2
	tr := New(config)

	tr.Update(detector.TipAt(100, 100), at(0))
	tr.Update(detector.TipAt(110, 110), at(66))

	tr.Update(nil, at(132))
	tr.Update(nil, at(198))
	ev := tr.Update(nil, at(264))

	if ev.Kind != EventLost {
		t.Fatalf("Kind = %v, want EventLost", ev.Kind)
	}
	if len(ev.Trajectory) != 2 {
		t.Errorf("lost trajectory has %d points, want 2", len(ev.Trajectory))
	}
	if tr.Active() {
		t.Error("tracker should be cleared after track loss")
	}
	if tr.Len() != 0 {
		t.Errorf("Len() = %d after loss, want 0", tr.Len())
	}
}

func TestTracker_MissCounterResetsOnAppend(t *testing.T) {
	config := DefaultConfig()
	config.MissTolerance = 2
	tr := New(config)

	tr.Update(detector.TipAt(100, 100), at(0))

	// Alternate one miss with one hit; the counter never accumulates.
	ts := 66
	for i := 0; i < 10; i++ {
		if ev := tr.Update(nil, at(ts)); ev.Kind != EventNone {
			t.Fatalf("miss round %d: Kind = %v, want EventNone", i, ev.Kind)
		}
		ts += 66
		if ev := tr.Update(detector.TipAt(100+float64(i), 100), at(ts)); ev.Kind != EventAppended {
			t.Fatalf("hit round %d: Kind = %v, want EventAppended", i, ev.Kind)
		}
		ts += 66
	}
}

func TestTracker_MaxPointsRejectsAppend(t *testing.T) {
	config := DefaultConfig()
	config.MaxPoints = 5
	config.MaxDuration = time.Hour
	tr := New(config)

	for i := 0; i < 5; i++ {
		ev := tr.Update(detector.TipAt(100+float64(i), 100), at(i*66))
		if ev.Kind != EventAppended {
			t.Fatalf("frame %d: Kind = %v, want EventAppended", i, ev.Kind)
		}
	}

	if !tr.Full(at(5 * 66)) {
		t.Fatal("tracker should be full at MaxPoints")
	}

	ev := tr.Update(detector.TipAt(110, 100), at(5*66))
	if ev.Kind != EventNone {
		t.Errorf("append to full trajectory: Kind = %v, want EventNone", ev.Kind)
	}
	if tr.Len() != 5 {
		t.Errorf("Len() = %d, want 5 (never exceeds MaxPoints)", tr.Len())
	}
}

func TestTracker_MaxDuration(t *testing.T) {
	config := DefaultConfig()
	config.MaxDuration = 500 * time.Millisecond
	tr := New(config)

	tr.Update(detector.TipAt(100, 100), at(0))
	tr.Update(detector.TipAt(105, 100), at(200))

	if tr.Full(at(400)) {
		t.Error("tracker full before MaxDuration elapsed")
	}
	if !tr.Full(at(500)) {
		t.Error("tracker not full after MaxDuration elapsed")
	}

	ev := tr.Update(detector.TipAt(110, 100), at(600))
	if ev.Kind != EventNone {
		t.Errorf("append past MaxDuration: Kind = %v, want EventNone", ev.Kind)
	}
}

func TestTracker_TimestampsNonDecreasing(t *testing.T) {
	tr := New(DefaultConfig())

	tr.Update(detector.TipAt(100, 100), at(100))

	// A frame with an earlier timestamp is dropped
	ev := tr.Update(detector.TipAt(101, 100), at(50))
	if ev.Kind != EventNone {
		t.Fatalf("out-of-order timestamp: Kind = %v, want EventNone", ev.Kind)
	}

	tr.Update(detector.TipAt(102, 100), at(150))
	tr.Update(detector.TipAt(103, 100), at(150)) // equal timestamps are fine

	pts := tr.Trajectory()
	for i := 1; i < len(pts); i++ {
		if pts[i].Timestamp.Before(pts[i-1].Timestamp) {
			t.Errorf("timestamps out of order at %d", i)
		}
	}
}

func TestTracker_TrajectoryIsACopy(t *testing.T) {
	tr := New(DefaultConfig())
	tr.Update(detector.TipAt(100, 100), at(0))

	pts := tr.Trajectory()
	pts[0].X = -1

	if tr.Trajectory()[0].X != 100 {
		t.Error("Trajectory() must return a copy, not internal state")
	}
}
