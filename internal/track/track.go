// Package track associates per-frame blob detections into a single wand-tip
// trajectory over time.
package track

import (
	"math"
	"time"

	"github.com/jmfall/sortilege/internal/detector"
)

// Point is one tracked wand-tip position.
type Point struct {
	X         float64
	Y         float64
	Radius    float64
	Intensity float64
	Timestamp time.Time
}

// EventKind describes the outcome of a tracker update.
type EventKind int

const (
	// EventNone means no trajectory change: either nothing is being
	// tracked, a missed frame was absorbed, or the trajectory is full.
	EventNone EventKind = iota
	// EventAppended means a point was added to the active trajectory.
	EventAppended
	// EventLost means the track was lost after too many consecutive
	// missed frames; the trajectory has been cleared.
	EventLost
)

// Event is the result of one Update call.
type Event struct {
	Kind EventKind

	// Point is the appended point when Kind is EventAppended.
	Point Point

	// Trajectory carries the final point sequence when Kind is
	// EventLost. It is a copy; the tracker state is already cleared.
	Trajectory []Point
}

// Config holds tracking parameters.
type Config struct {
	// MaxJump is the maximum pixel distance between consecutive points.
	// A nearer candidate beyond this distance counts as a missed frame.
	MaxJump float64

	// MissTolerance is the number of consecutive missed frames absorbed
	// before the track is declared lost. This covers the wand tip
	// briefly leaving the field of view or the IR reflection dropping
	// out without ending the gesture.
	MissTolerance int

	// MaxPoints bounds the trajectory length.
	MaxPoints int

	// MaxDuration bounds the trajectory wall-clock window.
	MaxDuration time.Duration
}

// DefaultConfig returns tracking parameters suitable for a 640x480 feed
// at around 15 FPS.
func DefaultConfig() Config {
	return Config{
		MaxJump:       150,
		MissTolerance: 5,
		MaxPoints:     120,
		MaxDuration:   4 * time.Second,
	}
}

// Tracker maintains the evolving wand-tip trajectory. Only one target is
// tracked: the wand has a single reflective tip, so nearest-neighbor
// association against the last point is sufficient and multi-target
// assignment would add cost without benefit.
//
// Tracker is not safe for concurrent use; the controller owns it and
// updates it from a single goroutine.
type Tracker struct {
	config Config
	points []Point
	missed int
}

// New creates a Tracker with the given configuration.
func New(config Config) *Tracker {
	return &Tracker{
		config: config,
		points: make([]Point, 0, config.MaxPoints),
	}
}

// Update advances the tracker with one frame's detections. Blobs must be
// sorted by descending intensity, as the detector guarantees.
func (t *Tracker) Update(blobs []detector.Blob, ts time.Time) Event {
	if !t.Active() {
		if len(blobs) == 0 {
			return Event{Kind: EventNone}
		}
		// Start a new trajectory with the brightest blob; secondary
		// blobs are reflections or noise, not the wand tip.
		p := pointFromBlob(blobs[0], ts)
		t.points = append(t.points, p)
		t.missed = 0
		return Event{Kind: EventAppended, Point: p}
	}

	last := t.points[len(t.points)-1]

	// Out-of-order timestamps are dropped rather than breaking the
	// non-decreasing order invariant.
	if ts.Before(last.Timestamp) {
		return Event{Kind: EventNone}
	}

	if t.Full(ts) {
		// Appending is rejected once the trajectory is at capacity;
		// finalizing is the controller's transition, not ours.
		return Event{Kind: EventNone}
	}

	best, dist := nearest(blobs, last)
	if best == nil || dist > t.config.MaxJump {
		t.missed++
		if t.missed > t.config.MissTolerance {
			trajectory := t.reset()
			return Event{Kind: EventLost, Trajectory: trajectory}
		}
		return Event{Kind: EventNone}
	}

	p := pointFromBlob(*best, ts)
	t.points = append(t.points, p)
	t.missed = 0
	return Event{Kind: EventAppended, Point: p}
}

// Active returns true while a trajectory is being built.
func (t *Tracker) Active() bool {
	return len(t.points) > 0
}

// Len returns the current trajectory length.
func (t *Tracker) Len() int {
	return len(t.points)
}

// Full reports whether the trajectory has reached its maximum point count
// or wall-clock duration as of ts.
func (t *Tracker) Full(ts time.Time) bool {
	if !t.Active() {
		return false
	}
	if t.config.MaxPoints > 0 && len(t.points) >= t.config.MaxPoints {
		return true
	}
	if t.config.MaxDuration > 0 && ts.Sub(t.points[0].Timestamp) >= t.config.MaxDuration {
		return true
	}
	return false
}

// Trajectory returns a copy of the current point sequence.
func (t *Tracker) Trajectory() []Point {
	out := make([]Point, len(t.points))
	copy(out, t.points)
	return out
}

// Reset clears the trajectory and missed-frame counter.
func (t *Tracker) Reset() {
	t.reset()
}

// reset clears state and returns the trajectory that was active.
func (t *Tracker) reset() []Point {
	trajectory := t.points
	t.points = make([]Point, 0, t.config.MaxPoints)
	t.missed = 0
	return trajectory
}

// nearest returns the blob closest to the last tracked point.
func nearest(blobs []detector.Blob, last Point) (*detector.Blob, float64) {
	var best *detector.Blob
	bestDist := math.Inf(1)

	for i := range blobs {
		d := math.Hypot(blobs[i].X-last.X, blobs[i].Y-last.Y)
		if d < bestDist {
			best = &blobs[i]
			bestDist = d
		}
	}

	return best, bestDist
}

func pointFromBlob(b detector.Blob, ts time.Time) Point {
	return Point{
		X:         b.X,
		Y:         b.Y,
		Radius:    b.Radius,
		Intensity: b.Intensity,
		Timestamp: ts,
	}
}
