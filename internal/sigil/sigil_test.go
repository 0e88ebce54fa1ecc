package sigil

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmfall/sortilege/internal/track"
)

// circleTrajectory builds a synthetic circular wand stroke of n points.
func circleTrajectory(n int, cx, cy, radius float64) []track.Point {
	start := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	pts := make([]track.Point, n)
	for i := range pts {
		angle := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = track.Point{
			X:         cx + radius*math.Cos(angle),
			Y:         cy + radius*math.Sin(angle),
			Timestamp: start.Add(time.Duration(i) * 66 * time.Millisecond),
		}
	}
	return pts
}

func TestRender_TooShort(t *testing.T) {
	r := NewRenderer(DefaultConfig())

	_, err := r.Render(nil)
	assert.ErrorIs(t, err, ErrTooShort)

	_, err = r.Render(circleTrajectory(1, 100, 100, 50))
	assert.ErrorIs(t, err, ErrTooShort)
}

func TestRenderImage_CanvasSize(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	config := DefaultConfig()
	config.CanvasSize = 224
	r := NewRenderer(config)

	s, err := r.Render(circleTrajectory(120, 320, 240, 100))
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, ModeImage, s.Mode)
	assert.Equal(t, 224, s.Image.Rows())
	assert.Equal(t, 224, s.Image.Cols())

	// The path must actually be drawn
	nonZero := 0
	for row := 0; row < s.Image.Rows(); row++ {
		for col := 0; col < s.Image.Cols(); col++ {
			if s.Image.GetUCharAt(row, col) > 0 {
				nonZero++
			}
		}
	}
	assert.Greater(t, nonZero, 0, "rendered sigil should contain drawn pixels")
}

func TestRenderImage_Deterministic(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	r := NewRenderer(DefaultConfig())
	trajectory := circleTrajectory(80, 200, 200, 75)

	a, err := r.Render(trajectory)
	require.NoError(t, err)
	defer a.Close()

	b, err := r.Render(trajectory)
	require.NoError(t, err)
	defer b.Close()

	aBytes := a.Image.ToBytes()
	bBytes := b.Image.ToBytes()
	assert.True(t, bytes.Equal(aBytes, bBytes), "render must be deterministic for the same trajectory")
}

func TestRenderImage_MarginRespected(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	config := DefaultConfig()
	config.Margin = 10
	config.LineThickness = 1
	r := NewRenderer(config)

	s, err := r.Render(circleTrajectory(80, 320, 240, 100))
	require.NoError(t, err)
	defer s.Close()

	// Nothing is drawn inside the margin band (minus the stroke width
	// spill, covered by checking a shrunken band).
	for i := 0; i < config.Margin-config.LineThickness; i++ {
		for col := 0; col < s.Image.Cols(); col++ {
			assert.Zero(t, s.Image.GetUCharAt(i, col), "pixel in top margin at row %d col %d", i, col)
		}
	}
}

func TestRenderSequence_FixedLength(t *testing.T) {
	config := DefaultConfig()
	config.Mode = ModeSequence
	config.SequenceLen = 64
	r := NewRenderer(config)

	s, err := r.Render(circleTrajectory(120, 320, 240, 100))
	require.NoError(t, err)

	assert.Equal(t, ModeSequence, s.Mode)
	require.Len(t, s.Sequence, 64)

	for i, c := range s.Sequence {
		assert.GreaterOrEqual(t, c.X, 0.0, "point %d X", i)
		assert.LessOrEqual(t, c.X, 1.0, "point %d X", i)
		assert.GreaterOrEqual(t, c.Y, 0.0, "point %d Y", i)
		assert.LessOrEqual(t, c.Y, 1.0, "point %d Y", i)
	}
}

func TestRenderSequence_Deterministic(t *testing.T) {
	config := DefaultConfig()
	config.Mode = ModeSequence
	r := NewRenderer(config)

	trajectory := circleTrajectory(50, 100, 100, 40)

	a, err := r.Render(trajectory)
	require.NoError(t, err)
	b, err := r.Render(trajectory)
	require.NoError(t, err)

	assert.Equal(t, a.Sequence, b.Sequence)
}

func TestRenderSequence_EvenArcSpacing(t *testing.T) {
	config := DefaultConfig()
	config.Mode = ModeSequence
	config.SequenceLen = 11
	r := NewRenderer(config)

	// A straight horizontal stroke: resampled points must be evenly
	// spaced along x.
	start := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	trajectory := []track.Point{
		{X: 0, Y: 50, Timestamp: start},
		{X: 30, Y: 50, Timestamp: start.Add(66 * time.Millisecond)},
		{X: 100, Y: 50, Timestamp: start.Add(132 * time.Millisecond)},
	}

	s, err := r.Render(trajectory)
	require.NoError(t, err)

	for i, c := range s.Sequence {
		want := float64(i) / 10
		assert.InDelta(t, want, c.X, 1e-9, "point %d", i)
	}
}

func TestRenderSequence_StationaryTrajectory(t *testing.T) {
	config := DefaultConfig()
	config.Mode = ModeSequence
	r := NewRenderer(config)

	start := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	trajectory := []track.Point{
		{X: 42, Y: 42, Timestamp: start},
		{X: 42, Y: 42, Timestamp: start.Add(66 * time.Millisecond)},
		{X: 42, Y: 42, Timestamp: start.Add(132 * time.Millisecond)},
	}

	s, err := r.Render(trajectory)
	require.NoError(t, err)
	require.Len(t, s.Sequence, config.SequenceLen)

	for _, c := range s.Sequence {
		assert.Equal(t, Coord{X: 0.5, Y: 0.5}, c)
	}
}

func TestRenderSequence_DuplicatePointsSkipped(t *testing.T) {
	config := DefaultConfig()
	config.Mode = ModeSequence
	r := NewRenderer(config)

	// Repeated positions (wand momentarily still) must not break the
	// arc-length parameterization.
	start := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	trajectory := []track.Point{
		{X: 0, Y: 0, Timestamp: start},
		{X: 0, Y: 0, Timestamp: start.Add(66 * time.Millisecond)},
		{X: 50, Y: 50, Timestamp: start.Add(132 * time.Millisecond)},
		{X: 50, Y: 50, Timestamp: start.Add(198 * time.Millisecond)},
		{X: 100, Y: 0, Timestamp: start.Add(264 * time.Millisecond)},
	}

	s, err := r.Render(trajectory)
	require.NoError(t, err)
	assert.Len(t, s.Sequence, config.SequenceLen)
}

func TestRender_UnknownMode(t *testing.T) {
	config := DefaultConfig()
	config.Mode = Mode("hologram")
	r := NewRenderer(config)

	_, err := r.Render(circleTrajectory(10, 100, 100, 40))
	assert.Error(t, err)
}
