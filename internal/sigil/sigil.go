// Package sigil renders a finalized wand trajectory into the fixed-shape
// representation consumed by the classifier.
package sigil

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/interp"

	"github.com/jmfall/sortilege/internal/track"
)

// Mode selects the sigil representation.
type Mode string

const (
	// ModeImage rasterizes the trajectory onto a fixed square canvas.
	ModeImage Mode = "image"
	// ModeSequence resamples the trajectory to a fixed-length
	// coordinate sequence.
	ModeSequence Mode = "sequence"
)

// ErrTooShort is returned when a trajectory has fewer than two points.
var ErrTooShort = errors.New("trajectory too short to render")

// Config holds rendering parameters.
type Config struct {
	// Mode selects image or sequence rendering.
	Mode Mode

	// CanvasSize is the width and height in pixels of the square canvas
	// for image mode.
	CanvasSize int

	// Margin is the blank border in pixels around the drawn path.
	Margin int

	// LineThickness is the stroke width of the drawn path.
	LineThickness int

	// SequenceLen is the number of resampled points for sequence mode.
	SequenceLen int
}

// DefaultConfig returns rendering parameters matching the classifier's
// expected 224x224 grayscale input.
func DefaultConfig() Config {
	return Config{
		Mode:          ModeImage,
		CanvasSize:    224,
		Margin:        10,
		LineThickness: 3,
		SequenceLen:   64,
	}
}

// Coord is one resampled trajectory coordinate, normalized to [0, 1].
type Coord struct {
	X float64
	Y float64
}

// Sigil is the finalized representation of a completed gesture.
// It is immutable once produced and consumed exactly once by the
// classifier; callers must Close image sigils when done.
type Sigil struct {
	Mode Mode

	// Image is the rasterized path, a CanvasSize x CanvasSize grayscale
	// Mat. Only valid in image mode.
	Image gocv.Mat

	// Sequence is the fixed-length resampled path. Only valid in
	// sequence mode.
	Sequence []Coord
}

// Close releases the underlying image, if any.
func (s *Sigil) Close() {
	if s.Mode == ModeImage && !s.Image.Empty() {
		s.Image.Close()
	}
}

// Renderer converts trajectories into sigils. Render is a pure function
// of its input: the same trajectory always yields the same sigil.
type Renderer struct {
	config Config
}

// NewRenderer creates a Renderer with the given configuration.
func NewRenderer(config Config) *Renderer {
	return &Renderer{config: config}
}

// Render produces a sigil from the trajectory.
func (r *Renderer) Render(trajectory []track.Point) (*Sigil, error) {
	if len(trajectory) < 2 {
		return nil, ErrTooShort
	}

	switch r.config.Mode {
	case ModeImage:
		return r.renderImage(trajectory), nil
	case ModeSequence:
		seq, err := r.renderSequence(trajectory)
		if err != nil {
			return nil, err
		}
		return &Sigil{Mode: ModeSequence, Sequence: seq}, nil
	default:
		return nil, fmt.Errorf("unknown sigil mode %q", r.config.Mode)
	}
}

// renderImage draws the trajectory as connected line segments on a square
// canvas. The trajectory bounding box is padded to a square so the path
// keeps its aspect ratio, then scaled to the canvas minus the margin.
func (r *Renderer) renderImage(trajectory []track.Point) *Sigil {
	left, top, right, bottom := bounds(trajectory)

	width := right - left
	height := bottom - top
	side := math.Max(width, height)
	if side <= 0 {
		side = 1
	}

	// Center the bounding box within the padded square
	squareLeft := left - (side-width)/2
	squareTop := top - (side-height)/2

	inner := float64(r.config.CanvasSize - 2*r.config.Margin)
	scale := inner / side

	toCanvas := func(p track.Point) image.Point {
		return image.Point{
			X: r.config.Margin + int(math.Round((p.X-squareLeft)*scale)),
			Y: r.config.Margin + int(math.Round((p.Y-squareTop)*scale)),
		}
	}

	canvas := gocv.NewMatWithSize(r.config.CanvasSize, r.config.CanvasSize, gocv.MatTypeCV8UC1)
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}

	for i := 1; i < len(trajectory); i++ {
		gocv.Line(&canvas, toCanvas(trajectory[i-1]), toCanvas(trajectory[i]), white, r.config.LineThickness)
	}

	return &Sigil{Mode: ModeImage, Image: canvas}
}

// renderSequence resamples the trajectory to SequenceLen points, evenly
// spaced by arc length, and normalizes them to the unit square.
func (r *Renderer) renderSequence(trajectory []track.Point) ([]Coord, error) {
	// Parameterize by cumulative chord length, skipping zero-length
	// segments: piecewise-linear fitting needs strictly increasing
	// parameters.
	params := []float64{0}
	xs := []float64{trajectory[0].X}
	ys := []float64{trajectory[0].Y}

	total := 0.0
	for i := 1; i < len(trajectory); i++ {
		d := math.Hypot(trajectory[i].X-trajectory[i-1].X, trajectory[i].Y-trajectory[i-1].Y)
		if d == 0 {
			continue
		}
		total += d
		params = append(params, total)
		xs = append(xs, trajectory[i].X)
		ys = append(ys, trajectory[i].Y)
	}

	seq := make([]Coord, r.config.SequenceLen)

	if total == 0 {
		// Degenerate trajectory: every point identical. Render it as a
		// stationary path at the canvas center.
		for i := range seq {
			seq[i] = Coord{X: 0.5, Y: 0.5}
		}
		return seq, nil
	}

	var fx, fy interp.PiecewiseLinear
	if err := fx.Fit(params, xs); err != nil {
		return nil, fmt.Errorf("fit x parameterization: %w", err)
	}
	if err := fy.Fit(params, ys); err != nil {
		return nil, fmt.Errorf("fit y parameterization: %w", err)
	}

	step := total / float64(r.config.SequenceLen-1)
	for i := range seq {
		t := float64(i) * step
		if i == r.config.SequenceLen-1 {
			t = total // avoid drifting past the domain
		}
		seq[i] = Coord{X: fx.Predict(t), Y: fy.Predict(t)}
	}

	return normalize(seq), nil
}

// bounds returns the trajectory bounding box.
func bounds(trajectory []track.Point) (left, top, right, bottom float64) {
	left, right = trajectory[0].X, trajectory[0].X
	top, bottom = trajectory[0].Y, trajectory[0].Y

	for _, p := range trajectory {
		if p.X < left {
			left = p.X
		}
		if p.X > right {
			right = p.X
		}
		if p.Y < top {
			top = p.Y
		}
		if p.Y > bottom {
			bottom = p.Y
		}
	}
	return left, top, right, bottom
}

// normalize scales coordinates to the 0-1 range, preserving order.
func normalize(seq []Coord) []Coord {
	minX, maxX := seq[0].X, seq[0].X
	minY, maxY := seq[0].Y, seq[0].Y

	for _, c := range seq {
		if c.X < minX {
			minX = c.X
		}
		if c.X > maxX {
			maxX = c.X
		}
		if c.Y < minY {
			minY = c.Y
		}
		if c.Y > maxY {
			maxY = c.Y
		}
	}

	rangeX := maxX - minX
	rangeY := maxY - minY

	out := make([]Coord, len(seq))
	for i, c := range seq {
		var nx, ny float64
		if rangeX > 0 {
			nx = (c.X - minX) / rangeX
		}
		if rangeY > 0 {
			ny = (c.Y - minY) / rangeY
		}
		out[i] = Coord{X: nx, Y: ny}
	}
	return out
}
