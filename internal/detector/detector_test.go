package detector

import (
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"
)

// brightDot draws a filled circle of the given intensity onto the frame.
func brightDot(frame *gocv.Mat, x, y, radius int, intensity uint8) {
	gocv.Circle(frame, image.Point{X: x, Y: y}, radius,
		color.RGBA{R: intensity, G: intensity, B: intensity, A: 255}, -1)
}

func TestBlobDetector_EmptyFrame(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	d := New(DefaultConfig())
	defer d.Close()

	empty := gocv.NewMat()
	defer empty.Close()

	blobs, err := d.Detect(&empty)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(blobs) != 0 {
		t.Errorf("expected no blobs for empty frame, got %d", len(blobs))
	}

	blobs, err = d.Detect(nil)
	if err != nil {
		t.Fatalf("Detect(nil) error = %v", err)
	}
	if len(blobs) != 0 {
		t.Errorf("expected no blobs for nil frame, got %d", len(blobs))
	}
}

func TestBlobDetector_DarkFrame(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	d := New(DefaultConfig())
	defer d.Close()

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC1)
	defer frame.Close()

	blobs, err := d.Detect(&frame)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(blobs) != 0 {
		t.Errorf("expected no blobs for dark frame, got %d", len(blobs))
	}
}

func TestBlobDetector_SingleTip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	d := New(DefaultConfig())
	defer d.Close()

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC1)
	defer frame.Close()
	brightDot(&frame, 320, 240, 8, 255)

	blobs, err := d.Detect(&frame)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(blobs) != 1 {
		t.Fatalf("expected one blob, got %d", len(blobs))
	}

	b := blobs[0]
	if b.X < 310 || b.X > 330 || b.Y < 230 || b.Y > 250 {
		t.Errorf("blob center = (%.1f, %.1f), want near (320, 240)", b.X, b.Y)
	}
	if b.Intensity < 200 {
		t.Errorf("blob intensity = %.0f, want bright (>200)", b.Intensity)
	}
}

func TestBlobDetector_CapAndOrder(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	config := DefaultConfig()
	config.MaxBlobs = 3
	d := New(config)
	defer d.Close()

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC1)
	defer frame.Close()

	// More candidate dots than the cap, at distinct brightness levels
	brightDot(&frame, 100, 100, 8, 255)
	brightDot(&frame, 250, 100, 8, 240)
	brightDot(&frame, 400, 100, 8, 225)
	brightDot(&frame, 100, 300, 8, 210)
	brightDot(&frame, 250, 300, 8, 200)

	blobs, err := d.Detect(&frame)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(blobs) > config.MaxBlobs {
		t.Fatalf("got %d blobs, want at most %d", len(blobs), config.MaxBlobs)
	}

	for i := 1; i < len(blobs); i++ {
		if blobs[i].Intensity > blobs[i-1].Intensity {
			t.Errorf("blobs not sorted by descending intensity: [%d]=%.0f > [%d]=%.0f",
				i, blobs[i].Intensity, i-1, blobs[i-1].Intensity)
		}
	}
}

func TestBlobDetector_RejectsElongated(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	d := New(DefaultConfig())
	defer d.Close()

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC1)
	defer frame.Close()

	// A long thin streak fails the circularity filter
	gocv.Line(&frame, image.Point{X: 100, Y: 240}, image.Point{X: 500, Y: 240},
		color.RGBA{R: 255, G: 255, B: 255, A: 255}, 3)

	blobs, err := d.Detect(&frame)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(blobs) != 0 {
		t.Errorf("expected streak to be rejected by circularity filter, got %d blobs", len(blobs))
	}
}

func TestMockFinder_Script(t *testing.T) {
	m := NewMockFinder()
	m.SetScript([][]Blob{
		TipAt(10, 10),
		TipAt(12, 12),
		nil,
	})

	for i, want := range []int{1, 1, 0, 0} {
		blobs, err := m.Detect(nil)
		if err != nil {
			t.Fatalf("Detect() call %d error = %v", i, err)
		}
		if len(blobs) != want {
			t.Errorf("call %d: got %d blobs, want %d", i, len(blobs), want)
		}
	}

	if m.Calls() != 4 {
		t.Errorf("Calls() = %d, want 4", m.Calls())
	}
}
