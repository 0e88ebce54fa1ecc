package capture

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"
)

func darkFrame() gocv.Mat {
	return gocv.NewMatWithSize(DefaultHeight, DefaultWidth, gocv.MatTypeCV8UC3)
}

func tipFrame(x, y int) gocv.Mat {
	mat := gocv.NewMatWithSize(DefaultHeight, DefaultWidth, gocv.MatTypeCV8UC3)
	gocv.Circle(&mat, image.Pt(x, y), 20, color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)
	return mat
}

func TestMockSource_ReadRequiresOpen(t *testing.T) {
	m := NewMockSource(nil, false)

	if _, err := m.ReadFrame(); !errors.Is(err, ErrSourceNotOpen) {
		t.Errorf("ReadFrame() error = %v, want ErrSourceNotOpen", err)
	}

	if err := m.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !m.IsOpen() {
		t.Error("IsOpen() = false after Open()")
	}
}

func TestMockSource_FiniteStreamEnds(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires OpenCV")
	}

	f1 := darkFrame()
	defer f1.Close()
	f2 := darkFrame()
	defer f2.Close()

	m := NewMockSource([]*gocv.Mat{&f1, &f2}, false)
	if err := m.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer m.Close()

	for i := 0; i < 2; i++ {
		frame, err := m.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() #%d error = %v", i, err)
		}
		frame.Close()
	}

	if _, err := m.ReadFrame(); !errors.Is(err, ErrEndOfStream) {
		t.Errorf("ReadFrame() past the end error = %v, want ErrEndOfStream", err)
	}
}

func TestMockSource_LoopRewinds(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires OpenCV")
	}

	f1 := darkFrame()
	defer f1.Close()

	m := NewMockSource([]*gocv.Mat{&f1}, true)
	if err := m.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer m.Close()

	for i := 0; i < 5; i++ {
		frame, err := m.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() #%d error = %v on looping source", i, err)
		}
		frame.Close()
	}
}

func TestMotionGate_FirstFrameIsBaseline(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires OpenCV")
	}

	gate := NewMotionGate(0.5)
	defer gate.Close()

	frame := tipFrame(100, 100)
	defer frame.Close()

	moving, percent := gate.Detect(&frame)
	if moving {
		t.Error("first frame reported motion, want baseline only")
	}
	if percent != 0 {
		t.Errorf("first frame percent = %f, want 0", percent)
	}
}

func TestMotionGate_StaticSceneIsQuiet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires OpenCV")
	}

	gate := NewMotionGate(0.5)
	defer gate.Close()

	for i := 0; i < 3; i++ {
		frame := darkFrame()
		moving, _ := gate.Detect(&frame)
		frame.Close()
		if i > 0 && moving {
			t.Errorf("static frame #%d reported motion", i)
		}
	}
}

func TestMotionGate_BrightTipRegisters(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires OpenCV")
	}

	gate := NewMotionGate(0.1)
	defer gate.Close()

	baseline := darkFrame()
	gate.Detect(&baseline)
	baseline.Close()

	frame := tipFrame(320, 240)
	defer frame.Close()

	moving, percent := gate.Detect(&frame)
	if !moving {
		t.Errorf("wand tip entering the scene not detected (%.3f%% changed)", percent)
	}
}

func TestMotionGate_NilFrame(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires OpenCV")
	}

	gate := NewMotionGate(0.5)
	defer gate.Close()

	if moving, _ := gate.Detect(nil); moving {
		t.Error("nil frame reported motion")
	}
}

func TestCamera_ReadRequiresOpen(t *testing.T) {
	c := NewCamera(0)

	if _, err := c.ReadFrame(); !errors.Is(err, ErrSourceNotOpen) {
		t.Errorf("ReadFrame() error = %v, want ErrSourceNotOpen", err)
	}
	if c.IsOpen() {
		t.Error("IsOpen() = true before Open()")
	}
}

func TestCamera_FPSDefaults(t *testing.T) {
	c := NewCamera(0)

	if c.FPS() != DefaultFPS {
		t.Errorf("FPS() = %d, want %d", c.FPS(), DefaultFPS)
	}

	c.SetFPS(30)
	if c.FPS() != 30 {
		t.Errorf("FPS() = %d after SetFPS(30)", c.FPS())
	}

	c.SetFPS(0)
	if c.FPS() != 30 {
		t.Error("SetFPS(0) should be ignored")
	}
}

func TestLooper_ReadRequiresOpen(t *testing.T) {
	l := NewLooper("testdata/missing.mp4")

	if _, err := l.ReadFrame(); !errors.Is(err, ErrSourceNotOpen) {
		t.Errorf("ReadFrame() error = %v, want ErrSourceNotOpen", err)
	}
}
