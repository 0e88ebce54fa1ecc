package capture

import (
	"fmt"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// Looper plays back a video file, restarting from the beginning when the
// file is exhausted. Useful for development without a camera: record one
// wand session and loop it forever.
type Looper struct {
	path    string
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
	fps     int
}

// NewLooper creates a Source that loops over the given video file.
func NewLooper(path string) *Looper {
	return &Looper{
		path: path,
		fps:  DefaultFPS,
	}
}

// Open opens the video file for playback.
func (l *Looper) Open() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return nil
	}

	if _, err := os.Stat(l.path); err != nil {
		return fmt.Errorf("video file %s: %w", l.path, err)
	}

	capture, err := gocv.VideoCaptureFile(l.path)
	if err != nil {
		return fmt.Errorf("open video file %s: %w", l.path, err)
	}

	l.capture = capture
	l.running = true
	return nil
}

// Close releases the video file.
func (l *Looper) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running || l.capture == nil {
		l.running = false
		return nil
	}

	err := l.capture.Close()
	l.capture = nil
	l.running = false
	return err
}

// ReadFrame reads the next frame, rewinding to the start of the file when
// playback reaches the end. The caller is responsible for closing the Mat.
func (l *Looper) ReadFrame() (*gocv.Mat, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running || l.capture == nil {
		return nil, ErrSourceNotOpen
	}

	mat := gocv.NewMat()
	if ok := l.capture.Read(&mat); !ok || mat.Empty() {
		// End of file: reopen and try once more.
		l.capture.Close()
		capture, err := gocv.VideoCaptureFile(l.path)
		if err != nil {
			mat.Close()
			return nil, fmt.Errorf("rewind video file %s: %w", l.path, err)
		}
		l.capture = capture

		if ok := l.capture.Read(&mat); !ok || mat.Empty() {
			mat.Close()
			return nil, ErrEndOfStream
		}
	}

	return &mat, nil
}

// SetFPS is a no-op for file playback; pacing is the caller's concern.
func (l *Looper) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	l.mu.Lock()
	l.fps = fps
	l.mu.Unlock()
}

// FPS returns the current frames per second setting.
func (l *Looper) FPS() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fps
}

// IsOpen returns true if the video file is open for playback.
func (l *Looper) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}
