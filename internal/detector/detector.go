// Package detector finds bright circular blobs (the IR-lit wand tip) in
// video frames.
package detector

import (
	"image"
	"sort"
	"sync"

	"gocv.io/x/gocv"
)

// Blob is a single bright, roughly circular region found in one frame.
// A Blob is only meaningful for the frame it was detected in.
type Blob struct {
	// X and Y are the blob center in pixel coordinates.
	X float64
	Y float64

	// Radius is half the keypoint diameter reported by the detector.
	Radius float64

	// Intensity is the grayscale pixel value at the blob center, 0-255.
	Intensity float64
}

// Config holds blob detection parameters.
type Config struct {
	// MaxBlobs is the maximum number of blobs returned per frame.
	MaxBlobs int

	// MinThreshold and MaxThreshold bound the intensity sweep of the
	// underlying blob detector.
	MinThreshold float64
	MaxThreshold float64

	// MinCircularity filters out elongated regions (0.0-1.0).
	MinCircularity float64

	// MinArea and MaxArea bound the blob size in pixels.
	MinArea float64
	MaxArea float64

	// BlurSize is the Gaussian smoothing kernel size. Must be odd.
	BlurSize int
}

// DefaultConfig returns detection parameters tuned for an IR-reflective
// wand tip under infrared illumination.
func DefaultConfig() Config {
	return Config{
		MaxBlobs:       5,
		MinThreshold:   150,
		MaxThreshold:   250,
		MinCircularity: 0.68,
		MinArea:        30,
		MaxArea:        4000,
		BlurSize:       5,
	}
}

// Finder is the interface the controller uses to locate wand-tip
// candidates in a frame.
type Finder interface {
	// Detect returns the brightest blobs in the frame, sorted by
	// descending intensity, at most MaxBlobs of them. A malformed or
	// empty frame yields an empty result, never an error.
	Detect(frame *gocv.Mat) ([]Blob, error)

	// Close releases any resources held by the finder.
	Close() error
}

// BlobDetector implements Finder using the OpenCV simple blob detector.
type BlobDetector struct {
	config   Config
	detector gocv.SimpleBlobDetector
	mu       sync.Mutex
	closed   bool
}

// New creates a BlobDetector with the given configuration.
func New(config Config) *BlobDetector {
	params := gocv.NewSimpleBlobDetectorParams()
	params.SetMinThreshold(float64(config.MinThreshold))
	params.SetMaxThreshold(float64(config.MaxThreshold))

	// Bright blobs on a dark background
	params.SetFilterByColor(true)
	params.SetBlobColor(255)

	params.SetFilterByCircularity(true)
	params.SetMinCircularity(float64(config.MinCircularity))

	params.SetFilterByArea(true)
	params.SetMinArea(float64(config.MinArea))
	params.SetMaxArea(float64(config.MaxArea))

	return &BlobDetector{
		config:   config,
		detector: gocv.NewSimpleBlobDetectorWithParams(params),
	}
}

// Detect finds bright circular blobs in the frame.
//
// Processing steps:
// 1. Convert to grayscale if needed
// 2. Gaussian blur to suppress sensor noise
// 3. Blob detection (threshold sweep, connected components,
//    circularity and area filters)
// 4. Rank by center intensity descending, cap at MaxBlobs
func (d *BlobDetector) Detect(frame *gocv.Mat) ([]Blob, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed || frame == nil || frame.Empty() {
		return nil, nil
	}

	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: d.config.BlurSize, Y: d.config.BlurSize}, 0, 0, gocv.BorderDefault)

	keypoints := d.detector.Detect(blurred)
	if len(keypoints) == 0 {
		return nil, nil
	}

	blobs := make([]Blob, 0, len(keypoints))
	for _, kp := range keypoints {
		row, col := int(kp.Y), int(kp.X)
		if row < 0 || row >= gray.Rows() || col < 0 || col >= gray.Cols() {
			continue
		}

		blobs = append(blobs, Blob{
			X:         kp.X,
			Y:         kp.Y,
			Radius:    kp.Size / 2,
			Intensity: float64(gray.GetUCharAt(row, col)),
		})
	}

	sort.SliceStable(blobs, func(i, j int) bool {
		return blobs[i].Intensity > blobs[j].Intensity
	})

	if d.config.MaxBlobs > 0 && len(blobs) > d.config.MaxBlobs {
		blobs = blobs[:d.config.MaxBlobs]
	}

	return blobs, nil
}

// Close releases the underlying OpenCV detector.
func (d *BlobDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	return d.detector.Close()
}
