package store

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/nfnt/resize"
)

// thumbnailEdge is the bounding size of archived sigil thumbnails.
const thumbnailEdge = 64

// SigilArchive persists classified sigil images to disk as PNGs, plus a
// small thumbnail for the web history view.
type SigilArchive struct {
	dir string
}

// NewSigilArchive creates the archive directory if needed.
func NewSigilArchive(dir string) (*SigilArchive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sigil archive dir %s: %w", dir, err)
	}
	return &SigilArchive{dir: dir}, nil
}

// Save writes the sigil image under the cast ID and returns the full-size
// image path. A thumbnail is written alongside it.
func (a *SigilArchive) Save(castID string, img image.Image) (string, error) {
	path := filepath.Join(a.dir, castID+".png")
	if err := writePNG(path, img); err != nil {
		return "", err
	}

	thumb := resize.Thumbnail(thumbnailEdge, thumbnailEdge, img, resize.Lanczos3)
	thumbPath := filepath.Join(a.dir, castID+"_thumb.png")
	if err := writePNG(thumbPath, thumb); err != nil {
		return "", err
	}

	return path, nil
}

// ThumbnailPath returns where the thumbnail for a cast lives.
func (a *SigilArchive) ThumbnailPath(castID string) string {
	return filepath.Join(a.dir, castID+"_thumb.png")
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}

	return f.Close()
}
