// Package imaging normalizes uploaded camera images to a bounded size and a
// single lossy encoding.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/vbonduro/gpstrack/internal/domain"
)

const (
	DefaultMaxEdge = 800
	DefaultQuality = 80

	// DefaultMaxPixels bounds the declared size of an image that will be
	// decoded at all.
	DefaultMaxPixels = 40_000_000

	// MimeType and Ext describe every normalized image.
	MimeType = "image/jpeg"
	Ext      = ".jpg"
)

// Normalizer downsizes images so the longer edge is at most MaxEdge pixels and
// re-encodes them as JPEG. Images declaring more than MaxPixels pixels are
// rejected before decoding.
type Normalizer struct {
	MaxEdge   int
	Quality   int
	MaxPixels int
}

func NewNormalizer(maxEdge, quality int) *Normalizer {
	if maxEdge <= 0 {
		maxEdge = DefaultMaxEdge
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Normalizer{MaxEdge: maxEdge, Quality: quality, MaxPixels: DefaultMaxPixels}
}

// Normalize decodes JPEG, PNG, GIF or WebP data. Images already within bounds
// are re-encoded without scaling; smaller images are never enlarged.
func (n *Normalizer) Normalize(data []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable image: %v", domain.ErrInvalidInput, err)
	}
	limit := n.MaxPixels
	if limit <= 0 {
		limit = DefaultMaxPixels
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > limit/cfg.Height {
		return nil, fmt.Errorf("%w: image dimensions %dx%d exceed %d pixels",
			domain.ErrInvalidInput, cfg.Width, cfg.Height, limit)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable image: %v", domain.ErrInvalidInput, err)
	}

	img := src
	b := src.Bounds()
	if w, h := FitWithin(b.Dx(), b.Dy(), n.MaxEdge); w != b.Dx() || h != b.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: n.Quality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// FitWithin returns the dimensions of a w×h image scaled so that neither edge
// exceeds maxEdge, preserving aspect ratio.
func FitWithin(w, h, maxEdge int) (int, int) {
	if w <= maxEdge && h <= maxEdge {
		return w, h
	}
	if w >= h {
		nh := max(1, (h*maxEdge+w/2)/w)
		return maxEdge, nh
	}
	nw := max(1, (w*maxEdge+h/2)/h)
	return nw, maxEdge
}
