package overlay

import (
	"image"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// BlendMode specifies how an overlay is combined with the scanned map.
type BlendMode int

const (
	BlendNormal BlendMode = iota
	BlendMultiply
)

func (m BlendMode) String() string {
	switch m {
	case BlendNormal:
		return "normal"
	case BlendMultiply:
		return "multiply"
	default:
		return "unknown"
	}
}

// ParseBlendMode parses "normal" or "multiply".
func ParseBlendMode(s string) (BlendMode, error) {
	switch strings.ToLower(s) {
	case "normal":
		return BlendNormal, nil
	case "multiply":
		return BlendMultiply, nil
	}
	return 0, errors.Errorf("unknown blend mode %q", s)
}

// SupportedFormats returns the extensions of readable scans.
func SupportedFormats() []string {
	return []string{".tiff", ".tif", ".png", ".jpg", ".jpeg"}
}

// IsSupportedFormat checks if the given path has a supported image format.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}

// LoadImage loads a scanned map.
func LoadImage(path string) (image.Image, error) {
	if !IsSupportedFormat(path) {
		return nil, errors.Errorf("unsupported image %s", filepath.Base(path))
	}
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open image")
	}
	return img, nil
}

// Composite draws overlay over base, stretched to the size of base.
func Composite(base, overlay image.Image, mode BlendMode, opacity float64) *image.NRGBA {
	b := base.Bounds()
	top := overlay
	if overlay.Bounds().Size() != b.Size() {
		top = imaging.Resize(overlay, b.Dx(), b.Dy(), imaging.Linear)
	}

	if mode == BlendNormal {
		return imaging.Overlay(base, top, image.Point{}, opacity)
	}

	dst := imaging.Clone(base)
	src := imaging.Clone(top)
	for i := 0; i+3 < len(dst.Pix); i += 4 {
		a := float64(src.Pix[i+3]) / 255 * clamp(opacity, 0, 1)
		for c := 0; c < 3; c++ {
			d := float64(dst.Pix[i+c])
			multiplied := d * float64(src.Pix[i+c]) / 255
			dst.Pix[i+c] = uint8(d + (multiplied-d)*a + 0.5)
		}
	}
	return dst
}

func clamp(x, min, max float64) float64 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}
