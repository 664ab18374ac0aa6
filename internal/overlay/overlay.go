// Package overlay renders distortion measures of a transformer as an image
// covering the resource, for display on top of the map.
package overlay

import (
	"image"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"georef/pkg/colorutil"
	"georef/pkg/distortion"
	"georef/pkg/transformer"

	"github.com/disintegration/imaging"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"golang.org/x/image/tiff"
)

// Format is an output image format.
type Format string

const (
	FormatPNG  Format = "png"
	FormatTIFF Format = "tiff"
)

// ErrUnsupportedFormat is returned for formats other than png and tiff.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Field returns the value to draw at a resource point. NaN is drawn
// transparent.
type Field func(orb.Point) float64

// DistortionField evaluates one distortion measure of the forward model.
func DistortionField(t *transformer.Transformer, measure distortion.Measure) Field {
	opt := transformer.WithDistortionMeasures(measure)
	return func(p orb.Point) float64 {
		return t.TransformPointToGeoWithDistortions(p, opt).Distortions[measure]
	}
}

// Options controls rendering.
type Options struct {
	// Width and Height are the output size in pixels.
	Width, Height int
	// Grid is the number of samples along the longer side. The sampled
	// grid is upsampled to the output size.
	Grid int
	// Limit is the value drawn with full ramp colour. 0 uses the largest
	// absolute sampled value.
	Limit float64
	Ramp  colorutil.Ramp
}

// DefaultOptions returns a 512 pixel square overlay sampled on a 64 grid.
func DefaultOptions() Options {
	return Options{
		Width:  512,
		Height: 512,
		Grid:   64,
		Ramp:   colorutil.DefaultRamp(),
	}
}

// Samples holds field values on a regular grid, row major, top row first.
type Samples struct {
	Cols, Rows int
	Values     []float64
}

// At returns the value in column i of row j.
func (s *Samples) At(i, j int) float64 {
	return s.Values[j*s.Cols+i]
}

// MaxAbs returns the largest finite absolute value, or 0.
func (s *Samples) MaxAbs() float64 {
	var m float64
	for _, v := range s.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		m = math.Max(m, math.Abs(v))
	}
	return m
}

// gridSize splits grid samples over the sides of bounds in proportion.
func gridSize(bounds orb.Bound, grid int) (cols, rows int) {
	w, h := bounds.Max[0]-bounds.Min[0], bounds.Max[1]-bounds.Min[1]
	cols, rows = grid, grid
	if w > h && w > 0 {
		rows = int(math.Ceil(float64(grid) * h / w))
	} else if h > w && h > 0 {
		cols = int(math.Ceil(float64(grid) * w / h))
	}
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return cols, rows
}

// Sample evaluates field at the cell centres of a grid over bounds. Rows are
// evaluated concurrently, so field must be safe for concurrent use.
func Sample(field Field, bounds orb.Bound, grid int) *Samples {
	cols, rows := gridSize(bounds, grid)
	s := &Samples{Cols: cols, Rows: rows, Values: make([]float64, cols*rows)}

	dx := (bounds.Max[0] - bounds.Min[0]) / float64(cols)
	dy := (bounds.Max[1] - bounds.Min[1]) / float64(rows)

	var wg sync.WaitGroup
	sem := make(chan struct{}, runtime.NumCPU())
	for j := 0; j < rows; j++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(j int) {
			defer wg.Done()
			defer func() { <-sem }()

			y := bounds.Min[1] + (float64(j)+0.5)*dy
			for i := 0; i < cols; i++ {
				x := bounds.Min[0] + (float64(i)+0.5)*dx
				s.Values[j*cols+i] = field(orb.Point{x, y})
			}
		}(j)
	}
	wg.Wait()
	return s
}

// Image colours the samples, one pixel per sample.
func (s *Samples) Image(ramp colorutil.Ramp, limit float64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, s.Cols, s.Rows))
	for j := 0; j < s.Rows; j++ {
		for i := 0; i < s.Cols; i++ {
			img.SetRGBA(i, j, ramp.Scaled(s.At(i, j), limit))
		}
	}
	return img
}

// Render samples field over bounds and returns the coloured overlay at the
// output size.
func Render(field Field, bounds orb.Bound, opts Options) (*image.NRGBA, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, errors.Errorf("invalid overlay size %dx%d", opts.Width, opts.Height)
	}
	if opts.Grid <= 0 {
		return nil, errors.Errorf("invalid grid size %d", opts.Grid)
	}

	samples := Sample(field, bounds, opts.Grid)
	limit := opts.Limit
	if limit <= 0 {
		limit = samples.MaxAbs()
	}
	return imaging.Resize(samples.Image(opts.Ramp, limit), opts.Width, opts.Height, imaging.Linear), nil
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return FormatPNG, nil
	case ".tif", ".tiff":
		return FormatTIFF, nil
	}
	return "", errors.Wrapf(ErrUnsupportedFormat, "%q", filepath.Ext(path))
}

// Encode writes img in the given format. TIFF output is deflate compressed.
func Encode(w io.Writer, img image.Image, format Format) error {
	switch format {
	case FormatPNG:
		return imaging.Encode(w, img, imaging.PNG)
	case FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	}
	return errors.Wrapf(ErrUnsupportedFormat, "%q", format)
}

// Save writes img to path in the format given by its extension.
func Save(path string, img image.Image) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, img, format); err != nil {
		f.Close()
		return errors.Wrapf(err, "encode %s", path)
	}
	return f.Close()
}
