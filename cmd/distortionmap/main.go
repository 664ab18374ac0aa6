// Command distortionmap renders a distortion measure of one or more
// georeferenced maps as overlay images.
//
// Each argument is a control point file; one image is written per file.
// A map that fails is reported and skipped, and the command exits with
// status 1 if any map failed.
package main

import (
	"flag"
	"fmt"
	"image"
	"io"
	"log"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"georef/internal/config"
	"georef/internal/gcpio"
	"georef/internal/overlay"
	"georef/internal/version"
	"georef/pkg/distortion"
	"georef/pkg/geometry"
	"georef/pkg/transformer"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

var errFailed = errors.New("one or more maps failed")

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		if !errors.Is(err, errFailed) {
			fmt.Fprintf(os.Stderr, "distortionmap: %v\n", err)
		}
		os.Exit(1)
	}
}

type settings struct {
	cfg     *config.File
	measure distortion.Measure
	width   float64
	height  float64
	size    int
	grid    int
	limit   float64
	outDir  string
	format  overlay.Format
	inputs  []string
	verbose bool
	version bool

	scan    string
	blend   overlay.BlendMode
	opacity float64
}

func parseFlags(args []string, stderr io.Writer) (*settings, error) {
	fs := flag.NewFlagSet("distortionmap", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "options file (default "+config.DefaultPath()+")")
	typ := fs.String("type", "", "transformation type, overrides the options file")
	order := fs.Int("order", 0, "order for -type polynomial")
	measure := fs.String("measure", string(distortion.Log2Sigma), "distortion measure: log2sigma, twoOmega, airyKavr, signDetJ, thetaa")
	format := fs.String("format", string(overlay.FormatPNG), "output format: png or tiff")
	blend := fs.String("blend", "normal", "how the overlay is drawn over -image: normal or multiply")

	s := &settings{}
	fs.Float64Var(&s.width, "width", 0, "resource width in pixels (default: extent of the control points)")
	fs.Float64Var(&s.height, "height", 0, "resource height in pixels")
	fs.IntVar(&s.size, "size", 512, "output size of the longer side in pixels")
	fs.IntVar(&s.grid, "grid", 64, "samples along the longer side")
	fs.Float64Var(&s.limit, "limit", 0, "value drawn with full colour (default: largest sampled value)")
	fs.StringVar(&s.outDir, "o", ".", "output directory")
	fs.StringVar(&s.scan, "image", "", "scanned map to draw the overlay on; sets the resource size")
	fs.Float64Var(&s.opacity, "opacity", 0.6, "overlay opacity over -image")
	fs.BoolVar(&s.verbose, "v", false, "log transformer details to stderr")
	fs.BoolVar(&s.version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if s.version {
		return s, nil
	}
	s.inputs = fs.Args()
	if len(s.inputs) == 0 {
		return nil, errors.New("usage: distortionmap [flags] gcps...")
	}

	var err error
	if s.measure, err = distortion.ParseMeasure(*measure); err != nil {
		return nil, err
	}
	if s.blend, err = overlay.ParseBlendMode(*blend); err != nil {
		return nil, err
	}
	s.format = overlay.Format(strings.ToLower(*format))
	if _, err := overlay.FormatFromPath("x." + string(s.format)); err != nil {
		return nil, err
	}

	if *configPath == "" {
		s.cfg, err = config.LoadOrDefault(config.DefaultPath())
	} else {
		s.cfg, err = config.Load(*configPath)
	}
	if err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "type":
			s.cfg.Type = *typ
		case "order":
			s.cfg.Order = *order
		}
	})
	return s, nil
}

func run(args []string, stdout, stderr io.Writer) error {
	s, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if s.version {
		fmt.Fprintln(stdout, version.String("distortionmap"))
		return nil
	}
	if s.verbose {
		transformer.SetLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
		defer transformer.SetLogger(nil)
	}

	failed := 0
	for _, input := range s.inputs {
		out, err := s.render(input)
		if err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", input, err)
			failed++
			continue
		}
		fmt.Fprintf(stdout, "%s -> %s\n", input, out)
	}
	if failed > 0 {
		return errors.Wrapf(errFailed, "%d of %d", failed, len(s.inputs))
	}
	return nil
}

// render writes the overlay for one control point file and returns its path.
func (s *settings) render(input string) (string, error) {
	gcps, err := gcpio.ReadFile(input)
	if err != nil {
		return "", err
	}
	typ, err := s.cfg.TransformationType()
	if err != nil {
		return "", err
	}
	opts, err := s.cfg.TransformerOptions()
	if err != nil {
		return "", err
	}
	t, err := transformer.New(gcps, typ, opts...)
	if err != nil {
		return "", err
	}

	var scan image.Image
	if s.scan != "" {
		if scan, err = overlay.LoadImage(s.scan); err != nil {
			return "", err
		}
	}

	bounds := s.bounds(gcps, scan)
	o := overlay.DefaultOptions()
	o.Width, o.Height = outputSize(bounds, s.size)
	o.Grid = s.grid
	o.Limit = s.limit
	if s.measure == distortion.SignDetJ && o.Limit == 0 {
		o.Limit = 1
	}

	img, err := overlay.Render(overlay.DistortionField(t, s.measure), bounds, o)
	if err != nil {
		return "", err
	}
	if scan != nil {
		img = overlay.Composite(scan, img, s.blend, s.opacity)
	}

	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	out := filepath.Join(s.outDir, fmt.Sprintf("%s-%s.%s", name, s.measure, s.format))
	if err := overlay.Save(out, img); err != nil {
		return "", err
	}
	return out, nil
}

// bounds returns the resource rectangle to sample: -width and -height, the
// scanned image, or the extent of the control points.
func (s *settings) bounds(gcps []transformer.GCP, scan image.Image) orb.Bound {
	if s.width > 0 && s.height > 0 {
		return geometry.RectangleRing(s.width, s.height).Bound()
	}
	if scan != nil {
		size := scan.Bounds().Size()
		return geometry.RectangleRing(float64(size.X), float64(size.Y)).Bound()
	}
	resource := make([]orb.Point, len(gcps))
	for i, g := range gcps {
		resource[i] = g.Resource
	}
	return geometry.BoundingBox(resource)
}

// outputSize scales bounds so the longer side is size pixels.
func outputSize(bounds orb.Bound, size int) (int, int) {
	w, h := bounds.Max[0]-bounds.Min[0], bounds.Max[1]-bounds.Min[1]
	if w <= 0 || h <= 0 {
		return size, size
	}
	scale := float64(size) / math.Max(w, h)
	return int(math.Max(1, math.Round(w*scale))), int(math.Max(1, math.Round(h*scale)))
}
