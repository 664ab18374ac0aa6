// Command gcptransform transforms GeoJSON geometries or coordinate lists
// between image (resource) and geo space using ground control points.
//
// Usage:
//
//	gcptransform -gcps gcps.json [-type polynomial] [-inverse] [input.geojson]
//	gcptransform -gcps gcps.txt -coords < points.txt
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"unicode"

	"georef/internal/config"
	"georef/internal/gcpio"
	"georef/internal/version"
	"georef/pkg/transformer"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "gcptransform: %v\n", err)
		os.Exit(1)
	}
}

type settings struct {
	cfg      *config.File
	gcpsPath string
	input    string
	inverse  bool
	coords   bool
	verbose  bool
	version  bool
}

func parseFlags(args []string, stderr io.Writer) (*settings, error) {
	fs := flag.NewFlagSet("gcptransform", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "options file (default "+config.DefaultPath()+")")
	gcps := fs.String("gcps", "", "control point file: JSON, GeoJSON or GDAL -gcp text")
	typ := fs.String("type", "", "transformation: helmert, polynomial, polynomial1..3, projective, thinPlateSpline, straight")
	order := fs.Int("order", 0, "order for -type polynomial")
	maxDepth := fs.Int("max-depth", 0, "maximum refinement depth per segment")
	minOffsetRatio := fs.Float64("min-offset-ratio", 0, "stop refining when the midpoint offset ratio is below this")
	geographic := fs.Bool("geographic", false, "geo coordinates are lon/lat, refine along great circles")
	projection := fs.String("projection", "", `fit the transformation in a projection ("mercator")`)
	measures := fs.String("measures", "", "comma separated distortion measures to print in -coords mode")

	s := &settings{}
	fs.BoolVar(&s.inverse, "inverse", false, "transform from geo to resource space")
	fs.BoolVar(&s.coords, "coords", false, `read "x y" lines instead of GeoJSON`)
	fs.BoolVar(&s.verbose, "v", false, "log transformer details to stderr")
	fs.BoolVar(&s.version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if s.version {
		return s, nil
	}
	if fs.NArg() > 1 {
		return nil, errors.Errorf("expected at most one input file, got %d", fs.NArg())
	}
	s.input = fs.Arg(0)

	path := *configPath
	var err error
	if path == "" {
		path = config.DefaultPath()
		s.cfg, err = config.LoadOrDefault(path)
	} else {
		s.cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, err
	}

	// Flags given on the command line override the options file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "type":
			s.cfg.Type = *typ
		case "order":
			s.cfg.Order = *order
		case "max-depth":
			s.cfg.Refinement.MaxDepth = *maxDepth
		case "min-offset-ratio":
			s.cfg.Refinement.MinOffsetRatio = *minOffsetRatio
		case "geographic":
			s.cfg.DestinationIsGeographic = *geographic
		case "projection":
			s.cfg.Projection = *projection
		case "measures":
			s.cfg.Distortion.Measures = splitList(*measures)
		}
	})

	s.gcpsPath = *gcps
	if s.gcpsPath == "" {
		s.gcpsPath = s.cfg.GCPsPath(path)
	}
	return s, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (s *settings) transformer() (*transformer.Transformer, error) {
	if s.gcpsPath == "" {
		return nil, errors.New("no control points: use -gcps or set gcps in the options file")
	}
	gcps, err := gcpio.ReadFile(s.gcpsPath)
	if err != nil {
		return nil, err
	}
	typ, err := s.cfg.TransformationType()
	if err != nil {
		return nil, err
	}
	opts, err := s.cfg.TransformerOptions()
	if err != nil {
		return nil, err
	}
	return transformer.New(gcps, typ, opts...)
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	s, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if s.version {
		fmt.Fprintln(stdout, version.String("gcptransform"))
		return nil
	}
	if s.verbose {
		transformer.SetLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
		defer transformer.SetLogger(nil)
	}

	t, err := s.transformer()
	if err != nil {
		return err
	}

	in := stdin
	if s.input != "" {
		f, err := os.Open(s.input)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	if s.coords {
		measures, err := s.cfg.DistortionMeasures()
		if err != nil {
			return err
		}
		return transformCoords(t, s.inverse, len(measures) > 0, in, stdout)
	}
	return transformGeoJSON(t, s.inverse, in, stdout)
}

func transformGeoJSON(t *transformer.Transformer, inverse bool, in io.Reader, out io.Writer) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}

	transform := t.TransformToGeo
	if inverse {
		transform = t.TransformToResource
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return errors.Wrap(err, "parse GeoJSON")
	}

	var result interface{}
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return errors.Wrap(err, "parse GeoJSON")
		}
		for i, f := range fc.Features {
			if f.Geometry, err = transform(f.Geometry); err != nil {
				return errors.Wrapf(err, "feature %d", i)
			}
		}
		result = fc
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return errors.Wrap(err, "parse GeoJSON")
		}
		if f.Geometry, err = transform(f.Geometry); err != nil {
			return err
		}
		result = f
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return errors.Wrap(err, "parse GeoJSON")
		}
		transformed, err := transform(g.Geometry())
		if err != nil {
			return err
		}
		result = geojson.NewGeometry(transformed)
	}
	return json.NewEncoder(out).Encode(result)
}

func transformCoords(t *transformer.Transformer, inverse, withDistortions bool, in io.Reader, out io.Writer) error {
	w := bufio.NewWriter(out)
	scanner := bufio.NewScanner(in)
	measures := t.Options().DistortionMeasures

	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		p, err := parsePoint(text)
		if err != nil {
			return errors.Wrapf(err, "line %d", line)
		}

		var v transformer.Vertex
		switch {
		case withDistortions && inverse:
			v = t.TransformPointToResourceWithDistortions(p)
		case withDistortions:
			v = t.TransformPointToGeoWithDistortions(p)
		case inverse:
			v.Destination = t.TransformPointToResource(p)
		default:
			v.Destination = t.TransformPointToGeo(p)
		}

		fields := []string{formatFloat(v.Destination[0]), formatFloat(v.Destination[1])}
		if withDistortions {
			for _, m := range measures {
				fields = append(fields, formatFloat(v.Distortions[m]))
			}
		}
		fmt.Fprintln(w, strings.Join(fields, " "))
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return w.Flush()
}

func parsePoint(text string) (orb.Point, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool { return r == ',' || unicode.IsSpace(r) })
	if len(fields) < 2 {
		return orb.Point{}, errors.Errorf("expected x and y, got %q", text)
	}
	var p orb.Point
	for i := range p {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return orb.Point{}, errors.Wrapf(err, "coordinate %d", i+1)
		}
		p[i] = v
	}
	return p, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
