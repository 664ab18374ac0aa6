// Package gcpio reads and writes ground control point files.
//
// Three input formats are recognised by their first non-blank character:
//
//	[   a JSON list of {"resource": [x, y], "geo": [lon, lat]}
//	{   a GeoJSON FeatureCollection of geo points with a "resourceCoords" property
//	    anything else is read as GDAL style "-gcp x y lon lat [z]" arguments
package gcpio

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"

	"georef/pkg/geometry"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
)

// ResourceProperty is the feature property holding the resource coordinates
// of a GeoJSON control point.
const ResourceProperty = "resourceCoords"

var (
	// ErrNoGCPs is returned when a file holds no control points.
	ErrNoGCPs = errors.New("no control points")
	// ErrFormat is returned for malformed control point files.
	ErrFormat = errors.New("malformed control points")
)

// ReadFile reads control points from a file in any supported format.
func ReadFile(path string) ([]geometry.GCP, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gcps, err := Read(f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return gcps, nil
}

// Read reads control points in any supported format.
func Read(r io.Reader) ([]geometry.GCP, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(data)
	var gcps []geometry.GCP
	switch {
	case len(trimmed) == 0:
		return nil, ErrNoGCPs
	case trimmed[0] == '[':
		gcps, err = ParseJSON(trimmed)
	case trimmed[0] == '{':
		gcps, err = ParseGeoJSON(trimmed)
	default:
		gcps, err = ParseGDAL(trimmed)
	}
	if err != nil {
		return nil, err
	}
	if len(gcps) == 0 {
		return nil, ErrNoGCPs
	}
	return gcps, nil
}

// ParseJSON parses a JSON list of control points.
func ParseJSON(data []byte) ([]geometry.GCP, error) {
	var gcps []geometry.GCP
	if err := json.Unmarshal(data, &gcps); err != nil {
		return nil, errors.Wrap(ErrFormat, err.Error())
	}
	return gcps, nil
}

// ParseGeoJSON parses a FeatureCollection whose point geometries are the geo
// coordinates and whose resourceCoords properties are the resource coordinates.
func ParseGeoJSON(data []byte) ([]geometry.GCP, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, errors.Wrap(ErrFormat, err.Error())
	}

	gcps := make([]geometry.GCP, 0, len(fc.Features))
	for i, f := range fc.Features {
		geo, ok := f.Geometry.(orb.Point)
		if !ok {
			return nil, errors.Wrapf(ErrFormat, "feature %d: geometry is %T, not a point", i, f.Geometry)
		}
		resource, err := resourceCoords(f.Properties[ResourceProperty])
		if err != nil {
			return nil, errors.Wrapf(err, "feature %d", i)
		}
		gcps = append(gcps, geometry.GCP{Resource: resource, Geo: geo})
	}
	return gcps, nil
}

func resourceCoords(v interface{}) (orb.Point, error) {
	values, ok := v.([]interface{})
	if !ok || len(values) != 2 {
		return orb.Point{}, errors.Wrapf(ErrFormat, "%s must be [x, y]", ResourceProperty)
	}
	var p orb.Point
	for i, value := range values {
		n, ok := value.(float64)
		if !ok {
			return orb.Point{}, errors.Wrapf(ErrFormat, "%s must be numeric", ResourceProperty)
		}
		p[i] = n
	}
	return p, nil
}

// ParseGDAL parses "-gcp pixel line lon lat [elevation]" groups, as passed to
// gdal_translate. Groups may span lines; other tokens are ignored.
func ParseGDAL(data []byte) ([]geometry.GCP, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Split(bufio.ScanWords)

	var tokens []string
	for scanner.Scan() {
		tokens = append(tokens, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	var gcps []geometry.GCP
	for i := 0; i < len(tokens); i++ {
		if tokens[i] != "-gcp" {
			continue
		}
		if i+4 >= len(tokens) {
			return nil, errors.Wrapf(ErrFormat, "-gcp %d: expected 4 values", len(gcps)+1)
		}
		var v [4]float64
		for j := range v {
			n, err := strconv.ParseFloat(strings.TrimSuffix(tokens[i+1+j], ","), 64)
			if err != nil {
				return nil, errors.Wrapf(ErrFormat, "-gcp %d: %q is not a number", len(gcps)+1, tokens[i+1+j])
			}
			v[j] = n
		}
		gcps = append(gcps, geometry.GCP{
			Resource: orb.Point{v[0], v[1]},
			Geo:      orb.Point{v[2], v[3]},
		})
		i += 4
	}
	return gcps, nil
}

// FeatureCollection converts control points into a GeoJSON FeatureCollection
// that ParseGeoJSON reads back.
func FeatureCollection(gcps []geometry.GCP) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, g := range gcps {
		f := geojson.NewFeature(g.Geo)
		f.Properties[ResourceProperty] = []float64{g.Resource[0], g.Resource[1]}
		fc.Append(f)
	}
	return fc
}

// WriteGeoJSON writes control points as a GeoJSON FeatureCollection.
func WriteGeoJSON(w io.Writer, gcps []geometry.GCP) error {
	data, err := json.MarshalIndent(FeatureCollection(gcps), "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
