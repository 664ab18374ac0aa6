// Package config provides the JSON options file shared by the georef commands.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"georef/pkg/distortion"
	"georef/pkg/transformation"
	"georef/pkg/transformer"

	"github.com/paulmach/orb/project"
	"github.com/pkg/errors"
)

const (
	configDir  = "georef"
	configFile = "config.json"

	// ProjectionMercator fits the transformation in web mercator metres
	// while geo coordinates stay lon/lat.
	ProjectionMercator = "mercator"
)

// ErrUnknownProjection is returned for projection names other than "" and "mercator".
var ErrUnknownProjection = errors.New("unknown projection")

// File is a georef options file.
type File struct {
	Version int `json:"version"`

	// Type is a transformation type name, including the legacy "polynomial".
	Type string `json:"type"`
	// Order selects the degree for the legacy "polynomial" type.
	Order int `json:"order,omitempty"`

	// GCPs is the control point file, relative to the options file.
	GCPs string `json:"gcps,omitempty"`

	Refinement Refinement `json:"refinement"`

	SourceIsGeographic      bool   `json:"source_is_geographic"`
	DestinationIsGeographic bool   `json:"destination_is_geographic"`
	Projection              string `json:"projection,omitempty"`

	Distortion Distortion `json:"distortion"`
}

// Refinement holds the line refinement thresholds.
type Refinement struct {
	MaxDepth          int     `json:"max_depth"`
	MinOffsetRatio    float64 `json:"min_offset_ratio,omitempty"`
	MinOffsetDistance float64 `json:"min_offset_distance,omitempty"`
	MinLineDistance   float64 `json:"min_line_distance,omitempty"`
}

// Distortion selects the distortion measures to compute.
type Distortion struct {
	Measures       []string `json:"measures,omitempty"`
	ReferenceScale float64  `json:"reference_scale,omitempty"`
}

// Default returns the options used when no file is given: a first order
// polynomial without refinement.
func Default() *File {
	return &File{
		Version: 1,
		Type:    string(transformation.TypePolynomial1),
	}
}

// DefaultPath returns ~/.config/georef/config.json or the platform equivalent.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(dir, configDir, configFile)
}

// Load reads an options file. Fields missing from the file keep their
// Default values.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	f := Default()
	if err := json.Unmarshal(data, f); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return f, nil
}

// LoadOrDefault is Load, but returns Default when the file does not exist.
func LoadOrDefault(path string) (*File, error) {
	f, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return f, err
}

// Save writes the options file, creating its directory.
func (f *File) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// GCPsPath returns the absolute path of the control point file, or "" if
// none is set.
func (f *File) GCPsPath(configPath string) string {
	if f.GCPs == "" {
		return ""
	}
	if filepath.IsAbs(f.GCPs) {
		return f.GCPs
	}
	return filepath.Join(filepath.Dir(configPath), f.GCPs)
}

// TransformationType parses Type together with Order.
func (f *File) TransformationType() (transformation.Type, error) {
	return transformation.ParseTypeWithOrder(f.Type, f.Order)
}

// DistortionMeasures parses the configured measure names.
func (f *File) DistortionMeasures() ([]distortion.Measure, error) {
	measures := make([]distortion.Measure, 0, len(f.Distortion.Measures))
	for _, name := range f.Distortion.Measures {
		m, err := distortion.ParseMeasure(name)
		if err != nil {
			return nil, err
		}
		measures = append(measures, m)
	}
	return measures, nil
}

// TransformerOptions converts the file into transformer options.
func (f *File) TransformerOptions() ([]transformer.Option, error) {
	measures, err := f.DistortionMeasures()
	if err != nil {
		return nil, err
	}

	opts := []transformer.Option{
		transformer.WithMaxDepth(f.Refinement.MaxDepth),
		transformer.WithMinOffsetRatio(f.Refinement.MinOffsetRatio),
		transformer.WithMinOffsetDistance(f.Refinement.MinOffsetDistance),
		transformer.WithMinLineDistance(f.Refinement.MinLineDistance),
		transformer.WithSourceIsGeographic(f.SourceIsGeographic),
		transformer.WithDestinationIsGeographic(f.DestinationIsGeographic),
		transformer.WithDistortionMeasures(measures...),
		transformer.WithReferenceScale(f.Distortion.ReferenceScale),
	}

	switch strings.ToLower(f.Projection) {
	case "":
	case ProjectionMercator:
		opts = append(opts,
			transformer.WithForwardHooks(nil, project.Mercator.ToWGS84),
			transformer.WithBackwardHooks(project.WGS84.ToMercator, nil),
		)
	default:
		return nil, errors.Wrapf(ErrUnknownProjection, "%q", f.Projection)
	}
	return opts, nil
}
