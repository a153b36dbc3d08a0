// Package dataset loads the static case and transmission cluster GeoJSON
// that the dashboard renders. Data is read once at startup and never mutated.
package dataset

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

//go:embed data/*.json
var embedded embed.FS

// File names looked up in the data directory, falling back to the embedded copies.
const (
	CasesFile        = "covid-sg.json"
	TransmissionFile = "transmission-cluster.json"
)

// DateLayout is the layout of the optional "date" case property.
const DateLayout = "2006-01-02"

var (
	ErrNotPoint           = errors.New("case feature geometry is not a point")
	ErrLocationsMismatch  = errors.New("transmission locations do not match geometry")
	ErrInvalidProperties  = errors.New("invalid case properties")
	ErrMissingTransmision = errors.New("transmission cluster feature is empty")
)

var validate = validator.New()

// PointProperties are the application properties carried by a case point.
type PointProperties struct {
	ID    string `json:"id" validate:"required"`
	Title string `json:"title" validate:"required"`
	Date  string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// PropertiesOf extracts the point properties of a case feature.
// Numeric ids are rendered without a fractional part.
func PropertiesOf(f *geojson.Feature) PointProperties {
	var id string
	switch v := f.Properties["id"].(type) {
	case nil:
	case string:
		id = v
	default:
		id = fmt.Sprint(v)
	}
	return PointProperties{
		ID:    id,
		Title: f.Properties.MustString("title", ""),
		Date:  f.Properties.MustString("date", ""),
	}
}

// Dataset holds the case feature collection and the transmission cluster feature.
type Dataset struct {
	Cases        *geojson.FeatureCollection
	Transmission *geojson.Feature

	clusters map[ClusterLocation]orb.Point
}

// Load reads both datasets from dir. Files missing from dir (or an empty dir)
// fall back to the embedded defaults.
func Load(dir string) (*Dataset, error) {
	cases, err := readFile(dir, CasesFile)
	if err != nil {
		return nil, err
	}
	transmission, err := readFile(dir, TransmissionFile)
	if err != nil {
		return nil, err
	}
	return Parse(cases, transmission)
}

// Parse decodes and validates raw GeoJSON for both datasets.
func Parse(cases, transmission []byte) (*Dataset, error) {
	fc, err := geojson.UnmarshalFeatureCollection(cases)
	if err != nil {
		return nil, fmt.Errorf("parsing cases: %w", err)
	}
	for i, f := range fc.Features {
		if _, ok := f.Geometry.(orb.Point); !ok {
			return nil, fmt.Errorf("case %d: %w", i, ErrNotPoint)
		}
		if err := validate.Struct(PropertiesOf(f)); err != nil {
			return nil, fmt.Errorf("case %d: %w: %v", i, ErrInvalidProperties, err)
		}
	}

	tf, err := geojson.UnmarshalFeature(transmission)
	if err != nil {
		return nil, fmt.Errorf("parsing transmission cluster: %w", err)
	}
	if tf.Geometry == nil {
		return nil, ErrMissingTransmision
	}

	clusters, err := clusterPoints(tf)
	if err != nil {
		return nil, err
	}

	return &Dataset{Cases: fc, Transmission: tf, clusters: clusters}, nil
}

// Case returns the case feature at positional index i.
func (d *Dataset) Case(i int) (*geojson.Feature, bool) {
	if i < 0 || i >= len(d.Cases.Features) {
		return nil, false
	}
	return d.Cases.Features[i], true
}

// ClusterPoint returns the map position of a transmission cluster site.
func (d *Dataset) ClusterPoint(loc ClusterLocation) (orb.Point, bool) {
	p, ok := d.clusters[loc]
	return p, ok
}

// CasesUntil returns a collection of the cases dated on or before end.
// Undated cases are always included. Features are shared, not copied.
func (d *Dataset) CasesUntil(end time.Time) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	cutoff := end.Format(DateLayout)
	for _, f := range d.Cases.Features {
		date := PropertiesOf(f).Date
		// DateLayout sorts lexically.
		if date == "" || date <= cutoff {
			out.Append(f)
		}
	}
	return out
}

// clusterPoints pairs properties.locations with the MultiPoint coordinates.
func clusterPoints(f *geojson.Feature) (map[ClusterLocation]orb.Point, error) {
	out := map[ClusterLocation]orb.Point{}
	raw, ok := f.Properties["locations"].([]any)
	if !ok {
		return out, nil
	}
	mp, ok := f.Geometry.(orb.MultiPoint)
	if !ok || len(mp) != len(raw) {
		return nil, ErrLocationsMismatch
	}
	for i, v := range raw {
		name, _ := v.(string)
		loc, err := ParseClusterLocation(name)
		if err != nil {
			return nil, fmt.Errorf("transmission location %d: %w", i, err)
		}
		out[loc] = mp[i]
	}
	return out, nil
}

func readFile(dir, name string) ([]byte, error) {
	if dir != "" {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			return data, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
	}
	return embedded.ReadFile("data/" + name)
}
