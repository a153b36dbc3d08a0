package dashboard

import (
	"errors"
	"math"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-covid/internal/daterange"
	"github.com/joeblew999/plat-covid/internal/dataset"
	"github.com/joeblew999/plat-covid/internal/humastar"
	"github.com/joeblew999/plat-covid/internal/store"
)

var errInvalidLocation = errors.New("latitude and longitude must be finite and within range")

// Point is a map position in signal form.
type Point struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

func pointOf(p orb.Point) *Point {
	return &Point{Longitude: p.Lon(), Latitude: p.Lat()}
}

// MapSignals is the $map signal object read by the map script.
type MapSignals struct {
	Ready            bool    `json:"ready"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	Zoom             float64 `json:"zoom"`
	ShowTransmission bool    `json:"showTransmission"`
	ShowCases        bool    `json:"showCases"`
	DateEnd          string  `json:"dateEnd"`
	// Target is where the map should fly to; nil leaves the viewport alone.
	Target *Point `json:"target"`
}

// MapSignalsOf projects a state onto the map signals.
func MapSignalsOf(s store.State, target *Point) MapSignals {
	return MapSignals{
		Ready:            s.Map.Ready,
		Latitude:         s.Map.Latitude,
		Longitude:        s.Map.Longitude,
		Zoom:             s.Map.Zoom,
		ShowTransmission: s.Control.DisplayTransmissionClusters,
		ShowCases:        s.Control.DisplayCaseClusters,
		DateEnd:          daterange.Format(s.Control.DateEndRange),
		Target:           target,
	}
}

// jumpTarget is the position of a cluster or case that became selected
// between before and after.
func jumpTarget(before, after store.State, ds *dataset.Dataset) *Point {
	if c := after.Control.SelectedCluster; c != "" && c != before.Control.SelectedCluster && ds != nil {
		if p, ok := ds.ClusterPoint(c); ok {
			return pointOf(p)
		}
	}
	if f := after.Control.SelectedCase; f != nil && f != before.Control.SelectedCase {
		if p, ok := f.Geometry.(orb.Point); ok {
			return pointOf(p)
		}
	}
	return nil
}

func locationOf(s humastar.Signals) (lat, lon float64, err error) {
	lat, lon = s.Float("latitude"), s.Float("longitude")
	if !s.Has("latitude") || !s.Has("longitude") ||
		math.IsNaN(lat) || math.IsNaN(lon) ||
		lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, errInvalidLocation
	}
	return lat, lon, nil
}
