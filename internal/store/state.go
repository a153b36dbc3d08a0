// Package store holds the dashboard state and the reducer that is the only
// path for changing it.
package store

import (
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-covid/internal/daterange"
	"github.com/joeblew999/plat-covid/internal/dataset"
)

// Initial map viewport, centred on Singapore.
const (
	DefaultLatitude  = 1.3550417673789497
	DefaultLongitude = 103.81799604387754
	DefaultZoom      = 9.8
)

// MapState is the map viewport, readiness and loaded feature data.
// ClusterData and TransmissionClusterData are shared and never mutated.
type MapState struct {
	Ready                   bool
	Latitude                float64
	Longitude               float64
	Zoom                    float64
	ClusterData             *geojson.FeatureCollection
	TransmissionClusterData *geojson.Feature
}

// ControlState is the overlay driven by the control panel.
// SelectedCaseIndex is -1 when no case is selected.
type ControlState struct {
	DisplayTransmissionClusters bool
	DisplayCaseClusters         bool
	SelectedCluster             dataset.ClusterLocation
	SelectedCase                *geojson.Feature
	SelectedCaseIndex           int
	DaysBeforeEnd               int
	DateEndRange                time.Time
}

// State is a full session snapshot. Range is fixed for the life of the process.
type State struct {
	Map     MapState
	Control ControlState
	Range   daterange.Range
}

// Initial builds the starting state for a new session.
func Initial(ds *dataset.Dataset, r daterange.Range) State {
	return State{
		Map: MapState{
			Latitude:                DefaultLatitude,
			Longitude:               DefaultLongitude,
			Zoom:                    DefaultZoom,
			ClusterData:             ds.Cases,
			TransmissionClusterData: ds.Transmission,
		},
		Control: ControlState{
			DisplayTransmissionClusters: true,
			DisplayCaseClusters:         true,
			SelectedCaseIndex:           -1,
			DateEndRange:                r.EndDate(0),
		},
		Range: r,
	}
}
