package store

import (
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-covid/internal/dataset"
)

// Action is an intent applied by Reduce. The set handled by Reduce is closed;
// any other implementation is ignored.
type Action interface {
	ActionType() string
}

// MapReady marks the map renderer as initialised.
type MapReady struct{}

// UpdateCurrentLocation moves the viewport centre.
type UpdateCurrentLocation struct {
	Latitude  float64
	Longitude float64
}

// ToggleDisplayTransmissionClusters shows or hides the transmission layer.
type ToggleDisplayTransmissionClusters struct {
	Display bool
}

// ToggleDisplayCaseClusters shows or hides the case layer.
type ToggleDisplayCaseClusters struct {
	Display bool
}

// SetSelectedCluster jumps to a transmission cluster site.
type SetSelectedCluster struct {
	Cluster dataset.ClusterLocation
}

// SetSelectedCase jumps to a case. Index is the position in the case collection.
type SetSelectedCase struct {
	Index   int
	Feature *geojson.Feature
}

// SetDateRange ends the shown range NumberOfDays before the latest day.
type SetDateRange struct {
	NumberOfDays int
}

func (MapReady) ActionType() string                          { return "MAP_READY" }
func (UpdateCurrentLocation) ActionType() string             { return "UPDATE_CURRENT_LOCATION" }
func (ToggleDisplayTransmissionClusters) ActionType() string { return "TOGGLE_DISPLAY_TRANSMISSION_CLUSTERS" }
func (ToggleDisplayCaseClusters) ActionType() string         { return "TOGGLE_DISPLAY_CASE_CLUSTERS" }
func (SetSelectedCluster) ActionType() string                { return "SET_SELECTED_CLUSTER" }
func (SetSelectedCase) ActionType() string                   { return "SET_SELECTED_CASE" }
func (SetDateRange) ActionType() string                      { return "SET_DATE_RANGE" }
