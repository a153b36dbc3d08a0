// Package service contains the session, persistence and data file services
// behind the dashboard.
package service

// SourceFile represents a dataset file in the data directory.
type SourceFile struct {
	Name     string `json:"name" doc:"File name" example:"covid-sg.json"`
	Size     string `json:"size" doc:"Human-readable file size" example:"1.2 KB"`
	FileType string `json:"fileType" doc:"File type" example:"GeoJSON"`
	Embedded bool   `json:"embedded" doc:"Whether the built-in copy is served instead of a file on disk"`
}

// Overlay is the scalar part of a session's state. Feature data is never
// stored; it is shared from the loaded dataset.
type Overlay struct {
	Ready                       bool    `json:"ready"`
	Latitude                    float64 `json:"latitude"`
	Longitude                   float64 `json:"longitude"`
	DisplayTransmissionClusters bool    `json:"displayTransmissionClusters"`
	DisplayCaseClusters         bool    `json:"displayCaseClusters"`
	SelectedCluster             string  `json:"selectedCluster,omitempty"`
	SelectedCaseIndex           int     `json:"selectedCaseIndex"`
	DaysBeforeEnd               int     `json:"daysBeforeEnd"`
}
