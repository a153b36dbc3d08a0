package service

import (
	"github.com/joeblew999/plat-covid/internal/dataset"
	"github.com/joeblew999/plat-covid/internal/store"
)

// OverlayOf captures the persisted part of s.
func OverlayOf(s store.State) Overlay {
	return Overlay{
		Ready:                       s.Map.Ready,
		Latitude:                    s.Map.Latitude,
		Longitude:                   s.Map.Longitude,
		DisplayTransmissionClusters: s.Control.DisplayTransmissionClusters,
		DisplayCaseClusters:         s.Control.DisplayCaseClusters,
		SelectedCluster:             string(s.Control.SelectedCluster),
		SelectedCaseIndex:           s.Control.SelectedCaseIndex,
		DaysBeforeEnd:               s.Control.DaysBeforeEnd,
	}
}

// Restore replays o onto initial through the reducer, so a restored session
// goes through the same mutation path as a live one. Values that no longer
// match the dataset or range are dropped.
func (o Overlay) Restore(initial store.State) store.State {
	s := initial
	if o.Ready {
		s = store.Reduce(s, store.MapReady{})
	}
	s = store.Reduce(s, store.UpdateCurrentLocation{Latitude: o.Latitude, Longitude: o.Longitude})
	s = store.Reduce(s, store.ToggleDisplayTransmissionClusters{Display: o.DisplayTransmissionClusters})
	s = store.Reduce(s, store.ToggleDisplayCaseClusters{Display: o.DisplayCaseClusters})

	if loc, err := dataset.ParseClusterLocation(o.SelectedCluster); err == nil {
		s = store.Reduce(s, store.SetSelectedCluster{Cluster: loc})
	}
	if fc := s.Map.ClusterData; fc != nil && o.SelectedCaseIndex >= 0 && o.SelectedCaseIndex < len(fc.Features) {
		s = store.Reduce(s, store.SetSelectedCase{Index: o.SelectedCaseIndex, Feature: fc.Features[o.SelectedCaseIndex]})
	}
	if o.DaysBeforeEnd > 0 && o.DaysBeforeEnd < s.Range.Days {
		s = store.Reduce(s, store.SetDateRange{NumberOfDays: o.DaysBeforeEnd})
	}
	return s
}
