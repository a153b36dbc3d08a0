package control

import (
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-covid/internal/dataset"
	"github.com/joeblew999/plat-covid/internal/store"
)

// Dispatcher applies store actions. *store.Store implements it.
type Dispatcher interface {
	Dispatch(a store.Action) store.State
}

// StoreIntents turns panel intents into store actions.
type StoreIntents struct {
	Dispatcher Dispatcher
	Cases      *geojson.FeatureCollection
}

func (i StoreIntents) ToggleDisplayTransmissionClusters(display bool) {
	i.Dispatcher.Dispatch(store.ToggleDisplayTransmissionClusters{Display: display})
}

func (i StoreIntents) ToggleDisplayCaseClusters(display bool) {
	i.Dispatcher.Dispatch(store.ToggleDisplayCaseClusters{Display: display})
}

func (i StoreIntents) SetSelectedCluster(cluster dataset.ClusterLocation) {
	i.Dispatcher.Dispatch(store.SetSelectedCluster{Cluster: cluster})
}

func (i StoreIntents) SetSelectedCase(feature *geojson.Feature) {
	index := -1
	if i.Cases != nil {
		for k, f := range i.Cases.Features {
			if f == feature {
				index = k
				break
			}
		}
	}
	i.Dispatcher.Dispatch(store.SetSelectedCase{Index: index, Feature: feature})
}

func (i StoreIntents) SetDateRange(numberOfDays int) {
	i.Dispatcher.Dispatch(store.SetDateRange{NumberOfDays: numberOfDays})
}

// PropsFrom projects a state snapshot onto panel props.
func PropsFrom(s store.State) Props {
	return Props{
		DisplayTransmissionClusters: s.Control.DisplayTransmissionClusters,
		DisplayCaseClusters:         s.Control.DisplayCaseClusters,
		Ready:                       s.Map.Ready,
		ClusterData:                 s.Map.ClusterData,
		DateEndRange:                s.Control.DateEndRange,
		Range:                       s.Range,
		Slider:                      s.Range.SliderValue(s.Control.DaysBeforeEnd),
		SelectedCluster:             s.Control.SelectedCluster,
		SelectedCase:                s.Control.SelectedCase,
	}
}

// ForStore builds a panel wired to st.
func ForStore(st *store.Store) *Panel {
	s := st.State()
	return New(PropsFrom(s), StoreIntents{Dispatcher: st, Cases: s.Map.ClusterData})
}
