// Package control implements the dashboard control panel: two cluster
// toggle groups with "jump to" selects and a date range slider.
//
// The panel is a pure function of its Props. User events are translated into
// calls on Intents; events that are invalid, or that target a disabled
// control, are dropped and reported as errors.
package control

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-covid/internal/daterange"
	"github.com/joeblew999/plat-covid/internal/dataset"
)

// Cluster selects one of the two toggle groups.
type Cluster string

const (
	Transmission Cluster = "transmission"
	Case         Cluster = "case"
)

var (
	ErrUnknownCluster   = errors.New("unknown cluster type")
	ErrControlDisabled  = errors.New("control is disabled")
	ErrInvalidCaseIndex = errors.New("invalid case index")
	ErrRenderOnly       = errors.New("panel has no intents")
)

// ParseCluster validates a cluster group name.
func ParseCluster(s string) (Cluster, error) {
	switch Cluster(s) {
	case Transmission, Case:
		return Cluster(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCluster, s)
}

// Intents receives the panel's output.
type Intents interface {
	ToggleDisplayTransmissionClusters(display bool)
	ToggleDisplayCaseClusters(display bool)
	SetSelectedCluster(cluster dataset.ClusterLocation)
	SetSelectedCase(feature *geojson.Feature)
	SetDateRange(numberOfDays int)
}

// Props is the slice of state the panel renders from.
type Props struct {
	DisplayTransmissionClusters bool
	DisplayCaseClusters         bool
	Ready                       bool
	ClusterData                 *geojson.FeatureCollection
	DateEndRange                time.Time
	Range                       daterange.Range

	SelectedCluster dataset.ClusterLocation
	SelectedCase    *geojson.Feature

	// Slider is the current slider position; zero means the default (Range.Days).
	Slider int
}

// Panel binds Props to Intents.
type Panel struct {
	props   Props
	intents Intents
}

// New creates a panel. intents may be nil for render-only use; the Handle
// methods then reject every event with ErrRenderOnly.
func New(props Props, intents Intents) *Panel {
	return &Panel{props: props, intents: intents}
}

// HandleCheck forwards a checkbox change.
func (p *Panel) HandleCheck(c Cluster, checked bool) error {
	if p.intents == nil {
		return ErrRenderOnly
	}
	if !p.props.Ready {
		return ErrControlDisabled
	}
	switch c {
	case Transmission:
		p.intents.ToggleDisplayTransmissionClusters(checked)
	case Case:
		p.intents.ToggleDisplayCaseClusters(checked)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCluster, c)
	}
	return nil
}

// HandleClusterSelect forwards a "jump to" select change. Transmission values
// must name a known location; case values are positional indexes.
func (p *Panel) HandleClusterSelect(c Cluster, value string) error {
	if p.intents == nil {
		return ErrRenderOnly
	}
	switch c {
	case Transmission:
		if p.transmissionSelectDisabled() {
			return ErrControlDisabled
		}
		loc, err := dataset.ParseClusterLocation(value)
		if err != nil {
			return err
		}
		p.intents.SetSelectedCluster(loc)
	case Case:
		if !p.props.Ready {
			return ErrControlDisabled
		}
		f, err := p.caseAt(value)
		if err != nil {
			return err
		}
		p.intents.SetSelectedCase(f)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCluster, c)
	}
	return nil
}

// HandleRangeChange forwards a slider move as days before the end of range.
func (p *Panel) HandleRangeChange(value int) error {
	if p.intents == nil {
		return ErrRenderOnly
	}
	if !p.props.Ready {
		return ErrControlDisabled
	}
	days, err := p.props.Range.DaysBeforeEnd(value)
	if err != nil {
		return err
	}
	p.intents.SetDateRange(days)
	return nil
}

// transmissionSelectDisabled is stricter than the case select: it also
// requires the transmission layer to be shown.
func (p *Panel) transmissionSelectDisabled() bool {
	return !p.props.DisplayTransmissionClusters || !p.props.Ready
}

func (p *Panel) caseAt(value string) (*geojson.Feature, error) {
	i, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCaseIndex, value)
	}
	if p.props.ClusterData == nil || i < 0 || i >= len(p.props.ClusterData.Features) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCaseIndex, i)
	}
	return p.props.ClusterData.Features[i], nil
}
