package control

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joeblew999/plat-covid/internal/dataset"
	"github.com/joeblew999/plat-covid/internal/templates"
)

// Checkbox is a rendered toggle.
type Checkbox struct {
	ID       string
	Label    string
	Checked  bool
	Disabled bool
}

// Option is a selectable "jump to" entry.
type Option struct {
	Value    string
	Label    string
	Selected bool
	Disabled bool
}

// Select is a rendered "jump to" dropdown. The placeholder option is always
// first, disabled and selected by default.
type Select struct {
	ID          string
	Cluster     Cluster
	Placeholder string
	Disabled    bool
	Options     []Option
	// Selected is the value of the selected option, empty for the placeholder.
	Selected string
}

// Slider is the rendered date range input.
type Slider struct {
	ID       string
	Min      int
	Max      int
	Step     int
	Value    int
	Disabled bool
}

// Group is one toggle with its dependent select.
type Group struct {
	Cluster Cluster
	Toggle  Checkbox
	JumpTo  Select
}

// View is everything the control panel template needs.
type View struct {
	Transmission Group
	Case         Group
	Slider       Slider
	Caption      string
}

// View computes the rendered form of the panel.
func (p *Panel) View() View {
	props := p.props

	selectedCluster := string(props.SelectedCluster)
	transmission := make([]Option, 0, len(dataset.ClusterLocations()))
	for _, loc := range dataset.ClusterLocations() {
		transmission = append(transmission, Option{
			Value:    string(loc),
			Label:    string(loc),
			Selected: string(loc) == selectedCluster,
		})
	}

	var selectedCase string
	var cases []Option
	if props.ClusterData != nil {
		cases = make([]Option, 0, len(props.ClusterData.Features))
		for i, f := range props.ClusterData.Features {
			value := strconv.Itoa(i)
			if f == props.SelectedCase {
				selectedCase = value
			}
			cases = append(cases, Option{
				Value:    value,
				Label:    dataset.PropertiesOf(f).Title,
				Selected: f == props.SelectedCase,
			})
		}
	}

	slider := props.Slider
	if slider < 1 || slider > props.Range.Days {
		slider = props.Range.Days
	}

	return View{
		Transmission: Group{
			Cluster: Transmission,
			Toggle: Checkbox{
				ID:       "transmissionClusters",
				Label:    "Transmission Clusters",
				Checked:  props.DisplayTransmissionClusters,
				Disabled: !props.Ready,
			},
			JumpTo: Select{
				ID:          "jumptoCluster",
				Cluster:     Transmission,
				Placeholder: "- select a location -",
				Disabled:    p.transmissionSelectDisabled(),
				Options:     transmission,
				Selected:    selectedCluster,
			},
		},
		Case: Group{
			Cluster: Case,
			Toggle: Checkbox{
				ID:       "caseClusters",
				Label:    "Cases Clusters",
				Checked:  props.DisplayCaseClusters,
				Disabled: !props.Ready,
			},
			JumpTo: Select{
				ID:          "jumptoCase",
				Cluster:     Case,
				Placeholder: "- select a case -",
				Disabled:    !props.Ready,
				Options:     cases,
				Selected:    selectedCase,
			},
		},
		Slider: Slider{
			ID:       "rangeSliderInput",
			Min:      1,
			Max:      props.Range.Days,
			Step:     1,
			Value:    slider,
			Disabled: !props.Ready,
		},
		Caption: props.Range.Caption(props.DateEndRange),
	}
}

// SignalName is the Datastar signal bound to an element id.
// data-bind lowercases signal names.
func SignalName(id string) string {
	return strings.ToLower(id)
}

// Render renders the panel with the "control-panel" template.
func (p *Panel) Render(r *templates.Renderer) (string, error) {
	return r.Render("control-panel", p.View())
}

// Group returns the toggle group for c.
func (v View) Group(c Cluster) (Group, error) {
	switch c {
	case Transmission:
		return v.Transmission, nil
	case Case:
		return v.Case, nil
	}
	return Group{}, fmt.Errorf("%w: %q", ErrUnknownCluster, c)
}

// Signals returns the values of the signals the panel's inputs bind to, so
// a re-render and the client's signal store agree.
func (v View) Signals() map[string]any {
	return map[string]any{
		SignalName(v.Transmission.Toggle.ID): v.Transmission.Toggle.Checked,
		SignalName(v.Transmission.JumpTo.ID): v.Transmission.JumpTo.Selected,
		SignalName(v.Case.Toggle.ID):         v.Case.Toggle.Checked,
		SignalName(v.Case.JumpTo.ID):         v.Case.JumpTo.Selected,
		SignalName(v.Slider.ID):              v.Slider.Value,
	}
}
