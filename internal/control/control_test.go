package control

import (
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-covid/internal/daterange"
	"github.com/joeblew999/plat-covid/internal/dataset"
	"github.com/joeblew999/plat-covid/internal/store"
	"github.com/joeblew999/plat-covid/internal/templates"
)

type recorder struct {
	transmission []bool
	cases        []bool
	clusters     []dataset.ClusterLocation
	selected     []*geojson.Feature
	ranges       []int
}

func (r *recorder) ToggleDisplayTransmissionClusters(v bool) { r.transmission = append(r.transmission, v) }
func (r *recorder) ToggleDisplayCaseClusters(v bool)         { r.cases = append(r.cases, v) }
func (r *recorder) SetSelectedCluster(c dataset.ClusterLocation) {
	r.clusters = append(r.clusters, c)
}
func (r *recorder) SetSelectedCase(f *geojson.Feature) { r.selected = append(r.selected, f) }
func (r *recorder) SetDateRange(n int)                 { r.ranges = append(r.ranges, n) }

func (r *recorder) calls() int {
	return len(r.transmission) + len(r.cases) + len(r.clusters) + len(r.selected) + len(r.ranges)
}

func features(titles ...string) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, title := range titles {
		f := geojson.NewFeature(orb.Point{103.8, 1.3})
		f.Properties["id"] = i + 1
		f.Properties["title"] = title
		fc.Append(f)
	}
	return fc
}

func testProps(ready bool) Props {
	start := time.Date(2020, 1, 23, 0, 0, 0, 0, time.UTC)
	r := daterange.New(start, start.AddDate(0, 0, 500))
	return Props{
		DisplayTransmissionClusters: true,
		DisplayCaseClusters:         true,
		Ready:                       ready,
		ClusterData:                 features("Case 1", "Case 2", "Case 3"),
		DateEndRange:                r.EndDate(0),
		Range:                       r,
	}
}

func TestDisabledWhenNotReady(t *testing.T) {
	v := New(testProps(false), nil).View()

	assert.True(t, v.Transmission.Toggle.Disabled)
	assert.True(t, v.Case.Toggle.Disabled)
	assert.True(t, v.Transmission.JumpTo.Disabled)
	assert.True(t, v.Case.JumpTo.Disabled)
	assert.True(t, v.Slider.Disabled)
}

func TestAsymmetricSelectDisablement(t *testing.T) {
	props := testProps(true)
	props.DisplayTransmissionClusters = false
	props.DisplayCaseClusters = false
	v := New(props, nil).View()

	assert.True(t, v.Transmission.JumpTo.Disabled, "transmission select needs the layer shown")
	assert.False(t, v.Case.JumpTo.Disabled, "case select only needs ready")
	assert.False(t, v.Transmission.Toggle.Disabled)
	assert.False(t, v.Case.Toggle.Disabled)
	assert.False(t, v.Slider.Disabled)
}

func TestViewOptions(t *testing.T) {
	props := testProps(true)
	props.SelectedCase = props.ClusterData.Features[1]
	props.SelectedCluster = dataset.GrandHyatt
	v := New(props, nil).View()

	require.Len(t, v.Transmission.JumpTo.Options, 6)
	assert.Equal(t, string(dataset.GraceAssemblyTanglin), v.Transmission.JumpTo.Options[0].Value)
	assert.Equal(t, string(dataset.GrandHyatt), v.Transmission.JumpTo.Selected)

	require.Len(t, v.Case.JumpTo.Options, 3)
	assert.Equal(t, Option{Value: "0", Label: "Case 1"}, v.Case.JumpTo.Options[0])
	assert.Equal(t, "1", v.Case.JumpTo.Selected)
	assert.True(t, v.Case.JumpTo.Options[1].Selected)

	assert.Equal(t, 1, v.Slider.Min)
	assert.Equal(t, 500, v.Slider.Max)
	assert.Equal(t, 500, v.Slider.Value)
	assert.Equal(t, "2020-01-23 to 2021-06-06", v.Caption)
}

func TestHandleCheck(t *testing.T) {
	rec := &recorder{}
	p := New(testProps(true), rec)

	require.NoError(t, p.HandleCheck(Transmission, false))
	require.NoError(t, p.HandleCheck(Case, true))
	assert.Equal(t, []bool{false}, rec.transmission)
	assert.Equal(t, []bool{true}, rec.cases)

	assert.ErrorIs(t, p.HandleCheck("other", true), ErrUnknownCluster)

	notReady := New(testProps(false), rec)
	assert.ErrorIs(t, notReady.HandleCheck(Case, false), ErrControlDisabled)
	assert.Equal(t, 2, rec.calls())
}

func TestRenderOnlyPanelRejectsEvents(t *testing.T) {
	p := New(testProps(true), nil)

	assert.ErrorIs(t, p.HandleCheck(Case, false), ErrRenderOnly)
	assert.ErrorIs(t, p.HandleClusterSelect(Transmission, string(dataset.GrandHyatt)), ErrRenderOnly)
	assert.ErrorIs(t, p.HandleClusterSelect(Case, "0"), ErrRenderOnly)
	assert.ErrorIs(t, p.HandleRangeChange(10), ErrRenderOnly)
	assert.Len(t, p.View().Case.JumpTo.Options, 3)
}

func TestHandleClusterSelectTransmission(t *testing.T) {
	rec := &recorder{}
	p := New(testProps(true), rec)

	require.NoError(t, p.HandleClusterSelect(Transmission, "Yong Thai Hang"))
	assert.Equal(t, []dataset.ClusterLocation{dataset.YongThaiHang}, rec.clusters)

	err := p.HandleClusterSelect(Transmission, "Marina Bay Sands")
	assert.ErrorIs(t, err, dataset.ErrUnknownClusterLocation)

	hidden := testProps(true)
	hidden.DisplayTransmissionClusters = false
	err = New(hidden, rec).HandleClusterSelect(Transmission, "Yong Thai Hang")
	assert.ErrorIs(t, err, ErrControlDisabled)

	assert.Equal(t, 1, rec.calls())
}

func TestHandleClusterSelectCase(t *testing.T) {
	rec := &recorder{}
	props := testProps(true)
	props.DisplayCaseClusters = false
	p := New(props, rec)

	for k := range props.ClusterData.Features {
		require.NoError(t, p.HandleClusterSelect(Case, string(rune('0'+k))))
	}
	require.Len(t, rec.selected, 3)
	for k, f := range rec.selected {
		assert.Same(t, props.ClusterData.Features[k], f)
	}

	for _, bad := range []string{"3", "-1", "", "one"} {
		assert.ErrorIs(t, p.HandleClusterSelect(Case, bad), ErrInvalidCaseIndex, bad)
	}
	assert.Len(t, rec.selected, 3)
}

func TestHandleRangeChange(t *testing.T) {
	rec := &recorder{}
	p := New(testProps(true), rec)

	require.NoError(t, p.HandleRangeChange(500))
	require.NoError(t, p.HandleRangeChange(1))
	assert.Equal(t, []int{0, 499}, rec.ranges)

	assert.ErrorIs(t, p.HandleRangeChange(0), daterange.ErrSliderOutOfRange)
	assert.ErrorIs(t, p.HandleRangeChange(501), daterange.ErrSliderOutOfRange)
	assert.ErrorIs(t, New(testProps(false), rec).HandleRangeChange(10), ErrControlDisabled)
	assert.Len(t, rec.ranges, 2)
}

func TestRenderEmptyCases(t *testing.T) {
	r, err := templates.New("")
	require.NoError(t, err)

	props := testProps(true)
	props.ClusterData = geojson.NewFeatureCollection()
	html, err := New(props, nil).Render(r)
	require.NoError(t, err)

	start := strings.Index(html, `id="jumptoCase"`)
	require.GreaterOrEqual(t, start, 0)
	end := strings.Index(html[start:], "</select>")
	caseSelect := html[start : start+end]

	assert.Equal(t, 1, strings.Count(caseSelect, "<option"))
	assert.Contains(t, caseSelect, `<option value="" disabled selected>- select a case -</option>`)
}

func TestRenderDisabledAttributes(t *testing.T) {
	r, err := templates.New("")
	require.NoError(t, err)

	html, err := New(testProps(false), nil).Render(r)
	require.NoError(t, err)

	assert.Contains(t, html, `id="control"`)
	assert.Contains(t, html, "data-bind:transmissionclusters")
	assert.Contains(t, html, "data-bind:jumptocase")
	assert.Contains(t, html, "data-bind:rangesliderinput")
	assert.Contains(t, html, `max="500"`)
	assert.Equal(t, 5, strings.Count(html, " disabled>"))
	assert.Contains(t, html, "2020-01-23 to 2021-06-06")
}

func TestStoreIntents(t *testing.T) {
	ds, err := dataset.Load("")
	require.NoError(t, err)
	props := testProps(true)
	st := store.New(store.Initial(ds, props.Range), nil)
	st.Dispatch(store.MapReady{})

	p := ForStore(st)
	require.NoError(t, p.HandleClusterSelect(Case, "2"))
	require.NoError(t, p.HandleRangeChange(490))
	require.NoError(t, p.HandleCheck(Transmission, false))

	s := st.State()
	assert.Equal(t, 2, s.Control.SelectedCaseIndex)
	assert.Same(t, ds.Cases.Features[2], s.Control.SelectedCase)
	assert.Equal(t, 10, s.Control.DaysBeforeEnd)
	assert.False(t, s.Control.DisplayTransmissionClusters)

	props = PropsFrom(s)
	assert.Equal(t, 490, props.Slider)
	assert.True(t, props.Ready)
}

func TestViewSignalsAndGroups(t *testing.T) {
	props := testProps(true)
	props.DisplayCaseClusters = false
	props.SelectedCluster = dataset.YongThaiHang
	v := New(props, nil).View()

	assert.Equal(t, map[string]any{
		"transmissionclusters": true,
		"jumptocluster":        string(dataset.YongThaiHang),
		"caseclusters":         false,
		"jumptocase":           "",
		"rangesliderinput":     500,
	}, v.Signals())

	g, err := v.Group(Case)
	require.NoError(t, err)
	assert.Equal(t, "caseClusters", g.Toggle.ID)
	_, err = v.Group("bogus")
	assert.ErrorIs(t, err, ErrUnknownCluster)
}
