// Package api defines the Huma REST routes and handlers.
package api

import (
	"context"
	"errors"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-covid/internal/control"
	"github.com/joeblew999/plat-covid/internal/daterange"
	"github.com/joeblew999/plat-covid/internal/dataset"
	"github.com/joeblew999/plat-covid/internal/humastar"
	"github.com/joeblew999/plat-covid/internal/service"
	"github.com/joeblew999/plat-covid/internal/store"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	Sessions *service.SessionService
	Source   *service.SourceService
}

// Types

type SessionInput struct {
	Session string `cookie:"covid_session" doc:"Session ID issued by the dashboard page"`
}

type CaseIndexInput struct {
	Index int `path:"index" minimum:"0" doc:"Positional index of the case" example:"0"`
}

type PageInput struct {
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Items to skip"`
	Limit  int `query:"limit" minimum:"1" maximum:"100" default:"20" doc:"Page size"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

type LocationBody struct {
	Latitude  float64 `json:"latitude" minimum:"-90" maximum:"90" doc:"Map centre latitude" example:"1.3521"`
	Longitude float64 `json:"longitude" minimum:"-180" maximum:"180" doc:"Map centre longitude" example:"103.8198"`
}

// StateBody is the session state without feature data.
type StateBody struct {
	Ready                       bool    `json:"ready" doc:"Whether the map has signalled ready"`
	Latitude                    float64 `json:"latitude"`
	Longitude                   float64 `json:"longitude"`
	Zoom                        float64 `json:"zoom"`
	DisplayTransmissionClusters bool    `json:"displayTransmissionClusters"`
	DisplayCaseClusters         bool    `json:"displayCaseClusters"`
	SelectedCluster             string  `json:"selectedCluster,omitempty" doc:"Selected transmission cluster location"`
	SelectedCaseIndex           int     `json:"selectedCaseIndex" doc:"Selected case index, -1 when none"`
	DaysBeforeEnd               int     `json:"daysBeforeEnd"`
	DateEndRange                string  `json:"dateEndRange" doc:"End of the displayed date range" example:"2021-06-06"`
	Caption                     string  `json:"caption" example:"2020-01-23 to 2021-06-06"`
	Days                        int     `json:"days" doc:"Number of days in the slider range"`
}

// Actions advertises map readiness until it has happened.
func (b StateBody) Actions() []humastar.Action {
	var actions []humastar.Action
	if !b.Ready {
		actions = append(actions, humastar.Action{Rel: "ready", Href: "/api/v1/state/ready", Method: "POST", Title: "Mark map ready"})
	}
	return append(actions, humastar.Action{Rel: "edit", Href: "/api/v1/state/location", Method: "PUT", Title: "Move map"})
}

type StateOutput struct {
	Body StateBody
}

// CaseBody is one case point.
type CaseBody struct {
	Index     int     `json:"index" doc:"Positional index, used as the jump-to select value"`
	ID        string  `json:"id" example:"1"`
	Title     string  `json:"title" example:"Case 1"`
	Date      string  `json:"date,omitempty" example:"2020-01-23"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

var caseActions = []humastar.ActionDef{
	{Rel: "select", Pattern: "/api/v1/cases/%s/select", Method: "POST", Title: "Jump to case"},
}

// Actions implements humastar.Actor.
func (b CaseBody) Actions() []humastar.Action {
	return humastar.ActionsFor(strconv.Itoa(b.Index), caseActions)
}

type CaseOutput struct {
	Body CaseBody
}

type CasesOutput struct {
	Body humastar.PageBody[CaseBody]
}

type ClusterBody struct {
	Location  string  `json:"location" example:"Grand Hyatt Singapore"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterState registers session state routes.
func (h *APIHandler) RegisterState(api huma.API) {
	huma.Get(api, "/api/v1/state", h.GetState, huma.OperationTags("state"))
	huma.Post(api, "/api/v1/state/ready", h.PostReady, huma.OperationTags("state"))
	huma.Put(api, "/api/v1/state/location", h.PutLocation, huma.OperationTags("state"))
}

// RegisterCases registers case listing routes.
func (h *APIHandler) RegisterCases(api huma.API) {
	huma.Get(api, "/api/v1/cases", h.GetCases, huma.OperationTags("cases"))
	huma.Get(api, "/api/v1/cases/{index}", h.GetCase, huma.OperationTags("cases"))
	huma.Post(api, "/api/v1/cases/{index}/select", h.SelectCase, huma.OperationTags("cases"))
}

// RegisterClusters registers transmission cluster routes.
func (h *APIHandler) RegisterClusters(api huma.API) {
	huma.Get(api, "/api/v1/clusters", h.GetClusters, huma.OperationTags("clusters"))
}

// RegisterSources registers source listing routes.
func (h *APIHandler) RegisterSources(api huma.API) {
	huma.Get(api, "/api/v1/sources", h.GetSources, huma.OperationTags("sources"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

func (h *APIHandler) GetState(ctx context.Context, input *SessionInput) (*StateOutput, error) {
	st, err := h.session(ctx, input.Session)
	if err != nil {
		return nil, err
	}
	return &StateOutput{Body: StateOf(st.State())}, nil
}

func (h *APIHandler) PostReady(ctx context.Context, input *SessionInput) (*StateOutput, error) {
	st, err := h.session(ctx, input.Session)
	if err != nil {
		return nil, err
	}
	return &StateOutput{Body: StateOf(st.Dispatch(store.MapReady{}))}, nil
}

func (h *APIHandler) PutLocation(ctx context.Context, input *struct {
	SessionInput
	Body LocationBody
}) (*StateOutput, error) {
	st, err := h.session(ctx, input.Session)
	if err != nil {
		return nil, err
	}
	next := st.Dispatch(store.UpdateCurrentLocation{
		Latitude:  input.Body.Latitude,
		Longitude: input.Body.Longitude,
	})
	return &StateOutput{Body: StateOf(next)}, nil
}

func (h *APIHandler) GetCases(ctx context.Context, input *PageInput) (*CasesOutput, error) {
	cases := CasesOf(h.dataset())
	return &CasesOutput{Body: humastar.Page(cases, input.Offset, input.Limit)}, nil
}

func (h *APIHandler) GetCase(ctx context.Context, input *CaseIndexInput) (*CaseOutput, error) {
	ds := h.dataset()
	if ds == nil {
		return nil, huma.Error503ServiceUnavailable("dataset not available")
	}
	f, ok := ds.Case(input.Index)
	if !ok {
		return nil, huma.Error404NotFound("case not found")
	}
	return &CaseOutput{Body: caseBody(input.Index, f.Geometry, dataset.PropertiesOf(f))}, nil
}

// SelectCase applies the same rules as the case "jump to" select.
func (h *APIHandler) SelectCase(ctx context.Context, input *struct {
	SessionInput
	CaseIndexInput
}) (*StateOutput, error) {
	st, err := h.session(ctx, input.Session)
	if err != nil {
		return nil, err
	}
	err = control.ForStore(st).HandleClusterSelect(control.Case, strconv.Itoa(input.Index))
	switch {
	case errors.Is(err, control.ErrControlDisabled):
		return nil, huma.Error409Conflict("case selection is disabled until the map is ready")
	case errors.Is(err, control.ErrInvalidCaseIndex):
		return nil, huma.Error404NotFound("case not found")
	case err != nil:
		return nil, huma.Error400BadRequest(err.Error())
	}
	return &StateOutput{Body: StateOf(st.State())}, nil
}

func (h *APIHandler) GetClusters(ctx context.Context, input *struct{}) (*struct{ Body []ClusterBody }, error) {
	ds := h.dataset()
	clusters := make([]ClusterBody, 0, len(dataset.ClusterLocations()))
	if ds == nil {
		return &struct{ Body []ClusterBody }{Body: clusters}, nil
	}
	for _, loc := range dataset.ClusterLocations() {
		p, ok := ds.ClusterPoint(loc)
		if !ok {
			continue
		}
		clusters = append(clusters, ClusterBody{Location: loc.String(), Longitude: p.Lon(), Latitude: p.Lat()})
	}
	return &struct{ Body []ClusterBody }{Body: clusters}, nil
}

func (h *APIHandler) GetSources(ctx context.Context, input *struct{}) (*struct{ Body []service.SourceFile }, error) {
	if h.svc == nil || h.svc.Source == nil {
		return &struct{ Body []service.SourceFile }{Body: []service.SourceFile{}}, nil
	}
	sources, err := h.svc.Source.List()
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list sources", err)
	}
	return &struct{ Body []service.SourceFile }{Body: sources}, nil
}

// StateOf projects a session state onto its REST body.
func StateOf(s store.State) StateBody {
	return StateBody{
		Ready:                       s.Map.Ready,
		Latitude:                    s.Map.Latitude,
		Longitude:                   s.Map.Longitude,
		Zoom:                        s.Map.Zoom,
		DisplayTransmissionClusters: s.Control.DisplayTransmissionClusters,
		DisplayCaseClusters:         s.Control.DisplayCaseClusters,
		SelectedCluster:             s.Control.SelectedCluster.String(),
		SelectedCaseIndex:           s.Control.SelectedCaseIndex,
		DaysBeforeEnd:               s.Control.DaysBeforeEnd,
		DateEndRange:                daterange.Format(s.Control.DateEndRange),
		Caption:                     s.Range.Caption(s.Control.DateEndRange),
		Days:                        s.Range.Days,
	}
}

// CasesOf lists every case point in dataset order.
func CasesOf(ds *dataset.Dataset) []CaseBody {
	if ds == nil || ds.Cases == nil {
		return []CaseBody{}
	}
	cases := make([]CaseBody, len(ds.Cases.Features))
	for i, f := range ds.Cases.Features {
		cases[i] = caseBody(i, f.Geometry, dataset.PropertiesOf(f))
	}
	return cases
}

func caseBody(i int, g orb.Geometry, props dataset.PointProperties) CaseBody {
	b := CaseBody{Index: i, ID: props.ID, Title: props.Title, Date: props.Date}
	if p, ok := g.(orb.Point); ok {
		b.Longitude, b.Latitude = p.Lon(), p.Lat()
	}
	return b
}

func (h *APIHandler) dataset() *dataset.Dataset {
	if h.svc == nil || h.svc.Sessions == nil {
		return nil
	}
	return h.svc.Sessions.Dataset()
}

func (h *APIHandler) session(ctx context.Context, id string) (*store.Store, error) {
	if h.svc == nil || h.svc.Sessions == nil {
		return nil, huma.Error503ServiceUnavailable("sessions not available")
	}
	st, err := h.svc.Sessions.Get(ctx, id)
	if errors.Is(err, service.ErrSessionNotFound) {
		return nil, huma.Error404NotFound("session not found, load the dashboard page first")
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load session", err)
	}
	return st, nil
}
