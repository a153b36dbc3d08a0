// Package dashboard serves the Datastar SSE endpoints behind the control
// panel. Each intent endpoint dispatches into the caller's session store and
// answers with the re-rendered panel plus the signals the map reads.
package dashboard

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-covid/internal/control"
	"github.com/joeblew999/plat-covid/internal/humastar"
	"github.com/joeblew999/plat-covid/internal/service"
	"github.com/joeblew999/plat-covid/internal/store"
	"github.com/joeblew999/plat-covid/internal/templates"
)

// PanelSelector is the element the control panel fragment replaces.
const PanelSelector = "#control"

// eventsKeepAlive is how often an open event stream marks its session seen.
var eventsKeepAlive = 30 * time.Second

// SessionInput identifies the caller's session.
type SessionInput struct {
	Session string `cookie:"covid_session" doc:"Session ID issued by the dashboard page"`
}

// IntentInput carries Datastar signals for a session.
type IntentInput struct {
	SessionInput
	RawBody []byte
}

// ClusterIntentInput is an IntentInput addressed to one toggle group.
type ClusterIntentInput struct {
	SessionInput
	Cluster string `path:"cluster" enum:"transmission,case" doc:"Toggle group"`
	RawBody []byte
}

func parseSignals(raw []byte) (humastar.Signals, error) {
	in := humastar.SignalsInput{RawBody: raw}
	return in.MustParse()
}

// Handler serves the dashboard SSE endpoints.
type Handler struct {
	humastar.Handler
	sessions *service.SessionService
	logger   *zap.Logger
}

// NewHandler creates a dashboard handler.
func NewHandler(sessions *service.SessionService, renderer *templates.Renderer, logger *zap.Logger) *Handler {
	return &Handler{
		Handler:  humastar.Handler{Renderer: renderer},
		sessions: sessions,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/dashboard/control", h.Control, huma.OperationTags("dashboard"))
	huma.Get(api, "/api/v1/dashboard/events", h.Events, huma.OperationTags("dashboard"))
	huma.Post(api, "/api/v1/dashboard/ready", h.Ready, huma.OperationTags("dashboard"))
	huma.Post(api, "/api/v1/dashboard/location", h.Location, huma.OperationTags("dashboard"))
	huma.Post(api, "/api/v1/dashboard/toggle/{cluster}", h.Toggle, huma.OperationTags("dashboard"))
	huma.Post(api, "/api/v1/dashboard/select/{cluster}", h.Select, huma.OperationTags("dashboard"))
	huma.Post(api, "/api/v1/dashboard/range", h.Range, huma.OperationTags("dashboard"))
}

// Control renders the panel for the current state.
func (h *Handler) Control(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	st, err := h.session(ctx, input.Session)
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		h.send(sse, st.State(), nil)
	}), nil
}

// Ready marks the map as loaded, which enables the panel.
func (h *Handler) Ready(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	st, err := h.session(ctx, input.Session)
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		h.send(sse, st.Dispatch(store.MapReady{}), nil)
	}), nil
}

// Location records the map centre after the user pans.
func (h *Handler) Location(ctx context.Context, input *IntentInput) (*huma.StreamResponse, error) {
	st, err := h.session(ctx, input.Session)
	if err != nil {
		return nil, err
	}
	signals, err := parseSignals(input.RawBody)
	if err != nil {
		return nil, err
	}
	lat, lon, err := locationOf(signals)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}
	return h.Stream(func(sse humastar.SSE) {
		next := st.Dispatch(store.UpdateCurrentLocation{Latitude: lat, Longitude: lon})
		sse.Signals(map[string]any{"map": MapSignalsOf(next, nil)})
	}), nil
}

// Toggle handles a checkbox change.
func (h *Handler) Toggle(ctx context.Context, input *ClusterIntentInput) (*huma.StreamResponse, error) {
	return h.intent(ctx, input, func(p *control.Panel, c control.Cluster, s humastar.Signals) error {
		g, err := p.View().Group(c)
		if err != nil {
			return err
		}
		return p.HandleCheck(c, s.Bool(control.SignalName(g.Toggle.ID)))
	})
}

// Select handles a "jump to" select change.
func (h *Handler) Select(ctx context.Context, input *ClusterIntentInput) (*huma.StreamResponse, error) {
	return h.intent(ctx, input, func(p *control.Panel, c control.Cluster, s humastar.Signals) error {
		g, err := p.View().Group(c)
		if err != nil {
			return err
		}
		return p.HandleClusterSelect(c, s.String(control.SignalName(g.JumpTo.ID)))
	})
}

// Range handles a slider change.
func (h *Handler) Range(ctx context.Context, input *IntentInput) (*huma.StreamResponse, error) {
	in := &ClusterIntentInput{SessionInput: input.SessionInput, RawBody: input.RawBody}
	return h.intent(ctx, in, func(p *control.Panel, _ control.Cluster, s humastar.Signals) error {
		return p.HandleRangeChange(s.Int(control.SignalName(p.View().Slider.ID)))
	})
}

// Events streams panel and map updates for every dispatch on the session,
// including ones made from other tabs or the REST API. The session is
// resolved again for each event, since a pruned session is restored into a
// new store, and kept alive for as long as the stream is open.
func (h *Handler) Events(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	id := input.Session
	if _, err := h.session(ctx, id); err != nil {
		return nil, err
	}
	// Subscribe before the stream opens so no dispatch is missed.
	bus := h.sessions.Bus()
	ch := bus.Subscribe()
	return h.Stream(func(sse humastar.SSE) {
		defer bus.Unsubscribe(ch)

		ticker := time.NewTicker(eventsKeepAlive)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.sessions.Touch(id)
			case ev := <-ch:
				if ev.Session != id {
					continue
				}
				st, err := h.sessions.Get(ctx, id)
				if err != nil {
					h.logger.Warn("Session lost during event stream", zap.String("session", id), zap.Error(err))
					return
				}
				h.send(sse, st.State(), nil)
				sse.DispatchCustomEvent("state-changed", map[string]any{"action": ev.Action})
			}
		}
	}), nil
}

type handleFunc func(p *control.Panel, c control.Cluster, s humastar.Signals) error

// intent runs fn against a panel bound to the session. Rejected events are
// logged and leave the state untouched; the panel is re-rendered either way
// so the client drops its optimistic input.
func (h *Handler) intent(ctx context.Context, input *ClusterIntentInput, fn handleFunc) (*huma.StreamResponse, error) {
	st, err := h.session(ctx, input.Session)
	if err != nil {
		return nil, err
	}
	signals, err := parseSignals(input.RawBody)
	if err != nil {
		return nil, err
	}

	var c control.Cluster
	if input.Cluster != "" {
		if c, err = control.ParseCluster(input.Cluster); err != nil {
			return nil, huma.Error404NotFound(err.Error())
		}
	}

	before := st.State()
	if err := fn(control.ForStore(st), c, signals); err != nil {
		h.logger.Debug("Ignored control event",
			zap.String("cluster", input.Cluster),
			zap.Error(err),
		)
	}
	after := st.State()

	return h.Stream(func(sse humastar.SSE) {
		h.send(sse, after, jumpTarget(before, after, h.sessions.Dataset()))
	}), nil
}

// send patches the panel, the signals its inputs bind to and the map signals.
func (h *Handler) send(sse humastar.SSE, s store.State, target *Point) {
	panel := control.New(control.PropsFrom(s), nil)
	html, err := panel.Render(h.Renderer)
	if err != nil {
		h.logger.Error("Failed to render control panel", zap.Error(err))
		sse.Error("Failed to render control panel")
		return
	}
	sse.Replace(html, PanelSelector)

	signals := panel.View().Signals()
	signals["map"] = MapSignalsOf(s, target)
	sse.Signals(signals)
}

func (h *Handler) session(ctx context.Context, id string) (*store.Store, error) {
	st, err := h.sessions.Get(ctx, id)
	if errors.Is(err, service.ErrSessionNotFound) {
		return nil, huma.Error404NotFound("session not found, reload the page")
	}
	if err != nil {
		h.logger.Error("Failed to load session", zap.Error(err))
		return nil, huma.Error500InternalServerError("failed to load session", err)
	}
	return st, nil
}
