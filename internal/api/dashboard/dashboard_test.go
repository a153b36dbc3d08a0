package dashboard

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-covid/internal/daterange"
	"github.com/joeblew999/plat-covid/internal/dataset"
	"github.com/joeblew999/plat-covid/internal/service"
	"github.com/joeblew999/plat-covid/internal/store"
	"github.com/joeblew999/plat-covid/internal/templates"
)

type fixture struct {
	srv      *httptest.Server
	sessions *service.SessionService
	id       string
	st       *store.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ds, err := dataset.Load("")
	require.NoError(t, err)
	start := time.Date(2020, 1, 23, 0, 0, 0, 0, time.UTC)
	sessions := service.NewSessionService(ds, daterange.New(start, start.AddDate(0, 0, 100)),
		service.NewMemoryRepository(0), service.NewEventBus(), zap.NewNop())
	renderer, err := templates.New("")
	require.NoError(t, err)

	mux := http.NewServeMux()
	api := humago.New(mux, huma.DefaultConfig("test", "1.0.0"))
	NewHandler(sessions, renderer, zap.NewNop()).RegisterRoutes(api)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	id, st, err := sessions.Create(context.Background())
	require.NoError(t, err)
	return &fixture{srv: srv, sessions: sessions, id: id, st: st}
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: service.SessionCookie, Value: f.id})
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func TestControlRendersDisabledPanel(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, http.MethodGet, "/api/v1/dashboard/control", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "datastar-patch-elements")
	assert.Contains(t, body, `id="control"`)
	assert.Contains(t, body, "2020-01-23 to 2020-05-02")
	assert.Contains(t, body, `"rangesliderinput":100`)
	assert.Contains(t, body, `"ready":false`)
}

func TestReadyEnablesPanel(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, http.MethodPost, "/api/v1/dashboard/ready", "{}")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, f.st.State().Map.Ready)
	assert.Contains(t, body, `"ready":true`)
}

func TestToggleIgnoredUntilReady(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodPost, "/api/v1/dashboard/toggle/transmission", `{"transmissionclusters":false}`)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, f.st.State().Control.DisplayTransmissionClusters)
	// the re-render restores the checkbox signal
	assert.Contains(t, body, `"transmissionclusters":true`)

	f.st.Dispatch(store.MapReady{})
	code, _ = f.do(t, http.MethodPost, "/api/v1/dashboard/toggle/transmission", `{"transmissionclusters":false}`)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, f.st.State().Control.DisplayTransmissionClusters)

	code, _ = f.do(t, http.MethodPost, "/api/v1/dashboard/toggle/case", `{"caseclusters":false}`)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, f.st.State().Control.DisplayCaseClusters)
}

func TestSelectJumpsToCluster(t *testing.T) {
	f := newFixture(t)
	f.st.Dispatch(store.MapReady{})

	code, body := f.do(t, http.MethodPost, "/api/v1/dashboard/select/transmission", `{"jumptocluster":"Grand Hyatt Singapore"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, dataset.GrandHyatt, f.st.State().Control.SelectedCluster)
	assert.Contains(t, body, `"target":{"longitude":`)

	// unknown locations fail closed
	code, _ = f.do(t, http.MethodPost, "/api/v1/dashboard/select/transmission", `{"jumptocluster":"Nowhere"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, dataset.GrandHyatt, f.st.State().Control.SelectedCluster)

	code, _ = f.do(t, http.MethodPost, "/api/v1/dashboard/select/case", `{"jumptocase":"2"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, f.st.State().Control.SelectedCaseIndex)
}

func TestRangeSetsDaysBeforeEnd(t *testing.T) {
	f := newFixture(t)
	f.st.Dispatch(store.MapReady{})

	code, body := f.do(t, http.MethodPost, "/api/v1/dashboard/range", `{"rangesliderinput":"90"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 10, f.st.State().Control.DaysBeforeEnd)
	assert.Contains(t, body, "2020-01-23 to 2020-04-22")

	code, _ = f.do(t, http.MethodPost, "/api/v1/dashboard/range", `{"rangesliderinput":0}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 10, f.st.State().Control.DaysBeforeEnd)
}

func TestLocation(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(t, http.MethodPost, "/api/v1/dashboard/location", `{"latitude":1.29,"longitude":103.85}`)
	require.Equal(t, http.StatusOK, code)
	s := f.st.State()
	assert.Equal(t, 1.29, s.Map.Latitude)
	assert.Equal(t, 103.85, s.Map.Longitude)

	code, _ = f.do(t, http.MethodPost, "/api/v1/dashboard/location", `{"latitude":120}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestUnknownSession(t *testing.T) {
	f := newFixture(t)
	f.id = "expired"
	code, _ := f.do(t, http.MethodGet, "/api/v1/dashboard/control", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestJumpTarget(t *testing.T) {
	ds, err := dataset.Load("")
	require.NoError(t, err)
	start := time.Date(2020, 1, 23, 0, 0, 0, 0, time.UTC)
	before := store.Initial(ds, daterange.New(start, start.AddDate(0, 0, 10)))

	assert.Nil(t, jumpTarget(before, before, ds))

	after := store.Reduce(before, store.SetSelectedCluster{Cluster: dataset.LifeChurch})
	want, ok := ds.ClusterPoint(dataset.LifeChurch)
	require.True(t, ok)
	assert.Equal(t, &Point{Longitude: want.Lon(), Latitude: want.Lat()}, jumpTarget(before, after, ds))
	assert.Nil(t, jumpTarget(after, after, ds))

	f, _ := ds.Case(0)
	after = store.Reduce(before, store.SetSelectedCase{Index: 0, Feature: f})
	assert.NotNil(t, jumpTarget(before, after, ds))
}

func TestEventsStreamsDispatches(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.srv.URL+"/api/v1/dashboard/events", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: service.SessionCookie, Value: f.id})
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// dispatches on other sessions are not streamed
	_, other, err := f.sessions.Create(ctx)
	require.NoError(t, err)
	other.Dispatch(store.MapReady{})
	f.st.Dispatch(store.MapReady{})

	var patched, changed bool
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, `id="control"`) {
			patched = true
		}
		if strings.Contains(line, "state-changed") {
			changed = true
			break
		}
	}
	assert.True(t, patched)
	assert.True(t, changed)
}

func (f *fixture) openEvents(t *testing.T, ctx context.Context) *bufio.Scanner {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.srv.URL+"/api/v1/dashboard/events", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: service.SessionCookie, Value: f.id})
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return bufio.NewScanner(resp.Body)
}

func TestEventsFollowRestoredSession(t *testing.T) {
	f := newFixture(t)
	f.st.Dispatch(store.MapReady{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	scanner := f.openEvents(t, ctx)

	// drop every in-memory session; the next intent restores a new store
	assert.Equal(t, 1, f.sessions.Prune(-time.Hour))
	code, _ := f.do(t, http.MethodPost, "/api/v1/dashboard/toggle/case", `{"caseclusters":false}`)
	require.Equal(t, http.StatusOK, code)

	live, err := f.sessions.Get(ctx, f.id)
	require.NoError(t, err)
	require.False(t, live.State().Control.DisplayCaseClusters)

	var signals []string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "signals") {
			signals = append(signals, line)
		}
		if strings.Contains(line, "state-changed") {
			break
		}
	}
	require.NotEmpty(t, signals)
	for _, line := range signals {
		assert.NotContains(t, line, `"caseclusters":true`)
	}
	assert.Contains(t, strings.Join(signals, "\n"), `"caseclusters":false`)
}

func TestEventsKeepSessionAlive(t *testing.T) {
	keepAlive := eventsKeepAlive
	eventsKeepAlive = 10 * time.Millisecond
	t.Cleanup(func() { eventsKeepAlive = keepAlive })

	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	f.openEvents(t, ctx)

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 0, f.sessions.Prune(200*time.Millisecond))
	assert.Equal(t, 1, f.sessions.Len())
}
