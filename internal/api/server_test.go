package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-garden/internal/engine"
	"github.com/talgya/mini-garden/internal/entropy"
	"github.com/talgya/mini-garden/internal/garden"
	"github.com/talgya/mini-garden/internal/seed"
)

const adminKey = "garden-admin"

type fakeStore struct {
	history []engine.StatsSample
}

func (f *fakeStore) RecentEvents(limit int, category string) ([]engine.Event, error) {
	return []engine.Event{{Tick: 7, Category: category, Description: "from disk"}}, nil
}

func (f *fakeStore) LoadStatsHistory(limit int) ([]engine.StatsSample, error) {
	return f.history, nil
}


func newTestServer(t *testing.T) *Server {
	t.Helper()
	opts := engine.DefaultOptions()
	opts.Rows, opts.Cols = 2, 2
	opts.WaterEvery, opts.InfestOdds, opts.EventEvery = 0, 0, 0
	opts.Logger = engine.DiscardLogger()
	opts.Rand = entropy.NewSeeded(7)
	sim := engine.NewSimulation(opts)
	t.Cleanup(func() { _ = sim.Shutdown(context.Background()) })

	_, err := sim.Initialize(context.Background(), 2, 2, []seed.Entry{
		{Row: 0, Col: 0, Plant: "Carrot"},
		{Row: 1, Col: 1, Plant: "Corn"},
	})
	require.NoError(t, err)
	return &Server{Sim: sim, AdminKey: adminKey, RelayKey: "relay"}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if method == http.MethodPost {
		req.Header.Set("Authorization", "Bearer "+adminKey)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestObservationEndpoints(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeBody[map[string]any](t, rec)
	assert.EqualValues(t, 2, status["live"])
	assert.Equal(t, "Day 1, 6:00 AM", status["game_time"])
	assert.Contains(t, status["summary"], "2 living")

	rec = do(t, h, http.MethodGet, "/api/v1/garden", "")
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decodeBody[engine.Snapshot](t, rec)
	assert.Len(t, snap.Cells, 4)

	rec = do(t, h, http.MethodGet, "/api/v1/cell/1/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"species": "Corn"`)
	assert.Contains(t, rec.Body.String(), `"locust"`)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/v1/cell/5/0", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/v1/cell/a/0", "").Code)

	rec = do(t, h, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody[map[string]any](t, rec)
	assert.Equal(t, map[string]any{"Carrot": float64(1), "Corn": float64(1), "Empty": float64(2)}, stats["species"])

	rec = do(t, h, http.MethodGet, "/api/v1/plants", "")
	require.Equal(t, http.StatusOK, rec.Code)
	plants := decodeBody[engine.PlantsInfo](t, rec)
	assert.Equal(t, []string{"Carrot", "Corn"}, plants.Plants)

	rec = do(t, h, http.MethodGet, "/api/v1/pests/pumpkin", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "squashBug")
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/v1/pests/tomato", "").Code)

	rec = do(t, h, http.MethodGet, "/api/v1/seed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	entries, err := seed.Load(strings.NewReader(rec.Body.String()))
	require.NoError(t, err)
	assert.Equal(t, []seed.Entry{{Row: 0, Col: 0, Plant: "Carrot"}, {Row: 1, Col: 1, Plant: "Corn"}}, entries)
}

func TestAdminAuth(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rain", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	s.AdminKey = ""
	assert.Equal(t, http.StatusForbidden, do(t, s.Handler(), http.MethodPost, "/api/v1/rain", "").Code)

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/api/v1/rain", "").Code)
}

func TestControlEndpoints(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/plant", `{"row":0,"col":1,"plant":"sunflower"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"species": "Sunflower"`)

	rec = do(t, h, http.MethodPost, "/api/v1/water", `{"row":0,"col":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"watered": true}, decodeBody[map[string]any](t, rec))

	rec = do(t, h, http.MethodPost, "/api/v1/water-all", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, decodeBody[map[string]any](t, rec)["watered"])

	rec = do(t, h, http.MethodPost, "/api/v1/pest", `{"row":1,"col":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	pest := decodeBody[engine.PestResult](t, rec)
	assert.Equal(t, "locust", pest.Kind)

	rec = do(t, h, http.MethodPost, "/api/v1/parasite", `{"pest":"aphid"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decodeBody[map[string]any](t, rec)["infested"], "carrot and sunflower")

	rec = do(t, h, http.MethodPost, "/api/v1/pests/remove", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, decodeBody[map[string]any](t, rec)["removed"])

	rec = do(t, h, http.MethodPost, "/api/v1/temperature", `{"temperature":60}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, decodeBody[map[string]any](t, rec)["affected"])
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/temperature", `{}`).Code)

	rec = do(t, h, http.MethodPost, "/api/v1/event", `{"kind":"rainy day"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Rainy day: 3 plants watered")

	rec = do(t, h, http.MethodPost, "/api/v1/event", `{"kind":"sunny day","next":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sunny_day", s.Sim.Snapshot().NextEvent)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/event", `{"next":true}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/event", `{"kind":"meteor"}`).Code)

	rec = do(t, h, http.MethodPost, "/api/v1/rain", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/update", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/plant/random", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/api/v1/plant/random", "").Code)

	rec = do(t, h, http.MethodPost, "/api/v1/stats/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, s.Sim.Snapshot().Counters.Watered)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	tests := []struct {
		name, path, body string
		want             int
	}{
		{"out of bounds", "/api/v1/water", `{"row":9,"col":0}`, http.StatusBadRequest},
		{"unknown species", "/api/v1/plant", `{"row":0,"col":0,"plant":"tomato"}`, http.StatusBadRequest},
		{"unknown pest", "/api/v1/parasite", `{"pest":"dragon"}`, http.StatusBadRequest},
		{"pest on soil", "/api/v1/pest", `{"row":0,"col":1}`, http.StatusConflict},
		{"half a cell", "/api/v1/pest", `{"row":0}`, http.StatusBadRequest},
		{"bad json", "/api/v1/water", `{`, http.StatusBadRequest},
		{"bad size", "/api/v1/init", `{"rows":0,"cols":3}`, http.StatusBadRequest},
		{"no engine", "/api/v1/automation", `{"running":true}`, http.StatusConflict},
		{"missing plant", "/api/v1/plant", `{"row":0,"col":0}`, http.StatusBadRequest},
		{"blank plant", "/api/v1/plant", `{"row":0,"col":0,"plant":"  "}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	require.NoError(t, s.Sim.Shutdown(context.Background()))
	rec := do(t, h, http.MethodPost, "/api/v1/water", `{"row":0,"col":0}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "simulation closed")
}

func TestPlantWithoutSpeciesKeepsCell(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/plant", `{"row":0,"col":0}`)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "unknown species")

	cell, ok := s.Sim.Snapshot().Cell(0, 0)
	require.True(t, ok)
	assert.Equal(t, garden.Carrot, cell.Species)
	assert.Equal(t, garden.NewPlantHealth, cell.Health)

	rec = do(t, h, http.MethodPost, "/api/v1/plant", `{"row":0,"col":0,"plant":"none"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cell, _ = s.Sim.Snapshot().Cell(0, 0)
	assert.Equal(t, garden.Empty, cell.Species)
}

func TestInitFromCSV(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/init",
		`{"rows":3,"cols":3,"entries":[{"row":2,"col":2,"plant":"Pumpkin"}],"csv":"0,0,Carrot\nbad line\n1,1,Cherry\n"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[engine.InitResult](t, rec)
	assert.Equal(t, 3, res.Planted)
	assert.Len(t, res.Skipped, 1)
	assert.Equal(t, 3, s.Sim.Snapshot().Rows)
}

func TestAutomationEndpoint(t *testing.T) {
	s := newTestServer(t)
	eng := engine.NewEngine(time.Hour)
	s.Sim.Automate(eng)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/automation", `{"running":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"running": true, "changed": true}, decodeBody[map[string]any](t, rec))
	assert.True(t, eng.Running())

	rec = do(t, h, http.MethodPost, "/api/v1/automation", `{"running":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, eng.Running())
	assert.False(t, s.Sim.Snapshot().Automated)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/automation", `{}`).Code)
}

func TestHistoryEndpoints(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/api/v1/stats/history", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/api/v1/events?source=db", "").Code)

	store := &fakeStore{history: []engine.StatsSample{{Cycle: 1200, Live: 4}}}
	s.DB = store
	h = s.Handler()

	rec := do(t, h, http.MethodGet, "/api/v1/stats/history?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.history, decodeBody[[]engine.StatsSample](t, rec))

	rec = do(t, h, http.MethodGet, "/api/v1/events?source=db&category=death", "")
	require.Equal(t, http.StatusOK, rec.Code)
	evs := decodeBody[[]engine.Event](t, rec)
	require.Len(t, evs, 1)
	assert.Equal(t, "death", evs[0].Category)
}

func TestEventsFromMemory(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v1/water", `{"row":0,"col":0}`).Code)
	}

	rec := do(t, h, http.MethodGet, "/api/v1/events?category=water&limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	evs := decodeBody[[]engine.Event](t, rec)
	assert.Len(t, evs, 2)

	rec = do(t, h, http.MethodGet, "/api/v1/events?category=nothing", "")
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestRateLimitedAdmin(t *testing.T) {
	s := newTestServer(t)
	s.Limiter = NewRateLimiter(2, time.Hour)
	h := s.Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v1/rain", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v1/rain", "").Code)
	rec := do(t, h, http.MethodPost, "/api/v1/rain", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/status", "").Code, "reads are not limited")
}

func TestCORS(t *testing.T) {
	s := newTestServer(t)
	s.CORSOrigins = []string{"https://garden.example"}
	h := s.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/water", nil)
	req.Header.Set("Origin", "https://garden.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://garden.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStream(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/stream")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer relay")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, "event: garden", lines.Text(), "catch-up starts with the initialize record")

	_, err = s.Sim.Water(context.Background(), 0, 0)
	require.NoError(t, err)
	found := false
	for lines.Scan() {
		if lines.Text() == "event: water" {
			found = true
			break
		}
	}
	assert.True(t, found)
}

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("1.2.3.4"))
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("5.6.7.8"))
	assert.Equal(t, 61, rl.RetryAfter("1.2.3.4"))

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("1.2.3.4"))

	now = now.Add(5 * time.Minute)
	rl.Allow("9.9.9.9")
	rl.mu.Lock()
	assert.Len(t, rl.buckets, 1, "stale buckets are swept")
	rl.mu.Unlock()
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", clientIP(req))
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(req))
}
