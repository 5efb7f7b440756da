// Package api provides the HTTP API for observing and tending the garden.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/mini-garden/internal/engine"
	"github.com/talgya/mini-garden/internal/events"
	"github.com/talgya/mini-garden/internal/garden"
	"github.com/talgya/mini-garden/internal/seed"
)

const maxSSEConns = 2

// Store is the persisted history the API reads. *persistence.DB
// implements it.
type Store interface {
	RecentEvents(limit int, category string) ([]engine.Event, error)
	LoadStatsHistory(limit int) ([]engine.StatsSample, error)
}

// Server serves the garden over HTTP.
type Server struct {
	Sim         *engine.Simulation
	DB          Store // Optional; history endpoints return 503 without it
	Port        int
	AdminKey    string   // Bearer token for POST endpoints. Empty = POST disabled.
	RelayKey    string   // Bearer token for SSE stream endpoint. Empty = streaming disabled.
	CORSOrigins []string // Extra allowed origins; localhost dev servers are always allowed
	Limiter     *RateLimiter

	// Active SSE connection count.
	sseConns atomic.Int32
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints (GET, read-only; anyone can look at the garden).
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/garden", s.handleGarden)
	mux.HandleFunc("GET /api/v1/cell/{r}/{c}", s.handleCell)
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	mux.HandleFunc("GET /api/v1/stats/history", s.handleStatsHistory)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/plants", s.handlePlants)
	mux.HandleFunc("GET /api/v1/pests/{species}", s.handlePests)
	mux.HandleFunc("GET /api/v1/seed", s.handleSeedExport)

	// SSE streaming endpoint (GET, requires bearer token, relay only).
	mux.HandleFunc("GET /api/v1/stream", s.handleStream)

	// Admin endpoints (POST, require bearer token).
	admin := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc("POST "+pattern, s.adminOnly(RateLimitMiddleware(s.Limiter, h)))
	}
	admin("/api/v1/init", s.handleInit)
	admin("/api/v1/plant", s.handlePlant)
	admin("/api/v1/plant/random", s.handlePlantRandom)
	admin("/api/v1/water", s.handleWater)
	admin("/api/v1/water-all", s.handleWaterAll)
	admin("/api/v1/pest", s.handlePest)
	admin("/api/v1/pests/remove", s.handleRemovePests)
	admin("/api/v1/parasite", s.handleParasite)
	admin("/api/v1/event", s.handleEvent)
	admin("/api/v1/rain", s.handleRain)
	admin("/api/v1/temperature", s.handleTemperature)
	admin("/api/v1/update", s.handleUpdate)
	admin("/api/v1/stats/reset", s.handleResetStats)
	admin("/api/v1/automation", s.handleAutomation)

	return corsMiddleware(s.CORSOrigins, mux)
}

// Run serves the API until ctx is done, then shuts the listener down.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "relay_auth", s.RelayKey != "")

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	slog.Info("HTTP API stopped")
	return nil
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Localhost dev servers are always allowed.
func corsMiddleware(origins []string, next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range origins {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowedOrigins[origin] = true
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerMatches(r *http.Request, key string) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == key
}

// adminOnly wraps a handler to require the admin bearer token.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no GARDENSIM_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !bearerMatches(r, s.AdminKey) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// ── Observation ─────────────────────────────────────────────────────────

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.Sim.Snapshot()
	started := s.Sim.Started()
	c := snap.Counters

	writeJSON(w, map[string]any{
		"name":        "Garden",
		"cycle":       snap.Cycle,
		"game_time":   snap.GameTime,
		"session":     engine.SessionTime(time.Since(started)),
		"started":     humanize.Time(started),
		"running":     snap.Automated,
		"temperature": snap.Temperature,
		"rows":        snap.Rows,
		"cols":        snap.Cols,
		"live":        c.Live,
		"dead":        c.Dead,
		"empty":       c.Empty,
		"infested":    c.Infested,
		"summary": fmt.Sprintf("%d living, %s dead, %s planted, %s watered",
			c.Live, humanize.Comma(int64(c.Dead)), humanize.Comma(int64(c.Planted)), humanize.Comma(int64(c.Watered))),
	})
}

func (s *Server) handleGarden(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Snapshot())
}

func (s *Server) handleCell(w http.ResponseWriter, r *http.Request) {
	row, errR := strconv.Atoi(r.PathValue("r"))
	col, errC := strconv.Atoi(r.PathValue("c"))
	if errR != nil || errC != nil {
		http.Error(w, "row and column must be integers", http.StatusBadRequest)
		return
	}
	cell, ok := s.Sim.Snapshot().Cell(row, col)
	if !ok {
		writeError(w, fmt.Errorf("%w: [%d,%d]", garden.ErrOutOfBounds, row, col))
		return
	}
	writeJSON(w, map[string]any{
		"cell":    cell,
		"thirsty": cell.Thirsty(),
		"pests":   garden.DefaultPests(cell.Species),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.Sim.Snapshot()
	species := make(map[string]int, len(snap.Counters.Species))
	for sp, n := range snap.Counters.Species {
		species[sp.String()] = n
	}
	writeJSON(w, map[string]any{
		"cycle":       snap.Cycle,
		"temperature": snap.Temperature,
		"counters":    snap.Counters,
		"species":     species,
		"spray":       snap.Spray,
		"insulation":  snap.Insulation,
		"next_event":  snap.NextEvent,
	})
}

func (s *Server) handleStatsHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	limit := queryInt(r, "limit", 30, 1000)

	rows, err := s.DB.LoadStatsHistory(limit)
	if err != nil {
		slog.Error("stats history query failed", "error", err)
		// Return empty array instead of error; table may not have data yet.
		writeJSON(w, []engine.StatsSample{})
		return
	}
	if rows == nil {
		rows = []engine.StatsSample{}
	}
	writeJSON(w, rows)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50, 500)
	category := r.URL.Query().Get("category")

	// Persisted history reaches past the in-memory ring.
	if r.URL.Query().Get("source") == "db" {
		if s.DB == nil {
			http.Error(w, "database not available", http.StatusServiceUnavailable)
			return
		}
		evs, err := s.DB.RecentEvents(limit, category)
		if err != nil {
			slog.Error("event history query failed", "error", err)
			http.Error(w, "event history unavailable", http.StatusInternalServerError)
			return
		}
		if evs == nil {
			evs = []engine.Event{}
		}
		writeJSON(w, evs)
		return
	}

	evs := s.Sim.RecentEvents(0)
	if category != "" {
		var filtered []engine.Event
		for _, e := range evs {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		evs = filtered
	}
	start := 0
	if len(evs) > limit {
		start = len(evs) - limit
	}
	out := evs[start:]
	if out == nil {
		out = []engine.Event{}
	}
	writeJSON(w, out)
}

func (s *Server) handlePlants(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Plants())
}

func (s *Server) handlePests(w http.ResponseWriter, r *http.Request) {
	sp, err := garden.ParseSpecies(r.PathValue("species"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"species":           sp,
		"pests":             garden.DefaultPests(sp),
		"water_requirement": garden.WaterRequirement(sp),
	})
}

// handleSeedExport writes the current layout as a seed CSV.
func (s *Server) handleSeedExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="garden_config.csv"`)
	if err := seed.Write(w, s.Sim.Layout()); err != nil {
		slog.Error("seed export failed", "error", err)
	}
}

// handleStream provides an SSE endpoint for real-time journal streaming.
// Requires bearer token auth and limits concurrent connections.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	// Auth check uses the separate relay key, not the admin key.
	if s.RelayKey == "" {
		http.Error(w, "streaming disabled (no relay key)", http.StatusForbidden)
		return
	}
	if !bearerMatches(r, s.RelayKey) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	// Connection limit.
	if s.sseConns.Add(1) > maxSSEConns {
		s.sseConns.Add(-1)
		http.Error(w, "too many SSE connections", http.StatusServiceUnavailable)
		return
	}
	defer s.sseConns.Add(-1)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	subID, ch := s.Sim.Subscribe()
	defer s.Sim.Unsubscribe(subID)

	// Send recent events as catch-up.
	for _, e := range s.Sim.RecentEvents(50) {
		writeSSEEvent(w, e)
	}
	flusher.Flush()

	slog.Info("SSE client connected", "sub_id", subID)

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			writeSSEEvent(w, e)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			slog.Info("SSE client disconnected", "sub_id", subID)
			return
		}
	}
}

// ── Control plane ───────────────────────────────────────────────────────

type cellRequest struct {
	Row *int `json:"row"`
	Col *int `json:"col"`
}

// pos returns the requested cell, or nil when both coordinates are omitted.
func (c cellRequest) pos() (*garden.Pos, error) {
	switch {
	case c.Row == nil && c.Col == nil:
		return nil, nil
	case c.Row == nil || c.Col == nil:
		return nil, errors.New("row and col must be given together")
	}
	return &garden.Pos{Row: *c.Row, Col: *c.Col}, nil
}

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rows    int          `json:"rows"`
		Cols    int          `json:"cols"`
		Entries []seed.Entry `json:"entries"`
		CSV     string       `json:"csv,omitempty"` // Seed file contents, appended to entries
	}
	if !decode(w, r, &req) {
		return
	}
	entries := req.Entries
	var seedErr error
	if req.CSV != "" {
		parsed, err := seed.Load(strings.NewReader(req.CSV))
		entries = append(entries, parsed...)
		seedErr = err
	}

	res, err := s.Sim.Initialize(r.Context(), req.Rows, req.Cols, entries)
	if err != nil {
		writeError(w, err)
		return
	}
	if seedErr != nil {
		res.Skipped = append(res.Skipped, strings.Split(seedErr.Error(), "; ")...)
	}
	writeJSON(w, res)
}

func (s *Server) handlePlant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Row   int    `json:"row"`
		Col   int    `json:"col"`
		Plant string `json:"plant"`
	}
	if !decode(w, r, &req) {
		return
	}
	sp, err := garden.ParseSpecies(req.Plant)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.Sim.Plant(r.Context(), req.Row, req.Col, sp); err != nil {
		writeError(w, err)
		return
	}
	cell, _ := s.Sim.Snapshot().Cell(req.Row, req.Col)
	writeJSON(w, cell)
}

func (s *Server) handlePlantRandom(w http.ResponseWriter, r *http.Request) {
	p, err := s.Sim.PlantRandom(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, p)
}

func (s *Server) handleWater(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Row int `json:"row"`
		Col int `json:"col"`
	}
	if !decode(w, r, &req) {
		return
	}
	ok, err := s.Sim.Water(r.Context(), req.Row, req.Col)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"watered": ok})
}

func (s *Server) handleWaterAll(w http.ResponseWriter, r *http.Request) {
	n, err := s.Sim.WaterAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"watered": n})
}

func (s *Server) handlePest(w http.ResponseWriter, r *http.Request) {
	var req cellRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	target, err := req.pos()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := s.Sim.AddPest(r.Context(), target)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleRemovePests(w http.ResponseWriter, r *http.Request) {
	n, err := s.Sim.RemoveAllPests(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"removed": n})
}

func (s *Server) handleParasite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pest string `json:"pest"`
	}
	if !decode(w, r, &req) {
		return
	}
	n, err := s.Sim.Parasite(r.Context(), req.Pest)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"pest": req.Pest, "infested": n})
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind string `json:"kind,omitempty"` // Empty draws a random event
		Next bool   `json:"next,omitempty"` // Queue for the next automatic event instead
	}
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}

	var kind *events.Kind
	if req.Kind != "" {
		k, err := events.ParseKind(req.Kind)
		if err != nil {
			writeError(w, err)
			return
		}
		kind = &k
	}

	if req.Next {
		if kind == nil {
			http.Error(w, "kind required with next", http.StatusBadRequest)
			return
		}
		if err := s.Sim.ForceNextEvent(r.Context(), *kind); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]any{"next_event": kind.Slug()})
		return
	}

	sum, err := s.Sim.TriggerEvent(r.Context(), kind)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, sum)
}

func (s *Server) handleRain(w http.ResponseWriter, r *http.Request) {
	n, err := s.Sim.Rain(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"watered": n})
}

func (s *Server) handleTemperature(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Temperature *int `json:"temperature"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Temperature == nil {
		http.Error(w, "temperature required", http.StatusBadRequest)
		return
	}
	n, err := s.Sim.SetTemperature(r.Context(), *req.Temperature)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"temperature": *req.Temperature, "affected": n})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	res, err := s.Sim.Update(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleResetStats(w http.ResponseWriter, r *http.Request) {
	if err := s.Sim.ResetStats(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, s.Sim.Snapshot().Counters)
}

func (s *Server) handleAutomation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Running *bool `json:"running"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Running == nil {
		http.Error(w, "running required", http.StatusBadRequest)
		return
	}
	changed, err := s.Sim.SetAutomation(*req.Running)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	slog.Info("automation toggled", "running", *req.Running, "changed", changed)
	writeJSON(w, map[string]any{"running": *req.Running, "changed": changed})
}

// ── Helpers ─────────────────────────────────────────────────────────────

// statusFor maps simulation errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, garden.ErrOutOfBounds),
		errors.Is(err, garden.ErrUnknownSpecies),
		errors.Is(err, engine.ErrUnknownPest),
		errors.Is(err, engine.ErrInvalidSize),
		errors.Is(err, events.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrNoHost), errors.Is(err, engine.ErrNoSoil):
		return http.StatusConflict
	case errors.Is(err, engine.ErrClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// decode reads a JSON body into v, answering 400 itself on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, def, most int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= most {
			return n
		}
	}
	return def
}

// writeSSEEvent writes a single event in SSE format.
func writeSSEEvent(w http.ResponseWriter, e engine.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Category, data)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
