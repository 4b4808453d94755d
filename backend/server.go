// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/c2FmZQ/storage"
	"github.com/google/uuid"

	"github.com/ttbt-io/crickeeper/backend/scoring"
)

const (
	retryAfterLoad   = "2"
	retryAfterSave   = "10"
	retryAfterAction = "5"

	maxBodyBytes = 1048576
)

// generateETag generates a SHA256 hash of the data to be used as an ETag.
func generateETag(data []byte) string {
	return fmt.Sprintf("\"%x\"", sha256.Sum256(data))
}

func hubBusyResponse(w http.ResponseWriter, retryAfter string) {
	w.Header().Set("Retry-After", retryAfter)
	http.Error(w, "Too Many Requests: Server is busy", http.StatusTooManyRequests)
}

func parsePagination(r *http.Request) (limit, offset int, sortBy, order, query string) {
	limit = 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			limit = min(v, 100)
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			offset = v
		}
	}
	sortBy = r.URL.Query().Get("sortBy")
	order = r.URL.Query().Get("order")
	query = r.URL.Query().Get("q")
	return
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	return items[offset:min(offset+limit, len(items))]
}

// Options configures the server. Stores and services left nil are created
// from DataDir and Storage.
type Options struct {
	Addr           string
	DataDir        string
	Debug          bool
	Cert           *tls.Certificate
	Listener       net.Listener
	Storage        *storage.Storage
	Tournament     *TournamentConfig
	Metrics        *Metrics
	HubIdleTimeout time.Duration
}

// Server is a running crickeeper server.
type Server struct {
	httpServer *http.Server
	hubs       *HubManager
}

// Shutdown stops the HTTP listener, then the match hubs, and flushes any
// unsaved match state.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []string
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, err.Error())
	}
	s.hubs.Stop()
	if err := s.hubs.matches.FlushAll(); err != nil {
		errs = append(errs, err.Error())
	}
	if s.hubs.registry != nil {
		s.hubs.registry.StopGC()
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// StartServer starts serving in the background.
func StartServer(opts Options) (*Server, error) {
	hubs, handler, err := NewServerHandler(opts)
	if err != nil {
		return nil, err
	}
	httpServer := &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if opts.Cert != nil {
		httpServer.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{*opts.Cert},
			MinVersion:   tls.VersionTLS12,
		}
	}
	go func() {
		var err error
		switch {
		case opts.Listener != nil:
			err = httpServer.Serve(opts.Listener)
		case opts.Cert != nil:
			log.Printf("Starting HTTPS server on %s", opts.Addr)
			err = httpServer.ListenAndServeTLS("", "")
		default:
			log.Printf("Starting HTTP server on %s", opts.Addr)
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()
	return &Server{httpServer: httpServer, hubs: hubs}, nil
}

type api struct {
	debug      bool
	matches    *MatchStore
	teams      *TeamStore
	registry   *Registry
	standings  *StandingsService
	hubs       *HubManager
	metrics    *Metrics
	tournament *TournamentConfig
}

func (a *api) debugf(format string, args ...any) {
	if a.debug {
		log.Printf("[DEBUG BACKEND] "+format, args...)
	}
}

// NewServerHandler wires the stores, services and routes.
func NewServerHandler(opts Options) (*HubManager, http.Handler, error) {
	if opts.DataDir == "" {
		opts.DataDir = "data"
	}
	s := opts.Storage
	if s == nil {
		s = storage.New(opts.DataDir, nil)
	}
	if opts.Tournament == nil {
		opts.Tournament = DefaultTournamentConfig()
	}
	if err := opts.Tournament.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid tournament config: %w", err)
	}

	ms := NewMatchStore(opts.DataDir, s)
	ms.Debug = opts.Debug
	ts := NewTeamStore(opts.DataDir, s)
	seeded, err := SeedTeams(ts, opts.Tournament)
	if err != nil {
		return nil, nil, fmt.Errorf("seed teams: %w", err)
	}
	if seeded > 0 {
		log.Printf("Seeded %d teams from the tournament config", seeded)
	}

	registry := NewRegistry(ms, ts)
	registry.StartGC()
	standings := NewStandingsService(ms, ts, NewStandingsStore(s), opts.Tournament, opts.Metrics)
	hubs := NewHubManager(HubOptions{
		Matches:     ms,
		Teams:       ts,
		Registry:    registry,
		Standings:   standings,
		Metrics:     opts.Metrics,
		IdleTimeout: opts.HubIdleTimeout,
		Debug:       opts.Debug,
	})
	if seeded > 0 {
		hubs.recomputeStandings()
	}

	a := &api{
		debug:      opts.Debug,
		matches:    ms,
		teams:      ts,
		registry:   registry,
		standings:  standings,
		hubs:       hubs,
		metrics:    opts.Metrics,
		tournament: opts.Tournament,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/matches", a.createMatch)
	mux.HandleFunc("GET /api/matches", a.listMatches)
	mux.HandleFunc("GET /api/matches/{id}", a.getMatch)
	mux.HandleFunc("DELETE /api/matches/{id}", a.deleteMatch)
	mux.HandleFunc("POST /api/matches/{id}/actions", a.postAction)
	mux.HandleFunc("POST /api/matches/{id}/checkpoint", a.checkpointMatch)
	mux.HandleFunc("GET /api/matches/{id}/result", a.getResult)
	mux.HandleFunc("GET /api/teams", a.listTeams)
	mux.HandleFunc("POST /api/teams", a.saveTeam)
	mux.HandleFunc("GET /api/teams/{id}", a.getTeam)
	mux.HandleFunc("DELETE /api/teams/{id}", a.deleteTeam)
	mux.HandleFunc("GET /api/standings", a.getStandings)
	mux.HandleFunc("POST /api/standings/recompute", a.recomputeStandings)
	mux.Handle("GET /metrics", opts.Metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, map[string]any{
			"status":  "ok",
			"version": CurrentAppVersion,
			"hubs":    hubs.LiveHubs(),
		})
	})

	var handler http.Handler = mux
	handler = metricsMiddleware(opts.Metrics, handler)
	handler = cacheControlMiddleware(handler)
	handler = securityMiddleware(handler)
	handler = loggingMiddleware(handler)
	return hubs, handler, nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	writeJSONStatus(w, r, http.StatusOK, v)
}

// writeJSONStatus encodes v. 200 responses to GET carry an ETag and honor
// If-None-Match.
func writeJSONStatus(w http.ResponseWriter, r *http.Request, code int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("Internal Server Error during JSON Marshal: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if code == http.StatusOK && r.Method == http.MethodGet {
		etag := generateETag(data)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Bad Request: Invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

// isBadInput reports errors caused by a value the client supplied.
func isBadInput(err error) bool {
	for _, target := range []error{
		ErrInvalidAction,
		scoring.ErrInvalidWinner,
		scoring.ErrUnknownTeam,
		scoring.ErrInvalidSlot,
		scoring.ErrInvalidOutcome,
		scoring.ErrInvalidConfig,
		scoring.ErrInvalidOvers,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// writeError maps an error to an HTTP status.
func writeError(w http.ResponseWriter, err error, retryAfter string) {
	switch {
	case errors.Is(err, ErrHubBusy):
		hubBusyResponse(w, retryAfter)
	case errors.Is(err, ErrHubStopped):
		http.Error(w, "Service Unavailable: Server is shutting down", http.StatusServiceUnavailable)
	case errors.Is(err, os.ErrNotExist):
		http.Error(w, "Not Found", http.StatusNotFound)
	case isBadInput(err):
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
	case errors.Is(err, scoring.ErrMatchFinalized),
		errors.Is(err, scoring.ErrNotFirstInnings),
		errors.Is(err, scoring.ErrMatchUndecided):
		http.Error(w, "Conflict: "+err.Error(), http.StatusConflict)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Client went away.
	default:
		log.Printf("Internal Server Error: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// pathID returns the validated {id} path value.
func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if !isValidUUID(id) {
		http.Error(w, "Bad Request: Invalid ID", http.StatusBadRequest)
		return "", false
	}
	return id, true
}

// resolveTeam fills the name of a registered team from its ID, or binds a
// name to the registered team of that name. Unregistered names are allowed.
func (a *api) resolveTeam(name, id string) (string, string, error) {
	if id != "" {
		t, err := a.teams.LoadTeam(id)
		if err != nil || t.IsDeleted() {
			return "", "", fmt.Errorf("%w: team %s", scoring.ErrUnknownTeam, id)
		}
		if name != "" && !strings.EqualFold(name, t.Name) {
			return "", "", fmt.Errorf("%w: team %s is %q, not %q", scoring.ErrInvalidConfig, id, t.Name, name)
		}
		return t.Name, t.ID, nil
	}
	name = strings.TrimSpace(name)
	if t, err := a.teams.FindByName(name); err == nil {
		return t.Name, t.ID, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", "", err
	}
	return name, "", nil
}

func (a *api) createMatch(w http.ResponseWriter, r *http.Request) {
	var req CreateMatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if a.registry.MatchExists(req.ID) {
		http.Error(w, "Conflict: Match already exists", http.StatusConflict)
		return
	}
	if _, err := a.matches.LoadMatch(req.ID); err == nil {
		http.Error(w, "Conflict: Match already exists", http.StatusConflict)
		return
	}

	team1, team1ID, err := a.resolveTeam(req.Team1, req.Team1ID)
	if err != nil {
		writeError(w, err, retryAfterSave)
		return
	}
	team2, team2ID, err := a.resolveTeam(req.Team2, req.Team2ID)
	if err != nil {
		writeError(w, err, retryAfterSave)
		return
	}
	cfg := scoring.MatchConfiguration{
		Team1:        team1,
		Team2:        team2,
		MaxOvers:     req.MaxOvers,
		MaxWickets:   req.MaxWickets,
		BattingFirst: req.BattingFirst,
	}
	a.tournament.ApplyDefaults(&cfg)
	sess, err := scoring.NewSession(cfg)
	if err != nil {
		writeError(w, err, retryAfterSave)
		return
	}

	now := time.Now().UnixNano()
	m := &Match{
		ID:            req.ID,
		SchemaVersion: CurrentSchemaVersion,
		Date:          req.Date,
		Event:         req.Event,
		Venue:         req.Venue,
		Team1:         team1,
		Team2:         team2,
		Team1ID:       team1ID,
		Team2ID:       team2ID,
		Config:        sess.Config(),
		Status:        StatusScheduled,
		Checkpoint:    sess.Snapshot(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if m.Date == "" {
		m.Date = time.Now().Format(time.DateOnly)
	}
	if err := a.matches.SaveMatch(m); err != nil {
		log.Printf("Internal Server Error during SaveMatch: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	a.registry.UpdateMatch(m.Metadata())
	log.Printf("Created match %s: %s v %s (%d overs)", m.ID, m.Team1, m.Team2, m.Config.MaxOvers)
	writeJSONStatus(w, r, http.StatusCreated, m)
}

func (a *api) listMatches(w http.ResponseWriter, r *http.Request) {
	limit, offset, sortBy, order, q := parsePagination(r)
	all := a.registry.ListMatches(sortBy, order, q)

	respData := struct {
		Data []MatchMetadata `json:"data"`
		Meta struct {
			Total  int `json:"total"`
			Offset int `json:"offset"`
			Limit  int `json:"limit"`
		} `json:"meta"`
	}{
		Data: paginate(all, limit, offset),
	}
	respData.Meta.Total = len(all)
	respData.Meta.Offset = offset
	respData.Meta.Limit = limit
	writeJSON(w, r, respData)
}

// matchView is a match as returned by the API: the stored record plus the
// live scoring state.
type matchView struct {
	*Match
	CanUndo bool `json:"canUndo"`
	CanRedo bool `json:"canRedo"`
}

func (a *api) getMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	resp, err := a.hubs.Submit(r.Context(), id, HubRequest{Type: ReqTypeLoad})
	if err != nil {
		writeError(w, err, retryAfterLoad)
		return
	}
	writeJSON(w, r, matchView{Match: resp.Match, CanUndo: resp.CanUndo, CanRedo: resp.CanRedo})
}

func (a *api) deleteMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := a.hubs.Submit(r.Context(), id, HubRequest{Type: ReqTypeDelete}); err != nil {
		writeError(w, err, retryAfterSave)
		return
	}
	log.Printf("Deleted match %s", id)
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) postAction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var raw json.RawMessage
	if !decodeBody(w, r, &raw) {
		return
	}
	resp, err := a.hubs.Submit(r.Context(), id, HubRequest{Type: ReqTypeAction, Action: raw})
	if err != nil && resp.Result == nil {
		writeError(w, err, retryAfterAction)
		return
	}
	if err != nil && resp.Result != nil && !resp.Result.Applied {
		writeError(w, err, retryAfterAction)
		return
	}
	if err != nil {
		// Applied in memory, but the durable save failed.
		log.Printf("Action %s on match %s applied with save error: %v", resp.Result.ActionID, id, err)
	}
	res := resp.Result
	code := http.StatusOK
	switch res.Notice {
	case NoticeInningsClosed, NoticeConfirmSecondStart:
		code = http.StatusConflict
	}
	a.debugf("Action %s %s on match %s: applied=%v notice=%q", res.Type, res.ActionID, id, res.Applied, res.Notice)
	writeJSONStatus(w, r, code, res)
}

func (a *api) checkpointMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	resp, err := a.hubs.Submit(r.Context(), id, HubRequest{Type: ReqTypeCheckpoint})
	if err != nil {
		writeError(w, err, retryAfterSave)
		return
	}
	writeJSON(w, r, map[string]any{
		"id":        resp.Match.ID,
		"status":    resp.Match.Status,
		"updatedAt": resp.Match.UpdatedAt,
	})
}

func (a *api) getResult(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	resp, err := a.hubs.Submit(r.Context(), id, HubRequest{Type: ReqTypeLoad})
	if err != nil {
		writeError(w, err, retryAfterLoad)
		return
	}
	m := resp.Match
	if m.Result == nil {
		http.Error(w, "Conflict: Match not finalized", http.StatusConflict)
		return
	}
	summary := ""
	if m.Checkpoint != nil {
		summary = m.Checkpoint.Summary
	}
	writeJSON(w, r, struct {
		scoring.MatchResult
		Summary string `json:"summary,omitempty"`
	}{*m.Result, summary})
}

func (a *api) listTeams(w http.ResponseWriter, r *http.Request) {
	limit, offset, sortBy, order, q := parsePagination(r)
	all := a.registry.ListTeams(sortBy, order, q)

	respData := struct {
		Data []TeamMetadata `json:"data"`
		Meta struct {
			Total  int `json:"total"`
			Offset int `json:"offset"`
			Limit  int `json:"limit"`
		} `json:"meta"`
	}{
		Data: paginate(all, limit, offset),
	}
	respData.Meta.Total = len(all)
	respData.Meta.Offset = offset
	respData.Meta.Limit = limit
	writeJSON(w, r, respData)
}

func (a *api) getTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	t, err := a.teams.LoadTeam(id)
	if err != nil {
		writeError(w, err, retryAfterLoad)
		return
	}
	if t.IsDeleted() {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	writeJSON(w, r, t)
}

// saveTeam creates a team, or replaces it when the ID is known.
func (a *api) saveTeam(w http.ResponseWriter, r *http.Request) {
	var t Team
	if !decodeBody(w, r, &t) {
		return
	}
	if err := ValidateTeam(&t); err != nil {
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if other, err := a.teams.FindByName(t.Name); err == nil && other.ID != t.ID {
		http.Error(w, "Conflict: Team name already taken", http.StatusConflict)
		return
	}
	code := http.StatusOK
	if t.ID == "" {
		t.ID = uuid.NewString()
		code = http.StatusCreated
	} else if existing, err := a.teams.LoadTeam(t.ID); errors.Is(err, os.ErrNotExist) {
		code = http.StatusCreated
	} else if err != nil {
		writeError(w, err, retryAfterSave)
		return
	} else if existing.IsDeleted() {
		http.Error(w, "Conflict: Team was deleted", http.StatusConflict)
		return
	}
	for i := range t.Roster {
		if t.Roster[i].ID == "" {
			t.Roster[i].ID = uuid.NewString()
		}
	}
	t.SchemaVersion = CurrentSchemaVersion
	t.Status = TeamStatusActive
	t.DeletedAt = 0
	t.UpdatedAt = time.Now().UnixNano()
	if err := a.teams.SaveTeam(&t); err != nil {
		log.Printf("Internal Server Error during SaveTeam: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	a.registry.UpdateTeam(t.Metadata())
	a.hubs.recomputeStandings()
	writeJSONStatus(w, r, code, &t)
}

// deleteTeam tombstones a team. Results naming it drop out of the table on
// the recompute that follows.
func (a *api) deleteTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	t, err := a.teams.LoadTeam(id)
	if err != nil {
		writeError(w, err, retryAfterLoad)
		return
	}
	if t.IsDeleted() {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if err := a.teams.DeleteTeam(id); err != nil {
		writeError(w, err, retryAfterSave)
		return
	}
	a.registry.DeleteTeam(id)
	a.hubs.recomputeStandings()
	log.Printf("Deleted team %s (%s)", id, t.Name)
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) getStandings(w http.ResponseWriter, r *http.Request) {
	var (
		table *StandingsTable
		err   error
	)
	if r.URL.Query().Get("preview") == "true" {
		table, err = a.standings.Preview()
	} else {
		table, err = a.standings.Current()
	}
	if err != nil {
		writeError(w, err, retryAfterLoad)
		return
	}
	writeJSON(w, r, table)
}

func (a *api) recomputeStandings(w http.ResponseWriter, r *http.Request) {
	table, err := a.standings.Recompute()
	if err != nil {
		writeError(w, err, retryAfterSave)
		return
	}
	writeJSON(w, r, table)
}

func cacheControlMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/metrics" || r.URL.Path == "/healthz" {
			w.Header().Set("Cache-Control", "private, no-cache, no-transform")
		} else {
			w.Header().Set("Cache-Control", "public, max-age=300, proxy-revalidate, no-transform")
		}
		next.ServeHTTP(w, r)
	})
}

func securityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("Received request: %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware observes latency by route pattern. The pattern is set on
// the request by the mux.
func metricsMiddleware(m *Metrics, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(r.Method, route, rec.code, time.Since(start))
	})
}
