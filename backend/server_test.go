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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/c2FmZQ/storage"

	"github.com/ttbt-io/crickeeper/backend/scoring"
	"github.com/ttbt-io/crickeeper/backend/standings"
)

type testServer struct {
	t    *testing.T
	url  string
	hubs *HubManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	hubs, handler, err := NewServerHandler(Options{
		DataDir: dir,
		Storage: storage.New(dir, nil),
		Metrics: NewMetrics(),
	})
	if err != nil {
		t.Fatalf("NewServerHandler failed: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		hubs.Stop()
		hubs.registry.StopGC()
	})
	return &testServer{t: t, url: srv.URL, hubs: hubs}
}

// do sends body as JSON (raw bytes are sent as is) and returns the response
// with its body read.
func (s *testServer) do(method, path string, body any, headers ...string) (*http.Response, []byte) {
	s.t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		rd = bytes.NewReader(b)
	case json.RawMessage:
		rd = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			s.t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.url+path, rd)
	if err != nil {
		s.t.Fatal(err)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		s.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		s.t.Fatal(err)
	}
	return resp, data
}

// expect sends a request, checks the status and decodes a JSON reply into
// out.
func (s *testServer) expect(code int, method, path string, body, out any) {
	s.t.Helper()
	resp, data := s.do(method, path, body)
	if resp.StatusCode != code {
		s.t.Fatalf("%s %s: status %d, want %d: %s", method, path, resp.StatusCode, code, data)
	}
	// Errors are plain text; only JSON replies are decoded.
	if out != nil && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(data, out); err != nil {
			s.t.Fatalf("%s %s: bad JSON %q: %v", method, path, data, err)
		}
	}
}

func (s *testServer) act(id string, code int, raw json.RawMessage) ActionResult {
	s.t.Helper()
	var res ActionResult
	s.expect(code, http.MethodPost, "/api/matches/"+id+"/actions", raw, &res)
	return res
}

func TestServer_MatchLifecycle(t *testing.T) {
	s := newTestServer(t)

	var lions, tigers Team
	s.expect(http.StatusCreated, http.MethodPost, "/api/teams", map[string]any{
		"name": "Lions", "shortName": "LIO", "roster": []map[string]string{{"name": "Asha"}},
	}, &lions)
	if !isValidUUID(lions.ID) || len(lions.Roster) != 1 || !isValidUUID(lions.Roster[0].ID) {
		t.Fatalf("Created team = %+v", lions)
	}
	s.expect(http.StatusConflict, http.MethodPost, "/api/teams", map[string]any{"name": "lions"}, nil)
	s.expect(http.StatusCreated, http.MethodPost, "/api/teams", map[string]any{"name": "Tigers"}, &tigers)

	matchID := makeUUID(7)
	var m Match
	s.expect(http.StatusCreated, http.MethodPost, "/api/matches", map[string]any{
		"id": matchID, "team1": "lio", "team2Id": tigers.ID, "maxOvers": 1, "event": "Final",
	}, &m)
	if m.Team1 != "Lions" || m.Team1ID != lions.ID || m.Team2 != "Tigers" {
		t.Errorf("Teams not resolved: %+v", m)
	}
	if m.Config.MaxOvers != 1 || m.Config.MaxWickets != 10 || m.Date == "" {
		t.Errorf("Defaults not applied: %+v %q", m.Config, m.Date)
	}
	s.expect(http.StatusConflict, http.MethodPost, "/api/matches", map[string]any{"id": matchID, "team1": "A", "team2": "B"}, nil)

	t.Run("ETag", func(t *testing.T) {
		resp, _ := s.do(http.MethodGet, "/api/matches/"+matchID, nil)
		etag := resp.Header.Get("ETag")
		if resp.StatusCode != http.StatusOK || etag == "" {
			t.Fatalf("GET match: %d etag %q", resp.StatusCode, etag)
		}
		resp, _ = s.do(http.MethodGet, "/api/matches/"+matchID, nil, "If-None-Match", etag)
		if resp.StatusCode != http.StatusNotModified {
			t.Errorf("Expected 304, got %d", resp.StatusCode)
		}
	})

	four := ball(t, "4")
	if res := s.act(matchID, http.StatusOK, four); !res.Applied || res.State.Current.Runs != 4 {
		t.Fatalf("Ball = %+v", res)
	}
	if res := s.act(matchID, http.StatusOK, four); !res.Duplicate {
		t.Errorf("Resent action not reported as duplicate: %+v", res)
	}
	if res := s.act(matchID, http.StatusConflict, action(t, ActionStartSecondInnings, nil)); res.Notice != NoticeConfirmSecondStart {
		t.Errorf("Expected confirmation notice, got %+v", res)
	}
	s.act(matchID, http.StatusConflict, action(t, ActionFinalize, nil))
	s.expect(http.StatusBadRequest, http.MethodPost, "/api/matches/"+matchID+"/actions", []byte(`{"id":"x","type":"BALL"}`), nil)
	s.expect(http.StatusConflict, http.MethodGet, "/api/matches/"+matchID+"/result", nil, nil)

	for range 5 {
		s.act(matchID, http.StatusOK, ball(t, "0"))
	}
	if res := s.act(matchID, http.StatusConflict, ball(t, "1")); res.Notice != NoticeInningsClosed {
		t.Errorf("Expected innings closed notice, got %+v", res)
	}
	var view struct {
		Match
		CanUndo bool `json:"canUndo"`
	}
	s.expect(http.StatusOK, http.MethodGet, "/api/matches/"+matchID, nil, &view)
	if view.Status != StatusInningsBreak || !view.CanUndo {
		t.Errorf("Match view = %q canUndo %v", view.Status, view.CanUndo)
	}

	s.act(matchID, http.StatusOK, action(t, ActionStartSecondInnings, nil))
	s.act(matchID, http.StatusOK, ball(t, "6"))
	var ck map[string]any
	s.expect(http.StatusOK, http.MethodPost, "/api/matches/"+matchID+"/checkpoint", nil, &ck)
	if ck["status"] != StatusLive {
		t.Errorf("Checkpoint = %v", ck)
	}
	if res := s.act(matchID, http.StatusOK, action(t, ActionFinalize, nil)); res.Status != StatusCompleted {
		t.Fatalf("Finalize = %+v", res)
	}
	s.act(matchID, http.StatusConflict, ball(t, "1"))

	var result struct {
		scoring.MatchResult
		Summary string `json:"summary"`
	}
	s.expect(http.StatusOK, http.MethodGet, "/api/matches/"+matchID+"/result", nil, &result)
	if result.Winner != "Tigers" || result.Team1Runs != 4 || result.Team2Runs != 6 {
		t.Errorf("Result = %+v", result)
	}

	var table StandingsTable
	s.expect(http.StatusOK, http.MethodGet, "/api/standings", nil, &table)
	if row, ok := standings.Find(table.Rows, "Tigers"); !ok || row.Points != standings.PointsForWin || table.Matches != 1 {
		t.Errorf("Standings = %+v", table)
	}

	var list struct {
		Data []MatchMetadata `json:"data"`
		Meta struct {
			Total int `json:"total"`
		} `json:"meta"`
	}
	s.expect(http.StatusOK, http.MethodGet, "/api/matches?q=status:completed", nil, &list)
	if list.Meta.Total != 1 || list.Data[0].Winner != "Tigers" {
		t.Errorf("Completed list = %+v", list)
	}

	s.expect(http.StatusNoContent, http.MethodDelete, "/api/matches/"+matchID, nil, nil)
	s.expect(http.StatusNotFound, http.MethodGet, "/api/matches/"+matchID, nil, nil)
	s.expect(http.StatusOK, http.MethodGet, "/api/standings", nil, &table)
	if row, _ := standings.Find(table.Rows, "Tigers"); row.Played != 0 {
		t.Errorf("Deleted match still in standings: %+v", row)
	}

	s.expect(http.StatusNoContent, http.MethodDelete, "/api/teams/"+lions.ID, nil, nil)
	s.expect(http.StatusNotFound, http.MethodGet, "/api/teams/"+lions.ID, nil, nil)
	s.expect(http.StatusNotFound, http.MethodDelete, "/api/teams/"+lions.ID, nil, nil)
}

func TestServer_Notices(t *testing.T) {
	s := newTestServer(t)
	id := makeUUID(1)
	s.expect(http.StatusCreated, http.MethodPost, "/api/matches", map[string]any{"id": id, "team1": "Lions", "team2": "Tigers"}, nil)

	if res := s.act(id, http.StatusOK, action(t, ActionUndo, nil)); res.Notice != NoticeNothingToUndo {
		t.Errorf("Undo notice = %+v", res)
	}
	if res := s.act(id, http.StatusOK, action(t, ActionRedo, nil)); res.Notice != NoticeNothingToRedo {
		t.Errorf("Redo notice = %+v", res)
	}
	s.act(id, http.StatusBadRequest, action(t, ActionFinalize, map[string]any{"winner": "Bears"}))
}

func TestServer_BadRequests(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"BadMatchID", http.MethodGet, "/api/matches/not-a-uuid", nil, http.StatusBadRequest},
		{"UnknownMatch", http.MethodGet, "/api/matches/" + makeUUID(99), nil, http.StatusNotFound},
		{"UnknownMatchAction", http.MethodPost, "/api/matches/" + makeUUID(99) + "/actions", ball(t, "1"), http.StatusNotFound},
		{"MalformedJSON", http.MethodPost, "/api/matches", []byte(`{"team1":`), http.StatusBadRequest},
		{"InvalidDate", http.MethodPost, "/api/matches", map[string]any{"team1": "A", "team2": "B", "date": "May 1"}, http.StatusBadRequest},
		{"SameTeams", http.MethodPost, "/api/matches", map[string]any{"team1": "Lions", "team2": "Lions"}, http.StatusBadRequest},
		{"UnknownTeamID", http.MethodPost, "/api/matches", map[string]any{"team1Id": makeUUID(5), "team2": "B"}, http.StatusBadRequest},
		{"TeamWithoutName", http.MethodPost, "/api/teams", map[string]any{"name": ""}, http.StatusBadRequest},
		{"UnknownTeam", http.MethodGet, "/api/teams/" + makeUUID(5), nil, http.StatusNotFound},
		{"WrongMethod", http.MethodPut, "/api/standings", nil, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := s.do(tt.method, tt.path, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("Status = %d, want %d: %s", resp.StatusCode, tt.want, body)
			}
		})
	}
}

func TestServer_Pagination(t *testing.T) {
	s := newTestServer(t)
	for i, date := range []string{"2026-05-01", "2026-05-02", "2026-05-03"} {
		s.expect(http.StatusCreated, http.MethodPost, "/api/matches", map[string]any{
			"id": makeUUID(i + 1), "team1": "Lions", "team2": "Tigers", "date": date,
		}, nil)
	}

	var page struct {
		Data []MatchMetadata `json:"data"`
		Meta struct {
			Total  int `json:"total"`
			Offset int `json:"offset"`
			Limit  int `json:"limit"`
		} `json:"meta"`
	}
	s.expect(http.StatusOK, http.MethodGet, "/api/matches?limit=2", nil, &page)
	if len(page.Data) != 2 || page.Meta.Total != 3 || page.Meta.Limit != 2 || page.Data[0].ID != makeUUID(3) {
		t.Errorf("First page = %+v", page)
	}
	s.expect(http.StatusOK, http.MethodGet, "/api/matches?limit=2&offset=2", nil, &page)
	if len(page.Data) != 1 || page.Data[0].ID != makeUUID(1) {
		t.Errorf("Second page = %+v", page)
	}
	s.expect(http.StatusOK, http.MethodGet, "/api/matches?offset=10", nil, &page)
	if len(page.Data) != 0 || page.Meta.Total != 3 {
		t.Errorf("Past the end = %+v", page)
	}
	s.expect(http.StatusOK, http.MethodGet, "/api/matches?limit=1000", nil, &page)
	if page.Meta.Limit != 100 {
		t.Errorf("Limit not capped: %d", page.Meta.Limit)
	}
}

func TestServer_StandingsPreview(t *testing.T) {
	s := newTestServer(t)
	s.expect(http.StatusCreated, http.MethodPost, "/api/teams", map[string]any{"name": "Lions"}, nil)

	var table StandingsTable
	s.expect(http.StatusOK, http.MethodGet, "/api/standings?preview=true", nil, &table)
	if len(table.Rows) != 1 || table.Matches != 0 {
		t.Errorf("Preview = %+v", table)
	}
	s.expect(http.StatusOK, http.MethodPost, "/api/standings/recompute", nil, &table)
	if len(table.Rows) != 1 {
		t.Errorf("Recompute = %+v", table)
	}
}

func TestServer_RegisteringTeamsRecomputesStandings(t *testing.T) {
	s := newTestServer(t)

	matchID := makeUUID(3)
	s.expect(http.StatusCreated, http.MethodPost, "/api/matches", map[string]any{
		"id": matchID, "team1": "Lions", "team2": "Tigers", "maxOvers": 1,
	}, nil)
	s.act(matchID, http.StatusOK, ball(t, "4"))
	for range 5 {
		s.act(matchID, http.StatusOK, ball(t, "0"))
	}
	s.act(matchID, http.StatusOK, action(t, ActionStartSecondInnings, nil))
	s.act(matchID, http.StatusOK, ball(t, "6"))
	s.act(matchID, http.StatusOK, action(t, ActionFinalize, nil))

	var table StandingsTable
	s.expect(http.StatusOK, http.MethodGet, "/api/standings", nil, &table)
	if len(table.Rows) != 0 || len(table.Diagnostics) != 1 {
		t.Fatalf("Standings before registering = %+v", table)
	}

	s.expect(http.StatusCreated, http.MethodPost, "/api/teams", map[string]any{"name": "Lions"}, nil)
	s.expect(http.StatusCreated, http.MethodPost, "/api/teams", map[string]any{"name": "Tigers"}, nil)

	s.expect(http.StatusOK, http.MethodGet, "/api/standings", nil, &table)
	if row, ok := standings.Find(table.Rows, "Lions"); !ok || row.Played != 1 || row.Lost != 1 {
		t.Errorf("Lions row = %+v (found %v)", row, ok)
	}
	if row, ok := standings.Find(table.Rows, "Tigers"); !ok || row.Points != standings.PointsForWin {
		t.Errorf("Tigers row = %+v (found %v)", row, ok)
	}
	if table.Matches != 1 || len(table.Diagnostics) != 0 {
		t.Errorf("Standings after registering = %+v", table)
	}
}

func TestNewServerHandler_SeededTeamsRecomputeStandings(t *testing.T) {
	dir := t.TempDir()
	s := storage.New(dir, nil)
	env := &testEnv{dir: dir, storage: s, matches: NewMatchStore(dir, s), teams: NewTeamStore(dir, s)}
	env.completedMatch(t, makeUUID(1), scoring.MatchResult{
		Team1: "Bears", Team2: "Wolves", Winner: "Bears",
		Team1Runs: 50, Team1Overs: scoring.Overs{Completed: 5},
		Team2Runs: 40, Team2Overs: scoring.Overs{Completed: 5},
	})
	if err := NewStandingsStore(s).Save(&StandingsTable{Rows: []standings.Row{}}); err != nil {
		t.Fatal(err)
	}

	hubs, _, err := NewServerHandler(Options{
		DataDir:    dir,
		Storage:    s,
		Tournament: &TournamentConfig{Name: "Cup", Teams: []TeamConfig{{Name: "Bears"}, {Name: "Wolves"}}},
	})
	if err != nil {
		t.Fatalf("NewServerHandler failed: %v", err)
	}
	t.Cleanup(func() {
		hubs.Stop()
		hubs.registry.StopGC()
	})

	table, err := NewStandingsStore(s).Load()
	if err != nil {
		t.Fatal(err)
	}
	if row, ok := standings.Find(table.Rows, "Bears"); !ok || row.Won != 1 {
		t.Errorf("Stored standings after seeding = %+v", table)
	}
}

func TestServer_HealthAndHeaders(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(http.MethodGet, "/healthz", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"status":"ok"`) {
		t.Fatalf("healthz = %d %s", resp.StatusCode, body)
	}
	for header, want := range map[string]string{
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		"X-Frame-Options":         "DENY",
		"X-Content-Type-Options":  "nosniff",
		"Cache-Control":           "private, no-cache, no-transform",
	} {
		if got := resp.Header.Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}

	_, body = s.do(http.MethodGet, "/metrics", nil)
	if !strings.Contains(string(body), `route="GET /healthz"`) {
		t.Errorf("Request latency not recorded by route:\n%s", body)
	}
}

func TestStartServerAndShutdown(t *testing.T) {
	dir := t.TempDir()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv, err := StartServer(Options{DataDir: dir, Storage: storage.New(dir, nil), Listener: ln})
	if err != nil {
		t.Fatalf("StartServer failed: %v", err)
	}

	url := "http://" + ln.Addr().String()
	body, _ := json.Marshal(map[string]any{"id": makeUUID(1), "team1": "Lions", "team2": "Tigers"})
	resp, err := http.Post(url+"/api/matches", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Create status = %d", resp.StatusCode)
	}
	resp, err = http.Post(url+"/api/matches/"+makeUUID(1)+"/actions", "application/json", bytes.NewReader(ball(t, "4")))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	m, err := NewMatchStore(dir, storage.New(dir, nil)).LoadMatch(makeUUID(1))
	if err != nil {
		t.Fatal(err)
	}
	if m.Checkpoint.Current.Runs != 4 {
		t.Errorf("Unsaved state lost on shutdown: runs = %d", m.Checkpoint.Current.Runs)
	}
}
