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
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ttbt-io/crickeeper/backend/standings"
)

type hubFixture struct {
	*testEnv
	registry  *Registry
	standings *StandingsService
	hubs      *HubManager
}

func newHubFixture(t *testing.T, idle time.Duration) *hubFixture {
	t.Helper()
	env := newTestEnv(t)
	reg := NewRegistry(env.matches, env.teams)
	svc := NewStandingsService(env.matches, env.teams, NewStandingsStore(env.storage), nil, nil)
	hm := NewHubManager(HubOptions{
		Matches:     env.matches,
		Teams:       env.teams,
		Registry:    reg,
		Standings:   svc,
		IdleTimeout: idle,
	})
	t.Cleanup(hm.Stop)
	return &hubFixture{testEnv: env, registry: reg, standings: svc, hubs: hm}
}

func (f *hubFixture) submit(t *testing.T, id string, req HubRequest) HubResponse {
	t.Helper()
	resp, err := f.hubs.Submit(context.Background(), id, req)
	if err != nil {
		t.Fatalf("Submit(%s) failed: %v", req.Type, err)
	}
	return resp
}

func TestHub_LoadAndAction(t *testing.T) {
	f := newHubFixture(t, time.Minute)
	id := makeUUID(1)
	f.newTestMatch(t, id, "Lions", "Tigers", 2, 10)

	resp := f.submit(t, id, HubRequest{Type: ReqTypeLoad})
	if resp.Match == nil || resp.Match.ID != id {
		t.Fatalf("Load returned %+v", resp.Match)
	}
	if resp.CanUndo {
		t.Error("Fresh match should have nothing to undo")
	}

	resp = f.submit(t, id, HubRequest{Type: ReqTypeAction, Action: ball(t, "4")})
	if resp.Result == nil || !resp.Result.Applied {
		t.Fatalf("Action result = %+v", resp.Result)
	}
	if resp.Match.Status != StatusLive {
		t.Errorf("Status = %q, want live", resp.Match.Status)
	}
	if !f.matches.IsDirty(id) {
		t.Error("Applied action should mark the match dirty")
	}
	if meta, ok := f.registry.getMatchMeta(id); !ok || meta.Status != StatusLive {
		t.Errorf("Registry not updated: %+v", meta)
	}

	resp = f.submit(t, id, HubRequest{Type: ReqTypeLoad})
	if !resp.CanUndo {
		t.Error("Expected undo to be available after a ball")
	}

	// Returned matches are copies.
	resp.Match.ActionLog = nil
	again := f.submit(t, id, HubRequest{Type: ReqTypeLoad})
	if len(again.Match.ActionLog) != 1 {
		t.Errorf("Hub state leaked through a returned match")
	}
}

func TestHub_LinksRosterPlayers(t *testing.T) {
	f := newHubFixture(t, time.Minute)
	lions := f.newTestTeam(t, "Lions", "Asha Rao", "Bina")
	id := makeUUID(1)
	m := f.newTestMatch(t, id, "Lions", "Tigers", 2, 10)
	m.Team1ID = lions.ID
	if err := f.matches.SaveMatch(m); err != nil {
		t.Fatal(err)
	}

	resp := f.submit(t, id, HubRequest{Type: ReqTypeAction, Action: action(t, ActionSetBatter, map[string]any{"slot": 1, "name": "asha rao"})})
	if got := resp.Result.State.Current.Batters[0].RegistrationRef; got != lions.Roster[0].ID {
		t.Errorf("Batter ref = %q, want %q", got, lions.Roster[0].ID)
	}
	var logged struct {
		Payload SetBatterPayload `json:"payload"`
	}
	if err := json.Unmarshal(resp.Match.ActionLog[len(resp.Match.ActionLog)-1], &logged); err != nil || logged.Payload.RegistrationRef != lions.Roster[0].ID {
		t.Errorf("Logged action = %+v, %v", logged, err)
	}

	// An explicit reference wins over the roster.
	explicit := makeUUID(99)
	resp = f.submit(t, id, HubRequest{Type: ReqTypeAction, Action: action(t, ActionSetBatter, map[string]any{"slot": 2, "name": "Bina", "registrationRef": explicit})})
	if got := resp.Result.State.Current.Batters[1].RegistrationRef; got != explicit {
		t.Errorf("Explicit ref replaced: %q", got)
	}

	// Tigers bowl first and are not registered.
	resp = f.submit(t, id, HubRequest{Type: ReqTypeAction, Action: action(t, ActionSetBowler, map[string]any{"name": "Asha Rao"})})
	if got := resp.Result.State.Current.Bowler.RegistrationRef; got != "" {
		t.Errorf("Bowler linked to the batting side: %q", got)
	}
}

func TestHub_NotFound(t *testing.T) {
	f := newHubFixture(t, time.Minute)
	_, err := f.hubs.Submit(context.Background(), makeUUID(404), HubRequest{Type: ReqTypeLoad})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected os.ErrNotExist, got %v", err)
	}
}

func TestHub_NoticeIsNotAnError(t *testing.T) {
	f := newHubFixture(t, time.Minute)
	id := makeUUID(1)
	f.newTestMatch(t, id, "Lions", "Tigers", 2, 10)

	resp, err := f.hubs.Submit(context.Background(), id, HubRequest{Type: ReqTypeAction, Action: action(t, ActionUndo, nil)})
	if err != nil {
		t.Fatalf("Notice should not be an error: %v", err)
	}
	if resp.Result.Notice != NoticeNothingToUndo {
		t.Errorf("Notice = %q", resp.Result.Notice)
	}

	// The hub keeps serving after a rejected action.
	_, err = f.hubs.Submit(context.Background(), id, HubRequest{Type: ReqTypeAction, Action: action(t, ActionFinalize, nil)})
	if err == nil {
		t.Fatal("Expected undecided error")
	}
	f.submit(t, id, HubRequest{Type: ReqTypeAction, Action: ball(t, "1")})
}

func TestHub_Checkpoint(t *testing.T) {
	f := newHubFixture(t, time.Minute)
	id := makeUUID(1)
	f.newTestMatch(t, id, "Lions", "Tigers", 2, 10)

	f.submit(t, id, HubRequest{Type: ReqTypeAction, Action: ball(t, "6")})
	f.submit(t, id, HubRequest{Type: ReqTypeCheckpoint})
	if f.matches.IsDirty(id) {
		t.Error("Checkpoint should leave the match clean")
	}

	// A fresh store sees the checkpoint on disk.
	m, err := NewMatchStore(f.dir, f.storage).LoadMatch(id)
	if err != nil {
		t.Fatal(err)
	}
	if m.Checkpoint.Current.Runs != 6 {
		t.Errorf("Checkpoint runs = %d, want 6", m.Checkpoint.Current.Runs)
	}
}

func TestHub_IdleUnloadFlushes(t *testing.T) {
	f := newHubFixture(t, 20*time.Millisecond)
	id := makeUUID(1)
	f.newTestMatch(t, id, "Lions", "Tigers", 2, 10)

	f.submit(t, id, HubRequest{Type: ReqTypeAction, Action: ball(t, "4")})
	deadline := time.Now().Add(2 * time.Second)
	for f.hubs.LiveHubs() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := f.hubs.LiveHubs(); n != 0 {
		t.Fatalf("Expected idle hub to unload, %d still live", n)
	}
	if f.matches.IsDirty(id) {
		t.Error("Unloading should flush the match")
	}

	// The hub restarts from the checkpoint.
	resp := f.submit(t, id, HubRequest{Type: ReqTypeLoad})
	if resp.Match.Checkpoint.Current.Runs != 4 {
		t.Errorf("Restored runs = %d, want 4", resp.Match.Checkpoint.Current.Runs)
	}
}

func TestHub_Concurrency(t *testing.T) {
	f := newHubFixture(t, time.Minute)
	id := makeUUID(1)
	f.newTestMatch(t, id, "Lions", "Tigers", 50, 10)

	const workers, perWorker = 8, 5
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	balls := make([]json.RawMessage, workers*perWorker)
	for i := range balls {
		balls[i] = ball(t, "1")
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, raw := range balls[w*perWorker : (w+1)*perWorker] {
				for {
					_, err := f.hubs.Submit(context.Background(), id, HubRequest{Type: ReqTypeAction, Action: raw})
					if errors.Is(err, ErrHubBusy) {
						time.Sleep(time.Millisecond)
						continue
					}
					if err != nil {
						errs <- err
					}
					break
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Submit failed: %v", err)
	}

	resp := f.submit(t, id, HubRequest{Type: ReqTypeLoad})
	if got := resp.Match.Checkpoint.Current.Runs; got != workers*perWorker {
		t.Errorf("Runs = %d, want %d", got, workers*perWorker)
	}
	if got := len(resp.Match.ActionLog); got != workers*perWorker {
		t.Errorf("ActionLog length = %d, want %d", got, workers*perWorker)
	}
}

func TestHub_FinalizeRecomputesStandings(t *testing.T) {
	f := newHubFixture(t, time.Minute)
	f.newTestTeam(t, "Lions")
	f.newTestTeam(t, "Tigers")
	id := makeUUID(1)
	f.newTestMatch(t, id, "Lions", "Tigers", 1, 10)

	for _, sym := range []string{"1", "0", "0", "0", "0", "0"} {
		f.submit(t, id, HubRequest{Type: ReqTypeAction, Action: ball(t, sym)})
	}
	f.submit(t, id, HubRequest{Type: ReqTypeAction, Action: action(t, ActionStartSecondInnings, nil)})
	f.submit(t, id, HubRequest{Type: ReqTypeAction, Action: ball(t, "4")})
	resp := f.submit(t, id, HubRequest{Type: ReqTypeAction, Action: action(t, ActionFinalize, nil)})
	if resp.Match.Status != StatusCompleted || resp.Match.Result.Winner != "Tigers" {
		t.Fatalf("Finalize = %+v", resp.Match.Result)
	}
	if f.matches.IsDirty(id) {
		t.Error("Finalize should be durable")
	}

	table, err := NewStandingsStore(f.storage).Load()
	if err != nil {
		t.Fatalf("Standings not saved: %v", err)
	}
	row, ok := standings.Find(table.Rows, "Tigers")
	if !ok || row.Points != standings.PointsForWin {
		t.Errorf("Tigers row = %+v", row)
	}

	t.Run("DeleteCompletedRecomputes", func(t *testing.T) {
		if _, err := f.hubs.Submit(context.Background(), id, HubRequest{Type: ReqTypeDelete}); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		table, err := NewStandingsStore(f.storage).Load()
		if err != nil {
			t.Fatal(err)
		}
		if row, _ := standings.Find(table.Rows, "Tigers"); row.Played != 0 {
			t.Errorf("Deleted match still counted: %+v", row)
		}
		if f.registry.MatchExists(id) {
			t.Error("Registry still lists the deleted match")
		}
		if _, err := f.hubs.Submit(context.Background(), id, HubRequest{Type: ReqTypeLoad}); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("Expected deleted match to be gone, got %v", err)
		}
	})
}

func TestHub_Stop(t *testing.T) {
	f := newHubFixture(t, time.Minute)
	id := makeUUID(1)
	f.newTestMatch(t, id, "Lions", "Tigers", 2, 10)
	f.submit(t, id, HubRequest{Type: ReqTypeAction, Action: ball(t, "2")})

	f.hubs.Stop()
	if f.matches.IsDirty(id) {
		t.Error("Stop should flush live matches")
	}
	if _, err := f.hubs.Submit(context.Background(), id, HubRequest{Type: ReqTypeLoad}); !errors.Is(err, ErrHubStopped) {
		t.Errorf("Expected ErrHubStopped, got %v", err)
	}
	f.hubs.Stop() // idempotent
}
