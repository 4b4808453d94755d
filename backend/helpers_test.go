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
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/c2FmZQ/storage"
	"github.com/google/uuid"

	"github.com/ttbt-io/crickeeper/backend/scoring"
)

func makeUUID(i int) string {
	return fmt.Sprintf("%08x-0000-4000-8000-000000000000", i)
}

type testEnv struct {
	dir     string
	storage *storage.Storage
	matches *MatchStore
	teams   *TeamStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	s := storage.New(dir, nil)
	return &testEnv{
		dir:     dir,
		storage: s,
		matches: NewMatchStore(dir, s),
		teams:   NewTeamStore(dir, s),
	}
}

// newTestMatch saves a fresh scheduled match between team1 and team2.
func (e *testEnv) newTestMatch(t *testing.T, id, team1, team2 string, overs, wickets int) *Match {
	t.Helper()
	sess, err := scoring.NewSession(scoring.MatchConfiguration{
		Team1:      team1,
		Team2:      team2,
		MaxOvers:   overs,
		MaxWickets: wickets,
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	m := &Match{
		ID:            id,
		SchemaVersion: CurrentSchemaVersion,
		Date:          "2026-05-01",
		Team1:         team1,
		Team2:         team2,
		Config:        sess.Config(),
		Status:        StatusScheduled,
		Checkpoint:    sess.Snapshot(),
		UpdatedAt:     time.Now().UnixNano(),
	}
	if err := e.matches.SaveMatch(m); err != nil {
		t.Fatalf("SaveMatch failed: %v", err)
	}
	return m
}

// completedMatch saves a finished match with the given result.
func (e *testEnv) completedMatch(t *testing.T, id string, r scoring.MatchResult) *Match {
	t.Helper()
	r.MatchID = id
	m := &Match{
		ID:            id,
		SchemaVersion: CurrentSchemaVersion,
		Team1:         r.Team1,
		Team2:         r.Team2,
		Config:        scoring.MatchConfiguration{Team1: r.Team1, Team2: r.Team2, MaxOvers: 20, MaxWickets: 10},
		Status:        StatusCompleted,
		Result:        &r,
		UpdatedAt:     time.Now().UnixNano(),
	}
	if err := e.matches.SaveMatch(m); err != nil {
		t.Fatalf("SaveMatch failed: %v", err)
	}
	return m
}

func (e *testEnv) newTestTeam(t *testing.T, name string, players ...string) *Team {
	t.Helper()
	team := &Team{
		ID:            uuid.NewString(),
		SchemaVersion: CurrentSchemaVersion,
		Name:          name,
		Status:        TeamStatusActive,
		UpdatedAt:     time.Now().UnixNano(),
	}
	for _, p := range players {
		team.Roster = append(team.Roster, Player{ID: uuid.NewString(), Name: p})
	}
	if err := e.teams.SaveTeam(team); err != nil {
		t.Fatalf("SaveTeam failed: %v", err)
	}
	return team
}

// action builds an action with a fresh ID.
func action(t *testing.T, actionType string, payload any) json.RawMessage {
	t.Helper()
	return actionWithID(t, uuid.NewString(), actionType, payload)
}

func actionWithID(t *testing.T, id, actionType string, payload any) json.RawMessage {
	t.Helper()
	a := map[string]any{
		"id":        id,
		"type":      actionType,
		"timestamp": time.Now().UnixMilli(),
	}
	if payload != nil {
		a["payload"] = payload
	}
	raw, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal action: %v", err)
	}
	return raw
}

func ball(t *testing.T, symbol string) json.RawMessage {
	t.Helper()
	return action(t, ActionBall, map[string]any{"outcome": symbol})
}
