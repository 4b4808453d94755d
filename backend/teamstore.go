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
	"fmt"
	"iter"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/c2FmZQ/storage"
)

// Player is a registered squad member. Its ID is the registration reference
// the scorer attaches to batters and bowlers.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role,omitempty"` // "batter", "bowler", "allrounder", "keeper"
}

// Team is a registered side and its squad.
type Team struct {
	ID            string   `json:"id"`
	SchemaVersion int      `json:"schemaVersion"`
	Name          string   `json:"name"`
	ShortName     string   `json:"shortName,omitempty"`
	Roster        []Player `json:"roster,omitempty"`
	UpdatedAt     int64    `json:"updatedAt,omitempty"`

	// Status can be "active" (default/empty) or "deleted"
	Status string `json:"status,omitempty"`
	// DeletedAt is the timestamp (Unix Nano) when the team was deleted.
	DeletedAt int64 `json:"deletedAt,omitempty"`
}

func (t *Team) normalize() {
	if t.SchemaVersion == 0 {
		t.SchemaVersion = CurrentSchemaVersion
	}
	if t.Roster == nil {
		t.Roster = make([]Player, 0)
	}
	if t.Status == "" {
		t.Status = TeamStatusActive
	}
}

// IsDeleted reports whether t is a tombstone.
func (t *Team) IsDeleted() bool {
	return t.Status == TeamStatusDeleted
}

// FindPlayer looks up a squad member by name, ignoring case.
func (t *Team) FindPlayer(name string) (Player, bool) {
	for _, p := range t.Roster {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Player{}, false
}

// Metadata returns the indexable fields of the team.
func (t *Team) Metadata() TeamMetadata {
	return TeamMetadata{
		ID:        t.ID,
		Name:      t.Name,
		ShortName: t.ShortName,
		Players:   len(t.Roster),
		UpdatedAt: t.UpdatedAt,
		Status:    t.Status,
		DeletedAt: t.DeletedAt,
	}
}

// TeamMetadata contains only the fields needed for indexing.
type TeamMetadata struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"shortName,omitempty"`
	Players   int    `json:"players"`
	UpdatedAt int64  `json:"updatedAt"`
	Status    string `json:"status"`
	DeletedAt int64  `json:"deletedAt,omitempty"`
}

// TeamStore manages team persistence to disk.
type TeamStore struct {
	DataDir string
	storage *storage.Storage
	mu      sync.Map // *sync.Mutex per team id
}

// NewTeamStore creates a new TeamStore.
func NewTeamStore(dataDir string, s *storage.Storage) *TeamStore {
	return &TeamStore{
		DataDir: dataDir,
		storage: s,
	}
}

func teamFile(id string) string {
	return filepath.Join(teamsDir, url.PathEscape(id)+".json")
}

func (ts *TeamStore) lock(id string) *sync.Mutex {
	m, _ := ts.mu.LoadOrStore(id, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// SaveTeam saves the team data atomically.
func (ts *TeamStore) SaveTeam(team *Team) error {
	mutex := ts.lock(team.ID)
	mutex.Lock()
	defer mutex.Unlock()

	if err := ts.storage.SaveDataFile(teamFile(team.ID), team); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}
	return nil
}

// LoadTeam loads the team data by ID.
func (ts *TeamStore) LoadTeam(id string) (*Team, error) {
	var t Team
	if err := ts.storage.ReadDataFile(teamFile(id), &t); err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("ReadDataFile: %w", err)
	}
	if t.SchemaVersion > CurrentSchemaVersion {
		return nil, fmt.Errorf("team %s has unsupported schema version %d", id, t.SchemaVersion)
	}
	t.normalize()
	return &t, nil
}

// ListAllTeams returns an iterator over all teams, tombstones included.
func (ts *TeamStore) ListAllTeams() iter.Seq2[*Team, error] {
	return func(yield func(*Team, error) bool) {
		files, err := os.ReadDir(filepath.Join(ts.DataDir, teamsDir))
		if err != nil {
			if !os.IsNotExist(err) {
				yield(nil, fmt.Errorf("could not read teams directory: %w", err))
			}
			return
		}

		for _, file := range files {
			enc, ok := strings.CutSuffix(file.Name(), ".json")
			if file.IsDir() || !ok {
				continue
			}
			id, err := url.PathUnescape(enc)
			if err != nil {
				continue
			}
			t, err := ts.LoadTeam(id)
			if err != nil {
				log.Printf("Warning: could not load team '%s': %v", id, err)
				continue
			}
			if !yield(t, nil) {
				return
			}
		}
	}
}

// ListAllTeamMetadata returns an iterator over metadata for all teams.
func (ts *TeamStore) ListAllTeamMetadata() iter.Seq2[TeamMetadata, error] {
	return func(yield func(TeamMetadata, error) bool) {
		for t, err := range ts.ListAllTeams() {
			if err != nil {
				yield(TeamMetadata{}, err)
				return
			}
			if !yield(t.Metadata(), nil) {
				return
			}
		}
	}
}

// FindByName returns the live team whose name or short name matches,
// ignoring case. A miss yields os.ErrNotExist.
func (ts *TeamStore) FindByName(name string) (*Team, error) {
	name = strings.TrimSpace(name)
	for t, err := range ts.ListAllTeams() {
		if err != nil {
			return nil, err
		}
		if t.IsDeleted() {
			continue
		}
		if strings.EqualFold(t.Name, name) || (t.ShortName != "" && strings.EqualFold(t.ShortName, name)) {
			return t, nil
		}
	}
	return nil, os.ErrNotExist
}

// TeamNames returns the names of all live teams.
func (ts *TeamStore) TeamNames() ([]string, error) {
	var names []string
	for t, err := range ts.ListAllTeams() {
		if err != nil {
			return nil, err
		}
		if !t.IsDeleted() {
			names = append(names, t.Name)
		}
	}
	return names, nil
}

// DeleteTeam deletes a specific team by overwriting it with a tombstone.
func (ts *TeamStore) DeleteTeam(id string) error {
	t, err := ts.LoadTeam(id)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	mutex := ts.lock(id)
	mutex.Lock()
	defer mutex.Unlock()

	now := time.Now().UnixNano()
	tombstone := &Team{
		ID:            id,
		SchemaVersion: CurrentSchemaVersion,
		Name:          t.Name,
		Status:        TeamStatusDeleted,
		UpdatedAt:     now,
		DeletedAt:     now,
	}
	if err := ts.storage.SaveDataFile(teamFile(id), tombstone); err != nil {
		return fmt.Errorf("storage.SaveDataFile (tombstone): %w", err)
	}
	return nil
}

// PurgeTeam permanently deletes the team file.
func (ts *TeamStore) PurgeTeam(id string) error {
	mutex := ts.lock(id)
	mutex.Lock()
	defer mutex.Unlock()

	if err := os.Remove(filepath.Join(ts.DataDir, teamFile(id))); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("could not purge team file: %w", err)
	}
	return nil
}
