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
	"cmp"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ttbt-io/crickeeper/backend/search"
)

const tombstoneTTL = 30 * 24 * time.Hour
const gcInterval = 12 * time.Hour

// Registry indexes matches and teams for listing and search without
// loading full match files.
type Registry struct {
	matchStore *MatchStore
	teamStore  *TeamStore

	mu       sync.RWMutex
	matchIDs map[string]bool // live matches
	teamIDs  map[string]bool // live teams

	// Metadata cache for sorting and filtering. Also caches tombstones.
	matchMetadata *lru.Cache[string, MatchMetadata]
	teamMetadata  *lru.Cache[string, TeamMetadata]

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewRegistry creates a Registry and indexes the stores.
func NewRegistry(ms *MatchStore, ts *TeamStore) *Registry {
	mmCache, _ := lru.New[string, MatchMetadata](5000)
	tmCache, _ := lru.New[string, TeamMetadata](2000)

	r := &Registry{
		matchStore:    ms,
		teamStore:     ts,
		matchIDs:      make(map[string]bool),
		teamIDs:       make(map[string]bool),
		matchMetadata: mmCache,
		teamMetadata:  tmCache,
		stopChan:      make(chan struct{}),
	}
	r.Rebuild()
	return r
}

// StartGC starts the background tombstone garbage collector.
func (r *Registry) StartGC() {
	go func() {
		ticker := time.NewTicker(gcInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.PurgeOldTombstones()
			case <-r.stopChan:
				return
			}
		}
	}()
}

// StopGC stops the background tombstone garbage collector.
func (r *Registry) StopGC() {
	r.stopOnce.Do(func() {
		close(r.stopChan)
	})
}

// PurgeOldTombstones permanently deletes expired tombstones from disk.
func (r *Registry) PurgeOldTombstones() (matches, teams int) {
	cutoff := time.Now().Add(-tombstoneTTL).UnixNano()

	for t, err := range r.teamStore.ListAllTeamMetadata() {
		if err == nil && t.Status == TeamStatusDeleted && t.DeletedAt > 0 && t.DeletedAt < cutoff {
			if err := r.teamStore.PurgeTeam(t.ID); err == nil {
				r.teamMetadata.Remove(t.ID)
				teams++
			}
		}
	}
	for m, err := range r.matchStore.ListAllMatchMetadata() {
		if err == nil && m.Status == StatusDeleted && m.DeletedAt > 0 && m.DeletedAt < cutoff {
			if err := r.matchStore.PurgeMatch(m.ID); err == nil {
				r.matchMetadata.Remove(m.ID)
				matches++
			}
		}
	}
	if matches > 0 || teams > 0 {
		log.Printf("Registry: GC complete. Purged %d matches, %d teams.", matches, teams)
	}
	return matches, teams
}

// Rebuild reconstructs the index by scanning the stores.
func (r *Registry) Rebuild() {
	matchIDs := make(map[string]bool)
	teamIDs := make(map[string]bool)

	for t, err := range r.teamStore.ListAllTeamMetadata() {
		if err != nil {
			log.Printf("Registry: Error listing teams: %v", err)
			break
		}
		r.teamMetadata.Add(t.ID, t)
		if t.Status != TeamStatusDeleted {
			teamIDs[t.ID] = true
		}
	}
	for m, err := range r.matchStore.ListAllMatchMetadata() {
		if err != nil {
			log.Printf("Registry: Error listing matches: %v", err)
			break
		}
		r.matchMetadata.Add(m.ID, m)
		if m.Status != StatusDeleted {
			matchIDs[m.ID] = true
		}
	}

	r.mu.Lock()
	r.matchIDs = matchIDs
	r.teamIDs = teamIDs
	r.mu.Unlock()
	log.Printf("Registry: Indexed %d matches, %d teams.", len(matchIDs), len(teamIDs))
}

// UpdateMatch indexes the latest metadata of a match.
func (r *Registry) UpdateMatch(m MatchMetadata) {
	r.matchMetadata.Add(m.ID, m)
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.Status == StatusDeleted {
		delete(r.matchIDs, m.ID)
	} else {
		r.matchIDs[m.ID] = true
	}
}

// DeleteMatch records a match tombstone.
func (r *Registry) DeleteMatch(id string) {
	r.UpdateMatch(MatchMetadata{ID: id, Status: StatusDeleted, DeletedAt: time.Now().UnixNano()})
}

// UpdateTeam indexes the latest metadata of a team.
func (r *Registry) UpdateTeam(t TeamMetadata) {
	r.teamMetadata.Add(t.ID, t)
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.Status == TeamStatusDeleted {
		delete(r.teamIDs, t.ID)
	} else {
		r.teamIDs[t.ID] = true
	}
}

// DeleteTeam records a team tombstone.
func (r *Registry) DeleteTeam(id string) {
	r.UpdateTeam(TeamMetadata{ID: id, Status: TeamStatusDeleted, DeletedAt: time.Now().UnixNano()})
}

// MatchExists reports whether a live match with id is indexed.
func (r *Registry) MatchExists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.matchIDs[id]
}

// TeamExists reports whether a live team with id is indexed.
func (r *Registry) TeamExists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.teamIDs[id]
}

// CountMatches returns the number of live matches.
func (r *Registry) CountMatches() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matchIDs)
}

// CountTeams returns the number of live teams.
func (r *Registry) CountTeams() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.teamIDs)
}

func (r *Registry) getMatchMeta(id string) (MatchMetadata, bool) {
	if m, ok := r.matchMetadata.Get(id); ok {
		return m, true
	}
	m, err := r.matchStore.LoadMatch(id)
	if err != nil {
		return MatchMetadata{}, false
	}
	meta := m.Metadata()
	r.matchMetadata.Add(id, meta)
	return meta, true
}

func (r *Registry) getTeamMeta(id string) (TeamMetadata, bool) {
	if m, ok := r.teamMetadata.Get(id); ok {
		return m, true
	}
	t, err := r.teamStore.LoadTeam(id)
	if err != nil {
		return TeamMetadata{}, false
	}
	meta := t.Metadata()
	r.teamMetadata.Add(id, meta)
	return meta, true
}

func (r *Registry) snapshotIDs(set map[string]bool) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// ListMatches returns the live matches that satisfy query, sorted by date
// (default, newest first), event, venue or updated.
func (r *Registry) ListMatches(sortBy, order, query string) []MatchMetadata {
	if sortBy == "" {
		sortBy = "date"
	}
	if order == "" {
		order = "asc"
		if sortBy == "date" || sortBy == "updated" {
			order = "desc"
		}
	}
	q := search.Parse(query)
	q.Normalize("date")

	var out []MatchMetadata
	for _, id := range r.snapshotIDs(r.matchIDs) {
		meta, ok := r.getMatchMeta(id)
		if !ok || meta.Status == StatusDeleted || !matchesMatch(meta, q) {
			continue
		}
		out = append(out, meta)
	}

	key := func(m MatchMetadata) string {
		switch sortBy {
		case "event":
			return m.Event
		case "venue":
			return m.Venue
		case "updated":
			return ""
		}
		return m.Date
	}
	slices.SortFunc(out, func(a, b MatchMetadata) int {
		c := strings.Compare(key(a), key(b))
		if sortBy == "updated" {
			c = cmp.Compare(a.UpdatedAt, b.UpdatedAt)
		}
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		if order == "desc" {
			return -c
		}
		return c
	})
	return out
}

// ListTeams returns live teams that satisfy query, sorted by name (default)
// or updated.
func (r *Registry) ListTeams(sortBy, order, query string) []TeamMetadata {
	if sortBy == "" {
		sortBy = "name"
	}
	if order == "" {
		order = "asc"
	}
	q := search.Parse(query)
	q.Normalize()

	var out []TeamMetadata
	for _, id := range r.snapshotIDs(r.teamIDs) {
		meta, ok := r.getTeamMeta(id)
		if !ok || meta.Status == TeamStatusDeleted || !matchesTeam(meta, q) {
			continue
		}
		out = append(out, meta)
	}
	slices.SortFunc(out, func(a, b TeamMetadata) int {
		var c int
		if sortBy == "updated" {
			c = cmp.Compare(a.UpdatedAt, b.UpdatedAt)
		} else {
			c = strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		if order == "desc" {
			return -c
		}
		return c
	})
	return out
}

func containsLower(s, substrLower string) bool {
	return strings.Contains(strings.ToLower(s), substrLower)
}

func matchesMatch(m MatchMetadata, q search.Query) bool {
	for _, token := range q.FreeText {
		match := containsLower(m.Event, token) ||
			containsLower(m.Venue, token) ||
			containsLower(m.Team1, token) ||
			containsLower(m.Team2, token)
		if !match {
			return false
		}
	}
	for _, f := range q.Filters {
		var ok bool
		switch f.Key {
		case "team":
			ok = f.Contains(m.Team1) || f.Contains(m.Team2)
		case "status":
			ok = m.Status == f.Value
		case "event":
			ok = f.Contains(m.Event)
		case "venue":
			ok = f.Contains(m.Venue)
		case "winner":
			ok = f.Contains(m.Winner)
		case "date":
			ok = f.Compare(m.Date)
		default:
			ok = true
		}
		if !ok {
			return false
		}
	}
	return true
}

func matchesTeam(m TeamMetadata, q search.Query) bool {
	for _, token := range q.FreeText {
		if !containsLower(m.Name, token) && !containsLower(m.ShortName, token) {
			return false
		}
	}
	for _, f := range q.Filters {
		if f.Key == "name" && !f.Contains(m.Name) {
			return false
		}
	}
	return true
}
