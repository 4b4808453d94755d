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
	"errors"
	"fmt"
	"log"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/ttbt-io/crickeeper/backend/scoring"
	"github.com/ttbt-io/crickeeper/backend/standings"
)

// StandingsService rebuilds the points table from stored results.
type StandingsService struct {
	matches    *MatchStore
	teams      *TeamStore
	store      *StandingsStore
	tournament *TournamentConfig
	metrics    *Metrics

	mu sync.Mutex // one recompute at a time
}

// NewStandingsService creates a StandingsService. tournament and metrics may
// be nil.
func NewStandingsService(ms *MatchStore, ts *TeamStore, ss *StandingsStore, tournament *TournamentConfig, metrics *Metrics) *StandingsService {
	return &StandingsService{
		matches:    ms,
		teams:      ts,
		store:      ss,
		tournament: tournament,
		metrics:    metrics,
	}
}

// CompletedResults returns the committed results of all completed,
// non-deleted matches in match id order.
func (s *StandingsService) CompletedResults() ([]scoring.MatchResult, error) {
	var results []scoring.MatchResult
	for m, err := range s.matches.ListAllMatches() {
		if err != nil {
			return nil, err
		}
		if m.Status != StatusCompleted || m.DeletedAt != 0 || m.Result == nil {
			continue
		}
		r := *m.Result
		if r.MatchID == "" {
			r.MatchID = m.ID
		}
		results = append(results, r)
	}
	return results, nil
}

// Teams returns the known team names: live registered teams plus the teams
// declared in the tournament file.
func (s *StandingsService) Teams() ([]string, error) {
	names, err := s.teams.TeamNames()
	if err != nil {
		return nil, err
	}
	names = append(names, s.tournament.TeamNames()...)
	slices.Sort(names)
	return slices.Compact(names), nil
}

// Recompute rebuilds the table from scratch and replaces the stored copy.
func (s *StandingsService) Recompute() (*StandingsTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.compute()
	if err == nil {
		err = s.store.Save(table)
	}
	skipped := 0
	if table != nil {
		skipped = len(table.Diagnostics)
	}
	s.metrics.RecordRecompute(err, skipped)
	if err != nil {
		return nil, fmt.Errorf("recompute standings: %w", err)
	}
	log.Printf("[STANDINGS] Recomputed from %d matches (%d teams, %d skipped)", table.Matches, len(table.Rows), skipped)
	return table, nil
}

// Preview computes the table without saving it.
func (s *StandingsService) Preview() (*StandingsTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compute()
}

func (s *StandingsService) compute() (*StandingsTable, error) {
	results, err := s.CompletedResults()
	if err != nil {
		return nil, err
	}
	teams, err := s.Teams()
	if err != nil {
		return nil, err
	}
	rows, diags := standings.Compute(results, teams)
	for _, d := range diags {
		log.Printf("[STANDINGS] %s", d)
	}
	table := &StandingsTable{
		SchemaVersion: CurrentSchemaVersion,
		UpdatedAt:     time.Now().UnixNano(),
		Matches:       len(results) - len(diags),
		Rows:          rows,
		Diagnostics:   diags,
	}
	if s.tournament != nil {
		table.Tournament = s.tournament.Name
	}
	return table, nil
}

// Current returns the stored table, computing it on first use.
func (s *StandingsService) Current() (*StandingsTable, error) {
	t, err := s.store.Load()
	if errors.Is(err, os.ErrNotExist) {
		return s.Recompute()
	}
	return t, err
}
