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
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/ttbt-io/crickeeper/backend/scoring"
)

// TournamentConfig is the optional YAML file describing the competition.
type TournamentConfig struct {
	Name     string        `yaml:"name"`
	Teams    []TeamConfig  `yaml:"teams"`
	Defaults MatchDefaults `yaml:"defaults"`
}

// TeamConfig declares a team and its squad.
type TeamConfig struct {
	Name      string         `yaml:"name"`
	ShortName string         `yaml:"short_name"`
	Players   []PlayerConfig `yaml:"players"`
}

// PlayerConfig declares one squad member.
type PlayerConfig struct {
	Name string `yaml:"name"`
	Role string `yaml:"role"`
}

// MatchDefaults fill in match settings the creator leaves out.
type MatchDefaults struct {
	MaxOvers     int `yaml:"max_overs"`
	MaxWickets   int `yaml:"max_wickets"`
	HistoryDepth int `yaml:"history_depth"`
	TimelineCap  int `yaml:"timeline_cap"`
}

// DefaultTournamentConfig is used when no file is given: twenty overs,
// ten wickets and no declared teams.
func DefaultTournamentConfig() *TournamentConfig {
	return &TournamentConfig{
		Defaults: MatchDefaults{
			MaxOvers:     20,
			MaxWickets:   10,
			HistoryDepth: scoring.DefaultHistoryDepth,
			TimelineCap:  scoring.DefaultTimelineCap,
		},
	}
}

// LoadTournamentConfig reads and validates a tournament file.
func LoadTournamentConfig(path string) (*TournamentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := DefaultTournamentConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks team names and defaults.
func (c *TournamentConfig) Validate() error {
	seen := make(map[string]bool)
	for i := range c.Teams {
		t := &c.Teams[i]
		t.Name = strings.TrimSpace(t.Name)
		key := strings.ToLower(t.Name)
		switch {
		case t.Name == "":
			return fmt.Errorf("team %d has no name", i+1)
		case strings.EqualFold(t.Name, scoring.DrawResult):
			return fmt.Errorf("team name %q is reserved", t.Name)
		case seen[key]:
			return fmt.Errorf("duplicate team %q", t.Name)
		}
		seen[key] = true
		if err := validateStringLen(t.Name, maxNameLen, "team name"); err != nil {
			return err
		}
	}
	d := c.Defaults
	if d.MaxOvers < 0 || d.MaxWickets < 0 || d.HistoryDepth < 0 || d.TimelineCap < 0 {
		return errors.New("defaults must not be negative")
	}
	return nil
}

// TeamNames returns the declared team names.
func (c *TournamentConfig) TeamNames() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.Teams))
	for _, t := range c.Teams {
		names = append(names, t.Name)
	}
	return names
}

// ApplyDefaults fills unset fields of cfg.
func (c *TournamentConfig) ApplyDefaults(cfg *scoring.MatchConfiguration) {
	if c == nil {
		return
	}
	if cfg.MaxOvers == 0 {
		cfg.MaxOvers = c.Defaults.MaxOvers
	}
	if cfg.MaxWickets == 0 {
		cfg.MaxWickets = c.Defaults.MaxWickets
	}
	if cfg.HistoryDepth == 0 {
		cfg.HistoryDepth = c.Defaults.HistoryDepth
	}
	if cfg.TimelineCap == 0 {
		cfg.TimelineCap = c.Defaults.TimelineCap
	}
}

// SeedTeams creates the declared teams missing from ts. Existing teams are
// left alone.
func SeedTeams(ts *TeamStore, cfg *TournamentConfig) (int, error) {
	if cfg == nil {
		return 0, nil
	}
	created := 0
	for _, tc := range cfg.Teams {
		if _, err := ts.FindByName(tc.Name); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return created, err
		}
		team := &Team{
			ID:            uuid.NewString(),
			SchemaVersion: CurrentSchemaVersion,
			Name:          tc.Name,
			ShortName:     tc.ShortName,
			Status:        TeamStatusActive,
			UpdatedAt:     time.Now().UnixNano(),
		}
		for _, p := range tc.Players {
			team.Roster = append(team.Roster, Player{ID: uuid.NewString(), Name: strings.TrimSpace(p.Name), Role: p.Role})
		}
		if err := ts.SaveTeam(team); err != nil {
			return created, fmt.Errorf("seed team %q: %w", tc.Name, err)
		}
		log.Printf("[CONFIG] Seeded team %q (%s)", team.Name, team.ID)
		created++
	}
	return created, nil
}
