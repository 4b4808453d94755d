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

// Package standings derives the points table from completed match results.
// Every call is a full recomputation; there is no incremental state.
package standings

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ttbt-io/crickeeper/backend/scoring"
)

const (
	PointsForWin  = 2
	PointsForDraw = 1

	// NetRunRatePlaces is the number of decimal places kept in Row.NetRunRate.
	NetRunRatePlaces = 3
)

// Row is one team's line in the table. OversFaced and OversBowled are true
// decimal overs (completed + balls/6), never cricket notation.
type Row struct {
	Team         string  `json:"team"`
	Played       int     `json:"played"`
	Won          int     `json:"won"`
	Lost         int     `json:"lost"`
	Drawn        int     `json:"drawn"`
	Points       int     `json:"points"`
	RunsScored   int     `json:"runsScored"`
	OversFaced   float64 `json:"oversFaced"`
	RunsConceded int     `json:"runsConceded"`
	OversBowled  float64 `json:"oversBowled"`
	NetRunRate   float64 `json:"netRunRate"`
}

// ExactNetRunRate recomputes the net run rate without rounding.
func (r Row) ExactNetRunRate() float64 {
	if r.OversFaced <= 0 || r.OversBowled <= 0 {
		return 0
	}
	return float64(r.RunsScored)/r.OversFaced - float64(r.RunsConceded)/r.OversBowled
}

// Diagnostic explains why a match was left out of the table.
type Diagnostic struct {
	MatchID string `json:"matchId"`
	Reason  string `json:"reason"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("match %s skipped: %s", d.MatchID, d.Reason)
}

type tally struct {
	Row
	ballsFaced  int
	ballsBowled int
}

// Compute builds one row per known team from results. Matches naming an
// unknown team, the same team twice, or a winner that is neither side nor
// scoring.DrawResult are skipped and reported. The output is ranked by
// points, net run rate, wins, then team name.
func Compute(results []scoring.MatchResult, teams []string) ([]Row, []Diagnostic) {
	table := make(map[string]*tally, len(teams))
	for _, name := range teams {
		name = strings.TrimSpace(name)
		if name == "" || name == scoring.DrawResult {
			continue
		}
		if _, ok := table[name]; !ok {
			table[name] = &tally{Row: Row{Team: name}}
		}
	}

	var diags []Diagnostic
	for _, m := range results {
		if reason := check(m, table); reason != "" {
			diags = append(diags, Diagnostic{MatchID: m.MatchID, Reason: reason})
			continue
		}
		a, b := table[m.Team1], table[m.Team2]
		a.add(m.Team1Runs, m.Team1Overs, m.Team2Runs, m.Team2Overs)
		b.add(m.Team2Runs, m.Team2Overs, m.Team1Runs, m.Team1Overs)

		switch m.Winner {
		case m.Team1:
			a.win()
			b.Lost++
		case m.Team2:
			b.win()
			a.Lost++
		default:
			a.draw()
			b.draw()
		}
	}

	rows := make([]Row, 0, len(table))
	for _, t := range table {
		t.OversFaced = scoring.OversFromBalls(t.ballsFaced).Decimal()
		t.OversBowled = scoring.OversFromBalls(t.ballsBowled).Decimal()
		t.NetRunRate = roundNRR(t.exactNRR())
		rows = append(rows, t.Row)
	}
	Rank(rows)
	return rows, diags
}

func check(m scoring.MatchResult, table map[string]*tally) string {
	switch {
	case m.Team1 == m.Team2:
		return fmt.Sprintf("team %q listed on both sides", m.Team1)
	case table[m.Team1] == nil:
		return fmt.Sprintf("unknown team %q", m.Team1)
	case table[m.Team2] == nil:
		return fmt.Sprintf("unknown team %q", m.Team2)
	case m.Winner != m.Team1 && m.Winner != m.Team2 && m.Winner != scoring.DrawResult:
		return fmt.Sprintf("invalid winner %q", m.Winner)
	}
	return ""
}

func (t *tally) add(scored int, faced scoring.Overs, conceded int, bowled scoring.Overs) {
	t.Played++
	t.RunsScored += scored
	t.RunsConceded += conceded
	t.ballsFaced += faced.LegalBalls()
	t.ballsBowled += bowled.LegalBalls()
}

func (t *tally) win() {
	t.Won++
	t.Points += PointsForWin
}

func (t *tally) draw() {
	t.Drawn++
	t.Points += PointsForDraw
}

// exactNRR works from ball counts so the result does not depend on the order
// in which overs were summed.
func (t *tally) exactNRR() float64 {
	if t.ballsFaced == 0 || t.ballsBowled == 0 {
		return 0
	}
	bpo := float64(scoring.BallsPerOver)
	return float64(t.RunsScored)*bpo/float64(t.ballsFaced) - float64(t.RunsConceded)*bpo/float64(t.ballsBowled)
}

func roundNRR(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(NetRunRatePlaces).Float64()
	return f
}

// Rank sorts rows in table order.
func Rank(rows []Row) {
	slices.SortFunc(rows, func(a, b Row) int {
		if c := cmp.Compare(b.Points, a.Points); c != 0 {
			return c
		}
		if c := cmp.Compare(b.NetRunRate, a.NetRunRate); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Won, a.Won); c != 0 {
			return c
		}
		return strings.Compare(a.Team, b.Team)
	})
}

// Find returns the row for team.
func Find(rows []Row, team string) (Row, bool) {
	i := slices.IndexFunc(rows, func(r Row) bool { return r.Team == team })
	if i < 0 {
		return Row{}, false
	}
	return rows[i], true
}
