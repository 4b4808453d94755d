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

package standings

import (
	"math"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/ttbt-io/crickeeper/backend/scoring"
)

func overs(t *testing.T, s string) scoring.Overs {
	t.Helper()
	o, err := scoring.ParseOvers(s)
	if err != nil {
		t.Fatalf("ParseOvers(%q): %v", s, err)
	}
	return o
}

func result(t *testing.T, id, team1 string, runs1 int, overs1 string, team2 string, runs2 int, overs2 string, winner string) scoring.MatchResult {
	t.Helper()
	return scoring.MatchResult{
		MatchID:    id,
		Team1:      team1,
		Team2:      team2,
		Team1Runs:  runs1,
		Team1Overs: overs(t, overs1),
		Team2Runs:  runs2,
		Team2Overs: overs(t, overs2),
		Winner:     winner,
	}
}

func mustFind(t *testing.T, rows []Row, team string) Row {
	t.Helper()
	r, ok := Find(rows, team)
	if !ok {
		t.Fatalf("No row for %q in %+v", team, rows)
	}
	return r
}

func TestNetRunRateExample(t *testing.T) {
	results := []scoring.MatchResult{
		result(t, "m1", "A", 120, "6.0", "B", 100, "5.3", "A"),
	}
	rows, diags := Compute(results, []string{"A", "B"})
	if len(diags) != 0 {
		t.Fatalf("Unexpected diagnostics %v", diags)
	}

	a := mustFind(t, rows, "A")
	if a.NetRunRate != 1.818 {
		t.Errorf("NRR(A) = %v, want 1.818", a.NetRunRate)
	}
	if a.OversFaced != 6.0 || a.OversBowled != 5.5 {
		t.Errorf("Expected decimal overs 6.0/5.5, got %v/%v", a.OversFaced, a.OversBowled)
	}
	if math.Abs(a.ExactNetRunRate()-(20.0-100.0/5.5)) > 1e-12 {
		t.Errorf("ExactNetRunRate = %v", a.ExactNetRunRate())
	}
	if a.Played != 1 || a.Won != 1 || a.Lost != 0 || a.Points != 2 {
		t.Errorf("Unexpected row for A: %+v", a)
	}

	b := mustFind(t, rows, "B")
	if b.NetRunRate != -1.818 {
		t.Errorf("NRR(B) = %v, want -1.818", b.NetRunRate)
	}
	if b.Played != 1 || b.Won != 0 || b.Lost != 1 || b.Points != 0 {
		t.Errorf("Unexpected row for B: %+v", b)
	}
	if rows[0].Team != "A" {
		t.Errorf("Expected A to lead the table, got %+v", rows)
	}
}

func TestDraw(t *testing.T) {
	rows, _ := Compute([]scoring.MatchResult{
		result(t, "m1", "A", 150, "20.0", "B", 150, "20.0", scoring.DrawResult),
	}, []string{"A", "B"})
	for _, r := range rows {
		if r.Points != 1 || r.Drawn != 1 || r.Won != 0 || r.Lost != 0 || r.Played != 1 {
			t.Errorf("Unexpected draw row %+v", r)
		}
		if r.NetRunRate != 0 {
			t.Errorf("Expected level NRR, got %v", r.NetRunRate)
		}
	}
}

func TestDivideByZeroGuard(t *testing.T) {
	rows, _ := Compute(nil, []string{"Idle"})
	r := mustFind(t, rows, "Idle")
	if r.NetRunRate != 0 || math.IsNaN(r.ExactNetRunRate()) || math.IsInf(r.ExactNetRunRate(), 0) {
		t.Errorf("Expected NRR 0, got %+v", r)
	}

	// A side bowled out without facing a legal ball.
	rows, _ = Compute([]scoring.MatchResult{
		result(t, "m1", "A", 0, "0.0", "B", 10, "2.0", "B"),
	}, []string{"A", "B"})
	if a := mustFind(t, rows, "A"); a.NetRunRate != 0 {
		t.Errorf("Expected NRR 0 with no overs faced, got %v", a.NetRunRate)
	}
}

func TestSkippedMatches(t *testing.T) {
	results := []scoring.MatchResult{
		result(t, "ok", "A", 100, "10.0", "B", 90, "10.0", "A"),
		result(t, "unknown", "A", 100, "10.0", "Z", 90, "10.0", "A"),
		result(t, "twice", "B", 100, "10.0", "B", 90, "10.0", "B"),
		result(t, "winner", "A", 100, "10.0", "B", 90, "10.0", "Nobody"),
	}
	rows, diags := Compute(results, []string{"A", "B"})

	var ids []string
	for _, d := range diags {
		ids = append(ids, d.MatchID)
		if !strings.Contains(d.String(), d.MatchID) {
			t.Errorf("Diagnostic text %q lacks match id", d)
		}
	}
	if want := []string{"unknown", "twice", "winner"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("Skipped = %v, want %v", ids, want)
	}
	if a := mustFind(t, rows, "A"); a.Played != 1 || a.Points != 2 {
		t.Errorf("Skipped matches leaked into A: %+v", a)
	}
	if _, ok := Find(rows, "Z"); ok {
		t.Error("Unknown team must not get a row")
	}
}

func TestIdempotence(t *testing.T) {
	teams := []string{"A", "B", "C", "D", "A", " "}
	results := []scoring.MatchResult{
		result(t, "m1", "A", 160, "20.0", "B", 140, "20.0", "A"),
		result(t, "m2", "C", 120, "18.3", "A", 121, "17.1", "A"),
		result(t, "m3", "B", 99, "15.2", "C", 100, "14.0", "C"),
		result(t, "m4", "B", 130, "20.0", "D", 130, "20.0", scoring.DrawResult),
	}

	first, _ := Compute(results, teams)
	second, _ := Compute(results, teams)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Compute is not idempotent:\n%+v\n%+v", first, second)
	}
	if len(first) != 4 {
		t.Errorf("Expected 4 distinct teams, got %d", len(first))
	}

	t.Run("OrderIndependent", func(t *testing.T) {
		reversed := slices.Clone(results)
		slices.Reverse(reversed)
		got, _ := Compute(reversed, teams)
		if !reflect.DeepEqual(got, first) {
			t.Errorf("Result depends on input order:\n%+v\n%+v", got, first)
		}
	})

	t.Run("AppendTouchesOnlyParticipants", func(t *testing.T) {
		more := append(slices.Clone(results), result(t, "m5", "C", 170, "20.0", "D", 100, "16.4", "C"))
		after, _ := Compute(more, teams)
		for _, team := range []string{"A", "B"} {
			if mustFind(t, after, team) != mustFind(t, first, team) {
				t.Errorf("Row for %s changed after an unrelated match", team)
			}
		}
		for _, team := range []string{"C", "D"} {
			if mustFind(t, after, team).Played != mustFind(t, first, team).Played+1 {
				t.Errorf("Row for %s did not record the new match", team)
			}
		}
	})
}

func TestRanking(t *testing.T) {
	rows := []Row{
		{Team: "Delta", Points: 4, NetRunRate: 0.5, Won: 2},
		{Team: "Alpha", Points: 4, NetRunRate: 0.5, Won: 2},
		{Team: "Bravo", Points: 6, NetRunRate: -1.2, Won: 3},
		{Team: "Charlie", Points: 4, NetRunRate: 0.9, Won: 1},
		{Team: "Echo", Points: 4, NetRunRate: 0.5, Won: 1},
	}
	Rank(rows)
	var got []string
	for _, r := range rows {
		got = append(got, r.Team)
	}
	want := []string{"Bravo", "Charlie", "Alpha", "Delta", "Echo"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Rank = %v, want %v", got, want)
	}
}
