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

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/ttbt-io/crickeeper/backend"
	"github.com/ttbt-io/crickeeper/backend/scoring"
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#C0C0C0")).Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

var standingsHeaders = []string{"#", "Team", "P", "W", "L", "D", "Pts", "NRR"}

func standingsRows(t *backend.StandingsTable) [][]string {
	rows := make([][]string, 0, len(t.Rows))
	for i, r := range t.Rows {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			r.Team,
			strconv.Itoa(r.Played),
			strconv.Itoa(r.Won),
			strconv.Itoa(r.Lost),
			strconv.Itoa(r.Drawn),
			strconv.Itoa(r.Points),
			fmt.Sprintf("%+.3f", r.NetRunRate),
		})
	}
	return rows
}

func renderStandings(t *backend.StandingsTable) string {
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers(standingsHeaders...).
		Rows(standingsRows(t)...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	title := "Standings"
	if t.Tournament != "" {
		title = t.Tournament + " standings"
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(tbl.Render())
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(fmt.Sprintf("%d matches counted", t.Matches)))
	for _, d := range t.Diagnostics {
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render(d.String()))
	}
	return b.String()
}

// scorecardLines is the plain text scorecard of a match checkpoint.
func scorecardLines(m *backend.Match) []string {
	lines := []string{fmt.Sprintf("%s v %s", m.Team1, m.Team2)}
	if meta := strings.Join(nonEmpty(m.Event, m.Venue, m.Date), ", "); meta != "" {
		lines = append(lines, meta)
	}
	lines = append(lines, "Status: "+m.Status)
	snap := m.Checkpoint
	if snap == nil {
		return lines
	}
	if snap.FirstInnings != nil {
		lines = append(lines, "")
		lines = append(lines, inningsLines(*snap.FirstInnings)...)
	}
	lines = append(lines, "")
	lines = append(lines, inningsLines(snap.Current)...)
	switch {
	case snap.Summary != "":
		lines = append(lines, "", snap.Summary)
	case snap.InningsNumber == 2 && !snap.MatchOver:
		lines = append(lines, "", fmt.Sprintf("Target %d, need %d", snap.Target, snap.RunsNeeded))
	}
	return lines
}

// inningsLines lists the dismissed batters, then the striker and the
// non-striker.
func inningsLines(s scoring.InningsState) []string {
	lines := []string{fmt.Sprintf("%s %d/%d (%s ov)", s.BattingTeam, s.Runs, s.Wickets, s.Overs())}
	batters := append(append([]scoring.BatterState{}, s.BattingCard...), *s.Striker(), *s.NonStriker())
	for _, b := range batters {
		if b.Name == "" {
			continue
		}
		mark := "*"
		if b.Out {
			mark = ""
		}
		lines = append(lines, fmt.Sprintf("  %-20s %3d%-1s (%d) 4s:%d 6s:%d SR:%.1f", b.Name, b.Runs, mark, b.BallsFaced, b.Fours, b.Sixes, b.StrikeRate()))
	}
	for _, b := range s.BowlingFigures() {
		lines = append(lines, fmt.Sprintf("  %-20s %s-%d-%d Econ:%.2f", b.Name, b.Overs(), b.RunsConceded, b.WicketsTaken, b.Economy()))
	}
	if s.Extras.Total() > 0 {
		lines = append(lines, fmt.Sprintf("  Extras %d (wd %d, nb %d)", s.Extras.Total(), s.Extras.Wides, s.Extras.NoBalls))
	}
	if !s.Overs().IsZero() {
		lines = append(lines, fmt.Sprintf("  Run rate %.2f", s.RunRate()))
	}
	if len(s.Timeline) > 0 {
		lines = append(lines, "  Recent: "+strings.Join(s.Timeline, " "))
	}
	return lines
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func renderScorecard(m *backend.Match) string {
	lines := scorecardLines(m)
	lines[0] = titleStyle.Render(lines[0])
	return strings.Join(lines, "\n")
}
