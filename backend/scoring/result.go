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

package scoring

import (
	"fmt"
)

// DrawResult is the winner value of a tied match.
const DrawResult = "Draw"

// MatchResult is the committed outcome of a match and the only input of the
// standings table. Overs are in cricket notation.
type MatchResult struct {
	MatchID      string `json:"matchId"`
	Team1        string `json:"team1"`
	Team2        string `json:"team2"`
	Team1Runs    int    `json:"team1Runs"`
	Team1Wickets int    `json:"team1Wickets"`
	Team1Overs   Overs  `json:"team1Overs"`
	Team2Runs    int    `json:"team2Runs"`
	Team2Wickets int    `json:"team2Wickets"`
	Team2Overs   Overs  `json:"team2Overs"`
	Winner       string `json:"winner"`
}

// IsDraw reports whether the match was tied.
func (r MatchResult) IsDraw() bool {
	return r.Winner == DrawResult
}

// Loser returns the losing side, or "" for a draw.
func (r MatchResult) Loser() string {
	switch r.Winner {
	case r.Team1:
		return r.Team2
	case r.Team2:
		return r.Team1
	}
	return ""
}

// Snapshot is the durable checkpoint of a session. The undo and redo stacks
// are not part of it.
type Snapshot struct {
	Config        MatchConfiguration `json:"config"`
	InningsNumber int                `json:"inningsNumber"`
	Target        int                `json:"target,omitempty"`
	FirstInnings  *InningsState      `json:"firstInnings,omitempty"`
	Current       InningsState       `json:"current"`
	Result        *MatchResult       `json:"result,omitempty"`

	// Derived on write for readers of the checkpoint. Restore ignores them.
	InningsClosed  bool   `json:"inningsClosed"`
	MatchOver      bool   `json:"matchOver"`
	RunsNeeded     int    `json:"runsNeeded,omitempty"`
	ProposedWinner string `json:"proposedWinner,omitempty"`
	Summary        string `json:"summary,omitempty"`
}

// Snapshot captures the session for persistence.
func (s *Session) Snapshot() *Snapshot {
	return &Snapshot{
		Config:         s.config,
		InningsNumber:  s.inningsNumber,
		Target:         s.target,
		FirstInnings:   s.FirstInnings(),
		Current:        s.current.Clone(),
		Result:         s.Result(),
		InningsClosed:  s.IsInningsClosed(),
		MatchOver:      s.IsMatchOver(),
		RunsNeeded:     s.RunsNeeded(),
		ProposedWinner: s.ProposedWinner(),
		Summary:        s.ResultSummary(),
	}
}

// Restore rebuilds a session from a checkpoint. The history starts empty.
func Restore(snap *Snapshot) (*Session, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: nil snapshot", ErrInvalidConfig)
	}
	cfg := snap.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		config:        cfg,
		current:       snap.Current.Clone(),
		inningsNumber: snap.InningsNumber,
		target:        snap.Target,
		history:       NewHistoryStack(cfg.HistoryDepth),
	}
	switch s.inningsNumber {
	case 1:
		s.target = 0
	case 2:
		if snap.FirstInnings == nil {
			return nil, fmt.Errorf("%w: second innings without first innings", ErrInvalidConfig)
		}
		first := snap.FirstInnings.Clone()
		s.firstInnings = &first
		s.target = first.Runs + 1
	default:
		return nil, fmt.Errorf("%w: innings number %d", ErrInvalidConfig, snap.InningsNumber)
	}
	if s.current.StrikerSlot != 1 && s.current.StrikerSlot != 2 {
		s.current.StrikerSlot = 1
	}
	if s.current.TimelineCap <= 0 {
		s.current.TimelineCap = cfg.TimelineCap
	}
	if snap.Result != nil {
		r := *snap.Result
		s.result = &r
	}
	return s, nil
}
