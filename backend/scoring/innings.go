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
	"slices"
)

// BatterState holds one batter's figures for the innings.
type BatterState struct {
	Name            string `json:"name"`
	RegistrationRef string `json:"registrationRef,omitempty"`
	Runs            int    `json:"runs"`
	BallsFaced      int    `json:"ballsFaced"`
	Fours           int    `json:"fours"`
	Sixes           int    `json:"sixes"`
	Out             bool   `json:"out,omitempty"`
}

// StrikeRate is runs per hundred balls faced.
func (b BatterState) StrikeRate() float64 {
	if b.BallsFaced == 0 {
		return 0
	}
	return float64(b.Runs) * 100 / float64(b.BallsFaced)
}

// BowlerState holds one bowler's figures for the innings.
type BowlerState struct {
	Name               string `json:"name"`
	RegistrationRef    string `json:"registrationRef,omitempty"`
	RunsConceded       int    `json:"runsConceded"`
	WicketsTaken       int    `json:"wicketsTaken"`
	OversBowled        int    `json:"oversBowled"`
	BallsInCurrentOver int    `json:"ballsInCurrentOver"`
}

// Overs returns the bowler's overs in cricket notation.
func (b BowlerState) Overs() Overs {
	return Overs{Completed: b.OversBowled, Balls: b.BallsInCurrentOver}
}

// Economy is runs conceded per decimal over.
func (b BowlerState) Economy() float64 {
	if b.Overs().IsZero() {
		return 0
	}
	return float64(b.RunsConceded) / b.Overs().Decimal()
}

// Extras counts the illegal deliveries of the innings.
type Extras struct {
	Wides   int `json:"wides"`
	NoBalls int `json:"noBalls"`
}

// Total is the number of extra runs.
func (e Extras) Total() int {
	return e.Wides + e.NoBalls
}

// InningsState is the live state of one team's innings. The two batter
// slots never reorder; StrikerSlot (1 or 2) says which one is facing.
type InningsState struct {
	BattingTeam        string         `json:"battingTeam"`
	BowlingTeam        string         `json:"bowlingTeam"`
	Runs               int            `json:"runs"`
	Wickets            int            `json:"wickets"`
	CompletedOvers     int            `json:"completedOvers"`
	BallsInCurrentOver int            `json:"ballsInCurrentOver"`
	MaxOvers           int            `json:"maxOvers"`
	MaxWickets         int            `json:"maxWickets"`
	Batters            [2]BatterState `json:"batters"`
	StrikerSlot        int            `json:"strikerSlot"`
	Bowler             BowlerState    `json:"bowler"`
	Extras             Extras         `json:"extras"`
	Timeline           []string       `json:"timeline"`
	TimelineCap        int            `json:"timelineCap"`

	// Batters and bowlers no longer in the active slots.
	BattingCard []BatterState `json:"battingCard,omitempty"`
	BowlingCard []BowlerState `json:"bowlingCard,omitempty"`
}

func newInnings(battingTeam, bowlingTeam string, cfg MatchConfiguration) InningsState {
	return InningsState{
		BattingTeam: battingTeam,
		BowlingTeam: bowlingTeam,
		MaxOvers:    cfg.MaxOvers,
		MaxWickets:  cfg.MaxWickets,
		StrikerSlot: 1,
		Timeline:    make([]string, 0, cfg.TimelineCap),
		TimelineCap: cfg.TimelineCap,
	}
}

// Clone returns a deep copy that shares no slices with s.
func (s InningsState) Clone() InningsState {
	c := s
	c.Timeline = slices.Clone(s.Timeline)
	if c.Timeline == nil {
		c.Timeline = []string{}
	}
	c.BattingCard = slices.Clone(s.BattingCard)
	c.BowlingCard = slices.Clone(s.BowlingCard)
	return c
}

// Striker returns the batter on strike.
func (s *InningsState) Striker() *BatterState {
	return &s.Batters[s.StrikerSlot-1]
}

// NonStriker returns the batter at the bowler's end.
func (s *InningsState) NonStriker() *BatterState {
	return &s.Batters[2-s.StrikerSlot]
}

// IsClosed reports whether the overs or wickets cap has been reached.
func (s InningsState) IsClosed() bool {
	return s.CompletedOvers >= s.MaxOvers || s.Wickets >= s.MaxWickets
}

// Overs returns the overs bowled in cricket notation.
func (s InningsState) Overs() Overs {
	return Overs{Completed: s.CompletedOvers, Balls: s.BallsInCurrentOver}
}

// RunRate is runs per decimal over.
func (s InningsState) RunRate() float64 {
	if s.Overs().IsZero() {
		return 0
	}
	return float64(s.Runs) / s.Overs().Decimal()
}

// BowlingFigures lists every bowler used, the active bowler last.
func (s InningsState) BowlingFigures() []BowlerState {
	out := slices.Clone(s.BowlingCard)
	if s.Bowler.Name != "" || s.Bowler.Overs().LegalBalls() > 0 {
		out = append(out, s.Bowler)
	}
	return out
}

func (s *InningsState) swapStrike() {
	s.StrikerSlot = 3 - s.StrikerSlot
}

// apply mutates the innings for one delivery. The caller has already checked
// that the innings is open.
func (s *InningsState) apply(o Outcome) {
	striker := s.Striker()
	switch o.Kind {
	case KindRuns:
		s.Runs += o.Runs
		striker.Runs += o.Runs
		striker.BallsFaced++
		switch o.Runs {
		case 4:
			striker.Fours++
		case 6:
			striker.Sixes++
		}
		s.Bowler.RunsConceded += o.Runs
	case KindWide:
		s.Extras.Wides++
	case KindNoBall:
		s.Extras.NoBalls++
	case KindWicket:
		s.Wickets++
		striker.BallsFaced++
		striker.Out = true
		s.Bowler.WicketsTaken++
	}
	if o.IsExtra() {
		s.Runs += o.TotalRuns()
		s.Bowler.RunsConceded += o.TotalRuns()
	}

	overCompleted := false
	if o.IsLegal() {
		s.Bowler.BallsInCurrentOver++
		if s.Bowler.BallsInCurrentOver == BallsPerOver {
			s.Bowler.BallsInCurrentOver = 0
			s.Bowler.OversBowled++
		}
		s.BallsInCurrentOver++
		if s.BallsInCurrentOver == BallsPerOver {
			s.BallsInCurrentOver = 0
			s.CompletedOvers++
			overCompleted = true
		}
	}

	// Two independent triggers. An odd run off the last ball of an over
	// swaps twice and leaves the striker unchanged.
	if o.Kind == KindRuns && o.Runs%2 == 1 {
		s.swapStrike()
	}
	if overCompleted {
		s.swapStrike()
	}

	s.Timeline = append(s.Timeline, o.Symbol())
	if n := len(s.Timeline) - s.TimelineCap; s.TimelineCap > 0 && n > 0 {
		s.Timeline = slices.Delete(s.Timeline, 0, n)
	}
}

func (s *InningsState) setBatter(slot int, name, ref string) {
	prev := s.Batters[slot-1]
	if prev.Name != "" {
		s.BattingCard = append(s.BattingCard, prev)
	}
	s.Batters[slot-1] = BatterState{Name: name, RegistrationRef: ref}
}

func (s *InningsState) setBowler(name, ref string) {
	if s.Bowler.Name != "" {
		s.BowlingCard = append(s.BowlingCard, s.Bowler)
	}
	next := BowlerState{Name: name, RegistrationRef: ref}
	if i := slices.IndexFunc(s.BowlingCard, func(b BowlerState) bool { return b.Name == name }); i >= 0 {
		next = s.BowlingCard[i]
		if ref != "" {
			next.RegistrationRef = ref
		}
		s.BowlingCard = slices.Delete(s.BowlingCard, i, i+1)
	}
	s.Bowler = next
}
