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
	"strings"
)

// DefaultTimelineCap is the number of recent-ball symbols kept for display.
const DefaultTimelineCap = 12

// MatchConfiguration binds a fixture to the scorer.
type MatchConfiguration struct {
	Team1        string `json:"team1"`
	Team2        string `json:"team2"`
	MaxOvers     int    `json:"maxOvers"`
	MaxWickets   int    `json:"maxWickets"`
	BattingFirst string `json:"battingFirst,omitempty"`
	HistoryDepth int    `json:"historyDepth,omitempty"`
	TimelineCap  int    `json:"timelineCap,omitempty"`
}

// Validate checks the configuration and fills in defaults.
func (c *MatchConfiguration) Validate() error {
	c.Team1 = strings.TrimSpace(c.Team1)
	c.Team2 = strings.TrimSpace(c.Team2)
	c.BattingFirst = strings.TrimSpace(c.BattingFirst)
	switch {
	case c.Team1 == "" || c.Team2 == "":
		return fmt.Errorf("%w: missing team name", ErrInvalidConfig)
	case c.Team1 == c.Team2:
		return fmt.Errorf("%w: team names must differ", ErrInvalidConfig)
	case c.Team1 == DrawResult || c.Team2 == DrawResult:
		return fmt.Errorf("%w: %q is reserved", ErrInvalidConfig, DrawResult)
	case c.MaxOvers <= 0:
		return fmt.Errorf("%w: maxOvers must be positive", ErrInvalidConfig)
	case c.MaxWickets <= 0:
		return fmt.Errorf("%w: maxWickets must be positive", ErrInvalidConfig)
	case c.BattingFirst != "" && !c.HasTeam(c.BattingFirst):
		return fmt.Errorf("%w: %q is not playing", ErrInvalidConfig, c.BattingFirst)
	}
	if c.BattingFirst == "" {
		c.BattingFirst = c.Team1
	}
	if c.HistoryDepth <= 0 {
		c.HistoryDepth = DefaultHistoryDepth
	}
	if c.TimelineCap <= 0 {
		c.TimelineCap = DefaultTimelineCap
	}
	return nil
}

// HasTeam reports whether name is one of the two sides.
func (c MatchConfiguration) HasTeam(name string) bool {
	return name == c.Team1 || name == c.Team2
}

// Opponent returns the other side.
func (c MatchConfiguration) Opponent(name string) string {
	if name == c.Team1 {
		return c.Team2
	}
	return c.Team1
}

// Session is the scoring state of one match: the frozen first innings, the
// live innings, and the undo/redo history of the live innings. It is not
// safe for concurrent use; the host serialises access.
type Session struct {
	config        MatchConfiguration
	firstInnings  *InningsState
	current       InningsState
	inningsNumber int
	target        int
	history       *HistoryStack
	result        *MatchResult
}

// NewSession starts innings 1 for cfg.BattingFirst.
func NewSession(cfg MatchConfiguration) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		config:        cfg,
		current:       newInnings(cfg.BattingFirst, cfg.Opponent(cfg.BattingFirst), cfg),
		inningsNumber: 1,
		history:       NewHistoryStack(cfg.HistoryDepth),
	}, nil
}

func (s *Session) Config() MatchConfiguration { return s.config }
func (s *Session) InningsNumber() int         { return s.inningsNumber }

// Target is 0 during the first innings.
func (s *Session) Target() int { return s.target }

// State returns a copy of the live innings.
func (s *Session) State() InningsState { return s.current.Clone() }

// FirstInnings returns a copy of the frozen first innings, or nil.
func (s *Session) FirstInnings() *InningsState {
	if s.firstInnings == nil {
		return nil
	}
	c := s.firstInnings.Clone()
	return &c
}

// Result returns the committed result, or nil before FinalizeMatch.
func (s *Session) Result() *MatchResult {
	if s.result == nil {
		return nil
	}
	r := *s.result
	return &r
}

func (s *Session) CanUndo() bool { return s.history.CanUndo() }
func (s *Session) CanRedo() bool { return s.history.CanRedo() }

// RecordBall applies one delivery. It returns ErrInningsClosed, without
// touching any state, once the overs or wickets cap has been reached.
func (s *Session) RecordBall(o Outcome) error {
	if s.result != nil {
		return ErrMatchFinalized
	}
	if err := validateOutcome(o); err != nil {
		return err
	}
	if s.current.IsClosed() {
		return ErrInningsClosed
	}
	s.history.Push(s.current)
	s.current.apply(o)
	return nil
}

func validateOutcome(o Outcome) error {
	switch o.Kind {
	case KindRuns:
		if o.Runs < 0 || o.Runs > MaxRunsPerBall {
			return fmt.Errorf("%w: %d runs", ErrInvalidOutcome, o.Runs)
		}
	case KindWide, KindNoBall, KindWicket:
		if o.Runs != 0 {
			return fmt.Errorf("%w: runs on a %s", ErrInvalidOutcome, o.Symbol())
		}
	default:
		return fmt.Errorf("%w: kind %d", ErrInvalidOutcome, o.Kind)
	}
	return nil
}

// Undo restores the state before the last mutation. It returns false when
// there is nothing to undo.
func (s *Session) Undo() bool {
	if s.result != nil {
		return false
	}
	prev, ok := s.history.Undo(s.current)
	if ok {
		s.current = prev
	}
	return ok
}

// Redo re-applies the last undone mutation. It returns false when there is
// nothing to redo.
func (s *Session) Redo() bool {
	if s.result != nil {
		return false
	}
	next, ok := s.history.Redo(s.current)
	if ok {
		s.current = next
	}
	return ok
}

// SetBatter puts a new batter into slot 1 or 2. The previous occupant moves
// to the batting card.
func (s *Session) SetBatter(slot int, name, registrationRef string) error {
	if s.result != nil {
		return ErrMatchFinalized
	}
	if slot != 1 && slot != 2 {
		return ErrInvalidSlot
	}
	s.history.Push(s.current)
	s.current.setBatter(slot, strings.TrimSpace(name), registrationRef)
	return nil
}

// SetBowler changes the bowler. A bowler returning to the attack resumes
// their figures.
func (s *Session) SetBowler(name, registrationRef string) error {
	if s.result != nil {
		return ErrMatchFinalized
	}
	s.history.Push(s.current)
	s.current.setBowler(strings.TrimSpace(name), registrationRef)
	return nil
}

// FirstInningsComplete reports whether the first innings reached its overs
// or wickets cap. Hosts use it to ask for confirmation before switching.
func (s *Session) FirstInningsComplete() bool {
	if s.inningsNumber == 1 {
		return s.current.IsClosed()
	}
	return s.firstInnings.IsClosed()
}

// StartSecondInnings freezes the first innings and starts the chase.
// An empty chasingTeam means the side that bowled first.
func (s *Session) StartSecondInnings(chasingTeam string) error {
	if s.result != nil {
		return ErrMatchFinalized
	}
	if s.inningsNumber != 1 {
		return ErrNotFirstInnings
	}
	chasingTeam = strings.TrimSpace(chasingTeam)
	if chasingTeam == "" {
		chasingTeam = s.current.BowlingTeam
	}
	if chasingTeam != s.current.BowlingTeam {
		return fmt.Errorf("%w: %q cannot chase", ErrUnknownTeam, chasingTeam)
	}

	first := s.current.Clone()
	s.firstInnings = &first
	s.target = first.Runs + 1
	s.current = newInnings(chasingTeam, first.BattingTeam, s.config)
	s.history.Clear()
	s.inningsNumber = 2
	return nil
}

// IsInningsClosed reports whether the live innings is exhausted.
func (s *Session) IsInningsClosed() bool {
	return s.current.IsClosed()
}

// IsMatchWon reports whether the chasing side has reached the target.
func (s *Session) IsMatchWon() bool {
	return s.inningsNumber == 2 && s.current.Runs >= s.target
}

// IsMatchOver reports whether the result is decided by play.
func (s *Session) IsMatchOver() bool {
	return s.IsMatchWon() || (s.inningsNumber == 2 && s.current.IsClosed())
}

// RunsNeeded is the chasing side's remaining requirement, 0 otherwise.
func (s *Session) RunsNeeded() int {
	if s.inningsNumber != 2 || s.current.Runs >= s.target {
		return 0
	}
	return s.target - s.current.Runs
}

// ProposedWinner derives the result from play: the chasing side when the
// target is reached, DrawResult on a tie, the side batting first otherwise.
// It is empty while the match is undecided.
func (s *Session) ProposedWinner() string {
	if !s.IsMatchOver() {
		return ""
	}
	switch {
	case s.current.Runs >= s.target:
		return s.current.BattingTeam
	case s.current.Runs == s.target-1:
		return DrawResult
	}
	return s.firstInnings.BattingTeam
}

// FinalizeMatch commits the result. An empty winner uses ProposedWinner;
// otherwise winner must name one of the sides or be DrawResult.
func (s *Session) FinalizeMatch(matchID, winner string) (MatchResult, error) {
	if s.result != nil {
		return MatchResult{}, ErrMatchFinalized
	}
	winner = strings.TrimSpace(winner)
	if strings.EqualFold(winner, DrawResult) {
		winner = DrawResult
	}
	if winner == "" {
		winner = s.ProposedWinner()
		if winner == "" {
			return MatchResult{}, ErrMatchUndecided
		}
	}
	if winner != DrawResult && !s.config.HasTeam(winner) {
		return MatchResult{}, fmt.Errorf("%w: %q", ErrInvalidWinner, winner)
	}

	res := MatchResult{
		MatchID: matchID,
		Team1:   s.config.Team1,
		Team2:   s.config.Team2,
		Winner:  winner,
	}
	for _, inn := range s.innings() {
		if inn.BattingTeam == s.config.Team1 {
			res.Team1Runs, res.Team1Wickets, res.Team1Overs = inn.Runs, inn.Wickets, inn.Overs()
		} else {
			res.Team2Runs, res.Team2Wickets, res.Team2Overs = inn.Runs, inn.Wickets, inn.Overs()
		}
	}
	s.result = &res
	s.history.Clear()
	return res, nil
}

func (s *Session) innings() []InningsState {
	if s.firstInnings == nil {
		return []InningsState{s.current}
	}
	return []InningsState{*s.firstInnings, s.current}
}

// ResultSummary describes the committed result with its margin.
func (s *Session) ResultSummary() string {
	if s.result == nil {
		return ""
	}
	w := s.result.Winner
	switch {
	case w == DrawResult:
		return "Match tied"
	case s.inningsNumber == 2 && w == s.current.BattingTeam && s.current.Runs >= s.target:
		left := s.current.MaxWickets - s.current.Wickets
		return fmt.Sprintf("%s won by %d %s", w, left, plural(left, "wicket"))
	case s.firstInnings != nil && w == s.firstInnings.BattingTeam && s.current.Runs < s.firstInnings.Runs:
		margin := s.firstInnings.Runs - s.current.Runs
		return fmt.Sprintf("%s won by %d %s", w, margin, plural(margin, "run"))
	}
	return w + " won"
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
