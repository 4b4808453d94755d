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

// Package scoring implements the ball-by-ball live scorer for a two-innings
// limited-overs cricket match.
package scoring

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the category of a single delivery.
type Kind int

const (
	KindRuns Kind = iota
	KindWide
	KindNoBall
	KindWicket
)

func (k Kind) String() string {
	switch k {
	case KindRuns:
		return "runs"
	case KindWide:
		return "wide"
	case KindNoBall:
		return "no_ball"
	case KindWicket:
		return "wicket"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Timeline symbols.
const (
	SymbolWicket = "W"
	SymbolWide   = "WD"
	SymbolNoBall = "NB"
)

// MaxRunsPerBall is the highest run value accepted off the bat.
const MaxRunsPerBall = 6

// Outcome is the result of one delivery. The categories are mutually
// exclusive: a wicket ball carries no run value and extras carry exactly one
// run.
type Outcome struct {
	Kind Kind `json:"kind"`
	Runs int  `json:"runs,omitempty"`
}

// Runs returns a scoring outcome of n runs off the bat. It panics for values
// outside 0..6; use ParseOutcome for untrusted input.
func Runs(n int) Outcome {
	if n < 0 || n > MaxRunsPerBall {
		panic(fmt.Sprintf("scoring: invalid run value %d", n))
	}
	return Outcome{Kind: KindRuns, Runs: n}
}

func Wide() Outcome   { return Outcome{Kind: KindWide} }
func NoBall() Outcome { return Outcome{Kind: KindNoBall} }
func Wicket() Outcome { return Outcome{Kind: KindWicket} }

// ParseOutcome parses a timeline symbol ("0".."6", "W", "WD", "NB").
func ParseOutcome(symbol string) (Outcome, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	switch s {
	case SymbolWicket:
		return Wicket(), nil
	case SymbolWide:
		return Wide(), nil
	case SymbolNoBall:
		return NoBall(), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > MaxRunsPerBall || len(s) != 1 {
		return Outcome{}, fmt.Errorf("%w: %q", ErrInvalidOutcome, symbol)
	}
	return Runs(n), nil
}

// IsLegal reports whether the delivery counts toward the over.
func (o Outcome) IsLegal() bool {
	return o.Kind == KindRuns || o.Kind == KindWicket
}

// IsExtra reports whether the delivery is a wide or a no-ball.
func (o Outcome) IsExtra() bool {
	return o.Kind == KindWide || o.Kind == KindNoBall
}

// TotalRuns is the number of runs added to the team total.
func (o Outcome) TotalRuns() int {
	switch o.Kind {
	case KindRuns:
		return o.Runs
	case KindWide, KindNoBall:
		return 1
	}
	return 0
}

// Symbol returns the display symbol used in the recent-balls timeline.
func (o Outcome) Symbol() string {
	switch o.Kind {
	case KindWide:
		return SymbolWide
	case KindNoBall:
		return SymbolNoBall
	case KindWicket:
		return SymbolWicket
	}
	return strconv.Itoa(o.Runs)
}

func (o Outcome) String() string {
	return o.Symbol()
}

// MarshalJSON encodes the outcome as its timeline symbol.
func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Symbol())
}

// UnmarshalJSON accepts a symbol string or a bare run number.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n int
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidOutcome, data)
		}
		s = strconv.Itoa(n)
	}
	v, err := ParseOutcome(s)
	if err != nil {
		return err
	}
	*o = v
	return nil
}
