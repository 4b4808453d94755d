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
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// BallsPerOver is the number of legal deliveries in an over.
const BallsPerOver = 6

// Overs is a count of overs in cricket notation: 5.4 means five completed
// overs and four balls, not five and four tenths. Use Decimal for any rate
// arithmetic.
type Overs struct {
	Completed int
	Balls     int
}

// OversFromBalls converts a count of legal deliveries.
func OversFromBalls(legalBalls int) Overs {
	return Overs{Completed: legalBalls / BallsPerOver, Balls: legalBalls % BallsPerOver}
}

// ParseOvers parses "N" or "N.B" where B is a single digit in 0..5.
// Decimal overs such as "5.83" are rejected.
func ParseOvers(s string) (Overs, error) {
	s = strings.TrimSpace(s)
	if !isOversNotation(s) {
		return Overs{}, fmt.Errorf("%w: %q", ErrInvalidOvers, s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Overs{}, fmt.Errorf("%w: %q", ErrInvalidOvers, s)
	}
	return oversFromDecimal(d)
}

// isOversNotation reports whether s is digits, optionally followed by a
// point and exactly one digit. Signs and exponents are refused here.
func isOversNotation(s string) bool {
	whole, frac, hasPoint := strings.Cut(s, ".")
	if whole == "" || !allDigits(whole) {
		return false
	}
	if !hasPoint {
		return true
	}
	return len(frac) == 1 && allDigits(frac)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// OversFromFloat converts a notation value received as a float, e.g. 5.4.
func OversFromFloat(f float64) (Overs, error) {
	return oversFromDecimal(decimal.NewFromFloat(f))
}

func oversFromDecimal(d decimal.Decimal) (Overs, error) {
	if d.IsNegative() {
		return Overs{}, fmt.Errorf("%w: negative value %s", ErrInvalidOvers, d)
	}
	whole := d.Floor()
	balls := d.Sub(whole).Shift(1)
	if !balls.Equal(balls.Truncate(0)) {
		return Overs{}, fmt.Errorf("%w: %s has more than one ball digit", ErrInvalidOvers, d)
	}
	if balls.IntPart() >= BallsPerOver {
		return Overs{}, fmt.Errorf("%w: %s has %d balls", ErrInvalidOvers, d, balls.IntPart())
	}
	return Overs{Completed: int(whole.IntPart()), Balls: int(balls.IntPart())}, nil
}

// LegalBalls returns the total number of legal deliveries.
func (o Overs) LegalBalls() int {
	return o.Completed*BallsPerOver + o.Balls
}

// Decimal returns true decimal overs (completed + balls/6).
func (o Overs) Decimal() float64 {
	return float64(o.Completed) + float64(o.Balls)/BallsPerOver
}

// IsZero reports whether no legal ball has been bowled.
func (o Overs) IsZero() bool {
	return o.Completed == 0 && o.Balls == 0
}

func (o Overs) String() string {
	return fmt.Sprintf("%d.%d", o.Completed, o.Balls)
}

// MarshalJSON encodes the overs as a JSON number in cricket notation.
func (o Overs) MarshalJSON() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalJSON accepts a JSON number or string in cricket notation.
func (o *Overs) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidOvers, data)
		}
	}
	v, err := ParseOvers(s)
	if err != nil {
		return err
	}
	*o = v
	return nil
}
