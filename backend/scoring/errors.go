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

import "errors"

var (
	// ErrInningsClosed is returned when a ball is recorded after the overs or
	// wickets cap has been reached. No state is changed.
	ErrInningsClosed = errors.New("innings already closed")

	ErrMatchFinalized  = errors.New("match already finalized")
	ErrNotFirstInnings = errors.New("second innings already started")
	ErrUnknownTeam     = errors.New("team is not part of this match")
	ErrInvalidWinner   = errors.New("invalid winner")
	ErrMatchUndecided  = errors.New("match result is not decided yet")
	ErrInvalidOutcome  = errors.New("invalid ball outcome")
	ErrInvalidOvers    = errors.New("invalid overs notation")
	ErrInvalidConfig   = errors.New("invalid match configuration")
	ErrInvalidSlot     = errors.New("batter slot must be 1 or 2")
)
