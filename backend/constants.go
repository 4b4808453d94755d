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

// Schema Versions
const (
	SchemaVersionV1      = 1
	CurrentSchemaVersion = SchemaVersionV1
	CurrentAppVersion    = "0.1.0"
)

// Match statuses
const (
	StatusScheduled    = "scheduled"
	StatusLive         = "live"
	StatusInningsBreak = "innings_break"
	StatusCompleted    = "completed"
	StatusDeleted      = "deleted"
)

// Team statuses
const (
	TeamStatusActive  = "active"
	TeamStatusDeleted = "deleted"
)

// Action types
const (
	ActionBall               = "BALL"
	ActionUndo               = "UNDO"
	ActionRedo               = "REDO"
	ActionSetBatter          = "SET_BATTER"
	ActionSetBowler          = "SET_BOWLER"
	ActionStartSecondInnings = "START_SECOND_INNINGS"
	ActionFinalize           = "FINALIZE"
)

// Soft notices returned for refused operator actions. They are never fatal.
const (
	NoticeInningsClosed      = "Innings closed: no more balls can be recorded"
	NoticeNothingToUndo      = "Nothing to undo"
	NoticeNothingToRedo      = "Nothing to redo"
	NoticeConfirmSecondStart = "First innings is not complete. Resend with confirm to start the chase"
)

// Storage layout
const (
	matchesDir    = "matches"
	teamsDir      = "teams"
	standingsFile = "standings.json"
	masterKeyFile = "master.key"
)
