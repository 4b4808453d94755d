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

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ttbt-io/crickeeper/backend/scoring"
)

// ActionResult reports what an action did to a match.
type ActionResult struct {
	ActionID  string            `json:"actionId"`
	Type      string            `json:"type"`
	Applied   bool              `json:"applied"`
	Duplicate bool              `json:"duplicate,omitempty"`
	Notice    string            `json:"notice,omitempty"`
	Ball      *scoring.Outcome  `json:"ball,omitempty"`
	Status    string            `json:"status"`
	State     *scoring.Snapshot `json:"state"`
}

// alreadyApplied scans the tail of the log for an action with the same ID.
// The window covers client retries without making every append O(n).
func alreadyApplied(log []json.RawMessage, id string) bool {
	const maxScan = 100
	for i, count := len(log)-1, 0; i >= 0 && count < maxScan; i, count = i-1, count+1 {
		var existing struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(log[i], &existing); err == nil && existing.ID == id {
			return true
		}
	}
	return false
}

// matchStatus derives the lifecycle status from the scoring state.
func matchStatus(sess *scoring.Session) string {
	switch {
	case sess.Result() != nil:
		return StatusCompleted
	case sess.InningsNumber() == 1 && sess.IsInningsClosed():
		return StatusInningsBreak
	}
	return StatusLive
}

// ApplyAction validates raw and runs it against sess. An applied action is
// appended to the match log and the match checkpoint, result and status are
// refreshed. A refusal that leaves the state untouched is reported through
// ActionResult.Notice with a nil error. Errors are for actions that can
// never succeed against this match.
func ApplyAction(m *Match, sess *scoring.Session, raw json.RawMessage) (ActionResult, error) {
	action, err := ValidateAction(raw)
	if err != nil {
		return ActionResult{}, err
	}
	res := ActionResult{ActionID: action.ID, Type: action.Type}

	if alreadyApplied(m.ActionLog, action.ID) {
		res.Duplicate = true
		res.Status = m.Status
		res.State = sess.Snapshot()
		return res, nil
	}

	notice, ball, err := dispatchAction(m.ID, sess, action)
	if err != nil {
		return res, err
	}
	res.Ball = ball
	if notice != "" {
		res.Notice = notice
		res.Status = m.Status
		res.State = sess.Snapshot()
		return res, nil
	}

	m.ActionLog = append(m.ActionLog, raw)
	m.Checkpoint = sess.Snapshot()
	m.Result = sess.Result()
	m.Status = matchStatus(sess)
	m.UpdatedAt = time.Now().UnixNano()

	res.Applied = true
	res.Status = m.Status
	res.State = m.Checkpoint
	return res, nil
}

func dispatchAction(matchID string, sess *scoring.Session, action BaseAction) (notice string, ball *scoring.Outcome, err error) {
	if sess.Result() != nil {
		return "", nil, scoring.ErrMatchFinalized
	}
	switch action.Type {
	case ActionBall:
		var p BallPayload
		if err := decodePayload(action.Payload, &p); err != nil {
			return "", nil, fmt.Errorf("%w: %w", ErrInvalidAction, err)
		}
		err := sess.RecordBall(*p.Outcome)
		if errors.Is(err, scoring.ErrInningsClosed) {
			return NoticeInningsClosed, p.Outcome, nil
		}
		return "", p.Outcome, err

	case ActionUndo:
		if !sess.Undo() {
			return NoticeNothingToUndo, nil, nil
		}
		return "", nil, nil

	case ActionRedo:
		if !sess.Redo() {
			return NoticeNothingToRedo, nil, nil
		}
		return "", nil, nil

	case ActionSetBatter:
		var p SetBatterPayload
		if err := decodePayload(action.Payload, &p); err != nil {
			return "", nil, fmt.Errorf("%w: %w", ErrInvalidAction, err)
		}
		return "", nil, sess.SetBatter(p.Slot, p.Name, p.RegistrationRef)

	case ActionSetBowler:
		var p SetBowlerPayload
		if err := decodePayload(action.Payload, &p); err != nil {
			return "", nil, fmt.Errorf("%w: %w", ErrInvalidAction, err)
		}
		return "", nil, sess.SetBowler(p.Name, p.RegistrationRef)

	case ActionStartSecondInnings:
		var p StartSecondInningsPayload
		if err := decodePayload(action.Payload, &p); err != nil {
			return "", nil, fmt.Errorf("%w: %w", ErrInvalidAction, err)
		}
		if sess.InningsNumber() != 1 {
			return "", nil, scoring.ErrNotFirstInnings
		}
		if !p.Confirm && !sess.FirstInningsComplete() {
			return NoticeConfirmSecondStart, nil, nil
		}
		return "", nil, sess.StartSecondInnings(p.ChasingTeam)

	case ActionFinalize:
		var p FinalizePayload
		if err := decodePayload(action.Payload, &p); err != nil {
			return "", nil, fmt.Errorf("%w: %w", ErrInvalidAction, err)
		}
		_, err := sess.FinalizeMatch(matchID, p.Winner)
		return "", nil, err
	}
	return "", nil, fmt.Errorf("%w: unknown action type: %s", ErrInvalidAction, action.Type)
}
