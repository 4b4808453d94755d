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
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ttbt-io/crickeeper/backend/scoring"
)

// ErrInvalidAction wraps every action shape error.
var ErrInvalidAction = errors.New("invalid action")

const (
	maxNameLen  = 50
	maxTextLen  = 100
	maxRosterSz = 50
)

// isValidUUID checks if the string is a canonical 36-character UUID.
func isValidUUID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// BaseAction represents the common fields of an action.
type BaseAction struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Timestamp     int64           `json:"timestamp"`
	SchemaVersion int             `json:"schemaVersion,omitempty"`
}

// BallPayload is the payload of a BALL action.
type BallPayload struct {
	Outcome *scoring.Outcome `json:"outcome"`
}

// SetBatterPayload is the payload of a SET_BATTER action.
type SetBatterPayload struct {
	Slot            int    `json:"slot"`
	Name            string `json:"name"`
	RegistrationRef string `json:"registrationRef,omitempty"`
}

// SetBowlerPayload is the payload of a SET_BOWLER action.
type SetBowlerPayload struct {
	Name            string `json:"name"`
	RegistrationRef string `json:"registrationRef,omitempty"`
}

// StartSecondInningsPayload is the payload of a START_SECOND_INNINGS action.
type StartSecondInningsPayload struct {
	ChasingTeam string `json:"chasingTeam,omitempty"`
	Confirm     bool   `json:"confirm,omitempty"`
}

// FinalizePayload is the payload of a FINALIZE action. An empty winner
// commits the natural result.
type FinalizePayload struct {
	Winner string `json:"winner,omitempty"`
}

// ValidateAction parses and checks a single action from raw JSON.
func ValidateAction(raw json.RawMessage) (BaseAction, error) {
	var action BaseAction
	if err := json.Unmarshal(raw, &action); err != nil {
		return action, fmt.Errorf("%w: malformed action JSON", ErrInvalidAction)
	}
	if !isValidUUID(action.ID) {
		return action, fmt.Errorf("%w: invalid action ID: %q", ErrInvalidAction, action.ID)
	}
	if action.Type == "" {
		return action, fmt.Errorf("%w: missing action type", ErrInvalidAction)
	}
	if err := validateActionPayload(action.Type, action.Payload); err != nil {
		return action, fmt.Errorf("%w: %s: %w", ErrInvalidAction, action.Type, err)
	}
	return action, nil
}

func validateActionPayload(actionType string, payload json.RawMessage) error {
	switch actionType {
	case ActionBall:
		var p BallPayload
		if err := decodePayload(payload, &p); err != nil {
			return err
		}
		if p.Outcome == nil {
			return errors.New("missing outcome")
		}
		return nil
	case ActionUndo, ActionRedo:
		return nil
	case ActionSetBatter:
		var p SetBatterPayload
		if err := decodePayload(payload, &p); err != nil {
			return err
		}
		if p.Slot != 1 && p.Slot != 2 {
			return fmt.Errorf("invalid slot %d", p.Slot)
		}
		return validatePerson(p.Name, p.RegistrationRef, "batter")
	case ActionSetBowler:
		var p SetBowlerPayload
		if err := decodePayload(payload, &p); err != nil {
			return err
		}
		return validatePerson(p.Name, p.RegistrationRef, "bowler")
	case ActionStartSecondInnings:
		var p StartSecondInningsPayload
		if err := decodePayload(payload, &p); err != nil {
			return err
		}
		return validateStringLen(p.ChasingTeam, maxNameLen, "chasing team")
	case ActionFinalize:
		var p FinalizePayload
		if err := decodePayload(payload, &p); err != nil {
			return err
		}
		return validateStringLen(p.Winner, maxNameLen, "winner")
	default:
		return fmt.Errorf("unknown action type: %s", actionType)
	}
}

// decodePayload treats a missing payload as an empty object.
func decodePayload(payload json.RawMessage, v any) error {
	if len(payload) == 0 || string(payload) == "null" {
		return nil
	}
	return json.Unmarshal(payload, v)
}

func validatePerson(name, ref, what string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("missing %s name", what)
	}
	if err := validateStringLen(name, maxNameLen, what+" name"); err != nil {
		return err
	}
	return validateStringLen(ref, maxTextLen, "registration reference")
}

// validateStringLen checks if the string length is within the limit.
func validateStringLen(s string, max int, name string) error {
	if len(s) > max {
		return fmt.Errorf("%s too long (max %d chars)", name, max)
	}
	return nil
}

// CreateMatchRequest is the body of POST /api/matches. Team names may be
// omitted when team IDs are given.
type CreateMatchRequest struct {
	ID           string `json:"id,omitempty"`
	Date         string `json:"date,omitempty"`
	Event        string `json:"event,omitempty"`
	Venue        string `json:"venue,omitempty"`
	Team1        string `json:"team1,omitempty"`
	Team2        string `json:"team2,omitempty"`
	Team1ID      string `json:"team1Id,omitempty"`
	Team2ID      string `json:"team2Id,omitempty"`
	MaxOvers     int    `json:"maxOvers,omitempty"`
	MaxWickets   int    `json:"maxWickets,omitempty"`
	BattingFirst string `json:"battingFirst,omitempty"`
}

// Validate checks field formats. Team resolution happens later.
func (r *CreateMatchRequest) Validate() error {
	if r.ID != "" && !isValidUUID(r.ID) {
		return fmt.Errorf("invalid match ID format: %s", r.ID)
	}
	for _, id := range []string{r.Team1ID, r.Team2ID} {
		if id != "" && !isValidUUID(id) {
			return fmt.Errorf("invalid team ID format: %s", id)
		}
	}
	if r.Date != "" && !validDate(r.Date) {
		return fmt.Errorf("invalid date format: %s", r.Date)
	}
	if r.MaxOvers < 0 || r.MaxWickets < 0 {
		return errors.New("overs and wickets must not be negative")
	}
	checks := []struct {
		s    string
		max  int
		name string
	}{
		{r.Event, maxTextLen, "event"},
		{r.Venue, maxTextLen, "venue"},
		{r.Team1, maxNameLen, "team1"},
		{r.Team2, maxNameLen, "team2"},
		{r.BattingFirst, maxNameLen, "battingFirst"},
	}
	for _, c := range checks {
		if err := validateStringLen(c.s, c.max, c.name); err != nil {
			return err
		}
	}
	return nil
}

// validDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func validDate(s string) bool {
	if _, err := time.Parse(time.RFC3339, s); err == nil {
		return true
	}
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}

// ValidateTeam checks a team submitted through the API.
func ValidateTeam(t *Team) error {
	if t.ID != "" && !isValidUUID(t.ID) {
		return fmt.Errorf("invalid team ID format: %s", t.ID)
	}
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return errors.New("missing team name")
	}
	if strings.EqualFold(t.Name, scoring.DrawResult) {
		return fmt.Errorf("team name %q is reserved", t.Name)
	}
	if err := validateStringLen(t.Name, maxNameLen, "team name"); err != nil {
		return err
	}
	if err := validateStringLen(t.ShortName, 10, "short name"); err != nil {
		return err
	}
	if len(t.Roster) > maxRosterSz {
		return fmt.Errorf("roster too large (max %d players)", maxRosterSz)
	}
	for _, p := range t.Roster {
		if p.ID != "" && !isValidUUID(p.ID) {
			return fmt.Errorf("invalid player ID: %s", p.ID)
		}
		if err := validatePerson(p.Name, "", "player"); err != nil {
			return err
		}
		if err := validateStringLen(p.Role, 20, "role"); err != nil {
			return err
		}
	}
	return nil
}
