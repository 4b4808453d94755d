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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ttbt-io/crickeeper/backend/scoring"
)

var (
	// ErrHubBusy is returned when a match hub's request queue is full.
	ErrHubBusy = errors.New("match hub busy")
	// ErrHubStopped is returned for requests that arrive during shutdown.
	ErrHubStopped = errors.New("match hub stopped")
)

const (
	defaultHubIdleTimeout = 5 * time.Minute
	hubQueueSize          = 64
)

// HubRequest types
const (
	ReqTypeLoad       = "LOAD"
	ReqTypeAction     = "ACTION"
	ReqTypeCheckpoint = "CHECKPOINT"
	ReqTypeDelete     = "DELETE"
)

// HubRequest is one unit of work for a match hub.
type HubRequest struct {
	Type   string
	Action json.RawMessage // ReqTypeAction
	Reply  chan HubResponse
}

// HubResponse is the hub's answer. Match is a private copy.
type HubResponse struct {
	Match   *Match
	Result  *ActionResult
	CanUndo bool
	CanRedo bool
	Error   error
}

// MatchHub owns the in-memory state of one match. All requests are handled
// one at a time on the hub goroutine, so the session needs no locking.
type MatchHub struct {
	matchID    string
	requests   chan HubRequest
	match      *Match
	session    *scoring.Session
	lastActive time.Time
	hm         *HubManager
}

func newMatchHub(id string, hm *HubManager) *MatchHub {
	return &MatchHub{
		matchID:    id,
		requests:   make(chan HubRequest, hubQueueSize),
		lastActive: time.Now(),
		hm:         hm,
	}
}

func (h *MatchHub) run() {
	defer h.hm.wg.Done()
	idleTimer := time.NewTicker(max(h.hm.idleTimeout/2, time.Millisecond))
	defer idleTimer.Stop()

	for {
		select {
		case req := <-h.requests:
			h.handle(req)
			h.lastActive = time.Now()
		case <-idleTimer.C:
			if time.Since(h.lastActive) < h.hm.idleTimeout {
				continue
			}
			if h.hm.release(h) {
				h.unload()
				return
			}
		case <-h.hm.quit:
			for {
				select {
				case req := <-h.requests:
					req.Reply <- HubResponse{Error: ErrHubStopped}
				default:
					h.unload()
					return
				}
			}
		}
	}
}

func (h *MatchHub) unload() {
	if err := h.hm.matches.Flush(h.matchID); err != nil {
		log.Printf("[HUB] Failed to flush match %s: %v", h.matchID, err)
	}
	h.hm.debugf("[HUB] Unloaded match %s", h.matchID)
}

func (h *MatchHub) handle(req HubRequest) {
	if err := h.ensureLoaded(); err != nil {
		req.Reply <- HubResponse{Error: err}
		return
	}
	switch req.Type {
	case ReqTypeLoad:
		req.Reply <- HubResponse{Match: h.match.Clone(), CanUndo: h.session.CanUndo(), CanRedo: h.session.CanRedo()}
	case ReqTypeAction:
		h.handleAction(req)
	case ReqTypeCheckpoint:
		h.handleCheckpoint(req)
	case ReqTypeDelete:
		h.handleDelete(req)
	default:
		req.Reply <- HubResponse{Error: fmt.Errorf("unknown hub request %q", req.Type)}
	}
}

// ensureLoaded restores the match and its session from the store.
func (h *MatchHub) ensureLoaded() error {
	if h.match != nil {
		return nil
	}
	m, err := h.hm.matches.LoadMatch(h.matchID)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[HUB] Error loading match %s: %v", h.matchID, err)
		}
		return err
	}
	if m.Status == StatusDeleted {
		return os.ErrNotExist
	}
	var sess *scoring.Session
	if m.Checkpoint != nil {
		sess, err = scoring.Restore(m.Checkpoint)
	} else {
		sess, err = scoring.NewSession(m.Config)
	}
	if err != nil {
		return fmt.Errorf("restore match %s: %w", h.matchID, err)
	}
	h.match, h.session = m, sess
	h.hm.debugf("[HUB] Loaded match %s (%s)", h.matchID, m.Status)
	return nil
}

func (h *MatchHub) handleAction(req HubRequest) {
	res, err := ApplyAction(h.match, h.session, h.linkRoster(req.Action))
	if err != nil {
		h.hm.metrics.RecordRejected(rejectReason(err))
		h.hm.debugf("[HUB] Match %s rejected action: %v", h.matchID, err)
		req.Reply <- HubResponse{Result: &res, Error: err}
		return
	}
	if !res.Applied {
		if res.Notice != "" {
			h.hm.metrics.RecordRejected(noticeReason(res.Notice))
		}
		req.Reply <- HubResponse{Result: &res}
		return
	}
	h.hm.metrics.RecordAction(res.Type, res.Ball)

	finalized := res.Type == ActionFinalize
	var saveErr error
	if err := h.hm.matches.SaveMatchInMemory(h.match, finalized); err != nil {
		log.Printf("[HUB] Failed to save match %s: %v", h.matchID, err)
		saveErr = fmt.Errorf("save match: %w", err)
		if finalized {
			// Keep the finalized state queued for the next flush.
			_ = h.hm.matches.SaveMatchInMemory(h.match, false)
		}
	}
	if h.hm.registry != nil {
		h.hm.registry.UpdateMatch(h.match.Metadata())
	}
	if finalized {
		log.Printf("[HUB] Match %s finalized: %s", h.matchID, h.session.ResultSummary())
		h.hm.recomputeStandings()
	}
	req.Reply <- HubResponse{Match: h.match.Clone(), Result: &res, Error: saveErr}
}

// linkRoster fills a missing registrationRef on SET_BATTER and SET_BOWLER
// from the squad of the registered team, matching the player by name.
// Anything it cannot resolve is passed through unchanged.
func (h *MatchHub) linkRoster(raw json.RawMessage) json.RawMessage {
	if h.hm.teams == nil {
		return raw
	}
	var action BaseAction
	if err := json.Unmarshal(raw, &action); err != nil {
		return raw
	}
	state := h.session.State()
	var (
		side    string
		name    string
		payload any
		setRef  func(string)
	)
	switch action.Type {
	case ActionSetBatter:
		var p SetBatterPayload
		if err := decodePayload(action.Payload, &p); err != nil || p.RegistrationRef != "" {
			return raw
		}
		side, name, payload = state.BattingTeam, p.Name, &p
		setRef = func(ref string) { p.RegistrationRef = ref }
	case ActionSetBowler:
		var p SetBowlerPayload
		if err := decodePayload(action.Payload, &p); err != nil || p.RegistrationRef != "" {
			return raw
		}
		side, name, payload = state.BowlingTeam, p.Name, &p
		setRef = func(ref string) { p.RegistrationRef = ref }
	default:
		return raw
	}

	var teamID string
	switch side {
	case h.match.Team1:
		teamID = h.match.Team1ID
	case h.match.Team2:
		teamID = h.match.Team2ID
	}
	if teamID == "" {
		return raw
	}
	team, err := h.hm.teams.LoadTeam(teamID)
	if err != nil || team.IsDeleted() {
		return raw
	}
	player, ok := team.FindPlayer(strings.TrimSpace(name))
	if !ok {
		return raw
	}
	setRef(player.ID)
	if action.Payload, err = json.Marshal(payload); err != nil {
		return raw
	}
	linked, err := json.Marshal(action)
	if err != nil {
		return raw
	}
	h.hm.debugf("[HUB] Match %s linked %q to player %s of %s", h.matchID, name, player.ID, team.Name)
	return linked
}

func (h *MatchHub) handleCheckpoint(req HubRequest) {
	h.match.Checkpoint = h.session.Snapshot()
	h.match.UpdatedAt = time.Now().UnixNano()
	if err := h.hm.matches.SaveMatchInMemory(h.match, true); err != nil {
		req.Reply <- HubResponse{Error: fmt.Errorf("checkpoint match: %w", err)}
		return
	}
	if h.hm.registry != nil {
		h.hm.registry.UpdateMatch(h.match.Metadata())
	}
	req.Reply <- HubResponse{Match: h.match.Clone()}
}

func (h *MatchHub) handleDelete(req HubRequest) {
	completed := h.match.Status == StatusCompleted
	if err := h.hm.matches.DeleteMatch(h.matchID); err != nil {
		req.Reply <- HubResponse{Error: err}
		return
	}
	if h.hm.registry != nil {
		h.hm.registry.DeleteMatch(h.matchID)
	}
	h.match, h.session = nil, nil
	if completed {
		h.hm.recomputeStandings()
	}
	req.Reply <- HubResponse{}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAction):
		return "invalid"
	case errors.Is(err, scoring.ErrMatchFinalized):
		return "finalized"
	case errors.Is(err, scoring.ErrNotFirstInnings):
		return "innings_started"
	case errors.Is(err, scoring.ErrMatchUndecided):
		return "undecided"
	}
	return "invalid_value"
}

func noticeReason(notice string) string {
	switch notice {
	case NoticeInningsClosed:
		return "innings_closed"
	case NoticeNothingToUndo, NoticeNothingToRedo:
		return "empty_history"
	case NoticeConfirmSecondStart:
		return "needs_confirmation"
	}
	return "notice"
}

// HubManager owns the live match hubs.
type HubManager struct {
	matches   *MatchStore
	teams     *TeamStore
	registry  *Registry
	standings *StandingsService
	metrics   *Metrics
	debug     bool

	idleTimeout time.Duration

	mu      sync.Mutex
	hubs    map[string]*MatchHub
	stopped bool
	quit    chan struct{}
	wg      sync.WaitGroup
}

// HubOptions configures a HubManager. Teams, Registry, Standings and
// Metrics are optional.
type HubOptions struct {
	Matches     *MatchStore
	Teams       *TeamStore
	Registry    *Registry
	Standings   *StandingsService
	Metrics     *Metrics
	IdleTimeout time.Duration
	Debug       bool
}

// NewHubManager creates a HubManager.
func NewHubManager(opts HubOptions) *HubManager {
	idle := opts.IdleTimeout
	if idle <= 0 {
		idle = defaultHubIdleTimeout
	}
	return &HubManager{
		matches:     opts.Matches,
		teams:       opts.Teams,
		registry:    opts.Registry,
		standings:   opts.Standings,
		metrics:     opts.Metrics,
		debug:       opts.Debug,
		idleTimeout: idle,
		hubs:        make(map[string]*MatchHub),
		quit:        make(chan struct{}),
	}
}

func (hm *HubManager) debugf(format string, args ...any) {
	if hm.debug {
		log.Printf(format, args...)
	}
}

// Submit queues req on the hub of matchID, starting the hub if needed, and
// waits for the reply. It fails fast with ErrHubBusy when the queue is full.
func (hm *HubManager) Submit(ctx context.Context, matchID string, req HubRequest) (HubResponse, error) {
	req.Reply = make(chan HubResponse, 1)

	hm.mu.Lock()
	if hm.stopped {
		hm.mu.Unlock()
		return HubResponse{}, ErrHubStopped
	}
	hub, ok := hm.hubs[matchID]
	if !ok {
		hub = newMatchHub(matchID, hm)
		hm.hubs[matchID] = hub
		hm.wg.Add(1)
		go hub.run()
		hm.metrics.SetLiveHubs(len(hm.hubs))
	}
	select {
	case hub.requests <- req:
	default:
		hm.mu.Unlock()
		return HubResponse{}, ErrHubBusy
	}
	hm.mu.Unlock()

	select {
	case resp := <-req.Reply:
		return resp, resp.Error
	case <-ctx.Done():
		return HubResponse{}, ctx.Err()
	}
}

// release removes an idle hub unless requests were queued after the idle
// check. Requests are only queued under hm.mu, so none can be lost.
func (hm *HubManager) release(h *MatchHub) bool {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	if len(h.requests) > 0 {
		return false
	}
	delete(hm.hubs, h.matchID)
	hm.metrics.SetLiveHubs(len(hm.hubs))
	return true
}

// LiveHubs returns the number of loaded hubs.
func (hm *HubManager) LiveHubs() int {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	return len(hm.hubs)
}

// Stop ends all hubs, flushing their matches. Later requests fail with
// ErrHubStopped.
func (hm *HubManager) Stop() {
	hm.mu.Lock()
	if hm.stopped {
		hm.mu.Unlock()
		return
	}
	hm.stopped = true
	close(hm.quit)
	hm.mu.Unlock()

	hm.wg.Wait()
	hm.mu.Lock()
	hm.hubs = make(map[string]*MatchHub)
	hm.metrics.SetLiveHubs(0)
	hm.mu.Unlock()
}

func (hm *HubManager) recomputeStandings() {
	if hm.standings == nil {
		return
	}
	if _, err := hm.standings.Recompute(); err != nil {
		log.Printf("[STANDINGS] Recompute failed: %v", err)
	}
}
