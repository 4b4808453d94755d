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
	"fmt"
	"iter"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/c2FmZQ/storage"

	"github.com/ttbt-io/crickeeper/backend/scoring"
)

// Match is a fixture and its scoring state as stored on disk.
type Match struct {
	ID            string                     `json:"id"`
	SchemaVersion int                        `json:"schemaVersion"`
	Date          string                     `json:"date,omitempty"`
	Event         string                     `json:"event,omitempty"`
	Venue         string                     `json:"venue,omitempty"`
	Team1         string                     `json:"team1"`
	Team2         string                     `json:"team2"`
	Team1ID       string                     `json:"team1Id,omitempty"`
	Team2ID       string                     `json:"team2Id,omitempty"`
	Config        scoring.MatchConfiguration `json:"config"`
	Status        string                     `json:"status"`

	// Checkpoint is the last persisted scoring state. Nil for a tombstone.
	Checkpoint *scoring.Snapshot    `json:"checkpoint,omitempty"`
	Result     *scoring.MatchResult `json:"result,omitempty"`
	ActionLog  []json.RawMessage    `json:"actionLog,omitempty"`

	CreatedAt int64 `json:"createdAt,omitempty"`
	UpdatedAt int64 `json:"updatedAt,omitempty"`
	// DeletedAt is the timestamp (Unix Nano) when the match was deleted.
	DeletedAt int64 `json:"deletedAt,omitempty"`
}

func (m *Match) normalize() {
	if m.SchemaVersion == 0 {
		m.SchemaVersion = CurrentSchemaVersion
	}
	if m.ActionLog == nil {
		m.ActionLog = make([]json.RawMessage, 0)
	}
}

// Clone returns a copy that can be read while the original keeps changing.
func (m *Match) Clone() *Match {
	c := *m
	c.ActionLog = slices.Clone(m.ActionLog)
	if m.Result != nil {
		r := *m.Result
		c.Result = &r
	}
	return &c
}

// Metadata returns the indexable fields of the match.
func (m *Match) Metadata() MatchMetadata {
	meta := MatchMetadata{
		ID:        m.ID,
		Date:      m.Date,
		Event:     m.Event,
		Venue:     m.Venue,
		Team1:     m.Team1,
		Team2:     m.Team2,
		Team1ID:   m.Team1ID,
		Team2ID:   m.Team2ID,
		Status:    m.Status,
		UpdatedAt: m.UpdatedAt,
		DeletedAt: m.DeletedAt,
	}
	if m.Result != nil {
		meta.Winner = m.Result.Winner
	}
	return meta
}

// MatchMetadata contains only the fields needed for indexing and listing.
type MatchMetadata struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Event     string `json:"event"`
	Venue     string `json:"venue"`
	Team1     string `json:"team1"`
	Team2     string `json:"team2"`
	Team1ID   string `json:"team1Id,omitempty"`
	Team2ID   string `json:"team2Id,omitempty"`
	Status    string `json:"status"`
	Winner    string `json:"winner,omitempty"`
	UpdatedAt int64  `json:"updatedAt"`
	DeletedAt int64  `json:"deletedAt,omitempty"`
}

// MatchStore manages match persistence to disk.
type MatchStore struct {
	DataDir string
	Debug   bool
	storage *storage.Storage
	mu      sync.Map // *sync.RWMutex per match id
	cache   sync.Map // latest JSON per match id, authoritative over disk

	dirtyMu sync.Mutex
	dirty   map[string]bool
}

// NewMatchStore creates a new MatchStore.
func NewMatchStore(dataDir string, s *storage.Storage) *MatchStore {
	return &MatchStore{
		DataDir: dataDir,
		storage: s,
		dirty:   make(map[string]bool),
	}
}

func matchFiles(id string) (data, meta string) {
	enc := url.PathEscape(id)
	return filepath.Join(matchesDir, enc+".json"), filepath.Join(matchesDir, enc+".meta.json")
}

func (ms *MatchStore) lock(id string) *sync.RWMutex {
	m, _ := ms.mu.LoadOrStore(id, &sync.RWMutex{})
	return m.(*sync.RWMutex)
}

// SaveMatch writes the match and its metadata sidecar to disk.
func (ms *MatchStore) SaveMatch(m *Match) error {
	mutex := ms.lock(m.ID)
	mutex.Lock()
	defer mutex.Unlock()
	return ms.saveLocked(m)
}

// saveLocked writes m to disk and to the cache. The caller holds the
// match's write lock.
func (ms *MatchStore) saveLocked(m *Match) error {
	filename, metaFilename := matchFiles(m.ID)
	if err := ms.storage.SaveDataFile(filename, m); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}
	meta := m.Metadata()
	if err := ms.storage.SaveDataFile(metaFilename, &meta); err != nil {
		// The main file is enough to rebuild the index.
		log.Printf("Warning: Failed to save metadata sidecar for match %s: %v", m.ID, err)
	}

	if jsonBytes, err := json.Marshal(m); err == nil {
		ms.cache.Store(m.ID, jsonBytes)
	}

	ms.dirtyMu.Lock()
	delete(ms.dirty, m.ID)
	ms.dirtyMu.Unlock()
	return nil
}

// SaveMatchInMemory updates the cache and marks the match dirty. With
// forceSync it also writes to disk before returning.
func (ms *MatchStore) SaveMatchInMemory(m *Match, forceSync bool) error {
	jsonBytes, err := json.Marshal(m)
	if err != nil {
		return err
	}
	mutex := ms.lock(m.ID)
	mutex.Lock()
	defer mutex.Unlock()
	ms.cache.Store(m.ID, jsonBytes)

	if forceSync {
		return ms.saveLocked(m)
	}

	ms.dirtyMu.Lock()
	ms.dirty[m.ID] = true
	ms.dirtyMu.Unlock()
	return nil
}

// IsDirty reports whether the match has changes not yet on disk.
func (ms *MatchStore) IsDirty(id string) bool {
	ms.dirtyMu.Lock()
	defer ms.dirtyMu.Unlock()
	return ms.dirty[id]
}

// Flush persists a specific match to disk if it is dirty. The match lock is
// held from the cache read to the disk write, so a concurrent in-memory save
// either lands first and is written, or lands after and stays dirty.
func (ms *MatchStore) Flush(id string) error {
	mutex := ms.lock(id)
	mutex.Lock()
	defer mutex.Unlock()

	if !ms.IsDirty(id) {
		return nil
	}

	val, ok := ms.cache.Load(id)
	if !ok {
		ms.dirtyMu.Lock()
		delete(ms.dirty, id)
		ms.dirtyMu.Unlock()
		return fmt.Errorf("match %s marked dirty but not found in cache", id)
	}

	var m Match
	if err := json.Unmarshal(val.([]byte), &m); err != nil {
		return fmt.Errorf("failed to unmarshal match from cache for flush: %w", err)
	}
	return ms.saveLocked(&m)
}

// FlushAll persists all dirty matches to disk.
func (ms *MatchStore) FlushAll() error {
	for _, id := range ms.dirtyIDs() {
		if err := ms.Flush(id); err != nil {
			return fmt.Errorf("failed to flush match %s: %w", id, err)
		}
	}
	return nil
}

func (ms *MatchStore) dirtyIDs() []string {
	ms.dirtyMu.Lock()
	defer ms.dirtyMu.Unlock()
	ids := make([]string, 0, len(ms.dirty))
	for id := range ms.dirty {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// LoadMatch loads a match by id. Tombstones are returned as stored; callers
// check Status. A missing match yields os.ErrNotExist.
func (ms *MatchStore) LoadMatch(id string) (*Match, error) {
	if val, ok := ms.cache.Load(id); ok {
		var m Match
		if err := json.Unmarshal(val.([]byte), &m); err == nil {
			if ms.Debug {
				log.Printf("[CACHE] Hit for match %s", id)
			}
			m.normalize()
			return &m, nil
		}
		ms.cache.Delete(id)
	}
	if ms.Debug {
		log.Printf("[CACHE] Miss for match %s", id)
	}

	mutex := ms.lock(id)
	mutex.RLock()
	defer mutex.RUnlock()

	filename, _ := matchFiles(id)
	var m Match
	if err := ms.storage.ReadDataFile(filename, &m); err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("ReadDataFile: %w", err)
	}
	if m.SchemaVersion > CurrentSchemaVersion {
		return nil, fmt.Errorf("match %s has unsupported schema version %d", id, m.SchemaVersion)
	}
	m.normalize()

	if jsonBytes, err := json.Marshal(&m); err == nil {
		ms.cache.Store(id, jsonBytes)
	}
	return &m, nil
}

// DeleteMatch replaces the match with a tombstone.
func (ms *MatchStore) DeleteMatch(id string) error {
	m, err := ms.LoadMatch(id)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	mutex := ms.lock(id)
	mutex.Lock()
	defer mutex.Unlock()

	tombstone := &Match{
		ID:            id,
		SchemaVersion: CurrentSchemaVersion,
		Team1:         m.Team1,
		Team2:         m.Team2,
		Status:        StatusDeleted,
		DeletedAt:     time.Now().UnixNano(),
	}
	tombstone.UpdatedAt = tombstone.DeletedAt

	filename, metaFilename := matchFiles(id)
	if err := ms.storage.SaveDataFile(filename, tombstone); err != nil {
		return fmt.Errorf("storage.SaveDataFile (tombstone): %w", err)
	}
	meta := tombstone.Metadata()
	if err := ms.storage.SaveDataFile(metaFilename, &meta); err != nil {
		log.Printf("Warning: Failed to save metadata tombstone for match %s: %v", id, err)
	}

	if jsonBytes, err := json.Marshal(tombstone); err == nil {
		ms.cache.Store(id, jsonBytes)
	}
	ms.dirtyMu.Lock()
	delete(ms.dirty, id)
	ms.dirtyMu.Unlock()
	return nil
}

// PurgeMatch permanently deletes the match files.
func (ms *MatchStore) PurgeMatch(id string) error {
	mutex := ms.lock(id)
	mutex.Lock()
	defer mutex.Unlock()

	ms.cache.Delete(id)
	ms.dirtyMu.Lock()
	delete(ms.dirty, id)
	ms.dirtyMu.Unlock()

	filename, metaFilename := matchFiles(id)
	if err := os.Remove(filepath.Join(ms.DataDir, filename)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not purge match file: %w", err)
	}
	if err := os.Remove(filepath.Join(ms.DataDir, metaFilename)); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not purge meta file for match %s: %v", id, err)
	}
	return nil
}

// scanIDs lists the match ids on disk, split by whether a metadata sidecar
// exists.
func (ms *MatchStore) scanIDs() (withMeta, dataOnly []string, err error) {
	files, err := os.ReadDir(filepath.Join(ms.DataDir, matchesDir))
	if err != nil && !os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("could not read matches directory: %w", err)
	}
	hasMeta := make(map[string]bool)
	var all []string
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		name := file.Name()
		if enc, ok := strings.CutSuffix(name, ".meta.json"); ok {
			if id, err := url.PathUnescape(enc); err == nil {
				hasMeta[id] = true
			}
			continue
		}
		if enc, ok := strings.CutSuffix(name, ".json"); ok {
			if id, err := url.PathUnescape(enc); err == nil {
				all = append(all, id)
			}
		}
	}
	for _, id := range all {
		if hasMeta[id] {
			withMeta = append(withMeta, id)
		} else {
			dataOnly = append(dataOnly, id)
		}
	}
	return withMeta, dataOnly, nil
}

// ListAllMatchMetadata returns metadata for all matches, tombstones
// included, without loading full action logs. Dirty matches are read from
// the cache so the listing reflects unflushed changes.
func (ms *MatchStore) ListAllMatchMetadata() iter.Seq2[MatchMetadata, error] {
	return func(yield func(MatchMetadata, error) bool) {
		withMeta, dataOnly, err := ms.scanIDs()
		if err != nil {
			yield(MatchMetadata{}, err)
			return
		}
		dirty := make(map[string]bool)
		for _, id := range ms.dirtyIDs() {
			dirty[id] = true
		}
		seen := make(map[string]bool)

		fromMatch := func(id string) bool {
			m, err := ms.LoadMatch(id)
			if err != nil {
				log.Printf("Registry Warning: failed to load match %s: %v", id, err)
				return true
			}
			return yield(m.Metadata(), nil)
		}

		for _, id := range withMeta {
			seen[id] = true
			if dirty[id] {
				if !fromMatch(id) {
					return
				}
				continue
			}
			_, metaFilename := matchFiles(id)
			var meta MatchMetadata
			if err := ms.storage.ReadDataFile(metaFilename, &meta); err != nil {
				log.Printf("Registry Warning: failed to load metadata for %s: %v. Falling back to main file.", id, err)
				if !fromMatch(id) {
					return
				}
				continue
			}
			if !yield(meta, nil) {
				return
			}
		}
		for _, id := range dataOnly {
			seen[id] = true
			if !fromMatch(id) {
				return
			}
		}
		for id := range dirty {
			if seen[id] {
				continue
			}
			if !fromMatch(id) {
				return
			}
		}
	}
}

// ListAllMatches returns an iterator over all stored matches, tombstones
// included, plus matches created in memory and not yet flushed.
func (ms *MatchStore) ListAllMatches() iter.Seq2[*Match, error] {
	return func(yield func(*Match, error) bool) {
		withMeta, dataOnly, err := ms.scanIDs()
		if err != nil {
			yield(nil, err)
			return
		}
		ids := append(withMeta, dataOnly...)
		seen := make(map[string]bool, len(ids))
		for _, id := range ms.dirtyIDs() {
			if !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
		slices.Sort(ids)
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			m, err := ms.LoadMatch(id)
			if err != nil {
				log.Printf("Warning: could not load match '%s': %v", id, err)
				continue
			}
			if !yield(m, nil) {
				return
			}
		}
	}
}
