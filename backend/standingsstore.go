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
	"fmt"
	"os"
	"sync"

	"github.com/c2FmZQ/storage"

	"github.com/ttbt-io/crickeeper/backend/standings"
)

// StandingsTable is the persisted points table. It is always written as a
// whole.
type StandingsTable struct {
	SchemaVersion int                    `json:"schemaVersion"`
	Tournament    string                 `json:"tournament,omitempty"`
	UpdatedAt     int64                  `json:"updatedAt"`
	Matches       int                    `json:"matches"`
	Rows          []standings.Row        `json:"rows"`
	Diagnostics   []standings.Diagnostic `json:"diagnostics,omitempty"`
}

// StandingsStore persists the single standings document.
type StandingsStore struct {
	storage *storage.Storage
	mu      sync.RWMutex
}

// NewStandingsStore creates a new StandingsStore.
func NewStandingsStore(s *storage.Storage) *StandingsStore {
	return &StandingsStore{storage: s}
}

// Save replaces the stored table.
func (ss *StandingsStore) Save(t *StandingsTable) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if t.SchemaVersion == 0 {
		t.SchemaVersion = CurrentSchemaVersion
	}
	if err := ss.storage.SaveDataFile(standingsFile, t); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}
	return nil
}

// Load returns the stored table, or os.ErrNotExist before the first save.
func (ss *StandingsStore) Load() (*StandingsTable, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	var t StandingsTable
	if err := ss.storage.ReadDataFile(standingsFile, &t); err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("ReadDataFile: %w", err)
	}
	if t.Rows == nil {
		t.Rows = make([]standings.Row, 0)
	}
	return &t, nil
}
