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
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/c2FmZQ/storage"
	"github.com/c2FmZQ/storage/crypto"
)

// ErrUnencryptedRefused is returned when a master key file exists but no
// passphrase was supplied.
var ErrUnencryptedRefused = errors.New("master key exists but no passphrase provided")

// OpenStorage opens the data directory. With a passphrase the master key in
// dataDir/master.key is read, or created on first use. Without one the data
// is stored unencrypted, unless a key file already exists.
func OpenStorage(dataDir, passphrase string) (*storage.Storage, crypto.MasterKey, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}
	keyFile := filepath.Join(dataDir, masterKeyFile)

	var masterKey crypto.MasterKey
	if passphrase != "" {
		var err error
		masterKey, err = crypto.ReadMasterKey([]byte(passphrase), keyFile)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, nil, fmt.Errorf("read master key: %w", err)
			}
			log.Println("Initializing new master encryption key...")
			if masterKey, err = crypto.CreateMasterKey(); err != nil {
				return nil, nil, fmt.Errorf("create master key: %w", err)
			}
			if err := masterKey.Save([]byte(passphrase), keyFile); err != nil {
				return nil, nil, fmt.Errorf("save master key: %w", err)
			}
		} else {
			log.Println("Loaded master encryption key.")
		}
	} else {
		if _, err := os.Stat(keyFile); err == nil {
			return nil, nil, fmt.Errorf("%s: %w", keyFile, ErrUnencryptedRefused)
		}
		log.Println("Warning: No master key passphrase provided. Data will be stored UNENCRYPTED.")
	}

	s := storage.New(dataDir, masterKey)
	s.EnableCompression(true)
	return s, masterKey, nil
}
