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

package main

import (
	"context"
	"crypto/tls"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ttbt-io/crickeeper/backend"
)

var (
	addr        = flag.String("addr", ":8080", "The TCP address to listen to")
	debugMode   = flag.Bool("debug", false, "Enable debug mode")
	dataDir     = flag.String("data-dir", "data", "Directory for match, team and standings data")
	configFile  = flag.String("config", "", "Tournament YAML file (teams, rosters, match defaults)")
	tlsCert     = flag.String("tls-cert", "", "Path to HTTP TLS certificate")
	tlsKey      = flag.String("tls-key", "", "Path to HTTP TLS key")
	hubIdle     = flag.Duration("hub-idle", 5*time.Minute, "Unload a match hub after this long without requests")
	passphraseV = flag.String("passphrase-env", "CRICKEEPER_PASSPHRASE", "Environment variable holding the master key passphrase")
)

// main starts the scoring server.
func main() {
	flag.Parse()

	var cert *tls.Certificate
	if *tlsCert != "" && *tlsKey != "" {
		c, err := tls.LoadX509KeyPair(*tlsCert, *tlsKey)
		if err != nil {
			log.Fatalf("Failed to load TLS cert/key: %v", err)
		}
		cert = &c
	}

	tournament := backend.DefaultTournamentConfig()
	if *configFile != "" {
		var err error
		if tournament, err = backend.LoadTournamentConfig(*configFile); err != nil {
			log.Fatalf("Failed to load tournament config: %v", err)
		}
		log.Printf("Loaded tournament %q with %d teams", tournament.Name, len(tournament.Teams))
	}

	store, _, err := backend.OpenStorage(*dataDir, os.Getenv(*passphraseV))
	if err != nil {
		log.Fatalf("Critical Security Error: %v", err)
	}

	server, err := backend.StartServer(backend.Options{
		Addr:           *addr,
		DataDir:        *dataDir,
		Debug:          *debugMode,
		Cert:           cert,
		Storage:        store,
		Tournament:     tournament,
		Metrics:        backend.NewMetrics(),
		HubIdleTimeout: *hubIdle,
	})
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	// Wait for interrupt signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
