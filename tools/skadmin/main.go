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

// skadmin inspects a crickeeper data directory.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/c2FmZQ/storage"
	"github.com/spf13/cobra"

	"github.com/ttbt-io/crickeeper/backend"
)

var (
	dataDir       string
	passphraseEnv string
	configFile    string
	saveStandings bool
)

func main() {
	log.SetFlags(0)
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "skadmin",
		Short:        "Inspect crickeeper match and standings data",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "data", "Directory for match, team and standings data")
	rootCmd.PersistentFlags().StringVar(&passphraseEnv, "passphrase-env", "CRICKEEPER_PASSPHRASE", "Environment variable holding the master key passphrase")

	standingsCmd := &cobra.Command{
		Use:   "standings",
		Short: "Recompute the points table from stored results",
		Args:  cobra.NoArgs,
		RunE:  runStandingsCmd,
	}
	standingsCmd.Flags().BoolVar(&saveStandings, "save", false, "Replace the stored table with the result")
	standingsCmd.Flags().StringVar(&configFile, "config", "", "Tournament YAML file declaring extra teams")

	scorecardCmd := &cobra.Command{
		Use:   "scorecard <matchId>",
		Short: "Print the checkpointed scorecard of a match",
		Args:  cobra.ExactArgs(1),
		RunE:  runScorecardCmd,
	}

	readfileCmd := &cobra.Command{
		Use:   "readfile <path>...",
		Short: "Dump decrypted data files as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runReadfileCmd,
	}

	rootCmd.AddCommand(standingsCmd, scorecardCmd, readfileCmd)
	return rootCmd
}

func openStorage() (*storage.Storage, error) {
	s, _, err := backend.OpenStorage(dataDir, os.Getenv(passphraseEnv))
	return s, err
}

func runStandingsCmd(cmd *cobra.Command, _ []string) error {
	s, err := openStorage()
	if err != nil {
		return err
	}
	var tournament *backend.TournamentConfig
	if configFile != "" {
		if tournament, err = backend.LoadTournamentConfig(configFile); err != nil {
			return err
		}
	}
	svc := backend.NewStandingsService(
		backend.NewMatchStore(dataDir, s),
		backend.NewTeamStore(dataDir, s),
		backend.NewStandingsStore(s),
		tournament,
		nil,
	)
	var table *backend.StandingsTable
	if saveStandings {
		table, err = svc.Recompute()
	} else {
		table, err = svc.Preview()
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderStandings(table))
	return nil
}

func runScorecardCmd(cmd *cobra.Command, args []string) error {
	s, err := openStorage()
	if err != nil {
		return err
	}
	m, err := backend.NewMatchStore(dataDir, s).LoadMatch(args[0])
	if err != nil {
		return fmt.Errorf("load match %s: %w", args[0], err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderScorecard(m))
	return nil
}

func runReadfileCmd(cmd *cobra.Command, args []string) error {
	s, err := openStorage()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	for _, arg := range args {
		arg = strings.TrimPrefix(strings.TrimPrefix(arg, dataDir), "/")
		var obj any
		switch {
		case strings.HasPrefix(arg, "matches/"):
			obj = new(backend.Match)
		case strings.HasPrefix(arg, "teams/"):
			obj = new(backend.Team)
		case strings.HasPrefix(arg, "standings"):
			obj = new(backend.StandingsTable)
		default:
			obj = new(map[string]any)
		}
		if err := s.ReadDataFile(arg, obj); err != nil {
			log.Printf("%s: %v", arg, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "=========== %s ===========\n", arg)
		if err := enc.Encode(obj); err != nil {
			log.Printf("JSON: %s: %v", arg, err)
		}
	}
	return nil
}
