// Copyright 2025
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mansion-watch/mwdata/alias"
	"github.com/mansion-watch/mwdata/catalog"
	"github.com/mansion-watch/mwdata/data"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var aliasesRefresh bool

// aliasesCmd represents the aliases command
var aliasesCmd = &cobra.Command{
	Use:   "aliases <building-id...>",
	Short: "Show or rebuild the name aliases observed for a building",
	Long: `Every spelling a portal has used for a building is kept in its alias
ledger, with occurrence counts and the portals it appeared on. The ledger
accretes during ingest; --refresh rebuilds it from the building's current
listings, which is useful after merges moved listings around.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myCatalog, err := catalog.NewFromDB(ctx, viper.GetString("db.url"))
		if err != nil {
			log.Fatal().Err(err).Msg("could not connect to catalog")
		}
		defer myCatalog.Close()

		for _, buildingID := range parseIDs(args) {
			if aliasesRefresh {
				err := myCatalog.WithRetry(ctx, func(tx pgx.Tx) error {
					return alias.Refresh(ctx, tx, buildingID)
				})
				if err != nil {
					log.Fatal().Err(err).Int64("BuildingID", buildingID).Msg("could not refresh aliases")
				}
			}

			entries, err := data.AliasesForBuilding(ctx, myCatalog.Pool, buildingID)
			if err != nil {
				log.Fatal().Err(err).Int64("BuildingID", buildingID).Msg("could not load aliases")
			}

			fmt.Printf("building %d:\n", buildingID)
			for _, entry := range entries {
				fmt.Printf("  %s  ×%d  %v\n", entry.DisplayName, entry.OccurrenceCount, entry.SourceSites)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(aliasesCmd)
	aliasesCmd.Flags().BoolVarP(&aliasesRefresh, "refresh", "r", false, "rebuild the ledger from the building's current listings before showing it")
}
