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
	"time"

	"github.com/hako/durafmt"
	"github.com/mansion-watch/mwdata/catalog"
	"github.com/mansion-watch/mwdata/lifecycle"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// sweepCmd represents the sweep command
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delist stalled listings and infer sold units",
	Long: `The sweep sub-command applies the time-based lifecycle transitions without
running any crawl: listings that have not been confirmed inside the
staleness threshold are delisted, listings confirmed again are reactivated,
and units whose listings have all disappeared are marked sold with an
inferred sold date and final price.

The run sub-command performs the same sweep after each subscription; sweep
exists for catalogs whose crawls are long-running or paused.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myCatalog, err := catalog.NewFromDB(ctx, viper.GetString("db.url"))
		if err != nil {
			log.Fatal().Err(err).Msg("could not connect to catalog")
		}
		defer myCatalog.Close()

		sweeper := &lifecycle.Sweeper{
			Catalog:          myCatalog,
			StalledThreshold: viper.GetDuration("lifecycle.stalled_listing_threshold"),
			FinalPriceWindow: viper.GetDuration("lifecycle.final_price_window"),
		}

		startTime := time.Now()

		stats, err := sweeper.Sweep(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("lifecycle sweep failed")
		}

		log.Info().Str("RunTime", durafmt.Parse(time.Since(startTime)).String()).
			Int("Deactivated", stats.Deactivated).
			Int("Reactivated", stats.Reactivated).
			Int("Sold", stats.Sold).
			Int("Reopened", stats.Reopened).
			Int("Refreshed", stats.Refreshed).
			Msg("lifecycle sweep complete")
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
