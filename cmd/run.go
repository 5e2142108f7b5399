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
	"github.com/mansion-watch/mwdata/data"
	"github.com/mansion-watch/mwdata/healthcheck"
	"github.com/mansion-watch/mwdata/lifecycle"
	"github.com/mansion-watch/mwdata/resolve"
	"github.com/mansion-watch/mwdata/sources"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runSkipSweep bool

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [subscription-id...]",
	Short: "Run crawl subscriptions",
	Long: `The run sub-command executes crawl subscriptions and resolves the listing
sightings they produce into the catalog. If no arguments are provided then
every active subscription is executed sequentially. If subscription IDs are
provided then those subscriptions execute (ignoring any set schedule and the
active flag).

After each subscription finishes the lifecycle sweep runs: listings not
confirmed inside the staleness threshold are delisted and units whose
listings have all disappeared are marked sold.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myCatalog, err := catalog.NewFromDB(ctx, viper.GetString("db.url"))
		if err != nil {
			log.Fatal().Err(err).Msg("could not connect to catalog")
		}
		defer myCatalog.Close()

		var subscriptions []*catalog.Subscription

		if len(args) == 0 {
			all, err := myCatalog.Subscriptions(ctx)
			if err != nil {
				log.Fatal().Err(err).Msg("could not list subscriptions")
			}

			for _, subscription := range all {
				if subscription.Active {
					subscriptions = append(subscriptions, subscription)
				}
			}

			if len(subscriptions) == 0 {
				log.Warn().Msg("no active subscriptions to run")
				return
			}
		} else {
			for _, subscriptionID := range args {
				subscription, err := myCatalog.SubscriptionFromID(ctx, subscriptionID)
				if err != nil {
					log.Fatal().Err(err).Str("SubscriptionID", subscriptionID).Msg("could not load subscription")
				}

				subscriptions = append(subscriptions, subscription)
			}
		}

		resolver := resolve.New(myCatalog)

		sweeper := &lifecycle.Sweeper{
			Catalog:          myCatalog,
			StalledThreshold: viper.GetDuration("lifecycle.stalled_listing_threshold"),
			FinalPriceWindow: viper.GetDuration("lifecycle.final_price_window"),
		}

		for _, subscription := range subscriptions {
			executeSubscription(ctx, subscription, resolver, sweeper)
		}
	},
}

func executeSubscription(ctx context.Context, subscription *catalog.Subscription, resolver *resolve.Resolver, sweeper *lifecycle.Sweeper) {
	fetchLogger := log.With().
		Str("SubscriptionID", subscription.ID.String()).
		Str("Source", subscription.Source).
		Str("Area", subscription.Area).Logger()

	src, ok := sources.Map[subscription.Source]
	if !ok {
		fetchLogger.Fatal().Str("SourceKey", subscription.Source).Msg("subscription is mis-configured, source not found")
	}

	out := make(chan data.RawListing, 100)
	summaryChan := make(chan data.RunSummary, 1)

	fetchCtx := fetchLogger.WithContext(ctx)

	startTime := time.Now()

	go func() {
		src.Fetch(fetchCtx, subscription, out, summaryChan)
		close(out)
	}()

	stats := resolver.Process(fetchCtx, out)
	runSummary := <-summaryChan

	// delist anything that went unconfirmed and infer sales; listings this
	// run just confirmed are untouched by the sweep
	if !runSkipSweep {
		sweepStats, err := sweeper.Sweep(ctx)
		if err != nil {
			fetchLogger.Error().Err(err).Msg("lifecycle sweep failed")
		} else {
			fetchLogger.Info().Int("Deactivated", sweepStats.Deactivated).
				Int("Reactivated", sweepStats.Reactivated).Int("Sold", sweepStats.Sold).
				Int("Reopened", sweepStats.Reopened).Msg("lifecycle sweep complete")
		}
	}

	if subscription.HealthCheckID != "" {
		pinger := healthcheck.Ping
		if runSummary.Status != data.RunSuccess {
			pinger = healthcheck.PingFailure
		}

		if err := pinger(subscription.HealthCheckID); err != nil {
			fetchLogger.Warn().Err(err).Msg("could not ping healthcheck")
		}
	}

	endTime := time.Now()

	run, err := catalog.NewCrawlRun(subscription.ID, startTime, endTime, stats)
	if err != nil {
		fetchLogger.Error().Err(err).Msg("could not build crawl run record")
		return
	}

	if err := subscription.RecordRun(ctx, run); err != nil {
		fetchLogger.Error().Err(err).Msg("could not record crawl run")
	}

	runTime := endTime.Sub(startTime)

	fetchLogger.Info().Str("RunTime", durafmt.Parse(runTime).String()).
		Int("ListingsSeen", stats.ListingsSeen).
		Int("BuildingsCreated", stats.BuildingsCreated).
		Int("PropertiesCreated", stats.PropertiesCreated).
		Int("ListingsCreated", stats.ListingsCreated).
		Int("Reattached", stats.Reattached).
		Int("PriceChanges", stats.PriceChanges).
		Int("Errors", stats.Errors).
		Msg("subscription run complete")
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runSkipSweep, "skip-sweep", false, "do not run the lifecycle sweep after each subscription")
}
