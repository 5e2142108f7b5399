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

	"github.com/mansion-watch/mwdata/catalog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// enableCmd represents the enable command
var enableCmd = &cobra.Command{
	Use:   "enable <subscription-id>",
	Short: "Enable inactive subscriptions",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myCatalog, err := catalog.NewFromDB(ctx, viper.GetString("db.url"))
		if err != nil {
			log.Fatal().Err(err).Msg("could not load catalog info")
		}
		defer myCatalog.Close()

		for _, id := range args {
			sub, err := myCatalog.SubscriptionFromID(ctx, id)
			if err != nil {
				log.Fatal().Err(err).Str("ID", id).Msg("could not get subscription for ID")
			}

			if err := sub.Activate(ctx); err != nil {
				log.Fatal().Err(err).Msg("could not activate subscription")
			}

			log.Info().Str("ID", id).Msg("subscription enabled")
		}
	},
}

func init() {
	rootCmd.AddCommand(enableCmd)
}
