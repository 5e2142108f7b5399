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

	"github.com/charmbracelet/huh"
	"github.com/mansion-watch/mwdata/catalog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var deleteSubscription bool

// unsubscribeCmd represents the unsubscribe command
var unsubscribeCmd = &cobra.Command{
	Use:   "unsubscribe <subscription-id>",
	Short: "Stop crawling the specified subscription",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myCatalog, err := catalog.NewFromDB(ctx, viper.GetString("db.url"))
		if err != nil {
			log.Fatal().Err(err).Msg("could not load catalog info")
		}
		defer myCatalog.Close()

		action := "de-activate"
		if deleteSubscription {
			action = "delete"
		}

		for _, id := range args {
			sub, err := myCatalog.SubscriptionFromID(ctx, id)
			if err != nil {
				log.Fatal().Err(err).Str("ID", id).Msg("could not get subscription for ID")
			}

			confirmed := false
			confirmForm := huh.NewForm(
				huh.NewGroup(
					huh.NewConfirm().
						Title(fmt.Sprintf("Are you sure you want to %s '%s'?", action, sub.Name)).
						Value(&confirmed),
				),
			)

			err = confirmForm.Run()
			if err != nil {
				log.Fatal().Err(err).Msg("failed to create wizard")
			}

			if confirmed {
				fmt.Printf("%s '%s'...\n", action, sub.Name)
				if deleteSubscription {
					if err := sub.Delete(ctx); err != nil {
						log.Fatal().Err(err).Msg("could not delete subscription")
					}
				} else {
					if err := sub.Deactivate(ctx); err != nil {
						log.Fatal().Err(err).Msg("could not de-activate subscription")
					}
				}
			} else {
				fmt.Printf("Ok, we won't %s '%s'\n", action, sub.Name)
			}

		}
	},
}

func init() {
	rootCmd.AddCommand(unsubscribeCmd)
	unsubscribeCmd.Flags().BoolVarP(&deleteSubscription, "delete", "d", false, "delete subscription; warning this removes the subscription and its crawl run history (catalog entities are kept)")
}
