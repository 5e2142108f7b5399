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
	"math/rand"
	"os"
	"strings"
	"unicode"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/mansion-watch/mwdata/catalog"
	"github.com/mansion-watch/mwdata/healthcheck"
	"github.com/mansion-watch/mwdata/sources"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// subscribeCmd represents the subscribe command
var subscribeCmd = &cobra.Command{
	Use:   "subscribe <source>",
	Short: "Create a new crawl subscription",
	Long: `Subscriptions are the primary mechanism mwdata uses to import
listing sightings. To create a new subscription select the listing source
desired and the wizard will walk you through the rest of the process to
setup a new subscription.

When creating a subscription a couple of things happen:

    1. Configuration, like dump file locations, are saved in the catalog
    2. A crawl area is paired with the source
    3. A regular crawl schedule is defined

Also see: sources, unsubscribe`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var (
			listingSource sources.Source
			ok            bool
			confirmed     bool
			monitored     bool

			subName     string
			subArea     string
			subSchedule string
		)

		ctx := context.Background()

		myCatalog, err := catalog.NewFromDB(ctx, viper.GetString("db.url"))
		if err != nil {
			log.Fatal().Err(err).Msg("could not connect to catalog")
		}
		defer myCatalog.Close()

		// check if listing source exists
		sourceName := args[0]
		if listingSource, ok = sources.Map[sourceName]; !ok {
			fmt.Printf("Listing source '%s' doesn't exist.\n", sourceName)
			fmt.Printf("Run `mwdata sources` for a complete list of available sources")
			os.Exit(1)
		}

		r := []rune(sourceName)
		subName = string(append([]rune{unicode.ToUpper(r[0])}, r[1:]...))

		// portals refresh overnight so crawls land in the early morning,
		// spread out to avoid every subscription firing at once
		minuteChoice := rand.Intn(12) * 5
		hourChoice := rand.Intn(6)
		subSchedule = fmt.Sprintf("%d %d * * *", minuteChoice, hourChoice)

		// build an area selection field
		areaOptions := make([]huh.Option[string], 0, len(listingSource.Areas()))
		for _, area := range listingSource.Areas() {
			areaOptions = append(areaOptions, huh.NewOption[string](area, area))
		}

		// create a new field group for configuring the source
		configFields := make([]huh.Field, 0, len(listingSource.ConfigDescription()))
		config := make(map[string]*string, len(listingSource.ConfigDescription()))
		for k, v := range listingSource.ConfigDescription() {
			val := ""
			config[k] = &val
			configFields = append(configFields, huh.NewInput().Title(v).Value(config[k]))
		}

		// walk user through settings required for subscription
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("What should the subscription be named?").
					Value(&subName),
				huh.NewSelect[string]().
					Title("Which area should be crawled?").
					Options(areaOptions...).
					Value(&subArea),
				huh.NewInput().
					Title("What schedule should the subscription run on?").
					Value(&subSchedule),
				huh.NewConfirm().
					Title("Should a healthcheck.io monitor be created for the subscription?").
					Value(&monitored),
			),
			huh.NewGroup(configFields...),
		)

		err = form.Run()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create wizard")
		}

		// build configuration map
		subConfig := make(map[string]string, len(config))
		for k, v := range config {
			subConfig[k] = *v
		}

		// create a new subscription
		subscription := &catalog.Subscription{
			ID:       uuid.New(),
			Name:     subName,
			Source:   sourceName,
			Area:     subArea,
			Config:   subConfig,
			Schedule: subSchedule,
			Catalog:  myCatalog,
		}

		// Print subscription summary
		{
			var sb strings.Builder
			keyword := func(s string) string {
				return lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Render(s)
			}

			isMonitored := "no"
			if monitored {
				isMonitored = "yes"
			}

			fmt.Fprintf(&sb,
				"%s\n\nID: %s\nName: %s\nSource: %s\nArea: %s\nSchedule: %s\nMonitored: %s\n\n",
				lipgloss.NewStyle().Bold(true).Render("NEW SUBSCRIPTION"),
				keyword(subscription.ID.String()),
				keyword(subscription.Name),
				keyword(subscription.Source),
				keyword(subscription.Area),
				keyword(subscription.Schedule),
				keyword(isMonitored),
			)

			fmt.Fprintln(&sb, lipgloss.NewStyle().Bold(true).Render("Source Configuration"))
			for k, v := range subscription.Config {
				fmt.Fprintf(&sb, "\n%s: %s", k, keyword(v))
			}

			fmt.Println(
				lipgloss.NewStyle().
					Width(60).
					BorderStyle(lipgloss.RoundedBorder()).
					BorderForeground(lipgloss.Color("63")).
					Padding(1, 2).
					Render(sb.String()),
			)
		}

		confirmForm := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Create subscription?").
					Value(&confirmed),
			),
		)

		err = confirmForm.Run()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create wizard")
		}

		if confirmed {
			if monitored {
				checkSlug := slug.Make(fmt.Sprintf("%s %s %s %s", subscription.Name, subscription.Source, subscription.Area, subscription.ID.String()[:5]))
				checkID, err := healthcheck.Create(
					fmt.Sprintf("%s %s (%s)", subscription.Name, subscription.Area, subscription.ID.String()[:5]),
					checkSlug,
					[]string{subscription.Source, subscription.Area},
					subscription.Schedule,
				)
				if err != nil {
					log.Fatal().Err(err).Msg("creating healthcheck failed")
				}
				subscription.HealthCheckID = checkID
			}

			if err := subscription.Save(ctx); err != nil {
				log.Fatal().Err(err).Msg("failed saving subscription")
			}

			log.Info().Msg("subscription created")
		} else {
			log.Info().Msg("Not saving subscription")
		}
	},
}

func init() {
	rootCmd.AddCommand(subscribeCmd)
}
