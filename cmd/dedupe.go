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
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mansion-watch/mwdata/catalog"
	"github.com/mansion-watch/mwdata/data"
	"github.com/mansion-watch/mwdata/dedupe"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var dedupeProperties bool

// dedupeCmd represents the dedupe command
var dedupeCmd = &cobra.Command{
	Use:   "dedupe [building-id...]",
	Short: "Find buildings or units that are probably the same",
	Long: `The dedupe sub-command scores the catalog against itself and reports
advisory duplicate groups: spelling variants of the same building, or units
inside one building that describe the same physical unit. Nothing is merged;
review a group and merge it explicitly with the merge sub-command.

Without arguments the whole building stock is scanned. With building IDs and
--properties, units inside each named building are scanned instead.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myCatalog, err := catalog.NewFromDB(ctx, viper.GetString("db.url"))
		if err != nil {
			log.Fatal().Err(err).Msg("could not connect to catalog")
		}
		defer myCatalog.Close()

		finder := &dedupe.Finder{
			Catalog:        myCatalog,
			MinSimilarity:  viper.GetFloat64("dedupe.min_similarity"),
			HighConfidence: viper.GetFloat64("dedupe.high_confidence"),
		}

		var groups []*data.DuplicateGroup

		if dedupeProperties {
			if len(args) == 0 {
				log.Fatal().Msg("--properties requires at least one building id")
			}

			for _, arg := range args {
				buildingID, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					log.Fatal().Err(err).Str("BuildingID", arg).Msg("building id must be an integer")
				}

				buildingGroups, err := finder.FindPropertyGroups(ctx, buildingID)
				if err != nil {
					log.Fatal().Err(err).Int64("BuildingID", buildingID).Msg("could not scan building for duplicate units")
				}

				groups = append(groups, buildingGroups...)
			}
		} else {
			groups, err = finder.FindBuildingGroups(ctx)
			if err != nil {
				log.Fatal().Err(err).Msg("could not scan catalog for duplicate buildings")
			}
		}

		r, _ := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(80),
		)

		out, err := r.Render(duplicateReport(groups, finder.HighConfidence))
		if err != nil {
			log.Fatal().Err(err).Msg("could not render duplicate report")
		}

		fmt.Print(out)
	},
}

// duplicateReport renders advisory groups as markdown, high-confidence
// groups first.
func duplicateReport(groups []*data.DuplicateGroup, highConfidence float64) string {
	if highConfidence <= 0 {
		highConfidence = dedupe.DefaultHighConfidence
	}

	builder := strings.Builder{}
	builder.WriteString("# Duplicate Report\n\n")

	if len(groups) == 0 {
		builder.WriteString("No duplicate candidates found.\n")
		return builder.String()
	}

	builder.WriteString("## Merge suggestions\n\n")
	suggested := 0
	for _, group := range groups {
		if group.MeanSimilarity < highConfidence {
			continue
		}
		writeGroupLine(&builder, group)
		suggested++
	}
	if suggested == 0 {
		builder.WriteString("none\n")
	}

	builder.WriteString("\n## Review items\n\n")
	review := 0
	for _, group := range groups {
		if group.MeanSimilarity >= highConfidence {
			continue
		}
		writeGroupLine(&builder, group)
		review++
	}
	if review == 0 {
		builder.WriteString("none\n")
	}

	return builder.String()
}

func writeGroupLine(builder *strings.Builder, group *data.DuplicateGroup) {
	members := make([]string, 0, len(group.MemberIDs))
	for _, id := range group.MemberIDs {
		if id == group.PrimaryID {
			continue
		}
		members = append(members, strconv.FormatInt(id, 10))
	}

	fmt.Fprintf(builder, "- %s %d ⇐ %s (similarity %.2f)\n",
		group.Kind, group.PrimaryID, strings.Join(members, ", "), group.MeanSimilarity)
}

func init() {
	rootCmd.AddCommand(dedupeCmd)
	dedupeCmd.Flags().BoolVarP(&dedupeProperties, "properties", "p", false, "scan units inside the named buildings instead of the building stock")
}
