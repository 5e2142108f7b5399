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
	"os/user"
	"strconv"

	"github.com/mansion-watch/mwdata/catalog"
	"github.com/mansion-watch/mwdata/merge"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// mergeCmd represents the merge command
var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge duplicate buildings or units, move units, or revert a merge",
	Long: `The merge sub-commands rewrite catalog identity decided by a human (or a
high-confidence dedupe report). Every merge writes a history row with a
snapshot of the absorbed entity, so it can be reverted later; every revert
records an exclusion pair so the duplicate finder never proposes the same
merge again.`,
}

// mergeBuildingsCmd merges one or more buildings into a primary
var mergeBuildingsCmd = &cobra.Command{
	Use:   "buildings <primary-id> <secondary-id...>",
	Short: "Merge secondary buildings into the primary",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		op, myCatalog := newOperator(ctx)
		defer myCatalog.Close()

		ids := parseIDs(args)

		result, err := op.MergeBuildings(ctx, ids[0], ids[1:]...)
		if err != nil {
			log.Fatal().Err(err).Int64("PrimaryID", ids[0]).Msg("building merge failed")
		}

		log.Info().Int64("PrimaryID", result.PrimaryID).
			Ints64("Merged", result.Merged).
			Ints64("HistoryIDs", result.HistoryIDs).
			Int("MovedProperties", result.MovedProperties).
			Int("FoldedUnits", result.FoldedUnits).
			Msg("buildings merged")
	},
}

// mergePropertiesCmd merges one unit into another
var mergePropertiesCmd = &cobra.Command{
	Use:   "properties <primary-id> <secondary-id>",
	Short: "Merge the secondary unit into the primary",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		op, myCatalog := newOperator(ctx)
		defer myCatalog.Close()

		ids := parseIDs(args)

		historyID, err := op.MergeProperties(ctx, ids[0], ids[1])
		if err != nil {
			log.Fatal().Err(err).Int64("PrimaryID", ids[0]).Int64("SecondaryID", ids[1]).Msg("property merge failed")
		}

		log.Info().Int64("PrimaryID", ids[0]).Int64("SecondaryID", ids[1]).
			Int64("HistoryID", historyID).Msg("properties merged")
	},
}

// mergeMoveCmd moves a unit to a different building
var mergeMoveCmd = &cobra.Command{
	Use:   "move <property-id> <target-building-id>",
	Short: "Move a unit to a different building (split tool)",
	Long: `Move re-homes one unit onto another building: the unit, its listings and
price history travel together. When the target building already carries a
structurally identical unit the moved one folds into it. Moving every
wrongly-attached unit off a building is how an over-merged building is
split.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		op, myCatalog := newOperator(ctx)
		defer myCatalog.Close()

		ids := parseIDs(args)

		result, err := op.MoveProperty(ctx, ids[0], ids[1])
		if err != nil {
			log.Fatal().Err(err).Int64("PropertyID", ids[0]).Int64("TargetBuildingID", ids[1]).Msg("move failed")
		}

		event := log.Info().Int64("PropertyID", result.PropertyID).Int64("TargetBuildingID", ids[1])
		if result.FoldedInto != 0 {
			event = event.Int64("FoldedInto", result.FoldedInto)
		}
		event.Msg("unit moved")
	},
}

// mergeRevertBuildingCmd reverts a building merge
var mergeRevertBuildingCmd = &cobra.Command{
	Use:   "revert-building <history-id>",
	Short: "Revert a building merge from its history row",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		op, myCatalog := newOperator(ctx)
		defer myCatalog.Close()

		historyID := parseIDs(args)[0]

		restored, err := op.RevertBuildingMerge(ctx, historyID)
		if err != nil {
			log.Fatal().Err(err).Int64("HistoryID", historyID).Msg("building merge revert failed")
		}

		log.Info().Int64("HistoryID", historyID).Int64("RestoredBuildingID", restored.ID).
			Str("CanonicalName", restored.CanonicalName).Msg("building merge reverted; exclusion recorded")
	},
}

// mergeRevertPropertyCmd reverts a property merge
var mergeRevertPropertyCmd = &cobra.Command{
	Use:   "revert-property <history-id>",
	Short: "Revert a property merge from its history row",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		op, myCatalog := newOperator(ctx)
		defer myCatalog.Close()

		historyID := parseIDs(args)[0]

		restored, err := op.RevertPropertyMerge(ctx, historyID)
		if err != nil {
			log.Fatal().Err(err).Int64("HistoryID", historyID).Msg("property merge revert failed")
		}

		log.Info().Int64("HistoryID", historyID).Int64("RestoredPropertyID", restored.ID).
			Int64("BuildingID", restored.BuildingID).Msg("property merge reverted; exclusion recorded")
	},
}

// newOperator connects the catalog and builds a merge operator attributed to
// the current user.
func newOperator(ctx context.Context) (*merge.Operator, *catalog.Catalog) {
	myCatalog, err := catalog.NewFromDB(ctx, viper.GetString("db.url"))
	if err != nil {
		log.Fatal().Err(err).Msg("could not connect to catalog")
	}

	actor := "unknown"
	if current, err := user.Current(); err == nil {
		actor = current.Username
	}

	return &merge.Operator{
		Catalog:          myCatalog,
		Actor:            actor,
		FinalPriceWindow: viper.GetDuration("lifecycle.final_price_window"),
	}, myCatalog
}

func parseIDs(args []string) []int64 {
	ids := make([]int64, 0, len(args))

	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			log.Fatal().Err(err).Str("ID", arg).Msg("id must be an integer")
		}

		ids = append(ids, id)
	}

	return ids
}

func init() {
	rootCmd.AddCommand(mergeCmd)
	mergeCmd.AddCommand(mergeBuildingsCmd)
	mergeCmd.AddCommand(mergePropertiesCmd)
	mergeCmd.AddCommand(mergeMoveCmd)
	mergeCmd.AddCommand(mergeRevertBuildingCmd)
	mergeCmd.AddCommand(mergeRevertPropertyCmd)
}
