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

// Package merge executes the curation operators: building and unit merges,
// moves, and their reverts. Every operator runs as one retryable
// transaction with id-ordered row locks, records history rows that make it
// undoable, and re-runs the aggregator and alias ledger on the entities it
// touched.
package merge

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/mansion-watch/mwdata/aggregate"
	"github.com/mansion-watch/mwdata/alias"
	"github.com/mansion-watch/mwdata/catalog"
	"github.com/mansion-watch/mwdata/data"
	"github.com/mansion-watch/mwdata/lifecycle"
)

// ErrAlreadyReverted is returned when a revert targets a history row that
// was reverted before.
var ErrAlreadyReverted = errors.New("merge already reverted")

// Operator runs merge, move and revert transactions against one catalog.
// Actor is recorded on every history and exclusion row it writes.
type Operator struct {
	Catalog *catalog.Catalog
	Actor   string

	// FinalPriceWindow bounds the final-price vote when a merge flips a
	// unit's lifecycle state; zero means the lifecycle default.
	FinalPriceWindow time.Duration
}

// BuildingMergeResult summarises one MergeBuildings call.
type BuildingMergeResult struct {
	PrimaryID       int64
	Merged          []int64
	HistoryIDs      []int64
	MovedProperties int
	FoldedUnits     int
}

// MoveResult summarises one MoveProperty call. PropertyID is the surviving
// unit: the moved one, or the structural duplicate it folded into.
type MoveResult struct {
	PropertyID int64
	FoldedInto int64
	HistoryID  int64
}

func (op *Operator) finalPriceWindow() time.Duration {
	if op.FinalPriceWindow > 0 {
		return op.FinalPriceWindow
	}

	return lifecycle.DefaultFinalPriceWindow
}

// MergeBuildings folds each secondary building into the primary: properties
// move, portal ids carry over with duplicates dropped, history chains are
// rewritten forward and the secondary rows are deleted with snapshots
// preserved in building_merge_history. The united stock is then scanned for
// structurally equal units, which fold into their earliest-created member.
func (op *Operator) MergeBuildings(ctx context.Context, primaryID int64, secondaryIDs ...int64) (*BuildingMergeResult, error) {
	if len(secondaryIDs) == 0 {
		return nil, errors.New("merge: no secondary buildings given")
	}

	if slices.Contains(secondaryIDs, primaryID) {
		return nil, fmt.Errorf("merge: building %d cannot merge into itself", primaryID)
	}

	var result *BuildingMergeResult

	err := op.Catalog.WithRetry(ctx, func(tx pgx.Tx) error {
		result = &BuildingMergeResult{PrimaryID: primaryID}

		lockIDs := catalog.SortIDs(append([]int64{primaryID}, secondaryIDs...))
		if err := catalog.LockBuildings(ctx, tx, lockIDs...); err != nil {
			return err
		}

		primary, err := loadBuilding(ctx, tx, primaryID)
		if err != nil {
			return err
		}

		now := time.Now()

		for _, secondaryID := range catalog.SortIDs(slices.Clone(secondaryIDs)) {
			secondary, err := loadBuilding(ctx, tx, secondaryID)
			if err != nil {
				return err
			}

			historyID, moved, err := op.absorbBuilding(ctx, tx, primary, secondary, now)
			if err != nil {
				return err
			}

			result.Merged = append(result.Merged, secondaryID)
			result.HistoryIDs = append(result.HistoryIDs, historyID)
			result.MovedProperties += len(moved)
		}

		// the primary survives GC even if curation later empties it
		if !primary.MergePreserved {
			primary.MergePreserved = true

			if err := primary.Update(ctx, tx); err != nil {
				return err
			}
		}

		folded, err := op.foldStructuralDuplicates(ctx, tx, primary.ID, now)
		if err != nil {
			return err
		}

		result.FoldedUnits = folded

		if _, err := aggregate.RefreshBuilding(ctx, tx, primary.ID); err != nil {
			return err
		}

		return alias.Refresh(ctx, tx, primary.ID)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("PrimaryID", result.PrimaryID).Ints64("Merged", result.Merged).
		Int("MovedProperties", result.MovedProperties).Int("FoldedUnits", result.FoldedUnits).
		Msg("buildings merged")

	return result, nil
}

// MergeProperties folds the secondary unit into the primary: listings and
// history references migrate, the secondary is deleted with its snapshot in
// property_merge_history, and the primary's derived state is recomputed.
func (op *Operator) MergeProperties(ctx context.Context, primaryID, secondaryID int64) (int64, error) {
	if primaryID == secondaryID {
		return 0, fmt.Errorf("merge: property %d cannot merge into itself", primaryID)
	}

	var historyID int64

	err := op.Catalog.WithRetry(ctx, func(tx pgx.Tx) error {
		if err := catalog.LockProperties(ctx, tx, catalog.SortIDs([]int64{primaryID, secondaryID})...); err != nil {
			return err
		}

		primary, err := loadProperty(ctx, tx, primaryID)
		if err != nil {
			return err
		}

		secondary, err := loadProperty(ctx, tx, secondaryID)
		if err != nil {
			return err
		}

		historyID, err = op.foldUnit(ctx, tx, primary, secondary, time.Now())
		if err != nil {
			return err
		}

		if err := op.refreshUnit(ctx, tx, primary.ID); err != nil {
			return err
		}

		return op.refreshBuildings(ctx, tx, primary.BuildingID, secondary.BuildingID)
	})
	if err != nil {
		return 0, err
	}

	log.Info().Int64("PrimaryID", primaryID).Int64("SecondaryID", secondaryID).
		Int64("HistoryID", historyID).Msg("properties merged")

	return historyID, nil
}

// MoveProperty rebinds a unit to another building, or folds it into a
// structurally equal unit when the target already holds one.
func (op *Operator) MoveProperty(ctx context.Context, propertyID, targetBuildingID int64) (*MoveResult, error) {
	var result *MoveResult

	err := op.Catalog.WithRetry(ctx, func(tx pgx.Tx) error {
		result = &MoveResult{PropertyID: propertyID}

		if err := catalog.LockProperties(ctx, tx, propertyID); err != nil {
			return err
		}

		prop, err := loadProperty(ctx, tx, propertyID)
		if err != nil {
			return err
		}

		if prop.BuildingID == targetBuildingID {
			return fmt.Errorf("merge: property %d already belongs to building %d", propertyID, targetBuildingID)
		}

		sourceBuildingID := prop.BuildingID

		if err := catalog.LockBuildings(ctx, tx, catalog.SortIDs([]int64{sourceBuildingID, targetBuildingID})...); err != nil {
			return err
		}

		target, err := loadBuilding(ctx, tx, targetBuildingID)
		if err != nil {
			return err
		}

		existing, err := data.MasterPropertiesForBuilding(ctx, tx, target.ID)
		if err != nil {
			return err
		}

		if dup := structuralMatch(existing, prop); dup != nil {
			historyID, err := op.foldUnit(ctx, tx, dup, prop, time.Now())
			if err != nil {
				return err
			}

			result.PropertyID = dup.ID
			result.FoldedInto = dup.ID
			result.HistoryID = historyID

			if err := op.refreshUnit(ctx, tx, dup.ID); err != nil {
				return err
			}
		} else {
			prop.BuildingID = target.ID

			if err := prop.Update(ctx, tx); err != nil {
				return err
			}
		}

		return op.refreshBuildings(ctx, tx, sourceBuildingID, target.ID)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("PropertyID", propertyID).Int64("TargetBuildingID", targetBuildingID).
		Int64("SurvivingID", result.PropertyID).Msg("property moved")

	return result, nil
}

// absorbBuilding folds one secondary building into the primary and deletes
// it, returning the history row id and the moved property ids.
func (op *Operator) absorbBuilding(ctx context.Context, tx pgx.Tx, primary, secondary *data.Building, now time.Time) (int64, []int64, error) {
	externalIDs, err := data.ExternalIDsForBuilding(ctx, tx, secondary.ID)
	if err != nil {
		return 0, nil, err
	}

	aliases, err := data.AliasesForBuilding(ctx, tx, secondary.ID)
	if err != nil {
		return 0, nil, err
	}

	moved, err := data.MovePropertiesToBuilding(ctx, tx, secondary.ID, primary.ID)
	if err != nil {
		return 0, nil, err
	}

	snapshot, err := json.Marshal(&data.BuildingMergeSnapshot{
		Building:         secondary,
		ExternalIDs:      externalIDs,
		Aliases:          aliases,
		MovedPropertyIDs: moved,
	})
	if err != nil {
		return 0, nil, fmt.Errorf("merge: encoding building snapshot: %w", err)
	}

	hist := &data.BuildingMergeHistory{
		DirectPrimaryBuildingID: primary.ID,
		FinalPrimaryBuildingID:  primary.ID,
		MergedBuildingID:        secondary.ID,
		Snapshot:                snapshot,
		MergedAt:                now,
		Actor:                   op.Actor,
	}
	if err := hist.Insert(ctx, tx); err != nil {
		return 0, nil, err
	}

	if err := data.MoveExternalIDs(ctx, tx, secondary.ID, primary.ID); err != nil {
		return 0, nil, err
	}

	// chains stay one hop long
	if err := data.RewriteBuildingHistoryForward(ctx, tx, secondary.ID, primary.ID); err != nil {
		return 0, nil, err
	}

	if err := data.DeleteBuildingExclusionsMentioning(ctx, tx, secondary.ID); err != nil {
		return 0, nil, err
	}

	if err := data.DeleteAliasesForBuilding(ctx, tx, secondary.ID); err != nil {
		return 0, nil, err
	}

	return hist.ID, moved, secondary.Delete(ctx, tx)
}

// foldUnit merges the secondary unit into the primary: listings migrate
// with their price history, history references rewrite forward, exclusions
// mentioning the secondary drop, and the secondary row is deleted with its
// snapshot preserved in history.
func (op *Operator) foldUnit(ctx context.Context, tx pgx.Tx, primary, secondary *data.MasterProperty, now time.Time) (int64, error) {
	moved, err := data.MoveListingsToProperty(ctx, tx, secondary.ID, primary.ID)
	if err != nil {
		return 0, err
	}

	details, err := json.Marshal(&data.PropertyMergeDetails{
		SecondaryProperty: secondary,
		MovedListingIDs:   moved,
	})
	if err != nil {
		return 0, fmt.Errorf("merge: encoding property snapshot: %w", err)
	}

	hist := &data.PropertyMergeHistory{
		DirectPrimaryPropertyID: primary.ID,
		FinalPrimaryPropertyID:  primary.ID,
		MergedPropertyID:        secondary.ID,
		MergeDetails:            details,
		MergedAt:                now,
		Actor:                   op.Actor,
	}
	if err := hist.Insert(ctx, tx); err != nil {
		return 0, err
	}

	if err := data.RewritePropertyHistoryForward(ctx, tx, secondary.ID, primary.ID); err != nil {
		return 0, err
	}

	if err := data.DeletePropertyExclusionsMentioning(ctx, tx, secondary.ID); err != nil {
		return 0, err
	}

	// the secondary's day-level timeline dies with the row
	if err := data.ReplacePriceChanges(ctx, tx, secondary.ID, nil); err != nil {
		return 0, err
	}

	return hist.ID, secondary.Delete(ctx, tx)
}

// foldStructuralDuplicates scans a building's units for structural equality
// and merges each cluster into its earliest-created member.
func (op *Operator) foldStructuralDuplicates(ctx context.Context, tx pgx.Tx, buildingID int64, now time.Time) (int, error) {
	props, err := data.MasterPropertiesForBuilding(ctx, tx, buildingID)
	if err != nil {
		return 0, err
	}

	folded := 0

	for _, cluster := range structuralClusters(props) {
		target := cluster[0]

		for _, dup := range cluster[1:] {
			if _, err := op.foldUnit(ctx, tx, target, dup, now); err != nil {
				return folded, err
			}

			folded++
		}

		if err := op.refreshUnit(ctx, tx, target.ID); err != nil {
			return folded, err
		}
	}

	return folded, nil
}

// refreshUnit recomputes a unit's voted attributes, lifecycle state and
// day-level price timeline after its electorate changed.
func (op *Operator) refreshUnit(ctx context.Context, tx pgx.Tx, propertyID int64) error {
	if _, _, err := lifecycle.RefreshDerived(ctx, tx, propertyID, op.finalPriceWindow()); err != nil {
		return err
	}

	return aggregate.RebuildPriceChanges(ctx, tx, propertyID)
}

// refreshBuildings re-votes building attributes and rebuilds the alias
// ledger for each distinct building id.
func (op *Operator) refreshBuildings(ctx context.Context, tx pgx.Tx, ids ...int64) error {
	for _, id := range catalog.SortIDs(ids) {
		if _, err := aggregate.RefreshBuilding(ctx, tx, id); err != nil {
			return err
		}

		if err := alias.Refresh(ctx, tx, id); err != nil {
			return err
		}
	}

	return nil
}

// loadBuilding resolves ErrNotFound through merge history so callers report
// which building absorbed the missing one.
func loadBuilding(ctx context.Context, tx pgx.Tx, id int64) (*data.Building, error) {
	building, err := data.BuildingByID(ctx, tx, id)
	if errors.Is(err, data.ErrNotFound) {
		return nil, &data.MergedAwayError{
			Kind:       "building",
			MissingID:  id,
			AbsorbedBy: data.BuildingAbsorbedBy(ctx, tx, id),
		}
	}

	return building, err
}

func loadProperty(ctx context.Context, tx pgx.Tx, id int64) (*data.MasterProperty, error) {
	prop, err := data.MasterPropertyByID(ctx, tx, id)
	if errors.Is(err, data.ErrNotFound) {
		return nil, &data.MergedAwayError{
			Kind:       "master property",
			MissingID:  id,
			AbsorbedBy: data.PropertyAbsorbedBy(ctx, tx, id),
		}
	}

	return prop, err
}
