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
package merge

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/mansion-watch/mwdata/catalog"
	"github.com/mansion-watch/mwdata/data"
)

// RevertBuildingMerge undoes one building merge: the merged-away building is
// recreated under its original id, the snapshotted properties move back,
// portal ids repoint, and an exclusion pair keeps the duplicate finder from
// offering the pair again. Properties folded away since the merge stay
// folded; their listings remain where later curation put them.
func (op *Operator) RevertBuildingMerge(ctx context.Context, historyID int64) (*data.Building, error) {
	var restored *data.Building

	err := op.Catalog.WithRetry(ctx, func(tx pgx.Tx) error {
		restored = nil

		hist, err := data.BuildingMergeHistoryByID(ctx, tx, historyID)
		if err != nil {
			return err
		}

		if hist.RevertedAt != nil {
			return ErrAlreadyReverted
		}

		var snapshot data.BuildingMergeSnapshot
		if err := json.Unmarshal(hist.Snapshot, &snapshot); err != nil {
			return fmt.Errorf("merge: decoding building snapshot: %w", err)
		}

		// the final primary holds whatever the merge moved, even after
		// later merges rewrote the chain
		holderID := hist.FinalPrimaryBuildingID

		if err := catalog.LockBuildings(ctx, tx, catalog.SortIDs([]int64{holderID, hist.MergedBuildingID})...); err != nil {
			return err
		}

		building := snapshot.Building
		if err := building.InsertWithID(ctx, tx); err != nil {
			return err
		}

		if err := data.ReassignProperties(ctx, tx, snapshot.MovedPropertyIDs, building.ID); err != nil {
			return err
		}

		for _, ext := range snapshot.ExternalIDs {
			ext.BuildingID = building.ID

			if err := ext.Save(ctx, tx); err != nil {
				return err
			}
		}

		exclusion := &data.BuildingMergeExclusion{
			BuildingLowID:  hist.MergedBuildingID,
			BuildingHighID: holderID,
			Reason:         "merge reverted",
			Actor:          op.Actor,
		}
		if err := exclusion.Save(ctx, tx); err != nil {
			return err
		}

		if err := hist.MarkReverted(ctx, tx, time.Now()); err != nil {
			return err
		}

		if err := op.refreshBuildings(ctx, tx, building.ID, holderID); err != nil {
			return err
		}

		restored = building

		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("BuildingID", restored.ID).Int64("HistoryID", historyID).
		Msg("building merge reverted")

	return restored, nil
}

// RevertPropertyMerge undoes one unit merge: the merged-away unit is
// recreated under its original id and the snapshotted listings move back.
// When the unit's building has itself been merged away since, the restored
// unit lands under the absorbing building.
func (op *Operator) RevertPropertyMerge(ctx context.Context, historyID int64) (*data.MasterProperty, error) {
	var restored *data.MasterProperty

	err := op.Catalog.WithRetry(ctx, func(tx pgx.Tx) error {
		restored = nil

		hist, err := data.PropertyMergeHistoryByID(ctx, tx, historyID)
		if err != nil {
			return err
		}

		if hist.RevertedAt != nil {
			return ErrAlreadyReverted
		}

		var details data.PropertyMergeDetails
		if err := json.Unmarshal(hist.MergeDetails, &details); err != nil {
			return fmt.Errorf("merge: decoding property snapshot: %w", err)
		}

		holderID := hist.FinalPrimaryPropertyID

		if err := catalog.LockProperties(ctx, tx, catalog.SortIDs([]int64{holderID, hist.MergedPropertyID})...); err != nil {
			return err
		}

		holder, err := loadProperty(ctx, tx, holderID)
		if err != nil {
			return err
		}

		prop := details.SecondaryProperty

		if _, err := data.BuildingByID(ctx, tx, prop.BuildingID); errors.Is(err, data.ErrNotFound) {
			absorbed := data.BuildingAbsorbedBy(ctx, tx, prop.BuildingID)
			if absorbed == 0 {
				return &data.MergedAwayError{Kind: "building", MissingID: prop.BuildingID}
			}

			prop.BuildingID = absorbed
		} else if err != nil {
			return err
		}

		if err := prop.InsertWithID(ctx, tx); err != nil {
			return err
		}

		if err := data.ReassignListings(ctx, tx, details.MovedListingIDs, prop.ID); err != nil {
			return err
		}

		exclusion := &data.PropertyMergeExclusion{
			PropertyLowID:  hist.MergedPropertyID,
			PropertyHighID: holderID,
			Reason:         "merge reverted",
			Actor:          op.Actor,
		}
		if err := exclusion.Save(ctx, tx); err != nil {
			return err
		}

		if err := hist.MarkReverted(ctx, tx, time.Now()); err != nil {
			return err
		}

		for _, id := range catalog.SortIDs([]int64{prop.ID, holderID}) {
			if err := op.refreshUnit(ctx, tx, id); err != nil {
				return err
			}
		}

		if err := op.refreshBuildings(ctx, tx, prop.BuildingID, holder.BuildingID); err != nil {
			return err
		}

		restored = prop

		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("MasterPropertyID", restored.ID).Int64("HistoryID", historyID).
		Msg("property merge reverted")

	return restored, nil
}
