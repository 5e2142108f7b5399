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
package data

import (
	"context"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// BuildingMergeSnapshot preserves everything needed to undo one building
// merge: the merged-away row, its portal ids and ledger, and the ids of the
// properties that moved to the primary.
type BuildingMergeSnapshot struct {
	Building         *Building             `json:"building"`
	ExternalIDs      []*BuildingExternalID `json:"external_ids,omitempty"`
	Aliases          []*AliasEntry         `json:"aliases,omitempty"`
	MovedPropertyIDs []int64               `json:"moved_property_ids"`
}

// PropertyMergeDetails preserves the merged-away unit and the listings that
// migrated to the primary.
type PropertyMergeDetails struct {
	SecondaryProperty *MasterProperty `json:"secondary_property"`
	MovedListingIDs   []int64         `json:"moved_listing_ids"`
}

// BuildingMergeHistory records one building merge. The direct primary is the
// building the operator merged into; the final primary is rewritten forward
// when that building is itself merged later, so chains stay at most two
// long.
type BuildingMergeHistory struct {
	ID                      int64      `json:"id"`
	DirectPrimaryBuildingID int64      `json:"direct_primary_building_id"`
	FinalPrimaryBuildingID  int64      `json:"final_primary_building_id"`
	MergedBuildingID        int64      `json:"merged_building_id"`
	Snapshot                []byte     `json:"snapshot"`
	MergedAt                time.Time  `json:"merged_at"`
	RevertedAt              *time.Time `json:"reverted_at"`
	Actor                   string     `json:"actor"`
}

func (hist *BuildingMergeHistory) Insert(ctx context.Context, dbConn Querier) error {
	err := dbConn.QueryRow(ctx, `INSERT INTO building_merge_history (
		"direct_primary_building_id",
		"final_primary_building_id",
		"merged_building_id",
		"snapshot",
		"merged_at",
		"actor"
	) VALUES (
		$1, $2, $3, $4, $5, $6
	) RETURNING id`, hist.DirectPrimaryBuildingID, hist.FinalPrimaryBuildingID,
		hist.MergedBuildingID, hist.Snapshot, hist.MergedAt, hist.Actor).Scan(&hist.ID)
	if err != nil {
		log.Error().Err(err).Int64("MergedBuildingID", hist.MergedBuildingID).
			Msg("error recording building merge history")
	}

	return err
}

func (hist *BuildingMergeHistory) MarkReverted(ctx context.Context, dbConn Querier, at time.Time) error {
	_, err := dbConn.Exec(ctx,
		`UPDATE building_merge_history SET reverted_at = $2 WHERE id = $1`, hist.ID, at)
	if err != nil {
		log.Error().Err(err).Int64("HistoryID", hist.ID).
			Msg("error marking building merge reverted")
	}

	return err
}

func BuildingMergeHistoryByID(ctx context.Context, dbConn Querier, id int64) (*BuildingMergeHistory, error) {
	var hist BuildingMergeHistory

	err := pgxscan.Get(ctx, dbConn, &hist,
		`SELECT * FROM building_merge_history WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return &hist, nil
}

// RewriteBuildingHistoryForward repoints history rows whose final primary
// was just merged away so every chain resolves in one hop.
func RewriteBuildingHistoryForward(ctx context.Context, dbConn Querier, oldPrimary, newPrimary int64) error {
	_, err := dbConn.Exec(ctx,
		`UPDATE building_merge_history SET final_primary_building_id = $2
		WHERE final_primary_building_id = $1`, oldPrimary, newPrimary)
	if err != nil {
		log.Error().Err(err).Int64("OldPrimary", oldPrimary).Int64("NewPrimary", newPrimary).
			Msg("error rewriting building merge history forward")
	}

	return err
}

// BuildingAbsorbedBy reports where a merged-away building ended up, or 0
// when history has no record of it.
func BuildingAbsorbedBy(ctx context.Context, dbConn Querier, buildingID int64) int64 {
	var absorbedBy int64

	err := dbConn.QueryRow(ctx,
		`SELECT final_primary_building_id FROM building_merge_history
		WHERE merged_building_id = $1 AND reverted_at IS NULL
		ORDER BY merged_at DESC LIMIT 1`, buildingID).Scan(&absorbedBy)
	if err != nil {
		return 0
	}

	return absorbedBy
}

// PropertyMergeHistory records one master-property merge.
type PropertyMergeHistory struct {
	ID                      int64      `json:"id"`
	DirectPrimaryPropertyID int64      `json:"direct_primary_property_id"`
	FinalPrimaryPropertyID  int64      `json:"final_primary_property_id"`
	MergedPropertyID        int64      `json:"merged_property_id"`
	MergeDetails            []byte     `json:"merge_details"`
	MergedAt                time.Time  `json:"merged_at"`
	RevertedAt              *time.Time `json:"reverted_at"`
	Actor                   string     `json:"actor"`
}

func (hist *PropertyMergeHistory) Insert(ctx context.Context, dbConn Querier) error {
	err := dbConn.QueryRow(ctx, `INSERT INTO property_merge_history (
		"direct_primary_property_id",
		"final_primary_property_id",
		"merged_property_id",
		"merge_details",
		"merged_at",
		"actor"
	) VALUES (
		$1, $2, $3, $4, $5, $6
	) RETURNING id`, hist.DirectPrimaryPropertyID, hist.FinalPrimaryPropertyID,
		hist.MergedPropertyID, hist.MergeDetails, hist.MergedAt, hist.Actor).Scan(&hist.ID)
	if err != nil {
		log.Error().Err(err).Int64("MergedPropertyID", hist.MergedPropertyID).
			Msg("error recording property merge history")
	}

	return err
}

func (hist *PropertyMergeHistory) MarkReverted(ctx context.Context, dbConn Querier, at time.Time) error {
	_, err := dbConn.Exec(ctx,
		`UPDATE property_merge_history SET reverted_at = $2 WHERE id = $1`, hist.ID, at)
	if err != nil {
		log.Error().Err(err).Int64("HistoryID", hist.ID).
			Msg("error marking property merge reverted")
	}

	return err
}

func PropertyMergeHistoryByID(ctx context.Context, dbConn Querier, id int64) (*PropertyMergeHistory, error) {
	var hist PropertyMergeHistory

	err := pgxscan.Get(ctx, dbConn, &hist,
		`SELECT * FROM property_merge_history WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return &hist, nil
}

func RewritePropertyHistoryForward(ctx context.Context, dbConn Querier, oldPrimary, newPrimary int64) error {
	_, err := dbConn.Exec(ctx,
		`UPDATE property_merge_history SET final_primary_property_id = $2
		WHERE final_primary_property_id = $1`, oldPrimary, newPrimary)
	if err != nil {
		log.Error().Err(err).Int64("OldPrimary", oldPrimary).Int64("NewPrimary", newPrimary).
			Msg("error rewriting property merge history forward")
	}

	return err
}

func PropertyAbsorbedBy(ctx context.Context, dbConn Querier, propertyID int64) int64 {
	var absorbedBy int64

	err := dbConn.QueryRow(ctx,
		`SELECT final_primary_property_id FROM property_merge_history
		WHERE merged_property_id = $1 AND reverted_at IS NULL
		ORDER BY merged_at DESC LIMIT 1`, propertyID).Scan(&absorbedBy)
	if err != nil {
		return 0
	}

	return absorbedBy
}

// BuildingMergeExclusion is an unordered building pair that must never be
// offered as a merge candidate again. Stored with low id first.
type BuildingMergeExclusion struct {
	ID             int64     `json:"id"`
	BuildingLowID  int64     `json:"building_low_id"`
	BuildingHighID int64     `json:"building_high_id"`
	Reason         string    `json:"reason"`
	Actor          string    `json:"actor"`
	CreatedAt      time.Time `json:"created_at"`
}

func (excl *BuildingMergeExclusion) Save(ctx context.Context, dbConn Querier) error {
	low, high := excl.BuildingLowID, excl.BuildingHighID
	if low > high {
		low, high = high, low
	}

	excl.BuildingLowID, excl.BuildingHighID = low, high

	sql := `INSERT INTO building_merge_exclusions (
		"building_low_id",
		"building_high_id",
		"reason",
		"actor"
	) VALUES (
		$1, $2, $3, $4
	) ON CONFLICT ON CONSTRAINT building_merge_exclusions_building_low_id_building_high_id_key
	DO UPDATE SET reason = EXCLUDED.reason
	RETURNING id, created_at`

	err := dbConn.QueryRow(ctx, sql, low, high, excl.Reason, excl.Actor).
		Scan(&excl.ID, &excl.CreatedAt)
	if err != nil {
		log.Error().Err(err).Int64("BuildingLowID", low).Int64("BuildingHighID", high).
			Msg("error saving building merge exclusion")
	}

	return err
}

// DeleteBuildingExclusionsMentioning removes every exclusion pair touching a
// building; run when that building is merged away.
func DeleteBuildingExclusionsMentioning(ctx context.Context, dbConn Querier, buildingID int64) error {
	_, err := dbConn.Exec(ctx,
		`DELETE FROM building_merge_exclusions
		WHERE building_low_id = $1 OR building_high_id = $1`, buildingID)
	if err != nil {
		log.Error().Err(err).Int64("BuildingID", buildingID).
			Msg("error deleting building merge exclusions")
	}

	return err
}

func AllBuildingExclusions(ctx context.Context, dbConn Querier) ([]*BuildingMergeExclusion, error) {
	exclusions := make([]*BuildingMergeExclusion, 0, 16)

	err := pgxscan.Select(ctx, dbConn, &exclusions,
		`SELECT * FROM building_merge_exclusions ORDER BY id`)
	if err != nil {
		return nil, err
	}

	return exclusions, nil
}

// PropertyMergeExclusion is the master-property flavour of the exclusion
// pair.
type PropertyMergeExclusion struct {
	ID             int64     `json:"id"`
	PropertyLowID  int64     `json:"property_low_id"`
	PropertyHighID int64     `json:"property_high_id"`
	Reason         string    `json:"reason"`
	Actor          string    `json:"actor"`
	CreatedAt      time.Time `json:"created_at"`
}

func (excl *PropertyMergeExclusion) Save(ctx context.Context, dbConn Querier) error {
	low, high := excl.PropertyLowID, excl.PropertyHighID
	if low > high {
		low, high = high, low
	}

	excl.PropertyLowID, excl.PropertyHighID = low, high

	sql := `INSERT INTO property_merge_exclusions (
		"property_low_id",
		"property_high_id",
		"reason",
		"actor"
	) VALUES (
		$1, $2, $3, $4
	) ON CONFLICT ON CONSTRAINT property_merge_exclusions_property_low_id_property_high_id_key
	DO UPDATE SET reason = EXCLUDED.reason
	RETURNING id, created_at`

	err := dbConn.QueryRow(ctx, sql, low, high, excl.Reason, excl.Actor).
		Scan(&excl.ID, &excl.CreatedAt)
	if err != nil {
		log.Error().Err(err).Int64("PropertyLowID", low).Int64("PropertyHighID", high).
			Msg("error saving property merge exclusion")
	}

	return err
}

// DeletePropertyExclusionsMentioning removes every exclusion pair touching a
// master property; run when that property is merged away.
func DeletePropertyExclusionsMentioning(ctx context.Context, dbConn Querier, propertyID int64) error {
	_, err := dbConn.Exec(ctx,
		`DELETE FROM property_merge_exclusions
		WHERE property_low_id = $1 OR property_high_id = $1`, propertyID)
	if err != nil {
		log.Error().Err(err).Int64("PropertyID", propertyID).
			Msg("error deleting property merge exclusions")
	}

	return err
}

func PropertyExclusionsForBuilding(ctx context.Context, dbConn Querier, buildingID int64) ([]*PropertyMergeExclusion, error) {
	exclusions := make([]*PropertyMergeExclusion, 0, 8)

	err := pgxscan.Select(ctx, dbConn, &exclusions,
		`SELECT pe.* FROM property_merge_exclusions pe
		JOIN master_properties lo ON lo.id = pe.property_low_id
		WHERE lo.building_id = $1
		ORDER BY pe.id`, buildingID)
	if err != nil {
		return nil, err
	}

	return exclusions, nil
}
