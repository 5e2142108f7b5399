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

// Building is a physical structure. A row is referenced by at least one
// MasterProperty or carries merge_preserved; anything else is deletable.
type Building struct {
	ID                int64      `json:"id"`
	CanonicalName     string     `json:"canonical_name"`
	NormalizedName    string     `json:"normalized_name"`
	Address           string     `json:"address"`
	NormalizedAddress string     `json:"normalized_address"`
	BuiltYear         *int       `json:"built_year"`
	BuiltMonth        *int       `json:"built_month"`
	TotalFloors       *int       `json:"total_floors"`
	BasementFloors    *int       `json:"basement_floors"`
	TotalUnits        *int       `json:"total_units"`
	ConstructionType  *string    `json:"construction_type"`
	MergePreserved    bool       `json:"merge_preserved"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Triple returns the building-identity attributes used for automatic
// attach; complete is false unless all three are present.
func (building *Building) Triple() (floors, year, units int, complete bool) {
	if building.TotalFloors == nil || building.BuiltYear == nil || building.TotalUnits == nil {
		return 0, 0, 0, false
	}

	return *building.TotalFloors, *building.BuiltYear, *building.TotalUnits, true
}

func (building *Building) Insert(ctx context.Context, dbConn Querier) error {
	sql := `INSERT INTO buildings (
		"canonical_name",
		"normalized_name",
		"address",
		"normalized_address",
		"built_year",
		"built_month",
		"total_floors",
		"basement_floors",
		"total_units",
		"construction_type",
		"merge_preserved"
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
	) RETURNING id, created_at, updated_at`

	err := dbConn.QueryRow(ctx, sql, building.CanonicalName, building.NormalizedName,
		building.Address, building.NormalizedAddress, building.BuiltYear,
		building.BuiltMonth, building.TotalFloors, building.BasementFloors,
		building.TotalUnits, building.ConstructionType, building.MergePreserved).
		Scan(&building.ID, &building.CreatedAt, &building.UpdatedAt)
	if err != nil {
		log.Error().Err(err).Str("CanonicalName", building.CanonicalName).
			Msg("error inserting building")
	}

	return err
}

// InsertWithID restores a building under its original id; used by the merge
// revert path which must reuse ids referenced from history rows.
func (building *Building) InsertWithID(ctx context.Context, dbConn Querier) error {
	sql := `INSERT INTO buildings (
		"id",
		"canonical_name",
		"normalized_name",
		"address",
		"normalized_address",
		"built_year",
		"built_month",
		"total_floors",
		"basement_floors",
		"total_units",
		"construction_type",
		"merge_preserved"
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
	) RETURNING created_at, updated_at`

	err := dbConn.QueryRow(ctx, sql, building.ID, building.CanonicalName,
		building.NormalizedName, building.Address, building.NormalizedAddress,
		building.BuiltYear, building.BuiltMonth, building.TotalFloors,
		building.BasementFloors, building.TotalUnits, building.ConstructionType,
		building.MergePreserved).Scan(&building.CreatedAt, &building.UpdatedAt)
	if err != nil {
		log.Error().Err(err).Int64("BuildingID", building.ID).
			Msg("error restoring building with explicit id")
	}

	return err
}

func (building *Building) Update(ctx context.Context, dbConn Querier) error {
	sql := `UPDATE buildings SET
		canonical_name = $2,
		normalized_name = $3,
		address = $4,
		normalized_address = $5,
		built_year = $6,
		built_month = $7,
		total_floors = $8,
		basement_floors = $9,
		total_units = $10,
		construction_type = $11,
		merge_preserved = $12,
		updated_at = now()
	WHERE id = $1`

	_, err := dbConn.Exec(ctx, sql, building.ID, building.CanonicalName,
		building.NormalizedName, building.Address, building.NormalizedAddress,
		building.BuiltYear, building.BuiltMonth, building.TotalFloors,
		building.BasementFloors, building.TotalUnits, building.ConstructionType,
		building.MergePreserved)
	if err != nil {
		log.Error().Err(err).Int64("BuildingID", building.ID).Str("SQL", sql).
			Msg("error updating building")
	}

	return err
}

func (building *Building) Delete(ctx context.Context, dbConn Querier) error {
	_, err := dbConn.Exec(ctx, `DELETE FROM buildings WHERE id = $1`, building.ID)
	if err != nil {
		log.Error().Err(err).Int64("BuildingID", building.ID).
			Msg("error deleting building")
	}

	return err
}

func BuildingByID(ctx context.Context, dbConn Querier, id int64) (*Building, error) {
	var building Building

	err := pgxscan.Get(ctx, dbConn, &building,
		`SELECT * FROM buildings WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return &building, nil
}

// AllBuildings loads the entire building table in id order; the duplicate
// finder scores the whole stock against itself.
func AllBuildings(ctx context.Context, dbConn Querier) ([]*Building, error) {
	buildings := make([]*Building, 0, 1024)

	err := pgxscan.Select(ctx, dbConn, &buildings,
		`SELECT * FROM buildings ORDER BY id`)
	if err != nil {
		return nil, err
	}

	return buildings, nil
}

// PropertyCounts returns the number of master properties per building.
func PropertyCounts(ctx context.Context, dbConn Querier) (map[int64]int, error) {
	rows, err := dbConn.Query(ctx,
		`SELECT building_id, count(*) FROM master_properties GROUP BY building_id`)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	counts := make(map[int64]int)

	for rows.Next() {
		var (
			buildingID int64
			count      int
		)

		if err := rows.Scan(&buildingID, &count); err != nil {
			return nil, err
		}

		counts[buildingID] = count
	}

	return counts, rows.Err()
}

// BuildingExternalID records a portal-side building page id; rows are
// carried across merges with duplicates on (source_site, external_id)
// dropped.
type BuildingExternalID struct {
	ID         int64  `json:"id"`
	BuildingID int64  `json:"building_id"`
	SourceSite string `json:"source_site"`
	ExternalID string `json:"external_id"`
}

func (ext *BuildingExternalID) Save(ctx context.Context, dbConn Querier) error {
	sql := `INSERT INTO building_external_ids (
		"building_id",
		"source_site",
		"external_id"
	) VALUES (
		$1, $2, $3
	) ON CONFLICT ON CONSTRAINT building_external_ids_source_site_external_id_key
	DO UPDATE SET building_id = EXCLUDED.building_id
	RETURNING id`

	err := dbConn.QueryRow(ctx, sql, ext.BuildingID, ext.SourceSite, ext.ExternalID).
		Scan(&ext.ID)
	if err != nil {
		log.Error().Err(err).Int64("BuildingID", ext.BuildingID).
			Str("SourceSite", ext.SourceSite).Msg("error saving building external id")
	}

	return err
}

func ExternalIDsForBuilding(ctx context.Context, dbConn Querier, buildingID int64) ([]*BuildingExternalID, error) {
	ids := make([]*BuildingExternalID, 0, 4)

	err := pgxscan.Select(ctx, dbConn, &ids,
		`SELECT * FROM building_external_ids WHERE building_id = $1 ORDER BY id`, buildingID)
	if err != nil {
		return nil, err
	}

	return ids, nil
}

// MoveExternalIDs repoints one building's portal ids at another, dropping
// rows that would collide on (source_site, external_id).
func MoveExternalIDs(ctx context.Context, dbConn Querier, fromBuildingID, toBuildingID int64) error {
	_, err := dbConn.Exec(ctx, `DELETE FROM building_external_ids
		WHERE building_id = $1 AND (source_site, external_id) IN (
			SELECT source_site, external_id FROM building_external_ids WHERE building_id = $2
		)`, fromBuildingID, toBuildingID)
	if err != nil {
		log.Error().Err(err).Int64("FromBuildingID", fromBuildingID).
			Msg("error dropping colliding building external ids")

		return err
	}

	_, err = dbConn.Exec(ctx, `UPDATE building_external_ids SET building_id = $2
		WHERE building_id = $1`, fromBuildingID, toBuildingID)
	if err != nil {
		log.Error().Err(err).Int64("FromBuildingID", fromBuildingID).
			Int64("ToBuildingID", toBuildingID).Msg("error moving building external ids")
	}

	return err
}
