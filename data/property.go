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
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// MasterProperty is a unit within a Building. Price fields are in units of
// 10,000 JPY; fee fields are JPY per month.
type MasterProperty struct {
	ID                  int64      `json:"id"`
	BuildingID          int64      `json:"building_id"`
	FloorNumber         *int       `json:"floor_number"`
	AreaM2              *float64   `json:"area_m2"`
	Layout              *string    `json:"layout"`
	Direction           *string    `json:"direction"`
	RoomNumber          *string    `json:"room_number"`
	BalconyAreaM2       *float64   `json:"balcony_area_m2"`
	ManagementFee       *int       `json:"management_fee"`
	RepairFund          *int       `json:"repair_fund"`
	CurrentPrice        *int64     `json:"current_price"`
	FinalPrice          *int64     `json:"final_price"`
	SoldAt              *time.Time `json:"sold_at"`
	EarliestListingDate *time.Time `json:"earliest_listing_date"`
	LatestPriceChangeAt *time.Time `json:"latest_price_change_at"`
	DisplayBuildingName *string    `json:"display_building_name"`
	IsResale            *bool      `json:"is_resale"`
	TransactionType     *string    `json:"transaction_type"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// RoundHalf rounds an area to half-square-metre precision, the unit-identity
// resolution used when attaching listings.
func RoundHalf(area float64) float64 {
	return math.Round(area*2) / 2
}

// RoundTenth rounds an area to 0.1 square metres, the finer resolution the
// property-merge duplicate scan uses.
func RoundTenth(area float64) float64 {
	return math.Round(area*10) / 10
}

// StructuralKey renders the unit-identity tuple (floor_number, rounded
// area, layout, direction) as a comparable string. Nil components render as
// a placeholder and only match other nils. roundArea selects the rounding
// resolution.
func StructuralKey(floor *int, areaM2 *float64, layout, direction *string, roundArea func(float64) float64) string {
	key := "?"
	if floor != nil {
		key = fmt.Sprintf("%d", *floor)
	}

	if areaM2 != nil {
		key += fmt.Sprintf("|%.1f", roundArea(*areaM2))
	} else {
		key += "|?"
	}

	if layout != nil {
		key += "|" + *layout
	} else {
		key += "|?"
	}

	if direction != nil {
		key += "|" + *direction
	} else {
		key += "|?"
	}

	return key
}

// StructuralKey returns the property's unit-identity tuple at half-㎡
// resolution.
func (prop *MasterProperty) StructuralKey() string {
	return StructuralKey(prop.FloorNumber, prop.AreaM2, prop.Layout, prop.Direction, RoundHalf)
}

func (prop *MasterProperty) Insert(ctx context.Context, dbConn Querier) error {
	sql := `INSERT INTO master_properties (
		"building_id",
		"floor_number",
		"area_m2",
		"layout",
		"direction",
		"room_number",
		"balcony_area_m2",
		"management_fee",
		"repair_fund",
		"current_price",
		"display_building_name",
		"is_resale",
		"transaction_type"
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
	) RETURNING id, created_at, updated_at`

	err := dbConn.QueryRow(ctx, sql, prop.BuildingID, prop.FloorNumber, prop.AreaM2,
		prop.Layout, prop.Direction, prop.RoomNumber, prop.BalconyAreaM2,
		prop.ManagementFee, prop.RepairFund, prop.CurrentPrice,
		prop.DisplayBuildingName, prop.IsResale, prop.TransactionType).
		Scan(&prop.ID, &prop.CreatedAt, &prop.UpdatedAt)
	if err != nil {
		log.Error().Err(err).Int64("BuildingID", prop.BuildingID).
			Msg("error inserting master property")
	}

	return err
}

// InsertWithID restores a master property under its original id for the
// merge revert path.
func (prop *MasterProperty) InsertWithID(ctx context.Context, dbConn Querier) error {
	sql := `INSERT INTO master_properties (
		"id",
		"building_id",
		"floor_number",
		"area_m2",
		"layout",
		"direction",
		"room_number",
		"balcony_area_m2",
		"management_fee",
		"repair_fund",
		"current_price",
		"final_price",
		"sold_at",
		"earliest_listing_date",
		"latest_price_change_at",
		"display_building_name",
		"is_resale",
		"transaction_type"
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18
	) RETURNING created_at, updated_at`

	err := dbConn.QueryRow(ctx, sql, prop.ID, prop.BuildingID, prop.FloorNumber,
		prop.AreaM2, prop.Layout, prop.Direction, prop.RoomNumber, prop.BalconyAreaM2,
		prop.ManagementFee, prop.RepairFund, prop.CurrentPrice, prop.FinalPrice,
		prop.SoldAt, prop.EarliestListingDate, prop.LatestPriceChangeAt,
		prop.DisplayBuildingName, prop.IsResale, prop.TransactionType).
		Scan(&prop.CreatedAt, &prop.UpdatedAt)
	if err != nil {
		log.Error().Err(err).Int64("MasterPropertyID", prop.ID).
			Msg("error restoring master property with explicit id")
	}

	return err
}

func (prop *MasterProperty) Update(ctx context.Context, dbConn Querier) error {
	sql := `UPDATE master_properties SET
		building_id = $2,
		floor_number = $3,
		area_m2 = $4,
		layout = $5,
		direction = $6,
		room_number = $7,
		balcony_area_m2 = $8,
		management_fee = $9,
		repair_fund = $10,
		current_price = $11,
		final_price = $12,
		sold_at = $13,
		earliest_listing_date = $14,
		latest_price_change_at = $15,
		display_building_name = $16,
		is_resale = $17,
		transaction_type = $18,
		updated_at = now()
	WHERE id = $1`

	_, err := dbConn.Exec(ctx, sql, prop.ID, prop.BuildingID, prop.FloorNumber,
		prop.AreaM2, prop.Layout, prop.Direction, prop.RoomNumber, prop.BalconyAreaM2,
		prop.ManagementFee, prop.RepairFund, prop.CurrentPrice, prop.FinalPrice,
		prop.SoldAt, prop.EarliestListingDate, prop.LatestPriceChangeAt,
		prop.DisplayBuildingName, prop.IsResale, prop.TransactionType)
	if err != nil {
		log.Error().Err(err).Int64("MasterPropertyID", prop.ID).Str("SQL", sql).
			Msg("error updating master property")
	}

	return err
}

func (prop *MasterProperty) Delete(ctx context.Context, dbConn Querier) error {
	_, err := dbConn.Exec(ctx, `DELETE FROM master_properties WHERE id = $1`, prop.ID)
	if err != nil {
		log.Error().Err(err).Int64("MasterPropertyID", prop.ID).
			Msg("error deleting master property")
	}

	return err
}

func MasterPropertyByID(ctx context.Context, dbConn Querier, id int64) (*MasterProperty, error) {
	var prop MasterProperty

	err := pgxscan.Get(ctx, dbConn, &prop,
		`SELECT * FROM master_properties WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return &prop, nil
}

// MasterPropertiesForBuilding loads every unit under a building ordered by
// id so callers lock rows in a stable order.
func MasterPropertiesForBuilding(ctx context.Context, dbConn Querier, buildingID int64) ([]*MasterProperty, error) {
	props := make([]*MasterProperty, 0, 16)

	err := pgxscan.Select(ctx, dbConn, &props,
		`SELECT * FROM master_properties WHERE building_id = $1 ORDER BY id`, buildingID)
	if err != nil {
		return nil, err
	}

	return props, nil
}

// MovePropertiesToBuilding rebinds every unit of one building to another and
// returns the moved ids in ascending order.
func MovePropertiesToBuilding(ctx context.Context, dbConn Querier, fromBuildingID, toBuildingID int64) ([]int64, error) {
	rows, err := dbConn.Query(ctx, `UPDATE master_properties
		SET building_id = $2, updated_at = now()
		WHERE building_id = $1 RETURNING id`, fromBuildingID, toBuildingID)
	if err != nil {
		log.Error().Err(err).Int64("FromBuildingID", fromBuildingID).
			Int64("ToBuildingID", toBuildingID).Msg("error moving master properties")

		return nil, err
	}

	defer rows.Close()

	var ids []int64

	for rows.Next() {
		var id int64

		if err := rows.Scan(&id); err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.Sort(ids)

	return ids, nil
}

// ReassignProperties rebinds an explicit id set; ids no longer present are
// skipped, so a revert tolerates units folded away since the merge.
func ReassignProperties(ctx context.Context, dbConn Querier, ids []int64, buildingID int64) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := dbConn.Exec(ctx, `UPDATE master_properties
		SET building_id = $2, updated_at = now()
		WHERE id = ANY($1)`, ids, buildingID)
	if err != nil {
		log.Error().Err(err).Int64("BuildingID", buildingID).
			Msg("error reassigning master properties")
	}

	return err
}
