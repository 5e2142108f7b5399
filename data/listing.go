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
	"slices"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// Listing is one appearance of a MasterProperty on one source portal. The
// listing_* columns are per-listing observations of building attributes;
// they are ballots for the aggregator, never sources of truth.
type Listing struct {
	ID               int64  `json:"id"`
	MasterPropertyID int64  `json:"master_property_id"`
	SourceSite       string `json:"source_site"`
	SitePropertyID   string `json:"site_property_id"`
	URL              string `json:"url"`
	IsActive         bool   `json:"is_active"`

	CurrentPrice *int64 `json:"current_price"`

	ListingBuildingName     *string `json:"listing_building_name"`
	ListingAddress          *string `json:"listing_address"`
	ListingTotalFloors      *int    `json:"listing_total_floors"`
	ListingBasementFloors   *int    `json:"listing_basement_floors"`
	ListingBuiltYear        *int    `json:"listing_built_year"`
	ListingBuiltMonth       *int    `json:"listing_built_month"`
	ListingTotalUnits       *int    `json:"listing_total_units"`
	ListingConstructionType *string `json:"listing_construction_type"`

	FloorNumber   *int     `json:"floor_number"`
	AreaM2        *float64 `json:"area_m2"`
	Layout        *string  `json:"layout"`
	Direction     *string  `json:"direction"`
	RoomNumber    *string  `json:"room_number"`
	BalconyAreaM2 *float64 `json:"balcony_area_m2"`
	ManagementFee *int     `json:"management_fee"`
	RepairFund    *int     `json:"repair_fund"`

	IsResale        *bool   `json:"is_resale"`
	TransactionType *string `json:"transaction_type"`

	PublishedAt      *time.Time `json:"published_at"`
	FirstPublishedAt *time.Time `json:"first_published_at"`
	FirstSeenAt      time.Time  `json:"first_seen_at"`
	LastConfirmedAt  time.Time  `json:"last_confirmed_at"`
	DelistedAt       *time.Time `json:"delisted_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// EarliestDate is the listing's contribution to earliest_listing_date:
// first_published_at, else published_at, else first_seen_at, else
// created_at.
func (listing *Listing) EarliestDate() time.Time {
	if listing.FirstPublishedAt != nil {
		return *listing.FirstPublishedAt
	}

	if listing.PublishedAt != nil {
		return *listing.PublishedAt
	}

	if !listing.FirstSeenAt.IsZero() {
		return listing.FirstSeenAt
	}

	return listing.CreatedAt
}

func (listing *Listing) Insert(ctx context.Context, dbConn Querier) error {
	sql := `INSERT INTO listings (
		"master_property_id",
		"source_site",
		"site_property_id",
		"url",
		"is_active",
		"current_price",
		"listing_building_name",
		"listing_address",
		"listing_total_floors",
		"listing_basement_floors",
		"listing_built_year",
		"listing_built_month",
		"listing_total_units",
		"listing_construction_type",
		"floor_number",
		"area_m2",
		"layout",
		"direction",
		"room_number",
		"balcony_area_m2",
		"management_fee",
		"repair_fund",
		"is_resale",
		"transaction_type",
		"published_at",
		"first_published_at",
		"first_seen_at",
		"last_confirmed_at"
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28
	) RETURNING id, created_at, updated_at`

	err := dbConn.QueryRow(ctx, sql, listing.MasterPropertyID, listing.SourceSite,
		listing.SitePropertyID, listing.URL, listing.IsActive, listing.CurrentPrice,
		listing.ListingBuildingName, listing.ListingAddress, listing.ListingTotalFloors,
		listing.ListingBasementFloors, listing.ListingBuiltYear, listing.ListingBuiltMonth,
		listing.ListingTotalUnits, listing.ListingConstructionType, listing.FloorNumber,
		listing.AreaM2, listing.Layout,
		listing.Direction, listing.RoomNumber, listing.BalconyAreaM2, listing.ManagementFee,
		listing.RepairFund, listing.IsResale, listing.TransactionType, listing.PublishedAt,
		listing.FirstPublishedAt, listing.FirstSeenAt, listing.LastConfirmedAt).
		Scan(&listing.ID, &listing.CreatedAt, &listing.UpdatedAt)
	if err != nil {
		log.Error().Err(err).Str("SourceSite", listing.SourceSite).
			Str("SitePropertyID", listing.SitePropertyID).Msg("error inserting listing")
	}

	return err
}

func (listing *Listing) Update(ctx context.Context, dbConn Querier) error {
	sql := `UPDATE listings SET
		master_property_id = $2,
		url = $3,
		is_active = $4,
		current_price = $5,
		listing_building_name = $6,
		listing_address = $7,
		listing_total_floors = $8,
		listing_basement_floors = $9,
		listing_built_year = $10,
		listing_built_month = $11,
		listing_total_units = $12,
		listing_construction_type = $13,
		floor_number = $14,
		area_m2 = $15,
		layout = $16,
		direction = $17,
		room_number = $18,
		balcony_area_m2 = $19,
		management_fee = $20,
		repair_fund = $21,
		is_resale = $22,
		transaction_type = $23,
		published_at = $24,
		first_published_at = $25,
		last_confirmed_at = $26,
		delisted_at = $27,
		updated_at = now()
	WHERE id = $1`

	_, err := dbConn.Exec(ctx, sql, listing.ID, listing.MasterPropertyID, listing.URL,
		listing.IsActive, listing.CurrentPrice, listing.ListingBuildingName,
		listing.ListingAddress, listing.ListingTotalFloors, listing.ListingBasementFloors,
		listing.ListingBuiltYear, listing.ListingBuiltMonth, listing.ListingTotalUnits,
		listing.ListingConstructionType, listing.FloorNumber, listing.AreaM2,
		listing.Layout, listing.Direction,
		listing.RoomNumber, listing.BalconyAreaM2, listing.ManagementFee,
		listing.RepairFund, listing.IsResale, listing.TransactionType,
		listing.PublishedAt, listing.FirstPublishedAt, listing.LastConfirmedAt,
		listing.DelistedAt)
	if err != nil {
		log.Error().Err(err).Int64("ListingID", listing.ID).Str("SQL", sql).
			Msg("error updating listing")
	}

	return err
}

// Confirm bumps last_confirmed_at only; the sighting-cache fast path uses it
// when nothing else about the listing changed.
func (listing *Listing) Confirm(ctx context.Context, dbConn Querier, at time.Time) error {
	_, err := dbConn.Exec(ctx,
		`UPDATE listings SET last_confirmed_at = $2, updated_at = now() WHERE id = $1`,
		listing.ID, at)
	if err != nil {
		log.Error().Err(err).Int64("ListingID", listing.ID).
			Msg("error confirming listing sighting")
	}

	return err
}

// ListingBySource fetches the listing for one (source_site,
// site_property_id) pair, locking the row when forUpdate is set so
// concurrent sightings of the same listing serialise.
func ListingBySource(ctx context.Context, dbConn Querier, sourceSite, sitePropertyID string, forUpdate bool) (*Listing, error) {
	sql := `SELECT * FROM listings WHERE source_site = $1 AND site_property_id = $2`
	if forUpdate {
		sql += ` FOR UPDATE`
	}

	var listing Listing

	err := pgxscan.Get(ctx, dbConn, &listing, sql, sourceSite, sitePropertyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return &listing, nil
}

// ListingsForProperty loads all listings of a master property in id order.
func ListingsForProperty(ctx context.Context, dbConn Querier, propertyID int64) ([]*Listing, error) {
	listings := make([]*Listing, 0, 8)

	err := pgxscan.Select(ctx, dbConn, &listings,
		`SELECT * FROM listings WHERE master_property_id = $1 ORDER BY id`, propertyID)
	if err != nil {
		return nil, err
	}

	return listings, nil
}

// ListingsForBuilding loads every listing under every unit of a building;
// the aggregator assembles building-level ballots from the result.
func ListingsForBuilding(ctx context.Context, dbConn Querier, buildingID int64) ([]*Listing, error) {
	listings := make([]*Listing, 0, 32)

	err := pgxscan.Select(ctx, dbConn, &listings,
		`SELECT l.* FROM listings l
		JOIN master_properties mp ON mp.id = l.master_property_id
		WHERE mp.building_id = $1
		ORDER BY l.id`, buildingID)
	if err != nil {
		return nil, err
	}

	return listings, nil
}

// MoveListingsToProperty rebinds every listing of one unit to another and
// returns the moved ids in ascending order. Per-listing price history rides
// along on listing_id.
func MoveListingsToProperty(ctx context.Context, dbConn Querier, fromPropertyID, toPropertyID int64) ([]int64, error) {
	rows, err := dbConn.Query(ctx, `UPDATE listings
		SET master_property_id = $2, updated_at = now()
		WHERE master_property_id = $1 RETURNING id`, fromPropertyID, toPropertyID)
	if err != nil {
		log.Error().Err(err).Int64("FromPropertyID", fromPropertyID).
			Int64("ToPropertyID", toPropertyID).Msg("error moving listings")

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

// ReassignListings rebinds an explicit id set; missing ids are skipped.
func ReassignListings(ctx context.Context, dbConn Querier, ids []int64, propertyID int64) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := dbConn.Exec(ctx, `UPDATE listings
		SET master_property_id = $2, updated_at = now()
		WHERE id = ANY($1)`, ids, propertyID)
	if err != nil {
		log.Error().Err(err).Int64("PropertyID", propertyID).
			Msg("error reassigning listings")
	}

	return err
}
