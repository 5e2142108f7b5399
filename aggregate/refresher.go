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

// Package aggregate derives canonical building and master-property
// attributes by majority vote over their listings. Listings are the only
// ballots; the owner row is written through and never votes on itself, so
// repeated refreshes converge.
package aggregate

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/mansion-watch/mwdata/catalog"
	"github.com/mansion-watch/mwdata/data"
)

// VoteBuilding recomputes the building's ballot-driven attributes from its
// listings and reports whether any field moved. Identity fields
// (canonical_name, normalized_address) belong to the resolver and are left
// alone.
func VoteBuilding(building *data.Building, listings []*data.Listing) bool {
	electorate := voters(listings)
	changed := false

	if assignMode(&building.TotalFloors, gather(electorate, func(l *data.Listing) *int { return l.ListingTotalFloors })) {
		changed = true
	}

	if assignMode(&building.BasementFloors, gather(electorate, func(l *data.Listing) *int { return l.ListingBasementFloors })) {
		changed = true
	}

	if assignMode(&building.BuiltYear, gather(electorate, func(l *data.Listing) *int { return l.ListingBuiltYear })) {
		changed = true
	}

	if assignMode(&building.BuiltMonth, gather(electorate, func(l *data.Listing) *int { return l.ListingBuiltMonth })) {
		changed = true
	}

	if assignMode(&building.TotalUnits, gather(electorate, func(l *data.Listing) *int { return l.ListingTotalUnits })) {
		changed = true
	}

	if assignMode(&building.ConstructionType, gather(electorate, func(l *data.Listing) *string { return l.ListingConstructionType })) {
		changed = true
	}

	return changed
}

// VoteProperty recomputes the master property's ballot-driven attributes.
// current_price is special: only active listings vote and losing the last
// active listing clears it. is_resale and transaction_type stay untouched;
// they are scraper passthrough, written once when the unit is first seen.
func VoteProperty(prop *data.MasterProperty, listings []*data.Listing) bool {
	electorate := voters(listings)
	changed := false

	if assignMode(&prop.FloorNumber, gather(electorate, func(l *data.Listing) *int { return l.FloorNumber })) {
		changed = true
	}

	if assignMode(&prop.AreaM2, gather(electorate, func(l *data.Listing) *float64 { return l.AreaM2 })) {
		changed = true
	}

	if assignMode(&prop.Layout, gather(electorate, func(l *data.Listing) *string { return l.Layout })) {
		changed = true
	}

	if assignMode(&prop.Direction, gather(electorate, func(l *data.Listing) *string { return l.Direction })) {
		changed = true
	}

	if assignMode(&prop.RoomNumber, gather(electorate, func(l *data.Listing) *string { return l.RoomNumber })) {
		changed = true
	}

	if assignMode(&prop.BalconyAreaM2, gather(electorate, func(l *data.Listing) *float64 { return l.BalconyAreaM2 })) {
		changed = true
	}

	if assignMode(&prop.ManagementFee, gather(electorate, func(l *data.Listing) *int { return l.ManagementFee })) {
		changed = true
	}

	if assignMode(&prop.RepairFund, gather(electorate, func(l *data.Listing) *int { return l.RepairFund })) {
		changed = true
	}

	if assignMode(&prop.DisplayBuildingName, gather(electorate, func(l *data.Listing) *string {
		if l.ListingBuildingName == nil || *l.ListingBuildingName == "" {
			return nil
		}

		return l.ListingBuildingName
	})) {
		changed = true
	}

	if votePrice(prop, listings) {
		changed = true
	}

	return changed
}

func votePrice(prop *data.MasterProperty, listings []*data.Listing) bool {
	ballots := make([]Ballot[int64], 0, len(listings))

	for _, listing := range listings {
		if listing.IsActive && listing.CurrentPrice != nil {
			ballots = append(ballots, Ballot[int64]{Value: *listing.CurrentPrice, ObservedAt: listing.LastConfirmedAt})
		}
	}

	var price *int64
	if value, ok := Mode(ballots); ok {
		price = &value
	}

	switch {
	case prop.CurrentPrice == nil && price == nil:
		return false
	case prop.CurrentPrice != nil && price != nil && *prop.CurrentPrice == *price:
		return false
	}

	prop.CurrentPrice = price

	return true
}

// RefreshBuilding re-votes one building inside the caller's transaction and
// returns the post-vote row.
func RefreshBuilding(ctx context.Context, dbConn data.Querier, buildingID int64) (*data.Building, error) {
	building, err := data.BuildingByID(ctx, dbConn, buildingID)
	if err != nil {
		return nil, err
	}

	listings, err := data.ListingsForBuilding(ctx, dbConn, buildingID)
	if err != nil {
		return nil, err
	}

	if VoteBuilding(building, listings) {
		if err := building.Update(ctx, dbConn); err != nil {
			return nil, err
		}
	}

	return building, nil
}

// RefreshProperty re-votes one master property inside the caller's
// transaction and returns the post-vote row.
func RefreshProperty(ctx context.Context, dbConn data.Querier, propertyID int64) (*data.MasterProperty, error) {
	prop, err := data.MasterPropertyByID(ctx, dbConn, propertyID)
	if err != nil {
		return nil, err
	}

	listings, err := data.ListingsForProperty(ctx, dbConn, propertyID)
	if err != nil {
		return nil, err
	}

	if VoteProperty(prop, listings) {
		if err := prop.Update(ctx, dbConn); err != nil {
			return nil, err
		}
	}

	return prop, nil
}

// Refresher runs aggregate refreshes as standalone units of work; the
// resolve and merge paths call the Refresh* functions inside their own
// transactions instead.
type Refresher struct {
	Catalog *catalog.Catalog
}

func (refresher *Refresher) RefreshBuilding(ctx context.Context, buildingID int64) (*data.Building, error) {
	var building *data.Building

	err := refresher.Catalog.WithRetry(ctx, func(tx pgx.Tx) error {
		var err error
		building, err = RefreshBuilding(ctx, tx, buildingID)

		return err
	})

	return building, err
}

func (refresher *Refresher) RefreshProperty(ctx context.Context, propertyID int64) (*data.MasterProperty, error) {
	var prop *data.MasterProperty

	err := refresher.Catalog.WithRetry(ctx, func(tx pgx.Tx) error {
		var err error
		prop, err = RefreshProperty(ctx, tx, propertyID)

		return err
	})

	return prop, err
}
