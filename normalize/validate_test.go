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
package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/mansion-watch/mwdata/data"
)

func observedListing() *data.RawListing {
	return &data.RawListing{
		SourceSite:     "suumo",
		SitePropertyID: "sm-001",
		ObservedAt:     time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestListingRejections(t *testing.T) {
	noSite := observedListing()
	noSite.SourceSite = ""

	noID := observedListing()
	noID.SitePropertyID = ""

	noTime := observedListing()
	noTime.ObservedAt = time.Time{}

	tests := []struct {
		name string
		raw  *data.RawListing
		want error
	}{
		{"missing source site", noSite, ErrMissingIdentity},
		{"missing site property id", noID, ErrMissingIdentity},
		{"missing observed at", noTime, ErrMissingObservedAt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Listing(tt.raw)
			if !errors.Is(err, tt.want) {
				t.Errorf("Listing() err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestListingTypedFields(t *testing.T) {
	floor := 4
	area := 70.2
	balcony := 10.5
	price := int64(5980)
	fee := 12000
	fund := 8000
	totalFloors := 12
	builtYear := 2015
	builtMonth := 3
	totalUnits := 120

	raw := observedListing()
	raw.ListingBuildingName = "パークハイム芝浦"
	raw.ListingAddress = "東京都港区芝浦4丁目2-1"
	raw.FloorNumber = &floor
	raw.AreaM2 = &area
	raw.BalconyAreaM2 = &balcony
	raw.Layout = "3LDK"
	raw.Direction = "南向き"
	raw.RoomNumber = "301"
	raw.CurrentPrice = &price
	raw.ManagementFee = &fee
	raw.RepairFund = &fund
	raw.ListingTotalFloors = &totalFloors
	raw.ListingBuiltYear = &builtYear
	raw.ListingBuiltMonth = &builtMonth
	raw.ListingTotalUnits = &totalUnits

	norm, drops, err := Listing(raw)
	if err != nil {
		t.Fatalf("Listing() unexpected error: %v", err)
	}

	if len(drops) != 0 {
		t.Errorf("Listing() drops = %v, want none", drops)
	}

	if norm.NormalizedName != "パークハイム芝浦" {
		t.Errorf("normalized name = %q", norm.NormalizedName)
	}

	if norm.CanonicalName == "" {
		t.Error("canonical name is empty")
	}

	if norm.StationNoise {
		t.Error("plain building name flagged as station noise")
	}

	if norm.Layout == nil || *norm.Layout != "3LDK" {
		t.Errorf("layout = %v, want 3LDK", norm.Layout)
	}

	if norm.Direction == nil || *norm.Direction != "南" {
		t.Errorf("direction = %v, want 南", norm.Direction)
	}

	if norm.RoomNumber == nil || *norm.RoomNumber != "301" {
		t.Errorf("room number = %v, want 301", norm.RoomNumber)
	}

	checkIntPtr(t, "floor", norm.FloorNumber, &floor)
	checkIntPtr(t, "totalFloors", norm.TotalFloors, &totalFloors)
	checkIntPtr(t, "builtYear", norm.BuiltYear, &builtYear)
	checkIntPtr(t, "builtMonth", norm.BuiltMonth, &builtMonth)
	checkIntPtr(t, "totalUnits", norm.TotalUnits, &totalUnits)

	if norm.AreaM2 == nil || *norm.AreaM2 != area {
		t.Errorf("area = %v, want %v", norm.AreaM2, area)
	}

	if norm.CurrentPrice == nil || *norm.CurrentPrice != price {
		t.Errorf("price = %v, want %d", norm.CurrentPrice, price)
	}
}

func TestListingTextFallbacks(t *testing.T) {
	raw := observedListing()
	raw.ListingBuildingName = "シティタワーズ豊洲"
	raw.PriceText = "5,980万円"
	raw.AreaText = "70.2㎡"
	raw.FloorText = "4階/SRC地上12階地下1階建"
	raw.BuiltText = "平成27年3月"
	raw.UnitsText = "総戸数120戸"

	norm, drops, err := Listing(raw)
	if err != nil {
		t.Fatalf("Listing() unexpected error: %v", err)
	}

	if len(drops) != 0 {
		t.Errorf("Listing() drops = %v, want none", drops)
	}

	if norm.CurrentPrice == nil || *norm.CurrentPrice != 5980 {
		t.Errorf("price from text = %v, want 5980", norm.CurrentPrice)
	}

	if norm.AreaM2 == nil || *norm.AreaM2 != 70.2 {
		t.Errorf("area from text = %v, want 70.2", norm.AreaM2)
	}

	checkIntPtr(t, "floor", norm.FloorNumber, intPtr(4))
	checkIntPtr(t, "totalFloors", norm.TotalFloors, intPtr(12))
	checkIntPtr(t, "basementFloors", norm.BasementFloors, intPtr(1))
	checkIntPtr(t, "builtYear", norm.BuiltYear, intPtr(2015))
	checkIntPtr(t, "builtMonth", norm.BuiltMonth, intPtr(3))
	checkIntPtr(t, "totalUnits", norm.TotalUnits, intPtr(120))

	if norm.ConstructionType == nil || *norm.ConstructionType != "SRC" {
		t.Errorf("construction type = %v, want SRC", norm.ConstructionType)
	}
}

func TestListingDropsOutOfRange(t *testing.T) {
	floor := 150
	area := 5.0
	balcony := -2.0
	price := int64(50)
	fee := -5
	fund := -1
	builtYear := 1850
	builtMonth := 6

	raw := observedListing()
	raw.ListingBuildingName = "パークハイム芝浦"
	raw.FloorNumber = &floor
	raw.AreaM2 = &area
	raw.BalconyAreaM2 = &balcony
	raw.Layout = "3LDX"
	raw.Direction = "角部屋"
	raw.CurrentPrice = &price
	raw.ManagementFee = &fee
	raw.RepairFund = &fund
	raw.ListingBuiltYear = &builtYear
	raw.ListingBuiltMonth = &builtMonth

	norm, drops, err := Listing(raw)
	if err != nil {
		t.Fatalf("Listing() must proceed with dropped fields, got error: %v", err)
	}

	wantDropped := []string{
		"floor_number", "area_m2", "balcony_area_m2", "layout", "direction",
		"current_price", "management_fee", "repair_fund", "listing_built_year",
	}

	for _, field := range wantDropped {
		if drops[field] != 1 {
			t.Errorf("drops[%q] = %d, want 1", field, drops[field])
		}
	}

	// dropping the year discards the month silently
	if _, counted := drops["listing_built_month"]; counted {
		t.Error("month of a dropped year must not count separately")
	}

	if norm.FloorNumber != nil || norm.AreaM2 != nil || norm.CurrentPrice != nil {
		t.Error("out-of-range numeric fields must be nil")
	}

	if norm.Layout != nil || norm.Direction != nil {
		t.Error("unparseable layout and direction must be nil")
	}

	if norm.BuiltYear != nil || norm.BuiltMonth != nil {
		t.Error("implausible built year must drop year and month")
	}
}

func TestListingRoomNumberFromName(t *testing.T) {
	raw := observedListing()
	raw.ListingBuildingName = "パークハイム芝浦301号室"

	norm, _, err := Listing(raw)
	if err != nil {
		t.Fatalf("Listing() unexpected error: %v", err)
	}

	if norm.NormalizedName != "パークハイム芝浦" {
		t.Errorf("normalized name = %q, want パークハイム芝浦", norm.NormalizedName)
	}

	if norm.RoomNumber == nil || *norm.RoomNumber != "301" {
		t.Errorf("room number = %v, want 301 from name tail", norm.RoomNumber)
	}

	// an explicit room number beats the name tail
	raw.RoomNumber = "502"

	norm, _, err = Listing(raw)
	if err != nil {
		t.Fatalf("Listing() unexpected error: %v", err)
	}

	if norm.RoomNumber == nil || *norm.RoomNumber != "502" {
		t.Errorf("room number = %v, want explicit 502", norm.RoomNumber)
	}
}

func TestListingStationNoise(t *testing.T) {
	raw := observedListing()
	raw.ListingBuildingName = "恵比寿駅徒歩5分"

	norm, _, err := Listing(raw)
	if err != nil {
		t.Fatalf("Listing() unexpected error: %v", err)
	}

	if !norm.StationNoise {
		t.Error("transit description not flagged as station noise")
	}

	if norm.CanonicalName == "" {
		t.Error("station noise still needs a placeholder canonical key")
	}
}
