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
	"time"

	"github.com/mansion-watch/mwdata/data"
)

// Plausibility ranges; values outside are dropped field-by-field while the
// listing proceeds.
const (
	MinPrice int64 = 100    // 万円
	MaxPrice int64 = 500000 // 万円

	MinArea float64 = 10
	MaxArea float64 = 1000

	MinFloor = -5
	MaxFloor = 100

	MinBuiltYear = 1900
)

var (
	ErrMissingIdentity   = errors.New("listing lacks source_site or site_property_id")
	ErrMissingObservedAt = errors.New("listing lacks observed_at")
)

func ValidPrice(price int64) bool {
	return price >= MinPrice && price <= MaxPrice
}

func ValidArea(area float64) bool {
	return area >= MinArea && area <= MaxArea
}

func ValidFloor(floor int) bool {
	return floor >= MinFloor && floor <= MaxFloor
}

func ValidTotalFloors(floors int) bool {
	return floors >= 1 && floors <= MaxFloor
}

func ValidBasementFloors(floors int) bool {
	return floors >= 0 && floors <= -MinFloor
}

func ValidBuiltYear(year int, now time.Time) bool {
	return year >= MinBuiltYear && year <= now.Year()+5
}

// Listing converts a RawListing into the resolver's working form. Numeric
// fields prefer the typed value and fall back to extracting from the raw
// portal text; out-of-range fields are dropped and counted per field name.
// Only a missing identity or observation time rejects the whole record.
func Listing(raw *data.RawListing) (*data.NormalizedListing, data.FieldDrops, error) {
	drops := make(data.FieldDrops)

	if raw.SourceSite == "" || raw.SitePropertyID == "" {
		return nil, drops, ErrMissingIdentity
	}

	if raw.ObservedAt.IsZero() {
		return nil, drops, ErrMissingObservedAt
	}

	norm := &data.NormalizedListing{Raw: raw, ObservedAt: raw.ObservedAt}

	name := NormalizeName(raw.ListingBuildingName)
	remainder, roomFromName := SplitRoomNumber(name)
	norm.NormalizedName = remainder

	if IsStationNoise(remainder) {
		norm.StationNoise = true
		norm.CanonicalName = StationNoiseKey(remainder)
	} else {
		norm.CanonicalName = CanonicalName(remainder)
	}

	norm.NormalizedAddress = NormalizeAddress(raw.ListingAddress)
	norm.AddressDetail = AddressDetail(norm.NormalizedAddress)

	if raw.Layout != "" {
		layout, err := NormalizeLayout(raw.Layout)
		if err != nil {
			drops.Add("layout")
		} else {
			norm.Layout = &layout
		}
	}

	if raw.Direction != "" {
		direction, err := NormalizeDirection(raw.Direction)
		if err != nil {
			drops.Add("direction")
		} else {
			norm.Direction = &direction
		}
	}

	switch {
	case raw.RoomNumber != "":
		room := NormalizeName(raw.RoomNumber)
		norm.RoomNumber = &room
	case roomFromName != "":
		norm.RoomNumber = &roomFromName
	}

	textFloor, textTotal, textBasement := ParseFloorCounts(raw.FloorText)

	floor := raw.FloorNumber
	if floor == nil {
		floor = textFloor
	}

	if floor != nil {
		if ValidFloor(*floor) {
			norm.FloorNumber = floor
		} else {
			drops.Add("floor_number")
		}
	}

	totalFloors := raw.ListingTotalFloors
	if totalFloors == nil {
		totalFloors = textTotal
	}

	if totalFloors != nil {
		if ValidTotalFloors(*totalFloors) {
			norm.TotalFloors = totalFloors
		} else {
			drops.Add("listing_total_floors")
		}
	}

	basement := raw.ListingBasementFloors
	if basement == nil {
		basement = textBasement
	}

	if basement != nil {
		if ValidBasementFloors(*basement) {
			norm.BasementFloors = basement
		} else {
			drops.Add("listing_basement_floors")
		}
	}

	now := raw.ObservedAt

	year := raw.ListingBuiltYear
	month := raw.ListingBuiltMonth

	if year == nil && raw.BuiltText != "" {
		year, month = ParseBuiltYearMonth(raw.BuiltText)
	}

	if year != nil {
		if ValidBuiltYear(*year, now) {
			norm.BuiltYear = year
		} else {
			drops.Add("listing_built_year")
			month = nil
		}
	}

	if month != nil {
		if *month >= 1 && *month <= 12 {
			norm.BuiltMonth = month
		} else {
			drops.Add("listing_built_month")
		}
	}

	units := raw.ListingTotalUnits

	if units == nil && raw.UnitsText != "" {
		if value, ok := ParseTotalUnits(raw.UnitsText); ok {
			units = &value
		}
	}

	if units != nil {
		if *units > 0 {
			norm.TotalUnits = units
		} else {
			drops.Add("listing_total_units")
		}
	}

	if construction, ok := ParseConstructionType(raw.FloorText); ok {
		norm.ConstructionType = &construction
	}

	area := raw.AreaM2

	if area == nil && raw.AreaText != "" {
		if value, ok := ParseArea(raw.AreaText); ok {
			area = &value
		}
	}

	if area != nil {
		if ValidArea(*area) {
			norm.AreaM2 = area
		} else {
			drops.Add("area_m2")
		}
	}

	if raw.BalconyAreaM2 != nil {
		if *raw.BalconyAreaM2 >= 0 && *raw.BalconyAreaM2 <= MaxArea {
			norm.BalconyAreaM2 = raw.BalconyAreaM2
		} else {
			drops.Add("balcony_area_m2")
		}
	}

	price := raw.CurrentPrice

	if price == nil && raw.PriceText != "" {
		if value, ok := ParsePrice(raw.PriceText); ok {
			price = &value
		}
	}

	if price != nil {
		if ValidPrice(*price) {
			norm.CurrentPrice = price
		} else {
			drops.Add("current_price")
		}
	}

	if raw.ManagementFee != nil {
		if *raw.ManagementFee >= 0 {
			norm.ManagementFee = raw.ManagementFee
		} else {
			drops.Add("management_fee")
		}
	}

	if raw.RepairFund != nil {
		if *raw.RepairFund >= 0 {
			norm.RepairFund = raw.RepairFund
		} else {
			drops.Add("repair_fund")
		}
	}

	return norm, drops, nil
}
