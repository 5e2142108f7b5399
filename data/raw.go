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

import "time"

// RawListing is the uniform record every portal parser emits, one per
// listing sighting. Typed fields take precedence; the *Text fields carry the
// portal's raw rendering for parsers that could not extract a number, and
// the normaliser runs its extractors over them when the typed field is nil.
type RawListing struct {
	SourceSite     string `json:"source_site"`
	SitePropertyID string `json:"site_property_id"`
	URL            string `json:"url"`

	ListingBuildingName   string `json:"listing_building_name,omitempty"`
	ListingAddress        string `json:"listing_address,omitempty"`
	ListingTotalFloors    *int   `json:"listing_total_floors,omitempty"`
	ListingBasementFloors *int   `json:"listing_basement_floors,omitempty"`
	ListingBuiltYear      *int   `json:"listing_built_year,omitempty"`
	ListingBuiltMonth     *int   `json:"listing_built_month,omitempty"`
	ListingTotalUnits     *int   `json:"listing_total_units,omitempty"`

	FloorNumber   *int     `json:"floor_number,omitempty"`
	AreaM2        *float64 `json:"area_m2,omitempty"`
	Layout        string   `json:"layout,omitempty"`
	Direction     string   `json:"direction,omitempty"`
	RoomNumber    string   `json:"room_number,omitempty"`
	BalconyAreaM2 *float64 `json:"balcony_area_m2,omitempty"`

	CurrentPrice  *int64 `json:"current_price,omitempty"` // unit: 10,000 JPY
	ManagementFee *int   `json:"management_fee,omitempty"`
	RepairFund    *int   `json:"repair_fund,omitempty"`

	IsResale        *bool  `json:"is_resale,omitempty"`
	TransactionType string `json:"transaction_type,omitempty"`

	// Raw portal text, consulted only when the typed field above is nil.
	PriceText  string `json:"price_text,omitempty"`
	AreaText   string `json:"area_text,omitempty"`
	FloorText  string `json:"floor_text,omitempty"`  // e.g. 4階/SRC地上12階地下1階建
	BuiltText  string `json:"built_text,omitempty"`  // e.g. 平成27年3月
	UnitsText  string `json:"units_text,omitempty"`  // e.g. 総戸数120戸
	SourceYomi string `json:"source_yomi,omitempty"` // reading hint, passthrough

	PublishedAt      *time.Time `json:"published_at,omitempty"`
	FirstPublishedAt *time.Time `json:"first_published_at,omitempty"`
	ObservedAt       time.Time  `json:"observed_at"`
}

// NormalizedListing is the resolver's working form of a RawListing after
// name/address canonicalisation and range validation. Nil ballot fields
// abstain from every vote.
type NormalizedListing struct {
	Raw *RawListing

	NormalizedName string
	CanonicalName  string
	StationNoise   bool

	NormalizedAddress string
	AddressDetail     int

	TotalFloors      *int
	BasementFloors   *int
	BuiltYear        *int
	BuiltMonth       *int
	TotalUnits       *int
	ConstructionType *string

	FloorNumber   *int
	AreaM2        *float64
	Layout        *string
	Direction     *string
	RoomNumber    *string
	BalconyAreaM2 *float64

	CurrentPrice  *int64
	ManagementFee *int
	RepairFund    *int

	ObservedAt time.Time
}

// Triple reports the building-identity attributes of the listing ballot and
// whether all three are present.
func (norm *NormalizedListing) Triple() (floors, year, units int, complete bool) {
	if norm.TotalFloors == nil || norm.BuiltYear == nil || norm.TotalUnits == nil {
		return 0, 0, 0, false
	}

	return *norm.TotalFloors, *norm.BuiltYear, *norm.TotalUnits, true
}
