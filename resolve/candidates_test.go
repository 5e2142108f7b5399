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
package resolve

import (
	"testing"
	"time"

	"github.com/mansion-watch/mwdata/data"
	"github.com/mansion-watch/mwdata/normalize"
)

func intPtr(v int) *int             { return &v }
func int64Ptr(v int64) *int64       { return &v }
func strPtr(v string) *string       { return &v }
func float64Ptr(v float64) *float64 { return &v }

var observedAt = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func normalized(t *testing.T, raw *data.RawListing) *data.NormalizedListing {
	t.Helper()

	if raw.SourceSite == "" {
		raw.SourceSite = "suumo"
	}

	if raw.SitePropertyID == "" {
		raw.SitePropertyID = "test-1"
	}

	if raw.ObservedAt.IsZero() {
		raw.ObservedAt = observedAt
	}

	norm, _, err := normalize.Listing(raw)
	if err != nil {
		t.Fatalf("normalize.Listing() error: %v", err)
	}

	return norm
}

func candidate(id int64, canonical, address string, floors, year, units, propertyCount int) *BuildingCandidate {
	return &BuildingCandidate{
		Building: data.Building{
			ID:                id,
			CanonicalName:     canonical,
			NormalizedAddress: address,
			TotalFloors:       intPtr(floors),
			BuiltYear:         intPtr(year),
			TotalUnits:        intPtr(units),
		},
		PropertyCount: propertyCount,
	}
}

func TestChooseBuildingExactTriple(t *testing.T) {
	norm := normalized(t, &data.RawListing{
		ListingBuildingName: "パークコート 赤坂",
		ListingAddress:      "東京都港区赤坂９丁目１−１",
		ListingTotalFloors:  intPtr(20),
		ListingBuiltYear:    intPtr(2015),
		ListingTotalUnits:   intPtr(120),
		FloorNumber:         intPtr(12),
		AreaM2:              float64Ptr(75.3),
		Layout:              "2LDK",
		Direction:           "南東",
		CurrentPrice:        int64Ptr(15800),
	})

	if norm.CanonicalName != "パークコート赤坂" {
		t.Fatalf("canonical name = %q, want パークコート赤坂", norm.CanonicalName)
	}

	if norm.NormalizedAddress != "東京都港区赤坂9-1-1" {
		t.Fatalf("normalized address = %q, want 東京都港区赤坂9-1-1", norm.NormalizedAddress)
	}

	candidates := []*BuildingCandidate{
		candidate(1, "パークコート赤坂", "東京都港区赤坂9-1-1", 20, 2015, 120, 5),
	}

	chosen := chooseBuilding(candidates, norm)
	if chosen == nil || chosen.ID != 1 {
		t.Fatalf("chooseBuilding() = %+v, want building 1", chosen)
	}
}

func TestChooseBuildingAddressPrefixCompletion(t *testing.T) {
	norm := normalized(t, &data.RawListing{
		ListingBuildingName: "芝浦アイランドタワー",
		ListingAddress:      "東京都港区芝浦4-10-1",
		ListingTotalFloors:  intPtr(47),
		ListingBuiltYear:    intPtr(2007),
		ListingTotalUnits:   intPtr(869),
	})

	// the stored address sits at town+chome level; the listing completes it
	candidates := []*BuildingCandidate{
		candidate(2, norm.CanonicalName, "東京都港区芝浦4", 47, 2007, 869, 12),
	}

	chosen := chooseBuilding(candidates, norm)
	if chosen == nil || chosen.ID != 2 {
		t.Fatalf("chooseBuilding() = %+v, want building 2", chosen)
	}
}

func TestChooseBuildingRejectsTripleMismatch(t *testing.T) {
	norm := normalized(t, &data.RawListing{
		ListingBuildingName: "パークコート赤坂",
		ListingAddress:      "東京都港区赤坂9-1-1",
		ListingTotalFloors:  intPtr(35),
		ListingBuiltYear:    intPtr(2020),
		ListingTotalUnits:   intPtr(450),
	})

	candidates := []*BuildingCandidate{
		candidate(3, norm.CanonicalName, "東京都港区赤坂9-1-1", 20, 2015, 120, 3),
	}

	if chosen := chooseBuilding(candidates, norm); chosen != nil {
		t.Fatalf("chooseBuilding() = building %d, want no attach", chosen.ID)
	}
}

func TestChooseBuildingRequiresCompleteListingTriple(t *testing.T) {
	norm := normalized(t, &data.RawListing{
		ListingBuildingName: "パークコート赤坂",
		ListingAddress:      "東京都港区赤坂9-1-1",
		ListingTotalFloors:  intPtr(20),
		ListingBuiltYear:    intPtr(2015),
	})

	candidates := []*BuildingCandidate{
		candidate(4, norm.CanonicalName, "東京都港区赤坂9-1-1", 20, 2015, 120, 3),
	}

	if chosen := chooseBuilding(candidates, norm); chosen != nil {
		t.Fatalf("chooseBuilding() attached without total_units, chose building %d", chosen.ID)
	}
}

func TestChooseBuildingRequiresCompleteCandidateTriple(t *testing.T) {
	norm := normalized(t, &data.RawListing{
		ListingBuildingName: "パークコート赤坂",
		ListingAddress:      "東京都港区赤坂9-1-1",
		ListingTotalFloors:  intPtr(20),
		ListingBuiltYear:    intPtr(2015),
		ListingTotalUnits:   intPtr(120),
	})

	incomplete := candidate(5, norm.CanonicalName, "東京都港区赤坂9-1-1", 20, 2015, 120, 3)
	incomplete.TotalUnits = nil

	if chosen := chooseBuilding([]*BuildingCandidate{incomplete}, norm); chosen != nil {
		t.Fatalf("chooseBuilding() attached to a candidate without total_units, chose building %d", chosen.ID)
	}
}

func TestChooseBuildingSkipsAddressesOutsideChain(t *testing.T) {
	norm := normalized(t, &data.RawListing{
		ListingBuildingName: "芝浦アイランドタワー",
		ListingAddress:      "東京都港区芝浦4-10-1",
		ListingTotalFloors:  intPtr(47),
		ListingBuiltYear:    intPtr(2007),
		ListingTotalUnits:   intPtr(869),
	})

	candidates := []*BuildingCandidate{
		// different chome entirely
		candidate(6, norm.CanonicalName, "東京都港区芝浦5", 47, 2007, 869, 3),
		// digit boundary: banchi 1 does not complete into banchi 10
		candidate(7, norm.CanonicalName, "東京都港区芝浦4-1", 47, 2007, 869, 3),
	}

	if chosen := chooseBuilding(candidates, norm); chosen != nil {
		t.Fatalf("chooseBuilding() = building %d, want no attach", chosen.ID)
	}
}

func TestChooseBuildingPrefersExactAddressOverPrefix(t *testing.T) {
	norm := normalized(t, &data.RawListing{
		ListingBuildingName: "芝浦アイランドタワー",
		ListingAddress:      "東京都港区芝浦4-10-1",
		ListingTotalFloors:  intPtr(47),
		ListingBuiltYear:    intPtr(2007),
		ListingTotalUnits:   intPtr(869),
	})

	candidates := []*BuildingCandidate{
		candidate(8, norm.CanonicalName, "東京都港区芝浦4", 47, 2007, 869, 50),
		candidate(9, norm.CanonicalName, "東京都港区芝浦4-10-1", 47, 2007, 869, 1),
	}

	chosen := chooseBuilding(candidates, norm)
	if chosen == nil || chosen.ID != 9 {
		t.Fatalf("chooseBuilding() = %+v, want exact-address building 9", chosen)
	}
}

func TestChooseBuildingTieBreaks(t *testing.T) {
	norm := normalized(t, &data.RawListing{
		ListingBuildingName: "芝浦アイランドタワー",
		ListingAddress:      "東京都港区芝浦4-10-1",
		ListingTotalFloors:  intPtr(47),
		ListingBuiltYear:    intPtr(2007),
		ListingTotalUnits:   intPtr(869),
	})

	byCount := []*BuildingCandidate{
		candidate(10, norm.CanonicalName, "東京都港区芝浦4-10-1", 47, 2007, 869, 3),
		candidate(11, norm.CanonicalName, "東京都港区芝浦4-10-1", 47, 2007, 869, 7),
	}

	if chosen := chooseBuilding(byCount, norm); chosen == nil || chosen.ID != 11 {
		t.Fatalf("chooseBuilding() = %+v, want building 11 with more units", chosen)
	}

	byID := []*BuildingCandidate{
		candidate(13, norm.CanonicalName, "東京都港区芝浦4-10-1", 47, 2007, 869, 3),
		candidate(12, norm.CanonicalName, "東京都港区芝浦4-10-1", 47, 2007, 869, 3),
	}

	if chosen := chooseBuilding(byID, norm); chosen == nil || chosen.ID != 12 {
		t.Fatalf("chooseBuilding() = %+v, want lowest id 12", chosen)
	}
}

func TestBetterCandidate(t *testing.T) {
	exact := candidate(1, "A", "東京都港区芝浦4-10-1", 47, 2007, 869, 1)
	prefix := candidate(2, "A", "東京都港区芝浦4", 47, 2007, 869, 9)

	if !betterCandidate(exact, true, prefix, false) {
		t.Error("exact address should beat a prefix match regardless of unit count")
	}

	if betterCandidate(prefix, false, exact, true) {
		t.Error("prefix match should not beat an exact address")
	}

	bigger := candidate(3, "A", "東京都港区芝浦4", 47, 2007, 869, 9)
	smaller := candidate(4, "A", "東京都港区芝浦4", 47, 2007, 869, 2)

	if !betterCandidate(bigger, false, smaller, false) {
		t.Error("higher property count should win between equal address ranks")
	}

	if !betterCandidate(candidate(5, "A", "x", 1, 1, 1, 2), false, candidate(6, "A", "x", 1, 1, 1, 2), false) {
		t.Error("lowest id should win the final tie")
	}
}
