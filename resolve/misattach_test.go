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
)

func identityBuilding(floors, year, units *int) *data.Building {
	return &data.Building{TotalFloors: floors, BuiltYear: year, TotalUnits: units}
}

func TestMisattached(t *testing.T) {
	tests := []struct {
		name     string
		building *data.Building
		norm     *data.NormalizedListing
		want     bool
	}{
		{
			"full agreement",
			identityBuilding(intPtr(12), intPtr(2015), intPtr(120)),
			&data.NormalizedListing{TotalFloors: intPtr(12), BuiltYear: intPtr(2015), TotalUnits: intPtr(120)},
			false,
		},
		{
			"single disagreement tolerated",
			identityBuilding(intPtr(12), intPtr(2015), intPtr(120)),
			&data.NormalizedListing{TotalFloors: intPtr(14), BuiltYear: intPtr(2015), TotalUnits: intPtr(120)},
			false,
		},
		{
			"two disagreements flag",
			identityBuilding(intPtr(12), intPtr(2015), intPtr(120)),
			&data.NormalizedListing{TotalFloors: intPtr(14), BuiltYear: intPtr(2009), TotalUnits: intPtr(120)},
			true,
		},
		{
			"all three disagree",
			identityBuilding(intPtr(12), intPtr(2015), intPtr(120)),
			&data.NormalizedListing{TotalFloors: intPtr(14), BuiltYear: intPtr(2009), TotalUnits: intPtr(88)},
			true,
		},
		{
			"unknown building fields cannot disagree",
			identityBuilding(nil, intPtr(2015), nil),
			&data.NormalizedListing{TotalFloors: intPtr(14), BuiltYear: intPtr(2009), TotalUnits: intPtr(88)},
			false,
		},
		{
			"sparse sighting never flags",
			identityBuilding(intPtr(12), intPtr(2015), intPtr(120)),
			&data.NormalizedListing{BuiltYear: intPtr(2009)},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := misattached(tt.building, tt.norm); got != tt.want {
				t.Errorf("misattached() = %v, want %v (disagreements = %d)",
					got, tt.want, tripleDisagreements(tt.building, tt.norm))
			}
		})
	}
}

func identityListing(floors, year, units *int, confirmed time.Time) *data.Listing {
	return &data.Listing{
		ListingTotalFloors: floors,
		ListingBuiltYear:   year,
		ListingTotalUnits:  units,
		LastConfirmedAt:    confirmed,
	}
}

func TestBallotMajorities(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	listings := []*data.Listing{
		identityListing(intPtr(12), intPtr(2015), intPtr(120), base),
		identityListing(intPtr(12), intPtr(2015), intPtr(120), base.Add(time.Hour)),
		identityListing(intPtr(14), intPtr(2015), intPtr(118), base.Add(2*time.Hour)),
	}

	floors, year, units, ok := ballotMajorities(listings)
	if !ok {
		t.Fatal("ballotMajorities() not ok despite ballots on every field")
	}

	if floors != 12 || year != 2015 || units != 120 {
		t.Errorf("majorities = (%d, %d, %d), want (12, 2015, 120)", floors, year, units)
	}
}

func TestBallotMajoritiesNeedsAllThreeFields(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// nobody reports total units
	listings := []*data.Listing{
		identityListing(intPtr(12), intPtr(2015), nil, base),
		identityListing(intPtr(12), intPtr(2015), nil, base.Add(time.Hour)),
	}

	if _, _, _, ok := ballotMajorities(listings); ok {
		t.Error("ballotMajorities() ok without any total_units ballot")
	}
}

func TestRealignTarget(t *testing.T) {
	norm := &data.NormalizedListing{
		CanonicalName:     "パークハイムシバウラ",
		NormalizedAddress: "東京都港区芝浦4-2-1",
	}

	current := candidate(1, "パークハイムシバウラ", "東京都港区芝浦4-2-1", 12, 2015, 120, 3)
	exact := candidate(2, "パークハイムシバウラ", "東京都港区芝浦4-2-1", 12, 2015, 120, 1)
	prefix := candidate(3, "パークハイムシバウラ", "東京都港区芝浦4-2", 12, 2015, 120, 5)
	wrongTriple := candidate(4, "パークハイムシバウラ", "東京都港区芝浦4-2-1", 9, 2015, 120, 9)
	elsewhere := candidate(5, "パークハイムシバウラ", "東京都江東区豊洲2-1-1", 12, 2015, 120, 9)

	got := realignTarget([]*BuildingCandidate{current, exact, prefix, wrongTriple, elsewhere},
		norm, current.ID, 12, 2015, 120)
	if got == nil || got.ID != exact.ID {
		t.Fatalf("realignTarget() = %+v, want exact-address building 2", got)
	}

	// without an exact-address candidate the prefix partner wins
	got = realignTarget([]*BuildingCandidate{current, prefix, wrongTriple, elsewhere},
		norm, current.ID, 12, 2015, 120)
	if got == nil || got.ID != prefix.ID {
		t.Fatalf("realignTarget() = %+v, want prefix partner building 3", got)
	}

	// the current building and mismatches leave nowhere to go
	got = realignTarget([]*BuildingCandidate{current, wrongTriple, elsewhere},
		norm, current.ID, 12, 2015, 120)
	if got != nil {
		t.Errorf("realignTarget() = %+v, want nil", got)
	}
}
