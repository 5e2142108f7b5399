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
package alias

import (
	"reflect"
	"testing"
	"time"

	"github.com/mansion-watch/mwdata/data"
)

func namedListing(name, source string, confirmedDaysAgo int) *data.Listing {
	return &data.Listing{
		ListingBuildingName: &name,
		SourceSite:          source,
		FirstSeenAt:         time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		LastConfirmedAt:     time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -confirmedDaysAgo),
	}
}

func TestBuildLedgerGroupsByCanonicalName(t *testing.T) {
	listings := []*data.Listing{
		namedListing("パークコート赤坂", "sumo", 3),
		namedListing("パークコート 赤坂", "sumo", 2),
		namedListing("パークコート赤坂", "homes", 1),
	}

	ledger := BuildLedger(7, listings)

	if len(ledger) != 1 {
		t.Fatalf("BuildLedger() produced %d entries, want 1: %+v", len(ledger), ledger)
	}

	entry := ledger[0]

	if entry.BuildingID != 7 {
		t.Errorf("building id = %d, want 7", entry.BuildingID)
	}

	if entry.CanonicalName != "パークコート赤坂" {
		t.Errorf("canonical name = %q", entry.CanonicalName)
	}

	if entry.OccurrenceCount != 3 {
		t.Errorf("occurrence count = %d, want 3", entry.OccurrenceCount)
	}

	// the spaced spelling appears once, the compact one twice
	if entry.DisplayName != "パークコート赤坂" {
		t.Errorf("display name = %q, want the most frequent form", entry.DisplayName)
	}

	if len(entry.SourceSites) != 2 || entry.SourceSites[0] != "homes" || entry.SourceSites[1] != "sumo" {
		t.Errorf("source sites = %v, want [homes sumo]", entry.SourceSites)
	}
}

func TestBuildLedgerDistinctNames(t *testing.T) {
	listings := []*data.Listing{
		namedListing("シティタワー麻布十番", "sumo", 2),
		namedListing("CITY TOWER 麻布十番", "homes", 1),
	}

	ledger := BuildLedger(3, listings)

	if len(ledger) != 2 {
		t.Fatalf("BuildLedger() produced %d entries, want 2", len(ledger))
	}

	// ordered by canonical name for deterministic rebuilds
	if ledger[0].CanonicalName >= ledger[1].CanonicalName {
		t.Errorf("ledger not sorted: %q then %q", ledger[0].CanonicalName, ledger[1].CanonicalName)
	}
}

func TestBuildLedgerSkipsStationNoise(t *testing.T) {
	listings := []*data.Listing{
		namedListing("六本木駅徒歩5分", "sumo", 1),
		namedListing("パークコート赤坂", "sumo", 1),
	}

	ledger := BuildLedger(1, listings)

	if len(ledger) != 1 || ledger[0].CanonicalName != "パークコート赤坂" {
		t.Fatalf("BuildLedger() = %+v, want the station-noise name dropped", ledger)
	}
}

func TestBuildLedgerStripsRoomNumbers(t *testing.T) {
	listings := []*data.Listing{
		namedListing("パークコート赤坂 1203号室", "sumo", 1),
		namedListing("パークコート赤坂", "homes", 1),
	}

	ledger := BuildLedger(1, listings)

	if len(ledger) != 1 {
		t.Fatalf("BuildLedger() produced %d entries, want 1", len(ledger))
	}

	if ledger[0].OccurrenceCount != 2 {
		t.Errorf("occurrence count = %d, want 2 with the room form folded in", ledger[0].OccurrenceCount)
	}
}

// Refresh deletes and rebuilds the ledger, so rebuilding from unchanged
// listings must reproduce it exactly.
func TestBuildLedgerRebuildIsStable(t *testing.T) {
	listings := []*data.Listing{
		namedListing("パークコート赤坂", "sumo", 3),
		namedListing("パークコート 赤坂", "homes", 2),
		namedListing("シティタワー麻布十番", "sumo", 1),
	}

	first := BuildLedger(7, listings)
	second := BuildLedger(7, listings)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("rebuild diverged:\nfirst  %+v\nsecond %+v", first, second)
	}
}

func TestBuildLedgerEmptyAndNilNames(t *testing.T) {
	empty := ""

	listings := []*data.Listing{
		{SourceSite: "sumo"},
		{ListingBuildingName: &empty, SourceSite: "sumo"},
	}

	if ledger := BuildLedger(1, listings); len(ledger) != 0 {
		t.Errorf("BuildLedger() = %+v, want empty", ledger)
	}
}
