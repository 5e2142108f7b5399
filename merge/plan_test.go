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
package merge

import (
	"context"
	"reflect"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/mansion-watch/mwdata/data"
)

func unit(id int64, floor int, area float64, layout, direction, room string, createdDaysAgo int) *data.MasterProperty {
	prop := &data.MasterProperty{
		ID:          id,
		FloorNumber: &floor,
		AreaM2:      &area,
		Layout:      &layout,
		Direction:   &direction,
		CreatedAt:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -createdDaysAgo),
	}

	if room != "" {
		prop.RoomNumber = &room
	}

	return prop
}

func TestStructuralClustersFoldsEqualUnits(t *testing.T) {
	// 1201 created later but structurally equal to the unnumbered unit
	properties := []*data.MasterProperty{
		unit(1, 12, 70.23, "3LDK", "南", "", 10),
		unit(2, 12, 70.21, "3LDK", "南", "1201", 5),
		unit(3, 8, 55.0, "2LDK", "南", "", 7),
	}

	clusters := structuralClusters(properties)

	if len(clusters) != 1 {
		t.Fatalf("structuralClusters() produced %d clusters, want 1", len(clusters))
	}

	if got := clusters[0][0].ID; got != 1 {
		t.Errorf("fold target = %d, want the earliest-created unit (1)", got)
	}

	if got := clusters[0][1].ID; got != 2 {
		t.Errorf("second member = %d, want 2", got)
	}
}

func TestStructuralClustersRespectsRoomNumbers(t *testing.T) {
	// same key tuple, but known differing room numbers are different units
	properties := []*data.MasterProperty{
		unit(1, 12, 70.2, "3LDK", "南", "1201", 10),
		unit(2, 12, 70.2, "3LDK", "南", "1202", 9),
		unit(3, 12, 70.2, "3LDK", "南", "1201", 3),
	}

	clusters := structuralClusters(properties)

	if len(clusters) != 1 {
		t.Fatalf("structuralClusters() produced %d clusters, want 1", len(clusters))
	}

	ids := []int64{clusters[0][0].ID, clusters[0][1].ID}
	if ids[0] != 1 || ids[1] != 3 {
		t.Errorf("cluster members = %v, want [1 3]", ids)
	}
}

func TestStructuralClustersUnknownRoomJoinsEither(t *testing.T) {
	// the unnumbered unit folds with the earliest-created numbered one
	properties := []*data.MasterProperty{
		unit(1, 12, 70.2, "3LDK", "南", "1201", 10),
		unit(2, 12, 70.2, "3LDK", "南", "1202", 9),
		unit(3, 12, 70.2, "3LDK", "南", "", 3),
	}

	clusters := structuralClusters(properties)

	if len(clusters) != 1 {
		t.Fatalf("structuralClusters() produced %d clusters, want 1", len(clusters))
	}

	if clusters[0][0].ID != 1 || clusters[0][1].ID != 3 {
		t.Errorf("cluster = [%d %d], want [1 3]", clusters[0][0].ID, clusters[0][1].ID)
	}
}

func TestStructuralClustersDistinctKeys(t *testing.T) {
	properties := []*data.MasterProperty{
		unit(1, 12, 70.2, "3LDK", "南", "", 10),
		unit(2, 12, 70.2, "3LDK", "南東", "", 9),
		unit(3, 11, 70.2, "3LDK", "南", "", 8),
	}

	if clusters := structuralClusters(properties); len(clusters) != 0 {
		t.Errorf("structuralClusters() produced %v, want none", clusters)
	}
}

func TestStructuralClustersHalfMetreRounding(t *testing.T) {
	// 70.2 and 70.3 round to different half-metre steps (70.0 vs 70.5)
	properties := []*data.MasterProperty{
		unit(1, 12, 70.2, "3LDK", "南", "", 10),
		unit(2, 12, 70.3, "3LDK", "南", "", 9),
		unit(3, 12, 70.1, "3LDK", "南", "", 8),
	}

	clusters := structuralClusters(properties)

	if len(clusters) != 1 {
		t.Fatalf("structuralClusters() produced %d clusters, want 1", len(clusters))
	}

	if clusters[0][0].ID != 1 || clusters[0][1].ID != 3 {
		t.Errorf("cluster = [%d %d], want [1 3]", clusters[0][0].ID, clusters[0][1].ID)
	}
}

func TestStructuralMatch(t *testing.T) {
	candidates := []*data.MasterProperty{
		unit(1, 12, 70.2, "3LDK", "南", "1201", 10),
		unit(2, 12, 70.2, "3LDK", "南", "", 9),
		unit(3, 8, 55.0, "2LDK", "南", "", 8),
	}

	incoming := unit(9, 12, 70.2, "3LDK", "南", "1202", 0)

	// unit 1 conflicts on room number; unit 2 has none and matches
	match := structuralMatch(candidates, incoming)
	if match == nil || match.ID != 2 {
		t.Fatalf("structuralMatch() = %v, want unit 2", match)
	}

	if match := structuralMatch(candidates, unit(9, 3, 40.0, "1LDK", "北", "", 0)); match != nil {
		t.Errorf("structuralMatch() = %v for a unit with no counterpart, want nil", match)
	}

	// a unit never matches itself
	if match := structuralMatch(candidates[:1], candidates[0]); match != nil {
		t.Errorf("structuralMatch() matched the unit against itself: %v", match)
	}
}

func TestRoomsConflict(t *testing.T) {
	room1, room2 := "501", "502"

	tests := []struct {
		name string
		a, b data.MasterProperty
		want bool
	}{
		{"both unknown", data.MasterProperty{}, data.MasterProperty{}, false},
		{"one unknown", data.MasterProperty{RoomNumber: &room1}, data.MasterProperty{}, false},
		{"same", data.MasterProperty{RoomNumber: &room1}, data.MasterProperty{RoomNumber: &room1}, false},
		{"different", data.MasterProperty{RoomNumber: &room1}, data.MasterProperty{RoomNumber: &room2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := roomsConflict(&tt.a, &tt.b); got != tt.want {
				t.Errorf("roomsConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildingSnapshotRoundTrip(t *testing.T) {
	year, floors := 2015, 20
	construction := "RC"

	snapshot := &data.BuildingMergeSnapshot{
		Building: &data.Building{
			ID:                42,
			CanonicalName:     "パークコート赤坂",
			NormalizedName:    "パークコート赤坂",
			Address:           "東京都港区赤坂9-1-1",
			NormalizedAddress: "東京都港区赤坂9-1-1",
			BuiltYear:         &year,
			TotalFloors:       &floors,
			ConstructionType:  &construction,
			CreatedAt:         time.Date(2024, 11, 2, 9, 30, 0, 0, time.UTC),
			UpdatedAt:         time.Date(2025, 5, 20, 18, 0, 0, 0, time.UTC),
		},
		ExternalIDs: []*data.BuildingExternalID{
			{ID: 7, BuildingID: 42, SourceSite: "sumo", ExternalID: "bldg-991"},
		},
		Aliases: []*data.AliasEntry{
			{
				ID:              3,
				BuildingID:      42,
				CanonicalName:   "パークコート赤坂",
				DisplayName:     "パークコート赤坂",
				SourceSites:     []string{"homes", "sumo"},
				OccurrenceCount: 12,
				FirstSeenAt:     time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
				LastSeenAt:      time.Date(2025, 5, 19, 0, 0, 0, 0, time.UTC),
			},
		},
		MovedPropertyIDs: []int64{101, 102},
	}

	blob, err := json.Marshal(snapshot)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var decoded data.BuildingMergeSnapshot
	if err := json.Unmarshal(blob, &decoded); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}

	if !reflect.DeepEqual(&decoded, snapshot) {
		t.Errorf("snapshot round trip mutated data:\n got %+v\nwant %+v", &decoded, snapshot)
	}
}

func TestPropertyDetailsRoundTrip(t *testing.T) {
	price := int64(5800)

	secondary := unit(55, 12, 70.2, "3LDK", "南", "1201", 30)
	secondary.CurrentPrice = &price
	secondary.UpdatedAt = time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)

	details := &data.PropertyMergeDetails{
		SecondaryProperty: secondary,
		MovedListingIDs:   []int64{901, 902, 903},
	}

	blob, err := json.Marshal(details)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var decoded data.PropertyMergeDetails
	if err := json.Unmarshal(blob, &decoded); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}

	if !reflect.DeepEqual(&decoded, details) {
		t.Errorf("details round trip mutated data:\n got %+v\nwant %+v", &decoded, details)
	}
}

func TestMergeBuildingsRejectsSelfMerge(t *testing.T) {
	op := &Operator{}

	if _, err := op.MergeBuildings(context.Background(), 5, 7, 5); err == nil {
		t.Error("MergeBuildings() accepted the primary among the secondaries")
	}

	if _, err := op.MergeBuildings(context.Background(), 5); err == nil {
		t.Error("MergeBuildings() accepted an empty secondary list")
	}
}

func TestMergePropertiesRejectsSelfMerge(t *testing.T) {
	op := &Operator{}

	if _, err := op.MergeProperties(context.Background(), 5, 5); err == nil {
		t.Error("MergeProperties() accepted a self merge")
	}
}
