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
package dedupe

import (
	"math"
	"slices"
	"testing"
	"time"

	"github.com/mansion-watch/mwdata/data"
)

func noVeto(int, int) bool { return false }

func TestClusterConnectedComponent(t *testing.T) {
	edges := []edge{
		{a: 0, b: 1, score: 0.9},
		{a: 1, b: 2, score: 0.8},
	}
	sortEdges(edges)

	groups := cluster(4, edges, noVeto)

	if len(groups) != 1 {
		t.Fatalf("cluster() produced %d groups, want 1", len(groups))
	}

	members := slices.Clone(groups[0])
	slices.Sort(members)

	if !slices.Equal(members, []int{0, 1, 2}) {
		t.Errorf("group members = %v, want [0 1 2]", members)
	}
}

func TestClusterVetoSplitsAlongWeakestLink(t *testing.T) {
	// two strong pairs joined by a weaker bridge; the veto on (0, 3) must
	// break the bridge, not either strong pair
	edges := []edge{
		{a: 0, b: 1, score: 0.95},
		{a: 2, b: 3, score: 0.9},
		{a: 1, b: 2, score: 0.8},
	}
	sortEdges(edges)

	groups := cluster(4, edges, func(x, y int) bool {
		return (x == 0 && y == 3) || (x == 3 && y == 0)
	})

	if len(groups) != 2 {
		t.Fatalf("cluster() produced %d groups, want 2", len(groups))
	}

	for _, group := range groups {
		members := slices.Clone(group)
		slices.Sort(members)

		if !slices.Equal(members, []int{0, 1}) && !slices.Equal(members, []int{2, 3}) {
			t.Errorf("unexpected group %v", members)
		}

		if slices.Contains(members, 0) && slices.Contains(members, 3) {
			t.Errorf("vetoed pair grouped together in %v", members)
		}
	}
}

func TestClusterVetoedPairNeverGrouped(t *testing.T) {
	edges := []edge{
		{a: 0, b: 1, score: 0.95},
		{a: 1, b: 2, score: 0.8},
	}
	sortEdges(edges)

	groups := cluster(3, edges, func(x, y int) bool {
		return (x == 0 && y == 2) || (x == 2 && y == 0)
	})

	if len(groups) != 1 {
		t.Fatalf("cluster() produced %d groups, want 1", len(groups))
	}

	members := slices.Clone(groups[0])
	slices.Sort(members)

	if !slices.Equal(members, []int{0, 1}) {
		t.Errorf("group members = %v, want the stronger pair [0 1]", members)
	}
}

func TestClusterNoEdges(t *testing.T) {
	if groups := cluster(5, nil, noVeto); len(groups) != 0 {
		t.Errorf("cluster() with no edges produced %v", groups)
	}
}

func TestSortEdges(t *testing.T) {
	edges := []edge{
		{a: 2, b: 3, score: 0.8},
		{a: 0, b: 2, score: 0.9},
		{a: 0, b: 1, score: 0.9},
	}
	sortEdges(edges)

	want := []edge{
		{a: 0, b: 1, score: 0.9},
		{a: 0, b: 2, score: 0.9},
		{a: 2, b: 3, score: 0.8},
	}

	if !slices.Equal(edges, want) {
		t.Errorf("sortEdges() = %v, want %v", edges, want)
	}
}

func TestUnionFind(t *testing.T) {
	uf := newUnionFind(4)

	uf.union(0, 1)
	uf.union(1, 2)

	if uf.find(0) != uf.find(2) {
		t.Error("0 and 2 should share a root after chained unions")
	}

	if uf.find(3) == uf.find(0) {
		t.Error("3 was never unioned and should stand alone")
	}

	if root := uf.union(0, 2); root != uf.find(0) {
		t.Error("union of members already joined should return their root")
	}
}

func TestBuildingGroupPrimaryByMeanSimilarity(t *testing.T) {
	buildings := []*data.Building{{ID: 10}, {ID: 20}, {ID: 30}}
	counts := map[int64]int{10: 1, 20: 1, 30: 1}

	pairScores := map[[2]int]float64{
		indexPair(0, 1): 0.95,
		indexPair(0, 2): 0.9,
		indexPair(1, 2): 0.8,
	}

	group := buildingGroup([]int{0, 1, 2}, buildings, counts, pairScores)

	if group.Kind != data.DuplicateBuildings {
		t.Errorf("Kind = %q, want %q", group.Kind, data.DuplicateBuildings)
	}

	// building 10 has the highest mean similarity to the others
	if group.PrimaryID != 10 {
		t.Errorf("PrimaryID = %d, want 10", group.PrimaryID)
	}

	if !slices.Equal(group.MemberIDs, []int64{10, 20, 30}) {
		t.Errorf("MemberIDs = %v, want [10 20 30]", group.MemberIDs)
	}

	want := (0.95 + 0.9 + 0.8) / 3
	if math.Abs(group.MeanSimilarity-want) > 1e-9 {
		t.Errorf("MeanSimilarity = %.4f, want %.4f", group.MeanSimilarity, want)
	}
}

func TestBuildingGroupTieBreaksOnPropertyCount(t *testing.T) {
	buildings := []*data.Building{{ID: 10}, {ID: 20}}
	counts := map[int64]int{10: 2, 20: 7}

	pairScores := map[[2]int]float64{indexPair(0, 1): 0.9}

	group := buildingGroup([]int{0, 1}, buildings, counts, pairScores)

	if group.PrimaryID != 20 {
		t.Errorf("PrimaryID = %d, want the building holding more properties (20)", group.PrimaryID)
	}
}

func TestBuildingGroupTieBreaksOnLowestID(t *testing.T) {
	buildings := []*data.Building{{ID: 20}, {ID: 10}}
	counts := map[int64]int{10: 3, 20: 3}

	pairScores := map[[2]int]float64{indexPair(0, 1): 0.9}

	group := buildingGroup([]int{0, 1}, buildings, counts, pairScores)

	if group.PrimaryID != 10 {
		t.Errorf("PrimaryID = %d, want 10", group.PrimaryID)
	}
}

func TestUnitGroupPrimaryIsEarliestCreated(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	properties := []*data.MasterProperty{
		{ID: 5, CreatedAt: base.AddDate(0, 0, 3)},
		{ID: 6, CreatedAt: base},
		{ID: 7, CreatedAt: base.AddDate(0, 0, 1)},
	}

	group := unitGroup([]int{0, 1, 2}, properties)

	if group.Kind != data.DuplicateUnits {
		t.Errorf("Kind = %q, want %q", group.Kind, data.DuplicateUnits)
	}

	if group.PrimaryID != 6 {
		t.Errorf("PrimaryID = %d, want the earliest-created unit (6)", group.PrimaryID)
	}

	if !slices.Equal(group.MemberIDs, []int64{5, 6, 7}) {
		t.Errorf("MemberIDs = %v, want [5 6 7]", group.MemberIDs)
	}
}

func TestUnitGroupTieBreaksOnLowestID(t *testing.T) {
	created := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	properties := []*data.MasterProperty{
		{ID: 9, CreatedAt: created},
		{ID: 4, CreatedAt: created},
	}

	if group := unitGroup([]int{0, 1}, properties); group.PrimaryID != 4 {
		t.Errorf("PrimaryID = %d, want 4", group.PrimaryID)
	}
}

func TestUnitsCompatible(t *testing.T) {
	south, southEast, north := "南", "南東", "北"
	room1, room2 := "501", "502"

	tests := []struct {
		name string
		a, b data.MasterProperty
		want bool
	}{
		{"both unknown", data.MasterProperty{}, data.MasterProperty{}, true},
		{
			"adjacent directions",
			data.MasterProperty{Direction: &south},
			data.MasterProperty{Direction: &southEast},
			true,
		},
		{
			"opposite directions",
			data.MasterProperty{Direction: &south},
			data.MasterProperty{Direction: &north},
			false,
		},
		{
			"one direction missing",
			data.MasterProperty{Direction: &south},
			data.MasterProperty{},
			true,
		},
		{
			"same room number",
			data.MasterProperty{RoomNumber: &room1},
			data.MasterProperty{RoomNumber: &room1},
			true,
		},
		{
			"different room numbers",
			data.MasterProperty{RoomNumber: &room1},
			data.MasterProperty{RoomNumber: &room2},
			false,
		},
		{
			"room number known on one side",
			data.MasterProperty{RoomNumber: &room1},
			data.MasterProperty{},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := unitsCompatible(&tt.a, &tt.b); got != tt.want {
				t.Errorf("unitsCompatible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIDPair(t *testing.T) {
	if got := idPair(7, 3); got != [2]int64{3, 7} {
		t.Errorf("idPair(7, 3) = %v, want [3 7]", got)
	}

	if got := idPair(3, 7); got != [2]int64{3, 7} {
		t.Errorf("idPair(3, 7) = %v, want [3 7]", got)
	}
}
