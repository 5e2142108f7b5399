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

// Package dedupe finds likely-duplicate buildings and units and presents
// them as advisory groups for human review. It never writes; merging is the
// merge package's job.
package dedupe

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/mansion-watch/mwdata/catalog"
	"github.com/mansion-watch/mwdata/data"
	"github.com/mansion-watch/mwdata/normalize"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultMinSimilarity is the composite score below which a pair is not
	// even a candidate.
	DefaultMinSimilarity = 0.70

	// DefaultHighConfidence marks groups safe enough to surface as merge
	// suggestions rather than review items.
	DefaultHighConfidence = 0.90
)

// Finder scores the building stock against itself and clusters candidate
// duplicates.
type Finder struct {
	Catalog *catalog.Catalog

	MinSimilarity  float64
	HighConfidence float64
}

// unionFind over dense indexes with union by size and path halving.
type unionFind struct {
	parent []int
	size   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent: make([]int, n),
		size:   make([]int, n),
	}

	for i := range uf.parent {
		uf.parent[i] = i
		uf.size[i] = 1
	}

	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}

	return x
}

// union joins the sets holding a and b and returns the surviving root.
func (uf *unionFind) union(a, b int) int {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return ra
	}

	if uf.size[ra] < uf.size[rb] {
		ra, rb = rb, ra
	}

	uf.parent[rb] = ra
	uf.size[ra] += uf.size[rb]

	return ra
}

type edge struct {
	a, b  int
	score float64
}

func sortEdges(edges []edge) {
	slices.SortFunc(edges, func(x, y edge) int {
		if c := cmp.Compare(y.score, x.score); c != 0 {
			return c
		}

		// stable order for equal scores
		if c := cmp.Compare(x.a, y.a); c != 0 {
			return c
		}

		return cmp.Compare(x.b, y.b)
	})
}

// cluster unions edge endpoints strongest-first, skipping any union that
// would place a vetoed pair in one set. An exclusion-broken component
// therefore splits along its weakest links, and every element lands in at
// most one group. Returns the member lists of groups with two or more
// elements.
func cluster(n int, edges []edge, vetoed func(x, y int) bool) [][]int {
	uf := newUnionFind(n)

	members := make([][]int, n)
	for i := range members {
		members[i] = []int{i}
	}

	for _, e := range edges {
		ra, rb := uf.find(e.a), uf.find(e.b)
		if ra == rb {
			continue
		}

		if crossVetoed(members[ra], members[rb], vetoed) {
			continue
		}

		root := uf.union(ra, rb)

		other := ra
		if root == ra {
			other = rb
		}

		members[root] = append(members[root], members[other]...)
		members[other] = nil
	}

	var groups [][]int

	for root, indexes := range members {
		if uf.find(root) == root && len(indexes) >= 2 {
			groups = append(groups, indexes)
		}
	}

	return groups
}

func crossVetoed(a, b []int, vetoed func(x, y int) bool) bool {
	for _, x := range a {
		for _, y := range b {
			if vetoed(x, y) {
				return true
			}
		}
	}

	return false
}

// FindBuildingGroups clusters the whole building stock into advisory
// duplicate groups. Buildings are partitioned by town-level address prefix,
// scored pairwise within each partition, and clustered greedily from the
// strongest edge down. An exclusion pair never lands in the same group: the
// greedy order means an exclusion-broken component splits along its
// weakest links.
func (finder *Finder) FindBuildingGroups(ctx context.Context) ([]*data.DuplicateGroup, error) {
	minSimilarity := finder.MinSimilarity
	if minSimilarity <= 0 {
		minSimilarity = DefaultMinSimilarity
	}

	var (
		buildings  []*data.Building
		exclusions []*data.BuildingMergeExclusion
		counts     map[int64]int
	)

	err := finder.Catalog.WithTx(ctx, func(tx pgx.Tx) error {
		var err error

		if buildings, err = data.AllBuildings(ctx, tx); err != nil {
			return err
		}

		if exclusions, err = data.AllBuildingExclusions(ctx, tx); err != nil {
			return err
		}

		counts, err = data.PropertyCounts(ctx, tx)

		return err
	})
	if err != nil {
		return nil, err
	}

	excluded := make(map[[2]int64]bool, len(exclusions))
	for _, exclusion := range exclusions {
		excluded[idPair(exclusion.BuildingLowID, exclusion.BuildingHighID)] = true
	}

	partitions := make(map[string][]int)

	for i, building := range buildings {
		key := normalize.SplitAddress(building.NormalizedAddress).PartitionKey()
		partitions[key] = append(partitions[key], i)
	}

	var edges []edge

	pairScores := make(map[[2]int]float64)

	for _, indexes := range partitions {
		for i := 0; i < len(indexes); i++ {
			for j := i + 1; j < len(indexes); j++ {
				a, b := indexes[i], indexes[j]
				score := Score(buildings[a], buildings[b])
				pairScores[indexPair(a, b)] = score

				if score < minSimilarity || excluded[idPair(buildings[a].ID, buildings[b].ID)] {
					continue
				}

				edges = append(edges, edge{a: a, b: b, score: score})
			}
		}
	}

	sortEdges(edges)

	clusters := cluster(len(buildings), edges, func(x, y int) bool {
		return excluded[idPair(buildings[x].ID, buildings[y].ID)]
	})

	groups := make([]*data.DuplicateGroup, 0, len(clusters))

	for _, indexes := range clusters {
		groups = append(groups, buildingGroup(indexes, buildings, counts, pairScores))
	}

	slices.SortFunc(groups, func(a, b *data.DuplicateGroup) int {
		return cmp.Compare(a.PrimaryID, b.PrimaryID)
	})

	log.Info().Int("Buildings", len(buildings)).Int("Groups", len(groups)).
		Msg("building duplicate scan complete")

	return groups, nil
}

// buildingGroup picks the primary (highest mean similarity to the rest,
// ties to the building holding more properties, then the lowest id) and
// assembles the advisory record.
func buildingGroup(indexes []int, buildings []*data.Building, counts map[int64]int, pairScores map[[2]int]float64) *data.DuplicateGroup {
	means := make(map[int]float64, len(indexes))
	total := 0.0
	pairs := 0

	for i, a := range indexes {
		sum := 0.0

		for j, b := range indexes {
			if i == j {
				continue
			}

			score := pairScores[indexPair(a, b)]
			sum += score

			if i < j {
				total += score
				pairs++
			}
		}

		means[a] = sum / float64(len(indexes)-1)
	}

	primary := indexes[0]

	for _, candidate := range indexes[1:] {
		switch {
		case means[candidate] > means[primary]:
			primary = candidate
		case means[candidate] == means[primary]:
			countC := counts[buildings[candidate].ID]
			countP := counts[buildings[primary].ID]

			if countC > countP || (countC == countP && buildings[candidate].ID < buildings[primary].ID) {
				primary = candidate
			}
		}
	}

	ids := make([]int64, 0, len(indexes))
	for _, index := range indexes {
		ids = append(ids, buildings[index].ID)
	}

	slices.Sort(ids)

	return &data.DuplicateGroup{
		Kind:           data.DuplicateBuildings,
		PrimaryID:      buildings[primary].ID,
		MemberIDs:      ids,
		MeanSimilarity: total / float64(pairs),
	}
}

// FindPropertyGroups clusters one building's units: same floor, same area at
// 0.1㎡, same layout, compatible directions and no conflicting room
// numbers.
func (finder *Finder) FindPropertyGroups(ctx context.Context, buildingID int64) ([]*data.DuplicateGroup, error) {
	var (
		properties []*data.MasterProperty
		exclusions []*data.PropertyMergeExclusion
	)

	err := finder.Catalog.WithTx(ctx, func(tx pgx.Tx) error {
		var err error

		if properties, err = data.MasterPropertiesForBuilding(ctx, tx, buildingID); err != nil {
			return err
		}

		exclusions, err = data.PropertyExclusionsForBuilding(ctx, tx, buildingID)

		return err
	})
	if err != nil {
		return nil, err
	}

	excluded := make(map[[2]int64]bool, len(exclusions))
	for _, exclusion := range exclusions {
		excluded[idPair(exclusion.PropertyLowID, exclusion.PropertyHighID)] = true
	}

	buckets := make(map[string][]int)

	for i, prop := range properties {
		if prop.FloorNumber == nil || prop.AreaM2 == nil || prop.Layout == nil {
			continue
		}

		key := fmt.Sprintf("%d|%.1f|%s", *prop.FloorNumber, data.RoundTenth(*prop.AreaM2), *prop.Layout)
		buckets[key] = append(buckets[key], i)
	}

	var edges []edge

	for _, indexes := range buckets {
		for i := 0; i < len(indexes); i++ {
			for j := i + 1; j < len(indexes); j++ {
				a, b := indexes[i], indexes[j]

				if !unitsCompatible(properties[a], properties[b]) ||
					excluded[idPair(properties[a].ID, properties[b].ID)] {
					continue
				}

				edges = append(edges, edge{a: a, b: b, score: 1})
			}
		}
	}

	sortEdges(edges)

	clusters := cluster(len(properties), edges, func(x, y int) bool {
		return excluded[idPair(properties[x].ID, properties[y].ID)]
	})

	groups := make([]*data.DuplicateGroup, 0, len(clusters))

	for _, indexes := range clusters {
		groups = append(groups, unitGroup(indexes, properties))
	}

	slices.SortFunc(groups, func(a, b *data.DuplicateGroup) int {
		return cmp.Compare(a.PrimaryID, b.PrimaryID)
	})

	return groups, nil
}

// unitsCompatible applies the pairwise checks the bucket key cannot express.
func unitsCompatible(a, b *data.MasterProperty) bool {
	directionA, directionB := "", ""

	if a.Direction != nil {
		directionA = *a.Direction
	}

	if b.Direction != nil {
		directionB = *b.Direction
	}

	if !normalize.DirectionsCompatible(directionA, directionB) {
		return false
	}

	// known, differing room numbers are different units
	if a.RoomNumber != nil && b.RoomNumber != nil && *a.RoomNumber != *b.RoomNumber {
		return false
	}

	return true
}

// unitGroup: the primary is the earliest-created unit, matching where the
// structural-duplicate scan inside a building merge folds clusters.
func unitGroup(indexes []int, properties []*data.MasterProperty) *data.DuplicateGroup {
	primary := indexes[0]

	for _, candidate := range indexes[1:] {
		a, b := properties[candidate], properties[primary]

		if a.CreatedAt.Before(b.CreatedAt) ||
			(a.CreatedAt.Equal(b.CreatedAt) && a.ID < b.ID) {
			primary = candidate
		}
	}

	ids := make([]int64, 0, len(indexes))
	for _, index := range indexes {
		ids = append(ids, properties[index].ID)
	}

	slices.Sort(ids)

	return &data.DuplicateGroup{
		Kind:           data.DuplicateUnits,
		PrimaryID:      properties[primary].ID,
		MemberIDs:      ids,
		MeanSimilarity: 1,
	}
}

func idPair(a, b int64) [2]int64 {
	if a > b {
		a, b = b, a
	}

	return [2]int64{a, b}
}

func indexPair(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}

	return [2]int{a, b}
}

