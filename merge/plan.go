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
	"cmp"
	"slices"

	"github.com/mansion-watch/mwdata/data"
)

// structuralClusters groups a building's units by the attach-time unit key
// (floor, half-㎡ area, layout, direction); known, differing room numbers
// keep units apart within a key group. Each cluster is ordered
// earliest-created-first, so the first member is the fold target. Only
// clusters of two or more units are returned.
func structuralClusters(properties []*data.MasterProperty) [][]*data.MasterProperty {
	byKey := make(map[string][]*data.MasterProperty)

	for _, prop := range properties {
		key := prop.StructuralKey()
		byKey[key] = append(byKey[key], prop)
	}

	var clusters [][]*data.MasterProperty

	for _, group := range byKey {
		if len(group) < 2 {
			continue
		}

		slices.SortFunc(group, func(a, b *data.MasterProperty) int {
			if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
				return c
			}

			return cmp.Compare(a.ID, b.ID)
		})

		var open [][]*data.MasterProperty

		for _, prop := range group {
			placed := false

			for i, cluster := range open {
				if !anyRoomConflict(cluster, prop) {
					open[i] = append(cluster, prop)
					placed = true

					break
				}
			}

			if !placed {
				open = append(open, []*data.MasterProperty{prop})
			}
		}

		for _, cluster := range open {
			if len(cluster) >= 2 {
				clusters = append(clusters, cluster)
			}
		}
	}

	slices.SortFunc(clusters, func(a, b []*data.MasterProperty) int {
		return cmp.Compare(a[0].ID, b[0].ID)
	})

	return clusters
}

// structuralMatch returns the unit structurally equal to prop among the
// candidates, or nil. Candidates arrive in id order, so the lowest-id match
// wins.
func structuralMatch(candidates []*data.MasterProperty, prop *data.MasterProperty) *data.MasterProperty {
	key := prop.StructuralKey()

	for _, candidate := range candidates {
		if candidate.ID == prop.ID || candidate.StructuralKey() != key {
			continue
		}

		if roomsConflict(candidate, prop) {
			continue
		}

		return candidate
	}

	return nil
}

// roomsConflict reports whether two units carry known, differing room
// numbers. An unknown room number never conflicts.
func roomsConflict(a, b *data.MasterProperty) bool {
	return a.RoomNumber != nil && b.RoomNumber != nil && *a.RoomNumber != *b.RoomNumber
}

func anyRoomConflict(cluster []*data.MasterProperty, prop *data.MasterProperty) bool {
	for _, member := range cluster {
		if roomsConflict(member, prop) {
			return true
		}
	}

	return false
}
