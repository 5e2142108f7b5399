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
	"context"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/mansion-watch/mwdata/data"
	"github.com/mansion-watch/mwdata/normalize"
)

// BuildingCandidate is one building sharing the incoming listing's canonical
// name, carried with its current unit count for tie-breaking.
type BuildingCandidate struct {
	data.Building
	PropertyCount int `json:"property_count"`
}

// buildingCandidates loads every building whose canonical name equals the
// search key, in id order.
func buildingCandidates(ctx context.Context, dbConn data.Querier, canonicalName string) ([]*BuildingCandidate, error) {
	candidates := make([]*BuildingCandidate, 0, 4)

	err := pgxscan.Select(ctx, dbConn, &candidates,
		`SELECT b.*, count(mp.id) AS property_count
		FROM buildings b
		LEFT JOIN master_properties mp ON mp.building_id = b.id
		WHERE b.canonical_name = $1
		GROUP BY b.id
		ORDER BY b.id`, canonicalName)
	if err != nil {
		return nil, err
	}

	return candidates, nil
}

// chooseBuilding applies the attach gate: the candidate's address must equal
// the listing's or be its prefix-chain partner, and both sides must carry a
// complete (total_floors, built_year, total_units) triple that matches
// exactly. A side missing any triple field is never attached automatically.
// Among survivors an exact address beats a prefix match, then the higher
// unit count wins, then the lowest id.
func chooseBuilding(candidates []*BuildingCandidate, norm *data.NormalizedListing) *BuildingCandidate {
	floors, year, units, complete := norm.Triple()
	if !complete {
		return nil
	}

	var (
		best      *BuildingCandidate
		bestExact bool
	)

	for _, candidate := range candidates {
		if !normalize.SameBlockChain(candidate.NormalizedAddress, norm.NormalizedAddress) {
			continue
		}

		candFloors, candYear, candUnits, ok := candidate.Triple()
		if !ok || candFloors != floors || candYear != year || candUnits != units {
			continue
		}

		exact := candidate.NormalizedAddress == norm.NormalizedAddress

		if best == nil || betterCandidate(candidate, exact, best, bestExact) {
			best, bestExact = candidate, exact
		}
	}

	return best
}

func betterCandidate(a *BuildingCandidate, exactA bool, b *BuildingCandidate, exactB bool) bool {
	if exactA != exactB {
		return exactA
	}

	if a.PropertyCount != b.PropertyCount {
		return a.PropertyCount > b.PropertyCount
	}

	return a.ID < b.ID
}
