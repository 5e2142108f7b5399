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

	"github.com/mansion-watch/mwdata/aggregate"
	"github.com/mansion-watch/mwdata/data"
	"github.com/mansion-watch/mwdata/merge"
	"github.com/mansion-watch/mwdata/normalize"
	"github.com/rs/zerolog/log"
)

// misattachThreshold is the number of identity-triple fields on which a
// sighting must contradict its building before the unit is realigned.
const misattachThreshold = 2

// misattached reports whether the incoming sighting contradicts the building
// it resolved to on at least two of the three identity fields. Only fields
// known on both sides can disagree, so sparsely described buildings are
// never churned.
func misattached(building *data.Building, norm *data.NormalizedListing) bool {
	return tripleDisagreements(building, norm) >= misattachThreshold
}

func tripleDisagreements(building *data.Building, norm *data.NormalizedListing) int {
	count := 0

	if building.TotalFloors != nil && norm.TotalFloors != nil && *building.TotalFloors != *norm.TotalFloors {
		count++
	}

	if building.BuiltYear != nil && norm.BuiltYear != nil && *building.BuiltYear != *norm.BuiltYear {
		count++
	}

	if building.TotalUnits != nil && norm.TotalUnits != nil && *building.TotalUnits != *norm.TotalUnits {
		count++
	}

	return count
}

// ballotMajorities computes the majority value of each identity field over a
// building's listings; ok is false unless all three fields drew at least one
// ballot.
func ballotMajorities(listings []*data.Listing) (floors, year, units int, ok bool) {
	floorBallots := make([]aggregate.Ballot[int], 0, len(listings))
	yearBallots := make([]aggregate.Ballot[int], 0, len(listings))
	unitBallots := make([]aggregate.Ballot[int], 0, len(listings))

	for _, listing := range listings {
		if listing.ListingTotalFloors != nil {
			floorBallots = append(floorBallots,
				aggregate.Ballot[int]{Value: *listing.ListingTotalFloors, ObservedAt: listing.LastConfirmedAt})
		}

		if listing.ListingBuiltYear != nil {
			yearBallots = append(yearBallots,
				aggregate.Ballot[int]{Value: *listing.ListingBuiltYear, ObservedAt: listing.LastConfirmedAt})
		}

		if listing.ListingTotalUnits != nil {
			unitBallots = append(unitBallots,
				aggregate.Ballot[int]{Value: *listing.ListingTotalUnits, ObservedAt: listing.LastConfirmedAt})
		}
	}

	var okFloors, okYear, okUnits bool

	floors, okFloors = aggregate.Mode(floorBallots)
	year, okYear = aggregate.Mode(yearBallots)
	units, okUnits = aggregate.Mode(unitBallots)

	return floors, year, units, okFloors && okYear && okUnits
}

// realignTarget picks the building a flagged unit should move to: same
// canonical name, address in the same prefix chain and a stored triple equal
// to the ballot majorities, excluding the building the unit sits in now.
// Tie-breaks mirror the attach gate.
func realignTarget(candidates []*BuildingCandidate, norm *data.NormalizedListing,
	currentID int64, floors, year, units int) *BuildingCandidate {
	var (
		best      *BuildingCandidate
		bestExact bool
	)

	for _, candidate := range candidates {
		if candidate.ID == currentID {
			continue
		}

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

// realign moves a flagged unit out of its building: into the building whose
// stored triple matches the ballot majorities when one shares the name and
// address chain, otherwise into a new building seeded from the sighting. The
// move re-aggregates both buildings and refreshes their alias ledgers.
func (resolver *Resolver) realign(ctx context.Context, norm *data.NormalizedListing, state *resolveState) (*merge.MoveResult, error) {
	dbConn := resolver.Catalog.Pool

	listings, err := data.ListingsForBuilding(ctx, dbConn, state.building.ID)
	if err != nil {
		return nil, err
	}

	var target *BuildingCandidate

	if floors, year, units, ok := ballotMajorities(listings); ok {
		candidates, err := buildingCandidates(ctx, dbConn, norm.CanonicalName)
		if err != nil {
			return nil, err
		}

		target = realignTarget(candidates, norm, state.building.ID, floors, year, units)
	}

	var targetID int64

	if target != nil {
		targetID = target.ID
	} else {
		fresh := seedBuilding(norm)
		if err := fresh.Insert(ctx, dbConn); err != nil {
			return nil, err
		}

		targetID = fresh.ID
	}

	move, err := resolver.mover().MoveProperty(ctx, state.property.ID, targetID)
	if err != nil {
		return nil, err
	}

	log.Info().Int64("PropertyID", state.property.ID).
		Int64("FromBuildingID", state.building.ID).Int64("ToBuildingID", targetID).
		Int("Disagreements", tripleDisagreements(state.building, norm)).
		Msg("unit realigned after identity mismatch")

	return move, nil
}
