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

// Package alias maintains the per-building ledger of observed name forms.
// Search matches on canonical names, so every spelling a portal ever used
// for a building stays findable.
package alias

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/mansion-watch/mwdata/aggregate"
	"github.com/mansion-watch/mwdata/data"
	"github.com/mansion-watch/mwdata/normalize"
)

// Fold records one sighting of a building name against the ledger. Room
// numbers are stripped first; station/transit noise never enters the ledger.
func Fold(ctx context.Context, dbConn data.Querier, buildingID int64, rawName, sourceSite string, seenAt time.Time) error {
	name, _ := normalize.SplitRoomNumber(rawName)
	if name == "" || normalize.IsStationNoise(name) {
		return nil
	}

	canonical := normalize.CanonicalName(name)
	if canonical == "" {
		return nil
	}

	entry := &data.AliasEntry{
		BuildingID:    buildingID,
		CanonicalName: canonical,
		DisplayName:   normalize.NormalizeName(name),
		SourceSites:   []string{sourceSite},
		FirstSeenAt:   seenAt,
		LastSeenAt:    seenAt,
	}

	return entry.Fold(ctx, dbConn)
}

// BuildLedger derives a building's complete alias ledger from its listings:
// one entry per distinct canonical name, displaying the most frequent
// spelling, counting every sighting and unioning the sources that used it.
func BuildLedger(buildingID int64, listings []*data.Listing) []*data.AliasEntry {
	type tally struct {
		count     int
		sources   map[string]bool
		displays  []aggregate.Ballot[string]
		firstSeen time.Time
		lastSeen  time.Time
	}

	tallies := make(map[string]*tally)

	for _, listing := range listings {
		if listing.ListingBuildingName == nil {
			continue
		}

		name, _ := normalize.SplitRoomNumber(*listing.ListingBuildingName)
		if name == "" || normalize.IsStationNoise(name) {
			continue
		}

		canonical := normalize.CanonicalName(name)
		if canonical == "" {
			continue
		}

		entry, ok := tallies[canonical]
		if !ok {
			entry = &tally{
				sources:   make(map[string]bool),
				firstSeen: listing.FirstSeenAt,
				lastSeen:  listing.LastConfirmedAt,
			}
			tallies[canonical] = entry
		}

		entry.count++
		entry.sources[listing.SourceSite] = true
		entry.displays = append(entry.displays, aggregate.Ballot[string]{
			Value:      normalize.NormalizeName(name),
			ObservedAt: listing.LastConfirmedAt,
		})

		if listing.FirstSeenAt.Before(entry.firstSeen) {
			entry.firstSeen = listing.FirstSeenAt
		}

		if listing.LastConfirmedAt.After(entry.lastSeen) {
			entry.lastSeen = listing.LastConfirmedAt
		}
	}

	ledger := make([]*data.AliasEntry, 0, len(tallies))

	for canonical, entry := range tallies {
		display, _ := aggregate.Mode(entry.displays)

		sources := make([]string, 0, len(entry.sources))
		for source := range entry.sources {
			sources = append(sources, source)
		}

		slices.Sort(sources)

		ledger = append(ledger, &data.AliasEntry{
			BuildingID:      buildingID,
			CanonicalName:   canonical,
			DisplayName:     display,
			SourceSites:     sources,
			OccurrenceCount: entry.count,
			FirstSeenAt:     entry.firstSeen,
			LastSeenAt:      entry.lastSeen,
		})
	}

	slices.SortFunc(ledger, func(a, b *data.AliasEntry) int {
		return strings.Compare(a.CanonicalName, b.CanonicalName)
	})

	return ledger
}

// Refresh rebuilds a building's ledger from its current listings. Runs after
// any merge, split, move or revert; calling it twice in a row is a no-op.
func Refresh(ctx context.Context, dbConn data.Querier, buildingID int64) error {
	listings, err := data.ListingsForBuilding(ctx, dbConn, buildingID)
	if err != nil {
		return err
	}

	if err := data.DeleteAliasesForBuilding(ctx, dbConn, buildingID); err != nil {
		return err
	}

	for _, entry := range BuildLedger(buildingID, listings) {
		if err := entry.Fold(ctx, dbConn); err != nil {
			return err
		}
	}

	return nil
}
