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
package aggregate

import (
	"context"
	"slices"
	"time"

	"github.com/mansion-watch/mwdata/data"
)

// PricePoint is one step of a master property's reconstructed majority-price
// timeline: the day the majority moved and the price it moved to.
type PricePoint struct {
	Date  time.Time
	Price int64
}

// Day truncates a timestamp to its UTC day, the resolution of the price
// timeline.
func Day(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// BuildDailyTimeline replays every listing's price history day by day and
// returns the days on which the majority price moved (the first priced day
// included). For each day each listing contributes its most recent recorded
// price, provided the day falls inside the listing's visibility window
// [first_seen_at, delisted_at or forever]. The day's majority is the mode
// with ties going to the lowest price.
func BuildDailyTimeline(listings []*data.Listing, history []*data.PriceHistory) []PricePoint {
	if len(history) == 0 {
		return nil
	}

	byListing := make(map[int64][]*data.PriceHistory, len(listings))
	for _, row := range history {
		byListing[row.ListingID] = append(byListing[row.ListingID], row)
	}

	for _, rows := range byListing {
		slices.SortFunc(rows, func(a, b *data.PriceHistory) int {
			return a.RecordedAt.Compare(b.RecordedAt)
		})
	}

	var start, end time.Time

	for _, listing := range listings {
		first := Day(listing.FirstSeenAt)
		if start.IsZero() || first.Before(start) {
			start = first
		}

		last := listing.LastConfirmedAt
		if listing.DelistedAt != nil {
			last = *listing.DelistedAt
		}

		if Day(last).After(end) {
			end = Day(last)
		}
	}

	for _, row := range history {
		recorded := Day(row.RecordedAt)
		if start.IsZero() || recorded.Before(start) {
			start = recorded
		}

		if recorded.After(end) {
			end = recorded
		}
	}

	var points []PricePoint

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		values := make([]int64, 0, len(listings))

		for _, listing := range listings {
			rows := byListing[listing.ID]
			if len(rows) == 0 {
				continue
			}

			if Day(listing.FirstSeenAt).After(day) {
				continue
			}

			if listing.DelistedAt != nil && Day(*listing.DelistedAt).Before(day) {
				continue
			}

			var carried *int64

			for _, row := range rows {
				if Day(row.RecordedAt).After(day) {
					break
				}

				carried = &row.Price
			}

			if carried != nil {
				values = append(values, *carried)
			}
		}

		price, ok := ModeLowest(values)
		if !ok {
			continue
		}

		if len(points) == 0 || points[len(points)-1].Price != price {
			points = append(points, PricePoint{Date: day, Price: price})
		}
	}

	return points
}

// RebuildPriceChanges reconstructs the property_price_changes rows for one
// master property from its full price history. The ingest path only appends;
// this rewrite runs after merges and reverts, where migrated listings change
// what the majority ever was.
func RebuildPriceChanges(ctx context.Context, dbConn data.Querier, propertyID int64) error {
	listings, err := data.ListingsForProperty(ctx, dbConn, propertyID)
	if err != nil {
		return err
	}

	history, err := data.PriceHistoryForProperty(ctx, dbConn, propertyID)
	if err != nil {
		return err
	}

	points := BuildDailyTimeline(listings, history)

	changes := make([]*data.PropertyPriceChange, 0, len(points))
	for _, point := range points {
		changes = append(changes, &data.PropertyPriceChange{
			MasterPropertyID: propertyID,
			ChangeDate:       point.Date,
			Price:            point.Price,
		})
	}

	return data.ReplacePriceChanges(ctx, dbConn, propertyID, changes)
}
