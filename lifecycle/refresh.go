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

// Package lifecycle maintains the derived listing/property state machine:
// stalled listings go inactive, fully delisted properties become sold with a
// final price, re-confirmed listings reopen their property.
package lifecycle

import (
	"context"
	"time"

	"github.com/mansion-watch/mwdata/aggregate"
	"github.com/mansion-watch/mwdata/data"
)

const (
	// DefaultStalledThreshold is how long a listing may go unconfirmed
	// before it is treated as delisted.
	DefaultStalledThreshold = 24 * time.Hour

	// DefaultFinalPriceWindow is the price-history window ending at sold_at
	// that votes on a sold property's final price.
	DefaultFinalPriceWindow = 7 * 24 * time.Hour
)

// Transition reports the lifecycle state changes RefreshDerived applied.
type Transition struct {
	MarkedSold bool
	Reopened   bool
}

// NextTransition decides the sold-state change a property needs: a property
// with an active listing again must reopen, a property whose every listing
// went inactive must be marked sold. Anything else stays put.
func NextTransition(soldAt *time.Time, hasActive bool) Transition {
	return Transition{
		Reopened:   hasActive && soldAt != nil,
		MarkedSold: !hasActive && soldAt == nil,
	}
}

// SoldDate is the moment a property left the market: the latest delisting
// across its listings (falling back to last_confirmed_at when a delisting
// timestamp is missing).
func SoldDate(listings []*data.Listing) *time.Time {
	var soldAt time.Time

	for _, listing := range listings {
		at := listing.LastConfirmedAt
		if listing.DelistedAt != nil {
			at = *listing.DelistedAt
		}

		if at.After(soldAt) {
			soldAt = at
		}
	}

	if soldAt.IsZero() {
		return nil
	}

	return &soldAt
}

// FinalPrice votes on the price a property actually sold at: the majority of
// price-history rows recorded within the window ending at soldAt. When the
// window is empty the most recently updated listing's current price stands
// in.
func FinalPrice(history []*data.PriceHistory, listings []*data.Listing, soldAt time.Time, window time.Duration) *int64 {
	if window <= 0 {
		window = DefaultFinalPriceWindow
	}

	cutoff := soldAt.Add(-window)
	ballots := make([]aggregate.Ballot[int64], 0, len(history))

	for _, row := range history {
		if row.RecordedAt.Before(cutoff) || row.RecordedAt.After(soldAt) {
			continue
		}

		ballots = append(ballots, aggregate.Ballot[int64]{Value: row.Price, ObservedAt: row.RecordedAt})
	}

	if price, ok := aggregate.Mode(ballots); ok {
		return &price
	}

	var (
		fallback  *int64
		updatedAt time.Time
	)

	for _, listing := range listings {
		if listing.CurrentPrice == nil {
			continue
		}

		if fallback == nil || listing.UpdatedAt.After(updatedAt) {
			fallback = listing.CurrentPrice
			updatedAt = listing.UpdatedAt
		}
	}

	return fallback
}

// EarliestListingDate is the first day the property was observable anywhere:
// the minimum over listings of first_published_at, falling back through
// published_at, first_seen_at and created_at.
func EarliestListingDate(listings []*data.Listing) *time.Time {
	var earliest time.Time

	for _, listing := range listings {
		at := listing.EarliestDate()
		if earliest.IsZero() || at.Before(earliest) {
			earliest = at
		}
	}

	if earliest.IsZero() {
		return nil
	}

	return &earliest
}

// RefreshDerived re-derives everything a property owes to its listings:
// majority-vote attributes, the sold/active state, final price, earliest
// listing date and the price-change stamp. It runs inside the caller's
// transaction after any listing insert, confirmation or sweep touching the
// property.
//
// Orphan properties (no listings) are left untouched; they are legal but
// hidden from the read surface.
func RefreshDerived(ctx context.Context, dbConn data.Querier, propertyID int64, finalPriceWindow time.Duration) (*data.MasterProperty, Transition, error) {
	var transition Transition

	prop, err := data.MasterPropertyByID(ctx, dbConn, propertyID)
	if err != nil {
		return nil, transition, err
	}

	listings, err := data.ListingsForProperty(ctx, dbConn, propertyID)
	if err != nil {
		return nil, transition, err
	}

	if len(listings) == 0 {
		return prop, transition, nil
	}

	changed := aggregate.VoteProperty(prop, listings)

	hasActive := false

	for _, listing := range listings {
		if listing.IsActive {
			hasActive = true

			break
		}
	}

	transition = NextTransition(prop.SoldAt, hasActive)

	switch {
	case transition.Reopened:
		prop.SoldAt = nil
		prop.FinalPrice = nil
		changed = true
	case transition.MarkedSold:
		soldAt := SoldDate(listings)

		history, err := data.PriceHistoryForProperty(ctx, dbConn, propertyID)
		if err != nil {
			return nil, transition, err
		}

		prop.SoldAt = soldAt
		prop.FinalPrice = FinalPrice(history, listings, *soldAt, finalPriceWindow)
		changed = true
	}

	if earliest := EarliestListingDate(listings); earliest != nil &&
		(prop.EarliestListingDate == nil || !prop.EarliestListingDate.Equal(*earliest)) {
		prop.EarliestListingDate = earliest
		changed = true
	}

	if changed {
		if err := prop.Update(ctx, dbConn); err != nil {
			return nil, transition, err
		}
	}

	if err := RefreshPriceChangeStamp(ctx, dbConn, prop); err != nil {
		return nil, transition, err
	}

	return prop, transition, nil
}

// RefreshPriceChangeStamp re-derives latest_price_change_at from the
// property_price_changes ledger and writes the fresh value back onto prop.
func RefreshPriceChangeStamp(ctx context.Context, dbConn data.Querier, prop *data.MasterProperty) error {
	return dbConn.QueryRow(ctx, `UPDATE master_properties SET latest_price_change_at = (
		SELECT max(change_date) FROM property_price_changes WHERE master_property_id = $1
	) WHERE id = $1 RETURNING latest_price_change_at`, prop.ID).Scan(&prop.LatestPriceChangeAt)
}
