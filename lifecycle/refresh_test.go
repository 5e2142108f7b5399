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
package lifecycle

import (
	"testing"
	"time"

	"github.com/mansion-watch/mwdata/data"
)

func day(daysAgo int) time.Time {
	return time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -daysAgo)
}

func TestNextTransition(t *testing.T) {
	soldAt := day(5)

	tests := []struct {
		name      string
		soldAt    *time.Time
		hasActive bool
		want      Transition
	}{
		{"active listing on a live property", nil, true, Transition{}},
		{"all listings gone marks sold", nil, false, Transition{MarkedSold: true}},
		{"active listing reopens a sold property", &soldAt, true, Transition{Reopened: true}},
		{"sold property stays sold", &soldAt, false, Transition{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextTransition(tt.soldAt, tt.hasActive); got != tt.want {
				t.Errorf("NextTransition() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSoldDate(t *testing.T) {
	delistedA := day(1)
	delistedB := day(2)

	listings := []*data.Listing{
		{DelistedAt: &delistedA, LastConfirmedAt: day(1)},
		{DelistedAt: &delistedB, LastConfirmedAt: day(2)},
	}

	got := SoldDate(listings)
	if got == nil || !got.Equal(day(1)) {
		t.Errorf("SoldDate() = %v, want %s", got, day(1))
	}
}

func TestSoldDateFallsBackToLastConfirmed(t *testing.T) {
	listings := []*data.Listing{
		{LastConfirmedAt: day(3)},
	}

	got := SoldDate(listings)
	if got == nil || !got.Equal(day(3)) {
		t.Errorf("SoldDate() = %v, want %s", got, day(3))
	}
}

func TestSoldDateEmpty(t *testing.T) {
	if got := SoldDate(nil); got != nil {
		t.Errorf("SoldDate(nil) = %v, want nil", got)
	}
}

// two listings delist on days -1 and -2; the seven day window before the
// sale holds more 5700 observations than 5800
func TestFinalPriceMajorityInWindow(t *testing.T) {
	delistedA := day(1)
	delistedB := day(2)

	listings := []*data.Listing{
		{ID: 1, DelistedAt: &delistedA, LastConfirmedAt: day(1)},
		{ID: 2, DelistedAt: &delistedB, LastConfirmedAt: day(2)},
	}

	history := []*data.PriceHistory{
		{ListingID: 1, RecordedAt: day(10), Price: 5800},
		{ListingID: 1, RecordedAt: day(6), Price: 5700},
		{ListingID: 2, RecordedAt: day(5), Price: 5700},
	}

	soldAt := SoldDate(listings)
	if soldAt == nil || !soldAt.Equal(day(1)) {
		t.Fatalf("SoldDate() = %v, want %s", soldAt, day(1))
	}

	got := FinalPrice(history, listings, *soldAt, DefaultFinalPriceWindow)
	if got == nil || *got != 5700 {
		t.Errorf("FinalPrice() = %v, want 5700", got)
	}
}

func TestFinalPriceEmptyWindowFallsBack(t *testing.T) {
	price := int64(4980)
	stale := int64(5200)

	listings := []*data.Listing{
		{ID: 1, CurrentPrice: &stale, UpdatedAt: day(40)},
		{ID: 2, CurrentPrice: &price, UpdatedAt: day(30)},
	}

	// every history row predates the window
	history := []*data.PriceHistory{
		{ListingID: 1, RecordedAt: day(60), Price: 5200},
		{ListingID: 2, RecordedAt: day(55), Price: 4980},
	}

	got := FinalPrice(history, listings, day(0), DefaultFinalPriceWindow)
	if got == nil || *got != 4980 {
		t.Errorf("FinalPrice() = %v, want the most recently updated listing's 4980", got)
	}
}

func TestFinalPriceNoData(t *testing.T) {
	if got := FinalPrice(nil, nil, day(0), DefaultFinalPriceWindow); got != nil {
		t.Errorf("FinalPrice() = %v, want nil", got)
	}
}

func TestEarliestListingDate(t *testing.T) {
	published := day(20)
	firstPublished := day(25)

	listings := []*data.Listing{
		{FirstSeenAt: day(10), CreatedAt: day(10)},
		{PublishedAt: &published, FirstSeenAt: day(8), CreatedAt: day(8)},
		{FirstPublishedAt: &firstPublished, FirstSeenAt: day(5), CreatedAt: day(5)},
	}

	got := EarliestListingDate(listings)
	if got == nil || !got.Equal(day(25)) {
		t.Errorf("EarliestListingDate() = %v, want %s via first_published_at", got, day(25))
	}
}

func TestEarliestListingDateEmpty(t *testing.T) {
	if got := EarliestListingDate(nil); got != nil {
		t.Errorf("EarliestListingDate(nil) = %v, want nil", got)
	}
}
