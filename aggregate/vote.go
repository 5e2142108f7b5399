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
	"cmp"
	"time"

	"github.com/mansion-watch/mwdata/data"
)

// Ballot is one listing's observation of a field. Listings vote with the
// value they currently show; a nil observation abstains and never reaches a
// ballot.
type Ballot[T cmp.Ordered] struct {
	Value      T
	ObservedAt time.Time
}

// Mode returns the most frequent ballot value. Ties go to the value observed
// most recently, then to the smallest value. ok is false when no ballots
// were cast.
func Mode[T cmp.Ordered](ballots []Ballot[T]) (winner T, ok bool) {
	if len(ballots) == 0 {
		return winner, false
	}

	counts := make(map[T]int, len(ballots))
	latest := make(map[T]time.Time, len(ballots))

	for _, ballot := range ballots {
		counts[ballot.Value]++
		if ballot.ObservedAt.After(latest[ballot.Value]) {
			latest[ballot.Value] = ballot.ObservedAt
		}
	}

	for value := range counts {
		if !ok {
			winner = value
			ok = true

			continue
		}

		switch {
		case counts[value] > counts[winner]:
			winner = value
		case counts[value] == counts[winner] && latest[value].After(latest[winner]):
			winner = value
		case counts[value] == counts[winner] && latest[value].Equal(latest[winner]) && value < winner:
			winner = value
		}
	}

	return winner, true
}

// ModeLowest returns the most frequent value, ties going to the smallest.
// Used for the reconstructed daily price timeline where observations carry
// no useful recency of their own.
func ModeLowest[T cmp.Ordered](values []T) (winner T, ok bool) {
	if len(values) == 0 {
		return winner, false
	}

	counts := make(map[T]int, len(values))
	for _, value := range values {
		counts[value]++
	}

	for value := range counts {
		if !ok {
			winner = value
			ok = true

			continue
		}

		if counts[value] > counts[winner] ||
			(counts[value] == counts[winner] && value < winner) {
			winner = value
		}
	}

	return winner, true
}

// gather collects ballots for one field across the voting listings; nil
// observations abstain.
func gather[T cmp.Ordered](listings []*data.Listing, field func(*data.Listing) *T) []Ballot[T] {
	ballots := make([]Ballot[T], 0, len(listings))

	for _, listing := range listings {
		if value := field(listing); value != nil {
			ballots = append(ballots, Ballot[T]{Value: *value, ObservedAt: listing.LastConfirmedAt})
		}
	}

	return ballots
}

// assignMode writes the winning ballot value through to the owner field and
// reports whether it changed. With no ballots the field keeps its current
// value; abstention never erases knowledge.
func assignMode[T cmp.Ordered](dst **T, ballots []Ballot[T]) bool {
	value, ok := Mode(ballots)
	if !ok {
		return false
	}

	if *dst != nil && **dst == value {
		return false
	}

	*dst = &value

	return true
}

// voters narrows the electorate to active listings; when a property has none
// (sold or fully delisted) every listing votes so attributes survive the
// lifecycle transition. Prices never use the fallback.
func voters(listings []*data.Listing) []*data.Listing {
	active := make([]*data.Listing, 0, len(listings))

	for _, listing := range listings {
		if listing.IsActive {
			active = append(active, listing)
		}
	}

	if len(active) > 0 {
		return active
	}

	return listings
}
