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

// Package resolve turns raw portal sightings into catalog rows. Each
// RawListing is normalised, matched to a building by canonical name, address
// chain and identity triple, matched to a unit inside that building by its
// structural key, and upserted as a listing with price history appended on
// deltas. The match runs in one retryable transaction; aggregation, derived
// fields and the alias ledger are refreshed after commit.
package resolve

import (
	"context"
	"errors"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/jackc/pgx/v5"
	"github.com/mansion-watch/mwdata/aggregate"
	"github.com/mansion-watch/mwdata/alias"
	"github.com/mansion-watch/mwdata/catalog"
	"github.com/mansion-watch/mwdata/data"
	"github.com/mansion-watch/mwdata/lifecycle"
	"github.com/mansion-watch/mwdata/merge"
	"github.com/mansion-watch/mwdata/normalize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"
)

const DefaultWorkers = 4

// sighting caches the outcome of a resolved listing so an unchanged
// re-sighting bumps last_confirmed_at without re-running the match. Merges
// may rebind the listing later; the cached ids only feed run statistics, the
// confirm bump goes by listing id.
type sighting struct {
	BuildingID int64
	PropertyID int64
	ListingID  int64
	Price      int64
	HasPrice   bool
	Active     bool
}

// Resolver matches raw listings to buildings and master properties. One
// resolver is shared by every ingest worker of a run.
type Resolver struct {
	Catalog *catalog.Catalog

	// Workers is the pool size used by Process; zero means DefaultWorkers.
	Workers int

	// Limiter, when set, paces Resolve calls across the worker pool.
	Limiter *rate.Limiter

	// FinalPriceWindow overrides the lifecycle default when refreshing sold
	// units.
	FinalPriceWindow time.Duration

	sightings *haxmap.Map[string, sighting]
}

// New builds a resolver bound to the catalog, snapshotting worker count and
// rate limit from configuration.
func New(myCatalog *catalog.Catalog) *Resolver {
	resolver := &Resolver{
		Catalog:          myCatalog,
		Workers:          viper.GetInt("ingest.workers"),
		FinalPriceWindow: viper.GetDuration("lifecycle.final_price_window"),
		sightings:        haxmap.New[string, sighting](),
	}

	if limit := viper.GetFloat64("ingest.rate_limit"); limit > 0 {
		resolver.Limiter = rate.NewLimiter(rate.Limit(limit/float64(61)), 1)
	}

	return resolver
}

func (resolver *Resolver) cache() *haxmap.Map[string, sighting] {
	if resolver.sightings == nil {
		resolver.sightings = haxmap.New[string, sighting]()
	}

	return resolver.sightings
}

func (resolver *Resolver) finalPriceWindow() time.Duration {
	if resolver.FinalPriceWindow > 0 {
		return resolver.FinalPriceWindow
	}

	return lifecycle.DefaultFinalPriceWindow
}

func (resolver *Resolver) mover() *merge.Operator {
	return &merge.Operator{
		Catalog:          resolver.Catalog,
		Actor:            "resolver",
		FinalPriceWindow: resolver.FinalPriceWindow,
	}
}

func sightingKey(sourceSite, sitePropertyID string) string {
	return sourceSite + "|" + sitePropertyID
}

func samePrice(cached sighting, price *int64) bool {
	if price == nil {
		return !cached.HasPrice
	}

	return cached.HasPrice && cached.Price == *price
}

// resolveState carries the rows touched by one pass through the transaction
// steps; every retry starts from a zero state.
type resolveState struct {
	building         *data.Building
	property         *data.MasterProperty
	listing          *data.Listing
	createdBuilding  bool
	createdProperty  bool
	createdListing   bool
	previousProperty int64
}

// Resolve runs one listing sighting through the full pipeline and reports
// what it touched. Field drops are returned alongside the result so callers
// can fold them into run statistics.
func (resolver *Resolver) Resolve(ctx context.Context, raw *data.RawListing) (data.ResolveResult, data.FieldDrops, error) {
	var result data.ResolveResult

	norm, drops, err := normalize.Listing(raw)
	if err != nil {
		return result, drops, err
	}

	key := sightingKey(raw.SourceSite, raw.SitePropertyID)

	if cached, ok := resolver.cache().Get(key); ok && cached.Active && samePrice(cached, norm.CurrentPrice) {
		listing := data.Listing{ID: cached.ListingID}
		if err := listing.Confirm(ctx, resolver.Catalog.Pool, norm.ObservedAt); err != nil {
			return result, drops, err
		}

		result.BuildingID = cached.BuildingID
		result.MasterPropertyID = cached.PropertyID
		result.ListingID = cached.ListingID

		return result, drops, nil
	}

	state := &resolveState{}

	err = resolver.Catalog.WithRetry(ctx, func(tx pgx.Tx) error {
		*state = resolveState{}

		if err := resolver.buildingStep(ctx, tx, norm, state); err != nil {
			return err
		}

		if err := resolver.propertyStep(ctx, tx, norm, state); err != nil {
			return err
		}

		return resolver.listingStep(ctx, tx, norm, state)
	})
	if err != nil {
		return result, drops, err
	}

	result = data.ResolveResult{
		BuildingID:       state.building.ID,
		MasterPropertyID: state.property.ID,
		ListingID:        state.listing.ID,
		CreatedBuilding:  state.createdBuilding,
		CreatedProperty:  state.createdProperty,
		CreatedListing:   state.createdListing,
		Reattached:       state.previousProperty != 0,
	}

	if err := resolver.postResolve(ctx, norm, state, &result); err != nil {
		return result, drops, err
	}

	resolver.cache().Set(key, sighting{
		BuildingID: result.BuildingID,
		PropertyID: result.MasterPropertyID,
		ListingID:  result.ListingID,
		Price:      priceValue(norm.CurrentPrice),
		HasPrice:   norm.CurrentPrice != nil,
		Active:     true,
	})

	return result, drops, nil
}

func priceValue(price *int64) int64 {
	if price == nil {
		return 0
	}

	return *price
}

// buildingStep attaches the sighting to the building chosen by the candidate
// gate, or creates one seeded from the listing's ballot fields. The chosen
// row is locked and re-read; a candidate deleted by a concurrent merge falls
// through to create.
func (resolver *Resolver) buildingStep(ctx context.Context, tx pgx.Tx, norm *data.NormalizedListing, state *resolveState) error {
	candidates, err := buildingCandidates(ctx, tx, norm.CanonicalName)
	if err != nil {
		return err
	}

	if chosen := chooseBuilding(candidates, norm); chosen != nil {
		if err := catalog.LockBuildings(ctx, tx, chosen.ID); err != nil {
			return err
		}

		building, err := data.BuildingByID(ctx, tx, chosen.ID)
		if err == nil {
			state.building = building

			return nil
		}

		if !errors.Is(err, data.ErrNotFound) {
			return err
		}
	}

	state.building = seedBuilding(norm)
	state.createdBuilding = true

	return state.building.Insert(ctx, tx)
}

// seedBuilding maps a sighting's ballot fields onto a fresh building row.
func seedBuilding(norm *data.NormalizedListing) *data.Building {
	return &data.Building{
		CanonicalName:     norm.CanonicalName,
		NormalizedName:    norm.NormalizedName,
		Address:           norm.Raw.ListingAddress,
		NormalizedAddress: norm.NormalizedAddress,
		BuiltYear:         norm.BuiltYear,
		BuiltMonth:        norm.BuiltMonth,
		TotalFloors:       norm.TotalFloors,
		BasementFloors:    norm.BasementFloors,
		TotalUnits:        norm.TotalUnits,
		ConstructionType:  norm.ConstructionType,
	}
}

// propertyStep finds the structurally equal unit inside the chosen building
// or creates one. An active sighting of a sold unit re-opens it.
func (resolver *Resolver) propertyStep(ctx context.Context, tx pgx.Tx, norm *data.NormalizedListing, state *resolveState) error {
	if !state.createdBuilding {
		properties, err := data.MasterPropertiesForBuilding(ctx, tx, state.building.ID)
		if err != nil {
			return err
		}

		if match := matchUnit(properties, norm); match != nil {
			if err := catalog.LockProperties(ctx, tx, match.ID); err != nil {
				return err
			}

			prop, err := data.MasterPropertyByID(ctx, tx, match.ID)
			if err != nil && !errors.Is(err, data.ErrNotFound) {
				return err
			}

			if err == nil {
				state.property = prop

				if prop.SoldAt != nil {
					prop.SoldAt = nil
					prop.FinalPrice = nil

					return prop.Update(ctx, tx)
				}

				return nil
			}
		}
	}

	state.property = seedProperty(state.building.ID, norm)
	state.createdProperty = true

	return state.property.Insert(ctx, tx)
}

// matchUnit finds the structurally equal unit for an incoming sighting, if
// any. Known differing room numbers always split units.
func matchUnit(properties []*data.MasterProperty, norm *data.NormalizedListing) *data.MasterProperty {
	key := data.StructuralKey(norm.FloorNumber, norm.AreaM2, norm.Layout, norm.Direction, data.RoundHalf)

	for _, prop := range properties {
		if prop.StructuralKey() != key {
			continue
		}

		if prop.RoomNumber != nil && norm.RoomNumber != nil && *prop.RoomNumber != *norm.RoomNumber {
			continue
		}

		return prop
	}

	return nil
}

// seedProperty maps a sighting's unit observations onto a fresh master
// property row.
func seedProperty(buildingID int64, norm *data.NormalizedListing) *data.MasterProperty {
	prop := &data.MasterProperty{
		BuildingID:    buildingID,
		FloorNumber:   norm.FloorNumber,
		AreaM2:        norm.AreaM2,
		Layout:        norm.Layout,
		Direction:     norm.Direction,
		RoomNumber:    norm.RoomNumber,
		BalconyAreaM2: norm.BalconyAreaM2,
		ManagementFee: norm.ManagementFee,
		RepairFund:    norm.RepairFund,
		CurrentPrice:  norm.CurrentPrice,
		IsResale:      norm.Raw.IsResale,
	}

	if norm.NormalizedName != "" {
		prop.DisplayBuildingName = &norm.NormalizedName
	}

	if norm.Raw.TransactionType != "" {
		transactionType := norm.Raw.TransactionType
		prop.TransactionType = &transactionType
	}

	return prop
}

// listingStep upserts the listing row keyed on (source_site,
// site_property_id), holding its row lock so concurrent sightings of the
// same listing serialise.
func (resolver *Resolver) listingStep(ctx context.Context, tx pgx.Tx, norm *data.NormalizedListing, state *resolveState) error {
	existing, err := data.ListingBySource(ctx, tx, norm.Raw.SourceSite, norm.Raw.SitePropertyID, true)

	switch {
	case err == nil:
		return resolver.updateListing(ctx, tx, existing, norm, state)
	case errors.Is(err, data.ErrNotFound):
		return resolver.insertListing(ctx, tx, norm, state)
	default:
		return err
	}
}

func (resolver *Resolver) insertListing(ctx context.Context, tx pgx.Tx, norm *data.NormalizedListing, state *resolveState) error {
	listing := newListing(state.property.ID, norm)

	if err := listing.Insert(ctx, tx); err != nil {
		return err
	}

	state.listing = listing
	state.createdListing = true

	if norm.CurrentPrice != nil {
		hist := &data.PriceHistory{ListingID: listing.ID, RecordedAt: norm.ObservedAt, Price: *norm.CurrentPrice}

		return hist.Insert(ctx, tx)
	}

	return nil
}

// updateListing refreshes an existing row with the latest sighting. A
// listing that resolved to a different master property than last time keeps
// the latest attach; the anomaly is logged and the abandoned unit re-derived
// after commit.
func (resolver *Resolver) updateListing(ctx context.Context, tx pgx.Tx, listing *data.Listing, norm *data.NormalizedListing, state *resolveState) error {
	if listing.MasterPropertyID != state.property.ID {
		log.Warn().Int64("ListingID", listing.ID).
			Int64("PreviousPropertyID", listing.MasterPropertyID).
			Int64("PropertyID", state.property.ID).
			Str("SourceSite", listing.SourceSite).
			Str("SitePropertyID", listing.SitePropertyID).
			Msg("listing resolved to a different master property; keeping the latest attach")

		state.previousProperty = listing.MasterPropertyID
		listing.MasterPropertyID = state.property.ID
	}

	if norm.CurrentPrice != nil {
		last, err := data.LastRecordedPrice(ctx, tx, listing.ID)

		switch {
		case errors.Is(err, data.ErrNotFound), err == nil && last != *norm.CurrentPrice:
			hist := &data.PriceHistory{ListingID: listing.ID, RecordedAt: norm.ObservedAt, Price: *norm.CurrentPrice}

			if err := hist.Insert(ctx, tx); err != nil {
				return err
			}
		case err != nil:
			return err
		}
	}

	applySighting(listing, norm)

	state.listing = listing

	return listing.Update(ctx, tx)
}

// newListing maps a normalised sighting onto a fresh listing row.
func newListing(propertyID int64, norm *data.NormalizedListing) *data.Listing {
	raw := norm.Raw

	listing := &data.Listing{
		MasterPropertyID: propertyID,
		SourceSite:       raw.SourceSite,
		SitePropertyID:   raw.SitePropertyID,
		URL:              raw.URL,
		IsActive:         true,

		CurrentPrice: norm.CurrentPrice,

		ListingTotalFloors:      norm.TotalFloors,
		ListingBasementFloors:   norm.BasementFloors,
		ListingBuiltYear:        norm.BuiltYear,
		ListingBuiltMonth:       norm.BuiltMonth,
		ListingTotalUnits:       norm.TotalUnits,
		ListingConstructionType: norm.ConstructionType,

		FloorNumber:   norm.FloorNumber,
		AreaM2:        norm.AreaM2,
		Layout:        norm.Layout,
		Direction:     norm.Direction,
		RoomNumber:    norm.RoomNumber,
		BalconyAreaM2: norm.BalconyAreaM2,
		ManagementFee: norm.ManagementFee,
		RepairFund:    norm.RepairFund,

		IsResale: raw.IsResale,

		PublishedAt:      raw.PublishedAt,
		FirstPublishedAt: raw.FirstPublishedAt,
		FirstSeenAt:      norm.ObservedAt,
		LastConfirmedAt:  norm.ObservedAt,
	}

	if raw.ListingBuildingName != "" {
		name := raw.ListingBuildingName
		listing.ListingBuildingName = &name
	}

	if raw.ListingAddress != "" {
		address := raw.ListingAddress
		listing.ListingAddress = &address
	}

	if raw.TransactionType != "" {
		transactionType := raw.TransactionType
		listing.TransactionType = &transactionType
	}

	return listing
}

// applySighting overwrites a listing row with the latest observation. The
// latest sighting wins wholesale; only the first-seen fields keep their
// earliest values. A delisted row seen again reactivates.
func applySighting(listing *data.Listing, norm *data.NormalizedListing) {
	raw := norm.Raw

	if raw.URL != "" {
		listing.URL = raw.URL
	}

	listing.IsActive = true
	listing.DelistedAt = nil

	listing.CurrentPrice = norm.CurrentPrice

	if raw.ListingBuildingName != "" {
		name := raw.ListingBuildingName
		listing.ListingBuildingName = &name
	}

	if raw.ListingAddress != "" {
		address := raw.ListingAddress
		listing.ListingAddress = &address
	}

	listing.ListingTotalFloors = norm.TotalFloors
	listing.ListingBasementFloors = norm.BasementFloors
	listing.ListingBuiltYear = norm.BuiltYear
	listing.ListingBuiltMonth = norm.BuiltMonth
	listing.ListingTotalUnits = norm.TotalUnits
	listing.ListingConstructionType = norm.ConstructionType

	listing.FloorNumber = norm.FloorNumber
	listing.AreaM2 = norm.AreaM2
	listing.Layout = norm.Layout
	listing.Direction = norm.Direction
	listing.RoomNumber = norm.RoomNumber
	listing.BalconyAreaM2 = norm.BalconyAreaM2
	listing.ManagementFee = norm.ManagementFee
	listing.RepairFund = norm.RepairFund

	listing.IsResale = raw.IsResale

	if raw.TransactionType != "" {
		transactionType := raw.TransactionType
		listing.TransactionType = &transactionType
	}

	listing.PublishedAt = raw.PublishedAt

	if listing.FirstPublishedAt == nil {
		listing.FirstPublishedAt = raw.FirstPublishedAt
	}

	listing.LastConfirmedAt = norm.ObservedAt
}

// postResolve runs the after-commit maintenance for one sighting:
// mis-attachment realignment, aggregate refresh on the touched rows, derived
// lifecycle fields, the majority-price timeline and the alias ledger.
func (resolver *Resolver) postResolve(ctx context.Context, norm *data.NormalizedListing, state *resolveState, result *data.ResolveResult) error {
	dbConn := resolver.Catalog.Pool

	propertyID := state.property.ID
	buildingID := state.building.ID
	moved := false
	folded := false

	if !state.createdBuilding && misattached(state.building, norm) {
		move, err := resolver.realign(ctx, norm, state)
		if err != nil {
			return err
		}

		propertyID = move.PropertyID
		folded = move.FoldedInto != 0

		prop, err := data.MasterPropertyByID(ctx, dbConn, propertyID)
		if err != nil {
			return err
		}

		buildingID = prop.BuildingID
		moved = true

		result.BuildingID = buildingID
		result.MasterPropertyID = propertyID
		result.Reattached = true
	}

	previousMajority := state.property.CurrentPrice
	if state.createdProperty {
		previousMajority = nil
	}

	refreshed, err := aggregate.RefreshProperty(ctx, dbConn, propertyID)
	if err != nil {
		return err
	}

	if _, _, err := lifecycle.RefreshDerived(ctx, dbConn, propertyID, resolver.finalPriceWindow()); err != nil {
		return err
	}

	// A unit folded into a structural duplicate had its whole timeline
	// rebuilt during the move; the baseline for an append no longer exists.
	if !folded && majorityMoved(previousMajority, refreshed.CurrentPrice) {
		change := &data.PropertyPriceChange{
			MasterPropertyID: propertyID,
			ChangeDate:       aggregate.Day(norm.ObservedAt),
			Price:            *refreshed.CurrentPrice,
		}

		if err := change.Insert(ctx, dbConn); err != nil {
			return err
		}

		if err := lifecycle.RefreshPriceChangeStamp(ctx, dbConn, refreshed); err != nil {
			return err
		}

		result.PriceChanged = true
	}

	if state.previousProperty != 0 && state.previousProperty != propertyID {
		if err := resolver.refreshAbandoned(ctx, state.previousProperty, buildingID); err != nil {
			return err
		}
	}

	if !moved {
		if _, err := aggregate.RefreshBuilding(ctx, dbConn, buildingID); err != nil {
			return err
		}

		if !norm.StationNoise && norm.Raw.ListingBuildingName != "" {
			if err := alias.Fold(ctx, dbConn, buildingID, norm.Raw.ListingBuildingName,
				norm.Raw.SourceSite, norm.ObservedAt); err != nil {
				return err
			}
		}
	}

	return nil
}

// majorityMoved reports whether a property's majority price landed on a new
// value. A first price counts; losing the majority entirely does not record
// a change.
func majorityMoved(before, after *int64) bool {
	if after == nil {
		return false
	}

	return before == nil || *before != *after
}

// refreshAbandoned re-derives the master property a hopping listing left
// behind; losing a voter can change its price, sold state and dates.
func (resolver *Resolver) refreshAbandoned(ctx context.Context, propertyID, currentBuildingID int64) error {
	dbConn := resolver.Catalog.Pool

	prop, err := aggregate.RefreshProperty(ctx, dbConn, propertyID)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil
		}

		return err
	}

	if _, _, err := lifecycle.RefreshDerived(ctx, dbConn, propertyID, resolver.finalPriceWindow()); err != nil {
		return err
	}

	if prop.BuildingID != currentBuildingID {
		if _, err := aggregate.RefreshBuilding(ctx, dbConn, prop.BuildingID); err != nil {
			return err
		}
	}

	return nil
}
