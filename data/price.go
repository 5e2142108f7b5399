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
package data

import (
	"context"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// PriceHistory is the append-only per-listing price record. A row is written
// only when the observed price differs from the last recorded one.
type PriceHistory struct {
	ID         int64     `json:"id"`
	ListingID  int64     `json:"listing_id"`
	RecordedAt time.Time `json:"recorded_at"`
	Price      int64     `json:"price"`
}

func (hist *PriceHistory) Insert(ctx context.Context, dbConn Querier) error {
	err := dbConn.QueryRow(ctx,
		`INSERT INTO price_history ("listing_id", "recorded_at", "price")
		VALUES ($1, $2, $3) RETURNING id`,
		hist.ListingID, hist.RecordedAt, hist.Price).Scan(&hist.ID)
	if err != nil {
		log.Error().Err(err).Int64("ListingID", hist.ListingID).
			Msg("error appending price history")
	}

	return err
}

// LastRecordedPrice returns the most recent price-history price for a
// listing, or ErrNotFound when the listing has no history yet.
func LastRecordedPrice(ctx context.Context, dbConn Querier, listingID int64) (int64, error) {
	var price int64

	err := dbConn.QueryRow(ctx,
		`SELECT price FROM price_history WHERE listing_id = $1
		ORDER BY recorded_at DESC, id DESC LIMIT 1`, listingID).Scan(&price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}

		return 0, err
	}

	return price, nil
}

// PriceHistoryForProperty loads the price history of every listing of a
// master property in recording order.
func PriceHistoryForProperty(ctx context.Context, dbConn Querier, propertyID int64) ([]*PriceHistory, error) {
	rows := make([]*PriceHistory, 0, 32)

	err := pgxscan.Select(ctx, dbConn, &rows,
		`SELECT ph.* FROM price_history ph
		JOIN listings l ON l.id = ph.listing_id
		WHERE l.master_property_id = $1
		ORDER BY ph.recorded_at, ph.id`, propertyID)
	if err != nil {
		return nil, err
	}

	return rows, nil
}

// PropertyPriceChange records each change of the majority-vote price of a
// master property, one row per day on which the majority moved.
type PropertyPriceChange struct {
	ID               int64     `json:"id"`
	MasterPropertyID int64     `json:"master_property_id"`
	ChangeDate       time.Time `json:"change_date"`
	Price            int64     `json:"price"`
}

func (change *PropertyPriceChange) Insert(ctx context.Context, dbConn Querier) error {
	err := dbConn.QueryRow(ctx,
		`INSERT INTO property_price_changes ("master_property_id", "change_date", "price")
		VALUES ($1, $2, $3) RETURNING id`,
		change.MasterPropertyID, change.ChangeDate, change.Price).Scan(&change.ID)
	if err != nil {
		log.Error().Err(err).Int64("MasterPropertyID", change.MasterPropertyID).
			Msg("error appending property price change")
	}

	return err
}

// PriceChangesForProperty loads a property's majority-price changes in date
// order.
func PriceChangesForProperty(ctx context.Context, dbConn Querier, propertyID int64) ([]*PropertyPriceChange, error) {
	rows := make([]*PropertyPriceChange, 0, 8)

	err := pgxscan.Select(ctx, dbConn, &rows,
		`SELECT * FROM property_price_changes WHERE master_property_id = $1
		ORDER BY change_date, id`, propertyID)
	if err != nil {
		return nil, err
	}

	return rows, nil
}

// ReplacePriceChanges rewrites a property's majority-price timeline in one
// statement pair; the merge/rebuild path uses it after the listing fleet
// changes shape.
func ReplacePriceChanges(ctx context.Context, dbConn Querier, propertyID int64, changes []*PropertyPriceChange) error {
	if _, err := dbConn.Exec(ctx,
		`DELETE FROM property_price_changes WHERE master_property_id = $1`, propertyID); err != nil {
		log.Error().Err(err).Int64("MasterPropertyID", propertyID).
			Msg("error clearing property price changes")
		return err
	}

	for _, change := range changes {
		change.MasterPropertyID = propertyID
		if err := change.Insert(ctx, dbConn); err != nil {
			return err
		}
	}

	return nil
}
