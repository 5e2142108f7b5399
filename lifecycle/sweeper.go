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
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mansion-watch/mwdata/catalog"
	"github.com/rs/zerolog/log"
)

// Sweeper applies the time-based lifecycle transitions. It runs on a
// schedule and after every ingest run.
type Sweeper struct {
	Catalog *catalog.Catalog

	// StalledThreshold is how long a listing may go unconfirmed before it is
	// delisted; zero means DefaultStalledThreshold.
	StalledThreshold time.Duration

	// FinalPriceWindow bounds the price-history vote for final_price; zero
	// means DefaultFinalPriceWindow.
	FinalPriceWindow time.Duration
}

// SweepStats summarises one sweep pass.
type SweepStats struct {
	Deactivated int
	Reactivated int
	Sold        int
	Reopened    int
	Refreshed   int
}

// Sweep deactivates stalled listings, reactivates listings confirmed again
// inside the threshold, then re-derives every touched property. The batch
// transitions run in one transaction; each property refresh is its own
// transaction so a long sweep never holds wide locks.
//
// Properties whose sold/active state drifted out of line (a crash between
// listing and property writes) are picked up by the consistency scan and
// healed the same way.
func (sweeper *Sweeper) Sweep(ctx context.Context) (*SweepStats, error) {
	stats := &SweepStats{}
	now := time.Now()

	threshold := sweeper.StalledThreshold
	if threshold <= 0 {
		threshold = DefaultStalledThreshold
	}

	cutoff := now.Add(-threshold)
	affected := make(map[int64]bool)

	err := sweeper.Catalog.WithRetry(ctx, func(tx pgx.Tx) error {
		clear(affected)
		stats.Deactivated = 0
		stats.Reactivated = 0

		deactivated, err := propertyIDsFromUpdate(ctx, tx, `UPDATE listings
			SET is_active = 'f', delisted_at = $2, updated_at = now()
			WHERE is_active = 't' AND last_confirmed_at < $1
			RETURNING master_property_id`, cutoff, now)
		if err != nil {
			return err
		}

		reactivated, err := propertyIDsFromUpdate(ctx, tx, `UPDATE listings
			SET is_active = 't', delisted_at = NULL, updated_at = now()
			WHERE is_active = 'f' AND last_confirmed_at >= $1
			RETURNING master_property_id`, cutoff)
		if err != nil {
			return err
		}

		stats.Deactivated = len(deactivated)
		stats.Reactivated = len(reactivated)

		for _, id := range deactivated {
			affected[id] = true
		}

		for _, id := range reactivated {
			affected[id] = true
		}

		// invariant scan: sold_at must be set exactly when no listing is
		// active, orphan properties excepted
		rows, err := tx.Query(ctx, `SELECT p.id FROM master_properties p
			WHERE EXISTS (SELECT 1 FROM listings l WHERE l.master_property_id = p.id)
			AND ((p.sold_at IS NULL) != EXISTS (
				SELECT 1 FROM listings l WHERE l.master_property_id = p.id AND l.is_active = 't'))`)
		if err != nil {
			return err
		}

		defer rows.Close()

		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}

			affected[id] = true
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	for propertyID := range affected {
		var transition Transition

		err := sweeper.Catalog.WithRetry(ctx, func(tx pgx.Tx) error {
			var err error
			_, transition, err = RefreshDerived(ctx, tx, propertyID, sweeper.FinalPriceWindow)

			return err
		})
		if err != nil {
			return nil, err
		}

		if transition.MarkedSold {
			stats.Sold++
		}

		if transition.Reopened {
			stats.Reopened++
		}

		stats.Refreshed++
	}

	log.Info().
		Int("Deactivated", stats.Deactivated).
		Int("Reactivated", stats.Reactivated).
		Int("Sold", stats.Sold).
		Int("Reopened", stats.Reopened).
		Int("Refreshed", stats.Refreshed).
		Msg("lifecycle sweep complete")

	return stats, nil
}

func propertyIDsFromUpdate(ctx context.Context, tx pgx.Tx, sql string, args ...any) ([]int64, error) {
	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var ids []int64

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	return ids, rows.Err()
}
