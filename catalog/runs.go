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
package catalog

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mansion-watch/mwdata/data"
)

// CrawlRun is the persisted outcome of one subscription execution: resolver
// counters plus the per-field validation drop map.
type CrawlRun struct {
	ID                int64     `db:"id"`
	SubscriptionID    uuid.UUID `db:"subscription_id"`
	StartedAt         time.Time `db:"started_at"`
	FinishedAt        time.Time `db:"finished_at"`
	ListingsSeen      int       `db:"listings_seen"`
	BuildingsCreated  int       `db:"buildings_created"`
	PropertiesCreated int       `db:"properties_created"`
	ListingsCreated   int       `db:"listings_created"`
	Reattached        int       `db:"reattached"`
	PriceChanges      int       `db:"price_changes"`
	FieldDrops        []byte    `db:"field_drops"`
	Errors            int       `db:"errors"`
}

// NewCrawlRun builds a run row from resolver stats; field drop counters are
// serialized to jsonb so dashboards can aggregate them per source.
func NewCrawlRun(subscriptionID uuid.UUID, startedAt, finishedAt time.Time, stats *data.ProcessStats) (*CrawlRun, error) {
	drops, err := json.Marshal(stats.FieldDrops)
	if err != nil {
		return nil, err
	}

	return &CrawlRun{
		SubscriptionID:    subscriptionID,
		StartedAt:         startedAt,
		FinishedAt:        finishedAt,
		ListingsSeen:      stats.ListingsSeen,
		BuildingsCreated:  stats.BuildingsCreated,
		PropertiesCreated: stats.PropertiesCreated,
		ListingsCreated:   stats.ListingsCreated,
		Reattached:        stats.Reattached,
		PriceChanges:      stats.PriceChanges,
		FieldDrops:        drops,
		Errors:            stats.Errors,
	}, nil
}

// Insert the run row; the generated id is written back onto the struct
func (run *CrawlRun) Insert(ctx context.Context, tx pgx.Tx) error {
	return tx.QueryRow(ctx, `INSERT INTO crawl_runs
("subscription_id", "started_at", "finished_at", "listings_seen", "buildings_created",
"properties_created", "listings_created", "reattached", "price_changes", "field_drops", "errors")
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
		run.SubscriptionID, run.StartedAt, run.FinishedAt, run.ListingsSeen,
		run.BuildingsCreated, run.PropertiesCreated, run.ListingsCreated,
		run.Reattached, run.PriceChanges, run.FieldDrops, run.Errors).Scan(&run.ID)
}

// RecentRuns returns the most recent crawl runs for the subscription, newest
// first.
func (subscription *Subscription) RecentRuns(ctx context.Context, limit int) ([]*CrawlRun, error) {
	var runs []*CrawlRun
	err := pgxscan.Select(ctx, subscription.Catalog.Pool, &runs, `SELECT id, subscription_id,
started_at, finished_at, listings_seen, buildings_created, properties_created,
listings_created, reattached, price_changes, field_drops, errors
FROM crawl_runs WHERE subscription_id=$1 ORDER BY finished_at DESC LIMIT $2`,
		subscription.ID, limit)
	return runs, err
}
