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
	"fmt"
	"os/user"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mansion-watch/mwdata/healthcheck"
)

// Subscription is one recurring crawl task: a portal source crossed with a
// crawlable area. The run command executes active subscriptions on their
// schedule and feeds every RawListing they emit through the resolver.
type Subscription struct {
	ID   uuid.UUID
	Name string

	Source string
	Area   string
	Config map[string]string

	TotalListings   int64
	ListingsLastRun int64

	Schedule      string
	HealthCheckID string
	LastRun       time.Time
	Active        bool

	CreatedOn time.Time
	CreatedBy string

	Catalog *Catalog
}

// Save the subscription to the database
func (subscription *Subscription) Save(ctx context.Context) error {
	// make sure current user is set on subscription
	if user, err := user.Current(); err != nil {
		return err
	} else {
		subscription.CreatedBy = user.Username
	}

	return subscription.Catalog.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO crawl_subscriptions
("id", "name", "source", "area", "config", "schedule", "health_check_id", "created_by")
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`, subscription.ID.String(),
			subscription.Name, subscription.Source, subscription.Area, subscription.Config,
			subscription.Schedule, subscription.HealthCheckID, subscription.CreatedBy)
		return err
	})
}

// Delete the subscription from the database; catalog entities it produced
// stay in place since other subscriptions may reference them
func (subscription *Subscription) Delete(ctx context.Context) error {
	err := subscription.Catalog.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM crawl_runs WHERE subscription_id=$1", subscription.ID); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, "DELETE FROM crawl_subscriptions WHERE id=$1", subscription.ID); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return err
	}

	// now that all database related modification has succeeded delete any corresponding health check
	if subscription.HealthCheckID != "" {
		if err := healthcheck.Delete(subscription.HealthCheckID); err != nil {
			return err
		}
	}

	return nil
}

// Activate the subscription
func (subscription *Subscription) Activate(ctx context.Context) error {
	err := subscription.Catalog.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, "UPDATE crawl_subscriptions SET active='t' WHERE id=$1", subscription.ID)
		return err
	})
	if err != nil {
		return err
	}

	// now that all database related modification has succeeded resume any corresponding health check
	if subscription.HealthCheckID != "" {
		if err := healthcheck.Resume(subscription.HealthCheckID); err != nil {
			return err
		}
	}

	return nil
}

// Deactivate the subscription; all data is still saved in the database but
// the subscription is marked as inactive and won't be crawled or reported
func (subscription *Subscription) Deactivate(ctx context.Context) error {
	err := subscription.Catalog.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, "UPDATE crawl_subscriptions SET active='f' WHERE id=$1", subscription.ID)
		return err
	})
	if err != nil {
		return err
	}

	// now that all database related modification has succeeded pause any corresponding health check
	if subscription.HealthCheckID != "" {
		if err := healthcheck.Pause(subscription.HealthCheckID); err != nil {
			return err
		}
	}

	return nil
}

// RecordRun persists one crawl run outcome and rolls the subscription's
// counters forward.
func (subscription *Subscription) RecordRun(ctx context.Context, run *CrawlRun) error {
	return subscription.Catalog.WithTx(ctx, func(tx pgx.Tx) error {
		if err := run.Insert(ctx, tx); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `UPDATE crawl_subscriptions SET
			total_listings = total_listings + $2,
			listings_last_run = $2,
			last_run = $3
		WHERE id = $1`, subscription.ID, run.ListingsSeen, run.FinishedAt)
		return err
	})
}

// Subscriptions returns an array of crawl subscription objects
func (myCatalog *Catalog) Subscriptions(ctx context.Context) ([]*Subscription, error) {
	var subscriptions []*Subscription
	err := pgxscan.Select(ctx, myCatalog.Pool, &subscriptions,
		`SELECT id, name, source, area, config, total_listings, listings_last_run, schedule,
health_check_id, coalesce(last_run, '0001-01-01'::timestamp) as last_run, active, created_on,
created_by FROM crawl_subscriptions`)
	for _, sub := range subscriptions {
		sub.Catalog = myCatalog
	}
	return subscriptions, err
}

// SubscriptionFromID fetches a subscription from the catalog with the given
// ID; a unique id prefix is enough
func (myCatalog *Catalog) SubscriptionFromID(ctx context.Context, id string) (*Subscription, error) {
	conn, err := myCatalog.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	subscription := &Subscription{
		Catalog: myCatalog,
	}

	rows, err := conn.Query(ctx, fmt.Sprintf(`SELECT id, name, source, area, config,
	total_listings, listings_last_run, schedule, health_check_id,
	coalesce(last_run, '0001-01-01'::timestamp) as last_run, active, created_on, created_by
	FROM crawl_subscriptions WHERE id::text like '%s%%' LIMIT 1`, id))
	if err != nil {
		return nil, err
	}

	if err := pgxscan.ScanOne(subscription, rows); err != nil {
		return nil, err
	}

	return subscription, nil
}
