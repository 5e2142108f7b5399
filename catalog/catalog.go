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

// Package catalog is the entity store for the condominium database: a
// pgxpool wrapper with single-transaction units of work, deadlock retry and
// id-ordered row locking, plus the crawl subscription ledger.
package catalog

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/viper"
)

type Catalog struct {
	DBUrl string
	Name  string
	Owner string

	// DeadlockRetries caps transaction retries on deadlock or serialization
	// failure; zero means the default of 3.
	DeadlockRetries int

	Pool *pgxpool.Pool
}

// Connect to the database configured for the catalog
func (myCatalog *Catalog) Connect(ctx context.Context) error {
	if myCatalog.Pool != nil {
		return nil
	}

	pool, err := pgxpool.New(context.Background(), myCatalog.DBUrl)
	if err != nil {
		return err
	}
	myCatalog.Pool = pool

	return nil
}

// Close the database pool
func (myCatalog *Catalog) Close() {
	myCatalog.Pool.Close()
}

// NewFromDB creates a new catalog object with values from the database
func NewFromDB(ctx context.Context, dbURL string) (*Catalog, error) {
	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		return nil, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	myCatalog := Catalog{
		DBUrl:           dbURL,
		DeadlockRetries: viper.GetInt("catalog.deadlock_retries"),
		Pool:            pool,
	}

	if err := conn.QueryRow(ctx, "SELECT name, owner FROM catalog").Scan(&myCatalog.Name, &myCatalog.Owner); err != nil {
		return nil, err
	}

	return &myCatalog, nil
}

// SaveDB creates a new record in the catalog table for this catalog
func (myCatalog *Catalog) SaveDB(ctx context.Context) error {
	conn, err := myCatalog.Pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `INSERT INTO catalog ("name", "owner") VALUES ($1, $2)`, myCatalog.Name, myCatalog.Owner)
	return err
}

// NumSubscriptions returns the total count of active crawl subscriptions
func (myCatalog *Catalog) NumSubscriptions(ctx context.Context) (int, error) {
	conn, err := myCatalog.Pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	count := 0
	err = conn.QueryRow(ctx, "SELECT count(*) FROM crawl_subscriptions WHERE active='t'").Scan(&count)
	return count, err
}

// LastUpdated returns the time any crawl subscription last ran
func (myCatalog *Catalog) LastUpdated(ctx context.Context) (time.Time, error) {
	conn, err := myCatalog.Pool.Acquire(ctx)
	if err != nil {
		return time.Time{}, err
	}
	defer conn.Release()

	var lastUpdated time.Time
	err = conn.QueryRow(ctx, "SELECT coalesce(max(last_run), '0001-01-01'::timestamp) FROM crawl_subscriptions WHERE active='t'").Scan(&lastUpdated)
	if err != nil {
		return time.Time{}, err
	}

	return lastUpdated, nil
}

// TotalBuildings returns the number of buildings in the catalog
func (myCatalog *Catalog) TotalBuildings(ctx context.Context) (int, error) {
	conn, err := myCatalog.Pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	count := 0
	err = conn.QueryRow(ctx, "SELECT count(*) FROM buildings").Scan(&count)
	return count, err
}

// TotalProperties returns the number of master properties in the catalog
func (myCatalog *Catalog) TotalProperties(ctx context.Context) (int, error) {
	conn, err := myCatalog.Pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	count := 0
	err = conn.QueryRow(ctx, "SELECT count(*) FROM master_properties").Scan(&count)
	return count, err
}

// TotalListings returns the number of listings in the catalog; when
// activeOnly is set only listings still visible on a portal are counted.
func (myCatalog *Catalog) TotalListings(ctx context.Context, activeOnly bool) (int, error) {
	conn, err := myCatalog.Pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	sql := "SELECT count(*) FROM listings"
	if activeOnly {
		sql += " WHERE is_active='t'"
	}

	count := 0
	err = conn.QueryRow(ctx, sql).Scan(&count)
	return count, err
}
