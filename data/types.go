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
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx so entity
// methods work the same inside and outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	ErrNotFound = errors.New("entity not found")

	// ErrMergedAway is returned when an id referenced by an operation has
	// been consumed by a merge; AbsorbedBy carries the surviving id when
	// merge history reveals it.
	ErrMergedAway = errors.New("entity merged away")
)

// MergedAwayError decorates ErrMergedAway with the ids involved so callers
// can report which entity absorbed the missing one.
type MergedAwayError struct {
	Kind       string
	MissingID  int64
	AbsorbedBy int64
}

func (err *MergedAwayError) Error() string {
	if err.AbsorbedBy > 0 {
		return fmt.Sprintf("mwdata: %s %d not found: merged into %s %d",
			err.Kind, err.MissingID, err.Kind, err.AbsorbedBy)
	}

	return fmt.Sprintf("mwdata: %s %d not found", err.Kind, err.MissingID)
}

func (err *MergedAwayError) Unwrap() error {
	return ErrMergedAway
}

type RunStatus string

const (
	RunSuccess RunStatus = "SUCCESS"
	RunFailed  RunStatus = "FAILED"
)

// RunSummary reports the outcome of one crawl subscription execution.
type RunSummary struct {
	StartTime        time.Time
	EndTime          time.Time
	NumListings      int
	Status           RunStatus
	SubscriptionID   uuid.UUID
	SubscriptionName string
}

// ResolveResult is returned for every RawListing fed through the resolver.
type ResolveResult struct {
	BuildingID       int64
	MasterPropertyID int64
	ListingID        int64
	CreatedBuilding  bool
	CreatedProperty  bool
	CreatedListing   bool
	Reattached       bool
	PriceChanged     bool
}

// FieldDrops counts validation failures per raw field name for one or more
// listings; invalid fields are dropped while the listing proceeds.
type FieldDrops map[string]int

func (drops FieldDrops) Add(field string) {
	drops[field]++
}

func (drops FieldDrops) Merge(other FieldDrops) {
	for field, n := range other {
		drops[field] += n
	}
}

// ProcessStats accumulates resolver outcomes over one ingest run.
type ProcessStats struct {
	ListingsSeen      int
	BuildingsCreated  int
	PropertiesCreated int
	ListingsCreated   int
	Reattached        int
	PriceChanges      int
	Errors            int
	FieldDrops        FieldDrops
}

func NewProcessStats() *ProcessStats {
	return &ProcessStats{FieldDrops: make(FieldDrops)}
}

func (stats *ProcessStats) Observe(result ResolveResult, drops FieldDrops) {
	stats.ListingsSeen++

	if result.CreatedBuilding {
		stats.BuildingsCreated++
	}

	if result.CreatedProperty {
		stats.PropertiesCreated++
	}

	if result.CreatedListing {
		stats.ListingsCreated++
	}

	if result.Reattached {
		stats.Reattached++
	}

	if result.PriceChanged {
		stats.PriceChanges++
	}

	stats.FieldDrops.Merge(drops)
}

// Merge folds another worker's counters into this one.
func (stats *ProcessStats) Merge(other *ProcessStats) {
	stats.ListingsSeen += other.ListingsSeen
	stats.BuildingsCreated += other.BuildingsCreated
	stats.PropertiesCreated += other.PropertiesCreated
	stats.ListingsCreated += other.ListingsCreated
	stats.Reattached += other.Reattached
	stats.PriceChanges += other.PriceChanges
	stats.Errors += other.Errors
	stats.FieldDrops.Merge(other.FieldDrops)
}
