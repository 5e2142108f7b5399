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
	"errors"
	"math/rand"
	"slices"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

const defaultDeadlockRetries = 3

// WithTx runs fn inside a single transaction, committing when fn returns nil
// and rolling back otherwise.
func (myCatalog *Catalog) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	conn, err := myCatalog.Pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if err := tx.Rollback(ctx); err != nil {
			if !errors.Is(err, pgx.ErrTxClosed) {
				log.Error().Err(err).Msg("error rollingback tx")
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// WithRetry runs fn as WithTx does, retrying the whole transaction when
// Postgres reports a deadlock or serialization failure. Retries back off
// exponentially (100ms doubling per attempt) with uniform jitter; after the
// retry budget the last error is returned. Cancellation between attempts
// stops the loop.
func (myCatalog *Catalog) WithRetry(ctx context.Context, fn func(tx pgx.Tx) error) error {
	retries := myCatalog.DeadlockRetries
	if retries <= 0 {
		retries = defaultDeadlockRetries
	}

	var err error

	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			delay := RetryDelay(attempt)
			log.Warn().Err(err).Int("Attempt", attempt).Dur("Backoff", delay).
				Msg("retrying transaction after deadlock")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err = myCatalog.WithTx(ctx, fn)
		if err == nil || !Retryable(err) {
			return err
		}
	}

	return err
}

// Retryable reports whether an error is a transient lock-ordering conflict
// worth re-running the transaction for.
func Retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	switch pgErr.Code {
	case pgerrcode.DeadlockDetected, pgerrcode.SerializationFailure:
		return true
	}

	return false
}

// RetryDelay computes the backoff before retry attempt n (first retry is
// attempt 1): 100ms doubled per attempt, with uniform jitter of up to half
// the base delay in either direction.
func RetryDelay(attempt int) time.Duration {
	base := 100 * time.Millisecond << (attempt - 1)
	jitter := time.Duration(rand.Int63n(int64(base))) - base/2 //nolint:gosec

	return base + jitter
}

// SortIDs orders an id set ascending in place and drops duplicates. Every
// lock acquisition walks ids in this order; two operators locking
// overlapping sets always collide in the same sequence.
func SortIDs(ids []int64) []int64 {
	slices.Sort(ids)

	return slices.Compact(ids)
}

// LockBuildings takes FOR UPDATE row locks on the given buildings in
// ascending id order.
func LockBuildings(ctx context.Context, tx pgx.Tx, ids ...int64) error {
	ids = SortIDs(ids)

	_, err := tx.Exec(ctx,
		`SELECT id FROM buildings WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		log.Error().Err(err).Ints64("BuildingIDs", ids).Msg("error locking buildings")
	}

	return err
}

// LockProperties takes FOR UPDATE row locks on the given master properties
// in ascending id order.
func LockProperties(ctx context.Context, tx pgx.Tx, ids ...int64) error {
	ids = SortIDs(ids)

	_, err := tx.Exec(ctx,
		`SELECT id FROM master_properties WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		log.Error().Err(err).Ints64("MasterPropertyIDs", ids).Msg("error locking master properties")
	}

	return err
}
