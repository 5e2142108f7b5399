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
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// recordingQuerier captures the last QueryRow call so insert arguments can be
// inspected without a database.
type recordingQuerier struct {
	sql  string
	args []any
}

func (q *recordingQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (q *recordingQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("data: unexpected Query")
}

func (q *recordingQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	q.sql = sql
	q.args = args

	return stubRow{}
}

type stubRow struct{}

func (stubRow) Scan(dest ...any) error {
	for _, d := range dest {
		switch v := d.(type) {
		case *int64:
			*v = 1
		case *time.Time:
			*v = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		}
	}

	return nil
}

func TestBuildingExclusionSaveOrdersPair(t *testing.T) {
	querier := &recordingQuerier{}

	excl := &BuildingMergeExclusion{
		BuildingLowID:  9,
		BuildingHighID: 4,
		Reason:         "merge reverted",
		Actor:          "ops",
	}

	if err := excl.Save(context.Background(), querier); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	if excl.BuildingLowID != 4 || excl.BuildingHighID != 9 {
		t.Errorf("stored pair = (%d, %d), want low id first (4, 9)",
			excl.BuildingLowID, excl.BuildingHighID)
	}

	if len(querier.args) < 2 || querier.args[0] != int64(4) || querier.args[1] != int64(9) {
		t.Errorf("insert args = %v, want ids ordered (4, 9)", querier.args)
	}

	if excl.ID != 1 || excl.CreatedAt.IsZero() {
		t.Errorf("returned columns not scanned: id = %d, created_at = %v",
			excl.ID, excl.CreatedAt)
	}

	if !strings.Contains(querier.sql, "building_merge_exclusions") {
		t.Errorf("insert targeted %q, want building_merge_exclusions", querier.sql)
	}
}

func TestBuildingExclusionSaveKeepsOrderedPair(t *testing.T) {
	querier := &recordingQuerier{}

	excl := &BuildingMergeExclusion{BuildingLowID: 4, BuildingHighID: 9}

	if err := excl.Save(context.Background(), querier); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	if excl.BuildingLowID != 4 || excl.BuildingHighID != 9 {
		t.Errorf("stored pair = (%d, %d), want (4, 9) unchanged",
			excl.BuildingLowID, excl.BuildingHighID)
	}
}

func TestPropertyExclusionSaveOrdersPair(t *testing.T) {
	querier := &recordingQuerier{}

	excl := &PropertyMergeExclusion{
		PropertyLowID:  120,
		PropertyHighID: 55,
		Reason:         "different room numbers",
		Actor:          "ops",
	}

	if err := excl.Save(context.Background(), querier); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	if excl.PropertyLowID != 55 || excl.PropertyHighID != 120 {
		t.Errorf("stored pair = (%d, %d), want low id first (55, 120)",
			excl.PropertyLowID, excl.PropertyHighID)
	}

	if len(querier.args) < 2 || querier.args[0] != int64(55) || querier.args[1] != int64(120) {
		t.Errorf("insert args = %v, want ids ordered (55, 120)", querier.args)
	}
}
