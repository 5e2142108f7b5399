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
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadlock", &pgconn.PgError{Code: pgerrcode.DeadlockDetected}, true},
		{"serialization", &pgconn.PgError{Code: pgerrcode.SerializationFailure}, true},
		{"wrapped deadlock", fmt.Errorf("resolve listing: %w", &pgconn.PgError{Code: pgerrcode.DeadlockDetected}), true},
		{"unique violation", &pgconn.PgError{Code: pgerrcode.UniqueViolation}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryDelay(t *testing.T) {
	// jitter is random so check bounds: base/2 <= delay < base*3/2
	tests := []struct {
		attempt int
		base    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt %d", tt.attempt), func(t *testing.T) {
			for i := 0; i < 32; i++ {
				delay := RetryDelay(tt.attempt)
				if delay < tt.base/2 || delay >= tt.base*3/2 {
					t.Errorf("RetryDelay(%d) = %v, want in [%v, %v)", tt.attempt, delay, tt.base/2, tt.base*3/2)
				}
			}
		})
	}
}

func TestSortIDs(t *testing.T) {
	tests := []struct {
		name string
		ids  []int64
		want []int64
	}{
		{"already sorted", []int64{1, 2, 3}, []int64{1, 2, 3}},
		{"reversed", []int64{9, 4, 1}, []int64{1, 4, 9}},
		{"duplicates removed", []int64{7, 3, 7, 3, 1}, []int64{1, 3, 7}},
		{"single", []int64{42}, []int64{42}},
		{"empty", []int64{}, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SortIDs(tt.ids)
			if len(got) != len(tt.want) {
				t.Fatalf("SortIDs(%v) = %v, want %v", tt.ids, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("SortIDs(%v)[%d] = %d, want %d", tt.ids, i, got[i], tt.want[i])
				}
			}
		})
	}
}
