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
package normalize

import (
	"errors"
	"testing"
)

func TestNormalizeLayout(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{"plain ldk", "3LDK", "3LDK", false},
		{"fullwidth", "２ＬＤＫ", "2LDK", false},
		{"lowercase", "2ldk", "2LDK", false},
		{"one room word", "ワンルーム", "1R", false},
		{"studio english", "STUDIO", "1R", false},
		{"service room prefix", "2SLDK", "2SLDK", false},
		{"service room plus form", "3LDK+S(納戸)", "3SLDK", false},
		{"sdk", "2SDK", "2SDK", false},
		{"sk", "1SK", "1SK", false},
		{"double digit rooms", "10LDK", "10LDK", false},
		{"trailing digit corruption", "3LDK2", "", true},
		{"leading zero", "03LDK", "", true},
		{"bare token", "LDK", "", true},
		{"unknown token", "3LDX", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeLayout(tt.input)

			if tt.wantErr {
				if !errors.Is(err, ErrInvalidLayout) {
					t.Errorf("NormalizeLayout(%q) err = %v, want ErrInvalidLayout", tt.input, err)
				}

				return
			}

			if err != nil {
				t.Fatalf("NormalizeLayout(%q) unexpected error: %v", tt.input, err)
			}

			if got != tt.expected {
				t.Errorf("NormalizeLayout(%q) = %q, want %q", tt.input, got, tt.expected)
			}

			again, err := NormalizeLayout(got)
			if err != nil || again != got {
				t.Errorf("NormalizeLayout not idempotent: %q -> %q (%v)", got, again, err)
			}
		})
	}
}

func TestNormalizeDirection(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{"kanji", "南", "南", false},
		{"muki suffix", "南向き", "南", false},
		{"short muki suffix", "南東向", "南東", false},
		{"english abbrev", "SE", "南東", false},
		{"english word", "southwest", "南西", false},
		{"lowercase abbrev", "nw", "北西", false},
		{"sixteen point rejected", "南南西", "", true},
		{"garbage", "角部屋", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDirection(tt.input)

			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDirection) {
					t.Errorf("NormalizeDirection(%q) err = %v, want ErrInvalidDirection", tt.input, err)
				}

				return
			}

			if err != nil {
				t.Fatalf("NormalizeDirection(%q) unexpected error: %v", tt.input, err)
			}

			if got != tt.expected {
				t.Errorf("NormalizeDirection(%q) = %q, want %q", tt.input, got, tt.expected)
			}

			again, err := NormalizeDirection(got)
			if err != nil || again != got {
				t.Errorf("NormalizeDirection not idempotent: %q -> %q (%v)", got, again, err)
			}
		})
	}
}

func TestDirectionsCompatible(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected bool
	}{
		{"equal", "南", "南", true},
		{"unknown side", "", "南", true},
		{"adjacent points", "南", "南東", true},
		{"adjacent across wrap", "北", "北西", true},
		{"perpendicular", "南", "東", false},
		{"opposite", "南", "北", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DirectionsCompatible(tt.a, tt.b); got != tt.expected {
				t.Errorf("DirectionsCompatible(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}
