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
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var (
	ErrInvalidLayout    = errors.New("layout outside grammar")
	ErrInvalidDirection = errors.New("direction not on the 8-point compass")
)

var (
	// layoutGrammar is the full normalised layout language: a positive room
	// count followed by one room-composition token.
	layoutGrammar = regexp.MustCompile(`^([1-9][0-9]*)(R|K|DK|LDK|SLDK|SDK|SK)$`)

	// serviceRoomSuffix rewrites the portal form 3LDK+S to the canonical
	// S-prefixed 3SLDK.
	serviceRoomSuffix = regexp.MustCompile(`^([1-9][0-9]*)(LDK|DK|K)\+S$`)

	layoutNoise = regexp.MustCompile(`[\s　]+`)
)

// NormalizeLayout canonicalises a floor-plan string: ワンルーム becomes 1R,
// full-width characters are narrowed, 3LDK+S(納戸) becomes 3SLDK. Anything
// outside the grammar, including the trailing-digit corruption some portals
// emit (3LDK2), returns ErrInvalidLayout.
func NormalizeLayout(raw string) (string, error) {
	s := width.Fold.String(raw)
	s = norm.NFKC.String(s)
	s = parenthetical.ReplaceAllString(s, "")
	s = layoutNoise.ReplaceAllString(s, "")
	s = strings.ToUpper(s)

	if s == "" {
		return "", ErrInvalidLayout
	}

	if s == "ワンルーム" || s == "1ルーム" || s == "STUDIO" {
		return "1R", nil
	}

	s = serviceRoomSuffix.ReplaceAllString(s, "${1}S${2}")

	if !layoutGrammar.MatchString(s) {
		return "", ErrInvalidLayout
	}

	return s, nil
}

// compass holds the canonical 8-point forms in clockwise order; the index
// doubles as the bearing for the equivalence table.
var compass = []string{"北", "北東", "東", "南東", "南", "南西", "西", "北西"}

var directionAliases = map[string]string{
	"N": "北", "NE": "北東", "E": "東", "SE": "南東",
	"S": "南", "SW": "南西", "W": "西", "NW": "北西",
	"NORTH": "北", "NORTHEAST": "北東", "EAST": "東", "SOUTHEAST": "南東",
	"SOUTH": "南", "SOUTHWEST": "南西", "WEST": "西", "NORTHWEST": "北西",
}

// NormalizeDirection canonicalises a facing direction to the 8-point
// compass: 南向き and southeast-style English forms both normalise to the
// kanji form.
func NormalizeDirection(raw string) (string, error) {
	s := width.Fold.String(raw)
	s = norm.NFKC.String(s)
	s = layoutNoise.ReplaceAllString(s, "")
	s = strings.ToUpper(s)
	s = strings.TrimSuffix(s, "向き")
	s = strings.TrimSuffix(s, "向")

	if s == "" {
		return "", ErrInvalidDirection
	}

	if mapped, ok := directionAliases[s]; ok {
		return mapped, nil
	}

	for _, point := range compass {
		if s == point {
			return point, nil
		}
	}

	return "", ErrInvalidDirection
}

// DirectionsCompatible reports whether two canonical directions could
// describe the same unit across portals: equal, either side unknown, or
// adjacent points on the compass (portals disagree by 45° routinely).
func DirectionsCompatible(a, b string) bool {
	if a == "" || b == "" || a == b {
		return true
	}

	ai, bi := -1, -1

	for idx, point := range compass {
		if a == point {
			ai = idx
		}

		if b == point {
			bi = idx
		}
	}

	if ai < 0 || bi < 0 {
		return false
	}

	diff := ai - bi
	if diff < 0 {
		diff = -diff
	}

	return diff == 1 || diff == len(compass)-1
}
