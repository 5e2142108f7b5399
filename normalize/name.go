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

// Package normalize canonicalises the Japanese building names, addresses,
// layouts, directions and numeric fields that arrive from portal parsers.
// Every function is idempotent: f(f(x)) == f(x).
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var (
	// nameSymbols are decorative separators collapsed to a single space in
	// the display form. NFKC has already narrowed full-width ASCII variants,
	// so the class lists ASCII forms plus the CJK symbols NFKC leaves alone.
	nameSymbols = regexp.MustCompile("[`'\"*.,:;/\\\\|!?_=+#<>()\\[\\]{}・〜–—−‐‑「」『』【】〈〉《》-]+")

	whitespaceRun = regexp.MustCompile(`[\s　]+`)

	// roomNumberTail matches a trailing 3-4 digit sequence, optionally
	// followed by 号 or 号室. Shorter digit tails stay in the name; tower
	// numbers are usually one digit. The remainder must end on a non-digit
	// so a longer digit run is never split.
	roomNumberTail = regexp.MustCompile(`^(.*[^0-9\s])\s*([0-9]{3,4})(?:号室|号)?$`)

	stationNoiseMarkers = []string{"駅", "徒歩", "分歩", "バス", "停", "線"}
)

// stationNoisePrefix marks placeholder canonical keys generated for
// transit-description names; the suffix keeps distinct noise forms from
// grouping with each other.
const stationNoisePrefix = "##EKI##"

// NormalizeName produces the display form of a building name: canonical
// width (full-width ASCII narrowed, half-width kana widened), NFKC
// compatibility folding (Roman-numeral glyphs to Latin, ㎡ to m2), uppercase
// Latin, decorative symbols collapsed to a single space and whitespace runs
// squeezed.
func NormalizeName(raw string) string {
	s := width.Fold.String(raw)
	s = norm.NFKC.String(s)
	s = strings.ToUpper(s)
	s = nameSymbols.ReplaceAllString(s, " ")
	s = whitespaceRun.ReplaceAllString(s, " ")

	return strings.TrimSpace(s)
}

// CanonicalName produces the grouping/search key: the normalised form with
// all whitespace and remaining punctuation removed and hiragana folded to
// katakana.
func CanonicalName(raw string) string {
	s := NormalizeName(raw)

	var builder strings.Builder

	builder.Grow(len(s))

	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			continue
		case r >= 'ぁ' && r <= 'ゖ': // hiragana block folds onto katakana
			builder.WriteRune(r + 0x60)
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == 'ー':
			builder.WriteRune(r)
		}
	}

	return builder.String()
}

// SplitRoomNumber extracts a trailing plausible room number (3-4 digits,
// optional 号/号室 suffix) from a normalised name. One- or two-digit tails
// are kept in the name since they usually number a tower, not a room.
func SplitRoomNumber(name string) (remainder, roomNumber string) {
	match := roomNumberTail.FindStringSubmatch(name)
	if match == nil {
		return name, ""
	}

	return strings.TrimSpace(match[1]), match[2]
}

// IsStationNoise reports whether a listing name is actually a transit
// description (○○駅徒歩5分). Such names still resolve but never reach the
// alias ledger.
func IsStationNoise(name string) bool {
	for _, marker := range stationNoiseMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}

	return false
}

// StationNoiseKey substitutes a deterministic placeholder canonical key for
// a station-noise name so distinct noise strings never group together.
func StationNoiseKey(name string) string {
	return stationNoisePrefix + CanonicalName(name)
}
