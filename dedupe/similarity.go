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
package dedupe

import (
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/mansion-watch/mwdata/data"
	"github.com/mansion-watch/mwdata/normalize"
	"github.com/xrash/smetrics"
)

// composite weights; attribute weight is redistributed when neither side
// carries comparable attributes
const (
	weightName       = 0.5
	weightAddress    = 0.3
	weightAttributes = 0.2
)

// score floors applied by the override rules
const (
	// identical address and attributes with a completely different name:
	// almost always the same building listed under another script
	scriptVarianceFloor = 0.92

	// no usable address but near-identical name and attributes
	missingAddressFloor = 0.85
)

// ratio is the SequenceMatcher-style similarity derived from edit distance
// over runes.
func ratio(a, b string) float64 {
	if a == b {
		return 1
	}

	if a == "" || b == "" {
		return 0
	}

	longest := len([]rune(a))
	if lb := len([]rune(b)); lb > longest {
		longest = lb
	}

	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// tokenJaccard compares whitespace-separated tokens as sets. Compact
// Japanese spellings collapse to a single token; the edit-distance scores
// carry those.
func tokenJaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0

	for token := range setA {
		if setB[token] {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection

	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	tokens := strings.Fields(s)
	set := make(map[string]bool, len(tokens))

	for _, token := range tokens {
		set[token] = true
	}

	return set
}

// NameSimilarity scores two building names as the best match over their
// variant expansions: edit-distance ratio and Jaro-Winkler over canonical
// variants, token Jaccard over the spaced display forms.
func NameSimilarity(a, b string) float64 {
	variantsA := NameVariants(a)
	variantsB := NameVariants(b)

	if len(variantsA) == 0 || len(variantsB) == 0 {
		return 0
	}

	best := 0.0

	for _, x := range variantsA {
		for _, y := range variantsB {
			if s := ratio(x, y); s > best {
				best = s
			}

			if s := smetrics.JaroWinkler(x, y, 0.7, 4); s > best {
				best = s
			}
		}
	}

	if s := tokenJaccard(normalize.NormalizeName(a), normalize.NormalizeName(b)); s > best {
		best = s
	}

	if best > 1 {
		best = 1
	}

	return best
}

// AddressSimilarity grades two normalised addresses on their component
// decomposition. The ladder runs outside-in: a conflict at a coarse level
// caps the score regardless of finer components, while a missing component
// on one side skips its level rather than punishing incomplete portal data.
func AddressSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}

	partsA := normalize.SplitAddress(a)
	partsB := normalize.SplitAddress(b)

	if partsA.Prefecture != "" && partsB.Prefecture != "" && partsA.Prefecture != partsB.Prefecture {
		return 0
	}

	if partsA.City != "" && partsB.City != "" && partsA.City != partsB.City {
		return 0.05
	}

	if partsA.Town == "" || partsB.Town == "" {
		return 0.3
	}

	if partsA.Town != partsB.Town {
		return 0.15
	}

	return blockScore(partsA.Block, partsB.Block)
}

// blockScore grades the N-M-K vectors of two same-town addresses
// element-wise.
func blockScore(a, b []int) float64 {
	switch {
	case len(a) == 0 && len(b) == 0:
		return 0.7
	case len(a) == 0 || len(b) == 0:
		return 0.55
	}

	shorter := len(a)
	if len(b) < shorter {
		shorter = len(b)
	}

	matched := 0

	for i := 0; i < shorter; i++ {
		if a[i] != b[i] {
			break
		}

		matched++
	}

	switch {
	case matched == 0:
		// same town, different chome
		return 0.3
	case matched == len(a) && matched == len(b):
		return 1
	case matched == shorter:
		// prefix-chain partner: one portal lists the block, one stops at
		// the chome or banchi
		if matched >= 3 {
			return 0.95
		}

		return 0.8 + 0.05*float64(matched)
	case matched == 1:
		// same chome, different banchi
		return 0.6
	default:
		// same banchi, different go
		return 0.75
	}
}

// AttributeSimilarity grades the structural attributes two buildings share.
// ok is false when no attribute is known on both sides; unknown fields
// abstain rather than dilute.
func AttributeSimilarity(a, b *data.Building) (score float64, ok bool) {
	total := 0.0
	votes := 0

	if a.BuiltYear != nil && b.BuiltYear != nil {
		total += yearScore(a, b)
		votes++
	}

	if a.TotalFloors != nil && b.TotalFloors != nil {
		total += floorsScore(*a.TotalFloors, *b.TotalFloors)
		votes++
	}

	if a.TotalUnits != nil && b.TotalUnits != nil {
		if *a.TotalUnits == *b.TotalUnits {
			total++
		}

		votes++
	}

	if votes == 0 {
		return 0, false
	}

	return total / float64(votes), true
}

func yearScore(a, b *data.Building) float64 {
	diff := *a.BuiltYear - *b.BuiltYear
	if diff < 0 {
		diff = -diff
	}

	switch diff {
	case 0:
		if a.BuiltMonth != nil && b.BuiltMonth != nil && *a.BuiltMonth != *b.BuiltMonth {
			return 0.3
		}

		return 1
	case 1:
		return 0.2
	case 2:
		return 0.1
	default:
		return 0
	}
}

func floorsScore(a, b int) float64 {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}

	switch diff {
	case 0:
		return 1
	case 1:
		return 0.5
	case 2:
		return 0.3
	default:
		return 0
	}
}

// Score is the composite building similarity in [0, 1] with the two
// override rules applied.
func Score(a, b *data.Building) float64 {
	name := NameSimilarity(displayName(a), displayName(b))
	addr := AddressSimilarity(a.NormalizedAddress, b.NormalizedAddress)
	attrs, attrsOK := AttributeSimilarity(a, b)

	var score float64
	if attrsOK {
		score = weightName*name + weightAddress*addr + weightAttributes*attrs
	} else {
		score = (weightName*name + weightAddress*addr) / (weightName + weightAddress)
	}

	if attrsOK && addr >= 0.95 && attrs >= 0.9 && score < scriptVarianceFloor {
		score = scriptVarianceFloor
	}

	if attrsOK && addr == 0 && name >= 0.9 && attrs >= 0.8 && score < missingAddressFloor {
		score = missingAddressFloor
	}

	return score
}

func displayName(building *data.Building) string {
	if building.NormalizedName != "" {
		return building.NormalizedName
	}

	return building.CanonicalName
}
