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
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Address detail levels returned by AddressDetail.
const (
	DetailNone       = -1
	DetailPrefecture = 0
	DetailCity       = 1
	DetailTown       = 2
	DetailChome      = 3
	DetailBanchi     = 4
)

var (
	parenthetical = regexp.MustCompile(`[(（][^)）]*[)）]`)

	// mapNoise truncates everything from a UI artefact onward.
	mapNoise = regexp.MustCompile(`地図.*$`)

	trailingVague = regexp.MustCompile(`(周辺|付近|近く|ほか|他)$`)

	kanjiNumRun = regexp.MustCompile(`[〇零一二三四五六七八九十百]+`)

	hyphenVariant = regexp.MustCompile(`([0-9])[ー‐‑–—―−〜~]([0-9])`)

	chomeBanchiGo = regexp.MustCompile(`([0-9]+)丁目([0-9]+)番地?([0-9]+)号?`)
	chomeBanchi   = regexp.MustCompile(`([0-9]+)丁目([0-9]+)番地?`)
	chomeDash     = regexp.MustCompile(`([0-9]+)丁目([0-9]+)`)
	chomeOnly     = regexp.MustCompile(`([0-9]+)丁目`)
	banchiGo      = regexp.MustCompile(`([0-9]+)番地?([0-9]+)号`)
	banchiOnly    = regexp.MustCompile(`([0-9]+)番地`)
	goOnly        = regexp.MustCompile(`([0-9]+)号室?$`)

	// blockSuffix keeps text through the first block-number chain and drops
	// whatever trails it (building names, landmarks).
	blockSuffix = regexp.MustCompile(`^(.+?[0-9]+(?:-[0-9]+){0,2})`)

	prefecturePattern = regexp.MustCompile(`^(東京都|北海道|京都府|大阪府|\p{Han}{2,3}県)`)
	cityPattern       = regexp.MustCompile(`^([\p{Han}\p{Hiragana}\p{Katakana}ー]{1,10}?(?:市|区|町|村|郡))`)
	wardPattern       = regexp.MustCompile(`^([\p{Han}\p{Hiragana}\p{Katakana}ー]{1,8}?区)`)

	kanjiDigits = map[rune]int{
		'〇': 0, '零': 0, '一': 1, '二': 2, '三': 3, '四': 4,
		'五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
	}
)

// NormalizeAddress canonicalises a portal address to block form: numerals
// to half-width Arabic, 丁目/番地/号 chains rewritten as N-M-K, UI noise and
// anything after the block chain stripped, whitespace removed.
func NormalizeAddress(raw string) string {
	s := width.Fold.String(raw)
	s = norm.NFKC.String(s)
	s = parenthetical.ReplaceAllString(s, "")
	s = mapNoise.ReplaceAllString(s, "")
	s = whitespaceRun.ReplaceAllString(s, "")
	s = convertKanjiBlockNumbers(s)

	for range [4]struct{}{} {
		next := hyphenVariant.ReplaceAllString(s, "$1-$2")
		if next == s {
			break
		}

		s = next
	}

	s = chomeBanchiGo.ReplaceAllString(s, "$1-$2-$3")
	s = chomeBanchi.ReplaceAllString(s, "$1-$2")
	s = chomeDash.ReplaceAllString(s, "$1-$2")
	s = chomeOnly.ReplaceAllString(s, "$1")
	s = banchiGo.ReplaceAllString(s, "$1-$2")
	s = banchiOnly.ReplaceAllString(s, "$1")
	s = goOnly.ReplaceAllString(s, "$1")
	s = trailingVague.ReplaceAllString(s, "")

	if match := blockSuffix.FindString(s); match != "" {
		s = match
	}

	return strings.TrimSpace(s)
}

// convertKanjiBlockNumbers replaces kanji numeral runs with Arabic digits
// when they precede an address marker. 一番町 and 八丁堀 style town names
// survive because 番町/番街 and bare 丁 are not markers.
func convertKanjiBlockNumbers(s string) string {
	locations := kanjiNumRun.FindAllStringIndex(s, -1)
	if locations == nil {
		return s
	}

	var builder strings.Builder

	builder.Grow(len(s))

	prev := 0

	for _, loc := range locations {
		builder.WriteString(s[prev:loc[0]])

		run := s[loc[0]:loc[1]]
		rest := s[loc[1]:]

		value, ok := kanjiRunValue(run)
		if ok && hasBlockMarker(rest) {
			builder.WriteString(strconv.Itoa(value))
		} else {
			builder.WriteString(run)
		}

		prev = loc[1]
	}

	builder.WriteString(s[prev:])

	return builder.String()
}

func hasBlockMarker(rest string) bool {
	switch {
	case strings.HasPrefix(rest, "丁目"):
		return true
	case strings.HasPrefix(rest, "番町"), strings.HasPrefix(rest, "番街"):
		return false
	case strings.HasPrefix(rest, "番"):
		return true
	case strings.HasPrefix(rest, "号室"), strings.HasPrefix(rest, "号館"),
		strings.HasPrefix(rest, "号棟"), strings.HasPrefix(rest, "号線"):
		return false
	case strings.HasPrefix(rest, "号"):
		return true
	}

	return false
}

// kanjiRunValue evaluates a kanji numeral run, handling both positional
// (一二三 → 123) and magnitude (二十三 → 23, 百三 → 103) forms.
func kanjiRunValue(run string) (int, bool) {
	total, current := 0, 0
	sawDigit := false

	for _, r := range run {
		switch r {
		case '十':
			if current == 0 {
				current = 1
			}

			total += current * 10
			current = 0
			sawDigit = true
		case '百':
			if current == 0 {
				current = 1
			}

			total += current * 100
			current = 0
			sawDigit = true
		default:
			digit, ok := kanjiDigits[r]
			if !ok {
				return 0, false
			}

			current = current*10 + digit
			sawDigit = true
		}
	}

	if !sawDigit {
		return 0, false
	}

	return total + current, true
}

// AddressParts is the component decomposition used for detail levels,
// duplicate-finder scoring and district partitioning.
type AddressParts struct {
	Prefecture string
	City       string
	Town       string
	Block      []int
}

// PartitionKey is the town-level slice of the address used to partition the
// duplicate search space.
func (parts AddressParts) PartitionKey() string {
	return parts.Prefecture + parts.City + parts.Town
}

// SplitAddress decomposes a normalised address. City collects every
// municipal component (市 then 区 for designated cities).
func SplitAddress(addr string) AddressParts {
	parts := AddressParts{}
	rest := addr

	if match := prefecturePattern.FindString(rest); match != "" {
		parts.Prefecture = match
		rest = rest[len(match):]
	}

	if match := cityPattern.FindString(rest); match != "" {
		parts.City = match
		rest = rest[len(match):]

		// designated cities carry a ward after the city proper
		if strings.HasSuffix(match, "市") {
			if ward := wardPattern.FindString(rest); ward != "" {
				parts.City += ward
				rest = rest[len(ward):]
			}
		}
	}

	if idx := strings.IndexFunc(rest, unicode.IsDigit); idx >= 0 {
		parts.Town = rest[:idx]

		for _, segment := range strings.Split(rest[idx:], "-") {
			value, err := strconv.Atoi(segment)
			if err != nil {
				break
			}

			parts.Block = append(parts.Block, value)
		}
	} else {
		parts.Town = rest
	}

	return parts
}

// AddressDetail reports how specific a normalised address is:
// 0=prefecture, 1=ward/city, 2=town, 3=chome, 4=banchi and beyond.
// DetailNone for an empty or unrecognisable address.
func AddressDetail(addr string) int {
	if addr == "" {
		return DetailNone
	}

	parts := SplitAddress(addr)

	switch {
	case len(parts.Block) >= 2:
		return DetailBanchi
	case len(parts.Block) == 1:
		return DetailChome
	case parts.Town != "":
		return DetailTown
	case parts.City != "":
		return DetailCity
	case parts.Prefecture != "":
		return DetailPrefecture
	}

	return DetailNone
}

// SameBlockChain reports whether two normalised addresses are equal or
// prefix-chain partners (either side a prefix of the other with the split
// falling on a component boundary). Handles portals that complete an
// address over time.
func SameBlockChain(a, b string) bool {
	if a == "" || b == "" {
		return false
	}

	if a == b {
		return true
	}

	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}

	if !strings.HasPrefix(longer, shorter) {
		return false
	}

	next, _ := utf8.DecodeRuneInString(longer[len(shorter):])
	if next == '-' {
		return true
	}

	last, _ := utf8.DecodeLastRuneInString(shorter)
	if unicode.IsDigit(last) && unicode.IsDigit(next) {
		return false
	}

	return true
}
