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

	"github.com/mansion-watch/mwdata/normalize"
)

// transliterations maps the katakana vocabulary of condominium branding to
// the English spellings portals use interchangeably. Applied in both
// directions when expanding name variants.
var transliterations = [][2]string{
	{"パークハウス", "PARKHOUSE"},
	{"パークコート", "PARKCOURT"},
	{"パーク", "PARK"},
	{"コート", "COURT"},
	{"タワーズ", "TOWERS"},
	{"タワー", "TOWER"},
	{"シティ", "CITY"},
	{"ハウス", "HOUSE"},
	{"ガーデンズ", "GARDENS"},
	{"ガーデン", "GARDEN"},
	{"レジデンス", "RESIDENCE"},
	{"レジデンシャル", "RESIDENTIAL"},
	{"ヒルズ", "HILLS"},
	{"ヒル", "HILL"},
	{"テラス", "TERRACE"},
	{"プレイス", "PLACE"},
	{"スクエア", "SQUARE"},
	{"フロント", "FRONT"},
	{"グランド", "GRAND"},
	{"グラン", "GRAN"},
	{"ロイヤル", "ROYAL"},
	{"パレス", "PALACE"},
	{"プラザ", "PLAZA"},
	{"ステージ", "STAGE"},
	{"ゲート", "GATE"},
	{"ビュー", "VIEW"},
	{"メゾン", "MAISON"},
	{"ヴィラ", "VILLA"},
	{"アーバン", "URBAN"},
	{"サウス", "SOUTH"},
	{"ノース", "NORTH"},
	{"イースト", "EAST"},
	{"ウエスト", "WEST"},
	{"セントラル", "CENTRAL"},
	{"アネックス", "ANNEX"},
}

// abbreviations expands the shorthand some portals print for common
// building-type words.
var abbreviations = [][2]string{
	{"マンション", "MS"},
	{"グランドメゾン", "GM"},
	{"コーポラス", "コーポ"},
	{"ハイツ", "HTS"},
}

// towerSuffixes lists spellings of a trailing tower marker that all mean the
// same structure. Lettered or directional tower wings (A棟, EAST) are NOT
// bridged; different wings are different buildings by policy.
var towerSuffixes = []string{"ザタワー", "THETOWER", "タワーズ", "TOWERS", "タワー", "TOWER"}

// NameVariants expands a building name into the canonical spellings it is
// plausibly listed under. The result always contains the canonical form of
// the input itself; comparison takes the best score over both sides'
// variants.
func NameVariants(name string) []string {
	base := normalize.CanonicalName(name)
	if base == "" {
		return nil
	}

	seen := map[string]bool{base: true}
	variants := []string{base}

	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			variants = append(variants, v)
		}
	}

	// script bridging, both directions
	kanaToEnglish := base
	englishToKana := base

	for _, pair := range transliterations {
		kanaToEnglish = strings.ReplaceAll(kanaToEnglish, pair[0], pair[1])
		englishToKana = strings.ReplaceAll(englishToKana, pair[1], pair[0])
	}

	add(kanaToEnglish)
	add(englishToKana)

	for _, pair := range abbreviations {
		for _, variant := range []string{base, kanaToEnglish, englishToKana} {
			add(strings.ReplaceAll(variant, pair[0], pair[1]))
			add(strings.ReplaceAll(variant, pair[1], pair[0]))
		}
	}

	// ザ・/THE bridging: the article floats in and out of portal spellings
	for _, variant := range []string{base, kanaToEnglish, englishToKana} {
		add(strings.TrimPrefix(strings.TrimPrefix(variant, "ザ"), "THE"))
	}

	// tower-suffix variants: same stem once the marker spelling is unified
	for _, variant := range []string{base, kanaToEnglish, englishToKana} {
		for _, suffix := range towerSuffixes {
			if stem, found := strings.CutSuffix(variant, suffix); found && stem != "" {
				add(stem + "タワー")
				add(stem + "TOWER")

				break
			}
		}
	}

	return variants
}
