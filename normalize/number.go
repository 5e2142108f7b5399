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

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var (
	okuManPrice = regexp.MustCompile(`([0-9]+)億([0-9,]*)万?円?`)
	manPrice    = regexp.MustCompile(`([0-9,]+)万円?`)
	barePrice   = regexp.MustCompile(`^([0-9,]+)円?$`)

	// NFKC folds ㎡ and ² before matching, so M2 is the only metric form left.
	areaValue = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)\s*(?:M2|平米|平方メートル)`)
	bareArea  = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)?)$`)

	unitFloor     = regexp.MustCompile(`^(?:B|地下)?([0-9]+)階?(?:部分)?`)
	aboveGround   = regexp.MustCompile(`地上([0-9]+)階`)
	belowGround   = regexp.MustCompile(`地下([0-9]+)階`)
	totalBuilt    = regexp.MustCompile(`([0-9]+)階建`)
	totalUnitsPat = regexp.MustCompile(`([0-9]+)戸`)

	// longest names first so 鉄骨鉄筋コンクリート never reads as 鉄骨
	constructionTypes = []string{"鉄骨鉄筋コンクリート", "鉄筋コンクリート", "軽量鉄骨", "鉄骨", "木造", "SRC", "RC"}

	warekiPattern = regexp.MustCompile(`(明治|大正|昭和|平成|令和)(元|[0-9]+)年(?:([0-9]+)月)?`)
	westernYear   = regexp.MustCompile(`([0-9]{4})年(?:([0-9]+)月)?`)

	// wareki era offsets: era year 1 + offset = western year.
	warekiOffsets = map[string]int{
		"明治": 1867,
		"大正": 1911,
		"昭和": 1925,
		"平成": 1988,
		"令和": 2018,
	}
)

func foldNumeric(raw string) string {
	s := width.Fold.String(raw)
	s = norm.NFKC.String(s)

	return strings.TrimSpace(s)
}

// ParsePrice extracts a sale price in units of 10,000 JPY: 1億2000万円
// yields 12000, 8,980万円 yields 8980, and a bare number is taken to be in
// 万円 already. A range takes its lower bound.
func ParsePrice(raw string) (int64, bool) {
	s := foldNumeric(raw)
	if s == "" {
		return 0, false
	}

	if match := okuManPrice.FindStringSubmatch(s); match != nil {
		oku, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil {
			return 0, false
		}

		price := oku * 10000

		if digits := strings.ReplaceAll(match[2], ",", ""); digits != "" {
			man, err := strconv.ParseInt(digits, 10, 64)
			if err != nil {
				return 0, false
			}

			price += man
		}

		return price, true
	}

	if match := manPrice.FindStringSubmatch(s); match != nil {
		man, err := strconv.ParseInt(strings.ReplaceAll(match[1], ",", ""), 10, 64)
		if err != nil {
			return 0, false
		}

		return man, true
	}

	if match := barePrice.FindStringSubmatch(s); match != nil {
		value, err := strconv.ParseInt(strings.ReplaceAll(match[1], ",", ""), 10, 64)
		if err != nil {
			return 0, false
		}

		return value, true
	}

	return 0, false
}

// ParseArea extracts square metres from forms like 75.3㎡, 75.3m2 and
// 75.3平米.
func ParseArea(raw string) (float64, bool) {
	s := strings.ToUpper(foldNumeric(raw))
	s = strings.ReplaceAll(s, ",", "")

	if match := areaValue.FindStringSubmatch(s); match != nil {
		area, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			return 0, false
		}

		return area, true
	}

	if match := bareArea.FindStringSubmatch(s); match != nil {
		area, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			return 0, false
		}

		return area, true
	}

	return 0, false
}

// ParseFloorCounts pulls the unit floor, total floors and basement floors
// out of combined portal forms like 4階/SRC地上12階地下1階建 or 12階建.
// Basement units come back negative (B1 is floor -1).
func ParseFloorCounts(raw string) (floor, totalFloors, basementFloors *int) {
	s := foldNumeric(raw)
	if s == "" {
		return nil, nil, nil
	}

	head, buildingDesc, split := strings.Cut(s, "/")

	parseUnit := split

	if !split {
		// without a separator the string is either a building descriptor
		// (N階建, 地上N階…) or a bare unit floor
		if totalBuilt.MatchString(head) || strings.Contains(head, "地上") {
			buildingDesc = head
		} else {
			parseUnit = true
		}
	}

	if parseUnit {
		if match := unitFloor.FindStringSubmatch(head); match != nil {
			if value, err := strconv.Atoi(match[1]); err == nil {
				if strings.HasPrefix(head, "B") || strings.HasPrefix(head, "地下") {
					value = -value
				}

				floor = &value
			}
		}
	}

	if buildingDesc == "" {
		return floor, nil, nil
	}

	if match := aboveGround.FindStringSubmatch(buildingDesc); match != nil {
		if value, err := strconv.Atoi(match[1]); err == nil {
			totalFloors = &value
		}
	} else if match := totalBuilt.FindStringSubmatch(buildingDesc); match != nil {
		if value, err := strconv.Atoi(match[1]); err == nil {
			totalFloors = &value
		}
	}

	if match := belowGround.FindStringSubmatch(buildingDesc); match != nil {
		if value, err := strconv.Atoi(match[1]); err == nil {
			basementFloors = &value
		}
	}

	return floor, totalFloors, basementFloors
}

// ParseConstructionType recognises the structure tag embedded in combined
// floor strings; longer names win so 鉄骨鉄筋コンクリート is not reported
// as 鉄骨.
func ParseConstructionType(raw string) (string, bool) {
	s := strings.ToUpper(foldNumeric(raw))

	for _, name := range constructionTypes {
		if strings.Contains(s, name) {
			switch name {
			case "鉄骨鉄筋コンクリート":
				return "SRC", true
			case "鉄筋コンクリート":
				return "RC", true
			default:
				return name, true
			}
		}
	}

	return "", false
}

// ParseTotalUnits extracts the unit count from 総戸数120戸 style strings.
func ParseTotalUnits(raw string) (int, bool) {
	s := foldNumeric(raw)

	match := totalUnitsPat.FindStringSubmatch(s)
	if match == nil {
		if value, err := strconv.Atoi(s); err == nil && value > 0 {
			return value, true
		}

		return 0, false
	}

	value, err := strconv.Atoi(match[1])
	if err != nil || value <= 0 {
		return 0, false
	}

	return value, true
}

// ParseBuiltYearMonth extracts a construction date from western (2015年3月)
// and wareki (平成27年3月, 令和元年) forms.
func ParseBuiltYearMonth(raw string) (year, month *int) {
	s := foldNumeric(raw)
	if s == "" {
		return nil, nil
	}

	if match := warekiPattern.FindStringSubmatch(s); match != nil {
		eraYear := 1

		if match[2] != "元" {
			value, err := strconv.Atoi(match[2])
			if err != nil || value < 1 {
				return nil, nil
			}

			eraYear = value
		}

		western := warekiOffsets[match[1]] + eraYear
		year = &western

		if match[3] != "" {
			if value, err := strconv.Atoi(match[3]); err == nil && value >= 1 && value <= 12 {
				month = &value
			}
		}

		return year, month
	}

	if match := westernYear.FindStringSubmatch(s); match != nil {
		if value, err := strconv.Atoi(match[1]); err == nil {
			year = &value
		}

		if match[2] != "" {
			if value, err := strconv.Atoi(match[2]); err == nil && value >= 1 && value <= 12 {
				month = &value
			}
		}

		return year, month
	}

	// bare 4-digit year
	if value, err := strconv.Atoi(s); err == nil && value >= 1000 && value <= 9999 {
		year = &value
		return year, nil
	}

	return nil, nil
}
