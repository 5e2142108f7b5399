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

// Duplicate group kinds.
const (
	DuplicateBuildings = "building"
	DuplicateUnits     = "property"
)

// DuplicateGroup is an advisory cluster of likely duplicates for human
// review. The duplicate finder only ever emits these; merging is a separate,
// explicit operation.
type DuplicateGroup struct {
	Kind           string  `json:"kind"`
	PrimaryID      int64   `json:"primary_id"`
	MemberIDs      []int64 `json:"member_ids"`
	MeanSimilarity float64 `json:"mean_similarity"`
}
