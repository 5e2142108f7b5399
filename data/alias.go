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
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/rs/zerolog/log"
)

// AliasEntry records one observed building-name form per building: its
// canonical key, the display form, which sources used it and how often.
// Unique on (building_id, canonical_name).
type AliasEntry struct {
	ID              int64     `json:"id"`
	BuildingID      int64     `json:"building_id"`
	CanonicalName   string    `json:"canonical_name"`
	DisplayName     string    `json:"display_name"`
	SourceSites     []string  `json:"source_sites"`
	OccurrenceCount int       `json:"occurrence_count"`
	FirstSeenAt     time.Time `json:"first_seen_at"`
	LastSeenAt      time.Time `json:"last_seen_at"`
}

// Fold upserts one sighting of a name form: first sighting inserts with
// occurrence_count 1; later sightings increment the count, extend
// source_sites and advance last_seen_at.
func (alias *AliasEntry) Fold(ctx context.Context, dbConn Querier) error {
	sql := `INSERT INTO alias_entries (
		"building_id",
		"canonical_name",
		"display_name",
		"source_sites",
		"occurrence_count",
		"first_seen_at",
		"last_seen_at"
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7
	) ON CONFLICT ON CONSTRAINT alias_entries_building_id_canonical_name_key
	DO UPDATE SET
		occurrence_count = alias_entries.occurrence_count + EXCLUDED.occurrence_count,
		source_sites = (SELECT array_agg(DISTINCT site ORDER BY site)
			FROM unnest(alias_entries.source_sites || EXCLUDED.source_sites) AS site),
		first_seen_at = LEAST(alias_entries.first_seen_at, EXCLUDED.first_seen_at),
		last_seen_at = GREATEST(alias_entries.last_seen_at, EXCLUDED.last_seen_at)
	RETURNING id`

	count := alias.OccurrenceCount
	if count == 0 {
		count = 1
	}

	err := dbConn.QueryRow(ctx, sql, alias.BuildingID, alias.CanonicalName,
		alias.DisplayName, alias.SourceSites, count, alias.FirstSeenAt,
		alias.LastSeenAt).Scan(&alias.ID)
	if err != nil {
		log.Error().Err(err).Int64("BuildingID", alias.BuildingID).
			Str("CanonicalName", alias.CanonicalName).Msg("error folding alias entry")
	}

	return err
}

// AliasesForBuilding loads the ledger of a building ordered by canonical
// name.
func AliasesForBuilding(ctx context.Context, dbConn Querier, buildingID int64) ([]*AliasEntry, error) {
	entries := make([]*AliasEntry, 0, 8)

	err := pgxscan.Select(ctx, dbConn, &entries,
		`SELECT * FROM alias_entries WHERE building_id = $1 ORDER BY canonical_name`,
		buildingID)
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// DeleteAliasesForBuilding clears a building's ledger; refresh rebuilds it
// from the current listings afterwards.
func DeleteAliasesForBuilding(ctx context.Context, dbConn Querier, buildingID int64) error {
	_, err := dbConn.Exec(ctx,
		`DELETE FROM alias_entries WHERE building_id = $1`, buildingID)
	if err != nil {
		log.Error().Err(err).Int64("BuildingID", buildingID).
			Msg("error clearing alias entries")
	}

	return err
}
