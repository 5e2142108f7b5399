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
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/gocarina/gocsv"
	"github.com/mansion-watch/mwdata/backblaze"
	"github.com/mansion-watch/mwdata/catalog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var exportUpload bool

// exportRow is one master property on the canonical read surface: the unit
// joined with its building and derived prices. Orphan units (no listings)
// are excluded.
type exportRow struct {
	BuildingID    int64  `csv:"building_id" db:"building_id"`
	CanonicalName string `csv:"canonical_name" db:"canonical_name"`
	Address       string `csv:"address" db:"address"`
	BuiltYear     *int   `csv:"built_year" db:"built_year"`
	TotalFloors   *int   `csv:"total_floors" db:"total_floors"`
	TotalUnits    *int   `csv:"total_units" db:"total_units"`

	PropertyID  int64    `csv:"property_id" db:"property_id"`
	FloorNumber *int     `csv:"floor_number" db:"floor_number"`
	AreaM2      *float64 `csv:"area_m2" db:"area_m2"`
	Layout      *string  `csv:"layout" db:"layout"`
	Direction   *string  `csv:"direction" db:"direction"`

	CurrentPrice        *int64     `csv:"current_price" db:"current_price"`
	FinalPrice          *int64     `csv:"final_price" db:"final_price"`
	SoldAt              *time.Time `csv:"sold_at" db:"sold_at"`
	EarliestListingDate *time.Time `csv:"earliest_listing_date" db:"earliest_listing_date"`
	ActiveListings      int        `csv:"active_listings" db:"active_listings"`
}

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export [filename]",
	Short: "Write the canonical read surface to CSV",
	Long: `The export sub-command dumps every master property together with its
building and derived prices to a CSV snapshot. Units without any listing
(left behind as merge targets or emptied by moves) are not part of the read
surface and are excluded.

With --upload the snapshot is also pushed to the Backblaze B2 bucket named
by backblaze.bucket, under a year-month directory.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myCatalog, err := catalog.NewFromDB(ctx, viper.GetString("db.url"))
		if err != nil {
			log.Fatal().Err(err).Msg("could not connect to catalog")
		}
		defer myCatalog.Close()

		now := time.Now()

		fn := fmt.Sprintf("mwdata-snapshot-%s.csv", now.Format("20060102"))
		if len(args) > 0 {
			fn = args[0]
		}

		var rows []*exportRow

		err = pgxscan.Select(ctx, myCatalog.Pool, &rows, `SELECT
	b.id AS building_id, b.canonical_name, b.address, b.built_year,
	b.total_floors, b.total_units,
	p.id AS property_id, p.floor_number, p.area_m2, p.layout, p.direction,
	p.current_price, p.final_price, p.sold_at, p.earliest_listing_date,
	(SELECT count(*) FROM listings l WHERE l.master_property_id = p.id AND l.is_active = 't') AS active_listings
FROM master_properties p
JOIN buildings b ON b.id = p.building_id
WHERE EXISTS (SELECT 1 FROM listings l WHERE l.master_property_id = p.id)
ORDER BY b.id, p.id`)
		if err != nil {
			log.Fatal().Err(err).Msg("could not load the read surface")
		}

		fh, err := os.Create(fn)
		if err != nil {
			log.Fatal().Err(err).Str("FileName", fn).Msg("could not create snapshot file")
		}

		if err := gocsv.MarshalFile(&rows, fh); err != nil {
			fh.Close()
			log.Fatal().Err(err).Str("FileName", fn).Msg("could not write snapshot")
		}

		if err := fh.Close(); err != nil {
			log.Fatal().Err(err).Str("FileName", fn).Msg("could not close snapshot file")
		}

		log.Info().Str("FileName", fn).Int("NumProperties", len(rows)).Msg("snapshot written")

		if exportUpload {
			bucketName := viper.GetString("backblaze.bucket")
			if bucketName == "" {
				log.Fatal().Msg("backblaze.bucket is not configured")
			}

			if err := backblaze.Upload(fn, bucketName, now.Format("2006-01")); err != nil {
				log.Fatal().Err(err).Str("BucketName", bucketName).Msg("snapshot upload failed")
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().BoolVarP(&exportUpload, "upload", "u", false, "upload the snapshot to Backblaze B2")
}
