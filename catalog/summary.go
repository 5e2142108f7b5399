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
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xeonx/timeago"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Summary returns a description of the catalog in markdown
func (myCatalog *Catalog) Summary(ctx context.Context) (string, error) {
	p := message.NewPrinter(language.English)
	builder := strings.Builder{}

	if _, err := builder.WriteString(fmt.Sprintf("# %s\n", myCatalog.Name)); err != nil {
		return "", err
	}

	if _, err := builder.WriteString("## Details\n\n"); err != nil {
		return "", err
	}

	// Database connection string
	if _, err := builder.WriteString(fmt.Sprintf("Database: %s\n\n", myCatalog.DBUrl)); err != nil {
		return "", err
	}

	// Number of subscriptions
	numSubscriptions, err := myCatalog.NumSubscriptions(ctx)
	if err != nil {
		return "", err
	}

	if _, err := builder.WriteString(p.Sprintf("  * Num Subscriptions: %d\n", numSubscriptions)); err != nil {
		return "", err
	}

	// Buildings tracked
	totalBuildings, err := myCatalog.TotalBuildings(ctx)
	if err != nil {
		return "", err
	}

	if _, err := builder.WriteString(p.Sprintf("  * Buildings Tracked: %d\n", totalBuildings)); err != nil {
		return "", err
	}

	// Master properties tracked
	totalProperties, err := myCatalog.TotalProperties(ctx)
	if err != nil {
		return "", err
	}

	if _, err := builder.WriteString(p.Sprintf("  * Properties Tracked: %d\n", totalProperties)); err != nil {
		return "", err
	}

	// Active listing count
	activeListings, err := myCatalog.TotalListings(ctx, true)
	if err != nil {
		return "", err
	}

	// Total listing count
	totalListings, err := myCatalog.TotalListings(ctx, false)
	if err != nil {
		return "", err
	}

	if _, err := builder.WriteString(p.Sprintf("  * Listings: %d active / %d total\n\n", activeListings, totalListings)); err != nil {
		return "", err
	}

	// Last updated time
	lastUpdated, err := myCatalog.LastUpdated(ctx)
	if err != nil {
		return "", err
	}

	age := timeago.English.Format(lastUpdated)

	if lastUpdated.Equal(time.Time{}) {
		if _, err := builder.WriteString("Last Updated: Never\n\n"); err != nil {
			return "", err
		}
	} else {
		if _, err := builder.WriteString(fmt.Sprintf("Last Updated: %s (%s)\n\n", age, lastUpdated.Local().Format("01/02/2006"))); err != nil {
			return "", err
		}
	}

	// Subscriptions
	if _, err := builder.WriteString("## Subscriptions\n\n"); err != nil {
		return "", err
	}

	subscriptions, err := myCatalog.Subscriptions(ctx)
	if err != nil {
		return "", err
	}

	for _, subscription := range subscriptions {
		if !subscription.Active {
			continue
		}

		lastRun := "never"
		if !subscription.LastRun.Equal(time.Time{}) {
			lastRun = timeago.English.Format(subscription.LastRun)
		}

		if _, err := builder.WriteString(p.Sprintf("  * %s %s (last run %s) [%s]\n", subscription.Source,
			subscription.Area, lastRun, subscription.ID.String()[:6])); err != nil {
			return "", err
		}

		if _, err := builder.WriteString(p.Sprintf("    * %d listings last run / %d all time\n",
			subscription.ListingsLastRun, subscription.TotalListings)); err != nil {
			return "", err
		}
	}

	if _, err := builder.WriteString("## Inactive subscriptions\n\n"); err != nil {
		return "", err
	}

	for _, subscription := range subscriptions {
		if subscription.Active {
			continue
		}

		if _, err := builder.WriteString(p.Sprintf("  * %s %s [%s]\n", subscription.Source,
			subscription.Area, subscription.ID.String()[:6])); err != nil {
			return "", err
		}
	}

	return builder.String(), nil
}
