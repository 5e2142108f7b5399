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

// Package sources defines the contract between portal scrapers and the
// resolver. Scrapers live outside this repository; a Source adapts whatever
// they produce into the uniform RawListing stream the run command consumes.
package sources

import (
	"context"
	"errors"

	"github.com/mansion-watch/mwdata/catalog"
	"github.com/mansion-watch/mwdata/data"
)

// ErrContract marks a record or configuration that violates the scraper
// contract.
var ErrContract = errors.New("scraper contract violation")

type Source interface {
	Name() string
	ConfigDescription() map[string]string
	Description() string

	// Areas returns the area slugs the source can be subscribed to; the
	// subscribe wizard offers one subscription per (source, area) pair.
	Areas() []string

	// Fetch is called when mwdata wants to retrieve listing sightings for a
	// subscription. Records are written to out; a RunSummary is sent on
	// summary exactly once, after the last record, even when the fetch
	// fails partway.
	Fetch(ctx context.Context, subscription *catalog.Subscription, out chan<- data.RawListing, summary chan<- data.RunSummary)
}

// Map indexes every registered source by its subscription key.
var Map = map[string]Source{
	"ndjson-file": &NDJSONFile{},
}
