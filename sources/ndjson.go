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
package sources

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mansion-watch/mwdata/catalog"
	"github.com/mansion-watch/mwdata/data"
	"github.com/rs/zerolog"
)

// ndjsonMaxLine caps a single dump line; portal descriptions occasionally
// run long but anything past this is a corrupt record.
const ndjsonMaxLine = 4 * 1024 * 1024

// NDJSONFile streams listing sightings from portal dump files, one JSON
// RawListing per line. Scrapers run out-of-process and drop one
// <area>.ndjson per crawl into a shared directory; this source is the
// reference implementation of the scraper contract and doubles as the
// backfill path.
type NDJSONFile struct{}

func (src *NDJSONFile) Name() string {
	return "ndjson-file"
}

func (src *NDJSONFile) ConfigDescription() map[string]string {
	return map[string]string{
		"path": "Directory holding portal dump files (one <area>.ndjson per crawl), or a single .ndjson file:",
	}
}

func (src *NDJSONFile) Description() string {
	return `Reads listing sightings from newline-delimited JSON dump files
produced by out-of-process portal scrapers. Each line is one RawListing
record; records missing their identity (source_site, site_property_id) or
observation time are skipped and counted.`
}

func (src *NDJSONFile) Areas() []string {
	return []string{
		"chiyoda", "chuo", "minato", "shinjuku", "bunkyo", "taito",
		"sumida", "koto", "shinagawa", "meguro", "ota", "setagaya",
		"shibuya", "nakano", "suginami", "toshima", "kita", "arakawa",
		"itabashi", "nerima", "adachi", "katsushika", "edogawa",
	}
}

func (src *NDJSONFile) Fetch(ctx context.Context, subscription *catalog.Subscription, out chan<- data.RawListing, summary chan<- data.RunSummary) {
	logger := zerolog.Ctx(ctx)

	runSummary := data.RunSummary{
		StartTime:        time.Now(),
		Status:           data.RunSuccess,
		SubscriptionID:   subscription.ID,
		SubscriptionName: subscription.Name,
	}

	numListings := 0

	defer func() {
		runSummary.EndTime = time.Now()
		runSummary.NumListings = numListings
		summary <- runSummary
	}()

	fn, err := dumpFileName(subscription.Config["path"], subscription.Area)
	if err != nil {
		logger.Error().Err(err).Str("Area", subscription.Area).Msg("could not locate dump file")
		runSummary.Status = data.RunFailed

		return
	}

	fh, err := os.Open(fn)
	if err != nil {
		logger.Error().Err(err).Str("FileName", fn).Msg("could not open dump file")
		runSummary.Status = data.RunFailed

		return
	}
	defer fh.Close()

	skipped := 0

	scanner := bufio.NewScanner(fh)
	scanner.Buffer(make([]byte, 0, 64*1024), ndjsonMaxLine)

	lineNo := 0
	for scanner.Scan() {
		lineNo++

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var raw data.RawListing
		if err := json.Unmarshal(line, &raw); err != nil {
			logger.Warn().Err(err).Str("FileName", fn).Int("LineNo", lineNo).Msg("skipping undecodable dump line")
			skipped++

			continue
		}

		if err := CheckContract(&raw); err != nil {
			logger.Warn().Err(err).Str("FileName", fn).Int("LineNo", lineNo).Msg("skipping record that breaks the scraper contract")
			skipped++

			continue
		}

		select {
		case out <- raw:
			numListings++
		case <-ctx.Done():
			logger.Warn().Str("FileName", fn).Msg("fetch cancelled")
			runSummary.Status = data.RunFailed

			return
		}
	}

	if err := scanner.Err(); err != nil {
		logger.Error().Err(err).Str("FileName", fn).Int("LineNo", lineNo).Msg("error reading dump file")
		runSummary.Status = data.RunFailed

		return
	}

	if skipped > 0 {
		logger.Warn().Str("FileName", fn).Int("NumSkipped", skipped).Msg("dump file contained invalid records")
	}
}

// CheckContract verifies the fields every scraper must provide on each
// record: the portal identity pair and the observation time.
func CheckContract(raw *data.RawListing) error {
	switch {
	case raw.SourceSite == "":
		return fmt.Errorf("%w: source_site", ErrContract)
	case raw.SitePropertyID == "":
		return fmt.Errorf("%w: site_property_id", ErrContract)
	case raw.ObservedAt.IsZero():
		return fmt.Errorf("%w: observed_at", ErrContract)
	}

	return nil
}

// dumpFileName resolves the configured path to a concrete dump file. A
// directory is searched for <area>.ndjson; a file path is used as-is.
func dumpFileName(path, area string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: path not configured", ErrContract)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	if info.IsDir() {
		return filepath.Join(path, fmt.Sprintf("%s.ndjson", area)), nil
	}

	return path, nil
}
