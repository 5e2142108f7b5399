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
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mansion-watch/mwdata/catalog"
	"github.com/mansion-watch/mwdata/data"
)

func TestCheckContract(t *testing.T) {
	observed := time.Date(2025, 7, 1, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		raw     data.RawListing
		wantErr bool
	}{
		{"complete", data.RawListing{SourceSite: "suumo", SitePropertyID: "sm-1", ObservedAt: observed}, false},
		{"missing source site", data.RawListing{SitePropertyID: "sm-1", ObservedAt: observed}, true},
		{"missing site property id", data.RawListing{SourceSite: "suumo", ObservedAt: observed}, true},
		{"missing observed at", data.RawListing{SourceSite: "suumo", SitePropertyID: "sm-1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckContract(&tt.raw)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckContract() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrContract) {
				t.Errorf("CheckContract() error = %v, want wrapped ErrContract", err)
			}
		})
	}
}

func TestNDJSONFileFetch(t *testing.T) {
	dump := `{"source_site":"suumo","site_property_id":"sm-001","url":"https://example.com/sm-001","listing_building_name":"パークハウス白金","current_price":5980,"observed_at":"2025-07-01T09:30:00+09:00"}
{this is not json}
{"source_site":"suumo","url":"https://example.com/broken","observed_at":"2025-07-01T09:31:00+09:00"}
{"source_site":"homes","site_property_id":"hm-077","url":"https://example.com/hm-077"}

{"source_site":"homes","site_property_id":"hm-078","url":"https://example.com/hm-078","area_m2":70.2,"observed_at":"2025-07-01T10:00:00+09:00"}
`

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "minato.ndjson"), []byte(dump), 0600); err != nil {
		t.Fatal(err)
	}

	subscription := &catalog.Subscription{
		ID:     uuid.New(),
		Name:   "ndjson-file minato",
		Source: "ndjson-file",
		Area:   "minato",
		Config: map[string]string{"path": dir},
	}

	out := make(chan data.RawListing, 16)
	summaryChan := make(chan data.RunSummary, 1)

	src := &NDJSONFile{}
	go func() {
		src.Fetch(context.Background(), subscription, out, summaryChan)
		close(out)
	}()

	var got []data.RawListing
	for raw := range out {
		got = append(got, raw)
	}

	summary := <-summaryChan

	if summary.Status != data.RunSuccess {
		t.Errorf("summary.Status = %v, want RunSuccess", summary.Status)
	}
	if summary.NumListings != 2 {
		t.Errorf("summary.NumListings = %d, want 2", summary.NumListings)
	}
	if summary.SubscriptionID != subscription.ID {
		t.Errorf("summary.SubscriptionID = %v, want %v", summary.SubscriptionID, subscription.ID)
	}

	if len(got) != 2 {
		t.Fatalf("fetched %d listings, want 2", len(got))
	}
	if got[0].SitePropertyID != "sm-001" || got[1].SitePropertyID != "hm-078" {
		t.Errorf("fetched ids = %q, %q; want sm-001, hm-078", got[0].SitePropertyID, got[1].SitePropertyID)
	}
	if got[0].CurrentPrice == nil || *got[0].CurrentPrice != 5980 {
		t.Errorf("got[0].CurrentPrice = %v, want 5980", got[0].CurrentPrice)
	}
	if got[1].AreaM2 == nil || *got[1].AreaM2 != 70.2 {
		t.Errorf("got[1].AreaM2 = %v, want 70.2", got[1].AreaM2)
	}
}

func TestNDJSONFileFetchMissingFile(t *testing.T) {
	subscription := &catalog.Subscription{
		ID:     uuid.New(),
		Name:   "ndjson-file chuo",
		Source: "ndjson-file",
		Area:   "chuo",
		Config: map[string]string{"path": t.TempDir()},
	}

	out := make(chan data.RawListing, 1)
	summaryChan := make(chan data.RunSummary, 1)

	src := &NDJSONFile{}
	go func() {
		src.Fetch(context.Background(), subscription, out, summaryChan)
		close(out)
	}()

	for range out {
		t.Error("no listings expected from a missing dump file")
	}

	summary := <-summaryChan
	if summary.Status != data.RunFailed {
		t.Errorf("summary.Status = %v, want RunFailed", summary.Status)
	}
	if summary.NumListings != 0 {
		t.Errorf("summary.NumListings = %d, want 0", summary.NumListings)
	}
}

func TestDumpFileName(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, "koto.ndjson")
	if err := os.WriteFile(fn, []byte("{}\n"), 0600); err != nil {
		t.Fatal(err)
	}

	t.Run("directory resolves to area file", func(t *testing.T) {
		got, err := dumpFileName(dir, "setagaya")
		if err != nil {
			t.Fatal(err)
		}
		if want := filepath.Join(dir, "setagaya.ndjson"); got != want {
			t.Errorf("dumpFileName() = %q, want %q", got, want)
		}
	})

	t.Run("file used as-is", func(t *testing.T) {
		got, err := dumpFileName(fn, "setagaya")
		if err != nil {
			t.Fatal(err)
		}
		if got != fn {
			t.Errorf("dumpFileName() = %q, want %q", got, fn)
		}
	})

	t.Run("empty path", func(t *testing.T) {
		if _, err := dumpFileName("", "setagaya"); !errors.Is(err, ErrContract) {
			t.Errorf("dumpFileName(\"\") error = %v, want ErrContract", err)
		}
	})
}
