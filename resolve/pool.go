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
package resolve

import (
	"context"
	"sync"

	"github.com/mansion-watch/mwdata/data"
	"github.com/rs/zerolog/log"
)

// Process drains a queue of raw listings through the resolver with a pool of
// workers and returns the merged run statistics. It blocks until the queue
// closes or the context ends.
func (resolver *Resolver) Process(ctx context.Context, queue <-chan data.RawListing) *data.ProcessStats {
	resolver.cache()

	workers := resolver.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	stats := make([]*data.ProcessStats, workers)

	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		stats[i] = data.NewProcessStats()

		wg.Add(1)

		go resolver.work(ctx, queue, stats[i], &wg)
	}

	wg.Wait()

	merged := data.NewProcessStats()
	for _, workerStats := range stats {
		merged.Merge(workerStats)
	}

	return merged
}

// work consumes listings until the queue closes or the context ends.
func (resolver *Resolver) work(ctx context.Context, queue <-chan data.RawListing, stats *data.ProcessStats, wg *sync.WaitGroup) {
	defer wg.Done()

	for raw := range queue {
		if resolver.Limiter != nil {
			if err := resolver.Limiter.Wait(ctx); err != nil {
				return
			}
		} else if ctx.Err() != nil {
			return
		}

		result, drops, err := resolver.Resolve(ctx, &raw)
		if err != nil {
			stats.ListingsSeen++
			stats.Errors++
			stats.FieldDrops.Merge(drops)

			log.Error().Err(err).Str("SourceSite", raw.SourceSite).
				Str("SitePropertyID", raw.SitePropertyID).Msg("error resolving listing")

			continue
		}

		stats.Observe(result, drops)
	}
}
