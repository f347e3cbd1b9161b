// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package streamfetch

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"
)

// probeTimeout bounds a single CDN HEAD probe so one slow mirror cannot stall
// source selection.
const probeTimeout = 4 * time.Second

// SortURLsByLatency reorders urls (same underlying stream, different CDN
// hosts) fastest-first using a concurrent HEAD probe, per spec §4.5's
// cdn_sorting option. A host that errors or times out sorts last, in
// original relative order; it is not dropped, since a live mirror beats an
// empty list even if mis-measured once.
func SortURLsByLatency(ctx context.Context, client *http.Client, urls []string) []string {
	if len(urls) <= 1 {
		return urls
	}
	if client == nil {
		client = http.DefaultClient
	}

	type timed struct {
		url     string
		latency time.Duration
		ok      bool
		index   int
	}

	results := make([]timed, len(urls))
	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()
			results[i] = timed{url: u, index: i}
			start := time.Now()
			req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, u, nil)
			if err != nil {
				return
			}
			resp, err := client.Do(req)
			if err != nil {
				return
			}
			resp.Body.Close()
			results[i].latency = time.Since(start)
			results[i].ok = resp.StatusCode < 400
		}(i, u)
	}
	wg.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.ok != b.ok {
			return a.ok
		}
		if !a.ok {
			return a.index < b.index
		}
		return a.latency < b.latency
	})

	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.url
	}
	return out
}
