// Package pagination fans catalog page fetches out across a bounded worker
// pool and merges the pages into one batch.
//
// Example usage:
//
//	limiter := ratelimit.NewLimiter(ratelimit.DefaultConfig(), logger)
//	fetcher := pagination.NewHTTPPageFetcher(catalogClient, limiter, artifacts, pagination.FetchConfig{
//		Chain:    "ethereum",
//		PageSize: 50,
//	})
//	extractor := pagination.NewExtractor(fetcher, artifacts)
//	records := extractor.Extract(ctx, 5)
//
// The extractor:
//   - Launches exactly one worker per page, pages 0..workers-1
//   - Shares one rate limiter across all workers
//   - Treats a failed page as an empty page (logged, never fatal)
//   - Merges pages in completion order, keeping record order within a page
//   - Dumps the merged batch as JSON and CSV for audit
//
// Callers needing more pages run Extract again; the fan-out per call is
// fixed so that a rate-limited upstream never sees more than workers
// concurrent requests.
package pagination
