package pagination

import (
	"context"
	"errors"

	"github.com/Sternrassler/nft-catalog-etl/pkg/cache"
	"github.com/Sternrassler/nft-catalog-etl/pkg/catalog"
	"github.com/Sternrassler/nft-catalog-etl/pkg/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for page fetching.
var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_pages_fetched_total",
		Help: "Total catalog pages fetched by outcome",
	}, []string{"outcome"}) // "ok", "empty", "failed", "cached"

	recordsExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_records_extracted_total",
		Help: "Total raw collection records extracted",
	})
)

// PageFetcher fetches one page of raw records.
type PageFetcher interface {
	// FetchPage returns the records of page pageIndex. Implementations used
	// by the Extractor swallow transport failures and return an empty page.
	FetchPage(ctx context.Context, pageIndex int) PageResult
}

// PageResult is the outcome of fetching a single page.
type PageResult struct {
	Page    int
	Records []catalog.RawRecord
	// Err is the swallowed failure, if any. Records is empty when set.
	Err error
	// Cached is true when the page came from the response cache.
	Cached bool
}

// CollectionsAPI is the subset of the catalog client used for fetching.
type CollectionsAPI interface {
	GetCollections(ctx context.Context, q client.CollectionsQuery) ([]byte, error)
}

// Gate admits one remote call at a time through the shared budget.
type Gate interface {
	Acquire(ctx context.Context) error
}

// RawPageSink receives raw page bodies for audit.
type RawPageSink interface {
	WriteRawPage(page int, body []byte) (string, error)
}

// FetchConfig selects what the fetcher asks for.
type FetchConfig struct {
	Chain    string
	PageSize int
}

// HTTPPageFetcher fetches pages from the catalog API.
type HTTPPageFetcher struct {
	api    CollectionsAPI
	gate   Gate
	sink   RawPageSink
	cache  *cache.Manager
	config FetchConfig
	logger zerolog.Logger
}

// NewHTTPPageFetcher creates a page fetcher. sink may be nil to skip raw dumps.
// The chain is normalized so requests and cache keys always agree.
func NewHTTPPageFetcher(api CollectionsAPI, gate Gate, sink RawPageSink, cfg FetchConfig) *HTTPPageFetcher {
	cfg.Chain = cache.NormalizeChain(cfg.Chain)
	if cfg.Chain == "" {
		cfg.Chain = catalog.ChainEthereum
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	return &HTTPPageFetcher{
		api:    api,
		gate:   gate,
		sink:   sink,
		config: cfg,
		logger: log.With().Str("component", "page-fetcher").Str("chain", cfg.Chain).Logger(),
	}
}

// WithCache enables the page response cache.
func (f *HTTPPageFetcher) WithCache(m *cache.Manager) *HTTPPageFetcher {
	f.cache = m
	return f
}

// Config returns the fetch configuration.
func (f *HTTPPageFetcher) Config() FetchConfig {
	return f.config
}

func (f *HTTPPageFetcher) query(pageIndex int) client.CollectionsQuery {
	return client.CollectionsQuery{
		Chain:  f.config.Chain,
		Limit:  f.config.PageSize,
		Offset: pageIndex * f.config.PageSize,
	}
}

// FetchPage fetches one page. Failures are logged and reported in
// PageResult.Err with no records; they never abort the caller.
func (f *HTTPPageFetcher) FetchPage(ctx context.Context, pageIndex int) PageResult {
	q := f.query(pageIndex)
	key := cache.PageKey{Chain: q.Chain, Limit: q.Limit, Offset: q.Offset}

	if records, ok := f.fromCache(ctx, pageIndex, key); ok {
		pagesFetchedTotal.WithLabelValues("cached").Inc()
		return PageResult{Page: pageIndex, Records: records, Cached: true}
	}

	if err := f.gate.Acquire(ctx); err != nil {
		return f.failed(pageIndex, err)
	}

	body, err := f.api.GetCollections(ctx, q)
	if err != nil {
		return f.failed(pageIndex, err)
	}

	records, err := client.DecodeCollections(body)
	if err != nil {
		return f.failed(pageIndex, err)
	}

	if f.sink != nil {
		if path, err := f.sink.WriteRawPage(pageIndex, body); err != nil {
			f.logger.Warn().Err(err).Int("page", pageIndex).Msg("Failed to write raw page artifact")
		} else {
			f.logger.Debug().Int("page", pageIndex).Str("path", path).Msg("Raw page artifact written")
		}
	}

	if f.cache != nil {
		if err := f.cache.Put(ctx, key, body); err != nil {
			f.logger.Warn().Err(err).Int("page", pageIndex).Msg("Failed to cache page")
		}
	}

	outcome := "ok"
	if len(records) == 0 {
		outcome = "empty"
	}
	pagesFetchedTotal.WithLabelValues(outcome).Inc()

	f.logger.Debug().
		Int("page", pageIndex).
		Int("offset", q.Offset).
		Int("records", len(records)).
		Msg("Page fetched")

	return PageResult{Page: pageIndex, Records: records}
}

func (f *HTTPPageFetcher) fromCache(ctx context.Context, pageIndex int, key cache.PageKey) ([]catalog.RawRecord, bool) {
	if f.cache == nil {
		return nil, false
	}

	entry, err := f.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			f.logger.Warn().Err(err).Int("page", pageIndex).Msg("Cache get error")
		}
		return nil, false
	}

	records, err := client.DecodeCollections(entry.Data)
	if err != nil {
		f.logger.Warn().Err(err).Int("page", pageIndex).Msg("Cached page unreadable, refetching")
		_ = f.cache.Delete(ctx, key)
		return nil, false
	}

	f.logger.Debug().Int("page", pageIndex).Int("records", len(records)).Msg("Page served from cache")
	return records, true
}

func (f *HTTPPageFetcher) failed(pageIndex int, err error) PageResult {
	pagesFetchedTotal.WithLabelValues("failed").Inc()
	f.logger.Warn().
		Err(err).
		Int("page", pageIndex).
		Str("error_class", string(client.ClassOf(err))).
		Msg("Page fetch failed - treating as empty")
	return PageResult{Page: pageIndex, Err: err}
}
