package pagination

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/nft-catalog-etl/internal/testutil"
	"github.com/Sternrassler/nft-catalog-etl/pkg/artifact"
	"github.com/Sternrassler/nft-catalog-etl/pkg/cache"
	"github.com/Sternrassler/nft-catalog-etl/pkg/client"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// countingGate admits every call and counts them.
type countingGate struct {
	mu    sync.Mutex
	calls int
}

func (g *countingGate) Acquire(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return nil
}

func (g *countingGate) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func newTestFetcher(t *testing.T, mock *testutil.MockCatalog, pageSize int) (*HTTPPageFetcher, *countingGate, *artifact.Writer) {
	t.Helper()

	cfg := client.DefaultConfig("test-key")
	cfg.BaseURL = mock.URL()
	cfg.Timeout = 2 * time.Second
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}

	writer, err := artifact.NewWriter(t.TempDir())
	if err != nil {
		t.Fatalf("artifact.NewWriter() error = %v", err)
	}

	gate := &countingGate{}
	fetcher := NewHTTPPageFetcher(c, gate, writer, FetchConfig{Chain: "ethereum", PageSize: pageSize})
	return fetcher, gate, writer
}

func TestNewHTTPPageFetcher_Defaults(t *testing.T) {
	f := NewHTTPPageFetcher(nil, &countingGate{}, nil, FetchConfig{})
	cfg := f.Config()
	if cfg.Chain != "ethereum" || cfg.PageSize != 50 {
		t.Errorf("Config() = %+v, want ethereum/50", cfg)
	}
}

func TestFetchPage_Success(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetPage(40, testutil.NewCollectionsResponse(
		testutil.Collection("a", "Alpha"),
		testutil.Collection("b", "Beta"),
	))

	fetcher, gate, writer := newTestFetcher(t, mock, 20)

	result := fetcher.FetchPage(context.Background(), 2)
	if result.Err != nil {
		t.Fatalf("FetchPage() Err = %v", result.Err)
	}
	if len(result.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(result.Records))
	}
	if result.Records[0].String("collection") != "a" || result.Records[1].String("collection") != "b" {
		t.Error("record order within the page must be preserved")
	}
	if gate.Calls() != 1 {
		t.Errorf("gate calls = %d, want 1", gate.Calls())
	}

	query := mock.GetLastQuery()
	if query["offset"] != "40" || query["limit"] != "20" || query["chain"] != "ethereum" {
		t.Errorf("query = %v, want offset=40 limit=20 chain=ethereum", query)
	}

	matches, _ := filepath.Glob(filepath.Join(writer.Dir(), "raw_response_page_2_*.txt"))
	if len(matches) != 1 {
		t.Fatalf("raw page artifacts = %v, want 1", matches)
	}
	data, _ := os.ReadFile(matches[0])
	if len(data) == 0 {
		t.Error("raw page artifact is empty")
	}
}

func TestFetchPage_FailuresBecomeEmptyPages(t *testing.T) {
	tests := []struct {
		name     string
		response testutil.MockResponse
	}{
		{name: "server error", response: testutil.NewServerErrorResponse()},
		{name: "rate limited", response: testutil.NewRateLimitResponse()},
		{name: "unauthorized", response: testutil.NewUnauthorizedResponse()},
		{name: "malformed body", response: testutil.NewMalformedResponse()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockCatalog()
			defer mock.Close()
			mock.SetPage(0, tt.response)

			fetcher, _, writer := newTestFetcher(t, mock, 50)

			result := fetcher.FetchPage(context.Background(), 0)
			if result.Err == nil {
				t.Error("Err should record the swallowed failure")
			}
			if len(result.Records) != 0 {
				t.Errorf("records = %d, want 0", len(result.Records))
			}

			matches, _ := filepath.Glob(filepath.Join(writer.Dir(), "raw_response_page_*"))
			if len(matches) != 0 {
				t.Errorf("failed page must not leave a raw artifact, got %v", matches)
			}
		})
	}
}

func TestFetchPage_CacheHitSkipsGate(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetPage(0, testutil.NewCollectionsResponse(testutil.Collection("a", "Alpha")))

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer redisClient.Close()

	fetcher, gate, _ := newTestFetcher(t, mock, 50)
	fetcher.WithCache(cache.NewManager(redisClient, time.Minute))
	ctx := context.Background()

	first := fetcher.FetchPage(ctx, 0)
	if first.Cached || len(first.Records) != 1 {
		t.Fatalf("first fetch = %+v, want 1 uncached record", first)
	}

	second := fetcher.FetchPage(ctx, 0)
	if !second.Cached {
		t.Error("second fetch should be served from cache")
	}
	if len(second.Records) != 1 {
		t.Errorf("cached records = %d, want 1", len(second.Records))
	}
	if gate.Calls() != 1 {
		t.Errorf("gate calls = %d, want 1", gate.Calls())
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("requests = %d, want 1", mock.GetRequestCount())
	}
}

func TestFetchPage_ChainNormalizedForQueryAndKey(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetPage(0, testutil.NewCollectionsResponse(testutil.Collection("a", "Alpha")))

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer redisClient.Close()

	cfg := client.DefaultConfig("test-key")
	cfg.BaseURL = mock.URL()
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	manager := cache.NewManager(redisClient, time.Minute)

	mixed := NewHTTPPageFetcher(c, &countingGate{}, nil, FetchConfig{Chain: " Ethereum ", PageSize: 50}).WithCache(manager)
	if got := mixed.Config().Chain; got != "ethereum" {
		t.Errorf("Config().Chain = %q, want ethereum", got)
	}

	if res := mixed.FetchPage(context.Background(), 0); res.Err != nil || res.Cached {
		t.Fatalf("first fetch = %+v, want uncached success", res)
	}
	if got := mock.GetLastQuery()["chain"]; got != "ethereum" {
		t.Errorf("requested chain = %q, want ethereum", got)
	}

	lower := NewHTTPPageFetcher(c, &countingGate{}, nil, FetchConfig{Chain: "ethereum", PageSize: 50}).WithCache(manager)
	if res := lower.FetchPage(context.Background(), 0); !res.Cached {
		t.Error("same chain in another case should hit the cached page")
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("requests = %d, want 1", mock.GetRequestCount())
	}
}

func TestFetchPage_FailedPageNotCached(t *testing.T) {
	mock := testutil.NewMockCatalog()
	defer mock.Close()
	mock.SetPage(0, testutil.NewServerErrorResponse())

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer redisClient.Close()

	fetcher, _, _ := newTestFetcher(t, mock, 50)
	fetcher.WithCache(cache.NewManager(redisClient, time.Minute))

	_ = fetcher.FetchPage(context.Background(), 0)

	if keys := mr.Keys(); len(keys) != 0 {
		t.Errorf("cache keys = %v, want none", keys)
	}
}
