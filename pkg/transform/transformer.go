package transform

import (
	"context"
	"sync"
	"time"

	"github.com/Sternrassler/nft-catalog-etl/pkg/catalog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var recordsTransformedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "catalog_transform_records_total",
	Help: "Total records processed by the transformer by result",
}, []string{"result"}) // "accepted" or a RejectReason

// Transformer normalizes raw records on a bounded worker pool.
type Transformer struct {
	now    func() time.Time
	logger zerolog.Logger
}

// NewTransformer creates a transformer stamping records with the wall clock.
func NewTransformer() *Transformer {
	return &Transformer{
		now:    time.Now,
		logger: log.With().Str("component", "transformer").Logger(),
	}
}

// Transform normalizes every record independently on up to workers
// goroutines. Rejected records are logged and left out; output order is
// completion order, not input order.
func (t *Transformer) Transform(ctx context.Context, raws []catalog.RawRecord, workers int) []catalog.NormalizedRecord {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(raws) {
		workers = len(raws)
	}

	jobs := make(chan catalog.RawRecord)
	results := make(chan Result, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for raw := range jobs {
				results <- Normalize(raw, t.now())
			}
		}()
	}

	go func() {
		for _, raw := range raws {
			jobs <- raw
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	out := make([]catalog.NormalizedRecord, 0, len(raws))
	for res := range results {
		if !res.OK() {
			recordsTransformedTotal.WithLabelValues(string(res.Reason)).Inc()
			t.logger.Warn().
				Str("reason", string(res.Reason)).
				Str("detail", res.Detail).
				Msg("Skipping collection due to missing required data")
			continue
		}
		recordsTransformedTotal.WithLabelValues("accepted").Inc()
		t.logger.Debug().Str("collection", res.Record.Collection).Msg("Transformed collection")
		out = append(out, *res.Record)
	}

	t.logger.Info().
		Int("input", len(raws)).
		Int("output", len(out)).
		Msgf("Successfully transformed %d collections", len(out))

	return out
}
