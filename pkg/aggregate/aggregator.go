// Package aggregate computes summary statistics over an extracted batch of
// raw collection records.
package aggregate

import (
	"time"

	"github.com/Sternrassler/nft-catalog-etl/pkg/catalog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ReportPrefix names the aggregation artifact.
const ReportPrefix = "aggregation"

var batchSize = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "catalog_aggregate_batch_collections",
	Help: "Number of collections in the most recently aggregated batch",
})

// Aggregate folds raws into a report. It tolerates any record shape: a
// missing owner or contract chain is counted under catalog.UnknownKey,
// non-object contract entries are skipped and categories are counted only
// when present and non-empty.
func Aggregate(raws []catalog.RawRecord, now time.Time) catalog.AggregationReport {
	report := catalog.AggregationReport{
		Total:            len(raws),
		CountsByOwner:    map[string]int{},
		CountsByChain:    map[string]int{},
		CountsByCategory: map[string]int{},
		ComputedAt:       now,
	}

	for _, raw := range raws {
		if raw.Truthy(catalog.FieldTwitter) {
			report.WithSocialHandle++
		}

		owner := catalog.UnknownKey
		if raw.Has(catalog.FieldOwner) {
			owner = raw.String(catalog.FieldOwner)
		}
		report.CountsByOwner[owner]++

		for _, item := range raw.Contracts() {
			contract, ok := item.(map[string]any)
			if !ok {
				continue
			}
			chain := catalog.UnknownKey
			if v, ok := contract["chain"]; ok && v != nil {
				chain = catalog.RawRecord(contract).String("chain")
			}
			report.CountsByChain[chain]++
		}

		if raw.Truthy(catalog.FieldCategory) {
			report.CountsByCategory[raw.String(catalog.FieldCategory)]++
		}
	}

	return report
}

// ReportSink persists the aggregation report.
type ReportSink interface {
	WriteJSON(prefix string, v any) (string, error)
}

// Aggregator computes the report and dumps it for audit.
type Aggregator struct {
	sink   ReportSink
	now    func() time.Time
	logger zerolog.Logger
}

// NewAggregator creates an aggregator. sink may be nil to skip the dump.
func NewAggregator(sink ReportSink) *Aggregator {
	return &Aggregator{
		sink:   sink,
		now:    time.Now,
		logger: log.With().Str("component", "aggregator").Logger(),
	}
}

// Run aggregates raws and writes the report artifact. A failed write is
// logged; the report is returned either way.
func (a *Aggregator) Run(raws []catalog.RawRecord) catalog.AggregationReport {
	report := Aggregate(raws, a.now())
	batchSize.Set(float64(report.Total))

	if a.sink != nil {
		if path, err := a.sink.WriteJSON(ReportPrefix, report); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to write aggregation artifact")
		} else {
			a.logger.Debug().Str("path", path).Msg("Aggregation artifact written")
		}
	}

	a.logger.Info().
		Int("total", report.Total).
		Int("with_twitter", report.WithSocialHandle).
		Int("owners", len(report.CountsByOwner)).
		Int("categories", len(report.CountsByCategory)).
		Msg("Aggregation complete")

	return report
}
