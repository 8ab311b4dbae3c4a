// Package pipeline sequences one extract, transform, aggregate and load run.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/nft-catalog-etl/pkg/catalog"
	"github.com/Sternrassler/nft-catalog-etl/pkg/logging"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// State is a stage of a pipeline run.
type State string

const (
	StateInit         State = "init"
	StateExtracting   State = "extracting"
	StateTransforming State = "transforming"
	StateAggregating  State = "aggregating"
	StateLoading      State = "loading"
	StateDone         State = "done"
	StateStopped      State = "stopped"
	StateFailed       State = "failed"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_pipeline_runs_total",
		Help: "Total pipeline runs by final state",
	}, []string{"state"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_pipeline_stage_duration_seconds",
		Help:    "Duration of pipeline stages",
		Buckets: []float64{.01, .1, .5, 1, 5, 15, 30, 60, 120, 300},
	}, []string{"stage"})

	loadedRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_pipeline_loaded_records",
		Help: "Records loaded by the most recent run",
	})
)

// Extractor produces the raw batch.
type Extractor interface {
	Extract(ctx context.Context, workers int) []catalog.RawRecord
}

// Transformer normalizes the raw batch.
type Transformer interface {
	Transform(ctx context.Context, raws []catalog.RawRecord, workers int) []catalog.NormalizedRecord
}

// Aggregator summarizes the raw batch.
type Aggregator interface {
	Run(raws []catalog.RawRecord) catalog.AggregationReport
}

// Schema prepares the destination table before extraction.
type Schema interface {
	EnsureTable(ctx context.Context) (Table, error)
}

// Options configures one run.
type Options struct {
	// Workers bounds both the page fan-out and the transform pool.
	Workers int
}

// RunSummary describes a finished run.
type RunSummary struct {
	RunID       string
	State       State
	Extracted   int
	Transformed int
	Loaded      int
	Report      *catalog.AggregationReport
	LoadErr     error
	Duration    time.Duration
}

// Orchestrator runs the stages in order.
type Orchestrator struct {
	schema      Schema
	extractor   Extractor
	transformer Transformer
	aggregator  Aggregator
	loader      *Loader
	newRunID    func() string
}

// NewOrchestrator wires the stages together.
func NewOrchestrator(schema Schema, extractor Extractor, transformer Transformer, aggregator Aggregator) *Orchestrator {
	return &Orchestrator{
		schema:      schema,
		extractor:   extractor,
		transformer: transformer,
		aggregator:  aggregator,
		loader:      NewLoader(),
		newRunID:    uuid.NewString,
	}
}

// Run executes one pipeline run. Only a schema failure returns an error;
// an empty extraction stops the run early and a load failure is recorded
// in the summary.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*RunSummary, error) {
	start := time.Now()
	if opts.Workers <= 0 {
		opts.Workers = 1
	}

	summary := &RunSummary{RunID: o.newRunID(), State: StateInit}
	logger := logging.ForRun("pipeline", summary.RunID)
	logger.Info().Int("workers", opts.Workers).Msg("Pipeline run started")

	defer func() {
		summary.Duration = time.Since(start)
		runsTotal.WithLabelValues(string(summary.State)).Inc()
	}()

	table, err := o.schema.EnsureTable(ctx)
	if err != nil {
		summary.State = StateFailed
		logger.Error().Err(err).Msg("Failed to prepare destination table")
		return summary, fmt.Errorf("ensure schema: %w", err)
	}

	o.enter(summary, StateExtracting, logger)
	stageStart := time.Now()
	raws := o.extractor.Extract(ctx, opts.Workers)
	stageDuration.WithLabelValues(string(StateExtracting)).Observe(time.Since(stageStart).Seconds())
	summary.Extracted = len(raws)

	if len(raws) == 0 {
		o.enter(summary, StateStopped, logger)
		logger.Warn().Msg("No data extracted. Stopping pipeline.")
		return summary, nil
	}

	// Transform and aggregate read the same batch independently.
	o.enter(summary, StateTransforming, logger)
	var (
		wg          sync.WaitGroup
		transformed []catalog.NormalizedRecord
		report      catalog.AggregationReport
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		t := time.Now()
		transformed = o.transformer.Transform(ctx, raws, opts.Workers)
		stageDuration.WithLabelValues(string(StateTransforming)).Observe(time.Since(t).Seconds())
	}()
	go func() {
		defer wg.Done()
		t := time.Now()
		report = o.aggregator.Run(raws)
		stageDuration.WithLabelValues(string(StateAggregating)).Observe(time.Since(t).Seconds())
	}()
	wg.Wait()
	o.enter(summary, StateAggregating, logger)

	summary.Transformed = len(transformed)
	summary.Report = &report

	o.enter(summary, StateLoading, logger)
	stageStart = time.Now()
	outcome := o.loader.WithLogger(logger.With().Str("stage", "load").Logger()).Load(ctx, transformed, table)
	stageDuration.WithLabelValues(string(StateLoading)).Observe(time.Since(stageStart).Seconds())
	summary.Loaded = outcome.Rows
	summary.LoadErr = outcome.Err
	loadedRecords.Set(float64(outcome.Rows))

	o.enter(summary, StateDone, logger)
	logger.Info().
		Int("extracted", summary.Extracted).
		Int("transformed", summary.Transformed).
		Int("loaded", summary.Loaded).
		Dur("duration", time.Since(start)).
		Msg("Pipeline completed successfully")

	return summary, nil
}

func (o *Orchestrator) enter(summary *RunSummary, state State, logger zerolog.Logger) {
	logger.Debug().Str("from", string(summary.State)).Str("to", string(state)).Msg("Pipeline state change")
	summary.State = state
}
