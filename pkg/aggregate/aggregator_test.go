package aggregate

import (
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/nft-catalog-etl/pkg/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reportTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestAggregate_CountingRules(t *testing.T) {
	raws := []catalog.RawRecord{
		{
			"owner":            "0xA",
			"twitter_username": "cats",
			"category":         "art",
			"contracts": []any{
				map[string]any{"address": "0x1", "chain": "ethereum"},
				map[string]any{"address": "0x2", "chain": "polygon"},
			},
		},
		{
			"owner":            "0xA",
			"twitter_username": "",
			"category":         "",
			"contracts": []any{
				map[string]any{"address": "0x3"},
				"garbage",
			},
		},
		{
			"twitter_username": nil,
			"category":         "gaming",
			"contracts":        "not-a-list",
		},
		{
			"owner":    nil,
			"category": "art",
		},
	}

	report := Aggregate(raws, reportTime)

	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 1, report.WithSocialHandle)
	assert.Equal(t, map[string]int{"0xA": 2, catalog.UnknownKey: 2}, report.CountsByOwner)
	assert.Equal(t, map[string]int{"ethereum": 1, "polygon": 1, catalog.UnknownKey: 1}, report.CountsByChain)
	assert.Equal(t, map[string]int{"art": 2, "gaming": 1}, report.CountsByCategory)
	assert.Equal(t, reportTime, report.ComputedAt)
}

func TestAggregate_OwnerCountsSumToTotal(t *testing.T) {
	raws := []catalog.RawRecord{
		{"owner": "a"}, {"owner": "b"}, {"owner": "a"}, {}, {"owner": 7.0}, {"owner": ""},
	}

	report := Aggregate(raws, reportTime)

	sum := 0
	for _, n := range report.CountsByOwner {
		sum += n
	}
	assert.Equal(t, len(raws), report.Total)
	assert.Equal(t, report.Total, sum)
	assert.Equal(t, 1, report.CountsByOwner["7"])
	assert.Equal(t, 1, report.CountsByOwner[""])
}

func TestAggregate_Empty(t *testing.T) {
	report := Aggregate(nil, reportTime)

	assert.Zero(t, report.Total)
	assert.Zero(t, report.WithSocialHandle)
	assert.Empty(t, report.CountsByOwner)
	assert.NotNil(t, report.CountsByChain)
}

type recordingSink struct {
	prefix string
	value  any
	err    error
}

func (s *recordingSink) WriteJSON(prefix string, v any) (string, error) {
	s.prefix = prefix
	s.value = v
	return "raw_data/" + prefix + ".json", s.err
}

func TestAggregator_RunWritesReport(t *testing.T) {
	sink := &recordingSink{}
	agg := NewAggregator(sink)
	agg.now = func() time.Time { return reportTime }

	report := agg.Run([]catalog.RawRecord{{"owner": "x"}})

	assert.Equal(t, ReportPrefix, sink.prefix)
	written, ok := sink.value.(catalog.AggregationReport)
	require.True(t, ok)
	assert.Equal(t, report, written)
	assert.Equal(t, 1, written.Total)
}

func TestAggregator_RunSurvivesSinkFailure(t *testing.T) {
	agg := NewAggregator(&recordingSink{err: errors.New("disk full")})

	report := agg.Run([]catalog.RawRecord{{"owner": "x"}, {"owner": "y"}})
	assert.Equal(t, 2, report.Total)
}

func TestAggregator_NilSink(t *testing.T) {
	report := NewAggregator(nil).Run([]catalog.RawRecord{{}})
	assert.Equal(t, 1, report.Total)
}
