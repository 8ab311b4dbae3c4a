package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/Sternrassler/nft-catalog-etl/pkg/pipeline"
	"github.com/jedib0t/go-pretty/v6/table"
)

// topOwners bounds the owner rows in the breakdown table.
const topOwners = 10

// renderSummary prints the run summary and, when the run got that far, the
// aggregation breakdown.
func renderSummary(w io.Writer, s *pipeline.RunSummary) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Pipeline run")
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRows([]table.Row{
		{"Run ID", s.RunID},
		{"State", s.State},
		{"Extracted", s.Extracted},
		{"Transformed", s.Transformed},
		{"Loaded", s.Loaded},
		{"Duration", s.Duration.Round(time.Millisecond)},
	})
	if s.LoadErr != nil {
		t.AppendRow(table.Row{"Load error", s.LoadErr.Error()})
	}
	t.Render()

	if s.Report == nil {
		return nil
	}

	r := s.Report
	b := table.NewWriter()
	b.SetOutputMirror(w)
	b.SetStyle(table.StyleLight)
	b.SetTitle("Aggregation")
	b.AppendHeader(table.Row{"Group", "Key", "Count"})
	b.AppendRow(table.Row{"total", "", r.Total})
	b.AppendRow(table.Row{"twitter", "", r.WithSocialHandle})
	b.AppendSeparator()
	appendCounts(b, "chain", r.CountsByChain, 0)
	b.AppendSeparator()
	appendCounts(b, "category", r.CountsByCategory, 0)
	b.AppendSeparator()
	appendCounts(b, "owner", r.CountsByOwner, topOwners)
	if len(r.CountsByOwner) > topOwners {
		b.AppendFooter(table.Row{"", fmt.Sprintf("%d more owners", len(r.CountsByOwner)-topOwners), ""})
	}
	b.Render()
	return nil
}

// appendCounts adds one row per key, highest count first. limit <= 0 means
// no limit.
func appendCounts(t table.Writer, group string, counts map[string]int, limit int) {
	keys := sortedByCount(counts)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	for _, k := range keys {
		t.AppendRow(table.Row{group, k, counts[k]})
	}
}

func sortedByCount(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}
