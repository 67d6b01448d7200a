// Package report ranks the callables of a profiling table by cumulative time.
package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/getsentry/callprof/internal/calltimer"
	"github.com/getsentry/callprof/internal/frame"
	"github.com/getsentry/callprof/internal/packageutil"
)

// DefaultTopK is the number of callables reported when no limit is given.
const DefaultTopK = 20

type (
	Stat struct {
		Name  string
		Total time.Duration
	}

	FunctionMetrics struct {
		Name          string  `json:"name"`
		Package       string  `json:"package"`
		IsApplication bool    `json:"is_application"`
		Sum           uint64  `json:"sum"`
		Count         uint64  `json:"count"`
		Avg           float64 `json:"avg"`
		Max           uint64  `json:"max"`
		Active        int     `json:"active"`
	}
)

// Top returns the topK callables with the highest cumulative time, in
// descending order. Ties keep the order in which callables were first seen.
// A topK lower than 1 means DefaultTopK.
func Top(table *calltimer.Table, topK int) []Stat {
	entries := sorted(table)
	if topK < 1 {
		topK = DefaultTopK
	}
	if len(entries) > topK {
		entries = entries[:topK]
	}
	stats := make([]Stat, 0, len(entries))
	for _, e := range entries {
		stats = append(stats, Stat{Name: e.Key, Total: e.Cumulative})
	}
	return stats
}

// Write prints stats as a table, times in milliseconds.
func Write(w io.Writer, stats []Stat) error {
	if _, err := fmt.Fprintln(w, "Name | Time total"); err != nil {
		return err
	}
	for _, s := range stats {
		if _, err := fmt.Fprintf(w, "%s: %0.3fms\n", s.Name, Milliseconds(s.Total)); err != nil {
			return err
		}
	}
	return nil
}

// Milliseconds returns d as a floating-point number of milliseconds.
func Milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Metrics returns the metrics of the topK callables with the highest
// cumulative time, ordered like Top.
func Metrics(table *calltimer.Table, topK int) []FunctionMetrics {
	entries := sorted(table)
	if topK < 1 {
		topK = DefaultTopK
	}
	if len(entries) > topK {
		entries = entries[:topK]
	}
	metrics := make([]FunctionMetrics, 0, len(entries))
	for _, e := range entries {
		pkg, _ := frame.SplitFunctionName(e.Key)
		m := FunctionMetrics{
			Name:          e.Key,
			Package:       pkg,
			IsApplication: packageutil.IsGoApplicationPackage(pkg),
			Sum:           uint64(e.Cumulative),
			Count:         e.Calls,
			Max:           uint64(e.Max),
			Active:        e.Active(),
		}
		if e.Calls > 0 {
			m.Avg = float64(e.Cumulative) / float64(e.Calls)
		}
		metrics = append(metrics, m)
	}
	return metrics
}

func sorted(table *calltimer.Table) []*calltimer.Entry {
	entries := table.Entries()
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Cumulative > entries[j].Cumulative
	})
	return entries
}
