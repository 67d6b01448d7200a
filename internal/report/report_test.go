package report

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/getsentry/callprof/internal/calltimer"
	"github.com/getsentry/callprof/internal/testutil"
)

func tableOf(totals ...interface{}) *calltimer.Table {
	table := calltimer.NewTable()
	for i := 0; i < len(totals); i += 2 {
		key := totals[i].(string)
		table.RecordCall(key, 0)
		table.RecordReturn(key, totals[i+1].(time.Duration))
	}
	return table
}

func TestTop(t *testing.T) {
	tests := []struct {
		name  string
		table *calltimer.Table
		topK  int
		want  []Stat
	}{
		{
			name:  "ties keep insertion order",
			table: tableOf("a", 5*time.Second, "b", 9*time.Second, "c", 9*time.Second),
			topK:  2,
			want: []Stat{
				{Name: "b", Total: 9 * time.Second},
				{Name: "c", Total: 9 * time.Second},
			},
		},
		{
			name:  "topK larger than table",
			table: tableOf("a", time.Second, "b", 3*time.Second),
			topK:  10,
			want: []Stat{
				{Name: "b", Total: 3 * time.Second},
				{Name: "a", Total: time.Second},
			},
		},
		{
			name:  "empty table",
			table: calltimer.NewTable(),
			topK:  5,
			want:  []Stat{},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := Top(test.table, test.topK)
			if diff := testutil.Diff(got, test.want); diff != "" {
				t.Fatalf("Result mismatch: got - want +\n%s", diff)
			}
		})
	}
}

func TestTopDefaultLimit(t *testing.T) {
	table := calltimer.NewTable()
	for i := 0; i < DefaultTopK+5; i++ {
		key := fmt.Sprintf("f%d", i)
		table.RecordCall(key, 0)
		table.RecordReturn(key, time.Duration(i))
	}
	got := Top(table, 0)
	if len(got) != DefaultTopK {
		t.Fatalf("want %d stats, got %d", DefaultTopK, len(got))
	}
	if got[0].Name != fmt.Sprintf("f%d", DefaultTopK+4) {
		t.Fatalf("unexpected first stat %v", got[0])
	}
}

func TestTopDoesNotChangeTable(t *testing.T) {
	table := tableOf("a", time.Second, "b", 2*time.Second)
	_ = Top(table, 1)
	var keys []string
	for _, e := range table.Entries() {
		keys = append(keys, e.Key)
	}
	if diff := testutil.Diff(keys, []string{"a", "b"}); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	stats := []Stat{
		{Name: "pkg.(*Model).Forward", Total: 1234567 * time.Nanosecond},
		{Name: "math.Exp", Total: 2 * time.Microsecond},
	}
	if err := Write(&buf, stats); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Name | Time total\n" +
		"pkg.(*Model).Forward: 1.235ms\n" +
		"math.Exp: 0.002ms\n"
	if buf.String() != want {
		t.Fatalf("want %q, got %q", want, buf.String())
	}
}

func TestMetrics(t *testing.T) {
	table := calltimer.NewTable()
	key := "github.com/getsentry/callprof/internal/workload.(*Model).Forward"
	table.RecordCall(key, 0)
	table.RecordCall(key, 10)
	table.RecordReturn(key, 40)
	table.RecordReturn(key, 50)
	table.RecordCall("math.Exp", 60)

	got := Metrics(table, 0)
	want := []FunctionMetrics{
		{
			Name:          key,
			Package:       "github.com/getsentry/callprof/internal/workload",
			IsApplication: true,
			Sum:           80,
			Count:         2,
			Avg:           40,
			Max:           50,
		},
		{
			Name:    "math.Exp",
			Package: "math",
			Active:  1,
		},
	}
	if diff := testutil.Diff(got, want); diff != "" {
		t.Fatalf("Result mismatch: got - want +\n%s", diff)
	}
}
