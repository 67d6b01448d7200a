// Package calltimer aggregates call durations per callable.
//
// Every callable owns a stack of start timestamps: a call pushes, the
// matching return pops the most recent one. Recursive and re-entrant calls
// are therefore paired in LIFO order regardless of how they interleave with
// other callables.
//
// A Table is not safe for concurrent use. It is meant to be fed
// synchronously from the single instrumented thread.
package calltimer

import (
	"time"
)

type (
	Entry struct {
		Key string `json:"name"`
		// Cumulative is the sum of the durations of every completed call.
		Cumulative time.Duration `json:"cumulative_ns"`
		// Calls is the number of completed calls.
		Calls uint64 `json:"calls"`
		// Max is the longest completed call.
		Max time.Duration `json:"max_ns"`

		starts []time.Duration
	}

	Table struct {
		entries map[string]*Entry
		order   []*Entry
	}
)

func NewTable() *Table {
	return &Table{
		entries: make(map[string]*Entry),
	}
}

// Active returns the number of calls still waiting for their return.
func (e *Entry) Active() int {
	return len(e.starts)
}

// RecordCall pushes the start timestamp of a new invocation of key.
func (t *Table) RecordCall(key string, ts time.Duration) {
	e, exists := t.entries[key]
	if !exists {
		e = &Entry{Key: key}
		t.entries[key] = e
		t.order = append(t.order, e)
	}
	e.starts = append(e.starts, ts)
}

// RecordReturn pops the most recent start timestamp of key and adds the
// elapsed time to its cumulative time. It returns false, and changes nothing,
// if key has no pending call.
func (t *Table) RecordReturn(key string, ts time.Duration) (time.Duration, bool) {
	e, exists := t.entries[key]
	if !exists || len(e.starts) == 0 {
		return 0, false
	}
	i := len(e.starts) - 1
	start := e.starts[i]
	e.starts = e.starts[:i]

	elapsed := ts - start
	e.Cumulative += elapsed
	e.Calls++
	if elapsed > e.Max {
		e.Max = elapsed
	}
	return elapsed, true
}

// Get returns the entry for key.
func (t *Table) Get(key string) (*Entry, bool) {
	e, exists := t.entries[key]
	return e, exists
}

// Entries returns every entry in the order their key was first seen.
func (t *Table) Entries() []*Entry {
	entries := make([]*Entry, len(t.order))
	copy(entries, t.order)
	return entries
}

func (t *Table) Len() int {
	return len(t.order)
}

// Unmatched returns the keys with calls still waiting for their return, in
// first seen order.
func (t *Table) Unmatched() []string {
	var keys []string
	for _, e := range t.order {
		if len(e.starts) > 0 {
			keys = append(keys, e.Key)
		}
	}
	return keys
}
