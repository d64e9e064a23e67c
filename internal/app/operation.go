package app

import (
	"maps"
	"slices"
	"time"
)

// Operation tracks one CLI or Lambda invocation. Its ID tags every log line
// written during the invocation and doubles as the batch invocation id for
// locally run scans.
type Operation struct {
	ID      string
	Command string
	Started time.Time
	Results map[string]int // result code -> count
}

// NewOperation creates a new operation.
func NewOperation(id, command string, started time.Time) *Operation {
	return &Operation{
		ID:      id,
		Command: command,
		Started: started,
		Results: make(map[string]int),
	}
}

// Record counts one task result.
func (op *Operation) Record(code string) {
	op.Results[code]++
}

// Total returns the number of recorded results.
func (op *Operation) Total() int {
	total := 0
	for _, n := range op.Results {
		total += n
	}
	return total
}

// Codes returns the recorded result codes in sorted order.
func (op *Operation) Codes() []string {
	return slices.Sorted(maps.Keys(op.Results))
}
