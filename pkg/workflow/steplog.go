package workflow

import "encoding/json"

const stepLogChunk = 32

// StepLog is an append-only, index-addressed log of step results. Entries
// live in fixed-size chunks so appending never moves existing results.
type StepLog struct {
	chunks [][]StepResult
	n      int
}

// NewStepLog creates a log holding results, re-indexed from zero.
func NewStepLog(results ...StepResult) *StepLog {
	l := &StepLog{}
	for _, r := range results {
		l.Append(r)
	}
	return l
}

// Append stores r at the next index and returns that index.
func (l *StepLog) Append(r StepResult) int {
	if l.n%stepLogChunk == 0 {
		l.chunks = append(l.chunks, make([]StepResult, 0, stepLogChunk))
	}
	r.Index = l.n
	last := len(l.chunks) - 1
	l.chunks[last] = append(l.chunks[last], r)
	l.n++
	return r.Index
}

// At returns the result at index i.
func (l *StepLog) At(i int) (StepResult, bool) {
	if i < 0 || i >= l.n {
		return StepResult{}, false
	}
	return l.chunks[i/stepLogChunk][i%stepLogChunk], true
}

// Len returns the number of results.
func (l *StepLog) Len() int {
	return l.n
}

// Last returns the most recent result.
func (l *StepLog) Last() (StepResult, bool) {
	return l.At(l.n - 1)
}

// Results copies the log into a slice.
func (l *StepLog) Results() []StepResult {
	out := make([]StepResult, 0, l.n)
	for _, c := range l.chunks {
		out = append(out, c...)
	}
	return out
}

// Clone returns an independent copy of the log.
func (l *StepLog) Clone() *StepLog {
	c := &StepLog{n: l.n, chunks: make([][]StepResult, len(l.chunks))}
	for i, chunk := range l.chunks {
		c.chunks[i] = append(make([]StepResult, 0, stepLogChunk), chunk...)
	}
	return c
}

// MarshalJSON encodes the log as an array.
func (l StepLog) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Results())
}

// UnmarshalJSON decodes an array of results.
func (l *StepLog) UnmarshalJSON(data []byte) error {
	var results []StepResult
	if err := json.Unmarshal(data, &results); err != nil {
		return err
	}
	*l = *NewStepLog(results...)
	return nil
}
