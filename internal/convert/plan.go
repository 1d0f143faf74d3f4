// Package convert turns one source file into rows of one destination table,
// resuming from whatever the table already holds.
//
// The table's row count is the only checkpoint. Plan maps it, the file's row
// count and the chunk size onto the next step; Driver runs that step in a
// loop, one bounded window at a time.
package convert

import "fmt"

// Decision is what Plan says to do next.
type Decision int

const (
	// Continue means read and append the window described by the Step.
	Continue Decision = iota
	// Done means the table already holds every row of the file.
	Done
	// Diverged means the counts are inconsistent; do not write.
	Diverged
)

func (d Decision) String() string {
	switch d {
	case Continue:
		return "continue"
	case Done:
		return "complete"
	case Diverged:
		return "divergent"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// ResumeState is derived from the two row counts. It is never persisted.
type ResumeState struct {
	TableRows  int64
	FileRows   int64
	ChunkIndex int64 // TableRows / chunk size
	Residue    int64 // TableRows % chunk size
}

// Step is the outcome of one planning call.
type Step struct {
	Decision Decision
	State    ResumeState
	Offset   int64 // first source row to read; equals State.TableRows
	Limit    int   // window size; the chunk size
	Reason   string
}

// Plan decides the next step from the destination row count, the source row
// count and the chunk size. It does no I/O.
//
// Only the last chunk of a file may be partial. A table that ends mid-chunk
// while the file still has a full chunk or more to give, or that holds more
// rows than the file, is reported as diverged.
func Plan(tableRows, fileRows int64, chunkSize int) (Step, error) {
	if chunkSize <= 0 {
		return Step{}, fmt.Errorf("convert: chunk size must be positive, got %d", chunkSize)
	}
	if tableRows < 0 || fileRows < 0 {
		return Step{}, fmt.Errorf("convert: negative row count (table=%d, file=%d)", tableRows, fileRows)
	}
	c := int64(chunkSize)
	st := ResumeState{
		TableRows:  tableRows,
		FileRows:   fileRows,
		ChunkIndex: tableRows / c,
		Residue:    tableRows % c,
	}
	step := Step{State: st, Offset: tableRows, Limit: chunkSize}

	remaining := fileRows - tableRows
	switch {
	case remaining < 0:
		step.Decision = Diverged
		step.Reason = fmt.Sprintf("table has %d rows, file only %d", tableRows, fileRows)
	case remaining == 0:
		step.Decision = Done
	case st.Residue != 0 && remaining >= c:
		step.Decision = Diverged
		step.Reason = fmt.Sprintf("table ends %d rows into chunk %d but file has %d more rows",
			st.Residue, st.ChunkIndex, remaining)
	default:
		step.Decision = Continue
	}
	return step, nil
}
