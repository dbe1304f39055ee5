package granularity

import (
	"fmt"
	"slices"
	"sort"

	"github.com/cockroachdb/errors"
)

// Adaptive stores an explicit row count per mark as inclusive prefix sums:
// marksRowsPartialSums[i] is the number of rows in marks [0, i].
type Adaptive struct {
	marksRowsPartialSums []int
}

var _ Table = (*Adaptive)(nil)

// NewAdaptive returns an empty table.
func NewAdaptive() *Adaptive {
	return &Adaptive{}
}

// RestoreAdaptive replays a persisted per-mark row sequence. A trailing zero
// is the final mark.
func RestoreAdaptive(marksRows []int) (*Adaptive, error) {
	a := &Adaptive{marksRowsPartialSums: make([]int, 0, len(marksRows))}
	for i, rows := range marksRows {
		if err := a.AppendMark(rows); err != nil {
			return nil, errors.Wrapf(err, "restoring mark %d", i)
		}
	}
	return a, nil
}

func (a *Adaptive) MarksCount() int {
	return len(a.marksRowsPartialSums)
}

func (a *Adaptive) TotalRows() int {
	if len(a.marksRowsPartialSums) == 0 {
		return 0
	}
	return a.marksRowsPartialSums[len(a.marksRowsPartialSums)-1]
}

func (a *Adaptive) HasFinalMark() bool {
	n := len(a.marksRowsPartialSums)
	return n > 0 && a.rowsAt(n-1) == 0
}

func (a *Adaptive) rowsAt(mark int) int {
	if mark == 0 {
		return a.marksRowsPartialSums[0]
	}
	return a.marksRowsPartialSums[mark] - a.marksRowsPartialSums[mark-1]
}

func (a *Adaptive) MarkRows(mark int) int {
	checkMarkIndex(mark, a.MarksCount())
	return a.rowsAt(mark)
}

func (a *Adaptive) MarkStartingRow(mark int) int {
	checkMarkBoundary(mark, a.MarksCount())
	if mark == 0 {
		return 0
	}
	return a.marksRowsPartialSums[mark-1]
}

func (a *Adaptive) RowsCountInRange(begin, end int) int {
	checkRange(begin, end, a.MarksCount())
	return a.MarkStartingRow(end) - a.MarkStartingRow(begin)
}

func (a *Adaptive) CountMarksForRows(fromMark, rows int) int {
	start := a.MarkStartingRow(fromMark)
	dataMarks := MarksCountWithoutFinal(a)
	if rows <= 0 || fromMark >= dataMarks {
		return 0
	}
	target := start + rows
	// First mark whose end reaches target; marks before fromMark end at or
	// before start < target, so the search never lands before fromMark.
	lastMark := sort.SearchInts(a.marksRowsPartialSums[:dataMarks], target)
	if lastMark == dataMarks {
		return dataMarks - fromMark
	}
	return lastMark + 1 - fromMark
}

func (a *Adaptive) CountRowsForRows(fromMark, rows, offsetInRows int) int {
	return availableRows(a.TotalRows(), a.MarkStartingRow(fromMark)+offsetInRows, rows)
}

func (a *Adaptive) AppendMark(rows int) error {
	switch {
	case a.HasFinalMark():
		return errors.AssertionFailedf("cannot append mark after final")
	case rows < 0:
		return errors.AssertionFailedf("cannot append mark with negative rows %d", rows)
	case rows == 0 && len(a.marksRowsPartialSums) == 0:
		return errors.AssertionFailedf("cannot append final mark to empty granularity")
	}
	a.marksRowsPartialSums = append(a.marksRowsPartialSums, a.TotalRows()+rows)
	return nil
}

func (a *Adaptive) AdjustLastMark(rows int) error {
	n := len(a.marksRowsPartialSums)
	switch {
	case n == 0:
		return errors.AssertionFailedf("cannot adjust last mark of empty granularity")
	case a.HasFinalMark():
		if rows != 0 {
			return errors.AssertionFailedf("cannot set non-zero number of rows to final mark")
		}
		return nil
	case rows <= 0:
		return errors.AssertionFailedf("cannot adjust last mark to %d rows", rows)
	}
	a.marksRowsPartialSums[n-1] = a.MarkStartingRow(n-1) + rows
	return nil
}

func (a *Adaptive) ShrinkToFitInMemory() {
	a.marksRowsPartialSums = slices.Clip(a.marksRowsPartialSums)
}

// Optimize collapses the table into a Constant when every data mark but the
// last has the same size and the last is not larger.
func (a *Adaptive) Optimize() Table {
	dataMarks := MarksCountWithoutFinal(a)
	if dataMarks == 0 {
		return nil
	}

	first := a.rowsAt(0)
	for i := 1; i < dataMarks-1; i++ {
		if a.rowsAt(i) != first {
			a.ShrinkToFitInMemory()
			return nil
		}
	}

	last := a.rowsAt(dataMarks - 1)
	if dataMarks == 1 {
		first = last
	}
	if last > first {
		a.ShrinkToFitInMemory()
		return nil
	}

	c, err := RestoreConstant(first, last, dataMarks, a.HasFinalMark())
	if err != nil {
		return nil
	}
	return c
}

// MarksRows returns a copy of the per-mark row counts.
func (a *Adaptive) MarksRows() []int {
	out := make([]int, len(a.marksRowsPartialSums))
	for i := range out {
		out[i] = a.rowsAt(i)
	}
	return out
}

func (a *Adaptive) Describe() string {
	return fmt.Sprintf("Adaptive(marks_rows_partial_sums: %v)", a.marksRowsPartialSums)
}
