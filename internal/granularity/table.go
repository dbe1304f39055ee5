// Package granularity decides how many rows of a data part go into one mark
// and converts between row and mark coordinates for range scans and merges.
package granularity

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Table maps marks to the rows they cover. A table is filled by a single part
// writer, then sealed; after that it is only read and may be shared between
// goroutines without locking.
//
// Read accessors panic with an assertion failure on out-of-range marks. Mutators
// return assertion failures instead.
type Table interface {
	// RowsCountInRange returns the number of rows covered by marks [begin, end).
	RowsCountInRange(begin, end int) int
	// CountMarksForRows returns how many whole marks, starting at fromMark, are
	// needed to cover at least rows rows. Capped by the data marks left.
	CountMarksForRows(fromMark, rows int) int
	// CountRowsForRows returns how many of the requested rows exist when starting
	// offsetInRows rows into fromMark.
	CountRowsForRows(fromMark, rows, offsetInRows int) int

	MarksCount() int
	TotalRows() int
	MarkRows(mark int) int
	// MarkStartingRow accepts mark == MarksCount() and returns TotalRows() for it.
	MarkStartingRow(mark int) int
	HasFinalMark() bool

	// AppendMark adds a granule of rows rows. Zero rows records the final mark.
	AppendMark(rows int) error
	// AdjustLastMark overwrites the row count of the last appended granule.
	AdjustLastMark(rows int) error

	ShrinkToFitInMemory()
	// Optimize returns a more compact equivalent table, or nil.
	Optimize() Table
	Describe() string
}

// Empty reports whether the table has no marks at all.
func Empty(t Table) bool {
	return t.MarksCount() == 0
}

// MarksCountWithoutFinal returns the number of marks that hold data.
func MarksCountWithoutFinal(t Table) int {
	total := t.MarksCount()
	if total == 0 {
		return 0
	}
	if t.HasFinalMark() {
		return total - 1
	}
	return total
}

// LastMarkRows returns the rows of the last mark, 0 if it is the final mark.
func LastMarkRows(t Table) int {
	return t.MarkRows(t.MarksCount() - 1)
}

// LastNonFinalMarkRows returns the rows of the last mark that holds data.
func LastNonFinalMarkRows(t Table) int {
	if rows := LastMarkRows(t); rows != 0 {
		return rows
	}
	return t.MarkRows(t.MarksCount() - 2)
}

// AddRowsToLastMark grows the last granule by rows rows, or opens the first
// granule when the table is empty.
func AddRowsToLastMark(t Table, rows int) error {
	switch {
	case t.HasFinalMark():
		return errors.AssertionFailedf("cannot add rows to final mark")
	case Empty(t):
		return t.AppendMark(rows)
	default:
		return t.AdjustLastMark(LastMarkRows(t) + rows)
	}
}

// RowsCountInMarkRange returns the rows covered by r.
func RowsCountInMarkRange(t Table, r MarkRange) int {
	return t.RowsCountInRange(r.Begin, r.End)
}

// RowsCountInRanges sums the rows of every range. Ranges are assumed disjoint.
func RowsCountInRanges(t Table, ranges MarkRanges) int {
	total := 0
	for _, r := range ranges {
		total += RowsCountInMarkRange(t, r)
	}
	return total
}

// MarkRange is a half-open interval [Begin, End) of mark indices.
type MarkRange struct {
	Begin int
	End   int
}

// NumMarks returns End - Begin.
func (r MarkRange) NumMarks() int {
	return r.End - r.Begin
}

func (r MarkRange) String() string {
	return fmt.Sprintf("(%d, %d)", r.Begin, r.End)
}

// MarkRanges is an ordered scan plan.
type MarkRanges []MarkRange

// TotalMarks returns the number of marks across all ranges.
func (rs MarkRanges) TotalMarks() int {
	n := 0
	for _, r := range rs {
		n += r.NumMarks()
	}
	return n
}

// Validate checks every range lies within [0, marksCount] and that ranges are
// sorted and disjoint.
func (rs MarkRanges) Validate(marksCount int) error {
	prevEnd := 0
	for i, r := range rs {
		if r.Begin < 0 || r.Begin > r.End || r.End > marksCount {
			return errors.AssertionFailedf("mark range %d %s is out of bounds for %d marks", i, r, marksCount)
		}
		if r.Begin < prevEnd {
			return errors.AssertionFailedf("mark range %d %s overlaps previous range ending at %d", i, r, prevEnd)
		}
		prevEnd = r.End
	}
	return nil
}

func (rs MarkRanges) String() string {
	parts := make([]string, len(rs))
	for i, r := range rs {
		parts[i] = r.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func checkMarkIndex(mark, marksCount int) {
	if mark < 0 || mark >= marksCount {
		panic(errors.AssertionFailedf("trying to get non existing mark %d, while size is %d", mark, marksCount))
	}
}

func checkMarkBoundary(mark, marksCount int) {
	if mark < 0 || mark > marksCount {
		panic(errors.AssertionFailedf("trying to get starting row of non existing mark %d, while size is %d", mark, marksCount))
	}
}

func checkRange(begin, end, marksCount int) {
	if begin < 0 || begin > end || end > marksCount {
		panic(errors.AssertionFailedf("mark range (%d, %d) is out of bounds for %d marks", begin, end, marksCount))
	}
}

// availableRows caps rows by what remains after startRow.
func availableRows(totalRows, startRow, rows int) int {
	left := totalRows - startRow
	if left <= 0 {
		return 0
	}
	return min(rows, left)
}
