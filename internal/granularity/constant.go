package granularity

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Constant stores granularity where every data mark except the last has the
// same number of rows. Space is O(1) regardless of the number of marks.
type Constant struct {
	constantGranularity  int
	lastMarkGranularity  int
	numMarksWithoutFinal int
	hasFinalMark         bool
}

var _ Table = (*Constant)(nil)

// NewConstant returns an empty table with stride rows per granule.
func NewConstant(granularity int) (*Constant, error) {
	if granularity <= 0 {
		return nil, errors.AssertionFailedf("constant granularity must be positive, got %d", granularity)
	}
	return &Constant{
		constantGranularity: granularity,
		lastMarkGranularity: granularity,
	}, nil
}

// RestoreConstant rebuilds a sealed table from its persisted scalars.
func RestoreConstant(granularity, lastMarkGranularity, numMarksWithoutFinal int, hasFinalMark bool) (*Constant, error) {
	switch {
	case granularity <= 0:
		return nil, errors.AssertionFailedf("constant granularity must be positive, got %d", granularity)
	case numMarksWithoutFinal < 0:
		return nil, errors.AssertionFailedf("negative number of marks %d", numMarksWithoutFinal)
	case numMarksWithoutFinal == 0 && hasFinalMark:
		return nil, errors.AssertionFailedf("final mark without any data mark")
	case numMarksWithoutFinal > 0 && (lastMarkGranularity <= 0 || lastMarkGranularity > granularity):
		return nil, errors.AssertionFailedf("last mark granularity %d is out of (0, %d]", lastMarkGranularity, granularity)
	}
	if numMarksWithoutFinal == 0 {
		lastMarkGranularity = granularity
	}
	return &Constant{
		constantGranularity:  granularity,
		lastMarkGranularity:  lastMarkGranularity,
		numMarksWithoutFinal: numMarksWithoutFinal,
		hasFinalMark:         hasFinalMark,
	}, nil
}

// Granularity returns the stride shared by all marks but the last.
func (c *Constant) Granularity() int { return c.constantGranularity }

// LastMarkGranularity returns the rows of the last data mark.
func (c *Constant) LastMarkGranularity() int { return c.lastMarkGranularity }

func (c *Constant) MarksCount() int {
	if c.hasFinalMark {
		return c.numMarksWithoutFinal + 1
	}
	return c.numMarksWithoutFinal
}

func (c *Constant) TotalRows() int {
	if c.numMarksWithoutFinal == 0 {
		return 0
	}
	return c.constantGranularity*(c.numMarksWithoutFinal-1) + c.lastMarkGranularity
}

func (c *Constant) HasFinalMark() bool { return c.hasFinalMark }

func (c *Constant) MarkRows(mark int) int {
	checkMarkIndex(mark, c.MarksCount())
	switch {
	case mark+1 < c.numMarksWithoutFinal:
		return c.constantGranularity
	case mark+1 == c.numMarksWithoutFinal:
		return c.lastMarkGranularity
	default:
		return 0
	}
}

func (c *Constant) MarkStartingRow(mark int) int {
	checkMarkBoundary(mark, c.MarksCount())
	if mark < c.numMarksWithoutFinal {
		return mark * c.constantGranularity
	}
	return c.TotalRows()
}

func (c *Constant) RowsCountInRange(begin, end int) int {
	checkRange(begin, end, c.MarksCount())
	return c.MarkStartingRow(end) - c.MarkStartingRow(begin)
}

func (c *Constant) CountMarksForRows(fromMark, rows int) int {
	start := c.MarkStartingRow(fromMark)
	if rows <= 0 || fromMark >= c.numMarksWithoutFinal {
		return 0
	}
	target := start + rows
	if target >= c.TotalRows() {
		return c.numMarksWithoutFinal - fromMark
	}
	// target < TotalRows, so the ceiling never passes numMarksWithoutFinal.
	toMark := (target + c.constantGranularity - 1) / c.constantGranularity
	return toMark - fromMark
}

func (c *Constant) CountRowsForRows(fromMark, rows, offsetInRows int) int {
	return availableRows(c.TotalRows(), c.MarkStartingRow(fromMark)+offsetInRows, rows)
}

func (c *Constant) AppendMark(rows int) error {
	switch {
	case c.hasFinalMark:
		return errors.AssertionFailedf("cannot append mark after final")
	case rows < 0:
		return errors.AssertionFailedf("cannot append mark with negative rows %d", rows)
	case rows == 0:
		if c.numMarksWithoutFinal == 0 {
			return errors.AssertionFailedf("cannot append final mark to empty granularity")
		}
		c.hasFinalMark = true
		return nil
	case rows > c.constantGranularity:
		return errors.AssertionFailedf("cannot append mark with %d rows, granularity is constant (%d)", rows, c.constantGranularity)
	case c.numMarksWithoutFinal > 0 && c.lastMarkGranularity != c.constantGranularity:
		return errors.AssertionFailedf("cannot append mark after mark with %d rows, granularity is constant (%d)",
			c.lastMarkGranularity, c.constantGranularity)
	}
	c.numMarksWithoutFinal++
	c.lastMarkGranularity = rows
	return nil
}

func (c *Constant) AdjustLastMark(rows int) error {
	if c.hasFinalMark {
		if rows != 0 {
			return errors.AssertionFailedf("cannot set non-zero number of rows to final mark")
		}
		return nil
	}
	switch {
	case c.numMarksWithoutFinal == 0:
		return errors.AssertionFailedf("cannot adjust last mark of empty granularity")
	case rows <= 0:
		return errors.AssertionFailedf("cannot adjust last mark to %d rows", rows)
	case rows > c.constantGranularity:
		return errors.AssertionFailedf("cannot adjust last mark to %d rows, granularity is constant (%d)", rows, c.constantGranularity)
	}
	c.lastMarkGranularity = rows
	return nil
}

func (c *Constant) ShrinkToFitInMemory() {}

func (c *Constant) Optimize() Table { return nil }

func (c *Constant) Describe() string {
	return fmt.Sprintf("Constant(constant_granularity: %d, last_mark_granularity: %d, num_marks_without_final: %d, has_final_mark: %v)",
		c.constantGranularity, c.lastMarkGranularity, c.numMarksWithoutFinal, c.hasFinalMark)
}
