package granularity

import "github.com/cockroachdb/errors"

// FillFromBlock appends the marks for one block of rowsInBlock rows split into
// granules of granularity rows.
//
// indexOffset is the number of leading rows that still belong to a granule
// opened by a previous block. The returned offset is the same quantity for the
// next block: a granule may be opened here and completed by later blocks.
//
// A short tail of a block either opens its own granule when it holds at least
// half a granule or is merged into the previous granule, so real granule sizes
// differ from granularity by at most 50%. Constant tables always step by their
// stride and rely on FinishFill to trim the last granule.
func FillFromBlock(t Table, rowsInBlock, granularity, indexOffset int) (int, error) {
	if c, ok := t.(*Constant); ok {
		granularity = c.Granularity()
	}
	if granularity <= 0 {
		return 0, errors.AssertionFailedf("granularity for block must be positive, got %d", granularity)
	}
	if indexOffset >= rowsInBlock {
		return indexOffset - rowsInBlock, nil
	}

	_, isConstant := t.(*Constant)
	current := indexOffset
	for current < rowsInBlock {
		left := rowsInBlock - current
		if !isConstant && left < granularity && (rowsInBlock >= granularity || indexOffset != 0) {
			var err error
			if left*2 >= granularity {
				err = t.AppendMark(left)
			} else {
				err = AddRowsToLastMark(t, left)
			}
			if err != nil {
				return 0, err
			}
			current += left
			continue
		}
		if err := t.AppendMark(granularity); err != nil {
			return 0, err
		}
		current += granularity
	}
	return current - rowsInBlock, nil
}

// FinishFill trims the last granule so the table covers exactly totalRows
// rows, then records the final mark when writeFinalMark is set.
func FinishFill(t Table, totalRows int, writeFinalMark bool) error {
	excess := t.TotalRows() - totalRows
	if excess < 0 {
		return errors.AssertionFailedf("granularity covers %d rows, part has %d", t.TotalRows(), totalRows)
	}
	if excess > 0 {
		if err := t.AdjustLastMark(LastMarkRows(t) - excess); err != nil {
			return err
		}
	}
	if writeFinalMark && !Empty(t) && !t.HasFinalMark() {
		return t.AppendMark(0)
	}
	return nil
}
