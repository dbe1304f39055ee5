package granularity

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tableKinds builds an empty table of every implementation able to hold marks
// of up to stride rows.
func tableKinds(t *testing.T, stride int) map[string]Table {
	t.Helper()
	c, err := NewConstant(stride)
	require.NoError(t, err)
	return map[string]Table{
		"constant": c,
		"adaptive": NewAdaptive(),
	}
}

func appendAll(t *testing.T, tbl Table, rows ...int) {
	t.Helper()
	for _, r := range rows {
		require.NoError(t, tbl.AppendMark(r))
	}
}

func TestAppendMarkInvariants(t *testing.T) {
	sequences := [][]int{
		{8},
		{8, 8, 8},
		{8, 8, 3},
		{8, 8, 8, 8, 1},
	}
	for _, seq := range sequences {
		for name, tbl := range tableKinds(t, 8) {
			t.Run(name, func(t *testing.T) {
				appendAll(t, tbl, seq...)

				sum := 0
				for i, r := range seq {
					require.Equal(t, sum, tbl.MarkStartingRow(i))
					require.Equal(t, r, tbl.MarkRows(i))
					sum += r
				}
				require.Equal(t, len(seq), tbl.MarksCount())
				require.Equal(t, sum, tbl.TotalRows())
				require.Equal(t, sum, tbl.MarkStartingRow(len(seq)))
				require.False(t, tbl.HasFinalMark())

				for a := 0; a <= tbl.MarksCount(); a++ {
					for b := a; b <= tbl.MarksCount(); b++ {
						require.Equal(t, tbl.MarkStartingRow(b)-tbl.MarkStartingRow(a), tbl.RowsCountInRange(a, b), "range (%d, %d)", a, b)
					}
				}
			})
		}
	}
}

func TestFinalMark(t *testing.T) {
	for name, tbl := range tableKinds(t, 10) {
		t.Run(name, func(t *testing.T) {
			appendAll(t, tbl, 10, 10, 4, 0)

			require.True(t, tbl.HasFinalMark())
			require.Equal(t, 4, tbl.MarksCount())
			require.Equal(t, 3, MarksCountWithoutFinal(tbl))
			require.Equal(t, 24, tbl.TotalRows())
			require.Equal(t, 0, tbl.MarkRows(3))
			require.Equal(t, 24, tbl.MarkStartingRow(3))
			require.Equal(t, 24, tbl.MarkStartingRow(4))
			require.Equal(t, 0, LastMarkRows(tbl))
			require.Equal(t, 4, LastNonFinalMarkRows(tbl))
			require.Equal(t, 24, tbl.RowsCountInRange(0, 4))

			err := tbl.AppendMark(10)
			require.Error(t, err)
			require.True(t, errors.IsAssertionFailure(err))

			require.NoError(t, tbl.AdjustLastMark(0))
			require.Error(t, tbl.AdjustLastMark(1))
		})
	}
}

func TestFinalMarkOnEmptyTable(t *testing.T) {
	for name, tbl := range tableKinds(t, 10) {
		t.Run(name, func(t *testing.T) {
			err := tbl.AppendMark(0)
			require.Error(t, err)
			require.True(t, errors.IsAssertionFailure(err))
			require.True(t, Empty(tbl))
		})
	}
}

func TestAddRowsToLastMark(t *testing.T) {
	t.Run("empty table behaves like append", func(t *testing.T) {
		for name, tbl := range tableKinds(t, 10) {
			t.Run(name, func(t *testing.T) {
				require.NoError(t, AddRowsToLastMark(tbl, 7))
				require.Equal(t, 1, tbl.MarksCount())
				require.Equal(t, 7, tbl.MarkRows(0))
				require.Equal(t, 7, tbl.TotalRows())
			})
		}
	})

	t.Run("grows last mark", func(t *testing.T) {
		for name, tbl := range tableKinds(t, 10) {
			t.Run(name, func(t *testing.T) {
				appendAll(t, tbl, 10, 4)
				require.NoError(t, AddRowsToLastMark(tbl, 3))
				require.Equal(t, 2, tbl.MarksCount())
				require.Equal(t, 7, tbl.MarkRows(1))
				require.Equal(t, 17, tbl.TotalRows())
			})
		}
	})

	t.Run("fails after final mark", func(t *testing.T) {
		for name, tbl := range tableKinds(t, 10) {
			t.Run(name, func(t *testing.T) {
				appendAll(t, tbl, 10, 0)
				err := AddRowsToLastMark(tbl, 1)
				require.Error(t, err)
				require.True(t, errors.IsAssertionFailure(err))
				require.Equal(t, 10, tbl.TotalRows())
			})
		}
	})
}

func TestCountMarksForRows(t *testing.T) {
	for name, tbl := range tableKinds(t, 10) {
		t.Run(name, func(t *testing.T) {
			appendAll(t, tbl, 10, 10, 10, 5, 0)

			tests := []struct {
				from, rows, want int
			}{
				{0, 0, 0},
				{0, 1, 1},
				{0, 10, 1},
				{0, 11, 2},
				{0, 30, 3},
				{0, 31, 4},
				{0, 35, 4},
				{0, 1000, 4},
				{1, 10, 1},
				{1, 15, 2},
				{2, 11, 2},
				{3, 5, 1},
				{3, 6, 1},
				{4, 10, 0},
			}
			for _, tt := range tests {
				assert.Equal(t, tt.want, tbl.CountMarksForRows(tt.from, tt.rows), "from=%d rows=%d", tt.from, tt.rows)
			}
		})
	}
}

func TestCountMarksForRowsCoversRequest(t *testing.T) {
	c, err := NewConstant(7)
	require.NoError(t, err)
	a := NewAdaptive()
	for i := 0; i < 20; i++ {
		require.NoError(t, c.AppendMark(7))
	}
	appendAll(t, a, 3, 9, 1, 12, 7, 7, 2, 30, 5)

	for _, tbl := range []Table{c, a} {
		for from := 0; from < tbl.MarksCount(); from++ {
			for rows := 1; rows <= tbl.TotalRows(); rows++ {
				n := tbl.CountMarksForRows(from, rows)
				covered := tbl.RowsCountInRange(from, from+n)
				if covered < rows {
					require.Equal(t, tbl.MarksCount(), from+n, "%s: from=%d rows=%d", tbl.Describe(), from, rows)
					continue
				}
				// Minimal: one mark fewer is not enough.
				require.Less(t, tbl.RowsCountInRange(from, from+n-1), rows, "%s: from=%d rows=%d", tbl.Describe(), from, rows)
			}
		}
	}
}

func TestCountRowsForRows(t *testing.T) {
	for name, tbl := range tableKinds(t, 10) {
		t.Run(name, func(t *testing.T) {
			appendAll(t, tbl, 10, 10, 6)

			assert.Equal(t, 5, tbl.CountRowsForRows(0, 5, 0))
			assert.Equal(t, 20, tbl.CountRowsForRows(0, 20, 3))
			assert.Equal(t, 23, tbl.CountRowsForRows(0, 100, 3))
			assert.Equal(t, 6, tbl.CountRowsForRows(2, 100, 0))
			assert.Equal(t, 1, tbl.CountRowsForRows(2, 100, 5))
			assert.Equal(t, 0, tbl.CountRowsForRows(2, 100, 6))
			assert.Equal(t, 0, tbl.CountRowsForRows(3, 100, 0))
		})
	}
}

func TestOutOfRangePanics(t *testing.T) {
	for name, tbl := range tableKinds(t, 10) {
		t.Run(name, func(t *testing.T) {
			appendAll(t, tbl, 10, 10)

			require.Panics(t, func() { tbl.MarkRows(2) })
			require.Panics(t, func() { tbl.MarkRows(-1) })
			require.Panics(t, func() { tbl.MarkStartingRow(3) })
			require.Panics(t, func() { tbl.RowsCountInRange(0, 3) })
			require.Panics(t, func() { tbl.RowsCountInRange(2, 1) })
			require.Panics(t, func() { tbl.CountMarksForRows(3, 1) })
		})
	}
}

func TestRowsCountInRanges(t *testing.T) {
	a := NewAdaptive()
	appendAll(t, a, 5, 6, 7, 8, 0)

	ranges := MarkRanges{{Begin: 0, End: 1}, {Begin: 2, End: 4}}
	require.NoError(t, ranges.Validate(a.MarksCount()))
	require.Equal(t, 3, ranges.TotalMarks())
	require.Equal(t, 5+7+8, RowsCountInRanges(a, ranges))
	require.Equal(t, 0, RowsCountInRanges(a, nil))
	require.Equal(t, "[(0, 1), (2, 4)]", ranges.String())
}

func TestMarkRangesValidate(t *testing.T) {
	tests := []struct {
		name    string
		ranges  MarkRanges
		wantErr bool
	}{
		{"empty", nil, false},
		{"adjacent", MarkRanges{{0, 2}, {2, 4}}, false},
		{"reversed", MarkRanges{{2, 1}}, true},
		{"past end", MarkRanges{{3, 6}}, true},
		{"overlapping", MarkRanges{{0, 3}, {2, 4}}, true},
		{"negative", MarkRanges{{-1, 1}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ranges.Validate(5)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}
