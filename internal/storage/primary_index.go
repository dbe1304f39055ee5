package storage

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"github.com/harshithgowdakt/granulestore/internal/column"
	"github.com/harshithgowdakt/granulestore/internal/granularity"
	"github.com/harshithgowdakt/granulestore/internal/types"
)

// PrimaryIndex stores the ORDER BY key at the first row of every data mark.
type PrimaryIndex struct {
	KeyColumns []string
	KeyTypes   []types.DataType
	// Values[mark][keyColumnIndex] = value
	Values [][]types.Value
}

// NumMarks returns the number of indexed data marks.
func (idx *PrimaryIndex) NumMarks() int {
	return len(idx.Values)
}

// WritePrimaryIndex writes the primary index to a file.
func WritePrimaryIndex(path string, idx *PrimaryIndex) error {
	var buf bytes.Buffer
	for _, markValues := range idx.Values {
		for k, v := range markValues {
			if err := column.EncodeValue(&buf, idx.KeyTypes[k], v); err != nil {
				return fmt.Errorf("encoding primary index value: %w", err)
			}
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// ReadPrimaryIndex reads numMarks index entries from a file.
func ReadPrimaryIndex(path string, keyColumns []string, keyTypes []types.DataType, numMarks int) (*PrimaryIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(data)
	idx := &PrimaryIndex{
		KeyColumns: keyColumns,
		KeyTypes:   keyTypes,
		Values:     make([][]types.Value, numMarks),
	}
	for m := range numMarks {
		vals := make([]types.Value, len(keyColumns))
		for k, dt := range keyTypes {
			v, err := column.DecodeValue(r, dt)
			if err != nil {
				return nil, fmt.Errorf("reading primary index mark %d key %d: %w", m, k, err)
			}
			vals[k] = v
		}
		idx.Values[m] = vals
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("primary index has %d trailing bytes after %d marks", r.Len(), numMarks)
	}
	return idx, nil
}

// SelectMarkRanges returns the marks that could hold rows with
// minVal <= keyCol < maxVal. A nil bound is open. Only the leading key column
// is sorted across the whole part, so any other column selects every mark.
func (idx *PrimaryIndex) SelectMarkRanges(keyCol string, minVal, maxVal types.Value) granularity.MarkRanges {
	n := idx.NumMarks()
	if n == 0 {
		return nil
	}
	all := granularity.MarkRanges{{Begin: 0, End: n}}
	if len(idx.KeyColumns) == 0 || idx.KeyColumns[0] != keyCol {
		return all
	}
	dt := idx.KeyTypes[0]
	key := func(m int) types.Value { return idx.Values[m][0] }

	begin, end := 0, n
	if minVal != nil {
		// Mark m only holds rows below minVal when the next mark starts below it.
		begin = sort.Search(n-1, func(m int) bool {
			return types.CompareValues(dt, key(m+1), minVal) >= 0
		})
	}
	if maxVal != nil {
		end = sort.Search(n, func(m int) bool {
			return types.CompareValues(dt, key(m), maxVal) >= 0
		})
	}
	if begin >= end {
		return nil
	}
	return granularity.MarkRanges{{Begin: begin, End: end}}
}

func (s *TableSchema) keyTypes() ([]types.DataType, error) {
	keyTypes := make([]types.DataType, len(s.OrderBy))
	for i, keyName := range s.OrderBy {
		colDef, ok := s.GetColumnDef(keyName)
		if !ok {
			return nil, fmt.Errorf("ORDER BY column %s not in schema", keyName)
		}
		keyTypes[i] = colDef.DataType
	}
	return keyTypes, nil
}
