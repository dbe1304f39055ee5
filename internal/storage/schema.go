package storage

import (
	"fmt"

	"github.com/harshithgowdakt/granulestore/internal/granularity"
	"github.com/harshithgowdakt/granulestore/internal/types"
)

// ColumnDef defines a column in a table schema.
type ColumnDef struct {
	Name     string
	DataType types.DataType
}

// TableSchema defines the schema and engine settings for a MergeTree table.
type TableSchema struct {
	Columns     []ColumnDef
	OrderBy     []string // primary key column names (ORDER BY clause)
	PartitionBy string   // single column name or empty
	Settings    granularity.Settings
}

// GetColumnDef returns the ColumnDef for a column name.
func (s *TableSchema) GetColumnDef(name string) (ColumnDef, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDef{}, false
}

// ColumnNames returns all column names in order.
func (s *TableSchema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnTypes returns all column types in order.
func (s *TableSchema) ColumnTypes() []types.DataType {
	dts := make([]types.DataType, len(s.Columns))
	for i, c := range s.Columns {
		dts[i] = c.DataType
	}
	return dts
}

// ColumnIndex returns the position of a column in the schema.
func (s *TableSchema) ColumnIndex(name string) (int, bool) {
	for i, c := range s.Columns {
		if c.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Validate checks keys reference schema columns and the settings are sane.
func (s *TableSchema) Validate() error {
	if len(s.Columns) == 0 {
		return fmt.Errorf("table has no columns")
	}
	for _, k := range s.OrderBy {
		if _, ok := s.GetColumnDef(k); !ok {
			return fmt.Errorf("ORDER BY column %s not in schema", k)
		}
	}
	if s.PartitionBy != "" {
		if _, ok := s.GetColumnDef(s.PartitionBy); !ok {
			return fmt.Errorf("PARTITION BY column %s not in schema", s.PartitionBy)
		}
	}
	return s.Settings.Validate()
}
