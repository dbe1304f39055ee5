package server

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/harshithgowdakt/granulestore/internal/column"
	"github.com/harshithgowdakt/granulestore/internal/types"
)

// OutputFormat specifies the result format.
type OutputFormat string

const (
	FormatTabSeparated OutputFormat = "TabSeparated"
	FormatJSON         OutputFormat = "JSON"
	FormatCSV          OutputFormat = "CSV"
)

// ParseFormat parses a format string (case-insensitive).
func ParseFormat(s string) OutputFormat {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "csv":
		return FormatCSV
	default:
		return FormatTabSeparated
	}
}

// FormatBlock writes a result block in the specified format.
func FormatBlock(w io.Writer, block *column.Block, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return formatJSON(w, block)
	case FormatCSV:
		return formatDelimited(w, block, ",", quoteCSV)
	default:
		return formatDelimited(w, block, "\t", func(s string) string { return s })
	}
}

func formatDelimited(w io.Writer, block *column.Block, sep string, quote func(string) string) error {
	header := make([]string, len(block.ColumnNames))
	for i, name := range block.ColumnNames {
		header[i] = quote(name)
	}
	if _, err := fmt.Fprintln(w, strings.Join(header, sep)); err != nil {
		return err
	}

	vals := make([]string, block.NumColumns())
	for row := range block.NumRows() {
		for c, col := range block.Columns {
			s := formatValue(col.DataType(), col.Value(row))
			if col.DataType() == types.TypeString {
				s = quote(s)
			}
			vals[c] = s
		}
		if _, err := fmt.Fprintln(w, strings.Join(vals, sep)); err != nil {
			return err
		}
	}
	return nil
}

func formatJSON(w io.Writer, block *column.Block) error {
	type metaJSON struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	type resultJSON struct {
		Meta []metaJSON       `json:"meta"`
		Data []map[string]any `json:"data"`
		Rows int              `json:"rows"`
	}

	result := resultJSON{Rows: block.NumRows(), Data: []map[string]any{}}
	for i, name := range block.ColumnNames {
		result.Meta = append(result.Meta, metaJSON{Name: name, Type: block.Columns[i].DataType().Name()})
	}
	for row := range block.NumRows() {
		rowMap := make(map[string]any, block.NumColumns())
		for c, name := range block.ColumnNames {
			rowMap[name] = block.Columns[c].Value(row)
		}
		result.Data = append(result.Data, rowMap)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func formatValue(dt types.DataType, v types.Value) string {
	switch dt {
	case types.TypeFloat32:
		return fmt.Sprintf("%g", v.(float32))
	case types.TypeFloat64:
		return fmt.Sprintf("%g", v.(float64))
	default:
		return types.ValueToString(dt, v)
	}
}

func quoteCSV(v string) string {
	if strings.ContainsAny(v, ",\"\n") {
		return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
	}
	return v
}
