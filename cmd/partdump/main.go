package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harshithgowdakt/granulestore/internal/compression"
	"github.com/harshithgowdakt/granulestore/internal/granularity"
	"github.com/harshithgowdakt/granulestore/internal/storage"
	"github.com/harshithgowdakt/granulestore/internal/types"
)

type markJSON struct {
	Mark                    int      `json:"mark"`
	Rows                    int      `json:"rows"`
	StartingRow             int      `json:"starting_row"`
	OffsetInCompressedFile  []uint64 `json:"offset_in_compressed_file"`
	OffsetInDecompressedBlk []uint64 `json:"offset_in_decompressed_block"`
}

type binBlockJSON struct {
	Offset           uint64 `json:"offset"`
	MethodByte       uint8  `json:"method_byte"`
	CompressedBytes  uint32 `json:"compressed_bytes_with_header"`
	UncompressedSize uint32 `json:"uncompressed_bytes"`
}

type binJSON struct {
	FileSize int64          `json:"file_size"`
	Blocks   []binBlockJSON `json:"blocks"`
}

type granularityJSON struct {
	Describe       string `json:"describe"`
	MarksCount     int    `json:"marks_count"`
	TotalRows      int    `json:"total_rows"`
	HasFinalMark   bool   `json:"has_final_mark"`
	FileExtension  string `json:"marks_file_extension"`
	MarkSizeInByte int    `json:"mark_size_in_bytes"`
}

type primaryMarkJSON struct {
	Mark int               `json:"mark"`
	Keys map[string]string `json:"keys"`
}

type minmaxJSON struct {
	Column string `json:"column"`
	Type   string `json:"type"`
	Min    string `json:"min"`
	Max    string `json:"max"`
}

type dumpJSON struct {
	Table       string                `json:"table"`
	Part        string                `json:"part"`
	UUID        string                `json:"uuid"`
	PartType    string                `json:"part_type"`
	Info        string                `json:"granularity_info"`
	Granularity granularityJSON       `json:"granularity"`
	CountTxt    string                `json:"count_txt"`
	ColumnsTxt  string                `json:"columns_txt"`
	Marks       map[string][]markJSON `json:"marks"`
	BinSummary  map[string]binJSON    `json:"bin_summary"`
	PrimaryIdx  []primaryMarkJSON     `json:"primary_idx"`
	MinMaxIdx   *minmaxJSON           `json:"minmax_idx,omitempty"`
}

func main() {
	dataDir := flag.String("data-dir", "./granulestore-data", "Database data directory")
	tableName := flag.String("table", "", "Table name")
	partName := flag.String("part", "", "Part directory name (e.g. all_1_1_0)")
	flag.Parse()

	if *tableName == "" {
		fatalf("missing required -table")
	}

	db, err := storage.NewDatabase(*dataDir)
	if err != nil {
		fatalf("open database: %v", err)
	}

	table, ok := db.GetTable(*tableName)
	if !ok {
		fatalf("table %q not found", *tableName)
	}

	parts := table.GetActiveParts()
	if *partName == "" {
		summaries := make([]map[string]any, 0, len(parts))
		for _, p := range parts {
			summaries = append(summaries, map[string]any{
				"name":  p.Info.DirName(),
				"type":  p.Type.String(),
				"rows":  p.NumRows,
				"marks": p.MarksCount(),
			})
		}
		writeJSON(map[string]any{
			"table":        *tableName,
			"active_parts": summaries,
		})
		return
	}

	var part *storage.Part
	for _, p := range parts {
		if p.Info.DirName() == *partName {
			part = p
			break
		}
	}
	if part == nil {
		fatalf("part %q not found among active parts", *partName)
	}

	out, err := dumpPart(&table.Schema, *tableName, part)
	if err != nil {
		fatalf("dump part: %v", err)
	}
	writeJSON(out)
}

func dumpPart(schema *storage.TableSchema, tableName string, part *storage.Part) (*dumpJSON, error) {
	index := part.IndexGranularity()
	ginfo := part.GranularityInfo
	positions := 1
	if part.Type == granularity.PartCompact {
		positions = len(schema.Columns)
	}

	out := &dumpJSON{
		Table:    tableName,
		Part:     part.Info.DirName(),
		UUID:     part.UUID.String(),
		PartType: part.Type.String(),
		Info:     ginfo.String(),
		Granularity: granularityJSON{
			Describe:       index.Describe(),
			MarksCount:     index.MarksCount(),
			TotalRows:      index.TotalRows(),
			HasFinalMark:   index.HasFinalMark(),
			FileExtension:  ginfo.MarksFileExtension(),
			MarkSizeInByte: ginfo.MarkSizeInBytes(positions),
		},
		Marks:      make(map[string][]markJSON),
		BinSummary: make(map[string]binJSON),
	}

	if data, err := os.ReadFile(filepath.Join(part.BasePath, "count.txt")); err == nil {
		out.CountTxt = strings.TrimSpace(string(data))
	}
	if data, err := os.ReadFile(filepath.Join(part.BasePath, "columns.txt")); err == nil {
		out.ColumnsTxt = string(data)
	}

	for c, colDef := range schema.Columns {
		path, n := storage.MarksFile(part, schema, colDef.Name)
		marks, err := storage.ReadMarksFile(path, ginfo, n)
		if err != nil {
			return nil, fmt.Errorf("marks of %s: %w", colDef.Name, err)
		}
		pos := 0
		if part.Type == granularity.PartCompact {
			pos = c
		}

		j := make([]markJSON, 0, len(marks))
		offsets := make([]uint64, 0, len(marks))
		for m, mark := range marks {
			mj := markJSON{Mark: m}
			if m < index.MarksCount() {
				mj.Rows = index.MarkRows(m)
				mj.StartingRow = index.MarkStartingRow(m)
			}
			for _, p := range mark.Columns {
				mj.OffsetInCompressedFile = append(mj.OffsetInCompressedFile, p.OffsetInCompressedFile)
				mj.OffsetInDecompressedBlk = append(mj.OffsetInDecompressedBlk, p.OffsetInDecompressedBlock)
			}
			j = append(j, mj)
			if mj.Rows > 0 {
				offsets = append(offsets, mark.Columns[pos].OffsetInCompressedFile)
			}
		}
		out.Marks[filepath.Base(path)] = j

		bin, err := summarizeBin(storage.DataFile(part, colDef.Name), offsets)
		if err != nil {
			return nil, err
		}
		out.BinSummary[colDef.Name] = bin
	}

	reader := storage.NewPartReader(part, schema)
	if idx, err := reader.LoadPrimaryIndex(); err == nil {
		out.PrimaryIdx = make([]primaryMarkJSON, 0, idx.NumMarks())
		for m := range idx.NumMarks() {
			keys := make(map[string]string, len(idx.KeyColumns))
			for i, keyCol := range idx.KeyColumns {
				keys[keyCol] = types.ValueToString(idx.KeyTypes[i], idx.Values[m][i])
			}
			out.PrimaryIdx = append(out.PrimaryIdx, primaryMarkJSON{Mark: m, Keys: keys})
		}
	}

	if mm, err := reader.LoadMinMaxIndex(); err == nil && mm != nil {
		out.MinMaxIdx = &minmaxJSON{
			Column: mm.ColumnName,
			Type:   mm.DataType.Name(),
			Min:    types.ValueToString(mm.DataType, mm.Min),
			Max:    types.ValueToString(mm.DataType, mm.Max),
		}
	}
	return out, nil
}

func summarizeBin(path string, offsets []uint64) (binJSON, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return binJSON{}, err
	}
	bj := binJSON{FileSize: int64(len(data))}
	for _, off := range offsets {
		if off >= uint64(len(data)) {
			continue
		}
		block := data[off:]
		csz, usz, err := compression.ReadBlockHeader(block)
		if err != nil {
			continue
		}
		bj.Blocks = append(bj.Blocks, binBlockJSON{
			Offset:           off,
			MethodByte:       block[0],
			CompressedBytes:  csz,
			UncompressedSize: usz,
		})
	}
	return bj, nil
}

func writeJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatalf("encode json: %v", err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
