package storage

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/harshithgowdakt/granulestore/internal/compression"
	"github.com/harshithgowdakt/granulestore/internal/granularity"
)

func TestMarksRoundTripLayouts(t *testing.T) {
	settings := granularity.DefaultSettings()
	tests := []struct {
		name    string
		info    granularity.Info
		columns int
		marks   []MarkWithRows
	}{
		{
			name:    "mrk",
			info:    granularity.NewInfo(settings, granularity.PartWide, false),
			columns: 1,
			marks: []MarkWithRows{
				{Columns: []Mark{{OffsetInCompressedFile: 0}}},
				{Columns: []Mark{{OffsetInCompressedFile: 120, OffsetInDecompressedBlock: 8}}},
			},
		},
		{
			name:    "mrk2",
			info:    granularity.NewInfo(settings, granularity.PartWide, true),
			columns: 1,
			marks: []MarkWithRows{
				{Columns: []Mark{{OffsetInCompressedFile: 0}}, Rows: 8192},
				{Columns: []Mark{{OffsetInCompressedFile: 4096}}, Rows: 100},
				{Columns: []Mark{{OffsetInCompressedFile: 5000}}},
			},
		},
		{
			name:    "mrk3",
			info:    granularity.NewInfo(settings, granularity.PartCompact, true),
			columns: 2,
			marks: []MarkWithRows{
				{Columns: []Mark{{OffsetInCompressedFile: 0}, {OffsetInCompressedFile: 64}}, Rows: 7},
				{Columns: []Mark{{OffsetInCompressedFile: 128}, {OffsetInCompressedFile: 192}}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeMarks(tt.info, tt.columns, tt.marks)
			if err != nil {
				t.Fatal(err)
			}
			if want := len(tt.marks) * tt.info.MarkSizeInBytes(tt.columns); len(data) != want {
				t.Fatalf("encoded %d bytes, want %d", len(data), want)
			}
			got, err := DecodeMarks(tt.info, tt.columns, data)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.marks) {
				t.Fatalf("got %+v, want %+v", got, tt.marks)
			}
		})
	}
}

func TestDecodeMarksRejectsTruncatedFile(t *testing.T) {
	info := granularity.NewInfo(granularity.DefaultSettings(), granularity.PartWide, true)
	if _, err := DecodeMarks(info, 1, make([]byte, 30)); err == nil {
		t.Fatal("expected error for 30 bytes of 24-byte marks")
	}
}

func TestEncodeMarksRejectsWrongPositionCount(t *testing.T) {
	info := granularity.NewInfo(granularity.DefaultSettings(), granularity.PartCompact, true)
	marks := []MarkWithRows{{Columns: []Mark{{}}, Rows: 1}}
	if _, err := EncodeMarks(info, 3, marks); err == nil {
		t.Fatal("expected error for 1 position with 3 columns")
	}
}

func TestCompressedMarksFile(t *testing.T) {
	settings := granularity.DefaultSettings()
	settings.CompressMarks = true
	info := granularity.NewInfo(settings, granularity.PartWide, true)

	marks := make([]MarkWithRows, 100)
	for i := range marks {
		marks[i] = MarkWithRows{Columns: []Mark{{OffsetInCompressedFile: uint64(i * 512)}}, Rows: 8192}
	}
	path := filepath.Join(t.TempDir(), "col"+info.MarksFileExtension())
	if err := WriteMarksFile(path, info, 1, marks, &compression.LZ4Codec{}); err != nil {
		t.Fatal(err)
	}
	got, err := ReadMarksFile(path, info, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, marks) {
		t.Fatal("compressed marks did not round trip")
	}
}
