package granularity

import (
	"fmt"
	"strings"
)

// PartType is the on-disk layout of a data part.
type PartType uint8

const (
	// PartWide stores every column in its own file.
	PartWide PartType = iota
	// PartCompact stores all columns in one file, granule by granule.
	PartCompact
)

func (t PartType) String() string {
	switch t {
	case PartWide:
		return "Wide"
	case PartCompact:
		return "Compact"
	default:
		return "Unknown"
	}
}

// ParsePartType parses "Wide" or "Compact", case-insensitively.
func ParsePartType(s string) (PartType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "wide":
		return PartWide, nil
	case "compact":
		return PartCompact, nil
	default:
		return 0, fmt.Errorf("unknown part type: %q", s)
	}
}

// MarkType describes the layout of a mark file.
type MarkType struct {
	// Adaptive marks carry the row count of each granule.
	Adaptive   bool
	Compressed bool
	PartType   PartType
}

// FileExtension returns the mark file extension including the leading dot.
func (m MarkType) FileExtension() string {
	ext := ".mrk"
	if m.Compressed {
		ext = ".cmrk"
	}
	if !m.Adaptive {
		return ext
	}
	switch m.PartType {
	case PartCompact:
		return ext + "3"
	default:
		return ext + "2"
	}
}

// Valid reports whether the combination can exist on disk.
func (m MarkType) Valid() bool {
	return m.Adaptive || m.PartType == PartWide
}

func (m MarkType) String() string {
	return fmt.Sprintf("MarkType(adaptive: %v, compressed: %v, part_type: %s)", m.Adaptive, m.Compressed, m.PartType)
}

// ParseMarkType maps a mark file extension back to its MarkType.
func ParseMarkType(ext string) (MarkType, error) {
	rest := ext
	var m MarkType
	switch {
	case strings.HasPrefix(rest, ".cmrk"):
		m.Compressed = true
		rest = strings.TrimPrefix(rest, ".cmrk")
	case strings.HasPrefix(rest, ".mrk"):
		rest = strings.TrimPrefix(rest, ".mrk")
	default:
		return MarkType{}, fmt.Errorf("mark file extension %q does not start with .mrk or .cmrk", ext)
	}
	switch rest {
	case "":
		m.PartType = PartWide
	case "2":
		m.Adaptive = true
		m.PartType = PartWide
	case "3":
		m.Adaptive = true
		m.PartType = PartCompact
	default:
		return MarkType{}, fmt.Errorf("unknown mark file extension %q", ext)
	}
	return m, nil
}

// Info describes how the marks of one part are laid out.
type Info struct {
	MarkType              MarkType
	FixedIndexGranularity int
	IndexGranularityBytes int
}

// NewInfo returns the granularity info for a new part of the given type.
// adaptive is usually CanUseAdaptiveGranularity for the owning table.
func NewInfo(settings Settings, partType PartType, adaptive bool) Info {
	info := Info{
		MarkType:              MarkType{Adaptive: adaptive, Compressed: settings.CompressMarks, PartType: partType},
		FixedIndexGranularity: settings.IndexGranularity,
	}
	if adaptive {
		info.IndexGranularityBytes = settings.IndexGranularityBytes
	}
	return info
}

// CanUseAdaptiveGranularity reports whether a table may write adaptive marks.
// Tables holding non-adaptive parts only switch when mixed parts are allowed.
func CanUseAdaptiveGranularity(settings Settings, hasNonAdaptiveParts bool) bool {
	return settings.AdaptiveEnabled() && (settings.EnableMixedGranularityParts || !hasNonAdaptiveParts)
}

// ChoosePartType picks the compact layout for small parts. Compact parts
// need adaptive marks, so non-adaptive tables always get wide parts.
func ChoosePartType(rows, bytes int, settings Settings, adaptive bool) PartType {
	if !adaptive {
		return PartWide
	}
	if rows < settings.MinRowsForWidePart || bytes < settings.MinBytesForWidePart {
		return PartCompact
	}
	return PartWide
}

// MarkSizeInBytes returns the size of one mark for a part with columns columns.
func (i Info) MarkSizeInBytes(columns int) int {
	switch {
	case !i.MarkType.Adaptive:
		return 16
	case i.MarkType.PartType == PartCompact:
		return columns*16 + 8
	default:
		return 24
	}
}

// MarksFileExtension is shorthand for i.MarkType.FileExtension().
func (i Info) MarksFileExtension() string {
	return i.MarkType.FileExtension()
}

func (i Info) String() string {
	return fmt.Sprintf("%s, index_granularity: %d, index_granularity_bytes: %d",
		i.MarkType, i.FixedIndexGranularity, i.IndexGranularityBytes)
}
