package granularity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkTypeFileExtension(t *testing.T) {
	tests := []struct {
		mark MarkType
		ext  string
	}{
		{MarkType{Adaptive: false, PartType: PartWide}, ".mrk"},
		{MarkType{Adaptive: true, PartType: PartWide}, ".mrk2"},
		{MarkType{Adaptive: true, PartType: PartCompact}, ".mrk3"},
		{MarkType{Adaptive: true, Compressed: true, PartType: PartWide}, ".cmrk2"},
		{MarkType{Adaptive: true, Compressed: true, PartType: PartCompact}, ".cmrk3"},
		{MarkType{Adaptive: false, Compressed: true, PartType: PartWide}, ".cmrk"},
	}
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			require.Equal(t, tt.ext, tt.mark.FileExtension())
			parsed, err := ParseMarkType(tt.ext)
			require.NoError(t, err)
			require.Equal(t, tt.mark, parsed)
			require.True(t, parsed.Valid())
		})
	}
}

func TestParseMarkTypeRejectsUnknown(t *testing.T) {
	for _, ext := range []string{".bin", ".mrk4", "mrk2", ""} {
		_, err := ParseMarkType(ext)
		assert.Error(t, err, ext)
	}
	assert.False(t, MarkType{Adaptive: false, PartType: PartCompact}.Valid())
}

func TestMarkSizeInBytes(t *testing.T) {
	settings := DefaultSettings()
	assert.Equal(t, 16, NewInfo(settings, PartWide, false).MarkSizeInBytes(3))
	assert.Equal(t, 24, NewInfo(settings, PartWide, true).MarkSizeInBytes(3))
	assert.Equal(t, 3*16+8, NewInfo(settings, PartCompact, true).MarkSizeInBytes(3))
}

func TestNewInfo(t *testing.T) {
	settings := DefaultSettings()
	info := NewInfo(settings, PartWide, false)
	assert.Equal(t, 0, info.IndexGranularityBytes)
	assert.Equal(t, settings.IndexGranularity, info.FixedIndexGranularity)
	assert.Equal(t, ".mrk", info.MarksFileExtension())

	info = NewInfo(settings, PartCompact, true)
	assert.Equal(t, settings.IndexGranularityBytes, info.IndexGranularityBytes)
	assert.Equal(t, ".mrk3", info.MarksFileExtension())
}

func TestChoosePartType(t *testing.T) {
	settings := DefaultSettings()
	settings.MinRowsForWidePart = 100
	settings.MinBytesForWidePart = 1000

	assert.Equal(t, PartCompact, ChoosePartType(50, 5000, settings, true))
	assert.Equal(t, PartCompact, ChoosePartType(500, 500, settings, true))
	assert.Equal(t, PartWide, ChoosePartType(500, 5000, settings, true))
	assert.Equal(t, PartWide, ChoosePartType(1, 1, settings, false))
}

func TestCanUseAdaptiveGranularity(t *testing.T) {
	settings := DefaultSettings()
	assert.True(t, CanUseAdaptiveGranularity(settings, true))

	settings.EnableMixedGranularityParts = false
	assert.False(t, CanUseAdaptiveGranularity(settings, true))
	assert.True(t, CanUseAdaptiveGranularity(settings, false))

	settings.IndexGranularityBytes = 0
	assert.False(t, CanUseAdaptiveGranularity(settings, false))
}

func TestParsePartType(t *testing.T) {
	pt, err := ParsePartType("Compact")
	require.NoError(t, err)
	assert.Equal(t, PartCompact, pt)

	pt, err = ParsePartType(" wide ")
	require.NoError(t, err)
	assert.Equal(t, PartWide, pt)

	_, err = ParsePartType("InMemory")
	assert.Error(t, err)
}
