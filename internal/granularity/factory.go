package granularity

// Create returns the table a part writer fills while writing a part described
// by info. The first block's rows and bytes seed the constant stride.
//
// Compact parts, parts written block-per-granule and adaptive parts use an
// Adaptive table unless settings force the constant representation.
func Create(rowsInBlock, bytesInBlock int, settings Settings, info Info, blocksAreGranules bool) (Table, error) {
	useAdaptive := info.MarkType.Adaptive
	isCompact := info.MarkType.PartType == PartCompact

	if blocksAreGranules || isCompact || (useAdaptive && !settings.UseConstAdaptiveGranularity) {
		return NewAdaptive(), nil
	}

	computed := ComputeForBlock(
		rowsInBlock,
		bytesInBlock,
		settings.IndexGranularityBytes,
		settings.IndexGranularity,
		blocksAreGranules,
		useAdaptive,
	)
	c, err := NewConstant(computed)
	if err != nil {
		return nil, err
	}
	return c, nil
}
