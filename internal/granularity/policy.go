package granularity

// ComputeForBlock returns the number of rows per granule for a block of
// rowsInBlock rows occupying bytesInBlock bytes.
//
// With adaptive granularity the granule targets indexGranularityBytes bytes
// but never exceeds fixedGranularityRows, unless the whole block is declared to
// be one granule. The result is never below 1.
func ComputeForBlock(
	rowsInBlock int,
	bytesInBlock int,
	indexGranularityBytes int,
	fixedGranularityRows int,
	blocksAreGranules bool,
	adaptiveEnabled bool,
) int {
	var granularity int

	switch {
	case !adaptiveEnabled:
		granularity = fixedGranularityRows
	case blocksAreGranules:
		granularity = rowsInBlock
	case indexGranularityBytes <= 0:
		// No byte budget: a single row already exceeds it.
		granularity = 0
	case bytesInBlock >= indexGranularityBytes:
		granulesInBlock := bytesInBlock / indexGranularityBytes
		granularity = rowsInBlock / granulesInBlock
	default:
		sizeOfRow := 1
		if rowsInBlock > 0 {
			sizeOfRow = max(bytesInBlock/rowsInBlock, 1)
		}
		granularity = indexGranularityBytes / sizeOfRow
	}

	// Blocks written as whole granules may legitimately be larger than the
	// fixed granularity, e.g. when they come from a compact part.
	if !blocksAreGranules {
		granularity = min(fixedGranularityRows, granularity)
	}

	// Index granularity bytes smaller than a single row.
	if granularity <= 0 {
		granularity = 1
	}
	return granularity
}
