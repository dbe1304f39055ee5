package merge

import (
	"context"
	"time"

	"github.com/harshithgowdakt/granulestore/internal/gologger"
	"github.com/harshithgowdakt/granulestore/internal/metrics"
	"github.com/harshithgowdakt/granulestore/internal/storage"
)

var logger = gologger.Component("merge")

// BackgroundMerger runs in a goroutine, periodically checking for merge opportunities.
type BackgroundMerger struct {
	db       *storage.Database
	selector *SimpleMergeSelector
	interval time.Duration
}

// NewBackgroundMerger creates a new background merger ticking every interval.
func NewBackgroundMerger(db *storage.Database, interval time.Duration) *BackgroundMerger {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &BackgroundMerger{
		db:       db,
		selector: NewSimpleMergeSelector(),
		interval: interval,
	}
}

// Run starts the background merge loop. It blocks until ctx is cancelled.
func (bm *BackgroundMerger) Run(ctx context.Context) {
	ticker := time.NewTicker(bm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			bm.RunOnce()
		}
	}
}

// RunOnce removes parts outdated by the previous round, then performs at most
// one merge per table. Outdated parts stay on disk for one interval so
// in-flight reads can finish.
func (bm *BackgroundMerger) RunOnce() int {
	merged := 0
	for _, table := range bm.db.AllTables() {
		if n, err := table.RemoveOutdatedParts(); err != nil {
			logger.Error().Err(err).Str("table", table.Name).Msg("removing outdated parts")
		} else if n > 0 {
			logger.Debug().Str("table", table.Name).Int("parts", n).Msg("removed outdated parts")
		}

		toMerge := bm.selector.SelectPartsToMerge(table.GetActiveParts())
		if toMerge == nil {
			continue
		}
		if bm.mergeTable(table, toMerge) {
			merged++
		}
	}
	return merged
}

func (bm *BackgroundMerger) mergeTable(table *storage.MergeTreeTable, toMerge []*storage.Part) bool {
	opts, err := table.WriterOptions()
	if err != nil {
		logger.Error().Err(err).Str("table", table.Name).Msg("merge failed")
		metrics.MergesTotal.WithLabelValues("failure").Inc()
		return false
	}

	start := time.Now()
	newPart, err := NewMergeExecutor(&table.Schema, opts).Merge(table.DataDir, toMerge)
	if err != nil {
		logger.Error().Err(err).Str("table", table.Name).Int("parts", len(toMerge)).Msg("merge failed")
		metrics.MergesTotal.WithLabelValues("failure").Inc()
		return false
	}

	table.ReplaceParts(toMerge, newPart)
	metrics.MergesTotal.WithLabelValues("success").Inc()
	metrics.MergedRows.Add(float64(newPart.NumRows))

	logger.Info().
		Str("table", table.Name).
		Int("parts", len(toMerge)).
		Str("result", newPart.Info.DirName()).
		Uint64("rows", newPart.NumRows).
		Str("granularity", newPart.IndexGranularity().Describe()).
		Dur("took", time.Since(start)).
		Msg("merged parts")
	return true
}
