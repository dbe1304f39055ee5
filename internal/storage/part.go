package storage

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/harshithgowdakt/granulestore/internal/granularity"
	"github.com/harshithgowdakt/granulestore/internal/metrics"
)

// PartState represents the lifecycle state of a data part.
type PartState uint8

const (
	PartTemporary PartState = iota // tmp_ prefix, being written
	PartActive                     // visible to readers
	PartOutdated                   // replaced by merge, pending deletion
	PartDeleting                   // being deleted
)

func (s PartState) String() string {
	switch s {
	case PartTemporary:
		return "Temporary"
	case PartActive:
		return "Active"
	case PartOutdated:
		return "Outdated"
	case PartDeleting:
		return "Deleting"
	default:
		return fmt.Sprintf("PartState(%d)", uint8(s))
	}
}

// PartInfo identifies a part following MergeTree naming: partition_minBlock_maxBlock_level.
type PartInfo struct {
	PartitionID string
	MinBlock    uint64
	MaxBlock    uint64
	Level       uint32
}

// DirName returns the directory name for this part.
func (pi PartInfo) DirName() string {
	return fmt.Sprintf("%s_%d_%d_%d", pi.PartitionID, pi.MinBlock, pi.MaxBlock, pi.Level)
}

// TmpDirName returns the temporary directory name.
func (pi PartInfo) TmpDirName() string {
	return "tmp_" + pi.DirName()
}

// Contains returns true if this part's block range fully covers another part's range.
func (pi PartInfo) Contains(other PartInfo) bool {
	return pi.PartitionID == other.PartitionID &&
		pi.MinBlock <= other.MinBlock &&
		pi.MaxBlock >= other.MaxBlock &&
		pi.Level > other.Level
}

// Part represents a single data part on disk.
type Part struct {
	Info            PartInfo
	UUID            uuid.UUID
	Type            granularity.PartType
	GranularityInfo granularity.Info
	State           PartState
	NumRows         uint64
	SizeBytes       uint64
	CreatedAt       time.Time
	BasePath        string // absolute path to the part directory

	index atomic.Pointer[indexGranularity]
}

type indexGranularity struct {
	table granularity.Table
}

// IndexGranularity returns the part's sealed granularity table.
func (p *Part) IndexGranularity() granularity.Table {
	if ig := p.index.Load(); ig != nil {
		return ig.table
	}
	return nil
}

// SetIndexGranularity publishes t as the part's granularity table. t must be
// fully written; readers may use it concurrently from then on.
func (p *Part) SetIndexGranularity(t granularity.Table) {
	p.index.Store(&indexGranularity{table: t})
}

// OptimizeIndexGranularity replaces the table with its compact equivalent when
// one exists. Concurrent readers keep whichever table they already loaded.
func (p *Part) OptimizeIndexGranularity() bool {
	cur := p.index.Load()
	if cur == nil {
		return false
	}
	optimized := cur.table.Optimize()
	if optimized == nil {
		return false
	}
	if !p.index.CompareAndSwap(cur, &indexGranularity{table: optimized}) {
		return false
	}
	metrics.GranularityOptimized.Inc()
	return true
}

// MarksCount returns the number of marks including the final one.
func (p *Part) MarksCount() int {
	if t := p.IndexGranularity(); t != nil {
		return t.MarksCount()
	}
	return 0
}

func (p *Part) String() string {
	return fmt.Sprintf("Part{%s, %s, rows=%d, marks=%d, state=%s}",
		p.Info.DirName(), p.Type, p.NumRows, p.MarksCount(), p.State)
}
