package plugin

import (
	"slices"
	"sync"
	"time"

	Ct "github.com/maroda/cubeview/types"
)

// MemoryOutput keeps snapshots in process, used when no export path is set
type MemoryOutput struct {
	MU    sync.RWMutex
	Snaps []*Ct.Snapshot
}

func NewMemoryOutput() *MemoryOutput {
	return &MemoryOutput{}
}

func (mo *MemoryOutput) WriteSnapshot(snap *Ct.Snapshot) error {
	return mo.WriteBatch([]*Ct.Snapshot{snap})
}

func (mo *MemoryOutput) WriteBatch(snaps []*Ct.Snapshot) error {
	mo.MU.Lock()
	defer mo.MU.Unlock()

	mo.Snaps = append(mo.Snaps, snaps...)
	slices.SortStableFunc(mo.Snaps, func(a, b *Ct.Snapshot) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return nil
}

// QueryRange returns snapshots taken within [start, end]
func (mo *MemoryOutput) QueryRange(start, end time.Time) ([]*Ct.Snapshot, error) {
	mo.MU.RLock()
	defer mo.MU.RUnlock()

	var out []*Ct.Snapshot
	for _, s := range mo.Snaps {
		if s.Timestamp.Before(start) || s.Timestamp.After(end) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (mo *MemoryOutput) Flush() error { return nil }

func (mo *MemoryOutput) Close() error { return nil }

func (mo *MemoryOutput) Type() string { return "Memory" }
