package plugin

/*

	The Adapter sits aside /cubeview/
	Contains core interfaces for Plugin

*/

import (
	"time"

	Ct "github.com/maroda/cubeview/types"
)

// OutputAdapter can be used to define a place for exported cube state to go,
// snapshot-by-snapshot or in batches if supported by the output type.
type OutputAdapter interface {
	WriteSnapshot(snap *Ct.Snapshot) error                    // Write singleton snapshot
	WriteBatch(snaps []*Ct.Snapshot) error                    // Write batches of snapshots
	QueryRange(start, end time.Time) ([]*Ct.Snapshot, error) // Time range query tool
	Flush() error                                             // Flush any buffered data
	Close() error                                             // Close the adapter and release resources
	Type() string                                             // ID for output
}
