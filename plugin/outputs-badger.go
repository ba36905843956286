package plugin

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/google/uuid"
	Ct "github.com/maroda/cubeview/types"
)

type BadgerOutput struct {
	MU        sync.Mutex
	DB        *badger.DB
	BatchSize int
	Buffer    []*Ct.Snapshot
}

// NewBadgerOutput opens (or creates) the database at path.
// An empty path keeps everything in memory.
func NewBadgerOutput(path string, batchSize int) (*BadgerOutput, error) {
	if batchSize < 1 {
		batchSize = 1
	}
	opts := badger.DefaultOptions(path).
		WithCompression(options.ZSTD).
		WithNumVersionsToKeep(1).
		WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		slog.Error("BadgerOutput failed to open database", slog.Any("Error", err))
		return nil, fmt.Errorf("database error: %w", err)
	}

	slog.Info("BadgerOutput opened",
		slog.String("path", path),
		slog.Int("batchSize", batchSize))

	return NewBadgerOutputWithDB(db, batchSize), nil
}

// NewBadgerOutputWithDB wraps an already open database
func NewBadgerOutputWithDB(db *badger.DB, batchSize int) *BadgerOutput {
	if batchSize < 1 {
		batchSize = 1
	}
	return &BadgerOutput{
		DB:        db,
		BatchSize: batchSize,
		Buffer:    make([]*Ct.Snapshot, 0, batchSize),
	}
}

// WriteSnapshot queues up a batch of snapshots,
// when batchsize is reached, it calls Flush()
// which calls WriteBatch() with the new batch
func (bo *BadgerOutput) WriteSnapshot(snap *Ct.Snapshot) error {
	bo.MU.Lock()
	defer bo.MU.Unlock()

	bo.Buffer = append(bo.Buffer, snap)
	if len(bo.Buffer) >= bo.BatchSize {
		return bo.flushLocked() // private Flush that does not lock
	}
	return nil
}

// WriteBatch performs the key/value creation to be stored
// and actually calls BadgerDB to write the data
func (bo *BadgerOutput) WriteBatch(snaps []*Ct.Snapshot) error {
	wb := bo.DB.NewWriteBatch()
	defer wb.Cancel()

	for _, s := range snaps {
		v, err := SnapshotEncode(s)
		if err != nil {
			return fmt.Errorf("snapshot encode error: %w", err)
		}
		if err := wb.Set(SnapshotKey(s), v); err != nil {
			slog.Error("BadgerOutput failed to set key in batch",
				slog.Any("Error", err),
				slog.Time("snapshotTime", s.Timestamp),
				slog.String("id", s.ID))
			return fmt.Errorf("write batch error: %w", err)
		}
	}

	if err := wb.Flush(); err != nil {
		slog.Error("BadgerOutput failed to flush batch", slog.Any("Error", err))
		return fmt.Errorf("batch flush error: %w", err)
	}

	return nil
}

// Flush is the public method that blocks,
// it sends data to WriteBatch and then clears the buffer
func (bo *BadgerOutput) Flush() error {
	bo.MU.Lock()
	defer bo.MU.Unlock()

	if len(bo.Buffer) == 0 {
		return nil
	}

	return bo.flushLocked()
}

// flushLocked mimics Flush without locking, called by WriteSnapshot
func (bo *BadgerOutput) flushLocked() error {
	err := bo.WriteBatch(bo.Buffer) // Delegate to WriteBatch
	clear(bo.Buffer)
	bo.Buffer = bo.Buffer[:0] // Clear but keep capacity
	return err
}

// Close returns a Flush error but still attempts to close
func (bo *BadgerOutput) Close() error {
	slog.Info("BadgerOutput closing, flushing buffer",
		slog.Int("bufferSize", len(bo.Buffer)))
	flushErr := bo.Flush()
	closeErr := bo.DB.Close()

	if flushErr != nil {
		slog.Error("BadgerOutput failed to flush on close", slog.Any("Error", flushErr))
		return fmt.Errorf("flush failed, close may have failed: %w", flushErr)
	}

	if closeErr != nil {
		slog.Error("BadgerOutput failed to close database", slog.Any("Error", closeErr))
		return fmt.Errorf("close failed: %w", closeErr)
	}

	slog.Info("BadgerOutput closed successfully")
	return nil
}

func (bo *BadgerOutput) Type() string { return "BadgerDB" }

// SnapshotKey creates a composite key: timestamp + snapshot ID
func SnapshotKey(snap *Ct.Snapshot) []byte {
	key := make([]byte, 8+16)

	// Using positive BigEndian integer to convert timestamp
	// so keys can be sorted chronologically by BadgerDB
	binary.BigEndian.PutUint64(key[0:8], uint64(snap.Timestamp.UnixNano()))

	// Snapshots taken in the same nanosecond still get distinct keys
	id, err := uuid.Parse(snap.ID)
	if err != nil {
		id = uuid.New()
	}
	copy(key[8:], id[:])

	return key
}

// SnapshotEncode serializes the snapshot for data storage.
// JSON keeps the free-form history parameters intact.
func SnapshotEncode(s *Ct.Snapshot) ([]byte, error) {
	return json.Marshal(s)
}

// SnapshotDecode deserializes the snapshot data
func SnapshotDecode(data []byte) (*Ct.Snapshot, error) {
	var s Ct.Snapshot
	err := json.Unmarshal(data, &s)
	return &s, err
}

// QueryRange retrieves snapshots taken within [start, end]
func (bo *BadgerOutput) QueryRange(start, end time.Time) ([]*Ct.Snapshot, error) {
	var snaps []*Ct.Snapshot

	lower := make([]byte, 8)
	binary.BigEndian.PutUint64(lower, uint64(start.UnixNano()))

	// db.View() callback
	// BadgerDB provides a transaction in which to get item.Value()
	err := bo.DB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		// keys are time ordered, so seek to start and stop after end
		for it.Seek(lower); it.Valid(); it.Next() {
			item := it.Item()
			ts := int64(binary.BigEndian.Uint64(item.Key()[0:8]))
			if ts > end.UnixNano() {
				break
			}

			// item.Value() callback
			// BadgerDB passes bytes to the anon func
			err := item.Value(func(val []byte) error {
				snap, err := SnapshotDecode(val)
				if err != nil {
					slog.Error("BadgerOutput failed to decode snapshot", slog.Any("Error", err))
					return fmt.Errorf("snapshot decode error: %w", err)
				}
				snaps = append(snaps, snap)
				return nil
			})
			if err != nil {
				slog.Error("BadgerOutput callback failure", slog.Any("Error", err))
				return fmt.Errorf("item data error: %w", err)
			}
		}
		return nil
	})

	slog.Info("BadgerOutput QueryRange successful", slog.Int("count", len(snaps)))

	return snaps, err
}
